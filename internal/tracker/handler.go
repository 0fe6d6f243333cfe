package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/2beens/workoutlog/internal/backup"
	"github.com/2beens/workoutlog/internal/middleware"
	"github.com/2beens/workoutlog/internal/session"
	"github.com/2beens/workoutlog/internal/stats"
	"github.com/2beens/workoutlog/internal/telemetry/metrics"
	"github.com/2beens/workoutlog/internal/telemetry/tracing"
	"github.com/2beens/workoutlog/internal/workouts"
	"github.com/2beens/workoutlog/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	BackupFileName = "full_workouts_backup.csv"
	maxRestoreSize = 10 << 20
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=tracker_test

type sessionStore interface {
	Start(ctx context.Context, createdAt time.Time) (*session.Session, error)
	Save(ctx context.Context, s *session.Session) error
	End(ctx context.Context, token string) error
}

type SessionResponse struct {
	Token      string        `json:"token,omitempty"`
	User       string        `json:"user"`
	Admin      bool          `json:"admin"`
	Draft      session.Draft `json:"draft"`
	JustLogged bool          `json:"justLogged"`
}

type UsersResponse struct {
	Users []string `json:"users"`
}

type WorkoutsResponse struct {
	User     string           `json:"user"`
	Workouts []workouts.Entry `json:"workouts"`
}

type DeleteWorkoutResponse struct {
	DeletedID int `json:"deletedId"`
}

type RestoreResponse struct {
	Restored int              `json:"restored"`
	Workouts []workouts.Entry `json:"workouts"`
}

type ArchiveResponse struct {
	Location string `json:"location"`
}

type Handler struct {
	store          *workouts.Store
	stats          *stats.Service
	backups        *backup.Service
	sessions       sessionStore
	metricsManager *metrics.Manager
	now            func() time.Time
}

func NewHandler(
	store *workouts.Store,
	statsService *stats.Service,
	backups *backup.Service,
	sessions sessionStore,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		store:          store,
		stats:          statsService,
		backups:        backups,
		sessions:       sessions,
		metricsManager: metricsManager,
		now:            time.Now,
	}
}

func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	restoreAllowedPerMin int,
) {
	mainRouter.HandleFunc("/", handler.handleRoot).Methods("GET", "OPTIONS").Name("root")

	mainRouter.HandleFunc("/session", handler.handleStartSession).Methods("POST", "OPTIONS").Name("session-start")
	mainRouter.HandleFunc("/session", handler.handleGetSession).Methods("GET", "OPTIONS").Name("session-get")
	mainRouter.HandleFunc("/session", handler.handleEndSession).Methods("DELETE", "OPTIONS").Name("session-end")
	mainRouter.HandleFunc("/session/user", handler.handleSelectUser).Methods("PUT", "OPTIONS").Name("session-user")
	mainRouter.HandleFunc("/session/draft", handler.handleEditDraft).Methods("PUT", "OPTIONS").Name("session-draft")

	mainRouter.HandleFunc("/users", handler.handleListUsers).Methods("GET", "OPTIONS").Name("users")

	mainRouter.HandleFunc("/workouts", handler.handleList).Methods("GET", "OPTIONS").Name("workouts-list")
	mainRouter.HandleFunc("/workouts", handler.handleCreate).Methods("POST", "OPTIONS").Name("workouts-create")
	mainRouter.HandleFunc("/workouts/stats", handler.handleStats).Methods("GET", "OPTIONS").Name("workouts-stats")
	mainRouter.HandleFunc("/workouts/progress", handler.handleProgress).Methods("GET", "OPTIONS").Name("workouts-progress")
	mainRouter.HandleFunc("/workouts/{id:[0-9]+}", handler.handleDelete).Methods("DELETE", "OPTIONS").Name("workouts-delete")

	adminRouter := mainRouter.PathPrefix("/admin").Subrouter()
	adminRouter.HandleFunc("/backup", handler.handleBackup).Methods("GET", "OPTIONS").Name("admin-backup")
	adminRouter.HandleFunc("/archive", handler.handleArchive).Methods("POST", "OPTIONS").Name("admin-archive")
	// a restore rewrites the whole store
	restoreRateLimit := middleware.RateLimit(rateLimiter, "restore", restoreAllowedPerMin, handler.metricsManager)
	adminRouter.Handle("/restore", restoreRateLimit(http.HandlerFunc(handler.handleRestore))).Methods("POST", "OPTIONS").Name("admin-restore")
	adminRouter.Use(middleware.RequireAdmin())
}

func (handler *Handler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, "I'm OK, thanks ;)")
}

func (handler *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.startSession")
	defer span.End()

	s, err := handler.sessions.Start(ctx, handler.now())
	if err != nil {
		writeError(w, "start session", err)
		return
	}

	resp := sessionResponse(s, false)
	resp.Token = s.ID
	writeJSON(w, http.StatusCreated, "start session", resp)
}

func (handler *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.endSession")
	defer span.End()

	s, ok := middleware.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "end session: missing session", http.StatusUnauthorized)
		return
	}

	if err := handler.sessions.End(ctx, s.ID); err != nil {
		writeError(w, "end session", err)
		return
	}

	pkg.WriteTextResponseOK(w, "session ended")
}

// handleGetSession renders the form state. Right after a logged workout this
// consumes the just-logged flag and hands out a fresh draft.
func (handler *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.getSession")
	defer span.End()

	s, ok := middleware.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "render session: missing session", http.StatusUnauthorized)
		return
	}

	justLogged := s.JustLogged
	s.Render()
	if justLogged {
		if err := handler.sessions.Save(ctx, s); err != nil {
			writeError(w, "render session", err)
			return
		}
	}

	writeJSON(w, http.StatusOK, "render session", sessionResponse(s, justLogged))
}

func (handler *Handler) handleSelectUser(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.selectUser")
	defer span.End()

	s, ok := middleware.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "select user: missing session", http.StatusUnauthorized)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "select user: parse form error", http.StatusBadRequest)
		return
	}

	user := session.ResolveUser(r.Form.Get("selected"), r.Form.Get("name"))
	if user == "" {
		writeError(w, "select user", invalidField("user", "must not be empty"))
		return
	}

	if s.SelectUser(user) {
		span.SetAttributes(attribute.String("user", user))
		if err := handler.sessions.Save(ctx, s); err != nil {
			writeError(w, "select user", err)
			return
		}
	}

	writeJSON(w, http.StatusOK, "select user", sessionResponse(s, s.JustLogged))
}

func (handler *Handler) handleEditDraft(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.editDraft")
	defer span.End()

	s, ok := middleware.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "edit draft: missing session", http.StatusUnauthorized)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "edit draft: parse form error", http.StatusBadRequest)
		return
	}

	draft, err := parseDraft(r, s.Draft)
	if err != nil {
		writeError(w, "edit draft", err)
		return
	}

	s.EditDraft(draft)
	if err := handler.sessions.Save(ctx, s); err != nil {
		writeError(w, "edit draft", err)
		return
	}

	writeJSON(w, http.StatusOK, "edit draft", sessionResponse(s, s.JustLogged))
}

func (handler *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.listUsers")
	defer span.End()

	users, err := handler.store.ListUsers(ctx)
	if err != nil {
		writeError(w, "list users", err)
		return
	}

	writeJSON(w, http.StatusOK, "list users", UsersResponse{Users: users})
}

func (handler *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.list")
	defer span.End()

	s, ok := middleware.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "list workouts: missing session", http.StatusUnauthorized)
		return
	}

	entries, err := handler.store.List(ctx, s.User)
	if err != nil {
		writeError(w, "list workouts", err)
		return
	}

	writeJSON(w, http.StatusOK, "list workouts", WorkoutsResponse{User: s.User, Workouts: entries})
}

func (handler *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.create")
	defer span.End()

	s, ok := middleware.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "log workout: missing session", http.StatusUnauthorized)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "log workout: parse form error", http.StatusBadRequest)
		return
	}

	entry, err := parseNewEntry(r, s.User)
	if err != nil {
		writeError(w, "log workout", err)
		return
	}

	created, err := handler.store.Create(ctx, entry)
	if err != nil {
		writeError(w, "log workout", err)
		return
	}
	handler.metricsManager.CounterEntriesLogged.Inc()
	log.Debugf("workout %d logged for [%s]: %s", created.ID, created.User, created.Exercise)

	s.EditDraft(session.Draft{
		Exercise: created.Exercise,
		Weight:   created.Weight,
		Reps:     created.Reps,
		Sets:     created.Sets,
	})
	s.MarkLogged()
	if err := handler.sessions.Save(ctx, s); err != nil {
		// the entry is stored, only the form reset is lost
		log.Errorf("log workout, save session %s: %s", s.ID, err)
	}

	writeJSON(w, http.StatusCreated, "log workout", created)
}

func (handler *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.delete")
	defer span.End()

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "delete workout: id NaN", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.Int("id", id))

	if err := handler.store.Delete(ctx, id); err != nil {
		writeError(w, "delete workout", err)
		return
	}
	handler.metricsManager.CounterEntriesDeleted.Inc()

	writeJSON(w, http.StatusOK, "delete workout", DeleteWorkoutResponse{DeletedID: id})
}

func (handler *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.stats")
	defer span.End()

	s, ok := middleware.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "workout stats: missing session", http.StatusUnauthorized)
		return
	}

	summary, err := handler.stats.Summary(ctx, s.User)
	if err != nil {
		writeError(w, "workout stats", err)
		return
	}

	writeJSON(w, http.StatusOK, "workout stats", summary)
}

func (handler *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.progress")
	defer span.End()

	s, ok := middleware.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "progress chart: missing session", http.StatusUnauthorized)
		return
	}

	exercise := strings.TrimSpace(r.URL.Query().Get("exercise"))
	if exercise == "" {
		writeError(w, "progress chart", invalidField("exercise", "must not be empty"))
		return
	}

	progress, err := handler.stats.Progress(ctx, s.User, exercise)
	if err != nil {
		writeError(w, "progress chart", err)
		return
	}

	writeJSON(w, http.StatusOK, "progress chart", progress)
}

func (handler *Handler) handleBackup(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.backup")
	defer span.End()

	var buf bytes.Buffer
	count, err := handler.backups.WriteBackup(ctx, &buf)
	if err != nil {
		writeError(w, "download backup", err)
		return
	}
	span.SetAttributes(attribute.Int("count", count))

	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, BackupFileName))
	pkg.WriteResponseBytesOK(w, pkg.ContentType.CSV, buf.Bytes())
}

func (handler *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.restore")
	defer span.End()

	r.Body = http.MaxBytesReader(w, r.Body, maxRestoreSize)

	var backupFile io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			if isTooLarge(err) {
				http.Error(w, "restore backup: file too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "restore backup: missing file", http.StatusBadRequest)
			return
		}
		defer file.Close()
		backupFile = file
	}

	restored, err := handler.backups.Restore(ctx, backupFile)
	if err != nil {
		if isTooLarge(err) {
			http.Error(w, "restore backup: file too large", http.StatusRequestEntityTooLarge)
			return
		}
		writeError(w, "restore backup", err)
		return
	}

	writeJSON(w, http.StatusOK, "restore backup", RestoreResponse{Restored: len(restored), Workouts: restored})
}

func isTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}

func (handler *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.archive")
	defer span.End()

	location, err := handler.backups.Archive(ctx)
	if errors.Is(err, backup.ErrNoArchiver) {
		http.Error(w, "archive backup: "+err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		writeError(w, "archive backup", err)
		return
	}

	writeJSON(w, http.StatusOK, "archive backup", ArchiveResponse{Location: location})
}

func sessionResponse(s *session.Session, justLogged bool) SessionResponse {
	return SessionResponse{
		User:       s.User,
		Admin:      s.Admin,
		Draft:      s.Draft,
		JustLogged: justLogged,
	}
}

func writeJSON(w http.ResponseWriter, status int, op string, v any) {
	respBytes, err := json.Marshal(v)
	if err != nil {
		log.Errorf("%s, marshal response: %s", op, err)
		http.Error(w, op+": marshal response error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respBytes, status)
}

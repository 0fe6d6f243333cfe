package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/2beens/workoutlog/internal/middleware"
	"github.com/2beens/workoutlog/internal/session"
	"github.com/2beens/workoutlog/internal/telemetry/metrics"
	"github.com/2beens/workoutlog/internal/telemetry/tracing"
	"github.com/2beens/workoutlog/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=auth_test

type sessionSaver interface {
	Save(ctx context.Context, s *session.Session) error
}

type Handler struct {
	admin    *Admin
	sessions sessionSaver
}

func NewHandler(admin *Admin, sessions sessionSaver) *Handler {
	return &Handler{
		admin:    admin,
		sessions: sessions,
	}
}

func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	metricsManager *metrics.Manager,
	allowedPerMin int,
) {
	loginSubrouter := mainRouter.PathPrefix("/a").Subrouter()
	loginSubrouter.
		HandleFunc("/login", handler.handleLogin).
		Methods("POST", "OPTIONS").Name("login")
	loginSubrouter.
		HandleFunc("/logout", handler.handleLogout).
		Methods("POST", "OPTIONS").Name("logout")

	// rate limit the /login and /logout endpoints to prevent password guessing
	loginSubrouter.Use(middleware.RateLimit(rateLimiter, "login", allowedPerMin, metricsManager))
}

func (handler *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "authHandler.login")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	s, ok := middleware.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "admin login: missing session", http.StatusUnauthorized)
		return
	}

	var creds Credentials
	if r.Header.Get("Content-Type") == pkg.ContentType.JSON {
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			log.Errorf("admin login, unmarshal json params: %s", err)
			http.Error(w, "admin login: invalid json", http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			log.Errorf("admin login, parse form: %s", err)
			http.Error(w, "admin login: parse form error", http.StatusBadRequest)
			return
		}
		creds = Credentials{
			Username: r.Form.Get("username"),
			Password: r.Form.Get("password"),
		}
	}

	if creds.Username == "" {
		http.Error(w, "admin login: username empty", http.StatusBadRequest)
		return
	}
	if creds.Password == "" {
		http.Error(w, "admin login: password empty", http.StatusBadRequest)
		return
	}

	if err := handler.admin.Verify(creds); err != nil {
		if !errors.Is(err, ErrWrongCredentials) {
			log.Errorf("admin login: %s", err)
		}
		log.Tracef("failed admin login attempt for user: %s", creds.Username)
		span.SetStatus(codes.Error, "wrong-credentials")
		http.Error(w, "admin login: wrong credentials", http.StatusUnauthorized)
		return
	}

	s.Admin = true
	if err := handler.sessions.Save(ctx, s); err != nil {
		log.Errorf("admin login, save session: %s", err)
		span.SetStatus(codes.Error, "save-session")
		http.Error(w, "admin login: save session error", http.StatusInternalServerError)
		return
	}

	log.Trace("admin login success")
	span.SetStatus(codes.Ok, "ok")
	pkg.WriteJSONResponseOK(w, `{"admin":true}`)
}

func (handler *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "authHandler.logout")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	s, ok := middleware.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "admin logout: missing session", http.StatusUnauthorized)
		return
	}

	s.Admin = false
	if err := handler.sessions.Save(ctx, s); err != nil {
		log.Errorf("admin logout, save session: %s", err)
		http.Error(w, "admin logout: save session error", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, `{"admin":false}`)
}

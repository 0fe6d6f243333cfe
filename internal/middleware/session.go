package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/2beens/workoutlog/internal/session"
	"github.com/2beens/workoutlog/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// SessionHeader carries the session token. Being a non-standard header, it
// makes browsers send a preflight request first.
const SessionHeader = "X-WORKOUT-SESSION"

//go:generate mockgen -source=$GOFILE -destination=session_mocks_test.go -package=middleware_test

type sessionLoader interface {
	Get(ctx context.Context, token string) (*session.Session, error)
}

type sessionCtxKey struct{}

func ContextWithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, s)
}

func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	s, ok := ctx.Value(sessionCtxKey{}).(*session.Session)
	return s, ok && s != nil
}

type SessionMiddlewareHandler struct {
	loader     sessionLoader
	openRoutes map[string]bool
}

func NewSessionMiddlewareHandler(loader sessionLoader) *SessionMiddlewareHandler {
	return &SessionMiddlewareHandler{
		loader: loader,
		openRoutes: map[string]bool{
			"GET /":         true,
			"POST /session": true,
			"GET /users":    true,
		},
	}
}

// LoadSession resolves the session token into a *session.Session stored in
// the request context. Requests without a valid session get 401, except for
// the few routes that work without one.
func (h *SessionMiddlewareHandler) LoadSession() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.session")
			defer span.End()

			if r.Method == http.MethodOptions {
				w.Header().Add("Allow", "GET, POST, PUT, DELETE, OPTIONS")
				w.WriteHeader(http.StatusOK)
				span.SetStatus(codes.Ok, "options-ok")
				return
			}

			if h.openRoutes[r.Method+" "+r.URL.Path] {
				span.SetStatus(codes.Ok, "open-route")
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get(SessionHeader)
			if token == "" {
				log.Tracef("[missing session] unauthorized => %s", r.URL.Path)
				http.Error(w, "missing session", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "missing-session")
				return
			}

			s, err := h.loader.Get(ctx, token)
			if errors.Is(err, session.ErrSessionNotFound) {
				log.Tracef("[unknown session] unauthorized => %s", r.URL.Path)
				http.Error(w, "session expired or unknown", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "unknown-session")
				return
			}
			if err != nil {
				log.Errorf("[failed session load] => %s: %s", r.URL.Path, err)
				http.Error(w, "load session: internal error", http.StatusInternalServerError)
				span.SetStatus(codes.Error, "load-session-err")
				span.RecordError(err)
				return
			}

			span.SetAttributes(attribute.Bool("session.admin", s.Admin))
			span.SetStatus(codes.Ok, "ok")
			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), s)))
		})
	}
}

// RequireAdmin lets through only sessions holding the admin role.
func RequireAdmin() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := SessionFromContext(r.Context())
			if !ok {
				http.Error(w, "missing session", http.StatusUnauthorized)
				return
			}
			if !s.Admin {
				log.Warnf("non admin session tried to reach %s %s", r.Method, r.URL.Path)
				http.Error(w, "admin role required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

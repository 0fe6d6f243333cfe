package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/2beens/workoutlog/internal/middleware"
	"github.com/2beens/workoutlog/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestSessionMiddlewareHandler_LoadSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	loader := NewMocksessionLoader(ctrl)
	sessionMiddleware := middleware.NewSessionMiddlewareHandler(loader)

	validSession := session.New("valid-token", time.Now())
	validSession.SelectUser("mor")

	loader.EXPECT().Get(gomock.Any(), "valid-token").Return(validSession, nil).AnyTimes()
	loader.EXPECT().Get(gomock.Any(), "expired-token").Return(nil, session.ErrSessionNotFound).AnyTimes()
	loader.EXPECT().Get(gomock.Any(), "broken-token").Return(nil, errors.New("redis down")).AnyTimes()

	testCases := []struct {
		name               string
		path               string
		method             string
		token              string
		expectedStatusCode int
		expectNextCalled   bool
		expectSession      bool
	}{
		{
			name:               "OptionsPreflight",
			path:               "/workouts",
			method:             http.MethodOptions,
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "StartSessionWithoutToken",
			path:               "/session",
			method:             http.MethodPost,
			expectedStatusCode: http.StatusOK,
			expectNextCalled:   true,
		},
		{
			name:               "UsersWithoutToken",
			path:               "/users",
			method:             http.MethodGet,
			expectedStatusCode: http.StatusOK,
			expectNextCalled:   true,
		},
		{
			name:               "WorkoutsWithoutToken",
			path:               "/workouts",
			method:             http.MethodGet,
			expectedStatusCode: http.StatusUnauthorized,
		},
		{
			name:               "GetSessionWithoutToken",
			path:               "/session",
			method:             http.MethodGet,
			expectedStatusCode: http.StatusUnauthorized,
		},
		{
			name:               "ValidToken",
			path:               "/workouts",
			method:             http.MethodGet,
			token:              "valid-token",
			expectedStatusCode: http.StatusOK,
			expectNextCalled:   true,
			expectSession:      true,
		},
		{
			name:               "ExpiredToken",
			path:               "/workouts",
			method:             http.MethodGet,
			token:              "expired-token",
			expectedStatusCode: http.StatusUnauthorized,
		},
		{
			name:               "SessionStoreFailure",
			path:               "/workouts",
			method:             http.MethodGet,
			token:              "broken-token",
			expectedStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, tc.path, nil)
			require.NoError(t, err)
			if tc.token != "" {
				req.Header.Set(middleware.SessionHeader, tc.token)
			}

			nextCalled := false
			var gotSession *session.Session
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				gotSession, _ = middleware.SessionFromContext(r.Context())
			})

			rr := httptest.NewRecorder()
			sessionMiddleware.LoadSession()(next).ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedStatusCode, rr.Code)
			assert.Equal(t, tc.expectNextCalled, nextCalled)
			if tc.expectSession {
				require.NotNil(t, gotSession)
				assert.Equal(t, "mor", gotSession.User)
			} else {
				assert.Nil(t, gotSession)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := middleware.RequireAdmin()(next)

	// no session at all
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/backup", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// a regular session, even one named like the admin, is refused
	s := session.New("tkn", time.Now())
	s.SelectUser("mor")
	req := httptest.NewRequest(http.MethodGet, "/admin/backup", nil)
	req = req.WithContext(middleware.ContextWithSession(req.Context(), s))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	s.Admin = true
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTeapot, rr.Code)
}

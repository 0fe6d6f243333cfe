//go:build integration_test || all_tests

package integration_testing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/2beens/workoutlog/internal/middleware"
	"github.com/2beens/workoutlog/internal/tracker"
	"github.com/2beens/workoutlog/pkg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) do(ctx context.Context, method, path, token, contentType string, body io.Reader) (int, []byte) {
	t := s.T()

	req, err := http.NewRequestWithContext(ctx, method, serverEndpoint+path, body)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	if token != "" {
		req.Header.Set(middleware.SessionHeader, token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, respBytes
}

func (s *IntegrationTestSuite) startSession(ctx context.Context, user string) string {
	t := s.T()

	status, body := s.do(ctx, "POST", "/session", "", "", nil)
	require.Equal(t, http.StatusCreated, status, string(body))

	var sessionResp tracker.SessionResponse
	require.NoError(t, json.Unmarshal(body, &sessionResp))
	require.NotEmpty(t, sessionResp.Token)

	if user != "" {
		form := url.Values{"name": {user}}
		status, body = s.do(ctx, "PUT", "/session/user", sessionResp.Token,
			"application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
		require.Equal(t, http.StatusOK, status, string(body))
	}

	return sessionResp.Token
}

func (s *IntegrationTestSuite) logWorkout(ctx context.Context, token string, form url.Values) {
	status, body := s.do(ctx, "POST", "/workouts", token,
		"application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.Equal(s.T(), http.StatusCreated, status, string(body))
}

func (s *IntegrationTestSuite) adminLogin(ctx context.Context, token string) {
	loginReqJson, err := json.Marshal(map[string]string{
		"username": testAdminUsername,
		"password": testAdminPassword,
	})
	require.NoError(s.T(), err)

	status, body := s.do(ctx, "POST", "/a/login", token, pkg.ContentType.JSON, bytes.NewReader(loginReqJson))
	require.Equal(s.T(), http.StatusOK, status, string(body))
}

func (s *IntegrationTestSuite) countRows() int {
	var count int
	require.NoError(s.T(), s.DB.QueryRow(`SELECT COUNT(*) FROM public.workout`).Scan(&count))
	return count
}

func (s *IntegrationTestSuite) TestLogListAndDelete() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	t := s.T()

	token := s.startSession(ctx, "mor")
	s.logWorkout(ctx, token, url.Values{
		"exercise": {"Squat"}, "weight": {"100"}, "reps": {"5"}, "sets": {"3"}, "date": {"2024-03-14"},
	})
	s.logWorkout(ctx, token, url.Values{
		"exercise": {"Squat"}, "weight": {"105"}, "reps": {"5"}, "sets": {"3"}, "date": {"2024-03-16"},
	})
	assert.Equal(t, 2, s.countRows())

	// the form resets once after a logged workout
	status, body := s.do(ctx, "GET", "/session", token, "", nil)
	require.Equal(t, http.StatusOK, status)
	var sessionResp tracker.SessionResponse
	require.NoError(t, json.Unmarshal(body, &sessionResp))
	assert.True(t, sessionResp.JustLogged)
	assert.Equal(t, "", sessionResp.Draft.Exercise)

	status, body = s.do(ctx, "GET", "/workouts", token, "", nil)
	require.Equal(t, http.StatusOK, status)
	var workoutsResp tracker.WorkoutsResponse
	require.NoError(t, json.Unmarshal(body, &workoutsResp))
	require.Len(t, workoutsResp.Workouts, 2)
	assert.Equal(t, "2024-03-16", workoutsResp.Workouts[0].Date.String())

	status, _ = s.do(ctx, "DELETE", fmt.Sprintf("/workouts/%d", workoutsResp.Workouts[0].ID), token, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, s.countRows())

	status, body = s.do(ctx, "GET", "/users", "", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"users":["mor"]}`, string(body))
}

func (s *IntegrationTestSuite) TestInvalidWorkoutIsRejected() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token := s.startSession(ctx, "mor")
	status, body := s.do(ctx, "POST", "/workouts", token, "application/x-www-form-urlencoded",
		strings.NewReader(url.Values{"exercise": {"Squat"}, "reps": {"0"}}.Encode()))
	assert.Equal(s.T(), http.StatusBadRequest, status, string(body))
	assert.Equal(s.T(), 0, s.countRows())
}

func (s *IntegrationTestSuite) TestBackupAndRestore() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	t := s.T()

	token := s.startSession(ctx, "mor")
	s.logWorkout(ctx, token, url.Values{
		"exercise": {"Deadlift"}, "weight": {"140"}, "reps": {"3"}, "sets": {"2"}, "date": {"2024-03-10"},
	})

	status, _ := s.do(ctx, "GET", "/admin/backup", token, "", nil)
	require.Equal(t, http.StatusForbidden, status)

	s.adminLogin(ctx, token)

	status, backupBody := s.do(ctx, "GET", "/admin/backup", token, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "user,exercise,weight,reps,sets,date\nmor,Deadlift,140,3,2,2024-03-10\n", string(backupBody))

	restoreCSV := "user,exercise,weight,reps,sets,date\n" +
		"serj,Bench,80,5,3,2024-03-11\n" +
		"serj,Bench,82.5,5,3,2024-03-12\n"
	status, body := s.do(ctx, "POST", "/admin/restore", token, pkg.ContentType.CSV, strings.NewReader(restoreCSV))
	require.Equal(t, http.StatusOK, status, string(body))

	var restoreResp tracker.RestoreResponse
	require.NoError(t, json.Unmarshal(body, &restoreResp))
	assert.Equal(t, 2, restoreResp.Restored)
	assert.Equal(t, 2, s.countRows())

	// a broken backup leaves the table untouched
	status, body = s.do(ctx, "POST", "/admin/restore", token, pkg.ContentType.CSV,
		strings.NewReader("user,exercise,weight,reps,sets,date\nserj,Bench,heavy,5,3,2024-03-11\n"))
	assert.Equal(t, http.StatusBadRequest, status, string(body))
	assert.Equal(t, 2, s.countRows())
}

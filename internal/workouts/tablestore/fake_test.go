package tablestore

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/2beens/workoutlog/internal/workouts"
)

// fakeTable answers the subset of the PostgREST dialect the client uses.
type fakeTable struct {
	mu       sync.Mutex
	apiKey   string
	lastID   int
	rows     []workouts.Entry
	requests []string
	failWith int
}

func newFakeTable(apiKey string) *fakeTable {
	return &fakeTable{apiKey: apiKey}
}

func (f *fakeTable) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": code, "message": message})
}

func (f *fakeTable) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, r.Method+" "+r.URL.RawQuery)

	if !strings.HasSuffix(r.URL.Path, "/rest/v1/workouts_v2") {
		f.writeError(w, http.StatusNotFound, "42P01", "relation does not exist")
		return
	}
	if r.Header.Get("apikey") != f.apiKey || r.Header.Get("Authorization") != "Bearer "+f.apiKey {
		f.writeError(w, http.StatusUnauthorized, "", "Invalid API key")
		return
	}
	if f.failWith != 0 {
		f.writeError(w, f.failWith, "XX000", "backend failure")
		return
	}

	switch r.Method {
	case http.MethodGet:
		f.handleGet(w, r)
	case http.MethodPost:
		f.handlePost(w, r)
	case http.MethodDelete:
		f.handleDelete(w, r)
	default:
		f.writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
	}
}

func (f *fakeTable) handleGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	result := []workouts.Entry{}
	for _, e := range f.rows {
		if userFilter := q.Get("user"); userFilter != "" && "eq."+e.User != userFilter {
			continue
		}
		result = append(result, e)
	}

	switch q.Get("order") {
	case "date.desc,id.desc":
		workouts.SortByDateDesc(result)
	case "id.asc", "":
		sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	}

	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset > len(result) {
		offset = len(result)
	}
	result = result[offset:]
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit < len(result) {
		result = result[:limit]
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

func (f *fakeTable) handlePost(w http.ResponseWriter, r *http.Request) {
	var rows []row
	if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		f.writeError(w, http.StatusBadRequest, "PGRST102", "invalid body")
		return
	}

	created := make([]workouts.Entry, 0, len(rows))
	for _, rw := range rows {
		d, err := workouts.ParseDate(rw.Date)
		if err != nil {
			f.writeError(w, http.StatusBadRequest, "22007", err.Error())
			return
		}
		created = append(created, workouts.Entry{
			User:     rw.User,
			Exercise: rw.Exercise,
			Weight:   rw.Weight,
			Reps:     rw.Reps,
			Sets:     rw.Sets,
			Date:     d,
		})
	}
	for i := range created {
		f.lastID++
		created[i].ID = f.lastID
	}
	f.rows = append(f.rows, created...)

	if r.Header.Get("Prefer") != "return=representation" {
		w.WriteHeader(http.StatusCreated)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(created)
}

func (f *fakeTable) handleDelete(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("id")
	var keep func(e workouts.Entry) bool
	switch {
	case strings.HasPrefix(filter, "eq."):
		id, _ := strconv.Atoi(strings.TrimPrefix(filter, "eq."))
		keep = func(e workouts.Entry) bool { return e.ID != id }
	case strings.HasPrefix(filter, "neq."):
		id, _ := strconv.Atoi(strings.TrimPrefix(filter, "neq."))
		keep = func(e workouts.Entry) bool { return e.ID == id }
	default:
		f.writeError(w, http.StatusBadRequest, "21000", "DELETE requires a WHERE clause")
		return
	}

	kept := f.rows[:0]
	for _, e := range f.rows {
		if keep(e) {
			kept = append(kept, e)
		}
	}
	f.rows = kept
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeTable) requestCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, r := range f.requests {
		if strings.HasPrefix(r, prefix) {
			count++
		}
	}
	return count
}

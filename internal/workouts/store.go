package workouts

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/2beens/workoutlog/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Store is the record store. It validates input, classifies backend errors
// and keeps result ordering independent of the backend in use.
type Store struct {
	backend Backend
	now     func() time.Time
}

func NewStore(backend Backend) *Store {
	return &Store{
		backend: backend,
		now:     time.Now,
	}
}

// WithClock replaces the clock used to default the entry date.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Transactional reports whether Replace runs in a single backend transaction.
func (s *Store) Transactional() bool {
	_, ok := s.backend.(Replacer)
	return ok
}

func (s *Store) Create(ctx context.Context, entry Entry) (_ *Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.workouts.create")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	entry = entry.Normalized()
	entry.ID = 0
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	if entry.Date.IsZero() {
		entry.Date = DateOf(s.now())
	}

	id, err := s.backend.Insert(ctx, entry)
	if err != nil {
		return nil, &StoreError{Op: "create", Err: err}
	}

	span.SetAttributes(attribute.Int("entry.id", id))
	log.Tracef("workout [%d] logged for [%s]: %s %gkg %dx%d", id, entry.User, entry.Exercise, entry.Weight, entry.Sets, entry.Reps)

	entry.ID = id
	return &entry, nil
}

// List returns the entries of user, most recent date first, newest id first
// within a day. A blank user yields an empty result.
func (s *Store) List(ctx context.Context, user string) (_ []Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.workouts.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	user = strings.TrimSpace(user)
	span.SetAttributes(attribute.String("user", user))
	if user == "" {
		return []Entry{}, nil
	}

	entries, err := s.backend.ListByUser(ctx, user)
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}

	result := make([]Entry, len(entries))
	copy(result, entries)
	SortByDateDesc(result)

	span.SetAttributes(attribute.Int("count", len(result)))
	return result, nil
}

// Delete removes the entry with the given id. Deleting a missing id is a no-op.
func (s *Store) Delete(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.workouts.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	if err := s.backend.Delete(ctx, id); err != nil {
		return &StoreError{Op: "delete", Err: err}
	}
	return nil
}

// Clear removes every entry of every user.
func (s *Store) Clear(ctx context.Context) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.workouts.clear")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := s.backend.DeleteAll(ctx); err != nil {
		return &StoreError{Op: "clear", Err: err}
	}
	log.Warnln("workouts store cleared")
	return nil
}

// BulkInsert validates all entries first and inserts nothing if any is invalid.
func (s *Store) BulkInsert(ctx context.Context, entries []Entry) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.workouts.bulkinsert")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("count", len(entries)))

	prepared, err := s.prepareAll(entries)
	if err != nil {
		return 0, err
	}
	if len(prepared) == 0 {
		return 0, nil
	}

	count, err := s.backend.InsertMany(ctx, prepared)
	if err != nil {
		return 0, &StoreError{Op: "bulk insert", Err: err}
	}
	return count, nil
}

// ListUsers returns the distinct non-empty users, sorted.
func (s *Store) ListUsers(ctx context.Context) (_ []string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.workouts.listusers")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	users, err := s.backend.DistinctUsers(ctx)
	if err != nil {
		return nil, &StoreError{Op: "list users", Err: err}
	}

	seen := make(map[string]bool, len(users))
	result := make([]string, 0, len(users))
	for _, u := range users {
		if strings.TrimSpace(u) == "" || seen[u] {
			continue
		}
		seen[u] = true
		result = append(result, u)
	}
	sort.Strings(result)

	span.SetAttributes(attribute.Int("count", len(result)))
	return result, nil
}

// ExportAll returns a snapshot of every entry in store order (ascending id).
func (s *Store) ExportAll(ctx context.Context) (_ []Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.workouts.exportall")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	entries, err := s.backend.All(ctx)
	if err != nil {
		return nil, &StoreError{Op: "export", Err: err}
	}

	result := make([]Entry, len(entries))
	copy(result, entries)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	span.SetAttributes(attribute.Int("count", len(result)))
	return result, nil
}

// Replace clears the store and inserts entries. Entries are validated before
// anything is removed. Backends implementing Replacer do both steps in one
// transaction; for the others a create racing the replace can be lost.
func (s *Store) Replace(ctx context.Context, entries []Entry) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.workouts.replace")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("count", len(entries)))

	prepared, err := s.prepareAll(entries)
	if err != nil {
		return 0, err
	}

	if replacer, ok := s.backend.(Replacer); ok {
		span.SetAttributes(attribute.Bool("transactional", true))
		count, err := replacer.ReplaceAll(ctx, prepared)
		if err != nil {
			return 0, &StoreError{Op: "replace", Err: err}
		}
		return count, nil
	}

	span.SetAttributes(attribute.Bool("transactional", false))
	log.Warnln("backend has no transactions: entries created while replacing can be lost")

	if err := s.backend.DeleteAll(ctx); err != nil {
		return 0, &StoreError{Op: "replace", Err: err}
	}
	if len(prepared) == 0 {
		return 0, nil
	}
	count, err := s.backend.InsertMany(ctx, prepared)
	if err != nil {
		// the store is left as the backend reports it
		log.Errorf("replace: store cleared but insert failed: %s", err)
		return 0, &StoreError{Op: "replace", Err: err}
	}
	return count, nil
}

func (s *Store) prepareAll(entries []Entry) ([]Entry, error) {
	today := DateOf(s.now())
	prepared := make([]Entry, len(entries))
	for i, e := range entries {
		e = e.Normalized()
		e.ID = 0
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if e.Date.IsZero() {
			e.Date = today
		}
		prepared[i] = e
	}
	return prepared, nil
}

// SortByDateDesc orders entries by date descending, ties by id descending.
func SortByDateDesc(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.After(entries[j].Date)
		}
		return entries[i].ID > entries[j].ID
	})
}

package memory

import (
	"context"
	"sync"

	"github.com/2beens/workoutlog/internal/workouts"
)

// Backend keeps entries in process memory. Ids are never reused, not even
// after DeleteAll.
type Backend struct {
	mu      sync.RWMutex
	lastID  int
	entries []workouts.Entry
}

func NewBackend() *Backend {
	return &Backend{}
}

func (b *Backend) Insert(_ context.Context, e workouts.Entry) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.insert(e), nil
}

func (b *Backend) InsertMany(_ context.Context, entries []workouts.Entry) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range entries {
		b.insert(e)
	}
	return len(entries), nil
}

func (b *Backend) insert(e workouts.Entry) int {
	b.lastID++
	e.ID = b.lastID
	b.entries = append(b.entries, e)
	return e.ID
}

func (b *Backend) ListByUser(_ context.Context, user string) ([]workouts.Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := []workouts.Entry{}
	for _, e := range b.entries {
		if e.User == user {
			result = append(result, e)
		}
	}
	workouts.SortByDateDesc(result)
	return result, nil
}

func (b *Backend) Delete(_ context.Context, id int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, e := range b.entries {
		if e.ID == id {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (b *Backend) DeleteAll(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
	return nil
}

func (b *Backend) DistinctUsers(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	seen := map[string]bool{}
	users := []string{}
	for _, e := range b.entries {
		if !seen[e.User] {
			seen[e.User] = true
			users = append(users, e.User)
		}
	}
	return users, nil
}

func (b *Backend) All(_ context.Context) ([]workouts.Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]workouts.Entry, len(b.entries))
	copy(result, b.entries)
	return result, nil
}

// ReplaceAll swaps the content under a single lock, so readers never see
// the intermediate empty state.
func (b *Backend) ReplaceAll(_ context.Context, entries []workouts.Entry) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
	for _, e := range entries {
		b.insert(e)
	}
	return len(entries), nil
}

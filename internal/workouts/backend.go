package workouts

import "context"

//go:generate mockgen -source=$GOFILE -destination=backend_mocks_test.go -package=workouts_test

// Backend is the persistence capability behind a Store. Implementations own
// id assignment and must return copies.
type Backend interface {
	// Insert stores e, ignoring e.ID, and returns the assigned id.
	Insert(ctx context.Context, e Entry) (int, error)
	InsertMany(ctx context.Context, entries []Entry) (int, error)
	ListByUser(ctx context.Context, user string) ([]Entry, error)
	// Delete removes the entry if present. A missing id is not an error.
	Delete(ctx context.Context, id int) error
	DeleteAll(ctx context.Context) error
	DistinctUsers(ctx context.Context) ([]string, error)
	All(ctx context.Context) ([]Entry, error)
}

// Replacer is implemented by backends able to swap the whole table content
// in a single transaction.
type Replacer interface {
	ReplaceAll(ctx context.Context, entries []Entry) (int, error)
}

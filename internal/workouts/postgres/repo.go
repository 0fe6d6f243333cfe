package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/2beens/workoutlog/internal/telemetry/tracing"
	"github.com/2beens/workoutlog/internal/workouts"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

const Schema = `
CREATE TABLE IF NOT EXISTS public.workout
(
    id       SERIAL PRIMARY KEY,
    "user"   VARCHAR          NOT NULL,
    exercise VARCHAR          NOT NULL,
    weight   DOUBLE PRECISION NOT NULL CHECK (weight >= 0),
    reps     INTEGER          NOT NULL CHECK (reps >= 1),
    sets     INTEGER          NOT NULL CHECK (sets >= 1),
    date     DATE             NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_workout_user_date ON public.workout ("user", date);
`

var columns = []string{"user", "exercise", "weight", "reps", "sets", "date"}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// EnsureSchema creates the workout table when missing. Existing tables are
// not altered.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create workout table: %w", err)
	}
	return nil
}

func (r *Repo) Insert(ctx context.Context, e workouts.Entry) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.insert")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var id int
	if err := r.db.QueryRow(
		ctx,
		`INSERT INTO workout ("user", exercise, weight, reps, sets, date)
				VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id;`,
		e.User, e.Exercise, e.Weight, e.Reps, e.Sets, e.Date.Time(),
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert: %w", err)
	}

	span.SetAttributes(attribute.Int("entry.id", id))
	return id, nil
}

func (r *Repo) InsertMany(ctx context.Context, entries []workouts.Entry) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.insertmany")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("count", len(entries)))

	copied, err := r.db.CopyFrom(ctx, pgx.Identifier{"workout"}, columns, copySource(entries))
	if err != nil {
		return 0, fmt.Errorf("copy from: %w", err)
	}
	return int(copied), nil
}

func (r *Repo) ListByUser(ctx context.Context, user string) (_ []workouts.Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.listbyuser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user", user))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, "user", exercise, weight, reps, sets, date
			FROM workout
			WHERE "user" = $1
			ORDER BY date DESC, id DESC;`,
		user,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	return rows2entries(rows)
}

func (r *Repo) Delete(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(ctx, `DELETE FROM workout WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	span.SetAttributes(attribute.Int64("rows_affected", tag.RowsAffected()))
	return nil
}

func (r *Repo) DeleteAll(ctx context.Context) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.deleteall")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tag, err := r.db.Exec(ctx, `DELETE FROM workout`)
	if err != nil {
		return fmt.Errorf("delete all: %w", err)
	}
	span.SetAttributes(attribute.Int64("rows_affected", tag.RowsAffected()))
	return nil
}

func (r *Repo) DistinctUsers(ctx context.Context) (_ []string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.distinctusers")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx, `SELECT DISTINCT "user" FROM workout WHERE TRIM("user") <> '' ORDER BY "user";`)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	users, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect users: %w", err)
	}
	if users == nil {
		users = []string{}
	}
	return users, nil
}

func (r *Repo) All(ctx context.Context) (_ []workouts.Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.all")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx, `SELECT id, "user", exercise, weight, reps, sets, date FROM workout ORDER BY id;`)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	entries, err := rows2entries(rows)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("count", len(entries)))
	return entries, nil
}

// ReplaceAll swaps the table content within a single transaction, readers
// see either the old or the new set.
func (r *Repo) ReplaceAll(ctx context.Context, entries []workouts.Entry) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.replaceall")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("count", len(entries)))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM workout`); err != nil {
		return 0, fmt.Errorf("delete all: %w", err)
	}

	copied, err := tx.CopyFrom(ctx, pgx.Identifier{"workout"}, columns, copySource(entries))
	if err != nil {
		return 0, fmt.Errorf("copy from: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int(copied), nil
}

func copySource(entries []workouts.Entry) pgx.CopyFromSource {
	return pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
		e := entries[i]
		return []any{e.User, e.Exercise, e.Weight, e.Reps, e.Sets, e.Date.Time()}, nil
	})
}

func rows2entries(rows pgx.Rows) ([]workouts.Entry, error) {
	entries := []workouts.Entry{}
	for rows.Next() {
		var e workouts.Entry
		var date time.Time
		if err := rows.Scan(&e.ID, &e.User, &e.Exercise, &e.Weight, &e.Reps, &e.Sets, &date); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		e.Date = workouts.DateOf(date)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return entries, nil
}

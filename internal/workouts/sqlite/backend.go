package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/2beens/workoutlog/internal/telemetry/tracing"
	"github.com/2beens/workoutlog/internal/workouts"

	"go.opentelemetry.io/otel/attribute"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

const schema = `CREATE TABLE IF NOT EXISTS workouts (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	user     TEXT NOT NULL,
	exercise TEXT NOT NULL,
	weight   REAL NOT NULL,
	reps     INTEGER NOT NULL,
	sets     INTEGER NOT NULL,
	date     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS workouts_user_date_idx ON workouts (user, date);`

// Backend stores entries in an embedded sqlite file.
type Backend struct {
	db *sql.DB
}

func Open(path string) (*Backend, error) {
	if path == "" {
		path = "workouts.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single writer, avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create workouts table: %w", err)
	}

	return &Backend{db: db}, nil
}

func (b *Backend) Close() error {
	return b.db.Close()
}

func (b *Backend) Insert(ctx context.Context, e workouts.Entry) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sqlite.insert")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	res, err := b.db.ExecContext(
		ctx,
		`INSERT INTO workouts (user, exercise, weight, reps, sets, date) VALUES (?, ?, ?, ?, ?, ?)`,
		e.User, e.Exercise, e.Weight, e.Reps, e.Sets, e.Date.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	span.SetAttributes(attribute.Int64("entry.id", id))

	return int(id), nil
}

func (b *Backend) InsertMany(ctx context.Context, entries []workouts.Entry) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sqlite.insertmany")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("count", len(entries)))

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err := insertAll(ctx, tx, entries); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(entries), nil
}

func (b *Backend) ListByUser(ctx context.Context, user string) (_ []workouts.Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sqlite.listbyuser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := b.db.QueryContext(
		ctx,
		`SELECT id, user, exercise, weight, reps, sets, date FROM workouts
			WHERE user = ?
			ORDER BY date DESC, id DESC`,
		user,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return rows2entries(rows)
}

func (b *Backend) Delete(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sqlite.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	if _, err := b.db.ExecContext(ctx, `DELETE FROM workouts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

func (b *Backend) DeleteAll(ctx context.Context) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sqlite.deleteall")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if _, err := b.db.ExecContext(ctx, `DELETE FROM workouts`); err != nil {
		return fmt.Errorf("delete all: %w", err)
	}
	return nil
}

func (b *Backend) DistinctUsers(ctx context.Context) (_ []string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sqlite.distinctusers")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := b.db.QueryContext(ctx, `SELECT DISTINCT user FROM workouts WHERE TRIM(user) != '' ORDER BY user`)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	users := []string{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return users, nil
}

func (b *Backend) All(ctx context.Context) (_ []workouts.Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sqlite.all")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := b.db.QueryContext(ctx, `SELECT id, user, exercise, weight, reps, sets, date FROM workouts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return rows2entries(rows)
}

// ReplaceAll deletes and re-inserts within one transaction.
func (b *Backend) ReplaceAll(ctx context.Context, entries []workouts.Entry) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sqlite.replaceall")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("count", len(entries)))

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM workouts`); err != nil {
		return 0, fmt.Errorf("delete all: %w", err)
	}
	if err := insertAll(ctx, tx, entries); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(entries), nil
}

func insertAll(ctx context.Context, tx *sql.Tx, entries []workouts.Entry) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO workouts (user, exercise, weight, reps, sets, date) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.User, e.Exercise, e.Weight, e.Reps, e.Sets, e.Date.String()); err != nil {
			return fmt.Errorf("insert entry %d: %w", i, err)
		}
	}
	return nil
}

func rows2entries(rows *sql.Rows) ([]workouts.Entry, error) {
	entries := []workouts.Entry{}
	for rows.Next() {
		var e workouts.Entry
		var date string
		if err := rows.Scan(&e.ID, &e.User, &e.Exercise, &e.Weight, &e.Reps, &e.Sets, &date); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		d, err := workouts.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", e.ID, err)
		}
		e.Date = d
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return entries, nil
}

package backup

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNoArchiver = errors.New("no off-site archive configured")

//go:generate mockgen -source=$GOFILE -destination=archive_mocks_test.go -package=backup_test

// Archiver uploads backup snapshots off-site.
type Archiver interface {
	Name() string
	// Upload stores data under name and returns where it ended up.
	Upload(ctx context.Context, name string, data []byte) (string, error)
}

// SnapshotName is the file name of a snapshot taken at t, e.g.
// workouts_backup_20240315T101500Z_pre-restore.csv.
func SnapshotName(t time.Time, reason string) string {
	stamp := t.UTC().Format("20060102T150405Z")
	if reason == "" {
		return fmt.Sprintf("workouts_backup_%s.csv", stamp)
	}
	return fmt.Sprintf("workouts_backup_%s_%s.csv", stamp, reason)
}

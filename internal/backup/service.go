package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/2beens/workoutlog/internal/telemetry/metrics"
	"github.com/2beens/workoutlog/internal/telemetry/tracing"
	"github.com/2beens/workoutlog/internal/workouts"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type Service struct {
	store          *workouts.Store
	archiver       Archiver
	metricsManager *metrics.Manager
	now            func() time.Time
}

// NewService creates the backup service. archiver and metricsManager may be nil.
func NewService(store *workouts.Store, archiver Archiver, metricsManager *metrics.Manager) *Service {
	return &Service{
		store:          store,
		archiver:       archiver,
		metricsManager: metricsManager,
		now:            time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) HasArchiver() bool {
	return s.archiver != nil
}

func (s *Service) ExportAll(ctx context.Context) ([]workouts.Entry, error) {
	return s.store.ExportAll(ctx)
}

// WriteBackup writes every entry as CSV to w and returns the entries count.
func (s *Service) WriteBackup(ctx context.Context, w io.Writer) (_ int, err error) {
	ctx, span := tracing.GlobalBackupTracer.Start(ctx, "backup.write")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	entries, err := s.store.ExportAll(ctx)
	if err != nil {
		return 0, err
	}
	if err := WriteCSV(w, entries); err != nil {
		return 0, fmt.Errorf("write csv: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(entries)))
	return len(entries), nil
}

// Restore replaces the whole store with the backup read from r and returns
// the store contents afterwards. A malformed file leaves the store untouched.
// With an archiver configured, the current contents are uploaded first and a
// failed upload aborts the restore.
func (s *Service) Restore(ctx context.Context, r io.Reader) (_ []workouts.Entry, err error) {
	ctx, span := tracing.GlobalBackupTracer.Start(ctx, "backup.restore")
	result := "ok"
	defer func(begin time.Time) {
		tracing.EndSpanWithErrCheck(span, err)
		if s.metricsManager != nil {
			s.metricsManager.CounterRestores.WithLabelValues(result).Inc()
			s.metricsManager.HistRestoreDuration.Observe(time.Since(begin).Seconds())
		}
	}(time.Now())

	entries, err := ReadCSV(r)
	if err != nil {
		result = "format_error"
		return nil, err
	}
	span.SetAttributes(attribute.Int("count", len(entries)))

	if s.archiver != nil {
		if _, err := s.archive(ctx, "pre-restore"); err != nil {
			result = "archive_error"
			return nil, fmt.Errorf("archive pre-restore snapshot: %w", err)
		}
	}

	count, err := s.store.Replace(ctx, entries)
	if err != nil {
		var validationErr *workouts.ValidationError
		if errors.As(err, &validationErr) {
			result = "format_error"
		} else {
			result = "store_error"
		}
		return nil, err
	}
	log.Infof("backup restored, %d entries loaded", count)

	restored, err := s.store.ExportAll(ctx)
	if err != nil {
		result = "store_error"
		return nil, err
	}
	return restored, nil
}

// Archive uploads a snapshot of the current store to the configured archiver.
func (s *Service) Archive(ctx context.Context) (string, error) {
	if s.archiver == nil {
		return "", ErrNoArchiver
	}
	return s.archive(ctx, "")
}

func (s *Service) archive(ctx context.Context, reason string) (_ string, err error) {
	ctx, span := tracing.GlobalBackupTracer.Start(ctx, "backup.archive")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
		if s.metricsManager != nil {
			result := "ok"
			if err != nil {
				result = "error"
			}
			s.metricsManager.CounterArchives.WithLabelValues(result).Inc()
		}
	}()

	var buf bytes.Buffer
	count, err := s.WriteBackup(ctx, &buf)
	if err != nil {
		return "", err
	}

	name := SnapshotName(s.now(), reason)
	span.SetAttributes(
		attribute.String("archiver", s.archiver.Name()),
		attribute.String("snapshot", name),
	)

	location, err := s.archiver.Upload(ctx, name, buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("upload to %s: %w", s.archiver.Name(), err)
	}

	log.Infof("snapshot with %d entries archived: %s", count, location)
	return location, nil
}

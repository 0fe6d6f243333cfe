package stats

import (
	"context"
	"strings"

	"github.com/2beens/workoutlog/internal/telemetry/tracing"
	"github.com/2beens/workoutlog/internal/workouts"

	"go.opentelemetry.io/otel/attribute"
)

// Summary is everything the stats page shows for one user.
type Summary struct {
	User            string           `json:"user"`
	Overview        Overview         `json:"overview"`
	PersonalRecords []PersonalRecord `json:"personalRecords"`
	Exercises       []string         `json:"exercises"`
}

type Service struct {
	store *workouts.Store
}

func NewService(store *workouts.Store) *Service {
	return &Service{store: store}
}

func (s *Service) Summary(ctx context.Context, user string) (_ *Summary, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "stats.summary")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	entries, err := s.store.List(ctx, user)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("entries", len(entries)))

	return &Summary{
		User:            strings.TrimSpace(user),
		Overview:        ComputeOverview(entries),
		PersonalRecords: PersonalRecords(entries),
		Exercises:       Exercises(entries),
	}, nil
}

func (s *Service) Progress(ctx context.Context, user, exercise string) (_ *Progress, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "stats.progress")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("exercise", exercise))

	entries, err := s.store.List(ctx, user)
	if err != nil {
		return nil, err
	}

	p := ExerciseProgress(entries, exercise)
	return &p, nil
}

package stats_test

import (
	"context"
	"testing"

	"github.com/2beens/workoutlog/internal/stats"
	"github.com/2beens/workoutlog/internal/workouts"
	"github.com/2beens/workoutlog/internal/workouts/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService(t *testing.T) {
	ctx := context.Background()
	store := workouts.NewStore(memory.NewBackend())
	_, err := store.BulkInsert(ctx, []workouts.Entry{
		{User: "mor", Exercise: "Squat", Weight: 100, Reps: 5, Sets: 3, Date: workouts.NewDate(2024, 3, 1)},
		{User: "mor", Exercise: "Squat", Weight: 110, Reps: 5, Sets: 3, Date: workouts.NewDate(2024, 3, 8)},
		{User: "dan", Exercise: "Squat", Weight: 200, Reps: 1, Sets: 1, Date: workouts.NewDate(2024, 3, 9)},
	})
	require.NoError(t, err)

	service := stats.NewService(store)

	summary, err := service.Summary(ctx, " mor ")
	require.NoError(t, err)
	assert.Equal(t, "mor", summary.User)
	assert.Equal(t, 2, summary.Overview.TotalSessions)
	// other users never leak into the records
	assert.Equal(t, []stats.PersonalRecord{{Exercise: "Squat", Weight: 110}}, summary.PersonalRecords)
	assert.Equal(t, []string{"Squat"}, summary.Exercises)

	progress, err := service.Progress(ctx, "mor", "Squat")
	require.NoError(t, err)
	require.Len(t, progress.Points, 2)
	assert.Equal(t, 110.0, progress.Last.Weight)

	empty, err := service.Summary(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Overview.TotalSessions)
	assert.Empty(t, empty.PersonalRecords)
}

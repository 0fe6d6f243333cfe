package testinternals

import (
	"time"

	"github.com/2beens/workoutlog/internal/workouts"

	"github.com/brianvoe/gofakeit/v6"
)

var exercises = []string{
	"Squat", "Bench Press", "Deadlift", "Overhead Press", "Barbell Row",
	"Pull Up", "Dips", "Lunges", "Leg Press", "Biceps Curl",
}

// RandomEntry returns a valid, not yet stored entry of user.
func RandomEntry(user string) workouts.Entry {
	day := gofakeit.DateRange(
		time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
	)
	return workouts.Entry{
		User:     user,
		Exercise: exercises[gofakeit.Number(0, len(exercises)-1)],
		// half kilo steps, like the form input
		Weight: float64(gofakeit.Number(0, 400)) / 2,
		Reps:   gofakeit.Number(1, 20),
		Sets:   gofakeit.Number(1, 6),
		Date:   workouts.DateOf(day),
	}
}

// RandomEntries returns n entries spread over users, or over random
// first names when no users are given.
func RandomEntries(n int, users ...string) []workouts.Entry {
	if len(users) == 0 {
		users = []string{gofakeit.FirstName(), gofakeit.FirstName(), gofakeit.FirstName()}
	}
	entries := make([]workouts.Entry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, RandomEntry(users[i%len(users)]))
	}
	return entries
}

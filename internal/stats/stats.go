package stats

import (
	"sort"

	"github.com/2beens/workoutlog/internal/workouts"
)

type Overview struct {
	// TotalSessions counts logged entries, one per form submission.
	TotalSessions int           `json:"totalSessions"`
	First         workouts.Date `json:"first"`
	Latest        workouts.Date `json:"latest"`
}

type PersonalRecord struct {
	Exercise string  `json:"exercise"`
	Weight   float64 `json:"weight"`
}

type Point struct {
	Date   workouts.Date `json:"date"`
	Weight float64       `json:"weight"`
}

type Progress struct {
	Exercise string          `json:"exercise"`
	Points   []Point         `json:"points"`
	Last     *workouts.Entry `json:"last"`
}

func ComputeOverview(entries []workouts.Entry) Overview {
	o := Overview{TotalSessions: len(entries)}
	for _, e := range entries {
		if o.First.IsZero() || e.Date.Before(o.First) {
			o.First = e.Date
		}
		if o.Latest.IsZero() || e.Date.After(o.Latest) {
			o.Latest = e.Date
		}
	}
	return o
}

// PersonalRecords returns the heaviest weight per exercise, sorted by exercise.
// Exercises are compared as typed: "squat" and "Squat" are two exercises.
func PersonalRecords(entries []workouts.Entry) []PersonalRecord {
	best := map[string]float64{}
	for _, e := range entries {
		if w, ok := best[e.Exercise]; !ok || e.Weight > w {
			best[e.Exercise] = e.Weight
		}
	}

	records := make([]PersonalRecord, 0, len(best))
	for exercise, weight := range best {
		records = append(records, PersonalRecord{Exercise: exercise, Weight: weight})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Exercise < records[j].Exercise
	})
	return records
}

// Exercises returns the distinct exercises, most recently logged first.
func Exercises(entries []workouts.Entry) []string {
	sorted := copyEntries(entries)
	workouts.SortByDateDesc(sorted)

	seen := map[string]bool{}
	exercises := []string{}
	for _, e := range sorted {
		if seen[e.Exercise] {
			continue
		}
		seen[e.Exercise] = true
		exercises = append(exercises, e.Exercise)
	}
	return exercises
}

// ExerciseProgress is the weight over date series of one exercise, oldest
// first. Last is the most recent entry, nil when the exercise was never logged.
func ExerciseProgress(entries []workouts.Entry, exercise string) Progress {
	var matching []workouts.Entry
	for _, e := range entries {
		if e.Exercise == exercise {
			matching = append(matching, e)
		}
	}
	workouts.SortByDateDesc(matching)

	p := Progress{
		Exercise: exercise,
		Points:   make([]Point, 0, len(matching)),
	}
	for i := len(matching) - 1; i >= 0; i-- {
		p.Points = append(p.Points, Point{Date: matching[i].Date, Weight: matching[i].Weight})
	}
	if len(matching) > 0 {
		last := matching[0]
		p.Last = &last
	}
	return p
}

func copyEntries(entries []workouts.Entry) []workouts.Entry {
	c := make([]workouts.Entry, len(entries))
	copy(c, entries)
	return c
}

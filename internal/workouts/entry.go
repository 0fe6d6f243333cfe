package workouts

import (
	"math"
	"strings"
)

// Entry is one logged workout record.
type Entry struct {
	ID       int     `json:"id"`
	User     string  `json:"user"`
	Exercise string  `json:"exercise"`
	Weight   float64 `json:"weight"`
	Reps     int     `json:"reps"`
	Sets     int     `json:"sets"`
	Date     Date    `json:"date"`
}

// Normalized returns a copy with user and exercise trimmed.
func (e Entry) Normalized() Entry {
	e.User = strings.TrimSpace(e.User)
	e.Exercise = strings.TrimSpace(e.Exercise)
	return e
}

// Validate checks the entry invariants. It does not trim, call Normalized first.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.User) == "" {
		return &ValidationError{Field: "user", Reason: "must not be empty"}
	}
	if strings.TrimSpace(e.Exercise) == "" {
		return &ValidationError{Field: "exercise", Reason: "must not be empty"}
	}
	if math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) {
		return &ValidationError{Field: "weight", Reason: "must be a number"}
	}
	if e.Weight < 0 {
		return &ValidationError{Field: "weight", Reason: "must not be negative"}
	}
	if e.Reps < 1 {
		return &ValidationError{Field: "reps", Reason: "must be at least 1"}
	}
	if e.Sets < 1 {
		return &ValidationError{Field: "sets", Reason: "must be at least 1"}
	}
	return nil
}

// SameRecord compares all fields except the id.
func (e Entry) SameRecord(other Entry) bool {
	return e.User == other.User &&
		e.Exercise == other.Exercise &&
		e.Weight == other.Weight &&
		e.Reps == other.Reps &&
		e.Sets == other.Sets &&
		e.Date.Equal(other.Date)
}

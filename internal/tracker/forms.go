package tracker

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/2beens/workoutlog/internal/session"
	"github.com/2beens/workoutlog/internal/workouts"
)

// formFloat parses an optional form number, def is used when the field is blank.
func formFloat(r *http.Request, field string, def float64) (float64, error) {
	raw := strings.TrimSpace(r.Form.Get(field))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, invalidField(field, "must be a number")
	}
	return v, nil
}

func formInt(r *http.Request, field string, def int) (int, error) {
	raw := strings.TrimSpace(r.Form.Get(field))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidField(field, "must be a whole number")
	}
	return v, nil
}

// parseDraft reads the draft fields, keeping current values for absent ones.
func parseDraft(r *http.Request, current session.Draft) (session.Draft, error) {
	d := current
	if r.Form.Has("exercise") {
		d.Exercise = r.Form.Get("exercise")
	}

	var err error
	if d.Weight, err = formFloat(r, "weight", current.Weight); err != nil {
		return current, err
	}
	if d.Reps, err = formInt(r, "reps", current.Reps); err != nil {
		return current, err
	}
	if d.Sets, err = formInt(r, "sets", current.Sets); err != nil {
		return current, err
	}
	return d, nil
}

// parseNewEntry reads the log workout form. Blank numbers fall back to the
// form defaults and a blank date means today.
func parseNewEntry(r *http.Request, user string) (workouts.Entry, error) {
	e := workouts.Entry{
		User:     user,
		Exercise: session.ResolveExercise(r.Form.Get("exercise"), r.Form.Get("picked")),
	}

	defaults := session.DefaultDraft()
	var err error
	if e.Weight, err = formFloat(r, "weight", defaults.Weight); err != nil {
		return e, err
	}
	if e.Reps, err = formInt(r, "reps", defaults.Reps); err != nil {
		return e, err
	}
	if e.Sets, err = formInt(r, "sets", defaults.Sets); err != nil {
		return e, err
	}
	if raw := strings.TrimSpace(r.Form.Get("date")); raw != "" {
		if e.Date, err = workouts.ParseDate(raw); err != nil {
			return e, invalidField("date", "must be a YYYY-MM-DD date")
		}
	}
	return e, nil
}

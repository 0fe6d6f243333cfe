package tracker

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/2beens/workoutlog/internal/workouts"

	log "github.com/sirupsen/logrus"
)

// writeError responds with the failed operation and the cause. Bad input is
// a 400, anything else a 500.
func writeError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	var validationErr *workouts.ValidationError
	var formatErr *workouts.RestoreFormatError
	if errors.As(err, &validationErr) || errors.As(err, &formatErr) {
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		log.Errorf("%s: %s", op, err)
	} else {
		log.Debugf("%s: %s", op, err)
	}
	http.Error(w, fmt.Sprintf("%s: %s", op, err), status)
}

// invalidField is a ValidationError for a form value that failed to parse.
func invalidField(field, reason string) error {
	return &workouts.ValidationError{Field: field, Reason: reason}
}

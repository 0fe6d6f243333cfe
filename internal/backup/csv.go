package backup

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/2beens/workoutlog/internal/workouts"
)

// Columns is the backup file header. The id is never written: it is
// assigned again on restore.
var Columns = []string{"user", "exercise", "weight", "reps", "sets", "date"}

const (
	colUser = iota
	colExercise
	colWeight
	colReps
	colSets
	colDate
)

// WriteCSV writes entries in the backup format.
func WriteCSV(w io.Writer, entries []workouts.Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range entries {
		record := []string{
			e.User,
			e.Exercise,
			strconv.FormatFloat(e.Weight, 'f', -1, 64),
			strconv.Itoa(e.Reps),
			strconv.Itoa(e.Sets),
			e.Date.String(),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write entry %d: %w", e.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a backup file. Columns are matched by header name, so
// column order does not matter and unknown columns (like id) are skipped.
// It stops at the first malformed row with a *workouts.RestoreFormatError.
func ReadCSV(r io.Reader) ([]workouts.Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &workouts.RestoreFormatError{Line: 1, Reason: "empty file, missing header"}
	}
	if err != nil {
		return nil, csvFormatError(err, 1)
	}

	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	entries := []workouts.Entry{}
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvFormatError(err, line)
		}
		line, _ = cr.FieldPos(0)
		if isBlank(record) {
			continue
		}

		entry, err := parseRecord(record, index, line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	// a header-only file is the backup of an empty store
	return entries, nil
}

func columnIndex(header []string) ([]int, error) {
	positions := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := positions[name]; !dup {
			positions[name] = i
		}
	}

	index := make([]int, len(Columns))
	for i, col := range Columns {
		pos, ok := positions[col]
		if !ok {
			return nil, &workouts.RestoreFormatError{Line: 1, Field: col, Reason: "column missing from header"}
		}
		index[i] = pos
	}
	return index, nil
}

func parseRecord(record []string, index []int, line int) (workouts.Entry, error) {
	cell := func(col int) (string, error) {
		pos := index[col]
		if pos >= len(record) || strings.TrimSpace(record[pos]) == "" {
			return "", &workouts.RestoreFormatError{Line: line, Field: Columns[col], Reason: "is empty"}
		}
		return strings.TrimSpace(record[pos]), nil
	}
	invalid := func(col int, reason string) error {
		return &workouts.RestoreFormatError{Line: line, Field: Columns[col], Reason: reason}
	}

	var e workouts.Entry
	var err error

	if e.User, err = cell(colUser); err != nil {
		return e, err
	}
	if e.Exercise, err = cell(colExercise); err != nil {
		return e, err
	}

	weight, err := cell(colWeight)
	if err != nil {
		return e, err
	}
	e.Weight, err = strconv.ParseFloat(weight, 64)
	if err != nil || math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) {
		return e, invalid(colWeight, fmt.Sprintf("[%s] is not a number", weight))
	}

	reps, err := cell(colReps)
	if err != nil {
		return e, err
	}
	if e.Reps, err = parseWholeNumber(reps); err != nil {
		return e, invalid(colReps, err.Error())
	}
	sets, err := cell(colSets)
	if err != nil {
		return e, err
	}
	if e.Sets, err = parseWholeNumber(sets); err != nil {
		return e, invalid(colSets, err.Error())
	}

	date, err := cell(colDate)
	if err != nil {
		return e, err
	}
	if e.Date, err = workouts.ParseDate(date); err != nil {
		return e, invalid(colDate, err.Error())
	}

	if err := e.Validate(); err != nil {
		var validationErr *workouts.ValidationError
		if errors.As(err, &validationErr) {
			return e, &workouts.RestoreFormatError{Line: line, Field: validationErr.Field, Reason: validationErr.Reason}
		}
		return e, &workouts.RestoreFormatError{Line: line, Reason: err.Error()}
	}

	return e, nil
}

// parseWholeNumber accepts whole floats too ("5.0"), as spreadsheet round trips produce them.
func parseWholeNumber(raw string) (int, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("[%s] is not a whole number", raw)
	}
	return int(f), nil
}

// csvFormatError turns csv syntax errors into format errors. Read failures of
// the underlying reader are returned wrapped as they are.
func csvFormatError(err error, line int) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return &workouts.RestoreFormatError{Line: parseErr.Line, Reason: parseErr.Err.Error()}
	}
	return fmt.Errorf("read backup after line %d: %w", line, err)
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

package plan

import (
	"fmt"
	"strconv"
	"strings"
)

// Field names reported by validation errors.
const (
	FieldName     = "name"
	FieldPeso     = "peso"
	FieldReps     = "reps"
	FieldRPE      = "rpe"
	FieldDescanso = "descanso"
)

// ValidationError reports the first offending field of a rejected edit.
// Ordinal is the 1-based series position, or 0 when the error is not tied
// to a series row.
type ValidationError struct {
	Field   string
	Ordinal int
	Message string
}

func (e *ValidationError) Error() string {
	if e.Ordinal > 0 {
		return fmt.Sprintf("series %d: %s", e.Ordinal, e.Message)
	}
	return e.Message
}

// ValidateSeries checks every series row's numeric constraints. Empty
// fields are allowed; non-empty fields must satisfy their constraint. The
// first offending field wins.
func ValidateSeries(series []Series) error {
	for i, s := range series {
		ordinal := i + 1
		if v := strings.TrimSpace(s.RPE); v != "" {
			r, err := strconv.ParseFloat(v, 64)
			if err != nil || r < 1 || r > 10 {
				return &ValidationError{Field: FieldRPE, Ordinal: ordinal, Message: "RPE must be a number between 1 and 10"}
			}
		}
		if v := strings.TrimSpace(s.Peso); v != "" {
			p, err := strconv.ParseFloat(v, 64)
			if err != nil || p < 0 {
				return &ValidationError{Field: FieldPeso, Ordinal: ordinal, Message: "weight must be a non-negative number"}
			}
		}
		if v := strings.TrimSpace(s.Reps); v != "" {
			r, err := strconv.Atoi(v)
			if err != nil || r < 0 {
				return &ValidationError{Field: FieldReps, Ordinal: ordinal, Message: "reps must be an integer >= 0"}
			}
		}
		if v := strings.TrimSpace(s.Descanso); v != "" {
			d, err := strconv.ParseFloat(v, 64)
			if err != nil || d < 0 {
				return &ValidationError{Field: FieldDescanso, Ordinal: ordinal, Message: "rest must be a non-negative number of seconds"}
			}
		}
	}
	return nil
}

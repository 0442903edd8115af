package core

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors - centralized error definitions
var (
	// Schema errors
	ErrMissingColumn = errors.New("missing required column")
	ErrUnknownStep   = errors.New("unknown process step")
	ErrInvalidValue  = errors.New("invalid value")

	// Population errors
	ErrNoSessions        = errors.New("client has no sessions")
	ErrEmptyPopulation   = errors.New("population is empty")
	ErrVariationConflict = errors.New("client observed in more than one variation")

	// Policy errors
	ErrUnknownRule = errors.New("unknown session rule")
)

// NewMissingColumnError names every column absent from a table
func NewMissingColumnError(table string, columns []string) error {
	return fmt.Errorf("%w in %s table: %s", ErrMissingColumn, table, strings.Join(columns, ", "))
}

// NewUnknownStepError reports a step value outside the funnel at a 1-based data row
func NewUnknownStepError(value string, row int) error {
	return fmt.Errorf("%w %q at row %d", ErrUnknownStep, value, row)
}

// IsSchemaError reports whether err comes from malformed input
func IsSchemaError(err error) bool {
	return errors.Is(err, ErrMissingColumn) ||
		errors.Is(err, ErrUnknownStep) ||
		errors.Is(err, ErrInvalidValue)
}

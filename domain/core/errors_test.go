package core

import (
	"errors"
	"testing"
)

func TestNewMissingColumnError(t *testing.T) {
	err := NewMissingColumnError("events", []string{"visit_id", "date_time"})

	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
	if !IsSchemaError(err) {
		t.Error("expected schema error")
	}
	want := "missing required column in events table: visit_id, date_time"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestIsSchemaError(t *testing.T) {
	if !IsSchemaError(NewUnknownStepError("step_9", 4)) {
		t.Error("unknown step should be a schema error")
	}
	if IsSchemaError(ErrNoSessions) {
		t.Error("no sessions is not a schema error")
	}
}

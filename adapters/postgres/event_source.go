package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"abfunnel/domain/core"
	"abfunnel/domain/funnel"
	"abfunnel/internal"
	apperrors "abfunnel/internal/errors"
	"abfunnel/ports"

	"github.com/jmoiron/sqlx"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidateTableName rejects anything that is not a plain or schema-qualified identifier.
// The table name is interpolated into SQL, so it never comes straight from user input.
func ValidateTableName(name string) error {
	if !identifierPattern.MatchString(name) {
		return apperrors.ConfigInvalid(fmt.Sprintf("invalid events table name %q", name))
	}
	return nil
}

// eventRow mirrors one row of the events table; every column except the step is nullable
type eventRow struct {
	ClientID    sql.NullString `db:"client_id"`
	VisitorID   sql.NullString `db:"visitor_id"`
	VisitID     sql.NullString `db:"visit_id"`
	ProcessStep sql.NullString `db:"process_step"`
	DateTime    sql.NullTime   `db:"date_time"`
	Variation   sql.NullString `db:"variation"`
}

// EventSource reads funnel events, and the variation they carry, from a Postgres table
type EventSource struct {
	db     *sqlx.DB
	table  string
	logger *internal.Logger
}

var (
	_ ports.EventSource      = (*EventSource)(nil)
	_ ports.AssignmentSource = (*EventSource)(nil)
)

// NewEventSource creates a Postgres-backed event source for the given table
func NewEventSource(db *sqlx.DB, table string, logger *internal.Logger) (*EventSource, error) {
	if err := ValidateTableName(table); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &EventSource{db: db, table: table, logger: logger}, nil
}

// LoadEvents selects the whole events table ordered as stored. Unknown step labels
// fail the load with a schema error naming the row, exactly like the file source.
func (s *EventSource) LoadEvents(ctx context.Context) ([]funnel.Event, error) {
	query := fmt.Sprintf(`
		SELECT client_id, visitor_id, visit_id, process_step, date_time, variation
		FROM %s
	`, s.table)

	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, apperrors.DataSourceError(s.table, fmt.Errorf("failed to select events: %w", err))
	}

	events := make([]funnel.Event, 0, len(rows))
	for i, r := range rows {
		raw := strings.TrimSpace(r.ProcessStep.String)
		step, err := funnel.ParseStep(raw)
		if err != nil {
			return nil, apperrors.SchemaError(core.NewUnknownStepError(raw, i+1))
		}
		e := funnel.Event{
			ClientID:  strings.TrimSpace(r.ClientID.String),
			VisitorID: strings.TrimSpace(r.VisitorID.String),
			VisitID:   strings.TrimSpace(r.VisitID.String),
			Step:      step,
			Variation: funnel.ParseVariation(r.Variation.String),
		}
		if r.DateTime.Valid {
			e.Time = r.DateTime.Time
		}
		events = append(events, e)
	}

	s.logger.Info("Loaded %d events from table %s", len(events), s.table)
	return events, nil
}

// LoadAssignments derives the roster from the variation column: the first arm seen
// per client, in storage order.
func (s *EventSource) LoadAssignments(ctx context.Context) (map[string]funnel.Variation, error) {
	query := fmt.Sprintf(`
		SELECT client_id, variation
		FROM %s
		WHERE variation IS NOT NULL
	`, s.table)

	var rows []struct {
		ClientID  sql.NullString `db:"client_id"`
		Variation sql.NullString `db:"variation"`
	}
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, apperrors.DataSourceError(s.table, fmt.Errorf("failed to select assignments: %w", err))
	}

	assignments := make(map[string]funnel.Variation)
	for _, r := range rows {
		client := strings.TrimSpace(r.ClientID.String)
		v := funnel.ParseVariation(r.Variation.String)
		if client == "" || !v.IsArm() {
			continue
		}
		if _, seen := assignments[client]; !seen {
			assignments[client] = v
		}
	}
	s.logger.Debug("Derived %d assignments from table %s", len(assignments), s.table)
	return assignments, nil
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"abfunnel/domain/funnel"
	"abfunnel/internal"

	"github.com/jmoiron/sqlx"
)

// EventStore writes cleaned events into the events table
type EventStore struct {
	db     *sqlx.DB
	table  string
	logger *internal.Logger
}

// NewEventStore creates a store for the given table
func NewEventStore(db *sqlx.DB, table string, logger *internal.Logger) (*EventStore, error) {
	if err := ValidateTableName(table); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &EventStore{db: db, table: table, logger: logger}, nil
}

// SaveEvents inserts events in one transaction. A failure rolls back every row.
func (s *EventStore) SaveEvents(ctx context.Context, events []funnel.Event) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (client_id, visitor_id, visit_id, process_step, date_time, variation)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.table))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range events {
		if _, err := stmt.ExecContext(ctx,
			e.ClientID,
			nullString(e.VisitorID),
			nullString(e.VisitID),
			e.Step.String(),
			sql.NullTime{Time: e.Time, Valid: e.HasTime()},
			nullString(string(e.Variation)),
		); err != nil {
			return 0, fmt.Errorf("failed to insert event %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit events: %w", err)
	}
	s.logger.Info("Saved %d events into %s", len(events), s.table)
	return len(events), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

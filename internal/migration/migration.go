package migration

import (
	"context"
	"fmt"
	"regexp"

	"abfunnel/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner creates the funnel events table and its indexes
type MigrationRunner struct {
	version string
	table   string
}

var tablePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// NewRunner creates a migration runner for the named events table
func NewRunner(table string) (*MigrationRunner, error) {
	if !tablePattern.MatchString(table) {
		return nil, errors.ConfigInvalid(fmt.Sprintf("invalid events table name %q", table))
	}
	return &MigrationRunner{
		version: "1.0.0",
		table:   table,
	}, nil
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all migrations in order. Every statement is idempotent.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createEventsTable(ctx, db); err != nil {
		return errors.Wrapf(err, "failed to create %s table", r.table)
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createEventsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			client_id VARCHAR(64) NOT NULL,
			visitor_id VARCHAR(128),
			visit_id VARCHAR(128),
			process_step VARCHAR(16) NOT NULL,
			date_time TIMESTAMP,
			variation VARCHAR(16)
		)
	`, r.table))
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_client_id ON %[1]s(client_id)`, r.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_visit_id ON %[1]s(visit_id)`, r.table),
	}

	for _, indexSQL := range indexes {
		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			return err
		}
	}
	return nil
}

package container

import (
	"context"
	"fmt"

	"abfunnel/adapters/excel"
	"abfunnel/adapters/postgres"
	"abfunnel/app"
	"abfunnel/domain/stats"
	"abfunnel/internal"
	"abfunnel/internal/config"
	"abfunnel/internal/errors"
	"abfunnel/internal/migration"
	"abfunnel/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure, nil when events come from files
	DB *sqlx.DB

	// Sources
	Events      ports.EventSource
	Profiles    ports.ProfileSource
	Assignments ports.AssignmentSource

	Service *app.AnalysisService
}

// New wires sources from configuration. A database URL switches the event source
// to Postgres; profiles always come from files.
func New(cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Database.URL == "" {
		return NewWithDatabase(cfg, nil, logger)
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, errors.DataSourceError("postgres", errors.Wrap(err, "failed to connect to database"))
	}
	c, err := NewWithDatabase(cfg, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// NewWithDatabase wires sources around an existing connection; nil selects files only
func NewWithDatabase(cfg *config.Config, db *sqlx.DB, logger *internal.Logger) (*Container, error) {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	c := &Container{Config: cfg, Logger: logger, DB: db}

	sep, err := excel.ParseSeparator(cfg.Files.Separator)
	if err != nil {
		return nil, errors.Wrap(errors.ConfigInvalid("CSV_SEPARATOR is invalid"), err.Error())
	}
	readerConfig := excel.DefaultReaderConfig()
	readerConfig.Separator = sep
	files := excel.NewFileSource(cfg.EventsPath(), cfg.ProfilesPath(), cfg.AssignmentsPath(), readerConfig, logger.With("source", "files"))

	c.Events, c.Profiles, c.Assignments = files, files, files
	if db != nil {
		events, err := postgres.NewEventSource(db, cfg.Database.EventsTable, logger.With("source", "postgres"))
		if err != nil {
			return nil, err
		}
		c.Events = events
		if cfg.Files.Assignments == "" {
			c.Assignments = events
		}
		logger.Info("Reading events from table %s", cfg.Database.EventsTable)
	}

	c.Service = app.NewAnalysisService(c.Events, c.Profiles, c.Assignments, logger)
	return c, nil
}

// Request turns the analysis section of the configuration into a pipeline request
func (c *Container) Request() app.AnalysisRequest {
	a := c.Config.Analysis
	return app.AnalysisRequest{
		Params: stats.AnalysisParams{
			Alpha:               a.Alpha,
			LiftThreshold:       a.LiftThreshold,
			TenureThresholdDays: a.TenureThresholdDays,
			SessionRule:         a.SessionRule,
			SampleSize:          a.SampleSize,
			Seed:                a.Seed,
		},
		StrictVariation: a.StrictVariation,
		CompareRules:    a.CompareRules,
	}
}

// Migrate creates the events table; it needs a database connection
func (c *Container) Migrate(ctx context.Context) error {
	if c.DB == nil {
		return errors.ConfigInvalid("DATABASE_URL is required")
	}
	runner, err := migration.NewRunner(c.Config.Database.EventsTable)
	if err != nil {
		return err
	}
	if err := runner.Run(ctx, c.DB); err != nil {
		return err
	}
	c.Logger.Info("Migrations %s applied to %s", runner.Version(), c.Config.Database.EventsTable)
	return nil
}

// EventStore returns a writer for the configured events table
func (c *Container) EventStore() (*postgres.EventStore, error) {
	if c.DB == nil {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}
	return postgres.NewEventStore(c.DB, c.Config.Database.EventsTable, c.Logger)
}

// Shutdown releases held resources
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

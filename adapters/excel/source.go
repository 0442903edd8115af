package excel

import (
	"context"

	"abfunnel/adapters/datareadiness/coercer"
	"abfunnel/domain/dataset"
	"abfunnel/domain/funnel"
	"abfunnel/internal"
	"abfunnel/internal/cleaning"
	apperrors "abfunnel/internal/errors"
	"abfunnel/ports"
)

// FileSource serves events, profiles and the experiment roster from CSV or XLSX files
type FileSource struct {
	EventsPath      string
	ProfilesPath    string
	AssignmentsPath string

	config  ReaderConfig
	coercer *coercer.TypeCoercer
	logger  *internal.Logger
}

var (
	_ ports.EventSource      = (*FileSource)(nil)
	_ ports.ProfileSource    = (*FileSource)(nil)
	_ ports.AssignmentSource = (*FileSource)(nil)
)

// NewFileSource creates a file-backed source; empty paths disable that input
func NewFileSource(eventsPath, profilesPath, assignmentsPath string, cfg ReaderConfig, logger *internal.Logger) *FileSource {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &FileSource{
		EventsPath:      eventsPath,
		ProfilesPath:    profilesPath,
		AssignmentsPath: assignmentsPath,
		config:          cfg,
		coercer:         coercer.NewTypeCoercer(cfg.CoercionConfig),
		logger:          logger,
	}
}

// ReadTable reads a file and brings its headers into canonical form
func (s *FileSource) ReadTable(ctx context.Context, path string, renames map[string]string) (*dataset.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	table, err := NewDataReader(path, s.config, s.logger).ReadData()
	if err != nil {
		return nil, apperrors.DataSourceError(path, err)
	}
	return cleaning.RenameColumns(cleaning.StandardizeColumns(table), renames), nil
}

// LoadEvents reads and parses the event log
func (s *FileSource) LoadEvents(ctx context.Context) ([]funnel.Event, error) {
	if s.EventsPath == "" {
		return nil, apperrors.ConfigInvalid("events file is not configured")
	}
	table, err := s.ReadTable(ctx, s.EventsPath, cleaning.EventColumnRenames)
	if err != nil {
		return nil, err
	}
	events, st, err := cleaning.ParseEvents(table, s.coercer)
	if err != nil {
		return nil, apperrors.SchemaError(err)
	}
	s.logger.Info("Loaded %d events from %s", st.Rows, s.EventsPath)
	if st.InvalidTime > 0 || st.MissingTime > 0 {
		s.logger.Debug("Events with unparseable timestamps: %d, missing: %d", st.InvalidTime, st.MissingTime)
	}
	return events, nil
}

// LoadProfiles reads and parses the demographics table. Without a configured path
// it returns no profiles.
func (s *FileSource) LoadProfiles(ctx context.Context) ([]funnel.ClientProfile, error) {
	if s.ProfilesPath == "" {
		return nil, nil
	}
	table, err := s.ReadTable(ctx, s.ProfilesPath, cleaning.ProfileColumnRenames)
	if err != nil {
		return nil, err
	}
	profiles, st, err := cleaning.ParseProfiles(table, s.coercer)
	if err != nil {
		return nil, apperrors.SchemaError(err)
	}
	s.logger.Info("Loaded %d client profiles from %s", st.Rows, s.ProfilesPath)
	for field, n := range st.Unparseable {
		s.logger.Debug("Profile column %s: %d unparseable values set to null", field, n)
	}
	return profiles, nil
}

// LoadAssignments reads the experiment roster. Without a configured path it returns
// an empty mapping and events keep their own variation column.
func (s *FileSource) LoadAssignments(ctx context.Context) (map[string]funnel.Variation, error) {
	if s.AssignmentsPath == "" {
		return map[string]funnel.Variation{}, nil
	}
	table, err := s.ReadTable(ctx, s.AssignmentsPath, cleaning.EventColumnRenames)
	if err != nil {
		return nil, err
	}
	assignments, err := cleaning.ParseAssignments(table, s.coercer)
	if err != nil {
		return nil, apperrors.SchemaError(err)
	}
	s.logger.Info("Loaded %d assignments from %s", len(assignments), s.AssignmentsPath)
	return assignments, nil
}

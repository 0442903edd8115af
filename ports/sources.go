package ports

import (
	"context"

	"abfunnel/domain/funnel"
)

// EventSource yields the raw funnel event table. Implementations validate the schema
// and step labels but leave cleaning (dedupe, variation merge) to the pipeline.
type EventSource interface {
	LoadEvents(ctx context.Context) ([]funnel.Event, error)
}

// ProfileSource yields per-client demographic and account attributes
type ProfileSource interface {
	LoadProfiles(ctx context.Context) ([]funnel.ClientProfile, error)
}

// AssignmentSource yields the client -> arm mapping of the experiment roster.
// An event table that already carries a variation column needs no assignment source.
type AssignmentSource interface {
	LoadAssignments(ctx context.Context) (map[string]funnel.Variation, error)
}

package cleaning

import (
	"sort"
	"strings"

	"abfunnel/adapters/datareadiness/coercer"
	"abfunnel/domain/core"
	"abfunnel/domain/dataset"
	"abfunnel/domain/funnel"
)

// EventParseStats counts rows whose timestamp could not be parsed
type EventParseStats struct {
	Rows           int `json:"rows"`
	MissingTime    int `json:"missing_time"`
	InvalidTime    int `json:"invalid_time"`
	WithVariation  int `json:"with_variation"`
	EmptyClientIDs int `json:"empty_client_ids"`
}

// ParseEvents validates the event schema and builds typed events. Invalid timestamps
// become missing; an unknown step label fails the whole table and names the row.
func ParseEvents(table *dataset.Table, c *coercer.TypeCoercer) ([]funnel.Event, EventParseStats, error) {
	var st EventParseStats
	if err := table.RequireColumns(TableEvents, RequiredEventColumns...); err != nil {
		return nil, st, err
	}
	hasVariation := table.HasColumn(ColVariation)

	events := make([]funnel.Event, 0, len(table.Rows))
	for i, row := range table.Rows {
		raw := strings.TrimSpace(row[ColProcessStep])
		step, err := funnel.ParseStep(raw)
		if err != nil {
			return nil, st, core.NewUnknownStepError(raw, i+1)
		}

		ts, ok := c.Timestamp(row[ColDateTime])
		switch {
		case !ok:
			st.InvalidTime++
		case ts.IsZero():
			st.MissingTime++
		}

		e := funnel.Event{
			ClientID:  c.ID(row[ColClientID]),
			VisitorID: c.String(row[ColVisitorID]),
			VisitID:   c.String(row[ColVisitID]),
			Step:      step,
			Time:      ts,
		}
		if hasVariation {
			e.Variation = funnel.ParseVariation(c.String(row[ColVariation]))
			if e.Variation.IsArm() {
				st.WithVariation++
			}
		}
		if e.ClientID == "" {
			st.EmptyClientIDs++
		}
		events = append(events, e)
	}
	st.Rows = len(events)
	return events, st, nil
}

// eventKey identifies an exact duplicate. time.Time values are compared by instant
// so two parses of the same cell collapse regardless of location pointers.
type eventKey struct {
	client, visitor, visit string
	step                   funnel.Step
	nanos                  int64
	hasTime                bool
	variation              funnel.Variation
}

func keyOf(e funnel.Event) eventKey {
	k := eventKey{
		client:    e.ClientID,
		visitor:   e.VisitorID,
		visit:     e.VisitID,
		step:      e.Step,
		hasTime:   e.HasTime(),
		variation: e.Variation,
	}
	if k.hasTime {
		k.nanos = e.Time.UnixNano()
	}
	return k
}

// CleanEvents drops exact duplicate rows, keeping the first occurrence in input order
func CleanEvents(events []funnel.Event) []funnel.Event {
	seen := make(map[eventKey]bool, len(events))
	out := make([]funnel.Event, 0, len(events))
	for _, e := range events {
		k := keyOf(e)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}

// ParseAssignments reads the experiment roster. Rows without a recognised arm are
// skipped and the first row wins when a client is listed twice.
func ParseAssignments(table *dataset.Table, c *coercer.TypeCoercer) (map[string]funnel.Variation, error) {
	if err := table.RequireColumns(TableAssignments, RequiredAssignmentColumns...); err != nil {
		return nil, err
	}
	assignments := make(map[string]funnel.Variation, len(table.Rows))
	for _, row := range table.Rows {
		client := c.ID(row[ColClientID])
		v := funnel.ParseVariation(c.String(row[ColVariation]))
		if client == "" || !v.IsArm() {
			continue
		}
		if _, ok := assignments[client]; !ok {
			assignments[client] = v
		}
	}
	return assignments, nil
}

// AssignVariations stamps each event with its client's roster arm. Events of clients
// missing from the roster keep whatever variation they carried. Nothing is dropped.
func AssignVariations(events []funnel.Event, assignments map[string]funnel.Variation) []funnel.Event {
	out := make([]funnel.Event, len(events))
	for i, e := range events {
		if v, ok := assignments[e.ClientID]; ok {
			e.Variation = v
		}
		out[i] = e
	}
	return out
}

// ValidateVariations returns, sorted, the clients observed under more than one arm
func ValidateVariations(events []funnel.Event) []string {
	arms := make(map[string]funnel.Variation)
	conflicted := make(map[string]bool)
	for _, e := range events {
		if !e.Variation.IsArm() {
			continue
		}
		first, ok := arms[e.ClientID]
		if !ok {
			arms[e.ClientID] = e.Variation
			continue
		}
		if first != e.Variation {
			conflicted[e.ClientID] = true
		}
	}
	out := make([]string, 0, len(conflicted))
	for client := range conflicted {
		out = append(out, client)
	}
	sort.Strings(out)
	return out
}

// CanonicalizeVariations rewrites every event with its client's first observed arm
func CanonicalizeVariations(events []funnel.Event) []funnel.Event {
	arms := funnel.ClientVariations(events)
	out := make([]funnel.Event, len(events))
	for i, e := range events {
		e.Variation = arms[e.ClientID]
		out[i] = e
	}
	return out
}

// Package cleaning turns raw tables into typed, normalized funnel inputs.
package cleaning

import (
	"strings"

	"abfunnel/adapters/datareadiness/coercer"
	"abfunnel/domain/dataset"
	"abfunnel/domain/funnel"
)

// Canonical column names
const (
	ColClientID    = "client_id"
	ColVisitorID   = "visitor_id"
	ColVisitID     = "visit_id"
	ColProcessStep = "process_step"
	ColDateTime    = "date_time"
	ColVariation   = "variation"
	ColGender      = "gender"
)

// Table labels used in schema errors
const (
	TableEvents      = "events"
	TableProfiles    = "profiles"
	TableAssignments = "assignments"
)

// ProfileColumnRenames maps the abbreviated export headers of the demographics file
var ProfileColumnRenames = map[string]string{
	"clnt_tenure_yr":   string(funnel.FieldTenureYears),
	"clnt_tenure_mnth": string(funnel.FieldTenureMonths),
	"clnt_age":         string(funnel.FieldAge),
	"gendr":            ColGender,
	"num_accts":        string(funnel.FieldNumberOfAccounts),
	"bal":              string(funnel.FieldBalance),
	"calls_6_mnth":     string(funnel.FieldCalls6Months),
	"logons_6_mnth":    string(funnel.FieldLogons6Months),
}

// EventColumnRenames maps event and roster headers to canonical names
var EventColumnRenames = map[string]string{
	"Variation": ColVariation,
}

// RequiredEventColumns must be present in every event table
var RequiredEventColumns = []string{ColClientID, ColVisitID, ColProcessStep, ColDateTime}

// RequiredAssignmentColumns must be present in the experiment roster
var RequiredAssignmentColumns = []string{ColClientID, ColVariation}

// RequiredProfileColumns lists every profile column after renaming
func RequiredProfileColumns() []string {
	cols := []string{ColClientID, ColGender}
	for _, f := range funnel.NumericFields() {
		cols = append(cols, string(f))
	}
	return cols
}

// StandardizeName trims, lowercases and turns spaces and dashes into underscores
func StandardizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer(" ", "_", "-", "_").Replace(name)
	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	return name
}

// RenameColumns applies renames and returns a new table
func RenameColumns(table *dataset.Table, renames map[string]string) *dataset.Table {
	return table.Rename(renames)
}

// StandardizeColumns renames every header through StandardizeName
func StandardizeColumns(table *dataset.Table) *dataset.Table {
	return table.MapHeaders(StandardizeName)
}

// NullSummary returns per-column null rates, highest first, using the coercer's null tokens
func NullSummary(table *dataset.Table, c *coercer.TypeCoercer) []dataset.NullRate {
	return table.NullSummary(c.IsNull)
}

package stats

import (
	"time"

	"abfunnel/domain/core"
	"abfunnel/domain/funnel"
)

// AnalysisParams records the knobs a report was produced with
type AnalysisParams struct {
	Alpha               float64 `json:"alpha"`
	LiftThreshold       float64 `json:"lift_threshold"`
	TenureThresholdDays int     `json:"tenure_threshold_days"`
	SessionRule         string  `json:"session_rule,omitempty"`
	SampleSize          int     `json:"sample_size,omitempty"`
	Seed                int64   `json:"seed,omitempty"`
}

// AnalysisReport is the full output of one pipeline run. It is built once and not mutated.
type AnalysisReport struct {
	RunID               core.RunID                   `json:"run_id"`
	GeneratedAt         time.Time                    `json:"generated_at"`
	DatasetHash         core.Hash                    `json:"dataset_hash"`
	Params              AnalysisParams               `json:"params"`
	Events              int                          `json:"events"`
	Clients             int                          `json:"clients"`
	VariationConflicts  []string                     `json:"variation_conflicts,omitempty"`
	Behavior            BehaviorMetrics              `json:"behavior"`
	Primary             PrimarySegments              `json:"primary_segments"`
	StepReachRates      map[funnel.Step]float64      `json:"step_reach_rates"`
	VariationConversion map[funnel.Variation]float64 `json:"variation_conversion"`
	Comparison          ArmComparison                `json:"comparison"`
	RateTest            ProportionTestResult         `json:"rate_test"`
	TimeTest            MeanTestResult               `json:"time_test"`
	SessionRules        []SessionRuleMetrics         `json:"session_rules,omitempty"`
}

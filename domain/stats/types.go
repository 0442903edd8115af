package stats

import (
	"fmt"

	"abfunnel/domain/funnel"
)

// CompletionTimeLabel keys the overall first-start to last-confirm mean in StepTimes
const CompletionTimeLabel = "completion_time_mean_min"

// StepTimes maps transition labels to mean minutes; nil means no client reached both steps
type StepTimes map[string]*float64

// TransitionLabel names the dwell between two adjacent steps
func TransitionLabel(from, to funnel.Step) string {
	return fmt.Sprintf("%s_to_%s_mean_min", from, to)
}

// TransitionLabels lists every StepTimes key in funnel order, completion last
func TransitionLabels() []string {
	steps := funnel.Steps()
	labels := make([]string, 0, len(steps))
	for i := 0; i < len(steps)-1; i++ {
		labels = append(labels, TransitionLabel(steps[i], steps[i+1]))
	}
	return append(labels, CompletionTimeLabel)
}

// KPIPack bundles the funnel KPIs of one population
type KPIPack struct {
	Clients           int                     `json:"clients"`
	CompletionRate    float64                 `json:"completion_rate"`
	RestartRate       float64                 `json:"restart_rate"`
	SequenceErrorRate float64                 `json:"sequence_error_rate"`
	StepReachRates    map[funnel.Step]float64 `json:"step_reach_rates"`
	StepTimes         StepTimes               `json:"step_times"`
}

// Design status derived from the completion lift
const (
	StatusPromising  = "Promising"
	StatusRegressive = "Regressive"
	StatusNeutral    = "Neutral"
)

// ArmComparison holds per-arm KPI packs and the observed completion lift
type ArmComparison struct {
	Arms   map[funnel.Variation]KPIPack `json:"arms"`
	Lift   float64                      `json:"lift"`
	Status string                       `json:"status"`
}

// LiftStatus labels a completion lift
func LiftStatus(lift float64) string {
	switch {
	case lift > 0:
		return StatusPromising
	case lift < 0:
		return StatusRegressive
	}
	return StatusNeutral
}

// BehaviorMetrics summarizes retry, restart and completion across client snapshots
type BehaviorMetrics struct {
	Clients               int      `json:"clients"`
	RetryRate             float64  `json:"retry_rate"`
	RestartRate           float64  `json:"restart_rate"`
	CompletionRate        float64  `json:"completion_rate"`
	MeanCompletionTimeMin *float64 `json:"mean_completion_time_min"`
	StdCompletionTimeMin  *float64 `json:"std_completion_time_min"`
}

// PrimarySegments are the modal demographic groups of a population
type PrimarySegments struct {
	AgeBand string `json:"primary_age_band"`
	Gender  string `json:"primary_gender"`
	Tenure  string `json:"primary_tenure"`
}

// SessionRuleMetrics describes one session-selection rule applied to a client sample
type SessionRuleMetrics struct {
	Rule                     string   `json:"rule"`
	Label                    string   `json:"label"`
	Clients                  int      `json:"clients"`
	ConversionRate           float64  `json:"conversion_rate"`
	MeanTimeToConvertMin     *float64 `json:"mean_time_to_convert_min"`
	ModeTimeToConvertMin     *float64 `json:"mode_time_to_convert_min"`
	StdTimeToConvertMin      *float64 `json:"std_time_to_convert"`
	CorrSessionsVsConversion *float64 `json:"corr_sessions_vs_conversion"`
}

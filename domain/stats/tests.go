package stats

import "abfunnel/domain/funnel"

// Verdict is the outcome of a two-sided hypothesis test
type Verdict string

const (
	VerdictReject       Verdict = "reject"
	VerdictFailToReject Verdict = "fail to reject"
	VerdictNotAvailable Verdict = "not available"
)

// DefaultAlpha is the significance level used when none is configured
const DefaultAlpha = 0.05

// Decide rejects the null hypothesis when p <= alpha
func Decide(p, alpha float64) Verdict {
	if p <= alpha {
		return VerdictReject
	}
	return VerdictFailToReject
}

// ProportionTestResult is the completion-rate z-test against a non-zero null lift.
// Z and P are nil when the test could not be run; Reason says why.
type ProportionTestResult struct {
	Rates     map[funnel.Variation]float64 `json:"rates"`
	Successes map[funnel.Variation]int     `json:"successes"`
	Sizes     map[funnel.Variation]int     `json:"sizes"`
	NullLift  float64                      `json:"null_lift"`
	Lift      float64                      `json:"lift"`
	Z         *float64                     `json:"z"`
	P         *float64                     `json:"p"`
	Critical  float64                      `json:"critical"`
	Alpha     float64                      `json:"alpha"`
	Verdict   Verdict                      `json:"verdict"`
	Reason    string                       `json:"reason,omitempty"`
}

// Available reports whether the test statistic was computed
func (r ProportionTestResult) Available() bool {
	return r.Z != nil && r.P != nil
}

// MeanTestResult is the Welch t-test on completion minutes among completers
type MeanTestResult struct {
	Means      map[funnel.Variation]*float64 `json:"means"`
	Sizes      map[funnel.Variation]int      `json:"sizes"`
	T          *float64                      `json:"t"`
	P          *float64                      `json:"p"`
	DF         *float64                      `json:"df"`
	EffectSize *float64                      `json:"effect_size"`
	Critical   *float64                      `json:"critical"`
	Alpha      float64                       `json:"alpha"`
	Verdict    Verdict                       `json:"verdict"`
	Reason     string                        `json:"reason,omitempty"`
}

// Available reports whether the test statistic was computed
func (r MeanTestResult) Available() bool {
	return r.T != nil && r.P != nil
}

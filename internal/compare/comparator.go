package compare

import (
	"errors"
	"fmt"

	"abfunnel/domain/funnel"
	"abfunnel/domain/stats"
	"abfunnel/internal/kpi"

	mstats "github.com/montanaflynn/stats"
)

// Config holds the significance level and the null-hypothesis lift
type Config struct {
	Alpha         float64 `json:"alpha" yaml:"alpha"`
	LiftThreshold float64 `json:"lift_threshold" yaml:"lift_threshold"`
}

// DefaultConfig tests at alpha 0.05 against a 5 point lift
func DefaultConfig() Config {
	return Config{Alpha: stats.DefaultAlpha, LiftThreshold: 0.05}
}

// armJourneys splits journeys by canonical arm; unassigned clients are ignored
func armJourneys(events []funnel.Event) map[funnel.Variation][]kpi.Journey {
	out := make(map[funnel.Variation][]kpi.Journey, 2)
	for _, j := range kpi.Journeys(events) {
		if j.Variation.IsArm() {
			out[j.Variation] = append(out[j.Variation], j)
		}
	}
	return out
}

// CompareCompletionRate runs the completion-rate z-test of Test against Control
func CompareCompletionRate(events []funnel.Event, cfg Config) stats.ProportionTestResult {
	byArm := armJourneys(events)
	res := stats.ProportionTestResult{
		Rates:     make(map[funnel.Variation]float64, 2),
		Successes: make(map[funnel.Variation]int, 2),
		Sizes:     make(map[funnel.Variation]int, 2),
		NullLift:  cfg.LiftThreshold,
		Alpha:     cfg.Alpha,
		Critical:  stats.Round(NormalCritical(cfg.Alpha), stats.StatPlaces),
	}
	for _, arm := range funnel.Arms() {
		completed := 0
		for _, j := range byArm[arm] {
			if j.Completed() {
				completed++
			}
		}
		res.Successes[arm] = completed
		res.Sizes[arm] = len(byArm[arm])
		res.Rates[arm] = stats.Round(stats.Ratio(completed, len(byArm[arm])), stats.RatePlaces)
	}

	z, err := ProportionZTest(
		res.Successes[funnel.VariationTest], res.Sizes[funnel.VariationTest],
		res.Successes[funnel.VariationControl], res.Sizes[funnel.VariationControl],
		cfg.LiftThreshold,
	)
	res.Lift = stats.Round(res.Rates[funnel.VariationTest]-res.Rates[funnel.VariationControl], stats.RatePlaces)
	if err != nil {
		res.Verdict = stats.VerdictNotAvailable
		res.Reason = unavailableReason(err, res.Sizes)
		return res
	}
	res.Lift = stats.Round(z.Lift, stats.RatePlaces)
	res.Z = stats.RoundPtr(stats.Ptr(z.Z), stats.StatPlaces)
	res.P = stats.RoundPtr(stats.Ptr(z.P), stats.PValuePlaces)
	res.Verdict = stats.Decide(z.P, cfg.Alpha)
	return res
}

// CompareCompletionTime runs Welch's t-test on completion minutes of clients that
// completed, Test against Control
func CompareCompletionTime(events []funnel.Event, cfg Config) stats.MeanTestResult {
	byArm := armJourneys(events)
	res := stats.MeanTestResult{
		Means: make(map[funnel.Variation]*float64, 2),
		Sizes: make(map[funnel.Variation]int, 2),
		Alpha: cfg.Alpha,
	}
	minutes := make(map[funnel.Variation][]float64, 2)
	for _, arm := range funnel.Arms() {
		m := kpi.CompletionMinutes(byArm[arm])
		minutes[arm] = m
		res.Sizes[arm] = len(m)
		res.Means[arm] = meanOf(m)
	}

	w, err := WelchTTest(minutes[funnel.VariationTest], minutes[funnel.VariationControl])
	if err != nil {
		res.Verdict = stats.VerdictNotAvailable
		res.Reason = unavailableReason(err, res.Sizes)
		return res
	}
	res.T = stats.RoundPtr(stats.Ptr(w.T), stats.StatPlaces)
	res.P = stats.RoundPtr(stats.Ptr(w.P), stats.PValuePlaces)
	res.DF = stats.RoundPtr(stats.Ptr(w.DF), stats.StatPlaces)
	res.EffectSize = stats.RoundPtr(stats.Ptr(w.EffectSize), stats.StatPlaces)
	res.Critical = stats.RoundPtr(stats.Ptr(StudentCritical(cfg.Alpha, w.DF)), stats.StatPlaces)
	res.Verdict = stats.Decide(w.P, cfg.Alpha)
	return res
}

func meanOf(values []float64) *float64 {
	mean, err := mstats.Mean(values)
	if err != nil {
		return nil
	}
	return stats.RoundPtr(stats.Ptr(mean), stats.MinutesPlaces)
}

func unavailableReason(err error, sizes map[funnel.Variation]int) string {
	switch {
	case errors.Is(err, ErrEmptyArm):
		return fmt.Sprintf("empty arm (Control n=%d, Test n=%d)", sizes[funnel.VariationControl], sizes[funnel.VariationTest])
	case errors.Is(err, ErrTooFewCompleters):
		return fmt.Sprintf("need at least two completers per arm (Control n=%d, Test n=%d)", sizes[funnel.VariationControl], sizes[funnel.VariationTest])
	case errors.Is(err, ErrZeroVariance):
		return "zero variance in both arms"
	}
	return err.Error()
}

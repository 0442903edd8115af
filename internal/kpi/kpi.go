package kpi

import (
	"abfunnel/domain/funnel"
	"abfunnel/domain/stats"

	mstats "github.com/montanaflynn/stats"
)

// StepReachRates returns, per step, the share of distinct clients with an event there.
// Rates are not forced to be monotonic: clients can skip steps.
func StepReachRates(events []funnel.Event) map[funnel.Step]float64 {
	return stepReachRates(Journeys(events))
}

func stepReachRates(journeys []Journey) map[funnel.Step]float64 {
	rates := make(map[funnel.Step]float64, len(funnel.Steps()))
	for _, step := range funnel.Steps() {
		n := 0
		for _, j := range journeys {
			if j.Reached(step) {
				n++
			}
		}
		rates[step] = stats.Round(stats.Ratio(n, len(journeys)), stats.RatePlaces)
	}
	return rates
}

// CompletionRate is the share of clients with at least one confirm
func CompletionRate(events []funnel.Event) float64 {
	return completionRate(Journeys(events))
}

func completionRate(journeys []Journey) float64 {
	return stats.Round(stats.Ratio(countWhere(journeys, Journey.Completed), len(journeys)), stats.RatePlaces)
}

// RestartRate is the share of all distinct clients with more than one start
func RestartRate(events []funnel.Event) float64 {
	return restartRate(Journeys(events))
}

func restartRate(journeys []Journey) float64 {
	return stats.Round(stats.Ratio(countWhere(journeys, Journey.Restarted), len(journeys)), stats.RatePlaces)
}

// SequenceErrorRate is the share of clients flagged by Journey.SequenceError
func SequenceErrorRate(events []funnel.Event) float64 {
	return sequenceErrorRate(Journeys(events))
}

func sequenceErrorRate(journeys []Journey) float64 {
	return stats.Round(stats.Ratio(countWhere(journeys, Journey.SequenceError), len(journeys)), stats.RatePlaces)
}

// StepTimes returns the mean minutes between first occurrences of adjacent steps,
// over clients that reached both with timestamps, plus the mean first start to last
// confirm time. Transitions no client completed are nil.
func StepTimes(events []funnel.Event) stats.StepTimes {
	return stepTimes(Journeys(events))
}

func stepTimes(journeys []Journey) stats.StepTimes {
	steps := funnel.Steps()
	times := make(stats.StepTimes, len(steps))
	for i := 0; i < len(steps)-1; i++ {
		from, to := steps[i], steps[i+1]
		var dwell []float64
		for _, j := range journeys {
			a, okA := j.FirstAt(from)
			b, okB := j.FirstAt(to)
			if okA && okB {
				dwell = append(dwell, b.Sub(a).Minutes())
			}
		}
		times[stats.TransitionLabel(from, to)] = meanMinutes(dwell)
	}

	times[stats.CompletionTimeLabel] = meanMinutes(CompletionMinutes(journeys))
	return times
}

// CompletionMinutes lists the completion time of every client for which it is defined
func CompletionMinutes(journeys []Journey) []float64 {
	var out []float64
	for _, j := range journeys {
		if d, ok := j.CompletionTime(); ok {
			out = append(out, d.Minutes())
		}
	}
	return out
}

// ComputeKPIs bundles every KPI of one population
func ComputeKPIs(events []funnel.Event) stats.KPIPack {
	journeys := Journeys(events)
	return stats.KPIPack{
		Clients:           len(journeys),
		CompletionRate:    completionRate(journeys),
		RestartRate:       restartRate(journeys),
		SequenceErrorRate: sequenceErrorRate(journeys),
		StepReachRates:    stepReachRates(journeys),
		StepTimes:         stepTimes(journeys),
	}
}

// CompareArms computes a KPI pack per arm and labels the completion lift of Test over Control
func CompareArms(events []funnel.Event) stats.ArmComparison {
	cmp := stats.ArmComparison{Arms: make(map[funnel.Variation]stats.KPIPack, 2)}
	for _, arm := range funnel.Arms() {
		cmp.Arms[arm] = ComputeKPIs(funnel.FilterVariation(events, arm))
	}
	lift := cmp.Arms[funnel.VariationTest].CompletionRate - cmp.Arms[funnel.VariationControl].CompletionRate
	cmp.Lift = stats.Round(lift, stats.RatePlaces)
	cmp.Status = stats.LiftStatus(cmp.Lift)
	return cmp
}

func countWhere(journeys []Journey, pred func(Journey) bool) int {
	n := 0
	for _, j := range journeys {
		if pred(j) {
			n++
		}
	}
	return n
}

func meanMinutes(values []float64) *float64 {
	mean, err := mstats.Mean(values)
	if err != nil {
		return nil
	}
	return stats.RoundPtr(stats.Ptr(mean), stats.MinutesPlaces)
}

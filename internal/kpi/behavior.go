package kpi

import (
	"sort"

	"abfunnel/domain/funnel"
	"abfunnel/domain/stats"

	mstats "github.com/montanaflynn/stats"
)

// BehaviorMetrics summarizes snapshots: retry (more than one visit), restart,
// completion, and the mean and sample deviation of completion minutes
func BehaviorMetrics(snapshots []funnel.ClientSnapshot) stats.BehaviorMetrics {
	m := stats.BehaviorMetrics{Clients: len(snapshots)}
	var retry, restart, complete int
	var minutes []float64
	for _, s := range snapshots {
		if s.Visits > 1 {
			retry++
		}
		if s.StartsCount > 1 {
			restart++
		}
		if s.Completed() {
			complete++
		}
		if v, ok := s.CompletionMinutes(); ok {
			minutes = append(minutes, v)
		}
	}
	m.RetryRate = stats.Round(stats.Ratio(retry, len(snapshots)), stats.RatePlaces)
	m.RestartRate = stats.Round(stats.Ratio(restart, len(snapshots)), stats.RatePlaces)
	m.CompletionRate = stats.Round(stats.Ratio(complete, len(snapshots)), stats.RatePlaces)

	if mean, err := mstats.Mean(minutes); err == nil {
		m.MeanCompletionTimeMin = stats.RoundPtr(stats.Ptr(mean), stats.MinutesPlaces)
	}
	if len(minutes) > 1 {
		if sd, err := mstats.StandardDeviationSample(minutes); err == nil {
			m.StdCompletionTimeMin = stats.RoundPtr(stats.Ptr(sd), stats.MinutesPlaces)
		}
	}
	return m
}

// PrimarySegments returns the modal age band, gender group and tenure group.
// Ties go to the lexically smallest label; an empty population yields empty labels.
func PrimarySegments(snapshots []funnel.ClientSnapshot) stats.PrimarySegments {
	ages := make([]string, len(snapshots))
	genders := make([]string, len(snapshots))
	tenures := make([]string, len(snapshots))
	for i, s := range snapshots {
		ages[i], genders[i], tenures[i] = s.AgeBand, s.GenderGroup, s.TenureGroup
	}
	return stats.PrimarySegments{
		AgeBand: modeLabel(ages),
		Gender:  modeLabel(genders),
		Tenure:  modeLabel(tenures),
	}
}

func modeLabel(values []string) string {
	counts := make(map[string]int)
	for _, v := range values {
		counts[v]++
	}
	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	if len(labels) == 0 {
		return ""
	}
	sort.Strings(labels)
	best := labels[0]
	for _, l := range labels[1:] {
		if counts[l] > counts[best] {
			best = l
		}
	}
	return best
}

// VariationConversion is the client-level conversion rate per canonical arm.
// Arms with no clients are omitted.
func VariationConversion(events []funnel.Event) map[funnel.Variation]float64 {
	clients := make(map[funnel.Variation]int)
	converted := make(map[funnel.Variation]int)
	for _, j := range Journeys(events) {
		if !j.Variation.IsArm() {
			continue
		}
		clients[j.Variation]++
		if j.Completed() {
			converted[j.Variation]++
		}
	}
	out := make(map[funnel.Variation]float64, len(clients))
	for arm, n := range clients {
		out[arm] = stats.Round(stats.Ratio(converted[arm], n), stats.RatePlaces)
	}
	return out
}

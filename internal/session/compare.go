package session

import (
	"math/rand"
	"sort"

	"abfunnel/domain/funnel"
	"abfunnel/domain/stats"
	"abfunnel/internal/kpi"

	mstats "github.com/montanaflynn/stats"
)

// DefaultSampleSize is the number of multi-visit clients drawn for a rule comparison
const DefaultSampleSize = 50

// SampleMultiVisitClients draws up to n multi-visit clients without replacement. The
// candidates are sorted first so a seed reproduces the same sample for the same data.
// n <= 0 takes every candidate.
func SampleMultiVisitClients(events []funnel.Event, n int, seed int64) []string {
	candidates := MultiVisitClients(events)
	sort.Strings(candidates)
	if n <= 0 || n >= len(candidates) {
		return candidates
	}
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(len(candidates))
	sample := make([]string, n)
	for i := 0; i < n; i++ {
		sample[i] = candidates[perm[i]]
	}
	sort.Strings(sample)
	return sample
}

// CompareRules applies every selection rule to the same sample of multi-visit clients
// and reports conversion, time-to-convert and how conversion correlates with the
// number of sessions a client had.
func CompareRules(events []funnel.Event, sampleSize int, seed int64) ([]stats.SessionRuleMetrics, error) {
	sampled := FilterClients(events, SampleMultiVisitClients(events, sampleSize, seed))
	visits := VisitCounts(sampled)

	out := make([]stats.SessionRuleMetrics, 0, len(Rules()))
	for _, rule := range Rules() {
		selected, err := SelectPerClient(sampled, rule)
		if err != nil {
			return nil, err
		}
		out = append(out, ruleMetrics(rule, kpi.Journeys(selected), visits))
	}
	return out, nil
}

func ruleMetrics(rule Rule, journeys []kpi.Journey, visits map[string]int) stats.SessionRuleMetrics {
	m := stats.SessionRuleMetrics{
		Rule:    string(rule),
		Label:   rule.Label(),
		Clients: len(journeys),
	}

	var converted int
	var ttc, flags, sessions []float64
	for _, j := range journeys {
		flag := 0.0
		if j.Completed() {
			converted++
			flag = 1
			first, okFirst := j.Earliest()
			last, okLast := j.LastConfirm()
			if okFirst && okLast {
				ttc = append(ttc, last.Sub(first).Minutes())
			}
		}
		flags = append(flags, flag)
		sessions = append(sessions, float64(visits[j.ClientID]))
	}
	m.ConversionRate = stats.Round(stats.Ratio(converted, len(journeys)), stats.RatePlaces)

	if len(ttc) > 0 {
		mean, _ := mstats.Mean(ttc)
		sd, _ := mstats.StandardDeviationPopulation(ttc)
		m.MeanTimeToConvertMin = stats.RoundPtr(stats.Ptr(mean), stats.MinutesPlaces)
		m.StdTimeToConvertMin = stats.RoundPtr(stats.Ptr(sd), stats.MinutesPlaces)
		m.ModeTimeToConvertMin = stats.RoundPtr(smallestMode(ttc), stats.MinutesPlaces)
	}
	m.CorrSessionsVsConversion = stats.RoundPtr(correlation(flags, sessions), stats.RatePlaces)
	return m
}

// smallestMode is the lowest most-frequent value; with all values distinct that is the minimum
func smallestMode(values []float64) *float64 {
	modes, err := mstats.Mode(values)
	if err == nil && len(modes) > 0 {
		return stats.Ptr(modes[0])
	}
	min, err := mstats.Min(values)
	if err != nil {
		return nil
	}
	return stats.Ptr(min)
}

// correlation is Pearson's r, nil when either series is constant or empty
func correlation(x, y []float64) *float64 {
	sx, err := mstats.StandardDeviationPopulation(x)
	if err != nil || sx == 0 {
		return nil
	}
	sy, err := mstats.StandardDeviationPopulation(y)
	if err != nil || sy == 0 {
		return nil
	}
	r, err := mstats.Correlation(x, y)
	if err != nil {
		return nil
	}
	return stats.Ptr(r)
}

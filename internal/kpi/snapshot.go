package kpi

import (
	"time"

	"abfunnel/domain/funnel"
)

// DefaultTenureThresholdDays separates new from long-standing clients
const DefaultTenureThresholdDays = 90

// DatasetStart is the earliest timestamp across events
func DatasetStart(events []funnel.Event) (time.Time, bool) {
	var min time.Time
	for _, e := range events {
		if e.HasTime() && (min.IsZero() || e.Time.Before(min)) {
			min = e.Time
		}
	}
	return min, !min.IsZero()
}

// TenureGroup labels a client new when their first start falls within thresholdDays
// of the dataset start. Clients without a timed start are new.
func TenureGroup(firstStart, datasetStart time.Time, thresholdDays int) string {
	if firstStart.IsZero() || datasetStart.IsZero() {
		return funnel.TenureNew
	}
	days := int(firstStart.Sub(datasetStart).Hours() / 24)
	if days <= thresholdDays {
		return funnel.TenureNew
	}
	return funnel.TenureLongStand
}

// Snapshots builds one summary row per client, in first-seen order, joining cleaned
// profiles for demographics. Clients without a profile fall into the unknown groups.
func Snapshots(events []funnel.Event, profiles []funnel.ClientProfile, tenureDays int) []funnel.ClientSnapshot {
	index := funnel.IndexProfiles(profiles)
	start, _ := DatasetStart(events)

	journeys := Journeys(events)
	out := make([]funnel.ClientSnapshot, 0, len(journeys))
	for _, j := range journeys {
		snap := funnel.ClientSnapshot{
			ClientID:      j.ClientID,
			Variation:     j.Variation,
			AgeBand:       funnel.AgeBandUnknown,
			GenderGroup:   funnel.GenderUnknown,
			Visits:        j.Visits,
			StartsCount:   j.Count(funnel.StepStart),
			ConfirmsCount: j.Count(funnel.StepConfirm),
		}
		if p, ok := index[j.ClientID]; ok {
			snap.AgeBand = funnel.AgeBand(p.Age)
			snap.GenderGroup = funnel.GenderGroup(p.Gender)
		}

		firstStart, hasStart := j.FirstAt(funnel.StepStart)
		if hasStart {
			snap.FirstStart = &firstStart
		}
		if lastConfirm, ok := j.LastConfirm(); ok {
			snap.LastConfirm = &lastConfirm
		}
		if d, ok := j.CompletionTime(); ok {
			snap.CompletionTime = &d
		}
		snap.TenureGroup = TenureGroup(firstStart, start, tenureDays)
		out = append(out, snap)
	}
	return out
}

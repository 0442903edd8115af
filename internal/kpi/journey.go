// Package kpi computes funnel KPIs over one population of events.
package kpi

import (
	"sort"
	"time"

	"abfunnel/domain/funnel"
)

// Journey is one client's events with the derived per-client facts every KPI needs
type Journey struct {
	ClientID  string
	Variation funnel.Variation
	Events    []funnel.Event // ordered by timestamp then step index, untimed events last
	Visits    int

	counts      [5]int
	firstAt     [5]time.Time
	lastConfirm time.Time
	earliest    time.Time
}

// Journeys groups events per client in first-seen order. The canonical variation is
// the client's first observed arm.
func Journeys(events []funnel.Event) []Journey {
	groups := funnel.GroupByClient(events)
	arms := funnel.ClientVariations(events)
	clients := funnel.DistinctClients(events)

	out := make([]Journey, 0, len(clients))
	for _, client := range clients {
		out = append(out, newJourney(client, arms[client], groups[client]))
	}
	return out
}

func newJourney(client string, arm funnel.Variation, events []funnel.Event) Journey {
	ordered := make([]funnel.Event, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.HasTime() != b.HasTime() {
			return a.HasTime()
		}
		if a.HasTime() && !a.Time.Equal(b.Time) {
			return a.Time.Before(b.Time)
		}
		return a.Step.Index() < b.Step.Index()
	})

	j := Journey{ClientID: client, Variation: arm, Events: ordered}
	visits := make(map[string]bool)
	for _, e := range ordered {
		visits[e.VisitID] = true
		i := e.Step.Index()
		j.counts[i]++
		if !e.HasTime() {
			continue
		}
		if j.firstAt[i].IsZero() || e.Time.Before(j.firstAt[i]) {
			j.firstAt[i] = e.Time
		}
		if e.Step == funnel.StepConfirm && e.Time.After(j.lastConfirm) {
			j.lastConfirm = e.Time
		}
		if j.earliest.IsZero() || e.Time.Before(j.earliest) {
			j.earliest = e.Time
		}
	}
	j.Visits = len(visits)
	return j
}

// Count is the number of events logged at step
func (j Journey) Count(step funnel.Step) int {
	return j.counts[step.Index()]
}

// Reached reports whether the client has at least one event at step
func (j Journey) Reached(step funnel.Step) bool {
	return j.Count(step) > 0
}

// Completed reports a confirm event
func (j Journey) Completed() bool {
	return j.Reached(funnel.StepConfirm)
}

// Restarted reports more than one start event
func (j Journey) Restarted() bool {
	return j.Count(funnel.StepStart) > 1
}

// FirstAt is the earliest timestamp at step; false when no timed event exists there
func (j Journey) FirstAt(step funnel.Step) (time.Time, bool) {
	t := j.firstAt[step.Index()]
	return t, !t.IsZero()
}

// LastConfirm is the latest timed confirm
func (j Journey) LastConfirm() (time.Time, bool) {
	return j.lastConfirm, !j.lastConfirm.IsZero()
}

// Earliest is the earliest timestamp of any event
func (j Journey) Earliest() (time.Time, bool) {
	return j.earliest, !j.earliest.IsZero()
}

// CompletionTime runs from the first start to the last confirm. Undefined unless
// both ends carry timestamps.
func (j Journey) CompletionTime() (time.Duration, bool) {
	start, ok := j.FirstAt(funnel.StepStart)
	if !ok {
		return 0, false
	}
	end, ok := j.LastConfirm()
	if !ok {
		return 0, false
	}
	return end.Sub(start), true
}

// BackwardJump reports a step index decrease between consecutive ordered events
func (j Journey) BackwardJump() bool {
	for i := 1; i < len(j.Events); i++ {
		if j.Events[i].Step.Index() < j.Events[i-1].Step.Index() {
			return true
		}
	}
	return false
}

// SequenceError is the approximate error heuristic: a backward jump, or a restart
// that never reached confirm. The two causes are not told apart.
func (j Journey) SequenceError() bool {
	return j.BackwardJump() || (j.Restarted() && !j.Completed())
}

package funnel

import "time"

// Session is the set of events sharing one visit_id for a client
type Session struct {
	ClientID string
	VisitID  string
	Events   []Event
}

// LogCount is the number of logged events in the session
func (s Session) LogCount() int {
	return len(s.Events)
}

// Depth is the furthest funnel step index reached, or -1 for an empty session
func (s Session) Depth() int {
	depth := -1
	for _, e := range s.Events {
		if e.Step.Index() > depth {
			depth = e.Step.Index()
		}
	}
	return depth
}

// FirstTime is the earliest timestamp in the session; false when no event has one
func (s Session) FirstTime() (time.Time, bool) {
	var first time.Time
	found := false
	for _, e := range s.Events {
		if !e.HasTime() {
			continue
		}
		if !found || e.Time.Before(first) {
			first = e.Time
			found = true
		}
	}
	return first, found
}

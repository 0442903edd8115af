// Package session picks one representative visit per client.
package session

import (
	"fmt"
	"strings"
	"time"

	"abfunnel/domain/core"
	"abfunnel/domain/funnel"
)

// Rule selects which of a client's sessions represents them
type Rule string

const (
	RuleFirst   Rule = "first"
	RuleLongest Rule = "longest"
	RuleDeepest Rule = "deepest"
)

// Rules returns the selection rules in reporting order
func Rules() []Rule {
	return []Rule{RuleFirst, RuleLongest, RuleDeepest}
}

// ParseRule accepts first, longest or deepest in any case
func ParseRule(s string) (Rule, error) {
	r := Rule(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RuleFirst, RuleLongest, RuleDeepest:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrUnknownRule, s)
}

// Label is the display name used in reports
func (r Rule) Label() string {
	switch r {
	case RuleFirst:
		return "First Session"
	case RuleLongest:
		return "Longest Session"
	case RuleDeepest:
		return "Deepest Session"
	}
	return string(r)
}

// GroupSessions splits each client's events into sessions by visit_id. Sessions are
// in first-seen order and events keep their input order.
func GroupSessions(events []funnel.Event) map[string][]funnel.Session {
	index := make(map[string]map[string]int)
	out := make(map[string][]funnel.Session)
	for _, e := range events {
		visits, ok := index[e.ClientID]
		if !ok {
			visits = make(map[string]int)
			index[e.ClientID] = visits
		}
		i, ok := visits[e.VisitID]
		if !ok {
			i = len(out[e.ClientID])
			visits[e.VisitID] = i
			out[e.ClientID] = append(out[e.ClientID], funnel.Session{ClientID: e.ClientID, VisitID: e.VisitID})
		}
		out[e.ClientID][i].Events = append(out[e.ClientID][i].Events, e)
	}
	return out
}

// Select returns the visit_id chosen by rule.
//
// First takes the session with the earliest timestamp; sessions with no timestamps
// rank last and ties go to the earlier session in input order. Longest and Deepest
// break ties on the lexically smallest visit_id.
func Select(sessions []funnel.Session, rule Rule) (string, error) {
	if len(sessions) == 0 {
		return "", core.ErrNoSessions
	}
	switch rule {
	case RuleFirst:
		return selectFirst(sessions), nil
	case RuleLongest:
		return selectMax(sessions, funnel.Session.LogCount), nil
	case RuleDeepest:
		return selectMax(sessions, funnel.Session.Depth), nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrUnknownRule, rule)
}

func selectFirst(sessions []funnel.Session) string {
	best := -1
	var bestTime time.Time
	for i, s := range sessions {
		t, ok := s.FirstTime()
		if !ok {
			continue
		}
		if best < 0 || t.Before(bestTime) {
			best, bestTime = i, t
		}
	}
	if best < 0 {
		return sessions[0].VisitID
	}
	return sessions[best].VisitID
}

func selectMax(sessions []funnel.Session, score func(funnel.Session) int) string {
	best := sessions[0]
	bestScore := score(best)
	for _, s := range sessions[1:] {
		sc := score(s)
		if sc > bestScore || (sc == bestScore && s.VisitID < best.VisitID) {
			best, bestScore = s, sc
		}
	}
	return best.VisitID
}

// SelectPerClient keeps only each client's selected session. Input order is preserved,
// single-session clients pass through unchanged and a second pass is a no-op.
func SelectPerClient(events []funnel.Event, rule Rule) ([]funnel.Event, error) {
	groups := GroupSessions(events)
	chosen := make(map[string]string, len(groups))
	for client, sessions := range groups {
		visit, err := Select(sessions, rule)
		if err != nil {
			return nil, fmt.Errorf("client %s: %w", client, err)
		}
		chosen[client] = visit
	}

	out := make([]funnel.Event, 0, len(events))
	for _, e := range events {
		if chosen[e.ClientID] == e.VisitID {
			out = append(out, e)
		}
	}
	return out, nil
}

// VisitCounts returns the number of distinct visit_ids per client
func VisitCounts(events []funnel.Event) map[string]int {
	visits := make(map[string]map[string]bool)
	for _, e := range events {
		if visits[e.ClientID] == nil {
			visits[e.ClientID] = make(map[string]bool)
		}
		visits[e.ClientID][e.VisitID] = true
	}
	counts := make(map[string]int, len(visits))
	for client, v := range visits {
		counts[client] = len(v)
	}
	return counts
}

// MultiVisitClients lists, in first-seen order, clients with at least two distinct visits
func MultiVisitClients(events []funnel.Event) []string {
	counts := VisitCounts(events)
	var out []string
	for _, client := range funnel.DistinctClients(events) {
		if counts[client] >= 2 {
			out = append(out, client)
		}
	}
	return out
}

// FilterClients returns the events of the listed clients
func FilterClients(events []funnel.Event, clients []string) []funnel.Event {
	keep := make(map[string]bool, len(clients))
	for _, c := range clients {
		keep[c] = true
	}
	var out []funnel.Event
	for _, e := range events {
		if keep[e.ClientID] {
			out = append(out, e)
		}
	}
	return out
}

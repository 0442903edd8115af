package funnel

import (
	"fmt"
	"time"

	"abfunnel/domain/core"
)

// Step is one stage of the ordered process funnel
type Step int

const (
	StepStart Step = iota
	StepOne
	StepTwo
	StepThree
	StepConfirm
)

var stepNames = [...]string{"start", "step_1", "step_2", "step_3", "confirm"}

// Steps returns the funnel in order, start first
func Steps() []Step {
	return []Step{StepStart, StepOne, StepTwo, StepThree, StepConfirm}
}

// ParseStep maps a raw process_step value onto the funnel. Matching is case-sensitive.
func ParseStep(s string) (Step, error) {
	for i, name := range stepNames {
		if s == name {
			return Step(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", core.ErrUnknownStep, s)
}

// Index is the position in the funnel, start=0 through confirm=4
func (s Step) Index() int {
	return int(s)
}

// Valid reports whether s is one of the five funnel steps
func (s Step) Valid() bool {
	return s >= StepStart && s <= StepConfirm
}

func (s Step) String() string {
	if !s.Valid() {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// Next returns the following step and false at confirm
func (s Step) Next() (Step, bool) {
	if s >= StepConfirm {
		return s, false
	}
	return s + 1, true
}

// MarshalText lets steps key JSON maps by name
func (s Step) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", core.ErrUnknownStep, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText parses a step name
func (s *Step) UnmarshalText(text []byte) error {
	parsed, err := ParseStep(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Variation is the experiment arm a client was assigned to
type Variation string

const (
	VariationControl    Variation = "Control"
	VariationTest       Variation = "Test"
	VariationUnassigned Variation = ""
)

// Arms returns the experiment arms in reporting order
func Arms() []Variation {
	return []Variation{VariationControl, VariationTest}
}

// ParseVariation accepts the two arm labels; anything else is unassigned
func ParseVariation(s string) Variation {
	switch Variation(s) {
	case VariationControl, VariationTest:
		return Variation(s)
	default:
		return VariationUnassigned
	}
}

// IsArm reports whether v is Control or Test
func (v Variation) IsArm() bool {
	return v == VariationControl || v == VariationTest
}

// Event is one logged step touch. A zero Time marks a missing or unparseable timestamp.
type Event struct {
	ClientID  string    `json:"client_id"`
	VisitorID string    `json:"visitor_id,omitempty"`
	VisitID   string    `json:"visit_id"`
	Step      Step      `json:"process_step"`
	Time      time.Time `json:"date_time"`
	Variation Variation `json:"variation,omitempty"`
}

// HasTime reports whether the event carries a usable timestamp
func (e Event) HasTime() bool {
	return !e.Time.IsZero()
}

// DistinctClients returns client IDs in first-seen order
func DistinctClients(events []Event) []string {
	seen := make(map[string]bool)
	var clients []string
	for _, e := range events {
		if !seen[e.ClientID] {
			seen[e.ClientID] = true
			clients = append(clients, e.ClientID)
		}
	}
	return clients
}

// GroupByClient indexes events per client, keeping input order inside each group
func GroupByClient(events []Event) map[string][]Event {
	groups := make(map[string][]Event)
	for _, e := range events {
		groups[e.ClientID] = append(groups[e.ClientID], e)
	}
	return groups
}

// FilterVariation returns the events assigned to one arm
func FilterVariation(events []Event, v Variation) []Event {
	var out []Event
	for _, e := range events {
		if e.Variation == v {
			out = append(out, e)
		}
	}
	return out
}

// ClientVariations takes the first observed arm per client as canonical. Clients
// that never carry an arm map to VariationUnassigned.
func ClientVariations(events []Event) map[string]Variation {
	arms := make(map[string]Variation)
	for _, e := range events {
		if current, ok := arms[e.ClientID]; !ok || (current == VariationUnassigned && e.Variation.IsArm()) {
			arms[e.ClientID] = e.Variation
		}
	}
	return arms
}

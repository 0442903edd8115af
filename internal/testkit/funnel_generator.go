package testkit

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"abfunnel/domain/funnel"
)

// FunnelGeneratorConfig configures the synthetic experiment
type FunnelGeneratorConfig struct {
	ClientCount       int       `json:"client_count"`
	ControlCompletion float64   `json:"control_completion"`
	TestCompletion    float64   `json:"test_completion"`
	ControlStepMins   float64   `json:"control_step_minutes"`
	TestStepMins      float64   `json:"test_step_minutes"`
	MultiVisitRate    float64   `json:"multi_visit_rate"`
	BackwardJumpRate  float64   `json:"backward_jump_rate"`
	MissingTimeRate   float64   `json:"missing_time_rate"`
	DuplicateRate     float64   `json:"duplicate_rate"`
	UnassignedRate    float64   `json:"unassigned_rate"`
	ProfileNullRate   float64   `json:"profile_null_rate"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	Seed              int64     `json:"seed"`
}

// DefaultFunnelConfig returns a Test arm that converts better and faster than Control
func DefaultFunnelConfig() FunnelGeneratorConfig {
	return FunnelGeneratorConfig{
		ClientCount:       1000,
		ControlCompletion: 0.62,
		TestCompletion:    0.69,
		ControlStepMins:   1.5,
		TestStepMins:      1.2,
		MultiVisitRate:    0.25,
		BackwardJumpRate:  0.1,
		MissingTimeRate:   0.01,
		DuplicateRate:     0.02,
		UnassignedRate:    0.05,
		ProfileNullRate:   0.02,
		StartDate:         time.Date(2017, 3, 15, 0, 0, 0, 0, time.UTC),
		EndDate:           time.Date(2017, 6, 20, 23, 59, 59, 0, time.UTC),
		Seed:              42,
	}
}

// Dataset is a generated experiment: the event log, demographics and roster.
// Clients keeps generation order so writers are deterministic.
type Dataset struct {
	Clients     []string
	Events      []funnel.Event
	Profiles    []funnel.ClientProfile
	Assignments map[string]funnel.Variation
}

// FunnelDataGenerator generates clients moving through the five-step funnel
type FunnelDataGenerator struct {
	config FunnelGeneratorConfig
	rng    *rand.Rand
}

// NewFunnelDataGenerator creates a generator; the same seed yields the same dataset
func NewFunnelDataGenerator(config FunnelGeneratorConfig) *FunnelDataGenerator {
	return &FunnelDataGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate builds the full dataset
func (g *FunnelDataGenerator) Generate() Dataset {
	ds := Dataset{Assignments: make(map[string]funnel.Variation, g.config.ClientCount)}

	for i := 0; i < g.config.ClientCount; i++ {
		clientID := fmt.Sprintf("%d", 100000+i)
		ds.Clients = append(ds.Clients, clientID)

		arm := funnel.VariationControl
		if g.rng.Float64() < 0.5 {
			arm = funnel.VariationTest
		}
		assigned := g.rng.Float64() >= g.config.UnassignedRate
		if assigned {
			ds.Assignments[clientID] = arm
		}

		events := g.generateClientJourney(clientID, arm)
		if !assigned {
			for j := range events {
				events[j].Variation = funnel.VariationUnassigned
			}
		}
		ds.Events = append(ds.Events, events...)
		ds.Profiles = append(ds.Profiles, g.generateProfile(clientID))
	}

	// exact duplicates, as logged twice by the web tracker
	n := len(ds.Events)
	for i := 0; i < n; i++ {
		if g.rng.Float64() < g.config.DuplicateRate {
			ds.Events = append(ds.Events, ds.Events[i])
		}
	}
	return ds
}

func (g *FunnelDataGenerator) generateClientJourney(clientID string, arm funnel.Variation) []funnel.Event {
	visitorID := fmt.Sprintf("%s_%d", clientID, g.rng.Intn(1_000_000))
	startWindow := g.config.EndDate.Sub(g.config.StartDate) - 48*time.Hour
	at := g.config.StartDate.Add(time.Duration(g.rng.Int63n(int64(startWindow))))

	var events []funnel.Event
	visit := 0
	// abandoned earlier visits
	for g.rng.Float64() < g.config.MultiVisitRate && visit < 3 {
		last := funnel.Step(g.rng.Intn(int(funnel.StepThree) + 1))
		events = append(events, g.generateVisit(clientID, visitorID, visit, arm, at, last)...)
		at = at.Add(time.Duration(1+g.rng.Intn(20)) * time.Hour)
		visit++
	}

	completion := g.config.ControlCompletion
	if arm == funnel.VariationTest {
		completion = g.config.TestCompletion
	}
	last := funnel.StepConfirm
	if g.rng.Float64() >= completion {
		last = funnel.Step(g.rng.Intn(int(funnel.StepThree) + 1))
	}
	return append(events, g.generateVisit(clientID, visitorID, visit, arm, at, last)...)
}

// generateVisit walks start..last, sometimes stepping back once before moving on
func (g *FunnelDataGenerator) generateVisit(clientID, visitorID string, n int, arm funnel.Variation, at time.Time, last funnel.Step) []funnel.Event {
	visitID := fmt.Sprintf("%s_%d_%d", visitorID, n, g.rng.Intn(1_000_000))
	dwell := g.config.ControlStepMins
	if arm == funnel.VariationTest {
		dwell = g.config.TestStepMins
	}

	var events []funnel.Event
	emit := func(step funnel.Step) {
		e := funnel.Event{ClientID: clientID, VisitorID: visitorID, VisitID: visitID, Step: step, Time: at, Variation: arm}
		if g.rng.Float64() < g.config.MissingTimeRate {
			e.Time = time.Time{}
		}
		events = append(events, e)
		at = at.Add(g.dwell(dwell))
	}

	for step := funnel.StepStart; step <= last; step++ {
		emit(step)
		if step > funnel.StepStart && step < last && g.rng.Float64() < g.config.BackwardJumpRate {
			emit(step - 1)
			emit(step)
		}
	}
	return events
}

// dwell draws a positive, right-skewed time on page around mean minutes
func (g *FunnelDataGenerator) dwell(mean float64) time.Duration {
	minutes := mean * math.Exp(g.rng.NormFloat64()*0.5-0.125)
	return time.Duration(minutes * float64(time.Minute)).Round(time.Second)
}

func (g *FunnelDataGenerator) generateProfile(clientID string) funnel.ClientProfile {
	years := float64(1 + g.rng.Intn(40))
	months := years*12 + float64(g.rng.Intn(12))
	age := math.Round((18+g.rng.Float64()*70)*2) / 2
	accounts := float64(2 + g.rng.Intn(4))
	balance := math.Round(math.Exp(11+g.rng.NormFloat64())*100) / 100
	calls := float64(g.rng.Intn(8))
	logons := calls + float64(3+g.rng.Intn(5))

	p := funnel.ClientProfile{
		ClientID:         clientID,
		TenureYears:      &years,
		TenureMonths:     &months,
		Age:              &age,
		Gender:           []string{funnel.GenderMale, funnel.GenderFemale, funnel.GenderUnknown, funnel.GenderOther}[g.rng.Intn(4)],
		NumberOfAccounts: &accounts,
		Balance:          &balance,
		Calls6Months:     &calls,
		Logons6Months:    &logons,
	}
	if g.rng.Float64() < g.config.ProfileNullRate {
		p.Age = nil
	}
	if g.rng.Float64() < g.config.ProfileNullRate {
		p.Gender = ""
	}
	if g.rng.Float64() < g.config.ProfileNullRate {
		p.Balance = nil
	}
	return p
}

package kpi

import (
	"testing"
	"time"

	"abfunnel/domain/funnel"
	"abfunnel/domain/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2017, 4, 1, 10, 0, 0, 0, time.UTC)

// path builds one visit for client with steps a minute apart
func path(client, visit string, arm funnel.Variation, offset time.Duration, steps ...funnel.Step) []funnel.Event {
	events := make([]funnel.Event, len(steps))
	for i, s := range steps {
		events[i] = funnel.Event{
			ClientID:  client,
			VisitID:   visit,
			Step:      s,
			Time:      t0.Add(offset + time.Duration(i)*time.Minute),
			Variation: arm,
		}
	}
	return events
}

func concat(parts ...[]funnel.Event) []funnel.Event {
	var out []funnel.Event
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestSequenceErrorBackwardJump(t *testing.T) {
	jumped := path("1", "a", funnel.VariationTest, 0, funnel.StepStart, funnel.StepTwo, funnel.StepOne)
	clean := path("2", "b", funnel.VariationTest, 0, funnel.StepStart, funnel.StepOne, funnel.StepTwo, funnel.StepConfirm)

	journeys := Journeys(concat(jumped, clean))
	require.Len(t, journeys, 2)
	assert.True(t, journeys[0].SequenceError())
	assert.False(t, journeys[1].SequenceError())
	assert.Equal(t, 0.5, SequenceErrorRate(concat(jumped, clean)))
}

func TestSequenceErrorRestartWithoutConfirm(t *testing.T) {
	retried := concat(
		path("1", "a", funnel.VariationControl, 0, funnel.StepStart, funnel.StepOne),
		path("1", "b", funnel.VariationControl, time.Hour, funnel.StepStart, funnel.StepOne),
	)
	j := Journeys(retried)[0]
	assert.True(t, j.Restarted())
	assert.True(t, j.BackwardJump(), "second start after step_1 steps back")
	assert.True(t, j.SequenceError())

	// restart that completes, starting over cleanly
	recovered := []funnel.Event{
		{ClientID: "2", VisitID: "a", Step: funnel.StepStart, Time: t0},
		{ClientID: "2", VisitID: "b", Step: funnel.StepStart, Time: t0.Add(time.Minute)},
		{ClientID: "2", VisitID: "b", Step: funnel.StepConfirm, Time: t0.Add(2 * time.Minute)},
	}
	j = Journeys(recovered)[0]
	assert.True(t, j.Restarted())
	assert.False(t, j.SequenceError())

	// restart that never confirms and never steps back is still flagged
	stalled := []funnel.Event{
		{ClientID: "3", VisitID: "a", Step: funnel.StepStart, Time: t0},
		{ClientID: "3", VisitID: "b", Step: funnel.StepStart, Time: t0.Add(time.Minute)},
	}
	j = Journeys(stalled)[0]
	assert.False(t, j.BackwardJump())
	assert.True(t, j.SequenceError())
}

func TestUntimedEventsSortLast(t *testing.T) {
	events := []funnel.Event{
		{ClientID: "1", VisitID: "a", Step: funnel.StepStart, Time: t0},
		{ClientID: "1", VisitID: "a", Step: funnel.StepTwo},
		{ClientID: "1", VisitID: "a", Step: funnel.StepOne, Time: t0.Add(time.Minute)},
	}
	j := Journeys(events)[0]
	assert.Equal(t, []funnel.Step{funnel.StepStart, funnel.StepOne, funnel.StepTwo},
		[]funnel.Step{j.Events[0].Step, j.Events[1].Step, j.Events[2].Step})
	assert.False(t, j.BackwardJump())
	assert.True(t, j.Reached(funnel.StepTwo))
	_, timed := j.FirstAt(funnel.StepTwo)
	assert.False(t, timed)
}

func TestStepReachRatesBounds(t *testing.T) {
	events := concat(
		path("1", "a", funnel.VariationTest, 0, funnel.StepStart, funnel.StepOne, funnel.StepTwo, funnel.StepThree, funnel.StepConfirm),
		path("2", "b", funnel.VariationTest, 0, funnel.StepStart, funnel.StepOne),
		path("3", "c", funnel.VariationTest, 0, funnel.StepStart, funnel.StepConfirm),
	)
	rates := StepReachRates(events)
	require.Len(t, rates, 5)
	for step, r := range rates {
		assert.GreaterOrEqual(t, r, 0.0, step.String())
		assert.LessOrEqual(t, r, 1.0, step.String())
	}
	assert.Equal(t, 1.0, rates[funnel.StepStart])
	assert.Equal(t, 0.667, rates[funnel.StepOne])
	assert.Equal(t, 0.333, rates[funnel.StepThree])
	// skipping steps is allowed, so confirm can exceed step_3
	assert.Equal(t, 0.667, rates[funnel.StepConfirm])
}

func TestCompletionRateExtremes(t *testing.T) {
	all := concat(
		path("1", "a", "", 0, funnel.StepStart, funnel.StepConfirm),
		path("2", "b", "", 0, funnel.StepConfirm),
	)
	none := concat(
		path("1", "a", "", 0, funnel.StepStart),
		path("2", "b", "", 0, funnel.StepStart, funnel.StepOne),
	)
	assert.Equal(t, 1.0, CompletionRate(all))
	assert.Equal(t, 0.0, CompletionRate(none))
}

func TestEmptyPopulation(t *testing.T) {
	pack := ComputeKPIs(nil)
	assert.Zero(t, pack.Clients)
	assert.Zero(t, pack.CompletionRate)
	assert.Zero(t, pack.RestartRate)
	assert.Zero(t, pack.SequenceErrorRate)
	for _, label := range stats.TransitionLabels() {
		v, ok := pack.StepTimes[label]
		assert.True(t, ok, label)
		assert.Nil(t, v, label)
	}
}

func TestStepTimes(t *testing.T) {
	events := concat(
		// start 0, step_1 +1m, step_2 +2m, confirm +3m
		path("1", "a", "", 0, funnel.StepStart, funnel.StepOne, funnel.StepTwo, funnel.StepConfirm),
		// start 0, step_1 +1m, step_2 +2m, step_3 +3m, confirm +4m
		path("2", "b", "", 0, funnel.StepStart, funnel.StepOne, funnel.StepTwo, funnel.StepThree, funnel.StepConfirm),
	)
	// a late second confirm for client 2 stretches its completion to 10 minutes
	events = append(events, funnel.Event{ClientID: "2", VisitID: "b", Step: funnel.StepConfirm, Time: t0.Add(10 * time.Minute)})

	times := StepTimes(events)
	require.NotNil(t, times[stats.TransitionLabel(funnel.StepStart, funnel.StepOne)])
	assert.Equal(t, 1.0, *times["start_to_step_1_mean_min"])
	assert.Equal(t, 1.0, *times["step_3_to_confirm_mean_min"])
	assert.Equal(t, 1.0, *times["step_2_to_step_3_mean_min"])
	// (3 + 10) / 2
	assert.Equal(t, 6.5, *times[stats.CompletionTimeLabel])
}

func TestRestartRateUsesAllClients(t *testing.T) {
	events := concat(
		path("1", "a", "", 0, funnel.StepStart, funnel.StepStart),
		path("2", "b", "", 0, funnel.StepStart),
		path("3", "c", "", 0, funnel.StepOne),
		path("4", "d", "", 0, funnel.StepOne),
	)
	assert.Equal(t, 0.25, RestartRate(events))
}

func TestCompareArms(t *testing.T) {
	events := concat(
		path("c1", "a", funnel.VariationControl, 0, funnel.StepStart, funnel.StepConfirm),
		path("c2", "b", funnel.VariationControl, 0, funnel.StepStart),
		path("t1", "c", funnel.VariationTest, 0, funnel.StepStart, funnel.StepConfirm),
		path("t2", "d", funnel.VariationTest, 0, funnel.StepStart, funnel.StepConfirm),
		path("u1", "e", "", 0, funnel.StepStart),
	)
	cmp := CompareArms(events)
	assert.Equal(t, 2, cmp.Arms[funnel.VariationControl].Clients)
	assert.Equal(t, 0.5, cmp.Arms[funnel.VariationControl].CompletionRate)
	assert.Equal(t, 1.0, cmp.Arms[funnel.VariationTest].CompletionRate)
	assert.Equal(t, 0.5, cmp.Lift)
	assert.Equal(t, stats.StatusPromising, cmp.Status)

	assert.Equal(t, map[funnel.Variation]float64{
		funnel.VariationControl: 0.5,
		funnel.VariationTest:    1.0,
	}, VariationConversion(events))
}

func TestNoMutationOfInput(t *testing.T) {
	events := []funnel.Event{
		{ClientID: "1", VisitID: "a", Step: funnel.StepTwo, Time: t0.Add(time.Minute)},
		{ClientID: "1", VisitID: "a", Step: funnel.StepStart, Time: t0},
	}
	before := append([]funnel.Event(nil), events...)
	ComputeKPIs(events)
	assert.Equal(t, before, events)
}

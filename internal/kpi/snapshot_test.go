package kpi

import (
	"testing"
	"time"

	"abfunnel/domain/funnel"
	"abfunnel/domain/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenureGroup(t *testing.T) {
	day := 24 * time.Hour
	assert.Equal(t, funnel.TenureNew, TenureGroup(t0.Add(90*day), t0, 90))
	assert.Equal(t, funnel.TenureLongStand, TenureGroup(t0.Add(91*day), t0, 90))
	assert.Equal(t, funnel.TenureNew, TenureGroup(time.Time{}, t0, 90))
}

func TestSnapshots(t *testing.T) {
	day := 24 * time.Hour
	events := concat(
		path("1", "a", funnel.VariationTest, 0, funnel.StepStart, funnel.StepOne, funnel.StepConfirm),
		path("1", "b", funnel.VariationTest, day, funnel.StepStart),
		path("2", "c", funnel.VariationControl, 120*day, funnel.StepStart, funnel.StepOne),
		path("3", "d", funnel.VariationControl, 0, funnel.StepOne),
	)
	profiles := []funnel.ClientProfile{
		{ClientID: "1", Age: funnel.Float(29), Gender: "m"},
		{ClientID: "2", Age: funnel.Float(51), Gender: "F"},
	}

	snaps := Snapshots(events, profiles, DefaultTenureThresholdDays)
	require.Len(t, snaps, 3)

	one := snaps[0]
	assert.Equal(t, "1", one.ClientID)
	assert.Equal(t, funnel.AgeBandUnder30, one.AgeBand)
	assert.Equal(t, funnel.GenderMale, one.GenderGroup)
	assert.Equal(t, 2, one.Visits)
	assert.Equal(t, 2, one.StartsCount)
	assert.Equal(t, 1, one.ConfirmsCount)
	require.NotNil(t, one.CompletionTime)
	assert.Equal(t, 2*time.Minute, *one.CompletionTime)
	assert.Equal(t, funnel.TenureNew, one.TenureGroup)

	two := snaps[1]
	assert.Equal(t, funnel.AgeBandOver50, two.AgeBand)
	assert.Equal(t, funnel.TenureLongStand, two.TenureGroup)
	assert.Nil(t, two.CompletionTime)
	assert.Nil(t, two.LastConfirm)

	three := snaps[2]
	assert.Equal(t, funnel.AgeBandUnknown, three.AgeBand)
	assert.Equal(t, funnel.GenderUnknown, three.GenderGroup)
	assert.Nil(t, three.FirstStart)
	assert.Equal(t, funnel.TenureNew, three.TenureGroup)

	m := BehaviorMetrics(snaps)
	assert.Equal(t, 3, m.Clients)
	assert.Equal(t, 0.333, m.RetryRate)
	assert.Equal(t, 0.333, m.RestartRate)
	assert.Equal(t, 0.333, m.CompletionRate)
	require.NotNil(t, m.MeanCompletionTimeMin)
	assert.Equal(t, 2.0, *m.MeanCompletionTimeMin)
	assert.Nil(t, m.StdCompletionTimeMin, "one completer has no sample deviation")

	primary := PrimarySegments(snaps)
	assert.Equal(t, stats.PrimarySegments{
		AgeBand: funnel.AgeBandOver50, // one each, "50+" sorts first
		Gender:  funnel.GenderFemale,
		Tenure:  funnel.TenureNew,
	}, primary)
}

func TestBehaviorMetricsDeviation(t *testing.T) {
	two, four := 2*time.Minute, 4*time.Minute
	snaps := []funnel.ClientSnapshot{
		{ClientID: "1", ConfirmsCount: 1, CompletionTime: &two},
		{ClientID: "2", ConfirmsCount: 1, CompletionTime: &four},
	}
	m := BehaviorMetrics(snaps)
	assert.Equal(t, 3.0, *m.MeanCompletionTimeMin)
	// sample deviation of {2, 4}
	assert.Equal(t, 1.4, *m.StdCompletionTimeMin)
}

func TestPrimarySegmentsEmpty(t *testing.T) {
	assert.Equal(t, stats.PrimarySegments{}, PrimarySegments(nil))
}

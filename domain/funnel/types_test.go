package funnel

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"abfunnel/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStep(t *testing.T) {
	for i, name := range []string{"start", "step_1", "step_2", "step_3", "confirm"} {
		step, err := ParseStep(name)
		require.NoError(t, err)
		assert.Equal(t, i, step.Index())
		assert.Equal(t, name, step.String())
	}

	_, err := ParseStep("Start")
	assert.True(t, errors.Is(err, core.ErrUnknownStep), "matching must be case-sensitive")

	_, err = ParseStep("step_4")
	assert.True(t, errors.Is(err, core.ErrUnknownStep))
}

func TestStepNext(t *testing.T) {
	next, ok := StepThree.Next()
	assert.True(t, ok)
	assert.Equal(t, StepConfirm, next)

	_, ok = StepConfirm.Next()
	assert.False(t, ok)
}

func TestStepJSONMapKeys(t *testing.T) {
	raw, err := json.Marshal(map[Step]float64{StepStart: 1, StepConfirm: 0.5})
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":1,"confirm":0.5}`, string(raw))

	var back map[Step]float64
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, 0.5, back[StepConfirm])
}

func TestParseVariation(t *testing.T) {
	assert.Equal(t, VariationTest, ParseVariation("Test"))
	assert.Equal(t, VariationControl, ParseVariation("Control"))
	assert.Equal(t, VariationUnassigned, ParseVariation(""))
	assert.Equal(t, VariationUnassigned, ParseVariation("test"))
	assert.False(t, VariationUnassigned.IsArm())
}

func TestSessionMeasures(t *testing.T) {
	t0 := time.Date(2017, 4, 1, 10, 0, 0, 0, time.UTC)
	s := Session{VisitID: "v1", Events: []Event{
		{Step: StepOne, Time: t0.Add(time.Minute)},
		{Step: StepStart},
		{Step: StepThree, Time: t0},
	}}

	assert.Equal(t, 3, s.LogCount())
	assert.Equal(t, 3, s.Depth())
	first, ok := s.FirstTime()
	assert.True(t, ok)
	assert.Equal(t, t0, first)

	_, ok = Session{Events: []Event{{Step: StepStart}}}.FirstTime()
	assert.False(t, ok)
	assert.Equal(t, -1, Session{}.Depth())
}

func TestAgeBandAndGenderGroup(t *testing.T) {
	assert.Equal(t, AgeBandUnknown, AgeBand(nil))
	assert.Equal(t, AgeBandUnder30, AgeBand(Float(29.9)))
	assert.Equal(t, AgeBand30To50, AgeBand(Float(30)))
	assert.Equal(t, AgeBandOver50, AgeBand(Float(50)))
	assert.Equal(t, AgeBandUnknown, AgeBand(Float(-1)))

	assert.Equal(t, GenderMale, GenderGroup("M"))
	assert.Equal(t, GenderUnknown, GenderGroup("X"))
	assert.Equal(t, GenderUnknown, GenderGroup(""))
}

func TestClientVariationsFirstWins(t *testing.T) {
	events := []Event{
		{ClientID: "1", Variation: VariationTest},
		{ClientID: "2", Variation: VariationControl},
		{ClientID: "1", Variation: VariationControl},
	}
	arms := ClientVariations(events)
	assert.Equal(t, VariationTest, arms["1"])
	assert.Equal(t, VariationControl, arms["2"])
	assert.Equal(t, []string{"1", "2"}, DistinctClients(events))
}

func TestProfileClone(t *testing.T) {
	p := ClientProfile{ClientID: "1", Age: Float(40)}
	c := p.Clone()
	*c.Age = 41
	assert.Equal(t, 40.0, *p.Age)
	assert.Nil(t, c.Balance)
}

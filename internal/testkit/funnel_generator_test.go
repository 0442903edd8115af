package testkit

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"abfunnel/domain/funnel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func smallConfig() FunnelGeneratorConfig {
	config := DefaultFunnelConfig()
	config.ClientCount = 200
	return config
}

func TestFunnelDataGenerator_Deterministic(t *testing.T) {
	a := NewFunnelDataGenerator(smallConfig()).Generate()
	b := NewFunnelDataGenerator(smallConfig()).Generate()
	assert.Equal(t, a, b)

	other := smallConfig()
	other.Seed = 7
	c := NewFunnelDataGenerator(other).Generate()
	assert.NotEqual(t, a.Events, c.Events)
}

func TestFunnelDataGenerator_Shape(t *testing.T) {
	config := smallConfig()
	ds := NewFunnelDataGenerator(config).Generate()

	assert.Len(t, ds.Clients, config.ClientCount)
	assert.Len(t, ds.Profiles, config.ClientCount)
	assert.NotEmpty(t, ds.Assignments)
	assert.Less(t, len(ds.Assignments), config.ClientCount+1)

	starts := make(map[string]bool)
	for _, e := range ds.Events {
		require.True(t, e.Step.Valid())
		if e.Step == funnel.StepStart {
			starts[e.ClientID] = true
		}
		if v, ok := ds.Assignments[e.ClientID]; ok {
			assert.Equal(t, v, e.Variation)
		} else {
			assert.Equal(t, funnel.VariationUnassigned, e.Variation)
		}
		if e.HasTime() {
			assert.False(t, e.Time.Before(config.StartDate))
		}
	}
	assert.Len(t, starts, config.ClientCount, "every client starts at least once")
}

func TestFunnelDataGenerator_NoNoise(t *testing.T) {
	config := smallConfig()
	config.MultiVisitRate = 0
	config.BackwardJumpRate = 0
	config.MissingTimeRate = 0
	config.DuplicateRate = 0
	config.ControlCompletion = 1
	config.TestCompletion = 1
	ds := NewFunnelDataGenerator(config).Generate()

	assert.Len(t, ds.Events, config.ClientCount*len(funnel.Steps()))
	for i, e := range ds.Events {
		assert.Equal(t, funnel.Step(i%5), e.Step)
		assert.True(t, e.HasTime())
	}
}

func TestWriteEventsCSV(t *testing.T) {
	at := time.Date(2017, 4, 1, 9, 30, 5, 0, time.UTC)
	events := []funnel.Event{
		{ClientID: "1", VisitorID: "v", VisitID: "s", Step: funnel.StepStart, Time: at},
		{ClientID: "1", VisitorID: "v", VisitID: "s", Step: funnel.StepOne},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteEventsCSV(&buf, events))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		eventHeaders,
		{"1", "v", "s", "start", "2017-04-01 09:30:05"},
		{"1", "v", "s", "step_1", ""},
	}, records)
}

func TestWriteProfilesAndAssignments(t *testing.T) {
	age := 47.5
	var buf bytes.Buffer
	require.NoError(t, WriteProfilesCSV(&buf, []funnel.ClientProfile{{ClientID: "1", Age: &age, Gender: "F"}}))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "", "", "47.5", "F", "", "", "", ""}, records[1])

	buf.Reset()
	roster := map[string]funnel.Variation{"2": funnel.VariationTest, "1": funnel.VariationControl}
	require.NoError(t, WriteAssignmentsCSV(&buf, []string{"1", "3", "2"}, roster))
	records, err = csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{assignmentHeaders, {"1", "Control"}, {"2", "Test"}}, records)
}

func TestWriteFiles(t *testing.T) {
	dir := t.TempDir()
	ds := NewFunnelDataGenerator(smallConfig()).Generate()

	paths, err := WriteFiles(dir, ds, false)
	require.NoError(t, err)
	for _, p := range []string{paths.Events, paths.Profiles, paths.Assignments} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}

	paths, err = WriteFiles(filepath.Join(dir, "xlsx"), ds, true)
	require.NoError(t, err)
	f, err := excelize.OpenFile(paths.Events)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetList()[0])
	require.NoError(t, err)
	assert.Equal(t, eventHeaders, rows[0])
	assert.Len(t, rows, len(ds.Events)+1)
}

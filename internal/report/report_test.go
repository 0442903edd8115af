package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"abfunnel/domain/core"
	"abfunnel/domain/funnel"
	"abfunnel/domain/stats"
	"abfunnel/internal/segment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *stats.AnalysisReport {
	z, p := 0.711, 0.4773
	mean := 12.5
	return &stats.AnalysisReport{
		RunID:       core.RunID("0190a0c8-0000-7000-8000-000000000001"),
		GeneratedAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
		DatasetHash: core.HashLines([]string{"a"}),
		Params:      stats.AnalysisParams{Alpha: 0.05, LiftThreshold: 0.05},
		Events:      10,
		Clients:     4,
		Comparison: stats.ArmComparison{
			Arms: map[funnel.Variation]stats.KPIPack{
				funnel.VariationControl: {Clients: 2, CompletionRate: 0.5, StepTimes: stats.StepTimes{}},
				funnel.VariationTest:    {Clients: 2, CompletionRate: 0.6, StepTimes: stats.StepTimes{stats.CompletionTimeLabel: &mean}},
			},
			Lift:   0.1,
			Status: stats.StatusPromising,
		},
		RateTest: stats.ProportionTestResult{
			Rates:    map[funnel.Variation]float64{funnel.VariationControl: 0.5, funnel.VariationTest: 0.6},
			Sizes:    map[funnel.Variation]int{funnel.VariationControl: 100, funnel.VariationTest: 100},
			NullLift: 0.05, Lift: 0.1, Z: &z, P: &p, Critical: 1.96, Alpha: 0.05,
			Verdict: stats.VerdictFailToReject,
		},
		TimeTest: stats.MeanTestResult{
			Means:   map[funnel.Variation]*float64{},
			Sizes:   map[funnel.Variation]int{},
			Alpha:   0.05,
			Verdict: stats.VerdictNotAvailable,
			Reason:  "need at least two completers per arm",
		},
		StepReachRates: map[funnel.Step]float64{funnel.StepStart: 1},
		SessionRules:   []stats.SessionRuleMetrics{{Rule: "first", Label: "First Session", Clients: 3, ConversionRate: 0.667}},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatText, "TEXT": FormatText, "json": FormatJSON, "md": FormatMarkdown, "html": FormatHTML} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("pdf")
	assert.Error(t, err)
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleReport(), FormatText))
	out := buf.String()

	assert.Contains(t, out, "A/B Funnel Analysis")
	assert.Contains(t, out, "Completion rate: two-proportion z-test")
	assert.Contains(t, out, "z = 0.711, p = 0.4773")
	assert.Contains(t, out, "Verdict at alpha 0.05: fail to reject")
	assert.Contains(t, out, "Verdict: not available (need at least two completers per arm)")
	assert.Contains(t, out, "Completion lift 10.0 points: Promising")
	assert.Contains(t, out, "12.5")
	assert.Contains(t, out, "First Session")
}

func TestRenderJSONRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleReport(), FormatJSON))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "0190a0c8-0000-7000-8000-000000000001", decoded["run_id"])
	rate := decoded["rate_test"].(map[string]any)
	assert.Equal(t, "fail to reject", rate["verdict"])
	assert.Nil(t, decoded["time_test"].(map[string]any)["p"])
	reach := decoded["step_reach_rates"].(map[string]any)
	assert.Equal(t, 1.0, reach["start"])
}

func TestRenderMarkdownAndHTML(t *testing.T) {
	var md bytes.Buffer
	require.NoError(t, Render(&md, sampleReport(), FormatMarkdown))
	assert.Contains(t, md.String(), "# A/B Funnel Analysis")
	assert.Contains(t, md.String(), "## Funnel KPIs")
	assert.Contains(t, md.String(), "| Metric | Control | Test |")

	var page bytes.Buffer
	require.NoError(t, Render(&page, sampleReport(), FormatHTML))
	assert.Contains(t, page.String(), "<title>A/B Funnel Analysis</title>")
	assert.Contains(t, page.String(), "<table>")
	assert.Contains(t, page.String(), "<h2")
}

func TestRenderSegment(t *testing.T) {
	chi, p := 5.4, 0.0201
	res := &segment.Result{
		Step:           "start",
		NextStep:       "step_1",
		VariationSplit: map[string]int{"Control": 30, "Test": 30},
		AgeBands:       map[string]int{funnel.AgeBandUnder30: 60},
		Test: segment.ChiSquareResult{
			Label: "Variation x reached step_1",
			Table: segment.Contingency{
				Rows: []string{"Control", "Test"}, Cols: []string{"false", "true"},
				Counts: [][]int{{10, 20}, {20, 10}},
			},
			Statistic: &chi, P: &p, DF: 1, Verdict: stats.VerdictReject,
		},
		DropOffByAge: map[funnel.Variation]map[string]float64{funnel.VariationControl: {funnel.AgeBandUnder30: 0.25}},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderSegment(&buf, res, FormatText))
	out := buf.String()
	assert.Contains(t, out, "Segment at start")
	assert.Contains(t, out, "chi2 = 5.400, dof = 1, p = 0.0201")
	assert.Contains(t, out, "Verdict: reject")
	assert.Contains(t, out, "Drop-off by age band")
	assert.Contains(t, out, "25.0%")
}

func TestRenderSnapshots(t *testing.T) {
	at := time.Date(2017, 4, 1, 9, 0, 0, 0, time.UTC)
	d := 90 * time.Second
	snaps := []funnel.ClientSnapshot{
		{ClientID: "1", Variation: funnel.VariationTest, AgeBand: funnel.AgeBandOver50, GenderGroup: "F", TenureGroup: funnel.TenureNew,
			Visits: 1, StartsCount: 1, ConfirmsCount: 1, FirstStart: &at, LastConfirm: &at, CompletionTime: &d},
		{ClientID: "2", Variation: funnel.VariationControl, AgeBand: funnel.AgeBandUnknown, GenderGroup: "U", TenureGroup: funnel.TenureNew},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderSnapshots(&buf, snaps, FormatText))
	assert.Contains(t, buf.String(), "2017-04-01 09:00:00")
	assert.Contains(t, buf.String(), "1.5")
	assert.Contains(t, buf.String(), notAvailable)

	buf.Reset()
	require.NoError(t, RenderSnapshots(&buf, snaps, FormatJSON))
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded, 2)
	assert.Equal(t, "50+", decoded[0]["age_band"])
}

package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"abfunnel/domain/funnel"
	"abfunnel/domain/stats"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Render writes the full analysis report
func Render(w io.Writer, r *stats.AnalysisReport, format Format) error {
	return Write(w, AnalysisDocument(r), format)
}

// AnalysisDocument lays an analysis report out as sections
func AnalysisDocument(r *stats.AnalysisReport) Document {
	doc := Document{Title: "A/B Funnel Analysis", Payload: r}
	doc.Sections = append(doc.Sections,
		runSection(r),
		kpiSection(r.Comparison),
		rateTestSection(r.RateTest),
		timeTestSection(r.TimeTest),
		behaviorSection(r),
		reachSection(r),
	)
	if len(r.SessionRules) > 0 {
		doc.Sections = append(doc.Sections, SessionRulesSection(r.SessionRules))
	}
	return doc
}

func runSection(r *stats.AnalysisReport) Section {
	rule := r.Params.SessionRule
	if rule == "" {
		rule = "all sessions"
	}
	s := Section{
		Title: "Run",
		Rows: []table.Row{
			{"Run ID", r.RunID.String()},
			{"Generated", r.GeneratedAt.Format(time.RFC3339)},
			{"Dataset", r.DatasetHash.Short()},
			{"Events", r.Events},
			{"Clients", r.Clients},
			{"Session rule", rule},
			{"Alpha", num(r.Params.Alpha, 2)},
			{"Null lift", num(r.Params.LiftThreshold, 3)},
		},
	}
	if n := len(r.VariationConflicts); n > 0 {
		s.Notes = append(s.Notes, fmt.Sprintf("%d clients appeared in both arms; their first observed arm was kept", n))
	}
	return s
}

func kpiSection(c stats.ArmComparison) Section {
	control, test := c.Arms[funnel.VariationControl], c.Arms[funnel.VariationTest]
	s := Section{
		Title:  "Funnel KPIs",
		Header: table.Row{"Metric", "Control", "Test"},
		Rows: []table.Row{
			{"Clients", control.Clients, test.Clients},
			{"Completion rate", percent(control.CompletionRate), percent(test.CompletionRate)},
			{"Restart rate", percent(control.RestartRate), percent(test.RestartRate)},
			{"Sequence error rate", percent(control.SequenceErrorRate), percent(test.SequenceErrorRate)},
		},
	}
	for _, step := range funnel.Steps() {
		s.Rows = append(s.Rows, table.Row{"Reached " + step.String(),
			percent(control.StepReachRates[step]), percent(test.StepReachRates[step])})
	}
	for _, label := range stats.TransitionLabels() {
		s.Rows = append(s.Rows, table.Row{label,
			numPtr(control.StepTimes[label], stats.MinutesPlaces), numPtr(test.StepTimes[label], stats.MinutesPlaces)})
	}
	s.Notes = append(s.Notes, fmt.Sprintf("Completion lift %s points: %s", num(c.Lift*100, 1), c.Status))
	return s
}

func rateTestSection(t stats.ProportionTestResult) Section {
	s := Section{
		Title:  "Completion rate: two-proportion z-test",
		Header: table.Row{"Arm", "n", "Completed", "Rate"},
	}
	for _, arm := range funnel.Arms() {
		s.Rows = append(s.Rows, table.Row{string(arm), t.Sizes[arm], t.Successes[arm], num(t.Rates[arm], stats.RatePlaces)})
	}
	s.Notes = append(s.Notes,
		fmt.Sprintf("H0: Test - Control = %s, observed %s", num(t.NullLift, 3), num(t.Lift, 3)),
		fmt.Sprintf("z = %s, p = %s, critical = ±%s", numPtr(t.Z, stats.StatPlaces), numPtr(t.P, stats.PValuePlaces), num(t.Critical, stats.StatPlaces)),
		verdictNote(t.Verdict, t.Alpha, t.Reason),
	)
	return s
}

func timeTestSection(t stats.MeanTestResult) Section {
	s := Section{
		Title:  "Completion time: Welch t-test",
		Header: table.Row{"Arm", "Completers", "Mean minutes"},
	}
	for _, arm := range funnel.Arms() {
		s.Rows = append(s.Rows, table.Row{string(arm), t.Sizes[arm], numPtr(t.Means[arm], stats.MinutesPlaces)})
	}
	s.Notes = append(s.Notes,
		fmt.Sprintf("t = %s, df = %s, p = %s, critical = ±%s", numPtr(t.T, stats.StatPlaces), numPtr(t.DF, stats.StatPlaces),
			numPtr(t.P, stats.PValuePlaces), numPtr(t.Critical, stats.StatPlaces)),
		"Cohen's d = "+numPtr(t.EffectSize, stats.StatPlaces),
		verdictNote(t.Verdict, t.Alpha, t.Reason),
	)
	return s
}

func verdictNote(v stats.Verdict, alpha float64, reason string) string {
	if v == stats.VerdictNotAvailable {
		return fmt.Sprintf("Verdict: %s (%s)", v, reason)
	}
	return fmt.Sprintf("Verdict at alpha %s: %s", num(alpha, 2), v)
}

func behaviorSection(r *stats.AnalysisReport) Section {
	b, p := r.Behavior, r.Primary
	return Section{
		Title: "Client behavior",
		Rows: []table.Row{
			{"Clients", b.Clients},
			{"Retry rate", percent(b.RetryRate)},
			{"Restart rate", percent(b.RestartRate)},
			{"Completion rate", percent(b.CompletionRate)},
			{"Mean completion minutes", numPtr(b.MeanCompletionTimeMin, stats.MinutesPlaces)},
			{"Std completion minutes", numPtr(b.StdCompletionTimeMin, stats.MinutesPlaces)},
			{"Primary age band", p.AgeBand},
			{"Primary gender", p.Gender},
			{"Primary tenure", p.Tenure},
		},
	}
}

func reachSection(r *stats.AnalysisReport) Section {
	s := Section{
		Title:  "Overall step reach",
		Header: table.Row{"Step", "Reached"},
	}
	for _, step := range funnel.Steps() {
		s.Rows = append(s.Rows, table.Row{step.String(), percent(r.StepReachRates[step])})
	}
	for _, arm := range funnel.Arms() {
		if rate, ok := r.VariationConversion[arm]; ok {
			s.Notes = append(s.Notes, fmt.Sprintf("%s client conversion: %s", arm, percent(rate)))
		}
	}
	return s
}

// RenderKPIs writes the per-arm KPI table and the lift status
func RenderKPIs(w io.Writer, c stats.ArmComparison, format Format) error {
	return Write(w, Document{
		Title:    "Funnel KPIs by Variation",
		Sections: []Section{kpiSection(c)},
		Payload:  c,
	}, format)
}

// SessionRulesSection compares the three session-selection rules
func SessionRulesSection(rules []stats.SessionRuleMetrics) Section {
	s := Section{
		Title:  "Session selection rules",
		Header: table.Row{"Rule", "Clients", "Conversion", "Mean min", "Mode min", "Std min", "Corr(sessions, converted)"},
	}
	for _, m := range rules {
		s.Rows = append(s.Rows, table.Row{
			m.Label,
			strconv.Itoa(m.Clients),
			num(m.ConversionRate, stats.RatePlaces),
			numPtr(m.MeanTimeToConvertMin, stats.MinutesPlaces),
			numPtr(m.ModeTimeToConvertMin, stats.MinutesPlaces),
			numPtr(m.StdTimeToConvertMin, stats.MinutesPlaces),
			numPtr(m.CorrSessionsVsConversion, stats.RatePlaces),
		})
	}
	return s
}

// RenderSessionRules writes only the session-rule comparison
func RenderSessionRules(w io.Writer, rules []stats.SessionRuleMetrics, format Format) error {
	return Write(w, Document{
		Title:    "Session Rule Comparison",
		Sections: []Section{SessionRulesSection(rules)},
		Payload:  rules,
	}, format)
}

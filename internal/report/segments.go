package report

import (
	"fmt"
	"io"

	"abfunnel/domain/funnel"
	"abfunnel/domain/stats"
	"abfunnel/internal/segment"

	"github.com/jedib0t/go-pretty/v6/table"
)

// RenderSegment writes a segment breakdown with its chi-square test
func RenderSegment(w io.Writer, res *segment.Result, format Format) error {
	title := "Segment at " + res.Step
	if res.FirstOnly {
		title += " (first sessions)"
	}
	doc := Document{Title: title, Payload: res}
	doc.Sections = append(doc.Sections,
		countSection("Variation split", res.VariationSplit),
	)
	if len(res.StepDistribution) > 0 {
		doc.Sections = append(doc.Sections, countSection("Step distribution", res.StepDistribution))
	}
	doc.Sections = append(doc.Sections,
		countSection("Age bands", res.AgeBands),
		countSection("Gender", res.Genders),
		countSection("Balance quartiles", res.BalanceQuartiles),
		countSection("Logon activity", res.LogonFlags),
		countSection("Call activity", res.CallFlags),
		chiSquareSection(res.Test),
	)
	if len(res.DropOffByAge) > 0 {
		doc.Sections = append(doc.Sections, dropOffSection("Drop-off by age band", res.DropOffByAge))
	}
	if len(res.DropOffByBalance) > 0 {
		doc.Sections = append(doc.Sections, dropOffSection("Drop-off by balance quartile", res.DropOffByBalance))
	}
	return Write(w, doc, format)
}

func countSection(title string, counts map[string]int) Section {
	total := 0
	for _, n := range counts {
		total += n
	}
	s := Section{Title: title, Header: table.Row{"Group", "Clients", "Share"}}
	for _, k := range sortedKeys(counts) {
		label := k
		if label == "" {
			label = "unassigned"
		}
		s.Rows = append(s.Rows, table.Row{label, counts[k], percent(stats.Ratio(counts[k], total))})
	}
	return s
}

func chiSquareSection(t segment.ChiSquareResult) Section {
	s := Section{Title: "Chi-square: " + t.Label}
	if len(t.Table.Cols) > 0 {
		s.Header = append(table.Row{""}, toRow(t.Table.Cols)...)
		for i, label := range t.Table.Rows {
			row := table.Row{label}
			for _, n := range t.Table.Counts[i] {
				row = append(row, n)
			}
			s.Rows = append(s.Rows, row)
		}
	}
	s.Notes = append(s.Notes,
		fmt.Sprintf("chi2 = %s, dof = %d, p = %s", numPtr(t.Statistic, stats.StatPlaces), t.DF, numPtr(t.P, stats.PValuePlaces)))
	if t.Verdict == stats.VerdictNotAvailable {
		s.Notes = append(s.Notes, fmt.Sprintf("Verdict: %s (%s)", t.Verdict, t.Reason))
	} else {
		s.Notes = append(s.Notes, "Verdict: "+string(t.Verdict))
	}
	return s
}

func dropOffSection(title string, rates map[funnel.Variation]map[string]float64) Section {
	groups := make(map[string]bool)
	for _, byGroup := range rates {
		for g := range byGroup {
			groups[g] = true
		}
	}
	s := Section{Title: title, Header: table.Row{"Group", "Control", "Test"}}
	for _, g := range sortedKeys(groups) {
		row := table.Row{g}
		for _, arm := range funnel.Arms() {
			if rate, ok := rates[arm][g]; ok {
				row = append(row, percent(rate))
			} else {
				row = append(row, notAvailable)
			}
		}
		s.Rows = append(s.Rows, row)
	}
	return s
}

func toRow(values []string) table.Row {
	row := make(table.Row, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}

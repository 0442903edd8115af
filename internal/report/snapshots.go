package report

import (
	"io"
	"strconv"
	"time"

	"abfunnel/domain/funnel"
	"abfunnel/domain/stats"

	"github.com/jedib0t/go-pretty/v6/table"
)

// RenderSnapshots writes one row per client
func RenderSnapshots(w io.Writer, snapshots []funnel.ClientSnapshot, format Format) error {
	s := Section{
		Title: "Clients",
		Header: table.Row{"Client", "Variation", "Age band", "Gender", "Tenure", "Visits",
			"Starts", "Confirms", "First start", "Last confirm", "Completion min"},
	}
	for _, snap := range snapshots {
		completion := notAvailable
		if m, ok := snap.CompletionMinutes(); ok {
			completion = num(stats.Round(m, stats.MinutesPlaces), stats.MinutesPlaces)
		}
		s.Rows = append(s.Rows, table.Row{
			snap.ClientID,
			string(snap.Variation),
			snap.AgeBand,
			snap.GenderGroup,
			snap.TenureGroup,
			strconv.Itoa(snap.Visits),
			strconv.Itoa(snap.StartsCount),
			strconv.Itoa(snap.ConfirmsCount),
			timestamp(snap.FirstStart),
			timestamp(snap.LastConfirm),
			completion,
		})
	}
	return Write(w, Document{Title: "Client Snapshots", Sections: []Section{s}, Payload: snapshots}, format)
}

func timestamp(t *time.Time) string {
	if t == nil {
		return notAvailable
	}
	return t.Format("2006-01-02 15:04:05")
}

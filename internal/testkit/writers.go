package testkit

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"abfunnel/domain/funnel"

	"github.com/xuri/excelize/v2"
)

// TimestampLayout is how generated timestamps are written
const TimestampLayout = "2006-01-02 15:04:05"

// File names written by WriteFiles
const (
	EventsFile      = "df_final_web_data.csv"
	ProfilesFile    = "df_final_demo.csv"
	AssignmentsFile = "df_final_experiment_clients.csv"
	EventsWorkbook  = "df_final_web_data.xlsx"
)

var (
	eventHeaders      = []string{"client_id", "visitor_id", "visit_id", "process_step", "date_time"}
	profileHeaders    = []string{"client_id", "clnt_tenure_yr", "clnt_tenure_mnth", "clnt_age", "gendr", "num_accts", "bal", "calls_6_mnth", "logons_6_mnth"}
	assignmentHeaders = []string{"client_id", "Variation"}
)

// Paths locates the files of a written dataset
type Paths struct {
	Events      string
	Profiles    string
	Assignments string
}

// WriteFiles writes the dataset into dir as three CSV files, or an XLSX event
// workbook plus CSV profiles and roster when xlsx is set
func WriteFiles(dir string, ds Dataset, xlsx bool) (Paths, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	paths := Paths{
		Events:      filepath.Join(dir, EventsFile),
		Profiles:    filepath.Join(dir, ProfilesFile),
		Assignments: filepath.Join(dir, AssignmentsFile),
	}

	if xlsx {
		paths.Events = filepath.Join(dir, EventsWorkbook)
		if err := WriteEventsXLSX(paths.Events, ds.Events); err != nil {
			return Paths{}, err
		}
	} else if err := writeFile(paths.Events, func(w io.Writer) error { return WriteEventsCSV(w, ds.Events) }); err != nil {
		return Paths{}, err
	}
	if err := writeFile(paths.Profiles, func(w io.Writer) error { return WriteProfilesCSV(w, ds.Profiles) }); err != nil {
		return Paths{}, err
	}
	if err := writeFile(paths.Assignments, func(w io.Writer) error {
		return WriteAssignmentsCSV(w, ds.Clients, ds.Assignments)
	}); err != nil {
		return Paths{}, err
	}
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func eventRecord(e funnel.Event) []string {
	ts := ""
	if e.HasTime() {
		ts = e.Time.Format(TimestampLayout)
	}
	return []string{e.ClientID, e.VisitorID, e.VisitID, e.Step.String(), ts}
}

// WriteEventsCSV writes the web log without a variation column; the roster carries it
func WriteEventsCSV(w io.Writer, events []funnel.Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(eventHeaders); err != nil {
		return err
	}
	for _, e := range events {
		if err := cw.Write(eventRecord(e)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEventsXLSX writes the web log to the first sheet of a new workbook
func WriteEventsXLSX(path string, events []funnel.Event) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	write := func(row int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		cells := make([]interface{}, len(values))
		for i, v := range values {
			cells[i] = v
		}
		return f.SetSheetRow(sheet, cell, &cells)
	}

	if err := write(1, eventHeaders); err != nil {
		return err
	}
	for i, e := range events {
		if err := write(i+2, eventRecord(e)); err != nil {
			return err
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// WriteProfilesCSV writes demographics under the abbreviated export headers
func WriteProfilesCSV(w io.Writer, profiles []funnel.ClientProfile) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(profileHeaders); err != nil {
		return err
	}
	for _, p := range profiles {
		record := []string{
			p.ClientID,
			optional(p.TenureYears),
			optional(p.TenureMonths),
			optional(p.Age),
			p.Gender,
			optional(p.NumberOfAccounts),
			optional(p.Balance),
			optional(p.Calls6Months),
			optional(p.Logons6Months),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAssignmentsCSV writes the roster in client order; unassigned clients are omitted
func WriteAssignmentsCSV(w io.Writer, clients []string, roster map[string]funnel.Variation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(assignmentHeaders); err != nil {
		return err
	}
	for _, c := range clients {
		v, ok := roster[c]
		if !ok {
			continue
		}
		if err := cw.Write([]string{c, string(v)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func optional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

package dataset

import (
	"sort"

	"abfunnel/domain/core"
)

// RawRowData represents a row of raw cells keyed by column header
type RawRowData map[string]string

// Table is a schema-less tabular input as read from CSV, XLSX or a query
type Table struct {
	Headers []string     // Column headers in file order
	Rows    []RawRowData // Data rows
}

// HasColumn reports whether the header row contains name
func (t *Table) HasColumn(name string) bool {
	for _, h := range t.Headers {
		if h == name {
			return true
		}
	}
	return false
}

// RequireColumns fails with every missing column named, so a bad export is fixed in one pass
func (t *Table) RequireColumns(table string, columns ...string) error {
	var missing []string
	for _, c := range columns {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return core.NewMissingColumnError(table, missing)
	}
	return nil
}

// Rename returns a copy of the table with headers mapped through renames.
// Columns absent from the map keep their names.
func (t *Table) Rename(renames map[string]string) *Table {
	out := &Table{
		Headers: make([]string, len(t.Headers)),
		Rows:    make([]RawRowData, len(t.Rows)),
	}
	for i, h := range t.Headers {
		out.Headers[i] = renameOne(h, renames)
	}
	for i, row := range t.Rows {
		renamed := make(RawRowData, len(row))
		for k, v := range row {
			renamed[renameOne(k, renames)] = v
		}
		out.Rows[i] = renamed
	}
	return out
}

// MapHeaders applies fn to every header and row key
func (t *Table) MapHeaders(fn func(string) string) *Table {
	renames := make(map[string]string, len(t.Headers))
	for _, h := range t.Headers {
		renames[h] = fn(h)
	}
	return t.Rename(renames)
}

func renameOne(name string, renames map[string]string) string {
	if to, ok := renames[name]; ok {
		return to
	}
	return name
}

// NullRate is the share of empty cells in one column
type NullRate struct {
	Column string  `json:"column"`
	Rate   float64 `json:"null_rate"`
}

// NullSummary returns the null rate per column, highest first; isNull decides what counts as empty
func (t *Table) NullSummary(isNull func(string) bool) []NullRate {
	rates := make([]NullRate, 0, len(t.Headers))
	for _, h := range t.Headers {
		nulls := 0
		for _, row := range t.Rows {
			v, ok := row[h]
			if !ok || isNull(v) {
				nulls++
			}
		}
		rate := 0.0
		if len(t.Rows) > 0 {
			rate = float64(nulls) / float64(len(t.Rows))
		}
		rates = append(rates, NullRate{Column: h, Rate: rate})
	}
	sort.SliceStable(rates, func(i, j int) bool { return rates[i].Rate > rates[j].Rate })
	return rates
}

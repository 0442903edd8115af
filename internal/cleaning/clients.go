package cleaning

import (
	"math"
	"sort"
	"strings"

	"abfunnel/adapters/datareadiness/coercer"
	"abfunnel/domain/dataset"
	"abfunnel/domain/funnel"

	"github.com/montanaflynn/stats"
)

// ProfileParseStats counts cells that could not be coerced and became null
type ProfileParseStats struct {
	Rows        int                        `json:"rows"`
	Unparseable map[funnel.NumericField]int `json:"unparseable"`
}

// ParseProfiles validates the profile schema and coerces every numeric column.
// Headers are expected in canonical form; apply ProfileColumnRenames first.
func ParseProfiles(table *dataset.Table, c *coercer.TypeCoercer) ([]funnel.ClientProfile, ProfileParseStats, error) {
	st := ProfileParseStats{Unparseable: make(map[funnel.NumericField]int)}
	if err := table.RequireColumns(TableProfiles, RequiredProfileColumns()...); err != nil {
		return nil, st, err
	}

	profiles := make([]funnel.ClientProfile, 0, len(table.Rows))
	for _, row := range table.Rows {
		p := funnel.ClientProfile{
			ClientID: c.ID(row[ColClientID]),
			Gender:   strings.ToUpper(c.String(row[ColGender])),
		}
		for _, f := range funnel.NumericFields() {
			v, ok := c.Float(row[string(f)])
			if !ok {
				st.Unparseable[f]++
			}
			*p.Field(f) = v
		}
		profiles = append(profiles, p)
	}
	st.Rows = len(profiles)
	return profiles, st, nil
}

// FillReport records what CleanProfiles substituted
type FillReport struct {
	Medians     map[funnel.NumericField]float64 `json:"medians"`
	Filled      map[funnel.NumericField]int     `json:"filled"`
	GenderMode  string                          `json:"gender_mode"`
	GenderFills int                             `json:"gender_fills"`
	Folded      int                             `json:"folded_x_to_u"`
}

// CleanProfiles fills numeric nulls with the column median and gender nulls with the
// modal gender, folds X into U and truncates the count columns. The input is not
// modified and a second pass changes nothing.
func CleanProfiles(profiles []funnel.ClientProfile) ([]funnel.ClientProfile, FillReport) {
	report := FillReport{
		Medians: make(map[funnel.NumericField]float64),
		Filled:  make(map[funnel.NumericField]int),
	}

	out := make([]funnel.ClientProfile, len(profiles))
	for i, p := range profiles {
		out[i] = p.Clone()
	}

	for _, f := range funnel.NumericFields() {
		var present []float64
		for i := range out {
			if v := *out[i].Field(f); v != nil {
				present = append(present, *v)
			}
		}
		median, err := stats.Median(present)
		if err != nil {
			// all null: nothing to fill from
			continue
		}
		report.Medians[f] = median
		for i := range out {
			slot := out[i].Field(f)
			if *slot == nil {
				*slot = funnel.Float(median)
				report.Filled[f]++
			}
		}
	}

	report.GenderMode = genderMode(out)
	for i := range out {
		g := strings.ToUpper(strings.TrimSpace(out[i].Gender))
		if g == "" {
			g = report.GenderMode
			report.GenderFills++
		}
		if g == funnel.GenderOther {
			g = funnel.GenderUnknown
			report.Folded++
		}
		out[i].Gender = g
	}

	for _, f := range funnel.IntegerFields() {
		for i := range out {
			if v := *out[i].Field(f); v != nil {
				*out[i].Field(f) = funnel.Float(math.Trunc(*v))
			}
		}
	}

	return out, report
}

// genderMode returns the most frequent non-empty gender, smallest code on ties, U when none
func genderMode(profiles []funnel.ClientProfile) string {
	counts := make(map[string]int)
	for _, p := range profiles {
		if g := strings.ToUpper(strings.TrimSpace(p.Gender)); g != "" {
			counts[g]++
		}
	}
	if len(counts) == 0 {
		return funnel.GenderUnknown
	}
	codes := make([]string, 0, len(counts))
	for g := range counts {
		codes = append(codes, g)
	}
	sort.Strings(codes)
	best := codes[0]
	for _, g := range codes[1:] {
		if counts[g] > counts[best] {
			best = g
		}
	}
	return best
}

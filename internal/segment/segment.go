// Package segment profiles the clients seen at one funnel step and tests whether
// progression depends on the experiment arm.
package segment

import (
	"fmt"
	"sort"
	"strings"

	"abfunnel/domain/funnel"
	"abfunnel/domain/stats"
	"abfunnel/internal/session"

	"gonum.org/v1/gonum/stat"
)

// AllSteps segments every step at once, one row per client and step
const AllSteps = "all"

// Engagement and balance labels
const (
	LogonActive         = "active"
	LogonInactive       = "inactive"
	CallSupportHeavy    = "support-heavy"
	CallLowTouch        = "low-touch"
	BalanceUnknown      = "unknown"
	BalanceLow          = "Low"
	BalanceMedium       = "Medium"
	BalanceHigh         = "High"
	BalanceHighest      = "Highest"
	activeLogonMinimum  = 1
	supportCallsMinimum = 2
)

// Options narrows the population before segmenting
type Options struct {
	FirstOnly bool    // only the first session of multi-visit clients
	Alpha     float64 // significance level for the chi-square test
}

// Row is one segmented client (or client and step for AllSteps)
type Row struct {
	ClientID        string           `json:"client_id"`
	Variation       funnel.Variation `json:"variation"`
	Step            funnel.Step      `json:"process_step"`
	AgeBand         string           `json:"age_band"`
	GenderGroup     string           `json:"gender_group"`
	BalanceQuartile string           `json:"bal_quartile"`
	LogonFlag       string           `json:"logon_flag"`
	CallFlag        string           `json:"call_flag"`
	Converted       bool             `json:"converted"`
	ReachedNext     bool             `json:"reached_next"`
}

// Result is the segment table with its breakdowns and the independence test
type Result struct {
	Step             string                                  `json:"step"`
	NextStep         string                                  `json:"next_step,omitempty"`
	FirstOnly        bool                                    `json:"first_only"`
	Rows             []Row                                   `json:"rows"`
	VariationSplit   map[string]int                          `json:"variation_split"`
	StepDistribution map[string]int                          `json:"step_distribution,omitempty"`
	AgeBands         map[string]int                          `json:"age_bands"`
	Genders          map[string]int                          `json:"genders"`
	BalanceQuartiles map[string]int                          `json:"balance_quartiles"`
	LogonFlags       map[string]int                          `json:"logon_flags"`
	CallFlags        map[string]int                          `json:"call_flags"`
	Test             ChiSquareResult                         `json:"chi_square"`
	DropOffByAge     map[funnel.Variation]map[string]float64 `json:"drop_off_by_age_band,omitempty"`
	DropOffByBalance map[funnel.Variation]map[string]float64 `json:"drop_off_by_balance_quartile,omitempty"`
}

// ParseStepSelector accepts a step name in any case or "all"
func ParseStepSelector(s string) (funnel.Step, bool, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == AllSteps {
		return 0, true, nil
	}
	step, err := funnel.ParseStep(s)
	if err != nil {
		return 0, false, err
	}
	return step, false, nil
}

// Segment builds the rows at selector (a step name or "all") for clients in either
// arm, joins demographics and runs the matching chi-square test: progression to the
// next step for intermediate steps, conversion for confirm, arm by step for all.
func Segment(events []funnel.Event, profiles []funnel.ClientProfile, selector string, opts Options) (*Result, error) {
	step, all, err := ParseStepSelector(selector)
	if err != nil {
		return nil, err
	}
	if opts.Alpha == 0 {
		opts.Alpha = stats.DefaultAlpha
	}

	base := events
	if opts.FirstOnly {
		multi := session.FilterClients(events, session.MultiVisitClients(events))
		if base, err = session.SelectPerClient(multi, session.RuleFirst); err != nil {
			return nil, err
		}
	}

	res := &Result{Step: selector, FirstOnly: opts.FirstOnly}
	if all {
		res.Step = AllSteps
	} else {
		res.Step = step.String()
		if next, ok := step.Next(); ok {
			res.NextStep = next.String()
		}
	}

	res.Rows = buildRows(base, profiles, step, all)
	summarize(res, all)

	switch {
	case all:
		arms, steps := make([]string, len(res.Rows)), make([]string, len(res.Rows))
		for i, r := range res.Rows {
			arms[i], steps[i] = string(r.Variation), r.Step.String()
		}
		res.Test = ChiSquare("variation x process_step", Crosstab(arms, steps, armLabels()), opts.Alpha)
	case step == funnel.StepConfirm:
		res.Test = ChiSquare("variation x converted", crosstabFlag(res.Rows, func(r Row) bool { return r.Converted }), opts.Alpha)
	default:
		res.Test = ChiSquare(fmt.Sprintf("variation x reached %s", res.NextStep), crosstabFlag(res.Rows, func(r Row) bool { return r.ReachedNext }), opts.Alpha)
		res.DropOffByAge = dropOff(res.Rows, func(r Row) string { return r.AgeBand })
		res.DropOffByBalance = dropOff(res.Rows, func(r Row) string { return r.BalanceQuartile })
	}
	return res, nil
}

func buildRows(base []funnel.Event, profiles []funnel.ClientProfile, step funnel.Step, all bool) []Row {
	reachedNext := make(map[string]bool)
	if next, ok := step.Next(); ok && !all {
		for _, e := range base {
			if e.Step == next {
				reachedNext[e.ClientID] = true
			}
		}
	}

	type key struct {
		client string
		step   funnel.Step
	}
	seen := make(map[key]bool)
	var picked []funnel.Event
	for _, e := range base {
		if !e.Variation.IsArm() || (!all && e.Step != step) {
			continue
		}
		k := key{client: e.ClientID}
		if all {
			k.step = e.Step
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		picked = append(picked, e)
	}

	index := funnel.IndexProfiles(profiles)
	var balances []float64
	for _, e := range picked {
		if p, ok := index[e.ClientID]; ok && p.Balance != nil {
			balances = append(balances, *p.Balance)
		}
	}
	quartile := BalanceQuartiles(balances)

	rows := make([]Row, 0, len(picked))
	for _, e := range picked {
		p, hasProfile := index[e.ClientID]
		r := Row{
			ClientID:        e.ClientID,
			Variation:       e.Variation,
			Step:            e.Step,
			AgeBand:         funnel.AgeBandUnknown,
			GenderGroup:     funnel.GenderUnknown,
			BalanceQuartile: BalanceUnknown,
			LogonFlag:       LogonInactive,
			CallFlag:        CallLowTouch,
			Converted:       e.Step == funnel.StepConfirm,
			ReachedNext:     reachedNext[e.ClientID],
		}
		if hasProfile {
			r.AgeBand = funnel.AgeBand(p.Age)
			r.GenderGroup = funnel.GenderGroup(p.Gender)
			if p.Balance != nil {
				r.BalanceQuartile = quartile(*p.Balance)
			}
			if p.Logons6Months != nil && *p.Logons6Months >= activeLogonMinimum {
				r.LogonFlag = LogonActive
			}
			if p.Calls6Months != nil && *p.Calls6Months >= supportCallsMinimum {
				r.CallFlag = CallSupportHeavy
			}
		}
		rows = append(rows, r)
	}
	return rows
}

// BalanceQuartiles returns a labeller cutting balances at their quartiles. The lowest
// bin is closed on both ends, the others on the right only. When two cut points
// coincide every balance is unknown.
func BalanceQuartiles(balances []float64) func(float64) string {
	unknown := func(float64) string { return BalanceUnknown }
	if len(balances) == 0 {
		return unknown
	}
	sorted := append([]float64(nil), balances...)
	sort.Float64s(sorted)

	edges := []float64{sorted[0]}
	for _, q := range []float64{0.25, 0.5, 0.75} {
		edges = append(edges, stat.Quantile(q, stat.LinInterp, sorted, nil))
	}
	edges = append(edges, sorted[len(sorted)-1])
	for i := 1; i < len(edges); i++ {
		if edges[i] <= edges[i-1] {
			return unknown
		}
	}

	labels := []string{BalanceLow, BalanceMedium, BalanceHigh, BalanceHighest}
	return func(v float64) string {
		if v < edges[0] || v > edges[4] {
			return BalanceUnknown
		}
		for i := 1; i < len(edges); i++ {
			if v <= edges[i] {
				return labels[i-1]
			}
		}
		return BalanceUnknown
	}
}

func summarize(res *Result, all bool) {
	res.VariationSplit = make(map[string]int)
	res.AgeBands = make(map[string]int)
	res.Genders = make(map[string]int)
	res.BalanceQuartiles = make(map[string]int)
	res.LogonFlags = make(map[string]int)
	res.CallFlags = make(map[string]int)
	if all {
		res.StepDistribution = make(map[string]int)
	}
	for _, r := range res.Rows {
		res.VariationSplit[string(r.Variation)]++
		res.AgeBands[r.AgeBand]++
		res.Genders[r.GenderGroup]++
		res.BalanceQuartiles[r.BalanceQuartile]++
		res.LogonFlags[r.LogonFlag]++
		res.CallFlags[r.CallFlag]++
		if all {
			res.StepDistribution[r.Step.String()]++
		}
	}
}

func armLabels() []string {
	arms := funnel.Arms()
	out := make([]string, len(arms))
	for i, a := range arms {
		out[i] = string(a)
	}
	return out
}

func crosstabFlag(rows []Row, flag func(Row) bool) Contingency {
	arms, flags := make([]string, len(rows)), make([]string, len(rows))
	for i, r := range rows {
		arms[i] = string(r.Variation)
		flags[i] = fmt.Sprintf("%t", flag(r))
	}
	return Crosstab(arms, flags, armLabels())
}

// dropOff is the share of rows per arm and group that did not reach the next step
func dropOff(rows []Row, group func(Row) string) map[funnel.Variation]map[string]float64 {
	type cell struct{ n, stayed int }
	cells := make(map[funnel.Variation]map[string]*cell)
	for _, r := range rows {
		g := group(r)
		if cells[r.Variation] == nil {
			cells[r.Variation] = make(map[string]*cell)
		}
		c := cells[r.Variation][g]
		if c == nil {
			c = &cell{}
			cells[r.Variation][g] = c
		}
		c.n++
		if !r.ReachedNext {
			c.stayed++
		}
	}
	out := make(map[funnel.Variation]map[string]float64, len(cells))
	for arm, groups := range cells {
		out[arm] = make(map[string]float64, len(groups))
		for g, c := range groups {
			out[arm][g] = stats.Round(stats.Ratio(c.stayed, c.n), stats.RatePlaces)
		}
	}
	return out
}

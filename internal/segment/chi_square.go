package segment

import (
	"math"
	"sort"

	"abfunnel/domain/stats"
	"abfunnel/internal/compare"
)

// Contingency is a labelled count table
type Contingency struct {
	Rows   []string `json:"rows"`
	Cols   []string `json:"cols"`
	Counts [][]int  `json:"counts"`
}

// Crosstab counts (row, col) label pairs. Labels are sorted; rowOrder, when given,
// fixes the row order and drops rows outside it.
func Crosstab(rowLabels, colLabels []string, rowOrder []string) Contingency {
	rows := rowOrder
	if len(rows) == 0 {
		rows = distinctSorted(rowLabels)
	}
	cols := distinctSorted(colLabels)

	rowIdx := indexOf(rows)
	colIdx := indexOf(cols)
	counts := make([][]int, len(rows))
	for i := range counts {
		counts[i] = make([]int, len(cols))
	}
	for k := range rowLabels {
		r, ok := rowIdx[rowLabels[k]]
		if !ok {
			continue
		}
		counts[r][colIdx[colLabels[k]]]++
	}
	return Contingency{Rows: rows, Cols: cols, Counts: counts}
}

// ChiSquareResult is a test of independence on a contingency table
type ChiSquareResult struct {
	Label     string        `json:"label"`
	Table     Contingency   `json:"table"`
	Statistic *float64      `json:"chi2"`
	P         *float64      `json:"p"`
	DF        int           `json:"dof"`
	Verdict   stats.Verdict `json:"verdict"`
	Reason    string        `json:"reason,omitempty"`
}

// ChiSquare tests independence of rows and columns. Empty rows and columns are
// dropped first; fewer than two of either leaves the test not available. 2x2 tables
// get Yates' continuity correction.
func ChiSquare(label string, table Contingency, alpha float64) ChiSquareResult {
	res := ChiSquareResult{Label: label, Table: table}
	counts := trimEmpty(table.Counts)
	if len(counts) < 2 || len(counts[0]) < 2 {
		res.Verdict = stats.VerdictNotAvailable
		res.Reason = "contingency table needs at least two non-empty rows and columns"
		return res
	}

	rows, cols := len(counts), len(counts[0])
	rowSums := make([]float64, rows)
	colSums := make([]float64, cols)
	total := 0.0
	for i := range counts {
		for j, c := range counts[i] {
			rowSums[i] += float64(c)
			colSums[j] += float64(c)
			total += float64(c)
		}
	}

	dof := (rows - 1) * (cols - 1)
	chi2 := 0.0
	for i := range counts {
		for j, c := range counts[i] {
			expected := rowSums[i] * colSums[j] / total
			observed := float64(c)
			if dof == 1 {
				diff := expected - observed
				observed += math.Copysign(math.Min(0.5, math.Abs(diff)), diff)
			}
			chi2 += (observed - expected) * (observed - expected) / expected
		}
	}

	p := compare.ChiSquarePValue(chi2, dof)
	res.DF = dof
	res.Statistic = stats.RoundPtr(stats.Ptr(chi2), stats.StatPlaces)
	res.P = stats.RoundPtr(stats.Ptr(p), stats.PValuePlaces)
	res.Verdict = stats.Decide(p, alpha)
	return res
}

func trimEmpty(counts [][]int) [][]int {
	if len(counts) == 0 {
		return nil
	}
	var keepCols []int
	for j := range counts[0] {
		for i := range counts {
			if counts[i][j] > 0 {
				keepCols = append(keepCols, j)
				break
			}
		}
	}
	var out [][]int
	for i := range counts {
		row := make([]int, 0, len(keepCols))
		sum := 0
		for _, j := range keepCols {
			row = append(row, counts[i][j])
			sum += counts[i][j]
		}
		if sum > 0 {
			out = append(out, row)
		}
	}
	return out
}

func distinctSorted(labels []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}

func indexOf(labels []string) map[string]int {
	idx := make(map[string]int, len(labels))
	for i, l := range labels {
		idx[l] = i
	}
	return idx
}

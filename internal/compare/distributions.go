// Package compare runs the two-arm hypothesis tests on completion rate and time.
package compare

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// NormalTwoSidedP is the two-sided p-value of a standard normal statistic
func NormalTwoSidedP(z float64) float64 {
	return clampP(2 * distuv.UnitNormal.Survival(math.Abs(z)))
}

// NormalCritical is the two-sided critical value at alpha
func NormalCritical(alpha float64) float64 {
	return distuv.UnitNormal.Quantile(1 - alpha/2)
}

// StudentTwoSidedP is the two-sided p-value of a t statistic with df degrees of freedom
func StudentTwoSidedP(t, df float64) float64 {
	if df <= 0 {
		return 1.0
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return clampP(2 * dist.Survival(math.Abs(t)))
}

// StudentCritical is the two-sided critical t value at alpha
func StudentCritical(alpha, df float64) float64 {
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return dist.Quantile(1 - alpha/2)
}

// ChiSquarePValue is the upper-tail probability of a chi-square statistic
func ChiSquarePValue(chiSquare float64, degreesOfFreedom int) float64 {
	if degreesOfFreedom <= 0 {
		return 1.0
	}
	dist := distuv.ChiSquared{K: float64(degreesOfFreedom)}
	return clampP(dist.Survival(chiSquare))
}

func clampP(p float64) float64 {
	switch {
	case p > 1:
		return 1
	case p < 0:
		return 0
	}
	return p
}

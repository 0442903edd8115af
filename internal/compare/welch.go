package compare

import (
	"math"

	"github.com/montanaflynn/stats"
)

// WelchResult is a raw unequal-variance t-test outcome
type WelchResult struct {
	MeanTest    float64
	MeanControl float64
	T           float64
	P           float64
	DF          float64
	EffectSize  float64 // Cohen's d on the pooled standard deviation
}

// WelchTTest compares the means of test and control without assuming equal variances
func WelchTTest(test, control []float64) (WelchResult, error) {
	if len(test) < 2 || len(control) < 2 {
		return WelchResult{}, ErrTooFewCompleters
	}
	n1, n2 := float64(len(test)), float64(len(control))

	mean1, _ := stats.Mean(test)
	mean2, _ := stats.Mean(control)
	res := WelchResult{MeanTest: mean1, MeanControl: mean2}

	var1, _ := stats.SampleVariance(test)
	var2, _ := stats.SampleVariance(control)

	a, b := var1/n1, var2/n2
	se := math.Sqrt(a + b)
	if se == 0 {
		return res, ErrZeroVariance
	}
	res.T = (mean1 - mean2) / se

	// Welch-Satterthwaite
	res.DF = (a + b) * (a + b) / (a*a/(n1-1) + b*b/(n2-1))
	res.P = StudentTwoSidedP(res.T, res.DF)

	pooledSD := math.Sqrt(((n1-1)*var1 + (n2-1)*var2) / (n1 + n2 - 2))
	if pooledSD > 0 {
		res.EffectSize = (mean1 - mean2) / pooledSD
	}
	return res, nil
}

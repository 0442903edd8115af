package compare

import (
	"errors"
	"math"
)

// Test precondition failures. They never abort a run; the result reports them.
var (
	ErrEmptyArm         = errors.New("empty arm")
	ErrTooFewCompleters = errors.New("fewer than two completers")
	ErrZeroVariance     = errors.New("zero variance")
)

// ZTestResult is a raw two-proportion z-test outcome
type ZTestResult struct {
	RateTest    float64
	RateControl float64
	Lift        float64 // observed RateTest - RateControl
	Z           float64
	P           float64
}

// ProportionZTest tests H0: pTest - pControl = nullLift with the pooled standard error
func ProportionZTest(successTest, nTest, successControl, nControl int, nullLift float64) (ZTestResult, error) {
	if nTest == 0 || nControl == 0 {
		return ZTestResult{}, ErrEmptyArm
	}
	n1, n2 := float64(nTest), float64(nControl)
	res := ZTestResult{
		RateTest:    float64(successTest) / n1,
		RateControl: float64(successControl) / n2,
	}
	res.Lift = res.RateTest - res.RateControl

	pooled := float64(successTest+successControl) / (n1 + n2)
	se := math.Sqrt(pooled * (1 - pooled) * (1/n1 + 1/n2))
	if se == 0 || math.IsNaN(se) {
		return res, ErrZeroVariance
	}
	res.Z = (res.Lift - nullLift) / se
	res.P = NormalTwoSidedP(res.Z)
	return res, nil
}

package stats

import "math"

// Round rounds half away from zero to the given number of decimal places
func Round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// RoundPtr rounds an optional value, keeping nil as nil
func RoundPtr(v *float64, places int) *float64 {
	if v == nil {
		return nil
	}
	r := Round(*v, places)
	return &r
}

// Ratio divides and reports 0 for an empty denominator
func Ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Ptr returns a pointer to v; NaN and infinities become nil
func Ptr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Decimal places used when reporting
const (
	RatePlaces    = 3
	MinutesPlaces = 1
	StatPlaces    = 3
	PValuePlaces  = 4
)

package funnel

import (
	"strings"
	"time"
)

// Age bands, right-open: [0,30), [30,50), [50,150)
const (
	AgeBandUnder30  = "<30"
	AgeBand30To50   = "30–50"
	AgeBandOver50   = "50+"
	AgeBandUnknown  = "unknown"
	TenureNew       = "new"
	TenureLongStand = "long-standing"
)

// AgeBand buckets an optional age
func AgeBand(age *float64) string {
	if age == nil {
		return AgeBandUnknown
	}
	switch a := *age; {
	case a >= 0 && a < 30:
		return AgeBandUnder30
	case a >= 30 && a < 50:
		return AgeBand30To50
	case a >= 50 && a < 150:
		return AgeBandOver50
	}
	return AgeBandUnknown
}

// GenderGroup normalizes a raw gender code into M, F or U
func GenderGroup(gender string) string {
	switch g := strings.ToUpper(strings.TrimSpace(gender)); g {
	case GenderMale, GenderFemale, GenderUnknown:
		return g
	}
	return GenderUnknown
}

// ClientSnapshot is the one-row-per-client summary across all sessions
type ClientSnapshot struct {
	ClientID       string         `json:"client_id"`
	Variation      Variation      `json:"variation"`
	AgeBand        string         `json:"age_band"`
	GenderGroup    string         `json:"gender_group"`
	TenureGroup    string         `json:"tenure_group"`
	Visits         int            `json:"visits"`
	StartsCount    int            `json:"starts_count"`
	ConfirmsCount  int            `json:"confirms_count"`
	FirstStart     *time.Time     `json:"first_start_dt"`
	LastConfirm    *time.Time     `json:"last_confirm_dt"`
	CompletionTime *time.Duration `json:"completion_time"`
}

// Completed reports whether the client reached confirm at least once
func (s ClientSnapshot) Completed() bool {
	return s.ConfirmsCount > 0
}

// CompletionMinutes returns the completion duration in minutes when defined
func (s ClientSnapshot) CompletionMinutes() (float64, bool) {
	if s.CompletionTime == nil {
		return 0, false
	}
	return s.CompletionTime.Minutes(), true
}

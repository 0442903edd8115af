package coercer

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// TypeCoercer turns raw cell text into typed values. Unparseable input becomes null
// rather than an error; callers count the nulls.
type TypeCoercer struct {
	config CoercionConfig
}

// CoercionConfig defines null tokens and accepted timestamp layouts
type CoercionConfig struct {
	NullTokens       []string `json:"null_tokens"`
	TimestampLayouts []string `json:"timestamp_layouts"`
	NormalizeStrings bool     `json:"normalize_strings"`
}

// DefaultCoercionConfig returns the tokens pandas treats as missing and the
// layouts seen in funnel exports
func DefaultCoercionConfig() CoercionConfig {
	return CoercionConfig{
		NullTokens: []string{"", "nan", "NaN", "NAN", "null", "NULL", "None", "NaT", "N/A", "NA", "#N/A"},
		TimestampLayouts: []string{
			"2006-01-02 15:04:05",
			time.RFC3339Nano,
			time.RFC3339,
			"2006-01-02T15:04:05",
			"2006-01-02 15:04:05.999999999",
			"2006-01-02 15:04",
			"2006-01-02",
			"01/02/2006 15:04:05",
			"01/02/2006",
			"2006/01/02",
		},
		NormalizeStrings: true,
	}
}

// NewTypeCoercer creates a coercer with the given config
func NewTypeCoercer(config CoercionConfig) *TypeCoercer {
	return &TypeCoercer{config: config}
}

// IsNull reports whether raw is one of the configured null tokens
func (c *TypeCoercer) IsNull(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	for _, token := range c.config.NullTokens {
		if trimmed == token {
			return true
		}
	}
	return false
}

// Float parses a numeric cell. It returns nil for nulls; ok is false when the
// cell held something that was not a number (also returned as nil).
func (c *TypeCoercer) Float(raw string) (value *float64, ok bool) {
	if c.IsNull(raw) {
		return nil, true
	}
	if v, parsed := c.tryParseNumeric(raw); parsed {
		return &v, true
	}
	return nil, false
}

// Timestamp parses a timestamp cell. Nulls and unparseable values both yield the
// zero time; ok is false only for the latter.
func (c *TypeCoercer) Timestamp(raw string) (value time.Time, ok bool) {
	if c.IsNull(raw) {
		return time.Time{}, true
	}
	if t, parsed := c.tryParseTimestamp(strings.TrimSpace(raw)); parsed {
		return t, true
	}
	return time.Time{}, false
}

// String normalizes an identifier or category cell; nulls become ""
func (c *TypeCoercer) String(raw string) string {
	if c.IsNull(raw) {
		return ""
	}
	if c.config.NormalizeStrings {
		return normalizeString(raw)
	}
	return raw
}

// ID normalizes an identifier; numeric exports like "1234.0" become "1234"
func (c *TypeCoercer) ID(raw string) string {
	s := c.String(raw)
	if strings.HasSuffix(s, ".0") {
		if _, err := strconv.ParseInt(strings.TrimSuffix(s, ".0"), 10, 64); err == nil {
			return strings.TrimSuffix(s, ".0")
		}
	}
	return s
}

func (c *TypeCoercer) tryParseNumeric(strVal string) (float64, bool) {
	cleanVal := strings.TrimSpace(strVal)
	if cleanVal == "" {
		return 0, false
	}

	// Handle parentheses for negative numbers: (123) -> -123
	isNegative := false
	if strings.HasPrefix(cleanVal, "(") && strings.HasSuffix(cleanVal, ")") {
		cleanVal = strings.TrimSuffix(strings.TrimPrefix(cleanVal, "("), ")")
		isNegative = true
	}

	for _, symbol := range []string{"$", "€", "£", "USD", "EUR", "GBP"} {
		cleanVal = strings.ReplaceAll(cleanVal, symbol, "")
	}
	cleanVal = strings.TrimSpace(cleanVal)

	// Thousands separators only; balances are exported with a period decimal
	cleanVal = strings.ReplaceAll(cleanVal, ",", "")
	cleanVal = strings.ReplaceAll(cleanVal, " ", "")

	if isNegative {
		cleanVal = "-" + cleanVal
	}

	val, err := strconv.ParseFloat(cleanVal, 64)
	if err != nil || math.IsInf(val, 0) || math.IsNaN(val) {
		return 0, false
	}
	return val, true
}

func (c *TypeCoercer) tryParseTimestamp(strVal string) (time.Time, bool) {
	for _, layout := range c.config.TimestampLayouts {
		if t, err := time.Parse(layout, strVal); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func normalizeString(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

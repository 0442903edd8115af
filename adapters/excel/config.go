package excel

import (
	"fmt"

	"abfunnel/adapters/datareadiness/coercer"
)

// ReaderConfig holds configuration for file-backed sources
type ReaderConfig struct {
	Separator      rune                   `json:"separator"`
	CoercionConfig coercer.CoercionConfig `json:"coercion_config"`
}

// DefaultReaderConfig returns comma-separated input with the default coercion rules
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		Separator:      ',',
		CoercionConfig: coercer.DefaultCoercionConfig(),
	}
}

// ParseSeparator maps a configured separator string to a rune; "\t" and "tab" mean tab
func ParseSeparator(s string) (rune, error) {
	switch s {
	case "":
		return ',', nil
	case `\t`, "tab", "\t":
		return '\t', nil
	}
	runes := []rune(s)
	if len(runes) != 1 {
		return 0, fmt.Errorf("separator must be a single character, got %q", s)
	}
	return runes[0], nil
}

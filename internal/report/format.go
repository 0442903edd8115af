package report

import (
	"fmt"
	"sort"
	"strconv"
)

const notAvailable = "n/a"

func num(v float64, places int) string {
	return strconv.FormatFloat(v, 'f', places, 64)
}

func numPtr(v *float64, places int) string {
	if v == nil {
		return notAvailable
	}
	return num(*v, places)
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

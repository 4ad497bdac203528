package extract

import (
	"regexp"
	"strconv"
	"strings"

	"hemindex/internal"
)

// ExtractReferenceRanges finds parenthesized intervals like "(1.60-6.90)"
// on the same line as a field label. Ranges printed in x10³/L notation are
// converted to cells/µL to match the extracted values.
func ExtractReferenceRanges(text string) map[string]internal.RefRange {
	ranges := make(map[string]internal.RefRange)

	for _, field := range internal.FieldOrder {
		if rng, ok := findFieldRange(text, FieldMappings[field]); ok {
			ranges[field] = rng
		}
	}
	return ranges
}

// findFieldRange returns the first valid range printed next to any of the
// field's label variations. Malformed captures are skipped.
func findFieldRange(text string, variations []string) (internal.RefRange, bool) {
	for _, variation := range variations {
		pattern := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(variation) + `.*?\((\d+\.?\d*)\s*-\s*(\d+\.?\d*)\)`)
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			minVal, errMin := strconv.ParseFloat(m[1], 64)
			maxVal, errMax := strconv.ParseFloat(m[2], 64)
			if errMin != nil || errMax != nil {
				continue
			}
			if strings.Contains(strings.ToLower(m[0]), "x10") {
				minVal *= 1000
				maxVal *= 1000
			}
			return internal.RefRange{Min: minVal, Max: maxVal}, true
		}
	}
	return internal.RefRange{}, false
}

package extract

import (
	"regexp"
	"strconv"
	"strings"

	"hemindex/internal/util"
)

// Ordered by specificity: the first matching pattern wins. OCR output
// mangles "x10³/L" into things like "xIO^/L", "xIOS/L" or "x10®/L", so
// those variants come first.
var valuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+\.?\d*)\s*x[IO0S]+\^?\s*/\s*L`),
	regexp.MustCompile(`(?i)(\d+\.?\d*)\s*x\s*10[³^3]\s*/\s*L`),
	regexp.MustCompile(`(?i)(\d+\.?\d*)\s*x\s*10\^?\s*3\s*/\s*L`),
	regexp.MustCompile(`(?i)(\d+\.?\d*)\s*x\s*10[®©]\s*/\s*L`),
	regexp.MustCompile(`(?i)(\d+\.?\d*)\s*(?:cells\s*)?/\s*[µu]L`),
	regexp.MustCompile(`(?i)(\d+\.?\d*)\s*K\s*/\s*[µu]L`),
	regexp.MustCompile(`(?i)^(\d+\.?\d*)$`),
	regexp.MustCompile(`(?i)(\d+\.?\d*)\s*\([^\)]+\)`),
}

// Any of these substrings in a lowercased line means the value is in
// thousands (x10³/L notation, possibly OCR-mangled).
var thousandsMarkers = []string{"x10", "x 10", "xio", "xios", "x io", "®", "©"}

// ParseValueWithUnit pulls a numeric count and its unit out of a report
// line and converts the value to cells/µL. Returns (nil, nil) when the
// text holds no recognizable value.
func ParseValueWithUnit(text string) (*float64, *string) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(text), ",", "")

	for _, pattern := range valuePatterns {
		m := pattern.FindStringSubmatch(cleaned)
		if m == nil {
			continue
		}
		value, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		return convertToCellsPerUL(value, strings.ToLower(cleaned))
	}
	return nil, nil
}

func convertToCellsPerUL(value float64, lowered string) (*float64, *string) {
	for _, marker := range thousandsMarkers {
		if strings.Contains(lowered, marker) {
			return util.FloatPtr(value * 1000), util.StringPtr("x10³/L")
		}
	}
	if strings.Contains(lowered, "k/") {
		return util.FloatPtr(value * 1000), util.StringPtr("K/µL")
	}
	if strings.Contains(lowered, "/µl") || strings.Contains(lowered, "/ul") {
		return util.FloatPtr(value), util.StringPtr("cells/µL")
	}
	// Plain numbers on CBC lines are almost always x10³/L.
	return util.FloatPtr(value * 1000), util.StringPtr("x10³/L (assumed)")
}

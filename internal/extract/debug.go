package extract

import (
	"fmt"
	"strconv"
	"strings"

	"hemindex/internal"
)

// DebugExtraction renders a troubleshooting dump: every field that was
// found with its source line, plus lines that look like CBC rows but were
// not matched.
func DebugExtraction(text string, extracted map[string]internal.FieldExtraction) string {
	var b strings.Builder
	b.WriteString("=== EXTRACTION DEBUG INFO ===\n")
	fmt.Fprintf(&b, "Text length: %d characters\n", len(text))
	fmt.Fprintf(&b, "Number of lines: %d\n\n", strings.Count(text, "\n")+1)

	b.WriteString("Fields found:\n")
	for _, field := range internal.FieldOrder {
		data, ok := extracted[field]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "  %s: %g (%d%% confidence)\n", field, *data.Value, data.Confidence)
		fmt.Fprintf(&b, "    Raw text: %s\n", data.RawText)
		fmt.Fprintf(&b, "    Matched: %s\n\n", data.MatchedVariation)
	}

	matchedLines := make(map[string]bool, len(extracted))
	for _, data := range extracted {
		matchedLines[data.RawText] = true
	}

	var missed []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.ContainsAny(line, "0123456789") {
			continue
		}
		lowered := strings.ToLower(line)
		for _, kw := range []string{"neutro", "lymph", "platelet", "mono"} {
			if strings.Contains(lowered, kw) {
				if !matchedLines[line] {
					missed = append(missed, line)
				}
				break
			}
		}
	}
	if len(missed) > 0 {
		b.WriteString("Potential missed lines:\n")
		for i, line := range missed {
			if i == 5 {
				break
			}
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	return b.String()
}

// DebugDemographics renders the demographic counterpart of
// DebugExtraction.
func DebugDemographics(text string, d internal.Demographics) string {
	var b strings.Builder
	b.WriteString("=== DEMOGRAPHIC EXTRACTION DEBUG INFO ===\n")
	fmt.Fprintf(&b, "Text length: %d characters\n\n", len(text))

	b.WriteString("Extracted Demographics:\n")
	writeField := func(name, value string, confidence int, raw, pattern string) {
		if value != "" {
			fmt.Fprintf(&b, "  %s: %s (%d%% confidence)\n", name, value, confidence)
			fmt.Fprintf(&b, "    Raw text: %s\n", raw)
			fmt.Fprintf(&b, "    Pattern: %s\n", pattern)
		} else {
			fmt.Fprintf(&b, "  %s: NOT FOUND\n", name)
		}
		b.WriteString("\n")
	}

	ageValue := ""
	if d.Age.Value != nil {
		ageValue = strconv.Itoa(*d.Age.Value)
	}
	writeField("age", ageValue, d.Age.Confidence, d.Age.RawText, d.Age.Pattern)

	sexValue := ""
	if d.Sex.Value != nil {
		sexValue = *d.Sex.Value
	}
	writeField("sex", sexValue, d.Sex.Confidence, d.Sex.RawText, d.Sex.Pattern)

	dateValue := ""
	if d.TestDate.Value != nil {
		dateValue = *d.TestDate.Value
	}
	writeField("test_date", dateValue, d.TestDate.Confidence, d.TestDate.RawText, d.TestDate.Pattern)

	keywords := []string{"age", "male", "female", "years", "collected", "reported", "date"}
	var potential []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		lowered := strings.ToLower(line)
		for _, kw := range keywords {
			if strings.Contains(lowered, kw) {
				if strings.ContainsAny(line, "0123456789") {
					potential = append(potential, line)
				}
				break
			}
		}
	}
	if len(potential) > 0 {
		b.WriteString("Potential demographic lines found:\n")
		for i, line := range potential {
			if i == 10 {
				break
			}
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	return b.String()
}

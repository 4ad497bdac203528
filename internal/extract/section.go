package extract

import "strings"

// sectionFallbackLen bounds the text returned when no blood count header
// is found; the CBC block usually sits near the top of a report.
const sectionFallbackLen = 2000

// FindCBCSection narrows full report text down to the blood count block:
// from the first known section header up to the next unrelated panel
// (kidney, liver and so on). Without a recognizable header the leading
// part of the text is returned instead.
func FindCBCSection(text string) string {
	upper := strings.ToUpper(text)

	for _, header := range SectionHeaders {
		start := strings.Index(upper, header)
		if start < 0 {
			continue
		}
		end := len(text)
		for _, terminator := range sectionTerminators {
			pos := strings.Index(upper[start+len(header):], terminator)
			if pos < 0 {
				continue
			}
			if abs := start + len(header) + pos; abs < end {
				end = abs
			}
		}
		return text[start:end]
	}

	if len(text) > sectionFallbackLen {
		return text[:sectionFallbackLen]
	}
	return text
}

package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"hemindex/internal"
	"hemindex/internal/util"
)

const (
	minPlausibleAge = 18
	maxPlausibleAge = 120
)

type ageRule struct {
	re         *regexp.Regexp
	confidence int
	// needsSexCue restricts a bare number to lines where a sex marker
	// (m/f or male/female) follows it on the same line.
	needsSexCue bool
}

// Rules are tried in order and a hit only replaces an earlier one when its
// confidence is strictly higher.
var ageRules = []ageRule{
	{regexp.MustCompile(`(?i)(\d+)\s*years?\s*(?:male|female)`), 95, false},
	{regexp.MustCompile(`(?i)age[:\s]*(\d+)`), 90, false},
	{regexp.MustCompile(`(?i)(\d+)\s*y\.?o\.?`), 85, false},
	{regexp.MustCompile(`(?i)(\d+)\s*[mf]\b`), 80, false},
	{regexp.MustCompile(`(\d+)`), 70, true},
}

// ExtractPatientAge finds the most plausible patient age in report text.
// Ages outside 18-120 are ignored. The zero value comes back when nothing
// matched.
func ExtractPatientAge(text string) internal.AgeExtraction {
	var best internal.AgeExtraction

	for _, rule := range ageRules {
		for _, idx := range rule.re.FindAllStringSubmatchIndex(text, -1) {
			age, err := strconv.Atoi(text[idx[2]:idx[3]])
			if err != nil {
				continue
			}
			if age < minPlausibleAge || age > maxPlausibleAge {
				continue
			}
			if rule.needsSexCue && !restOfLineContainsAny(text, idx[1], "MmFf") {
				continue
			}
			if rule.confidence > best.Confidence {
				best = internal.AgeExtraction{
					Value:      util.IntPtr(age),
					Confidence: rule.confidence,
					RawText:    text[idx[0]:idx[1]],
					Pattern:    rule.re.String(),
				}
			}
		}
	}
	return best
}

type sexRule struct {
	re         *regexp.Regexp
	confidence int
	// needsCue restricts a standalone M/F letter to lines that also carry
	// an age hint ("years", "age" or any digit) after it.
	needsCue bool
}

var sexRules = []sexRule{
	{regexp.MustCompile(`(?i)\d+\s*years?\s*(male|female)`), 95, false},
	{regexp.MustCompile(`(?i)\b(male|female)\b`), 90, false},
	{regexp.MustCompile(`(?i)\b([mf])\b`), 80, true},
	{regexp.MustCompile(`(?i)(?:sex|gender)[:\s]*([mf])`), 85, false},
}

// ExtractPatientSex finds the patient sex, normalized to "M" or "F".
func ExtractPatientSex(text string) internal.SexExtraction {
	var best internal.SexExtraction

	for _, rule := range sexRules {
		for _, idx := range rule.re.FindAllStringSubmatchIndex(text, -1) {
			captured := strings.ToUpper(text[idx[2]:idx[3]])
			var value string
			switch {
			case strings.HasPrefix(captured, "M"):
				value = "M"
			case strings.HasPrefix(captured, "F"):
				value = "F"
			default:
				continue
			}
			if rule.needsCue && !ageContextCue(text, idx[1]) {
				continue
			}
			if rule.confidence > best.Confidence {
				best = internal.SexExtraction{
					Value:      util.StringPtr(value),
					Confidence: rule.confidence,
					RawText:    text[idx[0]:idx[1]],
					Pattern:    rule.re.String(),
				}
			}
		}
	}
	return best
}

type dateRule struct {
	re         *regexp.Regexp
	confidence int
}

// Two rules share confidence 90; "Reported:" is evaluated first and ties
// never displace an earlier hit, so labelled US dates outrank ISO ones.
var dateRules = []dateRule{
	{regexp.MustCompile(`(?i)collected[:\s]*(\d{2}/\d{2}/\d{2,4})`), 95},
	{regexp.MustCompile(`(?i)reported[:\s]*(\d{2}/\d{2}/\d{2,4})`), 90},
	{regexp.MustCompile(`(?i)date[:\s]*(\d{4}-\d{2}-\d{2})`), 90},
	{regexp.MustCompile(`(\d{2}/\d{2}/\d{2,4})`), 70},
	{regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`), 75},
}

// ExtractTestDate finds the collection or reporting date, normalized to
// YYYY-MM-DD. Dates more than ten years back or over a year ahead are
// treated as misreads and skipped.
func ExtractTestDate(text string) internal.DateExtraction {
	var best internal.DateExtraction
	currentYear := time.Now().Year()

	for _, rule := range dateRules {
		for _, idx := range rule.re.FindAllStringSubmatchIndex(text, -1) {
			parsed, ok := parseReportDate(text[idx[2]:idx[3]])
			if !ok {
				continue
			}
			if parsed.Year() < currentYear-10 || parsed.Year() > currentYear+1 {
				continue
			}
			if rule.confidence > best.Confidence {
				best = internal.DateExtraction{
					Value:      util.StringPtr(parsed.Format("2006-01-02")),
					Confidence: rule.confidence,
					RawText:    text[idx[0]:idx[1]],
					Pattern:    rule.re.String(),
				}
			}
		}
	}
	return best
}

// parseReportDate handles MM/DD/YY, MM/DD/YYYY and YYYY-MM-DD.
func parseReportDate(dateStr string) (time.Time, bool) {
	if strings.Contains(dateStr, "/") {
		parts := strings.Split(dateStr, "/")
		if len(parts) == 3 && len(parts[2]) == 2 {
			year, err := strconv.Atoi(parts[2])
			if err != nil {
				return time.Time{}, false
			}
			dateStr = parts[0] + "/" + parts[1] + "/" + strconv.Itoa(expandTwoDigitYear(year))
		}
		t, err := time.Parse("01/02/2006", dateStr)
		return t, err == nil
	}
	if strings.Contains(dateStr, "-") {
		t, err := time.Parse("2006-01-02", dateStr)
		return t, err == nil
	}
	return time.Time{}, false
}

// expandTwoDigitYear maps two-digit years onto 1950-2049.
func expandTwoDigitYear(year int) int {
	if year < 50 {
		return year + 2000
	}
	return year + 1900
}

// ExtractPatientDemographics runs all three demographic extractors over
// the full report text.
func ExtractPatientDemographics(text string) internal.Demographics {
	return internal.Demographics{
		Age:      ExtractPatientAge(text),
		Sex:      ExtractPatientSex(text),
		TestDate: ExtractTestDate(text),
	}
}

// ValidateDemographics flags low-confidence or missing demographics. Weak
// age or sex hits require manual verification; a weak date only warns.
func (e *Extractor) ValidateDemographics(d internal.Demographics) internal.DemographicCheck {
	check := internal.DemographicCheck{Valid: true}

	if d.Age.Confidence < e.DemographicMin {
		check.Warnings = append(check.Warnings, "Low confidence age extraction - manual verification recommended")
		check.ManualVerificationNeeded = true
	}
	if d.Sex.Confidence < e.DemographicMin {
		check.Warnings = append(check.Warnings, "Low confidence sex extraction - manual verification recommended")
		check.ManualVerificationNeeded = true
	}
	if d.TestDate.Confidence < e.DemographicMin {
		check.Warnings = append(check.Warnings, "Low confidence test date extraction - manual verification recommended")
	}
	if d.Age.Value == nil {
		check.Warnings = append(check.Warnings, "Patient age not found in report - age-specific interpretation unavailable")
	}
	if d.Sex.Value == nil {
		check.Warnings = append(check.Warnings, "Patient sex not found in report - sex-specific interpretation unavailable")
	}
	return check
}

func restOfLineContainsAny(text string, from int, chars string) bool {
	rest := text[from:]
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[:i]
	}
	return strings.ContainsAny(rest, chars)
}

func ageContextCue(text string, from int) bool {
	rest := text[from:]
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[:i]
	}
	if strings.ContainsAny(rest, "0123456789") {
		return true
	}
	lowered := strings.ToLower(rest)
	return strings.Contains(lowered, "year") || strings.Contains(lowered, "age")
}

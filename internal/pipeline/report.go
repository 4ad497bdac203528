package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"hemindex/internal"
	"hemindex/internal/indices"
)

var disclaimers = []string{
	"These indices are screening tools, not diagnostic tests",
	"Results must be interpreted in clinical context by qualified healthcare providers",
	"Consult your healthcare provider for medical decisions and treatment plans",
	"Serial measurements over time are more valuable than single values",
	"This report is for informational purposes only",
}

// GenerateReport renders a complete result in the requested format,
// either "text" for a human-readable summary or "json" for the full
// structured payload.
func GenerateReport(result internal.ReportResult, format string) (string, error) {
	switch format {
	case "text":
		return textReport(result), nil
	case "json":
		return jsonReport(result)
	default:
		return "", fmt.Errorf("Unsupported format type: %s", format)
	}
}

// SaveResults writes the report to outputDir with a timestamped
// filename and returns the path of the written file.
func SaveResults(result internal.ReportResult, outputDir, format string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}
	stamp := time.Now().Format("20060102_150405")

	var name string
	switch format {
	case "text":
		name = fmt.Sprintf("immune_inflammatory_report_%s.txt", stamp)
	case "json":
		name = fmt.Sprintf("immune_inflammatory_results_%s.json", stamp)
	default:
		return "", fmt.Errorf("Unsupported format type: %s", format)
	}

	content, err := GenerateReport(result, format)
	if err != nil {
		return "", err
	}
	path := filepath.Join(outputDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type reportStamp struct {
	GeneratedTimestamp string `json:"generated_timestamp"`
	ReportType         string `json:"report_type"`
	Version            string `json:"version"`
}

type reportEnvelope struct {
	ReportMetadata reportStamp                     `json:"report_metadata"`
	Results        map[string]internal.IndexResult `json:"results"`
	Summary        internal.PanelSummary           `json:"summary"`
	Interpretation *internal.Interpretation        `json:"interpretation,omitempty"`
	Parsing        *internal.ParsingDetails        `json:"pdf_parsing,omitempty"`
	Metadata       internal.ReportMetadata         `json:"metadata"`
}

func jsonReport(result internal.ReportResult) (string, error) {
	envelope := reportEnvelope{
		ReportMetadata: reportStamp{
			GeneratedTimestamp: time.Now().Format(time.RFC3339),
			ReportType:         "immune_inflammatory_index",
			Version:            "1.0",
		},
		Results:        result.Results,
		Summary:        result.Summary,
		Interpretation: result.Interpretation,
		Parsing:        result.Parsing,
		Metadata:       result.Metadata,
	}
	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func textReport(result internal.ReportResult) string {
	lines := []string{}
	add := func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}
	rule := strings.Repeat("=", 60)
	section := strings.Repeat("-", 30)

	add(rule)
	add("IMMUNE INFLAMMATORY INDEX REPORT")
	add(rule)
	add("Generated: %s", time.Now().Format("2006-01-02 15:04:05"))
	add("")

	if result.Parsing != nil {
		add("PDF SOURCE INFORMATION")
		add(section)
		source := result.Metadata.Source
		if source == "" {
			source = "Unknown"
		}
		add("Source: %s", source)
		add("Extraction Method: %s", result.Parsing.ExtractionMethod)
		add("")
	}

	add("CALCULATED INDICES")
	add(section)
	for _, name := range indices.IndexOrder {
		data, ok := result.Results[name]
		if !ok {
			continue
		}
		add("%s: %s", strings.ToUpper(name), formatNumber(data.Value))
		add("  Risk Level: %s", titleCase(string(data.RiskLevel)))
		add("  Interpretation: %s", data.Interpretation)
		add("")
	}

	add("OVERALL ASSESSMENT")
	add(section)
	add("%s", result.Summary.OverallStatus)
	add("")
	if len(result.Summary.Recommendations) > 0 {
		add("RECOMMENDATIONS:")
		for i, rec := range result.Summary.Recommendations {
			add("%d. %s", i+1, rec)
		}
		add("")
	}

	if interp := result.Interpretation; interp != nil {
		add("CLINICAL INTERPRETATION")
		add(section)
		add("Overall Risk Level: %s", titleCase(interp.RiskStratification.OverallRiskLevel))
		add("Urgency: %s", titleCase(interp.RiskStratification.Urgency))
		add("")

		if context := interp.PatientContext; context != nil && (context.Age != nil || context.Sex != nil) {
			add("PATIENT DEMOGRAPHICS & CLINICAL CONTEXT")
			add(strings.Repeat("-", 50))
			if context.Age != nil {
				add("Age: %d years", *context.Age)
				add("Age Group: %s", ageGroup(*context.Age))
			}
			if context.Sex != nil {
				add("Sex: %s", *context.Sex)
			}
			if len(context.AgeConsiderations) > 0 {
				add("")
				add("Age-Specific Clinical Considerations:")
				for _, c := range context.AgeConsiderations {
					add("  • %s", c)
				}
			}
			if len(context.SexConsiderations) > 0 {
				add("")
				add("Sex-Specific Clinical Considerations:")
				for _, c := range context.SexConsiderations {
					add("  • %s", c)
				}
			}
			add("")
		}
	}

	if result.Parsing != nil && len(result.Parsing.ConfidenceScores) > 0 {
		add("EXTRACTION CONFIDENCE")
		add(section)
		for _, field := range internal.FieldOrder {
			score, ok := result.Parsing.ConfidenceScores[field]
			if !ok {
				continue
			}
			add("%s: %d%% (%s)", titleCase(field), score, confidenceLabel(score))
		}
		add("")
	}

	warnings := append([]string{}, result.Metadata.Warnings...)
	if result.Parsing != nil {
		warnings = append(warnings, result.Parsing.ParsingWarnings...)
	}
	if len(warnings) > 0 {
		add("WARNINGS")
		add(section)
		for _, w := range warnings {
			add("⚠️  %s", w)
		}
		add("")
	}

	add("IMPORTANT DISCLAIMERS")
	add(section)
	for _, d := range disclaimers {
		add("• %s", d)
	}
	add("")
	add(rule)

	return strings.Join(lines, "\n")
}

func confidenceLabel(score int) string {
	switch {
	case score >= 80:
		return "High"
	case score >= 60:
		return "Medium"
	default:
		return "Low"
	}
}

func ageGroup(age int) string {
	switch {
	case age < 18:
		return "Pediatric"
	case age < 35:
		return "Young Adult (18-35)"
	case age < 65:
		return "Middle-aged Adult (35-65)"
	default:
		return "Elderly Adult (65+)"
	}
}

// titleCase uppercases the first letter of each underscore-separated
// word, so "very_high" renders as "Very High".
func titleCase(s string) string {
	words := strings.Split(strings.ReplaceAll(s, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// formatNumber renders a rounded index value keeping at least one
// decimal place, so integral values print as "2.0" rather than "2".
func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

package indices

import (
	"fmt"

	"hemindex/internal"
)

// PhysiologicalRanges bounds plausible absolute counts in cells/µL.
// Values outside by more than an order of magnitude are treated as data
// entry errors rather than clinical findings.
var PhysiologicalRanges = map[string]internal.RefRange{
	"neutrophils": {Min: 1000, Max: 25000},
	"lymphocytes": {Min: 500, Max: 8000},
	"platelets":   {Min: 100000, Max: 1000000},
	"monocytes":   {Min: 100, Max: 2000},
}

const (
	confidenceIssueThreshold = 70
	lowConfidenceWarning     = 50
)

// ValidateNumericValue checks a single count against its physiological
// range. Zero lymphocytes is an error because every ratio divides by it;
// zero anywhere else is only a warning.
func ValidateNumericValue(value float64, name string, minVal, maxVal float64) internal.ValueCheck {
	check := internal.ValueCheck{
		Value:    value,
		Errors:   []string{},
		Warnings: []string{},
	}

	if value < 0 {
		check.Errors = append(check.Errors, fmt.Sprintf("%s cannot be negative (got %g)", name, value))
	} else if value == 0 {
		if name == "lymphocytes" {
			check.Errors = append(check.Errors, fmt.Sprintf("%s cannot be zero (needed for ratio calculations)", name))
		} else {
			check.Warnings = append(check.Warnings, fmt.Sprintf("%s is zero - this may indicate severe condition", name))
		}
	} else if value < minVal || value > maxVal {
		if value < minVal*0.1 || value > maxVal*10 {
			check.Errors = append(check.Errors, fmt.Sprintf("%s (%g) is extremely outside normal range (%g-%g) - possible data entry error", name, value, minVal, maxVal))
		} else {
			check.Warnings = append(check.Warnings, fmt.Sprintf("%s (%g) is outside normal range (%g-%g)", name, value, minVal, maxVal))
		}
	}

	check.Valid = len(check.Errors) == 0
	return check
}

// ValidateInputs runs per-field checks on the counts going into the
// calculator and cross-checks the resulting ratios for implausible
// combinations.
func ValidateInputs(neutrophils, lymphocytes, platelets float64, monocytes *float64) internal.Validation {
	validation := internal.Validation{
		Valid:      true,
		Individual: map[string]internal.ValueCheck{},
		Errors:     []string{},
		Warnings:   []string{},
	}

	inputs := []struct {
		name  string
		value float64
	}{
		{"neutrophils", neutrophils},
		{"lymphocytes", lymphocytes},
		{"platelets", platelets},
	}
	if monocytes != nil {
		inputs = append(inputs, struct {
			name  string
			value float64
		}{"monocytes", *monocytes})
	}

	for _, in := range inputs {
		bounds := PhysiologicalRanges[in.name]
		check := ValidateNumericValue(in.value, in.name, bounds.Min, bounds.Max)
		validation.Individual[in.name] = check
		validation.Errors = append(validation.Errors, check.Errors...)
		validation.Warnings = append(validation.Warnings, check.Warnings...)
		if !check.Valid {
			validation.Valid = false
		}
	}

	neutOK := validation.Individual["neutrophils"].Valid
	lymphOK := validation.Individual["lymphocytes"].Valid
	platOK := validation.Individual["platelets"].Valid
	if neutOK && lymphOK && lymphocytes > 0 {
		if nlr := neutrophils / lymphocytes; nlr > 50 {
			validation.Warnings = append(validation.Warnings, fmt.Sprintf("Calculated NLR (%.1f) is extremely high - please verify input values", nlr))
		}
	}
	if platOK && lymphOK && lymphocytes > 0 {
		if plr := platelets / lymphocytes; plr > 1000 {
			validation.Warnings = append(validation.Warnings, fmt.Sprintf("Calculated PLR (%.1f) is extremely high - please verify input values", plr))
		}
	}

	return validation
}

// ValidateExtractedValues applies the numeric checks to parser output and
// layers confidence checks on top: anything under 70% confidence is
// flagged for review, anything under 50% earns an explicit warning.
func ValidateExtractedValues(extracted map[string]internal.FieldExtraction) internal.PDFValidation {
	validation := internal.PDFValidation{
		Validation: internal.Validation{
			Valid:      true,
			Individual: map[string]internal.ValueCheck{},
			Errors:     []string{},
			Warnings:   []string{},
		},
		ConfidenceIssues: []string{},
	}

	for _, name := range internal.RequiredFields {
		fe, ok := extracted[name]
		if !ok || !fe.Found() {
			validation.Errors = append(validation.Errors, fmt.Sprintf("Required field '%s' not found in report", name))
			validation.Valid = false
			continue
		}
		bounds := PhysiologicalRanges[name]
		check := ValidateNumericValue(*fe.Value, name, bounds.Min, bounds.Max)
		validation.Individual[name] = check
		validation.Errors = append(validation.Errors, check.Errors...)
		validation.Warnings = append(validation.Warnings, check.Warnings...)
		if !check.Valid {
			validation.Valid = false
		}
		if fe.Confidence < confidenceIssueThreshold {
			validation.ConfidenceIssues = append(validation.ConfidenceIssues, fmt.Sprintf("%s: %d%% confidence (extracted: %g)", name, fe.Confidence, *fe.Value))
		}
		if fe.Confidence < lowConfidenceWarning {
			validation.Warnings = append(validation.Warnings, fmt.Sprintf("Low confidence (%d%%) for %s extraction - manual verification recommended", fe.Confidence, name))
		}
	}

	if fe, ok := extracted["monocytes"]; ok && fe.Found() {
		bounds := PhysiologicalRanges["monocytes"]
		check := ValidateNumericValue(*fe.Value, "monocytes", bounds.Min, bounds.Max)
		validation.Individual["monocytes"] = check
		validation.Errors = append(validation.Errors, check.Errors...)
		validation.Warnings = append(validation.Warnings, check.Warnings...)
		if !check.Valid {
			validation.Valid = false
		}
		if fe.Confidence < confidenceIssueThreshold {
			validation.ConfidenceIssues = append(validation.ConfidenceIssues, fmt.Sprintf("%s: %d%% confidence (extracted: %g)", "monocytes", fe.Confidence, *fe.Value))
		}
	}

	validation.ManualVerificationNeeded = len(validation.ConfidenceIssues) > 0 || len(validation.Errors) > 0
	return validation
}

// CheckReferenceRanges compares extracted values against the reference
// ranges printed on the report itself, when the parser captured them.
func CheckReferenceRanges(extracted map[string]internal.FieldExtraction) []string {
	warnings := []string{}
	for _, name := range internal.FieldOrder {
		fe, ok := extracted[name]
		if !ok || !fe.Found() || fe.ReferenceRange == nil {
			continue
		}
		rr := fe.ReferenceRange
		if *fe.Value < rr.Min || *fe.Value > rr.Max {
			warnings = append(warnings, fmt.Sprintf("%s (%g) is outside report reference range (%g-%g)", name, *fe.Value, rr.Min, rr.Max))
		}
	}
	return warnings
}

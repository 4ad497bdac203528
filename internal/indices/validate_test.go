package indices

import (
	"strings"
	"testing"

	"hemindex/internal"
	"hemindex/internal/util"
)

func TestValidateNumericValue(t *testing.T) {
	if check := ValidateNumericValue(4000, "neutrophils", 1000, 25000); !check.Valid || len(check.Warnings) != 0 {
		t.Fatalf("check=%+v", check)
	}

	neg := ValidateNumericValue(-5, "platelets", 100000, 1000000)
	if neg.Valid || !strings.Contains(neg.Errors[0], "cannot be negative") {
		t.Fatalf("check=%+v", neg)
	}

	zeroLymph := ValidateNumericValue(0, "lymphocytes", 500, 8000)
	if zeroLymph.Valid || !strings.Contains(zeroLymph.Errors[0], "needed for ratio calculations") {
		t.Fatalf("check=%+v", zeroLymph)
	}

	zeroMono := ValidateNumericValue(0, "monocytes", 100, 2000)
	if !zeroMono.Valid || len(zeroMono.Warnings) != 1 || !strings.Contains(zeroMono.Warnings[0], "severe condition") {
		t.Fatalf("check=%+v", zeroMono)
	}

	outside := ValidateNumericValue(30000, "neutrophils", 1000, 25000)
	if !outside.Valid || len(outside.Warnings) != 1 || !strings.Contains(outside.Warnings[0], "outside normal range") {
		t.Fatalf("check=%+v", outside)
	}

	extreme := ValidateNumericValue(500000, "neutrophils", 1000, 25000)
	if extreme.Valid || !strings.Contains(extreme.Errors[0], "possible data entry error") {
		t.Fatalf("check=%+v", extreme)
	}
}

func TestValidateInputsCrossChecks(t *testing.T) {
	nlrCase := ValidateInputs(24000, 450, 250000, nil)
	if !nlrCase.Valid {
		t.Fatalf("validation=%+v", nlrCase)
	}
	if !hasWarning(nlrCase.Warnings, "Calculated NLR") {
		t.Fatalf("no NLR warning in %+v", nlrCase.Warnings)
	}

	plrCase := ValidateInputs(4000, 600, 900000, nil)
	if !hasWarning(plrCase.Warnings, "Calculated PLR") {
		t.Fatalf("no PLR warning in %+v", plrCase.Warnings)
	}
	if hasWarning(plrCase.Warnings, "Calculated NLR") {
		t.Fatalf("unexpected NLR warning in %+v", plrCase.Warnings)
	}
}

func TestValidateExtractedValues(t *testing.T) {
	extracted := map[string]internal.FieldExtraction{
		"neutrophils": {Value: util.FloatPtr(4200), Confidence: 95},
		"lymphocytes": {Value: util.FloatPtr(1800), Confidence: 95},
		"platelets":   {Value: util.FloatPtr(250000), Confidence: 95},
	}
	v := ValidateExtractedValues(extracted)
	if !v.Valid || v.ManualVerificationNeeded {
		t.Fatalf("validation=%+v", v)
	}

	extracted["platelets"] = internal.FieldExtraction{Value: util.FloatPtr(250000), Confidence: 55}
	v = ValidateExtractedValues(extracted)
	if !v.ManualVerificationNeeded {
		t.Fatal("low confidence not flagged")
	}
	if len(v.ConfidenceIssues) != 1 || !strings.Contains(v.ConfidenceIssues[0], "platelets: 55%") {
		t.Fatalf("issues=%+v", v.ConfidenceIssues)
	}

	extracted["platelets"] = internal.FieldExtraction{Value: util.FloatPtr(250000), Confidence: 40}
	v = ValidateExtractedValues(extracted)
	if !hasWarning(v.Warnings, "Low confidence (40%) for platelets") {
		t.Fatalf("warnings=%+v", v.Warnings)
	}

	delete(extracted, "lymphocytes")
	v = ValidateExtractedValues(extracted)
	if v.Valid {
		t.Fatal("missing required field not flagged")
	}
	if !strings.Contains(v.Errors[0], "Required field 'lymphocytes' not found") {
		t.Fatalf("errors=%+v", v.Errors)
	}
}

func TestValidateExtractedValuesOptionalMonocytes(t *testing.T) {
	extracted := map[string]internal.FieldExtraction{
		"neutrophils": {Value: util.FloatPtr(4200), Confidence: 95},
		"lymphocytes": {Value: util.FloatPtr(1800), Confidence: 95},
		"platelets":   {Value: util.FloatPtr(250000), Confidence: 95},
		"monocytes":   {Value: util.FloatPtr(50000), Confidence: 95},
	}
	v := ValidateExtractedValues(extracted)
	if v.Valid {
		t.Fatalf("implausible monocytes accepted: %+v", v)
	}
	if _, ok := v.Individual["monocytes"]; !ok {
		t.Fatalf("individual=%+v", v.Individual)
	}
}

func TestCheckReferenceRanges(t *testing.T) {
	extracted := map[string]internal.FieldExtraction{
		"neutrophils": {Value: util.FloatPtr(8000), Confidence: 95, ReferenceRange: &internal.RefRange{Min: 1600, Max: 6900}},
		"lymphocytes": {Value: util.FloatPtr(1800), Confidence: 95, ReferenceRange: &internal.RefRange{Min: 1000, Max: 3000}},
		"platelets":   {Value: util.FloatPtr(250000), Confidence: 95},
	}
	warnings := CheckReferenceRanges(extracted)
	if len(warnings) != 1 {
		t.Fatalf("warnings=%+v", warnings)
	}
	if !strings.Contains(warnings[0], "neutrophils (8000) is outside report reference range (1600-6900)") {
		t.Fatalf("warning=%q", warnings[0])
	}
}

func hasWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

package indices

import (
	"fmt"
	"math"
	"strings"
	"time"

	"hemindex/internal"
)

// SII is the Systemic Immune-Inflammation Index.
func SII(neutrophils, lymphocytes, platelets float64) (float64, error) {
	if lymphocytes == 0 {
		return 0, fmt.Errorf("lymphocyte count cannot be zero for SII calculation")
	}
	return (neutrophils * platelets) / lymphocytes, nil
}

// NLR is the Neutrophil-to-Lymphocyte Ratio.
func NLR(neutrophils, lymphocytes float64) (float64, error) {
	if lymphocytes == 0 {
		return 0, fmt.Errorf("lymphocyte count cannot be zero for NLR calculation")
	}
	return neutrophils / lymphocytes, nil
}

// PLR is the Platelet-to-Lymphocyte Ratio.
func PLR(platelets, lymphocytes float64) (float64, error) {
	if lymphocytes == 0 {
		return 0, fmt.Errorf("lymphocyte count cannot be zero for PLR calculation")
	}
	return platelets / lymphocytes, nil
}

// SIRI is the Systemic Inflammatory Response Index.
func SIRI(neutrophils, lymphocytes, monocytes float64) (float64, error) {
	if lymphocytes == 0 {
		return 0, fmt.Errorf("lymphocyte count cannot be zero for SIRI calculation")
	}
	return (neutrophils * monocytes) / lymphocytes, nil
}

// MLR is the Monocyte-to-Lymphocyte Ratio.
func MLR(monocytes, lymphocytes float64) (float64, error) {
	if lymphocytes == 0 {
		return 0, fmt.Errorf("lymphocyte count cannot be zero for MLR calculation")
	}
	return monocytes / lymphocytes, nil
}

// PIV is the Pan-Immune Inflammation Value.
func PIV(neutrophils, lymphocytes, platelets, monocytes float64) (float64, error) {
	if lymphocytes == 0 {
		return 0, fmt.Errorf("lymphocyte count cannot be zero for PIV calculation")
	}
	return (neutrophils * monocytes * platelets) / lymphocytes, nil
}

// CalculateIndices validates the counts, computes every applicable index
// and grades it. SIRI, MLR and PIV need a monocyte count and are skipped
// without one. Risk levels are graded on the unrounded values.
func CalculateIndices(neutrophils, lymphocytes, platelets float64, monocytes *float64) (internal.ReportResult, error) {
	validation := ValidateInputs(neutrophils, lymphocytes, platelets, monocytes)
	if !validation.Valid {
		return internal.ReportResult{}, fmt.Errorf("input validation failed: %s", strings.Join(validation.Errors, "; "))
	}

	result := internal.ReportResult{
		Results: map[string]internal.IndexResult{},
		Metadata: internal.ReportMetadata{
			CalculationDate: time.Now().Format(time.RFC3339),
			InputValidation: &validation,
			Warnings:        []string{},
		},
	}

	addIndex := func(name string, value float64, decimals int) {
		level := RiskLevelFor(value, ReferenceBands[name])
		result.Results[name] = internal.IndexResult{
			Value:          roundTo(value, decimals),
			RiskLevel:      level,
			Interpretation: Interpretations[name][level],
		}
	}

	sii, errSII := SII(neutrophils, lymphocytes, platelets)
	nlr, errNLR := NLR(neutrophils, lymphocytes)
	plr, errPLR := PLR(platelets, lymphocytes)
	if err := firstError(errSII, errNLR, errPLR); err != nil {
		result.Metadata.Warnings = append(result.Metadata.Warnings, "Calculation error: "+err.Error())
		return result, nil
	}
	addIndex("sii", sii, 1)
	addIndex("nlr", nlr, 2)
	addIndex("plr", plr, 1)

	if monocytes != nil {
		siri, errSIRI := SIRI(neutrophils, lymphocytes, *monocytes)
		mlr, errMLR := MLR(*monocytes, lymphocytes)
		piv, errPIV := PIV(neutrophils, lymphocytes, platelets, *monocytes)
		if err := firstError(errSIRI, errMLR, errPIV); err != nil {
			result.Metadata.Warnings = append(result.Metadata.Warnings, "Monocyte-dependent calculation error: "+err.Error())
		} else {
			addIndex("siri", siri, 1)
			addIndex("mlr", mlr, 2)
			addIndex("piv", piv, 1)
		}
	}

	result.Summary = GenerateSummary(result.Results)
	return result, nil
}

// GenerateSummary condenses per-index risk levels into an overall status
// line with headline recommendations.
func GenerateSummary(results map[string]internal.IndexResult) internal.PanelSummary {
	if len(results) == 0 {
		return internal.PanelSummary{
			OverallStatus:   "Cannot determine - calculation errors",
			HighestRisk:     []internal.HighRiskIndex{},
			Recommendations: []string{"Please check input values and recalculate"},
		}
	}

	counts := map[internal.RiskLevel]int{}
	highRisk := []internal.HighRiskIndex{}
	for _, name := range IndexOrder {
		data, ok := results[name]
		if !ok {
			continue
		}
		counts[data.RiskLevel]++
		if data.RiskLevel == internal.RiskHigh || data.RiskLevel == internal.RiskVeryHigh {
			highRisk = append(highRisk, internal.HighRiskIndex{
				Index:     strings.ToUpper(name),
				Value:     data.Value,
				RiskLevel: data.RiskLevel,
			})
		}
	}

	var overall string
	switch {
	case counts[internal.RiskVeryHigh] > 0:
		overall = "Critical inflammatory state - multiple indices severely elevated"
	case counts[internal.RiskHigh] > 0:
		overall = "High inflammatory burden - medical evaluation recommended"
	case counts[internal.RiskModerate] >= 2:
		overall = "Moderate inflammatory state - lifestyle interventions recommended"
	case counts[internal.RiskMild] >= 2:
		overall = "Mild inflammatory activation - monitor and consider prevention"
	default:
		overall = "Normal inflammatory status"
	}

	var recommendations []string
	switch {
	case counts[internal.RiskVeryHigh] > 0 || counts[internal.RiskHigh] > 0:
		recommendations = []string{
			"Consult with healthcare provider immediately",
			"Consider comprehensive inflammatory workup",
			"Evaluate for underlying infections or autoimmune conditions",
		}
	case counts[internal.RiskModerate] > 0:
		recommendations = []string{
			"Consider lifestyle modifications (diet, exercise, stress reduction)",
			"Monitor inflammatory markers regularly",
			"Discuss with healthcare provider",
		}
	case counts[internal.RiskMild] > 0:
		recommendations = []string{
			"Focus on anti-inflammatory lifestyle practices",
			"Regular exercise and stress management",
			"Consider dietary improvements",
		}
	default:
		recommendations = []string{"Maintain current healthy lifestyle practices"}
	}

	return internal.PanelSummary{
		OverallStatus:   overall,
		HighestRisk:     highRisk,
		Recommendations: recommendations,
	}
}

func roundTo(value float64, decimals int) float64 {
	shift := math.Pow(10, float64(decimals))
	return math.Round(value*shift) / shift
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

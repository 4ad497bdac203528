package indices

import (
	"fmt"
	"strings"

	"hemindex/internal"
)

// InterpretResults builds the clinical narrative around calculated
// indices: per-index significance, overall risk stratification, tiered
// recommendations and follow-up guidance. Age and sex are optional and
// only adjust the context and risk modifiers.
func InterpretResults(results map[string]internal.IndexResult, patientAge *int, patientSex *string) internal.Interpretation {
	interp := internal.Interpretation{
		ClinicalAssessment: map[string]internal.IndexAssessment{},
	}

	if patientAge != nil || patientSex != nil {
		interp.PatientContext = &internal.PatientContext{
			Age:               patientAge,
			Sex:               patientSex,
			AgeConsiderations: ageConsiderations(patientAge),
			SexConsiderations: sexConsiderations(patientSex),
		}
	}

	for _, name := range IndexOrder {
		data, ok := results[name]
		if !ok {
			continue
		}
		interp.ClinicalAssessment[name] = internal.IndexAssessment{
			Value:                 data.Value,
			RiskLevel:             data.RiskLevel,
			ClinicalSignificance:  clinicalSignificance(name, data.RiskLevel),
			Pathophysiology:       pathophysiology(name),
			DifferentialDiagnosis: differentialDiagnosis(name, data.RiskLevel),
		}
	}

	interp.RiskStratification = assessOverallRisk(results, patientAge, patientSex)
	interp.Recommendations = generateRecommendations(results)
	interp.FollowUp = followUpGuidance(results)
	return interp
}

func ageConsiderations(age *int) []string {
	if age == nil {
		return []string{}
	}
	considerations := []string{}
	switch {
	case *age < 18:
		considerations = append(considerations,
			"Pediatric ranges may differ from adult reference values",
			"Immune system still developing - values may be more variable")
	case *age >= 65:
		considerations = append(considerations,
			"Elderly patients may have baseline elevation in inflammatory markers",
			"Consider age-related immunosenescence effects",
			"Higher risk for inflammatory complications")
	case *age >= 50:
		considerations = append(considerations,
			"Middle-aged adults may show early signs of inflammaging",
			"Consider screening for age-related inflammatory conditions")
	}
	return considerations
}

func sexConsiderations(sex *string) []string {
	if sex == nil {
		return []string{}
	}
	considerations := []string{}
	switch strings.ToUpper(*sex) {
	case "F":
		considerations = append(considerations,
			"Women have higher baseline risk for autoimmune conditions",
			"Hormonal fluctuations may affect inflammatory markers",
			"Consider pregnancy, menstrual cycle, and menopause effects")
	case "M":
		considerations = append(considerations,
			"Men may have higher baseline inflammatory burden",
			"Consider cardiovascular risk factors")
	}
	return considerations
}

var significanceMap = map[string]map[internal.RiskLevel]string{
	"sii": {
		internal.RiskNormal:   "Balanced systemic immune-inflammatory state with normal cellular interactions",
		internal.RiskMild:     "Early signs of systemic inflammation - may indicate subclinical inflammatory process",
		internal.RiskModerate: "Significant systemic inflammation suggesting active inflammatory condition requiring evaluation",
		internal.RiskHigh:     "High-grade systemic inflammation indicating serious inflammatory burden - urgent evaluation needed",
		internal.RiskVeryHigh: "Critical systemic inflammation - immediate medical attention required",
	},
	"nlr": {
		internal.RiskNormal:   "Normal neutrophil-lymphocyte balance indicating healthy immune response",
		internal.RiskMild:     "Mild neutrophilia or lymphopenia - may indicate early inflammatory response or stress",
		internal.RiskModerate: "Moderate immune imbalance suggesting active inflammatory process or immune suppression",
		internal.RiskHigh:     "Significant immune dysregulation - high inflammatory burden or severe immune suppression",
		internal.RiskVeryHigh: "Critical immune imbalance - severe systemic inflammation or profound immune compromise",
	},
	"plr": {
		internal.RiskNormal:   "Normal platelet-lymphocyte balance with appropriate hemostatic and immune function",
		internal.RiskMild:     "Mildly elevated thrombotic and inflammatory risk",
		internal.RiskModerate: "Moderately increased risk for thrombotic complications and inflammation",
		internal.RiskHigh:     "High risk for thrombotic events and significant inflammatory burden",
	},
	"siri": {
		internal.RiskNormal:   "Normal systemic inflammatory response with balanced monocyte activation",
		internal.RiskMild:     "Mild systemic inflammatory response - early tissue inflammation",
		internal.RiskModerate: "Moderate inflammatory response indicating active tissue inflammation",
		internal.RiskHigh:     "High-grade inflammatory response with significant monocyte activation",
	},
	"mlr": {
		internal.RiskNormal:   "Normal monocyte activation levels",
		internal.RiskMild:     "Mild monocyte activation - early tissue inflammatory response",
		internal.RiskModerate: "Moderate monocyte activation indicating significant tissue inflammation",
		internal.RiskHigh:     "High monocyte activation suggesting extensive tissue inflammatory process",
	},
	"piv": {
		internal.RiskNormal:   "Normal pan-immune inflammatory status across all major cell types",
		internal.RiskMild:     "Mildly elevated pan-immune inflammation involving multiple cell types",
		internal.RiskModerate: "Moderate pan-immune inflammation with multi-cellular activation",
		internal.RiskHigh:     "High-grade pan-immune inflammation with extensive cellular involvement",
	},
}

func clinicalSignificance(name string, level internal.RiskLevel) string {
	if text, ok := significanceMap[name][level]; ok {
		return text
	}
	return "Unknown significance"
}

var pathophysiologyMap = map[string]string{
	"sii": "Reflects the balance between neutrophil-platelet pro-inflammatory activity and " +
		"lymphocyte-mediated adaptive immunity. Elevated values indicate predominance of " +
		"innate inflammatory responses over adaptive immune regulation.",
	"nlr": "Represents the balance between neutrophil-driven acute inflammation and " +
		"lymphocyte-mediated immune regulation. Elevated ratios suggest either " +
		"increased inflammatory drive or compromised lymphocyte function.",
	"plr": "Indicates the relationship between platelet-mediated hemostatic/inflammatory " +
		"responses and lymphocyte immune function. Elevation may reflect increased " +
		"thrombotic risk and inflammatory burden.",
	"siri": "Incorporates monocyte activation alongside neutrophil-lymphocyte balance, " +
		"providing insight into tissue-based inflammatory responses and macrophage " +
		"activation in addition to systemic inflammation.",
	"mlr": "Reflects monocyte activation relative to lymphocyte function, indicating " +
		"the degree of tissue inflammatory response and macrophage-mediated " +
		"inflammatory processes.",
	"piv": "Comprehensive index incorporating all major inflammatory cell types, " +
		"providing overall assessment of pan-immune inflammatory activation " +
		"across neutrophils, monocytes, platelets, and lymphocytes.",
}

func pathophysiology(name string) string {
	if text, ok := pathophysiologyMap[name]; ok {
		return text
	}
	return "Pathophysiology explanation not available"
}

var differentialMap = map[string][]string{
	"sii": {
		"Systemic inflammatory conditions (RA, SLE, IBD)",
		"Active infections (bacterial, viral, fungal)",
		"Malignancy with inflammatory response",
		"Cardiovascular disease with inflammation",
		"Metabolic syndrome with chronic inflammation",
	},
	"nlr": {
		"Acute bacterial infections",
		"Neutrophilic inflammatory conditions",
		"Stress response (physical or psychological)",
		"Corticosteroid effects",
		"Hematologic malignancies",
	},
	"plr": {
		"Thrombotic disorders",
		"Inflammatory conditions with platelet activation",
		"Malignancy with paraneoplastic effects",
		"Cardiovascular disease",
		"Autoimmune conditions",
	},
	"siri": {
		"Tissue inflammatory conditions",
		"Chronic inflammatory diseases",
		"Infectious processes with monocyte activation",
		"Granulomatous diseases",
		"Metabolic inflammatory conditions",
	},
	"mlr": {
		"Chronic inflammatory conditions",
		"Tissue inflammatory processes",
		"Infectious diseases with monocyte response",
		"Autoimmune conditions",
		"Inflammatory bowel disease",
	},
	"piv": {
		"Multi-system inflammatory disorders",
		"Severe inflammatory conditions",
		"Systemic infections",
		"Advanced autoimmune diseases",
		"Inflammatory complications of chronic diseases",
	},
}

func differentialDiagnosis(name string, level internal.RiskLevel) []string {
	if level == internal.RiskNormal || level == internal.RiskMild {
		return []string{"Consider physiological stress", "Subclinical infection", "Early inflammatory response"}
	}
	if dx, ok := differentialMap[name]; ok {
		return dx
	}
	return []string{"Inflammatory condition of unknown etiology"}
}

func assessOverallRisk(results map[string]internal.IndexResult, patientAge *int, patientSex *string) internal.RiskStratification {
	counts := map[internal.RiskLevel]int{
		internal.RiskNormal:   0,
		internal.RiskMild:     0,
		internal.RiskModerate: 0,
		internal.RiskHigh:     0,
		internal.RiskVeryHigh: 0,
	}
	for _, data := range results {
		counts[data.RiskLevel]++
	}

	var overall, urgency string
	switch {
	case counts[internal.RiskVeryHigh] > 0:
		overall, urgency = "critical", "immediate_attention"
	case counts[internal.RiskHigh] > 0:
		overall, urgency = "high", "urgent_evaluation"
	case counts[internal.RiskModerate] >= 2:
		overall, urgency = "moderate_to_high", "prompt_evaluation"
	case counts[internal.RiskModerate] == 1 || counts[internal.RiskMild] >= 2:
		overall, urgency = "moderate", "routine_evaluation"
	default:
		overall, urgency = "low", "routine_monitoring"
	}

	modifiers := []string{}
	if patientAge != nil && *patientAge >= 65 {
		modifiers = append(modifiers, "Increased risk due to advanced age")
	}
	if patientSex != nil && strings.ToUpper(*patientSex) == "F" {
		modifiers = append(modifiers, "Consider higher autoimmune disease risk in females")
	}

	return internal.RiskStratification{
		OverallRiskLevel: overall,
		Urgency:          urgency,
		RiskDistribution: counts,
		RiskModifiers:    modifiers,
		CompositeScore:   compositeScore(results),
	}
}

// compositeScore weights each index by clinical importance and maps risk
// levels onto a 1-5 scale, yielding a single severity number.
func compositeScore(results map[string]internal.IndexResult) float64 {
	weights := map[string]float64{
		"sii":  0.25,
		"nlr":  0.20,
		"plr":  0.15,
		"siri": 0.20,
		"mlr":  0.10,
		"piv":  0.10,
	}
	scores := map[internal.RiskLevel]float64{
		internal.RiskNormal:   1,
		internal.RiskMild:     2,
		internal.RiskModerate: 3,
		internal.RiskHigh:     4,
		internal.RiskVeryHigh: 5,
	}

	var weighted, total float64
	for name, data := range results {
		weight, ok := weights[name]
		if !ok {
			continue
		}
		weighted += scores[data.RiskLevel] * weight
		total += weight
	}
	if total == 0 {
		return 1
	}
	return roundTo(weighted/total, 2)
}

func generateRecommendations(results map[string]internal.IndexResult) internal.RecommendationSet {
	recs := internal.RecommendationSet{
		Immediate:  []string{},
		ShortTerm:  []string{},
		LongTerm:   []string{},
		Lifestyle:  []string{},
		Monitoring: []string{},
	}

	has := map[internal.RiskLevel]bool{}
	for _, data := range results {
		has[data.RiskLevel] = true
	}

	if has[internal.RiskVeryHigh] {
		recs.Immediate = append(recs.Immediate,
			"Urgent medical evaluation required",
			"Consider emergency department evaluation if symptomatic",
			"Rule out serious inflammatory conditions",
			"Consider immediate anti-inflammatory intervention if indicated")
	} else if has[internal.RiskHigh] {
		recs.Immediate = append(recs.Immediate,
			"Medical evaluation within 24-48 hours",
			"Assess for signs and symptoms of inflammatory conditions",
			"Consider infectious disease evaluation")
	}

	if has[internal.RiskHigh] || has[internal.RiskVeryHigh] || has[internal.RiskModerate] {
		recs.ShortTerm = append(recs.ShortTerm,
			"Complete inflammatory workup (ESR, CRP, cytokines)",
			"Assess for autoimmune markers if indicated",
			"Consider imaging studies for inflammatory conditions",
			"Evaluate for infectious sources",
			"Review medication effects on inflammatory markers")
	}

	recs.LongTerm = append(recs.LongTerm,
		"Regular monitoring of inflammatory indices",
		"Trend analysis over time",
		"Correlation with clinical symptoms and conditions")

	if has[internal.RiskMild] || has[internal.RiskModerate] || has[internal.RiskHigh] {
		recs.Lifestyle = append(recs.Lifestyle,
			"Anti-inflammatory diet implementation",
			"Regular moderate exercise program",
			"Stress reduction techniques",
			"Adequate sleep hygiene (7-9 hours)",
			"Weight management if indicated",
			"Smoking cessation if applicable",
			"Limit alcohol consumption")
	}

	interval := "annually"
	if has[internal.RiskHigh] {
		interval = "monthly"
	} else if has[internal.RiskModerate] {
		interval = "quarterly"
	}
	recs.Monitoring = append(recs.Monitoring,
		fmt.Sprintf("Repeat inflammatory indices %s", interval),
		"Track clinical symptoms and correlation",
		"Monitor response to interventions")

	return recs
}

func followUpGuidance(results map[string]internal.IndexResult) internal.FollowUpPlan {
	has := map[internal.RiskLevel]bool{}
	for _, data := range results {
		has[data.RiskLevel] = true
	}

	var timing, frequency string
	switch {
	case has[internal.RiskVeryHigh]:
		timing, frequency = "1-2 weeks", "weekly initially"
	case has[internal.RiskHigh]:
		timing, frequency = "2-4 weeks", "bi-weekly initially"
	case has[internal.RiskModerate]:
		timing, frequency = "4-8 weeks", "monthly"
	default:
		timing, frequency = "3-6 months", "quarterly"
	}

	return internal.FollowUpPlan{
		Timing:              timing,
		MonitoringFrequency: frequency,
		KeyParameters: []string{
			"Complete blood count with differential",
			"Inflammatory markers (ESR, CRP)",
			"Clinical symptoms and functional status",
			"Response to interventions",
		},
		ConcerningChanges: []string{
			"Worsening of any inflammatory index",
			"Development of new symptoms",
			"Failure to improve with interventions",
			"Emergence of complications",
		},
		ReferralCriteria: []string{
			"Persistently elevated indices despite treatment",
			"Development of organ-specific complications",
			"Suspicion of underlying autoimmune or inflammatory disease",
			"Need for specialized inflammatory disease evaluation",
		},
	}
}

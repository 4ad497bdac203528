package indices

import (
	"strings"
	"testing"

	"hemindex/internal"
	"hemindex/internal/util"
)

func TestInterpretResultsCritical(t *testing.T) {
	results := map[string]internal.IndexResult{
		"sii": {Value: 2500, RiskLevel: internal.RiskVeryHigh},
		"nlr": {Value: 2.5, RiskLevel: internal.RiskMild},
		"plr": {Value: 120, RiskLevel: internal.RiskNormal},
	}
	interp := InterpretResults(results, util.IntPtr(70), util.StringPtr("F"))

	rs := interp.RiskStratification
	if rs.OverallRiskLevel != "critical" || rs.Urgency != "immediate_attention" {
		t.Fatalf("stratification=%+v", rs)
	}
	if len(rs.RiskModifiers) != 2 {
		t.Fatalf("modifiers=%+v", rs.RiskModifiers)
	}
	if rs.CompositeScore != 3 {
		t.Fatalf("composite=%g", rs.CompositeScore)
	}

	if interp.PatientContext == nil {
		t.Fatal("no patient context")
	}
	if len(interp.PatientContext.AgeConsiderations) != 3 {
		t.Fatalf("age considerations=%+v", interp.PatientContext.AgeConsiderations)
	}
	if len(interp.PatientContext.SexConsiderations) != 3 {
		t.Fatalf("sex considerations=%+v", interp.PatientContext.SexConsiderations)
	}

	sii := interp.ClinicalAssessment["sii"]
	if !strings.Contains(sii.ClinicalSignificance, "Critical systemic inflammation") {
		t.Fatalf("significance=%q", sii.ClinicalSignificance)
	}
	if len(sii.DifferentialDiagnosis) != 5 {
		t.Fatalf("differential=%+v", sii.DifferentialDiagnosis)
	}
	nlr := interp.ClinicalAssessment["nlr"]
	if nlr.DifferentialDiagnosis[0] != "Consider physiological stress" {
		t.Fatalf("mild differential=%+v", nlr.DifferentialDiagnosis)
	}

	if len(interp.Recommendations.Immediate) != 4 {
		t.Fatalf("immediate=%+v", interp.Recommendations.Immediate)
	}
	if interp.FollowUp.Timing != "1-2 weeks" || interp.FollowUp.MonitoringFrequency != "weekly initially" {
		t.Fatalf("followUp=%+v", interp.FollowUp)
	}
}

func TestInterpretResultsLowRisk(t *testing.T) {
	results := map[string]internal.IndexResult{
		"nlr": {Value: 1.5, RiskLevel: internal.RiskNormal},
		"plr": {Value: 120, RiskLevel: internal.RiskNormal},
	}
	interp := InterpretResults(results, nil, nil)

	if interp.PatientContext != nil {
		t.Fatalf("context=%+v", interp.PatientContext)
	}
	rs := interp.RiskStratification
	if rs.OverallRiskLevel != "low" || rs.Urgency != "routine_monitoring" {
		t.Fatalf("stratification=%+v", rs)
	}
	if rs.CompositeScore != 1 {
		t.Fatalf("composite=%g", rs.CompositeScore)
	}
	if len(rs.RiskModifiers) != 0 {
		t.Fatalf("modifiers=%+v", rs.RiskModifiers)
	}
	if len(interp.Recommendations.Immediate) != 0 {
		t.Fatalf("immediate=%+v", interp.Recommendations.Immediate)
	}
	if len(interp.Recommendations.LongTerm) == 0 {
		t.Fatal("no long-term recommendations")
	}
	if interp.FollowUp.Timing != "3-6 months" {
		t.Fatalf("followUp=%+v", interp.FollowUp)
	}
}

func TestInterpretResultsModerateEscalation(t *testing.T) {
	results := map[string]internal.IndexResult{
		"sii": {Value: 900, RiskLevel: internal.RiskModerate},
		"nlr": {Value: 3.5, RiskLevel: internal.RiskModerate},
	}
	interp := InterpretResults(results, nil, nil)

	rs := interp.RiskStratification
	if rs.OverallRiskLevel != "moderate_to_high" || rs.Urgency != "prompt_evaluation" {
		t.Fatalf("stratification=%+v", rs)
	}
	if len(interp.Recommendations.ShortTerm) == 0 {
		t.Fatal("no short-term recommendations for moderate panel")
	}
	if interp.Recommendations.Monitoring[0] != "Repeat inflammatory indices quarterly" {
		t.Fatalf("monitoring=%+v", interp.Recommendations.Monitoring)
	}
	if interp.FollowUp.Timing != "4-8 weeks" {
		t.Fatalf("followUp=%+v", interp.FollowUp)
	}
}

func TestAgeConsiderations(t *testing.T) {
	if got := ageConsiderations(util.IntPtr(10)); len(got) != 2 || !strings.Contains(got[0], "Pediatric") {
		t.Fatalf("pediatric=%+v", got)
	}
	if got := ageConsiderations(util.IntPtr(55)); len(got) != 2 || !strings.Contains(got[0], "inflammaging") {
		t.Fatalf("middle-aged=%+v", got)
	}
	if got := ageConsiderations(util.IntPtr(80)); len(got) != 3 {
		t.Fatalf("elderly=%+v", got)
	}
	if got := ageConsiderations(util.IntPtr(30)); len(got) != 0 {
		t.Fatalf("adult=%+v", got)
	}
	if got := ageConsiderations(nil); len(got) != 0 {
		t.Fatalf("nil age=%+v", got)
	}
}

func TestSexConsiderations(t *testing.T) {
	if got := sexConsiderations(util.StringPtr("f")); len(got) != 3 {
		t.Fatalf("female=%+v", got)
	}
	if got := sexConsiderations(util.StringPtr("M")); len(got) != 2 {
		t.Fatalf("male=%+v", got)
	}
	if got := sexConsiderations(util.StringPtr("X")); len(got) != 0 {
		t.Fatalf("unknown=%+v", got)
	}
}

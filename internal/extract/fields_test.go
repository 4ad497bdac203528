package extract

import (
	"testing"

	"hemindex/internal/config"
)

func newTestExtractor() *Extractor {
	cfg, _ := config.Load()
	return New(cfg)
}

func TestFindFieldValueExactLabel(t *testing.T) {
	e := newTestExtractor()
	fe := e.FindFieldValue("Neutrophils 4.5 x10³/L", FieldMappings["neutrophils"])
	if !fe.Found() {
		t.Fatal("field not found")
	}
	if *fe.Value != 4500 {
		t.Fatalf("value=%g", *fe.Value)
	}
	if fe.Confidence != 95 {
		t.Fatalf("confidence=%d", fe.Confidence)
	}
	if fe.MatchedVariation != "neutrophils" {
		t.Fatalf("variation=%q", fe.MatchedVariation)
	}
	if fe.RawText != "Neutrophils 4.5 x10³/L" {
		t.Fatalf("raw=%q", fe.RawText)
	}
}

func TestFindFieldValueAbbreviation(t *testing.T) {
	e := newTestExtractor()
	fe := e.FindFieldValue("PLT 250 x10³/L", FieldMappings["platelets"])
	if !fe.Found() {
		t.Fatal("field not found")
	}
	if *fe.Value != 250000 {
		t.Fatalf("value=%g", *fe.Value)
	}
	if fe.MatchedVariation != "plt" {
		t.Fatalf("variation=%q", fe.MatchedVariation)
	}
}

func TestFindFieldValueAbsent(t *testing.T) {
	e := newTestExtractor()
	fe := e.FindFieldValue("Sodium 140 mmol/L", FieldMappings["neutrophils"])
	if fe.Found() {
		t.Fatalf("unexpected match: %+v", fe)
	}
	if fe.Confidence != 0 {
		t.Fatalf("confidence=%d", fe.Confidence)
	}
}

func TestFindFieldValueConfidenceBounds(t *testing.T) {
	e := newTestExtractor()
	lines := []string{
		"Neutrophils 4.5 x10³/L",
		"Neutrophlis 4.5 x10³/L",
		"Lymphs 1.8 x10³/L",
		"Random text with 42 in it",
	}
	for _, line := range lines {
		for field, variations := range FieldMappings {
			fe := e.FindFieldValue(line, variations)
			if fe.Confidence < 0 || fe.Confidence > 95 {
				t.Fatalf("%s on %q: confidence=%d", field, line, fe.Confidence)
			}
			if fe.Found() != (fe.Confidence > 0) {
				t.Fatalf("%s on %q: found=%v confidence=%d", field, line, fe.Found(), fe.Confidence)
			}
		}
	}
}

func TestExtractCBCValuesRequiredOnly(t *testing.T) {
	e := newTestExtractor()
	text := "Neutrophils: 4200 cells/µL\nLymphocytes: 1800 cells/µL\nPlatelets: 250000 cells/µL\n"
	values := e.ExtractCBCValues(text)
	if len(values) != 3 {
		t.Fatalf("fields=%d", len(values))
	}
	want := map[string]float64{"neutrophils": 4200, "lymphocytes": 1800, "platelets": 250000}
	for field, v := range want {
		fe, ok := values[field]
		if !ok || !fe.Found() {
			t.Fatalf("%s not extracted", field)
		}
		if *fe.Value != v {
			t.Fatalf("%s=%g want %g", field, *fe.Value, v)
		}
	}
	if _, ok := values["monocytes"]; ok {
		t.Fatal("unexpected monocytes key")
	}
}

func TestExtractCBCValuesAttachesReferenceRanges(t *testing.T) {
	e := newTestExtractor()
	text := "Neutrophils 4.50 x10³/L (1.60-6.90)\nLymphocytes 1.80 x10³/L (1.00-3.00)\nPlatelets 250 x10³/L (150-450)\n"
	values := e.ExtractCBCValues(text)

	fe := values["neutrophils"]
	if fe.ReferenceRange == nil {
		t.Fatal("no reference range")
	}
	if fe.ReferenceRange.Min != 1600 || fe.ReferenceRange.Max != 6900 {
		t.Fatalf("range=%+v", *fe.ReferenceRange)
	}

	plt := values["platelets"]
	if plt.ReferenceRange == nil || plt.ReferenceRange.Min != 150000 || plt.ReferenceRange.Max != 450000 {
		t.Fatalf("platelet range=%+v", plt.ReferenceRange)
	}
}

func TestExtractReferenceRangesPlainUnits(t *testing.T) {
	ranges := ExtractReferenceRanges("Lymphocytes 1800 cells/µL (1000-3000)")
	rng, ok := ranges["lymphocytes"]
	if !ok {
		t.Fatal("no range extracted")
	}
	if rng.Min != 1000 || rng.Max != 3000 {
		t.Fatalf("range=%+v", rng)
	}
}

func TestExtractReferenceRangesLineBounded(t *testing.T) {
	// the haemoglobin range on the next line must not attach to neutrophils
	text := "Neutrophils 4.5 x10³/L\nHaemoglobin 14.2 g/dL (13.0-17.0)"
	if ranges := ExtractReferenceRanges(text); len(ranges) != 0 {
		t.Fatalf("ranges=%+v", ranges)
	}
}

func TestExtractReferenceRangesFirstVariationWins(t *testing.T) {
	text := "Neutrophils 4.50 x10³/L (1.60-6.90)\nSegs 40 % (20-60)"
	rng, ok := ExtractReferenceRanges(text)["neutrophils"]
	if !ok {
		t.Fatal("no range extracted")
	}
	if rng.Min != 1600 || rng.Max != 6900 {
		t.Fatalf("range=%+v", rng)
	}
}

package extract

import "testing"

func TestParseValueWithUnit(t *testing.T) {
	cases := []struct {
		text  string
		value float64
		unit  string
	}{
		{"4.5 x10³/L", 4500, "x10³/L"},
		{"Neutrophils 4.5 x 10^3 /L", 4500, "x10³/L"},
		{"7.2 xIOS/L", 7200, "x10³/L"},
		{"Platelets 250 x10®/L", 250000, "x10³/L"},
		{"4200 cells/µL", 4200, "cells/µL"},
		{"1800/uL", 1800, "cells/µL"},
		{"250,000 cells/uL", 250000, "cells/µL"},
		{"4.5 K/uL", 4500, "K/µL"},
		{"4.5", 4500, "x10³/L (assumed)"},
		{"Lymphocytes 1.8 (1.00-3.00)", 1800, "x10³/L (assumed)"},
	}
	for _, tc := range cases {
		value, unit := ParseValueWithUnit(tc.text)
		if value == nil || unit == nil {
			t.Fatalf("%q: no value parsed", tc.text)
		}
		if *value != tc.value {
			t.Fatalf("%q: value=%g want %g", tc.text, *value, tc.value)
		}
		if *unit != tc.unit {
			t.Fatalf("%q: unit=%q want %q", tc.text, *unit, tc.unit)
		}
	}
}

func TestParseValueWithUnitNoMatch(t *testing.T) {
	for _, text := range []string{"", "no numbers here", "Haemoglobin within range", "x10³/L"} {
		value, unit := ParseValueWithUnit(text)
		if value != nil || unit != nil {
			t.Fatalf("%q: expected no match", text)
		}
	}
}

func TestParseValueWithUnitIdempotent(t *testing.T) {
	first, _ := ParseValueWithUnit("Neutrophils 4.5 x10³/L")
	second, _ := ParseValueWithUnit("Neutrophils 4.5 x10³/L")
	if first == nil || second == nil || *first != *second {
		t.Fatalf("first=%v second=%v", first, second)
	}
}

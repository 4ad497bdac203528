// Package indices computes the immune inflammatory indices from absolute
// CBC counts and grades each one against published risk bands.
package indices

import (
	"math"

	"hemindex/internal"
)

// IndexOrder fixes the iteration order over calculated indices.
var IndexOrder = []string{"sii", "nlr", "plr", "siri", "mlr", "piv"}

// RiskBand is a half-open interval [Min, Max).
type RiskBand struct {
	Level internal.RiskLevel
	Min   float64
	Max   float64
}

// ReferenceBands per index. Values above every band rate very_high. Bands
// assume SII, NLR and the other ratios were computed from counts in the
// same unit, with SII conventionally read against x10³/L platelet counts.
var ReferenceBands = map[string][]RiskBand{
	"sii": {
		{internal.RiskNormal, 0, 500},
		{internal.RiskMild, 500, 800},
		{internal.RiskModerate, 800, 1200},
		{internal.RiskHigh, 1200, 2000},
		{internal.RiskVeryHigh, 2000, math.Inf(1)},
	},
	"nlr": {
		{internal.RiskNormal, 0, 2},
		{internal.RiskMild, 2, 3},
		{internal.RiskModerate, 3, 5},
		{internal.RiskHigh, 5, 8},
		{internal.RiskVeryHigh, 8, math.Inf(1)},
	},
	"plr": {
		{internal.RiskNormal, 0, 150},
		{internal.RiskMild, 150, 200},
		{internal.RiskModerate, 200, 300},
		{internal.RiskHigh, 300, math.Inf(1)},
	},
	"siri": {
		{internal.RiskNormal, 0, 1},
		{internal.RiskMild, 1, 2},
		{internal.RiskModerate, 2, 3},
		{internal.RiskHigh, 3, math.Inf(1)},
	},
	"mlr": {
		{internal.RiskNormal, 0, 0.3},
		{internal.RiskMild, 0.3, 0.5},
		{internal.RiskModerate, 0.5, 0.8},
		{internal.RiskHigh, 0.8, math.Inf(1)},
	},
	"piv": {
		{internal.RiskNormal, 0, 300},
		{internal.RiskMild, 300, 600},
		{internal.RiskModerate, 600, 1200},
		{internal.RiskHigh, 1200, math.Inf(1)},
	},
}

// RiskLevelFor returns the band containing value. Values outside every
// band fall back to very_high.
func RiskLevelFor(value float64, bands []RiskBand) internal.RiskLevel {
	for _, b := range bands {
		if value >= b.Min && value < b.Max {
			return b.Level
		}
	}
	return internal.RiskVeryHigh
}

// Interpretations holds the one-line clinical reading per index and level.
var Interpretations = map[string]map[internal.RiskLevel]string{
	"sii": {
		internal.RiskNormal:   "Normal systemic immune-inflammation balance",
		internal.RiskMild:     "Mildly elevated systemic inflammation - monitor and consider lifestyle interventions",
		internal.RiskModerate: "Moderately elevated systemic inflammation - clinical evaluation recommended",
		internal.RiskHigh:     "High systemic inflammation - medical intervention likely needed",
		internal.RiskVeryHigh: "Very high systemic inflammation - urgent medical attention recommended",
	},
	"nlr": {
		internal.RiskNormal:   "Normal neutrophil-lymphocyte balance",
		internal.RiskMild:     "Mild immune activation - may indicate early inflammatory response",
		internal.RiskModerate: "Moderate immune activation - clinical correlation recommended",
		internal.RiskHigh:     "High immune activation - significant inflammatory burden",
		internal.RiskVeryHigh: "Very high immune activation - critical inflammatory state",
	},
	"plr": {
		internal.RiskNormal:   "Normal platelet-lymphocyte balance",
		internal.RiskMild:     "Mildly elevated thrombotic/inflammatory risk",
		internal.RiskModerate: "Moderately elevated thrombotic/inflammatory risk",
		internal.RiskHigh:     "High thrombotic/inflammatory risk",
	},
	"siri": {
		internal.RiskNormal:   "Normal systemic inflammatory response",
		internal.RiskMild:     "Mild systemic inflammatory response",
		internal.RiskModerate: "Moderate systemic inflammatory response",
		internal.RiskHigh:     "High systemic inflammatory response",
	},
	"mlr": {
		internal.RiskNormal:   "Normal monocyte activation",
		internal.RiskMild:     "Mild monocyte activation",
		internal.RiskModerate: "Moderate monocyte activation indicating tissue inflammation",
		internal.RiskHigh:     "High monocyte activation indicating significant tissue inflammation",
	},
	"piv": {
		internal.RiskNormal:   "Normal pan-immune inflammation status",
		internal.RiskMild:     "Mildly elevated pan-immune inflammation",
		internal.RiskModerate: "Moderately elevated pan-immune inflammation",
		internal.RiskHigh:     "High pan-immune inflammation across multiple cell types",
	},
}

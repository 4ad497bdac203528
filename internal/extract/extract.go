// Package extract pulls CBC values, reference ranges and patient
// demographics out of noisy lab report text, scoring every hit with a
// confidence percentage.
package extract

import (
	"hemindex/internal/config"
)

type Extractor struct {
	MatchThreshold  int
	ConfidenceCap   int
	HighQuality     float64
	MediumQuality   float64
	ReviewThreshold float64
	DemographicMin  int
}

func New(cfg config.Config) *Extractor {
	return &Extractor{
		MatchThreshold:  cfg.FieldMatchThreshold,
		ConfidenceCap:   cfg.FieldConfidenceCap,
		HighQuality:     cfg.HighQualityThreshold,
		MediumQuality:   cfg.MediumQualityFloor,
		ReviewThreshold: cfg.ReviewThreshold,
		DemographicMin:  cfg.DemographicThreshold,
	}
}

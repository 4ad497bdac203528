package extract

import (
	"strings"

	"hemindex/internal"
)

// ValidateExtractionQuality grades an extraction run. Quality is high only
// when all required fields were found with a strong average confidence;
// manual review is recommended whenever the average drops below the review
// threshold or a required field is missing.
func (e *Extractor) ValidateExtractionQuality(extracted map[string]internal.FieldExtraction) internal.QualityReport {
	foundRequired := 0
	for _, field := range internal.RequiredFields {
		if _, ok := extracted[field]; ok {
			foundRequired++
		}
	}

	avg := 0.0
	if len(extracted) > 0 {
		total := 0.0
		for _, data := range extracted {
			total += float64(data.Confidence)
		}
		avg = total / float64(len(extracted))
	}

	var issues []string
	if foundRequired < len(internal.RequiredFields) {
		var missing []string
		for _, field := range internal.RequiredFields {
			if _, ok := extracted[field]; !ok {
				missing = append(missing, field)
			}
		}
		issues = append(issues, "Missing required fields: "+strings.Join(missing, ", "))
	}

	var lowConfidence []string
	for _, field := range internal.FieldOrder {
		if data, ok := extracted[field]; ok && float64(data.Confidence) < e.ReviewThreshold {
			lowConfidence = append(lowConfidence, field)
		}
	}
	if len(lowConfidence) > 0 {
		issues = append(issues, "Low confidence fields: "+strings.Join(lowConfidence, ", "))
	}

	quality := internal.QualityLow
	switch {
	case avg > e.HighQuality && foundRequired == len(internal.RequiredFields):
		quality = internal.QualityHigh
	case avg > e.MediumQuality && foundRequired >= 2:
		quality = internal.QualityMedium
	}

	return internal.QualityReport{
		OverallQuality:          quality,
		AverageConfidence:       avg,
		RequiredFieldsFound:     foundRequired,
		TotalFieldsFound:        len(extracted),
		QualityIssues:           issues,
		ManualReviewRecommended: avg < e.ReviewThreshold || foundRequired < len(internal.RequiredFields),
	}
}

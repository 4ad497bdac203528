package extract

import (
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"hemindex/internal"
	"hemindex/internal/util"
)

// FindFieldValue scans report lines for any of the field's label
// variations using partial-ratio fuzzy matching. The best-scoring line
// that also yields a parseable value wins; ties keep the earlier hit.
// Confidence is the match ratio capped at ConfidenceCap, so a found value
// always carries a confidence above MatchThreshold.
func (e *Extractor) FindFieldValue(text string, variations []string) internal.FieldExtraction {
	var best internal.FieldExtraction

	for _, line := range util.SplitLines(text) {
		loweredLine := strings.ToLower(line)
		for _, variation := range variations {
			ratio := fuzzy.PartialRatio(strings.ToLower(variation), loweredLine)
			if ratio <= e.MatchThreshold {
				continue
			}
			value, unit := ParseValueWithUnit(line)
			if value == nil {
				continue
			}
			confidence := ratio
			if confidence > e.ConfidenceCap {
				confidence = e.ConfidenceCap
			}
			if confidence > best.Confidence {
				best = internal.FieldExtraction{
					Value:            value,
					Confidence:       confidence,
					Unit:             unit,
					RawText:          line,
					MatchedVariation: variation,
				}
			}
		}
	}
	return best
}

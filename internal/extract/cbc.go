package extract

import (
	"hemindex/internal"
)

// ExtractCBCValues runs field extraction for every known CBC field and
// attaches reference ranges to the fields that were found. Fields with no
// usable value are left out of the result entirely.
func (e *Extractor) ExtractCBCValues(text string) map[string]internal.FieldExtraction {
	extracted := make(map[string]internal.FieldExtraction)

	for _, field := range internal.FieldOrder {
		result := e.FindFieldValue(text, FieldMappings[field])
		if result.Found() {
			extracted[field] = result
		}
	}

	for field, rng := range ExtractReferenceRanges(text) {
		if fe, ok := extracted[field]; ok {
			r := rng
			fe.ReferenceRange = &r
			extracted[field] = fe
		}
	}
	return extracted
}

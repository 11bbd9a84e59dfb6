package constants

import (
	"strings"
)

// Category groups custom payment requests for reporting. Free text is accepted
// on submission and canonicalized when it matches a known category.
type Category string

const (
	AdditionalWork Category = "Additional Work Required"
	Materials      Category = "Materials"
	Labor          Category = "Labor"
	Equipment      Category = "Equipment"
	Permits        Category = "Permits & Fees"
	DesignChange   Category = "Design Change"
	Repairs        Category = "Repairs"
	Other          Category = "Other"
)

var allCategories = []Category{
	AdditionalWork,
	Materials,
	Labor,
	Equipment,
	Permits,
	DesignChange,
	Repairs,
	Other,
}

// Canonicalize maps free text onto a known category. The second return is false
// when the input was kept verbatim.
func Canonicalize(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return string(Other), false
	}

	normalized := strings.ToLower(trimmed)

	synonyms := map[string]Category{
		"additional work": AdditionalWork,
		"extra work":      AdditionalWork,
		"material":        Materials,
		"cement":          Materials,
		"steel":           Materials,
		"labour":          Labor,
		"wages":           Labor,
		"machinery":       Equipment,
		"tools":           Equipment,
		"permit":          Permits,
		"fees":            Permits,
		"change order":    DesignChange,
		"repair":          Repairs,
	}

	if cat, ok := synonyms[normalized]; ok {
		return string(cat), true
	}

	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) {
			return string(cat), true
		}
	}

	return trimmed, false
}

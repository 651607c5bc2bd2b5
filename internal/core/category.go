package core

import (
	"strings"

	"golang.org/x/text/cases"
)

// OtherCategory is the fallback display name for missing categories.
const OtherCategory = "Other"

// NormalizeCategory trims the name and collapses internal whitespace runs.
// Empty input yields OtherCategory. The function is idempotent.
func NormalizeCategory(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return OtherCategory
	}
	return strings.Join(fields, " ")
}

// NormalizeCategoryPtr is NormalizeCategory for optional values.
func NormalizeCategoryPtr(name *string) string {
	if name == nil {
		return OtherCategory
	}
	return NormalizeCategory(*name)
}

// CategoryKey is the join key for every category comparison: the case-folded
// normalized name. Display strings keep the first spelling seen.
func CategoryKey(name string) string {
	// A Caser carries state, so one is built per call.
	return cases.Fold().String(NormalizeCategory(name))
}

// SameCategory compares two category names under the canonical casing rule.
func SameCategory(a, b string) bool {
	return CategoryKey(a) == CategoryKey(b)
}

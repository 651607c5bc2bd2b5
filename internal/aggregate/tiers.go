package aggregate

import (
	"fmt"
	"strings"

	"finboard/internal/core"

	"github.com/shopspring/decimal"
)

// Tier is a spending class for the needs/wants breakdown.
type Tier string

const (
	Needs     Tier = "Needs"
	Wants     Tier = "Wants"
	Mandatory Tier = "Mandatory"
)

// Tiers lists every tier in display order.
var Tiers = []Tier{Needs, Wants, Mandatory}

// ParseTier accepts a tier name in any case.
func ParseTier(s string) (Tier, error) {
	for _, t := range Tiers {
		if strings.EqualFold(strings.TrimSpace(s), string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown tier %q", s)
}

// TierOverrides pins categories, by category key, to a tier.
type TierOverrides map[string]Tier

var (
	mandatoryKeywords = []string{"rent", "mortgage", "insurance", "tax", "loan", "utilities", "tuition"}
	needsKeywords     = []string{
		"grocer", "supermarket", "transport", "transit", "fuel", "gas", "electric",
		"water", "phone", "internet", "health", "medical", "pharmacy", "doctor",
		"childcare", "education",
	}
)

// Classify resolves a category's tier: override, then mandatory keywords,
// then needs keywords, else Wants.
func Classify(category string, overrides TierOverrides) Tier {
	key := core.CategoryKey(category)
	if t, ok := overrides[key]; ok {
		return t
	}
	if containsAny(key, mandatoryKeywords) {
		return Mandatory
	}
	if containsAny(key, needsKeywords) {
		return Needs
	}
	return Wants
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// NeedsWants splits spending across tiers. Tiers with no spending are
// omitted.
func NeedsWants(in Input) ([]TierAmount, Source) {
	if b := in.Bundle; b != nil && len(b.NeedsWants) > 0 && !in.hasHidden() && len(in.Tiers) == 0 {
		return append([]TierAmount(nil), b.NeedsWants...), SourceBundle
	}

	sums := make(map[Tier]decimal.Decimal, len(Tiers))
	total := decimal.Zero
	for _, tx := range in.visible() {
		if !tx.IsExpense() {
			continue
		}
		tier := Classify(tx.Category, in.Tiers)
		sums[tier] = sums[tier].Add(tx.Magnitude())
		total = total.Add(tx.Magnitude())
	}
	out := make([]TierAmount, 0, len(Tiers))
	for _, t := range Tiers {
		v, ok := sums[t]
		if !ok || !v.IsPositive() {
			continue
		}
		out = append(out, TierAmount{Tier: t, Amount: core.Float(v), Percent: percent(v, total)})
	}
	return out, SourceTransactions
}

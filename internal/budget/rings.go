// Package budget computes spend-against-limit rings and owns the lifecycle
// of per-category budget limits.
package budget

import (
	"sort"

	"finboard/internal/core"
	"finboard/internal/period"

	"github.com/shopspring/decimal"
)

// DefaultRingCount is how many categories get a ring when none are selected.
const DefaultRingCount = 5

var (
	yearScaleDefault = decimal.NewFromInt(5000)
	shortDefault     = decimal.NewFromInt(2000)
)

// Limits maps category keys to budget limits.
type Limits map[string]decimal.Decimal

// Set stores a limit under the category's key.
func (l Limits) Set(category string, limit decimal.Decimal) {
	l[core.CategoryKey(category)] = limit
}

// Get returns the stored limit for a category, if any.
func (l Limits) Get(category string) (decimal.Decimal, bool) {
	v, ok := l[core.CategoryKey(category)]
	return v, ok
}

// DefaultLimit is the limit for categories without a stored one. Year-scale
// filters get the higher default.
func DefaultLimit(f period.Filter) decimal.Decimal {
	if f.YearScale {
		return yearScaleDefault
	}
	return shortDefault
}

// Resolve returns the stored limit when positive, else the filter default.
func (l Limits) Resolve(category string, f period.Filter) decimal.Decimal {
	if v, ok := l.Get(category); ok && v.IsPositive() {
		return v
	}
	return DefaultLimit(f)
}

// RingDatum is one activity ring.
type RingDatum struct {
	Category string  `json:"category"`
	Spent    float64 `json:"spent"`
	Limit    float64 `json:"limit"`
	// Value is spent/limit clamped to [0, 1].
	Value    float64 `json:"value"`
	Exceeded bool    `json:"exceeded"`
}

// ComputeRings sums expense magnitude per category and produces a ring for
// each selected category, or for the top spenders when selected is empty.
// Categories with no spend never get a ring.
func ComputeRings(txs []core.Transaction, selected []string, limits Limits, f period.Filter) []RingDatum {
	type spend struct {
		name   string
		amount decimal.Decimal
	}
	byKey := make(map[string]*spend)
	order := make([]string, 0)
	for _, tx := range txs {
		if !tx.IsExpense() {
			continue
		}
		key := core.CategoryKey(tx.Category)
		s, ok := byKey[key]
		if !ok {
			s = &spend{name: core.NormalizeCategory(tx.Category)}
			byKey[key] = s
			order = append(order, key)
		}
		s.amount = s.amount.Add(tx.Magnitude())
	}

	var picked []string
	if len(selected) > 0 {
		seen := make(map[string]bool, len(selected))
		for _, c := range selected {
			key := core.CategoryKey(c)
			if !seen[key] {
				seen[key] = true
				picked = append(picked, key)
			}
		}
	} else {
		picked = topKeys(order, func(k string) decimal.Decimal { return byKey[k].amount }, DefaultRingCount)
	}

	rings := make([]RingDatum, 0, len(picked))
	for _, key := range picked {
		s, ok := byKey[key]
		if !ok || !s.amount.IsPositive() {
			continue
		}
		limit := limits.Resolve(s.name, f)
		ratio := decimal.Min(s.amount.Div(limit), decimal.NewFromInt(1))
		rings = append(rings, RingDatum{
			Category: s.name,
			Spent:    core.Float(s.amount),
			Limit:    core.Float(limit),
			Value:    ratio.Round(4).InexactFloat64(),
			Exceeded: s.amount.GreaterThan(limit),
		})
	}
	return rings
}

// topKeys returns up to n keys by amount descending. Ties keep first-seen
// order.
func topKeys(keys []string, amount func(string) decimal.Decimal, n int) []string {
	sorted := append([]string(nil), keys...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return amount(sorted[i]).GreaterThan(amount(sorted[j]))
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

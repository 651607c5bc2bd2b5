// Package visibility implements the per-chart hidden-category filter.
package visibility

import (
	"sort"

	"finboard/internal/core"
)

// Default storage scopes.
const (
	ScopeAnalytics = "analytics"
	ScopeHome      = "home"
)

// Set holds hidden categories by category key.
type Set map[string]struct{}

// NewSet builds a set from display names.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[core.CategoryKey(n)] = struct{}{}
	}
	return s
}

// Hidden reports whether the category is hidden.
func (s Set) Hidden(category string) bool {
	if len(s) == 0 {
		return false
	}
	_, ok := s[core.CategoryKey(category)]
	return ok
}

// Keys returns the sorted keys, a stable identity for memoization.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Options scopes a visibility set to one chart instance.
type Options struct {
	Scope   string
	ChartID string
	Hidden  []string
}

// Control is one toggle in a chart's category legend.
type Control struct {
	Category string `json:"category"`
	Hidden   bool   `json:"hidden"`
}

// Result is the output of BuildCategoryControls.
type Result struct {
	Scope    string    `json:"scope"`
	ChartID  string    `json:"chartId"`
	Hidden   Set       `json:"-"`
	Controls []Control `json:"controls"`
}

// BuildCategoryControls lists every distinct category once, under its first
// spelling, with the hidden flag from opts.
func BuildCategoryControls(categories []string, opts Options) Result {
	hidden := NewSet(opts.Hidden...)
	seen := make(map[string]struct{}, len(categories))
	controls := make([]Control, 0, len(categories))
	for _, c := range categories {
		name := core.NormalizeCategory(c)
		key := core.CategoryKey(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		controls = append(controls, Control{Category: name, Hidden: hidden.Hidden(name)})
	}
	sort.SliceStable(controls, func(i, j int) bool {
		return core.CategoryKey(controls[i].Category) < core.CategoryKey(controls[j].Category)
	})
	return Result{Scope: opts.Scope, ChartID: opts.ChartID, Hidden: hidden, Controls: controls}
}

// Categories returns the distinct category names of txs in first-seen order.
func Categories(txs []core.Transaction) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, tx := range txs {
		key := core.CategoryKey(tx.Category)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, core.NormalizeCategory(tx.Category))
	}
	return out
}

// Filter returns the transactions whose category is not hidden. The input
// slice is never modified; the result is always a fresh slice.
func Filter(txs []core.Transaction, hidden Set) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if hidden.Hidden(tx.Category) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

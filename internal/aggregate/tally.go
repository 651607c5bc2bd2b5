package aggregate

import (
	"sort"
	"strings"

	"finboard/internal/core"

	"github.com/shopspring/decimal"
)

// entry is a category total keyed by category key, displayed under the first
// spelling seen.
type entry struct {
	key    string
	name   string
	amount decimal.Decimal
}

// tally accumulates decimal amounts per category key.
type tally struct {
	order []string
	names map[string]string
	sums  map[string]decimal.Decimal
}

func newTally() *tally {
	return &tally{
		names: make(map[string]string),
		sums:  make(map[string]decimal.Decimal),
	}
}

func (t *tally) add(category string, amount decimal.Decimal) {
	name := core.NormalizeCategory(category)
	key := core.CategoryKey(name)
	if _, ok := t.names[key]; !ok {
		t.names[key] = name
		t.order = append(t.order, key)
		t.sums[key] = decimal.Zero
	}
	t.sums[key] = t.sums[key].Add(amount)
}

func (t *tally) get(category string) decimal.Decimal {
	return t.sums[core.CategoryKey(category)]
}

func (t *tally) total() decimal.Decimal {
	total := decimal.Zero
	for _, v := range t.sums {
		total = total.Add(v)
	}
	return total
}

// ranked returns entries by amount descending, ties broken by name.
func (t *tally) ranked() []entry {
	out := make([]entry, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, entry{key: k, name: t.names[k], amount: t.sums[k]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].amount.Cmp(out[j].amount); c != 0 {
			return c > 0
		}
		return out[i].name < out[j].name
	})
	return out
}

// collapseTopN keeps the n largest entries and folds the remainder into a
// synthetic entry computed as total - sum(top n), added only when positive.
// A kept category spelled like otherLabel is renamed so series names stay
// unique. A non-positive n keeps everything.
func collapseTopN(entries []entry, n int, otherLabel string) []entry {
	out := make([]entry, 0, min(len(entries), max(n, 0))+1)
	if n <= 0 || len(entries) <= n {
		return append(out, entries...)
	}
	total, top := decimal.Zero, decimal.Zero
	for i, e := range entries {
		total = total.Add(e.amount)
		if i < n {
			top = top.Add(e.amount)
			out = append(out, e)
		}
	}
	if rest := total.Sub(top); rest.IsPositive() {
		for i := range out {
			if core.SameCategory(out[i].name, otherLabel) {
				out[i].name += " (category)"
			}
		}
		out = append(out, entry{key: otherKey(otherLabel), name: otherLabel, amount: rest})
	}
	return out
}

const syntheticPrefix = "\x00"

func otherKey(label string) string {
	return syntheticPrefix + core.CategoryKey(label)
}

func (e entry) synthetic() bool {
	return strings.HasPrefix(e.key, syntheticPrefix)
}

func sumEntries(entries []entry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.amount)
	}
	return total
}

// bucketTally groups category tallies under time-bucket labels.
type bucketTally struct {
	buckets map[string]*tally
}

func newBucketTally() *bucketTally {
	return &bucketTally{buckets: make(map[string]*tally)}
}

func (b *bucketTally) add(bucket, category string, amount decimal.Decimal) {
	t, ok := b.buckets[bucket]
	if !ok {
		t = newTally()
		b.buckets[bucket] = t
	}
	t.add(category, amount)
}

func (b *bucketTally) keys() []string {
	keys := make([]string, 0, len(b.buckets))
	for k := range b.buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func percent(part, total decimal.Decimal) float64 {
	if !total.IsPositive() {
		return 0
	}
	return part.Div(total).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

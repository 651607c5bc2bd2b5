package aggregate

import (
	"sort"

	"finboard/internal/core"
	"finboard/internal/period"

	"github.com/shopspring/decimal"
)

// DailySpending sums expense magnitudes per calendar day.
func DailySpending(in Input) ([]BucketAmount, Source) {
	if b := in.Bundle; b != nil && len(b.DailySpending) > 0 && !in.hasHidden() {
		return append([]BucketAmount(nil), b.DailySpending...), SourceBundle
	}

	sums := make(map[string]decimal.Decimal)
	for _, tx := range in.visible() {
		t, ok := tx.Time()
		if !ok || !tx.IsExpense() {
			continue
		}
		k := period.BucketKey(t, period.Day)
		sums[k] = sums[k].Add(tx.Magnitude())
	}
	keys := sortedKeys(sums)
	out := make([]BucketAmount, 0, len(keys))
	for _, k := range keys {
		out = append(out, BucketAmount{Bucket: k, Amount: core.Float(sums[k])})
	}
	return out, SourceTransactions
}

// CategorySpending ranks categories by expense magnitude with their share of
// the total.
func CategorySpending(in Input) ([]CategoryShare, Source) {
	if b := in.Bundle; b != nil && len(b.CategorySpending) > 0 {
		return bundleCategorySpending(b.CategorySpending, in), SourceBundle
	}

	t := expenseTally(in.visible())
	total := t.total()
	ranked := t.ranked()
	out := make([]CategoryShare, 0, len(ranked))
	for _, e := range ranked {
		out = append(out, CategoryShare{
			Category: e.name,
			Amount:   core.Float(e.amount),
			Percent:  percent(e.amount, total),
		})
	}
	return out, SourceTransactions
}

func bundleCategorySpending(rows []CategoryShare, in Input) []CategoryShare {
	kept := make([]CategoryShare, 0, len(rows))
	total := decimal.Zero
	for _, r := range rows {
		if in.Hidden.Hidden(r.Category) {
			continue
		}
		kept = append(kept, r)
		total = total.Add(decimal.NewFromFloat(r.Amount))
	}
	if !in.hasHidden() {
		return kept
	}
	for i := range kept {
		kept[i].Percent = percent(decimal.NewFromFloat(kept[i].Amount), total)
	}
	return kept
}

// CategoryTrends is per-bucket expense totals for every category, bucketed by
// the filter's granularity. Categories are listed by overall spend.
func CategoryTrends(in Input) (Series, Source) {
	if b := in.Bundle; b != nil && b.MonthlyCategories != nil && len(b.MonthlyCategories.Data) > 0 {
		return bundleSeries(*b.MonthlyCategories, in), SourceBundle
	}

	txs := in.visible()
	buckets, overall := bucketExpenses(txs, in.Filter.Granularity)
	ranked := overall.ranked()
	return buildSeries(buckets, ranked), SourceTransactions
}

func bundleSeries(s Series, in Input) Series {
	out := Series{
		Data:       make([]SeriesPoint, 0, len(s.Data)),
		Categories: make([]string, 0, len(s.Categories)),
	}
	for _, c := range s.Categories {
		if !in.Hidden.Hidden(c) {
			out.Categories = append(out.Categories, c)
		}
	}
	for _, p := range s.Data {
		values := make(map[string]float64, len(p.Values))
		for c, v := range p.Values {
			if !in.Hidden.Hidden(c) {
				values[c] = v
			}
		}
		out.Data = append(out.Data, SeriesPoint{Bucket: p.Bucket, Values: values})
	}
	return out
}

// MonthlyByCategory is long-form monthly spending per category, ordered by
// month then amount.
func MonthlyByCategory(in Input) ([]BucketCategoryAmount, Source) {
	if b := in.Bundle; b != nil && len(b.MonthlyByCategory) > 0 {
		out := make([]BucketCategoryAmount, 0, len(b.MonthlyByCategory))
		for _, r := range b.MonthlyByCategory {
			if !in.Hidden.Hidden(r.Category) {
				out = append(out, r)
			}
		}
		return out, SourceBundle
	}

	buckets, _ := bucketExpenses(in.visible(), period.Month)
	out := make([]BucketCategoryAmount, 0)
	for _, k := range buckets.keys() {
		for _, e := range buckets.buckets[k].ranked() {
			out = append(out, BucketCategoryAmount{Bucket: k, Category: e.name, Amount: core.Float(e.amount)})
		}
	}
	return out, SourceTransactions
}

func expenseTally(txs []core.Transaction) *tally {
	t := newTally()
	for _, tx := range txs {
		if tx.IsExpense() {
			t.add(tx.Category, tx.Magnitude())
		}
	}
	return t
}

// bucketExpenses groups expense magnitudes by bucket and category and also
// returns the overall per-category tally of the same rows. Undated rows
// have no bucket and are left out of both.
func bucketExpenses(txs []core.Transaction, g period.Granularity) (*bucketTally, *tally) {
	buckets := newBucketTally()
	overall := newTally()
	for _, tx := range txs {
		if !tx.IsExpense() {
			continue
		}
		t, ok := tx.Time()
		if !ok {
			continue
		}
		overall.add(tx.Category, tx.Magnitude())
		buckets.add(period.BucketKey(t, g), tx.Category, tx.Magnitude())
	}
	return buckets, overall
}

// buildSeries emits one point per bucket with a value for each legend entry.
// A synthetic legend entry takes whatever the named entries leave of the
// bucket total.
func buildSeries(buckets *bucketTally, legend []entry) Series {
	s := Series{Data: make([]SeriesPoint, 0, len(buckets.buckets)), Categories: make([]string, 0, len(legend))}
	for _, e := range legend {
		s.Categories = append(s.Categories, e.name)
	}
	for _, k := range buckets.keys() {
		bt := buckets.buckets[k]
		values := make(map[string]float64, len(legend))
		named := decimal.Zero
		var rest *entry
		for i, e := range legend {
			if e.synthetic() {
				rest = &legend[i]
				continue
			}
			v := bt.sums[e.key]
			named = named.Add(v)
			values[e.name] = core.Float(v)
		}
		if rest != nil {
			values[rest.name] = core.Float(bt.total().Sub(named))
		}
		s.Data = append(s.Data, SeriesPoint{Bucket: k, Values: values})
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package aggregate

import (
	"finboard/internal/core"

	"github.com/shopspring/decimal"
)

// OthersLabel names the folded remainder of ranked category charts.
const OthersLabel = "Others"

// percentFloor keeps thin series visible in the flow chart. Values below it
// are drawn at the floor; it does not change any total.
var percentFloor = decimal.NewFromFloat(0.1)

// CategoryFlow is the share of each bucket's spending per top category, in
// percent. Every value is floored at 0.1.
func CategoryFlow(in Input) (Series, Source) {
	buckets, overall := bucketExpenses(in.visible(), in.Filter.Granularity)
	legend := collapseTopN(overall.ranked(), in.topN(), OthersLabel)

	s := Series{Data: make([]SeriesPoint, 0, len(buckets.buckets)), Categories: make([]string, 0, len(legend))}
	for _, e := range legend {
		s.Categories = append(s.Categories, e.name)
	}
	hundred := decimal.NewFromInt(100)
	for _, k := range buckets.keys() {
		bt := buckets.buckets[k]
		total := bt.total()
		named := decimal.Zero
		values := make(map[string]float64, len(legend))
		share := func(v decimal.Decimal) float64 {
			pct := decimal.Zero
			if total.IsPositive() {
				pct = v.Div(total).Mul(hundred)
			}
			return decimal.Max(pct, percentFloor).Round(2).InexactFloat64()
		}
		var rest *entry
		for i, e := range legend {
			if e.synthetic() {
				rest = &legend[i]
				continue
			}
			v := bt.sums[e.key]
			named = named.Add(v)
			values[e.name] = share(v)
		}
		if rest != nil {
			values[rest.name] = share(total.Sub(named))
		}
		s.Data = append(s.Data, SeriesPoint{Bucket: k, Values: values})
	}
	return s, SourceTransactions
}

// Streamgraph is per-bucket spending for the top categories, the rest folded
// into Others.
func Streamgraph(in Input) (Series, Source) {
	buckets, overall := bucketExpenses(in.visible(), in.Filter.Granularity)
	legend := collapseTopN(overall.ranked(), in.topN(), OthersLabel)
	return buildSeries(buckets, legend), SourceTransactions
}

// PolarBar ranks the top categories by spend.
func PolarBar(in Input) ([]RankedCategory, Source) {
	ranked := collapseTopN(expenseTally(in.visible()).ranked(), in.topN(), OthersLabel)
	out := make([]RankedCategory, 0, len(ranked))
	for _, e := range ranked {
		out = append(out, RankedCategory{Category: e.name, Amount: core.Float(e.amount)})
	}
	return out, SourceTransactions
}

// SpendingFunnel orders the top categories as funnel stages, widest first,
// each with its share of total spending.
func SpendingFunnel(in Input) ([]FunnelStage, Source) {
	t := expenseTally(in.visible())
	total := t.total()
	ranked := collapseTopN(t.ranked(), in.topN(), OthersLabel)
	out := make([]FunnelStage, 0, len(ranked))
	for _, e := range ranked {
		out = append(out, FunnelStage{Stage: e.name, Amount: core.Float(e.amount), Percent: percent(e.amount, total)})
	}
	return out, SourceTransactions
}

// treemapLeaves bounds the merchants shown under one category.
const treemapLeaves = 10

// TreemapRoot is the name of the treemap root node.
const TreemapRoot = "Expenses"

// Treemap nests spending as root, category, then description.
func Treemap(in Input) (TreeNode, Source) {
	byCategory := make(map[string]*tally)
	overall := newTally()
	for _, tx := range in.visible() {
		if !tx.IsExpense() {
			continue
		}
		overall.add(tx.Category, tx.Magnitude())
		key := core.CategoryKey(tx.Category)
		leaves, ok := byCategory[key]
		if !ok {
			leaves = newTally()
			byCategory[key] = leaves
		}
		desc := tx.Description
		if desc == "" {
			desc = "Unknown"
		}
		leaves.add(desc, tx.Magnitude())
	}

	root := TreeNode{Name: TreemapRoot, Value: core.Float(overall.total()), Children: make([]TreeNode, 0)}
	for _, cat := range overall.ranked() {
		node := TreeNode{Name: cat.name, Value: core.Float(cat.amount), Children: make([]TreeNode, 0)}
		for _, leaf := range collapseTopN(byCategory[cat.key].ranked(), treemapLeaves, OthersLabel) {
			node.Children = append(node.Children, TreeNode{Name: leaf.name, Value: core.Float(leaf.amount), Children: make([]TreeNode, 0)})
		}
		root.Children = append(root.Children, node)
	}
	return root, SourceTransactions
}

package aggregate

import "sort"

// Chart ids shared by the HTTP API and the layout.
const (
	ChartDailySpending      = "daily-spending"
	ChartCategorySpending   = "category-spending"
	ChartCategoryTrends     = "category-trends"
	ChartMonthlyByCategory  = "monthly-by-category"
	ChartCategoryFlow       = "category-flow"
	ChartStreamgraph        = "streamgraph"
	ChartPolarBar           = "polar-bar"
	ChartSpendingFunnel     = "spending-funnel"
	ChartTreemap            = "treemap"
	ChartNeedsWants         = "needs-wants"
	ChartCashFlow           = "cash-flow"
	ChartKPIs               = "kpis"
	ChartTransactionHistory = "transaction-history"
	ChartDayOfWeek          = "day-of-week"
	ChartSankey             = "sankey"
	// ChartRings is computed by the budget engine, not by this package.
	ChartRings = "rings"
)

// Output is an aggregator result with its provenance.
type Output struct {
	Source Source `json:"source"`
	Data   any    `json:"data"`
}

// Func computes one chart.
type Func func(Input) Output

func wrap[T any](f func(Input) (T, Source)) Func {
	return func(in Input) Output {
		data, src := f(in)
		return Output{Source: src, Data: data}
	}
}

var registry = map[string]Func{
	ChartDailySpending:      wrap(DailySpending),
	ChartCategorySpending:   wrap(CategorySpending),
	ChartCategoryTrends:     wrap(CategoryTrends),
	ChartMonthlyByCategory:  wrap(MonthlyByCategory),
	ChartCategoryFlow:       wrap(CategoryFlow),
	ChartStreamgraph:        wrap(Streamgraph),
	ChartPolarBar:           wrap(PolarBar),
	ChartSpendingFunnel:     wrap(SpendingFunnel),
	ChartTreemap:            wrap(Treemap),
	ChartNeedsWants:         wrap(NeedsWants),
	ChartCashFlow:           wrap(CashFlow),
	ChartKPIs:               wrap(ComputeKPIs),
	ChartTransactionHistory: wrap(TransactionHistory),
	ChartDayOfWeek:          wrap(DayOfWeek),
	ChartSankey:             wrap(Sankey),
}

// Lookup returns the aggregator for a chart id.
func Lookup(id string) (Func, bool) {
	f, ok := registry[id]
	return f, ok
}

// ChartIDs lists every chart id, rings included, sorted.
func ChartIDs() []string {
	ids := make([]string, 0, len(registry)+1)
	for id := range registry {
		ids = append(ids, id)
	}
	ids = append(ids, ChartRings)
	sort.Strings(ids)
	return ids
}

// UsesTopN reports whether a chart's output depends on Input.TopN.
func UsesTopN(id string) bool {
	switch id {
	case ChartCategoryFlow, ChartStreamgraph, ChartPolarBar, ChartSpendingFunnel:
		return true
	}
	return false
}

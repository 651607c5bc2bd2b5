// Package aggregate turns a normalized transaction list, or a precomputed
// server bundle, into chart-ready shapes. Every function here is pure.
package aggregate

import (
	"finboard/internal/core"
	"finboard/internal/period"
	"finboard/internal/visibility"
)

// Source tags where a chart's data came from.
type Source string

const (
	SourceBundle       Source = "bundle"
	SourceTransactions Source = "transactions"
)

// DefaultTopN is the series count for ranked charts when no height is known.
const DefaultTopN = 6

// Input is everything an aggregator may look at.
type Input struct {
	Transactions []core.Transaction
	Filter       period.Filter
	Hidden       visibility.Set
	// Bundle is the optional server-side precomputation. Nil means absent.
	Bundle *Bundle
	TopN   int
	Tiers  TierOverrides
}

// visible returns the transactions left after hiding categories. It always
// allocates so callers can reorder the result freely.
func (in Input) visible() []core.Transaction {
	return visibility.Filter(in.Transactions, in.Hidden)
}

func (in Input) topN() int {
	if in.TopN > 0 {
		return in.TopN
	}
	return DefaultTopN
}

// hasHidden reports whether any category is hidden. Bundle fields that are
// not broken down by category cannot honor a hidden set.
func (in Input) hasHidden() bool {
	return len(in.Hidden) > 0
}

// TopNForHeight maps a layout row height to a series count.
func TopNForHeight(h int) int {
	if h <= 0 {
		return DefaultTopN
	}
	return max(4, min(8, h+2))
}

// Bundle is the precomputed analytics payload served by
// GET /api/analytics/bundle. Every field is optional.
type Bundle struct {
	DailySpending      []BucketAmount         `json:"dailySpending,omitempty"`
	CategorySpending   []CategoryShare        `json:"categorySpending,omitempty"`
	MonthlyCategories  *Series                `json:"monthlyCategories,omitempty"`
	NeedsWants         []TierAmount           `json:"needsWants,omitempty"`
	MonthlyByCategory  []BucketCategoryAmount `json:"monthlyByCategory,omitempty"`
	CashFlow           []CashFlowPoint        `json:"cashFlow,omitempty"`
	KPIs               *KPIs                  `json:"kpis,omitempty"`
	TransactionHistory []BalancePoint         `json:"transactionHistory,omitempty"`
	DayOfWeekCategory  []WeekdayRow           `json:"dayOfWeekCategory,omitempty"`
}

// BucketAmount is a single value in a time bucket.
type BucketAmount struct {
	Bucket string  `json:"bucket"`
	Amount float64 `json:"amount"`
}

// CategoryShare is a category total and its share of all spending.
type CategoryShare struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Percent  float64 `json:"percent"`
}

// SeriesPoint holds one bucket of a multi-series chart.
type SeriesPoint struct {
	Bucket string             `json:"bucket"`
	Values map[string]float64 `json:"values"`
}

// Series is a stacked time series with its category legend.
type Series struct {
	Data       []SeriesPoint `json:"data"`
	Categories []string      `json:"categories"`
}

// BucketCategoryAmount is a long-form row of per-bucket category spending.
type BucketCategoryAmount struct {
	Bucket   string  `json:"bucket"`
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// RankedCategory is a bar in a ranked chart.
type RankedCategory struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// FunnelStage is one step of the spending funnel.
type FunnelStage struct {
	Stage   string  `json:"stage"`
	Amount  float64 `json:"amount"`
	Percent float64 `json:"percent"`
}

// TreeNode is a treemap node.
type TreeNode struct {
	Name     string     `json:"name"`
	Value    float64    `json:"value"`
	Children []TreeNode `json:"children"`
}

// TierAmount is spending attributed to a Needs/Wants/Mandatory tier.
type TierAmount struct {
	Tier    Tier    `json:"tier"`
	Amount  float64 `json:"amount"`
	Percent float64 `json:"percent"`
}

// CashFlowPoint is income against expenses for a bucket.
type CashFlowPoint struct {
	Bucket   string  `json:"bucket"`
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	Net      float64 `json:"net"`
}

// KPIs are the headline numbers.
type KPIs struct {
	TotalIncome   float64 `json:"totalIncome"`
	TotalExpenses float64 `json:"totalExpenses"`
	Net           float64 `json:"net"`
	SavingsRate   float64 `json:"savingsRate"`
	Count         int     `json:"count"`
	AvgExpense    float64 `json:"avgExpense"`
}

// BalancePoint is the account balance at the end of a day.
type BalancePoint struct {
	Date    string  `json:"date"`
	Balance float64 `json:"balance"`
}

// WeekdayRow is spending per category on one weekday.
type WeekdayRow struct {
	Weekday string             `json:"weekday"`
	Values  map[string]float64 `json:"values"`
}

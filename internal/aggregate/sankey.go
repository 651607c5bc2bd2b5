package aggregate

import (
	"finboard/internal/core"

	"github.com/shopspring/decimal"
)

// Sankey node names.
const (
	SankeyRoot          = "Total Income"
	SankeyOtherIncome   = "Other Income"
	SankeyOtherExpenses = "Other Expenses"
	SankeySurplus       = "Surplus"
	SankeyDeficit       = "Deficit"
)

const (
	sankeyIncomeSources = 4
	sankeyExpenseSinks  = 8
)

// SankeyNode is a named node; links refer to nodes by index.
type SankeyNode struct {
	Name string `json:"name"`
}

// SankeyLink carries a positive value from Source to Target.
type SankeyLink struct {
	Source int     `json:"source"`
	Target int     `json:"target"`
	Value  float64 `json:"value"`
}

// SankeyGraph is the income to expense flow diagram.
type SankeyGraph struct {
	Nodes []SankeyNode `json:"nodes"`
	Links []SankeyLink `json:"links"`
}

// Sankey routes income sources into a single root that feeds expense
// categories. The difference lands on a Surplus node fed by the root, or on
// a Deficit node feeding it. Zero links and nodes without links are dropped.
func Sankey(in Input) (SankeyGraph, Source) {
	income, expenses := newTally(), newTally()
	for _, tx := range in.visible() {
		switch {
		case tx.IsIncome():
			income.add(tx.Category, tx.Amount)
		case tx.IsExpense():
			expenses.add(tx.Category, tx.Magnitude())
		}
	}

	g := &sankeyBuilder{index: make(map[string]int)}
	sources := collapseTopN(income.ranked(), sankeyIncomeSources, SankeyOtherIncome)
	sinks := collapseTopN(expenses.ranked(), sankeyExpenseSinks, SankeyOtherExpenses)

	for _, e := range sources {
		g.link(incomeNode(e), SankeyRoot, e.amount)
	}
	for _, e := range sinks {
		g.link(SankeyRoot, expenseNode(e, income), e.amount)
	}
	switch diff := income.total().Sub(expenses.total()); {
	case diff.IsPositive():
		g.link(SankeyRoot, SankeySurplus, diff)
	case diff.IsNegative():
		g.link(SankeyDeficit, SankeyRoot, diff.Neg())
	}
	return g.graph(), SourceTransactions
}

// Node names must stay distinct: a category may appear on both sides, and
// may collide with a structural node.
func incomeNode(e entry) string {
	if !e.synthetic() && reservedNode(e.name) {
		return e.name + " (income)"
	}
	return e.name
}

func expenseNode(e entry, income *tally) string {
	if e.synthetic() {
		return e.name
	}
	if reservedNode(e.name) || income.get(e.name).IsPositive() {
		return e.name + " (expense)"
	}
	return e.name
}

func reservedNode(name string) bool {
	for _, r := range []string{SankeyRoot, SankeySurplus, SankeyDeficit, SankeyOtherIncome, SankeyOtherExpenses} {
		if core.SameCategory(name, r) {
			return true
		}
	}
	return false
}

type sankeyBuilder struct {
	nodes []SankeyNode
	links []SankeyLink
	index map[string]int
}

func (b *sankeyBuilder) node(name string) int {
	if i, ok := b.index[name]; ok {
		return i
	}
	b.nodes = append(b.nodes, SankeyNode{Name: name})
	b.index[name] = len(b.nodes) - 1
	return len(b.nodes) - 1
}

func (b *sankeyBuilder) link(from, to string, v decimal.Decimal) {
	if !v.IsPositive() {
		return
	}
	b.links = append(b.links, SankeyLink{Source: b.node(from), Target: b.node(to), Value: core.Float(v)})
}

func (b *sankeyBuilder) graph() SankeyGraph {
	g := SankeyGraph{Nodes: make([]SankeyNode, 0, len(b.nodes)), Links: make([]SankeyLink, 0, len(b.links))}
	if len(b.links) == 0 {
		return g
	}
	g.Nodes = append(g.Nodes, b.nodes...)
	g.Links = append(g.Links, b.links...)
	return g
}

package aggregate

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"finboard/internal/core"
	"finboard/internal/period"
	"finboard/internal/visibility"

	"github.com/shopspring/decimal"
)

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func tx(id int64, date, category, amount string) core.Transaction {
	return core.Transaction{
		ID:          id,
		Date:        date,
		Description: category + " purchase",
		Amount:      decimal.RequireFromString(amount),
		Category:    category,
	}
}

func sample() []core.Transaction {
	return []core.Transaction{
		tx(1, "2024-06-03", "Salary", "3000"),
		tx(2, "2024-06-03", "Rent", "-1200"),
		tx(3, "2024-06-04", "Groceries", "-150.25"),
		tx(4, "2024-06-05", "groceries", "-49.75"),
		tx(5, "2024-06-09", "Dining", "-80"),
		tx(6, "2024-06-10", "Travel", "-400"),
		tx(7, "2024-06-11", "Coffee", "-12.5"),
		tx(8, "2024-06-12", "Freelance", "500"),
		tx(9, "2024-05-20", "Books", "-30"),
		tx(10, "2024-05-21", "Games", "-60"),
	}
}

func input(txs []core.Transaction) Input {
	return Input{Transactions: txs, Filter: period.Resolve(period.AllTime, now)}
}

func TestEmptyInputShapes(t *testing.T) {
	in := input(nil)
	for _, id := range ChartIDs() {
		f, ok := Lookup(id)
		if !ok {
			if id != ChartRings {
				t.Fatalf("Lookup(%q) missing", id)
			}
			continue
		}
		t.Run(id, func(t *testing.T) {
			out := f(in)
			if out.Source != SourceTransactions {
				t.Errorf("source = %s, want %s", out.Source, SourceTransactions)
			}
			raw, err := json.Marshal(out.Data)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(raw) == "null" {
				t.Errorf("empty input produced null")
			}
		})
	}

	g, _ := Sankey(in)
	raw, _ := json.Marshal(g)
	if string(raw) != `{"nodes":[],"links":[]}` {
		t.Errorf("Sankey(empty) = %s", raw)
	}
	root, _ := Treemap(in)
	if root.Value != 0 || len(root.Children) != 0 {
		t.Errorf("Treemap(empty) = %+v", root)
	}
}

func TestCategorySpendingMergesCase(t *testing.T) {
	got, src := CategorySpending(input(sample()))
	if src != SourceTransactions {
		t.Fatalf("source = %s", src)
	}
	var groceries *CategoryShare
	for i := range got {
		if core.SameCategory(got[i].Category, "groceries") {
			if groceries != nil {
				t.Fatalf("groceries listed twice: %+v", got)
			}
			groceries = &got[i]
		}
	}
	if groceries == nil || groceries.Amount != 200 || groceries.Category != "Groceries" {
		t.Fatalf("groceries = %+v, want 200 under first spelling", groceries)
	}
	if got[0].Category != "Rent" {
		t.Errorf("first = %s, want Rent", got[0].Category)
	}
	for _, c := range got {
		if c.Category == "Salary" || c.Category == "Freelance" {
			t.Errorf("income category %s in spending", c.Category)
		}
	}
}

func TestTopNCollapsePreservesTotal(t *testing.T) {
	tl := newTally()
	for _, tx := range sample() {
		if tx.IsExpense() {
			tl.add(tx.Category, tx.Magnitude())
		}
	}
	total := tl.total()
	for n := 1; n <= 8; n++ {
		got := collapseTopN(tl.ranked(), n, OthersLabel)
		if !sumEntries(got).Equal(total) {
			t.Errorf("n=%d: sum = %s, want %s", n, sumEntries(got), total)
		}
		for _, e := range got {
			if e.synthetic() && !e.amount.IsPositive() {
				t.Errorf("n=%d: non-positive Others kept", n)
			}
		}
	}
	if got := collapseTopN(tl.ranked(), 100, OthersLabel); len(got) != len(tl.ranked()) {
		t.Errorf("collapse beyond length added entries: %d", len(got))
	}
}

func TestPolarBarOthers(t *testing.T) {
	in := input(sample())
	in.TopN = 2
	got, _ := PolarBar(in)
	if len(got) != 3 || got[2].Category != OthersLabel {
		t.Fatalf("PolarBar() = %+v", got)
	}
	// 1200 + 400 on top; the rest is 200 + 80 + 12.5 + 30 + 60.
	if got[2].Amount != 382.5 {
		t.Errorf("Others = %v, want 382.5", got[2].Amount)
	}
}

func TestOthersCategoryKeepsItsOwnSeries(t *testing.T) {
	txs := []core.Transaction{
		tx(1, "2024-06-03", "Rent", "-1000"),
		tx(2, "2024-06-04", "Others", "-500"),
		tx(3, "2024-06-05", "Food", "-100"),
		tx(4, "2024-06-06", "Fun", "-50"),
	}
	in := input(txs)
	in.TopN = 2

	polar, _ := PolarBar(in)
	want := []RankedCategory{{"Rent", 1000}, {"Others (category)", 500}, {OthersLabel, 150}}
	if len(polar) != len(want) {
		t.Fatalf("PolarBar() = %+v, want %+v", polar, want)
	}
	for i := range want {
		if polar[i] != want[i] {
			t.Errorf("PolarBar()[%d] = %+v, want %+v", i, polar[i], want[i])
		}
	}

	stream, _ := Streamgraph(in)
	seen := make(map[string]bool)
	for _, c := range stream.Categories {
		if seen[c] {
			t.Errorf("Streamgraph() legend repeats %q: %v", c, stream.Categories)
		}
		seen[c] = true
	}
	sum := 0.0
	for _, p := range stream.Data {
		for _, v := range p.Values {
			sum += v
		}
	}
	if sum != 1650 {
		t.Errorf("Streamgraph() total = %v, want 1650", sum)
	}

	flow, _ := CategoryFlow(in)
	for _, p := range flow.Data {
		if len(p.Values) != len(flow.Categories) {
			t.Errorf("CategoryFlow() bucket %s values = %v, want one per legend entry %v", p.Bucket, p.Values, flow.Categories)
		}
	}
}

func TestOthersCategoryUnchangedWithoutRemainder(t *testing.T) {
	in := input([]core.Transaction{
		tx(1, "2024-06-03", "Rent", "-1000"),
		tx(2, "2024-06-04", "Others", "-500"),
	})
	in.TopN = 2
	got, _ := PolarBar(in)
	if len(got) != 2 || got[1].Category != "Others" {
		t.Errorf("PolarBar() = %+v, want the real Others untouched", got)
	}
}

func TestCategoryFlowFloor(t *testing.T) {
	txs := []core.Transaction{
		tx(1, "2024-06-03", "Rent", "-100000"),
		tx(2, "2024-06-04", "Gum", "-1"),
	}
	in := input(txs)
	got, _ := CategoryFlow(in)
	if len(got.Data) != 1 {
		t.Fatalf("buckets = %d, want 1", len(got.Data))
	}
	if v := got.Data[0].Values["Gum"]; v != 0.1 {
		t.Errorf("Gum share = %v, want floor 0.1", v)
	}
	if v := got.Data[0].Values["Rent"]; math.Abs(v-100) > 0.01 {
		t.Errorf("Rent share = %v, want ~100", v)
	}
}

func TestStreamgraphBucketsByFilter(t *testing.T) {
	in := Input{Transactions: sample(), Filter: period.Resolve(period.Last30Days, now)}
	got, _ := Streamgraph(in)
	for _, p := range got.Data {
		d, err := time.Parse(core.DateLayout, p.Bucket)
		if err != nil || d.Weekday() != time.Sunday {
			t.Errorf("bucket %q is not a week start", p.Bucket)
		}
	}
}

func TestSankeyInvariants(t *testing.T) {
	tests := []struct {
		name     string
		txs      []core.Transaction
		terminal string
		value    float64
	}{
		{"surplus", sample(), SankeySurplus, 3500 - 1982.5},
		{"deficit", []core.Transaction{tx(1, "2024-06-01", "Salary", "100"), tx(2, "2024-06-02", "Rent", "-250")}, SankeyDeficit, 150},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := Sankey(input(tt.txs))
			roots := 0
			names := make(map[string]bool)
			for _, n := range g.Nodes {
				if n.Name == SankeyRoot {
					roots++
				}
				if names[n.Name] {
					t.Errorf("duplicate node %q", n.Name)
				}
				names[n.Name] = true
			}
			if roots != 1 {
				t.Fatalf("root count = %d, want 1", roots)
			}
			referenced := make(map[int]bool)
			var terminal *SankeyLink
			for i, l := range g.Links {
				if l.Value <= 0 {
					t.Errorf("link %+v not positive", l)
				}
				referenced[l.Source], referenced[l.Target] = true, true
				if g.Nodes[l.Source].Name == tt.terminal || g.Nodes[l.Target].Name == tt.terminal {
					terminal = &g.Links[i]
				}
			}
			if len(referenced) != len(g.Nodes) {
				t.Errorf("unreferenced nodes: %d nodes, %d referenced", len(g.Nodes), len(referenced))
			}
			if terminal == nil || math.Abs(terminal.Value-tt.value) > 0.005 {
				t.Fatalf("terminal %s = %+v, want %v", tt.terminal, terminal, tt.value)
			}
			if tt.terminal == SankeyDeficit && g.Nodes[terminal.Target].Name != SankeyRoot {
				t.Errorf("deficit must feed the root")
			}
		})
	}
}

func TestSankeyIncomeExpenseDisjoint(t *testing.T) {
	txs := []core.Transaction{
		tx(1, "2024-06-01", "Transfer", "500"),
		tx(2, "2024-06-02", "Transfer", "-200"),
	}
	g, _ := Sankey(input(txs))
	seen := make(map[string]int)
	for _, n := range g.Nodes {
		seen[n.Name]++
	}
	if seen["Transfer"] != 1 || seen["Transfer (expense)"] != 1 {
		t.Errorf("nodes = %+v", g.Nodes)
	}
}

func TestHiddenCategoriesExcluded(t *testing.T) {
	in := input(sample())
	in.Hidden = visibility.NewSet("RENT")
	got, _ := CategorySpending(in)
	for _, c := range got {
		if c.Category == "Rent" {
			t.Fatalf("hidden category present: %+v", got)
		}
	}
	k, _ := ComputeKPIs(in)
	if k.TotalExpenses != 782.5 {
		t.Errorf("TotalExpenses = %v, want 782.5", k.TotalExpenses)
	}
}

func TestBundleFirst(t *testing.T) {
	bundle := &Bundle{
		CategorySpending: []CategoryShare{{Category: "Rent", Amount: 75, Percent: 75}, {Category: "Coffee", Amount: 25, Percent: 25}},
		KPIs:             &KPIs{TotalIncome: 1, Count: 1},
	}
	in := input(sample())
	in.Bundle = bundle

	cs, src := CategorySpending(in)
	if src != SourceBundle || len(cs) != 2 {
		t.Fatalf("CategorySpending() = %+v, %s", cs, src)
	}
	if _, src := DailySpending(in); src != SourceTransactions {
		t.Errorf("empty bundle field must fall back, got %s", src)
	}

	in.Hidden = visibility.NewSet("rent")
	cs, _ = CategorySpending(in)
	if len(cs) != 1 || cs[0].Percent != 100 {
		t.Errorf("hidden bundle rows = %+v, want Coffee at 100%%", cs)
	}
	if _, src := ComputeKPIs(in); src != SourceTransactions {
		t.Errorf("kpis with a hidden set must recompute, got %s", src)
	}
}

func TestKPIs(t *testing.T) {
	k, _ := ComputeKPIs(input(sample()))
	want := KPIs{TotalIncome: 3500, TotalExpenses: 1982.5, Net: 1517.5, SavingsRate: 43.36, Count: 10, AvgExpense: 247.81}
	if k != want {
		t.Errorf("ComputeKPIs() = %+v, want %+v", k, want)
	}
}

func TestTransactionHistory(t *testing.T) {
	bal := decimal.NewFromInt(1000)
	txs := []core.Transaction{
		tx(2, "2024-06-02", "Coffee", "-5"),
		{ID: 1, Date: "2024-06-01", Amount: decimal.NewFromInt(-10), Balance: &bal, Category: "Other"},
		tx(3, "2024-06-02", "Salary", "100"),
		tx(4, "not-a-date", "Other", "-1"),
	}
	got, _ := TransactionHistory(input(txs))
	want := []BalancePoint{{Date: "2024-06-01", Balance: 1000}, {Date: "2024-06-02", Balance: 1095}}
	if len(got) != len(want) {
		t.Fatalf("TransactionHistory() = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("point %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestDayOfWeekOrder(t *testing.T) {
	got, _ := DayOfWeek(input(sample()))
	if len(got) != 7 || got[0].Weekday != "Sunday" || got[6].Weekday != "Saturday" {
		t.Fatalf("DayOfWeek() = %+v", got)
	}
	// 2024-06-09 is a Sunday.
	if got[0].Values["Dining"] != 80 {
		t.Errorf("Sunday dining = %v, want 80", got[0].Values["Dining"])
	}
}

func TestNeedsWantsClassification(t *testing.T) {
	tests := []struct {
		category  string
		overrides TierOverrides
		want      Tier
	}{
		{"Rent", nil, Mandatory},
		{"Car Insurance", nil, Mandatory},
		{"Groceries", nil, Needs},
		{"Pharmacy", nil, Needs},
		{"Dining", nil, Wants},
		{"Dining", TierOverrides{"dining": Needs}, Needs},
		{"", nil, Wants},
	}
	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			if got := Classify(tt.category, tt.overrides); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.category, got, tt.want)
			}
		})
	}

	got, _ := NeedsWants(input(sample()))
	total := 0.0
	for _, ta := range got {
		total += ta.Amount
	}
	if math.Abs(total-1982.5) > 0.005 {
		t.Errorf("tier total = %v, want 1982.5", total)
	}
}

func TestTopNForHeight(t *testing.T) {
	tests := []struct{ h, want int }{{0, DefaultTopN}, {1, 4}, {3, 5}, {6, 8}, {20, 8}}
	for _, tt := range tests {
		if got := TopNForHeight(tt.h); got != tt.want {
			t.Errorf("TopNForHeight(%d) = %d, want %d", tt.h, got, tt.want)
		}
	}
}

package aggregate

import (
	"sort"
	"time"

	"finboard/internal/core"
	"finboard/internal/period"

	"github.com/shopspring/decimal"
)

// CashFlow compares income and expenses per bucket of the filter's
// granularity.
func CashFlow(in Input) ([]CashFlowPoint, Source) {
	if b := in.Bundle; b != nil && len(b.CashFlow) > 0 && !in.hasHidden() {
		return append([]CashFlowPoint(nil), b.CashFlow...), SourceBundle
	}

	type flow struct{ income, expenses decimal.Decimal }
	buckets := make(map[string]flow)
	for _, tx := range in.visible() {
		t, ok := tx.Time()
		if !ok {
			continue
		}
		k := period.BucketKey(t, in.Filter.Granularity)
		f := buckets[k]
		switch {
		case tx.IsIncome():
			f.income = f.income.Add(tx.Amount)
		case tx.IsExpense():
			f.expenses = f.expenses.Add(tx.Magnitude())
		}
		buckets[k] = f
	}
	keys := sortedKeys(buckets)
	out := make([]CashFlowPoint, 0, len(keys))
	for _, k := range keys {
		f := buckets[k]
		out = append(out, CashFlowPoint{
			Bucket:   k,
			Income:   core.Float(f.income),
			Expenses: core.Float(f.expenses),
			Net:      core.Float(f.income.Sub(f.expenses)),
		})
	}
	return out, SourceTransactions
}

// ComputeKPIs returns the headline totals. Empty input yields all zeros.
func ComputeKPIs(in Input) (KPIs, Source) {
	if b := in.Bundle; b != nil && b.KPIs != nil && !in.hasHidden() {
		return *b.KPIs, SourceBundle
	}

	txs := in.visible()
	income, expenses := decimal.Zero, decimal.Zero
	expenseCount := 0
	for _, tx := range txs {
		switch {
		case tx.IsIncome():
			income = income.Add(tx.Amount)
		case tx.IsExpense():
			expenses = expenses.Add(tx.Magnitude())
			expenseCount++
		}
	}
	net := income.Sub(expenses)
	k := KPIs{
		TotalIncome:   core.Float(income),
		TotalExpenses: core.Float(expenses),
		Net:           core.Float(net),
		Count:         len(txs),
	}
	if income.IsPositive() {
		k.SavingsRate = percent(net, income)
	}
	if expenseCount > 0 {
		k.AvgExpense = core.Float(expenses.Div(decimal.NewFromInt(int64(expenseCount))))
	}
	return k, SourceTransactions
}

// TransactionHistory is the end-of-day balance. Reported balances win; days
// without one carry the running sum of amounts from the last known balance.
func TransactionHistory(in Input) ([]BalancePoint, Source) {
	if b := in.Bundle; b != nil && len(b.TransactionHistory) > 0 && !in.hasHidden() {
		return append([]BalancePoint(nil), b.TransactionHistory...), SourceBundle
	}

	txs := in.visible()
	dated := txs[:0]
	for _, tx := range txs {
		if _, ok := tx.Time(); ok {
			dated = append(dated, tx)
		}
	}
	sort.SliceStable(dated, func(i, j int) bool {
		if dated[i].Date != dated[j].Date {
			return dated[i].Date < dated[j].Date
		}
		return dated[i].ID < dated[j].ID
	})

	out := make([]BalancePoint, 0)
	running := decimal.Zero
	for _, tx := range dated {
		if tx.Balance != nil {
			running = *tx.Balance
		} else {
			running = running.Add(tx.Amount)
		}
		if n := len(out); n > 0 && out[n-1].Date == tx.Date {
			out[n-1].Balance = core.Float(running)
			continue
		}
		out = append(out, BalancePoint{Date: tx.Date, Balance: core.Float(running)})
	}
	return out, SourceTransactions
}

// DayOfWeek is spending per category for each weekday, Sunday first. Empty
// input yields no rows.
func DayOfWeek(in Input) ([]WeekdayRow, Source) {
	if b := in.Bundle; b != nil && len(b.DayOfWeekCategory) > 0 {
		out := make([]WeekdayRow, 0, len(b.DayOfWeekCategory))
		for _, r := range b.DayOfWeekCategory {
			values := make(map[string]float64, len(r.Values))
			for c, v := range r.Values {
				if !in.Hidden.Hidden(c) {
					values[c] = v
				}
			}
			out = append(out, WeekdayRow{Weekday: r.Weekday, Values: values})
		}
		return out, SourceBundle
	}

	var days [7]*tally
	seen := false
	for _, tx := range in.visible() {
		t, ok := tx.Time()
		if !ok || !tx.IsExpense() {
			continue
		}
		d := t.Weekday()
		if days[d] == nil {
			days[d] = newTally()
		}
		days[d].add(tx.Category, tx.Magnitude())
		seen = true
	}
	out := make([]WeekdayRow, 0, 7)
	if !seen {
		return out, SourceTransactions
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		values := make(map[string]float64)
		if days[d] != nil {
			for _, e := range days[d].ranked() {
				values[e.name] = core.Float(e.amount)
			}
		}
		out = append(out, WeekdayRow{Weekday: d.String(), Values: values})
	}
	return out, SourceTransactions
}

// Package sheets holds the ports shared by the single-tenant transaction
// stores (Google Sheets and the in-memory seed store).
package sheets

import (
	"context"
	"errors"

	"finboard/internal/core"
	"finboard/internal/period"
)

// ErrReadOnly is returned by stores that cannot take imported rows.
var ErrReadOnly = errors.New("transaction store is read-only")

type (
	// TransactionReader lists every transaction inside a filter's range.
	TransactionReader interface {
		ReadTransactions(ctx context.Context, f period.Filter) ([]core.Transaction, error)
	}

	// TransactionWriter appends imported rows and reports how many it kept.
	TransactionWriter interface {
		AppendTransactions(ctx context.Context, txs []core.Transaction) (int, error)
	}

	// CategoryReader lists the categories the store knows about.
	CategoryReader interface {
		Categories(ctx context.Context) ([]string, error)
	}
)

// InPeriod keeps the rows dated inside f. Undated rows only survive an
// unbounded filter.
func InPeriod(txs []core.Transaction, f period.Filter) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !f.Bounded() {
			out = append(out, tx)
			continue
		}
		if t, ok := tx.Time(); ok && f.Contains(t) {
			out = append(out, tx)
		}
	}
	return out
}

// DistinctCategories returns each category once, first spelling wins, in
// order of first appearance.
func DistinctCategories(txs []core.Transaction) []string {
	seen := make(map[string]struct{}, len(txs))
	out := make([]string, 0)
	for _, tx := range txs {
		key := core.CategoryKey(tx.Category)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tx.Category)
	}
	return out
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"finboard/internal/core"
	"finboard/internal/period"

	"github.com/shopspring/decimal"
)

// InsertTransactions stores an imported batch for a user and returns the
// number of rows written.
func (r *Repository) InsertTransactions(ctx context.Context, userID, importID string, txs []core.Transaction) (int, error) {
	n := 0
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO transactions (user_id, import_id, date, description, amount, balance, category)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, t := range txs {
			var balance sql.NullString
			if t.Balance != nil {
				balance = sql.NullString{String: t.Balance.String(), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, userID, importID, t.Date, t.Description,
				t.Amount.String(), balance, core.NormalizeCategory(t.Category)); err != nil {
				return fmt.Errorf("insert transaction: %w", err)
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Transactions stored",
		"user_id", userID,
		"import_id", importID,
		"count", n)
	return n, nil
}

// ListTransactions returns a user's transactions inside the filter's range,
// oldest first. Dates are stored in the canonical layout so they compare as
// text.
func (r *Repository) ListTransactions(ctx context.Context, userID string, f period.Filter) ([]core.Transaction, error) {
	query := `SELECT id, date, description, amount, balance, category FROM transactions WHERE user_id = ?`
	args := []any{userID}
	if !f.Start.IsZero() {
		query += ` AND date >= ?`
		args = append(args, f.Start.Format(core.DateLayout))
	}
	if !f.End.IsZero() {
		query += ` AND date < ?`
		args = append(args, f.End.Format(core.DateLayout))
	}
	query += ` ORDER BY date, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		var (
			t       core.Transaction
			amount  string
			balance sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Date, &t.Description, &amount, &balance, &t.Category); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("transaction %d amount: %w", t.ID, err)
		}
		if balance.Valid {
			b, err := decimal.NewFromString(balance.String)
			if err != nil {
				return nil, fmt.Errorf("transaction %d balance: %w", t.ID, err)
			}
			t.Balance = &b
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Categories returns a user's distinct stored categories, sorted.
func (r *Repository) Categories(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT category FROM transactions WHERE user_id = ? ORDER BY category`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

package core

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical transaction date format.
const DateLayout = "2006-01-02"

type (
	// Transaction is the canonical transaction record every aggregation works on.
	// Amount sign encodes direction: positive is inflow, negative is outflow.
	Transaction struct {
		ID          int64            `json:"id"`
		Date        string           `json:"date"`
		Description string           `json:"description"`
		Amount      decimal.Decimal  `json:"amount"`
		Balance     *decimal.Decimal `json:"balance"`
		Category    string           `json:"category"`
	}

	// CategoryAmount is an amount aggregated under a category display name.
	CategoryAmount struct {
		Name   string
		Amount decimal.Decimal
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidLimit  = errors.New("budget limit must be positive")
)

// Time parses the canonical date. Rows whose date could not be normalized
// report false and are left out of time-bucketed charts.
func (t Transaction) Time() (time.Time, bool) {
	d, err := time.Parse(DateLayout, t.Date)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// IsExpense reports an outflow.
func (t Transaction) IsExpense() bool {
	return t.Amount.IsNegative()
}

// IsIncome reports an inflow.
func (t Transaction) IsIncome() bool {
	return t.Amount.IsPositive()
}

// Magnitude returns the absolute amount.
func (t Transaction) Magnitude() decimal.Decimal {
	return t.Amount.Abs()
}

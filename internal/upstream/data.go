package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"finboard/internal/aggregate"
	"finboard/internal/core"
	"finboard/internal/period"

	"github.com/shopspring/decimal"
)

// Transactions fetches every transaction for the filter and normalizes them.
func (c *Client) Transactions(ctx context.Context, userID string, f period.Filter) ([]core.Transaction, error) {
	q := url.Values{"all": {"true"}, "filter": {f.ID}}
	body, err := c.getRaw(ctx, "/api/transactions", q, userID)
	if err != nil {
		return nil, err
	}
	return core.NormalizeTransactions(body)
}

// Budgets fetches the stored limits for a filter, keyed by category name.
// Values that are not positive numbers are skipped.
func (c *Client) Budgets(ctx context.Context, userID, filterID string) (map[string]decimal.Decimal, error) {
	body, err := c.getRaw(ctx, "/api/budgets", url.Values{"filter": {filterID}}, userID)
	if err != nil {
		return nil, err
	}
	raw := make(map[string]any)
	if len(bytes.TrimSpace(body)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode budgets: %w", err)
		}
	}
	out := make(map[string]decimal.Decimal, len(raw))
	for cat, v := range raw {
		if d, ok := core.ToDecimal(v); ok && d.IsPositive() {
			out[core.NormalizeCategory(cat)] = d
		}
	}
	return out, nil
}

// BudgetUpdate is the POST /api/budgets body. Budget is sent as a JSON
// number, not the quoted string decimal.Decimal marshals to.
type BudgetUpdate struct {
	CategoryName string      `json:"categoryName"`
	Budget       json.Number `json:"budget"`
	Filter       string      `json:"filter"`
}

// SaveBudget stores one limit upstream.
func (c *Client) SaveBudget(ctx context.Context, userID, category string, limit decimal.Decimal, filterID string) error {
	return c.postJSON(ctx, "/api/budgets", userID, BudgetUpdate{
		CategoryName: category,
		Budget:       json.Number(limit.String()),
		Filter:       filterID,
	}, nil)
}

// Category is one entry of GET /api/categories.
type Category struct {
	Name string `json:"name"`
}

// Categories lists the user's known category names.
func (c *Client) Categories(ctx context.Context, userID string) ([]string, error) {
	body, err := c.getRaw(ctx, "/api/categories", nil, userID)
	if err != nil {
		return nil, err
	}
	var cats []Category
	if err := json.Unmarshal(body, &cats); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	out := make([]string, 0, len(cats))
	for _, cat := range cats {
		out = append(out, core.NormalizeCategory(cat.Name))
	}
	return out, nil
}

// Bundle fetches the precomputed analytics payload. A 404 means the server
// has no bundle for this filter and is not an error.
func (c *Client) Bundle(ctx context.Context, userID string, f period.Filter) (*aggregate.Bundle, error) {
	body, err := c.getRaw(ctx, "/api/analytics/bundle", url.Values{"filter": {f.ID}}, userID)
	if IsStatus(err, http.StatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var b aggregate.Bundle
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("decode analytics bundle: %w", err)
	}
	return &b, nil
}

// Package core holds the canonical transaction model and the normalizers
// that turn heterogeneous upstream payloads into it.
//
// Normalization never fails on a malformed row: bad fields are coerced to
// safe defaults so that partial data still aggregates.
package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006",
	"2006/01/02",
}

var (
	idKeys          = []string{"id", "transaction_id", "transactionId"}
	dateKeys        = []string{"date", "transaction_date", "transactionDate"}
	descriptionKeys = []string{"description", "merchant", "name"}
	amountKeys      = []string{"amount", "value"}
	balanceKeys     = []string{"balance", "running_balance"}
	categoryKeys    = []string{"category", "category_name", "categoryName"}
)

// NormalizeTransactions decodes a transactions payload, either a bare JSON
// array or a {"data": [...]} envelope, into canonical records. Only an
// undecodable body is an error; an empty body or an unknown envelope yields
// an empty slice.
func NormalizeTransactions(raw []byte) ([]Transaction, error) {
	body := bytes.TrimSpace(raw)
	if len(body) == 0 {
		return []Transaction{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}

	rows := extractRows(payload)
	out := make([]Transaction, 0, len(rows))
	for i, row := range rows {
		m, _ := row.(map[string]any)
		out = append(out, NormalizeRow(m, i+1))
	}
	return out, nil
}

func extractRows(payload any) []any {
	switch v := payload.(type) {
	case []any:
		return v
	case map[string]any:
		for _, key := range []string{"data", "transactions"} {
			if rows, ok := v[key].([]any); ok {
				return rows
			}
		}
	}
	return nil
}

// NormalizeRow coerces a single loosely-typed record. index is used as the
// id when the row carries none. A nil map produces a zero-amount "Other" row.
func NormalizeRow(row map[string]any, index int) Transaction {
	tx := Transaction{
		ID:       int64(index),
		Amount:   decimal.Zero,
		Category: OtherCategory,
	}
	if row == nil {
		return tx
	}

	if id, ok := toInt64(lookup(row, idKeys)); ok {
		tx.ID = id
	}
	if s, ok := lookup(row, dateKeys).(string); ok {
		tx.Date = NormalizeDate(s)
	}
	if s, ok := lookup(row, descriptionKeys).(string); ok {
		tx.Description = strings.TrimSpace(s)
	}
	if amt, ok := ToDecimal(lookup(row, amountKeys)); ok {
		tx.Amount = amt
	}
	if bal, ok := ToDecimal(lookup(row, balanceKeys)); ok {
		tx.Balance = &bal
	}
	if s, ok := lookup(row, categoryKeys).(string); ok {
		tx.Category = NormalizeCategory(s)
	}
	return tx
}

// headerAliases maps tabular column titles onto the keys NormalizeRow reads.
var headerAliases = map[string]string{
	"id":          "id",
	"date":        "date",
	"data":        "date",
	"description": "description",
	"descrizione": "description",
	"merchant":    "merchant",
	"amount":      "amount",
	"importo":     "amount",
	"value":       "value",
	"balance":     "balance",
	"saldo":       "balance",
	"category":    "category",
	"categoria":   "category",
}

// HeaderField returns the row key for a column title, or "" when the column
// carries nothing the normalizer reads.
func HeaderField(title string) string {
	return headerAliases[strings.ToLower(strings.TrimSpace(title))]
}

// RowFromCells zips a tabular row with its header fields into the map
// NormalizeRow accepts. Cells beyond the header are dropped.
func RowFromCells(fields []string, cells []any) map[string]any {
	m := make(map[string]any, len(cells))
	for i, cell := range cells {
		if i >= len(fields) || fields[i] == "" {
			continue
		}
		m[fields[i]] = cell
	}
	return m
}

func lookup(row map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := row[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// NormalizeDate returns the date as YYYY-MM-DD when it parses under one of the
// accepted layouts, otherwise the trimmed input.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout)
		}
	}
	return s
}

// ToDecimal coerces JSON numbers and numeric strings. Currency symbols,
// thousands separators and surrounding spaces are tolerated.
func ToDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case string:
		s := strings.TrimSpace(n)
		s = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "").Replace(s)
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	}
	return decimal.Zero, false
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return int64(f), true
		}
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

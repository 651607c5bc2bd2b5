package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finboard/internal/log"
	"finboard/internal/period"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

func sampleValues() [][]interface{} {
	return [][]interface{}{
		{"Date", "Description", "Amount", "Balance", "Category", "Notes"},
		{"2024-06-01", "Salary", 3500.0, 4200.0, "Income", ""},
		{"2024-06-02", "Esselunga", -82.4, 4117.6, "groceries", "weekly"},
		{"", "", "", "", "", ""},
		{"2024-06-03", "Bus pass", "-35.00", "", "", ""},
		{"not a date", "Cash", -10.0},
	}
}

func TestParseTransactions(t *testing.T) {
	txs, err := parseTransactions(sampleValues())
	if err != nil {
		t.Fatalf("parseTransactions() error = %v", err)
	}
	if len(txs) != 4 {
		t.Fatalf("len = %d, want 4 (blank row skipped)", len(txs))
	}

	tests := []struct {
		name     string
		idx      int
		date     string
		amount   string
		category string
	}{
		{"number cell", 0, "2024-06-01", "3500", "Income"},
		{"category trimmed as is", 1, "2024-06-02", "-82.4", "groceries"},
		{"missing category falls back", 2, "2024-06-03", "-35", "Other"},
		{"bad date kept verbatim", 3, "not a date", "-10", "Other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := txs[tt.idx]
			if got.Date != tt.date || got.Category != tt.category || !got.Amount.Equal(decimal.RequireFromString(tt.amount)) {
				t.Errorf("row %d = %+v, want date %s amount %s category %s", tt.idx, got, tt.date, tt.amount, tt.category)
			}
		})
	}
	if txs[0].Balance == nil || !txs[0].Balance.Equal(decimal.NewFromInt(4200)) {
		t.Errorf("balance = %v, want 4200", txs[0].Balance)
	}
	if txs[0].ID != 1 || txs[3].ID != 4 {
		t.Errorf("ids = %d..%d, want 1..4", txs[0].ID, txs[3].ID)
	}
}

func TestParseTransactionsRequiresAmount(t *testing.T) {
	_, err := parseTransactions([][]interface{}{{"Date", "Category"}, {"2024-06-01", "Food"}})
	if err == nil || !strings.Contains(err.Error(), "missing Amount") {
		t.Errorf("parseTransactions() error = %v, want missing Amount", err)
	}
}

func TestParseTransactionsEmpty(t *testing.T) {
	txs, err := parseTransactions(nil)
	if err != nil || txs == nil || len(txs) != 0 {
		t.Errorf("parseTransactions(nil) = %v, %v; want empty slice", txs, err)
	}
}

func newFakeSheets(t *testing.T, values [][]interface{}) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v4/spreadsheets/sid/values/") {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("valueRenderOption"); got != "UNFORMATTED_VALUE" {
			t.Errorf("valueRenderOption = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"range": "Transactions!A1:G10", "majorDimension": "ROWS", "values": values})
	}))
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return NewWithService(svc, Config{SpreadsheetID: "sid"}, log.Discard())
}

func TestReadTransactionsFiltersByPeriod(t *testing.T) {
	c := newFakeSheets(t, sampleValues())
	f := period.Resolve(period.Last7Days, time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC))

	txs, err := c.ReadTransactions(context.Background(), f)
	if err != nil {
		t.Fatalf("ReadTransactions() error = %v", err)
	}
	if len(txs) != 2 {
		t.Errorf("ReadTransactions() = %d rows, want 2 (June 1 and 2)", len(txs))
	}

	all, _ := c.ReadTransactions(context.Background(), period.Resolve(period.AllTime, time.Now()))
	if len(all) != 4 {
		t.Errorf("all-time rows = %d, want 4", len(all))
	}
}

func TestCategories(t *testing.T) {
	c := newFakeSheets(t, sampleValues())
	cats, err := c.Categories(context.Background())
	if err != nil {
		t.Fatalf("Categories() error = %v", err)
	}
	want := []string{"Income", "groceries", "Other"}
	if strings.Join(cats, ",") != strings.Join(want, ",") {
		t.Errorf("Categories() = %v, want %v", cats, want)
	}
}

func TestNewRequiresSpreadsheet(t *testing.T) {
	if _, err := New(context.Background(), Config{}, log.Discard()); err == nil {
		t.Error("New() without spreadsheet id should fail")
	}
	if _, err := New(context.Background(), Config{SpreadsheetID: "x"}, log.Discard()); err == nil {
		t.Error("New() without credentials should fail")
	}
}

package backend

import (
	"context"
	"io"

	"finboard/internal/aggregate"
	"finboard/internal/core"
	"finboard/internal/period"
	"finboard/internal/upstream"

	"github.com/shopspring/decimal"
)

// Source is everything the dashboard reads from or writes to its system of
// record: transactions, the optional analytics bundle, budgets, categories
// and statement import.
type Source interface {
	Transactions(ctx context.Context, userID string, f period.Filter) ([]core.Transaction, error)
	Bundle(ctx context.Context, userID string, f period.Filter) (*aggregate.Bundle, error)
	Budgets(ctx context.Context, userID, filterID string) (map[string]decimal.Decimal, error)
	SaveBudget(ctx context.Context, userID, category string, limit decimal.Decimal, filterID string) error
	Categories(ctx context.Context, userID string) ([]string, error)
	ParseStatement(ctx context.Context, userID, filename string, file io.Reader, progress upstream.ProgressFunc) (upstream.ParsedStatement, error)
	ImportStatement(ctx context.Context, userID string, in upstream.ImportRequest) (upstream.ImportResult, error)
}

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Type    BackendType
	Source  Source
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// BackendType represents the type of backend
type BackendType string

const (
	APIBackend    BackendType = "api"
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case APIBackend, SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// Local reports whether the backend keeps budgets in the local store only.
func (bt BackendType) Local() bool {
	return bt != APIBackend
}

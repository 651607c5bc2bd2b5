// Package memory is a process-local transaction store seeded from a JSON
// file. Imports append to it and are lost on restart.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"finboard/internal/core"
	"finboard/internal/period"
	"finboard/internal/sheets"
)

// SeedFile is the file NewFromFiles reads under its base directory.
const SeedFile = "seed_transactions.json"

var (
	_ sheets.TransactionReader = (*Store)(nil)
	_ sheets.TransactionWriter = (*Store)(nil)
	_ sheets.CategoryReader    = (*Store)(nil)
)

type Store struct {
	mu     sync.RWMutex
	items  []core.Transaction
	nextID int64
}

// New returns a store holding txs.
func New(txs []core.Transaction) *Store {
	s := &Store{}
	s.load(txs)
	return s
}

// NewFromFiles seeds from base/seed_transactions.json. A missing file gives
// an empty store; a malformed one is an error.
func NewFromFiles(base string) (*Store, error) {
	raw, err := os.ReadFile(filepath.Join(base, SeedFile))
	if os.IsNotExist(err) {
		return New(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	txs, err := core.NormalizeTransactions(raw)
	if err != nil {
		return nil, fmt.Errorf("seed %s: %w", SeedFile, err)
	}
	return New(txs), nil
}

func (s *Store) load(txs []core.Transaction) {
	s.items = append(s.items[:0], txs...)
	for _, tx := range txs {
		s.nextID = max(s.nextID, tx.ID)
	}
}

// ReadTransactions returns a copy of the rows inside f, oldest first.
func (s *Store) ReadTransactions(_ context.Context, f period.Filter) ([]core.Transaction, error) {
	s.mu.RLock()
	out := sheets.InPeriod(s.items, f)
	s.mu.RUnlock()
	slices.SortStableFunc(out, func(a, b core.Transaction) int {
		return cmp.Or(strings.Compare(a.Date, b.Date), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// AppendTransactions stores txs under fresh ids.
func (s *Store) AppendTransactions(_ context.Context, txs []core.Transaction) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range txs {
		s.nextID++
		tx.ID = s.nextID
		s.items = append(s.items, tx)
	}
	return len(txs), nil
}

// Categories lists the distinct categories in insertion order.
func (s *Store) Categories(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sheets.DistinctCategories(s.items), nil
}

// Len reports the number of stored rows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

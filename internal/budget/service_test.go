package budget

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"finboard/internal/log"
	"finboard/internal/storage"

	"github.com/shopspring/decimal"
)

type memStore struct {
	mu   sync.Mutex
	rows map[string]storage.RingLimit
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]storage.RingLimit)}
}

func rowKey(user, filter, key string) string { return user + "|" + filter + "|" + key }

func (m *memStore) UpsertRingLimit(_ context.Context, l storage.RingLimit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[rowKey(l.UserID, l.FilterID, l.CategoryKey)] = l
	return nil
}

func (m *memStore) MarkRingLimitSynced(_ context.Context, user, filter, key string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := rowKey(user, filter, key)
	if l, ok := m.rows[k]; ok && l.UpdatedAt.Equal(at) {
		l.Synced = true
		m.rows[k] = l
	}
	return nil
}

func (m *memStore) RingLimits(_ context.Context, user, filter string) ([]storage.RingLimit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.RingLimit
	for _, l := range m.rows {
		if l.UserID == user && l.FilterID == filter {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memStore) UnsyncedRingLimits(_ context.Context, user string) ([]storage.RingLimit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.RingLimit
	for _, l := range m.rows {
		if l.UserID == user && !l.Synced {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeRemote struct {
	fail   bool
	saved  []string
	stored map[string]decimal.Decimal
}

func (f *fakeRemote) Budgets(context.Context, string, string) (map[string]decimal.Decimal, error) {
	if f.fail {
		return nil, errors.New("network down")
	}
	return f.stored, nil
}

func (f *fakeRemote) SaveBudget(_ context.Context, _, category string, _ decimal.Decimal, _ string) error {
	if f.fail {
		return errors.New("network down")
	}
	f.saved = append(f.saved, category)
	return nil
}

func quietLogger() *log.Logger {
	return log.Discard()
}

func TestSaveLimitSynced(t *testing.T) {
	store, remote := newMemStore(), &fakeRemote{}
	svc := NewService(store, remote, quietLogger())

	res, err := svc.SaveLimit(context.Background(), "u1", "all", " Groceries", decimal.NewFromInt(300))
	if err != nil {
		t.Fatalf("SaveLimit() error = %v", err)
	}
	if !res.Synced || res.Category != "Groceries" {
		t.Errorf("SaveLimit() = %+v, want synced", res)
	}
	if len(remote.saved) != 1 {
		t.Errorf("remote saves = %v", remote.saved)
	}
	if pending, _ := svc.Unsynced(context.Background(), "u1"); len(pending) != 0 {
		t.Errorf("Unsynced() = %+v, want none", pending)
	}
}

func TestSaveLimitRemoteFailureKeepsLocal(t *testing.T) {
	ctx := context.Background()
	store, remote := newMemStore(), &fakeRemote{fail: true}
	svc := NewService(store, remote, quietLogger())

	res, err := svc.SaveLimit(ctx, "u1", "all", "Groceries", decimal.NewFromInt(300))
	if err != nil {
		t.Fatalf("SaveLimit() error = %v, remote failures are not errors", err)
	}
	if res.Synced || res.Error == "" {
		t.Errorf("SaveLimit() = %+v, want unsynced with error", res)
	}

	limits, err := svc.Limits(ctx, "u1", "all")
	if err != nil {
		t.Fatalf("Limits() error = %v", err)
	}
	if v, ok := limits.Get("groceries"); !ok || !v.Equal(decimal.NewFromInt(300)) {
		t.Errorf("local value lost: %v", limits)
	}

	// Nothing retries on its own.
	if len(remote.saved) != 0 {
		t.Fatalf("unexpected remote saves: %v", remote.saved)
	}

	remote.fail = false
	out, err := svc.Resync(ctx, "u1")
	if err != nil {
		t.Fatalf("Resync() error = %v", err)
	}
	if out.Attempted != 1 || out.Synced != 1 || len(out.Failed) != 0 {
		t.Errorf("Resync() = %+v", out)
	}
	if pending, _ := svc.Unsynced(ctx, "u1"); len(pending) != 0 {
		t.Errorf("still unsynced after resync: %+v", pending)
	}
}

func TestSaveLimitRejectsNonPositive(t *testing.T) {
	svc := NewService(newMemStore(), &fakeRemote{}, quietLogger())
	if _, err := svc.SaveLimit(context.Background(), "u1", "all", "Rent", decimal.Zero); err == nil {
		t.Fatalf("expected error for zero limit")
	}
}

func TestLimitsMerge(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	remote := &fakeRemote{stored: map[string]decimal.Decimal{
		"Rent":      decimal.NewFromInt(1500),
		"Groceries": decimal.NewFromInt(400),
		"Broken":    decimal.NewFromInt(-1),
	}}
	svc := NewService(store, remote, quietLogger())

	_ = store.UpsertRingLimit(ctx, storage.RingLimit{UserID: "u1", FilterID: "all", CategoryKey: "groceries", Category: "Groceries", Limit: decimal.NewFromInt(250)})

	limits, err := svc.Limits(ctx, "u1", "all")
	if err != nil {
		t.Fatalf("Limits() error = %v", err)
	}
	if v, _ := limits.Get("Groceries"); !v.Equal(decimal.NewFromInt(250)) {
		t.Errorf("unsynced local must win, got %s", v)
	}
	if v, _ := limits.Get("rent"); !v.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("remote limit missing, got %s", v)
	}
	if _, ok := limits.Get("Broken"); ok {
		t.Errorf("non-positive remote limit kept")
	}
}

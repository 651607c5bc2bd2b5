package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"finboard/internal/core"
	"finboard/internal/period"

	"github.com/shopspring/decimal"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "again.db")
	for i := 0; i < 2; i++ {
		repo, err := Open(path)
		if err != nil {
			t.Fatalf("Open() #%d error = %v", i, err)
		}
		repo.Close()
	}
}

func TestTransactionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	bal := decimal.RequireFromString("1200.50")
	txs := []core.Transaction{
		{Date: "2024-06-01", Description: "Pay", Amount: decimal.NewFromInt(3000), Category: "Salary"},
		{Date: "2024-06-03", Description: "Shop", Amount: decimal.RequireFromString("-42.10"), Balance: &bal, Category: " groceries "},
		{Date: "2023-12-31", Description: "Old", Amount: decimal.NewFromInt(-5), Category: ""},
	}
	n, err := repo.InsertTransactions(ctx, "u1", "imp-1", txs)
	if err != nil || n != 3 {
		t.Fatalf("InsertTransactions() = %d, %v", n, err)
	}
	if _, err := repo.InsertTransactions(ctx, "u2", "imp-2", txs[:1]); err != nil {
		t.Fatalf("InsertTransactions(u2) error = %v", err)
	}

	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	got, err := repo.ListTransactions(ctx, "u1", period.Resolve("2024", now))
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListTransactions() len = %d, want 2", len(got))
	}
	if got[1].Category != "groceries" || !got[1].Amount.Equal(decimal.RequireFromString("-42.1")) {
		t.Errorf("row = %+v", got[1])
	}
	if got[1].Balance == nil || !got[1].Balance.Equal(bal) {
		t.Errorf("balance = %v, want %s", got[1].Balance, bal)
	}
	if got[0].Balance != nil {
		t.Errorf("missing balance must stay nil")
	}

	all, _ := repo.ListTransactions(ctx, "u1", period.Resolve(period.AllTime, now))
	if len(all) != 3 || all[0].Category != core.OtherCategory {
		t.Errorf("all-time = %+v", all)
	}

	cats, err := repo.Categories(ctx, "u1")
	if err != nil || len(cats) != 3 {
		t.Errorf("Categories() = %v, %v", cats, err)
	}
}

func TestRingLimitSyncState(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	l := RingLimit{UserID: "u1", FilterID: "all", CategoryKey: "groceries", Category: "Groceries", Limit: decimal.NewFromInt(400), UpdatedAt: at}
	if err := repo.UpsertRingLimit(ctx, l); err != nil {
		t.Fatalf("UpsertRingLimit() error = %v", err)
	}
	unsynced, err := repo.UnsyncedRingLimits(ctx, "u1")
	if err != nil || len(unsynced) != 1 {
		t.Fatalf("UnsyncedRingLimits() = %v, %v", unsynced, err)
	}

	// A newer write lands before the first sync completes.
	l2 := l
	l2.Limit = decimal.NewFromInt(450)
	l2.UpdatedAt = at.Add(time.Second)
	if err := repo.UpsertRingLimit(ctx, l2); err != nil {
		t.Fatalf("UpsertRingLimit() error = %v", err)
	}
	if err := repo.MarkRingLimitSynced(ctx, "u1", "all", "groceries", at); err != nil {
		t.Fatalf("MarkRingLimitSynced() error = %v", err)
	}
	got, err := repo.RingLimit(ctx, "u1", "all", "groceries")
	if err != nil {
		t.Fatalf("RingLimit() error = %v", err)
	}
	if got.Synced || !got.Limit.Equal(decimal.NewFromInt(450)) {
		t.Errorf("stale sync mark applied: %+v", got)
	}

	if err := repo.MarkRingLimitSynced(ctx, "u1", "all", "groceries", l2.UpdatedAt); err != nil {
		t.Fatalf("MarkRingLimitSynced() error = %v", err)
	}
	if unsynced, _ := repo.UnsyncedRingLimits(ctx, "u1"); len(unsynced) != 0 {
		t.Errorf("UnsyncedRingLimits() = %+v, want none", unsynced)
	}

	if _, err := repo.RingLimit(ctx, "u1", "all", "rent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("RingLimit(missing) error = %v, want ErrNotFound", err)
	}
}

func TestPreferences(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	if _, err := repo.Layout(ctx, "u1", "home"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Layout(missing) error = %v", err)
	}
	if err := repo.SaveLayout(ctx, "u1", "home", StoredLayout{SizesVersion: 2, Payload: []byte(`{"a":1}`)}); err != nil {
		t.Fatalf("SaveLayout() error = %v", err)
	}
	l, err := repo.Layout(ctx, "u1", "home")
	if err != nil || l.SizesVersion != 2 || string(l.Payload) != `{"a":1}` {
		t.Errorf("Layout() = %+v, %v", l, err)
	}

	if err := repo.SetHiddenCategories(ctx, "u1", "home", "sankey", []string{"Travel", "travel", "Coffee"}); err != nil {
		t.Fatalf("SetHiddenCategories() error = %v", err)
	}
	hidden, _ := repo.HiddenCategories(ctx, "u1", "home", "sankey")
	if len(hidden) != 2 || hidden[0] != "Coffee" || hidden[1] != "Travel" {
		t.Errorf("HiddenCategories() = %v", hidden)
	}
	if other, _ := repo.HiddenCategories(ctx, "u1", "analytics", "sankey"); len(other) != 0 {
		t.Errorf("scopes must not share hidden sets: %v", other)
	}

	if err := repo.SetTierOverrides(ctx, "u1", []TierOverride{{Category: "Dining", Tier: "Needs"}}); err != nil {
		t.Fatalf("SetTierOverrides() error = %v", err)
	}
	tiers, _ := repo.TierOverrides(ctx, "u1")
	if tiers["dining"].Tier != "Needs" {
		t.Errorf("TierOverrides() = %v", tiers)
	}
	if err := repo.SetTierOverrides(ctx, "u1", []TierOverride{{Category: "Dining", Tier: "Luxury"}}); err == nil {
		t.Errorf("expected invalid tier to be rejected")
	}
	if tiers, _ := repo.TierOverrides(ctx, "u1"); tiers["dining"].Tier != "Needs" {
		t.Errorf("failed replace must roll back, got %v", tiers)
	}
}

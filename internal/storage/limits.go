package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// RingLimit is a locally stored budget limit. Synced is false until the
// remote budget service has accepted the value.
type RingLimit struct {
	UserID      string
	FilterID    string
	CategoryKey string
	Category    string
	Limit       decimal.Decimal
	Synced      bool
	UpdatedAt   time.Time
}

// UpsertRingLimit writes a limit. The last write wins.
func (r *Repository) UpsertRingLimit(ctx context.Context, l RingLimit) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ring_limits (user_id, filter_id, category_key, category, amount, synced, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, filter_id, category_key) DO UPDATE SET
			category = excluded.category,
			amount = excluded.amount,
			synced = excluded.synced,
			updated_at = excluded.updated_at`,
		l.UserID, l.FilterID, l.CategoryKey, l.Category, l.Limit.String(), l.Synced, l.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert ring limit: %w", err)
	}
	return nil
}

// MarkRingLimitSynced flags a limit as accepted remotely. It only applies if
// the row has not been rewritten since updatedAt.
func (r *Repository) MarkRingLimitSynced(ctx context.Context, userID, filterID, categoryKey string, updatedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE ring_limits SET synced = 1
		WHERE user_id = ? AND filter_id = ? AND category_key = ? AND updated_at = ?`,
		userID, filterID, categoryKey, updatedAt.UTC())
	if err != nil {
		return fmt.Errorf("mark ring limit synced: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		slog.DebugContext(ctx, "Ring limit changed before sync completed",
			"user_id", userID,
			"filter_id", filterID,
			"category_key", categoryKey)
	}
	return nil
}

// RingLimits returns a user's limits for a filter.
func (r *Repository) RingLimits(ctx context.Context, userID, filterID string) ([]RingLimit, error) {
	return r.queryRingLimits(ctx, `
		SELECT user_id, filter_id, category_key, category, amount, synced, updated_at
		FROM ring_limits WHERE user_id = ? AND filter_id = ? ORDER BY category_key`,
		userID, filterID)
}

// UnsyncedRingLimits returns every limit the remote has not accepted yet.
func (r *Repository) UnsyncedRingLimits(ctx context.Context, userID string) ([]RingLimit, error) {
	return r.queryRingLimits(ctx, `
		SELECT user_id, filter_id, category_key, category, amount, synced, updated_at
		FROM ring_limits WHERE user_id = ? AND synced = 0 ORDER BY updated_at`,
		userID)
}

// RingLimit returns a single stored limit or ErrNotFound.
func (r *Repository) RingLimit(ctx context.Context, userID, filterID, categoryKey string) (RingLimit, error) {
	limits, err := r.queryRingLimits(ctx, `
		SELECT user_id, filter_id, category_key, category, amount, synced, updated_at
		FROM ring_limits WHERE user_id = ? AND filter_id = ? AND category_key = ?`,
		userID, filterID, categoryKey)
	if err != nil {
		return RingLimit{}, err
	}
	if len(limits) == 0 {
		return RingLimit{}, ErrNotFound
	}
	return limits[0], nil
}

func (r *Repository) queryRingLimits(ctx context.Context, query string, args ...any) ([]RingLimit, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []RingLimit{}, nil
		}
		return nil, fmt.Errorf("query ring limits: %w", err)
	}
	defer rows.Close()

	out := make([]RingLimit, 0)
	for rows.Next() {
		var (
			l      RingLimit
			amount string
		)
		if err := rows.Scan(&l.UserID, &l.FilterID, &l.CategoryKey, &l.Category, &amount, &l.Synced, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan ring limit: %w", err)
		}
		if l.Limit, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("ring limit %s amount: %w", l.CategoryKey, err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

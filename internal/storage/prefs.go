package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"finboard/internal/core"
)

// StoredLayout is the raw persisted layout for a (user, scope).
type StoredLayout struct {
	SizesVersion int
	Payload      []byte
}

// Layout returns the stored layout or ErrNotFound.
func (r *Repository) Layout(ctx context.Context, userID, scope string) (StoredLayout, error) {
	var (
		l       StoredLayout
		payload string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT sizes_version, payload FROM layouts WHERE user_id = ? AND scope = ?`,
		userID, scope).Scan(&l.SizesVersion, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredLayout{}, ErrNotFound
	}
	if err != nil {
		return StoredLayout{}, fmt.Errorf("get layout: %w", err)
	}
	l.Payload = []byte(payload)
	return l, nil
}

// SaveLayout replaces the stored layout.
func (r *Repository) SaveLayout(ctx context.Context, userID, scope string, l StoredLayout) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO layouts (user_id, scope, sizes_version, payload, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id, scope) DO UPDATE SET
			sizes_version = excluded.sizes_version,
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		userID, scope, l.SizesVersion, string(l.Payload))
	if err != nil {
		return fmt.Errorf("save layout: %w", err)
	}
	return nil
}

// HiddenCategories returns the hidden display names for one chart instance.
func (r *Repository) HiddenCategories(ctx context.Context, userID, scope, chartID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category FROM hidden_categories
		WHERE user_id = ? AND scope = ? AND chart_id = ? ORDER BY category_key`,
		userID, scope, chartID)
	if err != nil {
		return nil, fmt.Errorf("list hidden categories: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan hidden category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetHiddenCategories replaces the hidden set for one chart instance.
func (r *Repository) SetHiddenCategories(ctx context.Context, userID, scope, chartID string, categories []string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM hidden_categories WHERE user_id = ? AND scope = ? AND chart_id = ?`,
			userID, scope, chartID); err != nil {
			return fmt.Errorf("clear hidden categories: %w", err)
		}
		for _, c := range categories {
			name := core.NormalizeCategory(c)
			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO hidden_categories (user_id, scope, chart_id, category_key, category)
				VALUES (?, ?, ?, ?, ?)`,
				userID, scope, chartID, core.CategoryKey(name), name); err != nil {
				return fmt.Errorf("insert hidden category: %w", err)
			}
		}
		return nil
	})
}

// TierOverride pins a category to a needs/wants tier.
type TierOverride struct {
	Category string `json:"category"`
	Tier     string `json:"tier"`
}

// TierOverrides returns a user's overrides keyed by category key.
func (r *Repository) TierOverrides(ctx context.Context, userID string) (map[string]TierOverride, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category_key, category, tier FROM tier_overrides WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("list tier overrides: %w", err)
	}
	defer rows.Close()

	out := make(map[string]TierOverride)
	for rows.Next() {
		var (
			key string
			o   TierOverride
		)
		if err := rows.Scan(&key, &o.Category, &o.Tier); err != nil {
			return nil, fmt.Errorf("scan tier override: %w", err)
		}
		out[key] = o
	}
	return out, rows.Err()
}

// SetTierOverrides replaces all of a user's overrides.
func (r *Repository) SetTierOverrides(ctx context.Context, userID string, overrides []TierOverride) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tier_overrides WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("clear tier overrides: %w", err)
		}
		for _, o := range overrides {
			name := core.NormalizeCategory(o.Category)
			if _, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO tier_overrides (user_id, category_key, category, tier)
				VALUES (?, ?, ?, ?)`,
				userID, core.CategoryKey(name), name, o.Tier); err != nil {
				return fmt.Errorf("insert tier override %q: %w", name, err)
			}
		}
		return nil
	})
}

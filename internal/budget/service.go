package budget

import (
	"context"
	"fmt"
	"time"

	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/storage"

	"github.com/shopspring/decimal"
)

// LocalStore persists limits and their sync state.
type LocalStore interface {
	UpsertRingLimit(ctx context.Context, l storage.RingLimit) error
	MarkRingLimitSynced(ctx context.Context, userID, filterID, categoryKey string, updatedAt time.Time) error
	RingLimits(ctx context.Context, userID, filterID string) ([]storage.RingLimit, error)
	UnsyncedRingLimits(ctx context.Context, userID string) ([]storage.RingLimit, error)
}

// Remote is the budget service of record.
type Remote interface {
	Budgets(ctx context.Context, userID, filterID string) (map[string]decimal.Decimal, error)
	SaveBudget(ctx context.Context, userID, category string, limit decimal.Decimal, filterID string) error
}

// SaveResult reports how far a save got.
type SaveResult struct {
	Category string          `json:"category"`
	Limit    decimal.Decimal `json:"limit"`
	Synced   bool            `json:"synced"`
	Error    string          `json:"error,omitempty"`
}

// ResyncResult summarizes a user-initiated resync.
type ResyncResult struct {
	Attempted int          `json:"attempted"`
	Synced    int          `json:"synced"`
	Failed    []SaveResult `json:"failed"`
}

// Service owns the save saga: apply locally, push remotely, and mark the
// local copy synced only once the remote accepted it.
type Service struct {
	local  LocalStore
	remote Remote
	logger *log.Logger
	now    func() time.Time
}

func NewService(local LocalStore, remote Remote, logger *log.Logger) *Service {
	return &Service{
		local:  local,
		remote: remote,
		logger: logger.WithComponent(log.ComponentBudget),
		now:    time.Now,
	}
}

// SaveLimit stores a limit and pushes it upstream. A remote failure is not an
// error: the local value stays, marked unsynced, and the result says so.
func (s *Service) SaveLimit(ctx context.Context, userID, filterID, category string, limit decimal.Decimal) (SaveResult, error) {
	if !limit.IsPositive() {
		return SaveResult{}, core.ErrInvalidLimit
	}
	name := core.NormalizeCategory(category)
	entry := storage.RingLimit{
		UserID:      userID,
		FilterID:    filterID,
		CategoryKey: core.CategoryKey(name),
		Category:    name,
		Limit:       limit,
		UpdatedAt:   s.now().UTC(),
	}
	if err := s.local.UpsertRingLimit(ctx, entry); err != nil {
		return SaveResult{}, fmt.Errorf("store limit locally: %w", err)
	}

	return s.push(ctx, entry), nil
}

func (s *Service) push(ctx context.Context, entry storage.RingLimit) SaveResult {
	res := SaveResult{Category: entry.Category, Limit: entry.Limit}
	if err := s.remote.SaveBudget(ctx, entry.UserID, entry.Category, entry.Limit, entry.FilterID); err != nil {
		s.logger.WarnContext(ctx, "Budget save not accepted remotely, kept locally as unsynced",
			log.FieldUserID, entry.UserID,
			log.FieldCategory, entry.Category,
			log.FieldFilter, entry.FilterID,
			log.FieldError, err)
		res.Error = err.Error()
		return res
	}
	if err := s.local.MarkRingLimitSynced(ctx, entry.UserID, entry.FilterID, entry.CategoryKey, entry.UpdatedAt); err != nil {
		s.logger.ErrorContext(ctx, "Failed to mark budget synced",
			log.FieldUserID, entry.UserID,
			log.FieldCategory, entry.Category,
			log.FieldError, err)
		res.Error = err.Error()
		return res
	}
	res.Synced = true
	return res
}

// Resync retries every unsynced limit once.
func (s *Service) Resync(ctx context.Context, userID string) (ResyncResult, error) {
	pending, err := s.local.UnsyncedRingLimits(ctx, userID)
	if err != nil {
		return ResyncResult{}, fmt.Errorf("list unsynced limits: %w", err)
	}
	out := ResyncResult{Attempted: len(pending), Failed: make([]SaveResult, 0)}
	for _, entry := range pending {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		if res := s.push(ctx, entry); res.Synced {
			out.Synced++
		} else {
			out.Failed = append(out.Failed, res)
		}
	}
	s.logger.InfoContext(ctx, "Budget resync finished",
		log.FieldUserID, userID,
		"attempted", out.Attempted,
		"synced", out.Synced)
	return out, nil
}

// Unsynced lists limits the remote has not accepted.
func (s *Service) Unsynced(ctx context.Context, userID string) ([]storage.RingLimit, error) {
	return s.local.UnsyncedRingLimits(ctx, userID)
}

// Limits merges remote limits with local ones. Unsynced local values are
// newer than anything the remote holds and win.
func (s *Service) Limits(ctx context.Context, userID, filterID string) (Limits, error) {
	limits := make(Limits)
	remote, err := s.remote.Budgets(ctx, userID, filterID)
	if err != nil {
		s.logger.WarnContext(ctx, "Remote budgets unavailable, using local limits",
			log.FieldUserID, userID,
			log.FieldFilter, filterID,
			log.FieldError, err)
	}
	for cat, v := range remote {
		if v.IsPositive() {
			limits.Set(cat, v)
		}
	}

	local, err := s.local.RingLimits(ctx, userID, filterID)
	if err != nil {
		return limits, fmt.Errorf("load local limits: %w", err)
	}
	for _, l := range local {
		if _, ok := limits[l.CategoryKey]; !ok || !l.Synced {
			limits[l.CategoryKey] = l.Limit
		}
	}
	return limits, nil
}

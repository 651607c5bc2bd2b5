package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"finboard/internal/aggregate"
	"finboard/internal/amqp"
	"finboard/internal/budget"
	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/period"
	"finboard/internal/storage"
	"finboard/internal/upstream"
	"finboard/internal/visibility"

	"github.com/shopspring/decimal"
)

// ImportOutcome is the result of committing a reviewed statement.
type ImportOutcome struct {
	Result        upstream.ImportResult `json:"result"`
	Invalidated   int                   `json:"invalidated"`
	Notifications []Notification        `json:"-"`
}

// ParseStatement hands the file to the statement parser. Nothing is cached
// or invalidated until the rows are imported.
func (s *Service) ParseStatement(ctx context.Context, userID, filename string, file io.Reader, progress upstream.ProgressFunc) (upstream.ParsedStatement, []Notification, error) {
	parsed, err := s.statements.ParseStatement(ctx, userID, filename, file, progress)
	if err != nil {
		return upstream.ParsedStatement{}, []Notification{failure(NetworkErrorMessage)}, err
	}
	var notes []Notification
	if parsed.CategorizationError != "" {
		notes = append(notes, warning(parsed.CategorizationError))
	}
	if parsed.CategorizationWarning != "" {
		notes = append(notes, warning(parsed.CategorizationWarning))
	}
	return parsed, notes, nil
}

// Import commits a statement, drops the user's cached entries and tells the
// other instances to do the same. Rows skipped for invalid dates add a
// warning next to the success notification.
func (s *Service) Import(ctx context.Context, userID string, in upstream.ImportRequest) (ImportOutcome, error) {
	res, err := s.statements.ImportStatement(ctx, userID, in)
	if err != nil {
		s.logger.ErrorContext(ctx, "Statement import failed",
			log.FieldUserID, userID,
			log.FieldImportID, in.StatementMeta.FileID,
			log.FieldError, err)
		return ImportOutcome{Notifications: []Notification{failure(NetworkErrorMessage)}}, err
	}

	out := ImportOutcome{
		Result:      res,
		Invalidated: s.loader.InvalidateUser(userID),
	}
	out.Notifications = append(out.Notifications,
		success(fmt.Sprintf("Imported %d transaction%s", res.Inserted, plural(res.Inserted))))
	if res.SkippedInvalidDates > 0 {
		out.Notifications = append(out.Notifications,
			warning(fmt.Sprintf("Skipped %d row%s with invalid dates", res.SkippedInvalidDates, plural(res.SkippedInvalidDates))))
	}

	s.logger.InfoContext(ctx, "Statement imported",
		log.FieldUserID, userID,
		log.FieldImportID, in.StatementMeta.FileID,
		log.FieldCount, res.Inserted,
		"skipped_invalid_dates", res.SkippedInvalidDates)
	s.publish(ctx, amqp.NewImportCompleted(userID, in.StatementMeta.FileID))
	return out, nil
}

// SaveLimit runs the ring-limit saga. A remote failure is not an error: the
// limit is kept locally and reported unsynced.
func (s *Service) SaveLimit(ctx context.Context, userID, filterID, category string, limit decimal.Decimal) (budget.SaveResult, error) {
	filterID = period.Resolve(filterID, s.now()).ID
	res, err := s.budgets.SaveLimit(ctx, userID, filterID, category, limit)
	if err != nil {
		return budget.SaveResult{}, err
	}
	s.loader.InvalidateUser(userID)
	s.publish(ctx, amqp.NewBudgetChanged(userID, filterID, res.Category))
	return res, nil
}

// Resync retries every unsynced limit once.
func (s *Service) Resync(ctx context.Context, userID string) (budget.ResyncResult, error) {
	res, err := s.budgets.Resync(ctx, userID)
	if err != nil {
		return budget.ResyncResult{}, err
	}
	if res.Synced > 0 {
		s.loader.InvalidateUser(userID)
		s.publish(ctx, amqp.NewBudgetChanged(userID, "", ""))
	}
	return res, nil
}

// Unsynced lists limits the remote never accepted.
func (s *Service) Unsynced(ctx context.Context, userID string) ([]storage.RingLimit, error) {
	return s.budgets.Unsynced(ctx, userID)
}

// Limits returns the effective ring limits for a filter.
func (s *Service) Limits(ctx context.Context, userID, filterID string) (budget.Limits, bool) {
	e := s.loader.Load(ctx, userID, period.Resolve(filterID, s.now()).ID)
	return e.RingLimits, e.Degraded
}

// Visibility returns the legend controls of one chart instance for the
// categories present under filterID.
func (s *Service) Visibility(ctx context.Context, userID, scope, chartID, filterID string) (visibility.Result, error) {
	hidden, err := s.prefs.HiddenCategories(ctx, userID, scope, chartID)
	if err != nil {
		return visibility.Result{}, err
	}
	e := s.loader.Load(ctx, userID, period.Resolve(filterID, s.now()).ID)
	names := entryCategories(e)
	// Known categories without transactions in the period and hidden ones
	// still get a control so they can be toggled ahead of time.
	if known, err := s.catalog.Categories(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "Category list unavailable, controls cover the period only",
			log.FieldUserID, userID, log.FieldError, err)
	} else {
		names = append(names, known...)
	}
	return visibility.BuildCategoryControls(append(names, hidden...), visibility.Options{
		Scope:   scope,
		ChartID: chartID,
		Hidden:  hidden,
	}), nil
}

// Categories lists the user's known categories once each by key, sorted by
// key.
func (s *Service) Categories(ctx context.Context, userID string) ([]string, error) {
	known, err := s.catalog.Categories(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(known))
	seen := make(map[string]struct{}, len(known))
	for _, c := range known {
		name := core.NormalizeCategory(c)
		key := core.CategoryKey(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return core.CategoryKey(out[i]) < core.CategoryKey(out[j]) })
	return out, nil
}

// SetVisibility replaces the hidden set of one chart instance. Names are
// normalized and deduplicated by category key.
func (s *Service) SetVisibility(ctx context.Context, userID, scope, chartID string, hidden []string) ([]string, error) {
	if !KnownChart(chartID) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChart, chartID)
	}
	set := visibility.NewSet(hidden...)
	names := make([]string, 0, len(set))
	seen := make(map[string]struct{}, len(set))
	for _, h := range hidden {
		name := core.NormalizeCategory(h)
		key := core.CategoryKey(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, name)
	}
	if err := s.prefs.SetHiddenCategories(ctx, userID, scope, chartID, names); err != nil {
		return nil, err
	}
	return names, nil
}

// ErrInvalidTier rejects tier assignments naming no known tier.
var ErrInvalidTier = errors.New("invalid tier")

// TierAssignment is one category's needs/wants tier.
type TierAssignment struct {
	Category string         `json:"category"`
	Tier     aggregate.Tier `json:"tier"`
}

// Tiers lists the user's explicit tier overrides sorted by category.
func (s *Service) Tiers(ctx context.Context, userID string) ([]TierAssignment, error) {
	stored, err := s.prefs.TierOverrides(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]TierAssignment, 0, len(stored))
	for _, o := range stored {
		t, err := aggregate.ParseTier(o.Tier)
		if err != nil {
			continue
		}
		out = append(out, TierAssignment{Category: o.Category, Tier: t})
	}
	sort.Slice(out, func(i, j int) bool {
		return core.CategoryKey(out[i].Category) < core.CategoryKey(out[j].Category)
	})
	return out, nil
}

// SetTiers replaces the user's tier overrides. Unknown tiers are rejected
// before anything is written.
func (s *Service) SetTiers(ctx context.Context, userID string, in []TierAssignment) error {
	overrides := make([]storage.TierOverride, 0, len(in))
	for _, a := range in {
		t, err := aggregate.ParseTier(string(a.Tier))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidTier, err)
		}
		overrides = append(overrides, storage.TierOverride{
			Category: core.NormalizeCategory(a.Category),
			Tier:     string(t),
		})
	}
	return s.prefs.SetTierOverrides(ctx, userID, overrides)
}

// Invalidate drops the user's cached entries on this instance only.
func (s *Service) Invalidate(userID string) int {
	return s.loader.InvalidateUser(userID)
}

// HandleEvent applies an invalidation published by another instance.
func (s *Service) HandleEvent(ctx context.Context, e amqp.Event) error {
	n := s.loader.InvalidateUser(e.UserID)
	s.logger.DebugContext(ctx, "Invalidated cache from event",
		"type", e.Type,
		log.FieldUserID, e.UserID,
		log.FieldCount, n)
	return nil
}

// publish is best effort: a broker outage only delays invalidation on the
// other instances until their entries go stale.
func (s *Service) publish(ctx context.Context, e amqp.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish invalidation event",
			"type", e.Type,
			log.FieldUserID, e.UserID,
			log.FieldError, err)
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

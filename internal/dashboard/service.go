// Package dashboard wires the cache, visibility preferences, aggregators and
// the ring engine into per-chart responses, and runs the mutating flows that
// must invalidate cached data.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"finboard/internal/aggregate"
	"finboard/internal/amqp"
	"finboard/internal/analytics"
	"finboard/internal/budget"
	"finboard/internal/cache"
	"finboard/internal/log"
	"finboard/internal/period"
	"finboard/internal/storage"
	"finboard/internal/upstream"
	"finboard/internal/visibility"

	"github.com/shopspring/decimal"
)

// ErrUnknownChart is returned for chart ids nothing can compute.
var ErrUnknownChart = errors.New("unknown chart")

type (
	// EntryLoader is the analytics cache.
	EntryLoader interface {
		Load(ctx context.Context, userID, filterID string) analytics.Entry
		InvalidateUser(userID string) int
	}

	// Preferences stores per-user chart settings.
	Preferences interface {
		HiddenCategories(ctx context.Context, userID, scope, chartID string) ([]string, error)
		SetHiddenCategories(ctx context.Context, userID, scope, chartID string, categories []string) error
		TierOverrides(ctx context.Context, userID string) (map[string]storage.TierOverride, error)
		SetTierOverrides(ctx context.Context, userID string, overrides []storage.TierOverride) error
	}

	// Statements parses and imports bank statements.
	Statements interface {
		ParseStatement(ctx context.Context, userID, filename string, file io.Reader, progress upstream.ProgressFunc) (upstream.ParsedStatement, error)
		ImportStatement(ctx context.Context, userID string, in upstream.ImportRequest) (upstream.ImportResult, error)
	}

	// Catalog lists every category the user has, with or without
	// transactions in a given period.
	Catalog interface {
		Categories(ctx context.Context, userID string) ([]string, error)
	}

	// Budgets runs the ring-limit save saga.
	Budgets interface {
		SaveLimit(ctx context.Context, userID, filterID, category string, limit decimal.Decimal) (budget.SaveResult, error)
		Resync(ctx context.Context, userID string) (budget.ResyncResult, error)
		Unsynced(ctx context.Context, userID string) ([]storage.RingLimit, error)
	}

	// Publisher fans invalidation events out to other instances.
	Publisher interface {
		Publish(ctx context.Context, e amqp.Event) error
	}
)

// Config tunes the chart memo.
type Config struct {
	MemoSize      int
	MemoRetention time.Duration
	Now           func() time.Time
}

type Service struct {
	loader     EntryLoader
	prefs      Preferences
	statements Statements
	catalog    Catalog
	budgets    Budgets
	publisher  Publisher
	memo       *cache.LRUCache[aggregate.Output]
	now        func() time.Time
	logger     *log.Logger
}

// NewService builds the orchestrator. publisher may be nil, in which case
// invalidation stays local to this process.
func NewService(loader EntryLoader, prefs Preferences, statements Statements, catalog Catalog, budgets Budgets, publisher Publisher, cfg Config, logger *log.Logger) *Service {
	if cfg.MemoSize <= 0 {
		cfg.MemoSize = 512
	}
	if cfg.MemoRetention <= 0 {
		cfg.MemoRetention = 15 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		loader:     loader,
		prefs:      prefs,
		statements: statements,
		catalog:    catalog,
		budgets:    budgets,
		publisher:  publisher,
		memo:       cache.NewLRUCache[aggregate.Output](cfg.MemoSize, cfg.MemoRetention, cache.WithClock(cfg.Now)),
		now:        cfg.Now,
		logger:     logger.WithComponent(log.ComponentDashboard),
	}
}

// Memo exposes the chart memo for periodic cleanup.
func (s *Service) Memo() cache.Cleaner {
	return s.memo
}

// ChartRequest asks for one chart instance.
type ChartRequest struct {
	User    string
	Filter  string
	ChartID string
	Scope   string
	// Height is the layout row height; it picks the series count for
	// ranked charts.
	Height int
	// Selected picks the rings to draw. Empty means the top spenders.
	Selected []string
}

// ChartResponse is one chart's data with its legend controls.
type ChartResponse struct {
	Chart         string               `json:"chart"`
	Filter        string               `json:"filter"`
	Source        aggregate.Source     `json:"source"`
	Data          any                  `json:"data"`
	Controls      []visibility.Control `json:"controls"`
	Degraded      bool                 `json:"degraded"`
	Notifications []Notification       `json:"-"`
	// Err is the fetch failure behind a degraded response.
	Err           error                `json:"-"`
}

// KnownChart reports whether id can be computed.
func KnownChart(id string) bool {
	if id == aggregate.ChartRings {
		return true
	}
	_, ok := aggregate.Lookup(id)
	return ok
}

// Chart computes one chart. Fetch failures never fail the call: the
// response carries empty data, Degraded and a network-error notification.
func (s *Service) Chart(ctx context.Context, req ChartRequest) (ChartResponse, error) {
	if !KnownChart(req.ChartID) {
		return ChartResponse{}, fmt.Errorf("%w: %q", ErrUnknownChart, req.ChartID)
	}
	if req.Scope == "" {
		req.Scope = visibility.ScopeAnalytics
	}
	f := period.Resolve(req.Filter, s.now())
	entry := s.loader.Load(ctx, req.User, f.ID)

	hiddenNames, err := s.prefs.HiddenCategories(ctx, req.User, req.Scope, req.ChartID)
	if err != nil {
		s.logger.WarnContext(ctx, "Hidden categories unavailable, showing all",
			log.FieldUserID, req.User,
			log.FieldChart, req.ChartID,
			log.FieldError, err)
	}
	vis := visibility.BuildCategoryControls(entryCategories(entry), visibility.Options{
		Scope:   req.Scope,
		ChartID: req.ChartID,
		Hidden:  hiddenNames,
	})

	resp := ChartResponse{
		Chart:    req.ChartID,
		Filter:   f.ID,
		Controls: vis.Controls,
		Degraded: entry.Degraded,
		Err:      entry.Err,
	}
	if entry.Degraded {
		resp.Notifications = append(resp.Notifications, failure(NetworkErrorMessage))
	}

	if req.ChartID == aggregate.ChartRings {
		resp.Source = aggregate.SourceTransactions
		resp.Data = s.rings(entry, vis.Hidden, req.Selected, f)
		return resp, nil
	}

	in := aggregate.Input{
		Transactions: entry.Transactions,
		Filter:       f,
		Hidden:       vis.Hidden,
		Bundle:       entry.Bundle,
	}
	if aggregate.UsesTopN(req.ChartID) {
		in.TopN = aggregate.TopNForHeight(req.Height)
	}
	if req.ChartID == aggregate.ChartNeedsWants {
		in.Tiers = s.tierOverrides(ctx, req.User)
	}

	out := s.compute(req.ChartID, entry.Version, in)
	resp.Source, resp.Data = out.Source, out.Data
	return resp, nil
}

func (s *Service) rings(entry analytics.Entry, hidden visibility.Set, selected []string, f period.Filter) []budget.RingDatum {
	limits := entry.RingLimits
	if limits == nil {
		limits = budget.Limits{}
	}
	return budget.ComputeRings(visibility.Filter(entry.Transactions, hidden), selected, limits, f)
}

// compute returns the memoized output for identical inputs: the same cache
// entry version, chart, hidden set, series count and tier overrides.
// Uncached entries carry version zero and are computed every time.
func (s *Service) compute(chartID string, version uint64, in aggregate.Input) aggregate.Output {
	fn, _ := aggregate.Lookup(chartID)
	if version == 0 {
		return fn(in)
	}
	key := memoKey(chartID, version, in)
	if out, ok := s.memo.Get(key); ok {
		return out
	}
	out := fn(in)
	s.memo.Set(key, out)
	return out
}

func memoKey(chartID string, version uint64, in aggregate.Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%s|%s|%d|%s", version, chartID, in.Filter.ID, in.TopN, strings.Join(in.Hidden.Keys(), "\x1f"))
	if len(in.Tiers) > 0 {
		keys := make([]string, 0, len(in.Tiers))
		for k, t := range in.Tiers {
			keys = append(keys, k+"="+string(t))
		}
		sort.Strings(keys)
		b.WriteString("|")
		b.WriteString(strings.Join(keys, "\x1f"))
	}
	return b.String()
}

// entryCategories lists legend categories from the transactions, falling
// back to the bundle's category breakdown.
func entryCategories(e analytics.Entry) []string {
	cats := visibility.Categories(e.Transactions)
	if e.Bundle != nil {
		for _, c := range e.Bundle.CategorySpending {
			cats = append(cats, c.Category)
		}
	}
	return cats
}

func (s *Service) tierOverrides(ctx context.Context, userID string) aggregate.TierOverrides {
	stored, err := s.prefs.TierOverrides(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "Tier overrides unavailable, using keyword tiers",
			log.FieldUserID, userID,
			log.FieldError, err)
		return nil
	}
	out := make(aggregate.TierOverrides, len(stored))
	for key, o := range stored {
		if t, err := aggregate.ParseTier(o.Tier); err == nil {
			out[key] = t
		}
	}
	return out
}

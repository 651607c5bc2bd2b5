package analytics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"finboard/internal/aggregate"
	"finboard/internal/budget"
	"finboard/internal/cache"
	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/period"

	"golang.org/x/sync/errgroup"
)

// TransactionSource fetches the raw data behind a dashboard.
type TransactionSource interface {
	Transactions(ctx context.Context, userID string, f period.Filter) ([]core.Transaction, error)
	Bundle(ctx context.Context, userID string, f period.Filter) (*aggregate.Bundle, error)
}

// LimitSource resolves budget limits for a filter.
type LimitSource interface {
	Limits(ctx context.Context, userID, filterID string) (budget.Limits, error)
}

// Config tunes a Loader.
type Config struct {
	TTL            time.Duration
	Retention      time.Duration
	MaxEntries     int
	RefreshTimeout time.Duration
	Now            func() time.Time
}

// Loader serves cached entries: fresh ones directly, stale ones immediately
// while a background fetch replaces them, missing ones after a fetch.
// Concurrent fetches for the same key are not coalesced.
type Loader struct {
	source  TransactionSource
	limits  LimitSource
	entries *cache.LRUCache[Entry]
	cfg     Config
	logger  *log.Logger

	version atomic.Uint64
	mu      sync.Mutex
	gen     map[string]uint64
	wg      sync.WaitGroup
}

func NewLoader(source TransactionSource, limits LimitSource, cfg Config, logger *log.Logger) *Loader {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Retention < cfg.TTL {
		cfg.Retention = 12 * cfg.TTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 256
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Loader{
		source:  source,
		limits:  limits,
		entries: cache.NewLRUCache[Entry](cfg.MaxEntries, cfg.Retention, cache.WithClock(cfg.Now)),
		cfg:     cfg,
		logger:  logger.WithComponent(log.ComponentCache),
		gen:     make(map[string]uint64),
	}
}

// Cache exposes the underlying cache for the sweep manager.
func (l *Loader) Cache() cache.Cleaner {
	return l.entries
}

// Load returns the entry for (user, filter). It never fails: a fetch error
// yields an empty Degraded entry carrying Err.
func (l *Loader) Load(ctx context.Context, userID, filterID string) Entry {
	key := Key(userID, filterID)
	if e, ok := l.entries.Get(key); ok {
		if IsFresh(e, l.cfg.Now(), l.cfg.TTL) {
			return e
		}
		l.refresh(ctx, userID, filterID)
		return e
	}
	return l.fetch(ctx, userID, filterID)
}

func (l *Loader) refresh(ctx context.Context, userID, filterID string) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.RefreshTimeout)
		defer cancel()
		l.logger.DebugContext(rctx, "Refreshing stale analytics entry",
			log.FieldUserID, userID, log.FieldFilter, filterID)
		l.fetch(rctx, userID, filterID)
	}()
}

// fetch loads transactions, limits and the bundle concurrently. Only a
// complete result is cached, and only if the user was not invalidated while
// the fetch ran.
func (l *Loader) fetch(ctx context.Context, userID, filterID string) Entry {
	gen := l.generation(userID)
	f := period.Resolve(filterID, l.cfg.Now())

	var (
		txs    []core.Transaction
		limits budget.Limits
		bundle *aggregate.Bundle
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if txs, err = l.source.Transactions(gctx, userID, f); err != nil {
			return fmt.Errorf("transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if limits, err = l.limits.Limits(gctx, userID, filterID); err != nil {
			return fmt.Errorf("budgets: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		b, err := l.source.Bundle(gctx, userID, f)
		if err != nil {
			l.logger.DebugContext(gctx, "Analytics bundle unavailable, aggregating locally",
				log.FieldUserID, userID, log.FieldFilter, filterID, log.FieldError, err)
			return nil
		}
		bundle = b
		return nil
	})
	if err := g.Wait(); err != nil {
		l.logger.WarnContext(ctx, "Analytics fetch failed, serving empty data",
			log.FieldUserID, userID, log.FieldFilter, filterID, log.FieldError, err)
		return emptyEntry(l.cfg.Now(), err)
	}

	if txs == nil {
		txs = []core.Transaction{}
	}
	if limits == nil {
		limits = budget.Limits{}
	}
	e := Entry{
		Transactions: txs,
		RingLimits:   limits,
		Bundle:       bundle,
		FetchedAt:    l.cfg.Now(),
		Version:      l.version.Add(1),
	}
	if l.generation(userID) == gen {
		l.entries.Set(Key(userID, filterID), e)
	}
	return e
}

func (l *Loader) generation(userID string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen[userID]
}

// InvalidateUser drops every cached entry for the user. Fetches already in
// flight for the user will not be cached.
func (l *Loader) InvalidateUser(userID string) int {
	l.mu.Lock()
	l.gen[userID]++
	l.mu.Unlock()

	prefix := Key(userID, "")
	n := l.entries.DeleteFunc(func(k string) bool { return strings.HasPrefix(k, prefix) })
	l.logger.Info("Analytics cache invalidated", log.FieldUserID, userID, log.FieldCount, n)
	return n
}

// Status describes one cached entry.
type Status struct {
	Filter       string    `json:"filter"`
	FetchedAt    time.Time `json:"fetchedAt"`
	Fresh        bool      `json:"fresh"`
	Transactions int       `json:"transactions"`
	HasBundle    bool      `json:"hasBundle"`
}

// Status lists the user's cached entries by filter.
func (l *Loader) Status(userID string) []Status {
	now := l.cfg.Now()
	out := make([]Status, 0)
	for key, e := range l.entries.Snapshot() {
		user, filter := SplitKey(key)
		if user != userID {
			continue
		}
		out = append(out, Status{
			Filter:       filter,
			FetchedAt:    e.FetchedAt,
			Fresh:        IsFresh(e, now, l.cfg.TTL),
			Transactions: len(e.Transactions),
			HasBundle:    e.Bundle != nil,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filter < out[j].Filter })
	return out
}

// Wait blocks until background refreshes finish.
func (l *Loader) Wait() {
	l.wg.Wait()
}

package http

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"finboard/internal/analytics"
	"finboard/internal/budget"
	"finboard/internal/dashboard"
	"finboard/internal/layout"
	"finboard/internal/log"
	"finboard/internal/middleware/ratelimit"
	"finboard/internal/middleware/security"
	"finboard/internal/middleware/trace"
	"finboard/internal/storage"
	"finboard/internal/upstream"
	"finboard/internal/visibility"

	"github.com/shopspring/decimal"
)

// Dashboard is the orchestration the handlers call into.
type Dashboard interface {
	Chart(ctx context.Context, req dashboard.ChartRequest) (dashboard.ChartResponse, error)
	ParseStatement(ctx context.Context, userID, filename string, file io.Reader, progress upstream.ProgressFunc) (upstream.ParsedStatement, []dashboard.Notification, error)
	Import(ctx context.Context, userID string, in upstream.ImportRequest) (dashboard.ImportOutcome, error)
	SaveLimit(ctx context.Context, userID, filterID, category string, limit decimal.Decimal) (budget.SaveResult, error)
	Resync(ctx context.Context, userID string) (budget.ResyncResult, error)
	Unsynced(ctx context.Context, userID string) ([]storage.RingLimit, error)
	Limits(ctx context.Context, userID, filterID string) (budget.Limits, bool)
	Visibility(ctx context.Context, userID, scope, chartID, filterID string) (visibility.Result, error)
	SetVisibility(ctx context.Context, userID, scope, chartID string, hidden []string) ([]string, error)
	Categories(ctx context.Context, userID string) ([]string, error)
	Tiers(ctx context.Context, userID string) ([]dashboard.TierAssignment, error)
	SetTiers(ctx context.Context, userID string, in []dashboard.TierAssignment) error
	Invalidate(userID string) int
}

// LayoutStore persists per-page chart layouts.
type LayoutStore interface {
	Get(ctx context.Context, userID, scope string) (layout.State, error)
	Save(ctx context.Context, userID, scope string, st layout.State) (layout.State, error)
}

// CacheInspector reports a user's cached analytics entries.
type CacheInspector interface {
	Status(userID string) []analytics.Status
}

// Deps are the collaborators behind the API.
type Deps struct {
	Dashboard Dashboard
	Layouts   LayoutStore
	Cache     CacheInspector
	// Ready reports whether dependencies can serve traffic; nil means
	// always ready.
	Ready func(ctx context.Context) error
}

// Options tune the transport.
type Options struct {
	RateLimitPerMinute int
	Logger             *log.Logger
}

type Server struct {
	http.Server
	deps     Deps
	logger   *log.Logger
	sl       *log.StructuredLogger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	detector := security.NewDetector(logger)
	s := &Server{
		deps:     deps,
		logger:   logger.WithComponent(log.ComponentHTTP),
		sl:       log.NewStructuredLogger(logger),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}, logger),
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP, logger),
		started:  time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/charts", s.handleListCharts)
	mux.HandleFunc("GET /api/charts/{chart}", s.handleChart)

	mux.HandleFunc("GET /api/visibility/{scope}/{chart}", s.handleGetVisibility)
	mux.HandleFunc("PUT /api/visibility/{scope}/{chart}", s.handlePutVisibility)
	mux.HandleFunc("GET /api/categories", s.handleListCategories)

	mux.HandleFunc("GET /api/budgets", s.handleGetBudgets)
	mux.HandleFunc("POST /api/budgets", s.handleSaveBudget)
	mux.HandleFunc("POST /api/budgets/resync", s.handleResyncBudgets)
	mux.HandleFunc("GET /api/budgets/unsynced", s.handleUnsyncedBudgets)

	mux.HandleFunc("GET /api/layout/{scope}", s.handleGetLayout)
	mux.HandleFunc("PUT /api/layout/{scope}", s.handlePutLayout)

	mux.HandleFunc("GET /api/tiers", s.handleGetTiers)
	mux.HandleFunc("PUT /api/tiers", s.handlePutTiers)

	mux.HandleFunc("POST /api/statements/parse", s.handleParseStatement)
	mux.HandleFunc("POST /api/statements/import", s.handleImportStatement)

	mux.HandleFunc("GET /api/cache/status", s.handleCacheStatus)
	mux.HandleFunc("POST /api/cache/invalidate", s.handleCacheInvalidate)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(detector.ExtractClientIP, ratelimit.MutatingOnly, func(w http.ResponseWriter, _ *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
	})

	var handler http.Handler = mux
	handler = limit(handler)
	handler = headers.Middleware(handler)
	handler = detector.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops background routines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// user resolves the caller or writes a 400.
func (s *Server) user(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := ParseUserID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return "", false
	}
	return id, true
}

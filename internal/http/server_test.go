package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"finboard/internal/analytics"
	"finboard/internal/backend"
	"finboard/internal/budget"
	"finboard/internal/dashboard"
	"finboard/internal/layout"
	"finboard/internal/sheets"
	"finboard/internal/storage"
	"finboard/internal/upstream"
	"finboard/internal/visibility"

	"github.com/shopspring/decimal"
)

type savedLimit struct {
	user, filter, category string
	limit                  decimal.Decimal
}

type fakeDashboard struct {
	categories    []string
	categoriesErr error
	chart      dashboard.ChartResponse
	chartErr   error
	lastChart  dashboard.ChartRequest
	parsed     upstream.ParsedStatement
	parseErr   error
	parsedFile string
	importErr  error
	saveRes    budget.SaveResult
	saveErr    error
	saved      []savedLimit
	limits     budget.Limits
	degraded   bool
	tiersErr   error
	tiers      []dashboard.TierAssignment
	invalidate int
}

func (f *fakeDashboard) Chart(_ context.Context, req dashboard.ChartRequest) (dashboard.ChartResponse, error) {
	f.lastChart = req
	return f.chart, f.chartErr
}

func (f *fakeDashboard) ParseStatement(_ context.Context, _, filename string, file io.Reader, progress upstream.ProgressFunc) (upstream.ParsedStatement, []dashboard.Notification, error) {
	b, _ := io.ReadAll(file)
	f.parsedFile = filename + ":" + string(b)
	if progress != nil {
		progress(100)
	}
	if f.parseErr != nil {
		return upstream.ParsedStatement{}, nil, f.parseErr
	}
	return f.parsed, nil, nil
}

func (f *fakeDashboard) Import(_ context.Context, _ string, in upstream.ImportRequest) (dashboard.ImportOutcome, error) {
	if f.importErr != nil {
		return dashboard.ImportOutcome{}, f.importErr
	}
	return dashboard.ImportOutcome{
		Result:        upstream.ImportResult{Inserted: strings.Count(in.CSV, "\n")},
		Notifications: []dashboard.Notification{{Level: dashboard.LevelSuccess, Message: "Imported"}},
	}, nil
}

func (f *fakeDashboard) SaveLimit(_ context.Context, user, filter, category string, limit decimal.Decimal) (budget.SaveResult, error) {
	f.saved = append(f.saved, savedLimit{user, filter, category, limit})
	if f.saveErr != nil {
		return budget.SaveResult{}, f.saveErr
	}
	res := f.saveRes
	res.Category, res.Limit = category, limit
	return res, nil
}

func (f *fakeDashboard) Resync(context.Context, string) (budget.ResyncResult, error) {
	return budget.ResyncResult{Attempted: 2, Synced: 1}, nil
}

func (f *fakeDashboard) Unsynced(context.Context, string) ([]storage.RingLimit, error) {
	return []storage.RingLimit{{FilterID: "ytd", Category: "Groceries", Limit: decimal.NewFromInt(300)}}, nil
}

func (f *fakeDashboard) Limits(context.Context, string, string) (budget.Limits, bool) {
	return f.limits, f.degraded
}

func (f *fakeDashboard) Categories(context.Context, string) ([]string, error) {
	return f.categories, f.categoriesErr
}

func (f *fakeDashboard) Visibility(_ context.Context, _, scope, chartID, _ string) (visibility.Result, error) {
	return visibility.Result{Scope: scope, ChartID: chartID}, nil
}

func (f *fakeDashboard) SetVisibility(_ context.Context, _, _, chartID string, hidden []string) ([]string, error) {
	if !dashboard.KnownChart(chartID) {
		return nil, dashboard.ErrUnknownChart
	}
	return hidden, nil
}

func (f *fakeDashboard) Tiers(context.Context, string) ([]dashboard.TierAssignment, error) {
	return f.tiers, nil
}

func (f *fakeDashboard) SetTiers(_ context.Context, _ string, in []dashboard.TierAssignment) error {
	if f.tiersErr != nil {
		return f.tiersErr
	}
	f.tiers = in
	return nil
}

func (f *fakeDashboard) Invalidate(string) int { return f.invalidate }

type fakeLayouts struct {
	getErr error
	saved  layout.State
}

func (f *fakeLayouts) Get(context.Context, string, string) (layout.State, error) {
	return f.saved, f.getErr
}

func (f *fakeLayouts) Save(_ context.Context, _, _ string, st layout.State) (layout.State, error) {
	if err := layout.Validate(st); err != nil {
		return layout.State{}, err
	}
	f.saved = st
	return st, nil
}

type fakeCache struct{}

func (fakeCache) Status(string) []analytics.Status { return nil }

type decoded struct {
	Data          json.RawMessage          `json:"data"`
	Error         string                   `json:"error"`
	Notifications []dashboard.Notification `json:"notifications"`
}

func newTestServer(t *testing.T, d *fakeDashboard, opts Options) *Server {
	t.Helper()
	s := NewServer(":0", Deps{Dashboard: d, Layouts: &fakeLayouts{}, Cache: fakeCache{}}, opts)
	t.Cleanup(func() { s.limiter.Stop() })
	return s
}

func do(t *testing.T, s *Server, method, target, body string, header map[string]string) (*httptest.ResponseRecorder, decoded) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)
	var out decoded
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, target, err, rr.Body.String())
		}
	}
	return rr, out
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t, &fakeDashboard{}, Options{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rr, _ := do(t, s, http.MethodGet, path, "", nil)
		if rr.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rr.Code)
		}
	}

	s.deps.Ready = func(context.Context) error { return errors.New("db closed") }
	rr, _ := do(t, s, http.MethodGet, "/readyz", "", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with failing storage = %d, want 503", rr.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t, &fakeDashboard{}, Options{})
	rr, _ := do(t, s, http.MethodGet, "/healthz", "", map[string]string{"X-Request-ID": "abc"})
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rr.Header().Get("X-Request-ID"); got != "abc" {
		t.Errorf("X-Request-ID = %q, want abc", got)
	}
}

func TestChartEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		chart      dashboard.ChartResponse
		err        error
		header     map[string]string
		wantStatus int
		wantNotes  int
	}{
		{
			name:       "ok",
			target:     "/api/charts/treemap?filter=ytd&h=400&categories=A,B",
			chart:      dashboard.ChartResponse{Chart: "treemap", Filter: "ytd"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown chart",
			target:     "/api/charts/nope",
			err:        fmt.Errorf("%w: nope", dashboard.ErrUnknownChart),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "failure is degraded not 5xx",
			target:     "/api/charts/treemap",
			err:        errors.New("boom"),
			wantStatus: http.StatusOK,
			wantNotes:  1,
		},
		{
			name:       "degraded response keeps its notes",
			target:     "/api/charts/treemap",
			chart:      dashboard.ChartResponse{Chart: "treemap", Degraded: true, Notifications: []dashboard.Notification{{Level: dashboard.LevelError, Message: dashboard.NetworkErrorMessage}}},
			wantStatus: http.StatusOK,
			wantNotes:  1,
		},
		{
			name:       "bad scope",
			target:     "/api/charts/treemap?scope=settings",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad user",
			target:     "/api/charts/treemap",
			header:     map[string]string{UserIDHeader: "a|b"},
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDashboard{chart: tt.chart, chartErr: tt.err}
			s := newTestServer(t, d, Options{})
			rr, body := do(t, s, http.MethodGet, tt.target, "", tt.header)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if len(body.Notifications) != tt.wantNotes {
				t.Errorf("notifications = %v, want %d", body.Notifications, tt.wantNotes)
			}
		})
	}
}

func TestChartParamsForwarded(t *testing.T) {
	d := &fakeDashboard{}
	s := newTestServer(t, d, Options{})
	do(t, s, http.MethodGet, "/api/charts/treemap?filter=ytd&h=400&scope=home&categories=A,B&categories=C", "",
		map[string]string{UserIDHeader: "alice"})

	got := d.lastChart
	if got.User != "alice" || got.Filter != "ytd" || got.Height != 400 || got.Scope != "home" || got.ChartID != "treemap" {
		t.Errorf("Chart() request = %+v", got)
	}
	if strings.Join(got.Selected, ",") != "A,B,C" {
		t.Errorf("Selected = %v, want [A B C]", got.Selected)
	}
}

func TestSaveBudget(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		synced     bool
		wantStatus int
		wantSaved  string
		wantNotes  int
	}{
		{"synced", `{"category":" Groceries ","limit":"1,250.50","filter":"ytd"}`, true, http.StatusOK, "Groceries=1250.5", 1},
		{"numeric limit", `{"category":"Rent","limit":900}`, true, http.StatusOK, "Rent=900", 1},
		{"unsynced is still ok", `{"category":"Rent","limit":"900"}`, false, http.StatusOK, "Rent=900", 0},
		{"non positive", `{"category":"Rent","limit":"0"}`, true, http.StatusUnprocessableEntity, "", 0},
		{"garbage", `{"category":"Rent","limit":"lots"}`, true, http.StatusUnprocessableEntity, "", 0},
		{"no category", `{"limit":"10"}`, true, http.StatusUnprocessableEntity, "", 0},
		{"unknown field", `{"category":"Rent","limit":"10","x":1}`, true, http.StatusBadRequest, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDashboard{saveRes: budget.SaveResult{Synced: tt.synced}}
			s := newTestServer(t, d, Options{})
			rr, body := do(t, s, http.MethodPost, "/api/budgets", tt.body, nil)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.wantSaved == "" {
				if len(d.saved) != 0 {
					t.Errorf("saved = %v, want nothing", d.saved)
				}
				return
			}
			if len(d.saved) != 1 {
				t.Fatalf("saved = %v, want one call", d.saved)
			}
			if got := d.saved[0].category + "=" + d.saved[0].limit.String(); got != tt.wantSaved {
				t.Errorf("saved = %s, want %s", got, tt.wantSaved)
			}
			if len(body.Notifications) != tt.wantNotes {
				t.Errorf("notifications = %v, want %d", body.Notifications, tt.wantNotes)
			}
		})
	}
}

func TestGetBudgetsDegraded(t *testing.T) {
	d := &fakeDashboard{degraded: true}
	s := newTestServer(t, d, Options{})
	rr, body := do(t, s, http.MethodGet, "/api/budgets?filter=ytd", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if len(body.Notifications) != 1 || body.Notifications[0].Message != dashboard.NetworkErrorMessage {
		t.Errorf("notifications = %v, want Network Error", body.Notifications)
	}
	var got budgetsResponse
	if err := json.Unmarshal(body.Data, &got); err != nil {
		t.Fatal(err)
	}
	if !got.Degraded || got.Limits == nil {
		t.Errorf("budgets = %+v, want degraded with empty limits", got)
	}
}

func TestResyncAndUnsynced(t *testing.T) {
	s := newTestServer(t, &fakeDashboard{}, Options{})
	rr, body := do(t, s, http.MethodPost, "/api/budgets/resync", "", nil)
	if rr.Code != http.StatusOK || len(body.Notifications) != 1 {
		t.Errorf("resync = %d %v, want 200 with one toast", rr.Code, body.Notifications)
	}

	_, body = do(t, s, http.MethodGet, "/api/budgets/unsynced", "", nil)
	var pending []unsyncedLimit
	if err := json.Unmarshal(body.Data, &pending); err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Category != "Groceries" {
		t.Errorf("unsynced = %+v", pending)
	}
}

func TestStatementErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid statement", fmt.Errorf("%w: empty", backend.ErrInvalidStatement), http.StatusUnprocessableEntity},
		{"read only backend", sheets.ErrReadOnly, http.StatusConflict},
		{"upstream rejects", &upstream.StatusError{Status: http.StatusBadRequest, Body: "bad csv"}, http.StatusUnprocessableEntity},
		{"upstream down", &upstream.StatusError{Status: http.StatusServiceUnavailable}, http.StatusBadGateway},
		{"network", errors.New("dial tcp: refused"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &fakeDashboard{importErr: tt.err}, Options{})
			rr, body := do(t, s, http.MethodPost, "/api/statements/import", `{"csv":"date,amount\n"}`, nil)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusBadGateway && len(body.Notifications) == 0 {
				t.Errorf("gateway failure has no Network Error toast")
			}
		})
	}
}

func TestImportStatement(t *testing.T) {
	s := newTestServer(t, &fakeDashboard{}, Options{})
	rr, body := do(t, s, http.MethodPost, "/api/statements/import", `{"csv":"a\nb\n","statementMeta":{"fileId":"f1"}}`, nil)
	if rr.Code != http.StatusOK || len(body.Notifications) != 1 {
		t.Fatalf("import = %d %v", rr.Code, body.Notifications)
	}

	rr, _ = do(t, s, http.MethodPost, "/api/statements/import", `{"csv":""}`, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty csv status = %d, want 422", rr.Code)
	}
}

func TestParseStatement(t *testing.T) {
	d := &fakeDashboard{parsed: upstream.ParsedStatement{CSV: "date,amount\n"}}
	s := newTestServer(t, d, Options{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "../../march.pdf")
	fw.Write([]byte("%PDF"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/statements/parse", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	if d.parsedFile != "march.pdf:%PDF" {
		t.Errorf("parsed file = %q, want base name and contents", d.parsedFile)
	}

	rr, _ = do(t, s, http.MethodPost, "/api/statements/parse", "not multipart", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("non multipart status = %d, want 400", rr.Code)
	}
}

func TestVisibilityEndpoints(t *testing.T) {
	s := newTestServer(t, &fakeDashboard{}, Options{})

	rr, _ := do(t, s, http.MethodGet, "/api/visibility/home/treemap", "", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("get status = %d, want 200", rr.Code)
	}
	rr, _ = do(t, s, http.MethodGet, "/api/visibility/settings/treemap", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown scope status = %d, want 404", rr.Code)
	}
	rr, _ = do(t, s, http.MethodPut, "/api/visibility/home/nope", `{"hidden":["A"]}`, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown chart status = %d, want 404", rr.Code)
	}
	rr, _ = do(t, s, http.MethodPut, "/api/visibility/home/treemap", `{"hidden":["A"]}`, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("put status = %d, want 200", rr.Code)
	}
}

func TestCategoriesEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeDashboard{categories: []string{"Food", "Travel"}}, Options{})
	rr, out := do(t, s, http.MethodGet, "/api/categories", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if got := string(out.Data); got != `[{"name":"Food"},{"name":"Travel"}]` {
		t.Errorf("data = %s", got)
	}

	s = newTestServer(t, &fakeDashboard{}, Options{})
	_, out = do(t, s, http.MethodGet, "/api/categories", "", nil)
	if got := string(out.Data); got != `[]` {
		t.Errorf("empty data = %s, want []", got)
	}

	s = newTestServer(t, &fakeDashboard{categoriesErr: errors.New("upstream down")}, Options{})
	rr, _ = do(t, s, http.MethodGet, "/api/categories", "", nil)
	if rr.Code != http.StatusBadGateway {
		t.Errorf("failure status = %d, want 502", rr.Code)
	}
}

func TestLayoutEndpoints(t *testing.T) {
	layouts := &fakeLayouts{getErr: errors.New("disk gone")}
	s := NewServer(":0", Deps{Dashboard: &fakeDashboard{}, Layouts: layouts, Cache: fakeCache{}}, Options{})
	t.Cleanup(func() { s.limiter.Stop() })

	rr, body := do(t, s, http.MethodGet, "/api/layout/home", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rr.Code)
	}
	var st layout.State
	if err := json.Unmarshal(body.Data, &st); err != nil {
		t.Fatal(err)
	}
	if len(st.Order) != len(layout.Default().Order) {
		t.Errorf("fallback layout order = %v, want defaults", st.Order)
	}

	bad, _ := json.Marshal(layout.State{
		SizesVersion: layout.CurrentSizesVersion,
		Charts:       map[string]layout.Entry{"treemap": {W: 0, H: 3}},
	})
	rr, _ = do(t, s, http.MethodPut, "/api/layout/home", string(bad), nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid layout status = %d, want 422", rr.Code)
	}
}

func TestTiersEndpoints(t *testing.T) {
	d := &fakeDashboard{}
	s := newTestServer(t, d, Options{})

	rr, body := do(t, s, http.MethodPut, "/api/tiers", `{"tiers":[{"category":"Gym","tier":"needs"}]}`, nil)
	if rr.Code != http.StatusOK || len(body.Notifications) != 1 {
		t.Fatalf("put = %d %v", rr.Code, body.Notifications)
	}

	d.tiersErr = fmt.Errorf("%w: luxury", dashboard.ErrInvalidTier)
	rr, _ = do(t, s, http.MethodPut, "/api/tiers", `{"tiers":[{"category":"Gym","tier":"luxury"}]}`, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid tier status = %d, want 422", rr.Code)
	}

	d.tiersErr = errors.New("locked")
	rr, _ = do(t, s, http.MethodPut, "/api/tiers", `{"tiers":[]}`, nil)
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("storage failure status = %d, want 500", rr.Code)
	}
}

func TestCacheInvalidate(t *testing.T) {
	s := newTestServer(t, &fakeDashboard{invalidate: 3}, Options{})
	rr, body := do(t, s, http.MethodPost, "/api/cache/invalidate", "", nil)
	if rr.Code != http.StatusOK || !strings.Contains(string(body.Data), `"invalidated":3`) {
		t.Errorf("invalidate = %d %s", rr.Code, body.Data)
	}
}

func TestRateLimitOnlyMutating(t *testing.T) {
	s := newTestServer(t, &fakeDashboard{}, Options{RateLimitPerMinute: 2})

	for i := 0; i < 5; i++ {
		if rr, _ := do(t, s, http.MethodGet, "/api/charts", "", nil); rr.Code != http.StatusOK {
			t.Fatalf("read %d status = %d, want 200", i, rr.Code)
		}
	}
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last, _ = do(t, s, http.MethodPost, "/api/cache/invalidate", "", nil)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Errorf("third write status = %d, want 429", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Errorf("missing Retry-After header")
	}
}

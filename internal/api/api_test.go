package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/shaiso/Escrow/internal/clock"
	"github.com/shaiso/Escrow/internal/cursor"
	"github.com/shaiso/Escrow/internal/domain"
	"github.com/shaiso/Escrow/internal/escrow"
	"github.com/shaiso/Escrow/internal/lock"
	"github.com/shaiso/Escrow/internal/runner"
	"github.com/shaiso/Escrow/internal/telemetry"
)

// 2026-05-20 10:00 UTC
var now = time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	server   *httptest.Server
	cursors  *cursor.MemoryStore
	locks    *lock.Manager
	deposits *escrow.MemoryDeposits
	metrics  *telemetry.Metrics
	clock    *clock.Fake
}

func newFixture(t *testing.T, override TaskRunner) *fixture {
	t.Helper()

	fc := clock.NewFake(now)
	cursors := cursor.NewMemoryStore(fc)
	locks := lock.NewManager(lock.Config{Store: lock.NewMemoryStore(), Clock: fc, Logger: testLogger()})
	deposits := escrow.NewMemoryDeposits()
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())

	catalog, err := escrow.NewCatalog(escrow.DefaultJobs([]string{"example"}))
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	var tasks TaskRunner = escrow.NewService(escrow.ServiceConfig{
		Catalog: catalog,
		Runner: runner.New(runner.Config{
			Locks:   locks,
			Cursors: cursors,
			Clock:   fc,
			Logger:  testLogger(),
		}),
		Deposit: escrow.DepositDeps{
			Dir:       t.TempDir(),
			Deposits:  deposits,
			Snapshots: escrow.StaticSnapshotter{Domains: 10, Contacts: 4, Hosts: 2},
			Clock:     fc,
		},
		Logger: testLogger(),
	})
	if override != nil {
		tasks = override
	}

	h := NewHandler(Config{
		Tasks:      tasks,
		Cursors:    cursors,
		Locks:      locks,
		Deposits:   deposits,
		Clock:      fc,
		Metrics:    metrics,
		RetryAfter: 90 * time.Second,
		Logger:     testLogger(),
	})

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &fixture{server: srv, cursors: cursors, locks: locks, deposits: deposits, metrics: metrics, clock: fc}
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

// --- RunTask ---

func TestRunTask_SuccessThenAlreadyDone(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.do(t, http.MethodPost, "/api/v1/escrow/rde/run?tld=example", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decode[struct{ Data RunResponse }](t, resp)
	if body.Data.Outcome != "SUCCESS" || !body.Data.NextWatermark.Equal(clock.StartOfDay(now).Add(24*time.Hour)) {
		t.Errorf("unexpected run response %+v", body.Data)
	}

	resp = f.do(t, http.MethodPost, "/api/v1/escrow/rde/run?tld=example", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("second trigger: expected 204, got %d", resp.StatusCode)
	}

	if got := testutil.ToFloat64(f.metrics.HTTPRequests.WithLabelValues("POST", "204")); got != 1 {
		t.Errorf("expected one 204 recorded, got %v", got)
	}
}

func TestRunTask_NormalizesTLD(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.do(t, http.MethodPost, "/api/v1/escrow/rde/run?tld=%20EXAMPLE%20", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for mixed-case tld, got %d", resp.StatusCode)
	}

	// Та же TLD в нижнем регистре уже продвинута.
	resp = f.do(t, http.MethodPost, "/api/v1/escrow/rde/run?tld=example", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204 after run under upper-case tld, got %d", resp.StatusCode)
	}

	body := decode[struct{ Data CursorResponse }](t, f.do(t, http.MethodGet, "/api/v1/cursors/EXAMPLE/rde_staging", ""))
	if !body.Data.Persisted || !body.Data.Watermark.Equal(clock.StartOfDay(now).Add(24*time.Hour)) {
		t.Errorf("unexpected cursor after normalized run %+v", body.Data)
	}
}

func TestNormalizeTLD(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"example", "example"},
		{"EXAMPLE", "example"},
		{"  Ex.Ample ", "ex.ample"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeTLD(tt.in); got != tt.want {
			t.Errorf("normalizeTLD(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRunTask_LockBusy(t *testing.T) {
	f := newFixture(t, nil)

	if _, err := f.locks.Acquire(context.Background(), []string{"rde example"}, "example", time.Hour); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	resp := f.do(t, http.MethodPost, "/api/v1/escrow/rde/run?tld=example", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Retry-After"); got != "90" {
		t.Errorf("expected Retry-After 90, got %q", got)
	}
	body := decode[ErrorResponse](t, resp)
	if body.Error.Code != ErrCodeLockBusy {
		t.Errorf("unexpected error code %q", body.Error.Code)
	}
}

type stubTasks struct {
	res runner.Result
	err error
}

func (s stubTasks) Run(context.Context, string, string) (runner.Result, error) { return s.res, s.err }
func (s stubTasks) Catalog() *escrow.Catalog                                   { return nil }

func TestRunTask_ErrorMapping(t *testing.T) {
	taskErr := &runner.TaskError{Task: "rde", Scope: "example", Err: errors.New("disk full")}

	tests := []struct {
		name   string
		tasks  stubTasks
		path   string
		status int
		code   ErrorCode
	}{
		{"task failure", stubTasks{res: runner.Result{Outcome: domain.OutcomeTaskFailure}, err: taskErr}, "/api/v1/escrow/rde/run?tld=example", http.StatusInternalServerError, ErrCodeTaskFailure},
		{"store failure", stubTasks{err: errors.New("connection refused")}, "/api/v1/escrow/rde/run?tld=example", http.StatusInternalServerError, ErrCodeInternalError},
		{"unknown job", stubTasks{err: escrow.ErrUnknownJob}, "/api/v1/escrow/icann/run?tld=example", http.StatusNotFound, ErrCodeNotFound},
		{"missing tld", stubTasks{}, "/api/v1/escrow/rde/run", http.StatusBadRequest, ErrCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.tasks)
			resp := f.do(t, http.MethodPost, tt.path, "")
			if resp.StatusCode != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, resp.StatusCode)
			}
			if body := decode[ErrorResponse](t, resp); body.Error.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, body.Error.Code)
			}
		})
	}
}

func TestRunTask_UnknownTLD(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.do(t, http.MethodPost, "/api/v1/escrow/rde/run?tld=other", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

// --- Catalog & deposits ---

func TestListJobs(t *testing.T) {
	f := newFixture(t, nil)

	body := decode[struct{ Data []JobResponse }](t, f.do(t, http.MethodGet, "/api/v1/escrow", ""))
	if len(body.Data) != 2 || body.Data[0].Name != "brda" || body.Data[1].Interval != "24h0m0s" {
		t.Errorf("unexpected catalog %+v", body.Data)
	}
}

func TestListDeposits(t *testing.T) {
	f := newFixture(t, nil)
	f.do(t, http.MethodPost, "/api/v1/escrow/rde/run?tld=example", "")
	f.do(t, http.MethodPost, "/api/v1/escrow/brda/run?tld=example", "")

	body := decode[struct{ Data []DepositResponse }](t, f.do(t, http.MethodGet, "/api/v1/deposits?tld=example", ""))
	if len(body.Data) != 2 {
		t.Fatalf("expected 2 deposits, got %+v", body.Data)
	}
	for _, d := range body.Data {
		switch d.Mode {
		case "FULL":
			if d.FileName != "example_2026-05-20_full_S1_R0.xml" || d.Contacts != 4 {
				t.Errorf("unexpected full deposit %+v", d)
			}
		case "THIN":
			if d.Contacts != 0 || d.Domains != 10 {
				t.Errorf("thin deposit should count domains only, got %+v", d)
			}
		}
	}

	if resp := f.do(t, http.MethodGet, "/api/v1/deposits?limit=zero", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", resp.StatusCode)
	}
}

// --- Cursors ---

func TestGetCursor_AbsentShowsDefault(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.do(t, http.MethodGet, "/api/v1/cursors/example/rde_staging", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decode[struct{ Data CursorResponse }](t, resp)
	if body.Data.Persisted || !body.Data.Due || !body.Data.Watermark.Equal(clock.StartOfDay(now)) {
		t.Errorf("unexpected default cursor %+v", body.Data)
	}

	if resp := f.do(t, http.MethodGet, "/api/v1/cursors/example/NOPE", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown cursor type, got %d", resp.StatusCode)
	}
}

func TestResetCursor_RewindsAndReruns(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	today := clock.StartOfDay(now)

	f.do(t, http.MethodPost, "/api/v1/escrow/rde/run?tld=example", "")

	resp := f.do(t, http.MethodPut, "/api/v1/cursors/example/RDE_STAGING", `{"watermark":"2026-05-19T00:00:00Z"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	w, _, _ := f.cursors.Load(ctx, "example", domain.CursorRDEStaging)
	if !w.Equal(today.Add(-24 * time.Hour)) {
		t.Fatalf("cursor not rewound, got %v", w)
	}

	// Два вызова: вчера и сегодня (ревизия 1, файл не перезаписывается).
	f.do(t, http.MethodPost, "/api/v1/escrow/rde/run?tld=example", "")
	f.do(t, http.MethodPost, "/api/v1/escrow/rde/run?tld=example", "")

	list, _ := f.deposits.List(ctx, "example", 0)
	if len(list) != 3 {
		t.Fatalf("expected 3 deposits, got %d", len(list))
	}
	if list[0].Revision != 1 || !list[0].Watermark.Equal(today) {
		t.Errorf("rerun of today should be revision 1, got %+v", list[0])
	}

	body := decode[struct{ Data []CursorResponse }](t, f.do(t, http.MethodGet, "/api/v1/cursors", ""))
	if len(body.Data) != 1 || body.Data[0].Due {
		t.Errorf("unexpected cursors %+v", body.Data)
	}
}

func TestResetCursor_BadBody(t *testing.T) {
	f := newFixture(t, nil)

	for _, body := range []string{"", "{", `{"watermark":""}`, `{}`} {
		if resp := f.do(t, http.MethodPut, "/api/v1/cursors/example/BRDA", body); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, resp.StatusCode)
		}
	}
}

// --- Locks ---

func TestListLocks_MarksExpired(t *testing.T) {
	f := newFixture(t, nil)

	if _, err := f.locks.Acquire(context.Background(), []string{"brda example"}, "example", time.Minute); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	body := decode[struct{ Data []LockResponse }](t, f.do(t, http.MethodGet, "/api/v1/locks", ""))
	if len(body.Data) != 1 || body.Data[0].Expired {
		t.Fatalf("expected one live lock, got %+v", body.Data)
	}

	f.clock.Advance(time.Minute)
	body = decode[struct{ Data []LockResponse }](t, f.do(t, http.MethodGet, "/api/v1/locks", ""))
	if !body.Data[0].Expired {
		t.Errorf("lock should be reported expired after lease")
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(testLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

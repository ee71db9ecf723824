package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/Escrow/internal/clock"
	"github.com/shaiso/Escrow/internal/config"
	"github.com/shaiso/Escrow/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func memoryConfig(t *testing.T) *config.Config {
	return &config.Config{
		StoreDriver: config.DriverMemory,
		LockBackend: config.LockBackendStore,
		DepositDir:  t.TempDir(),
		TLDs:        []string{"example"},
	}
}

func TestOpenStores_UnknownDriver(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.StoreDriver = "mongodb"

	_, err := OpenStores(context.Background(), cfg, nil, nil, testLogger())
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestNewService_MemoryRunsDeposit(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig(t)
	fc := clock.NewFake(time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC))

	stores, err := OpenStores(ctx, cfg, fc, nil, testLogger())
	if err != nil {
		t.Fatalf("OpenStores: %v", err)
	}
	defer stores.Close()

	if stores.Pool != nil {
		t.Error("memory driver must not open a pool")
	}
	if len(stores.Checks()) != 0 {
		t.Errorf("memory driver has nothing to check, got %d checks", len(stores.Checks()))
	}

	svc, err := NewService(cfg, stores, ServiceDeps{Clock: fc, Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	res, err := svc.Run(ctx, "rde", "example")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Outcome != domain.OutcomeSuccess {
		t.Errorf("expected SUCCESS, got %s", res.Outcome)
	}

	res, err = svc.Run(ctx, "rde", "example")
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if res.Outcome != domain.OutcomeAlreadyDone {
		t.Errorf("expected ALREADY_DONE on second run, got %s", res.Outcome)
	}

	deposits, err := stores.Deposits.List(ctx, "example", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(deposits) != 1 {
		t.Errorf("expected 1 deposit, got %d", len(deposits))
	}
}

func TestHealthHandler(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name   string
		checks []HealthCheck
		status int
	}{
		{"no checks", nil, http.StatusOK},
		{"all ok", []HealthCheck{ok, nil, ok}, http.StatusOK},
		{"one down", []HealthCheck{ok, down}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HealthHandler(tt.checks...)(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
			if tt.status != http.StatusOK && !strings.Contains(rec.Body.String(), "connection refused") {
				t.Errorf("body should carry the failure, got %q", rec.Body.String())
			}
		})
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, 0, http.NewServeMux(), testLogger())
	}()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/Escrow/internal/clock"
	"github.com/shaiso/Escrow/internal/cursor"
	"github.com/shaiso/Escrow/internal/domain"
	"github.com/shaiso/Escrow/internal/escrow"
	"github.com/shaiso/Escrow/internal/runner"
	"github.com/shaiso/Escrow/internal/telemetry"
)

// defaultRetryAfter — значение Retry-After для ответа 503 при LOCK_BUSY.
const defaultRetryAfter = time.Minute

// TaskRunner запускает задачи каталога. Реализуется *escrow.Service.
type TaskRunner interface {
	Run(ctx context.Context, job, tld string) (runner.Result, error)
	Catalog() *escrow.Catalog
}

// CursorAdmin — чтение курсоров и административный сброс.
type CursorAdmin interface {
	cursor.Store
	cursor.Resetter
}

// LockLister — просмотр блокировок. Реализуется *lock.Manager.
type LockLister interface {
	List(ctx context.Context) ([]domain.Lock, error)
}

// DepositLister — просмотр записанных депозитов.
type DepositLister interface {
	List(ctx context.Context, tld string, limit int) ([]domain.Deposit, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	tasks      TaskRunner
	cursors    CursorAdmin
	locks      LockLister
	deposits   DepositLister
	clock      clock.Clock
	metrics    *telemetry.Metrics
	retryAfter time.Duration
	logger     *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Tasks    TaskRunner
	Cursors  CursorAdmin
	Locks    LockLister
	Deposits DepositLister

	Clock      clock.Clock        // default: clock.System{}
	Metrics    *telemetry.Metrics // опционально
	RetryAfter time.Duration      // default: 1m
	Logger     *slog.Logger       // default: slog.Default()
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	c := cfg.Clock
	if c == nil {
		c = clock.System{}
	}
	retryAfter := cfg.RetryAfter
	if retryAfter <= 0 {
		retryAfter = defaultRetryAfter
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		tasks:      cfg.Tasks,
		cursors:    cfg.Cursors,
		locks:      cfg.Locks,
		deposits:   cfg.Deposits,
		clock:      c,
		metrics:    cfg.Metrics,
		retryAfter: retryAfter,
		logger:     logger,
	}
}

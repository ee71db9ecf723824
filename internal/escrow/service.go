package escrow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/Escrow/internal/runner"
	"github.com/shaiso/Escrow/internal/telemetry"
)

// Service запускает задачи каталога через runner.
type Service struct {
	catalog *Catalog
	runner  *runner.Runner
	deps    DepositDeps
	logger  *slog.Logger
}

// ServiceConfig — конфигурация Service.
type ServiceConfig struct {
	Catalog *Catalog
	Runner  *runner.Runner
	Deposit DepositDeps
	Logger  *slog.Logger // default: slog.Default()
}

// NewService создаёт Service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	deps := cfg.Deposit
	if deps.Logger == nil {
		deps.Logger = logger
	}
	return &Service{
		catalog: cfg.Catalog,
		runner:  cfg.Runner,
		deps:    deps,
		logger:  logger,
	}
}

// Catalog возвращает каталог задач.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// Run выполняет задачу jobName для зоны tld по паттерну Locking Rolling Cursor.
// Ошибки ErrUnknownJob и ErrUnknownTLD возвращаются до обращения к хранилищу.
func (s *Service) Run(ctx context.Context, jobName, tld string) (runner.Result, error) {
	job, err := s.catalog.Lookup(jobName)
	if err != nil {
		return runner.Result{}, err
	}
	if !job.HasTLD(tld) {
		return runner.Result{}, fmt.Errorf("%w: %s/%s", ErrUnknownTLD, jobName, tld)
	}

	// Логгер вызывающего (запрос API, триггер) дополняется задачей и зоной
	// и дальше передаётся через ctx: runner и задача пишут в него.
	base, ok := telemetry.LoggerFromContext(ctx)
	if !ok {
		base = s.logger
	}
	ctx = telemetry.WithLogger(ctx, telemetry.WithTask(telemetry.WithTLD(base, tld), job.Name))

	task := NewDepositTask(job, tld, s.deps)
	return s.runner.RunWithCursorAdvance(ctx, task, tld, job.Timeout, job.CursorType, job.Interval)
}

package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shaiso/Escrow/internal/clock"
	"github.com/shaiso/Escrow/internal/cursor"
	"github.com/shaiso/Escrow/internal/domain"
	"github.com/shaiso/Escrow/internal/lock"
	"github.com/shaiso/Escrow/internal/telemetry"
)

const tracerName = "github.com/shaiso/Escrow/internal/runner"

// Publisher публикует события о результатах вызовов.
type Publisher interface {
	PublishEvent(ctx context.Context, ev domain.Event) error
}

// Result — результат одного вызова runner.
type Result struct {
	// Outcome — исход. Пустой, если вызов упал на инфраструктуре
	// (хранилище недоступно) до того, как исход определился.
	Outcome domain.Outcome

	// Watermark — значение курсора, с которым принималось решение.
	Watermark time.Time

	// NextWatermark — новое значение курсора (только для SUCCESS).
	NextWatermark time.Time

	// Duration — длительность тела задачи (только для SUCCESS).
	Duration time.Duration
}

// Runner — исполнитель задач по паттерну Locking Rolling Cursor.
type Runner struct {
	locks     *lock.Manager
	cursors   cursor.Store
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	publisher Publisher
	tracer    trace.Tracer
}

// Config — конфигурация Runner.
type Config struct {
	Locks     *lock.Manager
	Cursors   cursor.Store
	Clock     clock.Clock        // default: clock.System{}
	Logger    *slog.Logger       // default: slog.Default()
	Metrics   *telemetry.Metrics // опционально
	Publisher Publisher          // опционально
}

// New создаёт Runner.
func New(cfg Config) *Runner {
	c := cfg.Clock
	if c == nil {
		c = clock.System{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		locks:     cfg.Locks,
		cursors:   cfg.Cursors,
		clock:     c,
		logger:    logger,
		metrics:   cfg.Metrics,
		publisher: cfg.Publisher,
		tracer:    otel.Tracer(tracerName),
	}
}

// Due проверяет, пора ли запускать задачу для (scope, cursorType).
// Возвращает watermark периода или ErrNotDue.
func (r *Runner) Due(ctx context.Context, scope string, cursorType domain.CursorType) (time.Time, error) {
	now := r.clock.Now()
	startOfToday := clock.StartOfDay(now)

	watermark, err := cursor.LoadOrDefault(ctx, r.cursors, scope, cursorType, now)
	if err != nil {
		return time.Time{}, err
	}

	c := domain.Cursor{Scope: scope, Type: cursorType, Watermark: watermark}
	r.metrics.SetCursorLag(scope, cursorType, c.Lag(startOfToday))

	if !c.IsDue(startOfToday) {
		return watermark, ErrNotDue
	}
	return watermark, nil
}

// RunWithCursorAdvance захватывает блокировку, проверяет курсор,
// выполняет task и при успехе сдвигает курсор на interval.
//
// Исходы и ошибки:
//   - SUCCESS, nil — задача выполнена, курсор = watermark + interval
//   - ALREADY_DONE, nil — курсор в будущем; ни блокировки, ни записей
//   - LOCK_BUSY, ErrLockBusy — задача уже выполняется (или триггер сработал дважды)
//   - TASK_FAILURE, *TaskError — задача упала; курсор не тронут
//   - "", err — сбой хранилища
//
// timeout ограничивает аренду блокировки: по его истечении другой вызов
// вправе её перехватить. Выполняющуюся задачу timeout не прерывает.
func (r *Runner) RunWithCursorAdvance(
	ctx context.Context,
	task Task,
	scope string,
	timeout time.Duration,
	cursorType domain.CursorType,
	interval time.Duration,
) (res Result, err error) {
	if interval <= 0 {
		return Result{}, ErrInvalidInterval
	}

	ctx, span := r.tracer.Start(ctx, "escrow.run", trace.WithAttributes(
		attribute.String("escrow.task", task.Name()),
		attribute.String("escrow.tld", scope),
		attribute.String("escrow.cursor_type", cursorType.String()),
	))
	defer func() {
		span.SetAttributes(attribute.String("escrow.outcome", res.Outcome.String()))
		if err != nil && !errors.Is(err, ErrLockBusy) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	// Логгер из ctx уже несёт task и tld (escrow.Service.Run).
	logger, ok := telemetry.LoggerFromContext(ctx)
	if !ok {
		logger = telemetry.WithTask(telemetry.WithTLD(r.logger, scope), task.Name())
	}
	logger = telemetry.WithCursor(logger, cursorType.String())

	// 1-3. Дешёвая проверка без блокировки
	watermark, err := r.Due(ctx, scope, cursorType)
	if errors.Is(err, ErrNotDue) {
		logger.Debug("already completed", "cursor", watermark)
		return r.finish(ctx, task, scope, Result{Outcome: domain.OutcomeAlreadyDone, Watermark: watermark}, nil), nil
	}
	if err != nil {
		return Result{}, err
	}

	// 4. Блокировка (task, scope)
	lockName := LockName(task, scope)
	h, err := r.locks.Acquire(ctx, []string{lockName}, scope, timeout)
	if err != nil {
		if errors.Is(err, lock.ErrLockBusy) {
			logger.Info("lock in use", "lock", lockName)
			return r.finish(ctx, task, scope, Result{Outcome: domain.OutcomeLockBusy, Watermark: watermark}, err), err
		}
		return Result{}, fmt.Errorf("acquire lock %q: %w", lockName, err)
	}
	defer func() {
		if relErr := r.locks.Release(context.WithoutCancel(ctx), h); relErr != nil {
			logger.Error("failed to release lock", "lock", lockName, "error", relErr)
		}
	}()

	// 5. Под блокировкой перечитываем курсор: пока мы ждали,
	// предыдущий владелец мог успеть завершить этот период.
	watermark, err = r.Due(ctx, scope, cursorType)
	if errors.Is(err, ErrNotDue) {
		logger.Info("already completed by previous lock holder", "cursor", watermark)
		return r.finish(ctx, task, scope, Result{Outcome: domain.OutcomeAlreadyDone, Watermark: watermark}, nil), nil
	}
	if err != nil {
		return Result{}, err
	}

	// 6. Задача
	logger.Info("running task", "cursor", watermark)
	started := time.Now()

	if taskErr := task.RunWithLock(ctx, watermark); taskErr != nil {
		r.metrics.ObserveTaskDuration(task.Name(), time.Since(started))
		err = &TaskError{Task: task.Name(), Scope: scope, Watermark: watermark, Err: taskErr}
		logger.Error("task failed", "cursor", watermark, "error", taskErr)
		return r.finish(ctx, task, scope, Result{Outcome: domain.OutcomeTaskFailure, Watermark: watermark}, err), err
	}
	duration := time.Since(started)
	r.metrics.ObserveTaskDuration(task.Name(), duration)

	// 7. Ровно один interval, без догонки до текущей даты
	next := watermark.Add(interval)
	if err := r.cursors.Advance(ctx, scope, cursorType, watermark, next); err != nil {
		logger.Error("task succeeded but cursor was not advanced, period will be rerun",
			"cursor", watermark,
			"next", next,
			"error", err,
		)
		return Result{Watermark: watermark}, fmt.Errorf("advance cursor %s/%s: %w", scope, cursorType, err)
	}

	logger.Info("task completed, cursor advanced",
		"cursor", watermark,
		"next", next,
		"duration", duration,
	)

	res = Result{Outcome: domain.OutcomeSuccess, Watermark: watermark, NextWatermark: next, Duration: duration}
	return r.finish(ctx, task, scope, res, nil), nil
}

// finish пишет метрики и публикует событие. Сбой публикации не влияет на исход.
func (r *Runner) finish(ctx context.Context, task Task, scope string, res Result, runErr error) Result {
	r.metrics.ObserveOutcome(task.Name(), res.Outcome)

	// ALREADY_DONE — самый частый исход, событий по нему не шлём.
	if r.publisher == nil || res.Outcome == domain.OutcomeAlreadyDone {
		return res
	}

	now := r.clock.Now()
	var ev domain.Event
	switch res.Outcome {
	case domain.OutcomeSuccess:
		ev = domain.NewCompletedEvent(task.Name(), scope, now, domain.CompletedEvent{
			Watermark:     res.Watermark,
			NextWatermark: res.NextWatermark,
			Duration:      res.Duration.Seconds(),
		})
	case domain.OutcomeTaskFailure:
		msg := ""
		if runErr != nil {
			msg = runErr.Error()
		}
		ev = domain.NewFailedEvent(task.Name(), scope, now, domain.FailedEvent{
			Watermark: res.Watermark,
			Error:     msg,
		})
	default:
		ev = domain.NewSkippedEvent(task.Name(), scope, now, domain.SkippedEvent{
			Outcome:   res.Outcome,
			Watermark: res.Watermark,
		})
	}

	if err := r.publisher.PublishEvent(context.WithoutCancel(ctx), ev); err != nil {
		r.logger.Warn("failed to publish runner event",
			"task", task.Name(),
			"tld", scope,
			"kind", ev.Kind,
			"error", err,
		)
	}
	return res
}

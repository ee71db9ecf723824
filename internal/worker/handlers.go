package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/Escrow/internal/domain"
	"github.com/shaiso/Escrow/internal/escrow"
	"github.com/shaiso/Escrow/internal/mq"
	"github.com/shaiso/Escrow/internal/telemetry"
)

// handleTrigger обрабатывает триггер из очереди escrow.triggers.
//
//   - SUCCESS, ALREADY_DONE — ack
//   - неизвестная задача или зона, битый payload — в DLQ
//   - LOCK_BUSY, TASK_FAILURE, сбой хранилища — в escrow.retry с attempt+1;
//     после MaxAttempts — в DLQ
func (w *Worker) handleTrigger(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.TriggerPayload](&delivery.Message)
	if err != nil {
		return fmt.Errorf("%w: %w: %w", mq.ErrReject, ErrBadTrigger, err)
	}

	attempt := delivery.Attempt()
	base := w.logger.With("message_id", delivery.Message.ID, "attempt", attempt)
	ctx = telemetry.WithLogger(ctx, base)
	logger := telemetry.WithTask(telemetry.WithTLD(base, payload.TLD), payload.Task)

	res, runErr := w.tasks.Run(ctx, payload.Task, payload.TLD)
	if runErr == nil {
		logger.Debug("trigger handled", "outcome", res.Outcome)
		return nil
	}

	if errors.Is(runErr, escrow.ErrUnknownJob) || errors.Is(runErr, escrow.ErrUnknownTLD) {
		logger.Warn("trigger for unknown task", "error", runErr)
		return fmt.Errorf("%w: %w: %w", mq.ErrReject, ErrBadTrigger, runErr)
	}

	if attempt >= w.maxAttempts {
		logger.Error("trigger retries exhausted", "outcome", res.Outcome, "error", runErr)
		return fmt.Errorf("%w: %w: %w", mq.ErrReject, ErrRetryExhausted, runErr)
	}

	if res.Outcome == domain.OutcomeLockBusy {
		logger.Info("lock busy, trigger deferred")
	} else {
		logger.Warn("trigger failed, deferred for retry", "outcome", res.Outcome, "error", runErr)
	}

	// Ошибка публикации — nack с requeue, триггер не теряется.
	if err := w.publisher.PublishRetry(ctx, delivery.Message, attempt+1); err != nil {
		return fmt.Errorf("defer trigger: %w", err)
	}
	return nil
}

// Sweep запускает все задачи каталога для всех их зон.
// Для непросроченных курсоров это дешёвый ALREADY_DONE без блокировки.
func (w *Worker) Sweep(ctx context.Context) {
	var ran, failed int
	for _, job := range w.tasks.Catalog().Jobs() {
		for _, tld := range job.TLDs {
			if ctx.Err() != nil {
				return
			}

			res, err := w.tasks.Run(ctx, job.Name, tld)
			switch {
			case err == nil && res.Outcome == domain.OutcomeSuccess:
				ran++
			case err != nil && res.Outcome != domain.OutcomeLockBusy:
				failed++
				w.logger.Warn("sweep run failed",
					"task", job.Name,
					"tld", tld,
					"outcome", res.Outcome,
					"error", err,
				)
			}
		}
	}

	if ran > 0 || failed > 0 {
		w.logger.Info("sweep completed", "ran", ran, "failed", failed)
	}
}

package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Escrow/internal/escrow"
	"github.com/shaiso/Escrow/internal/mq"
	"github.com/shaiso/Escrow/internal/runner"
)

// Default configuration values.
const (
	defaultSweepInterval = 10 * time.Minute
	defaultConcurrency   = 2
	defaultMaxAttempts   = 5
)

// TaskRunner запускает задачу каталога для зоны.
// Реализуется *escrow.Service.
type TaskRunner interface {
	Run(ctx context.Context, job, tld string) (runner.Result, error)
	Catalog() *escrow.Catalog
}

// RetryPublisher откладывает триггер в очередь повторов.
// Реализуется *mq.Publisher.
type RetryPublisher interface {
	PublishRetry(ctx context.Context, msg mq.Message, attempt int) error
}

// Worker выполняет escrow-задачи по триггерам.
//
// Worker — stateless компонент, который:
//   - Получает триггеры из очереди escrow.triggers (event-driven)
//   - Периодически обходит каталог и запускает просроченные задачи (sweep fallback)
//   - Откладывает триггер в escrow.retry при LOCK_BUSY и TASK_FAILURE
//   - После MaxAttempts отправляет триггер в DLQ
//
// Несколько экземпляров безопасно потребляют из одной очереди:
// взаимное исключение обеспечивает runner.
type Worker struct {
	tasks     TaskRunner
	publisher RetryPublisher
	conn      *mq.Connection

	consumers []*mq.Consumer

	concurrency   int
	maxAttempts   int
	sweepInterval time.Duration

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	Tasks     TaskRunner
	Publisher RetryPublisher
	Conn      *mq.Connection // nil — только sweep, без очереди

	Concurrency   int           // параллельных consumer-ов (default: 2)
	MaxAttempts   int           // попыток на триггер (default: 5)
	SweepInterval time.Duration // интервал обхода каталога; < 0 — отключён (default: 10m)

	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	sweepInterval := cfg.SweepInterval
	if sweepInterval == 0 {
		sweepInterval = defaultSweepInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		tasks:         cfg.Tasks,
		publisher:     cfg.Publisher,
		conn:          cfg.Conn,
		concurrency:   concurrency,
		maxAttempts:   maxAttempts,
		sweepInterval: sweepInterval,
		logger:        logger,
	}
}

// Start запускает consumer-ы и sweep.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"concurrency", w.concurrency,
		"max_attempts", w.maxAttempts,
		"sweep_interval", w.sweepInterval,
	)

	if w.conn != nil {
		for i := 0; i < w.concurrency; i++ {
			c := mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
				Queue:    string(mq.QueueTriggers),
				Handler:  w.handleTrigger,
				Types:    []mq.MessageType{mq.MessageTypeTrigger},
				Prefetch: 1,
			})
			w.consumers = append(w.consumers, c)

			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				if err := c.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					w.logger.Error("trigger consumer error", "error", err)
				}
			}()
		}
	}

	if w.sweepInterval > 0 {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.sweepLoop(ctx)
		}()
	}

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker и ждёт текущие задачи.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	for _, c := range w.consumers {
		c.Stop()
	}

	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

// sweepLoop — периодический обход каталога.
func (w *Worker) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	// Первый обход сразу при старте (подхватываем периоды, пропущенные пока были выключены)
	w.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Escrow Worker — выполняет escrow-задачи.
//
// Worker:
//   - Получает триггеры задача × зона из RabbitMQ
//   - Запускает задачу через runner (блокировка + курсор)
//   - Повторяет LOCK_BUSY и TASK_FAILURE через очередь отложенных повторов
//   - Периодически обходит каталог на случай потерянных триггеров
//
// Workers масштабируются горизонтально: взаимное исключение
// обеспечивают блокировки, а не очередь.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Escrow/internal/app"
	"github.com/shaiso/Escrow/internal/clock"
	"github.com/shaiso/Escrow/internal/config"
	"github.com/shaiso/Escrow/internal/mq"
	"github.com/shaiso/Escrow/internal/runner"
	"github.com/shaiso/Escrow/internal/telemetry"
	"github.com/shaiso/Escrow/internal/worker"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting escrow-worker")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.SetupTracing(ctx, "escrow-worker")
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}
	defer shutdownTracing(context.Background())

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	stores, err := app.OpenStores(ctx, cfg, clock.System{}, metrics, logger)
	if err != nil {
		logger.Error("failed to open stores", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	checks := stores.Checks()

	// RabbitMQ
	var (
		mqConn    *mq.Connection
		publisher *mq.Publisher
		events    runner.Publisher
	)
	mqConn, err = mq.NewConnection(mq.ConnectionConfig{URL: cfg.RabbitMQURL, Logger: logger})
	if err != nil {
		logger.Warn("RabbitMQ not available, running in sweep-only mode", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn, mq.TopologyConfig{RetryDelay: cfg.RetryDelay}); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		publisher = mq.NewPublisher(mqConn, logger)
		events = publisher
		checks = append(checks, mqConn.Check)
	}

	svc, err := app.NewService(cfg, stores, app.ServiceDeps{
		Metrics:   metrics,
		Publisher: events,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to build escrow service", "error", err)
		os.Exit(1)
	}

	wcfg := worker.Config{
		Tasks:       svc,
		Conn:        mqConn,
		Concurrency: cfg.WorkerConcurrency,
		MaxAttempts: cfg.MaxAttempts,
		Logger:      logger,
	}
	if publisher != nil {
		wcfg.Publisher = publisher
	}
	w := worker.New(wcfg)

	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", app.HealthHandler(checks...))
	mux.Handle("/metrics", promhttp.Handler())

	if err := app.Serve(ctx, cfg.WorkerPort, mux, logger); err != nil {
		logger.Error("http server error", "error", err)
		cancel()
	}

	// Останавливаем worker
	w.Stop()
	logger.Info("escrow-worker stopped")
}

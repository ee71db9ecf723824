// Escrow API — HTTP API для ручного запуска escrow-задач и
// администрирования курсоров.
//
// API:
//   - Запускает задачу для зоны синхронно (POST /api/v1/escrow/{task}/run)
//   - Показывает и сдвигает курсоры
//   - Показывает живые блокировки и записанные депозиты
//
// Ручной запуск идёт через тот же runner, что и worker, поэтому
// конкурирует с ним за блокировку задачи.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Escrow/internal/api"
	"github.com/shaiso/Escrow/internal/app"
	"github.com/shaiso/Escrow/internal/clock"
	"github.com/shaiso/Escrow/internal/config"
	"github.com/shaiso/Escrow/internal/mq"
	"github.com/shaiso/Escrow/internal/runner"
	"github.com/shaiso/Escrow/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting escrow-api")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.SetupTracing(ctx, "escrow-api")
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

	// RabbitMQ — только для событий; API работает и без него.
	var events runner.Publisher
	mqConn, err := mq.NewConnection(mq.ConnectionConfig{URL: cfg.RabbitMQURL, Logger: logger})
	if err != nil {
		logger.Warn("RabbitMQ not available, events are not published", "error", err)
	} else {
		defer mqConn.Close()
		if err := mq.SetupTopology(ctx, mqConn, mq.TopologyConfig{RetryDelay: cfg.RetryDelay}); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		events = mq.NewPublisher(mqConn, logger)
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

	handler := api.NewHandler(api.Config{
		Tasks:    svc,
		Cursors:  stores.Cursors,
		Locks:    stores.Locks,
		Deposits: stores.Deposits,
		Metrics:  metrics,
		Logger:   logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", app.HealthHandler(checks...))
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	if err := app.Serve(ctx, cfg.APIPort, mux, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("escrow-api stopped")
}

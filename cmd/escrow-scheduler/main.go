// Escrow Scheduler — публикует триггеры задач по cron-расписанию каталога.
//
// Активен только лидер: при драйвере postgres лидерство берётся через
// pg_try_advisory_lock на выделенном соединении, иначе процесс
// считается единственным экземпляром.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Escrow/internal/app"
	"github.com/shaiso/Escrow/internal/config"
	"github.com/shaiso/Escrow/internal/mq"
	"github.com/shaiso/Escrow/internal/repo"
	"github.com/shaiso/Escrow/internal/scheduler"
	"github.com/shaiso/Escrow/internal/telemetry"
)

const (
	schedLockKey int64 = 424242
	tickInterval       = time.Second
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting escrow-scheduler")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	catalog, err := config.LoadCatalog(cfg.CatalogPath, cfg.TLDs)
	if err != nil {
		logger.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}

	// Без брокера планировщику некуда публиковать.
	mqConn, err := mq.NewConnection(mq.ConnectionConfig{URL: cfg.RabbitMQURL, Logger: logger})
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	if err := mq.SetupTopology(ctx, mqConn, mq.TopologyConfig{RetryDelay: cfg.RetryDelay}); err != nil {
		logger.Warn("failed to setup topology", "error", err)
	}

	sched, err := scheduler.New(scheduler.Config{
		Catalog:   catalog,
		Publisher: mq.NewPublisher(mqConn, logger),
		Logger:    logger,
		Metrics:   metrics,
	})
	if err != nil {
		logger.Error("failed to build schedule", "error", err)
		os.Exit(1)
	}

	checks := []app.HealthCheck{mqConn.Check}

	var leader *leadership
	if cfg.StoreDriver == config.DriverPostgres {
		pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		checks = append(checks, pool.Ping)
		leader = &leadership{pool: pool, logger: logger}
		defer leader.release()
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", app.HealthHandler(checks...))
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := app.Serve(ctx, cfg.SchedPort, mux, logger); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	tk := time.NewTicker(tickInterval)
	defer tk.Stop()

	for {
		select {
		case <-tk.C:
			if leader != nil && !leader.ensure(ctx) {
				// не лидер — пропускаем тик
				continue
			}
			if err := sched.Tick(ctx); err != nil {
				logger.Warn("tick incomplete", "error", err, "next", sched.Next())
			}

		case <-ctx.Done():
			logger.Info("escrow-scheduler stopped")
			return
		}
	}
}

// leadership держит advisory lock на одном соединении из пула.
// Блокировка сессионная: на другом соединении пула её бы не было.
type leadership struct {
	pool   *pgxpool.Pool
	conn   *pgxpool.Conn
	logger *slog.Logger
}

// ensure пытается стать лидером (или подтверждает лидерство).
func (l *leadership) ensure(ctx context.Context) bool {
	if l.conn != nil {
		if err := l.conn.Ping(ctx); err == nil {
			return true
		}
		// Соединение потеряно вместе с блокировкой.
		l.logger.Warn("leader connection lost")
		l.conn.Release()
		l.conn = nil
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		l.logger.Warn("leader election: acquire conn", "error", err)
		return false
	}

	var ok bool
	if err := conn.QueryRow(ctx, "select pg_try_advisory_lock($1)", schedLockKey).Scan(&ok); err != nil {
		l.logger.Warn("leader election: lock", "error", err)
		conn.Release()
		return false
	}
	if !ok {
		conn.Release()
		return false
	}

	l.conn = conn
	l.logger.Info("became scheduler leader")
	return true
}

func (l *leadership) release() {
	if l.conn == nil {
		return
	}
	_, _ = l.conn.Exec(context.Background(), "select pg_advisory_unlock($1)", schedLockKey)
	l.conn.Release()
	l.conn = nil
}

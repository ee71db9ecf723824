package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Escrow/internal/clock"
	"github.com/shaiso/Escrow/internal/config"
	"github.com/shaiso/Escrow/internal/cursor"
	"github.com/shaiso/Escrow/internal/domain"
	"github.com/shaiso/Escrow/internal/escrow"
	"github.com/shaiso/Escrow/internal/lock"
	"github.com/shaiso/Escrow/internal/repo"
	"github.com/shaiso/Escrow/internal/repo/sqlite"
	"github.com/shaiso/Escrow/internal/telemetry"
)

// CursorStore — курсоры с возможностью административного сброса.
type CursorStore interface {
	cursor.Store
	cursor.Resetter
}

// DepositStore — запись и просмотр депозитов.
type DepositStore interface {
	escrow.DepositStore
	List(ctx context.Context, tld string, limit int) ([]domain.Deposit, error)
}

// HealthCheck проверяет доступность зависимости.
type HealthCheck func(ctx context.Context) error

// Stores — открытые хранилища процесса.
type Stores struct {
	Locks     *lock.Manager
	Cursors   CursorStore
	Deposits  DepositStore
	Snapshots escrow.Snapshotter

	// Pool задан только для драйвера postgres.
	Pool *pgxpool.Pool

	checks  []HealthCheck
	closers []func() error
}

// OpenStores открывает хранилище по cfg.StoreDriver и backend блокировок
// по cfg.LockBackend. При ошибке уже открытые ресурсы закрываются.
func OpenStores(ctx context.Context, cfg *config.Config, c clock.Clock, metrics *telemetry.Metrics, logger *slog.Logger) (*Stores, error) {
	if c == nil {
		c = clock.System{}
	}
	s := &Stores{}

	var lockStore lock.Store
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() error { pool.Close(); return nil })
		if err := repo.Migrate(ctx, pool); err != nil {
			s.Close()
			return nil, err
		}
		s.Pool = pool
		s.Cursors = repo.NewCursorRepo(pool, c)
		s.Deposits = repo.NewDepositRepo(pool)
		s.Snapshots = repo.NewRegistryRepo(pool)
		s.checks = append(s.checks, pool.Ping)
		lockStore = repo.NewLockRepo(pool)
		logger.Info("database connected", "driver", cfg.StoreDriver)

	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		s.Cursors = sqlite.NewCursorRepo(db, c)
		s.Deposits = sqlite.NewDepositRepo(db)
		s.Snapshots = sqlite.NewRegistryRepo(db)
		s.checks = append(s.checks, db.Ping)
		lockStore = sqlite.NewLockRepo(db)
		logger.Info("database opened", "driver", cfg.StoreDriver, "path", cfg.SQLitePath)

	case config.DriverMemory:
		s.Cursors = cursor.NewMemoryStore(c)
		s.Deposits = escrow.NewMemoryDeposits()
		s.Snapshots = escrow.StaticSnapshotter{}
		lockStore = lock.NewMemoryStore()
		logger.Warn("using in-memory store, state is lost on restart")

	default:
		return nil, fmt.Errorf("%w: store driver %q", config.ErrInvalidConfig, cfg.StoreDriver)
	}

	if cfg.LockBackend == config.LockBackendRedis {
		client, err := lock.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, client.Close)
		s.checks = append(s.checks, func(ctx context.Context) error { return client.Ping(ctx).Err() })
		lockStore = lock.NewRedisStore(client, cfg.RedisLockPrefix)
		logger.Info("redis lock backend connected")
	}

	s.Locks = lock.NewManager(lock.Config{
		Store:   lockStore,
		Clock:   c,
		Logger:  logger,
		Metrics: metrics,
	})
	return s, nil
}

// Checks возвращает проверки здоровья открытых хранилищ.
func (s *Stores) Checks() []HealthCheck {
	return s.checks
}

// Close закрывает ресурсы в обратном порядке открытия.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

package app

import (
	"log/slog"

	"github.com/shaiso/Escrow/internal/clock"
	"github.com/shaiso/Escrow/internal/config"
	"github.com/shaiso/Escrow/internal/escrow"
	"github.com/shaiso/Escrow/internal/runner"
	"github.com/shaiso/Escrow/internal/telemetry"
)

// ServiceDeps — зависимости NewService помимо хранилищ.
type ServiceDeps struct {
	Clock     clock.Clock        // default: clock.System{}
	Metrics   *telemetry.Metrics // опционально
	Publisher runner.Publisher   // опционально: события завершения задач
	Logger    *slog.Logger
}

// NewService загружает каталог задач и собирает escrow.Service.
func NewService(cfg *config.Config, stores *Stores, deps ServiceDeps) (*escrow.Service, error) {
	catalog, err := config.LoadCatalog(cfg.CatalogPath, cfg.TLDs)
	if err != nil {
		return nil, err
	}

	c := deps.Clock
	if c == nil {
		c = clock.System{}
	}

	r := runner.New(runner.Config{
		Locks:     stores.Locks,
		Cursors:   stores.Cursors,
		Clock:     c,
		Logger:    deps.Logger,
		Metrics:   deps.Metrics,
		Publisher: deps.Publisher,
	})

	return escrow.NewService(escrow.ServiceConfig{
		Catalog: catalog,
		Runner:  r,
		Deposit: escrow.DepositDeps{
			Dir:       cfg.DepositDir,
			Deposits:  stores.Deposits,
			Snapshots: stores.Snapshots,
			Clock:     c,
			Logger:    deps.Logger,
		},
		Logger: deps.Logger,
	}), nil
}

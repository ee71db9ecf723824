package escrow

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/shaiso/Escrow/internal/clock"
	"github.com/shaiso/Escrow/internal/domain"
	"github.com/shaiso/Escrow/internal/runner"
	"github.com/shaiso/Escrow/internal/telemetry"
)

// DepositStore хранит записи о депозитах.
type DepositStore interface {
	// NextRevision возвращает следующий номер ревизии для (tld, watermark, mode).
	NextRevision(ctx context.Context, tld string, watermark time.Time, mode domain.DepositMode) (int, error)

	// Create записывает депозит.
	Create(ctx context.Context, d *domain.Deposit) error
}

// Snapshotter возвращает число объектов реестра, живых на момент at.
type Snapshotter interface {
	Snapshot(ctx context.Context, tld string, at time.Time) (domain.ObjectCounts, error)
}

// DepositTask пишет депозит за период watermark для одной зоны.
type DepositTask struct {
	job      Job
	tld      string
	dir      string
	deposits DepositStore
	snapshot Snapshotter
	clock    clock.Clock
	logger   *slog.Logger
}

var _ runner.Task = (*DepositTask)(nil)

// DepositDeps — общие зависимости DepositTask.
type DepositDeps struct {
	Dir       string // каталог депозитов
	Deposits  DepositStore
	Snapshots Snapshotter
	Clock     clock.Clock  // default: clock.System{}
	Logger    *slog.Logger // default: slog.Default()
}

// NewDepositTask создаёт задачу job для зоны tld.
func NewDepositTask(job Job, tld string, deps DepositDeps) *DepositTask {
	c := deps.Clock
	if c == nil {
		c = clock.System{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DepositTask{
		job:      job,
		tld:      tld,
		dir:      deps.Dir,
		deposits: deps.Deposits,
		snapshot: deps.Snapshots,
		clock:    c,
		logger:   logger,
	}
}

// Name возвращает имя задачи из каталога.
func (t *DepositTask) Name() string { return t.job.Name }

// RunWithLock пишет депозит за период watermark.
// Ничто здесь не зависит от текущего времени, кроме CreatedAt записи.
func (t *DepositTask) RunWithLock(ctx context.Context, watermark time.Time) error {
	watermark = watermark.UTC()

	rev, err := t.deposits.NextRevision(ctx, t.tld, watermark, t.job.Mode)
	if err != nil {
		return fmt.Errorf("next revision: %w", err)
	}

	counts, err := t.snapshot.Snapshot(ctx, t.tld, watermark)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if t.job.Mode == domain.DepositModeThin {
		// Thin-депозит содержит только домены.
		counts = domain.ObjectCounts{Domains: counts.Domains}
	}

	data, err := RenderDeposit(DepositHeader{
		TLD:       t.tld,
		Watermark: watermark,
		Mode:      t.job.Mode,
		Revision:  rev,
		Objects:   counts,
	})
	if err != nil {
		return fmt.Errorf("render deposit: %w", err)
	}

	name := domain.DepositFileName(t.tld, watermark, t.job.Mode, rev)
	if err := WriteFileAtomic(filepath.Join(t.dir, name), data); err != nil {
		return fmt.Errorf("write deposit: %w", err)
	}

	d := &domain.Deposit{
		TLD:       t.tld,
		Watermark: watermark,
		Mode:      t.job.Mode,
		Revision:  rev,
		FileName:  name,
		Objects:   counts,
		CreatedAt: t.clock.Now(),
	}
	if err := t.deposits.Create(ctx, d); err != nil {
		return fmt.Errorf("record deposit: %w", err)
	}

	logger, ok := telemetry.LoggerFromContext(ctx)
	if !ok {
		logger = t.logger
	}
	logger.Info("deposit written",
		"file", name,
		"revision", rev,
		"objects", counts.Total(),
	)
	return nil
}

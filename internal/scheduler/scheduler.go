package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Escrow/internal/clock"
	"github.com/shaiso/Escrow/internal/escrow"
	"github.com/shaiso/Escrow/internal/mq"
	"github.com/shaiso/Escrow/internal/telemetry"
)

// TriggerPublisher публикует триггеры задач.
type TriggerPublisher interface {
	PublishTrigger(ctx context.Context, payload mq.TriggerPayload) error
}

// entry — одна пара задача × зона со своим расписанием.
type entry struct {
	job   string
	tld   string
	sched cron.Schedule
	next  time.Time
}

// Scheduler публикует триггеры по cron каждой задачи каталога.
type Scheduler struct {
	entries   []*entry
	publisher TriggerPublisher
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *telemetry.Metrics
}

// Config — конфигурация Scheduler.
type Config struct {
	Catalog   *escrow.Catalog
	Publisher TriggerPublisher
	Clock     clock.Clock        // default: clock.System{}
	Logger    *slog.Logger       // default: slog.Default()
	Metrics   *telemetry.Metrics // опционально
}

// New строит расписание для всех задач × зон каталога.
//
// Первое срабатывание — ближайшее по cron после текущего момента.
// Слишком редкий cron не ошибка: пишется предупреждение.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	now := cfg.Clock.Now()
	s := &Scheduler{
		publisher: cfg.Publisher,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}

	for _, job := range cfg.Catalog.Jobs() {
		sched, err := ParseCron(job.Cron)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", job.Name, err)
		}

		if err := CheckCadence(sched, job.Interval, now); err != nil {
			s.logger.Warn("cron cadence too slow to catch up a lagging cursor",
				"task", job.Name,
				"cron", job.Cron,
				"error", err,
			)
		}

		for _, tld := range job.TLDs {
			s.entries = append(s.entries, &entry{
				job:   job.Name,
				tld:   tld,
				sched: sched,
				next:  NextFire(sched, now),
			})
		}
	}

	return s, nil
}

// Tick публикует триггеры всех записей, чьё время наступило.
//
// Пропущенные за простой срабатывания не накапливаются: публикуется
// один триггер, следующее время считается от текущего момента.
// Ошибка публикации одной записи не блокирует остальные; запись
// повторится на следующем тике.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.clock.Now()

	var published, failed int
	for _, e := range s.entries {
		if now.Before(e.next) {
			continue
		}

		err := s.publisher.PublishTrigger(ctx, mq.TriggerPayload{Task: e.job, TLD: e.tld})
		if err != nil {
			s.logger.Error("failed to publish trigger",
				"task", e.job,
				"tld", e.tld,
				"error", err,
			)
			failed++
			continue
		}

		s.metrics.IncTriggerPublished(e.job)
		e.next = NextFire(e.sched, now)
		published++

		s.logger.Info("trigger published",
			"task", e.job,
			"tld", e.tld,
			"next", e.next,
		)
	}

	if failed > 0 {
		return fmt.Errorf("publish triggers: %d of %d failed", failed, failed+published)
	}
	return nil
}

// Next возвращает ближайшее время срабатывания по всем записям.
func (s *Scheduler) Next() time.Time {
	var next time.Time
	for _, e := range s.entries {
		if next.IsZero() || e.next.Before(next) {
			next = e.next
		}
	}
	return next
}

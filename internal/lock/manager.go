package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Escrow/internal/clock"
	"github.com/shaiso/Escrow/internal/domain"
	"github.com/shaiso/Escrow/internal/telemetry"
)

// Handle — результат успешного захвата набора блокировок.
// Все блокировки одного вызова Acquire разделяют один токен.
type Handle struct {
	Scope string
	Token string
	Locks []domain.Lock
}

// Names возвращает имена захваченных блокировок.
func (h *Handle) Names() []string {
	names := make([]string, len(h.Locks))
	for i := range h.Locks {
		names[i] = h.Locks[i].Name
	}
	return names
}

// Manager захватывает и освобождает именованные блокировки.
type Manager struct {
	store   Store
	clock   clock.Clock
	logger  *slog.Logger
	metrics *telemetry.Metrics
	retry   RetryConfig
}

// Config — конфигурация Manager.
type Config struct {
	Store   Store
	Clock   clock.Clock        // default: clock.System{}
	Logger  *slog.Logger       // default: slog.Default()
	Metrics *telemetry.Metrics // опционально
	Retry   *RetryConfig       // default: DefaultRetryConfig
}

// NewManager создаёт Manager.
func NewManager(cfg Config) *Manager {
	c := cfg.Clock
	if c == nil {
		c = clock.System{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	retry := DefaultRetryConfig
	if cfg.Retry != nil {
		retry = cfg.Retry.normalize()
	}

	return &Manager{
		store:   cfg.Store,
		clock:   c,
		logger:  logger,
		metrics: cfg.Metrics,
		retry:   retry,
	}
}

// Acquire захватывает все блокировки names в scope на время timeout.
//
// Каждое имя захватывается в отдельной транзакции хранилища.
// Захват атомарен на уровне вызова: если очередное имя занято,
// уже захваченные в этом вызове блокировки освобождаются и
// возвращается ErrLockBusy. Транзакционные конфликты повторяются;
// если повторы исчерпаны, конфликт тоже превращается в ErrLockBusy.
func (m *Manager) Acquire(ctx context.Context, names []string, scope string, timeout time.Duration) (*Handle, error) {
	names = normalizeNames(names)
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: at least one lock name is required", ErrInvalidArgument)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout must be > 0", ErrInvalidArgument)
	}

	h := &Handle{
		Scope: scope,
		Token: uuid.NewString(),
	}

	for _, name := range names {
		var acquired bool
		var l domain.Lock

		err := Retry(ctx, m.retry, IsConflict, m.onRetry(name, scope), func() error {
			now := m.clock.Now()
			l = domain.Lock{
				Name:        name,
				Scope:       scope,
				HolderToken: h.Token,
				AcquiredAt:  now,
				ExpiresAt:   now.Add(timeout),
			}

			var err error
			acquired, err = m.store.TryAcquire(ctx, l, now)
			return err
		})
		if err != nil {
			m.rollback(ctx, h)
			if errors.Is(err, ErrConflict) {
				return nil, fmt.Errorf("%w: %s: %w", ErrLockBusy, lockKey(name, scope), err)
			}
			return nil, fmt.Errorf("acquire lock %s: %w", lockKey(name, scope), err)
		}

		if !acquired {
			m.rollback(ctx, h)
			return nil, fmt.Errorf("%w: %s", ErrLockBusy, lockKey(name, scope))
		}

		h.Locks = append(h.Locks, l)
	}

	m.logger.Debug("locks acquired",
		"names", h.Names(),
		"scope", scope,
		"timeout", timeout,
	)

	return h, nil
}

// Release освобождает все блокировки h.
//
// Запись удаляется, только если её токен всё ещё принадлежит h.
// Если аренда успела истечь и блокировку забрал другой,
// его запись не трогается (это не ошибка).
func (m *Manager) Release(ctx context.Context, h *Handle) error {
	if h == nil {
		return nil
	}

	var errs []error
	for _, l := range h.Locks {
		var released bool
		err := Retry(ctx, m.retry, IsConflict, m.onRetry(l.Name, l.Scope), func() error {
			var err error
			released, err = m.store.Release(ctx, l.Name, l.Scope, h.Token)
			return err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("release lock %s: %w", lockKey(l.Name, l.Scope), err))
			continue
		}

		if !released {
			m.logger.Warn("lock was not held at release, lease expired",
				"name", l.Name,
				"scope", l.Scope,
			)
		}
	}

	return errors.Join(errs...)
}

// ExecuteWithLocks захватывает блокировки, выполняет fn и освобождает их.
// Если блокировки заняты, fn не вызывается и возвращается ErrLockBusy.
func (m *Manager) ExecuteWithLocks(ctx context.Context, names []string, scope string, timeout time.Duration, fn func(ctx context.Context) error) error {
	h, err := m.Acquire(ctx, names, scope, timeout)
	if err != nil {
		return err
	}

	fnErr := fn(ctx)

	// Освобождаем даже при отменённом ctx запроса.
	if err := m.Release(context.WithoutCancel(ctx), h); err != nil {
		m.logger.Error("failed to release locks", "names", h.Names(), "scope", scope, "error", err)
	}

	return fnErr
}

// Inspect возвращает запись блокировки (name, scope).
func (m *Manager) Inspect(ctx context.Context, name, scope string) (*domain.Lock, error) {
	return m.store.Get(ctx, name, scope)
}

// List возвращает все записи блокировок.
func (m *Manager) List(ctx context.Context) ([]domain.Lock, error) {
	return m.store.List(ctx)
}

// Now возвращает время по часам менеджера.
func (m *Manager) Now() time.Time {
	return m.clock.Now()
}

// rollback освобождает блокировки, захваченные до неудачи.
func (m *Manager) rollback(ctx context.Context, h *Handle) {
	if len(h.Locks) == 0 {
		return
	}
	if err := m.Release(context.WithoutCancel(ctx), h); err != nil {
		m.logger.Error("failed to roll back partially acquired locks",
			"names", h.Names(),
			"scope", h.Scope,
			"error", err,
		)
	}
	h.Locks = nil
}

func (m *Manager) onRetry(name, scope string) func(int, error) {
	return func(attempt int, err error) {
		m.metrics.IncLockRetry()
		m.logger.Debug("lock store conflict, retrying",
			"name", name,
			"scope", scope,
			"attempt", attempt,
			"error", err,
		)
	}
}

// normalizeNames убирает пустые имена и дубликаты, сортирует.
// Стабильный порядок захвата исключает взаимные блокировки между вызовами.
func normalizeNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func lockKey(name, scope string) string {
	return fmt.Sprintf("%q@%q", name, scope)
}

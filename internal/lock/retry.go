package lock

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig — параметры повторов при временных ошибках хранилища.
type RetryConfig struct {
	MaxRetries int           // число повторов после первой попытки (default: 3)
	BaseDelay  time.Duration // начальная задержка (default: 20ms)
	MaxDelay   time.Duration // потолок задержки (default: 500ms)
}

// DefaultRetryConfig — значения по умолчанию.
var DefaultRetryConfig = RetryConfig{
	MaxRetries: 3,
	BaseDelay:  20 * time.Millisecond,
	MaxDelay:   500 * time.Millisecond,
}

func (c RetryConfig) normalize() RetryConfig {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultRetryConfig.BaseDelay
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = c.BaseDelay
	}
	return c
}

// newBackOff — экспоненциальная задержка от BaseDelay до MaxDelay с jitter.
func (c RetryConfig) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.BaseDelay
	b.MaxInterval = c.MaxDelay
	b.Multiplier = 2
	return b
}

// IsConflict сообщает, что err — транзакционный конфликт (ErrConflict).
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// Retry выполняет fn и повторяет её, пока retryable(err) истинно,
// но не более cfg.MaxRetries раз. Прочие ошибки возвращаются сразу.
// После исчерпания повторов возвращается последняя ошибка fn.
// onRetry (опционально) вызывается перед каждым повтором с его номером.
func Retry(ctx context.Context, cfg RetryConfig, retryable func(error) bool, onRetry func(attempt int, err error), fn func() error) error {
	cfg = cfg.normalize()

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := fn()
		if err != nil && !retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(cfg.newBackOff()),
		backoff.WithMaxTries(uint(cfg.MaxRetries)+1),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, _ time.Duration) {
			attempt++
			if onRetry != nil {
				onRetry(attempt, err)
			}
		}),
	)

	// На последней попытке backoff не снимает обёртку Permanent.
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Unwrap()
	}
	return err
}

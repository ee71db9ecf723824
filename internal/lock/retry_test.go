package lock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryConfig_Normalize(t *testing.T) {
	c := RetryConfig{MaxRetries: -1, MaxDelay: time.Millisecond}.normalize()
	if c.MaxRetries != 0 {
		t.Errorf("expected MaxRetries 0, got %d", c.MaxRetries)
	}
	if c.BaseDelay != DefaultRetryConfig.BaseDelay {
		t.Errorf("expected default BaseDelay, got %v", c.BaseDelay)
	}
	if c.MaxDelay != c.BaseDelay {
		t.Errorf("MaxDelay should be raised to BaseDelay, got %v", c.MaxDelay)
	}
}

func TestRetryConfig_BackOffBounds(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, BaseDelay: 10 * time.Millisecond, MaxDelay: 40 * time.Millisecond}
	b := cfg.newBackOff()

	// RandomizationFactor 0.5: задержка в [0.5, 1.5] от текущего интервала.
	for i := 0; i < 10; i++ {
		d := b.NextBackOff()
		if d < 5*time.Millisecond || d > 60*time.Millisecond {
			t.Errorf("step %d: delay %v out of bounds", i, d)
		}
	}
}

func TestRetry_RetriesUntilSuccess(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

	calls := 0
	var retries []int
	err := Retry(context.Background(), cfg, IsConflict, func(n int, _ error) { retries = append(retries, n) }, func() error {
		calls++
		if calls < 3 {
			return ErrConflict
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if len(retries) != 2 || retries[0] != 1 || retries[1] != 2 {
		t.Errorf("unexpected retry numbers %v", retries)
	}
}

func TestRetry_ExhaustedReturnsLastError(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

	calls := 0
	err := Retry(context.Background(), cfg, IsConflict, nil, func() error {
		calls++
		return ErrConflict
	})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 1 attempt + 2 retries, got %d", calls)
	}
}

func TestRetry_StopsOnNonRetryable(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	other := errors.New("syntax error")

	for _, maxRetries := range []int{0, 3} {
		cfg.MaxRetries = maxRetries
		calls := 0
		err := Retry(context.Background(), cfg, IsConflict, nil, func() error {
			calls++
			return other
		})
		if err != other {
			t.Errorf("MaxRetries=%d: expected the original error unwrapped, got %#v", maxRetries, err)
		}
		if calls != 1 {
			t.Errorf("MaxRetries=%d: non-conflict error must not be retried, got %d calls", maxRetries, calls)
		}
	}
}

func TestRetry_ContextCanceled(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Hour, MaxDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())

	err := Retry(ctx, cfg, IsConflict, func(int, error) { cancel() }, func() error {
		return ErrConflict
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

package runner

import (
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/Escrow/internal/lock"
)

// Ошибки runner.
var (
	// ErrLockBusy — блокировка занята. Ожидаемый исход, триггер повторит позже.
	ErrLockBusy = lock.ErrLockBusy

	// ErrNotDue — курсор в будущем, запускать нечего. Не ошибка, а сигнал пропуска.
	ErrNotDue = errors.New("cursor not due")

	// ErrInvalidInterval — interval должен быть > 0.
	ErrInvalidInterval = errors.New("interval must be > 0")
)

// TaskError — ошибка, которую вернула сама задача.
// Блокировка освобождена, курсор не тронут.
type TaskError struct {
	Task      string
	Scope     string
	Watermark time.Time
	Err       error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s for %s at %s: %v", e.Task, e.Scope, e.Watermark.Format(time.RFC3339), e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

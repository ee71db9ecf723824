package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/shaiso/Escrow/internal/lock"
)

var defaultRetryConfig = lock.RetryConfig{
	MaxRetries: 3,
	BaseDelay:  50 * time.Millisecond,
	MaxDelay:   500 * time.Millisecond,
}

// codedError — ошибка драйвера с кодом результата SQLite.
type codedError interface {
	error
	Code() int
}

var _ codedError = (*sqlite.Error)(nil)

// isTransientErr распознаёт временные ошибки SQLite по коду результата.
// Расширенные коды (SQLITE_BUSY_SNAPSHOT, SQLITE_LOCKED_SHAREDCACHE, ...)
// сводятся к первичному по младшему байту.
//   - SQLITE_BUSY — базу держит другое соединение
//   - SQLITE_LOCKED — конфликт на уровне таблицы
//   - SQLITE_IOERR_SHORT_READ — конкуренция в WAL
func isTransientErr(err error) bool {
	var coded codedError
	if !errors.As(err, &coded) {
		return false
	}
	code := coded.Code()
	if code == sqlite3.SQLITE_IOERR_SHORT_READ {
		return true
	}
	switch code & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

// asConflict помечает временную ошибку как lock.ErrConflict:
// повторами операций с блокировками управляет lock.Manager.
func asConflict(op string, err error) error {
	if isTransientErr(err) {
		return fmt.Errorf("%s: %w: %w", op, lock.ErrConflict, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// retryOp выполняет fn, повторяя её при временных ошибках SQLite.
func (d *DB) retryOp(ctx context.Context, fn func() error) error {
	return lock.Retry(ctx, d.retry, isTransientErr, nil, fn)
}

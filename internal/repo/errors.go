package repo

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shaiso/Escrow/internal/lock"
)

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (конфликт уникальности).
	ErrAlreadyExists = errors.New("already exists")
)

// SQLSTATE, при которых транзакцию имеет смысл повторить.
const (
	sqlstateSerializationFailure = "40001"
	sqlstateDeadlockDetected     = "40P01"
	sqlstateUniqueViolation      = "23505"
	sqlstateLockNotAvailable     = "55P03"
)

// isConflict сообщает, что ошибка — транзакционный конфликт.
func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case sqlstateSerializationFailure, sqlstateDeadlockDetected,
		sqlstateUniqueViolation, sqlstateLockNotAvailable:
		return true
	default:
		return false
	}
}

// wrapLockErr помечает конфликты как lock.ErrConflict, чтобы менеджер их повторил.
func wrapLockErr(op string, err error) error {
	if isConflict(err) {
		return fmt.Errorf("%s: %w: %w", op, lock.ErrConflict, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlstateUniqueViolation
}

package lock

import "errors"

// Ошибки блокировок.
var (
	// ErrLockBusy — блокировка удерживается другим владельцем.
	// Ожидаемый исход: вызывающий должен повторить попытку позже.
	ErrLockBusy = errors.New("lock busy")

	// ErrConflict — транзакционный конфликт в хранилище.
	// Бэкенды оборачивают в неё serialization failure, SQLITE_BUSY и т.п.;
	// Manager повторяет такие операции ограниченное число раз.
	ErrConflict = errors.New("lock store conflict")

	// ErrNotFound — записи блокировки нет.
	ErrNotFound = errors.New("lock not found")

	// ErrInvalidArgument — некорректные параметры вызова.
	ErrInvalidArgument = errors.New("invalid argument")
)

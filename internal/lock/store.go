package lock

import (
	"context"
	"time"

	"github.com/shaiso/Escrow/internal/domain"
)

// Store — транзакционное хранилище записей блокировок.
//
// Каждый метод выполняется в одной транзакции хранилища.
// Транзакционные конфликты возвращаются обёрнутыми в ErrConflict.
type Store interface {
	// TryAcquire читает запись (l.Name, l.Scope). Если её нет или она
	// истекла к моменту now, записывает l и возвращает true.
	// Если запись жива — возвращает false без изменений.
	TryAcquire(ctx context.Context, l domain.Lock, now time.Time) (bool, error)

	// Release удаляет запись, только если её токен равен token.
	// Возвращает false, если запись отсутствует или принадлежит другому.
	Release(ctx context.Context, name, scope, token string) (bool, error)

	// Get возвращает запись блокировки или ErrNotFound.
	Get(ctx context.Context, name, scope string) (*domain.Lock, error)

	// List возвращает все записи, включая истёкшие.
	List(ctx context.Context) ([]domain.Lock, error)
}

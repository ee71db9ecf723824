package cursor

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/Escrow/internal/clock"
	"github.com/shaiso/Escrow/internal/domain"
)

// Store — транзакционное хранилище курсоров.
type Store interface {
	// Load возвращает watermark курсора; ok=false, если курсора нет.
	Load(ctx context.Context, scope string, t domain.CursorType) (watermark time.Time, ok bool, err error)

	// Save записывает watermark. Запись меньше текущего значения — ErrRegression.
	Save(ctx context.Context, scope string, t domain.CursorType, watermark time.Time) error

	// Advance атомарно сдвигает курсор from → to.
	// Запись происходит, только если курсора нет или его значение равно from;
	// иначе ErrCursorMoved. to раньше from — ErrRegression.
	Advance(ctx context.Context, scope string, t domain.CursorType, from, to time.Time) error

	// List возвращает все курсоры.
	List(ctx context.Context) ([]domain.Cursor, error)
}

// LoadOrDefault читает курсор; отсутствующий курсор равен началу суток now.
func LoadOrDefault(ctx context.Context, s Store, scope string, t domain.CursorType, now time.Time) (time.Time, error) {
	watermark, ok, err := s.Load(ctx, scope, t)
	if err != nil {
		return time.Time{}, fmt.Errorf("load cursor %s/%s: %w", scope, t, err)
	}
	if !ok {
		return clock.StartOfDay(now), nil
	}
	return watermark, nil
}

// CheckAdvance проверяет, что from → to не регрессия.
// Используется бэкендами перед записью.
func CheckAdvance(from, to time.Time) error {
	if to.Before(from) {
		return fmt.Errorf("%w: %s -> %s", ErrRegression, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	return nil
}

// Resetter — административная запись курсора без проверки монотонности.
// Нужна оператору, чтобы перезапустить уже пройденные периоды.
type Resetter interface {
	Reset(ctx context.Context, scope string, t domain.CursorType, watermark time.Time) error
}

package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Escrow/internal/clock"
	"github.com/shaiso/Escrow/internal/cursor"
	"github.com/shaiso/Escrow/internal/domain"
)

// CursorRepo — cursor.Store поверх таблицы cursors.
type CursorRepo struct {
	pool  *pgxpool.Pool
	clock clock.Clock
}

// NewCursorRepo создаёт новый CursorRepo. c используется для updated_at.
func NewCursorRepo(pool *pgxpool.Pool, c clock.Clock) *CursorRepo {
	if c == nil {
		c = clock.System{}
	}
	return &CursorRepo{pool: pool, clock: c}
}

var (
	_ cursor.Store    = (*CursorRepo)(nil)
	_ cursor.Resetter = (*CursorRepo)(nil)
)

// Load возвращает watermark курсора.
func (r *CursorRepo) Load(ctx context.Context, scope string, t domain.CursorType) (time.Time, bool, error) {
	var watermark time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT watermark FROM cursors WHERE scope = $1 AND cursor_type = $2
	`, scope, string(t)).Scan(&watermark)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load cursor: %w", err)
	}
	return watermark.UTC(), true, nil
}

// Save записывает watermark, не давая курсору уйти назад.
func (r *CursorRepo) Save(ctx context.Context, scope string, t domain.CursorType, watermark time.Time) error {
	result, err := r.pool.Exec(ctx, `
		INSERT INTO cursors (scope, cursor_type, watermark, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (scope, cursor_type) DO UPDATE
		SET watermark = EXCLUDED.watermark, updated_at = EXCLUDED.updated_at
		WHERE cursors.watermark <= EXCLUDED.watermark
	`, scope, string(t), watermark.UTC(), r.clock.Now())
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s/%s -> %s", cursor.ErrRegression, scope, t, watermark.UTC().Format(time.RFC3339))
	}
	return nil
}

// Advance атомарно сдвигает курсор from → to.
func (r *CursorRepo) Advance(ctx context.Context, scope string, t domain.CursorType, from, to time.Time) error {
	if err := cursor.CheckAdvance(from, to); err != nil {
		return err
	}

	result, err := r.pool.Exec(ctx, `
		INSERT INTO cursors (scope, cursor_type, watermark, updated_at)
		VALUES ($1, $2, $4, $5)
		ON CONFLICT (scope, cursor_type) DO UPDATE
		SET watermark = EXCLUDED.watermark, updated_at = EXCLUDED.updated_at
		WHERE cursors.watermark = $3
	`, scope, string(t), from.UTC(), to.UTC(), r.clock.Now())
	if err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	if result.RowsAffected() == 0 {
		return cursor.ErrCursorMoved
	}
	return nil
}

// List возвращает все курсоры.
func (r *CursorRepo) List(ctx context.Context) ([]domain.Cursor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT scope, cursor_type, watermark, updated_at
		FROM cursors
		ORDER BY scope, cursor_type
	`)
	if err != nil {
		return nil, fmt.Errorf("list cursors: %w", err)
	}
	defer rows.Close()

	var cursors []domain.Cursor
	for rows.Next() {
		var c domain.Cursor
		var typ string
		if err := rows.Scan(&c.Scope, &typ, &c.Watermark, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cursor: %w", err)
		}
		c.Type = domain.CursorType(typ)
		c.Watermark = c.Watermark.UTC()
		cursors = append(cursors, c)
	}
	return cursors, rows.Err()
}

// Reset выставляет курсор без проверки монотонности (операторский путь).
func (r *CursorRepo) Reset(ctx context.Context, scope string, t domain.CursorType, watermark time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO cursors (scope, cursor_type, watermark, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (scope, cursor_type) DO UPDATE
		SET watermark = EXCLUDED.watermark, updated_at = EXCLUDED.updated_at
	`, scope, string(t), watermark.UTC(), r.clock.Now())
	if err != nil {
		return fmt.Errorf("reset cursor: %w", err)
	}
	return nil
}

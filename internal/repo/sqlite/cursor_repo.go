package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/Escrow/internal/clock"
	"github.com/shaiso/Escrow/internal/cursor"
	"github.com/shaiso/Escrow/internal/domain"
)

// CursorRepo — cursor.Store поверх таблицы cursors.
type CursorRepo struct {
	db    *DB
	clock clock.Clock
}

// NewCursorRepo создаёт новый CursorRepo. c используется для updated_at.
func NewCursorRepo(db *DB, c clock.Clock) *CursorRepo {
	if c == nil {
		c = clock.System{}
	}
	return &CursorRepo{db: db, clock: c}
}

var (
	_ cursor.Store    = (*CursorRepo)(nil)
	_ cursor.Resetter = (*CursorRepo)(nil)
)

// Load реализует cursor.Store.
func (r *CursorRepo) Load(ctx context.Context, scope string, t domain.CursorType) (time.Time, bool, error) {
	var w int64
	err := r.db.db.QueryRowContext(ctx,
		`SELECT watermark FROM cursors WHERE scope = ? AND cursor_type = ?`,
		scope, string(t),
	).Scan(&w)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load cursor: %w", err)
	}
	return fromNanos(w), true, nil
}

// Save реализует cursor.Store.
func (r *CursorRepo) Save(ctx context.Context, scope string, t domain.CursorType, watermark time.Time) error {
	var n int64
	err := r.db.retryOp(ctx, func() error {
		res, err := r.db.db.ExecContext(ctx,
			`INSERT INTO cursors (scope, cursor_type, watermark, updated_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(scope, cursor_type) DO UPDATE SET
			   watermark = excluded.watermark,
			   updated_at = excluded.updated_at
			 WHERE cursors.watermark <= excluded.watermark`,
			scope, string(t), toNanos(watermark), toNanos(r.clock.Now()),
		)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s -> %s", cursor.ErrRegression, scope, t, watermark.UTC().Format(time.RFC3339))
	}
	return nil
}

// Advance реализует cursor.Store.
func (r *CursorRepo) Advance(ctx context.Context, scope string, t domain.CursorType, from, to time.Time) error {
	if err := cursor.CheckAdvance(from, to); err != nil {
		return err
	}

	var n int64
	err := r.db.retryOp(ctx, func() error {
		res, err := r.db.db.ExecContext(ctx,
			`INSERT INTO cursors (scope, cursor_type, watermark, updated_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(scope, cursor_type) DO UPDATE SET
			   watermark = excluded.watermark,
			   updated_at = excluded.updated_at
			 WHERE cursors.watermark = ?`,
			scope, string(t), toNanos(to), toNanos(r.clock.Now()), toNanos(from),
		)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	if n == 0 {
		return cursor.ErrCursorMoved
	}
	return nil
}

// List реализует cursor.Store.
func (r *CursorRepo) List(ctx context.Context) ([]domain.Cursor, error) {
	rows, err := r.db.db.QueryContext(ctx,
		`SELECT scope, cursor_type, watermark, updated_at FROM cursors ORDER BY scope, cursor_type`,
	)
	if err != nil {
		return nil, fmt.Errorf("list cursors: %w", err)
	}
	defer rows.Close()

	var cursors []domain.Cursor
	for rows.Next() {
		var c domain.Cursor
		var typ string
		var w, u int64
		if err := rows.Scan(&c.Scope, &typ, &w, &u); err != nil {
			return nil, fmt.Errorf("scan cursor: %w", err)
		}
		c.Type = domain.CursorType(typ)
		c.Watermark = fromNanos(w)
		c.UpdatedAt = fromNanos(u)
		cursors = append(cursors, c)
	}
	return cursors, rows.Err()
}

// Reset реализует cursor.Resetter.
func (r *CursorRepo) Reset(ctx context.Context, scope string, t domain.CursorType, watermark time.Time) error {
	err := r.db.retryOp(ctx, func() error {
		_, err := r.db.db.ExecContext(ctx,
			`INSERT INTO cursors (scope, cursor_type, watermark, updated_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(scope, cursor_type) DO UPDATE SET
			   watermark = excluded.watermark,
			   updated_at = excluded.updated_at`,
			scope, string(t), toNanos(watermark), toNanos(r.clock.Now()),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("reset cursor: %w", err)
	}
	return nil
}

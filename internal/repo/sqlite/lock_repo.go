package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/Escrow/internal/domain"
	"github.com/shaiso/Escrow/internal/lock"
)

// LockRepo — lock.Store поверх таблицы locks.
type LockRepo struct {
	db *DB
}

// NewLockRepo создаёт новый LockRepo.
func NewLockRepo(db *DB) *LockRepo {
	return &LockRepo{db: db}
}

var _ lock.Store = (*LockRepo)(nil)

// TryAcquire реализует lock.Store.
func (r *LockRepo) TryAcquire(ctx context.Context, l domain.Lock, now time.Time) (bool, error) {
	tx, err := r.db.db.BeginTx(ctx, nil)
	if err != nil {
		return false, asConflict("begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck // после Commit это no-op

	var expiresAt int64
	err = tx.QueryRowContext(ctx,
		`SELECT expires_at FROM locks WHERE name = ? AND scope = ?`,
		l.Name, l.Scope,
	).Scan(&expiresAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return false, asConflict("select lock", err)
	case toNanos(now) < expiresAt:
		return false, nil
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO locks (name, scope, holder_token, acquired_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name, scope) DO UPDATE SET
		   holder_token = excluded.holder_token,
		   acquired_at = excluded.acquired_at,
		   expires_at = excluded.expires_at`,
		l.Name, l.Scope, l.HolderToken, toNanos(l.AcquiredAt), toNanos(l.ExpiresAt),
	)
	if err != nil {
		return false, asConflict("write lock", err)
	}

	if err := tx.Commit(); err != nil {
		return false, asConflict("commit lock", err)
	}
	return true, nil
}

// Release реализует lock.Store.
func (r *LockRepo) Release(ctx context.Context, name, scope, token string) (bool, error) {
	res, err := r.db.db.ExecContext(ctx,
		`DELETE FROM locks WHERE name = ? AND scope = ? AND holder_token = ?`,
		name, scope, token,
	)
	if err != nil {
		return false, asConflict("delete lock", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Get реализует lock.Store.
func (r *LockRepo) Get(ctx context.Context, name, scope string) (*domain.Lock, error) {
	row := r.db.db.QueryRowContext(ctx,
		`SELECT name, scope, holder_token, acquired_at, expires_at
		 FROM locks WHERE name = ? AND scope = ?`,
		name, scope,
	)
	l, err := scanLock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, lock.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lock: %w", err)
	}
	return l, nil
}

// List реализует lock.Store.
func (r *LockRepo) List(ctx context.Context) ([]domain.Lock, error) {
	rows, err := r.db.db.QueryContext(ctx,
		`SELECT name, scope, holder_token, acquired_at, expires_at
		 FROM locks ORDER BY scope, name`,
	)
	if err != nil {
		return nil, fmt.Errorf("list locks: %w", err)
	}
	defer rows.Close()

	var locks []domain.Lock
	for rows.Next() {
		l, err := scanLock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lock: %w", err)
		}
		locks = append(locks, *l)
	}
	return locks, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLock(s scanner) (*domain.Lock, error) {
	var l domain.Lock
	var acquired, expires int64
	if err := s.Scan(&l.Name, &l.Scope, &l.HolderToken, &acquired, &expires); err != nil {
		return nil, err
	}
	l.AcquiredAt = fromNanos(acquired)
	l.ExpiresAt = fromNanos(expires)
	return &l, nil
}

package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Escrow/internal/domain"
	"github.com/shaiso/Escrow/internal/lock"
)

// LockRepo — lock.Store поверх таблицы locks.
type LockRepo struct {
	pool *pgxpool.Pool
}

// NewLockRepo создаёт новый LockRepo.
func NewLockRepo(pool *pgxpool.Pool) *LockRepo {
	return &LockRepo{pool: pool}
}

var _ lock.Store = (*LockRepo)(nil)

// TryAcquire читает запись под FOR UPDATE и перезаписывает её,
// если записи нет или она истекла к моменту now.
//
// Два конкурентных INSERT одной отсутствующей записи дают
// unique_violation у проигравшего — это ErrConflict, менеджер повторит попытку
// и увидит живую блокировку.
func (r *LockRepo) TryAcquire(ctx context.Context, l domain.Lock, now time.Time) (acquired bool, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil || !acquired {
			_ = tx.Rollback(ctx)
		}
	}()

	var expiresAt time.Time
	err = tx.QueryRow(ctx, `
		SELECT expires_at
		FROM locks
		WHERE name = $1 AND scope = $2
		FOR UPDATE
	`, l.Name, l.Scope).Scan(&expiresAt)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		_, err = tx.Exec(ctx, `
			INSERT INTO locks (name, scope, holder_token, acquired_at, expires_at)
			VALUES ($1, $2, $3, $4, $5)
		`, l.Name, l.Scope, l.HolderToken, l.AcquiredAt, l.ExpiresAt)
		if err != nil {
			return false, wrapLockErr("insert lock", err)
		}
	case err != nil:
		return false, wrapLockErr("select lock", err)
	case now.Before(expiresAt):
		return false, nil
	default:
		// Истёкшая запись перезаписывается, а не удаляется.
		_, err = tx.Exec(ctx, `
			UPDATE locks
			SET holder_token = $3, acquired_at = $4, expires_at = $5
			WHERE name = $1 AND scope = $2
		`, l.Name, l.Scope, l.HolderToken, l.AcquiredAt, l.ExpiresAt)
		if err != nil {
			return false, wrapLockErr("overwrite lock", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return false, wrapLockErr("commit lock", err)
	}
	return true, nil
}

// Release удаляет запись, только если токен совпадает.
func (r *LockRepo) Release(ctx context.Context, name, scope, token string) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM locks
		WHERE name = $1 AND scope = $2 AND holder_token = $3
	`, name, scope, token)
	if err != nil {
		return false, wrapLockErr("delete lock", err)
	}
	return result.RowsAffected() > 0, nil
}

// Get возвращает запись блокировки.
func (r *LockRepo) Get(ctx context.Context, name, scope string) (*domain.Lock, error) {
	var l domain.Lock
	err := r.pool.QueryRow(ctx, `
		SELECT name, scope, holder_token, acquired_at, expires_at
		FROM locks
		WHERE name = $1 AND scope = $2
	`, name, scope).Scan(&l.Name, &l.Scope, &l.HolderToken, &l.AcquiredAt, &l.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, lock.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lock: %w", err)
	}
	return &l, nil
}

// List возвращает все записи блокировок, включая истёкшие.
func (r *LockRepo) List(ctx context.Context) ([]domain.Lock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT name, scope, holder_token, acquired_at, expires_at
		FROM locks
		ORDER BY scope, name
	`)
	if err != nil {
		return nil, fmt.Errorf("list locks: %w", err)
	}
	defer rows.Close()

	var locks []domain.Lock
	for rows.Next() {
		var l domain.Lock
		if err := rows.Scan(&l.Name, &l.Scope, &l.HolderToken, &l.AcquiredAt, &l.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan lock: %w", err)
		}
		locks = append(locks, l)
	}
	return locks, rows.Err()
}

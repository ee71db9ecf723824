package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/Escrow/internal/domain"
)

// RegistryRepo читает объекты реестра для снимков депозита.
type RegistryRepo struct {
	db *DB
}

// NewRegistryRepo создаёт новый RegistryRepo.
func NewRegistryRepo(db *DB) *RegistryRepo {
	return &RegistryRepo{db: db}
}

// Snapshot считает объекты tld, живые на момент at.
func (r *RegistryRepo) Snapshot(ctx context.Context, tld string, at time.Time) (domain.ObjectCounts, error) {
	rows, err := r.db.db.QueryContext(ctx,
		`SELECT kind, COUNT(*) FROM registry_objects
		 WHERE tld = ? AND created_at <= ? AND (deleted_at IS NULL OR deleted_at > ?)
		 GROUP BY kind`,
		tld, toNanos(at), toNanos(at),
	)
	if err != nil {
		return domain.ObjectCounts{}, fmt.Errorf("snapshot %s: %w", tld, err)
	}
	defer rows.Close()

	var counts domain.ObjectCounts
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return domain.ObjectCounts{}, fmt.Errorf("scan snapshot: %w", err)
		}
		counts.Add(kind, n)
	}
	return counts, rows.Err()
}

// Put добавляет объект реестра. deletedAt == nil — объект жив.
func (r *RegistryRepo) Put(ctx context.Context, tld, kind, repoID string, createdAt time.Time, deletedAt *time.Time) error {
	var deleted any
	if deletedAt != nil {
		deleted = toNanos(*deletedAt)
	}
	err := r.db.retryOp(ctx, func() error {
		_, err := r.db.db.ExecContext(ctx,
			`INSERT INTO registry_objects (tld, kind, repo_id, created_at, deleted_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(tld, kind, repo_id) DO UPDATE SET
			   created_at = excluded.created_at,
			   deleted_at = excluded.deleted_at`,
			tld, kind, repoID, toNanos(createdAt), deleted,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("put registry object: %w", err)
	}
	return nil
}

package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Escrow/internal/domain"
)

// RegistryRepo читает объекты реестра для снимков депозита.
type RegistryRepo struct {
	pool *pgxpool.Pool
}

// NewRegistryRepo создаёт новый RegistryRepo.
func NewRegistryRepo(pool *pgxpool.Pool) *RegistryRepo {
	return &RegistryRepo{pool: pool}
}

// Snapshot считает объекты tld, живые на момент at:
// созданные не позже at и не удалённые к at.
func (r *RegistryRepo) Snapshot(ctx context.Context, tld string, at time.Time) (domain.ObjectCounts, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT kind, COUNT(*)
		FROM registry_objects
		WHERE tld = $1
		  AND created_at <= $2
		  AND (deleted_at IS NULL OR deleted_at > $2)
		GROUP BY kind
	`, tld, at.UTC())
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

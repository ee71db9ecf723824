package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shaiso/Escrow/internal/domain"
	"github.com/shaiso/Escrow/internal/repo"
)

// DepositRepo — хранилище записей о депозитах.
type DepositRepo struct {
	db *DB
}

// NewDepositRepo создаёт новый DepositRepo.
func NewDepositRepo(db *DB) *DepositRepo {
	return &DepositRepo{db: db}
}

// NextRevision возвращает следующий свободный номер ревизии для (tld, watermark, mode).
func (r *DepositRepo) NextRevision(ctx context.Context, tld string, watermark time.Time, mode domain.DepositMode) (int, error) {
	var next int
	err := r.db.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(revision) + 1, 0) FROM deposits
		 WHERE tld = ? AND watermark = ? AND mode = ?`,
		tld, toNanos(watermark), string(mode),
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next revision: %w", err)
	}
	return next, nil
}

// Create записывает депозит. Повтор той же ревизии — repo.ErrAlreadyExists.
func (r *DepositRepo) Create(ctx context.Context, d *domain.Deposit) error {
	err := r.db.retryOp(ctx, func() error {
		_, err := r.db.db.ExecContext(ctx,
			`INSERT INTO deposits (tld, watermark, mode, revision, file_name,
			                       domains, contacts, hosts, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.TLD,
			toNanos(d.Watermark),
			string(d.Mode),
			d.Revision,
			d.FileName,
			d.Objects.Domains,
			d.Objects.Contacts,
			d.Objects.Hosts,
			toNanos(d.CreatedAt),
		)
		return err
	})
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: deposit %s", repo.ErrAlreadyExists, d.FileName)
	}
	if err != nil {
		return fmt.Errorf("insert deposit: %w", err)
	}
	return nil
}

// List возвращает депозиты, новые первыми. Пустой tld — все зоны.
func (r *DepositRepo) List(ctx context.Context, tld string, limit int) ([]domain.Deposit, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.db.QueryContext(ctx,
		`SELECT tld, watermark, mode, revision, file_name, domains, contacts, hosts, created_at
		 FROM deposits
		 WHERE (? = '' OR tld = ?)
		 ORDER BY watermark DESC, revision DESC
		 LIMIT ?`,
		tld, tld, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list deposits: %w", err)
	}
	defer rows.Close()

	var deposits []domain.Deposit
	for rows.Next() {
		var d domain.Deposit
		var mode string
		var w, created int64
		err := rows.Scan(&d.TLD, &w, &mode, &d.Revision, &d.FileName,
			&d.Objects.Domains, &d.Objects.Contacts, &d.Objects.Hosts, &created)
		if err != nil {
			return nil, fmt.Errorf("scan deposit: %w", err)
		}
		d.Mode = domain.DepositMode(mode)
		d.Watermark = fromNanos(w)
		d.CreatedAt = fromNanos(created)
		deposits = append(deposits, d)
	}
	return deposits, rows.Err()
}

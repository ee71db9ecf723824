package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Escrow/internal/domain"
)

// DepositRepo — репозиторий для работы с deposits.
type DepositRepo struct {
	pool *pgxpool.Pool
}

// NewDepositRepo создаёт новый DepositRepo.
func NewDepositRepo(pool *pgxpool.Pool) *DepositRepo {
	return &DepositRepo{pool: pool}
}

// NextRevision возвращает следующий свободный номер ревизии для (tld, watermark, mode).
func (r *DepositRepo) NextRevision(ctx context.Context, tld string, watermark time.Time, mode domain.DepositMode) (int, error) {
	var next int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(revision) + 1, 0)
		FROM deposits
		WHERE tld = $1 AND watermark = $2 AND mode = $3
	`, tld, watermark.UTC(), string(mode)).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next revision: %w", err)
	}
	return next, nil
}

// Create записывает депозит. Повтор той же ревизии — ErrAlreadyExists.
func (r *DepositRepo) Create(ctx context.Context, d *domain.Deposit) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO deposits (tld, watermark, mode, revision, file_name,
		                      domains, contacts, hosts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		d.TLD,
		d.Watermark.UTC(),
		string(d.Mode),
		d.Revision,
		d.FileName,
		d.Objects.Domains,
		d.Objects.Contacts,
		d.Objects.Hosts,
		d.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: deposit %s", ErrAlreadyExists, d.FileName)
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

	rows, err := r.pool.Query(ctx, `
		SELECT tld, watermark, mode, revision, file_name,
		       domains, contacts, hosts, created_at
		FROM deposits
		WHERE ($1 = '' OR tld = $1)
		ORDER BY watermark DESC, revision DESC
		LIMIT $2
	`, tld, limit)
	if err != nil {
		return nil, fmt.Errorf("list deposits: %w", err)
	}
	defer rows.Close()

	var deposits []domain.Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, err
		}
		deposits = append(deposits, *d)
	}
	return deposits, rows.Err()
}

func scanDeposit(rows pgx.Rows) (*domain.Deposit, error) {
	var d domain.Deposit
	var mode string
	err := rows.Scan(
		&d.TLD,
		&d.Watermark,
		&mode,
		&d.Revision,
		&d.FileName,
		&d.Objects.Domains,
		&d.Objects.Contacts,
		&d.Objects.Hosts,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan deposit: %w", err)
	}
	d.Mode = domain.DepositMode(mode)
	d.Watermark = d.Watermark.UTC()
	return &d, nil
}

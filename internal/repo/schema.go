package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema — DDL хранилища escrow. Все операторы идемпотентны.
const schema = `
CREATE TABLE IF NOT EXISTS locks (
	name         TEXT        NOT NULL,
	scope        TEXT        NOT NULL,
	holder_token TEXT        NOT NULL,
	acquired_at  TIMESTAMPTZ NOT NULL,
	expires_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (name, scope)
);

CREATE TABLE IF NOT EXISTS cursors (
	scope       TEXT        NOT NULL,
	cursor_type TEXT        NOT NULL,
	watermark   TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (scope, cursor_type)
);

CREATE TABLE IF NOT EXISTS deposits (
	tld        TEXT        NOT NULL,
	watermark  TIMESTAMPTZ NOT NULL,
	mode       TEXT        NOT NULL,
	revision   INTEGER     NOT NULL,
	file_name  TEXT        NOT NULL,
	domains    BIGINT      NOT NULL DEFAULT 0,
	contacts   BIGINT      NOT NULL DEFAULT 0,
	hosts      BIGINT      NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tld, watermark, mode, revision)
);

CREATE TABLE IF NOT EXISTS registry_objects (
	tld        TEXT        NOT NULL,
	kind       TEXT        NOT NULL CHECK (kind IN ('domain', 'contact', 'host')),
	repo_id    TEXT        NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	deleted_at TIMESTAMPTZ,
	PRIMARY KEY (tld, kind, repo_id)
);

CREATE INDEX IF NOT EXISTS idx_registry_objects_tld_created
	ON registry_objects (tld, created_at);
`

// Migrate создаёт таблицы, если их нет.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

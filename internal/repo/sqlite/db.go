// Package sqlite — встроенное хранилище escrow на SQLite (modernc.org/sqlite, без cgo).
//
// Подходит для одиночного узла и разработки: STORE_DRIVER=sqlite.
// Реализует те же контракты, что и Postgres-репозитории из internal/repo:
// lock.Store, cursor.Store (+ Resetter), хранилище депозитов и снимки реестра.
//
// Время хранится как INTEGER (unix nanoseconds, UTC): сравнение в SQL
// тогда числовое, а равенство watermark в CAS точное.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shaiso/Escrow/internal/lock"
)

// DB — соединение с файлом SQLite.
type DB struct {
	db    *sql.DB
	retry lock.RetryConfig
}

// Open открывает (или создаёт) базу по пути path и применяет схему.
//
// Транзакции открываются как BEGIN IMMEDIATE: писатель берёт
// блокировку базы в начале транзакции, поэтому чтение-проверка-запись
// внутри неё сериализуется.
func Open(ctx context.Context, path string) (*DB, error) {
	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_txlock=immediate"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	d := newDB(sqlDB)
	if err := d.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return d, nil
}

func newDB(sqlDB *sql.DB) *DB {
	return &DB{db: sqlDB, retry: defaultRetryConfig}
}

// Close закрывает соединение.
func (d *DB) Close() error { return d.db.Close() }

// Ping проверяет доступность базы.
func (d *DB) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

const schema = `
CREATE TABLE IF NOT EXISTS locks (
	name         TEXT    NOT NULL,
	scope        TEXT    NOT NULL,
	holder_token TEXT    NOT NULL,
	acquired_at  INTEGER NOT NULL,
	expires_at   INTEGER NOT NULL,
	PRIMARY KEY (name, scope)
);

CREATE TABLE IF NOT EXISTS cursors (
	scope       TEXT    NOT NULL,
	cursor_type TEXT    NOT NULL,
	watermark   INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL,
	PRIMARY KEY (scope, cursor_type)
);

CREATE TABLE IF NOT EXISTS deposits (
	tld        TEXT    NOT NULL,
	watermark  INTEGER NOT NULL,
	mode       TEXT    NOT NULL,
	revision   INTEGER NOT NULL,
	file_name  TEXT    NOT NULL,
	domains    INTEGER NOT NULL DEFAULT 0,
	contacts   INTEGER NOT NULL DEFAULT 0,
	hosts      INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (tld, watermark, mode, revision)
);

CREATE TABLE IF NOT EXISTS registry_objects (
	tld        TEXT    NOT NULL,
	kind       TEXT    NOT NULL CHECK (kind IN ('domain', 'contact', 'host')),
	repo_id    TEXT    NOT NULL,
	created_at INTEGER NOT NULL,
	deleted_at INTEGER,
	PRIMARY KEY (tld, kind, repo_id)
);
`

// Migrate создаёт таблицы, если их нет.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func toNanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

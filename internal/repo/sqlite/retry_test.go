package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/shaiso/Escrow/internal/domain"
	"github.com/shaiso/Escrow/internal/lock"
)

// sqliteErr имитирует *sqlite.Error: драйвер отдаёт код через Code().
type sqliteErr int

func (e sqliteErr) Error() string { return fmt.Sprintf("sqlite error (%d)", int(e)) }
func (e sqliteErr) Code() int     { return int(e) }

func TestIsTransientErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("syntax error"), false},
		{"text mentioning busy is not enough", errors.New("database is locked (5) (SQLITE_BUSY)"), false},
		{"text with bare code", errors.New("value out of range (6)"), false},
		{"SQLITE_BUSY", sqliteErr(sqlite3.SQLITE_BUSY), true},
		{"SQLITE_LOCKED", sqliteErr(sqlite3.SQLITE_LOCKED), true},
		{"SQLITE_BUSY_SNAPSHOT", sqliteErr(sqlite3.SQLITE_BUSY_SNAPSHOT), true},
		{"SQLITE_LOCKED_SHAREDCACHE", sqliteErr(sqlite3.SQLITE_LOCKED_SHAREDCACHE), true},
		{"SQLITE_IOERR_SHORT_READ", sqliteErr(sqlite3.SQLITE_IOERR_SHORT_READ), true},
		{"SQLITE_IOERR", sqliteErr(sqlite3.SQLITE_IOERR), false},
		{"SQLITE_CONSTRAINT", sqliteErr(sqlite3.SQLITE_CONSTRAINT), false},
		{"wrapped busy", fmt.Errorf("insert: %w", sqliteErr(sqlite3.SQLITE_BUSY)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransientErr(tt.err); got != tt.want {
				t.Errorf("isTransientErr(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryOp(t *testing.T) {
	db := newDB(nil)
	db.retry = lock.RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	calls := 0
	err := db.retryOp(context.Background(), func() error {
		calls++
		if calls < 3 {
			return sqliteErr(sqlite3.SQLITE_BUSY)
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("expected success on 3rd call, got %v after %d", err, calls)
	}

	calls = 0
	err = db.retryOp(context.Background(), func() error {
		calls++
		return sqliteErr(sqlite3.SQLITE_BUSY)
	})
	if err == nil || calls != 4 {
		t.Errorf("expected failure after 4 calls, got %v after %d", err, calls)
	}

	calls = 0
	err = db.retryOp(context.Background(), func() error {
		calls++
		return sqliteErr(sqlite3.SQLITE_CONSTRAINT)
	})
	if err == nil || calls != 1 {
		t.Errorf("constraint errors must not be retried, got %v after %d", err, calls)
	}
}

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	db := newDB(sqlDB)
	db.retry = lock.RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	return db, mock
}

func TestLockRepo_BusyIsConflict(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewLockRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT expires_at FROM locks").
		WithArgs("rde example", "example").
		WillReturnError(sqliteErr(sqlite3.SQLITE_BUSY))
	mock.ExpectRollback()

	l := domain.Lock{Name: "rde example", Scope: "example", HolderToken: "a", AcquiredAt: t0, ExpiresAt: t0.Add(time.Hour)}
	_, err := r.TryAcquire(context.Background(), l, t0)
	if !errors.Is(err, lock.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLockRepo_OtherErrorsAreNotConflict(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewLockRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT expires_at FROM locks").
		WillReturnError(errors.New("no such table: locks"))
	mock.ExpectRollback()

	l := domain.Lock{Name: "rde example", Scope: "example", HolderToken: "a", AcquiredAt: t0, ExpiresAt: t0.Add(time.Hour)}
	_, err := r.TryAcquire(context.Background(), l, t0)
	if err == nil || errors.Is(err, lock.ErrConflict) {
		t.Fatalf("expected plain error, got %v", err)
	}
}

func TestLockRepo_LiveLockNotOverwritten(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewLockRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT expires_at FROM locks").
		WithArgs("rde example", "example").
		WillReturnRows(sqlmock.NewRows([]string{"expires_at"}).AddRow(toNanos(t0.Add(time.Second))))
	mock.ExpectRollback()

	l := domain.Lock{Name: "rde example", Scope: "example", HolderToken: "a", AcquiredAt: t0, ExpiresAt: t0.Add(time.Hour)}
	ok, err := r.TryAcquire(context.Background(), l, t0)
	if err != nil || ok {
		t.Fatalf("expected busy, got %v, %v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCursorRepo_AdvanceRetriesBusy(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewCursorRepo(db, nil)
	from := time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO cursors").
		WillReturnError(sqliteErr(sqlite3.SQLITE_BUSY))
	mock.ExpectExec("INSERT INTO cursors").
		WithArgs("example", "RDE_STAGING", toNanos(from.Add(24*time.Hour)), sqlmock.AnyArg(), toNanos(from)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := r.Advance(context.Background(), "example", domain.CursorRDEStaging, from, from.Add(24*time.Hour)); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

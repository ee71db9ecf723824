package repo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shaiso/Escrow/internal/lock"
)

func TestWrapLockErr(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		conflict bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"lock not available", &pgconn.PgError{Code: "55P03"}, true},
		{"wrapped serialization", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "40001"}), true},
		{"undefined table", &pgconn.PgError{Code: "42P01"}, false},
		{"plain", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapLockErr("insert lock", tt.err)
			if got := errors.Is(err, lock.ErrConflict); got != tt.conflict {
				t.Errorf("errors.Is(ErrConflict) = %v, want %v", got, tt.conflict)
			}
			if !errors.Is(err, tt.err) {
				t.Error("original error should be preserved")
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Error("23505 should be a unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "40001"}) {
		t.Error("40001 is not a unique violation")
	}
	if isUniqueViolation(nil) {
		t.Error("nil is not a unique violation")
	}
}

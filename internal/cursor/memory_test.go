package cursor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/shaiso/Escrow/internal/clock"
	"github.com/shaiso/Escrow/internal/domain"
)

var day0 = time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)

func TestLoadOrDefault_AbsentIsStartOfDay(t *testing.T) {
	s := NewMemoryStore(clock.NewFake(day0))
	now := day0.Add(15*time.Hour + 3*time.Minute)

	got, err := LoadOrDefault(context.Background(), s, "example", domain.CursorRDEStaging, now)
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if !got.Equal(day0) {
		t.Errorf("expected %v, got %v", day0, got)
	}
}

func TestAdvance(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(clock.NewFake(day0))

	// Курсора нет — Advance создаёт его.
	if err := s.Advance(ctx, "example", domain.CursorRDEStaging, day0, day0.Add(24*time.Hour)); err != nil {
		t.Fatalf("Advance on absent cursor: %v", err)
	}

	// Устаревшее from.
	err := s.Advance(ctx, "example", domain.CursorRDEStaging, day0, day0.Add(48*time.Hour))
	if !errors.Is(err, ErrCursorMoved) {
		t.Errorf("expected ErrCursorMoved, got %v", err)
	}

	// Назад.
	err = s.Advance(ctx, "example", domain.CursorRDEStaging, day0.Add(24*time.Hour), day0)
	if !errors.Is(err, ErrRegression) {
		t.Errorf("expected ErrRegression, got %v", err)
	}

	w, ok, _ := s.Load(ctx, "example", domain.CursorRDEStaging)
	if !ok || !w.Equal(day0.Add(24*time.Hour)) {
		t.Errorf("expected cursor at day0+24h, got %v (ok=%v)", w, ok)
	}
}

func TestSave_RejectsRegression(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(clock.NewFake(day0))

	if err := s.Save(ctx, "example", domain.CursorBRDA, day0); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, "example", domain.CursorBRDA, day0.Add(-time.Hour)); !errors.Is(err, ErrRegression) {
		t.Errorf("expected ErrRegression, got %v", err)
	}
	if err := s.Save(ctx, "example", domain.CursorBRDA, day0); err != nil {
		t.Errorf("saving the same value should be allowed, got %v", err)
	}
}

func TestReset_AllowsRewind(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(clock.NewFake(day0))

	_ = s.Save(ctx, "example", domain.CursorBRDA, day0)
	if err := s.Reset(ctx, "example", domain.CursorBRDA, day0.Add(-72*time.Hour)); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	w, _, _ := s.Load(ctx, "example", domain.CursorBRDA)
	if !w.Equal(day0.Add(-72 * time.Hour)) {
		t.Errorf("expected rewound cursor, got %v", w)
	}
}

func TestList_SortedAndIsolated(t *testing.T) {
	ctx := context.Background()
	fc := clock.NewFake(day0.Add(time.Hour))
	s := NewMemoryStore(fc)

	_ = s.Save(ctx, "zz", domain.CursorRDEStaging, day0)
	_ = s.Save(ctx, "aa", domain.CursorRDEStaging, day0)
	_ = s.Save(ctx, "aa", domain.CursorBRDA, day0.Add(24*time.Hour))

	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 cursors, got %d", len(got))
	}
	if got[0].Scope != "aa" || got[0].Type != domain.CursorBRDA || got[2].Scope != "zz" {
		t.Errorf("unexpected order: %+v", got)
	}
	if !got[0].UpdatedAt.Equal(fc.Now()) {
		t.Errorf("UpdatedAt should come from the clock, got %v", got[0].UpdatedAt)
	}
}

func TestMemoryStore_Property_Monotonic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 60
	properties := gopter.NewProperties(parameters)

	properties.Property("Save/Advance never move the cursor backwards", prop.ForAll(
		func(offsets []int) bool {
			ctx := context.Background()
			s := NewMemoryStore(clock.NewFake(day0))

			var last time.Time
			var have bool
			for i, off := range offsets {
				w := day0.Add(time.Duration(off) * time.Hour)
				if i%2 == 0 {
					_ = s.Save(ctx, "x", domain.CursorRDEStaging, w)
				} else {
					cur, _, _ := s.Load(ctx, "x", domain.CursorRDEStaging)
					_ = s.Advance(ctx, "x", domain.CursorRDEStaging, cur, w)
				}

				got, ok, err := s.Load(ctx, "x", domain.CursorRDEStaging)
				if err != nil {
					return false
				}
				if have && got.Before(last) {
					return false
				}
				if ok {
					last, have = got, true
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(-100, 100)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestParseCursorType(t *testing.T) {
	for _, ct := range CursorTypes() {
		got, err := ParseCursorType(ct.String())
		if err != nil || got != ct {
			t.Errorf("ParseCursorType(%q) = %q, %v", ct, got, err)
		}
	}
	if _, err := ParseCursorType("rde_staging"); err == nil {
		t.Error("cursor types are case sensitive")
	}
}

func TestCursor_IsDueAndLag(t *testing.T) {
	startOfToday := time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		watermark time.Time
		due       bool
		lag       time.Duration
	}{
		{"three days behind", startOfToday.Add(-72 * time.Hour), true, 72 * time.Hour},
		{"exactly today", startOfToday, true, 0},
		{"one nanosecond ahead", startOfToday.Add(time.Nanosecond), false, 0},
		{"tomorrow", startOfToday.Add(24 * time.Hour), false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Cursor{Watermark: tt.watermark}
			if got := c.IsDue(startOfToday); got != tt.due {
				t.Errorf("IsDue = %v, want %v", got, tt.due)
			}
			if got := c.Lag(startOfToday); got != tt.lag {
				t.Errorf("Lag = %v, want %v", got, tt.lag)
			}
		})
	}
}

func TestLock_IsExpired(t *testing.T) {
	exp := time.Date(2026, 5, 20, 11, 0, 0, 0, time.UTC)
	l := Lock{HolderToken: "a", ExpiresAt: exp}

	if l.IsExpired(exp.Add(-time.Millisecond)) {
		t.Error("lock should be live before ExpiresAt")
	}
	if !l.IsExpired(exp) {
		t.Error("lock should be expired at ExpiresAt")
	}
	if !l.HeldBy("a") || l.HeldBy("b") {
		t.Error("HeldBy should compare tokens")
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		o      Outcome
		retry  bool
		benign bool
	}{
		{OutcomeSuccess, false, true},
		{OutcomeAlreadyDone, false, true},
		{OutcomeLockBusy, true, true},
		{OutcomeTaskFailure, true, false},
	}
	for _, tt := range tests {
		if got := tt.o.ShouldRetry(); got != tt.retry {
			t.Errorf("%s.ShouldRetry() = %v", tt.o, got)
		}
		if got := tt.o.IsBenign(); got != tt.benign {
			t.Errorf("%s.IsBenign() = %v", tt.o, got)
		}
	}
}

func TestDepositFileName(t *testing.T) {
	w := time.Date(2026, 5, 17, 0, 0, 0, 0, time.UTC)

	if got := DepositFileName("example", w, DepositModeFull, 0); got != "example_2026-05-17_full_S1_R0.xml" {
		t.Errorf("unexpected full name %q", got)
	}
	if got := DepositFileName("example", w, DepositModeThin, 2); got != "example_2026-05-17_thin_S1_R2.xml" {
		t.Errorf("unexpected thin name %q", got)
	}

	// Зона не влияет на дату.
	local := w.In(time.FixedZone("UTC+3", 3*3600))
	if got := DepositFileName("example", local, DepositModeFull, 0); got != "example_2026-05-17_full_S1_R0.xml" {
		t.Errorf("file name should use UTC date, got %q", got)
	}
}

func TestParseDepositMode(t *testing.T) {
	for in, want := range map[string]DepositMode{"FULL": DepositModeFull, "thin": DepositModeThin} {
		got, err := ParseDepositMode(in)
		if err != nil || got != want {
			t.Errorf("ParseDepositMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseDepositMode("partial"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestEvent_JSON(t *testing.T) {
	at := time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)
	w := time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)

	events := []Event{
		NewCompletedEvent("rde", "example", at, CompletedEvent{Watermark: w, NextWatermark: w.Add(24 * time.Hour), Duration: 1.5}),
		NewFailedEvent("rde", "example", at, FailedEvent{Watermark: w, Error: "disk full"}),
		NewSkippedEvent("brda", "example", at, SkippedEvent{Outcome: OutcomeLockBusy, Watermark: w}),
	}

	for _, ev := range events {
		t.Run(string(ev.Kind), func(t *testing.T) {
			data, err := json.Marshal(ev)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if !strings.Contains(string(data), `"payload":{`) {
				t.Errorf("payload should be nested, got %s", data)
			}

			var got Event
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if got.Kind != ev.Kind || got.Task != ev.Task || got.TLD != ev.TLD || !got.At.Equal(ev.At) {
				t.Errorf("header mismatch: %+v", got)
			}

			switch ev.Kind {
			case EventCompleted:
				if got.Completed == nil || got.Completed.Duration != 1.5 || !got.Completed.NextWatermark.Equal(w.Add(24*time.Hour)) {
					t.Errorf("completed payload mismatch: %+v", got.Completed)
				}
			case EventFailed:
				if got.Failed == nil || got.Failed.Error != "disk full" {
					t.Errorf("failed payload mismatch: %+v", got.Failed)
				}
			case EventSkipped:
				if got.Skipped == nil || got.Skipped.Outcome != OutcomeLockBusy {
					t.Errorf("skipped payload mismatch: %+v", got.Skipped)
				}
			}
		})
	}
}

func TestEvent_UnmarshalUnknownKind(t *testing.T) {
	var ev Event
	err := json.Unmarshal([]byte(`{"kind":"escrow.exploded","task":"rde","payload":{}}`), &ev)
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

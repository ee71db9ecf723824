package escrow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/Escrow/internal/clock"
	"github.com/shaiso/Escrow/internal/cursor"
	"github.com/shaiso/Escrow/internal/domain"
	"github.com/shaiso/Escrow/internal/lock"
	"github.com/shaiso/Escrow/internal/runner"
	"github.com/shaiso/Escrow/internal/telemetry"
)

var now = time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Catalog ---

func TestDefaultJobsAreValid(t *testing.T) {
	c, err := NewCatalog(DefaultJobs([]string{"example", "test", "example"}))
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	jobs := c.Jobs()
	if len(jobs) != 2 || jobs[0].Name != "brda" || jobs[1].Name != "rde" {
		t.Fatalf("unexpected jobs %+v", jobs)
	}
	if got := jobs[1].TLDs; len(got) != 2 || got[0] != "example" || got[1] != "test" {
		t.Errorf("tlds should be sorted and deduplicated, got %v", got)
	}

	rde, err := c.Lookup("rde")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if rde.CursorType != domain.CursorRDEStaging || rde.Interval != 24*time.Hour || rde.Mode != domain.DepositModeFull {
		t.Errorf("unexpected rde job %+v", rde)
	}

	if _, err := c.Lookup("icann"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("expected ErrUnknownJob, got %v", err)
	}
}

func TestJobValidate(t *testing.T) {
	valid := DefaultJobs([]string{"example"})[0]

	tests := []struct {
		name   string
		mutate func(j *Job)
	}{
		{"empty name", func(j *Job) { j.Name = "" }},
		{"name with space", func(j *Job) { j.Name = "r de" }},
		{"bad cursor", func(j *Job) { j.CursorType = "NOPE" }},
		{"bad mode", func(j *Job) { j.Mode = "PARTIAL" }},
		{"zero interval", func(j *Job) { j.Interval = 0 }},
		{"zero timeout", func(j *Job) { j.Timeout = 0 }},
		{"bad cron", func(j *Job) { j.Cron = "every day" }},
		{"no tlds", func(j *Job) { j.TLDs = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := valid
			j.TLDs = []string{"example"}
			tt.mutate(&j)
			if err := j.Validate(); !errors.Is(err, ErrInvalidJob) {
				t.Errorf("expected ErrInvalidJob, got %v", err)
			}
		})
	}

	dup := []Job{valid, valid}
	if _, err := NewCatalog(dup); !errors.Is(err, ErrInvalidJob) {
		t.Errorf("duplicate names should fail, got %v", err)
	}
}

// --- Rendering ---

func TestRenderDeposit_Deterministic(t *testing.T) {
	h := DepositHeader{
		TLD:       "example",
		Watermark: time.Date(2026, 5, 17, 0, 0, 0, 0, time.UTC),
		Mode:      domain.DepositModeFull,
		Revision:  1,
		Objects:   domain.ObjectCounts{Domains: 10, Contacts: 4, Hosts: 2},
	}

	a, err := RenderDeposit(h)
	if err != nil {
		t.Fatalf("RenderDeposit: %v", err)
	}
	b, _ := RenderDeposit(h)
	if string(a) != string(b) {
		t.Error("rendering must be deterministic")
	}

	s := string(a)
	for _, want := range []string{
		`<deposit xmlns="urn:ietf:params:xml:ns:rde-1.0" type="FULL"`,
		`resend="1"`,
		`<watermark>2026-05-17T00:00:00Z</watermark>`,
		`<tld>example</tld>`,
		`<count uri="urn:ietf:params:xml:ns:rdeDomain-1.0">10</count>`,
		`<count uri="urn:ietf:params:xml:ns:rdeHost-1.0">2</count>`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q:\n%s", want, s)
		}
	}
}

func TestRenderDeposit_ThinHasDomainsOnly(t *testing.T) {
	out, err := RenderDeposit(DepositHeader{
		TLD:       "example",
		Watermark: time.Date(2026, 5, 17, 0, 0, 0, 0, time.UTC),
		Mode:      domain.DepositModeThin,
		Objects:   domain.ObjectCounts{Domains: 3},
	})
	if err != nil {
		t.Fatalf("RenderDeposit: %v", err)
	}
	if strings.Contains(string(out), "rdeContact") || strings.Contains(string(out), "rdeHost") {
		t.Errorf("thin deposit must not list contacts or hosts:\n%s", out)
	}
}

func TestDepositID(t *testing.T) {
	w := time.Date(2026, 5, 17, 0, 0, 0, 0, time.UTC)
	if DepositID(w) != DepositID(w.In(time.FixedZone("X", 3600))) {
		t.Error("id must not depend on location")
	}
	if DepositID(w) == DepositID(w.Add(24*time.Hour)) {
		t.Error("different watermarks should give different ids")
	}
	if id := DepositID(w); id != strings.ToUpper(id) {
		t.Errorf("id should be upper case, got %q", id)
	}
}

// --- Writer ---

func TestWriteFileAtomic(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "deposits")
	path := filepath.Join(dir, "a.xml")

	if err := WriteFileAtomic(path, []byte("one")); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("two")); err != nil {
		t.Fatalf("WriteFileAtomic overwrite: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "two" {
		t.Fatalf("unexpected content %q, %v", data, err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp files should not remain, got %d entries", len(entries))
	}
}

// --- DepositTask ---

type failingSnapshotter struct{}

func (failingSnapshotter) Snapshot(context.Context, string, time.Time) (domain.ObjectCounts, error) {
	return domain.ObjectCounts{}, errors.New("replica lag")
}

func TestDepositTask_WritesRevisionsPerPeriod(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	deposits := NewMemoryDeposits()
	job := DefaultJobs([]string{"example"})[0] // rde

	task := NewDepositTask(job, "example", DepositDeps{
		Dir:       dir,
		Deposits:  deposits,
		Snapshots: StaticSnapshotter{Domains: 5, Contacts: 2, Hosts: 1},
		Clock:     clock.NewFake(now),
		Logger:    testLogger(),
	})
	if task.Name() != "rde" {
		t.Fatalf("unexpected task name %q", task.Name())
	}

	w := clock.StartOfDay(now).Add(-24 * time.Hour)
	for i := 0; i < 2; i++ {
		if err := task.RunWithLock(ctx, w); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	for _, name := range []string{"example_2026-05-19_full_S1_R0.xml", "example_2026-05-19_full_S1_R1.xml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected file %s: %v", name, err)
		}
	}

	list, _ := deposits.List(ctx, "example", 0)
	if len(list) != 2 || list[0].Revision != 1 || list[0].Objects.Total() != 8 {
		t.Errorf("unexpected deposits %+v", list)
	}
	if !list[0].CreatedAt.Equal(now) {
		t.Errorf("CreatedAt should come from the clock, got %v", list[0].CreatedAt)
	}
}

func TestDepositTask_ThinDropsContactsAndHosts(t *testing.T) {
	ctx := context.Background()
	deposits := NewMemoryDeposits()
	job := DefaultJobs([]string{"example"})[1] // brda

	task := NewDepositTask(job, "example", DepositDeps{
		Dir:       t.TempDir(),
		Deposits:  deposits,
		Snapshots: StaticSnapshotter{Domains: 5, Contacts: 2, Hosts: 1},
		Logger:    testLogger(),
	})
	if err := task.RunWithLock(ctx, clock.StartOfDay(now)); err != nil {
		t.Fatalf("RunWithLock: %v", err)
	}

	list, _ := deposits.List(ctx, "", 0)
	if len(list) != 1 || list[0].Objects != (domain.ObjectCounts{Domains: 5}) || list[0].Mode != domain.DepositModeThin {
		t.Errorf("unexpected deposit %+v", list)
	}
}

func TestDepositTask_SnapshotFailureWritesNothing(t *testing.T) {
	dir := t.TempDir()
	deposits := NewMemoryDeposits()
	task := NewDepositTask(DefaultJobs([]string{"example"})[0], "example", DepositDeps{
		Dir:       dir,
		Deposits:  deposits,
		Snapshots: failingSnapshotter{},
		Logger:    testLogger(),
	})

	if err := task.RunWithLock(context.Background(), clock.StartOfDay(now)); err == nil {
		t.Fatal("expected error")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("no file should be written, got %d", len(entries))
	}
	if list, _ := deposits.List(context.Background(), "", 0); len(list) != 0 {
		t.Errorf("no deposit should be recorded, got %+v", list)
	}
}

// --- Service ---

type serviceFixture struct {
	svc      *Service
	cursors  *cursor.MemoryStore
	deposits *MemoryDeposits
	clock    *clock.Fake
	dir      string
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	fc := clock.NewFake(now)
	cursors := cursor.NewMemoryStore(fc)
	deposits := NewMemoryDeposits()
	dir := t.TempDir()

	catalog, err := NewCatalog(DefaultJobs([]string{"example"}))
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	r := runner.New(runner.Config{
		Locks:   lock.NewManager(lock.Config{Store: lock.NewMemoryStore(), Clock: fc, Logger: testLogger()}),
		Cursors: cursors,
		Clock:   fc,
		Logger:  testLogger(),
	})

	svc := NewService(ServiceConfig{
		Catalog: catalog,
		Runner:  r,
		Deposit: DepositDeps{
			Dir:       dir,
			Deposits:  deposits,
			Snapshots: StaticSnapshotter{Domains: 1},
			Clock:     fc,
		},
		Logger: testLogger(),
	})

	return &serviceFixture{svc: svc, cursors: cursors, deposits: deposits, clock: fc, dir: dir}
}

func TestService_RunAdvancesCursorAndWritesDeposit(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	today := clock.StartOfDay(now)

	res, err := f.svc.Run(ctx, "rde", "example")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Outcome != domain.OutcomeSuccess {
		t.Fatalf("expected SUCCESS, got %s", res.Outcome)
	}

	w, ok, _ := f.cursors.Load(ctx, "example", domain.CursorRDEStaging)
	if !ok || !w.Equal(today.Add(24*time.Hour)) {
		t.Errorf("cursor should be tomorrow, got %v", w)
	}
	if _, err := os.Stat(filepath.Join(f.dir, "example_2026-05-20_full_S1_R0.xml")); err != nil {
		t.Errorf("deposit file missing: %v", err)
	}

	res, err = f.svc.Run(ctx, "rde", "example")
	if err != nil || res.Outcome != domain.OutcomeAlreadyDone {
		t.Errorf("second run should be ALREADY_DONE, got %s, %v", res.Outcome, err)
	}
	if list, _ := f.deposits.List(ctx, "", 0); len(list) != 1 {
		t.Errorf("re-trigger must not write another deposit, got %d", len(list))
	}
}

func TestService_CatchUpProducesOneDepositPerDay(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	today := clock.StartOfDay(now)

	if err := f.cursors.Save(ctx, "example", domain.CursorRDEStaging, today.Add(-3*24*time.Hour)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := f.svc.Run(ctx, "rde", "example"); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	list, _ := f.deposits.List(ctx, "example", 0)
	if len(list) != 4 {
		t.Fatalf("expected deposits for N-3..N, got %d", len(list))
	}
	for i, d := range list {
		want := today.Add(-time.Duration(i) * 24 * time.Hour)
		if !d.Watermark.Equal(want) || d.Revision != 0 {
			t.Errorf("deposit %d: expected %v R0, got %v R%d", i, want, d.Watermark, d.Revision)
		}
	}
}

func TestService_UnknownJobOrTLD(t *testing.T) {
	f := newServiceFixture(t)

	if _, err := f.svc.Run(context.Background(), "icann", "example"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("expected ErrUnknownJob, got %v", err)
	}
	if _, err := f.svc.Run(context.Background(), "rde", "other"); !errors.Is(err, ErrUnknownTLD) {
		t.Errorf("expected ErrUnknownTLD, got %v", err)
	}
}

func TestService_RunLogsThroughContextLogger(t *testing.T) {
	f := newServiceFixture(t)

	var buf bytes.Buffer
	caller := slog.New(slog.NewJSONHandler(&buf, nil)).With("message_id", "m-1")
	ctx := telemetry.WithLogger(context.Background(), caller)

	if _, err := f.svc.Run(ctx, "rde", "example"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var written, running bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		if rec["message_id"] != "m-1" || rec["task"] != "rde" || rec["tld"] != "example" {
			t.Errorf("log line lacks caller and task attributes: %s", line)
		}
		switch rec["msg"] {
		case "deposit written":
			written = true
		case "running task":
			running = true
			if rec["cursor_type"] != "RDE_STAGING" {
				t.Errorf("runner log should carry cursor_type, got %s", line)
			}
		}
	}
	if !written || !running {
		t.Errorf("expected runner and deposit logs in the caller logger, got:\n%s", buf.String())
	}
}

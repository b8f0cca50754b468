package cron

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSnapshotFile_MissingIsEmpty(t *testing.T) {
	t.Parallel()

	f := newSnapshotFile(filepath.Join(t.TempDir(), "does", "not", "exist"))
	jobs, err := f.read()
	if err != nil {
		t.Fatalf("read() error = %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("read() = %d jobs, want 0", len(jobs))
	}
}

func TestSnapshotFile_WriteCreatesDirAndDropsHandles(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "cron")
	f := newSnapshotFile(dir)

	s := NewStore()
	h := uuid.New()
	id := uuid.New()
	s.Add(Job{ID: id, ChannelID: 9, CronExpr: "@daily", Prompt: "p", SchedulerID: &h})
	s.Lock()
	data, version, err := s.snapshotLocked()
	s.Unlock()
	if err != nil {
		t.Fatal(err)
	}

	if err := f.write(version, data); err != nil {
		t.Fatalf("write() error = %v", err)
	}
	if _, err := os.Stat(f.path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temp file left behind: %v", err)
	}

	jobs, err := f.read()
	if err != nil {
		t.Fatalf("read() error = %v", err)
	}
	job, ok := jobs[id]
	if !ok {
		t.Fatal("job missing after round trip")
	}
	if job.SchedulerID != nil {
		t.Error("engine handle survived a reload")
	}
	if job.ChannelID != 9 || job.CronExpr != "@daily" {
		t.Errorf("job = %+v", job)
	}
}

func TestSnapshotFile_StaleVersionSkipped(t *testing.T) {
	t.Parallel()

	f := newSnapshotFile(t.TempDir())
	if err := f.write(5, []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	if err := f.write(3, []byte(`{"stale":1}`)); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(f.path)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{}` {
		t.Errorf("file = %s, stale snapshot overwrote newer one", raw)
	}
}

func TestSnapshotFile_CorruptAndQuarantine(t *testing.T) {
	t.Parallel()

	f := newSnapshotFile(t.TempDir())
	if err := os.WriteFile(f.path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := f.read()
	if !errors.Is(err, ErrCorruptSnapshot) {
		t.Fatalf("read() error = %v, want ErrCorruptSnapshot", err)
	}
	var perr *PersistenceError
	if !errors.As(err, &perr) || perr.Op != "decode" {
		t.Errorf("read() error = %v, want decode PersistenceError", err)
	}

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	moved, err := f.quarantine(now)
	if err != nil {
		t.Fatalf("quarantine() error = %v", err)
	}
	if !strings.HasSuffix(moved, ".corrupt-20260102T030405Z") {
		t.Errorf("quarantine() = %q", moved)
	}
	if _, err := os.Stat(f.path); !errors.Is(err, os.ErrNotExist) {
		t.Error("corrupt file still in place")
	}
}

func TestSnapshotFile_EmptyFileIsEmpty(t *testing.T) {
	t.Parallel()

	f := newSnapshotFile(t.TempDir())
	if err := os.WriteFile(f.path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	jobs, err := f.read()
	if err != nil || len(jobs) != 0 {
		t.Errorf("read() = %v, %v; want empty, nil", jobs, err)
	}
}

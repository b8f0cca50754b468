package cron

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileName is the snapshot file created inside the configured directory.
const FileName = "cron_jobs.json"

// snapshotFile serializes writes of whole-store snapshots. Each snapshot
// carries the store version it was taken at; a snapshot older than the last
// one written is dropped so a slow writer cannot roll the file back.
type snapshotFile struct {
	path string

	mu      sync.Mutex
	written uint64
}

func newSnapshotFile(dir string) *snapshotFile {
	return &snapshotFile{path: filepath.Join(dir, FileName)}
}

// write atomically replaces the file with data: the bytes go to a sibling
// temp file which is then renamed over the target.
func (f *snapshotFile) write(version uint64, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if version < f.written {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return &PersistenceError{Op: "create dir", Path: filepath.Dir(f.path), Err: err}
	}

	tmp := f.path + ".tmp"
	if err := writeSynced(tmp, data); err != nil {
		_ = os.Remove(tmp)
		return &PersistenceError{Op: "write", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return &PersistenceError{Op: "rename", Path: f.path, Err: err}
	}

	f.written = version
	return nil
}

func writeSynced(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// read decodes the snapshot. A missing or empty file yields an empty map.
// Engine handles found on disk are dropped.
func (f *snapshotFile) read() (map[uuid.UUID]Job, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[uuid.UUID]Job{}, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "read", Path: f.path, Err: err}
	}
	if len(raw) == 0 {
		return map[uuid.UUID]Job{}, nil
	}

	var decoded map[uuid.UUID]Job
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &PersistenceError{
			Op:   "decode",
			Path: f.path,
			Err:  fmt.Errorf("%w: %w", ErrCorruptSnapshot, err),
		}
	}

	jobs := make(map[uuid.UUID]Job, len(decoded))
	for key, job := range decoded {
		job.ID = key
		job.SchedulerID = nil
		jobs[key] = job
	}
	return jobs, nil
}

// quarantine moves an unreadable snapshot aside so the next write does not
// destroy it. Returns the new path.
func (f *snapshotFile) quarantine(now time.Time) (string, error) {
	dst := fmt.Sprintf("%s.corrupt-%s", f.path, now.UTC().Format("20060102T150405Z"))
	if err := os.Rename(f.path, dst); err != nil {
		return "", &PersistenceError{Op: "quarantine", Path: f.path, Err: err}
	}
	return dst, nil
}

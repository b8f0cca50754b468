package cron

import (
	"testing"

	"github.com/google/uuid"
)

func TestStore_AddGetIsolation(t *testing.T) {
	t.Parallel()

	s := NewStore()
	h := uuid.New()
	job := Job{ID: uuid.New(), ChannelID: 1, CronExpr: "@hourly", Prompt: "p", SchedulerID: &h}
	s.Add(job)

	got, ok := s.Get(job.ID)
	if !ok {
		t.Fatal("Get() missed a stored job")
	}
	*got.SchedulerID = uuid.Nil

	again, _ := s.Get(job.ID)
	if *again.SchedulerID != h {
		t.Error("mutating a returned job changed the store")
	}
}

func TestStore_ByChannel(t *testing.T) {
	t.Parallel()

	s := NewStore()
	for _, ch := range []uint64{1, 1, 2} {
		s.Add(Job{ID: uuid.New(), ChannelID: ch, Prompt: "p"})
	}

	if got := len(s.ByChannel(1)); got != 2 {
		t.Errorf("ByChannel(1) = %d jobs, want 2", got)
	}
	if got := len(s.ByChannel(2)); got != 1 {
		t.Errorf("ByChannel(2) = %d jobs, want 1", got)
	}
	if got := len(s.ByChannel(3)); got != 0 {
		t.Errorf("ByChannel(3) = %d jobs, want 0", got)
	}
	if got := len(s.All()); got != 3 {
		t.Errorf("All() = %d jobs, want 3", got)
	}
}

func TestStore_Versioning(t *testing.T) {
	t.Parallel()

	s := NewStore()
	id := uuid.New()
	s.Add(Job{ID: id, ChannelID: 1})

	s.Lock()
	_, v1, _ := s.snapshotLocked()
	h := uuid.New()
	s.setHandleLocked(id, &h)
	_, v2, _ := s.snapshotLocked()
	s.Unlock()

	if v1 != v2 {
		t.Errorf("setting a handle bumped the version: %d -> %d", v1, v2)
	}

	s.Remove(id)
	s.Lock()
	_, v3, _ := s.snapshotLocked()
	s.Unlock()
	if v3 <= v2 {
		t.Errorf("Remove() did not bump the version: %d -> %d", v2, v3)
	}

	if _, ok := s.Remove(id); ok {
		t.Error("second Remove() reported a job")
	}
}

func TestStore_ReplaceIfEmpty(t *testing.T) {
	t.Parallel()

	loaded := Job{ID: uuid.New(), ChannelID: 2, CronExpr: "@hourly", Prompt: "loaded"}

	s := NewStore()
	if !s.replaceIfEmpty(map[uuid.UUID]Job{loaded.ID: loaded}) {
		t.Fatal("replaceIfEmpty() on an empty store = false")
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}

	live := Job{ID: uuid.New(), ChannelID: 1, CronExpr: "@hourly", Prompt: "live"}
	s = NewStore()
	s.Add(live)
	if s.replaceIfEmpty(map[uuid.UUID]Job{loaded.ID: loaded}) {
		t.Fatal("replaceIfEmpty() overwrote a non-empty store")
	}
	if _, ok := s.Get(live.ID); !ok {
		t.Error("live job lost")
	}
	if _, ok := s.Get(loaded.ID); ok {
		t.Error("loaded job merged into a non-empty store")
	}
}

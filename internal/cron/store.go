package cron

import (
	"cmp"
	"encoding/json"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Store is the in-memory set of job definitions keyed by id.
// Every method is safe for concurrent use. Callers that need several
// operations to be atomic use Lock/Unlock together with the *Locked variants.
type Store struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]Job
	version uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{jobs: make(map[uuid.UUID]Job)}
}

// Lock acquires the store lock for a multi-step critical section.
func (s *Store) Lock() { s.mu.Lock() }

// Unlock releases the store lock.
func (s *Store) Unlock() { s.mu.Unlock() }

// Add inserts or replaces a job.
func (s *Store) Add(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(job)
}

func (s *Store) addLocked(job Job) {
	s.jobs[job.ID] = cloneJob(job)
	s.version++
}

// Remove deletes a job and returns it.
func (s *Store) Remove(id uuid.UUID) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(id)
}

func (s *Store) removeLocked(id uuid.UUID) (Job, bool) {
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	delete(s.jobs, id)
	s.version++
	return job, true
}

// Get returns a copy of the job with the given id.
func (s *Store) Get(id uuid.UUID) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	return cloneJob(job), ok
}

func (s *Store) getLocked(id uuid.UUID) (Job, bool) {
	job, ok := s.jobs[id]
	return job, ok
}

// All returns every job, ordered by id for stable output.
func (s *Store) All() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterLocked(func(Job) bool { return true })
}

// ByChannel returns the jobs targeting channelID, ordered by id.
func (s *Store) ByChannel(channelID uint64) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterLocked(func(j Job) bool { return j.ChannelID == channelID })
}

func (s *Store) filterLocked(keep func(Job) bool) []Job {
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if keep(j) {
			out = append(out, cloneJob(j))
		}
	}
	slices.SortFunc(out, func(a, b Job) int {
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return out
}

// Len returns the number of stored jobs.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// IDs returns a snapshot of the stored ids.
func (s *Store) IDs() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	return ids
}

// setHandleLocked records the engine handle of a stored job. The store
// version is left alone: handles do not change the durable content.
func (s *Store) setHandleLocked(id uuid.UUID, handle *uuid.UUID) bool {
	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	job.SchedulerID = handle
	s.jobs[id] = job
	return true
}

// replaceIfEmpty swaps in jobs only while the store holds nothing. It
// reports false, leaving the store untouched, once any job exists.
func (s *Store) replaceIfEmpty(jobs map[uuid.UUID]Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.jobs) > 0 {
		return false
	}
	s.jobs = jobs
	return true
}

// snapshotLocked encodes the store and returns the version it reflects.
func (s *Store) snapshotLocked() ([]byte, uint64, error) {
	data, err := json.MarshalIndent(s.jobs, "", "  ")
	if err != nil {
		return nil, 0, err
	}
	return data, s.version, nil
}

func cloneJob(j Job) Job {
	if j.SchedulerID != nil {
		h := *j.SchedulerID
		j.SchedulerID = &h
	}
	return j
}

package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"weak"

	"github.com/flemzord/cronclaw/internal/channel"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultFireTimeout = 2 * time.Minute
	tracerName         = "github.com/flemzord/cronclaw/internal/cron"
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Dir holds the job snapshot file. Required.
	Dir string

	// Engine defaults to a CronEngine in the local time zone.
	Engine Engine

	// FireTimeout bounds backend lookup and session creation on each fire.
	FireTimeout time.Duration

	Logger  *slog.Logger
	Metrics *Metrics
	Tracer  trace.Tracer

	// Now overrides time.Now for testing.
	Now func() time.Time
}

// Manager owns the job store, its snapshot file and the engine
// registrations of every job.
type Manager struct {
	store  *Store
	file   *snapshotFile
	engine Engine
	host   *hostRef

	fireTimeout time.Duration
	logger      *slog.Logger
	metrics     *Metrics
	tracer      trace.Tracer
	now         func() time.Time

	tasksMu sync.Mutex
	tasks   map[string]uuid.UUID
	taskCtx context.Context
	cancel  context.CancelFunc
}

// NewManager creates a Manager. Jobs are not loaded until LoadFromDisk and
// nothing fires until Start.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, errors.New("cron: job directory is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	engine := cfg.Engine
	if engine == nil {
		engine = NewCronEngine(time.Local, logger)
	}
	timeout := cfg.FireTimeout
	if timeout <= 0 {
		timeout = defaultFireTimeout
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:       NewStore(),
		file:        newSnapshotFile(cfg.Dir),
		engine:      engine,
		host:        &hostRef{},
		fireTimeout: timeout,
		logger:      logger,
		metrics:     cfg.Metrics,
		tracer:      tracer,
		now:         now,
		tasks:       make(map[string]uuid.UUID),
		taskCtx:     ctx,
		cancel:      cancel,
	}, nil
}

// Path returns the snapshot file location.
func (m *Manager) Path() string { return m.file.path }

// AddJob validates job, registers it with the engine, stores it and flushes
// the snapshot. A zero ID is replaced with a fresh one. When the returned
// error is a *PersistenceError the job is live and stored in memory anyway.
func (m *Manager) AddJob(job Job) (uuid.UUID, error) {
	if job.ChannelID == 0 {
		return uuid.Nil, ErrMissingChannel
	}
	if strings.TrimSpace(job.Prompt) == "" {
		return uuid.Nil, ErrEmptyPrompt
	}
	job.CronExpr = strings.TrimSpace(job.CronExpr)
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.SchedulerID = nil

	m.store.Lock()
	if _, exists := m.store.getLocked(job.ID); exists {
		m.store.Unlock()
		return uuid.Nil, fmt.Errorf("%w: %s", ErrDuplicateJob, job.ID)
	}

	handle, err := m.engine.Register(job.CronExpr, m.newTrigger(job).fire)
	if err != nil {
		m.store.Unlock()
		return uuid.Nil, &RegistrationError{Expr: job.CronExpr, Err: err}
	}
	job.SchedulerID = &handle
	m.store.addLocked(job)
	data, version, snapErr := m.store.snapshotLocked()
	count := len(m.store.jobs)
	m.store.Unlock()

	m.metrics.setJobs(count)
	m.logger.Info("cron: job added",
		"job", job.ID.String(),
		"channel", job.ChannelID,
		"schedule", job.CronExpr,
		"creator", job.CreatorID,
	)

	if err := m.persist(data, version, snapErr); err != nil {
		return job.ID, err
	}
	return job.ID, nil
}

// RemoveJob deregisters and deletes a job, then flushes the snapshot.
// Removing an unknown id does nothing.
func (m *Manager) RemoveJob(id uuid.UUID) error {
	m.store.Lock()
	job, ok := m.store.removeLocked(id)
	if !ok {
		m.store.Unlock()
		return nil
	}
	if job.SchedulerID != nil {
		m.engine.Deregister(*job.SchedulerID)
	}
	data, version, snapErr := m.store.snapshotLocked()
	count := len(m.store.jobs)
	m.store.Unlock()

	m.metrics.setJobs(count)
	m.logger.Info("cron: job removed", "job", id.String(), "channel", job.ChannelID)

	return m.persist(data, version, snapErr)
}

// JobsForChannel returns the jobs targeting channelID.
func (m *Manager) JobsForChannel(channelID uint64) []Job {
	return m.store.ByChannel(channelID)
}

// Jobs returns every stored job.
func (m *Manager) Jobs() []Job {
	return m.store.All()
}

// Job returns a single job by id.
func (m *Manager) Job(id uuid.UUID) (Job, bool) {
	return m.store.Get(id)
}

// Len returns the number of stored jobs.
func (m *Manager) Len() int {
	return m.store.Len()
}

// NextRun reports the next fire time of a registered job when the engine
// supports it.
func (m *Manager) NextRun(id uuid.UUID) (time.Time, bool) {
	nr, ok := m.engine.(NextRunner)
	if !ok {
		return time.Time{}, false
	}
	job, ok := m.store.Get(id)
	if !ok || job.SchedulerID == nil {
		return time.Time{}, false
	}
	return nr.Next(*job.SchedulerID)
}

// LoadFromDisk reads the snapshot into the store. It must run before any
// AddJob in this process and returns ErrStoreNotEmpty otherwise. A missing
// file yields an empty store. A corrupt file is moved aside and the store
// stays empty; the returned error describes it but the scheduler remains
// usable.
func (m *Manager) LoadFromDisk() error {
	if m.store.Len() > 0 {
		return ErrStoreNotEmpty
	}

	jobs, err := m.file.read()
	if err != nil {
		if errors.Is(err, ErrCorruptSnapshot) {
			moved, qerr := m.file.quarantine(m.now())
			if qerr != nil {
				m.logger.Error("cron: corrupt job file could not be moved aside", "path", m.file.path, "error", qerr)
				return errors.Join(err, qerr)
			}
			m.logger.Error("cron: corrupt job file, starting empty", "path", m.file.path, "moved_to", moved, "error", err)
		}
		return err
	}

	// An AddJob may have landed while the file was being read.
	if !m.store.replaceIfEmpty(jobs) {
		return ErrStoreNotEmpty
	}
	m.metrics.setJobs(len(jobs))
	m.logger.Info("cron: jobs loaded", "path", m.file.path, "count", len(jobs))
	return nil
}

// Flush writes the current store to disk.
func (m *Manager) Flush() error {
	m.store.Lock()
	data, version, err := m.store.snapshotLocked()
	m.store.Unlock()
	return m.persist(data, version, err)
}

// Init records the transport and the weak runtime pointer used by fired
// jobs, then registers every stored job that has no engine handle yet.
// A job that fails to register is logged and skipped; the failures are
// returned joined as *RecoveryError values. Calling Init again updates the
// context and retries previously failed jobs.
func (m *Manager) Init(transport channel.Transport, rt weak.Pointer[Runtime]) error {
	m.host.store(transport, rt)

	var errs []error
	registered := 0
	for _, id := range m.store.IDs() {
		m.store.Lock()
		job, ok := m.store.getLocked(id)
		if !ok || job.SchedulerID != nil {
			m.store.Unlock()
			continue
		}
		handle, err := m.engine.Register(job.CronExpr, m.newTrigger(job).fire)
		if err != nil {
			m.store.Unlock()
			rerr := &RecoveryError{JobID: id, Err: &RegistrationError{Expr: job.CronExpr, Err: err}}
			m.logger.Error("cron: job could not be re-registered",
				"job", id.String(),
				"channel", job.ChannelID,
				"schedule", job.CronExpr,
				"error", err,
			)
			errs = append(errs, rerr)
			continue
		}
		m.store.setHandleLocked(id, &handle)
		m.store.Unlock()
		registered++
	}

	m.logger.Info("cron: scheduler initialized", "registered", registered, "failed", len(errs))
	return errors.Join(errs...)
}

// Start starts the engine.
func (m *Manager) Start() {
	m.engine.Start()
	m.logger.Info("cron: scheduler started", "jobs", m.store.Len())
}

// Stop stops the engine and cancels running maintenance tasks.
func (m *Manager) Stop(ctx context.Context) error {
	m.cancel()
	err := m.engine.Stop(ctx)
	m.logger.Info("cron: scheduler stopped")
	return err
}

func (m *Manager) persist(data []byte, version uint64, snapErr error) error {
	if snapErr != nil {
		m.metrics.persistFailed()
		return &PersistenceError{Op: "encode", Path: m.file.path, Err: snapErr}
	}
	if err := m.file.write(version, data); err != nil {
		m.metrics.persistFailed()
		m.logger.Error("cron: job snapshot not saved", "path", m.file.path, "error", err)
		return err
	}
	return nil
}

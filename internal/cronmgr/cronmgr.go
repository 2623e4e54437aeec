// Package cronmgr runs fixed-interval background jobs: register,
// unregister, start/stop all, and missed-run replay across a restart.
//
// Grounded on a prior internal/cron.Scheduler's functional-option
// construction (WithLogger/WithNow/WithExecutionStore) and its
// persisted-execution-state idea, simplified from that scheduler's
// six-field cron-expression model down to a fixed interval-in-
// milliseconds model, since recurring work in this kernel is
// machine-scheduled rather than user-authored cron syntax.
package cronmgr

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/therenovatio/teleton/internal/domain"
	"github.com/therenovatio/teleton/internal/errkind"
)

// MinInterval is the shortest interval a job may run at.
const MinInterval = time.Second

// JobFunc is the work a cron job performs on each tick.
type JobFunc func(ctx context.Context) error

// Store persists job metadata so CronManager can replay missed runs
// across a restart.
type Store interface {
	UpsertCronJob(ctx context.Context, job domain.CronJob) error
	RecordCronRun(ctx context.Context, id string, at time.Time) error
	DeleteCronJob(ctx context.Context, id string) error
	ListCronJobs(ctx context.Context) ([]domain.CronJob, error)
}

type job struct {
	domain.CronJob
	fn     JobFunc
	cancel context.CancelFunc
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithLogger attaches a logger; defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager owns the set of running interval jobs.
type Manager struct {
	mu    sync.Mutex
	jobs  map[string]*job
	store Store

	logger *slog.Logger
	now    func() time.Time

	wg sync.WaitGroup
}

// New builds a Manager backed by store.
func New(store Store, opts ...Option) *Manager {
	m := &Manager{
		jobs:   make(map[string]*job),
		store:  store,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a job and persists its metadata. A lastRunAt already
// persisted for id (by an earlier process) is carried over, so Start
// can replay a run missed while the process was down. The job does not
// start ticking until Start(id) or StartAll is called.
func (m *Manager) Register(ctx context.Context, id string, interval time.Duration, runMissed bool, fn JobFunc) error {
	if interval < MinInterval {
		return errkind.New(errkind.Config, fmt.Sprintf("cron interval must be >= %s", MinInterval), nil)
	}

	meta := domain.CronJob{ID: id, IntervalMs: interval.Milliseconds(), RunMissed: runMissed}
	persisted, err := m.store.ListCronJobs(ctx)
	if err != nil {
		return err
	}
	for _, p := range persisted {
		if p.ID == id {
			meta.LastRunAt = p.LastRunAt
			break
		}
	}

	m.mu.Lock()
	if _, exists := m.jobs[id]; exists {
		m.mu.Unlock()
		return errkind.New(errkind.Config, fmt.Sprintf("cron job %q already registered", id), nil)
	}
	m.jobs[id] = &job{
		CronJob: meta,
		fn:      fn,
	}
	m.mu.Unlock()

	return m.store.UpsertCronJob(ctx, meta)
}

// Unregister stops a job (if running) and removes its persisted state.
func (m *Manager) Unregister(ctx context.Context, id string) error {
	m.mu.Lock()
	j, ok := m.jobs[id]
	if ok {
		if j.cancel != nil {
			j.cancel()
		}
		delete(m.jobs, id)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return m.store.DeleteCronJob(ctx, id)
}

// Start begins ticking job id, replaying one missed run first if
// RunMissed is set and the elapsed time since LastRunAt exceeds the
// interval.
func (m *Manager) Start(ctx context.Context, id string) error {
	m.mu.Lock()
	j, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return errkind.New(errkind.Config, fmt.Sprintf("cron job %q not registered", id), nil)
	}
	if j.cancel != nil {
		m.mu.Unlock()
		return nil // already running
	}
	runCtx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel
	interval := time.Duration(j.IntervalMs) * time.Millisecond
	runMissed := j.RunMissed
	lastRun := j.LastRunAt
	fn := j.fn
	m.mu.Unlock()

	if runMissed && lastRun != nil && m.now().Sub(*lastRun) >= interval {
		m.runOnce(ctx, id, fn)
	}

	m.wg.Add(1)
	go m.loop(runCtx, id, interval, fn)
	return nil
}

// StartAll starts every registered job that is not already running.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.jobs))
	for id := range m.jobs {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		if err := m.Start(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// StopAll cancels every running job's ticker and waits for in-flight
// ticks to finish.
func (m *Manager) StopAll() {
	m.mu.Lock()
	for _, j := range m.jobs {
		if j.cancel != nil {
			j.cancel()
			j.cancel = nil
		}
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) loop(ctx context.Context, id string, interval time.Duration, fn JobFunc) {
	defer m.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runOnce(ctx, id, fn)
		}
	}
}

func (m *Manager) runOnce(ctx context.Context, id string, fn JobFunc) {
	if err := fn(ctx); err != nil {
		m.logger.Error("cron job failed", "job", id, "error", err)
	}
	at := m.now()
	m.mu.Lock()
	if j, ok := m.jobs[id]; ok {
		j.LastRunAt = &at
	}
	m.mu.Unlock()
	if err := m.store.RecordCronRun(ctx, id, at); err != nil {
		m.logger.Error("cron record run failed", "job", id, "error", err)
	}
}

// List returns every registered job's metadata.
func (m *Manager) List() []domain.CronJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.CronJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j.CronJob)
	}
	return out
}

// Get returns one job's metadata and whether it exists.
func (m *Manager) Get(id string) (domain.CronJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.CronJob{}, false
	}
	return j.CronJob, true
}

// Restore returns the persisted metadata (interval, runMissed,
// lastRunAt) of every job. It neither registers nor starts anything: a
// job runs only once Register attaches its JobFunc, and Register itself
// carries the persisted lastRunAt over to the job.
func (m *Manager) Restore(ctx context.Context) ([]domain.CronJob, error) {
	return m.store.ListCronJobs(ctx)
}

package cronmgr

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/therenovatio/teleton/internal/domain"
)

type fakeStore struct {
	mu   sync.Mutex
	jobs map[string]domain.CronJob
}

func newFakeStore() *fakeStore { return &fakeStore{jobs: make(map[string]domain.CronJob)} }

func (f *fakeStore) UpsertCronJob(ctx context.Context, job domain.CronJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeStore) RecordCronRun(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.jobs[id]
	j.LastRunAt = &at
	f.jobs[id] = j
	return nil
}

func (f *fakeStore) DeleteCronJob(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.jobs, id)
	return nil
}

func (f *fakeStore) ListCronJobs(ctx context.Context) ([]domain.CronJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.CronJob, 0, len(f.jobs))
	for _, j := range f.jobs {
		out = append(out, j)
	}
	return out, nil
}

func TestRegisterRejectsSubSecondInterval(t *testing.T) {
	m := New(newFakeStore())
	err := m.Register(context.Background(), "fast", 500*time.Millisecond, false, func(ctx context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected sub-second interval to be rejected")
	}
}

func TestStartTicksAndStop(t *testing.T) {
	store := newFakeStore()
	m := New(store)
	var runs int32
	if err := m.Register(context.Background(), "tick", MinInterval, false, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Start(context.Background(), "tick"); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(1200 * time.Millisecond)
	m.StopAll()

	if atomic.LoadInt32(&runs) < 1 {
		t.Fatal("expected at least one tick")
	}
}

func TestMissedRunReplay(t *testing.T) {
	store := newFakeStore()
	past := time.Now().UTC().Add(-time.Hour)
	store.jobs["replay"] = domain.CronJob{ID: "replay", IntervalMs: MinInterval.Milliseconds(), RunMissed: true, LastRunAt: &past}

	m := New(store)
	var runs int32
	if err := m.Register(context.Background(), "replay", MinInterval, true, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	m.mu.Lock()
	m.jobs["replay"].LastRunAt = &past
	m.mu.Unlock()

	if err := m.Start(context.Background(), "replay"); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	m.StopAll()

	if atomic.LoadInt32(&runs) < 1 {
		t.Fatal("expected missed run to be replayed immediately on start")
	}
}

func TestUnregisterStopsJob(t *testing.T) {
	store := newFakeStore()
	m := New(store)
	if err := m.Register(context.Background(), "gone", MinInterval, false, func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Start(context.Background(), "gone"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Unregister(context.Background(), "gone"); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if _, ok := m.Get("gone"); ok {
		t.Fatal("expected job to be removed")
	}
}

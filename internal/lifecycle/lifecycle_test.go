package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestStartStopHappyPath(t *testing.T) {
	s := New(nil)
	var events []State
	var mu sync.Mutex
	s.On(func(e Event) {
		mu.Lock()
		events = append(events, e.State)
		mu.Unlock()
	})
	s.RegisterFuncs(
		func(ctx context.Context) error { return nil },
		func(ctx context.Context) error { return nil },
	)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := s.State(); got != StateRunning {
		t.Fatalf("state = %v, want running", got)
	}
	if uptime := s.GetUptime(); uptime == nil {
		t.Fatalf("expected uptime while running")
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := s.State(); got != StateStopped {
		t.Fatalf("state = %v, want stopped", got)
	}
	if uptime := s.GetUptime(); uptime != nil {
		t.Fatalf("expected nil uptime while stopped")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateStarting, StateRunning, StateStopping, StateStopped}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i, w := range want {
		if events[i] != w {
			t.Fatalf("events[%d] = %v, want %v", i, events[i], w)
		}
	}
}

func TestStartWhileStoppingFailsFast(t *testing.T) {
	s := New(nil)
	block := make(chan struct{})
	s.RegisterFuncs(
		func(ctx context.Context) error { return nil },
		func(ctx context.Context) error { <-block; return nil },
	)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	stopDone := make(chan error, 1)
	go func() { stopDone <- s.Stop(context.Background()) }()

	// Wait until state has flipped to stopping.
	deadline := time.After(time.Second)
	for {
		if s.State() == StateStopping {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for stopping state")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected start to fail fast while stopping")
	}

	close(block)
	if err := <-stopDone; err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestStopWhileStartingWaits(t *testing.T) {
	s := New(nil)
	release := make(chan struct{})
	s.RegisterFuncs(
		func(ctx context.Context) error { <-release; return nil },
		func(ctx context.Context) error { return nil },
	)

	startDone := make(chan error, 1)
	go func() { startDone <- s.Start(context.Background()) }()

	// Give Start a chance to enter "starting".
	deadline := time.After(time.Second)
	for s.State() != StateStarting {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for starting state")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	stopDone := make(chan error, 1)
	go func() { stopDone <- s.Stop(context.Background()) }()

	// Stop must not race ahead of Start finishing.
	time.Sleep(20 * time.Millisecond)
	if s.State() != StateStarting {
		t.Fatalf("stop transitioned early, state=%v", s.State())
	}

	close(release)
	if err := <-startDone; err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := <-stopDone; err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := s.State(); got != StateStopped {
		t.Fatalf("state = %v, want stopped", got)
	}
}

func TestStartFailureReturnsToStopped(t *testing.T) {
	s := New(nil)
	wantErr := errors.New("boom")
	s.RegisterFuncs(
		func(ctx context.Context) error { return wantErr },
		func(ctx context.Context) error { return nil },
	)
	if err := s.Start(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("start err = %v, want %v", err, wantErr)
	}
	if got := s.State(); got != StateStopped {
		t.Fatalf("state = %v, want stopped after failed start", got)
	}
	if s.LastError() == "" {
		t.Fatal("expected lastError to be recorded")
	}
}

func TestConcurrentStartSharesInFlight(t *testing.T) {
	s := New(nil)
	started := make(chan struct{})
	release := make(chan struct{})
	var startCalls int
	var mu sync.Mutex
	s.RegisterFuncs(
		func(ctx context.Context) error {
			mu.Lock()
			startCalls++
			mu.Unlock()
			close(started)
			<-release
			return nil
		},
		func(ctx context.Context) error { return nil },
	)

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Start(context.Background())
		}(i)
	}

	<-started
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("errs[%d] = %v", i, err)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if startCalls != 1 {
		t.Fatalf("startCalls = %d, want 1", startCalls)
	}
}

func TestStopIdempotent(t *testing.T) {
	s := New(nil)
	s.RegisterFuncs(
		func(ctx context.Context) error { return nil },
		func(ctx context.Context) error { return nil },
	)
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop on fresh supervisor: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

// Package sessionscheduler serializes per-chat turn processing: a FIFO
// per chat, debounced inbound bursts, at most one turn in flight per
// chat at a time, a bounded pending-history window, and graceful
// cancellation that drains in-flight turns before returning.
//
// Grounded on a prior internal/debounce.Debouncer[T] for the coalescing
// shape and a prior internal/sessions per-chat locking idea,
// generalized into one scheduler that owns both concerns together
// instead of splitting them across two packages.
package sessionscheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/therenovatio/teleton/internal/debounce"
	"github.com/therenovatio/teleton/internal/domain"
)

// MaxPendingPerChat caps how many inbound messages a chat may have
// accepted but not yet processed within the rolling window. Once the
// cap is reached Enqueue rejects further messages; messages already
// queued are not dropped to make room. This keeps a chat flooded with
// messages from growing memory unbounded while its turn processor is
// busy or the agent is down.
const MaxPendingPerChat = 50

// PendingWindow is the rolling window MaxPendingPerChat is enforced over.
const PendingWindow = 24 * time.Hour

// Inbound is one inbound message waiting to be folded into a turn.
type Inbound struct {
	ChatID    string
	Message   domain.Message
	Dispatch  domain.DispatchContext
	Timestamp time.Time
}

// TurnFunc processes one coalesced batch of inbound messages for a chat.
type TurnFunc func(ctx context.Context, chatID string, batch []Inbound) error

// Scheduler coalesces and serializes turn processing per chat.
type Scheduler struct {
	mu      sync.Mutex
	pending map[string][]time.Time // rolling-window timestamps per chat, for the cap
	inFlight map[string]bool

	debouncer *debounce.Debouncer[Inbound]
	turnFn    TurnFunc
	logger    *slog.Logger

	wg     sync.WaitGroup
	draining bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger attaches a logger; defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds a Scheduler that debounces inbound messages per chat by
// debounceDelay before invoking turnFn with the coalesced batch.
func New(debounceDelay time.Duration, turnFn TurnFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		pending:  make(map[string][]time.Time),
		inFlight: make(map[string]bool),
		turnFn:   turnFn,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.debouncer = debounce.New(
		debounce.WithDelay[Inbound](debounceDelay),
		debounce.WithBuildKey(func(item *Inbound) string { return item.ChatID }),
		debounce.WithOnFlush(func(items []*Inbound) error {
			batch := make([]Inbound, len(items))
			for i, it := range items {
				batch[i] = *it
			}
			s.runTurn(batch)
			// The processed messages no longer count against the cap:
			// release the oldest timestamps recorded for this chat.
			if len(batch) > 0 {
				chatID := batch[0].ChatID
				s.mu.Lock()
				if times := s.pending[chatID]; len(times) <= len(batch) {
					delete(s.pending, chatID)
				} else {
					s.pending[chatID] = times[len(batch):]
				}
				s.mu.Unlock()
			}
			return nil
		}),
		debounce.WithOnError(func(err error, items []*Inbound) {
			s.logger.Error("sessionscheduler: turn failed", "error", err)
		}),
	)
	return s
}

// Enqueue accepts one inbound message for chatID, applying the
// per-chat pending cap before handing it to the debouncer. Returns
// false if the chat's queue is at capacity and the message was dropped.
func (s *Scheduler) Enqueue(msg Inbound) bool {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return false
	}
	cutoff := time.Now().Add(-PendingWindow)
	times := s.pending[msg.ChatID]
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= MaxPendingPerChat {
		s.pending[msg.ChatID] = kept
		s.mu.Unlock()
		return false
	}
	s.pending[msg.ChatID] = append(kept, time.Now())
	s.mu.Unlock()

	s.debouncer.Enqueue(&msg)
	return true
}

// runTurn serializes processing for one chat: if a turn is already in
// flight for this chat, the newly flushed batch waits for it to finish
// rather than running two turns concurrently for the same chat.
// Messages that arrive during that wait are not added to the waiting
// batch; the debouncer flushes them as a later batch.
func (s *Scheduler) runTurn(items []Inbound) {
	if len(items) == 0 {
		return
	}
	chatID := items[0].ChatID

	s.mu.Lock()
	for s.inFlight[chatID] {
		s.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		s.mu.Lock()
	}
	s.inFlight[chatID] = true
	s.mu.Unlock()

	s.wg.Add(1)
	defer func() {
		s.mu.Lock()
		delete(s.inFlight, chatID)
		s.mu.Unlock()
		s.wg.Done()
	}()

	if err := s.turnFn(context.Background(), chatID, items); err != nil {
		s.logger.Error("sessionscheduler: turn function error", "chat_id", chatID, "error", err)
	}
}

// Shutdown stops accepting new messages and flushes every chat's
// pending batch immediately. The flush runs those turns before it
// returns, so grace bounds only the wait for turns still in flight
// after the flush.
func (s *Scheduler) Shutdown(grace time.Duration) {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()

	s.debouncer.FlushAll()
	s.debouncer.Stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		s.logger.Warn("sessionscheduler: shutdown grace period elapsed with turns still in flight")
	}
}

// PendingItems returns how many messages are queued (debounced but
// not yet flushed) across all chats, for status reporting.
func (s *Scheduler) PendingItems() int {
	return s.debouncer.PendingItems()
}

// Package debounce batches items by key and flushes each key's batch
// after a quiet period, used by sessionscheduler to coalesce a burst
// of inbound messages for the same chat into one turn.
package debounce

import (
	"sync"
	"time"
)

// Buffer holds one key's pending items and its flush timer.
type Buffer[T any] struct {
	Items []*T
	Timer *time.Timer
}

// Debouncer batches items by key and flushes them after a quiet
// period with no new arrivals for that key.
type Debouncer[T any] struct {
	mu      sync.Mutex
	buffers map[string]*Buffer[T]
	stopped bool

	delay    time.Duration
	buildKey func(item *T) string
	onFlush  func(items []*T) error
	onError  func(err error, items []*T)
}

// Option configures a Debouncer.
type Option[T any] func(*Debouncer[T])

// WithDelay sets the quiet-period duration before a key's batch flushes.
func WithDelay[T any](d time.Duration) Option[T] {
	return func(deb *Debouncer[T]) {
		if d < 0 {
			d = 0
		}
		deb.delay = d
	}
}

// WithBuildKey sets the grouping key function.
func WithBuildKey[T any](fn func(item *T) string) Option[T] {
	return func(d *Debouncer[T]) { d.buildKey = fn }
}

// WithOnFlush sets the callback invoked with a key's batched items.
func WithOnFlush[T any](fn func(items []*T) error) Option[T] {
	return func(d *Debouncer[T]) { d.onFlush = fn }
}

// WithOnError sets a callback for errors returned by onFlush.
func WithOnError[T any](fn func(err error, items []*T)) Option[T] {
	return func(d *Debouncer[T]) { d.onError = fn }
}

// New builds a Debouncer. Without WithBuildKey every item shares one
// key; without WithOnFlush flushed batches are silently dropped.
func New[T any](opts ...Option[T]) *Debouncer[T] {
	d := &Debouncer[T]{buffers: make(map[string]*Buffer[T])}
	for _, opt := range opts {
		opt(d)
	}
	if d.buildKey == nil {
		d.buildKey = func(item *T) string { return "default" }
	}
	if d.onFlush == nil {
		d.onFlush = func(items []*T) error { return nil }
	}
	return d
}

// Enqueue adds an item to its key's batch, resetting that key's flush
// timer. If delay is zero the item flushes immediately.
func (d *Debouncer[T]) Enqueue(item *T) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}

	key := d.buildKey(item)
	if d.delay <= 0 || key == "" {
		if key != "" {
			if buf, exists := d.buffers[key]; exists {
				d.flushBufferLocked(key, buf)
			}
		}
		d.mu.Unlock()
		d.flushItems([]*T{item})
		return
	}

	if existing, exists := d.buffers[key]; exists {
		existing.Items = append(existing.Items, item)
		if existing.Timer != nil {
			existing.Timer.Stop()
		}
		existing.Timer = time.AfterFunc(d.delay, func() { d.FlushKey(key) })
		d.mu.Unlock()
		return
	}

	buf := &Buffer[T]{Items: []*T{item}}
	buf.Timer = time.AfterFunc(d.delay, func() { d.FlushKey(key) })
	d.buffers[key] = buf
	d.mu.Unlock()
}

// FlushKey flushes one key's pending items immediately, canceling its
// timer.
func (d *Debouncer[T]) FlushKey(key string) {
	d.mu.Lock()
	buf, exists := d.buffers[key]
	if !exists || d.stopped {
		d.mu.Unlock()
		return
	}
	d.flushBufferLocked(key, buf)
	d.mu.Unlock()
}

// flushBufferLocked removes and flushes buf. Caller holds d.mu; the
// lock is released during the flush callback and re-acquired after.
func (d *Debouncer[T]) flushBufferLocked(key string, buf *Buffer[T]) {
	delete(d.buffers, key)
	if buf.Timer != nil {
		buf.Timer.Stop()
		buf.Timer = nil
	}
	if len(buf.Items) == 0 {
		return
	}
	items := buf.Items
	buf.Items = nil

	d.mu.Unlock()
	d.flushItems(items)
	d.mu.Lock()
}

func (d *Debouncer[T]) flushItems(items []*T) {
	if len(items) == 0 {
		return
	}
	if err := d.onFlush(items); err != nil && d.onError != nil {
		d.onError(err, items)
	}
}

// FlushAll flushes every key's pending items immediately, used during
// a graceful shutdown so nothing queued is silently dropped.
func (d *Debouncer[T]) FlushAll() {
	d.mu.Lock()
	keys := make([]string, 0, len(d.buffers))
	for k := range d.buffers {
		keys = append(keys, k)
	}
	d.mu.Unlock()
	for _, k := range keys {
		d.FlushKey(k)
	}
}

// Stop cancels all pending timers and rejects further Enqueue calls
// without flushing — use FlushAll first if pending work must run.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for key, buf := range d.buffers {
		if buf.Timer != nil {
			buf.Timer.Stop()
			buf.Timer = nil
		}
		delete(d.buffers, key)
	}
}

// PendingCount returns the number of keys with pending items.
func (d *Debouncer[T]) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffers)
}

// PendingItems returns the total number of pending items across all keys.
func (d *Debouncer[T]) PendingItems() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, buf := range d.buffers {
		n += len(buf.Items)
	}
	return n
}

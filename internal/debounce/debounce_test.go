package debounce

import (
	"sync"
	"testing"
	"time"
)

func TestEnqueueBatchesByKey(t *testing.T) {
	var mu sync.Mutex
	var flushed [][]int

	d := New(
		WithDelay[int](30*time.Millisecond),
		WithBuildKey(func(item *int) string { return "k" }),
		WithOnFlush(func(items []*int) error {
			mu.Lock()
			defer mu.Unlock()
			batch := make([]int, len(items))
			for i, it := range items {
				batch[i] = *it
			}
			flushed = append(flushed, batch)
			return nil
		}),
	)

	a, b, c := 1, 2, 3
	d.Enqueue(&a)
	d.Enqueue(&b)
	d.Enqueue(&c)

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(flushed) != 1 || len(flushed[0]) != 3 {
		t.Fatalf("flushed = %v, want one batch of 3", flushed)
	}
}

func TestZeroDelayFlushesImmediately(t *testing.T) {
	var count int
	d := New(WithOnFlush(func(items []*int) error {
		count += len(items)
		return nil
	}))
	v := 5
	d.Enqueue(&v)
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestFlushAllDrainsPending(t *testing.T) {
	var flushedCount int
	d := New(
		WithDelay[int](time.Hour),
		WithBuildKey(func(item *int) string { return "k" }),
		WithOnFlush(func(items []*int) error {
			flushedCount += len(items)
			return nil
		}),
	)
	a, b := 1, 2
	d.Enqueue(&a)
	d.Enqueue(&b)
	if d.PendingItems() != 2 {
		t.Fatalf("pending = %d, want 2", d.PendingItems())
	}
	d.FlushAll()
	if flushedCount != 2 {
		t.Fatalf("flushedCount = %d, want 2", flushedCount)
	}
	if d.PendingItems() != 0 {
		t.Fatalf("pending after flush = %d, want 0", d.PendingItems())
	}
}

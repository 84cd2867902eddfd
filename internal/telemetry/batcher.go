package telemetry

import (
	"log/slog"
	"sync"
	"time"
)

// Batcher accumulates items and flushes them in batches, either when the
// batch reaches maxSize or after flushDelay from the first pending item.
// Flushes run on their own goroutine so Add never blocks on sink I/O.
type Batcher[T any] struct {
	maxSize    int
	flushDelay time.Duration
	flush      func([]T) error

	mu      sync.Mutex
	pending []T
	timer   *time.Timer

	wg sync.WaitGroup
}

// NewBatcher creates a batcher that hands batches to flush. Non-positive
// sizes and delays fall back to the package defaults.
func NewBatcher[T any](maxSize int, flushDelay time.Duration, flush func([]T) error) *Batcher[T] {
	if maxSize <= 0 {
		maxSize = DefaultBatchSize
	}
	if flushDelay <= 0 {
		flushDelay = DefaultFlushDelay
	}
	return &Batcher[T]{
		maxSize:    maxSize,
		flushDelay: flushDelay,
		flush:      flush,
	}
}

// Add queues an item, flushing if the batch is full.
func (b *Batcher[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = append(b.pending, item)
	if len(b.pending) >= b.maxSize {
		b.flushLocked()
		return
	}
	if b.timer == nil {
		b.timer = time.AfterFunc(b.flushDelay, b.Flush)
	}
}

// Flush writes any pending items immediately.
func (b *Batcher[T]) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

func (b *Batcher[T]) flushLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if len(b.pending) == 0 {
		return
	}

	batch := b.pending
	b.pending = nil

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.flush(batch); err != nil {
			slog.Error("telemetry batch flush failed", "count", len(batch), "error", err)
		}
	}()
}

// Stop flushes pending items and waits for in-flight flushes to finish.
func (b *Batcher[T]) Stop() {
	b.Flush()
	b.wg.Wait()
}

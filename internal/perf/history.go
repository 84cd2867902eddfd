package perf

import "time"

// history is a bounded ring of samples. The oldest entry is overwritten at
// capacity; entries older than the window age out as new samples land.
type history struct {
	samples  []Sample
	capacity int
	head     int // next write position
	size     int
}

func newHistory(capacity int) *history {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &history{
		samples:  make([]Sample, capacity),
		capacity: capacity,
	}
}

func (h *history) add(s Sample, window time.Duration) {
	h.samples[h.head] = s
	h.head = (h.head + 1) % h.capacity
	if h.size < h.capacity {
		h.size++
	}

	cutoff := s.At.Add(-window)
	for h.size > 1 {
		idx := (h.head - h.size + h.capacity) % h.capacity
		if !h.samples[idx].At.Before(cutoff) {
			break
		}
		h.size--
	}
}

// all returns the window contents, oldest to newest.
func (h *history) all() []Sample {
	if h.size == 0 {
		return nil
	}
	out := make([]Sample, h.size)
	for i := 0; i < h.size; i++ {
		idx := (h.head - h.size + i + h.capacity) % h.capacity
		out[i] = h.samples[idx]
	}
	return out
}

// tail returns the newest n samples, oldest first.
func (h *history) tail(n int) []Sample {
	if n > h.size {
		n = h.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]Sample, n)
	for i := 0; i < n; i++ {
		idx := (h.head - n + i + h.capacity) % h.capacity
		out[i] = h.samples[idx]
	}
	return out
}

func (h *history) len() int { return h.size }

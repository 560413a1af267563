package pipeline

import (
	"fmt"
	"sync"
)

// 📢 Reporter is a multi-producer, single-consumer buffer of progress
// lines. Publishing never blocks (bounded only by memory), so workers
// are never stalled by a slow console; the coordinator drains
// opportunistically between result completions. Lines from a single
// producer come out in the order they were published.
type Reporter struct {
	mu      sync.Mutex
	pending []string
}

// 🏭 NewReporter creates a new reporter
func NewReporter() *Reporter {
	return &Reporter{}
}

// 📝 Publish appends a formatted progress line
func (r *Reporter) Publish(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	r.mu.Lock()
	r.pending = append(r.pending, line)
	r.mu.Unlock()
}

// 📥 Drain removes and returns all pending lines
func (r *Reporter) Drain() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := r.pending
	r.pending = nil
	return lines
}

// 🔢 Pending reports how many lines are waiting
func (r *Reporter) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

package fetch

import "sync"

// Canceller is the advisory cancellation flag shared by all in-flight workers.
// Cancellation is scoped by generation: Cancel marks the current run, and
// beginning a new run (or retry) implicitly clears the flag for its items.
// It is cooperative, not preemptive — a fetch past its last checkpoint will
// complete normally.
type Canceller struct {
	mu           sync.Mutex
	generation   int64
	cancelledGen int64 // highest generation a cancel request applies to
}

// NewCanceller creates a canceller with no run started
func NewCanceller() *Canceller {
	return &Canceller{}
}

// Begin starts a new run and returns its generation
func (c *Canceller) Begin() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	return c.generation
}

// Cancel requests cancellation of the current run. Runs begun afterwards are
// unaffected.
func (c *Canceller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelledGen = c.generation
}

// Cancelled reports whether the given run generation has been cancelled
func (c *Canceller) Cancelled(generation int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return generation <= c.cancelledGen && generation > 0
}

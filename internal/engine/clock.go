package engine

import "sync/atomic"

// Clock is the process-wide record version counter. Every create and
// update stamps the record with the next value; optimistic-concurrency
// checks compare a caller-supplied token against the stamped version.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// The counter is shared across all entity types of one engine instance,
// not per-type.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next version and increments the clock. Calls are
// linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current version without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

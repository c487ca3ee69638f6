package engine

import "sync/atomic"

// Clock is the engine's generation counter.
//
// Every successful mutation of the rule or set tables takes the next value,
// so two equal generations always describe the same tables.
// Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock at generation 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming from start, e.g. the number of
// revisions already persisted.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new generation.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current generation without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

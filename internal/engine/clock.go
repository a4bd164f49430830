package engine

import "sync/atomic"

// Clock hands out replacement sequence numbers. Numbers start at 1 and never
// repeat; replacements are ordered by them, never by wall time.
//
// A Clock is private to one Apply unless WithClock shares it. A shared clock
// is safe for concurrent use: numbers stay unique across units and every
// Reserve block stays contiguous, but the order of blocks from different
// units follows worker scheduling.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock whose first number is 1.
func NewClock() *Clock {
	return &Clock{}
}

// Reserve claims n consecutive numbers and returns the first of them. For
// n < 1 nothing is claimed and the next unclaimed number is reported.
func (c *Clock) Reserve(n int) int64 {
	if n < 1 {
		return c.last.Load() + 1
	}
	return c.last.Add(int64(n)) - int64(n) + 1
}

// Last returns the most recently issued number, or the starting point when
// nothing was issued yet.
func (c *Clock) Last() int64 {
	return c.last.Load()
}

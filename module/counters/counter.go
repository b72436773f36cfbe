// Package counters implements a strict monotonous counter, used wherever a
// height or progress marker must never move backwards.
package counters

import (
	"go.uber.org/atomic"
)

// StrictMonotonousCounter only increases, never decreases. It is safe for
// concurrent use and can be passed by value, like a channel.
type StrictMonotonousCounter struct {
	value *atomic.Uint64
}

// NewMonotonousCounter creates a counter with the given initial value.
func NewMonotonousCounter(initial uint64) StrictMonotonousCounter {
	return StrictMonotonousCounter{
		value: atomic.NewUint64(initial),
	}
}

// Set updates the counter and returns true if the new value is strictly
// larger than the stored one, otherwise it leaves the counter unchanged and
// returns false.
func (c StrictMonotonousCounter) Set(processing uint64) bool {
	for {
		current := c.value.Load()
		if processing <= current {
			return false
		}
		if c.value.CompareAndSwap(current, processing) {
			return true
		}
	}
}

// Value returns the current value of the counter.
func (c StrictMonotonousCounter) Value() uint64 {
	return c.value.Load()
}

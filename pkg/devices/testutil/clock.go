package testutil

import (
	"sync"
	"time"
)

//ManualClock is a clock that only moves when told to, it satisfies the clock
// interface the benchmark engine times operations with
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

//NewManualClock returns a clock frozen at a fixed instant
func NewManualClock() *ManualClock {
	return &ManualClock{now: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)}
}

//Now returns the current manual time
func (mc *ManualClock) Now() time.Time {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.now
}

//Advance moves the clock forward
func (mc *ManualClock) Advance(d time.Duration) {
	mc.mu.Lock()
	mc.now = mc.now.Add(d)
	mc.mu.Unlock()
}

//Resolution reports nanosecond granularity
func (*ManualClock) Resolution() time.Duration {
	return time.Nanosecond
}

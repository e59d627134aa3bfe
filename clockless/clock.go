package clockless

import "time"

// Clock is a free-running cycle counter. It is the only place the timing
// loops read time from, so tests can substitute a deterministic counter.
// The counter may wrap; all deadline math is done with wrap-safe compares.
type Clock interface {
	// Cycles returns the current counter value.
	Cycles() uint32
	// Hz returns the counter frequency.
	Hz() uint32
}

// sysClock derives a cycle count from the monotonic clock. On a host OS this
// is the closest available analog of a CPU cycle counter.
type sysClock struct {
	t0 time.Time
	hz uint32
}

// NewSysClock returns a Clock ticking at hz, anchored at the call time.
// 100MHz gives 10ns granularity, enough margin for 800kHz-class protocols.
func NewSysClock(hz uint32) Clock {
	return &sysClock{t0: time.Now(), hz: hz}
}

func (c *sysClock) Cycles() uint32 {
	return cyclesIn(time.Since(c.t0), c.hz)
}

// cyclesIn converts an elapsed duration to counter cycles. Whole seconds
// and the sub-second remainder are scaled separately: a single
// nanoseconds-times-hz product overflows uint64 within minutes of uptime
// at realistic frequencies and would make the counter jump backward.
// Truncation to uint32 is the intended counter wrap.
func cyclesIn(d time.Duration, hz uint32) uint32 {
	sec := uint64(d / time.Second)
	rem := uint64(d % time.Second)
	return uint32(sec*uint64(hz) + rem*uint64(hz)/1e9)
}

func (c *sysClock) Hz() uint32 { return c.hz }

// reached reports whether now is at or past deadline, tolerating counter
// wrap (valid while the distance is under half the counter range).
func reached(now, deadline uint32) bool {
	return int32(now-deadline) >= 0
}

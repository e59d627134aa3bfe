// Package clockless implements the bit-timing transmission engine for
// one-wire LED protocols (WS2812 class). One canonical three-interval state
// machine drives both the single-lane and the multi-lane block variants;
// all waits spin against a Clock deadline captured in absolute cycles, never
// relative to "now", so rounding can not accumulate into drift.
package clockless

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/coreman2200/funtimes-ledengine/chipset"
	"github.com/coreman2200/funtimes-ledengine/pixel"
)

// DefaultSlack is the interrupt-overrun tolerance used when Config leaves
// MaxOverrun zero. A few microseconds: past that the downstream chip has
// latched and later bits would paint wrong pixels anyway.
const DefaultSlack = 5 * time.Microsecond

var (
	ErrNilPin     = errors.New("clockless: nil pin")
	ErrNilClock   = errors.New("clockless: nil clock")
	ErrOverrun    = errors.New("clockless: timing overrun, frame aborted")
	ErrInProgress = errors.New("clockless: transmission already in progress")
)

// Config carries everything a driver needs besides its output.
type Config struct {
	Timing chipset.Timing
	Clock  Clock
	// MaxOverrun is how late a sub-deadline may be met before the rest of
	// the frame is abandoned. Zero selects DefaultSlack.
	MaxOverrun time.Duration
}

func (c Config) resolve() (chipset.CycleTiming, uint32, error) {
	if c.Clock == nil {
		return chipset.CycleTiming{}, 0, ErrNilClock
	}
	ct, err := c.Timing.Cycles(c.Clock.Hz())
	if err != nil {
		return chipset.CycleTiming{}, 0, err
	}
	slack := c.MaxOverrun
	if slack == 0 {
		slack = DefaultSlack
	}
	sc := uint32(uint64(slack) * uint64(c.Clock.Hz()) / 1e9)
	if sc == 0 {
		sc = 1
	}
	return ct, sc, nil
}

// Driver emits one lane. It stays usable after an overrun abort; the failed
// frame is simply dropped and the overrun counter incremented.
type Driver struct {
	pin   Pin
	clk   Clock
	ct    chipset.CycleTiming
	slack uint32

	reset    time.Duration
	overruns uint32
	busy     uint32
}

// New validates the configuration and builds a single-lane driver. A failed
// construction leaves nothing claimed.
func New(pin Pin, cfg Config) (*Driver, error) {
	if pin == nil {
		return nil, ErrNilPin
	}
	ct, slack, err := cfg.resolve()
	if err != nil {
		return nil, err
	}
	return &Driver{pin: pin, clk: cfg.Clock, ct: ct, slack: slack, reset: cfg.Timing.Reset}, nil
}

// ResetWait is the minimum low time required between frames.
func (d *Driver) ResetWait() time.Duration { return d.reset }

// Overruns returns how many frames have been aborted mid-transmission.
func (d *Driver) Overruns() uint32 { return atomic.LoadUint32(&d.overruns) }

// Show transmits one frame from the iterator, blocking until the last bit's
// trailing low interval has elapsed. A zero-length frame produces no edges.
//
// The line is left low on every exit path, including aborts.
func (d *Driver) Show(it *pixel.Iterator) error {
	if !atomic.CompareAndSwapUint32(&d.busy, 0, 1) {
		return ErrInProgress
	}
	defer atomic.StoreUint32(&d.busy, 0)

	it.Reset()
	if !it.HasNext() {
		return nil
	}
	ct, clk, pin := d.ct, d.clk, d.pin
	next := clk.Cycles()
	for it.HasNext() {
		b := it.NextByte()
		for k := 7; k >= 0; k-- {
			// T1: committed high.
			spinUntil(clk, next)
			pin.High()
			if b>>uint(k)&1 == 0 {
				// T2 for a zero: drop as soon as T1 expires.
				spinUntil(clk, next+ct.C1)
				pin.Low()
			}
			// End of T2: low regardless of bit value, and the only
			// point where jitter is measured. Anything that stalled
			// us (an interrupt, the scheduler) shows up here as lag
			// past the absolute deadline.
			late := spinUntil(clk, next+ct.C1+ct.C2)
			pin.Low()
			next += ct.Period
			if late > d.slack {
				atomic.AddUint32(&d.overruns, 1)
				return fmt.Errorf("%w: %d cycles late", ErrOverrun, late)
			}
		}
	}
	// T3 of the final bit.
	spinUntil(clk, next)
	return nil
}

// spinUntil busy-waits to the absolute deadline and returns how many cycles
// past it the counter already was. No sleeping: the margins are fractions
// of a microsecond.
func spinUntil(clk Clock, deadline uint32) uint32 {
	for {
		now := clk.Cycles()
		if reached(now, deadline) {
			return now - deadline
		}
	}
}

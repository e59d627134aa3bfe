// Package chipset holds the wire-protocol timing contracts of supported LED
// driver ICs. Clockless parts are described by the three named sub-intervals
// of one bit period (T1 high, T2 data-dependent, T3 low) plus the minimum
// inter-frame reset gap; clocked parts only carry a maximum clock rate.
//
// These values are vendor-defined and not user-configurable.
package chipset

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"periph.io/x/conn/v3/physic"
)

// Timing is one clockless bit period, split in three intervals.
//
//	"1" bit: high for T1+T2, low for T3
//	"0" bit: high for T1, low for T2+T3
//
// Reset is the minimum low time between frames (the latch).
type Timing struct {
	T1    time.Duration
	T2    time.Duration
	T3    time.Duration
	Reset time.Duration
}

// BitPeriod is the total duration of one bit, independent of its value.
func (t Timing) BitPeriod() time.Duration { return t.T1 + t.T2 + t.T3 }

var (
	ErrZeroInterval = errors.New("chipset: timing interval must be > 0")
	ErrShortReset   = errors.New("chipset: reset below 50us latch minimum")
	ErrUnresolvable = errors.New("chipset: interval shorter than one counter cycle")
	ErrUnknownName  = errors.New("chipset: unknown chipset name")
	ErrClockTooSlow = errors.New("chipset: counter too slow for timing tolerance")
)

// Validate rejects descriptors no hardware could honor.
func (t Timing) Validate() error {
	if t.T1 <= 0 || t.T2 <= 0 || t.T3 <= 0 {
		return ErrZeroInterval
	}
	if t.Reset < 50*time.Microsecond {
		return ErrShortReset
	}
	return nil
}

// CycleTiming is a Timing resolved against a concrete counter frequency.
// All waits in the transmission loop are expressed in these units.
type CycleTiming struct {
	C1, C2, C3 uint32
	Period     uint32 // C1+C2+C3
	Reset      uint32
}

// Cycles converts t to counter cycles at hz. It fails when any interval
// rounds below one cycle, or when the counter is so coarse that rounding
// alone would push a sub-interval outside the tens-of-nanoseconds window the
// chipsets tolerate (more than ~25% relative error on the shortest interval).
func (t Timing) Cycles(hz uint32) (CycleTiming, error) {
	if err := t.Validate(); err != nil {
		return CycleTiming{}, err
	}
	if hz == 0 {
		return CycleTiming{}, fmt.Errorf("chipset: %w: 0 Hz", ErrUnresolvable)
	}
	toCycles := func(d time.Duration) uint32 {
		return uint32((uint64(d)*uint64(hz) + 5e8) / 1e9)
	}
	ct := CycleTiming{
		C1:    toCycles(t.T1),
		C2:    toCycles(t.T2),
		C3:    toCycles(t.T3),
		Reset: toCycles(t.Reset),
	}
	if ct.C1 == 0 || ct.C2 == 0 || ct.C3 == 0 {
		return CycleTiming{}, fmt.Errorf("chipset: %w at %d Hz", ErrUnresolvable, hz)
	}
	// One counter tick must be small against the shortest interval, or the
	// emitted pulse widths drift outside tolerance.
	shortest := t.T1
	if t.T2 < shortest {
		shortest = t.T2
	}
	if t.T3 < shortest {
		shortest = t.T3
	}
	tick := time.Second / time.Duration(hz)
	if tick*4 > shortest {
		return CycleTiming{}, fmt.Errorf("chipset: %w: tick %v vs interval %v", ErrClockTooSlow, tick, shortest)
	}
	ct.Period = ct.C1 + ct.C2 + ct.C3
	return ct, nil
}

// Clockless chipset contracts. Sub-interval values follow the vendor
// datasheets; Reset uses the conservative modern latch requirement.
var (
	WS2811S    = Timing{T1: 500 * time.Nanosecond, T2: 2000 * time.Nanosecond, T3: 2500 * time.Nanosecond, Reset: 50 * time.Microsecond}
	WS2811     = Timing{T1: 320 * time.Nanosecond, T2: 320 * time.Nanosecond, T3: 640 * time.Nanosecond, Reset: 50 * time.Microsecond}
	WS2812     = Timing{T1: 250 * time.Nanosecond, T2: 625 * time.Nanosecond, T3: 375 * time.Nanosecond, Reset: 50 * time.Microsecond}
	WS2812B    = Timing{T1: 400 * time.Nanosecond, T2: 450 * time.Nanosecond, T3: 400 * time.Nanosecond, Reset: 280 * time.Microsecond}
	SK6812     = Timing{T1: 300 * time.Nanosecond, T2: 300 * time.Nanosecond, T3: 600 * time.Nanosecond, Reset: 80 * time.Microsecond}
	SK6812RGBW = Timing{T1: 300 * time.Nanosecond, T2: 300 * time.Nanosecond, T3: 600 * time.Nanosecond, Reset: 80 * time.Microsecond}
	TM1809     = Timing{T1: 350 * time.Nanosecond, T2: 350 * time.Nanosecond, T3: 550 * time.Nanosecond, Reset: 50 * time.Microsecond}
	UCS1903    = Timing{T1: 500 * time.Nanosecond, T2: 1500 * time.Nanosecond, T3: 500 * time.Nanosecond, Reset: 50 * time.Microsecond}
)

// ByName resolves a timing descriptor from a configuration string.
// Matching is case-insensitive.
func ByName(name string) (Timing, error) {
	switch strings.ToLower(name) {
	case "ws2811":
		return WS2811, nil
	case "ws2811s":
		return WS2811S, nil
	case "ws2812":
		return WS2812, nil
	case "ws2812b", "neopixel":
		return WS2812B, nil
	case "sk6812":
		return SK6812, nil
	case "sk6812rgbw":
		return SK6812RGBW, nil
	case "tm1809":
		return TM1809, nil
	case "ucs1903":
		return UCS1903, nil
	}
	return Timing{}, fmt.Errorf("%w: %q", ErrUnknownName, name)
}

// SPIProfile bounds a clocked (2-wire) chipset. Clock edges define the bit
// timing, so the only hard limit is the part's maximum clock rate.
type SPIProfile struct {
	Name     string
	MaxClock physic.Frequency
}

// Clocked chipset profiles.
var (
	APA102  = SPIProfile{Name: "apa102", MaxClock: 20 * physic.MegaHertz}
	SK9822  = SPIProfile{Name: "sk9822", MaxClock: 15 * physic.MegaHertz}
	LPD8806 = SPIProfile{Name: "lpd8806", MaxClock: 12 * physic.MegaHertz}
)

package parallel

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/funtimes-ledengine/chipset"
	"github.com/coreman2200/funtimes-ledengine/pixel"
	"github.com/coreman2200/funtimes-ledengine/transpose"
)

// Driver streams up to 16 lanes through a word peripheral. Every wire bit
// expands to three 16-bit waveform words matching the T1/T2/T3 intervals:
// all-lanes-high, the transposed data slice, all-low. The peripheral clocks
// words out at 3x the bit rate, so the pulse widths land on the protocol
// windows without any CPU involvement after Kick.
type Driver struct {
	per   Peripheral
	lanes int
	pad   int // trailing zero words for the reset gap

	// Two fixed-size waveform buffers; Show alternates between them so the
	// frame being transferred is never the one being rebuilt.
	bufs [2][]byte
	cur  int

	staging [][]byte
	slices  []uint32
	reset   time.Duration
}

const driverMaxLanes = 16

// NewDriver claims the peripheral for a lane group of the given chipset
// timing and LED count. Buffer sizes are fixed here; per-frame sizes never
// change, so underruns are a programming error, not a runtime condition.
func NewDriver(per Peripheral, lanes, pixelsPerLane, channels int, t chipset.Timing) (*Driver, error) {
	if per == nil {
		return nil, ErrNotBegun
	}
	if lanes < 1 || lanes > driverMaxLanes {
		return nil, fmt.Errorf("%w: %d", ErrLaneCount, lanes)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	bitPeriod := t.BitPeriod()
	wordRate := 3 * (1e9 / bitPeriod.Nanoseconds())
	cfg := Config{Lanes: lanes, WordRate: physicHz(wordRate), Format: FormatWords16}
	if err := per.Begin(cfg); err != nil {
		return nil, err
	}

	laneBytes := pixelsPerLane * channels
	// Reset gap expressed in idle words at the word rate.
	pad := int(t.Reset.Nanoseconds()*wordRate/1e9) + 1
	frameWords := laneBytes*8*3 + pad
	d := &Driver{
		per:     per,
		lanes:   lanes,
		pad:     pad,
		staging: make([][]byte, lanes),
		slices:  make([]uint32, laneBytes*8),
		reset:   t.Reset,
	}
	for i := range d.staging {
		d.staging[i] = make([]byte, laneBytes)
	}
	d.bufs[0] = make([]byte, frameWords*2)
	d.bufs[1] = make([]byte, frameWords*2)
	return d, nil
}

// Lanes returns the lane count of the group.
func (d *Driver) Lanes() int { return d.lanes }

// ResetWait is the inter-frame gap; the waveform already carries it as idle
// words, so callers only need this for pacing, not correctness.
func (d *Driver) ResetWait() time.Duration { return d.reset }

// Complete reports whether the last kicked frame has fully left the wire.
func (d *Driver) Complete() bool { return !d.per.Busy() }

// Wait blocks until the in-flight frame is done.
func (d *Driver) Wait() error { return d.per.Wait() }

// Show builds the waveform for all lanes and kicks the transfer, returning
// without blocking on the wire. If the previous frame is still in flight it
// first waits for it: the spare buffer is the one being filled, so at no
// point does the peripheral read memory the CPU is writing.
func (d *Driver) Show(its []*pixel.Iterator) error {
	if len(its) != d.lanes {
		return fmt.Errorf("%w: %d iterators for %d lanes", ErrLaneCount, len(its), d.lanes)
	}
	buf := d.bufs[d.cur]
	if err := d.encode(buf, its); err != nil {
		return err
	}
	if err := d.per.Wait(); err != nil {
		return err
	}
	d.cur ^= 1
	return d.per.Kick(buf)
}

func (d *Driver) encode(buf []byte, its []*pixel.Iterator) error {
	laneBytes := len(d.staging[0])
	for l, it := range its {
		if it == nil {
			for i := range d.staging[l] {
				d.staging[l][i] = 0
			}
			continue
		}
		if it.Len() != laneBytes {
			return fmt.Errorf("%w: lane %d has %d bytes, group uses %d", errFrameLength, l, it.Len(), laneBytes)
		}
		if err := it.FillWire(d.staging[l]); err != nil {
			return err
		}
	}
	if err := transpose.Slices(d.staging, d.slices); err != nil {
		return err
	}

	high := uint16(1)<<uint(d.lanes) - 1
	w := 0
	put := func(v uint16) {
		buf[w] = byte(v)
		buf[w+1] = byte(v >> 8)
		w += 2
	}
	for _, s := range d.slices {
		put(high)      // T1: every lane high
		put(uint16(s)) // T2: data slice
		put(0)         // T3: every lane low
	}
	for i := 0; i < d.pad; i++ {
		put(0) // reset gap
	}
	return nil
}

func physicHz(hz int64) physic.Frequency {
	return physic.Frequency(hz) * physic.Hertz
}

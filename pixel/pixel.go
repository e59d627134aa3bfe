// Package pixel is the color pipeline: it walks an application-owned RGB(W)
// buffer and produces wire-order bytes with color correction, color
// temperature and global brightness folded into a single per-channel scale,
// plus optional temporal dithering. All arithmetic is saturating byte math;
// nothing here allocates on the per-frame path.
package pixel

import (
	"errors"
	"fmt"
)

// Correction is a per-channel scale triple (R, G, B). It doubles as a color
// temperature value; both are combined multiplicatively with brightness.
type Correction [3]uint8

// FromCode splits a 0xRRGGBB code into a Correction.
func FromCode(c uint32) Correction {
	return Correction{uint8(c >> 16), uint8(c >> 8), uint8(c)}
}

// Color correction presets for common strip hardware.
var (
	TypicalSMD5050   = FromCode(0xFFB0F0)
	TypicalLEDStrip  = TypicalSMD5050
	Typical8mmPixel  = FromCode(0xFFE08C)
	UncorrectedColor = FromCode(0xFFFFFF)
)

// Color temperature presets (black-body approximations).
var (
	Candle         = FromCode(0xFF9329)
	Tungsten40W    = FromCode(0xFFC58F)
	Tungsten100W   = FromCode(0xFFD6AA)
	Halogen        = FromCode(0xFFF1E0)
	DirectSunlight = FromCode(0xFFFFFF)
	OvercastSky    = FromCode(0xC9E2FF)
)

// Adjustment is the combined per-channel output scale for one frame.
// White, when present, is scaled by brightness alone.
type Adjustment [4]uint8

// ComputeAdjustment folds correction x temperature x brightness into one
// 8-bit scale per channel: ((c+1)*(t+1)*b) >> 16.
func ComputeAdjustment(brightness uint8, correction, temperature Correction) Adjustment {
	var a Adjustment
	for i := 0; i < 3; i++ {
		c := uint32(correction[i]) + 1
		t := uint32(temperature[i]) + 1
		a[i] = uint8(c * t * uint32(brightness) >> 16)
	}
	a[3] = brightness
	return a
}

// scale8 scales i by scale/256, with scale8(255, 255) == 255.
func scale8(i, scale uint8) uint8 {
	return uint8(uint16(i) * (1 + uint16(scale)) >> 8)
}

// DitherMode selects how sub-LSB brightness precision is handled.
type DitherMode uint8

const (
	// DitherNone truncates: the same input always yields the same output.
	DitherNone DitherMode = iota
	// DitherTemporal carries the sub-LSB remainder of each output channel
	// from frame to frame, so the time-averaged intensity converges on the
	// ideal fractional value.
	DitherTemporal
)

// Ditherer holds the per-channel sub-LSB error accumulators. Its lifetime
// spans frames: allocate one per strip at registration and keep it.
type Ditherer struct {
	mode DitherMode
	acc  []uint8
}

// NewDitherer sizes the accumulator for a strip of n pixels with the given
// channel count.
func NewDitherer(mode DitherMode, n, channels int) *Ditherer {
	d := &Ditherer{mode: mode}
	if mode != DitherNone {
		d.acc = make([]uint8, n*channels)
	}
	return d
}

// SetMode switches dithering. Enabling allocates accumulators lazily;
// disabling keeps them (zero cost while off).
func (d *Ditherer) SetMode(mode DitherMode, n, channels int) {
	d.mode = mode
	if mode != DitherNone && len(d.acc) < n*channels {
		d.acc = make([]uint8, n*channels)
	}
}

// apply scales raw and, in temporal mode, folds in the carried remainder for
// output channel idx. The accumulator keeps the low byte of the product so
// successive frames round alternately up and down.
func (d *Ditherer) apply(idx int, raw, scale uint8) uint8 {
	if d == nil || d.mode == DitherNone {
		return scale8(raw, scale)
	}
	s := uint16(d.acc[idx]) + uint16(raw)*(1+uint16(scale))
	d.acc[idx] = uint8(s)
	return uint8(s >> 8)
}

var ErrBufferLength = errors.New("pixel: buffer length does not match LED count")

// Iterator walks one application buffer in wire order for one transmission.
// The cursor is strictly per-call state; the Ditherer persists across calls.
type Iterator struct {
	buf   []byte
	order Order
	adj   Adjustment
	dith  *Ditherer

	n   int // pixels
	pos int // next output byte index (pixel*channels + wire position)
}

// NewIterator binds a raw buffer of n pixels to the pipeline configuration.
// The buffer is read-only input; it must hold n*channels bytes.
func NewIterator(buf []byte, n int, order Order, adj Adjustment, dith *Ditherer) (*Iterator, error) {
	ch := order.Channels()
	if len(buf) != n*ch {
		return nil, fmt.Errorf("%w: have %d bytes, want %d", ErrBufferLength, len(buf), n*ch)
	}
	return &Iterator{buf: buf, order: order, adj: adj, dith: dith, n: n}, nil
}

// Len returns the total number of wire bytes this iterator will produce.
func (it *Iterator) Len() int { return it.n * it.order.Channels() }

// Reset rewinds the cursor for a fresh transmission pass.
func (it *Iterator) Reset() { it.pos = 0 }

// HasNext reports whether another wire byte remains.
func (it *Iterator) HasNext() bool { return it.pos < it.Len() }

// NextByte produces the next wire-order byte, fully scaled and dithered, and
// advances the cursor. Calling past the end returns 0.
func (it *Iterator) NextByte() byte {
	if !it.HasNext() {
		return 0
	}
	ch := it.order.Channels()
	px, wi := it.pos/ch, it.pos%ch
	c := it.order.Channel(wi)
	raw := it.buf[px*ch+c]
	out := it.dith.apply(it.pos, raw, it.adj[c])
	it.pos++
	return out
}

// FillWire writes the whole frame in wire order into dst and resets the
// cursor afterwards. dst must hold Len() bytes. Block and peripheral drivers
// use this to stage per-lane byte streams before transposition.
func (it *Iterator) FillWire(dst []byte) error {
	if len(dst) < it.Len() {
		return fmt.Errorf("%w: dst %d, need %d", ErrBufferLength, len(dst), it.Len())
	}
	it.Reset()
	for i := 0; i < it.Len(); i++ {
		dst[i] = it.NextByte()
	}
	it.Reset()
	return nil
}

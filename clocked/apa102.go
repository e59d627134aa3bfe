// Package clocked drives 2-wire chipsets (APA102 class): data is latched by
// a clock line, so there are no wall-clock timing windows to hit, only the
// part's maximum clock rate and fixed start/end-of-frame marker words.
package clocked

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"github.com/coreman2200/funtimes-ledengine/chipset"
	"github.com/coreman2200/funtimes-ledengine/pixel"
)

var (
	ErrNilPort   = errors.New("clocked: nil SPI port")
	ErrBadGlobal = errors.New("clocked: global intensity must be 1..31")
)

// Opts configures a clocked strip.
type Opts struct {
	// NumPixels is the strip length.
	NumPixels int
	// Profile bounds the SPI clock; zero value selects chipset.APA102.
	Profile chipset.SPIProfile
	// Speed is the requested SPI clock; clamped to the profile maximum.
	// Zero selects the profile maximum.
	Speed physic.Frequency
	// Global is the 5-bit global intensity prefix (1..31) used when HD is
	// off. Zero selects 31 (full).
	Global uint8
	// HD enables the extended intensity encoding: 8-bit channels are
	// gamma-expanded to 16 bits and traded against the 5-bit global
	// prefix, approximating 13-bit perceptual resolution on the wire.
	HD bool
}

// Dev is a connected clocked strip.
type Dev struct {
	c      spi.Conn
	n      int
	global uint8
	hd     bool
	buf    []byte
}

// New connects the strip on the given SPI port. Registration errors (bad
// options, port failures) surface here; Show cannot fail on configuration.
func New(p spi.Port, o Opts) (*Dev, error) {
	if p == nil {
		return nil, ErrNilPort
	}
	if o.NumPixels <= 0 {
		return nil, fmt.Errorf("clocked: invalid LED count %d", o.NumPixels)
	}
	prof := o.Profile
	if prof.MaxClock == 0 {
		prof = chipset.APA102
	}
	speed := o.Speed
	if speed == 0 || speed > prof.MaxClock {
		speed = prof.MaxClock
	}
	global := o.Global
	if global == 0 {
		global = 31
	}
	if global > 31 {
		return nil, fmt.Errorf("%w: %d", ErrBadGlobal, o.Global)
	}
	c, err := p.Connect(speed, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("clocked: connect %s: %w", prof.Name, err)
	}
	d := &Dev{c: c, n: o.NumPixels, global: global, hd: o.HD}
	// 4 start bytes + 4 per pixel + end frame: one extra clock edge per
	// two pixels, rounded up to whole bytes.
	d.buf = make([]byte, 4+4*o.NumPixels+o.NumPixels/16+1)
	return d, nil
}

// ResetWait is zero: clocked chipsets latch on the end frame, there is no
// mandatory inter-frame gap.
func (d *Dev) ResetWait() time.Duration { return 0 }

// Show transmits one frame. The iterator must be configured with a 3-channel
// order; wire order within each 4-byte LED word is fixed by the protocol
// (brightness, blue, green, red).
func (d *Dev) Show(it *pixel.Iterator) error {
	if it.Len() != 3*d.n {
		return fmt.Errorf("clocked: frame is %d bytes, strip uses %d", it.Len(), 3*d.n)
	}
	it.Reset()
	w := 0
	put := func(b byte) { d.buf[w] = b; w++ }
	for i := 0; i < 4; i++ {
		put(0x00) // start frame
	}
	for p := 0; p < d.n; p++ {
		// Iterator emits wire order; the order for clocked strips should
		// be RGB so the protocol reorder below is the only permutation.
		r := it.NextByte()
		g := it.NextByte()
		b := it.NextByte()
		if d.hd {
			hr, hg, hb, g5 := hdEncode(r, g, b, d.global)
			put(0xE0 | g5)
			put(hb)
			put(hg)
			put(hr)
		} else {
			put(0xE0 | d.global)
			put(b)
			put(g)
			put(r)
		}
	}
	for w < len(d.buf) {
		put(0xFF) // end frame: clocks the tail of the strip through
	}
	return d.c.Tx(d.buf, nil)
}

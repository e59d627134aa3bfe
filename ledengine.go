// Package ledengine aggregates LED strip drivers behind one controller: it
// registers output strips (single-lane clockless, multi-lane block groups,
// peripheral-assisted parallel groups, clocked SPI strips), applies the
// shared color pipeline configuration, and sequences transmissions while
// honoring each chipset's minimum inter-frame reset gap.
package ledengine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/spi"

	"github.com/coreman2200/funtimes-ledengine/chipset"
	"github.com/coreman2200/funtimes-ledengine/clocked"
	"github.com/coreman2200/funtimes-ledengine/clockless"
	"github.com/coreman2200/funtimes-ledengine/parallel"
	"github.com/coreman2200/funtimes-ledengine/pixel"
)

var (
	ErrNoBuffers = errors.New("ledengine: at least one lane buffer required")
)

// transmitter is the internal contract every registered driver satisfies.
// wait is a no-op for synchronous drivers. minGap is the inter-frame wait
// the controller must enforce; drivers that render the gap in-band (SPI
// tails) report zero.
type transmitter interface {
	transmit(its []*pixel.Iterator) error
	wait() error
	minGap() time.Duration
	overruns() uint32
}

// Strip is the handle returned by registration. One Strip may span several
// lanes (block and parallel groups); each lane has its own application
// buffer and dither accumulators, all sharing one timing descriptor.
type Strip struct {
	c  *Controller
	tx transmitter

	bufs  [][]byte
	n     int
	order pixel.Order
	corr  pixel.Correction
	temp  pixel.Correction
	dith  []*pixel.Ditherer

	lastEnd time.Time
	lastErr error
}

// SetCorrection overrides the color correction for this strip.
func (s *Strip) SetCorrection(corr pixel.Correction) {
	s.c.mu.Lock()
	s.corr = corr
	s.c.mu.Unlock()
}

// SetTemperature overrides the color temperature for this strip.
func (s *Strip) SetTemperature(t pixel.Correction) {
	s.c.mu.Lock()
	s.temp = t
	s.c.mu.Unlock()
}

// Lanes returns the number of lanes the strip spans.
func (s *Strip) Lanes() int { return len(s.bufs) }

// Overruns reports how many frames this strip's driver has aborted.
func (s *Strip) Overruns() uint32 { return s.tx.overruns() }

// LastErr returns the outcome of the strip's most recent transmission.
func (s *Strip) LastErr() error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.lastErr
}

// Controller owns the registered strips and the frame-wide pipeline
// configuration. Zero value is not usable; call New.
type Controller struct {
	mu         sync.Mutex
	strips     []*Strip
	brightness uint8
	dither     pixel.DitherMode
}

// New returns an empty controller at full brightness, dithering off.
func New() *Controller {
	return &Controller{brightness: 255}
}

// SetBrightness sets the global brightness consumed at the next Show.
func (c *Controller) SetBrightness(b uint8) {
	c.mu.Lock()
	c.brightness = b
	c.mu.Unlock()
}

// Brightness returns the current global brightness.
func (c *Controller) Brightness() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.brightness
}

// SetCorrection applies a color correction to every registered strip.
func (c *Controller) SetCorrection(corr pixel.Correction) {
	c.mu.Lock()
	for _, s := range c.strips {
		s.corr = corr
	}
	c.mu.Unlock()
}

// SetTemperature applies a color temperature to every registered strip.
func (c *Controller) SetTemperature(t pixel.Correction) {
	c.mu.Lock()
	for _, s := range c.strips {
		s.temp = t
	}
	c.mu.Unlock()
}

// SetDither switches temporal dithering for every strip.
func (c *Controller) SetDither(m pixel.DitherMode) {
	c.mu.Lock()
	c.dither = m
	for _, s := range c.strips {
		for _, d := range s.dith {
			d.SetMode(m, s.n, s.order.Channels())
		}
	}
	c.mu.Unlock()
}

// Strips returns the registered strip handles in registration order.
func (c *Controller) Strips() []*Strip {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Strip, len(c.strips))
	copy(out, c.strips)
	return out
}

// register validates lane buffers against the strip shape and attaches the
// handle. Any validation error leaves the controller untouched.
func (c *Controller) register(tx transmitter, bufs [][]byte, n int, order pixel.Order) (*Strip, error) {
	if len(bufs) == 0 {
		return nil, ErrNoBuffers
	}
	ch := order.Channels()
	for i, b := range bufs {
		if len(b) != n*ch {
			return nil, fmt.Errorf("%w: lane %d has %d bytes, want %d",
				pixel.ErrBufferLength, i, len(b), n*ch)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &Strip{
		c:     c,
		tx:    tx,
		bufs:  bufs,
		n:     n,
		order: order,
		corr:  pixel.TypicalLEDStrip,
		temp:  pixel.DirectSunlight,
		dith:  make([]*pixel.Ditherer, len(bufs)),
	}
	for i := range s.dith {
		s.dith[i] = pixel.NewDitherer(c.dither, n, ch)
	}
	c.strips = append(c.strips, s)
	return s, nil
}

// AddClockless registers a one-wire strip bit-banged on a single pin.
func (c *Controller) AddClockless(pin clockless.Pin, buf []byte, n int, t chipset.Timing, order pixel.Order, clk clockless.Clock) (*Strip, error) {
	drv, err := clockless.New(pin, clockless.Config{Timing: t, Clock: clk})
	if err != nil {
		return nil, err
	}
	return c.register(&singleTx{drv: drv}, [][]byte{buf}, n, order)
}

// AddBlock registers a lane group sharing one port register, one buffer per
// lane, all lanes the same length and timing.
func (c *Controller) AddBlock(port clockless.Port, firstBit uint, bufs [][]byte, n int, t chipset.Timing, order pixel.Order, clk clockless.Clock) (*Strip, error) {
	drv, err := clockless.NewBlock(port, firstBit, len(bufs), clockless.Config{Timing: t, Clock: clk})
	if err != nil {
		return nil, err
	}
	return c.register(&blockTx{drv: drv}, bufs, n, order)
}

// AddParallel registers a lane group on a streaming peripheral. The
// peripheral is claimed here; a claim failure registers nothing.
func (c *Controller) AddParallel(per parallel.Peripheral, bufs [][]byte, n int, t chipset.Timing, order pixel.Order) (*Strip, error) {
	drv, err := parallel.NewDriver(per, len(bufs), n, order.Channels(), t)
	if err != nil {
		return nil, err
	}
	return c.register(&parallelTx{drv: drv}, bufs, n, order)
}

// AddSPINRZ registers a one-wire strip pushed through a SPI peripheral
// connected in the NRZ clock window.
func (c *Controller) AddSPINRZ(conn spi.Conn, buf []byte, n int, t chipset.Timing, order pixel.Order) (*Strip, error) {
	drv, err := parallel.NewSPIStrip(conn, n, order.Channels(), t.Reset)
	if err != nil {
		return nil, err
	}
	return c.register(&spiStripTx{drv: drv}, [][]byte{buf}, n, order)
}

// AddClocked registers an APA102-class strip on a SPI port. The pixel order
// must be 3-channel; the protocol's own BGR word layout is handled by the
// driver.
func (c *Controller) AddClocked(port spi.Port, buf []byte, o clocked.Opts, order pixel.Order) (*Strip, error) {
	if order.Channels() != 3 {
		return nil, fmt.Errorf("%w: clocked strips are 3-channel", pixel.ErrBadOrder)
	}
	drv, err := clocked.New(port, o)
	if err != nil {
		return nil, err
	}
	return c.register(&clockedTx{drv: drv}, [][]byte{buf}, o.NumPixels, order)
}

package parallel

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"github.com/coreman2200/funtimes-ledengine/pixel"
)

// MinNRZClock and MaxNRZClock bound the SPI clock window for the NRZ
// expansion below.
//
// SPI NRZ encoding: each wire bit expands MSB-first to 3 SPI bits,
// 0b110 for a one (high longer), 0b100 for a zero (high shorter). At
// 2.4-3.2MHz SPI clock the resulting pulse widths land inside the WS2812
// timing windows, and the kernel's spidev DMA does the shifting.
const (
	MinNRZClock = 2400 * physic.KiloHertz
	MaxNRZClock = 3200 * physic.KiloHertz
)

// nrzLUT expands a byte to its 24-bit (3 byte) NRZ image.
var nrzLUT = buildNRZLUT()

func buildNRZLUT() (lut [256][3]byte) {
	for v := 0; v < 256; v++ {
		out := uint32(0)
		for i := 7; i >= 0; i-- {
			tri := uint32(0b100)
			if v>>uint(i)&1 == 1 {
				tri = 0b110
			}
			out = out<<3 | tri
		}
		lut[v] = [3]byte{byte(out >> 16), byte(out >> 8), byte(out)}
	}
	return lut
}

// SPINRZ is a single-lane clockless strip pushed through a SPI peripheral.
// It satisfies Peripheral so it can back a one-lane Driver, but most callers
// use it directly via NewSPINRZ/Show since the NRZ expansion replaces the
// generic waveform encoding.
type SPINRZ struct {
	mu    sync.Mutex
	c     spi.Conn
	begun bool

	// in-flight transfer state. done is closed by the Tx goroutine.
	done chan struct{}
	err  error
}

// NewSPINRZPeripheral wraps an already-connected SPI conn. Connect the port
// at a clock inside [2.4MHz, 3.2MHz], mode 0, 8 bits.
func NewSPINRZPeripheral(c spi.Conn) *SPINRZ {
	return &SPINRZ{c: c}
}

// Begin validates the lane shape. SPI shifts one data line, so exactly one
// lane is supported; the word rate is fixed by the SPI clock, not by cfg.
func (s *SPINRZ) Begin(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begun {
		return ErrBegun
	}
	if cfg.Lanes != 1 {
		return fmt.Errorf("%w: SPI NRZ is single-lane, got %d", ErrLaneCount, cfg.Lanes)
	}
	if cfg.Format != FormatBits {
		return fmt.Errorf("%w: SPI NRZ shifts packed bits", ErrWordFormat)
	}
	s.begun = true
	return nil
}

// Kick starts an asynchronous write of the encoded frame.
func (s *SPINRZ) Kick(buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.begun {
		return ErrNotBegun
	}
	if s.done != nil {
		select {
		case <-s.done:
		default:
			return ErrBusy
		}
	}
	done := make(chan struct{})
	s.done = done
	go func() {
		err := s.c.Tx(buf, nil)
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(done)
	}()
	return nil
}

// Busy reports whether a transfer is still in flight.
func (s *SPINRZ) Busy() bool {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Wait blocks for the in-flight transfer and returns its outcome.
func (s *SPINRZ) Wait() error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	<-done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// SPIStrip is the ready-made single-strip driver over SPINRZ: color
// pipeline in, NRZ bytes out, double-buffered like Driver.
type SPIStrip struct {
	per   *SPINRZ
	bufs  [2][]byte
	cur   int
	n     int // wire bytes per frame
	tail  int
	reset time.Duration
}

// NewSPIStrip sizes the encoder for pixelsPerLane LEDs of the given channel
// count and reset gap. resetGap is rendered as zero bytes on the wire
// (~3.33us per byte at 2.4MHz, rounded up, floor of 128 bytes).
func NewSPIStrip(c spi.Conn, pixels, channels int, resetGap time.Duration) (*SPIStrip, error) {
	if pixels <= 0 {
		return nil, fmt.Errorf("parallel: invalid LED count %d", pixels)
	}
	per := NewSPINRZPeripheral(c)
	if err := per.Begin(Config{Lanes: 1, WordRate: MinNRZClock, Format: FormatBits}); err != nil {
		return nil, err
	}
	tail := int(resetGap.Microseconds()/3) + 1
	if tail < 128 {
		tail = 128
	}
	n := pixels * channels
	st := &SPIStrip{per: per, n: n, tail: tail, reset: resetGap}
	st.bufs[0] = make([]byte, n*3+tail)
	st.bufs[1] = make([]byte, n*3+tail)
	return st, nil
}

// ResetWait is the inter-frame gap; the encoded tail already provides it.
func (s *SPIStrip) ResetWait() time.Duration { return s.reset }

// Complete reports whether the last frame has fully left the wire.
func (s *SPIStrip) Complete() bool { return !s.per.Busy() }

// Wait blocks until the in-flight frame is done.
func (s *SPIStrip) Wait() error { return s.per.Wait() }

// Show encodes one frame and kicks the SPI transfer without blocking.
func (s *SPIStrip) Show(it *pixel.Iterator) error {
	if it.Len() != s.n {
		return fmt.Errorf("%w: frame is %d bytes, strip uses %d", errFrameLength, it.Len(), s.n)
	}
	buf := s.bufs[s.cur]
	it.Reset()
	w := 0
	for it.HasNext() {
		enc := &nrzLUT[it.NextByte()]
		buf[w], buf[w+1], buf[w+2] = enc[0], enc[1], enc[2]
		w += 3
	}
	for ; w < len(buf); w++ {
		buf[w] = 0
	}
	if err := s.per.Wait(); err != nil {
		return err
	}
	s.cur ^= 1
	return s.per.Kick(buf)
}

package parallel

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio/gpiostream"
	"periph.io/x/conn/v3/physic"
)

// StreamPin pushes the 3x NRZ waveform out a gpiostream.PinOut. On bcm283x
// hosts StreamOut is DMA-fed, which makes this the pure-GPIO analog of
// SPINRZ: same expansion, one data wire, no clock pin consumed.
type StreamPin struct {
	mu    sync.Mutex
	p     gpiostream.PinOut
	begun bool
	freq  physic.Frequency

	done chan struct{}
	err  error
}

// NewStreamPinPeripheral wraps a streaming-capable GPIO pin.
func NewStreamPinPeripheral(p gpiostream.PinOut) *StreamPin {
	return &StreamPin{p: p}
}

// Begin validates the lane shape and locks in the word rate.
func (s *StreamPin) Begin(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begun {
		return ErrBegun
	}
	if cfg.Lanes != 1 {
		return fmt.Errorf("%w: stream pin is single-lane, got %d", ErrLaneCount, cfg.Lanes)
	}
	if cfg.WordRate < MinNRZClock || cfg.WordRate > MaxNRZClock {
		return fmt.Errorf("%w: %s", ErrRate, cfg.WordRate)
	}
	if cfg.Format != FormatBits {
		return fmt.Errorf("%w: stream pin shifts packed bits", ErrWordFormat)
	}
	s.freq = cfg.WordRate
	s.begun = true
	return nil
}

// Kick starts an asynchronous StreamOut of the encoded frame. buf holds the
// NRZ-expanded bytes, MSB first.
func (s *StreamPin) Kick(buf []byte) error {
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
	bs := gpiostream.BitStream{Freq: s.freq, Bits: buf}
	done := make(chan struct{})
	s.done = done
	go func() {
		err := s.p.StreamOut(&bs)
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(done)
	}()
	return nil
}

// Busy reports whether a transfer is still in flight.
func (s *StreamPin) Busy() bool {
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
func (s *StreamPin) Wait() error {
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

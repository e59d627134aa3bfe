// Package parallel contains the peripheral-assisted drivers: the CPU's job
// is reduced to building a fully expanded waveform buffer (via the color
// pipeline and the bit transposer), handing it to a streaming peripheral,
// and keeping the buffer alive until the peripheral is done with it. Double
// buffering makes reuse-while-busy structurally impossible.
package parallel

import (
	"errors"

	"periph.io/x/conn/v3/physic"
)

var (
	ErrNotBegun    = errors.New("parallel: peripheral not initialized")
	ErrBegun       = errors.New("parallel: peripheral already initialized")
	ErrBusy        = errors.New("parallel: transfer in progress")
	ErrLaneCount   = errors.New("parallel: unsupported lane count")
	ErrRate        = errors.New("parallel: word rate outside peripheral range")
	ErrWordFormat  = errors.New("parallel: buffer format not supported by peripheral")
	ErrShutdown    = errors.New("parallel: peripheral closed")
	errFrameLength = errors.New("parallel: waveform buffer length changed mid-session")
)

// WordFormat names the layout of the waveform buffers a session will Kick.
// Peripherals reject formats they cannot emit at Begin time, before any
// hardware is claimed.
type WordFormat uint8

const (
	// FormatBits is a packed NRZ bit stream, MSB first, three waveform bits
	// per chipset bit. Single-wire sinks (SPI NRZ, gpiostream) take this.
	FormatBits WordFormat = iota
	// FormatWords16 is little-endian 16-bit words, one per waveform step,
	// bit L of each word driving lane L.
	FormatWords16
)

// Config describes one lane group for a streaming peripheral.
type Config struct {
	// Lanes is the number of independent outputs the peripheral toggles per
	// word. Single-wire peripherals (SPI NRZ, gpiostream) require 1.
	Lanes int
	// WordRate is the rate at which waveform words leave the peripheral.
	// For the three-step bit expansion this is 3x the chipset bit rate.
	WordRate physic.Frequency
	// Format is the buffer layout of every Kick in the session.
	Format WordFormat
}

// Peripheral is a DMA-fed (or kernel-buffered) waveform sink.
//
// Begin claims hardware and validates Config; it fails fast and leaves
// nothing claimed on error. Kick starts an asynchronous transfer of buf and
// returns immediately; buf must stay untouched until Busy reports false.
// Wait blocks for the in-flight transfer and returns its error, if any.
type Peripheral interface {
	Begin(cfg Config) error
	Kick(buf []byte) error
	Busy() bool
	Wait() error
}

// Package transpose reorganizes per-lane byte streams into per-bit-position
// words, so a block or peripheral driver can toggle the same bit of every
// lane with a single port write.
//
// Convention: for input lanes[0..N-1] of equal length L, output word
// w = i*8 + k carries, in bit position lane, bit (7-k) of lanes[lane][i]
// (bits are emitted MSB first on the wire). Bits of unused lane positions
// are always zero so they can never toggle unconnected pins.
package transpose

import "errors"

// MaxLanes is the widest supported port word.
const MaxLanes = 32

var (
	ErrLaneCount  = errors.New("transpose: lane count must be in [1, 32]")
	ErrLaneLength = errors.New("transpose: lanes must have equal length")
	ErrOutputSize = errors.New("transpose: output slice too short")
)

// Slices transposes N byte lanes into L*8 bit-slice words.
func Slices(lanes [][]byte, out []uint32) error {
	n := len(lanes)
	if n < 1 || n > MaxLanes {
		return ErrLaneCount
	}
	l := len(lanes[0])
	for _, lane := range lanes[1:] {
		if len(lane) != l {
			return ErrLaneLength
		}
	}
	if len(out) < l*8 {
		return ErrOutputSize
	}
	if n <= 8 {
		slices8(lanes, out, l)
		return nil
	}
	for i := 0; i < l; i++ {
		for k := 0; k < 8; k++ {
			var w uint32
			shift := uint(7 - k)
			for lane := 0; lane < n; lane++ {
				w |= uint32(lanes[lane][i]>>shift&1) << uint(lane)
			}
			out[i*8+k] = w
		}
	}
	return nil
}

// slices8 is the hot path for up to 8 lanes: a fixed sequence of masked
// shift/swaps transposing one 8x8 bit matrix per input column.
func slices8(lanes [][]byte, out []uint32, l int) {
	n := len(lanes)
	for i := 0; i < l; i++ {
		// Lane L goes into byte L from the LSB, so the transposed rows
		// come out with lane L at bit position L.
		var x uint64
		for lane := 0; lane < n; lane++ {
			x |= uint64(lanes[lane][i]) << uint(8*lane)
		}
		x = transpose8(x)
		for k := 0; k < 8; k++ {
			out[i*8+k] = uint32(x>>uint(56-8*k)) & 0xFF
		}
	}
}

// transpose8 transposes an 8x8 bit matrix held in a uint64, three masked
// swap rounds (1-, 2- and 4-bit blocks).
func transpose8(x uint64) uint64 {
	x = x&0xAA55AA55AA55AA55 | x&0x00AA00AA00AA00AA<<7 | x>>7&0x00AA00AA00AA00AA
	x = x&0xCCCC3333CCCC3333 | x&0x0000CCCC0000CCCC<<14 | x>>14&0x0000CCCC0000CCCC
	x = x&0xF0F0F0F00F0F0F0F | x&0x00000000F0F0F0F0<<28 | x>>28&0x00000000F0F0F0F0
	return x
}

// Unslices is the exact inverse of Slices: it scatters bit-slice words back
// into N byte lanes. Used to verify the round-trip property and by tests
// that decode captured port writes.
func Unslices(words []uint32, lanes [][]byte) error {
	n := len(lanes)
	if n < 1 || n > MaxLanes {
		return ErrLaneCount
	}
	l := len(lanes[0])
	for _, lane := range lanes[1:] {
		if len(lane) != l {
			return ErrLaneLength
		}
	}
	if len(words) < l*8 {
		return ErrOutputSize
	}
	for lane := 0; lane < n; lane++ {
		for i := 0; i < l; i++ {
			var b byte
			for k := 0; k < 8; k++ {
				b |= byte(words[i*8+k]>>uint(lane)&1) << uint(7-k)
			}
			lanes[lane][i] = b
		}
	}
	return nil
}

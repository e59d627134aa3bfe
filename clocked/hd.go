package clocked

// Extended intensity encoding for APA102-class chips.
//
// The chip multiplies each 8-bit channel by the 5-bit global prefix, so the
// wire really carries ~13 bits of intensity. Instead of asking applications
// for pre-gamma-corrected bytes, hdEncode expands each channel through a
// gamma-2 curve to 16 bits, picks the smallest prefix that still has room
// for the brightest channel, and rescales the channels against that prefix:
// finer quantization at the dark end where 8-bit steps are visible.

// gammaExpand maps an 8-bit channel onto a 16-bit gamma-2 curve.
func gammaExpand(v uint8) uint16 {
	return uint16(v) * uint16(v)
}

// hdEncode returns the wire channels and 5-bit global prefix for one pixel.
// maxGlobal caps the prefix (callers pass the configured global intensity).
func hdEncode(r, g, b, maxGlobal uint8) (uint8, uint8, uint8, uint8) {
	r16 := gammaExpand(r)
	g16 := gammaExpand(g)
	b16 := gammaExpand(b)

	max := maxGlobal
	if max == 0 || max > 31 {
		max = 31
	}
	// A channel rescaled from prefix max to prefix p carries c*max/p; it fits
	// the 16-bit intermediate as long as that stays under 2^16.
	fits := func(c uint16, p uint8) bool {
		return uint32(c)*uint32(max)/uint32(p) <= 0xFFFF
	}
	// Shift brightness out of the coarse prefix and into the channels. Halve
	// while every channel still fits; the final rescale is exact against the
	// chosen prefix, so odd prefixes lose nothing on the way down.
	global := max
	for global > 1 {
		next := global >> 1
		if !fits(r16, next) || !fits(g16, next) || !fits(b16, next) {
			break
		}
		global = next
	}
	scale := func(c uint16) uint8 {
		return uint8(uint32(c) * uint32(max) / uint32(global) >> 8)
	}
	return scale(r16), scale(g16), scale(b16), global
}

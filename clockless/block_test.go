package clockless_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/funtimes-ledengine/chipset"
	"github.com/coreman2200/funtimes-ledengine/clockless"
	"github.com/coreman2200/funtimes-ledengine/pixel"
	"github.com/coreman2200/funtimes-ledengine/transpose"
)

// portWrite is one recorded Set or Clear with its argument and counter stamp.
type portWrite struct {
	set  bool
	mask uint32
	at   uint32
}

type recordPort struct {
	clk    *fakeClock
	writes []portWrite
}

func (p *recordPort) Set(mask uint32)   { p.writes = append(p.writes, portWrite{true, mask, p.clk.now}) }
func (p *recordPort) Clear(mask uint32) { p.writes = append(p.writes, portWrite{false, mask, p.clk.now}) }

// decodeFrame reconstructs per-lane wire bytes from the recorded writes.
// Each bit is three writes: Set(mask), Clear(mask&^data), Clear(mask); the
// middle write reveals which lanes carried a one.
func decodeFrame(t *testing.T, writes []portWrite, mask uint32, shift uint, lanes, frameLen int) [][]byte {
	t.Helper()
	require.Len(t, writes, frameLen*8*3)
	words := make([]uint32, frameLen*8)
	for b := 0; b < frameLen*8; b++ {
		w := writes[b*3 : b*3+3]
		require.True(t, w[0].set, "bit %d starts with Set", b)
		require.Equal(t, mask, w[0].mask)
		require.False(t, w[1].set)
		require.False(t, w[2].set)
		require.Equal(t, mask, w[2].mask, "bit %d ends with full Clear", b)
		words[b] = (mask &^ w[1].mask) >> shift
	}
	out := make([][]byte, lanes)
	for i := range out {
		out[i] = make([]byte, frameLen)
	}
	require.NoError(t, transpose.Unslices(words, out))
	return out
}

func blockIterators(t *testing.T, bufs ...[]byte) []*pixel.Iterator {
	t.Helper()
	its := make([]*pixel.Iterator, len(bufs))
	for i, buf := range bufs {
		if buf == nil {
			continue
		}
		its[i] = singleIterator(t, buf)
	}
	return its
}

func TestNewBlock_Validation(t *testing.T) {
	clk := &fakeClock{}
	cfg := clockless.Config{Timing: chipset.WS2812B, Clock: clk}
	port := &recordPort{clk: clk}

	_, err := clockless.NewBlock(nil, 0, 4, cfg)
	assert.ErrorIs(t, err, clockless.ErrNilPort)

	_, err = clockless.NewBlock(port, 0, 0, cfg)
	assert.ErrorIs(t, err, clockless.ErrNoLanes)

	_, err = clockless.NewBlock(port, 30, 4, cfg)
	assert.ErrorIs(t, err, clockless.ErrLaneRange)

	_, err = clockless.NewBlock(port, 0, 33, cfg)
	assert.ErrorIs(t, err, clockless.ErrLaneRange)

	b, err := clockless.NewBlock(port, 0, 32, cfg)
	require.NoError(t, err)
	assert.Equal(t, 32, b.Lanes())
}

func TestBlockShow_FourLanes(t *testing.T) {
	clk := &fakeClock{}
	port := &recordPort{clk: clk}
	b, err := clockless.NewBlock(port, 4, 4, clockless.Config{Timing: chipset.WS2812B, Clock: clk})
	require.NoError(t, err)

	bufs := [][]byte{
		{0xA5, 0x00, 0x12},
		{0x00, 0x00, 0x00},
		{0xFF, 0xFF, 0xFF},
		{0x0F, 0xF0, 0x81},
	}
	require.NoError(t, b.Show(blockIterators(t, bufs...)))

	const mask = uint32(0xF << 4)
	got := decodeFrame(t, port.writes, mask, 4, 4, 3)
	assert.Equal(t, bufs, got)

	// No write may touch bits outside the lane window.
	for i, w := range port.writes {
		assert.Zero(t, w.mask&^mask, "write %d strays outside lane window", i)
	}
}

func TestBlockShow_TimingMatchesSingleLane(t *testing.T) {
	// The block runs the same deadline sequence as the single-lane
	// driver: Set at the period start, data clear one T1 later, full
	// clear at T1+T2.
	clk := &fakeClock{}
	port := &recordPort{clk: clk}
	b, err := clockless.NewBlock(port, 0, 2, clockless.Config{Timing: chipset.WS2812B, Clock: clk})
	require.NoError(t, err)

	require.NoError(t, b.Show(blockIterators(t, []byte{0xFF, 0x00, 0xAA}, []byte{0x00, 0xFF, 0x55})))

	var prevSet uint32
	for bit := 0; bit < 24; bit++ {
		w := port.writes[bit*3 : bit*3+3]
		assert.InDelta(t, 40, w[1].at-w[0].at, 3, "bit %d data edge at T1", bit)
		assert.InDelta(t, 85, w[2].at-w[0].at, 3, "bit %d full clear at T1+T2", bit)
		if bit > 0 {
			assert.InDelta(t, 125, w[0].at-prevSet, 3, "bit %d period", bit)
		}
		prevSet = w[0].at
	}
}

func TestBlockShow_OneLaneMatchesDriver(t *testing.T) {
	// A one-lane block and a Driver on a PortPin must produce the same
	// line levels for the same frame.
	buf := []byte{0xC3, 0x3C, 0x55}

	clkA := &fakeClock{}
	portA := &recordPort{clk: clkA}
	blk, err := clockless.NewBlock(portA, 7, 1, clockless.Config{Timing: chipset.WS2812B, Clock: clkA})
	require.NoError(t, err)
	require.NoError(t, blk.Show(blockIterators(t, buf)))

	clkB := &fakeClock{}
	portB := &recordPort{clk: clkB}
	drv, err := clockless.New(clockless.PortPin{Port: portB, Mask: 1 << 7}, clockless.Config{Timing: chipset.WS2812B, Clock: clkB})
	require.NoError(t, err)
	require.NoError(t, drv.Show(singleIterator(t, buf)))

	// Drop no-op Clear(0) writes the block emits for one bits, then
	// compare the level sequences.
	levels := func(writes []portWrite) []bool {
		var out []bool
		up := false
		for _, w := range writes {
			if w.mask == 0 {
				continue
			}
			if w.set != up {
				out = append(out, w.set)
				up = w.set
			}
		}
		return out
	}
	assert.Equal(t, levels(portB.writes), levels(portA.writes))
}

func TestBlockShow_ShortAndNilLanesPadDark(t *testing.T) {
	clk := &fakeClock{}
	port := &recordPort{clk: clk}
	b, err := clockless.NewBlock(port, 0, 3, clockless.Config{Timing: chipset.WS2812B, Clock: clk})
	require.NoError(t, err)

	// Lane 0 is two pixels, lane 1 one pixel, lane 2 disconnected.
	its := blockIterators(t, []byte{1, 2, 3, 4, 5, 6}, []byte{7, 8, 9}, nil)
	require.NoError(t, b.Show(its))

	got := decodeFrame(t, port.writes, 0b111, 0, 3, 6)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, got[0])
	assert.Equal(t, []byte{7, 8, 9, 0, 0, 0}, got[1], "short lane padded with zeros")
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0}, got[2], "nil lane stays dark")
}

func TestBlockShow_LaneCountMismatch(t *testing.T) {
	clk := &fakeClock{}
	b, err := clockless.NewBlock(&recordPort{clk: clk}, 0, 2, clockless.Config{Timing: chipset.WS2812B, Clock: clk})
	require.NoError(t, err)
	assert.Error(t, b.Show(blockIterators(t, []byte{1, 2, 3})))
}

func TestBlockShow_OverrunAborts(t *testing.T) {
	clk := &fakeClock{jumpAt: 500, jump: 1000}
	port := &recordPort{clk: clk}
	b, err := clockless.NewBlock(port, 0, 2, clockless.Config{Timing: chipset.WS2812B, Clock: clk})
	require.NoError(t, err)

	bufs := [][]byte{{0xFF, 0xFF, 0xFF}, {0x00, 0xFF, 0x00}}
	err = b.Show(blockIterators(t, bufs...))
	assert.ErrorIs(t, err, clockless.ErrOverrun)
	assert.Equal(t, uint32(1), b.Overruns())

	last := port.writes[len(port.writes)-1]
	assert.False(t, last.set)
	assert.Equal(t, uint32(0b11), last.mask, "all lanes cleared on abort")

	port.writes = nil
	require.NoError(t, b.Show(blockIterators(t, bufs...)))
	assert.Len(t, port.writes, 24*3)
	assert.Equal(t, uint32(1), b.Overruns())
}

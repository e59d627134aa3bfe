package pixel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/funtimes-ledengine/pixel"
)

var TestOrderParses = []struct {
	In     string
	Err    bool
	Expect string
}{
	{"RGB", false, "RGB"},
	{"GRB", false, "GRB"},
	{"bgr", false, "BGR"},
	{"GRBW", false, "GRBW"},
	{"RGWB", false, "RGWB"},
	{"RGG", true, ""},
	{"RGW", true, ""},
	{"RG", true, ""},
	{"RGBWW", true, ""},
	{"XYZ", true, ""},
}

func TestParseOrder(t *testing.T) {
	for _, tc := range TestOrderParses {
		o, err := pixel.ParseOrder(tc.In)
		if tc.Err {
			assert.ErrorIs(t, err, pixel.ErrBadOrder, tc.In)
			continue
		}
		require.NoError(t, err, tc.In)
		assert.Equal(t, tc.Expect, o.String())
		assert.Equal(t, len(tc.Expect), o.Channels())
	}
}

func TestFromCode(t *testing.T) {
	assert.Equal(t, pixel.Correction{0xFF, 0xB0, 0xF0}, pixel.FromCode(0xFFB0F0))
	assert.Equal(t, pixel.TypicalSMD5050, pixel.TypicalLEDStrip)
}

var TestAdjustmentValues = []struct {
	Brightness  uint8
	Correction  pixel.Correction
	Temperature pixel.Correction
	Expect      pixel.Adjustment
}{
	// Identity scales pass brightness through.
	{255, pixel.UncorrectedColor, pixel.DirectSunlight, pixel.Adjustment{255, 255, 255, 255}},
	{128, pixel.UncorrectedColor, pixel.DirectSunlight, pixel.Adjustment{128, 128, 128, 128}},
	{0, pixel.UncorrectedColor, pixel.DirectSunlight, pixel.Adjustment{0, 0, 0, 0}},
	// ((0xB0+1)*(0x100)*255)>>16 = 176 for G of SMD5050 at full brightness.
	{255, pixel.TypicalSMD5050, pixel.DirectSunlight, pixel.Adjustment{255, 176, 240, 255}},
	// Correction and temperature compose multiplicatively.
	{255, pixel.FromCode(0x808080), pixel.FromCode(0x808080), pixel.Adjustment{64, 64, 64, 255}},
}

func TestComputeAdjustment(t *testing.T) {
	for i, tc := range TestAdjustmentValues {
		got := pixel.ComputeAdjustment(tc.Brightness, tc.Correction, tc.Temperature)
		assert.Equal(t, tc.Expect, got, "case %d", i)
	}
}

func TestIterator_WireOrder(t *testing.T) {
	// Three pixels red, green, blue on a GRB strip at full scale.
	buf := []byte{
		255, 0, 0,
		0, 255, 0,
		0, 0, 255,
	}
	it, err := pixel.NewIterator(buf, 3, pixel.MustOrder("GRB"),
		pixel.ComputeAdjustment(255, pixel.UncorrectedColor, pixel.DirectSunlight), nil)
	require.NoError(t, err)

	want := []byte{0, 255, 0, 255, 0, 0, 0, 0, 255}
	got := make([]byte, it.Len())
	require.NoError(t, it.FillWire(got))
	assert.Equal(t, want, got)
}

func TestIterator_LengthMismatch(t *testing.T) {
	_, err := pixel.NewIterator(make([]byte, 10), 3, pixel.MustOrder("RGB"),
		pixel.Adjustment{}, nil)
	assert.ErrorIs(t, err, pixel.ErrBufferLength)
}

func TestIterator_PastEnd(t *testing.T) {
	buf := []byte{1, 2, 3}
	it, err := pixel.NewIterator(buf, 1, pixel.MustOrder("RGB"),
		pixel.ComputeAdjustment(255, pixel.UncorrectedColor, pixel.DirectSunlight), nil)
	require.NoError(t, err)

	for it.HasNext() {
		it.NextByte()
	}
	assert.Zero(t, it.NextByte())
	assert.Zero(t, it.NextByte())
}

func TestIterator_RGBWScalesWhiteByBrightnessOnly(t *testing.T) {
	buf := []byte{0, 0, 0, 200}
	// Correction would crush color channels, but white must follow
	// brightness alone.
	it, err := pixel.NewIterator(buf, 1, pixel.MustOrder("RGBW"),
		pixel.ComputeAdjustment(128, pixel.FromCode(0x101010), pixel.DirectSunlight), nil)
	require.NoError(t, err)

	out := make([]byte, 4)
	require.NoError(t, it.FillWire(out))
	assert.Equal(t, []byte{0, 0, 0, 100}, out)
}

func TestDither_NoneIsIdempotent(t *testing.T) {
	buf := []byte{100, 100, 100}
	adj := pixel.ComputeAdjustment(128, pixel.UncorrectedColor, pixel.DirectSunlight)
	d := pixel.NewDitherer(pixel.DitherNone, 1, 3)

	var frames [3][]byte
	for f := range frames {
		it, err := pixel.NewIterator(buf, 1, pixel.MustOrder("RGB"), adj, d)
		require.NoError(t, err)
		frames[f] = make([]byte, 3)
		require.NoError(t, it.FillWire(frames[f]))
	}
	assert.Equal(t, frames[0], frames[1])
	assert.Equal(t, frames[1], frames[2])
}

func TestDither_TemporalConverges(t *testing.T) {
	// raw=1 at scale 127: ideal output is 1*128/256 = 0.5 per frame.
	// Over 2K frames the average must land on 0.5 exactly; truncation
	// alone would emit all zeros.
	const frames = 2048
	buf := []byte{1, 0, 0}
	adj := pixel.Adjustment{127, 127, 127, 127}
	d := pixel.NewDitherer(pixel.DitherTemporal, 1, 3)

	var sum int
	out := make([]byte, 3)
	for f := 0; f < frames; f++ {
		it, err := pixel.NewIterator(buf, 1, pixel.MustOrder("RGB"), adj, d)
		require.NoError(t, err)
		require.NoError(t, it.FillWire(out))
		sum += int(out[0])
	}
	assert.Equal(t, frames/2, sum)
}

func TestDither_AccumulatorIsPerChannel(t *testing.T) {
	// Two channels with different fractional parts must not bleed into
	// each other.
	buf := []byte{1, 3, 0}
	adj := pixel.Adjustment{63, 63, 63, 63} // scale 64/256 = 1/4
	d := pixel.NewDitherer(pixel.DitherTemporal, 1, 3)

	var sumR, sumG int
	out := make([]byte, 3)
	const frames = 1024
	for f := 0; f < frames; f++ {
		it, err := pixel.NewIterator(buf, 1, pixel.MustOrder("RGB"), adj, d)
		require.NoError(t, err)
		require.NoError(t, it.FillWire(out))
		sumR += int(out[0])
		sumG += int(out[1])
	}
	assert.Equal(t, frames/4, sumR, "R averages 1/4")
	assert.Equal(t, 3*frames/4, sumG, "G averages 3/4")
}

func TestDither_SetModeKeepsAccumulators(t *testing.T) {
	d := pixel.NewDitherer(pixel.DitherNone, 4, 3)
	d.SetMode(pixel.DitherTemporal, 4, 3)
	adj := pixel.Adjustment{255, 255, 255, 255}
	buf := make([]byte, 12)
	it, err := pixel.NewIterator(buf, 4, pixel.MustOrder("RGB"), adj, d)
	require.NoError(t, err)
	out := make([]byte, 12)
	assert.NoError(t, it.FillWire(out))
}

func TestScaleEndpoints(t *testing.T) {
	adj := pixel.ComputeAdjustment(255, pixel.UncorrectedColor, pixel.DirectSunlight)
	buf := []byte{255, 0, 17}
	it, err := pixel.NewIterator(buf, 1, pixel.MustOrder("RGB"), adj, nil)
	require.NoError(t, err)
	out := make([]byte, 3)
	require.NoError(t, it.FillWire(out))
	assert.Equal(t, []byte{255, 0, 17}, out, "full scale is the identity")

	it, err = pixel.NewIterator(buf, 1, pixel.MustOrder("RGB"),
		pixel.ComputeAdjustment(0, pixel.UncorrectedColor, pixel.DirectSunlight), nil)
	require.NoError(t, err)
	require.NoError(t, it.FillWire(out))
	assert.Equal(t, []byte{0, 0, 0}, out, "zero brightness blanks the strip")
}

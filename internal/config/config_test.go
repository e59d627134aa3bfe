package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/funtimes-ledengine/internal/config"
)

func writeTemp(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeTemp(t, `
driver: spinrz
chipset: sk6812
color_order: GRB
num_pixels: 150
brightness: 0.25
dither: true
fps: 30
spi:
  dev: /dev/spidev0.0
`)
	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "spinrz", c.Driver)
	assert.Equal(t, "sk6812", c.Chipset)
	assert.Equal(t, 150, c.NumPixels)
	assert.Equal(t, 30, c.FPS)
	assert.Equal(t, "/dev/spidev0.0", c.SPI.Dev)
	assert.Equal(t, uint8(64), c.Scale())
}

func TestLoad_FillsDefaults(t *testing.T) {
	path := writeTemp(t, "driver: sim\n")
	c, err := config.Load(path)
	require.NoError(t, err)
	d := config.Default()
	assert.Equal(t, d.ColorOrder, c.ColorOrder)
	assert.Equal(t, d.NumPixels, c.NumPixels)
	assert.Equal(t, d.FPS, c.FPS)
}

func TestLoad_Missing(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	c := config.Default()
	c.Driver = "morse"
	assert.ErrorContains(t, c.Validate(), "unknown driver")

	c = config.Default()
	c.NumPixels = 0
	assert.ErrorContains(t, c.Validate(), "num_pixels")

	c = config.Default()
	c.ColorOrder = "GRG"
	assert.Error(t, c.Validate())

	c = config.Default()
	c.Driver = "spinrz"
	c.Chipset = "apa102"
	assert.Error(t, c.Validate(), "clocked parts are not NRZ chipsets")

	// The apa102 driver ignores the chipset field entirely.
	c = config.Default()
	c.Driver = "apa102"
	c.Chipset = ""
	assert.NoError(t, c.Validate())
}

func TestValidate_ClampsRanges(t *testing.T) {
	c := config.Default()
	c.Brightness = 3.5
	c.FPS = 10000
	require.NoError(t, c.Validate())
	assert.Equal(t, 1.0, c.Brightness)
	assert.Equal(t, 240, c.FPS)
	assert.Equal(t, uint8(255), c.Scale())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	in := config.Default()
	in.NumPixels = 7
	require.NoError(t, config.Save(path, in))

	out, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

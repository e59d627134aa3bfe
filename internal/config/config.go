// Package config loads and validates strip configuration for cmd/ledshow.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/coreman2200/funtimes-ledengine/chipset"
	"github.com/coreman2200/funtimes-ledengine/internal/mathx"
	"github.com/coreman2200/funtimes-ledengine/pixel"
)

type SPI struct {
	Dev     string `yaml:"dev"`      // e.g. /dev/spidev0.0
	SpeedHz int    `yaml:"speed_hz"` // clocked drivers only; NRZ rate is fixed
}

type Config struct {
	Driver     string  `yaml:"driver"` // "apa102" | "spinrz" | "nrzled" | "sim"
	Chipset    string  `yaml:"chipset"`
	ColorOrder string  `yaml:"color_order"`
	NumPixels  int     `yaml:"num_pixels"`
	Brightness float64 `yaml:"brightness"` // 0..1
	Dither     bool    `yaml:"dither"`
	FPS        int     `yaml:"fps"`

	SPI SPI `yaml:"spi,omitempty"`
}

func Default() *Config {
	return &Config{
		Driver:     "sim",
		Chipset:    "WS2812B",
		ColorOrder: "GRB",
		NumPixels:  64,
		Brightness: 0.5,
		Dither:     true,
		FPS:        60,
		SPI:        SPI{Dev: "", SpeedHz: 0},
	}
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Validate checks the cross-field constraints yaml cannot express and
// clamps brightness into range.
func (c *Config) Validate() error {
	switch c.Driver {
	case "apa102", "spinrz", "nrzled", "sim":
	default:
		return fmt.Errorf("config: unknown driver %q", c.Driver)
	}
	if c.NumPixels <= 0 {
		return fmt.Errorf("config: num_pixels must be positive, got %d", c.NumPixels)
	}
	if _, err := pixel.ParseOrder(c.ColorOrder); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Driver != "apa102" && c.Driver != "sim" {
		if _, err := chipset.ByName(c.Chipset); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	c.Brightness = mathx.Clamp(c.Brightness, 0, 1)
	c.FPS = mathx.Clamp(c.FPS, 1, 240)
	return nil
}

// Scale maps the 0..1 brightness onto the controller's byte scale.
func (c *Config) Scale() uint8 {
	return uint8(c.Brightness*255 + 0.5)
}

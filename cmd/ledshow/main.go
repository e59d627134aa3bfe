// Command ledshow drives a strip of addressable LEDs with a moving
// rainbow. It exercises the clocked and NRZ-over-SPI drivers and falls
// back to a console renderer when no SPI port is present.
package main

import (
	"flag"
	"image"
	"image/color"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/extra/devices/screen"
	"periph.io/x/host/v3"

	ledengine "github.com/coreman2200/funtimes-ledengine"
	"github.com/coreman2200/funtimes-ledengine/chipset"
	"github.com/coreman2200/funtimes-ledengine/clocked"
	"github.com/coreman2200/funtimes-ledengine/internal/config"
	"github.com/coreman2200/funtimes-ledengine/pixel"
)

func main() {
	var (
		driver     = flag.String("driver", "", "driver: apa102 | spinrz | nrzled | sim")
		chipName   = flag.String("chipset", "", "NRZ chipset name (e.g. WS2812B)")
		colorOrder = flag.String("color", "", "LED color order (e.g. GRB, RGB)")
		numPixels  = flag.Int("pixels", 0, "number of pixels on the strip")
		brightness = flag.Float64("brightness", -1, "global brightness 0..1")
		fps        = flag.Int("fps", 0, "target frames per second")
		spiDev     = flag.String("spi", "", "SPI port name (empty = first available)")
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	cfg := config.Default()
	if c, err := config.Load(*configPath); err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; proceeding with flags")
	} else {
		cfg = c
	}

	// Flags override config where given.
	if *driver != "" {
		cfg.Driver = *driver
	}
	if *chipName != "" {
		cfg.Chipset = *chipName
	}
	if *colorOrder != "" {
		cfg.ColorOrder = *colorOrder
	}
	if *numPixels > 0 {
		cfg.NumPixels = *numPixels
	}
	if *brightness >= 0 {
		cfg.Brightness = *brightness
	}
	if *fps > 0 {
		cfg.FPS = *fps
	}
	if *spiDev != "" {
		cfg.SPI.Dev = *spiDev
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("bad configuration")
	}

	if _, err := host.Init(); err != nil {
		log.Fatal().Err(err).Msg("host init failed")
	}

	order := pixel.MustOrder(cfg.ColorOrder)
	buf := make([]byte, cfg.NumPixels*order.Channels())

	var (
		ctrl   *ledengine.Controller
		drawer display.Drawer
		port   spi.PortCloser
	)

	switch cfg.Driver {
	case "apa102", "spinrz", "nrzled":
		p, err := spireg.Open(cfg.SPI.Dev)
		if err != nil {
			log.Warn().Err(err).Str("dev", cfg.SPI.Dev).Msg("no SPI port; falling back to console")
			drawer = screen.New(cfg.NumPixels)
			break
		}
		port = p
		switch cfg.Driver {
		case "apa102":
			ctrl = ledengine.New()
			opts := clocked.Opts{
				NumPixels: cfg.NumPixels,
				Profile:   chipset.APA102,
				Global:    31,
				HD:        true,
			}
			if cfg.SPI.SpeedHz > 0 {
				opts.Speed = physic.Frequency(cfg.SPI.SpeedHz) * physic.Hertz
			}
			if _, err := ctrl.AddClocked(p, buf, opts, order); err != nil {
				log.Fatal().Err(err).Msg("apa102 init failed")
			}
		case "spinrz":
			t, err := chipset.ByName(cfg.Chipset)
			if err != nil {
				log.Fatal().Err(err).Msg("unknown chipset")
			}
			conn, err := p.Connect(2400*physic.KiloHertz, spi.Mode0, 8)
			if err != nil {
				log.Fatal().Err(err).Msg("spi connect failed")
			}
			ctrl = ledengine.New()
			if _, err := ctrl.AddSPINRZ(conn, buf, cfg.NumPixels, t, order); err != nil {
				log.Fatal().Err(err).Msg("spinrz init failed")
			}
		case "nrzled":
			// Reference path through the periph driver, useful to
			// cross-check waveforms on real hardware.
			d, err := nrzled.NewSPI(p, &nrzled.Opts{
				NumPixels: cfg.NumPixels,
				Channels:  order.Channels(),
				Freq:      2400 * physic.KiloHertz,
			})
			if err != nil {
				log.Fatal().Err(err).Msg("nrzled init failed")
			}
			drawer = d
		}
	case "sim":
		drawer = screen.New(cfg.NumPixels)
	}

	if ctrl != nil {
		ctrl.SetBrightness(cfg.Scale())
		if cfg.Dither {
			ctrl.SetDither(pixel.DitherTemporal)
		}
	}

	log.Info().
		Str("driver", cfg.Driver).
		Int("pixels", cfg.NumPixels).
		Str("order", cfg.ColorOrder).
		Int("fps", cfg.FPS).
		Msg("starting")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	tick := time.NewTicker(time.Second / time.Duration(cfg.FPS))
	defer tick.Stop()

	var phase uint8
loop:
	for {
		select {
		case s := <-stop:
			log.Info().Str("signal", s.String()).Msg("shutting down")
			break loop
		case <-tick.C:
			rainbow(buf, order, cfg.NumPixels, phase)
			phase++
			if ctrl != nil {
				if err := ctrl.Show(); err != nil {
					log.Warn().Err(err).Msg("frame dropped")
				}
			} else if drawer != nil {
				img := frameImage(buf, order, cfg.NumPixels)
				if err := drawer.Draw(drawer.Bounds(), img, image.Point{}); err != nil {
					log.Warn().Err(err).Msg("draw failed")
				}
			}
		}
	}

	if ctrl != nil {
		_ = ctrl.Wait()
	}
	if drawer != nil {
		_ = drawer.Halt()
	}
	if port != nil {
		_ = port.Close()
	}
}

// rainbow fills buf with a hue wheel offset by phase. The buffer holds
// RGB(W) records; the driver applies the wire order. White channels, if
// present, stay dark.
func rainbow(buf []byte, order pixel.Order, n int, phase uint8) {
	ch := order.Channels()
	for i := 0; i < n; i++ {
		r, g, b := wheel(uint8(i*256/n) + phase)
		buf[i*ch+0] = r
		buf[i*ch+1] = g
		buf[i*ch+2] = b
		if ch == 4 {
			buf[i*ch+3] = 0
		}
	}
}

// wheel maps 0..255 onto an RGB color circle.
func wheel(p uint8) (r, g, b uint8) {
	switch {
	case p < 85:
		return 255 - p*3, p * 3, 0
	case p < 170:
		p -= 85
		return 0, 255 - p*3, p * 3
	default:
		p -= 170
		return p * 3, 0, 255 - p*3
	}
}

// frameImage renders the pixel buffer as a 1-pixel-tall RGB image for
// display.Drawer sinks.
func frameImage(buf []byte, order pixel.Order, n int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, n, 1))
	ch := order.Channels()
	for i := 0; i < n; i++ {
		img.SetNRGBA(i, 0, color.NRGBA{
			R: buf[i*ch+0],
			G: buf[i*ch+1],
			B: buf[i*ch+2],
			A: 255,
		})
	}
	return img
}

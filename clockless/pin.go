package clockless

import "periph.io/x/conn/v3/gpio"

// Pin is the minimal single-wire output the bit loop toggles. Kept to two
// methods with no error returns so implementations stay off the heap and
// out of the way of the deadline math.
type Pin interface {
	High()
	Low()
}

// Port drives several lanes at once: Set raises every pin in mask, Clear
// drops them. Lanes must live on one hardware register for the write to be
// a single store; that constraint is validated by NewBlock, not here.
type Port interface {
	Set(mask uint32)
	Clear(mask uint32)
}

// gpioPin adapts a periph.io pin. Out errors are ignored: memory-mapped
// GPIO writes cannot fail once the pin is configured, and the bit loop has
// no room for error plumbing.
type gpioPin struct {
	p gpio.PinOut
}

// WrapPin adapts a periph.io gpio.PinOut for use as a lane output.
func WrapPin(p gpio.PinOut) Pin { return gpioPin{p: p} }

func (g gpioPin) High() { _ = g.p.Out(gpio.High) }
func (g gpioPin) Low()  { _ = g.p.Out(gpio.Low) }

// PortPin exposes one Port bit as a Pin, which is how a one-lane block
// degenerates to the single-lane driver.
type PortPin struct {
	Port Port
	Mask uint32
}

func (p PortPin) High() { p.Port.Set(p.Mask) }
func (p PortPin) Low()  { p.Port.Clear(p.Mask) }

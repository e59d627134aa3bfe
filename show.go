package ledengine

import (
	"errors"
	"time"

	"github.com/coreman2200/funtimes-ledengine/clocked"
	"github.com/coreman2200/funtimes-ledengine/clockless"
	"github.com/coreman2200/funtimes-ledengine/parallel"
	"github.com/coreman2200/funtimes-ledengine/pixel"
)

// Show transmits one frame on every registered strip, in registration
// order. Software-timed strips block for their frame duration; peripheral
// strips kick their transfer and complete on the next Show or Wait. The
// returned error joins per-strip failures; an overrun on one strip never
// prevents the others from transmitting.
func (c *Controller) Show() error {
	c.mu.Lock()
	strips := make([]*Strip, len(c.strips))
	copy(strips, c.strips)
	brightness := c.brightness
	c.mu.Unlock()

	var errs []error
	for _, s := range strips {
		if err := s.show(brightness); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Wait blocks until every peripheral strip's in-flight frame is done.
func (c *Controller) Wait() error {
	c.mu.Lock()
	strips := make([]*Strip, len(c.strips))
	copy(strips, c.strips)
	c.mu.Unlock()

	var errs []error
	for _, s := range strips {
		if err := s.tx.wait(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Show transmits one frame on this strip only, using the controller's
// current global brightness.
func (s *Strip) Show() error {
	return s.show(s.c.Brightness())
}

func (s *Strip) show(brightness uint8) error {
	// Previous frame must be fully off the wire before its buffer can be
	// rebuilt, and the chipset's reset gap must have elapsed since.
	if err := s.tx.wait(); err != nil {
		s.setErr(err)
		return err
	}
	s.c.mu.Lock()
	adj := pixel.ComputeAdjustment(brightness, s.corr, s.temp)
	last := s.lastEnd
	s.c.mu.Unlock()

	if gap := s.tx.minGap(); gap > 0 && !last.IsZero() {
		// Only the lower bound matters; oversleeping is harmless.
		if rem := gap - time.Since(last); rem > 0 {
			time.Sleep(rem)
		}
	}

	its := make([]*pixel.Iterator, len(s.bufs))
	for i, b := range s.bufs {
		it, err := pixel.NewIterator(b, s.n, s.order, adj, s.dith[i])
		if err != nil {
			s.setErr(err)
			return err
		}
		its[i] = it
	}
	err := s.tx.transmit(its)
	s.c.mu.Lock()
	s.lastEnd = time.Now()
	s.lastErr = err
	s.c.mu.Unlock()
	return err
}

func (s *Strip) setErr(err error) {
	s.c.mu.Lock()
	s.lastErr = err
	s.c.mu.Unlock()
}

// Adapters binding each driver type to the transmitter contract.

type singleTx struct{ drv *clockless.Driver }

func (t *singleTx) transmit(its []*pixel.Iterator) error { return t.drv.Show(its[0]) }
func (t *singleTx) wait() error                          { return nil }
func (t *singleTx) minGap() time.Duration                { return t.drv.ResetWait() }
func (t *singleTx) overruns() uint32                     { return t.drv.Overruns() }

type blockTx struct{ drv *clockless.Block }

func (t *blockTx) transmit(its []*pixel.Iterator) error { return t.drv.Show(its) }
func (t *blockTx) wait() error                          { return nil }
func (t *blockTx) minGap() time.Duration                { return t.drv.ResetWait() }
func (t *blockTx) overruns() uint32                     { return t.drv.Overruns() }

type parallelTx struct{ drv *parallel.Driver }

func (t *parallelTx) transmit(its []*pixel.Iterator) error { return t.drv.Show(its) }
func (t *parallelTx) wait() error                          { return t.drv.Wait() }

// The parallel waveform carries its reset gap as in-band idle words.
func (t *parallelTx) minGap() time.Duration { return 0 }
func (t *parallelTx) overruns() uint32      { return 0 }

type spiStripTx struct{ drv *parallel.SPIStrip }

func (t *spiStripTx) transmit(its []*pixel.Iterator) error { return t.drv.Show(its[0]) }
func (t *spiStripTx) wait() error                          { return t.drv.Wait() }

// The NRZ tail of zero bytes is the reset gap.
func (t *spiStripTx) minGap() time.Duration { return 0 }
func (t *spiStripTx) overruns() uint32      { return 0 }

type clockedTx struct{ drv *clocked.Dev }

func (t *clockedTx) transmit(its []*pixel.Iterator) error { return t.drv.Show(its[0]) }
func (t *clockedTx) wait() error                          { return nil }
func (t *clockedTx) minGap() time.Duration                { return 0 }
func (t *clockedTx) overruns() uint32                     { return 0 }

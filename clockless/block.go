package clockless

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/coreman2200/funtimes-ledengine/chipset"
	"github.com/coreman2200/funtimes-ledengine/pixel"
	"github.com/coreman2200/funtimes-ledengine/transpose"
)

var (
	ErrNilPort   = errors.New("clockless: nil port")
	ErrLaneRange = errors.New("clockless: lane window does not fit the port register")
	ErrNoLanes   = errors.New("clockless: at least one lane required")
)

// Block drives up to 32 lanes in lock-step through one Port. It runs the
// same three-interval loop as Driver; the only difference is that the
// data-dependent edge clears a whole transposed bit-slice instead of one pin.
//
// All lanes share one timing descriptor: they hang off a single deadline
// sequence. Lanes occupy the contiguous bit window [shift, shift+count) of
// the port word; that placement is a hardware constraint of port-style
// output, so construction refuses anything that does not fit.
type Block struct {
	port  Port
	clk   Clock
	ct    chipset.CycleTiming
	slack uint32
	shift uint
	count int
	mask  uint32

	reset    time.Duration
	overruns uint32
	busy     uint32

	// staging for one byte column per lane, reused across frames.
	lanes  [][]byte
	slices [8]uint32
}

// NewBlock builds a lane group on bit positions [firstBit, firstBit+lanes).
func NewBlock(port Port, firstBit uint, lanes int, cfg Config) (*Block, error) {
	if port == nil {
		return nil, ErrNilPort
	}
	if lanes < 1 {
		return nil, ErrNoLanes
	}
	if lanes > transpose.MaxLanes || firstBit+uint(lanes) > 32 {
		return nil, fmt.Errorf("%w: bits [%d,%d)", ErrLaneRange, firstBit, firstBit+uint(lanes))
	}
	ct, slack, err := cfg.resolve()
	if err != nil {
		return nil, err
	}
	staging := make([][]byte, lanes)
	for i := range staging {
		staging[i] = make([]byte, 1)
	}
	mask := (uint32(1)<<uint(lanes) - 1) << firstBit
	return &Block{
		port:  port,
		clk:   cfg.Clock,
		ct:    ct,
		slack: slack,
		shift: firstBit,
		count: lanes,
		mask:  mask,
		reset: cfg.Timing.Reset,
		lanes: staging,
	}, nil
}

// Lanes returns the number of lanes in the group.
func (b *Block) Lanes() int { return b.count }

// ResetWait is the minimum low time required between frames.
func (b *Block) ResetWait() time.Duration { return b.reset }

// Overruns returns how many frames have been aborted mid-transmission.
func (b *Block) Overruns() uint32 { return atomic.LoadUint32(&b.overruns) }

// Show transmits one frame on every lane simultaneously. Iterators shorter
// than the longest lane are padded with zero bytes (those lanes transmit
// dark pixels for the tail of the frame); a nil entry transmits an all-zero
// frame.
func (b *Block) Show(its []*pixel.Iterator) error {
	if len(its) != b.count {
		return fmt.Errorf("%w: %d iterators for %d lanes", ErrNoLanes, len(its), b.count)
	}
	if !atomic.CompareAndSwapUint32(&b.busy, 0, 1) {
		return ErrInProgress
	}
	defer atomic.StoreUint32(&b.busy, 0)

	frameLen := 0
	for _, it := range its {
		if it == nil {
			continue
		}
		it.Reset()
		if it.Len() > frameLen {
			frameLen = it.Len()
		}
	}
	if frameLen == 0 {
		return nil
	}

	ct, clk, port := b.ct, b.clk, b.port
	next := clk.Cycles()
	for i := 0; i < frameLen; i++ {
		// Stage the next byte column and transpose it. Exhausted and nil
		// lanes contribute zero bytes, which keeps them low for the
		// whole byte: zero-padding, not stray toggles.
		for l, it := range its {
			if it != nil && it.HasNext() {
				b.lanes[l][0] = it.NextByte()
			} else {
				b.lanes[l][0] = 0
			}
		}
		if err := transpose.Slices(b.lanes, b.slices[:]); err != nil {
			return err
		}
		for k := 0; k < 8; k++ {
			data := b.slices[k] << b.shift & b.mask
			spinUntil(clk, next)
			port.Set(b.mask)
			// Zero lanes drop at the end of T1, one lanes ride through.
			spinUntil(clk, next+ct.C1)
			port.Clear(b.mask &^ data)
			late := spinUntil(clk, next+ct.C1+ct.C2)
			port.Clear(b.mask)
			next += ct.Period
			if late > b.slack {
				atomic.AddUint32(&b.overruns, 1)
				return fmt.Errorf("%w: %d cycles late", ErrOverrun, late)
			}
		}
	}
	spinUntil(clk, next)
	return nil
}

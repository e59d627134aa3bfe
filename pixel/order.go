package pixel

import (
	"errors"
	"fmt"
)

// Channel indexes into an application pixel record.
const (
	chanR = 0
	chanG = 1
	chanB = 2
	chanW = 3
)

var ErrBadOrder = errors.New("pixel: color order must be a permutation of RGB or RGBW")

// Order maps wire byte positions to application channel indexes. It is a
// bijection over {R,G,B} or {R,G,B,W}; construct it with ParseOrder.
type Order struct {
	perm [4]uint8
	n    uint8
}

// ParseOrder builds an Order from a string such as "GRB" or "GRBW".
func ParseOrder(s string) (Order, error) {
	var o Order
	if len(s) != 3 && len(s) != 4 {
		return o, fmt.Errorf("%w: %q", ErrBadOrder, s)
	}
	var seen [4]bool
	for i := 0; i < len(s); i++ {
		var ch uint8
		switch s[i] {
		case 'R', 'r':
			ch = chanR
		case 'G', 'g':
			ch = chanG
		case 'B', 'b':
			ch = chanB
		case 'W', 'w':
			ch = chanW
		default:
			return Order{}, fmt.Errorf("%w: %q", ErrBadOrder, s)
		}
		if seen[ch] || (ch == chanW && len(s) == 3) {
			return Order{}, fmt.Errorf("%w: %q", ErrBadOrder, s)
		}
		seen[ch] = true
		o.perm[i] = ch
	}
	o.n = uint8(len(s))
	return o, nil
}

// MustOrder is ParseOrder for compile-time constant strings.
func MustOrder(s string) Order {
	o, err := ParseOrder(s)
	if err != nil {
		panic(err)
	}
	return o
}

// Channels returns 3 for RGB orders and 4 for RGBW orders.
func (o Order) Channels() int { return int(o.n) }

// Channel returns the application channel carried at wire position i.
func (o Order) Channel(i int) int { return int(o.perm[i]) }

func (o Order) String() string {
	const names = "RGBW"
	b := make([]byte, o.n)
	for i := range b {
		b[i] = names[o.perm[i]]
	}
	return string(b)
}

package orderbook

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the side an order of side s trades against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// ParseSide accepts BUY/SELL in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return Buy, nil
	case "SELL":
		return Sell, nil
	default:
		return 0, fmt.Errorf("unknown side %q", s)
	}
}

// Order is immutable once admitted; the book only tracks its presence.
type Order struct {
	Owner    string
	Symbol   string
	Side     Side
	Quantity int64
	Price    decimal.Decimal
}

// Equal compares every field. Price compares by value, not representation.
func (o Order) Equal(other Order) bool {
	return o.Owner == other.Owner &&
		o.Symbol == other.Symbol &&
		o.Side == other.Side &&
		o.Quantity == other.Quantity &&
		o.Price.Equal(other.Price)
}

func (o Order) String() string {
	return fmt.Sprintf("%s %s %d %s @ %s", o.Owner, o.Side, o.Quantity, o.Symbol, o.Price)
}

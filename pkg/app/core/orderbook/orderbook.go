package orderbook

import (
	"errors"
	"sort"
)

// ErrNotFound is returned by Remove when the order is not resting.
// Callers that only remove what they just scanned should never see it.
var ErrNotFound = errors.New("order not found in book")

type sides struct {
	bids []Order // insertion order
	asks []Order
}

func (s *sides) queue(side Side) *[]Order {
	if side == Buy {
		return &s.bids
	}
	return &s.asks
}

// OrderBook keeps resting orders per symbol and side in arrival order.
// It is not safe for concurrent use; the owner serializes access.
type OrderBook struct {
	books map[string]*sides
	count int
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		books: make(map[string]*sides),
	}
}

// OrdersOn returns a copy of the resting orders for symbol/side, oldest first.
func (ob *OrderBook) OrdersOn(symbol string, side Side) []Order {
	s, ok := ob.books[symbol]
	if !ok {
		return nil
	}
	q := *s.queue(side)
	out := make([]Order, len(q))
	copy(out, q)
	return out
}

// Insert appends o to the tail of its symbol/side queue.
func (ob *OrderBook) Insert(o Order) {
	s, ok := ob.books[o.Symbol]
	if !ok {
		s = &sides{}
		ob.books[o.Symbol] = s
	}
	q := s.queue(o.Side)
	*q = append(*q, o)
	ob.count++
}

// Remove deletes the first occurrence equal to o from its queue.
func (ob *OrderBook) Remove(o Order) error {
	s, ok := ob.books[o.Symbol]
	if !ok {
		return ErrNotFound
	}
	q := s.queue(o.Side)
	for i := range *q {
		if (*q)[i].Equal(o) {
			*q = append((*q)[:i], (*q)[i+1:]...)
			ob.count--
			if len(s.bids) == 0 && len(s.asks) == 0 {
				delete(ob.books, o.Symbol)
			}
			return nil
		}
	}
	return ErrNotFound
}

// Len returns the number of resting orders across all symbols.
func (ob *OrderBook) Len() int {
	return ob.count
}

// Symbols returns the symbols with at least one resting order, sorted.
func (ob *OrderBook) Symbols() []string {
	out := make([]string, 0, len(ob.books))
	for sym := range ob.books {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

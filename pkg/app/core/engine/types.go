package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/stockex/pkg/app/core/orderbook"
)

// LotSize is the only quantity the engine admits.
const LotSize int64 = 100

// Reason explains why an order was rejected at admission.
type Reason int8

const (
	NoReason Reason = iota
	InvalidQuantity
	UnknownSymbol
)

func (r Reason) String() string {
	switch r {
	case InvalidQuantity:
		return "InvalidQuantity"
	case UnknownSymbol:
		return "UnknownSymbol"
	default:
		return ""
	}
}

type Status int8

const (
	Rejected Status = iota + 1
	Booked
	Matched
)

func (s Status) String() string {
	switch s {
	case Rejected:
		return "rejected"
	case Booked:
		return "booked"
	case Matched:
		return "matched"
	default:
		return "unknown"
	}
}

// Trade is one completed match. Price is always the incoming order's price.
type Trade struct {
	ID         uuid.UUID
	Buyer      string
	Seller     string
	Symbol     string
	Quantity   int64
	Price      decimal.Decimal
	ExecutedAt time.Time
}

// Outcome is the result of Submit: exactly one of rejected (with Reason),
// booked, or matched (with Trade).
type Outcome struct {
	Status Status
	Reason Reason
	Trade  *Trade
}

func rejected(r Reason) Outcome { return Outcome{Status: Rejected, Reason: r} }
func booked() Outcome           { return Outcome{Status: Booked} }
func matched(t *Trade) Outcome  { return Outcome{Status: Matched, Trade: t} }

// TradeSink receives every trade right after it executes, before the
// engine accepts the next order.
type TradeSink interface {
	PublishTrade(ctx context.Context, t Trade) error
}

// BookView is a copy of one symbol's resting orders in arrival order.
type BookView struct {
	Symbol string
	Bids   []orderbook.Order
	Asks   []orderbook.Order
}

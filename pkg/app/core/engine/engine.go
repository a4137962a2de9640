package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/uhyunpark/stockex/pkg/app/core/market"
	"github.com/uhyunpark/stockex/pkg/app/core/orderbook"
	"github.com/uhyunpark/stockex/pkg/metrics"
	"github.com/uhyunpark/stockex/pkg/util"
)

var (
	// ErrBookInconsistent means a scanned order could not be removed. The
	// book can no longer be trusted and the process should stop.
	ErrBookInconsistent = errors.New("order book inconsistent")
	// ErrTradeUndelivered means the match stands but the sink rejected the
	// trade. Not fatal.
	ErrTradeUndelivered = errors.New("trade not delivered")
)

// book is the subset of *orderbook.OrderBook the engine drives.
type book interface {
	OrdersOn(symbol string, side orderbook.Side) []orderbook.Order
	Insert(o orderbook.Order)
	Remove(o orderbook.Order) error
	Len() int
	Symbols() []string
}

// Engine owns one order book. Submit is the only writer and holds the
// engine lock from admission through trade delivery, so at most one order
// is being matched at any time.
type Engine struct {
	mu       sync.Mutex
	book     book
	registry market.Registry
	sink     TradeSink

	clock   util.Clock
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
}

type Option func(*Engine)

func WithSink(s TradeSink) Option            { return func(e *Engine) { e.sink = s } }
func WithClock(c util.Clock) Option          { return func(e *Engine) { e.clock = c } }
func WithLogger(l *zap.SugaredLogger) Option { return func(e *Engine) { e.log = l } }
func WithMetrics(m *metrics.Metrics) Option  { return func(e *Engine) { e.metrics = m } }

func New(registry market.Registry, opts ...Option) *Engine {
	e := &Engine{
		book:     orderbook.NewOrderBook(),
		registry: registry,
		clock:    util.RealClock{},
		log:      zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit admits, matches or books one order.
//
// Matching is first-fit: the opposite side is scanned oldest first and the
// first order whose price is compatible wins, even if a later one is
// better. The trade executes at the incoming order's price.
func (e *Engine) Submit(ctx context.Context, o orderbook.Order) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Debugw("order_received", "order", o.String())

	if o.Quantity != LotSize {
		return e.reject(o, InvalidQuantity), nil
	}
	if !e.registry.IsTradable(o.Symbol) {
		return e.reject(o, UnknownSymbol), nil
	}

	resting, found := e.firstCompatible(o)
	if !found {
		e.book.Insert(o)
		e.log.Infow("order_booked", "order", o.String(), "resting", e.book.Len())
		e.observe(booked())
		return booked(), nil
	}

	if err := e.book.Remove(resting); err != nil {
		e.log.Errorw("book_inconsistent", "order", resting.String(), "err", err)
		return Outcome{}, errors.Wrapf(ErrBookInconsistent, "remove %s: %v", resting, err)
	}

	trade := e.newTrade(o, resting)
	out := matched(trade)
	e.observe(out)
	e.log.Infow("trade_executed",
		"id", trade.ID.String(),
		"symbol", trade.Symbol,
		"buyer", trade.Buyer,
		"seller", trade.Seller,
		"price", trade.Price.String(),
		"quantity", trade.Quantity)

	if e.sink != nil {
		if err := e.sink.PublishTrade(ctx, *trade); err != nil {
			e.log.Errorw("trade_publish_failed", "id", trade.ID.String(), "err", err)
			return out, errors.Wrap(ErrTradeUndelivered, err.Error())
		}
	}
	return out, nil
}

func (e *Engine) firstCompatible(o orderbook.Order) (orderbook.Order, bool) {
	for _, r := range e.book.OrdersOn(o.Symbol, o.Side.Opposite()) {
		if o.Side == orderbook.Buy && r.Price.LessThanOrEqual(o.Price) {
			return r, true
		}
		if o.Side == orderbook.Sell && r.Price.GreaterThanOrEqual(o.Price) {
			return r, true
		}
	}
	return orderbook.Order{}, false
}

func (e *Engine) newTrade(incoming, resting orderbook.Order) *Trade {
	t := &Trade{
		ID:         uuid.New(),
		Symbol:     incoming.Symbol,
		Quantity:   LotSize,
		Price:      incoming.Price,
		ExecutedAt: e.clock.Now(),
	}
	if incoming.Side == orderbook.Buy {
		t.Buyer, t.Seller = incoming.Owner, resting.Owner
	} else {
		t.Buyer, t.Seller = resting.Owner, incoming.Owner
	}
	return t
}

func (e *Engine) reject(o orderbook.Order, r Reason) Outcome {
	e.log.Infow("order_rejected", "order", o.String(), "reason", r.String())
	out := rejected(r)
	e.observe(out)
	return out
}

func (e *Engine) observe(out Outcome) {
	if e.metrics == nil {
		return
	}
	e.metrics.OrderProcessed(out.Status.String(), out.Reason.String())
	if out.Trade != nil {
		e.metrics.TradeExecuted(out.Trade.Symbol)
	}
	e.metrics.SetResting(e.book.Len())
}

// Book returns a copy of the resting orders for symbol.
func (e *Engine) Book(symbol string) BookView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return BookView{
		Symbol: symbol,
		Bids:   e.book.OrdersOn(symbol, orderbook.Buy),
		Asks:   e.book.OrdersOn(symbol, orderbook.Sell),
	}
}

// Resting returns the number of orders in the book.
func (e *Engine) Resting() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Len()
}

// Symbols returns symbols that currently have resting orders.
func (e *Engine) Symbols() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Symbols()
}

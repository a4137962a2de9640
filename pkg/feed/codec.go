// Package feed adapts external order and trade messages to the engine.
package feed

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/stockex/pkg/app/core/engine"
	"github.com/uhyunpark/stockex/pkg/app/core/orderbook"
)

// ErrMalformedOrder wraps every decode failure. Malformed messages are
// dropped before they reach the engine.
var ErrMalformedOrder = errors.New("malformed order")

// OrderMessage is the inbound record. Username and Stock are the field
// names older clients send.
type OrderMessage struct {
	Owner    string      `json:"owner,omitempty"`
	Username string      `json:"username,omitempty"`
	Symbol   string      `json:"symbol,omitempty"`
	Stock    string      `json:"stock,omitempty"`
	Side     string      `json:"side"`
	Quantity int64       `json:"quantity"`
	Price    json.Number `json:"price"`
}

// TradeMessage is the outbound record.
type TradeMessage struct {
	Buyer    string      `json:"buyer"`
	Seller   string      `json:"seller"`
	Price    json.Number `json:"price"`
	Quantity int64       `json:"quantity"`
	Stock    string      `json:"stock"`
}

// DecodeOrder parses one inbound record. Quantity is not checked here;
// lot-size admission belongs to the engine.
func DecodeOrder(data []byte) (orderbook.Order, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var msg OrderMessage
	if err := dec.Decode(&msg); err != nil {
		return orderbook.Order{}, errors.Wrap(ErrMalformedOrder, err.Error())
	}
	return msg.Order()
}

// Order validates the message and converts it.
func (m OrderMessage) Order() (orderbook.Order, error) {
	owner := strings.TrimSpace(firstNonEmpty(m.Owner, m.Username))
	if owner == "" {
		return orderbook.Order{}, errors.Wrap(ErrMalformedOrder, "owner is required")
	}
	symbol := strings.TrimSpace(firstNonEmpty(m.Symbol, m.Stock))
	if symbol == "" {
		return orderbook.Order{}, errors.Wrap(ErrMalformedOrder, "symbol is required")
	}
	side, err := orderbook.ParseSide(m.Side)
	if err != nil {
		return orderbook.Order{}, errors.Wrap(ErrMalformedOrder, err.Error())
	}
	price, err := decimal.NewFromString(strings.TrimSpace(m.Price.String()))
	if err != nil {
		return orderbook.Order{}, errors.Wrapf(ErrMalformedOrder, "price %q", m.Price)
	}
	if !price.IsPositive() {
		return orderbook.Order{}, errors.Wrapf(ErrMalformedOrder, "price must be positive, got %s", price)
	}

	return orderbook.Order{
		Owner:    owner,
		Symbol:   symbol,
		Side:     side,
		Quantity: m.Quantity,
		Price:    price,
	}, nil
}

func NewOrderMessage(o orderbook.Order) OrderMessage {
	return OrderMessage{
		Owner:    o.Owner,
		Symbol:   o.Symbol,
		Side:     o.Side.String(),
		Quantity: o.Quantity,
		Price:    json.Number(o.Price.String()),
	}
}

func EncodeOrder(o orderbook.Order) ([]byte, error) {
	return json.Marshal(NewOrderMessage(o))
}

func NewTradeMessage(t engine.Trade) TradeMessage {
	return TradeMessage{
		Buyer:    t.Buyer,
		Seller:   t.Seller,
		Price:    json.Number(t.Price.String()),
		Quantity: t.Quantity,
		Stock:    t.Symbol,
	}
}

func EncodeTrade(t engine.Trade) ([]byte, error) {
	return json.Marshal(NewTradeMessage(t))
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

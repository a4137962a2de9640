package api

// API response types for REST endpoints and WebSocket messages

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/uhyunpark/stockex/pkg/app/core/engine"
	"github.com/uhyunpark/stockex/pkg/app/core/orderbook"
	"github.com/uhyunpark/stockex/pkg/storage"
)

// ==============================
// REST Types
// ==============================

// SubmitOrderResponse is the response from POST /api/v1/orders
type SubmitOrderResponse struct {
	Status  string     `json:"status"`           // "booked", "matched", "rejected"
	Reason  string     `json:"reason,omitempty"` // "InvalidQuantity", "UnknownSymbol"
	Trade   *TradeInfo `json:"trade,omitempty"`
	Message string     `json:"message,omitempty"`
}

// TradeInfo is the outbound trade record plus the identifiers the
// journal keeps.
type TradeInfo struct {
	ID         string      `json:"id,omitempty"`
	Buyer      string      `json:"buyer"`
	Seller     string      `json:"seller"`
	Price      json.Number `json:"price"`
	Quantity   int64       `json:"quantity"`
	Stock      string      `json:"stock"`
	ExecutedAt int64       `json:"executedAt,omitempty"` // Unix milliseconds
}

// OrderInfo is a resting order
type OrderInfo struct {
	Owner    string      `json:"owner"`
	Side     string      `json:"side"`
	Quantity int64       `json:"quantity"`
	Price    json.Number `json:"price"`
}

// BookSnapshot lists resting orders in arrival order (not price order)
type BookSnapshot struct {
	Symbol string      `json:"symbol"`
	Bids   []OrderInfo `json:"bids"`
	Asks   []OrderInfo `json:"asks"`
}

// SymbolRequest is the payload for POST /api/v1/symbols
type SymbolRequest struct {
	Symbol string `json:"symbol"`
}

// SymbolList is returned by the symbol endpoints
type SymbolList struct {
	Symbols []string `json:"symbols"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["trades:XYZ", "symbols"]
}

// TradeUpdate is broadcast on "trades:<symbol>" when a trade executes
type TradeUpdate struct {
	Type string `json:"type"` // "trade"
	TradeInfo
}

// SymbolsUpdate is broadcast on "symbols" when the allow-list changes
type SymbolsUpdate struct {
	Type    string   `json:"type"` // "symbols"
	Symbols []string `json:"symbols"`
}

func tradeInfo(t engine.Trade) TradeInfo {
	info := TradeInfo{
		Buyer:    t.Buyer,
		Seller:   t.Seller,
		Price:    json.Number(t.Price.String()),
		Quantity: t.Quantity,
		Stock:    t.Symbol,
	}
	if !t.ExecutedAt.IsZero() {
		info.ExecutedAt = t.ExecutedAt.UnixMilli()
	}
	if t.ID != uuid.Nil {
		info.ID = t.ID.String()
	}
	return info
}

func tradeInfoFromRecord(r storage.TradeRecord) TradeInfo {
	return tradeInfo(r.Trade())
}

func orderInfos(orders []orderbook.Order) []OrderInfo {
	out := make([]OrderInfo, len(orders))
	for i, o := range orders {
		out[i] = OrderInfo{
			Owner:    o.Owner,
			Side:     o.Side.String(),
			Quantity: o.Quantity,
			Price:    json.Number(o.Price.String()),
		}
	}
	return out
}

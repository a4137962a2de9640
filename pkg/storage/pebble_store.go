package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/stockex/pkg/app/core/engine"
)

// TradeRecord is the journaled form of a trade.
type TradeRecord struct {
	ID         string          `json:"id"`
	Buyer      string          `json:"buyer"`
	Seller     string          `json:"seller"`
	Symbol     string          `json:"symbol"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	ExecutedAt time.Time       `json:"executedAt"`
}

func NewTradeRecord(t engine.Trade) TradeRecord {
	return TradeRecord{
		ID:         t.ID.String(),
		Buyer:      t.Buyer,
		Seller:     t.Seller,
		Symbol:     t.Symbol,
		Quantity:   t.Quantity,
		Price:      t.Price,
		ExecutedAt: t.ExecutedAt,
	}
}

// Trade converts the record back. A malformed ID yields uuid.Nil.
func (r TradeRecord) Trade() engine.Trade {
	id, _ := uuid.Parse(r.ID)
	return engine.Trade{
		ID:         id,
		Buyer:      r.Buyer,
		Seller:     r.Seller,
		Symbol:     r.Symbol,
		Quantity:   r.Quantity,
		Price:      r.Price,
		ExecutedAt: r.ExecutedAt,
	}
}

// TradeJournal is an append-only history of executed trades. The order
// book itself is never written here.
type TradeJournal struct {
	db *pebble.DB
}

func NewTradeJournal(path string) (*TradeJournal, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open trade journal %s: %w", path, err)
	}
	return &TradeJournal{db: db}, nil
}

func (s *TradeJournal) Close() error { return s.db.Close() }

// SaveTrade persists a trade
func (s *TradeJournal) SaveTrade(trade engine.Trade) error {
	rec := NewTradeRecord(trade)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal trade: %w", err)
	}

	key := tradeKey(rec.Symbol, rec.ExecutedAt, rec.ID)
	if err := s.db.Set(key, data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}

	return nil
}

// PublishTrade lets the journal sit behind the engine as a trade sink.
func (s *TradeJournal) PublishTrade(_ context.Context, t engine.Trade) error {
	return s.SaveTrade(t)
}

// RecentTrades loads the most recent trades for a symbol, newest first
func (s *TradeJournal) RecentTrades(symbol string, limit int) ([]TradeRecord, error) {
	prefix := tradePrefix(symbol)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("open trade iterator: %w", err)
	}
	defer iter.Close()

	trades := []TradeRecord{}
	for iter.Last(); iter.Valid() && (limit <= 0 || len(trades) < limit); iter.Prev() {
		var rec TradeRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue // skip invalid entries
		}
		trades = append(trades, rec)
	}

	return trades, iter.Error()
}

var _ engine.TradeSink = (*TradeJournal)(nil)

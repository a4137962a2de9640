package storage

import (
	"fmt"
	"time"
)

// Key schema for the trade journal:
//
//	trade:<symbol>:<unix nanos, 20 digits>:<id> → TradeRecord (JSON)
//
// Zero-padded timestamps keep a symbol's trades in execution order under
// lexicographic iteration.

const prefixTrade = "trade:"

// tradeKey returns the key for a trade
func tradeKey(symbol string, at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", prefixTrade, symbol, at.UnixNano(), id))
}

// tradePrefix returns the prefix for all trades of a symbol
func tradePrefix(symbol string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixTrade, symbol))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}

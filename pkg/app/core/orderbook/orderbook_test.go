package orderbook

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func order(owner string, side Side, price int64) Order {
	return Order{Owner: owner, Symbol: "XYZ", Side: side, Quantity: 100, Price: decimal.NewFromInt(price)}
}

func TestOrdersOn_EmptyBook(t *testing.T) {
	ob := NewOrderBook()
	assert.Empty(t, ob.OrdersOn("XYZ", Buy))
	assert.Empty(t, ob.OrdersOn("XYZ", Sell))
	assert.Equal(t, 0, ob.Len())
}

func TestInsert_KeepsArrivalOrderPerSide(t *testing.T) {
	ob := NewOrderBook()
	ob.Insert(order("a", Sell, 10))
	ob.Insert(order("b", Buy, 5))
	ob.Insert(order("c", Sell, 8))

	asks := ob.OrdersOn("XYZ", Sell)
	require.Len(t, asks, 2)
	assert.Equal(t, "a", asks[0].Owner)
	assert.Equal(t, "c", asks[1].Owner)

	bids := ob.OrdersOn("XYZ", Buy)
	require.Len(t, bids, 1)
	assert.Equal(t, "b", bids[0].Owner)
	assert.Empty(t, ob.OrdersOn("ABC", Sell))
	assert.Equal(t, 3, ob.Len())
}

func TestOrdersOn_ReturnsCopy(t *testing.T) {
	ob := NewOrderBook()
	ob.Insert(order("a", Buy, 10))

	got := ob.OrdersOn("XYZ", Buy)
	got[0].Owner = "mallory"

	assert.Equal(t, "a", ob.OrdersOn("XYZ", Buy)[0].Owner)
}

func TestRemove_FirstEqualOccurrence(t *testing.T) {
	ob := NewOrderBook()
	ob.Insert(order("a", Sell, 10))
	ob.Insert(order("b", Sell, 9))
	ob.Insert(order("a", Sell, 10))

	// 10.00 equals 10 by value
	target := order("a", Sell, 10)
	target.Price = decimal.RequireFromString("10.00")
	require.NoError(t, ob.Remove(target))

	asks := ob.OrdersOn("XYZ", Sell)
	require.Len(t, asks, 2)
	assert.Equal(t, "b", asks[0].Owner)
	assert.Equal(t, "a", asks[1].Owner)
	assert.Equal(t, 2, ob.Len())
}

func TestRemove_NotFound(t *testing.T) {
	ob := NewOrderBook()
	assert.ErrorIs(t, ob.Remove(order("a", Buy, 10)), ErrNotFound)

	ob.Insert(order("a", Buy, 10))
	assert.ErrorIs(t, ob.Remove(order("a", Sell, 10)), ErrNotFound)
	assert.ErrorIs(t, ob.Remove(order("a", Buy, 11)), ErrNotFound)
	assert.Equal(t, 1, ob.Len())
}

func TestRemove_LastOrderDropsSymbol(t *testing.T) {
	ob := NewOrderBook()
	ob.Insert(order("a", Buy, 10))
	assert.Equal(t, []string{"XYZ"}, ob.Symbols())

	require.NoError(t, ob.Remove(order("a", Buy, 10)))
	assert.Empty(t, ob.Symbols())
	assert.Equal(t, 0, ob.Len())
}

func TestParseSide(t *testing.T) {
	tests := []struct {
		in      string
		want    Side
		wantErr bool
	}{
		{"BUY", Buy, false},
		{"sell", Sell, false},
		{" Buy ", Buy, false},
		{"HOLD", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSide(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, Sell, Buy.Opposite())
	assert.Equal(t, Buy, Sell.Opposite())
}

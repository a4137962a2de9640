package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/stockex/pkg/app/core/engine"
	"github.com/uhyunpark/stockex/pkg/app/core/market"
	"github.com/uhyunpark/stockex/pkg/app/core/orderbook"
	"github.com/uhyunpark/stockex/pkg/feed"
	"github.com/uhyunpark/stockex/pkg/metrics"
	"github.com/uhyunpark/stockex/pkg/storage"
)

type testEnv struct {
	server  *Server
	http    *httptest.Server
	engine  *engine.Engine
	journal *storage.TradeJournal
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	registry := market.NewFileRegistry(filepath.Join(dir, "stocks.json"), nil)
	require.NoError(t, registry.EnsureFile([]string{"XYZ"}))

	journal, err := storage.NewTradeJournal(filepath.Join(dir, "trades"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })

	m := metrics.New()
	sinks := feed.NewMultiSink(nil, m, feed.NamedSink{Name: "journal", Sink: journal})
	eng := engine.New(registry, engine.WithSink(sinks), engine.WithMetrics(m))

	srv := NewServer(Options{
		Exchange: eng,
		Symbols:  registry,
		Trades:   journal,
		Metrics:  m,
	})
	sinks.Add("ws", srv)

	ctx, cancel := context.WithCancel(context.Background())
	go srv.RunHub(ctx)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})

	return &testEnv{server: srv, http: ts, engine: eng, journal: journal}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, e.http.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func (e *testEnv) submit(t *testing.T, body string) SubmitOrderResponse {
	t.Helper()
	code, data := e.do(t, http.MethodPost, "/api/v1/orders", body)
	require.Equal(t, http.StatusOK, code, string(data))

	var resp SubmitOrderResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	return resp
}

func TestSubmitOrder_BookThenMatch(t *testing.T) {
	env := newTestEnv(t)

	first := env.submit(t, `{"owner":"A","symbol":"XYZ","side":"BUY","quantity":100,"price":50}`)
	assert.Equal(t, "booked", first.Status)
	assert.Nil(t, first.Trade)

	code, data := env.do(t, http.MethodGet, "/api/v1/books/XYZ", "")
	require.Equal(t, http.StatusOK, code)
	var book BookSnapshot
	require.NoError(t, json.Unmarshal(data, &book))
	require.Len(t, book.Bids, 1)
	assert.Equal(t, "A", book.Bids[0].Owner)
	assert.Empty(t, book.Asks)

	second := env.submit(t, `{"username":"B","stock":"XYZ","side":"SELL","quantity":100,"price":45}`)
	assert.Equal(t, "matched", second.Status)
	require.NotNil(t, second.Trade)
	assert.Equal(t, "A", second.Trade.Buyer)
	assert.Equal(t, "B", second.Trade.Seller)
	assert.Equal(t, "XYZ", second.Trade.Stock)
	assert.Equal(t, json.Number("45"), second.Trade.Price, "trade uses the incoming price")
	assert.NotEmpty(t, second.Trade.ID)

	assert.Equal(t, 0, env.engine.Resting())
}

func TestSubmitOrder_Rejections(t *testing.T) {
	env := newTestEnv(t)

	resp := env.submit(t, `{"owner":"A","symbol":"NOPE","side":"BUY","quantity":10,"price":50}`)
	assert.Equal(t, "rejected", resp.Status)
	assert.Equal(t, "InvalidQuantity", resp.Reason)

	resp = env.submit(t, `{"owner":"A","symbol":"NOPE","side":"BUY","quantity":100,"price":50}`)
	assert.Equal(t, "rejected", resp.Status)
	assert.Equal(t, "UnknownSymbol", resp.Reason)

	assert.Equal(t, 0, env.engine.Resting())
}

func TestSubmitOrder_Malformed(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{
		`not json`,
		`{"owner":"A","symbol":"XYZ","side":"HOLD","quantity":100,"price":50}`,
		`{"symbol":"XYZ","side":"BUY","quantity":100,"price":50}`,
	} {
		code, data := env.do(t, http.MethodPost, "/api/v1/orders", body)
		assert.Equal(t, http.StatusBadRequest, code, body)

		var e ErrorResponse
		require.NoError(t, json.Unmarshal(data, &e))
		assert.Equal(t, "malformed order", e.Error)
	}
}

type brokenExchange struct{}

func (brokenExchange) Submit(context.Context, orderbook.Order) (engine.Outcome, error) {
	return engine.Outcome{}, engine.ErrBookInconsistent
}

func (brokenExchange) Book(symbol string) engine.BookView {
	return engine.BookView{Symbol: symbol}
}

func TestSubmitOrder_InconsistentBookIsFatal(t *testing.T) {
	var fatal error
	srv := NewServer(Options{
		Exchange: brokenExchange{},
		Symbols:  market.NewFileRegistry(filepath.Join(t.TempDir(), "stocks.json"), nil),
		OnFatal:  func(err error) { fatal = err },
	})

	body := `{"owner":"A","symbol":"XYZ","side":"BUY","quantity":100,"price":50}`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.ErrorIs(t, fatal, engine.ErrBookInconsistent)
}

func TestSymbols_AddListRemove(t *testing.T) {
	env := newTestEnv(t)

	code, data := env.do(t, http.MethodPost, "/api/v1/symbols", `{"symbol":"ABC"}`)
	require.Equal(t, http.StatusCreated, code, string(data))
	assert.JSONEq(t, `{"symbols":["XYZ","ABC"]}`, string(data))

	// newly listed symbol is tradable on the next order
	resp := env.submit(t, `{"owner":"A","symbol":"ABC","side":"BUY","quantity":100,"price":1}`)
	assert.Equal(t, "booked", resp.Status)

	code, data = env.do(t, http.MethodDelete, "/api/v1/symbols/XYZ", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"symbols":["ABC"]}`, string(data))

	code, data = env.do(t, http.MethodGet, "/api/v1/symbols", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"symbols":["ABC"]}`, string(data))

	code, _ = env.do(t, http.MethodDelete, "/api/v1/symbols/XYZ", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = env.do(t, http.MethodPost, "/api/v1/symbols", `{"symbol":"  "}`)
	assert.Equal(t, http.StatusBadRequest, code)

	resp = env.submit(t, `{"owner":"A","symbol":"XYZ","side":"BUY","quantity":100,"price":1}`)
	assert.Equal(t, "UnknownSymbol", resp.Reason)
}

func TestGetTrades(t *testing.T) {
	env := newTestEnv(t)

	env.submit(t, `{"owner":"A","symbol":"XYZ","side":"BUY","quantity":100,"price":50}`)
	env.submit(t, `{"owner":"B","symbol":"XYZ","side":"SELL","quantity":100,"price":50}`)
	env.submit(t, `{"owner":"C","symbol":"XYZ","side":"SELL","quantity":100,"price":60}`)
	env.submit(t, `{"owner":"D","symbol":"XYZ","side":"BUY","quantity":100,"price":61}`)

	code, data := env.do(t, http.MethodGet, "/api/v1/markets/XYZ/trades?limit=1", "")
	require.Equal(t, http.StatusOK, code)
	var trades []TradeInfo
	require.NoError(t, json.Unmarshal(data, &trades))
	require.Len(t, trades, 1)
	assert.Equal(t, "D", trades[0].Buyer)
	assert.Equal(t, "C", trades[0].Seller)
	assert.Equal(t, json.Number("61"), trades[0].Price)

	code, data = env.do(t, http.MethodGet, "/api/v1/markets/XYZ/trades", "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(data, &trades))
	assert.Len(t, trades, 2)

	code, _ = env.do(t, http.MethodGet, "/api/v1/markets/XYZ/trades?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	code, data := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, string(data))

	env.submit(t, `{"owner":"A","symbol":"XYZ","side":"BUY","quantity":1,"price":50}`)
	code, data = env.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, bytes.Contains(data, []byte("stockex_orders_total")))
}

func dialWS(t *testing.T, env *testEnv, channels ...string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.WriteJSON(WSSubscribeRequest{Op: "subscribe", Channels: channels}))
	for _, ch := range channels {
		ch := ch
		require.Eventually(t, func() bool { return env.server.hub.subscribers(ch) == 1 },
			2*time.Second, 10*time.Millisecond)
	}
	return conn
}

func TestWebSocket_TradeFeed(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env, "trades:XYZ")

	env.submit(t, `{"owner":"A","symbol":"XYZ","side":"SELL","quantity":100,"price":10}`)
	env.submit(t, `{"owner":"B","symbol":"XYZ","side":"BUY","quantity":100,"price":12}`)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var update TradeUpdate
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, "trade", update.Type)
	assert.Equal(t, "B", update.Buyer)
	assert.Equal(t, "A", update.Seller)
	assert.Equal(t, "XYZ", update.Stock)
	assert.Equal(t, json.Number("12"), update.Price)
	assert.Equal(t, int64(100), update.Quantity)
}

func TestWebSocket_SymbolsFeed(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env, "symbols")

	code, _ := env.do(t, http.MethodPost, "/api/v1/symbols", `{"symbol":"ABC"}`)
	require.Equal(t, http.StatusCreated, code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var update SymbolsUpdate
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, "symbols", update.Type)
	assert.Equal(t, []string{"XYZ", "ABC"}, update.Symbols)
}

func TestWebSocket_UnsubscribedClientGetsNothing(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env, "trades:ABC")

	env.server.BroadcastSymbols([]string{"XYZ"})
	env.submit(t, `{"owner":"A","symbol":"XYZ","side":"SELL","quantity":100,"price":10}`)
	env.submit(t, `{"owner":"B","symbol":"XYZ","side":"BUY","quantity":100,"price":12}`)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

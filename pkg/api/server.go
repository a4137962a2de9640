package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/stockex/pkg/app/core/engine"
	"github.com/uhyunpark/stockex/pkg/app/core/market"
	"github.com/uhyunpark/stockex/pkg/feed"
	"github.com/uhyunpark/stockex/pkg/metrics"
	"github.com/uhyunpark/stockex/pkg/storage"
)

const (
	maxOrderBytes     = 64 << 10
	defaultTradeLimit = 50
	maxTradeLimit     = 1000
)

// Exchange is the engine surface the API drives.
type Exchange interface {
	feed.Submitter
	Book(symbol string) engine.BookView
}

// SymbolStore is the editable allow-list behind /api/v1/symbols.
type SymbolStore interface {
	Symbols() ([]string, error)
	Add(symbol string) error
	Remove(symbol string) error
}

// TradeHistory serves recent trades per symbol, newest first.
type TradeHistory interface {
	RecentTrades(symbol string, limit int) ([]storage.TradeRecord, error)
}

type Options struct {
	Exchange    Exchange
	Symbols     SymbolStore
	Trades      TradeHistory     // optional
	Metrics     *metrics.Metrics // optional, mounts /metrics
	CORSOrigins []string
	Log         *zap.SugaredLogger

	// OnFatal is called once the engine reports a corrupted book.
	OnFatal func(error)
}

// Server handles REST API and WebSocket connections
type Server struct {
	exchange Exchange
	symbols  SymbolStore
	trades   TradeHistory
	metrics  *metrics.Metrics
	origins  []string
	onFatal  func(error)

	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger
}

func NewServer(opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	onFatal := opts.OnFatal
	if onFatal == nil {
		onFatal = func(error) {}
	}

	s := &Server{
		exchange: opts.Exchange,
		symbols:  opts.Symbols,
		trades:   opts.Trades,
		metrics:  opts.Metrics,
		origins:  opts.CORSOrigins,
		onFatal:  onFatal,
		router:   mux.NewRouter(),
		hub:      NewHub(log),
		log:      log,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")

	api.HandleFunc("/symbols", s.handleListSymbols).Methods("GET")
	api.HandleFunc("/symbols", s.handleAddSymbol).Methods("POST")
	api.HandleFunc("/symbols/{symbol}", s.handleRemoveSymbol).Methods("DELETE")

	api.HandleFunc("/books/{symbol}", s.handleGetBook).Methods("GET")
	api.HandleFunc("/markets/{symbol}/trades", s.handleGetTrades).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}
}

// Handler returns the router wrapped in the CORS policy.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// RunHub runs the WebSocket hub until ctx is done. Start calls it; tests
// that serve Handler directly call it themselves.
func (s *Server) RunHub(ctx context.Context) {
	s.hub.Run(ctx)
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.RunHub(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("api_server_starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		s.log.Infow("api_server_stopped")
		return nil
	}
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxOrderBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body", err.Error())
		return
	}

	order, err := feed.DecodeOrder(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "malformed order", err.Error())
		return
	}

	// A trade must reach the sinks even if the client hangs up mid-request.
	out, err := s.exchange.Submit(context.WithoutCancel(r.Context()), order)
	if errors.Is(err, engine.ErrBookInconsistent) {
		s.log.Errorw("order_book_inconsistent", "owner", order.Owner, "symbol", order.Symbol, "err", err)
		s.onFatal(err)
		respondError(w, http.StatusInternalServerError, "order book inconsistent", "")
		return
	}

	response := SubmitOrderResponse{Status: out.Status.String()}
	if out.Status == engine.Rejected {
		response.Reason = out.Reason.String()
	}
	if out.Trade != nil {
		ti := tradeInfo(*out.Trade)
		response.Trade = &ti
	}
	if err != nil {
		s.log.Warnw("trade_delivery_incomplete", "symbol", order.Symbol, "err", err)
		response.Message = err.Error()
	}

	respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleListSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.symbols.Symbols()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "symbol registry unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, symbolList(symbols))
}

func (s *Server) handleAddSymbol(w http.ResponseWriter, r *http.Request) {
	var req SymbolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := s.symbols.Add(req.Symbol); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, market.ErrEmptySymbol) {
			status = http.StatusBadRequest
		}
		respondError(w, status, "failed to add symbol", err.Error())
		return
	}
	s.log.Infow("symbol_added", "symbol", req.Symbol)
	s.respondSymbols(w, http.StatusCreated)
}

func (s *Server) handleRemoveSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	if err := s.symbols.Remove(symbol); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, market.ErrNotRegistered) {
			status = http.StatusNotFound
		}
		respondError(w, status, "failed to remove symbol", err.Error())
		return
	}
	s.log.Infow("symbol_removed", "symbol", symbol)
	s.respondSymbols(w, http.StatusOK)
}

// respondSymbols answers with the new allow-list and pushes it to
// "symbols" subscribers.
func (s *Server) respondSymbols(w http.ResponseWriter, status int) {
	symbols, err := s.symbols.Symbols()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "symbol registry unavailable", err.Error())
		return
	}
	s.BroadcastSymbols(symbols)
	respondJSON(w, status, symbolList(symbols))
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	view := s.exchange.Book(mux.Vars(r)["symbol"])

	respondJSON(w, http.StatusOK, BookSnapshot{
		Symbol: view.Symbol,
		Bids:   orderInfos(view.Bids),
		Asks:   orderInfos(view.Asks),
	})
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	limit := defaultTradeLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", raw)
			return
		}
		limit = min(n, maxTradeLimit)
	}

	if s.trades == nil {
		respondJSON(w, http.StatusOK, []TradeInfo{})
		return
	}

	records, err := s.trades.RecentTrades(symbol, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "trade history unavailable", err.Error())
		return
	}
	out := make([]TradeInfo, len(records))
	for i, rec := range records {
		out[i] = tradeInfoFromRecord(rec)
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast Methods
// ==============================

// PublishTrade pushes t to "trades:<symbol>" subscribers. It never fails;
// clients that cannot keep up miss the update.
func (s *Server) PublishTrade(_ context.Context, t engine.Trade) error {
	s.hub.BroadcastToChannel("trades:"+t.Symbol, TradeUpdate{
		Type:      "trade",
		TradeInfo: tradeInfo(t),
	})
	return nil
}

// BroadcastSymbols pushes the allow-list to "symbols" subscribers.
func (s *Server) BroadcastSymbols(symbols []string) {
	s.hub.BroadcastToChannel("symbols", SymbolsUpdate{
		Type:    "symbols",
		Symbols: symbolList(symbols).Symbols,
	})
}

var _ engine.TradeSink = (*Server)(nil)

// ==============================
// Helper Functions
// ==============================

func symbolList(symbols []string) SymbolList {
	if symbols == nil {
		symbols = []string{}
	}
	return SymbolList{Symbols: symbols}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:   error,
		Message: message,
	})
}

// Package ordergen feeds random orders into the engine for demos and load
// tests.
package ordergen

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uhyunpark/stockex/pkg/app/core/engine"
	"github.com/uhyunpark/stockex/pkg/app/core/orderbook"
	"github.com/uhyunpark/stockex/pkg/feed"
)

// Config controls order generation rate and shape
type Config struct {
	BatchSize int           // orders submitted per tick
	Interval  time.Duration // tick period
	Traders   int           // simulated owners
	Symbols   []string      // empty means "XYZ"

	BasePrice int64 // prices are drawn from BasePrice ± Spread
	Spread    int64
	// OddLotPct is the share of orders sent with a non-lot quantity, to
	// exercise admission rejects.
	OddLotPct int
}

// DefaultConfig is roughly 100 orders/sec.
func DefaultConfig() Config {
	return Config{
		BatchSize: 10,
		Interval:  100 * time.Millisecond,
		Traders:   50,
		BasePrice: 50,
		Spread:    2,
		OddLotPct: 5,
	}
}

// HighLoadConfig is roughly 10k orders/sec.
func HighLoadConfig() Config {
	cfg := DefaultConfig()
	cfg.BatchSize = 100
	cfg.Interval = 10 * time.Millisecond
	cfg.Traders = 500
	return cfg
}

// ConfigForMode maps "default" and "high" to their configs.
func ConfigForMode(mode string) (Config, error) {
	switch mode {
	case "", "default":
		return DefaultConfig(), nil
	case "high":
		return HighLoadConfig(), nil
	default:
		return Config{}, fmt.Errorf("unknown order generator mode %q", mode)
	}
}

// Generator creates random orders. Not safe for concurrent use.
type Generator struct {
	traders   []string
	symbols   []string
	basePrice int64
	spread    int64
	oddLotPct int
	rng       *rand.Rand
}

func NewGenerator(cfg Config, seed int64) *Generator {
	if cfg.Traders <= 0 {
		cfg.Traders = 1
	}
	traders := make([]string, cfg.Traders)
	for i := range traders {
		traders[i] = fmt.Sprintf("trader_%d", i+1)
	}
	symbols := cfg.Symbols
	if len(symbols) == 0 {
		symbols = []string{"XYZ"}
	}
	if cfg.BasePrice <= cfg.Spread {
		cfg.BasePrice = cfg.Spread + 1
	}

	return &Generator{
		traders:   traders,
		symbols:   symbols,
		basePrice: cfg.BasePrice,
		spread:    cfg.Spread,
		oddLotPct: cfg.OddLotPct,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Order returns one random order. Prices are whole units so buyers and
// sellers cross often.
func (g *Generator) Order() orderbook.Order {
	side := orderbook.Buy
	if g.rng.Intn(2) == 1 {
		side = orderbook.Sell
	}

	qty := engine.LotSize
	if g.rng.Intn(100) < g.oddLotPct {
		qty = int64(g.rng.Intn(int(engine.LotSize)-1) + 1)
	}

	price := g.basePrice + g.rng.Int63n(2*g.spread+1) - g.spread

	return orderbook.Order{
		Owner:    g.traders[g.rng.Intn(len(g.traders))],
		Symbol:   g.symbols[g.rng.Intn(len(g.symbols))],
		Side:     side,
		Quantity: qty,
		Price:    decimal.NewFromInt(price),
	}
}

func (g *Generator) Batch(n int) []orderbook.Order {
	batch := make([]orderbook.Order, n)
	for i := range batch {
		batch[i] = g.Order()
	}
	return batch
}

// Stats counts generated orders by outcome.
type Stats struct {
	Submitted int
	Booked    int
	Matched   int
	Rejected  int
}

// Run submits a batch every cfg.Interval until ctx is done. It returns
// early only when the engine reports a corrupted book.
func Run(ctx context.Context, sub feed.Submitter, cfg Config, log *zap.SugaredLogger) (Stats, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	gen := NewGenerator(cfg, time.Now().UnixNano())

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	var stats Stats
	start := time.Now()
	lastReport := start

	log.Infow("ordergen_started", "batch", cfg.BatchSize, "interval", cfg.Interval, "traders", cfg.Traders, "symbols", gen.symbols)

	for {
		select {
		case <-ctx.Done():
			elapsed := time.Since(start)
			log.Infow("ordergen_stopped",
				"submitted", stats.Submitted,
				"elapsed", elapsed.Round(time.Millisecond),
				"orders_per_sec", float64(stats.Submitted)/elapsed.Seconds())
			return stats, nil

		case <-ticker.C:
			for _, o := range gen.Batch(cfg.BatchSize) {
				out, err := sub.Submit(ctx, o)
				if errors.Is(err, engine.ErrBookInconsistent) {
					return stats, err
				}
				stats.Submitted++
				switch out.Status {
				case engine.Booked:
					stats.Booked++
				case engine.Matched:
					stats.Matched++
				case engine.Rejected:
					stats.Rejected++
				}
			}

			if time.Since(lastReport) >= 10*time.Second {
				lastReport = time.Now()
				log.Infow("ordergen_stats",
					"submitted", stats.Submitted,
					"booked", stats.Booked,
					"matched", stats.Matched,
					"rejected", stats.Rejected,
					"orders_per_sec", float64(stats.Submitted)/time.Since(start).Seconds())
			}
		}
	}
}

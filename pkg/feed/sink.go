package feed

import (
	"context"
	stderrors "errors"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/uhyunpark/stockex/pkg/app/core/engine"
	"github.com/uhyunpark/stockex/pkg/app/core/orderbook"
	"github.com/uhyunpark/stockex/pkg/metrics"
)

// Submitter is what feed adapters hand decoded orders to.
type Submitter interface {
	Submit(ctx context.Context, o orderbook.Order) (engine.Outcome, error)
}

// NamedSink labels a sink for logs and metrics.
type NamedSink struct {
	Name string
	Sink engine.TradeSink
}

// MultiSink delivers each trade to every sink in order. A failing sink
// does not stop delivery to the rest; the failures are joined.
type MultiSink struct {
	sinks   []NamedSink
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
}

func NewMultiSink(log *zap.SugaredLogger, m *metrics.Metrics, sinks ...NamedSink) *MultiSink {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &MultiSink{sinks: sinks, log: log, metrics: m}
}

// Add appends a sink. Not safe to call once trades are flowing.
func (ms *MultiSink) Add(name string, s engine.TradeSink) {
	ms.sinks = append(ms.sinks, NamedSink{Name: name, Sink: s})
}

func (ms *MultiSink) Len() int { return len(ms.sinks) }

func (ms *MultiSink) PublishTrade(ctx context.Context, t engine.Trade) error {
	var errs []error
	for _, ns := range ms.sinks {
		if err := ns.Sink.PublishTrade(ctx, t); err != nil {
			ms.log.Warnw("trade_sink_failed", "sink", ns.Name, "trade", t.ID.String(), "err", err)
			if ms.metrics != nil {
				ms.metrics.SinkFailed(ns.Name)
			}
			errs = append(errs, errors.Wrap(err, ns.Name))
		}
	}
	return stderrors.Join(errs...)
}

// LogSink writes each trade to the log, the way the exchange console
// always reported executions.
type LogSink struct {
	Log *zap.SugaredLogger
}

func (s LogSink) PublishTrade(_ context.Context, t engine.Trade) error {
	msg := NewTradeMessage(t)
	s.Log.Infow("trade_published",
		"buyer", msg.Buyer,
		"seller", msg.Seller,
		"price", msg.Price,
		"quantity", msg.Quantity,
		"stock", msg.Stock)
	return nil
}

var (
	_ engine.TradeSink = (*MultiSink)(nil)
	_ engine.TradeSink = LogSink{}
	_ Submitter        = (*engine.Engine)(nil)
)

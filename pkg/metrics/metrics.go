// Package metrics exposes the exchange's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stockex"

type Metrics struct {
	registry *prometheus.Registry

	ordersTotal  *prometheus.CounterVec
	tradesTotal  *prometheus.CounterVec
	sinkFailures *prometheus.CounterVec
	restingGauge prometheus.Gauge
}

// New registers the collectors on a private registry so tests and
// multiple engines never collide on the global one.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ordersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Orders submitted to the engine by outcome and rejection reason.",
		}, []string{"outcome", "reason"}),
		tradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Trades executed by symbol.",
		}, []string{"symbol"}),
		sinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trade_sink_failures_total",
			Help:      "Trades a sink failed to accept.",
		}, []string{"sink"}),
		restingGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resting_orders",
			Help:      "Orders currently resting in the book.",
		}),
	}
	m.registry.MustRegister(m.ordersTotal, m.tradesTotal, m.sinkFailures, m.restingGauge)
	return m
}

func (m *Metrics) OrderProcessed(outcome, reason string) {
	m.ordersTotal.WithLabelValues(outcome, reason).Inc()
}

func (m *Metrics) TradeExecuted(symbol string) {
	m.tradesTotal.WithLabelValues(symbol).Inc()
}

func (m *Metrics) SinkFailed(sink string) {
	m.sinkFailures.WithLabelValues(sink).Inc()
}

func (m *Metrics) SetResting(n int) {
	m.restingGauge.Set(float64(n))
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

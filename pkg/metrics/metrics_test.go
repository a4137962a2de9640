package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.OrderProcessed("rejected", "InvalidQuantity")
	m.OrderProcessed("rejected", "InvalidQuantity")
	m.OrderProcessed("booked", "")
	m.TradeExecuted("XYZ")
	m.SinkFailed("kafka")
	m.SetResting(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ordersTotal.WithLabelValues("rejected", "InvalidQuantity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordersTotal.WithLabelValues("booked", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tradesTotal.WithLabelValues("XYZ")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sinkFailures.WithLabelValues("kafka")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.restingGauge))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.TradeExecuted("XYZ")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `stockex_trades_total{symbol="XYZ"} 1`))
}

// Package metrics provides Prometheus instrumentation for trendvest.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PriceCacheHits counts cache reads served without a source call.
	PriceCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trendvest_price_cache_hits_total",
		Help: "Price reads served from a fresh cached quote",
	})

	// PriceCacheMisses counts cache reads that required a source fetch.
	PriceCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trendvest_price_cache_misses_total",
		Help: "Price reads that triggered a source fetch",
	})

	// PriceStaleFallbacks counts degraded reads served from a stale quote
	// after a source failure.
	PriceStaleFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trendvest_price_stale_fallbacks_total",
		Help: "Price reads served stale after a source failure",
	})

	// PriceCacheEvictions counts entries removed by the eviction passes.
	PriceCacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trendvest_price_cache_evictions_total",
		Help: "Cache entries evicted, by reason",
	}, []string{"reason"}) // "stale" or "capacity"

	// PriceCacheSize tracks the current number of cached quotes.
	PriceCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trendvest_price_cache_size",
		Help: "Number of quotes currently cached",
	})

	// TradesTotal counts executed paper trades, partitioned by action.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trendvest_trades_total",
		Help: "Total number of paper trades executed",
	}, []string{"action"})

	// TradeRejections counts trades rejected by business rules.
	TradeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trendvest_trade_rejections_total",
		Help: "Paper trades rejected, by reason",
	}, []string{"reason"})

	// MomentumRunDuration tracks how long a full scoring run takes.
	MomentumRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trendvest_momentum_run_duration_seconds",
		Help:    "Duration of a full momentum scoring run",
		Buckets: prometheus.DefBuckets,
	})

	// CollectorFailures counts mention-collector failures, by source.
	CollectorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trendvest_collector_failures_total",
		Help: "Mention collection failures, by source",
	}, []string{"source"})

	// StreamClients tracks connected WebSocket clients.
	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trendvest_stream_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trendvest_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trendvest_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

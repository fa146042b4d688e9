// Package metrics exposes engine and HTTP metrics to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements ports.TransferMetrics and records HTTP traffic.
type Collector struct {
	transfers       *prometheus.CounterVec
	transferLatency *prometheus.HistogramVec
	transferRetries *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
}

// NewCollector creates the metric vectors under namespace. Call Register
// before serving them.
func NewCollector(namespace string) *Collector {
	return &Collector{
		transfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfers_total",
				Help:      "Transfers by outcome and whether a currency conversion took place",
			},
			[]string{"outcome", "cross_currency"},
		),
		transferLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transfer_duration_seconds",
				Help:      "Transfer latency including lock waits and retries",
				Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"outcome"},
		),
		transferRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfer_retries_total",
				Help:      "Transfer attempts re-run after losing a race with a concurrent writer",
			},
			[]string{"reason"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Register registers all metrics with the given registry.
func (c *Collector) Register(registry prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		c.transfers,
		c.transferLatency,
		c.transferRetries,
		c.httpRequests,
		c.httpLatency,
	}
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) ObserveTransfer(outcome string, crossCurrency bool, duration time.Duration) {
	c.transfers.WithLabelValues(outcome, strconv.FormatBool(crossCurrency)).Inc()
	c.transferLatency.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (c *Collector) ObserveRetry(reason string) {
	c.transferRetries.WithLabelValues(reason).Inc()
}

// ObserveRequest records one HTTP request. route is the matched pattern,
// not the raw path, to keep cardinality bounded.
func (c *Collector) ObserveRequest(method, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

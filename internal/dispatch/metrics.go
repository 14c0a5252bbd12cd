package dispatch

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Singleton metrics instance
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// Metrics holds the Prometheus metrics for the dispatch engine.
type Metrics struct {
	SendRequests      *prometheus.CounterVec
	SendRejected      prometheus.Counter
	DeliveryAttempts  prometheus.Counter
	DeliveryFailures  prometheus.Counter
	DeliveryDuration  prometheus.Histogram
	SupportNotices    prometheus.Counter
}

// GetMetrics returns the singleton metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = newMetrics()
	})
	return metricsInstance
}

// newMetrics creates and registers all metrics
func newMetrics() *Metrics {
	return &Metrics{
		SendRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lettera_send_requests_total",
			Help: "Total number of send requests by send level",
		}, []string{"level"}),
		SendRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lettera_send_rejected_total",
			Help: "Total number of send requests rejected before delivery",
		}),
		DeliveryAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lettera_delivery_attempts_total",
			Help: "Total number of delivery attempts",
		}),
		DeliveryFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lettera_delivery_failures_total",
			Help: "Total number of failed delivery attempts",
		}),
		DeliveryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lettera_delivery_duration_seconds",
			Help:    "Time taken to deliver a message",
			Buckets: prometheus.DefBuckets,
		}),
		SupportNotices: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lettera_support_notices_total",
			Help: "Total number of failure notices sent to production support",
		}),
	}
}

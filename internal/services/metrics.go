package services

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the sync engine
type Metrics struct {
	// Sync pass outcomes by status ("success" / "failed")
	SyncPasses *prometheus.CounterVec

	// Passes rejected by the reentrancy guard
	SyncSkipped prometheus.Counter

	// Sync pass latency
	SyncDuration prometheus.Histogram

	// Items whose content hash changed, by category
	ItemsChanged *prometheus.CounterVec
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// InitMetrics registers the sync metrics exactly once and returns them
func InitMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			SyncPasses: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "promptsync_sync_passes_total",
				Help: "Total number of completed sync passes by status",
			}, []string{"status"}),

			SyncSkipped: promauto.NewCounter(prometheus.CounterOpts{
				Name: "promptsync_sync_skipped_total",
				Help: "Sync requests rejected because a pass was already running",
			}),

			SyncDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "promptsync_sync_duration_seconds",
				Help:    "Sync pass latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			}),

			ItemsChanged: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "promptsync_items_changed_total",
				Help: "Mirrored items inserted or updated, by category",
			}, []string{"category"}),
		}
	})
	return metricsInstance
}

// The record helpers are nil-safe so services constructed without metrics
// (tests, tooling) need no guards at call sites.

func (m *Metrics) recordPass(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SyncPasses.WithLabelValues(status).Inc()
	m.SyncDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) recordSkipped() {
	if m == nil {
		return
	}
	m.SyncSkipped.Inc()
}

func (m *Metrics) recordChanged(category string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ItemsChanged.WithLabelValues(category).Add(float64(n))
}

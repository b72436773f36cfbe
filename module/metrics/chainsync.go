package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Cardinal-Cryptography/alephsync/model/chainsync"
	"github.com/Cardinal-Cryptography/alephsync/module"
)

type ChainSyncCollector struct {
	timeToPruned    *prometheus.HistogramVec
	timeToReceived  prometheus.Histogram
	totalPruned     prometheus.Counter
	storedBlocks    prometheus.Gauge
	requestAttempts prometheus.Histogram
}

var _ module.ChainSyncMetrics = (*ChainSyncCollector)(nil)

func NewChainSyncCollector() *ChainSyncCollector {
	return &ChainSyncCollector{
		timeToPruned: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:      "time_to_pruned_seconds",
			Namespace: namespaceChainsync,
			Help:      "the time between queueing and pruning a block request",
			Buckets:   []float64{1, 10, 60, 300, 600},
		}, []string{"was_requested", "was_received"}),

		timeToReceived: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:      "time_to_received_seconds",
			Namespace: namespaceChainsync,
			Help:      "the time between requesting and receiving a block",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30},
		}),

		totalPruned: promauto.NewCounter(prometheus.CounterOpts{
			Name:      "blocks_pruned_total",
			Namespace: namespaceChainsync,
			Help:      "the total number of block requests dropped by finalization",
		}),

		storedBlocks: promauto.NewGauge(prometheus.GaugeOpts{
			Name:      "blocks_stored",
			Namespace: namespaceChainsync,
			Help:      "the number of block requests currently tracked",
		}),

		requestAttempts: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:      "request_attempts",
			Namespace: namespaceChainsync,
			Help:      "the attempt count reached by block requests when sent",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
	}
}

func (c *ChainSyncCollector) PrunedBlock(status *chainsync.Status) {
	// the received duration only makes sense for statuses that got that far
	if status.WasRequested() && status.WasReceived() {
		c.timeToReceived.Observe(status.Received.Sub(status.Requested).Seconds())
	}
	labels := prometheus.Labels{
		"was_requested": boolLabel(status.WasRequested()),
		"was_received":  boolLabel(status.WasReceived()),
	}
	c.timeToPruned.With(labels).Observe(time.Since(status.Queued).Seconds())
}

func (c *ChainSyncCollector) PrunedBlocks(pruned int, stored int) {
	c.totalPruned.Add(float64(pruned))
	c.storedBlocks.Set(float64(stored))
}

func (c *ChainSyncCollector) BlockRequested(attempts uint) {
	c.requestAttempts.Observe(float64(attempts))
}

func boolLabel(value bool) string {
	if value {
		return "true"
	}
	return "false"
}

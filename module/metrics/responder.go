package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Cardinal-Cryptography/alephsync/module"
)

type ResponderCollector struct {
	served       prometheus.Counter
	declined     *prometheus.CounterVec
	chunksServed prometheus.Histogram
	serveTime    prometheus.Histogram
}

var _ module.ResponderMetrics = (*ResponderCollector)(nil)

func NewResponderCollector() *ResponderCollector {
	return &ResponderCollector{
		served: promauto.NewCounter(prometheus.CounterOpts{
			Name:      "requests_served_total",
			Namespace: namespaceChainsync,
			Subsystem: subsystemResponder,
			Help:      "the number of catch-up requests answered with a response",
		}),

		declined: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:      "requests_declined_total",
			Namespace: namespaceChainsync,
			Subsystem: subsystemResponder,
			Help:      "the number of catch-up requests that produced no response",
		}, []string{LabelReason}),

		chunksServed: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:      "response_chunks",
			Namespace: namespaceChainsync,
			Subsystem: subsystemResponder,
			Help:      "the number of chunks per served response",
			Buckets:   []float64{1, 4, 16, 64, 256},
		}),

		serveTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:      "serve_duration_seconds",
			Namespace: namespaceChainsync,
			Subsystem: subsystemResponder,
			Help:      "the time spent assembling a response",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1},
		}),
	}
}

func (rc *ResponderCollector) RequestServed(chunks int, duration time.Duration) {
	rc.served.Inc()
	rc.chunksServed.Observe(float64(chunks))
	rc.serveTime.Observe(duration.Seconds())
}

func (rc *ResponderCollector) RequestDeclined(reason string) {
	rc.declined.With(prometheus.Labels{LabelReason: reason}).Inc()
}

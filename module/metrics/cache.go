package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Cardinal-Cryptography/alephsync/module"
)

type CacheCollector struct {
	entries  *prometheus.GaugeVec
	hits     *prometheus.CounterVec
	notFound *prometheus.CounterVec
	misses   *prometheus.CounterVec
}

var _ module.CacheMetrics = (*CacheCollector)(nil)

func NewCacheCollector() *CacheCollector {
	return &CacheCollector{
		entries: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name:      "entries_total",
			Namespace: namespaceStorage,
			Subsystem: subsystemCache,
			Help:      "the number of entries in the cache",
		}, []string{LabelResource}),

		hits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:      "hits_total",
			Namespace: namespaceStorage,
			Subsystem: subsystemCache,
			Help:      "the number of hits for the cache",
		}, []string{LabelResource}),

		notFound: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:      "not_founds_total",
			Namespace: namespaceStorage,
			Subsystem: subsystemCache,
			Help:      "the number of times the cache knew the key was absent",
		}, []string{LabelResource}),

		misses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:      "misses_total",
			Namespace: namespaceStorage,
			Subsystem: subsystemCache,
			Help:      "the number of misses for the cache",
		}, []string{LabelResource}),
	}
}

func (cc *CacheCollector) CacheEntries(resource string, entries uint) {
	cc.entries.With(prometheus.Labels{LabelResource: resource}).Set(float64(entries))
}

func (cc *CacheCollector) CacheHit(resource string) {
	cc.hits.With(prometheus.Labels{LabelResource: resource}).Inc()
}

func (cc *CacheCollector) CacheNotFound(resource string) {
	cc.notFound.With(prometheus.Labels{LabelResource: resource}).Inc()
}

func (cc *CacheCollector) CacheMiss(resource string) {
	cc.misses.With(prometheus.Labels{LabelResource: resource}).Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Cardinal-Cryptography/alephsync/module"
)

type ForestCollector struct {
	vertices        prometheus.Gauge
	compostBin      prometheus.Gauge
	finalizedHeight prometheus.Gauge
}

var _ module.ForestMetrics = (*ForestCollector)(nil)

func NewForestCollector() *ForestCollector {

	fc := &ForestCollector{

		vertices: promauto.NewGauge(prometheus.GaugeOpts{
			Name:      "vertices",
			Namespace: namespaceChainsync,
			Subsystem: subsystemForest,
			Help:      "the number of unfinalized blocks tracked by the forest",
		}),

		compostBin: promauto.NewGauge(prometheus.GaugeOpts{
			Name:      "compost_bin_entries",
			Namespace: namespaceChainsync,
			Subsystem: subsystemForest,
			Help:      "the number of tombstoned block ids on hopeless forks",
		}),

		finalizedHeight: promauto.NewGauge(prometheus.GaugeOpts{
			Name:      "finalized_height",
			Namespace: namespaceChainsync,
			Subsystem: subsystemForest,
			Help:      "the number of the highest justified block",
		}),
	}

	return fc
}

func (fc *ForestCollector) ForestVertices(vertices uint) {
	fc.vertices.Set(float64(vertices))
}

func (fc *ForestCollector) ForestCompostBin(entries uint) {
	fc.compostBin.Set(float64(entries))
}

func (fc *ForestCollector) FinalizedHeight(height uint64) {
	fc.finalizedHeight.Set(float64(height))
}

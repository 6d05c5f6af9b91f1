// Package metrics holds the prometheus collectors of the explorer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "blindbit_explorer"

var (
	BlocksIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "blocks_indexed_total",
		Help:      "Blocks committed to the store",
	})

	BlocksReplaced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "blocks_replaced_total",
		Help:      "Blocks rewritten by a reorg replace",
	})

	InputsUnresolvable = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "inputs_unresolvable_total",
		Help:      "Inputs whose previous output was not found in the index",
	})

	IndexedHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "indexer",
		Name:      "indexed_height",
		Help:      "Height of the last committed block",
	})

	ChainTip = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "indexer",
		Name:      "chain_tip_height",
		Help:      "Best block height reported by the node",
	})

	Reorgs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "indexer",
		Name:      "reorgs_total",
		Help:      "Detected chain reorganisations",
	})

	Batches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "batches_total",
		Help:      "Batches handed to the consumer",
	})

	BatchBlocks = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "batch_blocks",
		Help:      "Number of blocks per emitted batch",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "fetch_seconds",
		Help:      "Latency of a single block fetch",
		Buckets:   prometheus.DefBuckets,
	})
)

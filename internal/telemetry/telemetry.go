// Package telemetry exposes the simulation clock's progress as Prometheus
// metrics. A nil *Metrics is valid and records nothing.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "simulator"

type Metrics struct {
	BlocksProcessed prometheus.Counter
	CurrentBlock    prometheus.Gauge
	TxTotal         *prometheus.CounterVec
	BlockDuration   prometheus.Histogram
	SourceDuration  *prometheus.HistogramVec
	RunsTotal       *prometheus.CounterVec
}

// NewMetrics registers the clock metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BlocksProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_processed_total",
			Help:      "Blocks fully applied and snapshotted.",
		}),
		CurrentBlock: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_block",
			Help:      "Last block applied by the clock.",
		}),
		TxTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Transactions by kind, status and error class.",
		}, []string{"kind", "status", "class"}),
		BlockDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "block_duration_seconds",
			Help:      "Time to gather, apply and snapshot one block.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		SourceDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_duration_seconds",
			Help:      "Time a transaction source spends deciding one block.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"source"}),
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs by final state.",
		}, []string{"state"}),
	}
}

func (m *Metrics) ObserveBlock(block uint64, took time.Duration) {
	if m == nil {
		return
	}
	m.BlocksProcessed.Inc()
	m.CurrentBlock.Set(float64(block))
	m.BlockDuration.Observe(took.Seconds())
}

func (m *Metrics) ObserveTx(kind, status, class string) {
	if m == nil {
		return
	}
	m.TxTotal.WithLabelValues(kind, status, class).Inc()
}

func (m *Metrics) ObserveSource(id string, took time.Duration) {
	if m == nil {
		return
	}
	m.SourceDuration.WithLabelValues(id).Observe(took.Seconds())
}

func (m *Metrics) ObserveRun(state string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(state).Inc()
}

// Package metrics exports partition I/O and reconciliation metrics to
// Prometheus.
package metrics

import (
	"fmt"

	"github.com/desertwitch/gopart/internal/reconcile"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gopart"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Collector records forwarded operations and rescans. It implements both
// the partition observer and the scheme recorder.
type Collector struct {
	ioOps      *prometheus.CounterVec
	ioBytes    *prometheus.CounterVec
	rescans    *prometheus.CounterVec
	changes    *prometheus.CounterVec
	partitions prometheus.Gauge
}

// New returns a pointer to a new [Collector] registered with the registerer.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		ioOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "io_operations_total",
			Help:      "Forwarded storage operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		ioBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "io_bytes_total",
			Help:      "Bytes transferred or affected by forwarded storage operations.",
		}, []string{"op"}),
		rescans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rescans_total",
			Help:      "Partition table rescans by outcome.",
		}, []string{"outcome"}),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partition_changes_total",
			Help:      "Partitions added, updated, marked stale or removed by rescans.",
		}, []string{"change"}),
		partitions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "partitions",
			Help:      "Partitions currently owned by the scheme.",
		}),
	}

	for _, col := range []prometheus.Collector{c.ioOps, c.ioBytes, c.rescans, c.changes, c.partitions} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("(metrics) failed to register collector: %w", err)
		}
	}

	return c, nil
}

// ObserveIO records one forwarded operation.
func (c *Collector) ObserveIO(op string, bytes uint64, err error) {
	c.ioOps.WithLabelValues(op, outcome(err)).Inc()

	if err == nil {
		c.ioBytes.WithLabelValues(op).Add(float64(bytes))
	}
}

// ObserveRescan records the outcome of one rescan.
func (c *Collector) ObserveRescan(stats reconcile.Stats, err error) {
	c.rescans.WithLabelValues(outcome(err)).Inc()

	if err != nil {
		return
	}

	c.changes.WithLabelValues("added").Add(float64(stats.Added))
	c.changes.WithLabelValues("updated").Add(float64(stats.Updated))
	c.changes.WithLabelValues("stale").Add(float64(stats.Stale))
	c.changes.WithLabelValues("removed").Add(float64(stats.Removed))
}

// SetPartitions records the number of owned partitions.
func (c *Collector) SetPartitions(n int) {
	c.partitions.Set(float64(n))
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}

	return OutcomeSuccess
}

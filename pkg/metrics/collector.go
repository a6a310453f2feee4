package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector exposes dispatch, outbox, and sync metrics on its own
// registry so the ops API can serve them without touching the default one.
type PrometheusCollector struct {
	registry *prometheus.Registry

	dispatches  *prometheus.CounterVec
	enqueues    prometheus.Counter
	outboxDepth prometheus.Gauge
	syncSynced  prometheus.Counter
	syncFailed  prometheus.Counter
	syncPasses  prometheus.Counter
}

func NewPrometheusCollector() *PrometheusCollector {
	c := &PrometheusCollector{
		registry: prometheus.NewRegistry(),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_dispatches_total",
			Help: "Dispatched calls by classified outcome",
		}, []string{"outcome"}),
		enqueues: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_outbox_enqueued_total",
			Help: "Calls captured into the offline outbox",
		}),
		outboxDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_outbox_depth",
			Help: "Current persisted outbox length",
		}),
		syncSynced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_sync_replayed_total",
			Help: "Outbox entries replayed successfully",
		}),
		syncFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_sync_failed_total",
			Help: "Outbox entries left queued after a sync pass",
		}),
		syncPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_sync_passes_total",
			Help: "Completed sync passes",
		}),
	}
	c.registry.MustRegister(c.dispatches, c.enqueues, c.outboxDepth,
		c.syncSynced, c.syncFailed, c.syncPasses)
	return c
}

// Registry returns the registry backing this collector for the /metrics
// handler.
func (c *PrometheusCollector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *PrometheusCollector) RecordDispatch(outcome string) {
	c.dispatches.WithLabelValues(outcome).Inc()
}

func (c *PrometheusCollector) RecordEnqueue() {
	c.enqueues.Inc()
}

func (c *PrometheusCollector) SetOutboxDepth(depth int) {
	c.outboxDepth.Set(float64(depth))
}

func (c *PrometheusCollector) RecordSyncPass(synced, failed int) {
	c.syncSynced.Add(float64(synced))
	c.syncFailed.Add(float64(failed))
	c.syncPasses.Inc()
}

// Ensure PrometheusCollector implements Collector
var _ Collector = (*PrometheusCollector)(nil)

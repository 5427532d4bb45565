package live

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sdelrio0/xyflow-flow/pkg/flow"
)

// Metrics holds the live server's Prometheus collectors
type Metrics struct {
	ChangesApplied   *prometheus.CounterVec
	BatchesApplied   prometheus.Counter
	FramesRejected   *prometheus.CounterVec
	FramesSent       *prometheus.CounterVec
	ActiveSessions   prometheus.Gauge
	ConnectedClients prometheus.Gauge
	SnapshotWrites   *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates the collectors on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{registry: reg}

	m.ChangesApplied = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "vflow_changes_applied_total",
			Help: "Total number of node and edge changes applied",
		},
		[]string{"target", "type"},
	)

	m.BatchesApplied = promauto.With(reg).NewCounter(
		prometheus.CounterOpts{
			Name: "vflow_batches_applied_total",
			Help: "Total number of change batches applied",
		},
	)

	m.FramesRejected = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "vflow_frames_rejected_total",
			Help: "Total number of client frames rejected",
		},
		[]string{"reason"},
	)

	m.FramesSent = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "vflow_frames_sent_total",
			Help: "Total number of frames sent to clients",
		},
		[]string{"type"},
	)

	m.ActiveSessions = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "vflow_sessions_active",
			Help: "Current number of live sessions",
		},
	)

	m.ConnectedClients = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "vflow_clients_connected",
			Help: "Current number of connected websocket clients",
		},
	)

	m.SnapshotWrites = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "vflow_snapshot_writes_total",
			Help: "Total number of session snapshots persisted",
		},
		[]string{"status"},
	)

	return m
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordChangeSet counts an applied batch by change type
func (m *Metrics) RecordChangeSet(cs flow.ChangeSet) {
	for _, c := range cs.Nodes {
		m.ChangesApplied.WithLabelValues("node", string(c.ChangeType())).Inc()
	}
	for _, c := range cs.Edges {
		m.ChangesApplied.WithLabelValues("edge", string(c.ChangeType())).Inc()
	}
	m.BatchesApplied.Inc()
}

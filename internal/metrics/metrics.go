// Package metrics holds the Prometheus collectors for fishsync.
//
// Collectors are registered on the registry passed to New rather than on the
// global default, so tests can build as many instances as they like. Every
// method is safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the set of collectors shared by the engine, service and HTTP layers.
type Metrics struct {
	OutboxEnqueued   *prometheus.CounterVec
	OutboxDelivered  *prometheus.CounterVec
	OutboxFailed     *prometheus.CounterVec
	OutboxDead       *prometheus.CounterVec
	SnapshotsApplied *prometheus.CounterVec
	RecordsDropped   *prometheus.CounterVec
	RemoteConnects   *prometheus.CounterVec
	RemoteMode       prometheus.Gauge
	Catches          *prometheus.CounterVec
	DeepLinks        *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OutboxEnqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "fishsync_outbox_enqueued_total", Help: "Remote writes queued in the outbox"},
			[]string{"collection"},
		),
		OutboxDelivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "fishsync_outbox_delivered_total", Help: "Remote writes acknowledged by the remote store"},
			[]string{"collection"},
		),
		OutboxFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "fishsync_outbox_failed_total", Help: "Failed remote write attempts"},
			[]string{"collection"},
		),
		OutboxDead: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "fishsync_outbox_dead_total", Help: "Remote writes moved to the dead-letter state"},
			[]string{"collection"},
		),
		SnapshotsApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "fishsync_snapshots_applied_total", Help: "Remote snapshots applied to memory"},
			[]string{"collection"},
		),
		RecordsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "fishsync_records_dropped_total", Help: "Records rejected while loading or applying snapshots"},
			[]string{"collection"},
		),
		RemoteConnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "fishsync_remote_connects_total", Help: "Remote configuration attempts"},
			[]string{"result"},
		),
		RemoteMode: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "fishsync_remote_mode", Help: "1 while the engine is in remote mode"},
		),
		Catches: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "fishsync_catches_total", Help: "Catches recorded by quota outcome"},
			[]string{"outcome"},
		),
		DeepLinks: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "fishsync_deeplinks_total", Help: "Deep-link actions handled"},
			[]string{"action", "result"},
		),
	}
	reg.MustRegister(
		m.OutboxEnqueued, m.OutboxDelivered, m.OutboxFailed, m.OutboxDead,
		m.SnapshotsApplied, m.RecordsDropped, m.RemoteConnects, m.RemoteMode,
		m.Catches, m.DeepLinks,
	)
	return m
}

func (m *Metrics) Enqueued(collection string) {
	if m != nil {
		m.OutboxEnqueued.WithLabelValues(collection).Inc()
	}
}

func (m *Metrics) Delivered(collection string) {
	if m != nil {
		m.OutboxDelivered.WithLabelValues(collection).Inc()
	}
}

func (m *Metrics) Failed(collection string) {
	if m != nil {
		m.OutboxFailed.WithLabelValues(collection).Inc()
	}
}

func (m *Metrics) Dead(collection string) {
	if m != nil {
		m.OutboxDead.WithLabelValues(collection).Inc()
	}
}

func (m *Metrics) Snapshot(collection string) {
	if m != nil {
		m.SnapshotsApplied.WithLabelValues(collection).Inc()
	}
}

func (m *Metrics) Dropped(collection string, n int) {
	if m != nil && n > 0 {
		m.RecordsDropped.WithLabelValues(collection).Add(float64(n))
	}
}

// Connect records a remote configuration attempt and updates the mode gauge.
func (m *Metrics) Connect(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.RemoteConnects.WithLabelValues("ok").Inc()
		m.RemoteMode.Set(1)
		return
	}
	m.RemoteConnects.WithLabelValues("error").Inc()
}

// Disconnect resets the mode gauge.
func (m *Metrics) Disconnect() {
	if m != nil {
		m.RemoteMode.Set(0)
	}
}

func (m *Metrics) Catch(outcome string) {
	if m != nil {
		m.Catches.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) DeepLink(action, result string) {
	if m != nil {
		m.DeepLinks.WithLabelValues(action, result).Inc()
	}
}

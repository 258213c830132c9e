// Package metrics exposes Prometheus instrumentation for the coordinator
// and web layer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the daemon's collectors. A nil *Metrics is a valid no-op
// receiver so tests can run without a registry.
type Metrics struct {
	registry *prometheus.Registry

	broadcastsTotal   *prometheus.CounterVec
	pollCyclesTotal   *prometheus.CounterVec
	socketReconnects  prometheus.Counter
	droppedFrames     prometheus.Counter
	tabsConnected     prometheus.Gauge
	lastReadingUnixTS prometheus.Gauge
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		broadcastsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vitalvest_broadcasts_total",
			Help: "Total broadcasts emitted to tabs, by message type.",
		}, []string{"type"}),
		pollCyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vitalvest_poll_cycles_total",
			Help: "Total REST poll cycles, by result (ok, partial, failed, skipped).",
		}, []string{"result"}),
		socketReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vitalvest_socket_reconnects_total",
			Help: "Total upstream socket reconnect attempts.",
		}),
		droppedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vitalvest_dropped_frames_total",
			Help: "Total malformed upstream frames dropped.",
		}),
		tabsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vitalvest_tabs_connected",
			Help: "Browser tabs currently registered with the coordinator.",
		}),
		lastReadingUnixTS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vitalvest_last_reading_timestamp_seconds",
			Help: "Unix timestamp of the last applied sensor reading.",
		}),
	}
	m.registry.MustRegister(
		m.broadcastsTotal,
		m.pollCyclesTotal,
		m.socketReconnects,
		m.droppedFrames,
		m.tabsConnected,
		m.lastReadingUnixTS,
	)
	return m
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Broadcast counts one emitted broadcast by type tag.
func (m *Metrics) Broadcast(msgType string) {
	if m == nil {
		return
	}
	m.broadcastsTotal.WithLabelValues(msgType).Inc()
}

// PollCycle counts one completed poll cycle by result.
func (m *Metrics) PollCycle(result string) {
	if m == nil {
		return
	}
	m.pollCyclesTotal.WithLabelValues(result).Inc()
}

// SocketReconnect counts one reconnect attempt.
func (m *Metrics) SocketReconnect() {
	if m == nil {
		return
	}
	m.socketReconnects.Inc()
}

// DroppedFrame counts one malformed frame.
func (m *Metrics) DroppedFrame() {
	if m == nil {
		return
	}
	m.droppedFrames.Inc()
}

// SetTabs records the current number of registered tabs.
func (m *Metrics) SetTabs(n int) {
	if m == nil {
		return
	}
	m.tabsConnected.Set(float64(n))
}

// ReadingApplied records the timestamp of the latest applied reading.
func (m *Metrics) ReadingApplied(unixSeconds float64) {
	if m == nil {
		return
	}
	m.lastReadingUnixTS.Set(unixSeconds)
}

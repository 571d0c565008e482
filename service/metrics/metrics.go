package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/khaledhikmat/ws-go/model"
)

// Metrics holds the detection loop and API counters.
type Metrics struct {
	FramesRead      atomic.Uint64
	FramesSkipped   atomic.Uint64
	MotionFrames    atomic.Uint64
	Classifications atomic.Uint64
	Accepted        atomic.Uint64
	Rejected        atomic.Uint64

	ClassifierErrors atomic.Uint64
	RemoteErrors     atomic.Uint64
	LocalErrors      atomic.Uint64
	AlertsDropped    atomic.Uint64
	NotifierErrors   atomic.Uint64

	ClassifyLatencyMs atomic.Uint64

	ActiveAgents     atomic.Int64
	WebsocketClients atomic.Int64

	detections *prometheus.CounterVec
	registry   *prometheus.Registry
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ws_detections_total",
			Help: "Accepted detections per waste category",
		}, []string{"category"}),
	}

	m.registerPrometheusMetrics()

	return m
}

func (m *Metrics) gauge(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn))
}

func (m *Metrics) registerPrometheusMetrics() {
	m.registry.MustRegister(m.detections)

	m.gauge("ws_frames_read_total", "Frames read from the source",
		func() float64 { return float64(m.FramesRead.Load()) })
	m.gauge("ws_frames_skipped_total", "Empty or malformed frames skipped",
		func() float64 { return float64(m.FramesSkipped.Load()) })
	m.gauge("ws_motion_frames_total", "Frames where the motion gate fired",
		func() float64 { return float64(m.MotionFrames.Load()) })
	m.gauge("ws_classifications_total", "Classifier invocations",
		func() float64 { return float64(m.Classifications.Load()) })
	m.gauge("ws_accepted_total", "Classifications at or above the confidence threshold",
		func() float64 { return float64(m.Accepted.Load()) })
	m.gauge("ws_rejected_total", "Classifications below the confidence threshold",
		func() float64 { return float64(m.Rejected.Load()) })

	m.gauge("ws_classifier_errors_total", "Classifier failures",
		func() float64 { return float64(m.ClassifierErrors.Load()) })
	m.gauge("ws_remote_store_errors_total", "Failed remote stat writes",
		func() float64 { return float64(m.RemoteErrors.Load()) })
	m.gauge("ws_local_snapshot_errors_total", "Failed local snapshot writes",
		func() float64 { return float64(m.LocalErrors.Load()) })
	m.gauge("ws_alerts_dropped_total", "Detection events dropped because the alerter was busy",
		func() float64 { return float64(m.AlertsDropped.Load()) })
	m.gauge("ws_notifier_errors_total", "Failed sorter or webhook notifications",
		func() float64 { return float64(m.NotifierErrors.Load()) })

	m.gauge("ws_classify_latency_ms", "Latest classifier latency in milliseconds",
		func() float64 { return float64(m.ClassifyLatencyMs.Load()) })
	m.gauge("ws_active_agents", "Running detection agents",
		func() float64 { return float64(m.ActiveAgents.Load()) })
	m.gauge("ws_websocket_clients", "Connected stats websocket clients",
		func() float64 { return float64(m.WebsocketClients.Load()) })
}

func (m *Metrics) ObserveDetection(c model.Category) {
	m.detections.WithLabelValues(string(c)).Inc()
}

func (m *Metrics) UpdateClassifyLatency(d time.Duration) {
	m.ClassifyLatencyMs.Store(uint64(d.Milliseconds()))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

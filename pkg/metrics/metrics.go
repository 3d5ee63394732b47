// Package metrics exposes tracking counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/teslashibe/blinkwatch/pkg/blink"
)

const namespace = "blinkwatch"

// Alert kinds used as the "kind" label.
const (
	AlertFirst  = "first"
	AlertRepeat = "repeat"
)

// Metrics owns a private registry so tests and multiple instances never
// collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	frames     prometheus.Counter
	blinks     prometheus.Counter
	alerts     *prometheus.CounterVec
	violations prometheus.Counter
	ear        prometheus.Gauge
	face       prometheus.Gauge
	sessions   prometheus.Counter
}

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames observed by the blink tracker.",
		}),
		blinks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blinks_total",
			Help:      "Completed blinks.",
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Drowsiness alerts fired, by kind.",
		}, []string{"kind"}),
		violations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contract_violations_total",
			Help:      "Frames rejected because an EAR arrived without visible eyes.",
		}),
		ear: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "eye_aspect_ratio",
			Help:      "Most recent eye aspect ratio.",
		}),
		face: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "face_present",
			Help:      "1 when a face was detected in the latest frame.",
		}),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Tracking sessions started.",
		}),
	}

	m.registry.MustRegister(
		m.frames, m.blinks, m.alerts, m.violations, m.ear, m.face, m.sessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Expose both kinds at zero before the first alert.
	m.alerts.WithLabelValues(AlertFirst)
	m.alerts.WithLabelValues(AlertRepeat)
	return m
}

// Observe records one tracker step.
func (m *Metrics) Observe(f blink.Frame, out blink.Outcome) {
	m.frames.Inc()

	if f.FacePresent {
		m.face.Set(1)
	} else {
		m.face.Set(0)
	}
	if f.HasEAR {
		m.ear.Set(f.EAR)
	}

	if out.BlinkCompleted {
		m.blinks.Inc()
	}
	if out.AlertFire {
		kind := AlertFirst
		if out.AlertRepeat {
			kind = AlertRepeat
		}
		m.alerts.WithLabelValues(kind).Inc()
	}
}

// ContractViolation records a rejected frame.
func (m *Metrics) ContractViolation() {
	m.violations.Inc()
}

// SessionStarted records a new tracking session.
func (m *Metrics) SessionStarted() {
	m.sessions.Inc()
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Package metrics exposes the control core's counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sidcontrol/internal/bttfn"
	"sidcontrol/internal/travel"
)

const namespace = "sid"

// Metrics holds the collectors on a private registry.
//
// Its methods are safe for concurrent use.
type Metrics struct {
	reg *prometheus.Registry

	requests      prometheus.Counter
	responses     prometheus.Counter
	timeouts      prometheus.Counter
	failures      prometheus.Gauge
	drops         *prometheus.CounterVec
	linkLosses    prometheus.Counter
	notifications *prometheus.CounterVec

	sessions        *prometheus.CounterVec
	aborts          prometheus.Counter
	phase           prometheus.Gauge
	phaseChanges    *prometheus.CounterVec
	droppedTriggers *prometheus.CounterVec
}

// New registers all collectors, plus the Go and process collectors, on a
// new registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		requests: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bttfn", Name: "requests_total",
			Help: "Status requests sent to the peer.",
		}),
		responses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bttfn", Name: "responses_total",
			Help: "Responses accepted from the peer.",
		}),
		timeouts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bttfn", Name: "timeouts_total",
			Help: "Requests that got no response in time.",
		}),
		failures: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "bttfn", Name: "consecutive_failures",
			Help: "Current consecutive failure count.",
		}),
		drops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bttfn", Name: "dropped_packets_total",
			Help: "Inbound packets rejected, by reason.",
		}, []string{"reason"}),
		linkLosses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bttfn", Name: "link_losses_total",
			Help: "Times the peer went silent long enough to reset its state.",
		}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bttfn", Name: "notifications_total",
			Help: "Notifications received, by command.",
		}, []string{"command"}),

		sessions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "travel", Name: "sessions_total",
			Help: "Sessions started, by origin and sync mode.",
		}, []string{"origin", "sync"}),
		aborts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "travel", Name: "aborted_sessions_total",
			Help: "Sessions cancelled before reentry completed.",
		}),
		phase: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "travel", Name: "phase",
			Help: "Current phase: 0 idle, 1 accelerating, 2 tunnel, 3 reentry.",
		}),
		phaseChanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "travel", Name: "phase_changes_total",
			Help: "Phase transitions, by target phase.",
		}, []string{"phase"}),
		droppedTriggers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "trigger", Name: "dropped_total",
			Help: "Triggers ignored, by origin and reason.",
		}, []string{"origin", "reason"}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ============================================================================
// bttfn.Observer
// ============================================================================

func (m *Metrics) RequestSent() { m.requests.Inc() }

func (m *Metrics) ResponseAccepted() {
	m.responses.Inc()
	m.failures.Set(0)
}

func (m *Metrics) RequestTimedOut(failures int) {
	m.timeouts.Inc()
	m.failures.Set(float64(failures))
}

func (m *Metrics) PacketDropped(reason string) { m.drops.WithLabelValues(reason).Inc() }

func (m *Metrics) LinkLost() { m.linkLosses.Inc() }

func (m *Metrics) NotificationReceived(cmd bttfn.Command) {
	m.notifications.WithLabelValues(cmd.String()).Inc()
}

var _ bttfn.Observer = (*Metrics)(nil)

// ============================================================================
// Travel and triggers
// ============================================================================

// PhaseChanged records a travel phase transition.
func (m *Metrics) PhaseChanged(pc travel.PhaseChange) {
	m.phase.Set(float64(pc.To))
	m.phaseChanges.WithLabelValues(pc.To.String()).Inc()
	if pc.From == travel.PhaseIdle && pc.To == travel.PhaseAccelerating {
		m.sessions.WithLabelValues(pc.Origin.String(), pc.Sync.String()).Inc()
	}
	if pc.Aborted {
		m.aborts.Inc()
	}
}

// TriggerDropped records an ignored trigger.
func (m *Metrics) TriggerDropped(origin travel.Origin, reason string) {
	m.droppedTriggers.WithLabelValues(origin.String(), reason).Inc()
}

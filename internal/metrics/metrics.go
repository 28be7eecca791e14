// Package metrics exposes Prometheus collectors for the interaction
// pipeline. Collectors are registered on an injected registerer so tests and
// embedders can use a private registry.
package metrics

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ayusman/holovis/internal/gesture"
)

const namespace = "holovis"

// Metrics holds the pipeline collectors. It satisfies gesture.Observer and
// interaction.DispatchObserver.
type Metrics struct {
	WindowsOpened     prometheus.Counter
	Gestures          *prometheus.CounterVec
	UnclassifiedCodes *prometheus.CounterVec
	Dispatches        *prometheus.CounterVec
	Violations        *prometheus.CounterVec
	TrackedSources    prometheus.Gauge
	PluginRuns        *prometheus.CounterVec
	WSConnections     prometheus.Gauge
	WSMessages        *prometheus.CounterVec

	gestures   atomic.Int64
	dispatched atomic.Int64
	violations atomic.Int64

	mu   sync.RWMutex
	last gesture.Kind
}

// Snapshot holds current values for the JSON status endpoint.
type Snapshot struct {
	Gestures    int64        `json:"gestures"`
	Dispatched  int64        `json:"dispatched"`
	Violations  int64        `json:"violations"`
	LastGesture gesture.Kind `json:"last_gesture,omitempty"`
}

// New registers the pipeline collectors on reg. A nil reg uses a fresh
// private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		WindowsOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coalescing_windows_total",
			Help:      "Total number of coalescing windows opened",
		}),
		Gestures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gestures_total",
			Help:      "Total number of classified gestures",
		}, []string{"kind"}),
		UnclassifiedCodes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unclassified_windows_total",
			Help:      "Windows that closed on a code with no gesture",
		}, []string{"code"}),
		Dispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Commands dispatched to the state machine",
		}, []string{"phase", "matched"}),
		Violations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_violations_total",
			Help:      "Input events rejected by the pipeline",
		}, []string{"reason"}),
		TrackedSources: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_sources",
			Help:      "Number of currently tracked input sources",
		}),
		PluginRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_runs_total",
			Help:      "Plugin task invocations",
		}, []string{"plugin", "status"}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Active websocket input connections",
		}),
		WSMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "Websocket messages by direction and type",
		}, []string{"direction", "type"}),
	}
}

// WindowOpened implements gesture.Observer.
func (m *Metrics) WindowOpened() {
	m.WindowsOpened.Inc()
}

// Classified implements gesture.Observer.
func (m *Metrics) Classified(ev gesture.Event) {
	m.Gestures.WithLabelValues(string(ev.Kind)).Inc()
	m.gestures.Add(1)

	m.mu.Lock()
	m.last = ev.Kind
	m.mu.Unlock()
}

// Unclassified implements gesture.Observer.
func (m *Metrics) Unclassified(code gesture.Code) {
	m.UnclassifiedCodes.WithLabelValues(code.String()).Inc()
}

// Dispatched implements interaction.DispatchObserver.
func (m *Metrics) Dispatched(phase gesture.Phase, matched bool) {
	m.Dispatches.WithLabelValues(phase.String(), strconv.FormatBool(matched)).Inc()
	if matched {
		m.dispatched.Add(1)
	}
}

// Violation records a rejected input event.
func (m *Metrics) Violation(reason string) {
	m.Violations.WithLabelValues(reason).Inc()
	m.violations.Add(1)
}

// SetTracked records the number of tracked sources.
func (m *Metrics) SetTracked(n int) {
	m.TrackedSources.Set(float64(n))
}

// PluginRun records a plugin task invocation.
func (m *Metrics) PluginRun(plugin string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.PluginRuns.WithLabelValues(plugin, status).Inc()
}

// Snapshot returns current counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	last := m.last
	m.mu.RUnlock()

	return Snapshot{
		Gestures:    m.gestures.Load(),
		Dispatched:  m.dispatched.Load(),
		Violations:  m.violations.Load(),
		LastGesture: last,
	}
}

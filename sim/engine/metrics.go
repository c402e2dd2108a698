package engine

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devs-sim/devs-sim/sim"
	"github.com/devs-sim/devs-sim/sim/trace"
)

// Metrics exposes simulation progress as Prometheus metrics. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	Steps          *prometheus.CounterVec
	Transitions    *prometheus.CounterVec
	SimulatedTime  prometheus.Gauge
	RealtimeLag    prometheus.Histogram
	FixpointRounds prometheus.Counter
	InjectedEvents prometheus.Counter
	RootOutputs    prometheus.Counter
}

// NewMetrics registers the simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	steps, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devs_coupled_steps_total",
		Help: "Coupled-model steps, labeled by coupled model and step kind.",
	}, []string{"model", "kind"}), "devs_coupled_steps_total")
	if err != nil {
		return nil, err
	}
	transitions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devs_submodel_transitions_total",
		Help: "Transitions performed on submodels by coordinators, labeled by submodel and kind.",
	}, []string{"model", "kind"}), "devs_submodel_transitions_total")
	if err != nil {
		return nil, err
	}
	simTime, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "devs_simulated_time_seconds",
		Help: "Current simulated time of the root model in seconds.",
	}), "devs_simulated_time_seconds")
	if err != nil {
		return nil, err
	}
	lag, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "devs_realtime_lag_seconds",
		Help:    "Wall-clock delay between a step's due time and its execution in realtime mode.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}), "devs_realtime_lag_seconds")
	if err != nil {
		return nil, err
	}
	rounds, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "devs_fixpoint_rounds_total",
		Help: "Rounds of fixpoint variable initialisation run by the root model.",
	}), "devs_fixpoint_rounds_total")
	if err != nil {
		return nil, err
	}
	injected, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "devs_injected_events_total",
		Help: "External events delivered to the root model.",
	}), "devs_injected_events_total")
	if err != nil {
		return nil, err
	}
	outputs, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "devs_root_outputs_total",
		Help: "Events emitted at the root model boundary.",
	}), "devs_root_outputs_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		gatherer:       gatherer,
		Steps:          steps,
		Transitions:    transitions,
		SimulatedTime:  simTime,
		RealtimeLag:    lag,
		FixpointRounds: rounds,
		InjectedEvents: injected,
		RootOutputs:    outputs,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the metrics.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return nil
	}
	return m.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (m *Metrics) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if m != nil && m.gatherer != nil {
		gatherer = m.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveStep(model string, kind trace.StepKind) {
	if m == nil {
		return
	}
	m.Steps.WithLabelValues(model, string(kind)).Inc()
}

func (m *Metrics) ObserveTransition(model string, kind trace.StepKind) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(model, string(kind)).Inc()
}

func (m *Metrics) SetSimulatedTime(t sim.Time) {
	if m == nil || t.IsInfinite() {
		return
	}
	m.SimulatedTime.Set(t.Seconds())
}

func (m *Metrics) ObserveLag(d time.Duration) {
	if m == nil {
		return
	}
	m.RealtimeLag.Observe(d.Seconds())
}

func (m *Metrics) ObserveFixpointRound() {
	if m == nil {
		return
	}
	m.FixpointRounds.Inc()
}

func (m *Metrics) ObserveInjected(n int) {
	if m == nil {
		return
	}
	m.InjectedEvents.Add(float64(n))
}

func (m *Metrics) ObserveOutputs(n int) {
	if m == nil {
		return
	}
	m.RootOutputs.Add(float64(n))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return c, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devs-sim/devs-sim/sim"
	"github.com/devs-sim/devs-sim/sim/trace"
)

func TestNewMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := NewMetrics(reg)
	require.NoError(t, err)
	second, err := NewMetrics(reg)
	require.NoError(t, err)

	assert.Same(t, first.Steps, second.Steps)
	assert.Equal(t, first.SimulatedTime, second.SimulatedTime)
	assert.Equal(t, prometheus.Gatherer(reg), first.Gatherer())
}

func TestNewMetrics_IncompatibleCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "devs_simulated_time_seconds",
		Help: "something else entirely",
	}))

	_, err := NewMetrics(reg)

	assert.Error(t, err)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveStep("top", trace.StepInternal)
		m.ObserveTransition("a", trace.StepExternal)
		m.SetSimulatedTime(secs(3))
		m.ObserveLag(time.Millisecond)
		m.ObserveFixpointRound()
		m.ObserveInjected(2)
		m.ObserveOutputs(1)
	})
	assert.Nil(t, m.Gatherer())
	assert.NotNil(t, m.Handler())
}

func TestMetrics_RunnerObservations(t *testing.T) {
	// GIVEN a pipeline instrumented with a private registry
	p := newPipeline(t, 2)
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	r := newRunner(t, p.root, RunnerConfig{Options: Options{Metrics: m}})
	require.NoError(t, r.Initialise(secs(0)))
	require.NoError(t, r.Inject(secs(3), sim.NewEvent("poke", "x")))

	// WHEN the run covers two internal steps and one injection
	require.NoError(t, r.RunUntil(context.Background(), secs(4)))

	// THEN every concern is counted
	assert.Equal(t, 2.0, promtestutil.ToFloat64(m.Steps.WithLabelValues("top", "internal")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.Steps.WithLabelValues("top", "external")))
	assert.Equal(t, 2.0, promtestutil.ToFloat64(m.Transitions.WithLabelValues("gen", "internal")))
	assert.Equal(t, 3.0, promtestutil.ToFloat64(m.Transitions.WithLabelValues("sink", "external")))
	assert.Equal(t, 4.0, promtestutil.ToFloat64(m.SimulatedTime))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.InjectedEvents))
	assert.Equal(t, 2.0, promtestutil.ToFloat64(m.RootOutputs))
	assert.Zero(t, promtestutil.ToFloat64(m.FixpointRounds))
}

func TestMetrics_Handler(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	m.ObserveStep("top", trace.StepInternal)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `devs_coupled_steps_total{kind="internal",model="top"} 1`)
	assert.Contains(t, rec.Body.String(), "devs_simulated_time_seconds 0")
}

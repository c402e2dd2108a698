package models_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devs-sim/devs-sim/sim"
	"github.com/devs-sim/devs-sim/sim/arch"
	"github.com/devs-sim/devs-sim/sim/internal/testutil"
	"github.com/devs-sim/devs-sim/sim/models"
)

func secs(n int64) sim.Time { return sim.NewTime(n, sim.Second) }

func payload(t *testing.T, ev sim.Event) any {
	t.Helper()
	p, ok := sim.Payload(ev)
	require.True(t, ok)
	return p
}

// initialised builds an atomic with f and initialises its state at 0.
func initialised(t *testing.T, f arch.AtomicFactory, params arch.Params) *sim.Atomic {
	t.Helper()
	m, err := f("m", sim.Second, params, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.NoError(t, m.InitialiseState(secs(0)))
	return m
}

func deliver(t *testing.T, m *sim.Atomic, at int64, events ...sim.Event) {
	t.Helper()
	require.NoError(t, m.StoreInput(events))
	require.NoError(t, m.ExternalTransition(secs(at).Subtract(m.CurrentStateTime())))
}

func output(t *testing.T, m *sim.Atomic) []sim.Event {
	t.Helper()
	out, err := m.Output()
	require.NoError(t, err)
	return out
}

func TestConverters(t *testing.T) {
	inverted := models.Invert(sim.NewEvent("state", true))
	assert.Equal(t, false, payload(t, inverted))
	plain := sim.NewEvent("state", "on")
	assert.Equal(t, plain, models.Invert(plain))

	hot := models.CelsiusToFahrenheit(sim.NewEvent("reading", 100.0))
	assert.Equal(t, 212.0, payload(t, hot))
	count := sim.NewEvent("reading", 3)
	assert.Equal(t, count, models.CelsiusToFahrenheit(count))

	sw := models.ToSwitch(true)(sim.NewEvent("alarm", nil))
	assert.Equal(t, models.EventSwitch, sw.Type())
	assert.Equal(t, true, payload(t, sw))
}

func TestRegister_AddsEveryKind(t *testing.T) {
	reg := arch.NewRegistry()
	models.Register(reg)

	assert.Equal(t, []string{"counter", "generator", "heater", "room", "thermostat"}, reg.Kinds())
	for _, name := range []string{"invert", "celsius-to-fahrenheit", "to-switch-on", "to-switch-off"} {
		conv, err := reg.Converter(name)
		require.NoError(t, err)
		assert.NotNil(t, conv, name)
	}
	assert.Panics(t, func() { models.Register(arch.Default) }, "init already registered the kinds")
}

func TestGenerator_PeriodAndLimit(t *testing.T) {
	m := initialised(t, models.NewGenerator, arch.Params{"period": 10, "event": "beep", "limit": 2})
	testutil.AssertTimeEqual(t, "first", secs(10), m.TimeOfNextEvent())

	out := output(t, m)
	require.Len(t, out, 1)
	assert.Equal(t, sim.EventType("beep"), out[0].Type())
	assert.Equal(t, 1, payload(t, out[0]))

	require.NoError(t, m.InternalTransition())
	testutil.AssertTimeEqual(t, "second", secs(20), m.TimeOfNextEvent())
	assert.Equal(t, 2, payload(t, output(t, m)[0]))
	require.NoError(t, m.InternalTransition())

	assert.True(t, m.TimeOfNextEvent().IsInfinite(), "limit reached")
	assert.Equal(t, 2, m.Behavior().(*models.Generator).Emitted())
}

func TestGenerator_Stop(t *testing.T) {
	m := initialised(t, models.NewGenerator, arch.Params{"period": 10})

	require.NoError(t, m.ExternalTransition(sim.NewDuration(4, sim.Second)))
	testutil.AssertTimeEqual(t, "schedule kept", secs(10), m.TimeOfNextEvent())

	deliver(t, m, 6, sim.NewEvent(models.EventStop, nil))
	assert.True(t, m.TimeOfNextEvent().IsInfinite())
}

func TestGenerator_JitterStaysInBounds(t *testing.T) {
	m := initialised(t, models.NewGenerator, arch.Params{"period": 10, "jitter": 0.5})
	for i := 0; i < 20; i++ {
		ta := m.TimeAdvance().Seconds()
		assert.GreaterOrEqual(t, ta, 5.0)
		assert.LessOrEqual(t, ta, 15.0)
		require.NoError(t, m.InternalTransition())
	}
}

func TestGenerator_InvalidParams(t *testing.T) {
	for _, p := range []arch.Params{
		{"period": 0},
		{"period": "fast"},
		{"jitter": 1.0},
		{"event": 7},
		{"limit": 1.5},
	} {
		_, err := models.NewGenerator("g", sim.Second, p, nil)
		assert.Error(t, err, "%v", p)
	}
}

func TestCounter_EmitsEveryN(t *testing.T) {
	m := initialised(t, models.NewCounter, arch.Params{"events": []any{"tick", "tock"}, "emit_every": 2})
	assert.Equal(t, []sim.EventType{"tick", "tock"}, m.ImportedEventTypes())
	assert.True(t, m.IsHIOA())

	deliver(t, m, 1, sim.NewEvent("tick", nil))
	assert.True(t, m.TimeOfNextEvent().IsInfinite())

	deliver(t, m, 2, sim.NewEvent("tock", nil))
	testutil.AssertTimeEqual(t, "due now", secs(2), m.TimeOfNextEvent())
	out := output(t, m)
	require.Len(t, out, 1)
	assert.Equal(t, 2, payload(t, out[0]))
	require.NoError(t, m.InternalTransition())
	assert.True(t, m.TimeOfNextEvent().IsInfinite())

	count, ok := m.Variable("count")
	require.True(t, ok)
	assert.Equal(t, 2, count.Get())
	testutil.AssertTimeEqual(t, "written", secs(2), count.LastWrite())
	assert.Equal(t, 2, m.Behavior().(*models.Counter).Count())
}

func TestCounter_PlainDEVS(t *testing.T) {
	m := initialised(t, models.NewCounter, arch.Params{"export_count": false})

	assert.False(t, m.IsHIOA())
	deliver(t, m, 1, sim.NewEvent("tick", nil), sim.NewEvent("tick", nil))
	assert.Empty(t, output(t, m))
	assert.Equal(t, 2, m.Behavior().(*models.Counter).Count())

	_, err := models.NewCounter("c", sim.Second, arch.Params{"events": "tick"}, nil)
	assert.ErrorContains(t, err, "expected a list")
}

func TestHeater_SwitchAndToggle(t *testing.T) {
	m := initialised(t, models.NewHeater, arch.Params{"power": 1500})
	require.NoError(t, m.InitialiseVariables())
	power, ok := m.Variable("power")
	require.True(t, ok)
	assert.Equal(t, 0.0, power.Get())

	deliver(t, m, 5, sim.NewEvent(models.EventSwitch, true))
	assert.Equal(t, 1500.0, power.Get())
	testutil.AssertTimeEqual(t, "report", secs(5), m.TimeOfNextEvent())
	out := output(t, m)
	require.Len(t, out, 1)
	assert.Equal(t, models.EventHeaterState, out[0].Type())
	assert.Equal(t, true, payload(t, out[0]))
	require.NoError(t, m.InternalTransition())
	assert.True(t, m.TimeOfNextEvent().IsInfinite())

	// no boolean payload toggles
	deliver(t, m, 8, sim.NewEvent(models.EventSwitch, nil))
	assert.False(t, m.Behavior().(*models.Heater).On())
	assert.Equal(t, 0.0, power.Get())
}

func TestHeater_InitiallyOn(t *testing.T) {
	m := initialised(t, models.NewHeater, arch.Params{"power": 800, "initially_on": true})
	require.NoError(t, m.InitialiseVariables())
	power, _ := m.Variable("power")
	assert.Equal(t, 800.0, power.Get())
}

func TestThermostat_Hysteresis(t *testing.T) {
	m := initialised(t, models.NewThermostat, arch.Params{"low": 19, "high": 21})
	reading := func(c float64) sim.Event { return sim.NewEvent(models.EventReading, c) }

	deliver(t, m, 1, reading(18))
	out := output(t, m)
	require.Len(t, out, 1)
	assert.Equal(t, true, payload(t, out[0]))
	require.NoError(t, m.InternalTransition())

	deliver(t, m, 2, reading(17.5))
	assert.True(t, m.TimeOfNextEvent().IsInfinite(), "already on")
	deliver(t, m, 3, reading(20))
	assert.True(t, m.TimeOfNextEvent().IsInfinite(), "inside the band")

	deliver(t, m, 4, reading(21.5))
	assert.Equal(t, false, payload(t, output(t, m)[0]))

	require.NoError(t, m.StoreInput([]sim.Event{sim.NewEvent(models.EventReading, "warm")}))
	assert.Error(t, m.ExternalTransition(sim.ZeroDuration(sim.Second)))
}

func TestThermostat_InvalidSetpoints(t *testing.T) {
	_, err := models.NewThermostat("th", sim.Second, arch.Params{"low": 22, "high": 20}, nil)
	assert.ErrorContains(t, err, "must be below")
}

func TestRoom_InvalidParams(t *testing.T) {
	for _, p := range []arch.Params{{"loss": 0}, {"sample": -1}, {"outside": "cold"}} {
		_, err := models.NewRoom("r", sim.Second, p, nil)
		assert.Error(t, err, "%v", p)
	}
}

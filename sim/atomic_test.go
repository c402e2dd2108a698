package sim_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devs-sim/devs-sim/sim"
	"github.com/devs-sim/devs-sim/sim/internal/testutil"
)

func TestNewAtomic_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  testutil.ProbeConfig
	}{
		{"empty id", testutil.ProbeConfig{Unit: sim.Second}},
		{"invalid unit", testutil.ProbeConfig{ID: "a", Unit: sim.TimeUnit(99)}},
		{"duplicate variable", testutil.ProbeConfig{ID: "a", Unit: sim.Second, Variables: []sim.VariableSpec{
			constVar("x", "float", 1.0), constVar("x", "float", 2.0),
		}}},
		{"imported variable with initialiser", testutil.ProbeConfig{ID: "a", Unit: sim.Second, Variables: []sim.VariableSpec{
			{Name: "x", Type: "float", Visibility: sim.Imported,
				Initialise: func(sim.VariableReader, sim.Time) (any, error) { return 0.0, nil }},
		}}},
		{"exported variable without initialiser", testutil.ProbeConfig{ID: "a", Unit: sim.Second, Variables: []sim.VariableSpec{
			{Name: "x", Type: "float", Visibility: sim.Exported},
		}}},
		{"undeclared dependency", testutil.ProbeConfig{ID: "a", Unit: sim.Second, Variables: []sim.VariableSpec{
			plusOne("x", "ghost"),
		}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := testutil.NewProbe(tc.cfg)
			assert.ErrorIs(t, err, sim.ErrConstruction)
		})
	}

	_, err := sim.NewAtomic(sim.AtomicConfig{ID: "a", TimeUnit: sim.Second}, nil)
	assert.ErrorIs(t, err, sim.ErrConstruction)
}

func TestAtomic_Schedule(t *testing.T) {
	p := probe("p", 4, emits("tick"), imports("poke"))
	require.NoError(t, p.M.InitialiseState(testutil.Seconds(10)))
	testutil.AssertTimeEqual(t, "tNext", testutil.Seconds(14), p.M.TimeOfNextEvent())

	// external at 11 keeps the schedule
	require.NoError(t, p.M.StoreInput([]sim.Event{sim.NewEvent("poke", nil)}))
	assert.True(t, p.M.HasPendingInput())
	require.NoError(t, p.M.ExternalTransition(sim.NewDuration(1, sim.Second)))
	testutil.AssertTimeEqual(t, "tCurrent", testutil.Seconds(11), p.M.CurrentStateTime())
	testutil.AssertTimeEqual(t, "tNext", testutil.Seconds(14), p.M.TimeOfNextEvent())
	assert.False(t, p.M.HasPendingInput())
	require.Len(t, p.Received, 1)

	out, err := p.M.Output()
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.NoError(t, p.M.InternalTransition())
	testutil.AssertTimeEqual(t, "tNext", testutil.Seconds(18), p.M.TimeOfNextEvent())

	r := p.Report()
	assert.Equal(t, 1, r.Internal)
	assert.Equal(t, 1, r.External)
	assert.Equal(t, 1, r.Inputs)
	assert.Equal(t, 1, r.Outputs)
}

func TestAtomic_RejectsUndeclaredEvents(t *testing.T) {
	p := probe("p", 1, imports("in"))
	require.NoError(t, p.M.InitialiseState(sim.ZeroTime(sim.Second)))

	err := p.M.StoreInput([]sim.Event{sim.NewEvent("other", nil)})
	var le *sim.LookupError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "other", le.Name)
}

func TestAtomic_ExternalOutsideWindow(t *testing.T) {
	p := probe("p", 2)
	require.NoError(t, p.M.InitialiseState(sim.ZeroTime(sim.Second)))

	assert.Error(t, p.M.ExternalTransition(sim.NewDuration(3, sim.Second)), "past the next event")
	assert.Error(t, p.M.ExternalTransition(sim.NewDuration(-1, sim.Second)), "negative elapsed")
	assert.Error(t, p.M.ConfluentTransition(sim.NewDuration(1, sim.Second)), "confluent off the next event")
}

func TestAtomic_PassiveHasNoInternalEvent(t *testing.T) {
	p := probe("p", 0)
	require.NoError(t, p.M.InitialiseState(sim.ZeroTime(sim.Second)))

	assert.True(t, p.M.TimeOfNextEvent().IsInfinite())
	assert.True(t, p.M.TimeAdvance().IsInfinite())
	assert.Error(t, p.M.InternalTransition())
}

func TestAtomic_ConfluentDefaultsToInternalThenExternal(t *testing.T) {
	log := &testutil.Log{}
	p := testutil.MustProbe(testutil.ProbeConfig{ID: "p", Unit: sim.Second, Period: 2, Imports: []sim.EventType{"in"}, Log: log})
	require.NoError(t, p.M.InitialiseState(sim.ZeroTime(sim.Second)))
	require.NoError(t, p.M.StoreInput([]sim.Event{sim.NewEvent("in", 1)}))

	require.NoError(t, p.M.ConfluentTransition(sim.NewDuration(2, sim.Second)))

	assert.Equal(t, "p:int@2s p:ext@2s", log.String())
	assert.Equal(t, 1, p.Report().Confluent)
	assert.True(t, p.Elapsed[0].IsZero(), "the external part sees zero elapsed time")
	testutil.AssertTimeEqual(t, "tNext", testutil.Seconds(4), p.M.TimeOfNextEvent())
}

func TestAtomic_DedicatedConfluent(t *testing.T) {
	log := &testutil.Log{}
	p := testutil.MustProbe(testutil.ProbeConfig{ID: "p", Unit: sim.Second, Period: 2, Confluent: true, Log: log})
	require.NoError(t, p.M.InitialiseState(sim.ZeroTime(sim.Second)))

	require.NoError(t, p.M.ConfluentTransition(sim.NewDuration(2, sim.Second)))

	assert.Equal(t, "p:conf@2s", log.String())
}

func TestAtomic_EndedRejectsWork(t *testing.T) {
	p := probe("p", 1)
	require.NoError(t, p.M.InitialiseState(sim.ZeroTime(sim.Second)))
	require.NoError(t, p.M.EndSimulation(testutil.Seconds(5)))

	assert.ErrorIs(t, p.M.InternalTransition(), sim.ErrState)
	_, err := p.M.Output()
	assert.ErrorIs(t, err, sim.ErrState)
	assert.ErrorIs(t, p.M.InitialiseState(sim.ZeroTime(sim.Second)), sim.ErrState)
	assert.Contains(t, p.Report().String(), "end=5s")
}

func TestAtomic_ImportVariableOnce(t *testing.T) {
	p := probe("p", 0, vars(importedVar("x", "float")))
	require.NoError(t, p.M.ImportVariable("x", "float", sim.NewValue("float")))

	assert.ErrorIs(t, p.M.ImportVariable("x", "float", sim.NewValue("float")), sim.ErrConstruction)
	assert.ErrorIs(t, p.M.ImportVariable("x", "int", sim.NewValue("int")), sim.ErrLookup)
	assert.ErrorIs(t, p.M.ImportVariable("y", "float", sim.NewValue("float")), sim.ErrLookup)
	_, err := p.M.ExportedVariable("x", "float")
	assert.ErrorIs(t, err, sim.ErrLookup, "an imported variable is not exported")
}

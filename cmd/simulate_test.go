package cmd

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devs-sim/devs-sim/sim"
)

func houseOptions(out *bytes.Buffer) runOptions {
	return runOptions{
		ArchPath: filepath.Join("..", "examples", "house.yaml"),
		Seed:     7,
		Start:    0,
		End:      7200,
		Policy:   "confluent",
		Trace:    "steps",
		Debug:    "none",
		Out:      out,
	}
}

func countByType(res *runResult) map[sim.EventType]int {
	counts := make(map[sim.EventType]int)
	for _, te := range res.Outputs {
		counts[te.Event.Type()]++
	}
	return counts
}

func TestSimulate_HouseExample(t *testing.T) {
	// GIVEN the house example run for two simulated hours
	var out bytes.Buffer
	opts := houseOptions(&out)
	opts.Summarize = true

	// WHEN it is simulated
	res, err := simulate(context.Background(), opts)
	require.NoError(t, err)

	// THEN the room reports at least every 60 s through the Fahrenheit reexport
	counts := countByType(res)
	assert.GreaterOrEqual(t, counts["reading_f"], 120)
	for _, te := range res.Outputs {
		if te.Event.Type() != "reading_f" {
			continue
		}
		p, ok := sim.Payload(te.Event)
		require.True(t, ok)
		f, ok := p.(float64)
		require.True(t, ok, "reading_f payload should be a float, got %T", p)
		assert.Greater(t, f, 32.0, "converted reading should be in Fahrenheit")
	}

	// AND the fixpoint initialisation and steps were traced
	require.NotNil(t, res.Trace)
	assert.NotEmpty(t, res.Trace.Steps)
	assert.NotEmpty(t, res.Trace.Fixpoint)

	// AND the report and summary were printed
	assert.Equal(t, "house", res.Report.ModelID())
	assert.Contains(t, out.String(), "=== Simulation Report ===")
	assert.Contains(t, out.String(), "=== Trace Summary ===")
}

func TestSimulate_SameSeedSameOutputs(t *testing.T) {
	// GIVEN two runs with identical options
	var out1, out2 bytes.Buffer
	res1, err := simulate(context.Background(), houseOptions(&out1))
	require.NoError(t, err)
	res2, err := simulate(context.Background(), houseOptions(&out2))
	require.NoError(t, err)

	// THEN the root outputs match event for event
	require.Equal(t, len(res1.Outputs), len(res2.Outputs))
	for i := range res1.Outputs {
		assert.True(t, res1.Outputs[i].Time.Equal(res2.Outputs[i].Time))
		assert.Equal(t, fmt.Sprint(res1.Outputs[i].Event), fmt.Sprint(res2.Outputs[i].Event))
	}
}

func TestSimulate_StopInjectionHaltsClock(t *testing.T) {
	// GIVEN a stop injected at t=0 and a logger counting ticks
	var out bytes.Buffer
	opts := houseOptions(&out)
	opts.Injections = []InjectionSpec{{Time: 0, Type: "stop"}}

	// WHEN simulated
	res, err := simulate(context.Background(), opts)
	require.NoError(t, err)

	// THEN the room still samples while the clock never ticks
	assert.GreaterOrEqual(t, countByType(res)["reading_f"], 120)
	house, ok := res.Report.(*sim.CoupledReport)
	require.True(t, ok)
	clock, ok := house.Submodels[0].(*sim.AtomicReport)
	require.True(t, ok)
	assert.Equal(t, "clock", clock.ID)
	assert.Equal(t, 0, clock.Internal)
	assert.Equal(t, 1, clock.External)
}

func TestSimulate_RejectsInvalidOptions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*runOptions)
	}{
		{"end before start", func(o *runOptions) { o.Start, o.End = 10, 5 }},
		{"unknown policy", func(o *runOptions) { o.Policy = "newest-first" }},
		{"unknown trace level", func(o *runOptions) { o.Trace = "verbose" }},
		{"unknown debug level", func(o *runOptions) { o.Debug = "loud" }},
		{"missing architecture", func(o *runOptions) { o.ArchPath = "absent.yaml" }},
		{"injection of a non-imported type", func(o *runOptions) {
			o.Injections = []InjectionSpec{{Time: 1, Type: "reading"}}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			opts := houseOptions(&out)
			tc.mutate(&opts)
			_, err := simulate(context.Background(), opts)
			assert.Error(t, err)
		})
	}
}

func TestParseDebugLevel(t *testing.T) {
	l, err := parseDebugLevel("FULL")
	require.NoError(t, err)
	assert.Equal(t, sim.DebugFull, l)

	l, err = parseDebugLevel("")
	require.NoError(t, err)
	assert.Equal(t, sim.DebugNone, l)

	_, err = parseDebugLevel("verbose")
	assert.Error(t, err)
}

func TestPrintTree(t *testing.T) {
	// GIVEN the built house architecture
	root, err := buildArchitecture(filepath.Join("..", "examples", "house.yaml"), 1)
	require.NoError(t, err)

	// WHEN its tree is printed
	var out bytes.Buffer
	printTree(&out, root, 0)

	// THEN nesting is shown by indentation
	want := "house (coupled, unit=s)\n" +
		"  clock (atomic, unit=s)\n" +
		"  heating (coupled, unit=s)\n" +
		"    heater (atomic, unit=s)\n" +
		"    room (atomic, unit=s)\n" +
		"    thermostat (atomic, unit=s)\n" +
		"  logger (atomic, unit=s)\n"
	assert.Equal(t, want, out.String())
}

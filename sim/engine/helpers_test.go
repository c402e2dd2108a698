package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/devs-sim/devs-sim/sim"
	"github.com/devs-sim/devs-sim/sim/internal/testutil"
)

func secs(n int64) sim.Time { return sim.NewTime(n, sim.Second) }

// pipeline is a root "top" with a generator firing every genPeriod seconds
// and a passive sink. gen.tick feeds sink.tick and is reexported as "out";
// the root imports "poke" into the sink.
type pipeline struct {
	root *sim.CoupledModel
	gen  *testutil.Probe
	sink *testutil.Probe
	log  *testutil.Log
}

func newPipeline(t *testing.T, genPeriod int64, genOpts ...func(*testutil.ProbeConfig)) *pipeline {
	t.Helper()
	log := &testutil.Log{}
	genCfg := testutil.ProbeConfig{ID: "gen", Unit: sim.Second, Period: genPeriod, Emit: "tick", Log: log}
	for _, o := range genOpts {
		o(&genCfg)
	}
	gen := testutil.MustProbe(genCfg)
	sink := testutil.MustProbe(testutil.ProbeConfig{ID: "sink", Unit: sim.Second, Imports: []sim.EventType{"tick"}, Log: log})

	imported := map[sim.EventType][]sim.EventSink{"poke": {{ModelID: "sink", Type: "tick"}}}
	for _, et := range genCfg.Imports {
		imported[et] = append(imported[et], sim.EventSink{ModelID: "gen", Type: et})
	}
	root, err := sim.NewCoupledModel(sim.CoupledConfig{
		ID:               "top",
		TimeUnit:         sim.Second,
		Submodels:        []sim.Model{gen.M, sink.M},
		ImportedEvents:   imported,
		ReexportedEvents: map[sim.EventType]sim.ReexportedEvent{"out": {Source: sim.EventSource{ModelID: "gen", Type: "tick"}}},
		EventConnections: map[sim.EventSource][]sim.EventSink{
			{ModelID: "gen", Type: "tick"}: {{ModelID: "sink", Type: "tick"}},
		},
		TieBreaker: sim.FirstTieBreaker{},
	})
	require.NoError(t, err)
	return &pipeline{root: root, gen: gen, sink: sink, log: log}
}

func pokes(c *testutil.ProbeConfig) { c.Imports = append(c.Imports, "poke") }

func confluentGen(c *testutil.ProbeConfig) { c.Confluent = true }

func newRunner(t *testing.T, root sim.Model, cfg RunnerConfig) *Runner {
	t.Helper()
	r, err := NewRunner(root, cfg)
	require.NoError(t, err)
	return r
}

func payloads(t *testing.T, events []sim.Event) []any {
	t.Helper()
	out := make([]any, len(events))
	for i, ev := range events {
		p, ok := sim.Payload(ev)
		require.True(t, ok)
		out[i] = p
	}
	return out
}

// fakeClock jumps forward by the requested delay whenever After is called.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

package engine

import (
	"github.com/devs-sim/devs-sim/sim"
	"github.com/devs-sim/devs-sim/sim/trace"
)

// Options configures the coordinators of a model tree.
type Options struct {
	Policy     ConfluentPolicy // nil selects ConfluentTransitionPolicy
	DebugLevel sim.DebugLevel
	Metrics    *Metrics               // nil disables metrics
	Trace      *trace.SimulationTrace // nil disables step tracing
}

func (o Options) withDefaults() Options {
	if o.Policy == nil {
		o.Policy = ConfluentTransitionPolicy{}
	}
	return o
}

// Attach walks the tree under root and attaches one Coordinator per coupled
// model, in depth-first pre-order. An atomic root needs no coordinator.
func Attach(root sim.Model, opts Options) []*Coordinator {
	cm, ok := root.(*sim.CoupledModel)
	if !ok {
		return nil
	}
	coords := []*Coordinator{NewCoordinator(cm, opts)}
	for _, m := range cm.Descendants() {
		if sub, ok := m.(*sim.CoupledModel); ok {
			coords = append(coords, NewCoordinator(sub, opts))
		}
	}
	return coords
}

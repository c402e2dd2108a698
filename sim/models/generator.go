package models

import (
	"fmt"
	"math/rand"

	"github.com/devs-sim/devs-sim/sim"
	"github.com/devs-sim/devs-sim/sim/arch"
)

// EventStop halts a generator.
const EventStop sim.EventType = "stop"

// Generator emits one event every period, carrying its sequence number.
// A positive jitter spreads each period uniformly over
// [period*(1-jitter), period*(1+jitter)].
type Generator struct {
	event  sim.EventType
	period float64
	jitter float64
	limit  int
	rng    *rand.Rand
	unit   sim.TimeUnit

	emitted int
	stopped bool
	next    sim.Duration
}

// NewGenerator builds a generator. Params: period (default 1), event
// (default "tick"), limit (0 = unlimited), jitter (default 0).
func NewGenerator(id string, unit sim.TimeUnit, p arch.Params, rng *rand.Rand) (*sim.Atomic, error) {
	period, err := p.Float("period", 1)
	if err != nil {
		return nil, err
	}
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %g", period)
	}
	event, err := p.String("event", "tick")
	if err != nil {
		return nil, err
	}
	limit, err := p.Int("limit", 0)
	if err != nil {
		return nil, err
	}
	jitter, err := p.Float("jitter", 0)
	if err != nil {
		return nil, err
	}
	if jitter < 0 || jitter >= 1 {
		return nil, fmt.Errorf("jitter must be in [0, 1), got %g", jitter)
	}
	g := &Generator{event: sim.EventType(event), period: period, jitter: jitter, limit: limit, rng: rng, unit: unit}
	return sim.NewAtomic(sim.AtomicConfig{
		ID:             id,
		TimeUnit:       unit,
		ImportedEvents: []sim.EventType{EventStop},
		ExportedEvents: []sim.EventType{g.event},
	}, g)
}

func (g *Generator) InitialiseState(_ *sim.Atomic, _ sim.Time) error {
	g.emitted = 0
	g.stopped = false
	g.next = g.draw()
	return nil
}

func (g *Generator) draw() sim.Duration {
	p := g.period
	if g.jitter > 0 && g.rng != nil {
		p *= 1 + g.jitter*(2*g.rng.Float64()-1)
	}
	return sim.DurationFromFloat(p, g.unit)
}

func (g *Generator) done() bool {
	return g.stopped || (g.limit > 0 && g.emitted >= g.limit)
}

func (g *Generator) TimeAdvance() sim.Duration {
	if g.done() {
		return sim.InfiniteDuration(g.unit)
	}
	return g.next
}

func (g *Generator) Output() ([]sim.Event, error) {
	return []sim.Event{sim.NewEvent(g.event, g.emitted+1)}, nil
}

func (g *Generator) InternalTransition() error {
	g.emitted++
	g.next = g.draw()
	return nil
}

func (g *Generator) ExternalTransition(elapsed sim.Duration, inputs []sim.Event) error {
	for _, ev := range inputs {
		if ev.Type() == EventStop {
			g.stopped = true
		}
	}
	if !g.done() {
		g.next = g.next.Subtract(elapsed)
	}
	return nil
}

// Emitted returns the number of events produced so far.
func (g *Generator) Emitted() int { return g.emitted }

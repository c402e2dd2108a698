package models

import (
	"fmt"
	"math/rand"

	"github.com/devs-sim/devs-sim/sim"
	"github.com/devs-sim/devs-sim/sim/arch"
)

// EventCount is emitted by a counter every emit_every inputs.
const EventCount sim.EventType = "count"

// Counter counts the events it receives and, unless disabled, exports the
// total as the variable "count".
type Counter struct {
	every int
	unit  sim.TimeUnit
	m     *sim.Atomic

	count int
	due   bool
}

// NewCounter builds a counter. Params: events (list of imported event types,
// default ["tick"]), emit_every (0 = never emit), export_count (default
// true; false makes the counter a plain DEVS model).
func NewCounter(id string, unit sim.TimeUnit, p arch.Params, _ *rand.Rand) (*sim.Atomic, error) {
	every, err := p.Int("emit_every", 0)
	if err != nil {
		return nil, err
	}
	events, err := eventList(p, "events", []sim.EventType{"tick"})
	if err != nil {
		return nil, err
	}
	export, err := p.Bool("export_count", true)
	if err != nil {
		return nil, err
	}
	var vars []sim.VariableSpec
	if export {
		vars = append(vars, sim.VariableSpec{
			Name:       "count",
			Type:       TypeInt,
			Visibility: sim.Exported,
			Initialise: func(sim.VariableReader, sim.Time) (any, error) { return 0, nil },
		})
	}
	c := &Counter{every: every, unit: unit}
	return sim.NewAtomic(sim.AtomicConfig{
		ID:             id,
		TimeUnit:       unit,
		ImportedEvents: events,
		ExportedEvents: []sim.EventType{EventCount},
		Variables:      vars,
	}, c)
}

func (c *Counter) InitialiseState(m *sim.Atomic, _ sim.Time) error {
	c.m = m
	c.count = 0
	c.due = false
	return nil
}

func (c *Counter) TimeAdvance() sim.Duration {
	if c.due {
		return sim.ZeroDuration(c.unit)
	}
	return sim.InfiniteDuration(c.unit)
}

func (c *Counter) Output() ([]sim.Event, error) {
	if !c.due {
		return nil, nil
	}
	return []sim.Event{sim.NewEvent(EventCount, c.count)}, nil
}

func (c *Counter) InternalTransition() error {
	c.due = false
	return nil
}

func (c *Counter) ExternalTransition(_ sim.Duration, inputs []sim.Event) error {
	before := c.count
	c.count += len(inputs)
	if v, ok := c.m.Variable("count"); ok {
		v.Set(c.count, c.m.CurrentStateTime())
	}
	if c.every > 0 && c.count/c.every > before/c.every {
		c.due = true
	}
	return nil
}

// Count returns the number of events received.
func (c *Counter) Count() int { return c.count }

func eventList(p arch.Params, name string, def []sim.EventType) ([]sim.EventType, error) {
	v, ok := p[name]
	if !ok {
		return def, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("param %q: expected a list, got %T", name, v)
	}
	out := make([]sim.EventType, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, fmt.Errorf("param %q: expected strings, got %T", name, it)
		}
		out = append(out, sim.EventType(s))
	}
	return out, nil
}

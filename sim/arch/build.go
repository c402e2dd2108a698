package arch

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/devs-sim/devs-sim/sim"
)

// Build validates a and instantiates its tree bottom-up. Each coupled model
// is constructed, and therefore wired, exactly once. The returned root is
// not yet initialised.
func Build(a *Architecture, reg *Registry, rng *sim.PartitionedRNG) (sim.Model, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("invalid architecture: %w", err)
	}
	if reg == nil {
		reg = Default
	}
	if rng == nil {
		rng = sim.NewPartitionedRNG(sim.NewSimulationKey(0))
	}
	types := sim.NewTypeRegistry()
	for _, st := range a.Types {
		if err := types.Declare(sim.TypeTag(st.Sub), sim.TypeTag(st.Super)); err != nil {
			return nil, fmt.Errorf("types: %w", err)
		}
	}
	b := &builder{arch: a, reg: reg, rng: rng, types: types}
	root, err := b.build(a.Root)
	if err != nil {
		return nil, err
	}
	logrus.WithField("model", a.Root).Debugf("built architecture: %d atomic, %d coupled", len(a.Atomics), len(a.Coupled))
	return root, nil
}

type builder struct {
	arch  *Architecture
	reg   *Registry
	rng   *sim.PartitionedRNG
	types *sim.TypeRegistry
}

func (b *builder) build(id string) (sim.Model, error) {
	if d, ok := b.arch.Atomics[id]; ok {
		return b.buildAtomic(id, d)
	}
	return b.buildCoupled(id, b.arch.Coupled[id])
}

func (b *builder) buildAtomic(id string, d AtomicDescriptor) (sim.Model, error) {
	unit, err := parseUnit(d.TimeUnit, b.arch.TimeUnit)
	if err != nil {
		return nil, fmt.Errorf("atomic %q: %w", id, err)
	}
	factory, err := b.reg.Kind(d.Kind)
	if err != nil {
		return nil, fmt.Errorf("atomic %q: %w", id, err)
	}
	m, err := factory(id, unit, Params(d.Params), b.rng.ForSubsystem(sim.SubsystemModel(id)))
	if err != nil {
		return nil, fmt.Errorf("atomic %q (%s): %w", id, d.Kind, err)
	}
	return m, nil
}

func (b *builder) buildCoupled(id string, d CoupledDescriptor) (sim.Model, error) {
	unit, err := parseUnit(d.TimeUnit, b.arch.TimeUnit)
	if err != nil {
		return nil, fmt.Errorf("coupled %q: %w", id, err)
	}
	subs := make([]sim.Model, 0, len(d.Submodels))
	for _, sid := range d.Submodels {
		m, err := b.build(sid)
		if err != nil {
			return nil, err
		}
		subs = append(subs, m)
	}

	cfg := sim.CoupledConfig{
		ID:                  id,
		TimeUnit:            unit,
		Submodels:           subs,
		ImportedEvents:      make(map[sim.EventType][]sim.EventSink),
		ReexportedEvents:    make(map[sim.EventType]sim.ReexportedEvent),
		EventConnections:    make(map[sim.EventSource][]sim.EventSink),
		ImportedVariables:   make(map[sim.StaticVariableDescriptor][]sim.VariableSink),
		ReexportedVariables: make(map[sim.StaticVariableDescriptor]sim.VariableSource),
		VariableBindings:    make(map[sim.VariableSource][]sim.VariableSink),
		Types:               b.types,
		TieBreaker:          b.tieBreaker(id, d),
	}
	for _, ie := range d.ImportedEvents {
		sinks, err := b.eventSinks(ie.Sinks)
		if err != nil {
			return nil, fmt.Errorf("coupled %q: imported event %q: %w", id, ie.Type, err)
		}
		cfg.ImportedEvents[sim.EventType(ie.Type)] = append(cfg.ImportedEvents[sim.EventType(ie.Type)], sinks...)
	}
	for _, re := range d.ReexportedEvents {
		conv, err := b.reg.Converter(re.Converter)
		if err != nil {
			return nil, fmt.Errorf("coupled %q: reexported event %q: %w", id, re.Type, err)
		}
		t := sim.EventType(re.Type)
		if _, dup := cfg.ReexportedEvents[t]; dup {
			return nil, fmt.Errorf("coupled %q: reexported event %q declared twice", id, re.Type)
		}
		cfg.ReexportedEvents[t] = sim.ReexportedEvent{
			Source:    sim.EventSource{ModelID: re.Source.Model, Type: sim.EventType(re.Source.Type)},
			Converter: conv,
		}
	}
	for _, c := range d.Connections {
		src := sim.EventSource{ModelID: c.Source.Model, Type: sim.EventType(c.Source.Type)}
		sinks, err := b.eventSinks(c.Sinks)
		if err != nil {
			return nil, fmt.Errorf("coupled %q: connection from %s: %w", id, src, err)
		}
		cfg.EventConnections[src] = append(cfg.EventConnections[src], sinks...)
	}
	for _, iv := range d.ImportedVariables {
		desc := sim.StaticVariableDescriptor{Name: iv.Name, Type: sim.TypeTag(iv.Type), Visibility: sim.Imported}
		cfg.ImportedVariables[desc] = append(cfg.ImportedVariables[desc], variableSinks(iv.Sinks)...)
	}
	for _, rv := range d.ReexportedVariables {
		desc := sim.StaticVariableDescriptor{Name: rv.Name, Type: sim.TypeTag(rv.Type), Visibility: sim.Exported}
		cfg.ReexportedVariables[desc] = variableSource(rv.Source)
	}
	for _, bd := range d.Bindings {
		src := variableSource(bd.Source)
		cfg.VariableBindings[src] = append(cfg.VariableBindings[src], variableSinks(bd.Sinks)...)
	}

	cm, err := sim.NewCoupledModel(cfg)
	if err != nil {
		return nil, err
	}
	return cm, nil
}

func (b *builder) tieBreaker(id string, d CoupledDescriptor) sim.TieBreaker {
	switch d.TieBreak {
	case "first":
		return sim.FirstTieBreaker{}
	case "priority":
		return sim.PriorityTieBreaker{Priority: d.Priority}
	default:
		return sim.NewRandomTieBreaker(b.rng.ForSubsystem(sim.SubsystemTieBreak(id)))
	}
}

func (b *builder) eventSinks(refs []EventRef) ([]sim.EventSink, error) {
	out := make([]sim.EventSink, 0, len(refs))
	for _, ref := range refs {
		conv, err := b.reg.Converter(ref.Converter)
		if err != nil {
			return nil, err
		}
		out = append(out, sim.EventSink{ModelID: ref.Model, Type: sim.EventType(ref.Type), Converter: conv})
	}
	return out, nil
}

func variableSource(ref VariableRef) sim.VariableSource {
	return sim.VariableSource{ModelID: ref.Model, Name: ref.Name, Type: sim.TypeTag(ref.Type)}
}

func variableSinks(refs []VariableRef) []sim.VariableSink {
	out := make([]sim.VariableSink, 0, len(refs))
	for _, ref := range refs {
		out = append(out, sim.VariableSink{ModelID: ref.Model, Name: ref.Name, Type: sim.TypeTag(ref.Type)})
	}
	return out
}

// parseUnit parses s, falling back to def when s is empty.
func parseUnit(s, def string) (sim.TimeUnit, error) {
	if s == "" {
		s = def
	}
	if s == "" {
		return sim.Second, nil
	}
	return sim.ParseTimeUnit(s)
}

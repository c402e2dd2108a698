package sim

import "fmt"

// SinksFor returns the direct sinks of an imported event type. Querying an
// undeclared type is a LookupError, not an empty result.
func (c *CoupledModel) SinksFor(t EventType) ([]EventSink, error) {
	sinks, ok := c.importedEvents[t]
	if !ok {
		return nil, &LookupError{ModelID: c.id, Kind: "imported event", Name: string(t)}
	}
	return append([]EventSink(nil), sinks...), nil
}

// ReexportFor returns the descriptor of an exported event type.
func (c *CoupledModel) ReexportFor(t EventType) (ReexportedEvent, error) {
	re, ok := c.reexportedEvents[t]
	if !ok {
		return ReexportedEvent{}, &LookupError{ModelID: c.id, Kind: "exported event", Name: string(t)}
	}
	return re, nil
}

// ConnectionsFrom returns the internal sinks of a submodel output. The source
// must be declared by the submodel; an unconnected output has no sinks.
func (c *CoupledModel) ConnectionsFrom(src EventSource) ([]EventSink, error) {
	sub, ok := c.Submodel(src.ModelID)
	if !ok || !declaresEvent(sub.ExportedEventTypes(), src.Type) {
		return nil, &LookupError{ModelID: c.id, Kind: "submodel output", Name: src.String()}
	}
	return append([]EventSink(nil), c.connections[src]...), nil
}

// ResolveAtomicSource follows the reexport chain of t down to the atomic
// model that emits it. The returned converter applies every hop from the
// leaf upwards.
func (c *CoupledModel) ResolveAtomicSource(t EventType) (AtomicSource, error) {
	re, err := c.ReexportFor(t)
	if err != nil {
		return AtomicSource{}, err
	}
	sub := c.submodels[c.indexByID[re.Source.ModelID]]
	if sub.IsAtomic() {
		return AtomicSource{Model: sub, Type: re.Source.Type, Converter: re.Converter}, nil
	}
	cm, err := asCoupled(sub)
	if err != nil {
		return AtomicSource{}, err
	}
	inner, err := cm.ResolveAtomicSource(re.Source.Type)
	if err != nil {
		return AtomicSource{}, err
	}
	inner.Converter = ComposeConverters(inner.Converter, re.Converter)
	return inner, nil
}

// ResolveAtomicSinks expands the sinks of an imported event type through
// every nested coupled model down to atomic consumers. Each routing path is
// one entry, so a leaf reached along two paths appears twice with the
// converter of each path, matching what StoreInput delivers.
func (c *CoupledModel) ResolveAtomicSinks(t EventType) ([]AtomicSink, error) {
	set := newAtomicSinkSet()
	if err := c.expandImported(t, nil, "", set); err != nil {
		return nil, err
	}
	return set.sorted(), nil
}

func (c *CoupledModel) expandImported(t EventType, prefix EventConverter, path string, set *atomicSinkSet) error {
	sinks, err := c.SinksFor(t)
	if err != nil {
		return err
	}
	for i, sink := range sinks {
		if err := c.expandSink(sink, prefix, hop(path, c.id, "import:"+string(t), i), set); err != nil {
			return err
		}
	}
	return nil
}

func (c *CoupledModel) expandSink(sink EventSink, prefix EventConverter, path string, set *atomicSinkSet) error {
	sub := c.submodels[c.indexByID[sink.ModelID]]
	conv := ComposeConverters(prefix, sink.Converter)
	if sub.IsAtomic() {
		set.add(path, AtomicSink{Model: sub, Type: sink.Type, Converter: conv})
		return nil
	}
	cm, err := asCoupled(sub)
	if err != nil {
		return err
	}
	return cm.expandImported(sink.Type, conv, path, set)
}

// Influencees returns the atomic models inside c that ultimately receive the
// events src emits, one entry per routing path. src may name any descendant;
// events leaving c through a reexport are not followed.
func (c *CoupledModel) Influencees(src EventSource) ([]AtomicSink, error) {
	set := newAtomicSinkSet()
	if err := c.collectInfluencees(src, nil, "", set); err != nil {
		return nil, err
	}
	return set.sorted(), nil
}

func (c *CoupledModel) collectInfluencees(src EventSource, prefix EventConverter, path string, set *atomicSinkSet) error {
	if c.IsSubmodel(src.ModelID) {
		sinks, err := c.ConnectionsFrom(src)
		if err != nil {
			return err
		}
		for i, sink := range sinks {
			if err := c.expandSink(sink, prefix, hop(path, c.id, "connect:"+src.String(), i), set); err != nil {
				return err
			}
		}
		return nil
	}
	child, ok := c.childContaining(src.ModelID)
	if !ok {
		return &LookupError{ModelID: c.id, Kind: "descendant", Name: src.ModelID}
	}
	if err := child.collectInfluencees(src, prefix, path, set); err != nil {
		return err
	}
	// events escaping the child through a reexport continue at this level
	for _, t := range child.ExportedEventTypes() {
		as, err := child.ResolveAtomicSource(t)
		if err != nil {
			return err
		}
		if as.Model.ID() != src.ModelID || as.Type != src.Type {
			continue
		}
		escaped := EventSource{ModelID: child.ID(), Type: t}
		for i, sink := range c.connections[escaped] {
			if err := c.expandSink(sink, ComposeConverters(prefix, as.Converter), hop(path, c.id, "connect:"+escaped.String(), i), set); err != nil {
				return err
			}
		}
	}
	return nil
}

// hop extends a routing path with the i-th entry of a routing table of c.
func hop(path, coupledID, table string, i int) string {
	return fmt.Sprintf("%s/%s[%s#%d]", path, coupledID, table, i)
}

// deliver hands ev to a direct submodel through sink and marks it active.
func (c *CoupledModel) deliver(sink EventSink, ev Event) error {
	sub := c.submodels[c.indexByID[sink.ModelID]]
	if err := sub.StoreInput([]Event{convertTo(sink.Converter, ev, sink.Type)}); err != nil {
		return err
	}
	c.active[sink.ModelID] = true
	return nil
}

// route delivers the outputs of submodel from to the internal sinks and
// returns the ones reexported at c's boundary.
func (c *CoupledModel) route(from Model, events []Event) ([]Event, error) {
	var out []Event
	for _, ev := range events {
		src := EventSource{ModelID: from.ID(), Type: ev.Type()}
		for _, sink := range c.connections[src] {
			if err := c.deliver(sink, ev); err != nil {
				return nil, err
			}
		}
		for _, t := range c.reexportsBySource[src] {
			out = append(out, convertTo(c.reexportedEvents[t].Converter, ev, t))
		}
	}
	return out, nil
}

// StoreInput routes external events to the submodels importing them.
func (c *CoupledModel) StoreInput(events []Event) error {
	if c.state != Initialised {
		return &StateError{ModelID: c.id, Op: "StoreInput", State: c.state}
	}
	for _, ev := range events {
		sinks, ok := c.importedEvents[ev.Type()]
		if !ok {
			return &LookupError{ModelID: c.id, Kind: "imported event", Name: string(ev.Type())}
		}
		for _, sink := range sinks {
			if err := c.deliver(sink, ev); err != nil {
				return err
			}
		}
	}
	if len(events) > 0 {
		c.pendingInput = true
	}
	return nil
}

// HasPendingInput reports whether external input arrived since the last step.
func (c *CoupledModel) HasPendingInput() bool { return c.pendingInput }

// Output asks the submodel of next event for its output. When that
// submodel is an HIOA, every HIOA submodel produces output at this step so
// that continuous variables stay mutually consistent. Outputs are routed to
// internal sinks; reexported ones are returned.
//
// A coupled HIOA sibling that is not imminent does not step, so it only
// reports what crosses its boundary and routes nothing inside itself.
func (c *CoupledModel) Output() ([]Event, error) {
	if c.state != Initialised {
		return nil, &StateError{ModelID: c.id, Op: "Output", State: c.state}
	}
	if c.next == nil {
		return nil, nil
	}
	var out []Event
	for i, m := range c.emitters() {
		var evs []Event
		var err error
		if i == 0 {
			evs, err = m.Output()
		} else {
			evs, err = boundaryOutput(m)
		}
		if err != nil {
			return nil, err
		}
		exported, err := c.route(m, evs)
		if err != nil {
			return nil, err
		}
		out = append(out, exported...)
	}
	return out, nil
}

// emitters lists the submodels producing output at this step, the
// submodel of next event first.
func (c *CoupledModel) emitters() []Model {
	emitters := []Model{c.next}
	if c.next.IsHIOA() {
		for _, sub := range c.submodels {
			if sub != c.next && sub.IsHIOA() {
				emitters = append(emitters, sub)
			}
		}
	}
	return emitters
}

// boundaryOutput returns the output m shows its parent without touching any
// input buffer inside m.
func boundaryOutput(m Model) ([]Event, error) {
	c, ok := m.(*CoupledModel)
	if !ok {
		return m.Output()
	}
	if c.state != Initialised {
		return nil, &StateError{ModelID: c.id, Op: "Output", State: c.state}
	}
	if c.next == nil {
		return nil, nil
	}
	var out []Event
	for _, sub := range c.emitters() {
		evs, err := boundaryOutput(sub)
		if err != nil {
			return nil, err
		}
		for _, ev := range evs {
			src := EventSource{ModelID: sub.ID(), Type: ev.Type()}
			for _, t := range c.reexportsBySource[src] {
				out = append(out, convertTo(c.reexportedEvents[t].Converter, ev, t))
			}
		}
	}
	return out, nil
}

package sim

import (
	"fmt"
	"sort"
)

// TypeTag names the value type of a variable ("float64", "celsius", ...).
type TypeTag string

// TypeRegistry records subtype declarations between variable type tags.
// A sink of type S can be bound to a source of type T when T == S or T is
// a (transitive) subtype of S. A nil registry only accepts exact matches.
type TypeRegistry struct {
	parents map[TypeTag]TypeTag
}

// NewTypeRegistry returns an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{parents: make(map[TypeTag]TypeTag)}
}

// Declare records that sub is assignable to super. Declaring a cycle is an error.
func (r *TypeRegistry) Declare(sub, super TypeTag) error {
	if sub == super {
		return fmt.Errorf("type %s cannot be its own supertype", sub)
	}
	if r.AssignableFrom(sub, super) {
		return fmt.Errorf("declaring %s <: %s would create a subtype cycle", sub, super)
	}
	r.parents[sub] = super
	return nil
}

// AssignableFrom reports whether a sink of type sink may observe a source of type source.
func (r *TypeRegistry) AssignableFrom(sink, source TypeTag) bool {
	if sink == source {
		return true
	}
	if r == nil {
		return false
	}
	for t, ok := r.parents[source]; ok; t, ok = r.parents[t] {
		if t == sink {
			return true
		}
	}
	return false
}

// EventSource identifies events of one type leaving one model.
type EventSource struct {
	ModelID string
	Type    EventType
}

func (s EventSource) String() string { return s.ModelID + "." + string(s.Type) }

// EventSink identifies a model importing events of one type; Converter maps
// the incoming event to the sink's type (nil: identity plus retagging).
type EventSink struct {
	ModelID   string
	Type      EventType
	Converter EventConverter
}

func (s EventSink) String() string { return s.ModelID + "." + string(s.Type) }

// ReexportedEvent describes an event a coupled model advertises as its own
// while it is actually emitted by one of its submodels.
type ReexportedEvent struct {
	Source    EventSource
	Converter EventConverter
}

// Visibility tells whether a variable is private, exported or imported.
type Visibility int

const (
	Internal Visibility = iota
	Exported
	Imported
)

func (v Visibility) String() string {
	switch v {
	case Internal:
		return "internal"
	case Exported:
		return "exported"
	case Imported:
		return "imported"
	}
	return fmt.Sprintf("Visibility(%d)", int(v))
}

// StaticVariableDescriptor declares a variable at a model boundary.
type StaticVariableDescriptor struct {
	Name       string
	Type       TypeTag
	Visibility Visibility
}

// VariableSource is an exported variable of a specific model.
type VariableSource struct {
	ModelID string
	Name    string
	Type    TypeTag
}

func (s VariableSource) String() string { return s.ModelID + "." + s.Name + ":" + string(s.Type) }

// VariableSink is an imported variable of a specific model.
type VariableSink struct {
	ModelID string
	Name    string
	Type    TypeTag
}

func (s VariableSink) String() string { return s.ModelID + "." + s.Name + ":" + string(s.Type) }

// AtomicSource is the leaf emitter an exported event resolves to, with the
// converter composed along every reexport hop.
type AtomicSource struct {
	Model     Model
	Type      EventType
	Converter EventConverter
}

// AtomicSink is a leaf consumer an imported event resolves to, with the
// converter composed along every hop in source-to-sink order.
type AtomicSink struct {
	Model     Model
	Type      EventType
	Converter EventConverter
}

// atomicSinkSet collects leaf consumers keyed by the routing path that
// reached them; only a path walked twice is dropped.
type atomicSinkSet struct {
	order []AtomicSink
	seen  map[string]bool
}

func newAtomicSinkSet() *atomicSinkSet {
	return &atomicSinkSet{seen: make(map[string]bool)}
}

func (s *atomicSinkSet) add(path string, sink AtomicSink) {
	if s.seen[path] {
		return
	}
	s.seen[path] = true
	s.order = append(s.order, sink)
}

// sorted returns the set ordered by model id then type, for stable output.
func (s *atomicSinkSet) sorted() []AtomicSink {
	out := append([]AtomicSink(nil), s.order...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Model.ID() != out[j].Model.ID() {
			return out[i].Model.ID() < out[j].Model.ID()
		}
		return out[i].Type < out[j].Type
	})
	return out
}

package sim

import (
	"fmt"
	"sort"
)

// Value is a live variable cell. Binding a source to sinks hands every sink
// the same *Value, so a write is visible to all of them at once.
//
// Thread-safety: NOT thread-safe. Written only by the engine driving the
// owning model.
type Value struct {
	typ         TypeTag
	v           any
	initialised bool
	written     Time
}

// NewValue returns an uninitialised cell of type t.
func NewValue(t TypeTag) *Value {
	return &Value{typ: t}
}

func (v *Value) Type() TypeTag       { return v.typ }
func (v *Value) IsInitialised() bool { return v.initialised }
func (v *Value) Get() any            { return v.v }
func (v *Value) LastWrite() Time     { return v.written }

// Set stores x as the value at simulated time t and marks the cell initialised.
func (v *Value) Set(x any, t Time) {
	v.v = x
	v.written = t
	v.initialised = true
}

// Float64 returns the value as a float64, or an error if it is not one.
func (v *Value) Float64() (float64, error) {
	switch x := v.v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	}
	return 0, fmt.Errorf("variable of type %s holds %T, not a number", v.typ, v.v)
}

func (v *Value) reset() {
	v.v = nil
	v.initialised = false
	v.written = Time{}
}

// VariableReader gives initialisers read access to a model's own and
// imported variables by name.
type VariableReader interface {
	Variable(name string) (*Value, bool)
}

// VariableSpec declares a variable of an atomic model. Imported variables
// leave Initialise nil: their cell is supplied by a binding.
type VariableSpec struct {
	Name       string
	Type       TypeTag
	Visibility Visibility
	// DependsOn lists own or imported variables that must be initialised first.
	DependsOn []string
	// Initialise computes the initial value once every dependency is initialised.
	Initialise func(r VariableReader, t0 Time) (any, error)
}

// Descriptor returns the static boundary descriptor of the variable.
func (s VariableSpec) Descriptor() StaticVariableDescriptor {
	return StaticVariableDescriptor{Name: s.Name, Type: s.Type, Visibility: s.Visibility}
}

// variableTable holds the cells of one atomic model.
type variableTable struct {
	specs []VariableSpec
	cells map[string]*Value // own cells and bound imports (nil until bound)
}

func newVariableTable(modelID string, specs []VariableSpec) (*variableTable, error) {
	vt := &variableTable{
		specs: append([]VariableSpec(nil), specs...),
		cells: make(map[string]*Value, len(specs)),
	}
	for i := range vt.specs {
		s := &vt.specs[i]
		s.DependsOn = append([]string(nil), s.DependsOn...)
		if s.Name == "" {
			return nil, constructionErrorf(modelID, "variable %d has no name", i)
		}
		if _, dup := vt.cells[s.Name]; dup {
			return nil, constructionErrorf(modelID, "duplicate variable %q", s.Name)
		}
		switch s.Visibility {
		case Imported:
			if s.Initialise != nil {
				return nil, constructionErrorf(modelID, "imported variable %q cannot have an initialiser", s.Name)
			}
			vt.cells[s.Name] = nil
		default:
			if s.Initialise == nil {
				return nil, constructionErrorf(modelID, "variable %q has no initialiser", s.Name)
			}
			vt.cells[s.Name] = NewValue(s.Type)
		}
	}
	for _, s := range vt.specs {
		for _, dep := range s.DependsOn {
			if _, ok := vt.cells[dep]; !ok {
				return nil, constructionErrorf(modelID, "variable %q depends on undeclared variable %q", s.Name, dep)
			}
		}
	}
	return vt, nil
}

func (vt *variableTable) Variable(name string) (*Value, bool) {
	v, ok := vt.cells[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (vt *variableTable) spec(name string) (VariableSpec, bool) {
	for _, s := range vt.specs {
		if s.Name == name {
			return s, true
		}
	}
	return VariableSpec{}, false
}

// resetOwn marks every owned cell uninitialised for a new run.
func (vt *variableTable) resetOwn() {
	for _, s := range vt.specs {
		if s.Visibility != Imported {
			vt.cells[s.Name].reset()
		}
	}
}

func (vt *variableTable) ready(s VariableSpec) bool {
	for _, dep := range s.DependsOn {
		c := vt.cells[dep]
		if c == nil || !c.IsInitialised() {
			return false
		}
	}
	return true
}

func (vt *variableTable) initialise(s VariableSpec, t0 Time) error {
	x, err := s.Initialise(vt, t0)
	if err != nil {
		return fmt.Errorf("initialising variable %q: %w", s.Name, err)
	}
	vt.cells[s.Name].Set(x, t0)
	return nil
}

// pending lists owned variables not yet initialised, sorted. Imported
// cells are counted by their exporter.
func (vt *variableTable) pending() []string {
	var out []string
	for _, s := range vt.specs {
		if s.Visibility != Imported && !vt.cells[s.Name].IsInitialised() {
			out = append(out, s.Name)
		}
	}
	sort.Strings(out)
	return out
}

func (vt *variableTable) unbound() []string {
	var out []string
	for name, c := range vt.cells {
		if c == nil {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

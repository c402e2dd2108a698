package sim

import (
	"fmt"
	"sort"
)

// AtomicBehavior is the leaf-model logic wrapped by Atomic. The wrapper does
// all time bookkeeping; the behaviour only computes state changes.
type AtomicBehavior interface {
	// InitialiseState resets the behaviour for a run starting at t0. The
	// model handle gives access to variables and the current time.
	InitialiseState(m *Atomic, t0 Time) error
	TimeAdvance() Duration
	Output() ([]Event, error)
	InternalTransition() error
	ExternalTransition(elapsed Duration, inputs []Event) error
}

// ConfluentBehavior is implemented by behaviours with a dedicated confluent
// transition. Others get internal-then-external(0).
type ConfluentBehavior interface {
	ConfluentTransition(elapsed Duration, inputs []Event) error
}

// AtomicConfig declares the boundary of an atomic model.
type AtomicConfig struct {
	ID             string
	TimeUnit       TimeUnit
	ImportedEvents []EventType
	ExportedEvents []EventType
	Variables      []VariableSpec
	// UsesFixpoint opts the model's variables into the fixpoint protocol.
	UsesFixpoint bool
}

// Atomic implements Model around an AtomicBehavior.
//
// Thread-safety: NOT thread-safe. Driven by a single engine.
type Atomic struct {
	id       string
	parentID string
	unit     TimeUnit
	behavior AtomicBehavior
	imported map[EventType]bool
	exported map[EventType]bool
	vars     *variableTable
	fixpoint bool

	state    ModelState
	tCurrent Time
	tNext    Time
	inputs   []Event
	report   AtomicReport
}

// NewAtomic validates cfg and wraps b.
func NewAtomic(cfg AtomicConfig, b AtomicBehavior) (*Atomic, error) {
	if cfg.ID == "" {
		return nil, constructionErrorf("<atomic>", "model id is empty")
	}
	if b == nil {
		return nil, constructionErrorf(cfg.ID, "behavior is nil")
	}
	if !cfg.TimeUnit.Valid() {
		return nil, constructionErrorf(cfg.ID, "invalid time unit %d", int(cfg.TimeUnit))
	}
	vars, err := newVariableTable(cfg.ID, cfg.Variables)
	if err != nil {
		return nil, err
	}
	m := &Atomic{
		id:       cfg.ID,
		unit:     cfg.TimeUnit,
		behavior: b,
		imported: make(map[EventType]bool, len(cfg.ImportedEvents)),
		exported: make(map[EventType]bool, len(cfg.ExportedEvents)),
		vars:     vars,
		fixpoint: cfg.UsesFixpoint,
		tCurrent: ZeroTime(cfg.TimeUnit),
		tNext:    InfiniteTime(cfg.TimeUnit),
		report:   AtomicReport{ID: cfg.ID},
	}
	for _, t := range cfg.ImportedEvents {
		m.imported[t] = true
	}
	for _, t := range cfg.ExportedEvents {
		m.exported[t] = true
	}
	return m, nil
}

func (m *Atomic) ID() string                        { return m.id }
func (m *Atomic) TimeUnit() TimeUnit                { return m.unit }
func (m *Atomic) ParentID() string                  { return m.parentID }
func (m *Atomic) SetParentID(id string)             { m.parentID = id }
func (m *Atomic) IsRoot() bool                      { return m.parentID == "" }
func (m *Atomic) IsAtomic() bool                    { return true }
func (m *Atomic) IsHIOA() bool                      { return len(m.vars.specs) > 0 }
func (m *Atomic) IsDescendant(string) bool          { return false }
func (m *Atomic) DescendantAt(string) (Model, bool) { return nil, false }
func (m *Atomic) Behavior() AtomicBehavior          { return m.behavior }
func (m *Atomic) State() ModelState                 { return m.state }
func (m *Atomic) CurrentStateTime() Time            { return m.tCurrent }
func (m *Atomic) TimeOfNextEvent() Time             { return m.tNext }
func (m *Atomic) HasPendingInput() bool             { return len(m.inputs) > 0 }
func (m *Atomic) UsesFixpointProtocol() bool        { return m.fixpoint }

// TimeAdvance returns the span until the next internal event.
func (m *Atomic) TimeAdvance() Duration { return m.tNext.Subtract(m.tCurrent) }

func (m *Atomic) ImportedEventTypes() []EventType { return sortedTypes(m.imported) }
func (m *Atomic) ExportedEventTypes() []EventType { return sortedTypes(m.exported) }

func (m *Atomic) StaticVariables() []StaticVariableDescriptor {
	out := make([]StaticVariableDescriptor, 0, len(m.vars.specs))
	for _, s := range m.vars.specs {
		out = append(out, s.Descriptor())
	}
	return out
}

// Variable returns an own or bound imported variable cell.
func (m *Atomic) Variable(name string) (*Value, bool) { return m.vars.Variable(name) }

func (m *Atomic) InitialiseState(t0 Time) error {
	if m.state == Stepping || m.state == Ended {
		return &StateError{ModelID: m.id, Op: "InitialiseState", State: m.state}
	}
	m.tCurrent = t0.In(m.unit)
	m.inputs = nil
	m.report = AtomicReport{ID: m.id}
	m.vars.resetOwn()
	if err := m.behavior.InitialiseState(m, m.tCurrent); err != nil {
		return fmt.Errorf("%s: initialising state: %w", m.id, err)
	}
	if err := m.schedule(); err != nil {
		return err
	}
	m.state = Initialised
	return nil
}

func (m *Atomic) schedule() error {
	ta := m.behavior.TimeAdvance()
	if ta.Sign() < 0 {
		return fmt.Errorf("%s: negative time advance %s", m.id, ta)
	}
	m.tNext = m.tCurrent.Add(ta)
	return nil
}

func (m *Atomic) checkIdle(op string) error {
	if m.state != Initialised {
		return &StateError{ModelID: m.id, Op: op, State: m.state}
	}
	return nil
}

func (m *Atomic) Output() ([]Event, error) {
	if err := m.checkIdle("Output"); err != nil {
		return nil, err
	}
	out, err := m.behavior.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: output: %w", m.id, err)
	}
	for _, ev := range out {
		if !m.exported[ev.Type()] {
			return nil, &LookupError{ModelID: m.id, Kind: "exported event", Name: string(ev.Type())}
		}
	}
	m.report.Outputs += len(out)
	return out, nil
}

func (m *Atomic) StoreInput(events []Event) error {
	if m.state != Initialised {
		return &StateError{ModelID: m.id, Op: "StoreInput", State: m.state}
	}
	for _, ev := range events {
		if !m.imported[ev.Type()] {
			return &LookupError{ModelID: m.id, Kind: "imported event", Name: string(ev.Type())}
		}
	}
	m.inputs = append(m.inputs, events...)
	return nil
}

func (m *Atomic) takeInputs() []Event {
	in := m.inputs
	m.inputs = nil
	m.report.Inputs += len(in)
	return in
}

func (m *Atomic) InternalTransition() error {
	if err := m.checkIdle("InternalTransition"); err != nil {
		return err
	}
	if m.tNext.IsInfinite() {
		return fmt.Errorf("%s: internal transition with no scheduled event", m.id)
	}
	m.state = Stepping
	defer func() { m.state = Initialised }()
	m.tCurrent = m.tNext
	if err := m.behavior.InternalTransition(); err != nil {
		return fmt.Errorf("%s: internal transition: %w", m.id, err)
	}
	m.report.Internal++
	return m.schedule()
}

func (m *Atomic) ExternalTransition(elapsed Duration) error {
	if err := m.checkIdle("ExternalTransition"); err != nil {
		return err
	}
	t := m.tCurrent.Add(elapsed)
	if elapsed.Sign() < 0 || t.After(m.tNext) {
		return fmt.Errorf("%s: external transition at %s outside [%s, %s]", m.id, t, m.tCurrent, m.tNext)
	}
	m.state = Stepping
	defer func() { m.state = Initialised }()
	m.tCurrent = t
	if err := m.behavior.ExternalTransition(elapsed, m.takeInputs()); err != nil {
		return fmt.Errorf("%s: external transition: %w", m.id, err)
	}
	m.report.External++
	return m.schedule()
}

func (m *Atomic) ConfluentTransition(elapsed Duration) error {
	if err := m.checkIdle("ConfluentTransition"); err != nil {
		return err
	}
	if t := m.tCurrent.Add(elapsed); !t.Equal(m.tNext) {
		return fmt.Errorf("%s: confluent transition at %s but next event is at %s", m.id, t, m.tNext)
	}
	m.state = Stepping
	defer func() { m.state = Initialised }()
	m.tCurrent = m.tNext
	inputs := m.takeInputs()
	if cb, ok := m.behavior.(ConfluentBehavior); ok {
		if err := cb.ConfluentTransition(elapsed, inputs); err != nil {
			return fmt.Errorf("%s: confluent transition: %w", m.id, err)
		}
	} else {
		if err := m.behavior.InternalTransition(); err != nil {
			return fmt.Errorf("%s: internal part of confluent transition: %w", m.id, err)
		}
		if err := m.behavior.ExternalTransition(ZeroDuration(m.unit), inputs); err != nil {
			return fmt.Errorf("%s: external part of confluent transition: %w", m.id, err)
		}
	}
	m.report.Confluent++
	return m.schedule()
}

func (m *Atomic) checkBound() error {
	if unbound := m.vars.unbound(); len(unbound) > 0 {
		return constructionErrorf(m.id, "imported variable(s) not bound: %v", unbound)
	}
	return nil
}

// InitialiseVariables initialises the model's variables in declaration
// order unless the model opted into the fixpoint protocol.
func (m *Atomic) InitialiseVariables() error {
	if m.fixpoint || !m.IsHIOA() {
		return nil
	}
	if err := m.checkBound(); err != nil {
		return err
	}
	for _, s := range m.vars.specs {
		if s.Visibility == Imported || m.vars.cells[s.Name].IsInitialised() {
			continue
		}
		if !m.vars.ready(s) {
			return fmt.Errorf("%s: variable %q has uninitialised dependencies %v; declare the model with UsesFixpoint",
				m.id, s.Name, s.DependsOn)
		}
		if err := m.vars.initialise(s, m.tCurrent); err != nil {
			return fmt.Errorf("%s: %w", m.id, err)
		}
	}
	return nil
}

// FixpointInitialiseVariables runs one round. Readiness is decided from the
// state at the start of the round, so a variable initialised in this round
// only unblocks its dependants in the next one.
func (m *Atomic) FixpointInitialiseVariables() (int, int, error) {
	if !m.fixpoint {
		return 0, len(m.vars.pending()), nil
	}
	if err := m.checkBound(); err != nil {
		return 0, 0, err
	}
	var ready []VariableSpec
	for _, s := range m.vars.specs {
		if s.Visibility != Imported && !m.vars.cells[s.Name].IsInitialised() && m.vars.ready(s) {
			ready = append(ready, s)
		}
	}
	for _, s := range ready {
		if err := m.vars.initialise(s, m.tCurrent); err != nil {
			return 0, 0, fmt.Errorf("%s: %w", m.id, err)
		}
	}
	return len(ready), len(m.vars.pending()), nil
}

func (m *Atomic) AllVariablesInitialised() bool {
	return len(m.vars.pending()) == 0 && len(m.vars.unbound()) == 0
}

func (m *Atomic) PendingVariables() []string {
	pending := m.vars.pending()
	out := make([]string, len(pending))
	for i, name := range pending {
		out[i] = m.id + "." + name
	}
	return out
}

func (m *Atomic) ExportedVariable(name string, t TypeTag) (*Value, error) {
	s, ok := m.vars.spec(name)
	if !ok || s.Visibility != Exported || s.Type != t {
		return nil, &LookupError{ModelID: m.id, Kind: "exported variable", Name: name + ":" + string(t)}
	}
	return m.vars.cells[name], nil
}

func (m *Atomic) ImportVariable(name string, t TypeTag, v *Value) error {
	s, ok := m.vars.spec(name)
	if !ok || s.Visibility != Imported || s.Type != t {
		return &LookupError{ModelID: m.id, Kind: "imported variable", Name: name + ":" + string(t)}
	}
	if v == nil {
		return constructionErrorf(m.id, "imported variable %q bound to nil", name)
	}
	if cur := m.vars.cells[name]; cur != nil && cur != v {
		return constructionErrorf(m.id, "imported variable %q is already bound", name)
	}
	m.vars.cells[name] = v
	return nil
}

func (m *Atomic) EndSimulation(t Time) error {
	if m.state == Stepping {
		return &StateError{ModelID: m.id, Op: "EndSimulation", State: m.state}
	}
	m.report.EndTime = t.In(m.unit)
	m.state = Ended
	return nil
}

func (m *Atomic) FinalReport() Report {
	r := m.report
	return &r
}

// AtomicReport counts what an atomic model did during a run.
type AtomicReport struct {
	ID        string
	Internal  int
	External  int
	Confluent int
	Inputs    int
	Outputs   int
	EndTime   Time
}

func (r *AtomicReport) ModelID() string { return r.ID }

func (r *AtomicReport) String() string {
	return fmt.Sprintf("%s: internal=%d external=%d confluent=%d inputs=%d outputs=%d end=%s",
		r.ID, r.Internal, r.External, r.Confluent, r.Inputs, r.Outputs, r.EndTime)
}

func sortedTypes(set map[EventType]bool) []EventType {
	out := make([]EventType, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

package sim

import (
	"fmt"
	"sort"
)

// CoupledConfig is the caller-supplied wiring of a coupled model. The maps
// are deep-copied by NewCoupledModel; later changes to them have no effect.
type CoupledConfig struct {
	ID        string
	TimeUnit  TimeUnit
	Submodels []Model

	// ImportedEvents routes events entering the coupled model to submodels.
	ImportedEvents map[EventType][]EventSink
	// ReexportedEvents advertises submodel outputs as outputs of the coupled model.
	ReexportedEvents map[EventType]ReexportedEvent
	// EventConnections routes submodel outputs to other submodels.
	EventConnections map[EventSource][]EventSink

	// ImportedVariables routes variables bound to the coupled model down to submodels.
	ImportedVariables map[StaticVariableDescriptor][]VariableSink
	// ReexportedVariables exposes submodel variables at the coupled boundary.
	ReexportedVariables map[StaticVariableDescriptor]VariableSource
	// VariableBindings binds submodel exported variables to submodel imported ones.
	VariableBindings map[VariableSource][]VariableSink

	// Types declares variable subtyping; nil accepts exact matches only.
	Types *TypeRegistry
	// TieBreaker picks among simultaneous submodels. nil selects a
	// RandomTieBreaker seeded from the model id under simulation key 0, so
	// it ignores any run seed; pass NewRandomTieBreaker built from the run's
	// PartitionedRNG to follow it, as arch.Build does.
	TieBreaker TieBreaker
}

type varKey struct {
	name string
	typ  TypeTag
}

func (k varKey) String() string { return k.name + ":" + string(k.typ) }

// CoupledModel coordinates a set of submodels: it owns their event routing
// and variable binding tables and the next-event bookkeeping, while the
// attached Engine performs the transitions.
//
// The routing tables are built once by NewCoupledModel and never mutated
// afterwards, so they can be read without locking. Run-scoped fields are
// owned by the single engine driving this instance.
type CoupledModel struct {
	id       string
	parentID string
	unit     TimeUnit

	submodels    []Model
	indexByID    map[string]int
	indexByModel map[Model]int

	importedEvents    map[EventType][]EventSink
	reexportedEvents  map[EventType]ReexportedEvent
	reexportsBySource map[EventSource][]EventType
	connections       map[EventSource][]EventSink

	importedVars   map[varKey][]VariableSink
	reexportedVars map[varKey]VariableSource
	bindings       map[VariableSource][]VariableSink

	types      *TypeRegistry
	tieBreaker TieBreaker
	engine     Engine
	onRound    func(round, justInitialised, stillPending int)

	// run-scoped
	state        ModelState
	tCurrent     Time
	tNext        Time
	nextTA       Duration
	elapsed      []Duration
	active       map[string]bool
	next         Model
	pendingInput bool
	report       CoupledReport
}

// NewCoupledModel validates cfg, copies its tables, claims the submodels as
// children and binds the internal variable connections.
func NewCoupledModel(cfg CoupledConfig) (*CoupledModel, error) {
	if cfg.ID == "" {
		return nil, constructionErrorf("<coupled>", "model id is empty")
	}
	if !cfg.TimeUnit.Valid() {
		return nil, constructionErrorf(cfg.ID, "invalid time unit %d", int(cfg.TimeUnit))
	}
	if len(cfg.Submodels) < 2 {
		return nil, constructionErrorf(cfg.ID, "a coupled model needs at least 2 submodels, got %d", len(cfg.Submodels))
	}
	c := &CoupledModel{
		id:                cfg.ID,
		unit:              cfg.TimeUnit,
		submodels:         make([]Model, len(cfg.Submodels)),
		indexByID:         make(map[string]int, len(cfg.Submodels)),
		indexByModel:      make(map[Model]int, len(cfg.Submodels)),
		importedEvents:    make(map[EventType][]EventSink, len(cfg.ImportedEvents)),
		reexportedEvents:  make(map[EventType]ReexportedEvent, len(cfg.ReexportedEvents)),
		reexportsBySource: make(map[EventSource][]EventType),
		connections:       make(map[EventSource][]EventSink, len(cfg.EventConnections)),
		importedVars:      make(map[varKey][]VariableSink, len(cfg.ImportedVariables)),
		reexportedVars:    make(map[varKey]VariableSource, len(cfg.ReexportedVariables)),
		bindings:          make(map[VariableSource][]VariableSink, len(cfg.VariableBindings)),
		types:             cfg.Types,
		tieBreaker:        cfg.TieBreaker,
		tCurrent:          ZeroTime(cfg.TimeUnit),
		tNext:             InfiniteTime(cfg.TimeUnit),
		nextTA:            InfiniteDuration(cfg.TimeUnit),
		report:            CoupledReport{ID: cfg.ID},
	}
	for i, sub := range cfg.Submodels {
		if sub == nil {
			return nil, constructionErrorf(c.id, "submodel %d is nil", i)
		}
		if _, dup := c.indexByID[sub.ID()]; dup {
			return nil, constructionErrorf(c.id, "duplicate submodel id %q", sub.ID())
		}
		if sub.ID() == c.id {
			return nil, constructionErrorf(c.id, "submodel shares the coupled model id")
		}
		if !sub.IsRoot() {
			return nil, constructionErrorf(c.id, "submodel %q already belongs to %q", sub.ID(), sub.ParentID())
		}
		c.submodels[i] = sub
		c.indexByID[sub.ID()] = i
		c.indexByModel[sub] = i
	}
	if c.tieBreaker == nil {
		c.tieBreaker = NewRandomTieBreaker(NewPartitionedRNG(NewSimulationKey(0)).ForSubsystem(SubsystemTieBreak(c.id)))
	}

	if err := c.copyEventTables(cfg); err != nil {
		return nil, err
	}
	if err := c.copyVariableTables(cfg); err != nil {
		return nil, err
	}
	for _, sub := range c.submodels {
		sub.SetParentID(c.id)
	}
	for _, src := range sortedVariableSources(c.bindings) {
		if err := c.BindExportedVariable(src); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// submodelFor resolves a table reference, explaining references that point
// below the direct children.
func (c *CoupledModel) submodelFor(id, role string) (Model, error) {
	if i, ok := c.indexByID[id]; ok {
		return c.submodels[i], nil
	}
	if c.IsDescendant(id) {
		return nil, constructionErrorf(c.id, "%s %q is a nested descendant, not a direct submodel", role, id)
	}
	return nil, constructionErrorf(c.id, "%s %q is not a submodel", role, id)
}

func declaresEvent(types []EventType, t EventType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

func declaresVariable(m Model, name string, t TypeTag, vis Visibility) bool {
	for _, d := range m.StaticVariables() {
		if d.Name == name && d.Type == t && d.Visibility == vis {
			return true
		}
	}
	return false
}

func (c *CoupledModel) checkEventSink(sink EventSink, role string) error {
	sub, err := c.submodelFor(sink.ModelID, role)
	if err != nil {
		return err
	}
	if !declaresEvent(sub.ImportedEventTypes(), sink.Type) {
		return constructionErrorf(c.id, "%s %s: %q does not import %q", role, sink, sink.ModelID, sink.Type)
	}
	return nil
}

func (c *CoupledModel) checkEventSource(src EventSource, role string) error {
	sub, err := c.submodelFor(src.ModelID, role)
	if err != nil {
		return err
	}
	if !declaresEvent(sub.ExportedEventTypes(), src.Type) {
		return constructionErrorf(c.id, "%s %s: %q does not export %q", role, src, src.ModelID, src.Type)
	}
	return nil
}

func (c *CoupledModel) copyEventTables(cfg CoupledConfig) error {
	for t, sinks := range cfg.ImportedEvents {
		for _, sink := range sinks {
			if err := c.checkEventSink(sink, "imported event sink"); err != nil {
				return err
			}
		}
		c.importedEvents[t] = append([]EventSink(nil), sinks...)
	}
	for t, re := range cfg.ReexportedEvents {
		if err := c.checkEventSource(re.Source, "reexported event source"); err != nil {
			return err
		}
		c.reexportedEvents[t] = re
		c.reexportsBySource[re.Source] = append(c.reexportsBySource[re.Source], t)
	}
	for src := range c.reexportsBySource {
		ts := c.reexportsBySource[src]
		sort.Slice(ts, func(i, j int) bool { return ts[i] < ts[j] })
	}
	for src, sinks := range cfg.EventConnections {
		if err := c.checkEventSource(src, "connection source"); err != nil {
			return err
		}
		for _, sink := range sinks {
			if sink.ModelID == src.ModelID {
				return constructionErrorf(c.id, "connection %s -> %s couples a submodel to itself", src, sink)
			}
			if err := c.checkEventSink(sink, "connection sink"); err != nil {
				return err
			}
		}
		c.connections[src] = append([]EventSink(nil), sinks...)
	}
	return nil
}

func (c *CoupledModel) checkAssignable(binding string, sink, source TypeTag) error {
	if !c.types.AssignableFrom(sink, source) {
		return &TypeMismatchError{ModelID: c.id, Binding: binding, SourceType: source, SinkType: sink}
	}
	return nil
}

func (c *CoupledModel) checkVariableSink(sink VariableSink, role string) error {
	sub, err := c.submodelFor(sink.ModelID, role)
	if err != nil {
		return err
	}
	if !declaresVariable(sub, sink.Name, sink.Type, Imported) {
		return constructionErrorf(c.id, "%s %s is not an imported variable of %q", role, sink, sink.ModelID)
	}
	return nil
}

func (c *CoupledModel) checkVariableSource(src VariableSource, role string) error {
	sub, err := c.submodelFor(src.ModelID, role)
	if err != nil {
		return err
	}
	if !declaresVariable(sub, src.Name, src.Type, Exported) {
		return constructionErrorf(c.id, "%s %s is not an exported variable of %q", role, src, src.ModelID)
	}
	return nil
}

func (c *CoupledModel) copyVariableTables(cfg CoupledConfig) error {
	for d, sinks := range cfg.ImportedVariables {
		k := varKey{d.Name, d.Type}
		if _, dup := c.importedVars[k]; dup {
			return constructionErrorf(c.id, "imported variable %s declared twice", k)
		}
		for _, sink := range sinks {
			if err := c.checkVariableSink(sink, "imported variable sink"); err != nil {
				return err
			}
			if err := c.checkAssignable(k.String()+" -> "+sink.String(), sink.Type, d.Type); err != nil {
				return err
			}
		}
		c.importedVars[k] = append([]VariableSink(nil), sinks...)
	}
	for d, src := range cfg.ReexportedVariables {
		k := varKey{d.Name, d.Type}
		if _, dup := c.reexportedVars[k]; dup {
			return constructionErrorf(c.id, "exported variable %s declared twice", k)
		}
		if err := c.checkVariableSource(src, "reexported variable source"); err != nil {
			return err
		}
		if err := c.checkAssignable(src.String()+" -> "+k.String(), d.Type, src.Type); err != nil {
			return err
		}
		c.reexportedVars[k] = src
	}
	for src, sinks := range cfg.VariableBindings {
		if err := c.checkVariableSource(src, "binding source"); err != nil {
			return err
		}
		for _, sink := range sinks {
			if err := c.checkVariableSink(sink, "binding sink"); err != nil {
				return err
			}
			if err := c.checkAssignable(src.String()+" -> "+sink.String(), sink.Type, src.Type); err != nil {
				return err
			}
		}
		c.bindings[src] = append([]VariableSink(nil), sinks...)
	}
	return nil
}

func sortedVariableSources(m map[VariableSource][]VariableSink) []VariableSource {
	out := make([]VariableSource, 0, len(m))
	for src := range m {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// === Identity ===

func (c *CoupledModel) ID() string            { return c.id }
func (c *CoupledModel) TimeUnit() TimeUnit    { return c.unit }
func (c *CoupledModel) ParentID() string      { return c.parentID }
func (c *CoupledModel) SetParentID(id string) { c.parentID = id }
func (c *CoupledModel) IsRoot() bool          { return c.parentID == "" }
func (c *CoupledModel) IsAtomic() bool        { return false }

// IsHIOA reports whether any submodel carries continuous variables.
func (c *CoupledModel) IsHIOA() bool {
	for _, sub := range c.submodels {
		if sub.IsHIOA() {
			return true
		}
	}
	return false
}

// IsSubmodel reports whether id names a direct child.
func (c *CoupledModel) IsSubmodel(id string) bool {
	_, ok := c.indexByID[id]
	return ok
}

// Submodel returns the direct child with the given id.
func (c *CoupledModel) Submodel(id string) (Model, bool) {
	i, ok := c.indexByID[id]
	if !ok {
		return nil, false
	}
	return c.submodels[i], true
}

// SubmodelIndex returns the array position of a direct child handle.
func (c *CoupledModel) SubmodelIndex(m Model) (int, bool) {
	i, ok := c.indexByModel[m]
	return i, ok
}

// Submodels returns the children in declaration order.
func (c *CoupledModel) Submodels() []Model {
	return append([]Model(nil), c.submodels...)
}

// IsDescendant searches the subtree recursively; nothing is cached across
// levels since these queries run while wiring, not while stepping.
func (c *CoupledModel) IsDescendant(id string) bool {
	_, ok := c.DescendantAt(id)
	return ok
}

// DescendantAt returns the model with the given id anywhere below c.
func (c *CoupledModel) DescendantAt(id string) (Model, bool) {
	if m, ok := c.Submodel(id); ok {
		return m, true
	}
	for _, sub := range c.submodels {
		if sub.IsAtomic() {
			continue
		}
		if m, ok := sub.DescendantAt(id); ok {
			return m, true
		}
	}
	return nil, false
}

// Descendants lists the whole subtree in depth-first pre-order.
func (c *CoupledModel) Descendants() []Model {
	var out []Model
	for _, sub := range c.submodels {
		out = append(out, sub)
		if cm, ok := sub.(*CoupledModel); ok {
			out = append(out, cm.Descendants()...)
		}
	}
	return out
}

// childContaining returns the direct coupled child whose subtree holds id.
func (c *CoupledModel) childContaining(id string) (*CoupledModel, bool) {
	for _, sub := range c.submodels {
		if cm, ok := sub.(*CoupledModel); ok && cm.IsDescendant(id) {
			return cm, true
		}
	}
	return nil, false
}

func asCoupled(m Model) (*CoupledModel, error) {
	cm, ok := m.(*CoupledModel)
	if !ok {
		return nil, fmt.Errorf("%s: non-atomic model of type %T is not a *CoupledModel", m.ID(), m)
	}
	return cm, nil
}

// === Boundary ===

func (c *CoupledModel) ImportedEventTypes() []EventType {
	out := make([]EventType, 0, len(c.importedEvents))
	for t := range c.importedEvents {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c *CoupledModel) ExportedEventTypes() []EventType {
	out := make([]EventType, 0, len(c.reexportedEvents))
	for t := range c.reexportedEvents {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c *CoupledModel) StaticVariables() []StaticVariableDescriptor {
	out := make([]StaticVariableDescriptor, 0, len(c.importedVars)+len(c.reexportedVars))
	for k := range c.importedVars {
		out = append(out, StaticVariableDescriptor{Name: k.name, Type: k.typ, Visibility: Imported})
	}
	for k := range c.reexportedVars {
		out = append(out, StaticVariableDescriptor{Name: k.name, Type: k.typ, Visibility: Exported})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Visibility != out[j].Visibility {
			return out[i].Visibility < out[j].Visibility
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// AttachEngine sets the engine this coupled model forwards transitions to.
func (c *CoupledModel) AttachEngine(e Engine) { c.engine = e }

// Engine returns the attached engine, or nil.
func (c *CoupledModel) Engine() Engine { return c.engine }

// OnFixpointRound registers a callback invoked after each root fixpoint round.
func (c *CoupledModel) OnFixpointRound(f func(round, justInitialised, stillPending int)) {
	c.onRound = f
}

package sim

import "fmt"

// ModelState is the run lifecycle of a model instance.
type ModelState int

const (
	Uninitialised ModelState = iota
	Initialised
	Stepping
	Ended
)

func (s ModelState) String() string {
	switch s {
	case Uninitialised:
		return "uninitialised"
	case Initialised:
		return "initialised"
	case Stepping:
		return "stepping"
	case Ended:
		return "ended"
	}
	return fmt.Sprintf("ModelState(%d)", int(s))
}

// Identity covers the naming and tree-position queries of a model.
type Identity interface {
	ID() string
	TimeUnit() TimeUnit
	// ParentID is empty for the root. The parent link is a plain id used
	// for root detection and logging; parents own children, not the reverse.
	ParentID() string
	SetParentID(id string)
	IsRoot() bool
	IsAtomic() bool
	// IsHIOA reports whether the model (or, for coupled models, any
	// descendant) carries continuous variables.
	IsHIOA() bool
	IsDescendant(id string) bool
	DescendantAt(id string) (Model, bool)
}

// Interface describes the static boundary of a model.
type Interface interface {
	ImportedEventTypes() []EventType
	ExportedEventTypes() []EventType
	StaticVariables() []StaticVariableDescriptor
}

// Scheduling covers the DEVS next-event and output queries.
type Scheduling interface {
	State() ModelState
	CurrentStateTime() Time
	TimeOfNextEvent() Time
	TimeAdvance() Duration
	InitialiseState(t0 Time) error
	// Output returns the events emitted at TimeOfNextEvent, just before the
	// internal (or confluent) transition.
	Output() ([]Event, error)
	// StoreInput buffers external events for the next external or confluent transition.
	StoreInput(events []Event) error
	HasPendingInput() bool
}

// Transitions are invoked with the time elapsed since the model's last transition.
type Transitions interface {
	InternalTransition() error
	ExternalTransition(elapsed Duration) error
	ConfluentTransition(elapsed Duration) error
}

// Variables covers continuous-variable initialisation and binding.
type Variables interface {
	// InitialiseVariables initialises every variable not governed by the
	// fixpoint protocol. On a root coupled model it then runs the fixpoint
	// loop when needed and checks that all variables are initialised.
	InitialiseVariables() error
	// FixpointInitialiseVariables performs one fixpoint round and returns
	// the number of variables initialised in it and still pending after it.
	FixpointInitialiseVariables() (justInitialised, stillPending int, err error)
	UsesFixpointProtocol() bool
	AllVariablesInitialised() bool
	// PendingVariables returns qualified names ("model.var") not yet initialised.
	PendingVariables() []string
	ExportedVariable(name string, t TypeTag) (*Value, error)
	ImportVariable(name string, t TypeTag, v *Value) error
}

// Model is the contract a coupled model consumes from each submodel.
type Model interface {
	Identity
	Interface
	Scheduling
	Transitions
	Variables
	EndSimulation(t Time) error
	FinalReport() Report
}

// DebugLevel controls how much the kernel logs while stepping.
type DebugLevel int

const (
	DebugNone DebugLevel = iota
	DebugBasic
	DebugFull
)

// Engine drives one model. Coupled models forward their transitions to it;
// timing and threading policy live here, never in the model.
type Engine interface {
	InternalEventStep() error
	ExternalEventStep(elapsed Duration) error
	ConfluentEventStep(elapsed Duration) error
	DebugLevel() DebugLevel
}

// Report is the end-of-run summary of a model.
type Report interface {
	ModelID() string
	String() string
}

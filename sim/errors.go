package sim

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors; every typed error below unwraps to one of these so callers
// can use either errors.Is or errors.As.
var (
	// ErrConstruction indicates an invalid model tree or routing table.
	ErrConstruction = errors.New("sim: invalid model construction")

	// ErrLookup indicates a query for an undeclared event or variable.
	ErrLookup = errors.New("sim: undeclared event or variable")

	// ErrFixpointDeadlock indicates a fixpoint round made no progress.
	ErrFixpointDeadlock = errors.New("sim: fixpoint variable initialisation deadlocked")

	// ErrTypeMismatch indicates a variable sink not assignable from its source.
	ErrTypeMismatch = errors.New("sim: variable type mismatch")

	// ErrState indicates a lifecycle violation (wrong state or reentrant step).
	ErrState = errors.New("sim: invalid model state")
)

// ConstructionError reports a structural defect found while building a model.
type ConstructionError struct {
	ModelID string
	Reason  string
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("construction of %s: %s", e.ModelID, e.Reason)
}

func (e *ConstructionError) Unwrap() error { return ErrConstruction }

func constructionErrorf(modelID, format string, args ...any) error {
	return &ConstructionError{ModelID: modelID, Reason: fmt.Sprintf(format, args...)}
}

// LookupError reports a query for something the model does not declare.
// It is never folded into an empty result.
type LookupError struct {
	ModelID string
	Kind    string // "imported event", "exported event", "imported variable", ...
	Name    string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s: %s %q is not declared", e.ModelID, e.Kind, e.Name)
}

func (e *LookupError) Unwrap() error { return ErrLookup }

// FixpointDeadlockError is returned when a round initialises nothing while
// variables are still pending: a dependency cycle or a missing dependency.
type FixpointDeadlockError struct {
	ModelID string
	Round   int
	Pending []string
}

func (e *FixpointDeadlockError) Error() string {
	return fmt.Sprintf("%s: fixpoint round %d made no progress, %d variable(s) pending: %s",
		e.ModelID, e.Round, len(e.Pending), strings.Join(e.Pending, ", "))
}

func (e *FixpointDeadlockError) Unwrap() error { return ErrFixpointDeadlock }

// TypeMismatchError reports a binding whose sink type cannot hold the source type.
type TypeMismatchError struct {
	ModelID    string
	Binding    string
	SourceType TypeTag
	SinkType   TypeTag
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: binding %s: sink type %s is not assignable from source type %s",
		e.ModelID, e.Binding, e.SinkType, e.SourceType)
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// StateError reports an operation invoked in the wrong lifecycle state.
type StateError struct {
	ModelID string
	Op      string
	State   ModelState
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s not allowed in state %s", e.ModelID, e.Op, e.State)
}

func (e *StateError) Unwrap() error { return ErrState }

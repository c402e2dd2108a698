package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// ResolveExportedVariable returns the live cell behind src. src may name c
// itself (a reexported variable), a direct submodel or any descendant.
func (c *CoupledModel) ResolveExportedVariable(src VariableSource) (*Value, error) {
	if src.ModelID == c.id {
		return c.ExportedVariable(src.Name, src.Type)
	}
	if sub, ok := c.Submodel(src.ModelID); ok {
		return sub.ExportedVariable(src.Name, src.Type)
	}
	if child, ok := c.childContaining(src.ModelID); ok {
		return child.ResolveExportedVariable(src)
	}
	return nil, &LookupError{ModelID: c.id, Kind: "variable source", Name: src.String()}
}

// BindExportedVariable pushes the cell of a bound source into every sink
// registered for it. All sinks then alias the source cell.
func (c *CoupledModel) BindExportedVariable(src VariableSource) error {
	sinks, ok := c.bindings[src]
	if !ok {
		return &LookupError{ModelID: c.id, Kind: "variable binding", Name: src.String()}
	}
	v, err := c.ResolveExportedVariable(src)
	if err != nil {
		return err
	}
	for _, sink := range sinks {
		if err := c.checkAssignable(src.String()+" -> "+sink.String(), sink.Type, v.Type()); err != nil {
			return err
		}
		sub := c.submodels[c.indexByID[sink.ModelID]]
		if err := sub.ImportVariable(sink.Name, sink.Type, v); err != nil {
			return err
		}
	}
	return nil
}

// ExportedVariable resolves a variable reexported at c's boundary down to
// the leaf exporter's cell.
func (c *CoupledModel) ExportedVariable(name string, t TypeTag) (*Value, error) {
	src, ok := c.reexportedVars[varKey{name, t}]
	if !ok {
		return nil, &LookupError{ModelID: c.id, Kind: "exported variable", Name: name + ":" + string(t)}
	}
	return c.submodels[c.indexByID[src.ModelID]].ExportedVariable(src.Name, src.Type)
}

// ImportVariable pushes v into every submodel sink of the imported variable.
func (c *CoupledModel) ImportVariable(name string, t TypeTag, v *Value) error {
	k := varKey{name, t}
	sinks, ok := c.importedVars[k]
	if !ok {
		return &LookupError{ModelID: c.id, Kind: "imported variable", Name: k.String()}
	}
	if v == nil {
		return constructionErrorf(c.id, "imported variable %s bound to nil", k)
	}
	if err := c.checkAssignable("-> "+k.String(), t, v.Type()); err != nil {
		return err
	}
	for _, sink := range sinks {
		sub := c.submodels[c.indexByID[sink.ModelID]]
		if err := sub.ImportVariable(sink.Name, sink.Type, v); err != nil {
			return err
		}
	}
	return nil
}

// UsesFixpointProtocol is true when any descendant opted in.
func (c *CoupledModel) UsesFixpointProtocol() bool {
	for _, sub := range c.submodels {
		if sub.UsesFixpointProtocol() {
			return true
		}
	}
	return false
}

// InitialiseVariables runs the simple protocol on every variable outside the
// fixpoint protocol, across the whole subtree. Only the root then runs the
// fixpoint loop and checks that every variable ended up initialised.
func (c *CoupledModel) InitialiseVariables() error {
	for _, sub := range c.submodels {
		if err := sub.InitialiseVariables(); err != nil {
			return fmt.Errorf("%s: %w", c.id, err)
		}
	}
	if !c.IsRoot() {
		return nil
	}
	if c.UsesFixpointProtocol() {
		if _, _, err := c.FixpointInitialiseVariables(); err != nil {
			return err
		}
	}
	if !c.AllVariablesInitialised() {
		return fmt.Errorf("%s: variables left uninitialised or unbound: %v", c.id, c.PendingVariables())
	}
	return nil
}

// FixpointInitialiseVariables performs one round on a non-root model. On the
// root it repeats rounds until one initialises nothing: success when nothing
// is pending, FixpointDeadlockError otherwise.
func (c *CoupledModel) FixpointInitialiseVariables() (int, int, error) {
	if !c.IsRoot() {
		return c.fixpointRound()
	}
	total := 0
	for round := 1; ; round++ {
		just, pending, err := c.fixpointRound()
		if err != nil {
			return total, pending, err
		}
		total += just
		c.report.FixpointRounds = round
		if c.onRound != nil {
			c.onRound(round, just, pending)
		}
		if c.debugLevel() >= DebugBasic {
			logrus.WithField("model", c.id).Debugf("fixpoint round %d: %d initialised, %d pending", round, just, pending)
		}
		if just > 0 {
			continue
		}
		if pending == 0 {
			return total, 0, nil
		}
		return total, pending, &FixpointDeadlockError{ModelID: c.id, Round: round, Pending: c.PendingVariables()}
	}
}

func (c *CoupledModel) fixpointRound() (int, int, error) {
	just, pending := 0, 0
	for _, sub := range c.submodels {
		if !sub.UsesFixpointProtocol() {
			continue
		}
		j, p, err := sub.FixpointInitialiseVariables()
		if err != nil {
			return 0, 0, fmt.Errorf("%s: %w", c.id, err)
		}
		just += j
		pending += p
	}
	return just, pending, nil
}

func (c *CoupledModel) AllVariablesInitialised() bool {
	for _, sub := range c.submodels {
		if !sub.AllVariablesInitialised() {
			return false
		}
	}
	return true
}

func (c *CoupledModel) PendingVariables() []string {
	var out []string
	for _, sub := range c.submodels {
		out = append(out, sub.PendingVariables()...)
	}
	return out
}

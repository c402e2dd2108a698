// Package arch describes model trees declaratively and builds them.
//
// An Architecture lists atomic and coupled model descriptors keyed by id,
// names the root and fixes a global time unit. Build instantiates every
// model bottom-up through a Registry of atomic kinds and named converters,
// and wires each coupled model exactly once.
package arch

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Architecture is the top-level architecture file.
// Loaded from YAML via LoadArchitecture(path).
type Architecture struct {
	Version  string                       `yaml:"version"`
	TimeUnit string                       `yaml:"time_unit"`
	Root     string                       `yaml:"root"`
	Types    []SubtypeSpec                `yaml:"types,omitempty"`
	Atomics  map[string]AtomicDescriptor  `yaml:"atomics"`
	Coupled  map[string]CoupledDescriptor `yaml:"coupled,omitempty"`
}

// SubtypeSpec declares that values of Sub may flow into sinks of type Super.
type SubtypeSpec struct {
	Sub   string `yaml:"sub"`
	Super string `yaml:"super"`
}

// AtomicDescriptor selects a registered kind and its parameters.
type AtomicDescriptor struct {
	Kind     string         `yaml:"kind"`
	TimeUnit string         `yaml:"time_unit,omitempty"` // empty = architecture time unit
	Params   map[string]any `yaml:"params,omitempty"`
}

// CoupledDescriptor lists a coupled model's submodels and routing tables.
type CoupledDescriptor struct {
	TimeUnit            string                   `yaml:"time_unit,omitempty"`
	Submodels           []string                 `yaml:"submodels"`
	TieBreak            string                   `yaml:"tie_break,omitempty"` // random (default) | first | priority
	Priority            map[string]int           `yaml:"priority,omitempty"`
	ImportedEvents      []ImportedEventSpec      `yaml:"imported_events,omitempty"`
	ReexportedEvents    []ReexportedEventSpec    `yaml:"reexported_events,omitempty"`
	Connections         []ConnectionSpec         `yaml:"connections,omitempty"`
	ImportedVariables   []ImportedVariableSpec   `yaml:"imported_variables,omitempty"`
	ReexportedVariables []ReexportedVariableSpec `yaml:"reexported_variables,omitempty"`
	Bindings            []BindingSpec            `yaml:"bindings,omitempty"`
}

// EventRef names an event type on a submodel, with an optional converter
// applied when the event crosses this reference.
type EventRef struct {
	Model     string `yaml:"model"`
	Type      string `yaml:"type"`
	Converter string `yaml:"converter,omitempty"`
}

// ImportedEventSpec routes an event entering the coupled model to submodels.
type ImportedEventSpec struct {
	Type  string     `yaml:"type"`
	Sinks []EventRef `yaml:"sinks"`
}

// ReexportedEventSpec exposes a submodel output at the coupled boundary.
type ReexportedEventSpec struct {
	Type      string   `yaml:"type"`
	Source    EventRef `yaml:"source"`
	Converter string   `yaml:"converter,omitempty"`
}

// ConnectionSpec routes a submodel output to other submodels.
type ConnectionSpec struct {
	Source EventRef   `yaml:"source"`
	Sinks  []EventRef `yaml:"sinks"`
}

// VariableRef names a variable on a submodel.
type VariableRef struct {
	Model string `yaml:"model"`
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
}

// ImportedVariableSpec routes a variable bound to the coupled model down to submodels.
type ImportedVariableSpec struct {
	Name  string        `yaml:"name"`
	Type  string        `yaml:"type"`
	Sinks []VariableRef `yaml:"sinks"`
}

// ReexportedVariableSpec exposes a submodel variable at the coupled boundary.
type ReexportedVariableSpec struct {
	Name   string      `yaml:"name"`
	Type   string      `yaml:"type"`
	Source VariableRef `yaml:"source"`
}

// BindingSpec binds a submodel's exported variable to other submodels' imports.
type BindingSpec struct {
	Source VariableRef   `yaml:"source"`
	Sinks  []VariableRef `yaml:"sinks"`
}

var validTieBreaks = map[string]bool{
	"": true, "random": true, "first": true, "priority": true,
}

// LoadArchitecture reads and parses a YAML architecture file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadArchitecture(path string) (*Architecture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading architecture: %w", err)
	}
	return ParseArchitecture(data)
}

// ParseArchitecture parses an architecture from YAML bytes.
func ParseArchitecture(data []byte) (*Architecture, error) {
	var a Architecture
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&a); err != nil {
		return nil, fmt.Errorf("parsing architecture: %w", err)
	}
	return &a, nil
}

// Validate checks the tree shape: the root exists, ids are unique across
// atomic and coupled models, and every model has at most one parent with
// no cycles. Routing tables are checked by the coupled models themselves
// when Build constructs them.
func (a *Architecture) Validate() error {
	if a.Root == "" {
		return fmt.Errorf("root is required")
	}
	if _, err := parseUnit(a.TimeUnit, ""); err != nil {
		return fmt.Errorf("time_unit: %w", err)
	}
	for id := range a.Coupled {
		if _, dup := a.Atomics[id]; dup {
			return fmt.Errorf("model id %q is declared both atomic and coupled", id)
		}
	}
	if !a.has(a.Root) {
		return fmt.Errorf("root %q is not declared", a.Root)
	}
	for _, id := range sortedKeys(a.Atomics) {
		d := a.Atomics[id]
		if d.Kind == "" {
			return fmt.Errorf("atomic %q: kind is required", id)
		}
		if _, err := parseUnit(d.TimeUnit, a.TimeUnit); err != nil {
			return fmt.Errorf("atomic %q: time_unit: %w", id, err)
		}
	}

	parent := make(map[string]string)
	for _, id := range sortedKeys(a.Coupled) {
		d := a.Coupled[id]
		if _, err := parseUnit(d.TimeUnit, a.TimeUnit); err != nil {
			return fmt.Errorf("coupled %q: time_unit: %w", id, err)
		}
		if !validTieBreaks[d.TieBreak] {
			return fmt.Errorf("coupled %q: unknown tie_break %q; valid: random, first, priority", id, d.TieBreak)
		}
		for _, sub := range d.Submodels {
			if !a.has(sub) {
				return fmt.Errorf("coupled %q: submodel %q is not declared", id, sub)
			}
			if sub == a.Root {
				return fmt.Errorf("coupled %q: root %q cannot be a submodel", id, sub)
			}
			if p, taken := parent[sub]; taken {
				return fmt.Errorf("model %q is a submodel of both %q and %q", sub, p, id)
			}
			parent[sub] = id
		}
	}

	// every model hangs below the root; a cycle never reaches it
	for _, id := range append(sortedKeys(a.Atomics), sortedKeys(a.Coupled)...) {
		seen := map[string]bool{}
		for cur := id; cur != a.Root; cur = parent[cur] {
			if seen[cur] {
				return fmt.Errorf("model %q is part of a containment cycle", id)
			}
			seen[cur] = true
			if _, ok := parent[cur]; !ok {
				return fmt.Errorf("model %q is not reachable from root %q", id, a.Root)
			}
		}
	}
	return nil
}

func (a *Architecture) has(id string) bool {
	if _, ok := a.Atomics[id]; ok {
		return true
	}
	_, ok := a.Coupled[id]
	return ok
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

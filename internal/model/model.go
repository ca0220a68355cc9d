// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the Model symbol table. The parser is the only writer;
// after loading, the app reads it to build modelsteps and run actions.
package model

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/iscadgo/internal/cad"
	"github.com/vk/iscadgo/internal/dag"
	"github.com/vk/iscadgo/internal/geom"
)

// SymbolKind is the type of value a name is bound to.
type SymbolKind int

const (
	ScalarSymbol SymbolKind = iota
	VectorSymbol
	DatumSymbol
	FeatureSymbol
	SetSymbol
	ActionSymbol
)

func (k SymbolKind) String() string {
	switch k {
	case ScalarSymbol:
		return "scalar"
	case VectorSymbol:
		return "vector"
	case DatumSymbol:
		return "datum"
	case FeatureSymbol:
		return "feature"
	case SetSymbol:
		return "selection"
	case ActionSymbol:
		return "action"
	}
	return fmt.Sprintf("SymbolKind(%d)", int(k))
}

// Symbol is a named value. Value holds a cad.Scalar, cad.Vector, cad.Datum,
// *cad.Feature, *cad.FeatureSet or Action depending on Kind.
type Symbol struct {
	Name  string
	Kind  SymbolKind
	Value any
	Range hcl.Range
	// Node is the dependency graph node of this definition.
	Node string
}

// Model is the symbol table of one model file.
type Model struct {
	// Path is the model file, empty for models parsed from memory.
	Path   string
	Env    *cad.Env
	Tables cad.TableSource
	Syntax *SyntaxElementDirectory
	Deps   *dag.Graph

	symbols    map[string]*Symbol
	modelsteps map[string]struct{}
	components map[string]struct{}
	overrides  map[string]any
	actions    []Action
	versions   map[string]int
}

// New creates a model holding the default symbols.
func New(env *cad.Env) *Model {
	m := &Model{
		Env:        env,
		Syntax:     NewSyntaxElementDirectory(),
		Deps:       dag.New(),
		symbols:    make(map[string]*Symbol),
		modelsteps: make(map[string]struct{}),
		components: make(map[string]struct{}),
		overrides:  make(map[string]any),
		versions:   make(map[string]int),
	}
	o := cad.ConstVector(geom.V(0, 0, 0))
	ex := cad.ConstVector(geom.V(1, 0, 0))
	ey := cad.ConstVector(geom.V(0, 1, 0))
	ez := cad.ConstVector(geom.V(0, 0, 1))

	m.define("M_PI", ScalarSymbol, cad.Const(math.Pi), hcl.Range{}, nil)
	m.define("deg", ScalarSymbol, cad.Const(math.Pi/180), hcl.Range{}, nil)
	m.define("O", VectorSymbol, o, hcl.Range{}, nil)
	m.define("EX", VectorSymbol, ex, hcl.Range{}, nil)
	m.define("EY", VectorSymbol, ey, hcl.Range{}, nil)
	m.define("EZ", VectorSymbol, ez, hcl.Range{}, nil)
	m.define("XY", DatumSymbol, cad.Plane(o, ez), hcl.Range{}, nil)
	m.define("XZ", DatumSymbol, cad.Plane(o, ey), hcl.Range{}, nil)
	m.define("YZ", DatumSymbol, cad.Plane(o, ex), hcl.Range{}, nil)
	return m
}

// define binds name and adds a dependency graph node for this definition.
// Redefinitions get a fresh node so the graph stays acyclic.
func (m *Model) define(name string, kind SymbolKind, v any, rng hcl.Range, deps []string) *Symbol {
	node := name
	if n := m.versions[name]; n > 0 {
		node = name + "#" + strconv.Itoa(n+1)
	}
	m.versions[name]++

	m.Deps.AddNode(node)
	for _, d := range deps {
		if dep, ok := m.symbols[d]; ok && dep.Node != node {
			// Both nodes exist, so AddEdge cannot fail.
			_ = m.Deps.AddEdge(dep.Node, node)
		}
	}
	sym := &Symbol{Name: name, Kind: kind, Value: v, Range: rng, Node: node}
	m.symbols[name] = sym
	if rng.Filename != "" || rng.End.Byte > 0 {
		m.Syntax.Define(name, rng)
	}
	return sym
}

// OverrideScalar injects a parameter. Statements assigning the same name
// are ignored afterwards.
func (m *Model) OverrideScalar(name string, v float64) *cad.ParameterScalar {
	p := cad.NewParameterScalar(v)
	m.define(name, ScalarSymbol, p, hcl.Range{}, nil)
	m.overrides[name] = p
	return p
}

// OverrideVector injects a vector parameter.
func (m *Model) OverrideVector(name string, v geom.Vec3) *cad.ParameterVector {
	p := cad.NewParameterVector(v)
	m.define(name, VectorSymbol, p, hcl.Range{}, nil)
	m.overrides[name] = p
	return p
}

// IsOverridden reports whether name was injected as a parameter.
func (m *Model) IsOverridden(name string) bool {
	_, ok := m.overrides[name]
	return ok
}

func (m *Model) checkAssignable(name string) error {
	if _, ok := m.modelsteps[name]; ok {
		return fmt.Errorf("'%s' is already defined as a modelstep", name)
	}
	if sym, ok := m.symbols[name]; ok && sym.Kind == ActionSymbol {
		return fmt.Errorf("'%s' is already defined as a post-processing action", name)
	}
	return nil
}

// AddScalar binds a scalar. It reports false when the name is overridden.
func (m *Model) AddScalar(name string, s cad.Scalar, rng hcl.Range, deps []string) (bool, error) {
	return m.assign(name, ScalarSymbol, s, rng, deps)
}

// AddVector binds a vector. It reports false when the name is overridden.
func (m *Model) AddVector(name string, v cad.Vector, rng hcl.Range, deps []string) (bool, error) {
	return m.assign(name, VectorSymbol, v, rng, deps)
}

// AddDatum binds a datum.
func (m *Model) AddDatum(name string, d cad.Datum, rng hcl.Range, deps []string) (bool, error) {
	return m.assign(name, DatumSymbol, d, rng, deps)
}

// AddSet binds a named selection.
func (m *Model) AddSet(name string, s *cad.FeatureSet, rng hcl.Range, deps []string) (bool, error) {
	return m.assign(name, SetSymbol, s, rng, deps)
}

func (m *Model) assign(name string, kind SymbolKind, v any, rng hcl.Range, deps []string) (bool, error) {
	if m.IsOverridden(name) {
		return false, nil
	}
	if err := m.checkAssignable(name); err != nil {
		return false, err
	}
	m.define(name, kind, v, rng, deps)
	return true, nil
}

// AddModelstep binds a feature. Redefining any modelstep is an error.
func (m *Model) AddModelstep(name string, f *cad.Feature, rng hcl.Range, deps []string) error {
	if _, ok := m.modelsteps[name]; ok {
		return fmt.Errorf("modelstep '%s' is already defined", name)
	}
	if m.IsOverridden(name) {
		return fmt.Errorf("'%s' is a parameter and cannot be a modelstep", name)
	}
	if sym, ok := m.symbols[name]; ok && sym.Kind == ActionSymbol {
		return fmt.Errorf("'%s' is already defined as a post-processing action", name)
	}
	f.SetName(name)
	m.modelsteps[name] = struct{}{}
	m.define(name, FeatureSymbol, f, rng, deps)
	return nil
}

// AddComponent binds a modelstep that is also a component of the model.
func (m *Model) AddComponent(name string, f *cad.Feature, rng hcl.Range, deps []string) error {
	if err := m.AddModelstep(name, f, rng, deps); err != nil {
		return err
	}
	m.components[name] = struct{}{}
	return nil
}

// AddAction appends an unnamed post-processing action.
func (m *Model) AddAction(a Action) {
	m.actions = append(m.actions, a)
}

// AddNamedAction appends an action that can also be looked up by name.
func (m *Model) AddNamedAction(name string, a Action, rng hcl.Range, deps []string) error {
	if _, ok := m.symbols[name]; ok {
		return fmt.Errorf("'%s' is already defined", name)
	}
	m.define(name, ActionSymbol, a, rng, deps)
	m.actions = append(m.actions, a)
	return nil
}

// Lookup returns the symbol bound to name.
func (m *Model) Lookup(name string) (*Symbol, bool) {
	sym, ok := m.symbols[name]
	return sym, ok
}

// Scalar returns a scalar symbol.
func (m *Model) Scalar(name string) (cad.Scalar, error) {
	v, err := m.typed(name, ScalarSymbol)
	if err != nil {
		return nil, err
	}
	return v.(cad.Scalar), nil
}

// Vector returns a vector symbol.
func (m *Model) Vector(name string) (cad.Vector, error) {
	v, err := m.typed(name, VectorSymbol)
	if err != nil {
		return nil, err
	}
	return v.(cad.Vector), nil
}

// Datum returns a datum symbol.
func (m *Model) Datum(name string) (cad.Datum, error) {
	v, err := m.typed(name, DatumSymbol)
	if err != nil {
		return nil, err
	}
	return v.(cad.Datum), nil
}

// Modelstep returns a feature symbol.
func (m *Model) Modelstep(name string) (*cad.Feature, error) {
	v, err := m.typed(name, FeatureSymbol)
	if err != nil {
		return nil, err
	}
	return v.(*cad.Feature), nil
}

// Set returns a selection symbol.
func (m *Model) Set(name string) (*cad.FeatureSet, error) {
	v, err := m.typed(name, SetSymbol)
	if err != nil {
		return nil, err
	}
	return v.(*cad.FeatureSet), nil
}

// NamedAction returns an action symbol.
func (m *Model) NamedAction(name string) (Action, error) {
	v, err := m.typed(name, ActionSymbol)
	if err != nil {
		return nil, err
	}
	return v.(Action), nil
}

func (m *Model) typed(name string, kind SymbolKind) (any, error) {
	sym, ok := m.symbols[name]
	if !ok {
		return nil, fmt.Errorf("undefined symbol '%s'", name)
	}
	if sym.Kind != kind {
		return nil, fmt.Errorf("symbol '%s' is a %s, not a %s", name, sym.Kind, kind)
	}
	return sym.Value, nil
}

// Names returns all symbol names of a kind, sorted.
func (m *Model) Names(kind SymbolKind) []string {
	var out []string
	for name, sym := range m.symbols {
		if sym.Kind == kind {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Modelsteps returns the modelstep names, sorted.
func (m *Model) Modelsteps() []string {
	return sortedSet(m.modelsteps)
}

// Components returns the component names, sorted.
func (m *Model) Components() []string {
	return sortedSet(m.components)
}

// Actions returns the post-processing actions in statement order.
func (m *Model) Actions() []Action {
	return append([]Action(nil), m.actions...)
}

// ModelstepNodes returns the dependency graph nodes of all modelsteps.
func (m *Model) ModelstepNodes() map[string]string {
	out := make(map[string]string, len(m.modelsteps))
	for name := range m.modelsteps {
		out[m.symbols[name].Node] = name
	}
	return out
}

func sortedSet(s map[string]struct{}) []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

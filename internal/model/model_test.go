// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package model

import (
	"context"
	"math"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/iscadgo/internal/cad"
	"github.com/vk/iscadgo/internal/geom"
)

func newTestModel() *Model {
	return New(&cad.Env{Engine: geom.NewKernel()})
}

func unitBox(t *testing.T, m *Model) *cad.Feature {
	t.Helper()
	s, err := geom.NewBox(geom.V(0, 0, 0), geom.V(1, 1, 1))
	require.NoError(t, err)
	return cad.NewFeature(m.Env, &cad.ShapeOp{Tag: "Box", Shape: s})
}

func rangeAt(start, end int) hcl.Range {
	return hcl.Range{
		Filename: "m.iscad",
		Start:    hcl.Pos{Line: 1, Column: start + 1, Byte: start},
		End:      hcl.Pos{Line: 1, Column: end + 1, Byte: end},
	}
}

func TestNew_DefaultSymbols(t *testing.T) {
	t.Parallel()
	m := newTestModel()

	pi, err := m.Scalar("M_PI")
	require.NoError(t, err)
	v, err := pi.Value()
	require.NoError(t, err)
	assert.Equal(t, math.Pi, v)

	deg, err := m.Scalar("deg")
	require.NoError(t, err)
	v, err = deg.Value()
	require.NoError(t, err)
	assert.InDelta(t, math.Pi/180, v, 1e-15)

	ez, err := m.Vector("EZ")
	require.NoError(t, err)
	z, err := ez.Value()
	require.NoError(t, err)
	assert.Equal(t, geom.V(0, 0, 1), z)

	xy, err := m.Datum("XY")
	require.NoError(t, err)
	fr, err := xy.Frame()
	require.NoError(t, err)
	assert.Equal(t, cad.PlaneDatum, fr.Kind)
	assert.Equal(t, geom.V(0, 0, 1), fr.Dir)

	assert.Equal(t, []string{"XY", "XZ", "YZ"}, m.Names(DatumSymbol))
}

func TestModel_OverridesWin(t *testing.T) {
	t.Parallel()
	m := newTestModel()

	// Arrange
	p := m.OverrideScalar("L", 5)

	// Act
	added, err := m.AddScalar("L", cad.Const(1), rangeAt(0, 6), nil)

	// Assert
	require.NoError(t, err)
	assert.False(t, added)
	s, err := m.Scalar("L")
	require.NoError(t, err)
	assert.Same(t, p, s)
	assert.True(t, m.IsOverridden("L"))
}

func TestModel_RedefinitionReplaces(t *testing.T) {
	t.Parallel()
	m := newTestModel()

	added, err := m.AddScalar("a", cad.Const(1), rangeAt(0, 6), nil)
	require.NoError(t, err)
	require.True(t, added)
	_, err = m.AddScalar("a", cad.Const(2), rangeAt(7, 13), []string{"a"})
	require.NoError(t, err)

	s, err := m.Scalar("a")
	require.NoError(t, err)
	v, err := s.Value()
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)

	sym, ok := m.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "a#2", sym.Node)
	deps, err := m.Deps.Dependencies("a#2")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, deps)
	require.NoError(t, m.Deps.DetectCycles())

	def, ok := m.Syntax.Definition("a")
	require.True(t, ok)
	assert.Equal(t, 7, def.Start.Byte)
}

func TestModel_Modelsteps(t *testing.T) {
	t.Parallel()
	m := newTestModel()
	_, err := m.AddScalar("L", cad.Const(1), rangeAt(0, 5), nil)
	require.NoError(t, err)

	b := unitBox(t, m)
	require.NoError(t, m.AddModelstep("b", b, rangeAt(6, 20), []string{"L"}))
	assert.Equal(t, "b", b.Name())

	err = m.AddModelstep("b", unitBox(t, m), rangeAt(21, 30), nil)
	assert.ErrorContains(t, err, "modelstep 'b' is already defined")

	_, err = m.AddScalar("b", cad.Const(3), rangeAt(31, 36), nil)
	assert.ErrorContains(t, err, "already defined as a modelstep")

	require.NoError(t, m.AddComponent("hull", unitBox(t, m), rangeAt(37, 50), []string{"b"}))
	assert.Equal(t, []string{"b", "hull"}, m.Modelsteps())
	assert.Equal(t, []string{"hull"}, m.Components())
	assert.Equal(t, map[string]string{"b": "b", "hull": "hull"}, m.ModelstepNodes())

	down, err := m.Deps.Downstream("L")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "hull"}, down)

	_, err = m.Vector("b")
	assert.ErrorContains(t, err, "symbol 'b' is a feature, not a vector")
	_, err = m.Modelstep("nope")
	assert.ErrorContains(t, err, "undefined symbol 'nope'")
}

type nopAction struct{ kind string }

func (a *nopAction) Kind() string                  { return a.kind }
func (a *nopAction) Run(ctx context.Context) error { return nil }

func TestModel_Actions(t *testing.T) {
	t.Parallel()
	m := newTestModel()

	m.AddAction(&nopAction{kind: "DXF"})
	props := &nopAction{kind: "SolidProperties"}
	require.NoError(t, m.AddNamedAction("props", props, rangeAt(0, 10), nil))
	m.AddAction(&nopAction{kind: "gmsh"})

	kinds := []string{}
	for _, a := range m.Actions() {
		kinds = append(kinds, a.Kind())
	}
	assert.Equal(t, []string{"DXF", "SolidProperties", "gmsh"}, kinds)

	got, err := m.NamedAction("props")
	require.NoError(t, err)
	assert.Same(t, props, got)

	assert.Error(t, m.AddNamedAction("props", props, rangeAt(0, 10), nil))
	_, err = m.AddScalar("props", cad.Const(1), rangeAt(11, 20), nil)
	assert.ErrorContains(t, err, "post-processing action")
}

func TestSyntaxElementDirectory_FindAt(t *testing.T) {
	t.Parallel()
	m := newTestModel()
	outer := unitBox(t, m)
	inner := unitBox(t, m)

	d := NewSyntaxElementDirectory()
	d.Add(SyntaxElement{Range: rangeAt(0, 30), Feature: outer})
	d.Add(SyntaxElement{Range: rangeAt(10, 15), Feature: inner, Symbol: "b"})

	tests := []struct {
		name   string
		offset int
		want   *cad.Feature
		found  bool
	}{
		{"outer only", 2, outer, true},
		{"innermost wins", 12, inner, true},
		{"end is exclusive", 15, outer, true},
		{"outside", 30, nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			el, ok := d.FindAt(tc.offset)
			assert.Equal(t, tc.found, ok)
			if tc.found {
				assert.Same(t, tc.want, el.Feature)
			}
		})
	}

	els := d.Elements()
	require.Len(t, els, 2)
	assert.Equal(t, 0, els[0].Range.Start.Byte)
}

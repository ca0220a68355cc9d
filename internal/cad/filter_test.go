package cad

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/iscadgo/internal/geom"
)

func TestFilter_Faces(t *testing.T) {
	t.Parallel()
	env, _ := newEnv()
	// faces are ordered -x, +x, -y, +y, -z, +z; areas 6, 6, 3, 3, 2, 2
	f := box(env, geom.V(0, 0, 0), geom.V(1, 2, 3))

	testCases := []struct {
		name   string
		filter string
		want   []int
	}{
		{name: "maximal area", filter: "maximal(area)", want: []int{0, 1}},
		{name: "minimal area", filter: "minimal(area)", want: []int{4, 5}},
		{name: "second largest area", filter: "maximal(area, 1)", want: []int{2, 3}},
		{name: "rank out of range", filter: "maximal(area, 5)", want: []int{}},
		{name: "normal component", filter: "normal.z > 0.5", want: []int{5}},
		{name: "approximate match", filter: "CoG.x ~ 1 {0.01}", want: []int{1}},
		{name: "approximate zero", filter: "CoG.x ~ 0", want: []int{0}},
		{name: "negation", filter: "!isPlane", want: []int{}},
		{name: "conjunction", filter: "area < 5 && normal.y < 0", want: []int{2}},
		{name: "disjunction", filter: "normal.x > 0.5 || normal.z > 0.5", want: []int{1, 5}},
		{name: "parenthesised", filter: "!(area > 2.5)", want: []int{4, 5}},
		{name: "angle to axis", filter: "angleMag(normal, [0,0,1]) < 0.1", want: []int{4, 5}},
		{name: "arithmetic", filter: "area * 2 - 1 == 11", want: []int{0, 1}},
		{name: "distance", filter: "dist(CoG, [0.5, 1, 3]) < 1e-9", want: []int{5}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			set, err := NewFilterSet(f, geom.Face, tc.filter)
			require.NoError(t, err)

			ids, err := set.IDs()

			require.NoError(t, err)
			assert.Equal(t, tc.want, ids)
		})
	}
}

func TestFilter_EdgesAndVertices(t *testing.T) {
	t.Parallel()
	env, _ := newEnv()
	f := box(env, geom.V(0, 0, 0), geom.V(1, 2, 3))

	count := func(kind geom.Kind, filter string, args ...any) int {
		set, err := NewFilterSet(f, kind, filter, args...)
		require.NoError(t, err)
		ids, err := set.IDs()
		require.NoError(t, err)
		return len(ids)
	}

	assert.Equal(t, 4, count(geom.Vertex, "loc.z > 1"))
	assert.Equal(t, 1, count(geom.Vertex, "dist(loc, %m0) < 1e-9", ConstVector{1, 2, 3}))
	assert.Equal(t, 4, count(geom.Edge, "len > 2.5"))
	assert.Equal(t, 4, count(geom.Edge, "len == 1"))
	assert.Equal(t, 12, count(geom.Edge, "isLine"))
	assert.Equal(t, 0, count(geom.Edge, "isCircle"))
	assert.Equal(t, 12, count(geom.Edge, "isFaceBoundary"))
	// per z level: the x edge at y=0 and both y edges
	assert.Equal(t, 6, count(geom.Edge, "radialLen([0,0,1], [0,0,0]) > 0.5"))
	assert.Equal(t, 4, count(geom.Edge, "radialLen([0,0,1], [0,0,0]) == 0"))
	assert.Equal(t, 4, count(geom.Edge, "mag(end - start) == 3"))
}

func TestFilter_SetArguments(t *testing.T) {
	t.Parallel()
	env, _ := newEnv()
	f := box(env, geom.V(0, 0, 0), geom.V(1, 1, 1))
	top := NewExplicitSet(f, geom.Face, []int{5})

	around, err := NewFilterSet(f, geom.Face, "adjacentToFaces(%0)", top)
	require.NoError(t, err)
	ids, err := around.IDs()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, ids)

	notTop, err := NewFilterSet(f, geom.Face, "!in(%0)", top)
	require.NoError(t, err)
	ids, err = notTop.IDs()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, ids)

	topEdges, err := NewFilterSet(f, geom.Edge, "adjacentToFaces", top)
	require.Error(t, err, "edges have no adjacentToFaces predicate")
	assert.Nil(t, topEdges)
}

func TestFilter_PartOfSolid(t *testing.T) {
	t.Parallel()
	env, _ := newEnv()
	a := box(env, geom.V(0, 0, 0), geom.V(1, 1, 1))
	b := box(env, geom.V(5, 0, 0), geom.V(2, 1, 1))
	u := NewFeature(env, &BooleanOp{Kind: BoolUnion, A: a, B: b})
	big, err := NewFilterSet(u, geom.Solid, "volume > 1.5")
	require.NoError(t, err)

	edges, err := NewFilterSet(u, geom.Edge, "isPartOfSolid %0", big)
	require.NoError(t, err)
	ids, err := edges.IDs()
	require.NoError(t, err)
	assert.Len(t, ids, 12)
}

func TestFilter_Errors(t *testing.T) {
	t.Parallel()
	env, _ := newEnv()
	f := box(env, geom.V(0, 0, 0), geom.V(1, 1, 1))
	g := box(env, geom.V(3, 0, 0), geom.V(1, 1, 1))

	testCases := []struct {
		name    string
		filter  string
		args    []any
		wantErr error
	}{
		{name: "missing placeholder", filter: "in(%1)", args: []any{AllOf(f, geom.Face)}, wantErr: ErrPlaceholder},
		{name: "scalar placeholder of wrong type", filter: "area > %d0", args: []any{ConstVector{}}, wantErr: ErrPlaceholder},
		{name: "set of another parent", filter: "in(%0)", args: []any{AllOf(g, geom.Face)}, wantErr: ErrCrossParent},
		{name: "set of another kind", filter: "in(%0)", args: []any{AllOf(f, geom.Edge)}, wantErr: ErrWrongKind},
		{name: "unsupported quantity", filter: "cylRadius > 1", wantErr: ErrUnsupported},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			set, err := NewFilterSet(f, geom.Face, tc.filter, tc.args...)
			require.NoError(t, err)

			_, err = set.IDs()

			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestCompileFilter_Rejects(t *testing.T) {
	t.Parallel()
	for _, src := range []string{"", "area >", "volume > 1", "maximal(area, 1.5)", "in %0", "area ~ 1 {x}", "CoG.x $ 1"} {
		_, err := CompileFilter(geom.Face, src)
		assert.Error(t, err, src)
	}
}

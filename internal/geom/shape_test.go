package geom

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBox(t *testing.T, lo, hi Vec3) *Shape {
	t.Helper()
	s, err := NewBox(lo, hi)
	require.NoError(t, err)
	return s
}

func lShape(t *testing.T) *Shape {
	t.Helper()
	a := mustBox(t, V(0, 0, 0), V(2, 1, 1))
	b := mustBox(t, V(0, 1, 0), V(1, 2, 1))
	return Union(a, b)
}

func TestTopology_Counts(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name                         string
		shape                        func(t *testing.T) *Shape
		vertices, edges, faces, sols int
	}{
		{
			name:     "unit box",
			shape:    func(t *testing.T) *Shape { return mustBox(t, V(0, 0, 0), V(1, 1, 1)) },
			vertices: 8, edges: 12, faces: 6, sols: 1,
		},
		{
			name:     "L prism",
			shape:    lShape,
			vertices: 12, edges: 18, faces: 8, sols: 1,
		},
		{
			name: "two disjoint boxes",
			shape: func(t *testing.T) *Shape {
				return Union(mustBox(t, V(0, 0, 0), V(1, 1, 1)), mustBox(t, V(3, 0, 0), V(4, 1, 1)))
			},
			vertices: 16, edges: 24, faces: 12, sols: 2,
		},
		{
			name:     "empty",
			shape:    func(*testing.T) *Shape { return Empty() },
			vertices: 0, edges: 0, faces: 0, sols: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := tc.shape(t)
			assert.Equal(t, tc.vertices, s.Count(Vertex))
			assert.Equal(t, tc.edges, s.Count(Edge))
			assert.Equal(t, tc.faces, s.Count(Face))
			assert.Equal(t, tc.sols, s.Count(Solid))
		})
	}
}

func TestTopology_BoxEntities(t *testing.T) {
	t.Parallel()
	s := mustBox(t, V(0, 0, 0), V(2, 3, 4))

	assert.Equal(t, V(0, 0, 0), s.VertexLocation(0))
	assert.Equal(t, V(2, 0, 0), s.VertexLocation(1))

	normals := []Vec3{V(-1, 0, 0), V(1, 0, 0), V(0, -1, 0), V(0, 1, 0), V(0, 0, -1), V(0, 0, 1)}
	for i, n := range normals {
		assert.Equal(t, n, s.FaceNormal(i), "face %d", i)
		assert.Len(t, s.FaceEdges(i), 4)
		assert.Len(t, s.FaceVertices(i), 4)
		assert.Len(t, s.AdjacentFaces(i), 4)
		assert.Equal(t, []int{0}, s.FaceSolids(i))
	}
	assert.InDelta(t, 12.0, s.FaceArea(0), 1e-12)
	assert.Equal(t, V(1, 1.5, 4), s.FaceCoG(5))

	for e := 0; e < s.Count(Edge); e++ {
		assert.Len(t, s.EdgeFaces(e), 2, "edge %d", e)
		assert.True(t, s.EdgeIsFaceBoundary(e))
		assert.Len(t, s.EdgeVertices(e), 2)
	}
	assert.InDelta(t, 2.0+3.0+4.0, s.EdgeLength(0)+s.EdgeLength(4)+s.EdgeLength(8), 1e-12)
}

func TestProperties(t *testing.T) {
	t.Parallel()
	s := mustBox(t, V(0, 0, 0), V(4, 2, 1))

	assert.InDelta(t, 8.0, s.Volume(), 1e-12)
	assert.True(t, s.CoG().ApproxEqual(V(2, 1, 0.5), 1e-12))
	assert.InDelta(t, 2*(8+4+2), s.SurfaceArea(), 1e-12)
	assert.True(t, s.SurfaceCoG().ApproxEqual(V(2, 1, 0.5), 1e-12))

	axes := s.SurfaceInertiaAxes()
	assert.True(t, axes[0].ApproxEqual(V(1, 0, 0), 1e-9), "got %v", axes[0])
	assert.True(t, axes[1].ApproxEqual(V(0, 1, 0), 1e-9), "got %v", axes[1])
	assert.True(t, axes[2].ApproxEqual(V(0, 0, 1), 1e-9), "got %v", axes[2])

	lo, hi := s.BoundingBox(0.5)
	assert.Equal(t, V(-0.5, -0.5, -0.5), lo)
	assert.Equal(t, V(4.5, 2.5, 1.5), hi)

	cube := mustBox(t, V(0, 0, 0), V(1, 1, 1))
	I := cube.Inertia()
	assert.InDelta(t, 1.0/6, I[0][0], 1e-12)
	assert.InDelta(t, 0.0, I[0][1], 1e-12)
}

func TestCSG(t *testing.T) {
	t.Parallel()
	a := mustBox(t, V(0, 0, 0), V(2, 2, 2))
	b := mustBox(t, V(1, 1, 1), V(3, 3, 3))

	assert.InDelta(t, 15.0, Union(a, b).Volume(), 1e-12)
	assert.InDelta(t, 7.0, Subtract(a, b).Volume(), 1e-12)
	assert.InDelta(t, 1.0, Intersect(a, b).Volume(), 1e-12)
	assert.True(t, Intersect(a, mustBox(t, V(5, 5, 5), V(6, 6, 6))).IsEmpty())

	// canonical form: union of adjacent halves equals the whole
	left := mustBox(t, V(0, 0, 0), V(1, 2, 2))
	right := mustBox(t, V(1, 0, 0), V(2, 2, 2))
	whole := Union(left, right)
	assert.True(t, whole.SameGeometry(a, 1e-12))
	assert.Equal(t, 8, whole.Count(Vertex))
	assert.NotEqual(t, whole.ID(), a.ID())
}

func TestHalfSpace(t *testing.T) {
	t.Parallel()
	s := mustBox(t, V(0, 0, 0), V(2, 2, 2))

	below, err := HalfSpace(s, V(0, 0, 0.5), V(0, 0, 1))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, below.Volume(), 1e-12)

	above, err := HalfSpace(s, V(0, 0, 0.5), V(0, 0, -1))
	require.NoError(t, err)
	assert.InDelta(t, 6.0, above.Volume(), 1e-12)

	_, err = HalfSpace(s, V(0, 0, 0), V(1, 1, 0))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestTransformShape(t *testing.T) {
	t.Parallel()
	s := mustBox(t, V(0, 0, 0), V(4, 2, 1))

	rot, err := TransformShape(s, Rotation(V(0, 0, 0), V(0, 0, 1), math.Pi/2))
	require.NoError(t, err)
	lo, hi := rot.BoundingBox(0)
	assert.True(t, lo.ApproxEqual(V(-2, 0, 0), 1e-9), "lo %v", lo)
	assert.True(t, hi.ApproxEqual(V(0, 4, 1), 1e-9), "hi %v", hi)

	moved, err := TransformShape(s, Translation(V(1, 1, 1)).Then(Scaling(2)))
	require.NoError(t, err)
	lo, hi = moved.BoundingBox(0)
	assert.Equal(t, V(2, 2, 2), lo)
	assert.Equal(t, V(10, 6, 4), hi)

	mir, err := TransformShape(lShape(t), Mirror(V(0, 0, 0), V(1, 0, 0)))
	require.NoError(t, err)
	assert.InDelta(t, 3.0, mir.Volume(), 1e-12)
	assert.Equal(t, 12, mir.Count(Vertex))

	_, err = TransformShape(s, Rotation(V(0, 0, 0), V(0, 0, 1), math.Pi/4))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestExtractSolids(t *testing.T) {
	t.Parallel()
	s := Union(mustBox(t, V(0, 0, 0), V(1, 1, 1)), mustBox(t, V(3, 0, 0), V(5, 1, 1)))

	second, err := ExtractSolids(s, []int{1})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, second.Volume(), 1e-12)

	_, err = ExtractSolids(s, []int{2})
	assert.Error(t, err)
}

func TestSection(t *testing.T) {
	t.Parallel()
	rects := lShape(t).Section(2, 0.5)
	var area float64
	for _, r := range rects {
		area += (r.Hi[0] - r.Lo[0]) * (r.Hi[1] - r.Lo[1])
	}
	assert.InDelta(t, 3.0, area, 1e-12)
	assert.Empty(t, lShape(t).Section(2, 5))
}

func TestIsIdentical(t *testing.T) {
	t.Parallel()
	a := mustBox(t, V(0, 0, 0), V(2, 2, 2))
	u := Union(a, mustBox(t, V(2, 0, 0), V(3, 1, 1)))

	// the -x face of a survives the union unchanged
	assert.True(t, IsIdentical(u, 0, a, 0, Face, DefaultTolerance))
	assert.True(t, IsIdentical(u, 0, a, 0, Vertex, DefaultTolerance))
	assert.False(t, IsIdentical(u, 0, a, 1, Face, DefaultTolerance))
	assert.True(t, IsIdentical(a, 0, a, 0, Solid, DefaultTolerance))

	// touching boxes share a face with opposite normals
	left := mustBox(t, V(0, 0, 0), V(1, 1, 1))
	right := mustBox(t, V(1, 0, 0), V(2, 1, 1))
	assert.True(t, IsIdentical(left, 1, right, 0, Face, DefaultTolerance))
	assert.False(t, IsIdentical(left, 0, right, 0, Face, DefaultTolerance))
}

func TestExportImport(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s := lShape(t)

	path := filepath.Join(dir, "l.json")
	require.NoError(t, Export(s, path, ExportOptions{FaceGroups: map[string][]int{"bottom": {0}}}))
	back, err := Import(path)
	require.NoError(t, err)
	assert.True(t, back.SameGeometry(s, 1e-12))

	stl := filepath.Join(dir, "l.stl")
	require.NoError(t, Export(s, stl, ExportOptions{}))
	data, err := os.ReadFile(stl)
	require.NoError(t, err)
	// 8 faces made of 14 grid facets, two triangles each
	assert.Equal(t, 28, strings.Count(string(data), "facet normal"))

	err = Export(s, filepath.Join(dir, "l.step"), ExportOptions{})
	assert.ErrorIs(t, err, ErrFormat)

	err = Export(s, filepath.Join(dir, "bad.json"), ExportOptions{FaceGroups: map[string][]int{"x": {99}}})
	assert.Error(t, err)
}

func TestExportEdgeMesh(t *testing.T) {
	t.Parallel()
	s := mustBox(t, V(0, 0, 0), V(2, 1, 1))
	path := filepath.Join(t.TempDir(), "edges.eMesh")

	require.NoError(t, ExportEdgeMesh(s, path, []int{0}, 0.5))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "class       featureEdgeMesh;")
	assert.Contains(t, text, "5\n(\n(0 0 0)\n(0.5 0 0)")
	assert.Contains(t, text, "4\n(\n(0 1)")
}

func TestKernelBox(t *testing.T) {
	t.Parallel()
	k := NewKernel()

	s, err := k.Box(V(1, 1, 1), V(-1, 0, 0), V(0, 2, 0), V(0, 0, 3))
	require.NoError(t, err)
	lo, hi := s.BoundingBox(0)
	assert.Equal(t, V(0, 1, 1), lo)
	assert.Equal(t, V(1, 3, 4), hi)

	_, err = k.Box(V(0, 0, 0), V(1, 1, 0), V(0, 2, 0), V(0, 0, 3))
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = k.Box(V(0, 0, 0), V(1, 0, 0), V(2, 0, 0), V(0, 0, 3))
	assert.ErrorIs(t, err, ErrDegenerate)
}

func TestRayHit(t *testing.T) {
	t.Parallel()
	s := mustBox(t, V(0, 0, 0), V(1, 1, 1))
	tt, ok := s.RayHit(V(0.5, 0.5, 5), V(0, 0, -1), 0)
	require.True(t, ok)
	assert.InDelta(t, 4.0, tt, 1e-12)

	_, ok = s.RayHit(V(5, 5, 5), V(0, 0, -1), 0)
	assert.False(t, ok)
}

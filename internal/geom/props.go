package geom

import (
	"fmt"
	"math"
	"sort"
)

// Kind enumerates topological entity kinds.
type Kind int

const (
	Vertex Kind = iota
	Edge
	Face
	Solid
)

func (k Kind) String() string {
	switch k {
	case Vertex:
		return "vertex"
	case Edge:
		return "edge"
	case Face:
		return "face"
	case Solid:
		return "solid"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Count returns the number of entities of the given kind.
func (s *Shape) Count(k Kind) int {
	t := s.topology()
	switch k {
	case Vertex:
		return len(t.vertices)
	case Edge:
		return len(t.edges)
	case Face:
		return len(t.faces)
	case Solid:
		return len(t.solids)
	}
	return 0
}

// IDs returns all entity ids of a kind in enumeration order.
func (s *Shape) IDs(k Kind) []int {
	n := s.Count(k)
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return ids
}

// CheckID returns an error if id is not a valid entity of kind k.
func (s *Shape) CheckID(k Kind, id int) error {
	if n := s.Count(k); id < 0 || id >= n {
		return fmt.Errorf("%s id %d out of range [0,%d)", k, id, n)
	}
	return nil
}

// VertexLocation returns the position of vertex id.
func (s *Shape) VertexLocation(id int) Vec3 {
	return s.lattice(s.topology().vertices[id])
}

// EdgeEnds returns start and end points of edge id.
func (s *Shape) EdgeEnds(id int) (Vec3, Vec3) {
	e := s.topology().edges[id]
	a, b := e.fixed, e.fixed
	a[e.axis], b[e.axis] = e.from, e.to
	return s.lattice(a), s.lattice(b)
}

// EdgeVertices returns the vertex ids at both ends of edge id.
func (s *Shape) EdgeVertices(id int) []int {
	e := s.topology().edges[id]
	var out []int
	for _, v := range []int{e.v0, e.v1} {
		if v >= 0 {
			out = append(out, v)
		}
	}
	return out
}

// EdgeLength returns the length of edge id.
func (s *Shape) EdgeLength(id int) float64 {
	a, b := s.EdgeEnds(id)
	return a.Dist(b)
}

// EdgeCoG returns the centre of edge id.
func (s *Shape) EdgeCoG(id int) Vec3 {
	a, b := s.EdgeEnds(id)
	return a.Add(b).Scale(0.5)
}

// EdgeType returns the curve type of edge id. All cell edges are lines.
func (s *Shape) EdgeType(int) CurveType { return CurveLine }

// EdgeFaces returns the faces adjacent to edge id.
func (s *Shape) EdgeFaces(id int) []int {
	return append([]int(nil), s.topology().edges[id].faces...)
}

// EdgeIsFaceBoundary reports whether the edge bounds at least one face.
func (s *Shape) EdgeIsFaceBoundary(id int) bool {
	return len(s.topology().edges[id].faces) > 0
}

// EdgeSolids returns the solids the edge lies on.
func (s *Shape) EdgeSolids(id int) []int {
	t := s.topology()
	var out []int
	for _, f := range t.edges[id].faces {
		for _, so := range t.faceSolids[f] {
			if !containsInt(out, so) {
				out = append(out, so)
			}
		}
	}
	return out
}

// FaceNormal returns the outward unit normal of face id.
func (s *Shape) FaceNormal(id int) Vec3 {
	f := s.topology().faces[id]
	var n Vec3
	n[f.axis] = f.orient
	return n
}

// FaceType returns the surface type of face id. All cell faces are planes.
func (s *Shape) FaceType(int) SurfaceType { return SurfacePlane }

func (s *Shape) facetRect(f facet) (lo, hi Vec3) {
	u, v := others(f.axis)
	lo[f.axis] = s.axes[f.axis][f.plane]
	hi[f.axis] = lo[f.axis]
	lo[u], hi[u] = s.axes[u][f.u], s.axes[u][f.u+1]
	lo[v], hi[v] = s.axes[v][f.v], s.axes[v][f.v+1]
	return lo, hi
}

func (s *Shape) facetArea(f facet) float64 {
	lo, hi := s.facetRect(f)
	u, v := others(f.axis)
	return (hi[u] - lo[u]) * (hi[v] - lo[v])
}

// FaceArea returns the area of face id.
func (s *Shape) FaceArea(id int) float64 {
	var a float64
	for _, f := range s.topology().faces[id].facets {
		a += s.facetArea(f)
	}
	return a
}

// FaceCoG returns the area centroid of face id.
func (s *Shape) FaceCoG(id int) Vec3 {
	var a float64
	var m Vec3
	for _, f := range s.topology().faces[id].facets {
		lo, hi := s.facetRect(f)
		fa := s.facetArea(f)
		a += fa
		m = m.Add(lo.Add(hi).Scale(0.5 * fa))
	}
	return m.Scale(1 / a)
}

// FaceBounds returns the bounding rectangle of face id.
func (s *Shape) FaceBounds(id int) (lo, hi Vec3) {
	first := true
	for _, f := range s.topology().faces[id].facets {
		a, b := s.facetRect(f)
		if first {
			lo, hi, first = a, b, false
			continue
		}
		for d := 0; d < 3; d++ {
			lo[d] = math.Min(lo[d], a[d])
			hi[d] = math.Max(hi[d], b[d])
		}
	}
	return lo, hi
}

// FaceContains reports whether point p lies on face id (within tol).
func (s *Shape) FaceContains(id int, p Vec3, tol float64) bool {
	for _, f := range s.topology().faces[id].facets {
		lo, hi := s.facetRect(f)
		inside := true
		for d := 0; d < 3; d++ {
			if p[d] < lo[d]-tol || p[d] > hi[d]+tol {
				inside = false
				break
			}
		}
		if inside {
			return true
		}
	}
	return false
}

// FaceEdges returns the edges bounding face id.
func (s *Shape) FaceEdges(id int) []int {
	return append([]int(nil), s.topology().faces[id].edges...)
}

// FaceVertices returns the vertices on the boundary of face id.
func (s *Shape) FaceVertices(id int) []int {
	v := append([]int(nil), s.topology().faces[id].verts...)
	sort.Ints(v)
	return v
}

// FaceSolids returns the solid a face belongs to.
func (s *Shape) FaceSolids(id int) []int {
	return append([]int(nil), s.topology().faceSolids[id]...)
}

// AdjacentFaces returns faces sharing an edge with face id.
func (s *Shape) AdjacentFaces(id int) []int {
	t := s.topology()
	var out []int
	for _, e := range t.faces[id].edges {
		for _, f := range t.edges[e].faces {
			if f != id && !containsInt(out, f) {
				out = append(out, f)
			}
		}
	}
	sort.Ints(out)
	return out
}

// SolidVolume returns the volume of solid id.
func (s *Shape) SolidVolume(id int) float64 {
	var v float64
	for _, c := range s.topology().solids[id] {
		v += cellVolume(s, c)
	}
	return v
}

// SolidCoG returns the centre of volume of solid id.
func (s *Shape) SolidCoG(id int) Vec3 {
	return s.centroid(s.topology().solids[id])
}

// SolidContains reports whether p lies inside or on solid id.
func (s *Shape) SolidContains(id int, p Vec3, tol float64) bool {
	for _, c := range s.topology().solids[id] {
		lo, hi := s.cellMin(c), s.cellMax(c)
		inside := true
		for d := 0; d < 3; d++ {
			if p[d] < lo[d]-tol || p[d] > hi[d]+tol {
				inside = false
				break
			}
		}
		if inside {
			return true
		}
	}
	return false
}

// SolidBounds returns the bounding box of solid id.
func (s *Shape) SolidBounds(id int) (lo, hi Vec3) {
	cells := s.topology().solids[id]
	lo, hi = s.cellMin(cells[0]), s.cellMax(cells[0])
	for _, c := range cells[1:] {
		a, b := s.cellMin(c), s.cellMax(c)
		for d := 0; d < 3; d++ {
			lo[d] = math.Min(lo[d], a[d])
			hi[d] = math.Max(hi[d], b[d])
		}
	}
	return lo, hi
}

func cellVolume(s *Shape, c [3]int) float64 {
	d := s.cellMax(c).Sub(s.cellMin(c))
	return d[0] * d[1] * d[2]
}

func (s *Shape) centroid(cells [][3]int) Vec3 {
	var v float64
	var m Vec3
	for _, c := range cells {
		cv := cellVolume(s, c)
		v += cv
		m = m.Add(s.cellMin(c).Add(s.cellMax(c)).Scale(0.5 * cv))
	}
	if v == 0 {
		return m
	}
	return m.Scale(1 / v)
}

// Volume returns the total volume.
func (s *Shape) Volume() float64 {
	var v float64
	s.eachCell(func(c [3]int) { v += cellVolume(s, c) })
	return v
}

// CoG returns the centre of volume.
func (s *Shape) CoG() Vec3 {
	var cells [][3]int
	s.eachCell(func(c [3]int) { cells = append(cells, c) })
	return s.centroid(cells)
}

// SurfaceArea returns the total boundary area.
func (s *Shape) SurfaceArea() float64 {
	var a float64
	for i := range s.topology().faces {
		a += s.FaceArea(i)
	}
	return a
}

// SurfaceCoG returns the area centroid of the boundary.
func (s *Shape) SurfaceCoG() Vec3 {
	var a float64
	var m Vec3
	for i := range s.topology().faces {
		fa := s.FaceArea(i)
		a += fa
		m = m.Add(s.FaceCoG(i).Scale(fa))
	}
	if a == 0 {
		return m
	}
	return m.Scale(1 / a)
}

// SurfaceInertiaAxes returns the principal axes of the area distribution of
// the boundary about its centroid, ordered by decreasing spread.
func (s *Shape) SurfaceInertiaAxes() [3]Vec3 {
	c := s.SurfaceCoG()
	var cov Mat3
	for _, fc := range s.topology().faces {
		for _, f := range fc.facets {
			lo, hi := s.facetRect(f)
			a := s.facetArea(f)
			r := lo.Add(hi).Scale(0.5).Sub(c)
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					cov[i][j] += a * r[i] * r[j]
				}
				l := hi[i] - lo[i]
				cov[i][i] += a * l * l / 12
			}
		}
	}
	vals, vecs := eigenSym(cov)
	order := []int{0, 1, 2}
	sort.SliceStable(order, func(a, b int) bool { return vals[order[a]] > vals[order[b]] })
	var out [3]Vec3
	for n, col := range order {
		v := Vec3{vecs[0][col], vecs[1][col], vecs[2][col]}.Unit()
		// fix sign so the dominant component is positive
		dom := 0
		for d := 1; d < 3; d++ {
			if math.Abs(v[d]) > math.Abs(v[dom]) {
				dom = d
			}
		}
		if v[dom] < 0 {
			v = v.Scale(-1)
		}
		out[n] = v
	}
	return out
}

// Inertia returns the inertia tensor about the centre of volume for unit
// density.
func (s *Shape) Inertia() Mat3 {
	cog := s.CoG()
	var I Mat3
	s.eachCell(func(c [3]int) {
		lo, hi := s.cellMin(c), s.cellMax(c)
		d := hi.Sub(lo)
		m := d[0] * d[1] * d[2]
		r := lo.Add(hi).Scale(0.5).Sub(cog)
		I[0][0] += m * (d[1]*d[1] + d[2]*d[2]) / 12
		I[1][1] += m * (d[0]*d[0] + d[2]*d[2]) / 12
		I[2][2] += m * (d[0]*d[0] + d[1]*d[1]) / 12
		r2 := r.Dot(r)
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				if i == j {
					I[i][j] += m * (r2 - r[i]*r[j])
				} else {
					I[i][j] -= m * r[i] * r[j]
				}
			}
		}
	})
	return I
}

// BoundingBox returns the axis-aligned bounds enlarged by tol on every side.
func (s *Shape) BoundingBox(tol float64) (lo, hi Vec3) {
	if s.IsEmpty() {
		return lo, hi
	}
	for d := 0; d < 3; d++ {
		lo[d] = s.axes[d][0] - tol
		hi[d] = s.axes[d][len(s.axes[d])-1] + tol
	}
	return lo, hi
}

// Rect is an axis-aligned rectangle lying in a plane normal to one axis.
type Rect struct {
	Lo, Hi Vec3
}

// Section returns the cross-section of the shape with the plane normal to
// axis at coordinate x, as a list of rectangles.
func (s *Shape) Section(axis int, x float64) []Rect {
	if s.IsEmpty() {
		return nil
	}
	ax := s.axes[axis]
	if x < ax[0] || x > ax[len(ax)-1] {
		return nil
	}
	slab := sort.SearchFloat64s(ax, x)
	if slab >= len(ax) || ax[slab] > x {
		slab--
	}
	if slab >= s.n[axis] {
		slab = s.n[axis] - 1
	}
	u, v := others(axis)
	var out []Rect
	for b := 0; b < s.n[v]; b++ {
		for a := 0; a < s.n[u]; a++ {
			var c [3]int
			c[axis], c[u], c[v] = slab, a, b
			if !s.occupied(c) {
				continue
			}
			lo, hi := s.cellMin(c), s.cellMax(c)
			lo[axis], hi[axis] = x, x
			out = append(out, Rect{Lo: lo, Hi: hi})
		}
	}
	return out
}

// RayHit returns the smallest t > tMin at which p + t·dir enters an
// occupied cell, or ok=false.
func (s *Shape) RayHit(p, dir Vec3, tMin float64) (t float64, ok bool) {
	best := math.Inf(1)
	s.eachCell(func(c [3]int) {
		lo, hi := s.cellMin(c), s.cellMax(c)
		t0, t1 := math.Inf(-1), math.Inf(1)
		for d := 0; d < 3; d++ {
			if math.Abs(dir[d]) < 1e-15 {
				if p[d] < lo[d] || p[d] > hi[d] {
					return
				}
				continue
			}
			a := (lo[d] - p[d]) / dir[d]
			b := (hi[d] - p[d]) / dir[d]
			if a > b {
				a, b = b, a
			}
			t0 = math.Max(t0, a)
			t1 = math.Min(t1, b)
		}
		if t0 > t1 || t1 <= tMin {
			return
		}
		enter := math.Max(t0, tMin)
		if enter < best {
			best = enter
		}
	})
	if math.IsInf(best, 1) {
		return 0, false
	}
	return best, true
}

// Occludes reports whether the open segment from p towards p + dir·∞
// passes through the interior of the shape.
func (s *Shape) Occludes(p, dir Vec3, eps float64) bool {
	u := dir.Unit()
	found := false
	s.eachCell(func(c [3]int) {
		if found {
			return
		}
		lo, hi := s.cellMin(c), s.cellMax(c)
		// shrink the cell so grazing rays along faces do not count
		for d := 0; d < 3; d++ {
			lo[d] += eps
			hi[d] -= eps
		}
		t0, t1 := eps, math.Inf(1)
		for d := 0; d < 3; d++ {
			if math.Abs(u[d]) < 1e-15 {
				if p[d] <= lo[d] || p[d] >= hi[d] {
					return
				}
				continue
			}
			a := (lo[d] - p[d]) / u[d]
			b := (hi[d] - p[d]) / u[d]
			if a > b {
				a, b = b, a
			}
			t0 = math.Max(t0, a)
			t1 = math.Min(t1, b)
		}
		if t0 < t1 {
			found = true
		}
	})
	return found
}

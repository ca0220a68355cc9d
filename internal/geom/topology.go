package geom

// CurveType classifies edge geometry.
type CurveType int

const (
	CurveLine CurveType = iota
	CurveCircle
	CurveEllipse
	CurveHyperbola
	CurveParabola
	CurveBezier
	CurveBSpline
	CurveOther
)

// SurfaceType classifies face geometry.
type SurfaceType int

const (
	SurfacePlane SurfaceType = iota
	SurfaceCylinder
	SurfaceCone
	SurfaceSphere
	SurfaceTorus
	SurfaceBezier
	SurfaceBSpline
	SurfaceOfRevolution
	SurfaceOfExtrusion
	SurfaceOffset
	SurfaceOther
)

type edge struct {
	axis   int
	fixed  [3]int // lattice coordinates; fixed[axis] unused
	from   int    // lattice index along axis
	to     int
	v0, v1 int
	faces  []int
}

type facet struct {
	axis  int
	plane int
	u, v  int // cell indices along the two other axes
}

type face struct {
	axis   int
	plane  int
	orient float64
	facets []facet
	edges  []int
	verts  []int
}

type topology struct {
	vertices   [][3]int
	vertexAt   map[[3]int]int
	edges      []edge
	faces      []face
	facetFace  map[facet]int
	solids     [][][3]int
	cellSolid  []int
	faceSolids [][]int
}

func (s *Shape) topology() *topology {
	s.topoOnce.Do(func() { s.topo = buildTopology(s) })
	return s.topo
}

func buildTopology(s *Shape) *topology {
	t := &topology{vertexAt: map[[3]int]int{}, facetFace: map[facet]int{}}
	if s.IsEmpty() {
		return t
	}
	t.findVertices(s)
	t.findEdges(s)
	t.findFaces(s)
	t.linkEdgesFaces(s)
	t.findSolids(s)
	return t
}

// octants returns the occupancy of the 8 cells around lattice point p,
// indexed [dx][dy][dz].
func (s *Shape) octants(p [3]int) (o [2][2][2]bool) {
	for a := 0; a < 2; a++ {
		for b := 0; b < 2; b++ {
			for c := 0; c < 2; c++ {
				o[a][b][c] = s.occupied([3]int{p[0] - 1 + a, p[1] - 1 + b, p[2] - 1 + c})
			}
		}
	}
	return o
}

func invariantAlong(o [2][2][2]bool, d int) bool {
	for a := 0; a < 2; a++ {
		for b := 0; b < 2; b++ {
			var x, y bool
			switch d {
			case 0:
				x, y = o[0][a][b], o[1][a][b]
			case 1:
				x, y = o[a][0][b], o[a][1][b]
			default:
				x, y = o[a][b][0], o[a][b][1]
			}
			if x != y {
				return false
			}
		}
	}
	return true
}

func (t *topology) findVertices(s *Shape) {
	for k := 0; k <= s.n[2]; k++ {
		for j := 0; j <= s.n[1]; j++ {
			for i := 0; i <= s.n[0]; i++ {
				p := [3]int{i, j, k}
				o := s.octants(p)
				if !invariantAlong(o, 0) && !invariantAlong(o, 1) && !invariantAlong(o, 2) {
					t.vertexAt[p] = len(t.vertices)
					t.vertices = append(t.vertices, p)
				}
			}
		}
	}
}

// quadrants returns the occupancy of the 4 cells around the unit segment
// starting at lattice point p along axis d, indexed [u][v] over others(d).
func (s *Shape) quadrants(d int, p [3]int) (q [2][2]bool) {
	u, v := others(d)
	for a := 0; a < 2; a++ {
		for b := 0; b < 2; b++ {
			c := p
			c[u] = p[u] - 1 + a
			c[v] = p[v] - 1 + b
			q[a][b] = s.occupied(c)
		}
	}
	return q
}

func isCrease(q [2][2]bool) bool {
	invU := q[0][0] == q[1][0] && q[0][1] == q[1][1]
	invV := q[0][0] == q[0][1] && q[1][0] == q[1][1]
	return !invU && !invV
}

func (t *topology) findEdges(s *Shape) {
	for d := 0; d < 3; d++ {
		u, v := others(d)
		for b := 0; b <= s.n[v]; b++ {
			for a := 0; a <= s.n[u]; a++ {
				start := -1
				for x := 0; x <= s.n[d]; x++ {
					var p [3]int
					p[d], p[u], p[v] = x, a, b
					crease := x < s.n[d] && isCrease(s.quadrants(d, p))
					_, atVertex := t.vertexAt[p]
					if start >= 0 && (atVertex || !crease) {
						t.addEdge(d, p, start, x)
						start = -1
					}
					if crease && start < 0 {
						start = x
					}
				}
			}
		}
	}
}

func (t *topology) addEdge(d int, p [3]int, from, to int) {
	e := edge{axis: d, fixed: p, from: from, to: to, v0: -1, v1: -1}
	a, b := p, p
	a[d], b[d] = from, to
	if id, ok := t.vertexAt[a]; ok {
		e.v0 = id
	}
	if id, ok := t.vertexAt[b]; ok {
		e.v1 = id
	}
	t.edges = append(t.edges, e)
}

func (s *Shape) boundaryOrient(f facet) float64 {
	var lo, hi [3]int
	u, v := others(f.axis)
	lo[f.axis], hi[f.axis] = f.plane-1, f.plane
	lo[u], hi[u] = f.u, f.u
	lo[v], hi[v] = f.v, f.v
	a, b := s.occupied(lo), s.occupied(hi)
	switch {
	case a && !b:
		return 1
	case b && !a:
		return -1
	}
	return 0
}

func (t *topology) findFaces(s *Shape) {
	for d := 0; d < 3; d++ {
		u, v := others(d)
		for p := 0; p <= s.n[d]; p++ {
			for fv := 0; fv < s.n[v]; fv++ {
				for fu := 0; fu < s.n[u]; fu++ {
					seed := facet{axis: d, plane: p, u: fu, v: fv}
					if _, seen := t.facetFace[seed]; seen {
						continue
					}
					orient := s.boundaryOrient(seed)
					if orient == 0 {
						continue
					}
					id := len(t.faces)
					fc := face{axis: d, plane: p, orient: orient}
					stack := []facet{seed}
					t.facetFace[seed] = id
					for len(stack) > 0 {
						cur := stack[len(stack)-1]
						stack = stack[:len(stack)-1]
						fc.facets = append(fc.facets, cur)
						for _, nb := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
							nf := facet{axis: d, plane: p, u: cur.u + nb[0], v: cur.v + nb[1]}
							if nf.u < 0 || nf.v < 0 || nf.u >= s.n[u] || nf.v >= s.n[v] {
								continue
							}
							if _, seen := t.facetFace[nf]; seen {
								continue
							}
							if s.boundaryOrient(nf) != orient {
								continue
							}
							t.facetFace[nf] = id
							stack = append(stack, nf)
						}
					}
					t.faces = append(t.faces, fc)
				}
			}
		}
	}
}

// linkEdgesFaces records, for every edge, the faces touching its first
// segment, and derives face edge and vertex lists from it.
func (t *topology) linkEdgesFaces(s *Shape) {
	for ei := range t.edges {
		e := &t.edges[ei]
		d := e.axis
		u, v := others(d)
		seg := e.fixed
		seg[d] = e.from
		var cands []facet
		// facets in the plane normal to u through the line
		for _, dv := range []int{-1, 0} {
			c := seg
			c[v] = seg[v] + dv
			cands = append(cands, makeFacet(u, seg[u], c))
		}
		// facets in the plane normal to v through the line
		for _, du := range []int{-1, 0} {
			c := seg
			c[u] = seg[u] + du
			cands = append(cands, makeFacet(v, seg[v], c))
		}
		seen := map[int]bool{}
		for _, f := range cands {
			if id, ok := t.facetFace[f]; ok && !seen[id] {
				seen[id] = true
				e.faces = append(e.faces, id)
			}
		}
		for _, fid := range e.faces {
			fc := &t.faces[fid]
			fc.edges = append(fc.edges, ei)
			for _, vid := range []int{e.v0, e.v1} {
				if vid >= 0 && !containsInt(fc.verts, vid) {
					fc.verts = append(fc.verts, vid)
				}
			}
		}
	}
}

// makeFacet builds the facet in the plane normal to axis at lattice index
// plane, for the cell coordinates c (c[axis] is ignored).
func makeFacet(axis, plane int, c [3]int) facet {
	u, v := others(axis)
	return facet{axis: axis, plane: plane, u: c[u], v: c[v]}
}

func (t *topology) findSolids(s *Shape) {
	t.cellSolid = make([]int, len(s.cells))
	for i := range t.cellSolid {
		t.cellSolid[i] = -1
	}
	s.eachCell(func(c [3]int) {
		if t.cellSolid[s.index(c[0], c[1], c[2])] >= 0 {
			return
		}
		id := len(t.solids)
		var members [][3]int
		stack := [][3]int{c}
		t.cellSolid[s.index(c[0], c[1], c[2])] = id
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			members = append(members, cur)
			for d := 0; d < 3; d++ {
				for _, step := range []int{-1, 1} {
					nb := cur
					nb[d] += step
					if !s.occupied(nb) {
						continue
					}
					idx := s.index(nb[0], nb[1], nb[2])
					if t.cellSolid[idx] >= 0 {
						continue
					}
					t.cellSolid[idx] = id
					stack = append(stack, nb)
				}
			}
		}
		t.solids = append(t.solids, members)
	})

	t.faceSolids = make([][]int, len(t.faces))
	for fid, fc := range t.faces {
		f := fc.facets[0]
		u, v := others(f.axis)
		var c [3]int
		c[u], c[v] = f.u, f.v
		c[f.axis] = f.plane
		if fc.orient > 0 {
			c[f.axis] = f.plane - 1
		}
		t.faceSolids[fid] = []int{t.cellSolid[s.index(c[0], c[1], c[2])]}
	}
}

func containsInt(xs []int, x int) bool {
	for _, y := range xs {
		if y == x {
			return true
		}
	}
	return false
}

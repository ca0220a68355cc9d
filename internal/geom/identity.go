package geom

import "math"

// DefaultTolerance is the geometric comparison tolerance used by identity
// and coincidence tests.
const DefaultTolerance = 1e-7

// IsIdentical reports whether entity ia of s and entity ib of o have the
// same geometry. Orientation is ignored: reversed edges and faces with
// opposite normals match.
func IsIdentical(s *Shape, ia int, o *Shape, ib int, k Kind, tol float64) bool {
	switch k {
	case Vertex:
		return s.VertexLocation(ia).ApproxEqual(o.VertexLocation(ib), tol)
	case Edge:
		a0, a1 := s.EdgeEnds(ia)
		b0, b1 := o.EdgeEnds(ib)
		return (a0.ApproxEqual(b0, tol) && a1.ApproxEqual(b1, tol)) ||
			(a0.ApproxEqual(b1, tol) && a1.ApproxEqual(b0, tol))
	case Face:
		if math.Abs(math.Abs(s.FaceNormal(ia).Dot(o.FaceNormal(ib)))-1) > tol {
			return false
		}
		if math.Abs(s.FaceArea(ia)-o.FaceArea(ib)) > tol*math.Max(1, s.FaceArea(ia)) {
			return false
		}
		alo, ahi := s.FaceBounds(ia)
		blo, bhi := o.FaceBounds(ib)
		return alo.ApproxEqual(blo, tol) && ahi.ApproxEqual(bhi, tol) &&
			s.FaceCoG(ia).ApproxEqual(o.FaceCoG(ib), tol)
	case Solid:
		if math.Abs(s.SolidVolume(ia)-o.SolidVolume(ib)) > tol*math.Max(1, s.SolidVolume(ia)) {
			return false
		}
		alo, ahi := s.SolidBounds(ia)
		blo, bhi := o.SolidBounds(ib)
		return alo.ApproxEqual(blo, tol) && ahi.ApproxEqual(bhi, tol) &&
			s.SolidCoG(ia).ApproxEqual(o.SolidCoG(ib), tol)
	}
	return false
}

// PointOnEdge reports whether p lies on edge id within tol.
func (s *Shape) PointOnEdge(id int, p Vec3, tol float64) bool {
	a, b := s.EdgeEnds(id)
	ab := b.Sub(a)
	l2 := ab.Dot(ab)
	if l2 == 0 {
		return p.Dist(a) <= tol
	}
	t := p.Sub(a).Dot(ab) / l2
	if t < -tol || t > 1+tol {
		return false
	}
	return a.Add(ab.Scale(t)).Dist(p) <= tol
}

// EdgeLiesOn reports whether edge ia of s lies on one of the listed edges
// of o.
func EdgeLiesOn(s *Shape, ia int, o *Shape, edges []int, tol float64) bool {
	a0, a1 := s.EdgeEnds(ia)
	mid := a0.Add(a1).Scale(0.5)
	for _, e := range edges {
		if o.PointOnEdge(e, a0, tol) && o.PointOnEdge(e, a1, tol) && o.PointOnEdge(e, mid, tol) {
			return true
		}
	}
	return false
}

// FaceLiesOn reports whether face ia of s lies in one of the listed faces
// of o: same plane, with every corner and every facet centre inside it.
func FaceLiesOn(s *Shape, ia int, o *Shape, faces []int, tol float64) bool {
	n := s.FaceNormal(ia)
	var pts []Vec3
	for _, v := range s.FaceVertices(ia) {
		pts = append(pts, s.VertexLocation(v))
	}
	for _, f := range s.topology().faces[ia].facets {
		lo, hi := s.facetRect(f)
		pts = append(pts, lo.Add(hi).Scale(0.5))
	}
	for _, f := range faces {
		if math.Abs(math.Abs(n.Dot(o.FaceNormal(f)))-1) > tol {
			continue
		}
		all := true
		for _, p := range pts {
			if !o.FaceContains(f, p, tol) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

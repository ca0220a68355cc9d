package cad

import (
	"fmt"
	"math"

	"github.com/vk/iscadgo/internal/geom"
)

var curvePredicates = map[string]geom.CurveType{
	"isLine":         geom.CurveLine,
	"isCircle":       geom.CurveCircle,
	"isEllipse":      geom.CurveEllipse,
	"isHyperbola":    geom.CurveHyperbola,
	"isParabola":     geom.CurveParabola,
	"isBezierCurve":  geom.CurveBezier,
	"isBSplineCurve": geom.CurveBSpline,
	"isOtherCurve":   geom.CurveOther,
}

var surfacePredicates = map[string]geom.SurfaceType{
	"isPlane":               geom.SurfacePlane,
	"isCylinder":            geom.SurfaceCylinder,
	"isCone":                geom.SurfaceCone,
	"isSphere":              geom.SurfaceSphere,
	"isTorus":               geom.SurfaceTorus,
	"isBezierSurface":       geom.SurfaceBezier,
	"isBSplineSurface":      geom.SurfaceBSpline,
	"isSurfaceOfRevolution": geom.SurfaceOfRevolution,
	"isSurfaceOfExtrusion":  geom.SurfaceOfExtrusion,
	"isOffsetSurface":       geom.SurfaceOffset,
	"isOtherSurface":        geom.SurfaceOther,
}

func isEntityPredicate(k geom.Kind, name string) bool {
	switch k {
	case geom.Edge:
		if _, ok := curvePredicates[name]; ok {
			return true
		}
		switch name {
		case "isFaceBoundary", "isPartOfSolid", "isCoincident":
			return true
		}
	case geom.Face:
		if _, ok := surfacePredicates[name]; ok {
			return true
		}
		switch name {
		case "isPartOfSolid", "isCoincident", "adjacentToEdges", "adjacentToFaces":
			return true
		}
	}
	return false
}

// entityPredicate parses the arguments of a kind-specific predicate whose
// name has been consumed.
func (p *filterParser) entityPredicate(name string) (predNode, error) {
	if ct, ok := curvePredicates[name]; ok && p.kind == geom.Edge {
		return predFunc(func(ec *evalCtx, id int) (bool, error) {
			return ec.shape.EdgeType(id) == ct, nil
		}), nil
	}
	if st, ok := surfacePredicates[name]; ok && p.kind == geom.Face {
		return predFunc(func(ec *evalCtx, id int) (bool, error) {
			return ec.shape.FaceType(id) == st, nil
		}), nil
	}
	if name == "isFaceBoundary" {
		return predFunc(func(ec *evalCtx, id int) (bool, error) {
			return ec.shape.EdgeIsFaceBoundary(id), nil
		}), nil
	}

	idx, err := p.parseSetRef(name == "adjacentToEdges" || name == "adjacentToFaces")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	switch name {
	case "isPartOfSolid":
		return predFunc(func(ec *evalCtx, id int) (bool, error) {
			solids, err := ec.sameParentSet(idx, geom.Solid)
			if err != nil {
				return false, err
			}
			var mine []int
			if ec.kind == geom.Edge {
				mine = ec.shape.EdgeSolids(id)
			} else {
				mine = ec.shape.FaceSolids(id)
			}
			return intersects(mine, solids), nil
		}), nil
	case "isCoincident":
		return predFunc(func(ec *evalCtx, id int) (bool, error) {
			sa, err := ec.setArg(idx)
			if err != nil {
				return false, err
			}
			if sa.set.Kind() != ec.kind {
				return false, fmt.Errorf("%%%d is a %s set, expected %s: %w", idx, sa.set.Kind(), ec.kind, ErrWrongKind)
			}
			if ec.kind == geom.Edge {
				return geom.EdgeLiesOn(ec.shape, id, sa.shape, sa.ids, geom.DefaultTolerance), nil
			}
			return geom.FaceLiesOn(ec.shape, id, sa.shape, sa.ids, geom.DefaultTolerance), nil
		}), nil
	case "adjacentToEdges":
		return predFunc(func(ec *evalCtx, id int) (bool, error) {
			edges, err := ec.sameParentSet(idx, geom.Edge)
			if err != nil {
				return false, err
			}
			return intersects(ec.shape.FaceEdges(id), edges), nil
		}), nil
	case "adjacentToFaces":
		return predFunc(func(ec *evalCtx, id int) (bool, error) {
			faces, err := ec.sameParentSet(idx, geom.Face)
			if err != nil {
				return false, err
			}
			return intersects(ec.shape.AdjacentFaces(id), faces), nil
		}), nil
	}
	return nil, fmt.Errorf("unknown predicate %q", name)
}

func (p *filterParser) inPred(idx int) predNode {
	return predFunc(func(ec *evalCtx, id int) (bool, error) {
		ids, err := ec.sameParentSet(idx, ec.kind)
		if err != nil {
			return false, err
		}
		return containsID(ids, id), nil
	})
}

func (p *filterParser) identicalPred(idx int) predNode {
	return predFunc(func(ec *evalCtx, id int) (bool, error) {
		sa, err := ec.setArg(idx)
		if err != nil {
			return false, err
		}
		if sa.set.Kind() != ec.kind {
			return false, fmt.Errorf("%%%d is a %s set, expected %s: %w", idx, sa.set.Kind(), ec.kind, ErrWrongKind)
		}
		for _, oid := range sa.ids {
			if geom.IsIdentical(ec.shape, id, sa.shape, oid, ec.kind, geom.DefaultTolerance) {
				return true, nil
			}
		}
		return false, nil
	})
}

// radialLen(ax, p0) is the change of distance from the axis through p0
// along ax between the ends of an edge.
func (p *filterParser) radialLen() (qtyNode, error) {
	args, err := p.parseQtyArgs(2)
	if err != nil {
		return nil, fmt.Errorf("radialLen: %w", err)
	}
	return qtyFunc(func(ec *evalCtx, id int) (qval, error) {
		ax, err := vectorOf(args[0], ec, id)
		if err != nil {
			return qval{}, err
		}
		p0, err := vectorOf(args[1], ec, id)
		if err != nil {
			return qval{}, err
		}
		u := ax.Unit()
		if u.Norm() == 0 {
			return qval{}, fmt.Errorf("radialLen axis has zero length")
		}
		radius := func(x geom.Vec3) float64 {
			r := x.Sub(p0)
			return r.Sub(u.Scale(r.Dot(u))).Norm()
		}
		a, b := ec.shape.EdgeEnds(id)
		return num(math.Abs(radius(b) - radius(a))), nil
	}), nil
}

func shapeQty(fn func(s *geom.Shape, id int) (qval, error)) qtyNode {
	return qtyFunc(func(ec *evalCtx, id int) (qval, error) { return fn(ec.shape, id) })
}

var entityQuantities = map[geom.Kind]map[string]qtyNode{
	geom.Vertex: {
		"loc": shapeQty(func(s *geom.Shape, id int) (qval, error) { return vec(s.VertexLocation(id)), nil }),
	},
	geom.Edge: {
		"len": shapeQty(func(s *geom.Shape, id int) (qval, error) { return num(s.EdgeLength(id)), nil }),
		"CoG": shapeQty(func(s *geom.Shape, id int) (qval, error) { return vec(s.EdgeCoG(id)), nil }),
		"start": shapeQty(func(s *geom.Shape, id int) (qval, error) {
			a, _ := s.EdgeEnds(id)
			return vec(a), nil
		}),
		"end": shapeQty(func(s *geom.Shape, id int) (qval, error) {
			_, b := s.EdgeEnds(id)
			return vec(b), nil
		}),
	},
	geom.Face: {
		"area":   shapeQty(func(s *geom.Shape, id int) (qval, error) { return num(s.FaceArea(id)), nil }),
		"normal": shapeQty(func(s *geom.Shape, id int) (qval, error) { return vec(s.FaceNormal(id)), nil }),
		"CoG":    shapeQty(func(s *geom.Shape, id int) (qval, error) { return vec(s.FaceCoG(id)), nil }),
		"cylRadius": shapeQty(func(s *geom.Shape, id int) (qval, error) {
			return qval{}, fmt.Errorf("cylRadius of face %d: face is not a cylinder: %w", id, ErrUnsupported)
		}),
	},
	geom.Solid: {
		"CoG":    shapeQty(func(s *geom.Shape, id int) (qval, error) { return vec(s.SolidCoG(id)), nil }),
		"volume": shapeQty(func(s *geom.Shape, id int) (qval, error) { return num(s.SolidVolume(id)), nil }),
	},
}

func intersects(a, b []int) bool {
	for _, x := range a {
		if containsID(b, x) {
			return true
		}
	}
	return false
}

func containsID(ids []int, id int) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

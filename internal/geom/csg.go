package geom

import "fmt"

type boolOp func(a, b bool) bool

func combine(a, b *Shape, op boolOp) *Shape {
	var axes [3][]float64
	for d := 0; d < 3; d++ {
		axes[d] = mergeCoords(a.axes[d], b.axes[d])
		if len(axes[d]) < 2 {
			return Empty()
		}
	}
	g := newShape(axes, nil)
	g.cells = make([]bool, g.n[0]*g.n[1]*g.n[2])
	for k := 0; k < g.n[2]; k++ {
		for j := 0; j < g.n[1]; j++ {
			for i := 0; i < g.n[0]; i++ {
				c := [3]int{i, j, k}
				mid := g.cellMin(c).Add(g.cellMax(c)).Scale(0.5)
				g.cells[g.index(i, j, k)] = op(a.containsPoint(mid), b.containsPoint(mid))
			}
		}
	}
	return canonical(g.axes, g.cells)
}

// Union returns the point-set union of two shapes.
func Union(a, b *Shape) *Shape {
	return combine(a, b, func(x, y bool) bool { return x || y })
}

// Subtract returns a with b removed.
func Subtract(a, b *Shape) *Shape {
	return combine(a, b, func(x, y bool) bool { return x && !y })
}

// Intersect returns the common part of two shapes.
func Intersect(a, b *Shape) *Shape {
	return combine(a, b, func(x, y bool) bool { return x && y })
}

// HalfSpace returns the part of s on the side (x-p)·n <= 0 of the plane
// through p with normal n. The normal must be axis-aligned.
func HalfSpace(s *Shape, p, n Vec3) (*Shape, error) {
	axis, sign, ok := AxisOf(n)
	if !ok {
		return nil, fmt.Errorf("half space with oblique normal %v: %w", n, ErrUnsupported)
	}
	if s.IsEmpty() {
		return Empty(), nil
	}
	lo, hi := s.BoundingBox(1)
	if sign > 0 {
		hi[axis] = p[axis]
	} else {
		lo[axis] = p[axis]
	}
	if hi[axis]-lo[axis] <= coordEps(lo[axis], hi[axis]) {
		return Empty(), nil
	}
	cut, err := NewBox(lo, hi)
	if err != nil {
		return nil, err
	}
	return Intersect(s, cut), nil
}

// ExtractSolids returns the shape formed by the listed solids of s.
func ExtractSolids(s *Shape, ids []int) (*Shape, error) {
	t := s.topology()
	keep := make(map[int]bool, len(ids))
	for _, id := range ids {
		if id < 0 || id >= len(t.solids) {
			return nil, fmt.Errorf("solid id %d out of range [0,%d)", id, len(t.solids))
		}
		keep[id] = true
	}
	cells := make([]bool, len(s.cells))
	for i, sol := range t.cellSolid {
		cells[i] = sol >= 0 && keep[sol]
	}
	return canonical(s.axes, cells), nil
}

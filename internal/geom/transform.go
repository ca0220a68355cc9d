package geom

import (
	"fmt"
	"math"
)

// Transform is the affine map p' = M·p + T.
type Transform struct {
	M Mat3
	T Vec3
}

// Translation returns a pure translation by v.
func Translation(v Vec3) Transform {
	return Transform{M: Identity(), T: v}
}

// Scaling returns a uniform scaling by f about the origin.
func Scaling(f float64) Transform {
	return Transform{M: Mat3{{f, 0, 0}, {0, f, 0}, {0, 0, f}}}
}

// Rotation returns a rotation by angle (radians) about the axis through p
// with direction dir.
func Rotation(p, dir Vec3, angle float64) Transform {
	u := dir.Unit()
	c, s := math.Cos(angle), math.Sin(angle)
	t := 1 - c
	m := Mat3{
		{t*u[0]*u[0] + c, t*u[0]*u[1] - s*u[2], t*u[0]*u[2] + s*u[1]},
		{t*u[0]*u[1] + s*u[2], t*u[1]*u[1] + c, t*u[1]*u[2] - s*u[0]},
		{t*u[0]*u[2] - s*u[1], t*u[1]*u[2] + s*u[0], t*u[2]*u[2] + c},
	}
	// rotate about p: p' = M(x-p)+p
	return Transform{M: m, T: p.Sub(m.MulVec(p))}
}

// Mirror returns the reflection about the plane through p with normal n.
func Mirror(p, n Vec3) Transform {
	u := n.Unit()
	var m Mat3
	id := Identity()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] = id[i][j] - 2*u[i]*u[j]
		}
	}
	return Transform{M: m, T: p.Sub(m.MulVec(p))}
}

// Then returns the transform applying t first and o second.
func (t Transform) Then(o Transform) Transform {
	return Transform{M: o.M.Mul(t.M), T: o.M.MulVec(t.T).Add(o.T)}
}

// Apply maps a point.
func (t Transform) Apply(p Vec3) Vec3 { return t.M.MulVec(p).Add(t.T) }

// ApplyDir maps a direction (no translation).
func (t Transform) ApplyDir(v Vec3) Vec3 { return t.M.MulVec(v) }

// snap removes rounding noise from matrix entries produced by trigonometry.
func (t Transform) snap() Transform {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			v := t.M[i][j]
			if r := math.Round(v); math.Abs(v-r) < 1e-12 {
				t.M[i][j] = r
			}
		}
	}
	return t
}

// axisMap decomposes M into a signed permutation with per-axis scale. src[r]
// is the source axis feeding target axis r and f[r] the factor.
func (t Transform) axisMap() (src [3]int, f [3]float64, ok bool) {
	used := [3]bool{}
	for r := 0; r < 3; r++ {
		found := -1
		for c := 0; c < 3; c++ {
			if t.M[r][c] != 0 {
				if found >= 0 {
					return src, f, false
				}
				found = c
			}
		}
		if found < 0 || used[found] {
			return src, f, false
		}
		used[found] = true
		src[r], f[r] = found, t.M[r][found]
	}
	return src, f, true
}

// TransformShape applies t to s. Only transforms mapping axes onto axes are
// representable.
func TransformShape(s *Shape, t Transform) (*Shape, error) {
	t = t.snap()
	src, f, ok := t.axisMap()
	if !ok {
		return nil, fmt.Errorf("transform does not map coordinate axes onto coordinate axes: %w", ErrUnsupported)
	}
	if s.IsEmpty() {
		return Empty(), nil
	}
	var axes [3][]float64
	for r := 0; r < 3; r++ {
		in := s.axes[src[r]]
		out := make([]float64, len(in))
		for i, x := range in {
			out[i] = f[r]*x + t.T[r]
		}
		if f[r] < 0 {
			for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
				out[i], out[j] = out[j], out[i]
			}
		}
		axes[r] = out
	}
	g := newShape(axes, nil)
	g.cells = make([]bool, len(s.cells))
	for k := 0; k < g.n[2]; k++ {
		for j := 0; j < g.n[1]; j++ {
			for i := 0; i < g.n[0]; i++ {
				dst := [3]int{i, j, k}
				var from [3]int
				for r := 0; r < 3; r++ {
					idx := dst[r]
					if f[r] < 0 {
						idx = g.n[r] - 1 - idx
					}
					from[src[r]] = idx
				}
				g.cells[g.index(i, j, k)] = s.occupied(from)
			}
		}
	}
	return canonical(g.axes, g.cells), nil
}

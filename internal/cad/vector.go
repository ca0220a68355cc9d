package cad

import (
	"fmt"
	"math"
	"sync"

	"github.com/vk/iscadgo/internal/geom"
)

// Vector is a lazily evaluated 3-vector.
type Vector interface {
	Value() (geom.Vec3, error)
}

// VectorFunc adapts a function to the Vector interface.
type VectorFunc func() (geom.Vec3, error)

func (f VectorFunc) Value() (geom.Vec3, error) { return f() }

// ConstVector is a constant vector.
type ConstVector geom.Vec3

func (c ConstVector) Value() (geom.Vec3, error) { return geom.Vec3(c), nil }

// ParameterVector is a vector whose value can be changed after parsing.
type ParameterVector struct {
	mu sync.RWMutex
	v  geom.Vec3
}

func NewParameterVector(v geom.Vec3) *ParameterVector { return &ParameterVector{v: v} }

func (p *ParameterVector) Value() (geom.Vec3, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.v, nil
}

func (p *ParameterVector) Set(v geom.Vec3) {
	p.mu.Lock()
	p.v = v
	p.mu.Unlock()
}

func values2(a, b Vector) (geom.Vec3, geom.Vec3, error) {
	x, err := a.Value()
	if err != nil {
		return x, x, err
	}
	y, err := b.Value()
	return x, y, err
}

// Components builds a vector from three scalars.
func Components(x, y, z Scalar) Vector {
	return VectorFunc(func() (geom.Vec3, error) {
		var out geom.Vec3
		for i, s := range []Scalar{x, y, z} {
			v, err := s.Value()
			if err != nil {
				return out, err
			}
			out[i] = v
		}
		return out, nil
	})
}

func AddVec(a, b Vector) Vector {
	return VectorFunc(func() (geom.Vec3, error) {
		x, y, err := values2(a, b)
		return x.Add(y), err
	})
}

func SubVec(a, b Vector) Vector {
	return VectorFunc(func() (geom.Vec3, error) {
		x, y, err := values2(a, b)
		return x.Sub(y), err
	})
}

func NegVec(a Vector) Vector {
	return VectorFunc(func() (geom.Vec3, error) {
		x, err := a.Value()
		return x.Scale(-1), err
	})
}

// ScaleVec multiplies v by s.
func ScaleVec(v Vector, s Scalar) Vector {
	return VectorFunc(func() (geom.Vec3, error) {
		x, err := v.Value()
		if err != nil {
			return x, err
		}
		f, err := s.Value()
		return x.Scale(f), err
	})
}

// DivVec divides v by s.
func DivVec(v Vector, s Scalar) Vector {
	return VectorFunc(func() (geom.Vec3, error) {
		x, err := v.Value()
		if err != nil {
			return x, err
		}
		f, err := s.Value()
		if err != nil {
			return x, err
		}
		if f == 0 {
			return x, fmt.Errorf("division by zero")
		}
		return x.Scale(1 / f), nil
	})
}

// Cross is the cross product a × b.
func Cross(a, b Vector) Vector {
	return VectorFunc(func() (geom.Vec3, error) {
		x, y, err := values2(a, b)
		return x.Cross(y), err
	})
}

// Rotate rotates v by angle (radians) around axis, which defaults to EZ.
func Rotate(v Vector, angle Scalar, axis Vector) Vector {
	return VectorFunc(func() (geom.Vec3, error) {
		x, err := v.Value()
		if err != nil {
			return x, err
		}
		a, err := angle.Value()
		if err != nil {
			return x, err
		}
		ax := geom.V(0, 0, 1)
		if axis != nil {
			if ax, err = axis.Value(); err != nil {
				return x, err
			}
		}
		if ax.Norm() == 0 {
			return x, fmt.Errorf("rotation axis has zero length")
		}
		return geom.Rotation(geom.Vec3{}, ax, a).ApplyDir(x), nil
	})
}

// ProjectOnPlane projects point v onto plane d, along dir or along the
// plane normal when dir is nil.
func ProjectOnPlane(v Vector, d Datum, dir Vector) Vector {
	return VectorFunc(func() (geom.Vec3, error) {
		p, err := v.Value()
		if err != nil {
			return p, err
		}
		fr, err := d.Frame()
		if err != nil {
			return p, err
		}
		if fr.Kind != PlaneDatum {
			return p, fmt.Errorf("projection target is a %s, not a plane", fr.Kind)
		}
		n := fr.Dir.Unit()
		along := n
		if dir != nil {
			if along, err = dir.Value(); err != nil {
				return p, err
			}
		}
		den := along.Dot(n)
		if math.Abs(den) < 1e-12 {
			return p, fmt.Errorf("projection direction is parallel to the plane")
		}
		t := fr.Origin.Sub(p).Dot(n) / den
		return p.Add(along.Scale(t)), nil
	})
}

// ProjectOnFeature moves point v along dir until it hits the boundary of
// feature f.
func ProjectOnFeature(v Vector, f *Feature, dir Vector) Vector {
	return VectorFunc(func() (geom.Vec3, error) {
		p, d, err := values2(v, dir)
		if err != nil {
			return p, err
		}
		s, err := f.Shape()
		if err != nil {
			return p, err
		}
		u := d.Unit()
		if u.Norm() == 0 {
			return p, fmt.Errorf("projection direction has zero length")
		}
		t, ok := s.RayHit(p, u, math.Inf(-1))
		if !ok {
			return p, fmt.Errorf("projection of %v along %v misses feature %s", p, d, f.Name())
		}
		return p.Add(u.Scale(t)), nil
	})
}

type shapeQuery func(s *geom.Shape) (geom.Vec3, error)

func featureVector(f *Feature, q shapeQuery) Vector {
	return VectorFunc(func() (geom.Vec3, error) {
		s, err := f.Shape()
		if err != nil {
			return geom.Vec3{}, err
		}
		return q(s)
	})
}

// BBMin is the lower corner of the bounding box of f.
func BBMin(f *Feature) Vector {
	return featureVector(f, func(s *geom.Shape) (geom.Vec3, error) {
		lo, _ := s.BoundingBox(0)
		return lo, nil
	})
}

// BBMax is the upper corner of the bounding box of f.
func BBMax(f *Feature) Vector {
	return featureVector(f, func(s *geom.Shape) (geom.Vec3, error) {
		_, hi := s.BoundingBox(0)
		return hi, nil
	})
}

// CoG is the centre of volume of f.
func CoG(f *Feature) Vector {
	return featureVector(f, func(s *geom.Shape) (geom.Vec3, error) { return s.CoG(), nil })
}

// SurfaceCoG is the area centroid of the boundary of f.
func SurfaceCoG(f *Feature) Vector {
	return featureVector(f, func(s *geom.Shape) (geom.Vec3, error) { return s.SurfaceCoG(), nil })
}

// SurfaceInertiaAxis returns principal axis i (0..2) of the boundary.
func SurfaceInertiaAxis(f *Feature, i int) Vector {
	return featureVector(f, func(s *geom.Shape) (geom.Vec3, error) { return s.SurfaceInertiaAxes()[i], nil })
}

// SingleVertex is the location of the only vertex of f.
func SingleVertex(f *Feature) Vector {
	return featureVector(f, func(s *geom.Shape) (geom.Vec3, error) {
		if n := s.Count(geom.Vertex); n != 1 {
			return geom.Vec3{}, fmt.Errorf("feature %s has %d vertices, expected one", f.Name(), n)
		}
		return s.VertexLocation(0), nil
	})
}

// VertexCoord is the location of the first vertex in a vertex set.
func VertexCoord(fs *FeatureSet) Vector {
	return VectorFunc(func() (geom.Vec3, error) {
		if fs.Kind() != geom.Vertex {
			return geom.Vec3{}, fmt.Errorf("coord needs a vertex set, got %s: %w", fs.Kind(), ErrWrongKind)
		}
		ids, err := fs.IDs()
		if err != nil {
			return geom.Vec3{}, err
		}
		if len(ids) == 0 {
			return geom.Vec3{}, fmt.Errorf("coord of an empty vertex set")
		}
		s, err := fs.Parent().Shape()
		if err != nil {
			return geom.Vec3{}, err
		}
		return s.VertexLocation(ids[0]), nil
	})
}

// CircleCenter is the centre of the first circular edge in the set. The
// cell kernel has no circular edges, so resolution always fails after the
// set itself resolves.
func CircleCenter(fs *FeatureSet) Vector {
	return VectorFunc(func() (geom.Vec3, error) {
		if _, err := fs.IDs(); err != nil {
			return geom.Vec3{}, err
		}
		return geom.Vec3{}, fmt.Errorf("circcenter: edge set contains no circular edge: %w", ErrUnsupported)
	})
}

// PointProperty looks up a named point provided by a feature.
func PointProperty(f *Feature, name string) Vector {
	return VectorFunc(func() (geom.Vec3, error) { return f.PointProp(name) })
}

// VectorProperty looks up a named direction provided by a feature.
func VectorProperty(f *Feature, name string) Vector {
	return VectorFunc(func() (geom.Vec3, error) { return f.VectorProp(name) })
}

// CrankDrive returns the crank pin position p of a crank drive with rod
// length l, crank centre c, crank radius r, rod end p1 and crank axis ax.
func CrankDrive(l Scalar, c Vector, r Scalar, p1, ax Vector) Vector {
	return VectorFunc(func() (geom.Vec3, error) {
		L, err := l.Value()
		if err != nil {
			return geom.Vec3{}, err
		}
		R, err := r.Value()
		if err != nil {
			return geom.Vec3{}, err
		}
		cv, p1v, err := values2(c, p1)
		if err != nil {
			return geom.Vec3{}, err
		}
		axv, err := ax.Value()
		if err != nil {
			return geom.Vec3{}, err
		}
		n := axv.Unit()
		if n.Norm() == 0 {
			return geom.Vec3{}, fmt.Errorf("crank axis has zero length")
		}
		// work in the crank plane: q is p1 projected into it
		d := p1v.Sub(cv)
		h := d.Dot(n)
		q := d.Sub(n.Scale(h))
		D := q.Norm()
		rho2 := L*L - h*h
		if D == 0 || rho2 < 0 {
			return geom.Vec3{}, fmt.Errorf("crank drive has no solution")
		}
		// circle-circle intersection: |x| = R, |x-q| = sqrt(rho2)
		a := (R*R - rho2 + D*D) / (2 * D)
		b2 := R*R - a*a
		if b2 < 0 {
			return geom.Vec3{}, fmt.Errorf("crank drive has no solution")
		}
		e1 := q.Scale(1 / D)
		e2 := n.Cross(e1)
		x := e1.Scale(a).Sub(e2.Scale(math.Sqrt(b2)))
		// of the two solutions keep the one with d × x along the axis
		if d.Cross(x).Dot(n) < 0 {
			x = e1.Scale(a).Add(e2.Scale(math.Sqrt(b2)))
		}
		return cv.Add(x), nil
	})
}

// Slider returns the point on the line p0 + t·dir at distance l from p1,
// taking the larger t.
func Slider(l Scalar, p0, dir, p1 Vector) Vector {
	return VectorFunc(func() (geom.Vec3, error) {
		L, err := l.Value()
		if err != nil {
			return geom.Vec3{}, err
		}
		a, dv, err := values2(p0, dir)
		if err != nil {
			return geom.Vec3{}, err
		}
		b, err := p1.Value()
		if err != nil {
			return geom.Vec3{}, err
		}
		u := dv.Unit()
		if u.Norm() == 0 {
			return geom.Vec3{}, fmt.Errorf("slider direction has zero length")
		}
		w := a.Sub(b)
		// |w + t u|² = L²
		bb := w.Dot(u)
		cc := w.Dot(w) - L*L
		disc := bb*bb - cc
		if disc < 0 {
			return geom.Vec3{}, fmt.Errorf("slider has no solution")
		}
		t := -bb + math.Sqrt(disc)
		return a.Add(u.Scale(t)), nil
	})
}

package cad

import (
	"fmt"
	"math"

	"github.com/vk/iscadgo/internal/geom"
)

// DatumKind distinguishes reference frames.
type DatumKind int

const (
	PointDatum DatumKind = iota
	AxisDatum
	PlaneDatum
)

func (k DatumKind) String() string {
	switch k {
	case PointDatum:
		return "point"
	case AxisDatum:
		return "axis"
	case PlaneDatum:
		return "plane"
	}
	return fmt.Sprintf("DatumKind(%d)", int(k))
}

// Frame is an evaluated datum. Dir is the axis direction or the plane
// normal; Up fixes the in-plane orientation of planes.
type Frame struct {
	Kind   DatumKind
	Origin geom.Vec3
	Dir    geom.Vec3
	Up     geom.Vec3
}

// Datum is a lazily evaluated reference frame.
type Datum interface {
	Frame() (Frame, error)
}

// DatumFunc adapts a function to the Datum interface.
type DatumFunc func() (Frame, error)

func (f DatumFunc) Frame() (Frame, error) { return f() }

// ConstDatum is a fixed frame.
type ConstDatum Frame

func (c ConstDatum) Frame() (Frame, error) { return Frame(c), nil }

// defaultUp picks an in-plane direction perpendicular to n.
func defaultUp(n geom.Vec3) geom.Vec3 {
	ref := geom.V(0, 0, 1)
	if math.Abs(n.Unit().Dot(ref)) > 0.9 {
		ref = geom.V(0, 1, 0)
	}
	return ref.Sub(n.Unit().Scale(ref.Dot(n.Unit()))).Unit()
}

func planeFrame(p, n, up geom.Vec3) (Frame, error) {
	if n.Norm() == 0 {
		return Frame{}, fmt.Errorf("plane normal has zero length")
	}
	n = n.Unit()
	if up.Norm() == 0 {
		up = defaultUp(n)
	} else {
		up = up.Sub(n.Scale(up.Dot(n)))
		if up.Norm() < 1e-12 {
			return Frame{}, fmt.Errorf("plane up direction is parallel to the normal")
		}
		up = up.Unit()
	}
	return Frame{Kind: PlaneDatum, Origin: p, Dir: n, Up: up}, nil
}

// Plane is the plane through p with normal n.
func Plane(p, n Vector) Datum {
	return DatumFunc(func() (Frame, error) {
		pv, nv, err := values2(p, n)
		if err != nil {
			return Frame{}, err
		}
		return planeFrame(pv, nv, geom.Vec3{})
	})
}

// SPlane is the plane through p with normal n and in-plane direction up.
func SPlane(p, n, up Vector) Datum {
	return DatumFunc(func() (Frame, error) {
		pv, nv, err := values2(p, n)
		if err != nil {
			return Frame{}, err
		}
		uv, err := up.Value()
		if err != nil {
			return Frame{}, err
		}
		return planeFrame(pv, nv, uv)
	})
}

// TPlane is the plane through three points, with p1 as origin and p2-p1 as
// up direction.
func TPlane(p1, p2, p3 Vector) Datum {
	return DatumFunc(func() (Frame, error) {
		a, b, err := values2(p1, p2)
		if err != nil {
			return Frame{}, err
		}
		c, err := p3.Value()
		if err != nil {
			return Frame{}, err
		}
		n := b.Sub(a).Cross(c.Sub(a))
		if n.Norm() < 1e-12 {
			return Frame{}, fmt.Errorf("points of plane are collinear")
		}
		return planeFrame(a, n, b.Sub(a))
	})
}

// RefPt is a point datum.
func RefPt(p Vector) Datum {
	return DatumFunc(func() (Frame, error) {
		pv, err := p.Value()
		return Frame{Kind: PointDatum, Origin: pv}, err
	})
}

// RefAxis is the axis through p along dir.
func RefAxis(p, dir Vector) Datum {
	return DatumFunc(func() (Frame, error) {
		pv, dv, err := values2(p, dir)
		if err != nil {
			return Frame{}, err
		}
		if dv.Norm() == 0 {
			return Frame{}, fmt.Errorf("axis direction has zero length")
		}
		return Frame{Kind: AxisDatum, Origin: pv, Dir: dv.Unit()}, nil
	})
}

func frames(kinds []DatumKind, ds ...Datum) ([]Frame, error) {
	out := make([]Frame, len(ds))
	for i, d := range ds {
		fr, err := d.Frame()
		if err != nil {
			return nil, err
		}
		if fr.Kind != kinds[i] {
			return nil, fmt.Errorf("operand %d is a %s datum, expected %s", i+1, fr.Kind, kinds[i])
		}
		out[i] = fr
	}
	return out, nil
}

// XsecAxisPlane is the intersection point of an axis and a plane.
func XsecAxisPlane(axis, plane Datum) Datum {
	return DatumFunc(func() (Frame, error) {
		fs, err := frames([]DatumKind{AxisDatum, PlaneDatum}, axis, plane)
		if err != nil {
			return Frame{}, err
		}
		ax, pl := fs[0], fs[1]
		den := ax.Dir.Dot(pl.Dir)
		if math.Abs(den) < 1e-12 {
			return Frame{}, fmt.Errorf("axis is parallel to plane")
		}
		t := pl.Origin.Sub(ax.Origin).Dot(pl.Dir) / den
		return Frame{Kind: PointDatum, Origin: ax.Origin.Add(ax.Dir.Scale(t))}, nil
	})
}

// XsecPlanePlane is the intersection axis of two planes.
func XsecPlanePlane(a, b Datum) Datum {
	return DatumFunc(func() (Frame, error) {
		fs, err := frames([]DatumKind{PlaneDatum, PlaneDatum}, a, b)
		if err != nil {
			return Frame{}, err
		}
		n1, n2 := fs[0].Dir, fs[1].Dir
		dir := n1.Cross(n2)
		if dir.Norm() < 1e-12 {
			return Frame{}, fmt.Errorf("planes are parallel")
		}
		// point on both planes closest to the first origin
		d1, d2 := n1.Dot(fs[0].Origin), n2.Dot(fs[1].Origin)
		p := n2.Cross(dir).Scale(d1).Add(dir.Cross(n1).Scale(d2)).Scale(1 / dir.Dot(dir))
		return Frame{Kind: AxisDatum, Origin: p, Dir: dir.Unit()}, nil
	})
}

// XsecPlanes is the intersection point of three planes.
func XsecPlanes(a, b, c Datum) Datum {
	return DatumFunc(func() (Frame, error) {
		fs, err := frames([]DatumKind{PlaneDatum, PlaneDatum, PlaneDatum}, a, b, c)
		if err != nil {
			return Frame{}, err
		}
		n1, n2, n3 := fs[0].Dir, fs[1].Dir, fs[2].Dir
		det := n1.Dot(n2.Cross(n3))
		if math.Abs(det) < 1e-12 {
			return Frame{}, fmt.Errorf("planes do not meet in a single point")
		}
		d1, d2, d3 := n1.Dot(fs[0].Origin), n2.Dot(fs[1].Origin), n3.Dot(fs[2].Origin)
		p := n2.Cross(n3).Scale(d1).Add(n3.Cross(n1).Scale(d2)).Add(n1.Cross(n2).Scale(d3)).Scale(1 / det)
		return Frame{Kind: PointDatum, Origin: p}, nil
	})
}

// FeatureDatum is a datum provided by a feature.
func FeatureDatum(f *Feature, name string) Datum {
	return DatumFunc(func() (Frame, error) { return f.Datum(name) })
}

// TranslatedDatum moves d by v.
func TranslatedDatum(d Datum, v Vector) Datum {
	return DatumFunc(func() (Frame, error) {
		fr, err := d.Frame()
		if err != nil {
			return fr, err
		}
		off, err := v.Value()
		if err != nil {
			return fr, err
		}
		fr.Origin = fr.Origin.Add(off)
		return fr, nil
	})
}

// DatumOrigin is the origin of d, used where a datum stands for a point.
func DatumOrigin(d Datum) Vector {
	return VectorFunc(func() (geom.Vec3, error) {
		fr, err := d.Frame()
		return fr.Origin, err
	})
}

// DatumDir is the direction of an axis or the normal of a plane.
func DatumDir(d Datum) Vector {
	return VectorFunc(func() (geom.Vec3, error) {
		fr, err := d.Frame()
		if err != nil {
			return geom.Vec3{}, err
		}
		if fr.Kind == PointDatum {
			return geom.Vec3{}, fmt.Errorf("point datum has no direction")
		}
		return fr.Dir, nil
	})
}

// PlaneNormal is the normal of a plane datum.
func PlaneNormal(d Datum) Vector {
	return VectorFunc(func() (geom.Vec3, error) {
		fr, err := d.Frame()
		if err != nil {
			return geom.Vec3{}, err
		}
		if fr.Kind != PlaneDatum {
			return geom.Vec3{}, fmt.Errorf("%s datum has no normal", fr.Kind)
		}
		return fr.Dir, nil
	})
}

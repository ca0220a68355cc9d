package cad

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/iscadgo/internal/geom"
)

// BoolKind selects a boolean operation.
type BoolKind int

const (
	BoolUnion BoolKind = iota
	BoolSubtract
	BoolIntersect
)

func (k BoolKind) String() string {
	switch k {
	case BoolUnion:
		return "BooleanUnion"
	case BoolSubtract:
		return "BooleanSubtract"
	case BoolIntersect:
		return "BooleanIntersection"
	}
	return fmt.Sprintf("BoolKind(%d)", int(k))
}

// BooleanOp combines two features.
type BooleanOp struct {
	Kind BoolKind
	A, B *Feature
}

func (o *BooleanOp) TypeName() string { return o.Kind.String() }

func (o *BooleanOp) Hash(h *ParamHash) {
	h.AddFeature(o.A)
	h.AddFeature(o.B)
}

func (o *BooleanOp) Build(ctx context.Context, env *Env) (*Result, error) {
	a, err := o.A.Shape()
	if err != nil {
		return nil, err
	}
	b, err := o.B.Shape()
	if err != nil {
		return nil, err
	}
	var s *geom.Shape
	switch o.Kind {
	case BoolUnion:
		s, err = env.Engine.Union(a, b)
	case BoolSubtract:
		s, err = env.Engine.Subtract(a, b)
	case BoolIntersect:
		s, err = env.Engine.Intersect(a, b)
	default:
		err = fmt.Errorf("unknown boolean %v", o.Kind)
	}
	if err != nil {
		return nil, err
	}
	return &Result{Shape: s}, nil
}

// HalfSpaceOp keeps the part of a feature on the side of a plane opposite
// to its normal.
type HalfSpaceOp struct {
	Base  *Feature
	Plane Datum
}

func (o *HalfSpaceOp) TypeName() string { return "BooleanIntersection_Plane" }

func (o *HalfSpaceOp) Hash(h *ParamHash) {
	h.AddFeature(o.Base)
	h.AddDatum(o.Plane)
}

func (o *HalfSpaceOp) Build(ctx context.Context, env *Env) (*Result, error) {
	s, err := o.Base.Shape()
	if err != nil {
		return nil, err
	}
	fr, err := o.Plane.Frame()
	if err != nil {
		return nil, err
	}
	if fr.Kind != PlaneDatum {
		return nil, fmt.Errorf("intersection with a %s datum: %w", fr.Kind, ErrUnsupported)
	}
	out, err := env.Engine.HalfSpace(s, fr.Origin, fr.Dir)
	if err != nil {
		return nil, err
	}
	return &Result{Shape: out}, nil
}

// TransformOp applies a rigid or scaling transform computed from operand
// values. Provided datums, points, directions and subfeatures follow the
// transform.
type TransformOp struct {
	Base    *Feature
	Tag     string
	Vectors []Vector
	Scalars []Scalar
	Datums  []Datum
	Make    func(vs []geom.Vec3, ss []float64, ds []Frame) (geom.Transform, error)
}

func (o *TransformOp) TypeName() string { return o.Tag }

func (o *TransformOp) Hash(h *ParamHash) {
	h.AddFeature(o.Base)
	for _, v := range o.Vectors {
		h.AddVector(v)
	}
	for _, s := range o.Scalars {
		h.AddScalar(s)
	}
	for _, d := range o.Datums {
		h.AddDatum(d)
	}
}

func (o *TransformOp) transform() (geom.Transform, error) {
	vs := make([]geom.Vec3, len(o.Vectors))
	for i, v := range o.Vectors {
		x, err := v.Value()
		if err != nil {
			return geom.Transform{}, err
		}
		vs[i] = x
	}
	ss := make([]float64, len(o.Scalars))
	for i, s := range o.Scalars {
		x, err := s.Value()
		if err != nil {
			return geom.Transform{}, err
		}
		ss[i] = x
	}
	ds := make([]Frame, len(o.Datums))
	for i, d := range o.Datums {
		x, err := d.Frame()
		if err != nil {
			return geom.Transform{}, err
		}
		ds[i] = x
	}
	return o.Make(vs, ss, ds)
}

func (o *TransformOp) Build(ctx context.Context, env *Env) (*Result, error) {
	base, err := o.Base.result()
	if err != nil {
		return nil, err
	}
	t, err := o.transform()
	if err != nil {
		return nil, err
	}
	s, err := env.Engine.Transform(base.Shape, t)
	if err != nil {
		return nil, err
	}
	res := &Result{Shape: s}
	if len(base.Datums) > 0 {
		res.Datums = make(map[string]Frame, len(base.Datums))
		for name, fr := range base.Datums {
			fr.Origin = t.Apply(fr.Origin)
			fr.Dir = t.ApplyDir(fr.Dir).Unit()
			fr.Up = t.ApplyDir(fr.Up).Unit()
			res.Datums[name] = fr
		}
	}
	res.Props = base.Props
	res.Points = mapVecs(base.Points, t.Apply)
	res.Directions = mapVecs(base.Directions, t.ApplyDir)
	if len(base.Subfeatures) > 0 {
		res.Subfeatures = make(map[string]*Feature, len(base.Subfeatures))
		for name, sf := range base.Subfeatures {
			cp := *o
			cp.Base = sf
			res.Subfeatures[name] = NewFeature(env, &cp)
		}
	}
	return res, nil
}

func mapVecs(in map[string]cty.Value, fn func(geom.Vec3) geom.Vec3) map[string]cty.Value {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]cty.Value, len(in))
	for name, v := range in {
		x, err := VecFromCty(v)
		if err != nil {
			out[name] = v
			continue
		}
		out[name] = VecToCty(fn(x))
	}
	return out
}

// Translate moves f by v.
func Translate(env *Env, f *Feature, v Vector) *Feature {
	return NewFeature(env, &TransformOp{
		Base: f, Tag: "Translate", Vectors: []Vector{v},
		Make: func(vs []geom.Vec3, _ []float64, _ []Frame) (geom.Transform, error) {
			return geom.Translation(vs[0]), nil
		},
	})
}

// Scale scales f by s about the origin.
func Scale(env *Env, f *Feature, s Scalar) *Feature {
	return NewFeature(env, &TransformOp{
		Base: f, Tag: "Scale", Scalars: []Scalar{s},
		Make: func(_ []geom.Vec3, ss []float64, _ []Frame) (geom.Transform, error) {
			if ss[0] == 0 {
				return geom.Transform{}, fmt.Errorf("scale factor is zero")
			}
			return geom.Scaling(ss[0]), nil
		},
	})
}

// SubfeatureOp selects a named part of another feature.
type SubfeatureOp struct {
	Parent *Feature
	Name   string
}

func (o *SubfeatureOp) TypeName() string { return "Subfeature" }

func (o *SubfeatureOp) Hash(h *ParamHash) {
	h.AddFeature(o.Parent)
	h.AddString(o.Name)
}

func (o *SubfeatureOp) Build(ctx context.Context, env *Env) (*Result, error) {
	sf, err := o.Parent.Subfeature(o.Name)
	if err != nil {
		return nil, err
	}
	return sf.result()
}

// ExtractOp turns a set of solids into a feature of its own.
type ExtractOp struct {
	Set *FeatureSet
}

func (o *ExtractOp) TypeName() string { return "Extract" }

func (o *ExtractOp) Hash(h *ParamHash) { h.AddSet(o.Set) }

func (o *ExtractOp) Build(ctx context.Context, env *Env) (*Result, error) {
	if o.Set.Kind() != geom.Solid {
		return nil, fmt.Errorf("extracting %s entities: %w", o.Set.Kind(), ErrUnsupported)
	}
	ids, err := o.Set.IDs()
	if err != nil {
		return nil, err
	}
	s, err := o.Set.Parent().Shape()
	if err != nil {
		return nil, err
	}
	out, err := env.Engine.ExtractSolids(s, ids)
	if err != nil {
		return nil, err
	}
	return &Result{Shape: out}, nil
}

// ShapeOp wraps an already computed shape.
type ShapeOp struct {
	Tag   string
	Shape *geom.Shape
}

func (o *ShapeOp) TypeName() string { return o.Tag }

func (o *ShapeOp) Hash(h *ParamHash) { h.AddString(o.Shape.Fingerprint()) }

func (o *ShapeOp) Build(context.Context, *Env) (*Result, error) {
	return &Result{Shape: o.Shape}, nil
}

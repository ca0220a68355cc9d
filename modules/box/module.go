// Package box provides the Box and Cube feature types.
package box

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/iscadgo/internal/cad"
	"github.com/vk/iscadgo/internal/geom"
	"github.com/vk/iscadgo/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Op builds a box with corner P0 spanned by the edge vectors L1, L2, L3.
// With Centered set, P0 is the centre of the box instead.
type Op struct {
	Tag        string
	P0         cad.Vector
	L1, L2, L3 cad.Vector
	Centered   bool
}

func (o *Op) TypeName() string { return o.Tag }

func (o *Op) Hash(h *cad.ParamHash) {
	h.AddVector(o.P0)
	h.AddVector(o.L1)
	h.AddVector(o.L2)
	h.AddVector(o.L3)
	if o.Centered {
		h.AddString("centered")
	}
}

func (o *Op) Build(ctx context.Context, env *cad.Env) (*cad.Result, error) {
	var v [4]geom.Vec3
	for i, x := range []cad.Vector{o.P0, o.L1, o.L2, o.L3} {
		val, err := x.Value()
		if err != nil {
			return nil, err
		}
		v[i] = val
	}
	p0, l1, l2, l3 := v[0], v[1], v[2], v[3]
	diag := l1.Add(l2).Add(l3)
	if o.Centered {
		p0 = p0.Sub(diag.Scale(0.5))
	}
	s, err := env.Engine.Box(p0, l1, l2, l3)
	if err != nil {
		return nil, err
	}

	center := p0.Add(diag.Scale(0.5))
	top := p0.Add(l3)
	return &cad.Result{
		Shape: s,
		Props: map[string]cty.Value{
			"L1":      cty.NumberFloatVal(l1.Norm()),
			"L2":      cty.NumberFloatVal(l2.Norm()),
			"L3":      cty.NumberFloatVal(l3.Norm()),
			"volume0": cty.NumberFloatVal(s.Volume()),
		},
		Points: map[string]cty.Value{
			"p0":     cad.VecToCty(p0),
			"center": cad.VecToCty(center),
		},
		Directions: map[string]cty.Value{
			"ex": cad.VecToCty(l1.Unit()),
			"ey": cad.VecToCty(l2.Unit()),
			"ez": cad.VecToCty(l3.Unit()),
		},
		Datums: map[string]cad.Frame{
			"top":    {Kind: cad.PlaneDatum, Origin: top, Dir: l3.Unit(), Up: l1.Unit()},
			"bottom": {Kind: cad.PlaneDatum, Origin: p0, Dir: l3.Unit().Scale(-1), Up: l1.Unit()},
			"center": {Kind: cad.PointDatum, Origin: center},
		},
	}, nil
}

// ParseBox reads `p0, L1, L2, L3 [, centered]`.
func ParseBox(a registry.Args) (cad.Op, error) {
	op := &Op{Tag: "Box"}
	var err error
	if op.P0, err = a.Vector(); err != nil {
		return nil, err
	}
	for _, l := range []*cad.Vector{&op.L1, &op.L2, &op.L3} {
		if err := a.Expect(","); err != nil {
			return nil, err
		}
		if *l, err = a.Vector(); err != nil {
			return nil, err
		}
	}
	if op.Centered, err = parseCentered(a); err != nil {
		return nil, err
	}
	return op, nil
}

// ParseCube reads `p0, L [, centered]` for an axis-aligned cube of edge L.
func ParseCube(a registry.Args) (cad.Op, error) {
	p0, err := a.Vector()
	if err != nil {
		return nil, err
	}
	if err := a.Expect(","); err != nil {
		return nil, err
	}
	l, err := a.Scalar()
	if err != nil {
		return nil, err
	}
	centered, err := parseCentered(a)
	if err != nil {
		return nil, err
	}
	return &Op{
		Tag:      "Cube",
		P0:       p0,
		L1:       cad.ScaleVec(cad.ConstVector{1, 0, 0}, l),
		L2:       cad.ScaleVec(cad.ConstVector{0, 1, 0}, l),
		L3:       cad.ScaleVec(cad.ConstVector{0, 0, 1}, l),
		Centered: centered,
	}, nil
}

func parseCentered(a registry.Args) (bool, error) {
	if !a.Accept(",") {
		return false, nil
	}
	if err := a.Expect("centered"); err != nil {
		return false, err
	}
	return true, nil
}

// Register registers the feature types with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterFeatureType(&registry.FeatureType{
		Name:     "Box",
		Synopsis: "Box(p0, L1, L2, L3 [, centered])",
		Parse:    ParseBox,
	})
	r.RegisterFeatureType(&registry.FeatureType{
		Name:     "Cube",
		Synopsis: "Cube(p0, L [, centered])",
		Parse:    ParseCube,
	})
}

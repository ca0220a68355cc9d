// Package transform provides the rigid placement feature types Transform,
// Mirror and Place. All of them carry the datums, points and subfeatures of
// the transformed feature along.
package transform

import (
	"fmt"
	"math"

	"github.com/vk/iscadgo/internal/cad"
	"github.com/vk/iscadgo/internal/geom"
	"github.com/vk/iscadgo/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// rotateTranslate rotates about the origin by |rot| degrees around rot, then
// translates by trans.
func rotateTranslate(vs []geom.Vec3, _ []float64, _ []cad.Frame) (geom.Transform, error) {
	trans, rot := vs[0], vs[1]
	t := geom.Translation(trans)
	if angle := rot.Norm(); angle > 0 {
		t = geom.Rotation(geom.Vec3{}, rot, angle*math.Pi/180).Then(t)
	}
	return t, nil
}

func mirror(_ []geom.Vec3, _ []float64, ds []cad.Frame) (geom.Transform, error) {
	pl := ds[0]
	if pl.Kind != cad.PlaneDatum {
		return geom.Transform{}, fmt.Errorf("mirror needs a plane, got a %s", pl.Kind)
	}
	return geom.Mirror(pl.Origin, pl.Dir), nil
}

// place maps the global frame onto the frame at p0 with x along ex and z
// along ez.
func place(vs []geom.Vec3, _ []float64, _ []cad.Frame) (geom.Transform, error) {
	p0, ex, ez := vs[0], vs[1].Unit(), vs[2].Unit()
	if ex.Norm() == 0 || ez.Norm() == 0 {
		return geom.Transform{}, fmt.Errorf("place directions must not be zero")
	}
	if math.Abs(ex.Dot(ez)) > 1e-9 {
		return geom.Transform{}, fmt.Errorf("place directions %v and %v are not perpendicular", ex, ez)
	}
	ey := ez.Cross(ex)
	var m geom.Mat3
	for i := 0; i < 3; i++ {
		m[i] = [3]float64{ex[i], ey[i], ez[i]}
	}
	return geom.Transform{M: m, T: p0}, nil
}

// NewTransform returns f rotated by rot (axis times angle in degrees) and
// then translated by trans.
func NewTransform(env *cad.Env, f *cad.Feature, trans, rot cad.Vector) *cad.Feature {
	return cad.NewFeature(env, &cad.TransformOp{Base: f, Tag: "Transform", Vectors: []cad.Vector{trans, rot}, Make: rotateTranslate})
}

func parseTransform(a registry.Args) (cad.Op, error) {
	f, err := a.Feature()
	if err != nil {
		return nil, err
	}
	if err := a.Expect(","); err != nil {
		return nil, err
	}
	trans, err := a.Vector()
	if err != nil {
		return nil, err
	}
	var rot cad.Vector = cad.ConstVector{}
	if a.Accept(",") {
		if rot, err = a.Vector(); err != nil {
			return nil, err
		}
	}
	return &cad.TransformOp{Base: f, Tag: "Transform", Vectors: []cad.Vector{trans, rot}, Make: rotateTranslate}, nil
}

func parseMirror(a registry.Args) (cad.Op, error) {
	f, err := a.Feature()
	if err != nil {
		return nil, err
	}
	if err := a.Expect(","); err != nil {
		return nil, err
	}
	pl, err := a.Datum()
	if err != nil {
		return nil, err
	}
	return &cad.TransformOp{Base: f, Tag: "Mirror", Datums: []cad.Datum{pl}, Make: mirror}, nil
}

func parsePlace(a registry.Args) (cad.Op, error) {
	f, err := a.Feature()
	if err != nil {
		return nil, err
	}
	vs := make([]cad.Vector, 3)
	for i := range vs {
		if err := a.Expect(","); err != nil {
			return nil, err
		}
		if vs[i], err = a.Vector(); err != nil {
			return nil, err
		}
	}
	return &cad.TransformOp{Base: f, Tag: "Place", Vectors: vs, Make: place}, nil
}

// Register registers the feature types with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterFeatureType(&registry.FeatureType{
		Name:     "Transform",
		Synopsis: "Transform(f, translation [, rotationAxisTimesAngleDeg])",
		Parse:    parseTransform,
	})
	r.RegisterFeatureType(&registry.FeatureType{
		Name:     "Mirror",
		Synopsis: "Mirror(f, plane)",
		Parse:    parseMirror,
	})
	r.RegisterFeatureType(&registry.FeatureType{
		Name:     "Place",
		Synopsis: "Place(f, p0, ex, ez)",
		Parse:    parsePlace,
	})
}

// Package compound provides the Compound feature type, which groups
// features into one while keeping each reachable as a subfeature.
package compound

import (
	"context"
	"fmt"

	"github.com/vk/iscadgo/internal/cad"
	"github.com/vk/iscadgo/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Op merges its components. Component i is provided as subfeature
// "component<i+1>".
type Op struct {
	Components []*cad.Feature
}

func (o *Op) TypeName() string { return "Compound" }

func (o *Op) Hash(h *cad.ParamHash) {
	for _, c := range o.Components {
		h.AddFeature(c)
	}
}

func (o *Op) Build(ctx context.Context, env *cad.Env) (*cad.Result, error) {
	if len(o.Components) == 0 {
		return nil, fmt.Errorf("compound has no components")
	}
	res := &cad.Result{Subfeatures: make(map[string]*cad.Feature, len(o.Components))}
	for i, c := range o.Components {
		s, err := c.Shape()
		if err != nil {
			return nil, err
		}
		if res.Shape == nil {
			res.Shape = s
		} else if res.Shape, err = env.Engine.Union(res.Shape, s); err != nil {
			return nil, err
		}
		res.Subfeatures[fmt.Sprintf("component%d", i+1)] = c
	}
	return res, nil
}

// Parse reads `f1 [, f2 ...]`.
func Parse(a registry.Args) (cad.Op, error) {
	op := &Op{}
	for {
		f, err := a.Feature()
		if err != nil {
			return nil, err
		}
		op.Components = append(op.Components, f)
		if !a.Accept(",") {
			return op, nil
		}
	}
}

// Register registers the feature type with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterFeatureType(&registry.FeatureType{
		Name:     "Compound",
		Synopsis: "Compound(f1, f2, ...)",
		Parse:    Parse,
	})
}

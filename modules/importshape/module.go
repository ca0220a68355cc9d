// Package importshape provides the Import feature type, which reads a shape
// previously written with saveAs in the native format.
package importshape

import (
	"context"

	"github.com/vk/iscadgo/internal/cad"
	"github.com/vk/iscadgo/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Op imports the shape stored at Path. The file contents are part of the
// content hash.
type Op struct {
	Path string
}

func (o *Op) TypeName() string { return "Import" }

func (o *Op) Hash(h *cad.ParamHash) { h.AddFile(o.Path) }

func (o *Op) Build(ctx context.Context, env *cad.Env) (*cad.Result, error) {
	s, err := env.Engine.Import(o.Path)
	if err != nil {
		return nil, err
	}
	return &cad.Result{Shape: s}, nil
}

func parse(a registry.Args) (cad.Op, error) {
	path, err := a.String()
	if err != nil {
		return nil, err
	}
	return &Op{Path: a.Resolve(path)}, nil
}

// Register registers the feature type with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterFeatureType(&registry.FeatureType{
		Name:     "Import",
		Synopsis: `Import("file.json")`,
		Parse:    parse,
	})
}

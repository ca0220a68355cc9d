package postproc

import (
	"context"
	"fmt"

	"github.com/vk/iscadgo/internal/cad"
	"github.com/vk/iscadgo/internal/ctxlog"
	"github.com/vk/iscadgo/internal/geom"
)

// NamedSet is a named selection attached to an export or mesh.
type NamedSet struct {
	Name string
	Set  *cad.FeatureSet
}

// SaveAs writes a feature to a file whose extension selects the format.
// Named face groups are stored with formats that support them.
type SaveAs struct {
	cfg        Config
	Path       string
	Feature    *cad.Feature
	FaceGroups []NamedSet
}

// NewSaveAs creates a saveAs action.
func NewSaveAs(cfg Config, path string, f *cad.Feature, groups []NamedSet) *SaveAs {
	return &SaveAs{cfg: cfg, Path: path, Feature: f, FaceGroups: groups}
}

func (a *SaveAs) Kind() string { return "saveAs" }

func (a *SaveAs) Run(ctx context.Context) error {
	s, err := shapeOf(ctx, a.Feature)
	if err != nil {
		return err
	}
	opts := geom.ExportOptions{}
	for _, g := range a.FaceGroups {
		if g.Set.Kind() != geom.Face {
			return fmt.Errorf("group %s is a %s selection, expected faces: %w", g.Name, g.Set.Kind(), cad.ErrWrongKind)
		}
		ids, err := idsOf(g.Set, a.Feature)
		if err != nil {
			return fmt.Errorf("group %s: %w", g.Name, err)
		}
		if opts.FaceGroups == nil {
			opts.FaceGroups = make(map[string][]int)
		}
		opts.FaceGroups[g.Name] = ids
	}
	path, err := a.cfg.resolve(a.Path)
	if err != nil {
		return err
	}
	if err := a.cfg.exporter().Export(s, path, opts); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	ctxlog.FromContext(ctx).Info("Saved shape.", "path", path, "faceGroups", len(opts.FaceGroups))
	return nil
}

// ExportSTL writes a triangulated surface.
type ExportSTL struct {
	cfg       Config
	Path      string
	Feature   *cad.Feature
	Tolerance cad.Scalar
}

// NewExportSTL creates an exportSTL action.
func NewExportSTL(cfg Config, path string, f *cad.Feature, tol cad.Scalar) *ExportSTL {
	return &ExportSTL{cfg: cfg, Path: path, Feature: f, Tolerance: tol}
}

func (a *ExportSTL) Kind() string { return "exportSTL" }

func (a *ExportSTL) Run(ctx context.Context) error {
	s, err := shapeOf(ctx, a.Feature)
	if err != nil {
		return err
	}
	tol, err := a.Tolerance.Value()
	if err != nil {
		return err
	}
	if tol <= 0 {
		return fmt.Errorf("STL tolerance must be positive, got %g", tol)
	}
	path, err := a.cfg.resolve(a.Path)
	if err != nil {
		return err
	}
	if err := a.cfg.exporter().Export(s, path, geom.ExportOptions{Tolerance: tol}); err != nil {
		return fmt.Errorf("failed to export %s: %w", path, err)
	}
	ctxlog.FromContext(ctx).Info("Exported STL.", "path", path, "tolerance", tol)
	return nil
}

// ExportEMesh writes selected edges as an edge mesh.
type ExportEMesh struct {
	cfg    Config
	Path   string
	Edges  *cad.FeatureSet
	AbsTol cad.Scalar
	MaxLen cad.Scalar
}

// NewExportEMesh creates an exportEMesh action.
func NewExportEMesh(cfg Config, path string, edges *cad.FeatureSet, absTol, maxLen cad.Scalar) *ExportEMesh {
	return &ExportEMesh{cfg: cfg, Path: path, Edges: edges, AbsTol: absTol, MaxLen: maxLen}
}

func (a *ExportEMesh) Kind() string { return "exportEMesh" }

func (a *ExportEMesh) Run(ctx context.Context) error {
	if a.Edges.Kind() != geom.Edge {
		return fmt.Errorf("exportEMesh needs an edge selection, got %s: %w", a.Edges.Kind(), cad.ErrWrongKind)
	}
	s, err := shapeOf(ctx, a.Edges.Parent())
	if err != nil {
		return err
	}
	ids, err := idsOf(a.Edges, nil)
	if err != nil {
		return err
	}
	// the cell kernel has straight edges only, so the tolerance does not
	// change the result; it is still evaluated so that errors surface
	if _, err := a.AbsTol.Value(); err != nil {
		return err
	}
	maxLen, err := a.MaxLen.Value()
	if err != nil {
		return err
	}
	path, err := a.cfg.resolve(a.Path)
	if err != nil {
		return err
	}
	if err := geom.ExportEdgeMesh(s, path, ids, maxLen); err != nil {
		return fmt.Errorf("failed to export edge mesh %s: %w", path, err)
	}
	ctxlog.FromContext(ctx).Info("Exported edge mesh.", "path", path, "edges", len(ids))
	return nil
}

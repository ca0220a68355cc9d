package postproc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/iscadgo/internal/cad"
	"github.com/vk/iscadgo/internal/geom"
)

// Exporter writes shapes to files. geom.Kernel implements it.
type Exporter interface {
	Export(s *geom.Shape, path string, opts geom.ExportOptions) error
}

// MesherConfig configures the gmsh driver.
type MesherConfig struct {
	// Executable defaults to "gmsh".
	Executable string
	Threads    int
	// KeepTmp keeps the generated script and geometry for inspection.
	KeepTmp bool
}

// Config is shared by all actions of a model.
type Config struct {
	// OutputDir is prepended to relative output paths.
	OutputDir string
	Mesher    MesherConfig
	// Typesetter, when set, compiles the .tex summary of property reports.
	Typesetter string
	// DryRun skips external processes.
	DryRun bool
	// Exporter defaults to the cell kernel.
	Exporter Exporter
}

func (c Config) exporter() Exporter {
	if c.Exporter == nil {
		return geom.NewKernel()
	}
	return c.Exporter
}

// resolve places relative output paths under OutputDir and creates the
// parent directory.
func (c Config) resolve(path string) (string, error) {
	if !filepath.IsAbs(path) && c.OutputDir != "" {
		path = filepath.Join(c.OutputDir, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return path, nil
}

// shapeOf builds f and returns its shape.
func shapeOf(ctx context.Context, f *cad.Feature) (*geom.Shape, error) {
	if err := f.Build(ctx); err != nil {
		return nil, err
	}
	return f.Shape()
}

// idsOf resolves a selection, which must belong to parent.
func idsOf(s *cad.FeatureSet, parent *cad.Feature) ([]int, error) {
	if parent != nil && s.Parent() != parent {
		return nil, fmt.Errorf("selection of %s used with %s: %w", s.Parent(), parent, cad.ErrCrossParent)
	}
	return s.IDs()
}

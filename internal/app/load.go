package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/iscadgo/internal/config"
	"github.com/vk/iscadgo/internal/ctxlog"
	"github.com/vk/iscadgo/internal/fsutil"
	"github.com/vk/iscadgo/internal/model"
	"github.com/vk/iscadgo/internal/parser"
)

const modelExtension = ".iscad"

// diagnosticsWidth wraps rendered diagnostics.
const diagnosticsWidth = 78

// modelFiles resolves the configured model paths.
func (a *App) modelFiles() ([]string, error) {
	paths, err := fsutil.Expand(a.config.ModelPaths, modelExtension, false)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.New("no model files found")
	}
	return paths, nil
}

// loadModels parses every model file. All files are parsed even when one
// fails so that every diagnostic is reported at once.
func (a *App) loadModels(ctx context.Context) ([]*model.Model, error) {
	logger := ctxlog.FromContext(ctx)
	paths, err := a.modelFiles()
	if err != nil {
		return nil, err
	}

	var (
		models []*model.Model
		diags  hcl.Diagnostics
		failed int
	)
	for _, path := range paths {
		m := model.New(a.env(ctx))
		a.injectParameters(m)
		d := parser.ParseFile(ctx, m, path, parser.Options{Registry: a.registry, Actions: a.actionConfig()})
		if d.HasErrors() {
			failed++
		}
		diags = append(diags, d...)
		models = append(models, m)
		logger.Debug("Model parsed.", "path", path, "modelsteps", len(m.Modelsteps()), "actions", len(m.Actions()))
	}

	if len(diags) > 0 {
		a.writeDiagnostics(diags)
	}
	if failed > 0 {
		return nil, fmt.Errorf("%d of %d model files failed to parse", failed, len(paths))
	}
	return models, nil
}

// injectParameters defines the workbench parameters in m. Assignments of
// the same names in the model become defaults that are ignored.
func (a *App) injectParameters(m *model.Model) {
	for _, name := range a.workbench.ParameterNames() {
		p := a.workbench.Parameters[name]
		switch p.Kind {
		case config.ScalarParameter:
			m.OverrideScalar(name, p.Scalar)
		case config.VectorParameter:
			m.OverrideVector(name, p.Vector)
		}
	}
}

// writeDiagnostics renders diags with source snippets of the files they
// point into.
func (a *App) writeDiagnostics(diags hcl.Diagnostics) {
	files := make(map[string]*hcl.File)
	for _, d := range diags {
		if d.Subject == nil {
			continue
		}
		name := d.Subject.Filename
		if _, ok := files[name]; ok || name == "" {
			continue
		}
		if src, err := os.ReadFile(name); err == nil {
			files[name] = &hcl.File{Bytes: src}
		}
	}
	wr := hcl.NewDiagnosticTextWriter(a.outW, files, diagnosticsWidth, false)
	if err := wr.WriteDiagnostics(diags); err != nil {
		a.logger.Error("Failed to write diagnostics.", "error", err)
	}
}

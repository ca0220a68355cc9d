package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/vk/iscadgo/internal/cad"
	"github.com/vk/iscadgo/internal/config"
	"github.com/vk/iscadgo/internal/ctxlog"
	"github.com/vk/iscadgo/internal/geom"
	"github.com/vk/iscadgo/internal/inmemorystore"
	"github.com/vk/iscadgo/internal/metrics"
	"github.com/vk/iscadgo/internal/postproc"
	"github.com/vk/iscadgo/internal/registry"
	"github.com/vk/iscadgo/internal/shapestore"
	"github.com/vk/iscadgo/internal/viewer"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	config    *Config
	registry  *registry.Registry
	workbench *config.Workbench
	metrics   *metrics.Metrics
	engine    cad.Engine
	// cache lives as long as the App so that watch rebuilds reuse shapes.
	cache  shapestore.Store[*cad.Result]
	viewer *viewer.Notifier

	httpServer *http.Server
}

// NewApp is the constructor for the main application. Results and
// diagnostics go to outW, logs to logW. Without modules the core feature
// types are registered.
func NewApp(outW, logW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	var workbenchPaths []string
	if cfg.WorkbenchPath != "" {
		workbenchPaths = append(workbenchPaths, cfg.WorkbenchPath)
	}
	wb, err := loader.Load(ctx, workbenchPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load workbench: %w", err)
	}
	logger.Debug("Workbench loaded.", "parameters", wb.ParameterNames())

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	reg.RegisterModules(modules...)
	logger.Debug("All feature modules registered.", "count", len(modules))

	if err := reg.ValidateRegistry(ctx); err != nil {
		// a mismatch between module code and the grammar is a programmer error
		panic(err)
	}

	m := metrics.New()
	a := &App{
		outW:      outW,
		logger:    logger,
		config:    cfg,
		registry:  reg,
		workbench: wb,
		metrics:   m,
		engine:    m.Engine(geom.NewKernel()),
	}
	if wb.Cache.Enabled {
		a.cache = inmemorystore.New[*cad.Result]()
	}
	return a, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Metrics returns the application's collectors.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// env creates the feature environment of one model.
func (a *App) env(ctx context.Context) *cad.Env {
	observers := cad.Observers{a.metrics}
	if a.viewer != nil {
		observers = append(observers, a.viewer)
	}
	return &cad.Env{
		Engine:   a.engine,
		Cache:    a.cache,
		Observer: observers,
		Logger:   ctxlog.FromContext(ctx),
	}
}

func (a *App) actionConfig() postproc.Config {
	return postproc.Config{
		OutputDir: a.config.OutputDir,
		Mesher: postproc.MesherConfig{
			Executable: a.workbench.Mesher.Executable,
			Threads:    a.workbench.Mesher.Threads,
			KeepTmp:    a.workbench.Mesher.KeepTmp,
		},
		Typesetter: a.workbench.Report.Typesetter,
		DryRun:     a.config.DryRun,
	}
}

// connectViewer joins the configured viewer. Failing to connect is not
// fatal: builds run without publishing events.
func (a *App) connectViewer(ctx context.Context) {
	vc := a.workbench.Viewer
	if vc == nil {
		return
	}
	n, err := viewer.Connect(ctx, viewer.Config{URL: vc.URL, Namespace: vc.Namespace, Timeout: vc.Timeout})
	if err != nil {
		a.logger.Warn("Viewer unavailable, continuing without it.", "url", vc.URL, "error", err)
		return
	}
	a.viewer = n
}

// Close stops the health check server and disconnects the viewer.
func (a *App) Close() error {
	if a.viewer != nil {
		a.viewer.Close()
		a.viewer = nil
	}
	return a.closeHealthCheckServer()
}

package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vk/iscadgo/internal/ctxlog"
	"github.com/vk/iscadgo/internal/dag"
	"github.com/vk/iscadgo/internal/model"
)

// Run executes the configured command.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "command", a.config.Command)
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Warn("Shutdown incomplete.", "error", err)
		}
	}()

	if a.config.HealthcheckPort > 0 {
		a.startHealthCheckServer(a.config.HealthcheckPort)
	}
	if a.config.Command != CommandCheck {
		a.connectViewer(ctx)
	}

	switch a.config.Command {
	case CommandCheck:
		return a.Check(ctx)
	case CommandBuild:
		return a.Build(ctx)
	case CommandEval:
		return a.Eval(ctx)
	case CommandWatch:
		return a.Watch(ctx)
	}
	return fmt.Errorf("unknown command %q", a.config.Command)
}

// Check parses the models without building anything.
func (a *App) Check(ctx context.Context) error {
	models, err := a.loadModels(ctx)
	if err != nil {
		return err
	}
	for _, m := range models {
		a.logger.Info("✅ Model is valid.", "path", m.Path, "modelsteps", len(m.Modelsteps()), "actions", len(m.Actions()))
	}
	return nil
}

// Build parses the models, builds every modelstep and then runs the
// post-processing actions in statement order.
func (a *App) Build(ctx context.Context) error {
	start := time.Now()
	models, err := a.loadModels(ctx)
	if err != nil {
		return err
	}

	a.logger.Info("🚀 Starting build...", "models", len(models), "workers", a.config.WorkerCount)
	var steps, actions int
	for _, m := range models {
		n, err := a.buildModelsteps(ctx, m)
		steps += n
		if err != nil {
			return err
		}
		n, err = a.runActions(ctx, m)
		actions += n
		if err != nil {
			return err
		}
	}
	a.logger.Info("🏁 Build finished.", "models", len(models), "modelsteps", steps, "actions", actions, "elapsed", time.Since(start))
	return nil
}

// buildModelsteps builds the modelsteps of m concurrently, each after the
// modelsteps it references.
func (a *App) buildModelsteps(ctx context.Context, m *model.Model) (int, error) {
	nodes := m.ModelstepNodes()
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		a.logger.Warn("Model has no modelsteps.", "path", m.Path)
		return 0, nil
	}

	exec := dag.NewExecutor(m.Deps, a.config.WorkerCount)
	_, err := exec.Run(ctx, ids, func(ctx context.Context, id string) error {
		f, err := m.Modelstep(nodes[id])
		if err != nil {
			return err
		}
		return f.Build(ctx)
	})
	if err != nil {
		return len(ids), fmt.Errorf("build of %s failed: %w", m.Path, err)
	}
	return len(ids), nil
}

// runActions runs the post-processing actions of m and stops at the first
// failure.
func (a *App) runActions(ctx context.Context, m *model.Model) (int, error) {
	count := 0
	for _, act := range m.Actions() {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		start := time.Now()
		err := act.Run(ctx)
		a.metrics.ActionDone(act.Kind(), err)
		count++
		if err != nil {
			return count, fmt.Errorf("%s action of %s failed: %w", act.Kind(), m.Path, err)
		}
		a.logger.Info("Action finished.", "action", act.Kind(), "elapsed", time.Since(start))
		if r, ok := act.(model.Reporter); ok {
			a.logReport(act.Kind(), r)
		}
	}
	return count, nil
}

func (a *App) logReport(kind string, r model.Reporter) {
	values, err := r.Values()
	if err != nil {
		a.logger.Warn("Report values unavailable.", "action", kind, "error", err)
		return
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	args := make([]any, 0, 2*len(names)+2)
	args = append(args, "action", kind)
	for _, name := range names {
		args = append(args, name, formatValue(values[name]))
	}
	a.logger.Info("Report.", args...)
}

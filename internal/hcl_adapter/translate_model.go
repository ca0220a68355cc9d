// This file contains the logic for translating the HCL schema structs into
// the format-agnostic workbench defined in the config package.

package hcl_adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/iscadgo/internal/config"
	"github.com/vk/iscadgo/internal/ctxlog"
)

// translate merges one decoded file into wb.
func (l *Loader) translate(ctx context.Context, root *fileRoot, wb *config.Workbench) error {
	logger := ctxlog.FromContext(ctx)

	if exprPresent(root.Parameters) {
		params, err := parametersFromExpr(ctx, root.Parameters)
		if err != nil {
			return err
		}
		for name, p := range params {
			if prev, ok := wb.Parameters[name]; ok {
				return fmt.Errorf("parameter '%s' is defined twice, first at %s", name, prev.Range)
			}
			wb.Parameters[name] = p
		}
	}

	if m := root.Mesher; m != nil {
		logger.Debug("Translating mesher block.")
		if m.Executable != nil {
			wb.Mesher.Executable = *m.Executable
		}
		if m.Threads != nil {
			if *m.Threads < 0 {
				return fmt.Errorf("mesher threads must not be negative, got %d", *m.Threads)
			}
			wb.Mesher.Threads = *m.Threads
		}
		if m.KeepTmp != nil {
			wb.Mesher.KeepTmp = *m.KeepTmp
		}
	}

	if r := root.Report; r != nil {
		wb.Report.Typesetter = r.Typesetter
	}

	if v := root.Viewer; v != nil {
		viewer := &config.Viewer{URL: v.URL, Namespace: v.Namespace}
		if v.Timeout != "" {
			d, err := time.ParseDuration(v.Timeout)
			if err != nil {
				return fmt.Errorf("invalid viewer timeout %q: %w", v.Timeout, err)
			}
			viewer.Timeout = d
		}
		wb.Viewer = viewer
	}

	if c := root.Cache; c != nil {
		wb.Cache.Enabled = c.Enabled
	}
	return nil
}

package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/iscadgo/internal/config"
	"github.com/vk/iscadgo/internal/ctxlog"
	"github.com/vk/iscadgo/internal/fsutil"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL workbench loader.
func NewLoader() *Loader {
	return &Loader{}
}

var _ config.Loader = (*Loader)(nil)

// fileRoot is the schema of one workbench file.
type fileRoot struct {
	Parameters hcl.Expression `hcl:"parameters,optional"`
	Mesher     *MesherBlock   `hcl:"mesher,block"`
	Report     *ReportBlock   `hcl:"report,block"`
	Viewer     *ViewerBlock   `hcl:"viewer,block"`
	Cache      *CacheBlock    `hcl:"cache,block"`
}

// MesherBlock is the `mesher` block.
type MesherBlock struct {
	Executable *string `hcl:"executable,optional"`
	Threads    *int    `hcl:"threads,optional"`
	KeepTmp    *bool   `hcl:"keep_tmp,optional"`
}

// ReportBlock is the `report` block.
type ReportBlock struct {
	Typesetter string `hcl:"typesetter,optional"`
}

// ViewerBlock is the `viewer` block.
type ViewerBlock struct {
	URL       string `hcl:"url"`
	Namespace string `hcl:"namespace,optional"`
	Timeout   string `hcl:"timeout,optional"`
}

// CacheBlock is the `cache` block.
type CacheBlock struct {
	Enabled bool `hcl:"enabled"`
}

// Load reads every workbench file found under paths and merges them in
// path order. Later files override settings of earlier ones; a parameter
// defined twice is an error.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Workbench, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	wb := config.New()
	hclFiles, err := fsutil.Expand(paths, ".hcl", true)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	parser := hclparse.NewParser()
	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		if err := l.translate(ctx, &root, wb); err != nil {
			return nil, fmt.Errorf("in %s: %w", file, err)
		}
	}

	logger.Debug("HCL loading complete.", "files", len(hclFiles), "parameters", len(wb.Parameters), "viewer", wb.Viewer != nil)
	return wb, nil
}

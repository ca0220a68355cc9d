package config

import "context"

// Loader is the interface for a format-specific workbench loader.
type Loader interface {
	// Load reads the workbench files at paths and merges them into one
	// Workbench. Paths that do not exist are skipped.
	Load(ctx context.Context, paths ...string) (*Workbench, error)
}

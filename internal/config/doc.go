// Package config defines the format-agnostic workbench configuration: the
// parameters injected into models and the settings of the external tools
// the post-processing actions drive.
//
// The `config.Workbench` is what the app consumes. Concrete loaders, such
// as the HCL one, live in separate packages.
package config

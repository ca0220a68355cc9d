package registry

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/vk/iscadgo/internal/cad"
)

// Module is the interface that all feature-type modules must implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// FeatureType describes one feature function of the model language.
type FeatureType struct {
	// Name is the function name used in model files.
	Name string
	// Synopsis is a one-line argument summary shown in diagnostics.
	Synopsis string
	// Parse consumes the call arguments between the parentheses and returns
	// the operation of the new feature.
	Parse func(a Args) (cad.Op, error)
}

// Registry holds the feature types of a single application instance.
type Registry struct {
	types map[string]*FeatureType
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{types: make(map[string]*FeatureType)}
}

// RegisterFeatureType adds a feature type. Registering a name twice is a
// programming error and panics.
func (r *Registry) RegisterFeatureType(ft *FeatureType) {
	if _, exists := r.types[ft.Name]; exists {
		panic(fmt.Sprintf("feature type with name '%s' already registered", ft.Name))
	}
	slog.Debug("Registering feature type.", "name", ft.Name)
	r.types[ft.Name] = ft
}

// Lookup returns the feature type registered under name.
func (r *Registry) Lookup(name string) (*FeatureType, bool) {
	ft, ok := r.types[name]
	return ft, ok
}

// Names returns the registered type names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.types))
	for n := range r.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RegisterModules registers every module in order.
func (r *Registry) RegisterModules(mods ...Module) {
	for _, m := range mods {
		m.Register(r)
	}
}

package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/iscadgo/internal/geom"
)

// Workbench is the unified representation of the workbench configuration.
type Workbench struct {
	Parameters map[string]*Parameter
	Mesher     Mesher
	Report     Report
	Viewer     *Viewer
	Cache      Cache
}

// New returns a workbench holding the defaults.
func New() *Workbench {
	return &Workbench{
		Parameters: make(map[string]*Parameter),
		Mesher:     Mesher{Executable: "gmsh"},
		Cache:      Cache{Enabled: true},
	}
}

// ParameterKind tells scalar parameters from vector ones.
type ParameterKind int

const (
	ScalarParameter ParameterKind = iota
	VectorParameter
)

// Parameter is a value injected into every model. It overrides an
// assignment of the same name in the model source.
type Parameter struct {
	Name   string
	Kind   ParameterKind
	Scalar float64
	Vector geom.Vec3
	Range  hcl.Range
}

func (p *Parameter) String() string {
	if p.Kind == VectorParameter {
		return fmt.Sprintf("%s=%v", p.Name, p.Vector)
	}
	return fmt.Sprintf("%s=%g", p.Name, p.Scalar)
}

// ParameterNames returns the parameter names, sorted.
func (w *Workbench) ParameterNames() []string {
	names := make([]string, 0, len(w.Parameters))
	for name := range w.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Mesher configures the gmsh driver.
type Mesher struct {
	Executable string
	Threads    int
	KeepTmp    bool
}

// Report configures the property reports.
type Report struct {
	// Typesetter compiles the .tex reports when set. Its failures are only
	// logged.
	Typesetter string
}

// Viewer selects the socket.io server that receives build events.
type Viewer struct {
	URL       string
	Namespace string
	Timeout   time.Duration
}

// Cache configures the shape cache.
type Cache struct {
	Enabled bool
}

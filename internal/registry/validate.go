package registry

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/vk/iscadgo/internal/cad"
	"github.com/vk/iscadgo/internal/ctxlog"
)

var featureNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reserved names are parsed by the core grammar and cannot be shadowed by a
// feature type.
var reserved = map[string]bool{
	"volume": true, "cumedgelen": true, "mag": true, "pow": true, "atan2": true,
	"TableLookup": true, "rot": true, "Mechanism_CrankDrive": true, "Mechanism_Slider": true,
	"coord": true, "scoord": true, "bbmin": true, "bbmax": true, "cog": true, "surfcog": true,
	"surfinert1": true, "surfinert2": true, "surfinert3": true, "refpt": true, "refdir": true,
	"plnorm": true, "circcenter": true, "Plane": true, "SPlane": true, "TPlane": true,
	"RefPt": true, "RefAxis": true, "xsec_axpl": true, "xsec_plpl": true, "xsec_ppp": true,
	"DXF": true, "saveAs": true, "exportSTL": true, "exportEMesh": true, "gmsh": true,
	"SolidProperties": true, "Hydrostatics": true,
}

// IsReserved reports whether name belongs to the core grammar, including
// the single-argument math functions.
func IsReserved(name string) bool { return reserved[name] || cad.IsMathFunc(name) }

// ValidateRegistry checks that every registered feature type can be reached
// from the grammar: a valid identifier that is not shadowed by a core
// function, with a parse function.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for _, name := range r.Names() {
		ft := r.types[name]
		if !featureNameRe.MatchString(name) {
			errs = append(errs, fmt.Sprintf("feature type '%s': name is not an identifier", name))
		}
		if IsReserved(name) {
			errs = append(errs, fmt.Sprintf("feature type '%s': name is reserved by the core grammar", name))
		}
		if ft.Parse == nil {
			errs = append(errs, fmt.Sprintf("feature type '%s': no parse function", name))
		}
		if ft.Synopsis == "" {
			logger.Warn("Feature type has no synopsis; diagnostics will not show its arguments.", "type", name)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	logger.Debug("Registry validated.", "feature_types", len(r.types))
	return nil
}

package postproc

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"

	"github.com/vk/iscadgo/internal/cad"
	"github.com/vk/iscadgo/internal/ctxlog"
	"github.com/vk/iscadgo/internal/geom"
)

// reportRow is one line of a property report.
type reportRow struct {
	Key   string
	Label string
	Value cty.Value
}

// report is the result shared by the property actions. It is computed once
// per run and kept for Values.
type report struct {
	mu   sync.Mutex
	rows []reportRow
}

func (r *report) set(rows []reportRow) {
	r.mu.Lock()
	r.rows = rows
	r.mu.Unlock()
}

func (r *report) values() map[string]cty.Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rows == nil {
		return nil
	}
	out := make(map[string]cty.Value, len(r.rows))
	for _, row := range r.rows {
		out[row.Key] = row.Value
	}
	return out
}

// yamlNode renders rows as an ordered mapping.
func yamlNode(rows []reportRow) *yaml.Node {
	m := &yaml.Node{Kind: yaml.MappingNode}
	for _, row := range rows {
		val := &yaml.Node{Kind: yaml.ScalarNode}
		switch {
		case row.Value.Type() == cty.Number:
			f, _ := row.Value.AsBigFloat().Float64()
			val.Value = num(f)
			val.Tag = "!!float"
		case row.Value.Type().IsTupleType() || row.Value.Type().IsListType():
			val.Kind = yaml.SequenceNode
			val.Style = yaml.FlowStyle
			for _, e := range row.Value.AsValueSlice() {
				f, _ := e.AsBigFloat().Float64()
				val.Content = append(val.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: num(f)})
			}
		default:
			val.Value = row.Value.AsString()
		}
		m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: row.Key}, val)
	}
	return m
}

// writeReport stores rows as <name>.yaml and, when a typesetter is
// configured, as a compiled <name>.tex.
func writeReport(ctx context.Context, cfg Config, name, title string, rows []reportRow) error {
	logger := ctxlog.FromContext(ctx)
	path, err := cfg.resolve(name + ".yaml")
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(yamlNode(rows))
	if err != nil {
		return fmt.Errorf("failed to encode report %s: %w", name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", name, err)
	}
	logger.Info("Wrote report.", "path", path)

	if cfg.Typesetter == "" {
		return nil
	}
	tex, err := cfg.resolve(name + ".tex")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tex, []byte(texTable(title, rows)), 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", name, err)
	}
	if cfg.DryRun {
		logger.Info("Dry run, typesetter not started.", "path", tex)
		return nil
	}
	cmd := execCommand(ctx, cfg.Typesetter, "-interaction=nonstopmode", filepath.Base(tex))
	cmd.Dir = filepath.Dir(tex)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		// the YAML report is the primary result
		logger.Warn("Typesetter failed.", "path", tex, "error", err)
	}
	return nil
}

func texTable(title string, rows []reportRow) string {
	var b strings.Builder
	b.WriteString("\\documentclass{article}\n\\begin{document}\n")
	fmt.Fprintf(&b, "\\section*{%s}\n", texEscape(title))
	b.WriteString("\\begin{tabular}{ll}\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "%s & %s \\\\\n", texEscape(row.Label), texEscape(formatValue(row.Value)))
	}
	b.WriteString("\\end{tabular}\n\\end{document}\n")
	return b.String()
}

var texEscaper = strings.NewReplacer(`\`, `\textbackslash{}`, "_", `\_`, "%", `\%`, "&", `\&`, "#", `\#`, "$", `\$`)

func texEscape(s string) string { return texEscaper.Replace(s) }

func formatValue(v cty.Value) string {
	if v.Type() == cty.Number {
		f, _ := v.AsBigFloat().Float64()
		return fmt.Sprintf("%.6g", f)
	}
	if v.Type() == cty.String {
		return v.AsString()
	}
	parts := make([]string, 0, 3)
	for _, e := range v.AsValueSlice() {
		parts = append(parts, formatValue(e))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func numRow(key, label string, x float64) reportRow {
	return reportRow{Key: key, Label: label, Value: cty.NumberFloatVal(x)}
}

func vecRow(key, label string, v geom.Vec3) reportRow {
	return reportRow{Key: key, Label: label, Value: cad.VecToCty(v)}
}

// SolidProperties reports mass properties of a feature.
type SolidProperties struct {
	cfg     Config
	Name    string
	Feature *cad.Feature
	report  report
}

// NewSolidProperties creates a named SolidProperties action.
func NewSolidProperties(cfg Config, name string, f *cad.Feature) *SolidProperties {
	return &SolidProperties{cfg: cfg, Name: name, Feature: f}
}

func (a *SolidProperties) Kind() string { return "SolidProperties" }

func (a *SolidProperties) Run(ctx context.Context) error {
	rows, err := a.compute(ctx)
	if err != nil {
		return err
	}
	a.report.set(rows)
	return writeReport(ctx, a.cfg, a.Name, "Solid properties of "+a.Feature.Name(), rows)
}

// Values returns the computed properties, computing them if the action has
// not run yet.
func (a *SolidProperties) Values() (map[string]cty.Value, error) {
	if v := a.report.values(); v != nil {
		return v, nil
	}
	rows, err := a.compute(context.Background())
	if err != nil {
		return nil, err
	}
	a.report.set(rows)
	return a.report.values(), nil
}

func (a *SolidProperties) compute(ctx context.Context) ([]reportRow, error) {
	s, err := shapeOf(ctx, a.Feature)
	if err != nil {
		return nil, err
	}
	mass, err := a.Feature.Mass()
	if err != nil {
		return nil, err
	}
	rho, err := a.Feature.Density()
	if err != nil {
		return nil, err
	}
	lo, hi := s.BoundingBox(0)
	I := s.Inertia()
	return []reportRow{
		numRow("mass", "Mass", mass),
		numRow("volume", "Volume", s.Volume()),
		numRow("area", "Surface area", s.SurfaceArea()),
		vecRow("cog", "Centre of gravity", s.CoG()),
		numRow("Ixx", "Inertia xx", rho*I[0][0]),
		numRow("Iyy", "Inertia yy", rho*I[1][1]),
		numRow("Izz", "Inertia zz", rho*I[2][2]),
		numRow("Ixy", "Inertia xy", rho*I[0][1]),
		numRow("Ixz", "Inertia xz", rho*I[0][2]),
		numRow("Iyz", "Inertia yz", rho*I[1][2]),
		vecRow("bbmin", "Bounding box min", lo),
		vecRow("bbmax", "Bounding box max", hi),
	}, nil
}

// Hydrostatics computes floating stability of a hull at a given waterline.
type Hydrostatics struct {
	cfg   Config
	Name  string
	Hull  *cad.Feature
	Ship  *cad.Feature
	PSfc  cad.Vector
	NSfc  cad.Vector
	ELat  cad.Vector
	ELong cad.Vector

	report report
}

// NewHydrostatics creates a named Hydrostatics action. nsfc points out of
// the water; elat and elong are the lateral and longitudinal directions.
func NewHydrostatics(cfg Config, name string, hull, ship *cad.Feature, psfc, nsfc, elat, elong cad.Vector) *Hydrostatics {
	return &Hydrostatics{cfg: cfg, Name: name, Hull: hull, Ship: ship, PSfc: psfc, NSfc: nsfc, ELat: elat, ELong: elong}
}

func (a *Hydrostatics) Kind() string { return "Hydrostatics" }

func (a *Hydrostatics) Run(ctx context.Context) error {
	rows, err := a.compute(ctx)
	if err != nil {
		return err
	}
	a.report.set(rows)
	return writeReport(ctx, a.cfg, a.Name, "Hydrostatics of "+a.Hull.Name(), rows)
}

// Values returns the computed results, computing them if the action has not
// run yet.
func (a *Hydrostatics) Values() (map[string]cty.Value, error) {
	if v := a.report.values(); v != nil {
		return v, nil
	}
	rows, err := a.compute(context.Background())
	if err != nil {
		return nil, err
	}
	a.report.set(rows)
	return a.report.values(), nil
}

func (a *Hydrostatics) compute(ctx context.Context) ([]reportRow, error) {
	hull, err := shapeOf(ctx, a.Hull)
	if err != nil {
		return nil, err
	}
	ship, err := shapeOf(ctx, a.Ship)
	if err != nil {
		return nil, err
	}
	var vs [4]geom.Vec3
	for i, v := range []cad.Vector{a.PSfc, a.NSfc, a.ELat, a.ELong} {
		if vs[i], err = v.Value(); err != nil {
			return nil, err
		}
	}
	psfc, n, elat, elong := vs[0], vs[1].Unit(), vs[2].Unit(), vs[3].Unit()
	if n.Norm() == 0 || elat.Norm() == 0 || elong.Norm() == 0 {
		return nil, fmt.Errorf("hydrostatics directions must not be zero: %w", geom.ErrDegenerate)
	}

	sub, err := geom.HalfSpace(hull, psfc, n)
	if err != nil {
		return nil, err
	}
	V := sub.Volume()
	if V <= 0 {
		return nil, fmt.Errorf("hull %s is not submerged: %w", a.Hull, geom.ErrDegenerate)
	}
	B := sub.CoG()
	G := ship.CoG()
	mass, err := a.Ship.Mass()
	if err != nil {
		return nil, err
	}

	axis, sign, ok := geom.AxisOf(n)
	if !ok {
		return nil, fmt.Errorf("waterplane normal %v is not axis aligned: %w", n, geom.ErrUnsupported)
	}
	lo, hi := hull.BoundingBox(0)
	eps := 1e-9 * math.Max(1, hi.Sub(lo).Norm())
	rects := hull.Section(axis, psfc[axis]-sign*eps)
	var Aw float64
	var c geom.Vec3
	for _, r := range rects {
		ar := rectArea(r, axis)
		Aw += ar
		c = c.Add(r.Lo.Add(r.Hi).Scale(0.5 * ar))
	}
	if Aw <= 0 {
		return nil, fmt.Errorf("waterplane of %s is empty: %w", a.Hull, geom.ErrDegenerate)
	}
	c = c.Scale(1 / Aw)
	var I float64
	for _, r := range rects {
		d := r.Hi.Sub(r.Lo)
		w := math.Abs(d.Dot(elat))
		l := math.Abs(d.Dot(elong))
		off := r.Lo.Add(r.Hi).Scale(0.5).Sub(c).Dot(elat)
		I += l*w*w*w/12 + l*w*off*off
	}
	BM := I / V
	zB := B.Sub(psfc).Dot(n)
	zG := G.Sub(psfc).Dot(n)
	GM := zB + BM - zG

	return []reportRow{
		numRow("V", "Displaced volume", V),
		numRow("m", "Ship mass", mass),
		vecRow("B", "Centre of buoyancy", B),
		vecRow("G", "Centre of gravity", G),
		numRow("Aw", "Waterplane area", Aw),
		numRow("Iw", "Waterplane inertia", I),
		numRow("BM", "Metacentric radius", BM),
		numRow("GM", "Metacentric height", GM),
	}, nil
}

func rectArea(r geom.Rect, axis int) float64 {
	d := r.Hi.Sub(r.Lo)
	a := 1.0
	for i := 0; i < 3; i++ {
		if i != axis {
			a *= d[i]
		}
	}
	return a
}

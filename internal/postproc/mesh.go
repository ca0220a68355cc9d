package postproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/vk/iscadgo/internal/cad"
	"github.com/vk/iscadgo/internal/ctxlog"
	"github.com/vk/iscadgo/internal/geom"
)

// execCommand is replaced in tests.
var execCommand = exec.CommandContext

// meshFormats maps output extensions to gmsh Mesh.Format codes.
var meshFormats = map[string]int{
	".msh":  1,
	".unv":  2,
	".vtk":  16,
	".stl":  27,
	".mesh": 30,
	".bdf":  31,
	".med":  33,
	".inp":  39,
	".su2":  42,
}

// MeshGroup is a named selection with an optional local element size.
type MeshGroup struct {
	Name string
	Set  *cad.FeatureSet
	L    cad.Scalar
}

// NamedVertex is an extra mesh point that is not part of the geometry.
type NamedVertex struct {
	Name string
	Loc  cad.Vector
}

// Mesh runs gmsh on a feature and writes the resulting mesh.
type Mesh struct {
	cfg          Config
	Path         string
	Feature      *cad.Feature
	VolumeName   string
	LMax, LMin   cad.Scalar
	Linear       bool
	VertexGroups []MeshGroup
	EdgeGroups   []MeshGroup
	FaceGroups   []MeshGroup
	Vertices     []NamedVertex
}

// NewMesh creates a gmsh action. Groups and vertices are added to the
// returned value before it runs.
func NewMesh(cfg Config, path string, f *cad.Feature, volumeName string, lmax, lmin cad.Scalar) *Mesh {
	return &Mesh{cfg: cfg, Path: path, Feature: f, VolumeName: volumeName, LMax: lmax, LMin: lmin}
}

func (a *Mesh) Kind() string { return "gmsh" }

// resolvedGroup is a MeshGroup with its selection evaluated.
type resolvedGroup struct {
	name string
	ids  []int
	l    float64
	hasL bool
}

type meshScript struct {
	output     string
	format     int
	volumeName string
	lmax, lmin float64
	linear     bool
	threads    int

	shape    *geom.Shape
	vertices []resolvedGroup
	edges    []resolvedGroup
	faces    []resolvedGroup
	named    []namedPoint
}

type namedPoint struct {
	name string
	loc  geom.Vec3
}

func (a *Mesh) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("action", a.Kind(), "path", a.Path)
	ext := strings.ToLower(filepath.Ext(a.Path))
	format, ok := meshFormats[ext]
	if !ok {
		return fmt.Errorf("cannot mesh to %q: %w", ext, geom.ErrFormat)
	}
	s, err := shapeOf(ctx, a.Feature)
	if err != nil {
		return err
	}
	sc := meshScript{
		format:     format,
		volumeName: a.VolumeName,
		linear:     a.Linear,
		threads:    a.cfg.Mesher.Threads,
		shape:      s,
	}
	if sc.lmax, err = a.LMax.Value(); err != nil {
		return err
	}
	if sc.lmin, err = a.LMin.Value(); err != nil {
		return err
	}
	if sc.lmin > sc.lmax {
		return fmt.Errorf("minimum element size %g exceeds maximum %g", sc.lmin, sc.lmax)
	}
	if sc.vertices, err = a.resolve(a.VertexGroups, geom.Vertex); err != nil {
		return err
	}
	if sc.edges, err = a.resolve(a.EdgeGroups, geom.Edge); err != nil {
		return err
	}
	if sc.faces, err = a.resolve(a.FaceGroups, geom.Face); err != nil {
		return err
	}
	for _, v := range a.Vertices {
		loc, err := v.Loc.Value()
		if err != nil {
			return fmt.Errorf("vertex %s: %w", v.Name, err)
		}
		sc.named = append(sc.named, namedPoint{name: v.Name, loc: loc})
	}

	out, err := a.cfg.resolve(a.Path)
	if err != nil {
		return err
	}
	if sc.output, err = filepath.Abs(out); err != nil {
		return err
	}
	tmp, err := os.MkdirTemp("", "iscad-gmsh-")
	if err != nil {
		return fmt.Errorf("failed to create mesher work directory: %w", err)
	}
	if a.cfg.Mesher.KeepTmp {
		logger.Info("Keeping mesher work directory.", "dir", tmp)
	} else {
		defer os.RemoveAll(tmp)
	}

	stem := strings.TrimSuffix(filepath.Base(out), filepath.Ext(out))
	script := filepath.Join(tmp, stem+".geo")
	var buf bytes.Buffer
	if err := sc.write(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(script, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write mesher script: %w", err)
	}

	if a.cfg.DryRun {
		logger.Info("Dry run, mesher not started.", "script", script)
		return nil
	}
	return runMesher(ctx, a.cfg.Mesher, tmp, script)
}

// resolve evaluates groups and unions selections that share a name.
func (a *Mesh) resolve(groups []MeshGroup, kind geom.Kind) ([]resolvedGroup, error) {
	var order []string
	merged := make(map[string]MeshGroup)
	for _, g := range groups {
		if g.Set.Kind() != kind {
			return nil, fmt.Errorf("group %s is a %s selection, expected %s: %w", g.Name, g.Set.Kind(), kind, cad.ErrWrongKind)
		}
		prev, ok := merged[g.Name]
		if !ok {
			order = append(order, g.Name)
			merged[g.Name] = g
			continue
		}
		u, err := cad.Union(prev.Set, g.Set)
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", g.Name, err)
		}
		prev.Set = u
		if g.L != nil {
			prev.L = g.L
		}
		merged[g.Name] = prev
	}
	out := make([]resolvedGroup, 0, len(order))
	for _, name := range order {
		g := merged[name]
		ids, err := idsOf(g.Set, a.Feature)
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", name, err)
		}
		rg := resolvedGroup{name: name, ids: ids}
		if g.L != nil {
			if rg.l, err = g.L.Value(); err != nil {
				return nil, fmt.Errorf("group %s: %w", name, err)
			}
			rg.hasL = true
		}
		out = append(out, rg)
	}
	return out, nil
}

func (sc *meshScript) write(w io.Writer) error {
	b := &strings.Builder{}
	fmt.Fprintln(b, `SetFactory("Built-in");`)
	fmt.Fprintln(b, "Geometry.Tolerance = 1e-10;")
	sc.writeGeometry(b)

	for _, g := range sc.vertices {
		fmt.Fprintf(b, "Physical Point(%q) = {%s};\n", g.name, idList(g.ids))
	}
	for _, g := range sc.edges {
		fmt.Fprintf(b, "Physical Line(%q) = {%s};\n", g.name, idList(g.ids))
	}
	for _, g := range sc.faces {
		fmt.Fprintf(b, "Physical Surface(%q) = {%s};\n", g.name, idList(g.ids))
	}
	if sc.volumeName != "" {
		fmt.Fprintf(b, "Physical Volume(%q) = {%s};\n", sc.volumeName, idList(sc.shape.IDs(geom.Solid)))
	}

	nv := sc.shape.Count(geom.Vertex)
	for k, p := range sc.named {
		id := nv + k + 1
		fmt.Fprintf(b, "Point(%d) = {%s, %s, %s, %s};\n", id, num(p.loc[0]), num(p.loc[1]), num(p.loc[2]), num(sc.lmax))
		for _, so := range sc.shape.IDs(geom.Solid) {
			if sc.shape.SolidContains(so, p.loc, geom.DefaultTolerance) {
				fmt.Fprintf(b, "Point{%d} In Volume{%d};\n", id, so+1)
				break
			}
		}
		fmt.Fprintf(b, "Physical Point(%q) = {%d};\n", p.name, id)
	}

	for _, g := range sc.vertices {
		if g.hasL {
			fmt.Fprintf(b, "Characteristic Length{%s} = %s;\n", idList(g.ids), num(g.l))
		}
	}
	for _, g := range sc.edges {
		if g.hasL {
			fmt.Fprintf(b, "Characteristic Length{%s} = %s;\n", idList(verticesOf(g.ids, sc.shape.EdgeVertices)), num(g.l))
		}
	}
	for _, g := range sc.faces {
		if g.hasL {
			fmt.Fprintf(b, "Characteristic Length{%s} = %s;\n", idList(verticesOf(g.ids, sc.shape.FaceVertices)), num(g.l))
		}
	}

	if sc.linear {
		fmt.Fprintln(b, "Mesh.ElementOrder = 1;")
	} else {
		fmt.Fprintln(b, "Mesh.ElementOrder = 2;")
		fmt.Fprintln(b, "Mesh.SecondOrderLinear = 0;")
	}
	if sc.format == meshFormats[".msh"] {
		fmt.Fprintln(b, "Mesh.MshFileVersion = 4.1;")
	}
	fmt.Fprintf(b, "Mesh.Format = %d;\n", sc.format)
	fmt.Fprintln(b, "Mesh.Algorithm = 1;")
	fmt.Fprintln(b, "Mesh.Algorithm3D = 4;")
	fmt.Fprintf(b, "Mesh.CharacteristicLengthMin = %s;\n", num(sc.lmin))
	fmt.Fprintf(b, "Mesh.CharacteristicLengthMax = %s;\n", num(sc.lmax))
	fmt.Fprintln(b, "Mesh.Smoothing = 10;")
	fmt.Fprintln(b, "Mesh.SmoothNormals = 1;")
	fmt.Fprintln(b, "Mesh.Explode = 1;")
	if sc.threads > 0 {
		fmt.Fprintf(b, "General.NumThreads = %d;\n", sc.threads)
	}
	if sc.format == meshFormats[".stl"] {
		fmt.Fprintln(b, "Mesh.Binary = 1;")
		fmt.Fprintln(b, "Mesh.MinimumCirclePoints = 20;")
		fmt.Fprintln(b, "Mesh 2;")
	} else {
		fmt.Fprintln(b, "Mesh 3;")
		fmt.Fprintln(b, "Coherence Mesh;")
	}
	fmt.Fprintf(b, "Save %q;\n", sc.output)

	_, err := io.WriteString(w, b.String())
	return err
}

// idList formats 0-based ids as a 1-based gmsh entity list.
func idList(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id + 1)
	}
	return strings.Join(parts, ", ")
}

func verticesOf(ids []int, fn func(int) []int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, id := range ids {
		for _, v := range fn(id) {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	sort.Ints(out)
	return out
}

func num(x float64) string { return strconv.FormatFloat(x, 'g', -1, 64) }

func runMesher(ctx context.Context, cfg MesherConfig, dir, script string) error {
	exe := cfg.Executable
	if exe == "" {
		exe = "gmsh"
	}
	logger := ctxlog.FromContext(ctx)
	cmd := execCommand(ctx, exe, script, "-")
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	logger.Debug("Starting mesher.", "command", cmd.String())
	err := cmd.Run()
	if err == nil {
		logger.Info("Mesher finished.", "script", script)
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return &ProcessError{Command: exe, ExitCode: ee.ExitCode(), Stderr: strings.TrimSpace(stderr.String())}
	}
	return fmt.Errorf("failed to start %s: %w", exe, err)
}

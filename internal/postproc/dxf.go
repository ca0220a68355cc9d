package postproc

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/vk/iscadgo/internal/cad"
	"github.com/vk/iscadgo/internal/ctxlog"
	"github.com/vk/iscadgo/internal/geom"
)

// hlSegments is the number of pieces an edge is split into for hidden
// line classification.
const hlSegments = 16

// View is one projection of a feature in a drawing.
type View struct {
	Name    string
	Feature *cad.Feature
	On      cad.Vector
	Normal  cad.Vector
	// Up defaults to the z axis, or the y axis when the normal is vertical.
	Up      cad.Vector
	Section bool
	Poly    bool
	SkipHL  bool
	// Add holds any of "lrtbk": left, right, top, bottom and back views
	// placed around this one.
	Add     string
}

// DrawingExport writes projected views of features to a DXF file.
type DrawingExport struct {
	cfg   Config
	Path  string
	Views []View
}

// NewDrawingExport creates a DXF action.
func NewDrawingExport(cfg Config, path string, views []View) *DrawingExport {
	return &DrawingExport{cfg: cfg, Path: path, Views: views}
}

func (a *DrawingExport) Kind() string { return "DXF" }

type point2 [2]float64

type segment2 struct{ a, b point2 }

// projection is a single drawn view.
type projection struct {
	name    string
	hidden  bool
	poly    bool
	visible []segment2
	hiddenL []segment2
}

func (p *projection) bounds() (lo, hi point2) {
	lo = point2{math.Inf(1), math.Inf(1)}
	hi = point2{math.Inf(-1), math.Inf(-1)}
	for _, list := range [][]segment2{p.visible, p.hiddenL} {
		for _, s := range list {
			for _, q := range []point2{s.a, s.b} {
				for d := 0; d < 2; d++ {
					lo[d] = math.Min(lo[d], q[d])
					hi[d] = math.Max(hi[d], q[d])
				}
			}
		}
	}
	if math.IsInf(lo[0], 1) {
		return point2{}, point2{}
	}
	return lo, hi
}

func (p *projection) shift(dx, dy float64) {
	for _, list := range [][]segment2{p.visible, p.hiddenL} {
		for i := range list {
			list[i].a[0] += dx
			list[i].a[1] += dy
			list[i].b[0] += dx
			list[i].b[1] += dy
		}
	}
}

// frame is a view direction with its in-plane axes.
type frame struct {
	on, dir, right, up geom.Vec3
}

func newFrame(on, normal, up geom.Vec3) (frame, error) {
	dir := normal.Unit()
	if dir.Norm() == 0 {
		return frame{}, fmt.Errorf("view normal has zero length: %w", geom.ErrDegenerate)
	}
	up = up.Sub(dir.Scale(up.Dot(dir)))
	if up.Norm() < 1e-9 {
		return frame{}, fmt.Errorf("view up direction is parallel to the normal: %w", geom.ErrDegenerate)
	}
	up = up.Unit()
	return frame{on: on, dir: dir, up: up, right: up.Cross(dir)}, nil
}

func (f frame) project(p geom.Vec3) point2 {
	r := p.Sub(f.on)
	return point2{r.Dot(f.right), r.Dot(f.up)}
}

// hidden reports whether p is behind material as seen along dir. Edges lie
// on cell boundaries, so the ray is cast from four points nudged off p
// across the view plane and all of them must be blocked.
func (f frame) hidden(s *geom.Shape, p geom.Vec3, delta, eps float64) bool {
	for _, d := range [4][2]float64{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}} {
		q := p.Add(f.right.Scale(d[0] * delta)).Add(f.up.Scale(d[1] * delta))
		if !s.Occludes(q, f.dir, eps) {
			return false
		}
	}
	return true
}

// added returns the frame of an auxiliary view.
func (f frame) added(c byte) frame {
	switch c {
	case 'l':
		return frame{on: f.on, dir: f.right.Scale(-1), up: f.up, right: f.dir}
	case 'r':
		return frame{on: f.on, dir: f.right, up: f.up, right: f.dir.Scale(-1)}
	case 't':
		return frame{on: f.on, dir: f.up, up: f.dir.Scale(-1), right: f.right}
	case 'b':
		return frame{on: f.on, dir: f.up.Scale(-1), up: f.dir, right: f.right}
	case 'k':
		return frame{on: f.on, dir: f.dir.Scale(-1), up: f.up, right: f.right.Scale(-1)}
	}
	return f
}

var addedSuffix = map[byte]string{'l': "left", 'r': "right", 't': "top", 'b': "bottom", 'k': "back"}

func (a *DrawingExport) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("action", a.Kind(), "path", a.Path)
	var all []*projection
	for _, v := range a.Views {
		ps, err := a.projectView(ctx, v)
		if err != nil {
			return fmt.Errorf("view %s: %w", v.Name, err)
		}
		all = append(all, ps...)
	}
	path, err := a.cfg.resolve(a.Path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create drawing: %w", err)
	}
	w := bufio.NewWriter(f)
	werr := writeDXF(w, all)
	if werr == nil {
		werr = w.Flush()
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("failed to write drawing %s: %w", path, werr)
	}
	logger.Info("Wrote drawing.", "views", len(all))
	return nil
}

func (a *DrawingExport) projectView(ctx context.Context, v View) ([]*projection, error) {
	s, err := shapeOf(ctx, v.Feature)
	if err != nil {
		return nil, err
	}
	on, err := v.On.Value()
	if err != nil {
		return nil, err
	}
	normal, err := v.Normal.Value()
	if err != nil {
		return nil, err
	}
	var up geom.Vec3
	if v.Up != nil {
		if up, err = v.Up.Value(); err != nil {
			return nil, err
		}
	} else {
		up = geom.V(0, 0, 1)
		if math.Abs(normal.Unit().Dot(up)) > 1-1e-9 {
			up = geom.V(0, 1, 0)
		}
	}
	fr, err := newFrame(on, normal, up)
	if err != nil {
		return nil, err
	}
	if v.Section {
		if s, err = geom.HalfSpace(s, on, fr.dir); err != nil {
			return nil, err
		}
	}

	main := drawShape(s, fr, v.Name, v.SkipHL, v.Poly)
	out := []*projection{main}
	mlo, mhi := main.bounds()
	add := v.Add
	if strings.ContainsRune(add, 'k') && !strings.ContainsRune(add, 'l') {
		add += "l"
	}
	var left *projection
	for _, c := range []byte("lrtbk") {
		if !strings.ContainsRune(add, rune(c)) {
			continue
		}
		p := drawShape(s, fr.added(c), v.Name+"_"+addedSuffix[c], v.SkipHL, v.Poly)
		lo, hi := p.bounds()
		w, h := hi[0]-lo[0], hi[1]-lo[1]
		mw, mh := mhi[0]-mlo[0], mhi[1]-mlo[1]
		// centre of the view relative to the centre of the main view
		var cx, cy float64
		switch c {
		case 'l':
			cx = 0.55 * (mw + w)
		case 'r':
			cx = -0.55 * (mw + w)
		case 't':
			cy = -0.55 * (mh + h)
		case 'b':
			cy = 0.55 * (mh + h)
		case 'k':
			llo, lhi := left.bounds()
			lw := lhi[0] - llo[0]
			cx = 0.55*(mw+lw) + 0.55*(lw+w)
		}
		p.shift((mlo[0]+mhi[0])/2+cx-(lo[0]+hi[0])/2, (mlo[1]+mhi[1])/2+cy-(lo[1]+hi[1])/2)
		if c == 'l' {
			left = p
		}
		out = append(out, p)
	}
	return out, nil
}

// drawShape projects all edges of s, splitting them into visible and
// hidden parts.
func drawShape(s *geom.Shape, fr frame, name string, skipHL, poly bool) *projection {
	p := &projection{name: name, hidden: !skipHL, poly: poly}
	lo, hi := s.BoundingBox(0)
	scale := math.Max(1, hi.Sub(lo).Norm())
	eps, delta := 1e-9*scale, 1e-6*scale
	for _, id := range s.IDs(geom.Edge) {
		a, b := s.EdgeEnds(id)
		var runStart geom.Vec3
		var runHidden, inRun bool
		flush := func(end geom.Vec3) {
			seg := segment2{fr.project(runStart), fr.project(end)}
			if runHidden {
				p.hiddenL = append(p.hiddenL, seg)
			} else {
				p.visible = append(p.visible, seg)
			}
		}
		for k := 0; k < hlSegments; k++ {
			t0 := float64(k) / hlSegments
			t1 := float64(k+1) / hlSegments
			q0 := a.Add(b.Sub(a).Scale(t0))
			mid := a.Add(b.Sub(a).Scale((t0 + t1) / 2))
			hidden := fr.hidden(s, mid, delta, eps)
			if !inRun {
				runStart, runHidden, inRun = q0, hidden, true
				continue
			}
			if hidden != runHidden {
				flush(q0)
				runStart, runHidden = q0, hidden
			}
		}
		if inRun {
			flush(b)
		}
	}
	if skipHL {
		p.hiddenL = nil
	}
	p.visible = cleanup(p.visible)
	p.hiddenL = cleanup(p.hiddenL)
	return p
}

func samePoint(p, q point2) bool {
	const tol = 1e-9
	return math.Abs(p[0]-q[0]) < tol && math.Abs(p[1]-q[1]) < tol
}

// cleanup removes edges seen end-on and edges drawn over each other.
func cleanup(segs []segment2) []segment2 {
	out := segs[:0]
next:
	for _, s := range segs {
		if samePoint(s.a, s.b) {
			continue
		}
		for _, o := range out {
			if (samePoint(s.a, o.a) && samePoint(s.b, o.b)) || (samePoint(s.a, o.b) && samePoint(s.b, o.a)) {
				continue next
			}
		}
		out = append(out, s)
	}
	return out
}

// chain joins segments sharing end points into polylines.
func chain(segs []segment2) [][]point2 {
	same := samePoint
	used := make([]bool, len(segs))
	var out [][]point2
	for i := range segs {
		if used[i] {
			continue
		}
		used[i] = true
		line := []point2{segs[i].a, segs[i].b}
		for grown := true; grown; {
			grown = false
			for j := range segs {
				if used[j] {
					continue
				}
				last := line[len(line)-1]
				switch {
				case same(segs[j].a, last):
					line = append(line, segs[j].b)
				case same(segs[j].b, last):
					line = append(line, segs[j].a)
				case same(segs[j].b, line[0]):
					line = append([]point2{segs[j].a}, line...)
				case same(segs[j].a, line[0]):
					line = append([]point2{segs[j].b}, line...)
				default:
					continue
				}
				used[j] = true
				grown = true
			}
		}
		out = append(out, line)
	}
	return out
}

type dxfWriter struct {
	w   io.Writer
	err error
}

func (d *dxfWriter) pair(code int, value any) {
	if d.err != nil {
		return
	}
	if f, ok := value.(float64); ok {
		value = num(f)
	}
	_, d.err = fmt.Fprintf(d.w, "%3d\n%v\n", code, value)
}

func writeDXF(w io.Writer, views []*projection) error {
	d := &dxfWriter{w: w}
	layers := make(map[string]string)
	for _, v := range views {
		layers[v.name] = "CONTINUOUS"
		if v.hidden && len(v.hiddenL) > 0 {
			layers[v.name+"_HL"] = "DASHED"
		}
	}
	names := make([]string, 0, len(layers))
	for n := range layers {
		names = append(names, n)
	}
	sort.Strings(names)

	d.pair(0, "SECTION")
	d.pair(2, "HEADER")
	d.pair(9, "$ACADVER")
	d.pair(1, "AC1015")
	d.pair(9, "$INSUNITS")
	d.pair(70, 4)
	d.pair(0, "ENDSEC")

	d.pair(0, "SECTION")
	d.pair(2, "TABLES")
	d.pair(0, "TABLE")
	d.pair(2, "LTYPE")
	d.pair(70, 2)
	d.pair(0, "LTYPE")
	d.pair(2, "CONTINUOUS")
	d.pair(70, 0)
	d.pair(3, "Solid line")
	d.pair(72, 65)
	d.pair(73, 0)
	d.pair(40, 0.0)
	d.pair(0, "LTYPE")
	d.pair(2, "DASHED")
	d.pair(70, 0)
	d.pair(3, "Dashed __ __ __")
	d.pair(72, 65)
	d.pair(73, 2)
	d.pair(40, 0.75)
	d.pair(49, 0.5)
	d.pair(49, -0.25)
	d.pair(0, "ENDTAB")
	d.pair(0, "TABLE")
	d.pair(2, "LAYER")
	d.pair(70, len(names))
	for _, n := range names {
		d.pair(0, "LAYER")
		d.pair(2, n)
		d.pair(70, 0)
		d.pair(62, 7)
		d.pair(6, layers[n])
	}
	d.pair(0, "ENDTAB")
	d.pair(0, "ENDSEC")

	d.pair(0, "SECTION")
	d.pair(2, "ENTITIES")
	for _, v := range views {
		writeSegments(d, v.name, v.visible, v.poly)
		if v.hidden {
			writeSegments(d, v.name+"_HL", v.hiddenL, v.poly)
		}
	}
	d.pair(0, "ENDSEC")
	d.pair(0, "EOF")
	return d.err
}

func writeSegments(d *dxfWriter, layer string, segs []segment2, poly bool) {
	if !poly {
		for _, s := range segs {
			d.pair(0, "LINE")
			d.pair(8, layer)
			d.pair(10, s.a[0])
			d.pair(20, s.a[1])
			d.pair(30, 0.0)
			d.pair(11, s.b[0])
			d.pair(21, s.b[1])
			d.pair(31, 0.0)
		}
		return
	}
	for _, line := range chain(segs) {
		closed := len(line) > 2 && samePoint(line[0], line[len(line)-1])
		if closed {
			line = line[:len(line)-1]
		}
		d.pair(0, "LWPOLYLINE")
		d.pair(8, layer)
		d.pair(90, len(line))
		if closed {
			d.pair(70, 1)
		} else {
			d.pair(70, 0)
		}
		for _, p := range line {
			d.pair(10, p[0])
			d.pair(20, p[1])
		}
	}
}

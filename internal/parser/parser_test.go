package parser

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/iscadgo/internal/cad"
	"github.com/vk/iscadgo/internal/ctxlog"
	"github.com/vk/iscadgo/internal/geom"
	"github.com/vk/iscadgo/internal/model"
	"github.com/vk/iscadgo/internal/postproc"
	"github.com/vk/iscadgo/internal/registry"
	"github.com/vk/iscadgo/modules/box"
	"github.com/vk/iscadgo/modules/compound"
	"github.com/vk/iscadgo/modules/transform"
)

func testCtx() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newModel() *model.Model {
	return model.New(&cad.Env{Engine: geom.NewKernel()})
}

func testOptions(t *testing.T) Options {
	t.Helper()
	reg := registry.New()
	reg.RegisterModules(&box.Module{}, &compound.Module{}, &transform.Module{})
	return Options{Registry: reg, Actions: postproc.Config{OutputDir: t.TempDir()}, BaseDir: t.TempDir()}
}

// parse parses src into a fresh model and fails the test on diagnostics.
func parse(t *testing.T, src string) *model.Model {
	t.Helper()
	m := newModel()
	diags := Parse(testCtx(), m, "test.iscad", []byte(src), testOptions(t))
	require.False(t, diags.HasErrors(), "unexpected diagnostics: %s", diags.Error())
	return m
}

func scalarOf(t *testing.T, m *model.Model, name string) float64 {
	t.Helper()
	s, err := m.Scalar(name)
	require.NoError(t, err)
	x, err := s.Value()
	require.NoError(t, err)
	return x
}

func vectorOf(t *testing.T, m *model.Model, name string) geom.Vec3 {
	t.Helper()
	v, err := m.Vector(name)
	require.NoError(t, err)
	x, err := v.Value()
	require.NoError(t, err)
	return x
}

func TestParse_Scalars(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name string
		expr string
		want float64
	}{
		{"precedence", "1 + 2 * 3", 7},
		{"left associative", "10 - 4 - 3", 3},
		{"parentheses", "(1 + 2) * 3", 9},
		{"unary minus", "-2 * -3", 6},
		{"division", "1 / 4", 0.25},
		{"dot product", "[1,2,3] & [4,5,6]", 32},
		{"component", "([1,2,3] + [1,1,1]).z", 4},
		{"math function", "sqrt(16) + cos(0)", 5},
		{"pow and atan2", "pow(2, 10) + atan2(0, 1)", 1024},
		{"magnitude", "mag([3, 4, 0])", 5},
		{"constants", "180 * deg / M_PI", 1},
		{"exponent literal", "1.5e2", 150},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := parse(t, "x = "+tc.expr+";")
			assert.InDelta(t, tc.want, scalarOf(t, m, "x"), 1e-12)
		})
	}
}

func TestParse_Vectors(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name string
		expr string
		want geom.Vec3
	}{
		{"sum", "[1,0,0] + [0,1,0]", geom.V(1, 1, 0)},
		{"difference", "EX - EY", geom.V(1, -1, 0)},
		{"scaled", "2 * [1,2,3] / 4", geom.V(0.5, 1, 1.5)},
		{"scaled right", "[1,2,3] * 2", geom.V(2, 4, 6)},
		{"cross product", "EX ^ EY", geom.V(0, 0, 1)},
		{"negated", "-EZ", geom.V(0, 0, -1)},
		{"datum as point", "RefPt([1,2,3]) + O", geom.V(1, 2, 3)},
		{"projection on plane", "[1,2,3] >> XY", geom.V(1, 2, 0)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := parse(t, "v = "+tc.expr+";")
			assert.True(t, vectorOf(t, m, "v").ApproxEqual(tc.want, 1e-12), "got %v", vectorOf(t, m, "v"))
		})
	}
}

func TestParse_BooleanSubtract(t *testing.T) {
	t.Parallel()
	m := parse(t, `
box1: Box(O, [2,0,0], [0,2,0], [0,0,2]);
box2: Box([1,1,1], [2,0,0], [0,2,0], [0,0,2]);
d: box1 - box2;
v1 = volume(box1);
vd = volume(d);
`)
	assert.InDelta(t, 8, scalarOf(t, m, "v1"), 1e-9)
	assert.InDelta(t, 7, scalarOf(t, m, "vd"), 1e-9)
	assert.Less(t, scalarOf(t, m, "vd"), scalarOf(t, m, "v1"))
}

func TestParse_FeatureOperators(t *testing.T) {
	t.Parallel()
	m := parse(t, `
a: Box(O, [2,0,0], [0,2,0], [0,0,2]);
b: Box([1,0,0], [2,0,0], [0,2,0], [0,0,2]);
i: a & b;
u: a | b;
moved: a << [10, 0, 0] | b;
half: a & Plane([0,0,1], EZ);
scaled: a * 0.5;
vi = volume(i);
vu = volume(u);
vm = volume(moved);
vh = volume(half);
vs = volume(scaled);
`)
	assert.InDelta(t, 4, scalarOf(t, m, "vi"), 1e-9)
	assert.InDelta(t, 12, scalarOf(t, m, "vu"), 1e-9)
	assert.InDelta(t, 16, scalarOf(t, m, "vm"), 1e-9)
	assert.InDelta(t, 4, scalarOf(t, m, "vh"), 1e-9)
	assert.InDelta(t, 1, scalarOf(t, m, "vs"), 1e-9)
}

func TestParse_EndToEnd(t *testing.T) {
	t.Parallel()
	m := parse(t, `
A: Box(O, [2,0,0], [0,2,0], [0,0,1]);
B: Box([1,1,0], [2,0,0], [0,2,0], [0,0,1]);
U: A | B;
V = U ? vertices("loc.z > 0.5");
`)
	ctx := testCtx()
	u, err := m.Modelstep("U")
	require.NoError(t, err)
	require.NoError(t, u.Build(ctx))

	lo, hi, err := u.BoundingBox(0)
	require.NoError(t, err)
	assert.True(t, lo.ApproxEqual(geom.V(0, 0, 0), 1e-9))
	assert.True(t, hi.ApproxEqual(geom.V(3, 3, 1), 1e-9))

	set, err := m.Set("V")
	require.NoError(t, err)
	ids, err := set.IDs()
	require.NoError(t, err)
	require.NotEmpty(t, ids)
	s, err := u.Shape()
	require.NoError(t, err)
	for _, id := range ids {
		assert.GreaterOrEqual(t, id, 0)
		assert.Less(t, id, s.Count(geom.Vertex))
		assert.InDelta(t, 1, s.VertexLocation(id)[2], 1e-9)
	}
}

func TestParse_Selections(t *testing.T) {
	t.Parallel()
	m := parse(t, `
b: Box(O, [1,0,0], [0,2,0], [0,0,3]);
top = b ? faces("normal.z > 0.5");
side = b ? faces("normal.x > 0.5");
both = top | side;
some = b ? faces id = (0, 2);
all = allfaces b;
alsoAll = b ? allfaces;
narrowed = all ? faces("area < 2.5");
edges = b ? edges("len == 1");
n = cumedgelen(edges);
c = coord(b ? vertices("dist(loc, %m0) < 1e-9", [1, 2, 3]));
`)
	count := func(name string) int {
		s, err := m.Set(name)
		require.NoError(t, err)
		ids, err := s.IDs()
		require.NoError(t, err)
		return len(ids)
	}
	assert.Equal(t, 1, count("top"))
	assert.Equal(t, 2, count("both"))
	assert.Equal(t, 2, count("some"))
	assert.Equal(t, 6, count("all"))
	assert.Equal(t, 6, count("alsoAll"))
	assert.Equal(t, 2, count("narrowed"))
	assert.Equal(t, 4, count("edges"))
	assert.InDelta(t, 4, scalarOf(t, m, "n"), 1e-9)
	assert.True(t, vectorOf(t, m, "c").ApproxEqual(geom.V(1, 2, 3), 1e-9))
}

func TestParse_Statements(t *testing.T) {
	t.Parallel()
	m := parse(t, `
# line comment
// another
/* block
   comment */
L = 2;
b: Box(O, [L,0,0], EY, EZ);
c > Box([5,0,0], EX, EY, EZ);
b -> density = 7.8;
b -> areaWeight = 0.5;
p = b $ L1;
q = b @ center;
r = b ! ez;
pl = b % top;
@post
SolidProperties(props) << b;
`)
	assert.Equal(t, []string{"b", "c"}, m.Modelsteps())
	assert.Equal(t, []string{"c"}, m.Components())
	b, err := m.Modelstep("b")
	require.NoError(t, err)
	rho, err := b.Density()
	require.NoError(t, err)
	assert.InDelta(t, 7.8, rho, 1e-12)
	aw, err := b.AreaWeight()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, aw, 1e-12)

	assert.InDelta(t, 2, scalarOf(t, m, "p"), 1e-12)
	assert.True(t, vectorOf(t, m, "q").ApproxEqual(geom.V(1, 0.5, 0.5), 1e-12))
	assert.True(t, vectorOf(t, m, "r").ApproxEqual(geom.V(0, 0, 1), 1e-12))
	pl, err := m.Datum("pl")
	require.NoError(t, err)
	fr, err := pl.Frame()
	require.NoError(t, err)
	assert.InDelta(t, 1, fr.Origin[2], 1e-12)

	a, err := m.NamedAction("props")
	require.NoError(t, err)
	assert.Equal(t, "SolidProperties", a.Kind())
	require.Len(t, m.Actions(), 1)
}

func TestParse_Overrides(t *testing.T) {
	t.Parallel()
	m := newModel()
	param := m.OverrideScalar("L", 5)
	diags := Parse(testCtx(), m, "test.iscad", []byte("L = 2;\nx = L * 2;\n"), testOptions(t))
	require.False(t, diags.HasErrors(), diags.Error())
	assert.InDelta(t, 10, scalarOf(t, m, "x"), 1e-12)

	param.Set(1)
	assert.InDelta(t, 2, scalarOf(t, m, "x"), 1e-12)
}

func TestParse_PostprocStatements(t *testing.T) {
	t.Parallel()
	m := parse(t, `
b: Box(O, EX, EY, EZ);
c: Box(O, [2,0,0], EY, EZ);
DXF("b.dxf") << b front(O, EY, up EZ, poly, add lk) top(O, EZ, section, skiphl), c side(O, EX);
saveAs("b.json") << b top = b?faces("normal.z > 0.5") bottom = b?faces("normal.z < -0.5");
exportSTL("b.stl", 0.01) << b;
exportEMesh("b.eMesh", 0.001, 0.1) << b?alledges;
gmsh("b.msh") << b as solid L = (0.5 0.1) linear
  vertexGroups( corner = b?vertices("loc.z > 0.5") @ 0.05 )
  edgeGroups()
  faceGroups( walls = b?faces("normal.x > 0.5") walls = b?faces("normal.y > 0.5") @ 0.1 )
  vertices( probe = [0.5, 0.5, 2] );
Hydrostatics(hs, [0,0,0.5], EZ, EY, EX) << (b, b);
`)
	actions := m.Actions()
	require.Len(t, actions, 6)
	kinds := make([]string, len(actions))
	for i, a := range actions {
		kinds[i] = a.Kind()
	}
	assert.Equal(t, []string{"DXF", "saveAs", "exportSTL", "exportEMesh", "gmsh", "Hydrostatics"}, kinds)

	dxf := actions[0].(*postproc.DrawingExport)
	require.Len(t, dxf.Views, 3)
	assert.Equal(t, "front", dxf.Views[0].Name)
	assert.NotNil(t, dxf.Views[0].Up)
	assert.True(t, dxf.Views[0].Poly)
	assert.Equal(t, "lk", dxf.Views[0].Add)
	assert.True(t, dxf.Views[1].Section)
	assert.True(t, dxf.Views[1].SkipHL)
	assert.Equal(t, "side", dxf.Views[2].Name)

	save := actions[1].(*postproc.SaveAs)
	require.Len(t, save.FaceGroups, 2)
	assert.Equal(t, "bottom", save.FaceGroups[1].Name)

	mesh := actions[4].(*postproc.Mesh)
	assert.Equal(t, "solid", mesh.VolumeName)
	assert.True(t, mesh.Linear)
	require.Len(t, mesh.VertexGroups, 1)
	assert.NotNil(t, mesh.VertexGroups[0].L)
	assert.Empty(t, mesh.EdgeGroups)
	require.Len(t, mesh.FaceGroups, 2)
	assert.Nil(t, mesh.FaceGroups[0].L)
	require.Len(t, mesh.Vertices, 1)
	assert.Equal(t, "probe", mesh.Vertices[0].Name)

	_, err := m.NamedAction("hs")
	assert.NoError(t, err)
}

func TestParse_ErrorLocality(t *testing.T) {
	t.Parallel()
	m := newModel()
	src := "a = 1;\nb: Box(O, EX, EY, EZ);\nDXF( \"\",\""
	diags := Parse(testCtx(), m, "test.iscad", []byte(src), testOptions(t))
	require.True(t, diags.HasErrors())
	require.NotNil(t, diags[0].Subject)
	assert.Equal(t, 3, diags[0].Subject.Start.Line)
	assert.Equal(t, 8, diags[0].Subject.Start.Column)
	assert.Contains(t, diags[0].Detail, "')'")

	assert.InDelta(t, 1, scalarOf(t, m, "a"), 0)
	_, err := m.Modelstep("b")
	assert.NoError(t, err)
	assert.Empty(t, m.Actions())
}

func TestParse_StopsAtFirstError(t *testing.T) {
	t.Parallel()
	m := newModel()
	src := "a = 1;\nb = nope + 1;\nc = 3;\n"
	diags := Parse(testCtx(), m, "test.iscad", []byte(src), testOptions(t))
	require.True(t, diags.HasErrors())
	assert.Equal(t, "Undefined symbol", diags[0].Summary)
	assert.Equal(t, 2, diags[0].Subject.Start.Line)
	_, ok := m.Lookup("a")
	assert.True(t, ok)
	_, ok = m.Lookup("c")
	assert.False(t, ok)
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name    string
		src     string
		summary string
	}{
		{"undefined symbol", "x = y;", "Undefined symbol"},
		{"type mismatch", "x = EX * EY;", "Type mismatch"},
		{"feature assigned", "b = Box(O, EX, EY, EZ);", "Invalid assignment"},
		{"scalar as modelstep", "b: 1;", "Type mismatch"},
		{"unknown function", "x = frobnicate(1);", "Unknown function"},
		{"modelstep redefined", "b: Box(O, EX, EY, EZ);\nb: Box(O, EX, EY, EZ);", "Invalid modelstep"},
		{"unknown property", "b: Box(O, EX, EY, EZ);\nb -> colour = 1;", "Unknown property"},
		{"property of scalar", "x = 1;\nx -> density = 1;", "Invalid property assignment"},
		{"missing semicolon", "x = 1", "Syntax error"},
		{"bad statement", "x + 1;", "Syntax error"},
		{"invalid character", "x = 1 ~ 2;", "Invalid character"},
		{"bad view option", "b: Box(O, EX, EY, EZ);\nDXF(\"a.dxf\") << b v(O, EZ, add xq);", "Invalid view option"},
		{"wrong group kind", "b: Box(O, EX, EY, EZ);\nsaveAs(\"a.json\") << b e = b?alledges;", "Type mismatch"},
		{"duplicate action name", "b: Box(O, EX, EY, EZ);\nSolidProperties(b) << b;", "Invalid action"},
		{"bad filter", "b: Box(O, EX, EY, EZ);\ns = b ? faces(\"area >\");", "Invalid selection"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			diags := Parse(testCtx(), newModel(), "test.iscad", []byte(tc.src), testOptions(t))
			require.True(t, diags.HasErrors())
			var summaries []string
			for _, d := range diags {
				summaries = append(summaries, d.Summary)
				assert.NotNil(t, d.Subject)
			}
			assert.Contains(t, summaries, tc.summary, diags.Error())
		})
	}
}

func TestParse_SyntaxElements(t *testing.T) {
	t.Parallel()
	src := "w = 2;\nb: Box(O, [w,0,0], EY, EZ);\nu: b | Box([1,0,0], EX, EY, EZ);\n"
	m := parse(t, src)
	b, err := m.Modelstep("b")
	require.NoError(t, err)

	off := strings.Index(src, "Box(O")
	el, ok := m.Syntax.FindAt(off + 1)
	require.True(t, ok)
	assert.Same(t, b, el.Feature)

	ref := strings.Index(src, "u: b") + 3
	el, ok = m.Syntax.FindAt(ref)
	require.True(t, ok)
	assert.Equal(t, "b", el.Symbol)
	assert.Same(t, b, el.Feature)

	def, ok := m.Syntax.Definition("u")
	require.True(t, ok)
	assert.Equal(t, 3, def.Start.Line)
	_, ok = m.Syntax.Definition("w")
	assert.True(t, ok)
}

func TestParseFile(t *testing.T) {
	t.Parallel()
	diags := ParseFile(testCtx(), newModel(), "/does/not/exist.iscad", testOptions(t))
	require.True(t, diags.HasErrors())
	assert.Equal(t, "Failed to read model file", diags[0].Summary)
}

func TestParse_LexErrorAfterStatements(t *testing.T) {
	t.Parallel()
	m := newModel()
	diags := Parse(testCtx(), m, "test.iscad", []byte("a = 1;\nb = 2;\n\"open"), testOptions(t))
	require.Len(t, diags, 1)
	assert.Equal(t, "Unterminated string", diags[0].Summary)
	assert.Equal(t, 3, diags[0].Subject.Start.Line)
	_, ok := m.Lookup("b")
	assert.True(t, ok)
}

func TestLex(t *testing.T) {
	t.Parallel()
	toks, d := lex("t", []byte("a->b >> 1.5e3 \"s\\n\" v.x 2.x"))
	require.Nil(t, d)
	var texts []string
	for _, tok := range toks[:len(toks)-1] {
		texts = append(texts, tok.text)
	}
	assert.Equal(t, []string{"a", "->", "b", ">>", "1.5e3", "s\n", "v", ".", "x", "2", ".", "x"}, texts)
	assert.Equal(t, tokEOF, toks[len(toks)-1].kind)

	toks, d = lex("t", []byte("a = \"open"))
	require.NotNil(t, d)
	assert.Equal(t, "Unterminated string", d.Summary)
	require.Len(t, toks, 3)
	assert.Equal(t, tokEOF, toks[2].kind)
	assert.Equal(t, hcl.Pos{Line: 1, Column: 5, Byte: 4}, toks[2].rng.Start)
}

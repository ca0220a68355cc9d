package box_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/iscadgo/internal/cad"
	"github.com/vk/iscadgo/internal/ctxlog"
	"github.com/vk/iscadgo/internal/geom"
	"github.com/vk/iscadgo/internal/model"
	"github.com/vk/iscadgo/internal/parser"
	"github.com/vk/iscadgo/internal/registry"
	"github.com/vk/iscadgo/modules/box"
)

func parse(t *testing.T, src string) *model.Model {
	t.Helper()
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	reg := registry.New()
	reg.RegisterModules(&box.Module{})
	m := model.New(&cad.Env{Engine: geom.NewKernel()})
	diags := parser.Parse(ctx, m, "box.iscad", []byte(src), parser.Options{Registry: reg})
	require.False(t, diags.HasErrors(), diags.Error())
	return m
}

func TestBox(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name   string
		src    string
		lo, hi geom.Vec3
	}{
		{"corner", "b: Box([1,2,3], [2,0,0], [0,3,0], [0,0,4]);", geom.V(1, 2, 3), geom.V(3, 5, 7)},
		{"centered", "b: Box(O, [2,0,0], [0,2,0], [0,0,2], centered);", geom.V(-1, -1, -1), geom.V(1, 1, 1)},
		{"cube", "b: Cube([1,0,0], 2);", geom.V(1, 0, 0), geom.V(3, 2, 2)},
		{"centered cube", "b: Cube(O, 1, centered);", geom.V(-0.5, -0.5, -0.5), geom.V(0.5, 0.5, 0.5)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := parse(t, tc.src)
			b, err := m.Modelstep("b")
			require.NoError(t, err)
			lo, hi, err := b.BoundingBox(0)
			require.NoError(t, err)
			assert.True(t, lo.ApproxEqual(tc.lo, 1e-9), "lo %v", lo)
			assert.True(t, hi.ApproxEqual(tc.hi, 1e-9), "hi %v", hi)
			assert.Contains(t, []string{"Box", "Cube"}, b.TypeName())
		})
	}
}

func TestBox_Properties(t *testing.T) {
	t.Parallel()
	m := parse(t, `
b: Box(O, [2,0,0], [0,3,0], [0,0,4]);
l = b$L2;
v = b$volume0;
c = b@center;
d = b!ez;
top = b%top;
`)
	scalar := func(name string) float64 {
		s, err := m.Scalar(name)
		require.NoError(t, err)
		x, err := s.Value()
		require.NoError(t, err)
		return x
	}
	vector := func(name string) geom.Vec3 {
		v, err := m.Vector(name)
		require.NoError(t, err)
		x, err := v.Value()
		require.NoError(t, err)
		return x
	}
	assert.InDelta(t, 3, scalar("l"), 1e-12)
	assert.InDelta(t, 24, scalar("v"), 1e-9)
	assert.True(t, vector("c").ApproxEqual(geom.V(1, 1.5, 2), 1e-12))
	assert.True(t, vector("d").ApproxEqual(geom.V(0, 0, 1), 1e-12))

	top, err := m.Datum("top")
	require.NoError(t, err)
	fr, err := top.Frame()
	require.NoError(t, err)
	assert.Equal(t, cad.PlaneDatum, fr.Kind)
	assert.True(t, fr.Origin.ApproxEqual(geom.V(0, 0, 4), 1e-12))
}

func TestBox_ParseErrors(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name string
		src  string
	}{
		{"too few edges", "b: Box(O, EX, EY);"},
		{"scalar corner", "b: Box(1, EX, EY, EZ);"},
		{"bad flag", "b: Cube(O, 1, hollow);"},
		{"vector edge", "b: Cube(O, EX);"},
	}
	reg := registry.New()
	reg.RegisterModules(&box.Module{})
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := model.New(&cad.Env{Engine: geom.NewKernel()})
			diags := parser.Parse(ctx, m, "box.iscad", []byte(tc.src), parser.Options{Registry: reg})
			assert.True(t, diags.HasErrors())
			_, ok := m.Lookup("b")
			assert.False(t, ok)
		})
	}
}

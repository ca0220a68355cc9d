package compound_test

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
	"github.com/vk/iscadgo/modules/compound"
)

func TestCompound(t *testing.T) {
	t.Parallel()
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	reg := registry.New()
	reg.RegisterModules(&box.Module{}, &compound.Module{})
	m := model.New(&cad.Env{Engine: geom.NewKernel()})
	src := `
a: Box(O, EX, EY, EZ);
b: Box([3,0,0], EX, EY, EZ);
c: Compound(a, b);
second: c.component2;
v = volume(c);
`
	diags := parser.Parse(ctx, m, "compound.iscad", []byte(src), parser.Options{Registry: reg})
	require.False(t, diags.HasErrors(), diags.Error())

	c, err := m.Modelstep("c")
	require.NoError(t, err)
	names, err := c.SubfeatureNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"component1", "component2"}, names)

	s, err := c.Shape()
	require.NoError(t, err)
	assert.Equal(t, 2, s.Count(geom.Solid))

	second, err := m.Modelstep("second")
	require.NoError(t, err)
	lo, _, err := second.BoundingBox(0)
	require.NoError(t, err)
	assert.True(t, lo.ApproxEqual(geom.V(3, 0, 0), 1e-12))

	vol, err := m.Scalar("v")
	require.NoError(t, err)
	x, err := vol.Value()
	require.NoError(t, err)
	assert.InDelta(t, 2, x, 1e-9)
}

func TestCompound_RejectsNonFeatures(t *testing.T) {
	t.Parallel()
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	reg := registry.New()
	reg.RegisterModules(&compound.Module{})
	m := model.New(&cad.Env{Engine: geom.NewKernel()})
	diags := parser.Parse(ctx, m, "compound.iscad", []byte("c: Compound(EX);"), parser.Options{Registry: reg})
	require.True(t, diags.HasErrors())
	assert.Equal(t, "Type mismatch", diags[0].Summary)
}

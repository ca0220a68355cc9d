package postproc

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"

	"github.com/vk/iscadgo/internal/cad"
	"github.com/vk/iscadgo/internal/geom"
)

func number(t *testing.T, v cty.Value) float64 {
	t.Helper()
	require.Equal(t, cty.Number, v.Type())
	f, _ := v.AsBigFloat().Float64()
	return f
}

func TestSolidProperties(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	f := boxFeature(t, newEnv(), "b", geom.V(0, 0, 0), geom.V(1, 2, 3))
	f.SetDensity(cad.Const(2))

	a := NewSolidProperties(Config{OutputDir: dir}, "props", f)
	assert.Equal(t, "SolidProperties", a.Kind())
	require.NoError(t, a.Run(testCtx()))

	vals, err := a.Values()
	require.NoError(t, err)
	assert.InDelta(t, 12, number(t, vals["mass"]), 1e-9)
	assert.InDelta(t, 6, number(t, vals["volume"]), 1e-9)
	assert.InDelta(t, 22, number(t, vals["area"]), 1e-9)
	assert.InDelta(t, 13, number(t, vals["Ixx"]), 1e-9)
	assert.InDelta(t, 10, number(t, vals["Iyy"]), 1e-9)
	assert.InDelta(t, 5, number(t, vals["Izz"]), 1e-9)
	cog, err := cad.VecFromCty(vals["cog"])
	require.NoError(t, err)
	assert.True(t, cog.ApproxEqual(geom.V(0.5, 1, 1.5), 1e-9))

	data, err := os.ReadFile(filepath.Join(dir, "props.yaml"))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.InDelta(t, 12.0, doc["mass"], 1e-9)
	assert.Len(t, doc["bbmax"], 3)
}

func TestSolidProperties_ValuesBeforeRun(t *testing.T) {
	t.Parallel()
	f := boxFeature(t, newEnv(), "b", geom.V(0, 0, 0), geom.V(1, 1, 1))
	vals, err := NewSolidProperties(Config{}, "p", f).Values()
	require.NoError(t, err)
	assert.InDelta(t, 1, number(t, vals["mass"]), 1e-9)
}

func TestHydrostatics(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	env := newEnv()
	hull := boxFeature(t, env, "hull", geom.V(0, 0, 0), geom.V(10, 4, 2))

	a := NewHydrostatics(Config{OutputDir: dir}, "hs", hull, hull,
		vec(0, 0, 1), vec(0, 0, 1), vec(0, 1, 0), vec(1, 0, 0))
	assert.Equal(t, "Hydrostatics", a.Kind())
	require.NoError(t, a.Run(testCtx()))

	vals, err := a.Values()
	require.NoError(t, err)
	assert.InDelta(t, 40, number(t, vals["V"]), 1e-9)
	assert.InDelta(t, 40, number(t, vals["Aw"]), 1e-9)
	assert.InDelta(t, 10*64.0/12, number(t, vals["Iw"]), 1e-9)
	assert.InDelta(t, 4.0/3, number(t, vals["BM"]), 1e-9)
	assert.InDelta(t, -0.5+4.0/3, number(t, vals["GM"]), 1e-9)
	B, err := cad.VecFromCty(vals["B"])
	require.NoError(t, err)
	assert.True(t, B.ApproxEqual(geom.V(5, 2, 0.5), 1e-9))

	_, err = os.Stat(filepath.Join(dir, "hs.yaml"))
	assert.NoError(t, err)
}

func TestHydrostatics_Errors(t *testing.T) {
	t.Parallel()
	env := newEnv()
	hull := boxFeature(t, env, "hull", geom.V(0, 0, 0), geom.V(10, 4, 2))

	testCases := []struct {
		name    string
		psfc    cad.Vector
		nsfc    cad.Vector
		wantErr error
	}{
		{"oblique waterplane", vec(0, 0, 1), vec(0, 1, 1), geom.ErrUnsupported},
		{"not submerged", vec(0, 0, -1), vec(0, 0, 1), geom.ErrDegenerate},
		{"zero normal", vec(0, 0, 1), vec(0, 0, 0), geom.ErrDegenerate},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewHydrostatics(Config{}, "hs", hull, hull, tc.psfc, tc.nsfc, vec(0, 1, 0), vec(1, 0, 0))
			_, err := a.Values()
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestReport_Typesetter(t *testing.T) {
	f := boxFeature(t, newEnv(), "b", geom.V(0, 0, 0), geom.V(1, 1, 1))

	t.Run("failure is not fatal", func(t *testing.T) {
		dir := t.TempDir()
		withCommand(t, fakeCommand(1, ""))
		cfg := Config{OutputDir: dir, Typesetter: "pdflatex"}
		require.NoError(t, NewSolidProperties(cfg, "p", f).Run(testCtx()))
		data, err := os.ReadFile(filepath.Join(dir, "p.tex"))
		require.NoError(t, err)
		assert.Contains(t, string(data), `Solid properties of b`)
	})

	t.Run("dry run", func(t *testing.T) {
		withCommand(t, func(context.Context, string, ...string) *exec.Cmd {
			t.Fatal("typesetter must not start")
			return nil
		})
		cfg := Config{OutputDir: t.TempDir(), Typesetter: "pdflatex", DryRun: true}
		assert.NoError(t, NewSolidProperties(cfg, "p", f).Run(testCtx()))
	})
}

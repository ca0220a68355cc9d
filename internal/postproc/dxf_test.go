package postproc

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/iscadgo/internal/geom"
)

// layerEntities counts entities of a type on a layer.
func layerEntities(dxf, entity, layer string) int {
	lines := strings.Split(dxf, "\n")
	n := 0
	for i := 0; i+3 < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "0" && lines[i+1] == entity &&
			strings.TrimSpace(lines[i+2]) == "8" && lines[i+3] == layer {
			n++
		}
	}
	return n
}

func TestDrawingExport_HiddenLines(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	f := hollowCube(t, newEnv())
	a := NewDrawingExport(Config{OutputDir: dir}, "hollow.dxf", []View{
		{Name: "top", Feature: f, On: vec(0, 0, 0), Normal: vec(0, 0, 1)},
	})
	assert.Equal(t, "DXF", a.Kind())
	require.NoError(t, a.Run(testCtx()))

	data, err := os.ReadFile(filepath.Join(dir, "hollow.dxf"))
	require.NoError(t, err)
	dxf := string(data)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(dxf), "EOF"))
	assert.Contains(t, dxf, "DASHED")
	assert.Positive(t, layerEntities(dxf, "LINE", "top"))
	assert.Positive(t, layerEntities(dxf, "LINE", "top_HL"))
}

func TestDrawingExport_Options(t *testing.T) {
	t.Parallel()
	f := hollowCube(t, newEnv())

	testCases := []struct {
		name   string
		view   View
		layers []string
		absent []string
	}{
		{
			name:   "skip hidden lines",
			view:   View{Name: "v", Feature: f, On: vec(0, 0, 0), Normal: vec(0, 0, 1), SkipHL: true},
			layers: []string{"v"},
			absent: []string{"v_HL"},
		},
		{
			name:   "back implies left",
			view:   View{Name: "v", Feature: f, On: vec(0, 0, 0), Normal: vec(1, 0, 0), Add: "kt"},
			layers: []string{"v", "v_left", "v_back", "v_top"},
			absent: []string{"v_right", "v_bottom"},
		},
		{
			name:   "section shows the cavity",
			view:   View{Name: "s", Feature: f, On: vec(1.5, 1.5, 1.5), Normal: vec(0, 0, 1), Section: true},
			layers: []string{"s"},
			absent: []string{"s_HL"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, NewDrawingExport(Config{OutputDir: dir}, "d.dxf", []View{tc.view}).Run(testCtx()))
			data, err := os.ReadFile(filepath.Join(dir, "d.dxf"))
			require.NoError(t, err)
			dxf := string(data)
			for _, l := range tc.layers {
				assert.Positive(t, layerEntities(dxf, "LINE", l), "layer %s", l)
			}
			for _, l := range tc.absent {
				assert.Zero(t, layerEntities(dxf, "LINE", l), "layer %s", l)
			}
		})
	}
}

func TestDrawingExport_Poly(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	env := newEnv()
	f := boxFeature(t, env, "b", geom.V(0, 0, 0), geom.V(2, 1, 1))
	v := View{Name: "p", Feature: f, On: vec(0, 0, 0), Normal: vec(0, 0, 1), Poly: true, SkipHL: true}
	require.NoError(t, NewDrawingExport(Config{OutputDir: dir}, "p.dxf", []View{v}).Run(testCtx()))
	data, err := os.ReadFile(filepath.Join(dir, "p.dxf"))
	require.NoError(t, err)
	assert.Equal(t, 1, layerEntities(string(data), "LWPOLYLINE", "p"))
	assert.Zero(t, layerEntities(string(data), "LINE", "p"))
}

func TestChain(t *testing.T) {
	t.Parallel()
	square := []segment2{
		{point2{0, 0}, point2{1, 0}},
		{point2{1, 1}, point2{0, 1}},
		{point2{1, 0}, point2{1, 1}},
		{point2{0, 0}, point2{0, 1}},
	}
	lines := chain(square)
	require.Len(t, lines, 1)
	assert.Len(t, lines[0], 5)
	assert.Equal(t, lines[0][0], lines[0][4])

	apart := []segment2{
		{point2{0, 0}, point2{1, 0}},
		{point2{5, 5}, point2{6, 5}},
	}
	assert.Len(t, chain(apart), 2)
}

func TestNewFrame(t *testing.T) {
	t.Parallel()
	fr, err := newFrame(geom.V(0, 0, 0), geom.V(0, 0, 2), geom.V(0, 1, 0))
	require.NoError(t, err)
	assert.True(t, fr.right.ApproxEqual(geom.V(1, 0, 0), 1e-12))
	assert.Equal(t, point2{2, 3}, fr.project(geom.V(2, 3, 7)))

	_, err = newFrame(geom.V(0, 0, 0), geom.V(0, 0, 1), geom.V(0, 0, 1))
	assert.ErrorIs(t, err, geom.ErrDegenerate)
}

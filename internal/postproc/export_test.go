package postproc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/iscadgo/internal/cad"
	"github.com/vk/iscadgo/internal/geom"
)

func TestSaveAs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	env := newEnv()
	f := boxFeature(t, env, "b", geom.V(0, 0, 0), geom.V(1, 1, 1))
	cfg := Config{OutputDir: dir}

	a := NewSaveAs(cfg, "out/part.json", f, []NamedSet{{Name: "walls", Set: cad.AllOf(f, geom.Face)}})
	assert.Equal(t, "saveAs", a.Kind())
	require.NoError(t, a.Run(testCtx()))

	data, err := os.ReadFile(filepath.Join(dir, "out", "part.json"))
	require.NoError(t, err)
	var doc struct {
		FaceGroups map[string][]int `json:"faceGroups"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Len(t, doc.FaceGroups["walls"], 6)
}

func TestSaveAs_Errors(t *testing.T) {
	t.Parallel()
	env := newEnv()
	f := boxFeature(t, env, "b", geom.V(0, 0, 0), geom.V(1, 1, 1))
	g := boxFeature(t, env, "c", geom.V(2, 0, 0), geom.V(3, 1, 1))
	cfg := Config{OutputDir: t.TempDir()}

	testCases := []struct {
		name    string
		action  *SaveAs
		wantErr error
	}{
		{"unknown format", NewSaveAs(cfg, "part.step", f, nil), geom.ErrFormat},
		{"edge group", NewSaveAs(cfg, "part.json", f, []NamedSet{{Name: "e", Set: cad.AllOf(f, geom.Edge)}}), cad.ErrWrongKind},
		{"other parent", NewSaveAs(cfg, "part.json", f, []NamedSet{{Name: "x", Set: cad.AllOf(g, geom.Face)}}), cad.ErrCrossParent},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.action.Run(testCtx())
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestExportSTL(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	f := boxFeature(t, newEnv(), "b", geom.V(0, 0, 0), geom.V(1, 1, 1))

	require.NoError(t, NewExportSTL(Config{OutputDir: dir}, "b.stl", f, cad.Const(0.01)).Run(testCtx()))
	data, err := os.ReadFile(filepath.Join(dir, "b.stl"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "solid b"))
	assert.Equal(t, 12, strings.Count(string(data), "endfacet"))

	err = NewExportSTL(Config{OutputDir: dir}, "b.stl", f, cad.Const(0)).Run(testCtx())
	assert.ErrorContains(t, err, "tolerance must be positive")
}

func TestExportEMesh(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	f := boxFeature(t, newEnv(), "b", geom.V(0, 0, 0), geom.V(1, 1, 1))

	a := NewExportEMesh(Config{OutputDir: dir}, "edges.eMesh", cad.AllOf(f, geom.Edge), cad.Const(0.01), cad.Const(0.5))
	require.NoError(t, a.Run(testCtx()))
	data, err := os.ReadFile(filepath.Join(dir, "edges.eMesh"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "featureEdgeMesh")

	err = NewExportEMesh(Config{OutputDir: dir}, "faces.eMesh", cad.AllOf(f, geom.Face), cad.Const(0.01), cad.Const(0.5)).Run(testCtx())
	assert.ErrorIs(t, err, cad.ErrWrongKind)
}

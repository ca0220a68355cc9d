package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/iscadgo/internal/app"
)

func TestParse(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name string
		args []string
		want app.Config
	}{
		{
			name: "build defaults",
			args: []string{"build"},
			want: app.Config{
				Command: app.CommandBuild, ModelPaths: []string{"."}, WorkbenchPath: "iscad.hcl",
				LogLevel: "info", LogFormat: "text", WorkerCount: 4,
			},
		},
		{
			name: "build with flags",
			args: []string{"--log-level", "DEBUG", "--log-format", "json", "build", "-o", "out", "--dry-run", "--workers", "8", "a.iscad", "models/**/*.iscad"},
			want: app.Config{
				Command: app.CommandBuild, ModelPaths: []string{"a.iscad", "models/**/*.iscad"}, WorkbenchPath: "iscad.hcl",
				LogLevel: "debug", LogFormat: "json", WorkerCount: 8, OutputDir: "out", DryRun: true,
			},
		},
		{
			name: "check",
			args: []string{"check", "--workbench", "wb.hcl", "--healthcheck-port", "9090", "m"},
			want: app.Config{
				Command: app.CommandCheck, ModelPaths: []string{"m"}, WorkbenchPath: "wb.hcl",
				LogLevel: "info", LogFormat: "text", WorkerCount: 4, HealthcheckPort: 9090,
			},
		},
		{
			name: "eval",
			args: []string{"eval", "-m", "part.iscad", "--json", "L", "b"},
			want: app.Config{
				Command: app.CommandEval, ModelPaths: []string{"part.iscad"}, WorkbenchPath: "iscad.hcl",
				LogLevel: "info", LogFormat: "text", WorkerCount: 4, EvalSymbols: []string{"L", "b"}, JSON: true,
			},
		},
		{
			name: "watch",
			args: []string{"watch", "models"},
			want: app.Config{
				Command: app.CommandWatch, ModelPaths: []string{"models"}, WorkbenchPath: "iscad.hcl",
				LogLevel: "info", LogFormat: "text", WorkerCount: 4,
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg, shouldExit, err := Parse(tc.args, &bytes.Buffer{})
			require.NoError(t, err)
			assert.False(t, shouldExit)
			require.NotNil(t, cfg)
			assert.Equal(t, tc.want, *cfg)
		})
	}
}

func TestParse_Help(t *testing.T) {
	t.Parallel()
	for _, args := range [][]string{{"-h"}, {}, {"build", "--help"}} {
		out := &bytes.Buffer{}
		cfg, shouldExit, err := Parse(args, out)
		require.NoError(t, err)
		assert.True(t, shouldExit)
		assert.Nil(t, cfg)
		assert.Contains(t, out.String(), "Usage:")
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown flag", []string{"build", "--nope"}, "unknown flag: --nope"},
		{"unknown command", []string{"render"}, "unknown command"},
		{"eval without symbols", []string{"eval"}, "requires at least 1 arg"},
		{"bad level", []string{"--log-level", "loud", "build"}, "invalid log-level"},
		{"bad format", []string{"--log-format", "xml", "check"}, "invalid log-format"},
		{"bad port", []string{"--healthcheck-port=-1", "check"}, "invalid healthcheck port"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := Parse(tc.args, &bytes.Buffer{})
			require.Error(t, err)
			exitErr, ok := IsExitError(err)
			require.True(t, ok)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.wantErr)
		})
	}
}

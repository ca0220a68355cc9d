package postproc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/iscadgo/internal/cad"
	"github.com/vk/iscadgo/internal/ctxlog"
	"github.com/vk/iscadgo/internal/geom"
)

func testCtx() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newEnv() *cad.Env {
	return &cad.Env{Engine: geom.NewKernel()}
}

func boxFeature(t *testing.T, env *cad.Env, name string, lo, hi geom.Vec3) *cad.Feature {
	t.Helper()
	s, err := geom.NewBox(lo, hi)
	require.NoError(t, err)
	f := cad.NewFeature(env, &cad.ShapeOp{Tag: "Box", Shape: s})
	f.SetName(name)
	return f
}

// hollowCube is a 3x3x3 cube with a closed unit cavity in its centre.
func hollowCube(t *testing.T, env *cad.Env) *cad.Feature {
	t.Helper()
	outer, err := geom.NewBox(geom.V(0, 0, 0), geom.V(3, 3, 3))
	require.NoError(t, err)
	inner, err := geom.NewBox(geom.V(1, 1, 1), geom.V(2, 2, 2))
	require.NoError(t, err)
	f := cad.NewFeature(env, &cad.ShapeOp{Tag: "Hollow", Shape: geom.Subtract(outer, inner)})
	f.SetName("hollow")
	return f
}

func vec(x, y, z float64) cad.Vector { return cad.ConstVector(geom.V(x, y, z)) }

// fakeCommand runs TestHelperProcess in place of an external program. The
// helper copies its first argument to copyTo and exits with code.
func fakeCommand(code int, copyTo string) func(ctx context.Context, name string, args ...string) *exec.Cmd {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(),
			"GO_WANT_HELPER_PROCESS=1",
			"HELPER_EXIT="+strconv.Itoa(code),
			"HELPER_COPY="+copyTo,
		)
		return cmd
	}
}

func withCommand(t *testing.T, fn func(ctx context.Context, name string, args ...string) *exec.Cmd) {
	t.Helper()
	prev := execCommand
	execCommand = fn
	t.Cleanup(func() { execCommand = prev })
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	// args: "--", program, arguments...
	if dst := os.Getenv("HELPER_COPY"); dst != "" && len(args) > 2 {
		data, err := os.ReadFile(args[2])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(100)
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(100)
		}
	}
	code, _ := strconv.Atoi(os.Getenv("HELPER_EXIT"))
	if code != 0 {
		fmt.Fprint(os.Stderr, "meshing failed")
	}
	os.Exit(code)
}

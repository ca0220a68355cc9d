package dag

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/iscadgo/internal/ctxlog"
)

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// diamond builds L -> a, L -> b, a -> step, b -> step.
func diamond(t *testing.T) *Graph {
	t.Helper()
	g := New()
	for _, id := range []string{"L", "a", "b", "step"} {
		g.AddNode(id)
	}
	require.NoError(t, g.AddEdge("L", "a"))
	require.NoError(t, g.AddEdge("L", "b"))
	require.NoError(t, g.AddEdge("a", "step"))
	require.NoError(t, g.AddEdge("b", "step"))
	return g
}

func TestGraph_Queries(t *testing.T) {
	t.Parallel()
	g := diamond(t)

	deps, err := g.Dependencies("step")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, deps)

	dependents, err := g.Dependents("L")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, dependents)

	down, err := g.Downstream("L")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "step"}, down)

	order, err := g.TopoOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"L", "a", "b", "step"}, order)

	assert.True(t, g.Has("a"))
	assert.False(t, g.Has("z"))
	_, err = g.Dependencies("z")
	assert.Error(t, err)
}

func TestGraph_AddEdgeErrors(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddNode("a")

	assert.ErrorContains(t, g.AddEdge("a", "a"), "self-referential")
	assert.ErrorContains(t, g.AddEdge("a", "b"), "destination node not found")
	assert.ErrorContains(t, g.AddEdge("b", "a"), "source node not found")
}

func TestGraph_DetectCycles(t *testing.T) {
	t.Parallel()
	g := diamond(t)
	require.NoError(t, g.DetectCycles())

	// Arrange
	require.NoError(t, g.AddEdge("step", "L"))

	// Act
	err := g.DetectCycles()

	// Assert
	assert.ErrorContains(t, err, "cycle detected")
}

func TestExecutor_RunsInDependencyOrder(t *testing.T) {
	t.Parallel()
	g := diamond(t)

	var mu sync.Mutex
	var order []string
	fn := func(ctx context.Context, id string) error {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, id)
		return nil
	}

	results, err := NewExecutor(g, 4).Run(testContext(), g.Nodes(), fn)

	require.NoError(t, err)
	assert.Len(t, results, 4)
	require.Len(t, order, 4)
	assert.Equal(t, "L", order[0])
	assert.Equal(t, "step", order[3])
}

func TestExecutor_SkipsDependentsOfFailure(t *testing.T) {
	t.Parallel()
	g := diamond(t)
	boom := errors.New("boom")
	var ran atomic.Int32

	fn := func(ctx context.Context, id string) error {
		ran.Add(1)
		if id == "a" {
			return boom
		}
		return nil
	}

	results, err := NewExecutor(g, 1).Run(testContext(), g.Nodes(), fn)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "execution failed for a")
	assert.ErrorIs(t, results["a"], boom)
	assert.ErrorIs(t, results["step"], ErrSkipped)
	assert.NoError(t, results["L"])
}

func TestExecutor_SubsetFollowsIndirectDependencies(t *testing.T) {
	t.Parallel()
	g := diamond(t)

	var mu sync.Mutex
	var order []string
	fn := func(ctx context.Context, id string) error {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, id)
		return nil
	}

	// step depends on L only through a and b, which are not selected.
	_, err := NewExecutor(g, 2).Run(testContext(), []string{"step", "L"}, fn)

	require.NoError(t, err)
	assert.Equal(t, []string{"L", "step"}, order)
}

func TestExecutor_UnknownNode(t *testing.T) {
	t.Parallel()
	_, err := NewExecutor(New(), 1).Run(testContext(), []string{"x"}, func(context.Context, string) error { return nil })
	assert.ErrorContains(t, err, "node not found")
}

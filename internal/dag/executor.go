package dag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/vk/iscadgo/internal/ctxlog"
)

// ErrSkipped marks nodes that did not run because a dependency failed or
// the run was cancelled.
var ErrSkipped = errors.New("skipped")

// Func is the work done for one node.
type Func func(ctx context.Context, id string) error

// Executor runs a Func over a subset of the graph's nodes, each after all
// of its selected dependencies succeeded.
type Executor struct {
	graph      *Graph
	numWorkers int
}

// NewExecutor returns an executor with the given worker count; values below
// one mean a single worker.
func NewExecutor(g *Graph, workers int) *Executor {
	if workers < 1 {
		workers = 1
	}
	return &Executor{graph: g, numWorkers: workers}
}

type runNode struct {
	id         string
	deps       []*runNode
	dependents []*runNode
	depCount   atomic.Int32
	skipOnce   sync.Once
	err        error
}

type run struct {
	fn    Func
	wg    sync.WaitGroup
	nodes map[string]*runNode
}

// Run executes fn for every id in ids. Dependencies outside ids are assumed
// to be satisfied. It returns the results per id and an error wrapping the
// first root-cause failure.
func (e *Executor) Run(ctx context.Context, ids []string, fn Func) (map[string]error, error) {
	logger := ctxlog.FromContext(ctx)
	r, err := e.plan(ids, fn)
	if err != nil {
		return nil, err
	}

	readyChan := make(chan *runNode, len(r.nodes))
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	roots := 0
	for _, id := range ids {
		if n := r.nodes[id]; n.depCount.Load() == 0 {
			readyChan <- n
			roots++
		}
	}
	logger.Debug("Starting worker pool.", "workers", e.numWorkers, "nodes", len(r.nodes), "roots", roots)

	r.wg.Add(len(r.nodes))
	for i := 0; i < e.numWorkers; i++ {
		go r.worker(runCtx, readyChan, cancel, i)
	}
	r.wg.Wait()
	close(readyChan)

	results := make(map[string]error, len(r.nodes))
	var failed []string
	var rootCause error
	for _, id := range ids {
		n := r.nodes[id]
		results[id] = n.err
		if n.err != nil && !errors.Is(n.err, ErrSkipped) {
			failed = append(failed, id)
			if rootCause == nil {
				rootCause = n.err
			}
		}
	}
	if rootCause != nil {
		return results, fmt.Errorf("execution failed for %s: %w", strings.Join(failed, ", "), rootCause)
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func (e *Executor) plan(ids []string, fn Func) (*run, error) {
	e.graph.mutex.RLock()
	defer e.graph.mutex.RUnlock()

	r := &run{fn: fn, nodes: make(map[string]*runNode, len(ids))}
	for _, id := range ids {
		if _, ok := e.graph.nodes[id]; !ok {
			return nil, fmt.Errorf("node not found: %s", id)
		}
		r.nodes[id] = &runNode{id: id}
	}
	// dependencies may be indirect through nodes that are not selected
	for _, id := range ids {
		n := r.nodes[id]
		seen := map[string]bool{}
		var walk func(gn *node)
		walk = func(gn *node) {
			for did, d := range gn.deps {
				if seen[did] {
					continue
				}
				seen[did] = true
				if dep, ok := r.nodes[did]; ok {
					n.deps = append(n.deps, dep)
					dep.dependents = append(dep.dependents, n)
					continue
				}
				walk(d)
			}
		}
		walk(e.graph.nodes[id])
		n.depCount.Store(int32(len(n.deps)))
	}
	return r, nil
}

// skipDependents marks every downstream node as skipped.
func (r *run) skipDependents(ctx context.Context, n *runNode) {
	logger := ctxlog.FromContext(ctx)
	for _, d := range n.dependents {
		d.skipOnce.Do(func() {
			logger.Warn("Skipping dependent due to upstream failure.", "symbol", d.id, "dependency", n.id)
			d.err = fmt.Errorf("%w: upstream '%s' failed", ErrSkipped, n.id)
			r.wg.Done()
			r.skipDependents(ctx, d)
		})
	}
}

func (r *run) worker(ctx context.Context, readyChan chan *runNode, cancel context.CancelFunc, workerID int) {
	logger := ctxlog.FromContext(ctx).With("workerID", workerID)
	for n := range readyChan {
		if ctx.Err() != nil {
			n.skipOnce.Do(func() {
				n.err = fmt.Errorf("%w: %w", ErrSkipped, ctx.Err())
				r.wg.Done()
				r.skipDependents(ctx, n)
			})
			continue
		}

		var err error
		n.skipOnce.Do(func() { err = r.fn(ctx, n.id) })
		if err != nil {
			logger.Debug("Node failed.", "symbol", n.id, "error", err)
			n.err = err
			cancel()
			r.skipDependents(ctx, n)
			r.wg.Done()
			continue
		}

		for _, d := range n.dependents {
			if d.depCount.Add(-1) == 0 {
				readyChan <- d
			}
		}
		r.wg.Done()
	}
}

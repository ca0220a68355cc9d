package cad

import (
	"context"
	"sync"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/iscadgo/internal/geom"
)

// countingEngine records how often each engine operation runs.
type countingEngine struct {
	*geom.Kernel
	mu    sync.Mutex
	calls map[string]int
}

func newCountingEngine() *countingEngine {
	return &countingEngine{Kernel: geom.NewKernel(), calls: map[string]int{}}
}

func (e *countingEngine) count(op string) {
	e.mu.Lock()
	e.calls[op]++
	e.mu.Unlock()
}

func (e *countingEngine) total() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		n += c
	}
	return n
}

func (e *countingEngine) Box(p0, l1, l2, l3 geom.Vec3) (*geom.Shape, error) {
	e.count("box")
	return e.Kernel.Box(p0, l1, l2, l3)
}

func (e *countingEngine) Union(a, b *geom.Shape) (*geom.Shape, error) {
	e.count("union")
	return e.Kernel.Union(a, b)
}

func (e *countingEngine) Subtract(a, b *geom.Shape) (*geom.Shape, error) {
	e.count("subtract")
	return e.Kernel.Subtract(a, b)
}

func (e *countingEngine) Intersect(a, b *geom.Shape) (*geom.Shape, error) {
	e.count("intersect")
	return e.Kernel.Intersect(a, b)
}

func (e *countingEngine) Transform(s *geom.Shape, t geom.Transform) (*geom.Shape, error) {
	e.count("transform")
	return e.Kernel.Transform(s, t)
}

// testBox is an axis-aligned box from a corner and a size vector.
type testBox struct {
	p0, size Vector
}

func (b *testBox) TypeName() string { return "TestBox" }

func (b *testBox) Hash(h *ParamHash) {
	h.AddVector(b.p0)
	h.AddVector(b.size)
}

func (b *testBox) Build(ctx context.Context, env *Env) (*Result, error) {
	p, err := b.p0.Value()
	if err != nil {
		return nil, err
	}
	l, err := b.size.Value()
	if err != nil {
		return nil, err
	}
	s, err := env.Engine.Box(p, geom.V(l[0], 0, 0), geom.V(0, l[1], 0), geom.V(0, 0, l[2]))
	if err != nil {
		return nil, err
	}
	return &Result{Shape: s}, nil
}

func newEnv() (*Env, *countingEngine) {
	eng := newCountingEngine()
	return &Env{Engine: eng}, eng
}

func box(env *Env, p0, size geom.Vec3) *Feature {
	return NewFeature(env, &testBox{p0: ConstVector(p0), size: ConstVector(size)})
}

type recordingObserver struct {
	mu     sync.Mutex
	built  []string
	cached []string
	failed []string
}

func (o *recordingObserver) FeatureBuilt(f *Feature, _ time.Duration, cached bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if cached {
		o.cached = append(o.cached, f.Name())
		return
	}
	o.built = append(o.built, f.Name())
}

func (o *recordingObserver) FeatureFailed(f *Feature, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed = append(o.failed, f.Name())
}

// provider exposes a datum, point, number and subfeature of its base.
type provider struct{ base *Feature }

func (p *provider) TypeName() string  { return "Provider" }
func (p *provider) Hash(h *ParamHash) { h.AddFeature(p.base) }

func (p *provider) Build(ctx context.Context, env *Env) (*Result, error) {
	s, err := p.base.Shape()
	if err != nil {
		return nil, err
	}
	_, hi := s.BoundingBox(0)
	return &Result{
		Shape:       s,
		Datums:      map[string]Frame{"top": {Kind: PlaneDatum, Origin: geom.V(0, 0, hi[2]), Dir: geom.V(0, 0, 1), Up: geom.V(1, 0, 0)}},
		Points:      map[string]cty.Value{"corner": VecToCty(hi)},
		Props:       map[string]cty.Value{"L": cty.NumberFloatVal(hi[0])},
		Subfeatures: map[string]*Feature{"self": p.base},
	}, nil
}

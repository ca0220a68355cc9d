package cad

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/iscadgo/internal/geom"
	"github.com/vk/iscadgo/internal/shapestore"
)

// BuildState is the lifecycle state of a Feature.
type BuildState int

const (
	Unbuilt BuildState = iota
	Building
	Built
	Failed
)

func (s BuildState) String() string {
	switch s {
	case Unbuilt:
		return "unbuilt"
	case Building:
		return "building"
	case Built:
		return "built"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("BuildState(%d)", int(s))
}

// Engine is the geometry engine boundary consumed by feature operations.
type Engine interface {
	Box(p0, l1, l2, l3 geom.Vec3) (*geom.Shape, error)
	Union(a, b *geom.Shape) (*geom.Shape, error)
	Subtract(a, b *geom.Shape) (*geom.Shape, error)
	Intersect(a, b *geom.Shape) (*geom.Shape, error)
	HalfSpace(s *geom.Shape, p, n geom.Vec3) (*geom.Shape, error)
	Transform(s *geom.Shape, t geom.Transform) (*geom.Shape, error)
	ExtractSolids(s *geom.Shape, ids []int) (*geom.Shape, error)
	Import(path string) (*geom.Shape, error)
}

// Observer is notified about build outcomes.
type Observer interface {
	FeatureBuilt(f *Feature, elapsed time.Duration, cached bool)
	FeatureFailed(f *Feature, err error)
}

// Observers notifies each of its members in order.
type Observers []Observer

func (o Observers) FeatureBuilt(f *Feature, elapsed time.Duration, cached bool) {
	for _, obs := range o {
		obs.FeatureBuilt(f, elapsed, cached)
	}
}

func (o Observers) FeatureFailed(f *Feature, err error) {
	for _, obs := range o {
		obs.FeatureFailed(f, err)
	}
}

// Env is shared by all features of one model.
type Env struct {
	Engine   Engine
	Cache    shapestore.Store[*Result] // optional
	Observer Observer                  // optional
	Logger   *slog.Logger
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Result is what an operation produces: the shape plus the named items a
// feature type exposes.
type Result struct {
	Shape       *geom.Shape
	Subfeatures map[string]*Feature
	Datums      map[string]Frame
	// Props, Points and Directions back the `$`, `@` and `!` lookups. Props
	// hold numbers; the others hold 3-number tuples.
	Props      map[string]cty.Value
	Points     map[string]cty.Value
	Directions map[string]cty.Value
}

// Op defines how a feature is computed.
type Op interface {
	// TypeName is the feature type tag, part of the content hash.
	TypeName() string
	// Hash adds every defining operand to h.
	Hash(h *ParamHash)
	// Build computes the result. Operand features are built on demand.
	Build(ctx context.Context, env *Env) (*Result, error)
}

// Feature is a lazily built node of the model graph. It is safe for
// concurrent use; builds of one feature are serialised by its mutex.
type Feature struct {
	op  Op
	env *Env

	mu    sync.Mutex // guards the build state
	state BuildState
	hash  string
	res   *Result
	err   error

	metaMu        sync.RWMutex
	name          string
	density       Scalar
	areaWeight    Scalar
	visResolution Scalar
}

// NewFeature wraps op into an unbuilt feature.
func NewFeature(env *Env, op Op) *Feature {
	return &Feature{op: op, env: env}
}

func (f *Feature) Name() string {
	f.metaMu.RLock()
	defer f.metaMu.RUnlock()
	return f.name
}

// SetName sets the symbol name used in logs and errors.
func (f *Feature) SetName(name string) {
	f.metaMu.Lock()
	f.name = name
	f.metaMu.Unlock()
}

func (f *Feature) TypeName() string { return f.op.TypeName() }

// Op returns the defining operation.
func (f *Feature) Op() Op { return f.op }

func (f *Feature) State() BuildState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// ContentHash computes the hash of the operation and the current values of
// its operands. Evaluating operands may build upstream features.
func (f *Feature) ContentHash() (string, error) {
	h := NewParamHash()
	h.AddString(f.op.TypeName())
	f.op.Hash(h)
	return h.Sum()
}

// Build realises the feature. It is a no-op when the feature was built
// with the current content hash and re-raises the stored error when the
// last build with this hash failed.
func (f *Feature) Build(ctx context.Context) error {
	hash, err := f.ContentHash()
	if err != nil {
		// an operand failed; the hash is unknown, so nothing can be reused
		berr := f.wrap(err)
		f.mu.Lock()
		repeated := f.state == Failed && f.hash == "" && f.err != nil && f.err.Error() == berr.Error()
		f.finish("", nil, berr)
		f.mu.Unlock()
		if obs := f.env.Observer; obs != nil && !repeated {
			obs.FeatureFailed(f, berr)
		}
		return berr
	}

	f.mu.Lock()
	ev, err := f.buildLocked(ctx, hash)
	f.mu.Unlock()

	if obs := f.env.Observer; obs != nil && ev != nil {
		if ev.err != nil {
			obs.FeatureFailed(f, ev.err)
		} else {
			obs.FeatureBuilt(f, ev.elapsed, ev.cached)
		}
	}
	return err
}

type buildEvent struct {
	elapsed time.Duration
	cached  bool
	err     error
}

func (f *Feature) buildLocked(ctx context.Context, hash string) (*buildEvent, error) {
	if f.hash == hash {
		switch f.state {
		case Built:
			return nil, nil
		case Failed:
			return nil, f.err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := f.env.logger().With("feature", f.Name(), "type", f.op.TypeName())
	if f.env.Cache != nil {
		if res, ok := f.env.Cache.Get(ctx, hash); ok {
			log.Debug("Reusing cached shape.")
			f.finish(hash, res, nil)
			return &buildEvent{cached: true}, nil
		}
	}

	f.state = Building
	start := time.Now()
	log.Debug("Building feature.")
	res, err := f.op.Build(ctx, f.env)
	if err == nil && (res == nil || res.Shape == nil) {
		err = errors.New("operation produced no shape")
	}
	if err != nil {
		berr := f.wrap(err)
		f.finish(hash, nil, berr)
		log.Debug("Feature build failed.", "error", err)
		return &buildEvent{err: berr}, berr
	}
	f.finish(hash, res, nil)
	if f.env.Cache != nil {
		f.env.Cache.Put(ctx, hash, res)
	}
	elapsed := time.Since(start)
	log.Debug("Feature built.", "elapsed", elapsed)
	return &buildEvent{elapsed: elapsed}, nil
}

func (f *Feature) finish(hash string, res *Result, err error) {
	f.hash, f.res, f.err = hash, res, err
	if err != nil {
		f.state = Failed
	} else {
		f.state = Built
	}
}

func (f *Feature) wrap(err error) error {
	return &BuildError{Feature: f.Name(), Type: f.op.TypeName(), Err: err}
}

// result builds the feature and returns its result.
func (f *Feature) result() (*Result, error) {
	if err := f.Build(context.Background()); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.res, nil
}

// Shape builds the feature and returns its shape.
func (f *Feature) Shape() (*geom.Shape, error) {
	res, err := f.result()
	if err != nil {
		return nil, err
	}
	return res.Shape, nil
}

// Subfeature returns a named part provided by the feature.
func (f *Feature) Subfeature(name string) (*Feature, error) {
	res, err := f.result()
	if err != nil {
		return nil, err
	}
	sf, ok := res.Subfeatures[name]
	if !ok {
		return nil, fmt.Errorf("feature %s has no subfeature %q: %w", f.Name(), name, ErrNotFound)
	}
	return sf, nil
}

// SubfeatureNames lists the provided parts in sorted order.
func (f *Feature) SubfeatureNames() ([]string, error) {
	res, err := f.result()
	if err != nil {
		return nil, err
	}
	return sortedKeys(res.Subfeatures), nil
}

// Datum returns a named reference frame provided by the feature.
func (f *Feature) Datum(name string) (Frame, error) {
	res, err := f.result()
	if err != nil {
		return Frame{}, err
	}
	fr, ok := res.Datums[name]
	if !ok {
		return Frame{}, fmt.Errorf("feature %s has no datum %q: %w", f.Name(), name, ErrNotFound)
	}
	return fr, nil
}

// Props returns the number properties of the built feature.
func (f *Feature) Props() (map[string]cty.Value, error) {
	res, err := f.result()
	if err != nil {
		return nil, err
	}
	return res.Props, nil
}

func (f *Feature) lookup(table func(*Result) map[string]cty.Value, what, name string) (cty.Value, error) {
	res, err := f.result()
	if err != nil {
		return cty.NilVal, err
	}
	v, ok := table(res)[name]
	if !ok {
		return cty.NilVal, fmt.Errorf("feature %s has no %s %q: %w", f.Name(), what, name, ErrNotFound)
	}
	return v, nil
}

// ScalarProp returns a named number property.
func (f *Feature) ScalarProp(name string) (float64, error) {
	v, err := f.lookup(func(r *Result) map[string]cty.Value { return r.Props }, "property", name)
	if err != nil {
		return 0, err
	}
	if v.Type() != cty.Number || v.IsNull() {
		return 0, fmt.Errorf("property %q of %s is not a number", name, f.Name())
	}
	x, _ := v.AsBigFloat().Float64()
	return x, nil
}

// PointProp returns a named point.
func (f *Feature) PointProp(name string) (geom.Vec3, error) {
	v, err := f.lookup(func(r *Result) map[string]cty.Value { return r.Points }, "point", name)
	if err != nil {
		return geom.Vec3{}, err
	}
	return VecFromCty(v)
}

// VectorProp returns a named direction.
func (f *Feature) VectorProp(name string) (geom.Vec3, error) {
	v, err := f.lookup(func(r *Result) map[string]cty.Value { return r.Directions }, "direction", name)
	if err != nil {
		return geom.Vec3{}, err
	}
	return VecFromCty(v)
}

// SetDensity sets the volumetric density used by Mass.
func (f *Feature) SetDensity(s Scalar) {
	f.metaMu.Lock()
	f.density = s
	f.metaMu.Unlock()
}

// SetAreaWeight sets the surface mass per area used by Mass.
func (f *Feature) SetAreaWeight(s Scalar) {
	f.metaMu.Lock()
	f.areaWeight = s
	f.metaMu.Unlock()
}

// SetVisResolution sets the tessellation hint for viewers.
func (f *Feature) SetVisResolution(s Scalar) {
	f.metaMu.Lock()
	f.visResolution = s
	f.metaMu.Unlock()
}

func (f *Feature) meta(s Scalar, def float64) (float64, error) {
	if s == nil {
		return def, nil
	}
	return s.Value()
}

// Density returns the density, 1 unless set.
func (f *Feature) Density() (float64, error) {
	f.metaMu.RLock()
	s := f.density
	f.metaMu.RUnlock()
	return f.meta(s, 1)
}

// AreaWeight returns the surface mass per area, 0 unless set.
func (f *Feature) AreaWeight() (float64, error) {
	f.metaMu.RLock()
	s := f.areaWeight
	f.metaMu.RUnlock()
	return f.meta(s, 0)
}

// VisResolution returns the tessellation hint, 0 meaning the default.
func (f *Feature) VisResolution() (float64, error) {
	f.metaMu.RLock()
	s := f.visResolution
	f.metaMu.RUnlock()
	return f.meta(s, 0)
}

// Mass is density·volume + areaWeight·area.
func (f *Feature) Mass() (float64, error) {
	s, err := f.Shape()
	if err != nil {
		return 0, err
	}
	rho, err := f.Density()
	if err != nil {
		return 0, err
	}
	aw, err := f.AreaWeight()
	if err != nil {
		return 0, err
	}
	return rho*s.Volume() + aw*s.SurfaceArea(), nil
}

// Entities returns all entity ids of a kind in the built shape.
func (f *Feature) Entities(k geom.Kind) ([]int, error) {
	s, err := f.Shape()
	if err != nil {
		return nil, err
	}
	return s.IDs(k), nil
}

// BoundingBox returns the bounds of the built shape enlarged by tol.
func (f *Feature) BoundingBox(tol float64) (lo, hi geom.Vec3, err error) {
	s, err := f.Shape()
	if err != nil {
		return lo, hi, err
	}
	lo, hi = s.BoundingBox(tol)
	return lo, hi, nil
}

func (f *Feature) String() string {
	if n := f.Name(); n != "" {
		return n
	}
	return "<" + f.op.TypeName() + ">"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// VecToCty converts a vector to a 3-number tuple.
func VecToCty(v geom.Vec3) cty.Value {
	return cty.TupleVal([]cty.Value{cty.NumberFloatVal(v[0]), cty.NumberFloatVal(v[1]), cty.NumberFloatVal(v[2])})
}

// VecFromCty converts a 3-number tuple or list back to a vector.
func VecFromCty(v cty.Value) (geom.Vec3, error) {
	var out geom.Vec3
	t := v.Type()
	if !(t.IsTupleType() || t.IsListType()) || v.LengthInt() != 3 {
		return out, fmt.Errorf("value of type %s is not a 3-vector", t.FriendlyName())
	}
	i := 0
	for it := v.ElementIterator(); it.Next(); i++ {
		_, e := it.Element()
		if e.Type() != cty.Number || e.IsNull() || !e.IsKnown() {
			return out, fmt.Errorf("vector component %d is not a number", i)
		}
		out[i], _ = e.AsBigFloat().Float64()
	}
	return out, nil
}

package cad

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/iscadgo/internal/geom"
	"github.com/vk/iscadgo/internal/inmemorystore"
)

func TestBuild_IsIdempotent(t *testing.T) {
	t.Parallel()
	env, eng := newEnv()
	f := box(env, geom.V(0, 0, 0), geom.V(1, 2, 3))

	require.NoError(t, f.Build(context.Background()))
	first, err := f.Shape()
	require.NoError(t, err)
	require.NoError(t, f.Build(context.Background()))
	second, err := f.Shape()
	require.NoError(t, err)

	assert.Equal(t, 1, eng.total())
	assert.Equal(t, first.ID(), second.ID())
	assert.Equal(t, Built, f.State())
}

func TestBuild_InvalidatesDownstreamOnly(t *testing.T) {
	t.Parallel()
	env, eng := newEnv()
	size := NewParameterVector(geom.V(2, 2, 2))
	a := NewFeature(env, &testBox{p0: ConstVector{}, size: size})
	b := box(env, geom.V(1, 1, 1), geom.V(2, 2, 2))
	c := box(env, geom.V(10, 0, 0), geom.V(1, 1, 1))
	u := NewFeature(env, &BooleanOp{Kind: BoolUnion, A: a, B: b})

	require.NoError(t, u.Build(context.Background()))
	require.NoError(t, c.Build(context.Background()))
	require.Equal(t, 4, eng.total())
	cShape, _ := c.Shape()
	bShape, _ := b.Shape()

	// Act
	size.Set(geom.V(3, 3, 3))
	require.NoError(t, u.Build(context.Background()))
	require.NoError(t, c.Build(context.Background()))

	// Assert: a and u rebuilt, b and c untouched
	assert.Equal(t, 6, eng.total())
	cAfter, _ := c.Shape()
	bAfter, _ := b.Shape()
	assert.Equal(t, cShape.ID(), cAfter.ID())
	assert.Equal(t, bShape.ID(), bAfter.ID())
	s, err := u.Shape()
	require.NoError(t, err)
	assert.InDelta(t, 27.0, s.Volume(), 1e-9)
}

func TestBuild_FailureIsReraisedUntilInputsChange(t *testing.T) {
	t.Parallel()
	env, eng := newEnv()
	obs := &recordingObserver{}
	env.Observer = obs
	size := NewParameterVector(geom.V(1, 0, 1))
	f := NewFeature(env, &testBox{p0: ConstVector{}, size: size})
	f.SetName("flat")
	dep := Translate(env, f, ConstVector{1, 0, 0})
	dep.SetName("moved")

	err := f.Build(context.Background())
	require.Error(t, err)
	var berr *BuildError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, "flat", berr.Feature)
	assert.Equal(t, "TestBox", berr.Type)
	assert.ErrorIs(t, err, geom.ErrUnsupported)
	assert.Equal(t, Failed, f.State())

	// same inputs: the stored error comes back without another engine call
	again := f.Build(context.Background())
	assert.Same(t, err, again)
	assert.Equal(t, 1, eng.total())

	// dependents fail with the upstream error inside
	derr := dep.Build(context.Background())
	require.Error(t, derr)
	assert.ErrorIs(t, derr, geom.ErrUnsupported)
	assert.Equal(t, 0, eng.calls["transform"])

	// changed inputs: retried and succeeds
	size.Set(geom.V(1, 1, 1))
	require.NoError(t, dep.Build(context.Background()))
	assert.Equal(t, Built, f.State())
	assert.Equal(t, []string{"flat", "moved"}, obs.failed)
}

func TestBuild_OperandFailureIsObservedOnce(t *testing.T) {
	t.Parallel()
	env, eng := newEnv()
	obs := &recordingObserver{}
	env.Observer = obs
	errNoValue := errors.New("no value")
	size := VectorFunc(func() (geom.Vec3, error) { return geom.Vec3{}, errNoValue })
	f := NewFeature(env, &testBox{p0: ConstVector{}, size: size})
	f.SetName("unsized")

	for range 2 {
		err := f.Build(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, errNoValue)
		assert.Equal(t, Failed, f.State())
	}
	assert.Equal(t, 0, eng.total())
	assert.Equal(t, []string{"unsized"}, obs.failed)
	assert.Empty(t, obs.built)
}

func TestBuild_SharedCacheSkipsEngine(t *testing.T) {
	t.Parallel()
	env, eng := newEnv()
	env.Cache = inmemorystore.New[*Result]()
	obs := &recordingObserver{}
	env.Observer = obs

	a := box(env, geom.V(0, 0, 0), geom.V(1, 1, 1))
	a.SetName("a")
	b := box(env, geom.V(0, 0, 0), geom.V(1, 1, 1))
	b.SetName("b")

	require.NoError(t, a.Build(context.Background()))
	require.NoError(t, b.Build(context.Background()))

	assert.Equal(t, 1, eng.total())
	assert.Equal(t, []string{"a"}, obs.built)
	assert.Equal(t, []string{"b"}, obs.cached)
	assert.Equal(t, 1, env.Cache.Len())
}

func TestBuild_CancelledContext(t *testing.T) {
	t.Parallel()
	env, eng := newEnv()
	f := box(env, geom.V(0, 0, 0), geom.V(1, 1, 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.Build(ctx)

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, eng.total())
	assert.Equal(t, Unbuilt, f.State())
}

func TestBooleanSubtractReducesVolume(t *testing.T) {
	t.Parallel()
	env, _ := newEnv()
	a := box(env, geom.V(0, 0, 0), geom.V(2, 2, 2))
	b := box(env, geom.V(1, 1, 1), geom.V(2, 2, 2))
	d := NewFeature(env, &BooleanOp{Kind: BoolSubtract, A: a, B: b})

	vd, err := VolumeOf(d).Value()
	require.NoError(t, err)
	va, err := VolumeOf(a).Value()
	require.NoError(t, err)

	assert.Less(t, vd, va)
	assert.InDelta(t, 7.0, vd, 1e-9)
}

func TestHalfSpaceOp(t *testing.T) {
	t.Parallel()
	env, _ := newEnv()
	a := box(env, geom.V(0, 0, 0), geom.V(2, 2, 2))
	cut := NewFeature(env, &HalfSpaceOp{Base: a, Plane: Plane(ConstVector{0, 0, 0.5}, ConstVector{0, 0, 1})})

	v, err := VolumeOf(cut).Value()
	require.NoError(t, err)
	assert.InDelta(t, 2.0, v, 1e-9)

	bad := NewFeature(env, &HalfSpaceOp{Base: a, Plane: RefPt(ConstVector{})})
	assert.ErrorIs(t, bad.Build(context.Background()), ErrUnsupported)
}

func TestTransformCarriesProvidedItems(t *testing.T) {
	t.Parallel()
	env, _ := newEnv()
	base := box(env, geom.V(0, 0, 0), geom.V(1, 1, 1))
	withDatum := NewFeature(env, &provider{base: base})
	moved := Translate(env, withDatum, ConstVector{0, 0, 5})

	fr, err := moved.Datum("top")
	require.NoError(t, err)
	assert.Equal(t, geom.V(0, 0, 6), fr.Origin)

	p, err := moved.PointProp("corner")
	require.NoError(t, err)
	assert.Equal(t, geom.V(1, 1, 6), p)

	n, err := moved.ScalarProp("L")
	require.NoError(t, err)
	assert.Equal(t, 1.0, n)

	sub, err := moved.Subfeature("self")
	require.NoError(t, err)
	lo, _, err := sub.BoundingBox(0)
	require.NoError(t, err)
	assert.Equal(t, geom.V(0, 0, 5), lo)

	_, err = moved.Datum("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMassUsesMetadata(t *testing.T) {
	t.Parallel()
	env, _ := newEnv()
	f := box(env, geom.V(0, 0, 0), geom.V(1, 1, 1))

	m, err := f.Mass()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, m, 1e-12)

	f.SetDensity(Const(2))
	f.SetAreaWeight(Const(0.5))
	m, err = f.Mass()
	require.NoError(t, err)
	assert.InDelta(t, 2*1+0.5*6, m, 1e-12)
}

func TestExtractSolids(t *testing.T) {
	t.Parallel()
	env, _ := newEnv()
	a := box(env, geom.V(0, 0, 0), geom.V(1, 1, 1))
	b := box(env, geom.V(5, 0, 0), geom.V(2, 1, 1))
	u := NewFeature(env, &BooleanOp{Kind: BoolUnion, A: a, B: b})

	big, err := NewFilterSet(u, geom.Solid, "volume > 1.5")
	require.NoError(t, err)
	x := NewFeature(env, &ExtractOp{Set: big})
	v, err := VolumeOf(x).Value()
	require.NoError(t, err)
	assert.InDelta(t, 2.0, v, 1e-12)

	faces := AllOf(u, geom.Face)
	err = NewFeature(env, &ExtractOp{Set: faces}).Build(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestObservers_FanOut(t *testing.T) {
	t.Parallel()
	env, _ := newEnv()
	first, second := &recordingObserver{}, &recordingObserver{}
	env.Observer = Observers{first, second}

	f := box(env, geom.V(0, 0, 0), geom.V(1, 1, 1))
	f.SetName("b")
	require.NoError(t, f.Build(context.Background()))

	assert.Equal(t, []string{"b"}, first.built)
	assert.Equal(t, []string{"b"}, second.built)
	assert.Empty(t, first.failed)
}

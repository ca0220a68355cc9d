// Package metrics holds the Prometheus collectors of one App. Each App owns
// its registry so that several can run in one process, as they do in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vk/iscadgo/internal/cad"
	"github.com/vk/iscadgo/internal/geom"
)

// Metrics records feature builds, engine calls and post-processing runs.
// It implements cad.Observer.
type Metrics struct {
	Registry *prometheus.Registry

	featureBuilds *prometheus.CounterVec
	buildSeconds  prometheus.Histogram
	engineCalls   *prometheus.CounterVec
	cacheHits     prometheus.Counter
	actions       *prometheus.CounterVec
}

var _ cad.Observer = (*Metrics)(nil)

// New creates the collectors and registers them with a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		featureBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iscad_feature_builds_total",
			Help: "Feature builds by feature type and result.",
		}, []string{"type", "result"}),
		buildSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "iscad_feature_build_seconds",
			Help:    "Time spent in geometry engine calls per feature build.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		engineCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iscad_engine_calls_total",
			Help: "Geometry engine operations by kind.",
		}, []string{"op"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iscad_shape_cache_hits_total",
			Help: "Feature builds answered from the shape cache.",
		}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iscad_postproc_actions_total",
			Help: "Post-processing actions by kind and result.",
		}, []string{"action", "result"}),
	}
	m.Registry.MustRegister(m.featureBuilds, m.buildSeconds, m.engineCalls, m.cacheHits, m.actions)
	return m
}

// FeatureBuilds is the counter vector of feature builds by type and result.
func (m *Metrics) FeatureBuilds() *prometheus.CounterVec { return m.featureBuilds }

// Actions is the counter vector of post-processing runs by kind and result.
func (m *Metrics) Actions() *prometheus.CounterVec { return m.actions }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) FeatureBuilt(f *cad.Feature, elapsed time.Duration, cached bool) {
	m.featureBuilds.WithLabelValues(f.TypeName(), "ok").Inc()
	if cached {
		m.cacheHits.Inc()
		return
	}
	m.buildSeconds.Observe(elapsed.Seconds())
}

func (m *Metrics) FeatureFailed(f *cad.Feature, err error) {
	m.featureBuilds.WithLabelValues(f.TypeName(), "error").Inc()
}

// ActionDone counts a finished post-processing action.
func (m *Metrics) ActionDone(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.actions.WithLabelValues(kind, result).Inc()
}

// Engine wraps e so that every call is counted.
func (m *Metrics) Engine(e cad.Engine) cad.Engine {
	return &countingEngine{next: e, calls: m.engineCalls}
}

type countingEngine struct {
	next  cad.Engine
	calls *prometheus.CounterVec
}

func (c *countingEngine) Box(p0, l1, l2, l3 geom.Vec3) (*geom.Shape, error) {
	c.calls.WithLabelValues("box").Inc()
	return c.next.Box(p0, l1, l2, l3)
}

func (c *countingEngine) Union(a, b *geom.Shape) (*geom.Shape, error) {
	c.calls.WithLabelValues("union").Inc()
	return c.next.Union(a, b)
}

func (c *countingEngine) Subtract(a, b *geom.Shape) (*geom.Shape, error) {
	c.calls.WithLabelValues("subtract").Inc()
	return c.next.Subtract(a, b)
}

func (c *countingEngine) Intersect(a, b *geom.Shape) (*geom.Shape, error) {
	c.calls.WithLabelValues("intersect").Inc()
	return c.next.Intersect(a, b)
}

func (c *countingEngine) HalfSpace(s *geom.Shape, p, n geom.Vec3) (*geom.Shape, error) {
	c.calls.WithLabelValues("halfspace").Inc()
	return c.next.HalfSpace(s, p, n)
}

func (c *countingEngine) Transform(s *geom.Shape, t geom.Transform) (*geom.Shape, error) {
	c.calls.WithLabelValues("transform").Inc()
	return c.next.Transform(s, t)
}

func (c *countingEngine) ExtractSolids(s *geom.Shape, ids []int) (*geom.Shape, error) {
	c.calls.WithLabelValues("extract").Inc()
	return c.next.ExtractSolids(s, ids)
}

func (c *countingEngine) Import(path string) (*geom.Shape, error) {
	c.calls.WithLabelValues("import").Inc()
	return c.next.Import(path)
}

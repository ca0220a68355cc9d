package cad

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/vk/iscadgo/internal/geom"
)

type setMode int

const (
	modeIDs setMode = iota
	modeAll
	modeFilter
	modeUnion
	modeFrom
)

// FeatureSet is a set of entity ids of one kind of one parent feature. Ids
// are resolved against the parent's current build and re-resolved whenever
// the parent is rebuilt.
type FeatureSet struct {
	parent *Feature
	kind   geom.Kind
	mode   setMode

	ids    []int         // modeIDs
	base   *FeatureSet   // modeFilter; nil filters all entities
	filter *Filter       // modeFilter
	args   []any         // modeFilter: *FeatureSet, Vector or Scalar
	parts  []*FeatureSet // modeUnion
	from   *Feature      // modeFrom

	mu       sync.Mutex
	cacheKey string
	cached   []int
}

// NewExplicitSet selects entities by id. Ids are validated on resolution.
func NewExplicitSet(parent *Feature, kind geom.Kind, ids []int) *FeatureSet {
	return &FeatureSet{parent: parent, kind: kind, mode: modeIDs, ids: append([]int(nil), ids...)}
}

// AllOf selects every entity of a kind.
func AllOf(parent *Feature, kind geom.Kind) *FeatureSet {
	return &FeatureSet{parent: parent, kind: kind, mode: modeAll}
}

// NewFilterSet selects the entities of parent for which filter holds. The
// filter is compiled immediately; %N placeholders are checked when it runs.
func NewFilterSet(parent *Feature, kind geom.Kind, filter string, args ...any) (*FeatureSet, error) {
	flt, err := CompileFilter(kind, filter)
	if err != nil {
		return nil, &SelectionError{Kind: kind.String(), Filter: filter, Err: err}
	}
	return &FeatureSet{parent: parent, kind: kind, mode: modeFilter, filter: flt, args: args}, nil
}

// Refine filters the members of s further. The result is always a subset
// of s.
func (s *FeatureSet) Refine(kind geom.Kind, filter string, args ...any) (*FeatureSet, error) {
	if kind != s.kind {
		return nil, &SelectionError{Kind: kind.String(), Filter: filter,
			Err: fmt.Errorf("cannot refine a %s set: %w", s.kind, ErrWrongKind)}
	}
	out, err := NewFilterSet(s.parent, kind, filter, args...)
	if err != nil {
		return nil, err
	}
	out.base = s
	return out, nil
}

// SelectFrom selects the entities of parent that are geometrically
// identical to an entity of the same kind in other.
func SelectFrom(parent *Feature, kind geom.Kind, other *Feature) *FeatureSet {
	return &FeatureSet{parent: parent, kind: kind, mode: modeFrom, from: other}
}

// Union merges sets of the same parent and kind.
func Union(a, b *FeatureSet) (*FeatureSet, error) {
	if a.parent != b.parent {
		return nil, &SelectionError{Kind: a.kind.String(),
			Err: fmt.Errorf("union of %s and %s: %w", a.parent, b.parent, ErrCrossParent)}
	}
	if a.kind != b.kind {
		return nil, &SelectionError{Kind: a.kind.String(),
			Err: fmt.Errorf("union with a %s set: %w", b.kind, ErrWrongKind)}
	}
	return &FeatureSet{parent: a.parent, kind: a.kind, mode: modeUnion, parts: []*FeatureSet{a, b}}, nil
}

func (s *FeatureSet) Parent() *Feature { return s.parent }
func (s *FeatureSet) Kind() geom.Kind  { return s.kind }

// Filter returns the filter source, empty for non-filter sets.
func (s *FeatureSet) Filter() string {
	if s.filter == nil {
		return ""
	}
	return s.filter.Source()
}

// IDs resolves the set against the parent's current build. The result is
// sorted and free of duplicates.
func (s *FeatureSet) IDs() ([]int, error) {
	shape, err := s.parent.Shape()
	if err != nil {
		return nil, err
	}
	key, err := s.cacheKeyFor(shape)
	if err != nil {
		return nil, s.wrap(err)
	}
	s.mu.Lock()
	if s.cacheKey == key && s.cached != nil {
		out := slices.Clone(s.cached)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	ids, err := s.resolve(shape)
	if err != nil {
		return nil, s.wrap(err)
	}
	if ids == nil {
		ids = []int{}
	}
	s.mu.Lock()
	s.cacheKey, s.cached = key, ids
	s.mu.Unlock()
	return slices.Clone(ids), nil
}

func (s *FeatureSet) wrap(err error) error {
	if _, ok := err.(*SelectionError); ok {
		return err
	}
	if _, ok := err.(*BuildError); ok {
		return err
	}
	return &SelectionError{Kind: s.kind.String(), Filter: s.Filter(), Err: err}
}

// cacheKeyFor identifies the inputs a resolution depends on: the parent
// shape, the members of the sets it is derived from and, for filters, the
// current argument values.
func (s *FeatureSet) cacheKeyFor(shape *geom.Shape) (string, error) {
	if s.mode == modeIDs || s.mode == modeAll {
		return shape.ID().String(), nil
	}
	h := NewParamHash()
	h.AddString(shape.ID().String())
	for _, p := range s.parts {
		ids, err := p.IDs()
		if err != nil {
			return "", err
		}
		h.AddInts(ids)
	}
	if s.base != nil {
		ids, err := s.base.IDs()
		if err != nil {
			return "", err
		}
		h.AddInts(ids)
	}
	if s.from != nil {
		h.AddFeature(s.from)
	}
	for _, a := range s.args {
		switch v := a.(type) {
		case *FeatureSet:
			h.AddSet(v)
		case Vector:
			h.AddVector(v)
		case Scalar:
			h.AddScalar(v)
		}
	}
	return h.Sum()
}

func (s *FeatureSet) resolve(shape *geom.Shape) ([]int, error) {
	switch s.mode {
	case modeIDs:
		n := shape.Count(s.kind)
		out := make([]int, 0, len(s.ids))
		for _, id := range s.ids {
			if id < 0 || id >= n {
				return nil, fmt.Errorf("%s id %d not in [0,%d): %w", s.kind, id, n, ErrOutOfRange)
			}
			out = append(out, id)
		}
		return normalize(out), nil

	case modeAll:
		return shape.IDs(s.kind), nil

	case modeFilter:
		candidates := shape.IDs(s.kind)
		if s.base != nil {
			ids, err := s.base.IDs()
			if err != nil {
				return nil, err
			}
			candidates = ids
		}
		return s.filter.Apply(shape, candidates, s.args)

	case modeUnion:
		var out []int
		for _, p := range s.parts {
			ids, err := p.IDs()
			if err != nil {
				return nil, err
			}
			out = append(out, ids...)
		}
		return normalize(out), nil

	case modeFrom:
		other, err := s.from.Shape()
		if err != nil {
			return nil, err
		}
		var out []int
		for _, id := range shape.IDs(s.kind) {
			for _, oid := range other.IDs(s.kind) {
				if geom.IsIdentical(shape, id, other, oid, s.kind, geom.DefaultTolerance) {
					out = append(out, id)
					break
				}
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown set mode %d", s.mode)
}

func normalize(ids []int) []int {
	sort.Ints(ids)
	out := ids[:0]
	for i, id := range ids {
		if i == 0 || id != ids[i-1] {
			out = append(out, id)
		}
	}
	return out
}

func (s *FeatureSet) String() string {
	return fmt.Sprintf("%s set of %s", s.kind, s.parent)
}

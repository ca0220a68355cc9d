package parser

import (
	"math"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/iscadgo/internal/cad"
	"github.com/vk/iscadgo/internal/geom"
)

var selectionKinds = map[string]geom.Kind{
	"vertex": geom.Vertex, "vertices": geom.Vertex,
	"edge": geom.Edge, "edges": geom.Edge,
	"face": geom.Face, "faces": geom.Face,
	"solid": geom.Solid, "solids": geom.Solid,
}

// selection parses what follows `?`:
//
//	kind(filter, args...)  entities of the parent matching the filter
//	kind from feature      entities identical to one of the feature's
//	kind id = (i, j, ...)  explicit ids
//	all<kind>              every entity
//
// On a selection, only the filter form is allowed; it refines the set.
func (p *Parser) selection(parent value) (value, error) {
	name, err := p.ident()
	if err != nil {
		return value{}, err
	}

	if k, ok := allKinds[name.text]; ok {
		if err := p.want(parent, kFeature); err != nil {
			return value{}, err
		}
		return setValue(cad.AllOf(parent.f, k), hcl.RangeBetween(parent.rng, name.rng)), nil
	}

	kind, ok := selectionKinds[name.text]
	if !ok {
		return value{}, p.errorf(name.rng, "Invalid selection",
			"Expected vertices, edges, faces, solids or all<kind>, found '%s'.", name.text)
	}

	switch {
	case p.is("("):
		return p.filterSelection(parent, kind)

	case p.accept("from"):
		if err := p.want(parent, kFeature); err != nil {
			return value{}, err
		}
		other, err := p.postfix()
		if err != nil {
			return value{}, err
		}
		if err := p.want(other, kFeature); err != nil {
			return value{}, err
		}
		return setValue(cad.SelectFrom(parent.f, kind, other.f), p.rangeFrom(parent.rng)), nil

	case p.accept("id"):
		if err := p.want(parent, kFeature); err != nil {
			return value{}, err
		}
		ids, err := p.idList()
		if err != nil {
			return value{}, err
		}
		return setValue(cad.NewExplicitSet(parent.f, kind, ids), p.rangeFrom(parent.rng)), nil
	}
	return value{}, p.expected("'(', 'from' or 'id'")
}

func (p *Parser) filterSelection(parent value, kind geom.Kind) (value, error) {
	if err := p.expect("("); err != nil {
		return value{}, err
	}
	filter, err := p.String()
	if err != nil {
		return value{}, err
	}
	var args []any
	for p.accept(",") {
		a, err := p.expr()
		if err != nil {
			return value{}, err
		}
		fa, ok := a.filterArg()
		if !ok {
			return value{}, p.errorf(a.rng, "Invalid filter argument",
				"Filter arguments are scalars, vectors or selections, not a %s.", a.kind)
		}
		args = append(args, fa)
	}
	if err := p.expect(")"); err != nil {
		return value{}, err
	}
	rng := p.rangeFrom(parent.rng)

	var set *cad.FeatureSet
	switch parent.kind {
	case kFeature:
		set, err = cad.NewFilterSet(parent.f, kind, filter, args...)
	case kSet:
		set, err = parent.set.Refine(kind, filter, args...)
	default:
		return value{}, p.errorf(parent.rng, "Type mismatch", "Cannot select from a %s.", parent.kind)
	}
	if err != nil {
		return value{}, p.wrapf(rng, err, "Invalid selection")
	}
	return setValue(set, rng), nil
}

func (p *Parser) idList() ([]int, error) {
	if err := p.expect("="); err != nil {
		return nil, err
	}
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var ids []int
	for {
		t := p.peek()
		if t.kind != tokNumber || t.num < 0 || t.num != math.Trunc(t.num) {
			return nil, p.expected("a non-negative integer id")
		}
		p.next()
		ids = append(ids, int(t.num))
		if !p.accept(",") {
			break
		}
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return ids, nil
}

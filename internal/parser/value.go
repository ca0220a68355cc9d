package parser

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/iscadgo/internal/cad"
)

type valueKind int

const (
	kScalar valueKind = iota
	kVector
	kDatum
	kFeature
	kSet
	kString
	kTuple
)

func (k valueKind) String() string {
	switch k {
	case kScalar:
		return "scalar"
	case kVector:
		return "vector"
	case kDatum:
		return "datum"
	case kFeature:
		return "feature"
	case kSet:
		return "selection"
	case kString:
		return "string"
	case kTuple:
		return "parenthesized list"
	}
	return fmt.Sprintf("valueKind(%d)", int(k))
}

// value is the result of parsing an expression. Exactly one of the fields
// matching kind is set.
type value struct {
	kind  valueKind
	s     cad.Scalar
	v     cad.Vector
	d     cad.Datum
	f     *cad.Feature
	set   *cad.FeatureSet
	str   string
	tuple []value
	rng   hcl.Range
}

func scalarValue(s cad.Scalar, rng hcl.Range) value { return value{kind: kScalar, s: s, rng: rng} }
func vectorValue(v cad.Vector, rng hcl.Range) value { return value{kind: kVector, v: v, rng: rng} }
func datumValue(d cad.Datum, rng hcl.Range) value   { return value{kind: kDatum, d: d, rng: rng} }
func featureValue(f *cad.Feature, rng hcl.Range) value {
	return value{kind: kFeature, f: f, rng: rng}
}
func setValue(s *cad.FeatureSet, rng hcl.Range) value { return value{kind: kSet, set: s, rng: rng} }

// isVectorLike reports whether v can stand where a vector is expected. A
// datum stands for its origin.
func (v value) isVectorLike() bool { return v.kind == kVector || v.kind == kDatum }

func (v value) vector() cad.Vector {
	if v.kind == kDatum {
		return cad.DatumOrigin(v.d)
	}
	return v.v
}

// filterArg converts a selection argument for cad.NewFilterSet.
func (v value) filterArg() (any, bool) {
	switch v.kind {
	case kScalar:
		return v.s, true
	case kVector, kDatum:
		return v.vector(), true
	case kSet:
		return v.set, true
	}
	return nil, false
}

func (p *Parser) want(v value, kind valueKind) error {
	if v.kind == kind || (kind == kVector && v.isVectorLike()) {
		return nil
	}
	return p.errorf(v.rng, "Type mismatch", "Expected a %s expression, found a %s.", kind, v.kind)
}

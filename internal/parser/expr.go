package parser

import (
	"github.com/hashicorp/hcl/v2"

	"github.com/vk/iscadgo/internal/cad"
	"github.com/vk/iscadgo/internal/geom"
	"github.com/vk/iscadgo/internal/model"
)

// mode restricts the operators an expression may use.
type mode int

const (
	modeAny mode = iota
	// modeVector parses the operand of a translation. It stops before the
	// feature operators so that `f << v | g` translates f only.
	modeVector
)

// expr parses a full expression. The kind of the result follows from its
// operands: the same operator means a sum for numbers and vectors and a
// boolean for features.
func (p *Parser) expr() (value, error) { return p.sum(modeAny) }

func (p *Parser) sum(m mode) (value, error) {
	left, err := p.term(m)
	if err != nil {
		return value{}, err
	}
	for p.is("+") || p.is("-") {
		mk := p.mark()
		op := p.next()
		right, err := p.term(m)
		if err != nil {
			return value{}, err
		}
		if m == modeVector && right.kind != kScalar && !right.isVectorLike() {
			// `f << v - g` subtracts g from the translated feature
			p.reset(mk)
			break
		}
		if left, err = p.binary(op, left, right); err != nil {
			return value{}, err
		}
	}
	return left, nil
}

func (p *Parser) term(m mode) (value, error) {
	left, err := p.unary()
	if err != nil {
		return value{}, err
	}
	for {
		t := p.peek()
		if t.kind != tokPunct {
			return left, nil
		}
		switch t.text {
		case "*", "/", "^", ">>":
		case "&", "|", "<<":
			if m == modeVector {
				return left, nil
			}
		default:
			return left, nil
		}
		op := p.next()
		var right value
		if op.text == "<<" {
			right, err = p.sum(modeVector)
		} else {
			right, err = p.unary()
		}
		if err != nil {
			return value{}, err
		}
		if left, err = p.binary(op, left, right); err != nil {
			return value{}, err
		}
	}
}

func (p *Parser) unary() (value, error) {
	switch {
	case p.is("-"):
		op := p.next()
		v, err := p.unary()
		if err != nil {
			return value{}, err
		}
		rng := hcl.RangeBetween(op.rng, v.rng)
		switch {
		case v.kind == kScalar:
			return scalarValue(cad.Neg(v.s), rng), nil
		case v.isVectorLike():
			return vectorValue(cad.NegVec(v.vector()), rng), nil
		}
		return value{}, p.errorf(rng, "Type mismatch", "Cannot negate a %s.", v.kind)

	case p.is("*"):
		op := p.next()
		v, err := p.postfix()
		if err != nil {
			return value{}, err
		}
		if err := p.want(v, kSet); err != nil {
			return value{}, err
		}
		rng := hcl.RangeBetween(op.rng, v.rng)
		f := cad.NewFeature(p.env(), &cad.ExtractOp{Set: v.set})
		p.addElement(rng, f, "")
		return featureValue(f, rng), nil
	}
	return p.postfix()
}

func (p *Parser) binary(op token, l, r value) (value, error) {
	rng := hcl.RangeBetween(l.rng, r.rng)
	mismatch := func() (value, error) {
		return value{}, p.errorf(op.rng, "Type mismatch",
			"Operator '%s' cannot combine a %s with a %s.", op.text, l.kind, r.kind)
	}
	feature := func(o cad.Op) value {
		f := cad.NewFeature(p.env(), o)
		p.addElement(rng, f, "")
		return featureValue(f, rng)
	}

	switch op.text {
	case "+", "-":
		sub := op.text == "-"
		switch {
		case l.kind == kScalar && r.kind == kScalar:
			if sub {
				return scalarValue(cad.Sub(l.s, r.s), rng), nil
			}
			return scalarValue(cad.Add(l.s, r.s), rng), nil
		case l.isVectorLike() && r.isVectorLike():
			if sub {
				return vectorValue(cad.SubVec(l.vector(), r.vector()), rng), nil
			}
			return vectorValue(cad.AddVec(l.vector(), r.vector()), rng), nil
		case sub && l.kind == kFeature && r.kind == kFeature:
			return feature(&cad.BooleanOp{Kind: cad.BoolSubtract, A: l.f, B: r.f}), nil
		}

	case "*":
		switch {
		case l.kind == kScalar && r.kind == kScalar:
			return scalarValue(cad.Mul(l.s, r.s), rng), nil
		case l.isVectorLike() && r.kind == kScalar:
			return vectorValue(cad.ScaleVec(l.vector(), r.s), rng), nil
		case l.kind == kScalar && r.isVectorLike():
			return vectorValue(cad.ScaleVec(r.vector(), l.s), rng), nil
		case l.kind == kFeature && r.kind == kScalar:
			f := cad.Scale(p.env(), l.f, r.s)
			p.addElement(rng, f, "")
			return featureValue(f, rng), nil
		}

	case "/":
		switch {
		case l.kind == kScalar && r.kind == kScalar:
			return scalarValue(cad.Div(l.s, r.s), rng), nil
		case l.isVectorLike() && r.kind == kScalar:
			return vectorValue(cad.DivVec(l.vector(), r.s), rng), nil
		}

	case "^":
		if l.isVectorLike() && r.isVectorLike() {
			return vectorValue(cad.Cross(l.vector(), r.vector()), rng), nil
		}

	case "&":
		switch {
		case l.kind == kFeature && r.kind == kFeature:
			return feature(&cad.BooleanOp{Kind: cad.BoolIntersect, A: l.f, B: r.f}), nil
		case l.kind == kFeature && r.kind == kDatum:
			return feature(&cad.HalfSpaceOp{Base: l.f, Plane: r.d}), nil
		case l.isVectorLike() && r.isVectorLike():
			return scalarValue(cad.Dot(l.vector(), r.vector()), rng), nil
		}

	case "|":
		switch {
		case l.kind == kFeature && r.kind == kFeature:
			return feature(&cad.BooleanOp{Kind: cad.BoolUnion, A: l.f, B: r.f}), nil
		case l.kind == kSet && r.kind == kSet:
			s, err := cad.Union(l.set, r.set)
			if err != nil {
				return value{}, p.wrapf(rng, err, "Invalid selection union")
			}
			return setValue(s, rng), nil
		}

	case "<<":
		if !r.isVectorLike() {
			break
		}
		switch l.kind {
		case kFeature:
			f := cad.Translate(p.env(), l.f, r.vector())
			p.addElement(rng, f, "")
			return featureValue(f, rng), nil
		case kDatum:
			return datumValue(cad.TranslatedDatum(l.d, r.vector()), rng), nil
		}

	case ">>":
		if !l.isVectorLike() {
			break
		}
		switch {
		case r.kind == kDatum:
			return vectorValue(cad.ProjectOnPlane(l.vector(), r.d, nil), rng), nil
		case r.kind == kTuple && len(r.tuple) == 2 && r.tuple[1].isVectorLike():
			target, dir := r.tuple[0], r.tuple[1].vector()
			switch target.kind {
			case kDatum:
				return vectorValue(cad.ProjectOnPlane(l.vector(), target.d, dir), rng), nil
			case kFeature:
				return vectorValue(cad.ProjectOnFeature(l.vector(), target.f, dir), rng), nil
			}
		}
	}
	return mismatch()
}

func (p *Parser) postfix() (value, error) {
	v, err := p.primary()
	if err != nil {
		return value{}, err
	}
	for {
		switch {
		case p.is("."):
			p.next()
			name, err := p.ident()
			if err != nil {
				return value{}, err
			}
			rng := hcl.RangeBetween(v.rng, name.rng)
			switch {
			case v.isVectorLike():
				i, ok := map[string]int{"x": 0, "y": 1, "z": 2}[name.text]
				if !ok {
					return value{}, p.errorf(name.rng, "Invalid component", "Vectors have components x, y and z, not '%s'.", name.text)
				}
				v = scalarValue(cad.Component(v.vector(), i), rng)
			case v.kind == kFeature:
				f := cad.NewFeature(p.env(), &cad.SubfeatureOp{Parent: v.f, Name: name.text})
				p.addElement(rng, f, "")
				v = featureValue(f, rng)
			default:
				return value{}, p.errorf(name.rng, "Type mismatch", "A %s has no member '%s'.", v.kind, name.text)
			}

		case p.is("$") || p.is("!") || p.is("%") || (p.is("@") && !p.noAt):
			op := p.next()
			if err := p.want(v, kFeature); err != nil {
				return value{}, err
			}
			name, err := p.ident()
			if err != nil {
				return value{}, err
			}
			rng := hcl.RangeBetween(v.rng, name.rng)
			switch op.text {
			case "$":
				v = scalarValue(cad.ScalarProperty(v.f, name.text), rng)
			case "@":
				v = vectorValue(cad.PointProperty(v.f, name.text), rng)
			case "!":
				v = vectorValue(cad.VectorProperty(v.f, name.text), rng)
			case "%":
				v = datumValue(cad.FeatureDatum(v.f, name.text), rng)
			}

		case p.is("?"):
			p.next()
			if v, err = p.selection(v); err != nil {
				return value{}, err
			}

		default:
			return v, nil
		}
	}
}

func (p *Parser) primary() (value, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.next()
		return scalarValue(cad.Const(t.num), t.rng), nil

	case tokString:
		p.next()
		return value{kind: kString, str: t.text, rng: t.rng}, nil

	case tokIdent:
		if p.isAt(1, "(") {
			return p.call()
		}
		if k, ok := allKinds[t.text]; ok {
			p.next()
			f, err := p.postfix()
			if err != nil {
				return value{}, err
			}
			if err := p.want(f, kFeature); err != nil {
				return value{}, err
			}
			return setValue(cad.AllOf(f.f, k), hcl.RangeBetween(t.rng, f.rng)), nil
		}
		p.next()
		return p.symbol(t)
	}

	switch {
	case p.is("["):
		open := p.next()
		var xs [3]cad.Scalar
		for i := range xs {
			if i > 0 {
				if err := p.expect(","); err != nil {
					return value{}, err
				}
			}
			s, err := p.Scalar()
			if err != nil {
				return value{}, err
			}
			xs[i] = s
		}
		if err := p.expect("]"); err != nil {
			return value{}, err
		}
		return vectorValue(cad.Components(xs[0], xs[1], xs[2]), p.rangeFrom(open.rng)), nil

	case p.is("("):
		open := p.next()
		v, err := p.expr()
		if err != nil {
			return value{}, err
		}
		if p.is(",") {
			items := []value{v}
			for p.accept(",") {
				item, err := p.expr()
				if err != nil {
					return value{}, err
				}
				items = append(items, item)
			}
			v = value{kind: kTuple, tuple: items}
		}
		if err := p.expect(")"); err != nil {
			return value{}, err
		}
		v.rng = p.rangeFrom(open.rng)
		return v, nil
	}
	return value{}, p.expected("an expression")
}

func (p *Parser) symbol(name token) (value, error) {
	sym, ok := p.model.Lookup(name.text)
	if !ok {
		return value{}, p.errorf(name.rng, "Undefined symbol", "There is no symbol named '%s'.", name.text)
	}
	p.addDep(name.text)
	switch sym.Kind {
	case model.ScalarSymbol:
		return scalarValue(sym.Value.(cad.Scalar), name.rng), nil
	case model.VectorSymbol:
		return vectorValue(sym.Value.(cad.Vector), name.rng), nil
	case model.DatumSymbol:
		return datumValue(sym.Value.(cad.Datum), name.rng), nil
	case model.FeatureSymbol:
		f := sym.Value.(*cad.Feature)
		p.addElement(name.rng, f, name.text)
		return featureValue(f, name.rng), nil
	case model.SetSymbol:
		return setValue(sym.Value.(*cad.FeatureSet), name.rng), nil
	}
	return value{}, p.errorf(name.rng, "Invalid reference", "'%s' is a %s and cannot be used in an expression.", name.text, sym.Kind)
}

func (p *Parser) env() *cad.Env { return p.model.Env }

var allKinds = map[string]geom.Kind{
	"allvertices": geom.Vertex,
	"alledges":    geom.Edge,
	"allfaces":    geom.Face,
	"allsolids":   geom.Solid,
}

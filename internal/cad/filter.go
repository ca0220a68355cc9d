package cad

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/vk/iscadgo/internal/geom"
)

// DefaultApproxTolerance is the relative tolerance of `~` without braces.
const DefaultApproxTolerance = 1e-2

// Filter is a compiled selection predicate for one entity kind.
//
// Grammar:
//
//	filter     := and ('||' and)*
//	and        := primary ('&&' primary)*
//	primary    := '!' primary
//	            | 'in' '(' %N ')' | 'isIdentical' '(' %N ')'
//	            | ('maximal'|'minimal') '(' qty [',' int] ')'
//	            | predicate [ ['('] %N [')'] ]
//	            | qty cmp qty
//	            | '(' filter ')'
//	cmp        := '==' | '~' qty ['{' number '}'] | '>' | '>=' | '<' | '<='
//	qty        := term (('+'|'-') term)*
//	term       := unary (('*'|'/'|'&') unary)*
//	unary      := '-' unary | postfix
//	postfix    := atom ('.' ('x'|'y'|'z'))*
//	atom       := number | %dN | %mN | '[' qty ',' qty ',' qty ']' | '(' qty ')'
//	            | func '(' qty [',' qty] ')' | quantity
type Filter struct {
	src  string
	kind geom.Kind
	root predNode
}

// Source returns the filter text.
func (f *Filter) Source() string { return f.src }

// CompileFilter parses a filter for entities of kind k.
func CompileFilter(k geom.Kind, src string) (*Filter, error) {
	toks, err := lexFilter(src)
	if err != nil {
		return nil, err
	}
	p := &filterParser{toks: toks, kind: k}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != ftEOF {
		return nil, fmt.Errorf("unexpected %s at %d", p.peek(), p.peek().pos)
	}
	return &Filter{src: src, kind: k, root: root}, nil
}

// Apply evaluates the filter for every candidate id and returns the ids for
// which it holds, in candidate order.
func (f *Filter) Apply(s *geom.Shape, candidates []int, args []any) ([]int, error) {
	ec := &evalCtx{shape: s, kind: f.kind, args: args, candidates: candidates,
		extremum: map[*extremumNode]float64{}, sets: map[int]setArg{}}
	var out []int
	for _, id := range candidates {
		ok, err := f.root.eval(ec, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// qval is a filter quantity: a number or a vector.
type qval struct {
	isVec bool
	s     float64
	v     geom.Vec3
}

func num(x float64) qval   { return qval{s: x} }
func vec(x geom.Vec3) qval { return qval{isVec: true, v: x} }

func (q qval) typeName() string {
	if q.isVec {
		return "vector"
	}
	return "scalar"
}

type setArg struct {
	set   *FeatureSet
	shape *geom.Shape
	ids   []int
}

type evalCtx struct {
	shape      *geom.Shape
	kind       geom.Kind
	args       []any
	candidates []int
	extremum   map[*extremumNode]float64
	sets       map[int]setArg
}

func (ec *evalCtx) arg(i int) (any, error) {
	if i < 0 || i >= len(ec.args) {
		return nil, fmt.Errorf("%%%d refers to argument %d of %d: %w", i, i+1, len(ec.args), ErrPlaceholder)
	}
	return ec.args[i], nil
}

func (ec *evalCtx) setArg(i int) (setArg, error) {
	if sa, ok := ec.sets[i]; ok {
		return sa, nil
	}
	a, err := ec.arg(i)
	if err != nil {
		return setArg{}, err
	}
	fs, ok := a.(*FeatureSet)
	if !ok {
		return setArg{}, fmt.Errorf("%%%d is not a feature set: %w", i, ErrPlaceholder)
	}
	ids, err := fs.IDs()
	if err != nil {
		return setArg{}, err
	}
	shape, err := fs.Parent().Shape()
	if err != nil {
		return setArg{}, err
	}
	sa := setArg{set: fs, shape: shape, ids: ids}
	ec.sets[i] = sa
	return sa, nil
}

// sameParentSet returns the ids of set %i, which must be of kind k and
// belong to the shape being filtered.
func (ec *evalCtx) sameParentSet(i int, k geom.Kind) ([]int, error) {
	sa, err := ec.setArg(i)
	if err != nil {
		return nil, err
	}
	if sa.set.Kind() != k {
		return nil, fmt.Errorf("%%%d is a %s set, expected %s: %w", i, sa.set.Kind(), k, ErrWrongKind)
	}
	if sa.shape.ID() != ec.shape.ID() {
		return nil, fmt.Errorf("%%%d: %w", i, ErrCrossParent)
	}
	return sa.ids, nil
}

type predNode interface {
	eval(ec *evalCtx, id int) (bool, error)
}

type qtyNode interface {
	eval(ec *evalCtx, id int) (qval, error)
}

type predFunc func(ec *evalCtx, id int) (bool, error)

func (f predFunc) eval(ec *evalCtx, id int) (bool, error) { return f(ec, id) }

type qtyFunc func(ec *evalCtx, id int) (qval, error)

func (f qtyFunc) eval(ec *evalCtx, id int) (qval, error) { return f(ec, id) }

type extremumNode struct {
	q    qtyNode
	rank int
	max  bool
}

func (n *extremumNode) eval(ec *evalCtx, id int) (bool, error) {
	ref, ok := ec.extremum[n]
	if !ok {
		var vals []float64
		for _, c := range ec.candidates {
			v, err := scalarOf(n.q, ec, c)
			if err != nil {
				return false, err
			}
			vals = append(vals, v)
		}
		distinct := distinctSorted(vals, n.max)
		if n.rank < 0 || n.rank >= len(distinct) {
			ref = math.NaN()
		} else {
			ref = distinct[n.rank]
		}
		ec.extremum[n] = ref
	}
	if math.IsNaN(ref) {
		return false, nil
	}
	v, err := scalarOf(n.q, ec, id)
	if err != nil {
		return false, err
	}
	return nearlyEqual(v, ref), nil
}

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func distinctSorted(vals []float64, desc bool) []float64 {
	s := append([]float64(nil), vals...)
	if desc {
		sort.Sort(sort.Reverse(sort.Float64Slice(s)))
	} else {
		sort.Float64s(s)
	}
	var out []float64
	for _, v := range s {
		if len(out) == 0 || !nearlyEqual(out[len(out)-1], v) {
			out = append(out, v)
		}
	}
	return out
}

func scalarOf(q qtyNode, ec *evalCtx, id int) (float64, error) {
	v, err := q.eval(ec, id)
	if err != nil {
		return 0, err
	}
	if v.isVec {
		return 0, fmt.Errorf("expected a scalar quantity, got a vector")
	}
	return v.s, nil
}

func vectorOf(q qtyNode, ec *evalCtx, id int) (geom.Vec3, error) {
	v, err := q.eval(ec, id)
	if err != nil {
		return geom.Vec3{}, err
	}
	if !v.isVec {
		return geom.Vec3{}, fmt.Errorf("expected a vector quantity, got a scalar")
	}
	return v.v, nil
}

// filterParser is a backtracking recursive-descent parser over filter tokens.
type filterParser struct {
	toks []ftok
	pos  int
	kind geom.Kind
}

func (p *filterParser) peek() ftok { return p.toks[p.pos] }

func (p *filterParser) next() ftok {
	t := p.toks[p.pos]
	if t.kind != ftEOF {
		p.pos++
	}
	return t
}

func (p *filterParser) isOp(text string) bool {
	t := p.peek()
	return t.kind == ftOp && t.text == text
}

func (p *filterParser) accept(text string) bool {
	if p.isOp(text) {
		p.pos++
		return true
	}
	return false
}

func (p *filterParser) expect(text string) error {
	if !p.accept(text) {
		t := p.peek()
		return fmt.Errorf("expected %q at %d, found %s", text, t.pos, t)
	}
	return nil
}

func (p *filterParser) parseOr() (predNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.accept("||") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l := left
		left = predFunc(func(ec *evalCtx, id int) (bool, error) {
			a, err := l.eval(ec, id)
			if err != nil || a {
				return a, err
			}
			return right.eval(ec, id)
		})
	}
	return left, nil
}

func (p *filterParser) parseAnd() (predNode, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.accept("&&") {
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		l := left
		left = predFunc(func(ec *evalCtx, id int) (bool, error) {
			a, err := l.eval(ec, id)
			if err != nil || !a {
				return a, err
			}
			return right.eval(ec, id)
		})
	}
	return left, nil
}

func (p *filterParser) parsePrimary() (predNode, error) {
	if p.accept("!") {
		inner, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return predFunc(func(ec *evalCtx, id int) (bool, error) {
			v, err := inner.eval(ec, id)
			return !v, err
		}), nil
	}

	if t := p.peek(); t.kind == ftIdent {
		switch t.text {
		case "in", "isIdentical":
			p.next()
			idx, err := p.parseSetRef(true)
			if err != nil {
				return nil, err
			}
			if t.text == "in" {
				return p.inPred(idx), nil
			}
			return p.identicalPred(idx), nil
		case "maximal", "minimal":
			p.next()
			return p.parseExtremum(t.text == "maximal")
		}
		if isEntityPredicate(p.kind, t.text) {
			p.next()
			return p.entityPredicate(t.text)
		}
	}

	// a comparison may itself start with '(', so try it first
	save := p.pos
	cmp, cmpErr := p.parseComparison()
	if cmpErr == nil {
		return cmp, nil
	}
	p.pos = save
	if p.accept("(") {
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return nil, cmpErr
}

// parseSetRef reads a %N reference, optionally in parentheses.
func (p *filterParser) parseSetRef(parens bool) (int, error) {
	open := p.accept("(")
	if parens && !open {
		t := p.peek()
		return 0, fmt.Errorf("expected \"(\" at %d, found %s", t.pos, t)
	}
	t := p.next()
	if t.kind != ftPlaceholder || t.class != 0 {
		return 0, fmt.Errorf("expected feature set placeholder %%N at %d, found %s", t.pos, t)
	}
	if open {
		if err := p.expect(")"); err != nil {
			return 0, err
		}
	}
	return t.index, nil
}

func (p *filterParser) parseExtremum(isMax bool) (predNode, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	q, err := p.parseQty()
	if err != nil {
		return nil, err
	}
	rank := 0
	if p.accept(",") {
		t := p.next()
		if t.kind != ftNumber || t.num != math.Trunc(t.num) {
			return nil, fmt.Errorf("expected integer rank at %d, found %s", t.pos, t)
		}
		rank = int(t.num)
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return &extremumNode{q: q, rank: rank, max: isMax}, nil
}

func (p *filterParser) parseComparison() (predNode, error) {
	a, err := p.parseQty()
	if err != nil {
		return nil, err
	}
	t := p.next()
	if t.kind != ftOp {
		return nil, fmt.Errorf("expected comparison at %d, found %s", t.pos, t)
	}
	switch t.text {
	case "==", ">", ">=", "<", "<=":
		b, err := p.parseQty()
		if err != nil {
			return nil, err
		}
		op := t.text
		return predFunc(func(ec *evalCtx, id int) (bool, error) {
			x, err := scalarOf(a, ec, id)
			if err != nil {
				return false, err
			}
			y, err := scalarOf(b, ec, id)
			if err != nil {
				return false, err
			}
			switch op {
			case "==":
				return x == y, nil
			case ">":
				return x > y, nil
			case ">=":
				return x >= y, nil
			case "<":
				return x < y, nil
			default:
				return x <= y, nil
			}
		}), nil
	case "~":
		b, err := p.parseQty()
		if err != nil {
			return nil, err
		}
		tol := DefaultApproxTolerance
		if p.accept("{") {
			nt := p.next()
			if nt.kind != ftNumber {
				return nil, fmt.Errorf("expected tolerance at %d, found %s", nt.pos, nt)
			}
			tol = nt.num
			if err := p.expect("}"); err != nil {
				return nil, err
			}
		}
		return predFunc(func(ec *evalCtx, id int) (bool, error) {
			x, err := scalarOf(a, ec, id)
			if err != nil {
				return false, err
			}
			y, err := scalarOf(b, ec, id)
			if err != nil {
				return false, err
			}
			if y == 0 {
				return math.Abs(x) < tol, nil
			}
			return math.Abs(x-y) < tol*math.Abs(y), nil
		}), nil
	}
	return nil, fmt.Errorf("expected comparison at %d, found %s", t.pos, t)
}

func (p *filterParser) parseQty() (qtyNode, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := p.next().text
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = arith(op, left, right)
	}
	return left, nil
}

func (p *filterParser) parseTerm() (qtyNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*") || p.isOp("/") || p.isOp("&") {
		op := p.next().text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = arith(op, left, right)
	}
	return left, nil
}

func arith(op string, a, b qtyNode) qtyNode {
	return qtyFunc(func(ec *evalCtx, id int) (qval, error) {
		x, err := a.eval(ec, id)
		if err != nil {
			return qval{}, err
		}
		y, err := b.eval(ec, id)
		if err != nil {
			return qval{}, err
		}
		switch {
		case op == "+" && x.isVec == y.isVec:
			return qval{isVec: x.isVec, s: x.s + y.s, v: x.v.Add(y.v)}, nil
		case op == "-" && x.isVec == y.isVec:
			return qval{isVec: x.isVec, s: x.s - y.s, v: x.v.Sub(y.v)}, nil
		case op == "*" && !x.isVec && !y.isVec:
			return num(x.s * y.s), nil
		case op == "*" && x.isVec && !y.isVec:
			return vec(x.v.Scale(y.s)), nil
		case op == "*" && !x.isVec && y.isVec:
			return vec(y.v.Scale(x.s)), nil
		case op == "/" && !y.isVec:
			if y.s == 0 {
				return qval{}, fmt.Errorf("division by zero in filter")
			}
			if x.isVec {
				return vec(x.v.Scale(1 / y.s)), nil
			}
			return num(x.s / y.s), nil
		case op == "&" && x.isVec && y.isVec:
			return num(x.v.Dot(y.v)), nil
		}
		return qval{}, fmt.Errorf("operator %s not defined for %s and %s", op, x.typeName(), y.typeName())
	})
}

func (p *filterParser) parseUnary() (qtyNode, error) {
	if p.accept("-") {
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return qtyFunc(func(ec *evalCtx, id int) (qval, error) {
			v, err := inner.eval(ec, id)
			return qval{isVec: v.isVec, s: -v.s, v: v.v.Scale(-1)}, err
		}), nil
	}
	q, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for p.isOp(".") {
		p.next()
		t := p.next()
		comp := strings.Index("xyz", t.text)
		if t.kind != ftIdent || len(t.text) != 1 || comp < 0 {
			return nil, fmt.Errorf("expected component x, y or z at %d, found %s", t.pos, t)
		}
		inner := q
		q = qtyFunc(func(ec *evalCtx, id int) (qval, error) {
			v, err := vectorOf(inner, ec, id)
			return num(v[comp]), err
		})
	}
	return q, nil
}

func (p *filterParser) parseAtom() (qtyNode, error) {
	t := p.next()
	switch t.kind {
	case ftNumber:
		v := t.num
		return qtyFunc(func(*evalCtx, int) (qval, error) { return num(v), nil }), nil

	case ftPlaceholder:
		idx := t.index
		switch t.class {
		case 'd':
			return qtyFunc(func(ec *evalCtx, _ int) (qval, error) {
				a, err := ec.arg(idx)
				if err != nil {
					return qval{}, err
				}
				s, ok := a.(Scalar)
				if !ok {
					return qval{}, fmt.Errorf("%%d%d is not a scalar: %w", idx, ErrPlaceholder)
				}
				x, err := s.Value()
				return num(x), err
			}), nil
		case 'm':
			return qtyFunc(func(ec *evalCtx, _ int) (qval, error) {
				a, err := ec.arg(idx)
				if err != nil {
					return qval{}, err
				}
				v, ok := a.(Vector)
				if !ok {
					return qval{}, fmt.Errorf("%%m%d is not a vector: %w", idx, ErrPlaceholder)
				}
				x, err := v.Value()
				return vec(x), err
			}), nil
		}
		return nil, fmt.Errorf("feature set placeholder %s used as a quantity at %d", t, t.pos)

	case ftOp:
		switch t.text {
		case "(":
			q, err := p.parseQty()
			if err != nil {
				return nil, err
			}
			return q, p.expect(")")
		case "[":
			var cs [3]qtyNode
			for i := range cs {
				if i > 0 {
					if err := p.expect(","); err != nil {
						return nil, err
					}
				}
				q, err := p.parseQty()
				if err != nil {
					return nil, err
				}
				cs[i] = q
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			return qtyFunc(func(ec *evalCtx, id int) (qval, error) {
				var out geom.Vec3
				for i, c := range cs {
					x, err := scalarOf(c, ec, id)
					if err != nil {
						return qval{}, err
					}
					out[i] = x
				}
				return vec(out), nil
			}), nil
		}

	case ftIdent:
		if fn, ok := qtyFunctions[t.text]; ok {
			return p.parseCall(t, fn)
		}
		if q, ok := entityQuantities[p.kind][t.text]; ok {
			return q, nil
		}
		if p.kind == geom.Edge && t.text == "radialLen" {
			return p.radialLen()
		}
		return nil, fmt.Errorf("unknown quantity %q for %s filters at %d", t.text, p.kind, t.pos)
	}
	return nil, fmt.Errorf("expected quantity at %d, found %s", t.pos, t)
}

type qtyFunction struct {
	arity int
	fn    func(args []qval) (qval, error)
}

func (p *filterParser) parseCall(name ftok, f qtyFunction) (qtyNode, error) {
	args, err := p.parseQtyArgs(f.arity)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name.text, err)
	}
	return qtyFunc(func(ec *evalCtx, id int) (qval, error) {
		vals := make([]qval, len(args))
		for i, a := range args {
			v, err := a.eval(ec, id)
			if err != nil {
				return qval{}, err
			}
			vals[i] = v
		}
		return f.fn(vals)
	}), nil
}

func (p *filterParser) parseQtyArgs(n int) ([]qtyNode, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	args := make([]qtyNode, 0, n)
	for i := 0; i < n; i++ {
		if i > 0 {
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
		q, err := p.parseQty()
		if err != nil {
			return nil, err
		}
		args = append(args, q)
	}
	return args, p.expect(")")
}

func needVecs(name string, args []qval) error {
	for _, a := range args {
		if !a.isVec {
			return fmt.Errorf("%s expects vector arguments", name)
		}
	}
	return nil
}

func angleBetween(a, b geom.Vec3, abs bool) (qval, error) {
	den := a.Norm() * b.Norm()
	if den == 0 {
		return qval{}, fmt.Errorf("angle with a zero-length vector")
	}
	c := a.Dot(b) / den
	if abs {
		c = math.Abs(c)
	}
	return num(math.Acos(math.Max(-1, math.Min(1, c)))), nil
}

var qtyFunctions = map[string]qtyFunction{
	"mag": {1, func(a []qval) (qval, error) {
		if a[0].isVec {
			return num(a[0].v.Norm()), nil
		}
		return num(math.Abs(a[0].s)), nil
	}},
	"sqr": {1, func(a []qval) (qval, error) {
		if a[0].isVec {
			return num(a[0].v.Dot(a[0].v)), nil
		}
		return num(a[0].s * a[0].s), nil
	}},
	"dist": {2, func(a []qval) (qval, error) {
		if err := needVecs("dist", a); err != nil {
			return qval{}, err
		}
		return num(a[0].v.Dist(a[1].v)), nil
	}},
	"angle": {2, func(a []qval) (qval, error) {
		if err := needVecs("angle", a); err != nil {
			return qval{}, err
		}
		return angleBetween(a[0].v, a[1].v, false)
	}},
	"angleMag": {2, func(a []qval) (qval, error) {
		if err := needVecs("angleMag", a); err != nil {
			return qval{}, err
		}
		return angleBetween(a[0].v, a[1].v, true)
	}},
}

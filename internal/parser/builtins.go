package parser

import (
	"github.com/vk/iscadgo/internal/cad"
)

// builtin parses the arguments of a core function after its opening
// parenthesis.
type builtin func(p *Parser) (value, error)

var builtins map[string]builtin

func init() {
	builtins = map[string]builtin{
		"pow":        scalar2(cad.Pow),
		"atan2":      scalar2(cad.Atan2),
		"volume":     scalarOfFeature(cad.VolumeOf),
		"cumedgelen": func(p *Parser) (value, error) {
			s, err := p.set()
			return value{kind: kScalar, s: cad.CumulativeEdgeLength(s)}, err
		},
		"mag": func(p *Parser) (value, error) {
			v, err := p.Vector()
			return value{kind: kScalar, s: cad.Mag(v)}, err
		},
		"TableLookup": (*Parser).tableLookup,

		"bbmin":      vectorOfFeature(cad.BBMin),
		"bbmax":      vectorOfFeature(cad.BBMax),
		"cog":        vectorOfFeature(cad.CoG),
		"surfcog":    vectorOfFeature(cad.SurfaceCoG),
		"surfinert1": vectorOfFeature(func(f *cad.Feature) cad.Vector { return cad.SurfaceInertiaAxis(f, 0) }),
		"surfinert2": vectorOfFeature(func(f *cad.Feature) cad.Vector { return cad.SurfaceInertiaAxis(f, 1) }),
		"surfinert3": vectorOfFeature(func(f *cad.Feature) cad.Vector { return cad.SurfaceInertiaAxis(f, 2) }),
		"scoord":     vectorOfFeature(cad.SingleVertex),
		"coord":      vectorOfSet(cad.VertexCoord),
		"circcenter": vectorOfSet(cad.CircleCenter),
		"refpt":      vectorOfDatum(cad.DatumOrigin),
		"refdir":     vectorOfDatum(cad.DatumDir),
		"plnorm":     vectorOfDatum(cad.PlaneNormal),
		"rot":        (*Parser).rot,
		"Mechanism_CrankDrive": func(p *Parser) (value, error) {
			l, c, r, p1, ax, err := p.crankArgs()
			return value{kind: kVector, v: cad.CrankDrive(l, c, r, p1, ax)}, err
		},
		"Mechanism_Slider": func(p *Parser) (value, error) {
			l, p0, dir, p1, err := p.sliderArgs()
			return value{kind: kVector, v: cad.Slider(l, p0, dir, p1)}, err
		},

		"Plane":     datumOfVectors(2, func(v []cad.Vector) cad.Datum { return cad.Plane(v[0], v[1]) }),
		"SPlane":    datumOfVectors(3, func(v []cad.Vector) cad.Datum { return cad.SPlane(v[0], v[1], v[2]) }),
		"TPlane":    datumOfVectors(3, func(v []cad.Vector) cad.Datum { return cad.TPlane(v[0], v[1], v[2]) }),
		"RefPt":     datumOfVectors(1, func(v []cad.Vector) cad.Datum { return cad.RefPt(v[0]) }),
		"RefAxis":   datumOfVectors(2, func(v []cad.Vector) cad.Datum { return cad.RefAxis(v[0], v[1]) }),
		"xsec_axpl": datumOfDatums(2, func(d []cad.Datum) cad.Datum { return cad.XsecAxisPlane(d[0], d[1]) }),
		"xsec_plpl": datumOfDatums(2, func(d []cad.Datum) cad.Datum { return cad.XsecPlanePlane(d[0], d[1]) }),
		"xsec_ppp":  datumOfDatums(3, func(d []cad.Datum) cad.Datum { return cad.XsecPlanes(d[0], d[1], d[2]) }),
	}
}

// call parses `name(args)`: a core function or a registered feature type.
func (p *Parser) call() (value, error) {
	name := p.next()
	p.next() // (

	if b, ok := builtins[name.text]; ok {
		v, err := b(p)
		if err != nil {
			return value{}, err
		}
		if err := p.expect(")"); err != nil {
			return value{}, err
		}
		v.rng = p.rangeFrom(name.rng)
		return v, nil
	}

	if cad.IsMathFunc(name.text) {
		s, err := p.Scalar()
		if err != nil {
			return value{}, err
		}
		if err := p.expect(")"); err != nil {
			return value{}, err
		}
		return scalarValue(cad.MathFunc(name.text, s), p.rangeFrom(name.rng)), nil
	}

	if p.reg != nil {
		if ft, ok := p.reg.Lookup(name.text); ok {
			op, err := ft.Parse(p)
			if err != nil {
				return value{}, p.wrapf(p.rangeFrom(name.rng), err, "Invalid arguments to %s", name.text)
			}
			if err := p.expect(")"); err != nil {
				return value{}, err
			}
			rng := p.rangeFrom(name.rng)
			f := cad.NewFeature(p.env(), op)
			p.addElement(rng, f, "")
			return featureValue(f, rng), nil
		}
	}
	return value{}, p.errorf(name.rng, "Unknown function", "There is no function or feature type named '%s'.", name.text)
}

func scalar2(fn func(a, b cad.Scalar) cad.Scalar) builtin {
	return func(p *Parser) (value, error) {
		a, err := p.Scalar()
		if err != nil {
			return value{}, err
		}
		if err := p.expect(","); err != nil {
			return value{}, err
		}
		b, err := p.Scalar()
		if err != nil {
			return value{}, err
		}
		return value{kind: kScalar, s: fn(a, b)}, nil
	}
}

func scalarOfFeature(fn func(*cad.Feature) cad.Scalar) builtin {
	return func(p *Parser) (value, error) {
		f, err := p.Feature()
		if err != nil {
			return value{}, err
		}
		return value{kind: kScalar, s: fn(f)}, nil
	}
}

func vectorOfFeature(fn func(*cad.Feature) cad.Vector) builtin {
	return func(p *Parser) (value, error) {
		f, err := p.Feature()
		if err != nil {
			return value{}, err
		}
		return value{kind: kVector, v: fn(f)}, nil
	}
}

func vectorOfDatum(fn func(cad.Datum) cad.Vector) builtin {
	return func(p *Parser) (value, error) {
		d, err := p.Datum()
		if err != nil {
			return value{}, err
		}
		return value{kind: kVector, v: fn(d)}, nil
	}
}

func vectorOfSet(fn func(*cad.FeatureSet) cad.Vector) builtin {
	return func(p *Parser) (value, error) {
		s, err := p.set()
		if err != nil {
			return value{}, err
		}
		return value{kind: kVector, v: fn(s)}, nil
	}
}

func datumOfVectors(n int, fn func([]cad.Vector) cad.Datum) builtin {
	return func(p *Parser) (value, error) {
		vs := make([]cad.Vector, n)
		for i := range vs {
			if i > 0 {
				if err := p.expect(","); err != nil {
					return value{}, err
				}
			}
			v, err := p.Vector()
			if err != nil {
				return value{}, err
			}
			vs[i] = v
		}
		return value{kind: kDatum, d: fn(vs)}, nil
	}
}

func datumOfDatums(n int, fn func([]cad.Datum) cad.Datum) builtin {
	return func(p *Parser) (value, error) {
		ds := make([]cad.Datum, n)
		for i := range ds {
			if i > 0 {
				if err := p.expect(","); err != nil {
					return value{}, err
				}
			}
			d, err := p.Datum()
			if err != nil {
				return value{}, err
			}
			ds[i] = d
		}
		return value{kind: kDatum, d: fn(ds)}, nil
	}
}

// rot parses `v by angle [around axis]`.
func (p *Parser) rot() (value, error) {
	v, err := p.Vector()
	if err != nil {
		return value{}, err
	}
	if err := p.expect("by"); err != nil {
		return value{}, err
	}
	angle, err := p.Scalar()
	if err != nil {
		return value{}, err
	}
	var axis cad.Vector
	if p.accept("around") {
		if axis, err = p.Vector(); err != nil {
			return value{}, err
		}
	}
	return value{kind: kVector, v: cad.Rotate(v, angle, axis)}, nil
}

// tableLookup parses `table, keycol, key, valuecol [, nearest]`. Table and
// column names are bare words or strings.
func (p *Parser) tableLookup() (value, error) {
	word := func() (string, error) {
		t := p.peek()
		if t.kind == tokIdent || t.kind == tokString {
			p.next()
			return t.text, nil
		}
		return "", p.expected("a name")
	}
	table, err := word()
	if err != nil {
		return value{}, err
	}
	if err := p.expect(","); err != nil {
		return value{}, err
	}
	keyCol, err := word()
	if err != nil {
		return value{}, err
	}
	if err := p.expect(","); err != nil {
		return value{}, err
	}
	key, err := p.Scalar()
	if err != nil {
		return value{}, err
	}
	if err := p.expect(","); err != nil {
		return value{}, err
	}
	valueCol, err := word()
	if err != nil {
		return value{}, err
	}
	nearest := false
	if p.accept(",") {
		if err := p.expect("nearest"); err != nil {
			return value{}, err
		}
		nearest = true
	}
	return value{kind: kScalar, s: cad.TableLookup(p.model.Tables, table, keyCol, key, valueCol, nearest)}, nil
}

func (p *Parser) crankArgs() (l cad.Scalar, c cad.Vector, r cad.Scalar, p1, ax cad.Vector, err error) {
	steps := []func() error{
		func() (err error) { l, err = p.Scalar(); return },
		func() (err error) { c, err = p.Vector(); return },
		func() (err error) { r, err = p.Scalar(); return },
		func() (err error) { p1, err = p.Vector(); return },
		func() (err error) { ax, err = p.Vector(); return },
	}
	err = p.sequence(steps)
	return
}

func (p *Parser) sliderArgs() (l cad.Scalar, p0, dir, p1 cad.Vector, err error) {
	steps := []func() error{
		func() (err error) { l, err = p.Scalar(); return },
		func() (err error) { p0, err = p.Vector(); return },
		func() (err error) { dir, err = p.Vector(); return },
		func() (err error) { p1, err = p.Vector(); return },
	}
	err = p.sequence(steps)
	return
}

// sequence runs comma-separated argument parsers.
func (p *Parser) sequence(steps []func() error) error {
	for i, step := range steps {
		if i > 0 {
			if err := p.expect(","); err != nil {
				return err
			}
		}
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

package parser

import (
	"strings"

	"github.com/vk/iscadgo/internal/cad"
	"github.com/vk/iscadgo/internal/geom"
	"github.com/vk/iscadgo/internal/model"
	"github.com/vk/iscadgo/internal/postproc"
)

// statement parses and registers one top-level statement:
//
//	name = expression;          scalar, vector, datum or selection
//	name : feature;             modelstep
//	name > feature;             component
//	name -> property = scalar;  feature metadata
//	@post                       section marker
//	keyword(...) << ...;        post-processing action
func (p *Parser) statement() error {
	p.begin()

	if p.is("@") && p.isAt(1, "post") {
		p.next()
		p.next()
		p.logger.Debug("Entering post-processing section.")
		return nil
	}

	t := p.peek()
	if t.kind == tokIdent && p.isAt(1, "(") {
		if fn, ok := postprocStatements[t.text]; ok {
			p.next()
			if err := fn(p, t); err != nil {
				return err
			}
			p.commit()
			return nil
		}
	}

	name, err := p.ident()
	if err != nil {
		return p.expected("a statement")
	}
	op := p.next()
	switch op.text {
	case "=":
		err = p.assignment(name)
	case ":", ">":
		err = p.modelstep(name, op.text == ">")
	case "->":
		err = p.property(name)
	default:
		return p.errorf(op.rng, "Syntax error", "Expected '=', ':', '>' or '->' after '%s', found %s.", name.text, op)
	}
	if err != nil {
		return err
	}
	p.commit()
	return nil
}

func (p *Parser) end() error { return p.expect(";") }

func (p *Parser) assignment(name token) error {
	v, err := p.expr()
	if err != nil {
		return err
	}
	if err := p.end(); err != nil {
		return err
	}
	rng := p.rangeFrom(name.rng)

	var added bool
	switch {
	case v.kind == kScalar:
		added, err = p.model.AddScalar(name.text, v.s, rng, p.deps)
	case v.kind == kVector:
		added, err = p.model.AddVector(name.text, v.v, rng, p.deps)
	case v.kind == kDatum:
		added, err = p.model.AddDatum(name.text, v.d, rng, p.deps)
	case v.kind == kSet:
		added, err = p.model.AddSet(name.text, v.set, rng, p.deps)
	case v.kind == kFeature:
		return p.errorf(name.rng, "Invalid assignment",
			"'%s' is a feature; define it as a modelstep with '%s: ...;'.", name.text, name.text)
	default:
		return p.errorf(v.rng, "Invalid assignment", "A %s cannot be assigned to a symbol.", v.kind)
	}
	if err != nil {
		return p.errorf(name.rng, "Invalid assignment", "%s.", err)
	}
	if !added {
		p.logger.Debug("Assignment ignored, symbol is overridden.", "name", name.text)
	}
	return nil
}

func (p *Parser) modelstep(name token, component bool) error {
	f, err := p.Feature()
	if err != nil {
		return err
	}
	if err := p.end(); err != nil {
		return err
	}
	rng := p.rangeFrom(name.rng)
	if component {
		err = p.model.AddComponent(name.text, f, rng, p.deps)
	} else {
		err = p.model.AddModelstep(name.text, f, rng, p.deps)
	}
	if err != nil {
		return p.errorf(name.rng, "Invalid modelstep", "%s.", err)
	}
	p.addElement(rng, f, name.text)
	return nil
}

var featureProperties = map[string]func(*cad.Feature, cad.Scalar){
	"density":       (*cad.Feature).SetDensity,
	"areaWeight":    (*cad.Feature).SetAreaWeight,
	"visresolution": (*cad.Feature).SetVisResolution,
}

func (p *Parser) property(name token) error {
	f, err := p.model.Modelstep(name.text)
	if err != nil {
		return p.errorf(name.rng, "Invalid property assignment", "%s.", err)
	}
	prop, err := p.ident()
	if err != nil {
		return err
	}
	set, ok := featureProperties[prop.text]
	if !ok {
		return p.errorf(prop.rng, "Unknown property",
			"Features have the properties density, areaWeight and visresolution, not '%s'.", prop.text)
	}
	if err := p.expect("="); err != nil {
		return err
	}
	s, err := p.Scalar()
	if err != nil {
		return err
	}
	if err := p.end(); err != nil {
		return err
	}
	set(f, s)
	return nil
}

var postprocStatements map[string]func(*Parser, token) error

func init() {
	postprocStatements = map[string]func(*Parser, token) error{
		"DXF":             (*Parser).drawing,
		"saveAs":          (*Parser).saveAs,
		"exportSTL":       (*Parser).exportSTL,
		"exportEMesh":     (*Parser).exportEMesh,
		"gmsh":            (*Parser).mesh,
		"SolidProperties": (*Parser).solidProperties,
		"Hydrostatics":    (*Parser).hydrostatics,
	}
}

// pathArg parses `("path"` and leaves the parser after the string.
func (p *Parser) pathArg() (string, error) {
	if err := p.expect("("); err != nil {
		return "", err
	}
	return p.String()
}

func (p *Parser) closeAndShift() error {
	if err := p.expect(")"); err != nil {
		return err
	}
	return p.expect("<<")
}

// DXF("file") << feature view(on, normal [, up v] [, section] [, poly]
// [, skiphl] [, add lrtbk]) ... [, feature views...];
func (p *Parser) drawing(kw token) error {
	path, err := p.pathArg()
	if err != nil {
		return err
	}
	if err := p.closeAndShift(); err != nil {
		return err
	}
	var views []postproc.View
	for {
		f, err := p.Feature()
		if err != nil {
			return err
		}
		for p.peek().kind == tokIdent {
			v, err := p.view(f)
			if err != nil {
				return err
			}
			views = append(views, v)
		}
		if !p.accept(",") {
			break
		}
	}
	if err := p.end(); err != nil {
		return err
	}
	p.model.AddAction(postproc.NewDrawingExport(p.opts.Actions, path, views))
	return nil
}

func (p *Parser) view(f *cad.Feature) (postproc.View, error) {
	name := p.next()
	v := postproc.View{Name: name.text, Feature: f}
	if err := p.expect("("); err != nil {
		return v, err
	}
	var err error
	if v.On, err = p.Vector(); err != nil {
		return v, err
	}
	if err := p.expect(","); err != nil {
		return v, err
	}
	if v.Normal, err = p.Vector(); err != nil {
		return v, err
	}
	// options are accepted in their documented order only
	if p.is(",") && p.isAt(1, "up") {
		p.next()
		p.next()
		if v.Up, err = p.Vector(); err != nil {
			return v, err
		}
	}
	for _, flag := range []struct {
		word string
		dst  *bool
	}{{"section", &v.Section}, {"poly", &v.Poly}, {"skiphl", &v.SkipHL}} {
		if p.is(",") && p.isAt(1, flag.word) {
			p.next()
			p.next()
			*flag.dst = true
		}
	}
	if p.is(",") && p.isAt(1, "add") {
		p.next()
		p.next()
		var add strings.Builder
		for p.peek().kind == tokIdent {
			t := p.next()
			for _, c := range t.text {
				if !strings.ContainsRune("lrtbk", c) {
					return v, p.errorf(t.rng, "Invalid view option",
						"Additional views are l, r, t, b and k, not '%c'.", c)
				}
			}
			add.WriteString(t.text)
		}
		v.Add = add.String()
	}
	if err := p.expect(")"); err != nil {
		return v, err
	}
	return v, nil
}

// saveAs("file") << feature [name = faceset]...;
func (p *Parser) saveAs(kw token) error {
	path, err := p.pathArg()
	if err != nil {
		return err
	}
	if err := p.closeAndShift(); err != nil {
		return err
	}
	f, err := p.Feature()
	if err != nil {
		return err
	}
	var groups []postproc.NamedSet
	for p.peek().kind == tokIdent {
		g, err := p.namedSet(geom.Face)
		if err != nil {
			return err
		}
		groups = append(groups, g)
	}
	if err := p.end(); err != nil {
		return err
	}
	p.model.AddAction(postproc.NewSaveAs(p.opts.Actions, path, f, groups))
	return nil
}

// namedSet parses `name = selection` with a selection of the given kind.
func (p *Parser) namedSet(kind geom.Kind) (postproc.NamedSet, error) {
	name, err := p.ident()
	if err != nil {
		return postproc.NamedSet{}, err
	}
	if err := p.expect("="); err != nil {
		return postproc.NamedSet{}, err
	}
	v, err := p.typed(kSet)
	if err != nil {
		return postproc.NamedSet{}, err
	}
	if v.set.Kind() != kind {
		return postproc.NamedSet{}, p.errorf(v.rng, "Type mismatch",
			"Group '%s' must select %s entities, not %s.", name.text, kind, v.set.Kind())
	}
	return postproc.NamedSet{Name: name.text, Set: v.set}, nil
}

// exportSTL("file", tolerance) << feature;
func (p *Parser) exportSTL(kw token) error {
	path, err := p.pathArg()
	if err != nil {
		return err
	}
	if err := p.expect(","); err != nil {
		return err
	}
	tol, err := p.Scalar()
	if err != nil {
		return err
	}
	if err := p.closeAndShift(); err != nil {
		return err
	}
	f, err := p.Feature()
	if err != nil {
		return err
	}
	if err := p.end(); err != nil {
		return err
	}
	p.model.AddAction(postproc.NewExportSTL(p.opts.Actions, path, f, tol))
	return nil
}

// exportEMesh("file", abstol, maxlen) << edges;
func (p *Parser) exportEMesh(kw token) error {
	path, err := p.pathArg()
	if err != nil {
		return err
	}
	var tols [2]cad.Scalar
	for i := range tols {
		if err := p.expect(","); err != nil {
			return err
		}
		if tols[i], err = p.Scalar(); err != nil {
			return err
		}
	}
	if err := p.closeAndShift(); err != nil {
		return err
	}
	v, err := p.typed(kSet)
	if err != nil {
		return err
	}
	if v.set.Kind() != geom.Edge {
		return p.errorf(v.rng, "Type mismatch", "exportEMesh needs an edge selection, not %s.", v.set.Kind())
	}
	if err := p.end(); err != nil {
		return err
	}
	p.model.AddAction(postproc.NewExportEMesh(p.opts.Actions, path, v.set, tols[0], tols[1]))
	return nil
}

// gmsh("file") << feature as name L = (max min) [linear]
//
//	vertexGroups(name = set [@ L] ...) edgeGroups(...) faceGroups(...)
//	[vertices(name = vector ...)];
func (p *Parser) mesh(kw token) error {
	path, err := p.pathArg()
	if err != nil {
		return err
	}
	if err := p.closeAndShift(); err != nil {
		return err
	}
	f, err := p.Feature()
	if err != nil {
		return err
	}
	if err := p.expect("as"); err != nil {
		return err
	}
	volume, err := p.ident()
	if err != nil {
		return err
	}
	for _, s := range []string{"L", "=", "("} {
		if err := p.expect(s); err != nil {
			return err
		}
	}
	lmax, err := p.Scalar()
	if err != nil {
		return err
	}
	lmin, err := p.Scalar()
	if err != nil {
		return err
	}
	if err := p.expect(")"); err != nil {
		return err
	}
	a := postproc.NewMesh(p.opts.Actions, path, f, volume.text, lmax, lmin)
	a.Linear = p.accept("linear")

	for _, g := range []struct {
		keyword string
		kind    geom.Kind
		dst     *[]postproc.MeshGroup
	}{
		{"vertexGroups", geom.Vertex, &a.VertexGroups},
		{"edgeGroups", geom.Edge, &a.EdgeGroups},
		{"faceGroups", geom.Face, &a.FaceGroups},
	} {
		if *g.dst, err = p.meshGroups(g.keyword, g.kind); err != nil {
			return err
		}
	}

	if p.accept("vertices") {
		if err := p.expect("("); err != nil {
			return err
		}
		for !p.accept(")") {
			name, err := p.ident()
			if err != nil {
				return err
			}
			if err := p.expect("="); err != nil {
				return err
			}
			loc, err := p.Vector()
			if err != nil {
				return err
			}
			a.Vertices = append(a.Vertices, postproc.NamedVertex{Name: name.text, Loc: loc})
		}
	}
	if err := p.end(); err != nil {
		return err
	}
	p.model.AddAction(a)
	return nil
}

func (p *Parser) meshGroups(keyword string, kind geom.Kind) ([]postproc.MeshGroup, error) {
	if err := p.expect(keyword); err != nil {
		return nil, err
	}
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var out []postproc.MeshGroup
	for !p.accept(")") {
		p.noAt = true
		g, err := p.namedSet(kind)
		p.noAt = false
		if err != nil {
			return nil, err
		}
		mg := postproc.MeshGroup{Name: g.Name, Set: g.Set}
		if p.accept("@") {
			if mg.L, err = p.Scalar(); err != nil {
				return nil, err
			}
		}
		out = append(out, mg)
	}
	return out, nil
}

// SolidProperties(name) << feature;
func (p *Parser) solidProperties(kw token) error {
	if err := p.expect("("); err != nil {
		return err
	}
	name, err := p.ident()
	if err != nil {
		return err
	}
	if err := p.closeAndShift(); err != nil {
		return err
	}
	f, err := p.Feature()
	if err != nil {
		return err
	}
	if err := p.end(); err != nil {
		return err
	}
	return p.namedAction(name, postproc.NewSolidProperties(p.opts.Actions, name.text, f))
}

// Hydrostatics(name, psfc, nsfc, elat, elong) << (hull, ship);
func (p *Parser) hydrostatics(kw token) error {
	if err := p.expect("("); err != nil {
		return err
	}
	name, err := p.ident()
	if err != nil {
		return err
	}
	var vs [4]cad.Vector
	for i := range vs {
		if err := p.expect(","); err != nil {
			return err
		}
		if vs[i], err = p.Vector(); err != nil {
			return err
		}
	}
	if err := p.closeAndShift(); err != nil {
		return err
	}
	if err := p.expect("("); err != nil {
		return err
	}
	hull, err := p.Feature()
	if err != nil {
		return err
	}
	if err := p.expect(","); err != nil {
		return err
	}
	ship, err := p.Feature()
	if err != nil {
		return err
	}
	if err := p.expect(")"); err != nil {
		return err
	}
	if err := p.end(); err != nil {
		return err
	}
	return p.namedAction(name, postproc.NewHydrostatics(p.opts.Actions, name.text, hull, ship, vs[0], vs[1], vs[2], vs[3]))
}

func (p *Parser) namedAction(name token, a model.Action) error {
	if err := p.model.AddNamedAction(name.text, a, p.rangeFrom(name.rng), p.deps); err != nil {
		return p.errorf(name.rng, "Invalid action", "%s.", err)
	}
	return nil
}

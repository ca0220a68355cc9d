package parser

import (
	"path/filepath"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/iscadgo/internal/cad"
	"github.com/vk/iscadgo/internal/registry"
)

var _ registry.Args = (*Parser)(nil)

// Scalar parses an expression that must be a scalar.
func (p *Parser) Scalar() (cad.Scalar, error) {
	v, err := p.typed(kScalar)
	return v.s, err
}

// Vector parses an expression that must be a vector. A datum stands for its
// origin.
func (p *Parser) Vector() (cad.Vector, error) {
	v, err := p.typed(kVector)
	if err != nil {
		return nil, err
	}
	return v.vector(), nil
}

// Datum parses an expression that must be a datum.
func (p *Parser) Datum() (cad.Datum, error) {
	v, err := p.typed(kDatum)
	return v.d, err
}

// Feature parses an expression that must be a feature.
func (p *Parser) Feature() (*cad.Feature, error) {
	v, err := p.typed(kFeature)
	return v.f, err
}

func (p *Parser) set() (*cad.FeatureSet, error) {
	v, err := p.typed(kSet)
	return v.set, err
}

func (p *Parser) typed(kind valueKind) (value, error) {
	v, err := p.expr()
	if err != nil {
		return value{}, err
	}
	if err := p.want(v, kind); err != nil {
		return value{}, err
	}
	return v, nil
}

// String reads a quoted string literal.
func (p *Parser) String() (string, error) {
	t := p.peek()
	if t.kind != tokString {
		return "", p.expected("a quoted string")
	}
	p.next()
	return t.text, nil
}

func (p *Parser) Accept(tok string) bool  { return p.accept(tok) }
func (p *Parser) Expect(tok string) error { return p.expect(tok) }
func (p *Parser) Peek(tok string) bool    { return p.is(tok) }

func (p *Parser) Env() *cad.Env { return p.model.Env }

// Resolve makes path relative to the model file's directory.
func (p *Parser) Resolve(path string) string {
	if filepath.IsAbs(path) || p.opts.BaseDir == "" {
		return path
	}
	return filepath.Join(p.opts.BaseDir, path)
}

func (p *Parser) Range() hcl.Range { return p.peek().rng }

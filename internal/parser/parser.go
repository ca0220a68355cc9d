package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/iscadgo/internal/cad"
	"github.com/vk/iscadgo/internal/ctxlog"
	"github.com/vk/iscadgo/internal/model"
	"github.com/vk/iscadgo/internal/postproc"
	"github.com/vk/iscadgo/internal/registry"
)

// Options configure a parse.
type Options struct {
	// Registry resolves feature type calls. It is required.
	Registry *registry.Registry
	// Actions configures the post-processing actions the model declares.
	Actions postproc.Config
	// BaseDir resolves relative paths in the model. It defaults to the
	// directory of the model file.
	BaseDir string
}

// Parser turns model source into symbols of a model.Model. A Parser is used
// for one file and is not safe for concurrent use.
type Parser struct {
	model  *model.Model
	reg    *registry.Registry
	opts   Options
	logger *slog.Logger

	toks []token
	pos  int

	// Symbol references and syntax elements of the statement being parsed.
	// They are committed to the model when the statement succeeds and
	// truncated when a speculative parse is undone.
	deps     []string
	elements []model.SyntaxElement
	// noAt stops postfix parsing at '@', which separates a mesh group from
	// its cell size.
	noAt bool
}

// ParseFile reads and parses a model file into m.
func ParseFile(ctx context.Context, m *model.Model, path string, opts Options) hcl.Diagnostics {
	src, err := os.ReadFile(path)
	if err != nil {
		return hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Failed to read model file",
			Detail:   fmt.Sprintf("The model file %s could not be read: %s.", path, err),
		}}
	}
	if opts.BaseDir == "" {
		opts.BaseDir = filepath.Dir(path)
	}
	return Parse(ctx, m, path, src, opts)
}

// Parse processes the statements of src in order, registering each result
// in m before the next statement is parsed. It stops at the first error;
// symbols of the statements before it stay registered.
func Parse(ctx context.Context, m *model.Model, filename string, src []byte, opts Options) hcl.Diagnostics {
	logger := ctxlog.FromContext(ctx).With("file", filename)

	toks, lexDiag := lex(filename, src)
	if m.Path == "" {
		m.Path = filename
	}
	if m.Tables == nil {
		dirs := []string{opts.BaseDir}
		if opts.BaseDir == "" {
			dirs = []string{"."}
		}
		m.Tables = &cad.DirTables{Dirs: dirs}
	}

	p := &Parser{model: m, reg: opts.Registry, opts: opts, logger: logger, toks: toks}
	count := 0
	for !p.atEOF() {
		if err := p.statement(); err != nil {
			logger.Debug("Statement failed, stopping.", "statements", count, "error", err)
			diags := asDiagnostics(err, p.peek().rng)
			if lexDiag != nil && p.atEOF() {
				// the statement ran into the unreadable input
				diags = append(diags, lexDiag)
			}
			return diags
		}
		count++
	}
	if lexDiag != nil {
		return hcl.Diagnostics{lexDiag}
	}
	logger.Debug("Parsed model.", "statements", count)
	return nil
}

// asDiagnostics converts err into diagnostics, pointing plain errors at
// rng.
func asDiagnostics(err error, rng hcl.Range) hcl.Diagnostics {
	var diags hcl.Diagnostics
	if errors.As(err, &diags) {
		return diags
	}
	return hcl.Diagnostics{{
		Severity: hcl.DiagError,
		Summary:  "Invalid statement",
		Detail:   err.Error(),
		Subject:  rng.Ptr(),
	}}
}

func (p *Parser) errorf(rng hcl.Range, summary, format string, args ...any) error {
	return hcl.Diagnostics{{
		Severity: hcl.DiagError,
		Summary:  summary,
		Detail:   fmt.Sprintf(format, args...),
		Subject:  rng.Ptr(),
	}}
}

// wrapf attaches a source range to an error returned by a value
// constructor. Errors that already carry a range are kept.
func (p *Parser) wrapf(rng hcl.Range, err error, format string, args ...any) error {
	var diags hcl.Diagnostics
	if errors.As(err, &diags) {
		return err
	}
	return p.errorf(rng, fmt.Sprintf(format, args...), "%s.", err)
}

func (p *Parser) expected(what string) error {
	t := p.peek()
	return p.errorf(t.rng, "Syntax error", "Expected %s, found %s.", what, t)
}

func (p *Parser) peek() token { return p.toks[p.pos] }

func (p *Parser) peekAt(off int) token {
	if p.pos+off >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+off]
}

func (p *Parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *Parser) prev() token {
	if p.pos == 0 {
		return p.toks[0]
	}
	return p.toks[p.pos-1]
}

func (p *Parser) atEOF() bool { return p.peek().kind == tokEOF }

func (p *Parser) is(text string) bool {
	t := p.peek()
	return (t.kind == tokPunct || t.kind == tokIdent) && t.text == text
}

func (p *Parser) isAt(off int, text string) bool {
	t := p.peekAt(off)
	return (t.kind == tokPunct || t.kind == tokIdent) && t.text == text
}

func (p *Parser) accept(text string) bool {
	if p.is(text) {
		p.next()
		return true
	}
	return false
}

func (p *Parser) expect(text string) error {
	if !p.accept(text) {
		return p.expected("'" + text + "'")
	}
	return nil
}

func (p *Parser) ident() (token, error) {
	if p.peek().kind != tokIdent {
		return token{}, p.expected("an identifier")
	}
	return p.next(), nil
}

// rangeFrom spans from start to the end of the last consumed token.
func (p *Parser) rangeFrom(start hcl.Range) hcl.Range {
	return hcl.RangeBetween(start, p.prev().rng)
}

func (p *Parser) addDep(name string) {
	p.deps = append(p.deps, name)
}

func (p *Parser) addElement(rng hcl.Range, f *cad.Feature, symbol string) {
	p.elements = append(p.elements, model.SyntaxElement{Range: rng, Feature: f, Symbol: symbol})
}

// mark and reset implement backtracking over tokens and recorded side
// effects.
type mark struct{ pos, deps, elements int }

func (p *Parser) mark() mark { return mark{p.pos, len(p.deps), len(p.elements)} }

func (p *Parser) reset(m mark) {
	p.pos = m.pos
	p.deps = p.deps[:m.deps]
	p.elements = p.elements[:m.elements]
}

// begin starts a statement.
func (p *Parser) begin() {
	p.deps = p.deps[:0]
	p.elements = p.elements[:0]
	p.noAt = false
}

// commit publishes the syntax elements of a successful statement.
func (p *Parser) commit() {
	for _, el := range p.elements {
		p.model.Syntax.Add(el)
	}
	p.elements = p.elements[:0]
}

package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hashicorp/hcl/v2"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	num  float64
	rng  hcl.Range
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of file"
	case tokString:
		return strconv.Quote(t.text)
	}
	return "'" + t.text + "'"
}

// punctuation, longest first
var puncts = []string{
	"->", ">>", "<<",
	"(", ")", "[", "]", ",", ";", "=", ":", ">", "<",
	"+", "-", "*", "/", "^", "&", "|", ".", "?", "$", "@", "!", "%",
}

type lexer struct {
	file string
	src  []byte
	pos  hcl.Pos
}

// lex splits src into tokens. Comments start with `#` or `//` and run to
// the end of the line, or are enclosed in `/* */`.
//
// On a lexical error the tokens before it are returned, terminated by an
// EOF token at the error position, together with the diagnostic.
func lex(file string, src []byte) ([]token, *hcl.Diagnostic) {
	l := &lexer{file: file, src: src, pos: hcl.InitialPos}
	var toks []token
	for {
		start := l.pos
		if d := l.skipSpace(); d != nil {
			return append(toks, token{kind: tokEOF, rng: hcl.Range{Filename: file, Start: start, End: start}}), d
		}
		if l.pos.Byte >= len(l.src) {
			toks = append(toks, token{kind: tokEOF, rng: l.rangeFrom(l.pos)})
			return toks, nil
		}
		start = l.pos
		t, d := l.next()
		if d != nil {
			return append(toks, token{kind: tokEOF, rng: hcl.Range{Filename: file, Start: start, End: start}}), d
		}
		toks = append(toks, t)
	}
}

func (l *lexer) peekRune(off int) rune {
	i := l.pos.Byte + off
	if i >= len(l.src) {
		return 0
	}
	r, _ := utf8.DecodeRune(l.src[i:])
	return r
}

func (l *lexer) advance() rune {
	r, size := utf8.DecodeRune(l.src[l.pos.Byte:])
	l.pos.Byte += size
	if r == '\n' {
		l.pos.Line++
		l.pos.Column = 1
	} else {
		l.pos.Column++
	}
	return r
}

func (l *lexer) rangeFrom(start hcl.Pos) hcl.Range {
	return hcl.Range{Filename: l.file, Start: start, End: l.pos}
}

func (l *lexer) skipSpace() *hcl.Diagnostic {
	for l.pos.Byte < len(l.src) {
		r := l.peekRune(0)
		switch {
		case unicode.IsSpace(r):
			l.advance()
		case r == '#' || (r == '/' && l.peekRune(1) == '/'):
			for l.pos.Byte < len(l.src) && l.peekRune(0) != '\n' {
				l.advance()
			}
		case r == '/' && l.peekRune(1) == '*':
			start := l.pos
			l.advance()
			l.advance()
			for {
				if l.pos.Byte >= len(l.src) {
					return &hcl.Diagnostic{
						Severity: hcl.DiagError,
						Summary:  "Unterminated comment",
						Detail:   "A block comment is missing its closing \"*/\".",
						Subject:  l.rangeFrom(start).Ptr(),
					}
				}
				if l.peekRune(0) == '*' && l.peekRune(1) == '/' {
					l.advance()
					l.advance()
					break
				}
				l.advance()
			}
		default:
			return nil
		}
	}
	return nil
}

func (l *lexer) next() (token, *hcl.Diagnostic) {
	start := l.pos
	r := l.peekRune(0)
	switch {
	case unicode.IsLetter(r) || r == '_':
		for r := l.peekRune(0); unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'; r = l.peekRune(0) {
			l.advance()
		}
		return token{kind: tokIdent, text: string(l.src[start.Byte:l.pos.Byte]), rng: l.rangeFrom(start)}, nil

	case unicode.IsDigit(r):
		return l.number(start)

	case r == '"':
		return l.str(start)
	}

	for _, p := range puncts {
		if strings.HasPrefix(string(l.src[l.pos.Byte:min(l.pos.Byte+len(p), len(l.src))]), p) {
			for range p {
				l.advance()
			}
			return token{kind: tokPunct, text: p, rng: l.rangeFrom(start)}, nil
		}
	}
	l.advance()
	return token{}, &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  "Invalid character",
		Detail:   fmt.Sprintf("The character %q is not valid here.", r),
		Subject:  l.rangeFrom(start).Ptr(),
	}
}

func (l *lexer) number(start hcl.Pos) (token, *hcl.Diagnostic) {
	digits := func() {
		for unicode.IsDigit(l.peekRune(0)) {
			l.advance()
		}
	}
	digits()
	// `1.x` is not valid but `v.x` is, so a dot belongs to the number
	// only when a digit or exponent follows it
	if l.peekRune(0) == '.' && !unicode.IsLetter(l.peekRune(1)) {
		l.advance()
		digits()
	}
	if r := l.peekRune(0); r == 'e' || r == 'E' {
		off := 1
		if s := l.peekRune(1); s == '+' || s == '-' {
			off = 2
		}
		if unicode.IsDigit(l.peekRune(off)) {
			for i := 0; i < off; i++ {
				l.advance()
			}
			digits()
		}
	}
	text := string(l.src[start.Byte:l.pos.Byte])
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return token{}, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid number",
			Detail:   fmt.Sprintf("%q is not a valid number.", text),
			Subject:  l.rangeFrom(start).Ptr(),
		}
	}
	return token{kind: tokNumber, text: text, num: v, rng: l.rangeFrom(start)}, nil
}

func (l *lexer) str(start hcl.Pos) (token, *hcl.Diagnostic) {
	l.advance()
	var sb strings.Builder
	for {
		if l.pos.Byte >= len(l.src) || l.peekRune(0) == '\n' {
			return token{}, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Unterminated string",
				Detail:   "A string literal is missing its closing quote.",
				Subject:  l.rangeFrom(start).Ptr(),
			}
		}
		r := l.advance()
		switch r {
		case '"':
			return token{kind: tokString, text: sb.String(), rng: l.rangeFrom(start)}, nil
		case '\\':
			if l.pos.Byte < len(l.src) {
				e := l.advance()
				switch e {
				case 'n':
					sb.WriteRune('\n')
				case 't':
					sb.WriteRune('\t')
				default:
					sb.WriteRune(e)
				}
			}
		default:
			sb.WriteRune(r)
		}
	}
}

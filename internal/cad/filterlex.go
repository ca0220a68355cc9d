package cad

import (
	"fmt"
	"strconv"
	"unicode"
)

type ftokKind int

const (
	ftEOF ftokKind = iota
	ftIdent
	ftNumber
	ftPlaceholder // %N, %dN, %mN
	ftOp
)

type ftok struct {
	kind ftokKind
	text string
	num  float64
	// placeholder
	class byte // 0, 'd' or 'm'
	index int
	pos   int
}

func (t ftok) String() string {
	switch t.kind {
	case ftEOF:
		return "end of filter"
	case ftPlaceholder:
		if t.class == 0 {
			return fmt.Sprintf("%%%d", t.index)
		}
		return fmt.Sprintf("%%%c%d", t.class, t.index)
	}
	return strconv.Quote(t.text)
}

var twoCharOps = []string{"||", "&&", "==", ">=", "<="}

func lexFilter(src string) ([]ftok, error) {
	var toks []ftok
	rs := []rune(src)
	i := 0
	for i < len(rs) {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(rs) && (unicode.IsLetter(rs[i]) || unicode.IsDigit(rs[i]) || rs[i] == '_') {
				i++
			}
			toks = append(toks, ftok{kind: ftIdent, text: string(rs[start:i]), pos: start})
		case unicode.IsDigit(r) || (r == '.' && i+1 < len(rs) && unicode.IsDigit(rs[i+1])):
			start := i
			for i < len(rs) && (unicode.IsDigit(rs[i]) || rs[i] == '.') {
				i++
			}
			if i < len(rs) && (rs[i] == 'e' || rs[i] == 'E') {
				j := i + 1
				if j < len(rs) && (rs[j] == '+' || rs[j] == '-') {
					j++
				}
				if j < len(rs) && unicode.IsDigit(rs[j]) {
					i = j
					for i < len(rs) && unicode.IsDigit(rs[i]) {
						i++
					}
				}
			}
			text := string(rs[start:i])
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q at %d", text, start)
			}
			toks = append(toks, ftok{kind: ftNumber, text: text, num: v, pos: start})
		case r == '%':
			start := i
			i++
			var class byte
			if i < len(rs) && (rs[i] == 'd' || rs[i] == 'm') {
				class = byte(rs[i])
				i++
			}
			ds := i
			for i < len(rs) && unicode.IsDigit(rs[i]) {
				i++
			}
			if ds == i {
				return nil, fmt.Errorf("placeholder without index at %d", start)
			}
			n, _ := strconv.Atoi(string(rs[ds:i]))
			toks = append(toks, ftok{kind: ftPlaceholder, text: string(rs[start:i]), class: class, index: n, pos: start})
		default:
			matched := false
			if i+1 < len(rs) {
				two := string(rs[i : i+2])
				for _, op := range twoCharOps {
					if two == op {
						toks = append(toks, ftok{kind: ftOp, text: op, pos: i})
						i += 2
						matched = true
						break
					}
				}
			}
			if matched {
				continue
			}
			switch r {
			case '!', '(', ')', '[', ']', ',', '.', '+', '-', '*', '/', '&', '~', '{', '}', '<', '>':
				toks = append(toks, ftok{kind: ftOp, text: string(r), pos: i})
				i++
			default:
				return nil, fmt.Errorf("unexpected character %q at %d", r, i)
			}
		}
	}
	return append(toks, ftok{kind: ftEOF, pos: len(rs)}), nil
}

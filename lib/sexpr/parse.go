package sexpr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/ValentinKolb/dTrie/lib/token"
)

var ErrSyntax = errors.New("sexpr: syntax error")

// --------------------------------------------------------------------------
// Scanner
// --------------------------------------------------------------------------

type itemKind uint8

const (
	itemOpen itemKind = iota
	itemClose
	itemWord
	itemString
)

type item struct {
	kind itemKind
	text string
	pos  int
}

// scan splits src into parentheses, bare words and quoted strings.
func scan(src string) ([]item, error) {
	var items []item
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ';':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case unicode.IsSpace(rune(c)):
			i++
		case c == '(':
			items = append(items, item{kind: itemOpen, pos: i})
			i++
		case c == ')':
			items = append(items, item{kind: itemClose, pos: i})
			i++
		case c == '"':
			j := i + 1
			for j < len(src) && src[j] != '"' {
				if src[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(src) {
				return nil, fmt.Errorf("%w: unterminated string at offset %d", ErrSyntax, i)
			}
			s, err := strconv.Unquote(src[i : j+1])
			if err != nil {
				return nil, fmt.Errorf("%w: bad string at offset %d: %v", ErrSyntax, i, err)
			}
			items = append(items, item{kind: itemString, text: s, pos: i})
			i = j + 1
		default:
			j := i
			for j < len(src) && !unicode.IsSpace(rune(src[j])) && !strings.ContainsRune("()\";", rune(src[j])) {
				j++
			}
			items = append(items, item{kind: itemWord, text: src[i:j], pos: i})
			i = j
		}
	}
	return items, nil
}

// --------------------------------------------------------------------------
// Parser
// --------------------------------------------------------------------------

type parser struct {
	items   []item
	pos     int
	pattern bool
}

func (p *parser) done() bool { return p.pos >= len(p.items) }

// expr parses one expression and appends its flattened elements to out.
func (p *parser) expr(out token.Pattern) (token.Pattern, error) {
	if p.done() {
		return nil, fmt.Errorf("%w: unexpected end of input", ErrSyntax)
	}
	it := p.items[p.pos]
	p.pos++
	switch it.kind {
	case itemClose:
		return nil, fmt.Errorf("%w: unexpected ')' at offset %d", ErrSyntax, it.pos)
	case itemString:
		return append(out, token.Lit(token.Atom(it.text))), nil
	case itemWord:
		e, err := p.word(it)
		if err != nil {
			return nil, err
		}
		return append(out, e), nil
	}

	// list: reserve the header and patch the arity once all elements are known
	header := len(out)
	out = append(out, token.Elem{})
	n := 0
	for {
		if p.done() {
			return nil, fmt.Errorf("%w: unclosed '(' at offset %d", ErrSyntax, it.pos)
		}
		if p.items[p.pos].kind == itemClose {
			p.pos++
			break
		}
		var err error
		if out, err = p.expr(out); err != nil {
			return nil, err
		}
		n++
	}
	out[header] = token.Lit(token.Arity(n))
	return out, nil
}

func (p *parser) word(it item) (token.Elem, error) {
	if strings.HasPrefix(it.text, "$") {
		if !p.pattern {
			return token.Elem{}, fmt.Errorf("%w: variable %s outside of a pattern", ErrSyntax, it.text)
		}
		name := it.text[1:]
		if strings.HasPrefix(name, "*") {
			return token.Many(name[1:]), nil
		}
		if name == "" {
			return token.Elem{}, fmt.Errorf("%w: empty variable name at offset %d", ErrSyntax, it.pos)
		}
		return token.Var(name), nil
	}
	if v, err := strconv.ParseInt(it.text, 10, 64); err == nil {
		return token.Lit(token.Int(v)), nil
	}
	return token.Lit(token.Atom(it.text)), nil
}

func toPath(pat token.Pattern) token.Path {
	p := make(token.Path, len(pat))
	for i, e := range pat {
		p[i] = e.Symbol
	}
	return p
}

// --------------------------------------------------------------------------
// Public API
// --------------------------------------------------------------------------

// ParsePaths parses every top-level expression of src into one path each.
func ParsePaths(src string) ([]token.Path, error) {
	items, err := scan(src)
	if err != nil {
		return nil, err
	}
	p := &parser{items: items}
	var paths []token.Path
	for !p.done() {
		pat, err := p.expr(nil)
		if err != nil {
			return nil, err
		}
		paths = append(paths, toPath(pat))
	}
	return paths, nil
}

// ParsePath parses src, which must contain exactly one expression.
func ParsePath(src string) (token.Path, error) {
	paths, err := ParsePaths(src)
	if err != nil {
		return nil, err
	}
	if len(paths) != 1 {
		return nil, fmt.Errorf("%w: expected one expression, got %d", ErrSyntax, len(paths))
	}
	return paths[0], nil
}

// ParsePattern parses src, which must contain exactly one expression, into a pattern.
// The pattern is validated.
func ParsePattern(src string) (token.Pattern, error) {
	items, err := scan(src)
	if err != nil {
		return nil, err
	}
	p := &parser{items: items, pattern: true}
	pat, err := p.expr(nil)
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, fmt.Errorf("%w: trailing input at offset %d", ErrSyntax, p.items[p.pos].pos)
	}
	return pat, pat.Validate()
}

// ParseRaw parses src as a flat sequence of symbols. Parentheses are not allowed, arity
// headers are written as [n] (the notation of token.Path.String).
func ParseRaw(src string) (token.Path, error) {
	pat, err := parseRaw(src, false)
	if err != nil {
		return nil, err
	}
	return toPath(pat), nil
}

// ParseRawPattern parses src as a flat sequence of symbols and variables.
func ParseRawPattern(src string) (token.Pattern, error) {
	pat, err := parseRaw(src, true)
	if err != nil {
		return nil, err
	}
	return pat, pat.Validate()
}

func parseRaw(src string, pattern bool) (token.Pattern, error) {
	items, err := scan(src)
	if err != nil {
		return nil, err
	}
	p := &parser{items: items, pattern: pattern}
	out := make(token.Pattern, 0, len(items))
	for _, it := range items {
		switch it.kind {
		case itemOpen, itemClose:
			return nil, fmt.Errorf("%w: parentheses are not allowed in raw mode (offset %d)", ErrSyntax, it.pos)
		case itemString:
			out = append(out, token.Lit(token.Atom(it.text)))
		default:
			if n, ok := rawArity(it.text); ok {
				out = append(out, token.Lit(token.Arity(n)))
				continue
			}
			e, err := p.word(it)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
	}
	return out, nil
}

// rawArity parses an arity header written as [n]
func rawArity(word string) (int, bool) {
	inner, ok := strings.CutPrefix(word, "[")
	if !ok {
		return 0, false
	}
	inner, ok = strings.CutSuffix(inner, "]")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(inner)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

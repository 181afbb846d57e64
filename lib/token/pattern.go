package token

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// --------------------------------------------------------------------------
// Pattern Elements
// --------------------------------------------------------------------------

type ElemKind uint8

const (
	ElemLiteral ElemKind = iota + 1 // Matches exactly one symbol
	ElemVar                         // Matches one term
	ElemMany                        // Matches zero or more symbols
)

func (k ElemKind) String() string {
	switch k {
	case ElemLiteral:
		return "lit"
	case ElemVar:
		return "var"
	case ElemMany:
		return "many"
	default:
		return "invalid"
	}
}

// Elem is one position of a Pattern. Symbol is only used by literals, Name only by
// variables and wildcard-many elements. The names "" and "_" are anonymous: they match like
// named elements but are never bound and never constrain each other.
type Elem struct {
	Kind   ElemKind
	Symbol Symbol
	Name   string
}

// Lit returns a literal element matching exactly s.
func Lit(s Symbol) Elem { return Elem{Kind: ElemLiteral, Symbol: s} }

// Var returns a variable element matching one term.
func Var(name string) Elem { return Elem{Kind: ElemVar, Name: name} }

// Many returns a wildcard-many element matching zero or more symbols.
func Many(name string) Elem { return Elem{Kind: ElemMany, Name: name} }

// Anonymous reports whether the element is a variable or wildcard that is never bound.
func (e Elem) Anonymous() bool { return e.Name == "" || e.Name == "_" }

func (e Elem) String() string {
	switch e.Kind {
	case ElemLiteral:
		return e.Symbol.String()
	case ElemVar:
		if e.Anonymous() {
			return "$_"
		}
		return "$" + e.Name
	case ElemMany:
		if e.Anonymous() {
			return "$*"
		}
		return "$*" + e.Name
	default:
		return "<invalid>"
	}
}

type elemJSON struct {
	Lit  *Symbol `json:"lit,omitempty"`
	Var  *string `json:"var,omitempty"`
	Many *string `json:"many,omitempty"`
}

// MarshalJSON encodes the element as {"lit":symbol}, {"var":"name"} or {"many":"name"}.
func (e Elem) MarshalJSON() ([]byte, error) {
	var j elemJSON
	switch e.Kind {
	case ElemLiteral:
		j.Lit = &e.Symbol
	case ElemVar:
		j.Var = &e.Name
	case ElemMany:
		j.Many = &e.Name
	default:
		return nil, fmt.Errorf("%w: invalid pattern element", ErrMalformed)
	}
	return json.Marshal(j)
}

func (e *Elem) UnmarshalJSON(data []byte) error {
	var j elemJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch {
	case j.Lit != nil && j.Var == nil && j.Many == nil:
		*e = Lit(*j.Lit)
	case j.Var != nil && j.Lit == nil && j.Many == nil:
		*e = Var(*j.Var)
	case j.Many != nil && j.Lit == nil && j.Var == nil:
		*e = Many(*j.Many)
	default:
		return fmt.Errorf("%w: element must have exactly one of lit, var, many", ErrMalformed)
	}
	return nil
}

// --------------------------------------------------------------------------
// Pattern
// --------------------------------------------------------------------------

// Pattern is a path in which some positions are variables or wildcard-many markers.
type Pattern []Elem

// Exact returns the pattern that matches only p.
func Exact(p Path) Pattern {
	pat := make(Pattern, len(p))
	for i, s := range p {
		pat[i] = Lit(s)
	}
	return pat
}

// Validate checks the pattern before any traversal. It returns ErrMalformed for unknown
// element kinds or invalid literals.
//
// A name may be shared by variables and wildcard-many elements. All occurrences bind the
// same sequence, so a variable only matches where that sequence is a single term.
func (p Pattern) Validate() error {
	for i, e := range p {
		switch e.Kind {
		case ElemLiteral:
			if !e.Symbol.IsValid() {
				return fmt.Errorf("%w: invalid literal at position %d", ErrMalformed, i)
			}
		case ElemVar, ElemMany:
		default:
			return fmt.Errorf("%w: unknown element kind %d at position %d", ErrMalformed, e.Kind, i)
		}
	}
	return nil
}

// IsGround reports whether the pattern only consists of literals.
func (p Pattern) IsGround() bool {
	for _, e := range p {
		if e.Kind != ElemLiteral {
			return false
		}
	}
	return true
}

// LiteralPrefix returns the literal symbols before the first variable or wildcard.
func (p Pattern) LiteralPrefix() Path {
	var out Path
	for _, e := range p {
		if e.Kind != ElemLiteral {
			break
		}
		out = append(out, e.Symbol)
	}
	return out
}

func (p Pattern) String() string {
	parts := make([]string, len(p))
	for i, e := range p {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// AppendBinary appends uvarint(len(p)) followed by each element: a kind byte and either a
// symbol (literal) or uvarint(len(name)) + name.
func (p Pattern) AppendBinary(dst []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(p)))
	for _, e := range p {
		dst = append(dst, byte(e.Kind))
		if e.Kind == ElemLiteral {
			dst = e.Symbol.AppendBinary(dst)
			continue
		}
		dst = binary.AppendUvarint(dst, uint64(len(e.Name)))
		dst = append(dst, e.Name...)
	}
	return dst
}

// DecodePattern decodes a pattern from the start of b and returns it together with the
// number of bytes consumed. The result is not validated.
func DecodePattern(b []byte) (Pattern, int, error) {
	count, n := binary.Uvarint(b)
	if n <= 0 || count > uint64(len(b)-n)/2 {
		return nil, 0, fmt.Errorf("%w: bad pattern length", ErrMalformed)
	}
	p := make(Pattern, 0, count)
	off := n
	for i := uint64(0); i < count; i++ {
		if off >= len(b) {
			return nil, 0, fmt.Errorf("%w: pattern truncated", ErrMalformed)
		}
		kind := ElemKind(b[off])
		off++
		switch kind {
		case ElemLiteral:
			s, sn, err := DecodeSymbol(b[off:])
			if err != nil {
				return nil, 0, err
			}
			p = append(p, Lit(s))
			off += sn
		case ElemVar, ElemMany:
			l, ln := binary.Uvarint(b[off:])
			if ln <= 0 || l > uint64(len(b)-off-ln) {
				return nil, 0, fmt.Errorf("%w: bad element name", ErrMalformed)
			}
			off += ln
			p = append(p, Elem{Kind: kind, Name: string(b[off : off+int(l)])})
			off += int(l)
		default:
			return nil, 0, fmt.Errorf("%w: unknown element kind %d", ErrMalformed, kind)
		}
	}
	return p, off, nil
}

// --------------------------------------------------------------------------
// Bindings
// --------------------------------------------------------------------------

// Bindings maps variable names to the symbol sequence they matched.
type Bindings map[string]Path

// Names returns the bound names in sorted order.
func (b Bindings) Names() []string {
	names := make([]string, 0, len(b))
	for n := range b {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Equal reports whether both binding sets bind the same names to equal paths.
func (b Bindings) Equal(o Bindings) bool {
	if len(b) != len(o) {
		return false
	}
	for n, p := range b {
		q, ok := o[n]
		if !ok || !p.Equal(q) {
			return false
		}
	}
	return true
}

func (b Bindings) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, n := range b.Names() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(n)
		sb.WriteByte('=')
		sb.WriteString(b[n].String())
	}
	sb.WriteByte('}')
	return sb.String()
}

package token

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Symbol
// --------------------------------------------------------------------------

// Kind is the type tag of a Symbol. The numeric value of the kind is also its wire tag and
// defines the order between symbols of different kinds.
type Kind uint8

const (
	KindInvalid Kind = iota // The zero Symbol
	KindArity               // Expression header, the value is the number of sub-terms
	KindInt                 // Signed 64-bit integer
	KindAtom                // String atom
)

// MaxAtomLen is the largest atom accepted by the decoders.
const MaxAtomLen = 1 << 20

func (k Kind) String() string {
	switch k {
	case KindArity:
		return "arity"
	case KindInt:
		return "int"
	case KindAtom:
		return "atom"
	default:
		return "invalid"
	}
}

// Symbol is the atomic element of a Path. Symbols are immutable values and can be compared
// with == and used as map keys. The zero value is invalid.
type Symbol struct {
	kind Kind
	num  int64
	str  string
}

// Int returns an integer symbol.
func Int(v int64) Symbol { return Symbol{kind: KindInt, num: v} }

// Atom returns a string atom. Two atoms are equal iff their strings are equal.
func Atom(s string) Symbol { return Symbol{kind: KindAtom, str: s} }

// Arity returns an expression header announcing n sub-terms.
// It panics if n is negative.
func Arity(n int) Symbol {
	if n < 0 {
		panic("token: negative arity")
	}
	return Symbol{kind: KindArity, num: int64(n)}
}

func (s Symbol) Kind() Kind { return s.kind }

func (s Symbol) IsValid() bool { return s.kind >= KindArity && s.kind <= KindAtom }

// IntValue returns the value of an Int symbol and false for every other kind.
func (s Symbol) IntValue() (int64, bool) { return s.num, s.kind == KindInt }

// AtomValue returns the string of an Atom symbol and false for every other kind.
func (s Symbol) AtomValue() (string, bool) { return s.str, s.kind == KindAtom }

// ArityValue returns the sub-term count of an Arity symbol and false for every other kind.
func (s Symbol) ArityValue() (int, bool) { return int(s.num), s.kind == KindArity }

// Compare returns -1, 0 or +1 depending on whether s sorts before, equal to or after o.
// Symbols are ordered by kind first, then integers and arities numerically and atoms byte-wise.
func (s Symbol) Compare(o Symbol) int {
	if s.kind != o.kind {
		if s.kind < o.kind {
			return -1
		}
		return 1
	}
	if s.kind == KindAtom {
		return strings.Compare(s.str, o.str)
	}
	switch {
	case s.num < o.num:
		return -1
	case s.num > o.num:
		return 1
	}
	return 0
}

// String renders the symbol for humans. Arity headers render as [n], atoms that could be
// mistaken for another kind are quoted.
func (s Symbol) String() string {
	switch s.kind {
	case KindArity:
		return "[" + strconv.FormatInt(s.num, 10) + "]"
	case KindInt:
		return strconv.FormatInt(s.num, 10)
	case KindAtom:
		if atomNeedsQuotes(s.str) {
			return strconv.Quote(s.str)
		}
		return s.str
	default:
		return "<invalid>"
	}
}

func atomNeedsQuotes(s string) bool {
	if s == "" {
		return true
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return true
	}
	if strings.ContainsAny(s, " \t\r\n()\"[];") {
		return true
	}
	return s[0] == '$'
}

// --------------------------------------------------------------------------
// Binary Encoding
// --------------------------------------------------------------------------

// AppendBinary appends the self-delimiting encoding of s to dst:
//
//	Arity: tag | uvarint(n)
//	Int:   tag | varint(v)   (zig-zag)
//	Atom:  tag | uvarint(len) | bytes
func (s Symbol) AppendBinary(dst []byte) []byte {
	dst = append(dst, byte(s.kind))
	switch s.kind {
	case KindArity:
		dst = binary.AppendUvarint(dst, uint64(s.num))
	case KindInt:
		dst = binary.AppendVarint(dst, s.num)
	case KindAtom:
		dst = binary.AppendUvarint(dst, uint64(len(s.str)))
		dst = append(dst, s.str...)
	}
	return dst
}

// DecodeSymbol decodes one symbol from the start of b and returns it together with the
// number of bytes consumed.
func DecodeSymbol(b []byte) (Symbol, int, error) {
	if len(b) == 0 {
		return Symbol{}, 0, fmt.Errorf("%w: empty symbol", ErrMalformed)
	}
	kind := Kind(b[0])
	switch kind {
	case KindArity:
		v, n := binary.Uvarint(b[1:])
		if n <= 0 || v > uint64(1<<31-1) {
			return Symbol{}, 0, fmt.Errorf("%w: bad arity", ErrMalformed)
		}
		return Symbol{kind: KindArity, num: int64(v)}, 1 + n, nil
	case KindInt:
		v, n := binary.Varint(b[1:])
		if n <= 0 {
			return Symbol{}, 0, fmt.Errorf("%w: bad integer", ErrMalformed)
		}
		return Int(v), 1 + n, nil
	case KindAtom:
		l, n := binary.Uvarint(b[1:])
		if n <= 0 || l > MaxAtomLen {
			return Symbol{}, 0, fmt.Errorf("%w: bad atom length", ErrMalformed)
		}
		end := 1 + n + int(l)
		if end > len(b) {
			return Symbol{}, 0, fmt.Errorf("%w: atom truncated", ErrMalformed)
		}
		return Atom(string(b[1+n : end])), end, nil
	default:
		return Symbol{}, 0, fmt.Errorf("%w: unknown symbol tag %d", ErrMalformed, b[0])
	}
}

// GobEncode implements gob.GobEncoder using the binary encoding. The zero symbol encodes
// to an empty slice.
func (s Symbol) GobEncode() ([]byte, error) {
	if !s.IsValid() {
		return []byte{}, nil
	}
	return s.AppendBinary(nil), nil
}

// GobDecode implements gob.GobDecoder.
func (s *Symbol) GobDecode(b []byte) error {
	if len(b) == 0 {
		*s = Symbol{}
		return nil
	}
	sym, n, err := DecodeSymbol(b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return fmt.Errorf("%w: trailing bytes after symbol", ErrMalformed)
	}
	*s = sym
	return nil
}

// --------------------------------------------------------------------------
// JSON Encoding
// --------------------------------------------------------------------------

type symbolJSON struct {
	Arity *int64  `json:"arity,omitempty"`
	Int   *int64  `json:"int,omitempty"`
	Atom  *string `json:"atom,omitempty"`
}

// MarshalJSON encodes the symbol as a single-field object: {"arity":n}, {"int":v} or {"atom":"s"}.
func (s Symbol) MarshalJSON() ([]byte, error) {
	var j symbolJSON
	switch s.kind {
	case KindArity:
		j.Arity = &s.num
	case KindInt:
		j.Int = &s.num
	case KindAtom:
		j.Atom = &s.str
	default:
		return []byte("null"), nil
	}
	return json.Marshal(j)
}

// UnmarshalJSON implements json.Unmarshaler. Exactly one field must be set.
func (s *Symbol) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = Symbol{}
		return nil
	}
	var j symbolJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	set := 0
	for _, present := range []bool{j.Arity != nil, j.Int != nil, j.Atom != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("%w: symbol must have exactly one of arity, int, atom", ErrMalformed)
	}
	switch {
	case j.Arity != nil:
		if *j.Arity < 0 {
			return fmt.Errorf("%w: negative arity", ErrMalformed)
		}
		*s = Symbol{kind: KindArity, num: *j.Arity}
	case j.Int != nil:
		*s = Int(*j.Int)
	default:
		*s = Atom(*j.Atom)
	}
	return nil
}

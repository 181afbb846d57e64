package token

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Path is an ordered sequence of symbols used as a key of the store. The empty path is a
// valid key.
type Path []Symbol

// P is a shorthand to build a path from symbols.
func P(syms ...Symbol) Path { return Path(syms) }

// Atoms builds a path of atoms, mostly useful in tests and examples.
func Atoms(names ...string) Path {
	p := make(Path, len(names))
	for i, n := range names {
		p[i] = Atom(n)
	}
	return p
}

// Equal reports whether both paths have the same symbols in the same order.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// Compare orders paths lexicographically by symbol; a proper prefix sorts first.
func (p Path) Compare(o Path) int {
	n := min(len(p), len(o))
	for i := 0; i < n; i++ {
		if c := p[i].Compare(o[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(p) < len(o):
		return -1
	case len(p) > len(o):
		return 1
	}
	return 0
}

// HasPrefix reports whether prefix is a prefix of p.
func (p Path) HasPrefix(prefix Path) bool {
	return len(prefix) <= len(p) && p[:len(prefix)].Equal(prefix)
}

// Clone returns a copy of p that does not share memory with it. Clone of nil is an empty,
// non-nil path.
func (p Path) Clone() Path {
	c := make(Path, len(p))
	copy(c, p)
	return c
}

// Validate checks that every symbol of the path is valid.
func (p Path) Validate() error {
	for i, s := range p {
		if !s.IsValid() {
			return fmt.Errorf("%w: invalid symbol at position %d", ErrMalformed, i)
		}
	}
	return nil
}

func (p Path) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, s := range p {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(s.String())
	}
	sb.WriteByte(']')
	return sb.String()
}

// TermLen returns the number of symbols forming the term that starts at position i of p.
// A term is a single symbol, or an Arity(n) header followed by n terms. It returns -1 if
// the term is not complete within p.
func (p Path) TermLen(i int) int {
	need := 1
	j := i
	for need > 0 {
		if j >= len(p) {
			return -1
		}
		if n, ok := p[j].ArityValue(); ok {
			need += n
		}
		need--
		j++
	}
	return j - i
}

// --------------------------------------------------------------------------
// Binary Encoding
// --------------------------------------------------------------------------

// AppendBinary appends uvarint(len(p)) followed by every symbol to dst.
func (p Path) AppendBinary(dst []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(p)))
	for _, s := range p {
		dst = s.AppendBinary(dst)
	}
	return dst
}

// DecodePath decodes a path from the start of b and returns it together with the number of
// bytes consumed.
func DecodePath(b []byte) (Path, int, error) {
	count, n := binary.Uvarint(b)
	if n <= 0 {
		return nil, 0, fmt.Errorf("%w: bad path length", ErrMalformed)
	}
	// every symbol needs at least two bytes
	if count > uint64(len(b)-n)/2 {
		return nil, 0, fmt.Errorf("%w: path length %d exceeds data", ErrMalformed, count)
	}
	p := make(Path, 0, count)
	off := n
	for i := uint64(0); i < count; i++ {
		s, sn, err := DecodeSymbol(b[off:])
		if err != nil {
			return nil, 0, err
		}
		p = append(p, s)
		off += sn
	}
	return p, off, nil
}

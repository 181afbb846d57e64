package sexpr

import (
	"strings"

	"github.com/ValentinKolb/dTrie/lib/token"
)

// Format renders a path as a sequence of s-expressions. Paths that are not a sequence of
// complete terms (e.g. prefixes of an expression) fall back to the raw symbol notation.
func Format(p token.Path) string {
	var sb strings.Builder
	i := 0
	for i < len(p) {
		if i > 0 {
			sb.WriteByte(' ')
		}
		n := p.TermLen(i)
		if n < 0 {
			return p.String()
		}
		writeTerm(&sb, p[i:i+n])
		i += n
	}
	return sb.String()
}

// writeTerm writes the complete term t and returns the number of symbols consumed.
func writeTerm(sb *strings.Builder, t token.Path) int {
	n, ok := t[0].ArityValue()
	if !ok {
		sb.WriteString(t[0].String())
		return 1
	}
	sb.WriteByte('(')
	off := 1
	for k := 0; k < n; k++ {
		if k > 0 {
			sb.WriteByte(' ')
		}
		off += writeTerm(sb, t[off:])
	}
	sb.WriteByte(')')
	return off
}

// FormatBindings renders bindings as "x=(..) y=..", sorted by name.
func FormatBindings(b token.Bindings) string {
	parts := make([]string, 0, len(b))
	for _, name := range b.Names() {
		parts = append(parts, "$"+name+"="+Format(b[name]))
	}
	return strings.Join(parts, " ")
}

package sexpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ValentinKolb/dTrie/lib/token"
)

func TestParsePaths(t *testing.T) {
	paths, err := ParsePaths(`
		(foo 1)          ; a comment
		(edge "a b" (g -2))
		bar
	`)
	require.NoError(t, err)
	require.Len(t, paths, 3)

	assert.Equal(t, token.P(token.Arity(2), token.Atom("foo"), token.Int(1)), paths[0])
	assert.Equal(t, token.P(
		token.Arity(3), token.Atom("edge"), token.Atom("a b"),
		token.Arity(2), token.Atom("g"), token.Int(-2),
	), paths[1])
	assert.Equal(t, token.Atoms("bar"), paths[2])
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{"(foo", ")", `"open`, "(foo $x)"} {
		_, err := ParsePaths(src)
		assert.ErrorIs(t, err, ErrSyntax, src)
	}
	_, err := ParsePath("a b")
	assert.ErrorIs(t, err, ErrSyntax)
	_, err = ParseRaw("a (b)")
	assert.ErrorIs(t, err, ErrSyntax)
}

func TestParsePattern(t *testing.T) {
	pat, err := ParsePattern("(edge $x $_ $*rest)")
	require.NoError(t, err)
	assert.Equal(t, token.Pattern{
		token.Lit(token.Arity(4)), token.Lit(token.Atom("edge")),
		token.Var("x"), token.Var("_"), token.Many("rest"),
	}, pat)

	_, err = ParsePattern("($x $*x)")
	assert.ErrorIs(t, err, token.ErrPatternInconsistent)

	prefix, err := ParseRaw("[3] edge 7")
	require.NoError(t, err)
	assert.Equal(t, token.P(token.Arity(3), token.Atom("edge"), token.Int(7)), prefix)

	raw, err := ParseRawPattern("a $x $*")
	require.NoError(t, err)
	assert.Equal(t, token.Pattern{token.Lit(token.Atom("a")), token.Var("x"), token.Many("")}, raw)
}

func TestFormat(t *testing.T) {
	for _, src := range []string{"(foo 1)", `(edge "a b" (g -2))`, "bar", "(a (b (c)) ())"} {
		p, err := ParsePath(src)
		require.NoError(t, err)
		assert.Equal(t, src, Format(p))
	}

	// incomplete expression falls back to raw notation
	assert.Equal(t, "[[3] f]", Format(token.P(token.Arity(3), token.Atom("f"))))

	b := token.Bindings{"y": token.P(token.Arity(1), token.Atom("z")), "x": token.Atoms("a")}
	assert.Equal(t, "$x=a $y=(z)", FormatBindings(b))
}

package token

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbolOrder(t *testing.T) {
	syms := []Symbol{Atom("b"), Int(3), Arity(2), Atom("a"), Int(-7), Arity(0), Atom("")}
	sort.Slice(syms, func(i, j int) bool { return syms[i].Compare(syms[j]) < 0 })

	want := []Symbol{Arity(0), Arity(2), Int(-7), Int(3), Atom(""), Atom("a"), Atom("b")}
	assert.Equal(t, want, syms)
	assert.Equal(t, 0, Atom("x").Compare(Atom("x")))
	assert.True(t, Int(1) == Int(1), "symbols must be comparable with ==")
	assert.False(t, Symbol{}.IsValid())
}

func TestSymbolBinaryRoundTrip(t *testing.T) {
	for _, s := range []Symbol{Arity(0), Arity(1 << 20), Int(0), Int(-1), Int(1<<62 + 5), Atom(""), Atom("hello world")} {
		b := s.AppendBinary(nil)
		got, n, err := DecodeSymbol(b)
		require.NoError(t, err, s.String())
		assert.Equal(t, len(b), n)
		assert.Equal(t, s, got)
	}
}

func TestDecodeSymbolRejectsGarbage(t *testing.T) {
	cases := map[string][]byte{
		"empty":         {},
		"unknown tag":   {9, 1},
		"missing value": {byte(KindInt)},
		"short atom":    {byte(KindAtom), 5, 'a'},
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := DecodeSymbol(b)
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func TestPathHelpers(t *testing.T) {
	p := Atoms("a", "b", "c")
	assert.True(t, p.HasPrefix(Atoms("a", "b")))
	assert.True(t, p.HasPrefix(nil))
	assert.False(t, p.HasPrefix(Atoms("b")))
	assert.Equal(t, -1, Atoms("a").Compare(p))
	assert.Equal(t, 1, Atoms("b").Compare(p))

	c := p.Clone()
	c[0] = Atom("z")
	assert.Equal(t, Atom("a"), p[0])

	b := p.AppendBinary(nil)
	got, n, err := DecodePath(b)
	require.NoError(t, err)
	assert.Equal(t, len(b), n)
	assert.True(t, p.Equal(got))

	_, _, err = DecodePath([]byte{200})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestTermLen(t *testing.T) {
	// (f (g x) y) z
	p := P(Arity(3), Atom("f"), Arity(2), Atom("g"), Atom("x"), Atom("y"), Atom("z"))
	assert.Equal(t, 6, p.TermLen(0))
	assert.Equal(t, 1, p.TermLen(1))
	assert.Equal(t, 3, p.TermLen(2))
	assert.Equal(t, 1, p.TermLen(6))
	assert.Equal(t, -1, p[:4].TermLen(0))
}

func TestPatternValidate(t *testing.T) {
	ok := Pattern{Var("x"), Lit(Atom("foo")), Var("x"), Many("rest"), Many("_"), Var("")}
	assert.NoError(t, ok.Validate())

	// one name for a variable and a wildcard-many is satisfiable, e.g. by [b b]
	assert.NoError(t, Pattern{Var("x"), Many("x")}.Validate())
	assert.NoError(t, Pattern{Many("x"), Lit(Atom("foo")), Var("x")}.Validate())

	assert.ErrorIs(t, Pattern{Lit(Symbol{})}.Validate(), ErrMalformed)
	assert.ErrorIs(t, Pattern{{Kind: 42}}.Validate(), ErrMalformed)
}

func TestPatternEncoding(t *testing.T) {
	p := Pattern{Lit(Atom("a")), Var("x"), Lit(Int(-3)), Many(""), Var("x")}

	b := p.AppendBinary(nil)
	got, n, err := DecodePattern(b)
	require.NoError(t, err)
	assert.Equal(t, len(b), n)
	assert.Equal(t, p, got)

	js, err := json.Marshal(p)
	require.NoError(t, err)
	var fromJSON Pattern
	require.NoError(t, json.Unmarshal(js, &fromJSON))
	assert.Equal(t, p, fromJSON)

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(p))
	var fromGob Pattern
	require.NoError(t, gob.NewDecoder(&buf).Decode(&fromGob))
	assert.Equal(t, p, fromGob)

	assert.Equal(t, "[a $x -3 $* $x]", p.String())
	assert.Equal(t, Atoms("a"), p.LiteralPrefix())
}

func TestBindings(t *testing.T) {
	b := Bindings{"y": Atoms("c"), "x": P(Int(1), Int(2))}
	assert.Equal(t, []string{"x", "y"}, b.Names())
	assert.Equal(t, "{x=[1 2], y=[c]}", b.String())
	assert.True(t, b.Equal(Bindings{"x": P(Int(1), Int(2)), "y": Atoms("c")}))
	assert.False(t, b.Equal(Bindings{"x": P(Int(1))}))
}

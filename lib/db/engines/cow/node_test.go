package cow

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ValentinKolb/dTrie/lib/db"
	"github.com/ValentinKolb/dTrie/lib/token"
)

// checkStructure verifies the compression invariants of the trie below n and returns the
// number of terminal nodes.
func checkStructure(t *testing.T, n *node, isRoot bool) int {
	t.Helper()
	if isRoot {
		require.Empty(t, n.prefix, "root must have an empty prefix")
	} else {
		require.NotEmpty(t, n.prefix, "non-root node with empty prefix")
		require.True(t, n.terminal || len(n.children) >= 2,
			"non-terminal node %s with %d children", n.prefix, len(n.children))
	}
	count := 0
	if n.terminal {
		count++
	}
	for i, c := range n.children {
		if i > 0 {
			require.Negative(t, n.children[i-1].prefix[0].Compare(c.prefix[0]), "children not sorted")
		}
		count += checkStructure(t, c, false)
	}
	return count
}

func root(d db.PathDB) *node {
	return d.(*cowImpl).current.Load().root
}

func TestStructureUnderRandomWrites(t *testing.T) {
	d := NewCowDB(nil)
	r := rand.New(rand.NewSource(3))
	syms := []token.Symbol{token.Atom("a"), token.Atom("b"), token.Atom("c"), token.Int(0), token.Arity(2)}

	for i := 0; i < 5000; i++ {
		p := make(token.Path, r.Intn(7))
		for k := range p {
			p[k] = syms[r.Intn(len(syms))]
		}
		if r.Intn(3) == 0 {
			d.Delete(p, uint64(i))
		} else {
			d.Insert(p, []byte{byte(i)}, uint64(i))
		}
		if i%250 == 0 {
			assert.Equal(t, d.Snapshot().Size(), checkStructure(t, root(d), true))
		}
	}
	assert.Equal(t, d.Snapshot().Size(), checkStructure(t, root(d), true))
}

func TestPathCompression(t *testing.T) {
	d := NewCowDB(nil)
	d.Insert(token.Atoms("a", "b", "c", "d"), nil, 1)

	r := root(d)
	require.Len(t, r.children, 1)
	assert.Equal(t, token.Atoms("a", "b", "c", "d"), r.children[0].prefix, "single path is stored as one run")

	// split the run
	d.Insert(token.Atoms("a", "b", "x"), nil, 2)
	r = root(d)
	require.Len(t, r.children, 1)
	mid := r.children[0]
	assert.Equal(t, token.Atoms("a", "b"), mid.prefix)
	require.Len(t, mid.children, 2)
	assert.Equal(t, token.Atoms("c", "d"), mid.children[0].prefix)
	assert.Equal(t, token.Atoms("x"), mid.children[1].prefix)

	// deleting one branch merges the remaining chain again
	d.Delete(token.Atoms("a", "b", "x"), 3)
	r = root(d)
	require.Len(t, r.children, 1)
	assert.Equal(t, token.Atoms("a", "b", "c", "d"), r.children[0].prefix)
	assert.Empty(t, r.children[0].children)
}

func TestWritesDoNotTouchPublishedNodes(t *testing.T) {
	d := NewCowDB(nil)
	for i := 0; i < 100; i++ {
		d.Insert(token.P(token.Atom("n"), token.Int(int64(i%10)), token.Int(int64(i))), nil, uint64(i+1))
	}
	old := d.Snapshot()
	before := dump(t, old)

	for i := 0; i < 100; i += 2 {
		d.Delete(token.P(token.Atom("n"), token.Int(int64(i%10)), token.Int(int64(i))), uint64(200+i))
		d.Insert(token.P(token.Atom("n"), token.Int(int64(i)), token.Atom("new")), nil, uint64(400+i))
	}
	d.Clear(1000)

	assert.Equal(t, before, dump(t, old), "old snapshot changed after writes")
}

func dump(t *testing.T, s db.Snapshot) []string {
	entries, err := db.Collect(s.Prefix(context.Background(), nil))
	require.NoError(t, err)
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = fmt.Sprint(e.Path)
	}
	return out
}

func TestOpenCursorAccounting(t *testing.T) {
	d := NewCowDB(nil).(*cowImpl)
	d.Insert(token.Atoms("a"), nil, 1)
	snap := d.Snapshot()

	c1 := snap.Prefix(context.Background(), nil)
	c2, err := snap.Match(context.Background(), token.Pattern{token.Var("x")})
	require.NoError(t, err)
	assert.EqualValues(t, 2, d.openCursors.Load())

	require.NoError(t, c1.Close())
	require.NoError(t, c1.Close())
	assert.EqualValues(t, 1, d.openCursors.Load())

	_, err = snap.Match(context.Background(), token.Pattern{token.Lit(token.Symbol{})})
	require.ErrorIs(t, err, token.ErrMalformed)
	assert.EqualValues(t, 1, d.openCursors.Load(), "rejected pattern must not open a cursor")

	require.NoError(t, c2.Close())
	assert.EqualValues(t, 0, d.openCursors.Load())
}

func TestKeysOnlyDropsPayloads(t *testing.T) {
	d := NewCowDB(&DBOptions{KeysOnly: true})
	assert.False(t, d.SupportsFeature(db.FeaturePayload))

	d.Insert(token.Atoms("a"), []byte("ignored"), 1)
	value, found := d.Lookup(token.Atoms("a"))
	assert.True(t, found)
	assert.Nil(t, value)
}

func TestLocate(t *testing.T) {
	d := NewCowDB(nil)
	d.Insert(token.Atoms("a", "b", "c"), nil, 1)
	d.Insert(token.Atoms("a", "b", "d"), nil, 2)

	n, base, ok := locate(root(d), token.Atoms("a"))
	require.True(t, ok)
	assert.Equal(t, token.Atoms("a", "b"), base, "prefix inside a run extends to the end of the run")
	assert.Len(t, n.children, 2)

	_, _, ok = locate(root(d), token.Atoms("a", "x"))
	assert.False(t, ok)

	_, base, ok = locate(root(d), nil)
	require.True(t, ok)
	assert.Empty(t, base)
}

func matches(t *testing.T, s db.Snapshot, pattern token.Pattern) []string {
	cur, err := s.Match(context.Background(), pattern)
	require.NoError(t, err)
	entries, err := db.Collect(cur)
	require.NoError(t, err)
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path.String() + " " + e.Bindings.String()
	}
	return out
}

func TestMatchSplitOrder(t *testing.T) {
	d := NewCowDB(nil)
	d.Insert(token.Atoms("x"), nil, 1)
	d.Insert(token.Atoms("x", "x"), nil, 2)
	d.Insert(token.Atoms("w", "x"), nil, 3)

	pattern := token.Pattern{token.Many("a"), token.Lit(token.Atom("x")), token.Many("b")}
	assert.Equal(t, []string{
		"[w x] {a=[w], b=[]}",
		"[x] {a=[], b=[]}",
		"[x x] {a=[], b=[x]}",
		"[x x] {a=[x], b=[]}",
	}, matches(t, d.Snapshot(), pattern))
}

func TestMatchVarBoundByMany(t *testing.T) {
	d := NewCowDB(nil)
	arity := token.Arity
	// (f a) (f a), (f a) f a and b (f a)
	d.Insert(token.P(arity(2), token.Atom("f"), token.Atom("a"), arity(2), token.Atom("f"), token.Atom("a")), nil, 1)
	d.Insert(token.P(arity(2), token.Atom("f"), token.Atom("a"), token.Atom("f"), token.Atom("a")), nil, 2)
	d.Insert(token.P(token.Atom("b"), arity(2), token.Atom("f"), token.Atom("a")), nil, 3)

	// the wildcard may capture any sequence, the variable only a single term
	assert.Equal(t, []string{
		"[[2] f a [2] f a] {x=[[2] f a]}",
	}, matches(t, d.Snapshot(), token.Pattern{token.Many("x"), token.Var("x")}))
	assert.Equal(t, []string{
		"[[2] f a [2] f a] {x=[[2] f a]}",
	}, matches(t, d.Snapshot(), token.Pattern{token.Var("x"), token.Many("x")}))
}

// cancelAfter is a context that reports cancellation after Err was called n times.
type cancelAfter struct {
	context.Context
	n int
}

func (c *cancelAfter) Err() error {
	if c.n--; c.n < 0 {
		return context.Canceled
	}
	return nil
}

func TestMatchCancelledWithinRun(t *testing.T) {
	d := NewCowDB(nil)
	long := make(token.Path, 0, 501)
	for i := 0; i < 500; i++ {
		long = append(long, token.Int(int64(i)))
	}
	d.Insert(append(long, token.Atom("z")), nil, 1)

	// the single stored path is one compressed run, the context is consulted per symbol
	ctx := &cancelAfter{Context: context.Background(), n: 5}
	cur, err := d.Snapshot().Match(ctx, token.Pattern{token.Many("m"), token.Lit(token.Atom("z"))})
	require.NoError(t, err)
	defer cur.Close()

	assert.False(t, cur.Next())
	assert.ErrorIs(t, cur.Err(), context.Canceled)
}

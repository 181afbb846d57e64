package lstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ValentinKolb/dTrie/lib/db"
	"github.com/ValentinKolb/dTrie/lib/db/engines/cow"
	"github.com/ValentinKolb/dTrie/lib/store"
	"github.com/ValentinKolb/dTrie/lib/token"
)

func newStore(keysOnly bool) store.IStore {
	return NewLocalStore(func() db.PathDB {
		return cow.NewCowDB(&cow.DBOptions{KeysOnly: keysOnly})
	})
}

func TestWriteOutcomes(t *testing.T) {
	s := newStore(false)
	defer s.Close()

	p := token.Atoms("edge", "a", "b")

	out, err := s.Insert(p, []byte("1"))
	require.NoError(t, err)
	assert.Equal(t, db.OutcomeInserted, out)

	out, err = s.Insert(p, []byte("2"))
	require.NoError(t, err)
	assert.Equal(t, db.OutcomeReplaced, out)

	value, found, err := s.Lookup(p)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("2"), value)

	out, err = s.Delete(p)
	require.NoError(t, err)
	assert.Equal(t, db.OutcomeRemoved, out)

	out, err = s.Delete(p)
	require.NoError(t, err, "a missing path is not an error")
	assert.Equal(t, db.OutcomeNotFound, out)

	_, found, err = s.Lookup(p)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestQueries(t *testing.T) {
	s := newStore(false)
	defer s.Close()

	for _, p := range []token.Path{
		token.Atoms("a", "foo"),
		token.Atoms("a", "bar"),
		token.Atoms("b", "foo", "b"),
	} {
		_, err := s.Insert(p, nil)
		require.NoError(t, err)
	}

	cur, err := s.Prefix(context.Background(), token.Atoms("a"))
	require.NoError(t, err)
	entries, err := db.Collect(cur)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, token.Atoms("a", "bar"), entries[0].Path)
	assert.Equal(t, token.Atoms("a", "foo"), entries[1].Path)

	cur, err = s.Explore(context.Background(), nil)
	require.NoError(t, err)
	entries, err = db.Collect(cur)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, token.Atoms("a"), entries[0].Path)
	assert.Equal(t, token.Atoms("b"), entries[1].Path)

	cur, err = s.Match(context.Background(), token.Pattern{
		token.Var("x"), token.Lit(token.Atom("foo")), token.Var("x"),
	})
	require.NoError(t, err)
	entries, err = db.Collect(cur)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, token.Atoms("b"), entries[0].Bindings["x"])

	removed, err := s.Clear()
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	info, err := s.GetDBInfo()
	require.NoError(t, err)
	assert.Zero(t, info.Entries)
}

func TestErrors(t *testing.T) {
	s := newStore(false)
	defer s.Close()

	_, err := s.Match(context.Background(), token.Pattern{token.Lit(token.Symbol{})})
	require.Error(t, err)
	assert.True(t, errors.Is(err, token.ErrMalformed))
	var se *store.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, store.RetCMalformedRequest, se.Code)

	se = store.FromError(fmt.Errorf("match: %w", token.ErrPatternInconsistent))
	assert.Equal(t, store.RetCPatternInconsistent, se.Code)
	assert.ErrorIs(t, se, token.ErrPatternInconsistent)

	_, err = s.Insert(token.Path{{}}, nil)
	require.ErrorAs(t, err, &se)
	assert.Equal(t, store.RetCMalformedRequest, se.Code)
	assert.ErrorIs(t, err, token.ErrMalformed)
}

func TestKeysOnly(t *testing.T) {
	s := newStore(true)
	defer s.Close()

	_, err := s.Insert(token.Atoms("a"), []byte("payload"))
	var se *store.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, store.RetCMalformedRequest, se.Code)

	out, err := s.Insert(token.Atoms("a"), nil)
	require.NoError(t, err)
	assert.Equal(t, db.OutcomeInserted, out)
}

func TestCursorSurvivesWrites(t *testing.T) {
	s := newStore(false)
	defer s.Close()

	for _, name := range []string{"a", "b", "c"} {
		_, err := s.Insert(token.Atoms(name), nil)
		require.NoError(t, err)
	}

	cur, err := s.Prefix(context.Background(), nil)
	require.NoError(t, err)

	_, err = s.Clear()
	require.NoError(t, err)

	entries, err := db.Collect(cur)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

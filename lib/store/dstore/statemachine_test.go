package dstore

import (
	"bytes"
	"context"
	"testing"

	sm "github.com/lni/dragonboat/v4/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ValentinKolb/dTrie/lib/db"
	"github.com/ValentinKolb/dTrie/lib/db/engines/cow"
	"github.com/ValentinKolb/dTrie/lib/store"
	"github.com/ValentinKolb/dTrie/lib/store/dstore/internal"
	"github.com/ValentinKolb/dTrie/lib/token"
)

func newStateMachine(opts *cow.DBOptions) sm.IConcurrentStateMachine {
	factory := CreateStateMaschineFactory(func() db.PathDB { return cow.NewCowDB(opts) })
	return factory(1, 1)
}

func entry(index uint64, cmd internal.Command) sm.Entry {
	return sm.Entry{Index: index, Cmd: cmd.Serialize()}
}

func TestUpdateResults(t *testing.T) {
	fsm := newStateMachine(nil)
	defer fsm.Close()

	p := token.Atoms("edge", "a", "b")
	entries, err := fsm.Update([]sm.Entry{
		entry(1, internal.Command{Type: internal.CommandTInsert, Path: p, Value: []byte("1")}),
		entry(2, internal.Command{Type: internal.CommandTInsert, Path: p, Value: []byte("2")}),
		entry(3, internal.Command{Type: internal.CommandTDelete, Path: token.Atoms("missing")}),
		entry(4, internal.Command{Type: internal.CommandTInsert, Path: token.Atoms("other")}),
		{Index: 5},
		{Index: 6, Cmd: []byte{byte(internal.CommandTInsert), 0, 0, 0, 9}},
		{Index: 7, Cmd: (&internal.Command{Type: 42}).Serialize()},
	})
	require.NoError(t, err)
	require.Len(t, entries, 7)

	want := []db.Outcome{db.OutcomeInserted, db.OutcomeReplaced, db.OutcomeNotFound, db.OutcomeInserted}
	for i, o := range want {
		require.Equal(t, uint64(store.RetCSuccess), entries[i].Result.Value, "entry %d: %s", i, entries[i].Result.Data)
		got, err := internal.DecodeOutcome(entries[i].Result.Data)
		require.NoError(t, err)
		assert.Equal(t, o, got, "entry %d", i)
	}
	for _, e := range entries[4:] {
		assert.Equal(t, uint64(store.RetCMalformedRequest), e.Result.Value, "entry %d", e.Index)
	}

	res, err := fsm.Lookup(internal.Query{Type: internal.QueryTLookup, Path: p})
	require.NoError(t, err)
	assert.Equal(t, internal.QueryResult{Found: true, Value: []byte("2")}, res)

	entries, err = fsm.Update([]sm.Entry{entry(8, internal.Command{Type: internal.CommandTClear})})
	require.NoError(t, err)
	n, err := internal.DecodeCount(entries[0].Result.Data)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUpdateRejectsPayloadInKeysOnlySpace(t *testing.T) {
	fsm := newStateMachine(&cow.DBOptions{KeysOnly: true})
	defer fsm.Close()

	entries, err := fsm.Update([]sm.Entry{
		entry(1, internal.Command{Type: internal.CommandTInsert, Path: token.Atoms("a"), Value: []byte("x")}),
		entry(2, internal.Command{Type: internal.CommandTInsert, Path: token.Atoms("a")}),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(store.RetCMalformedRequest), entries[0].Result.Value)
	assert.Equal(t, uint64(store.RetCSuccess), entries[1].Result.Value)
}

func TestLookupQueries(t *testing.T) {
	fsm := newStateMachine(nil)
	defer fsm.Close()

	_, err := fsm.Update([]sm.Entry{
		entry(1, internal.Command{Type: internal.CommandTInsert, Path: token.Atoms("a", "foo")}),
		entry(2, internal.Command{Type: internal.CommandTInsert, Path: token.Atoms("b", "foo", "b")}),
	})
	require.NoError(t, err)

	res, err := fsm.Lookup(internal.Query{Type: internal.QueryTSnapshot})
	require.NoError(t, err)
	snap, ok := res.(db.Snapshot)
	require.True(t, ok)
	assert.Equal(t, 2, snap.Size())
	assert.EqualValues(t, 2, snap.Version(), "the raft index is the snapshot version")

	// the snapshot handed out stays stable while the machine keeps applying entries
	_, err = fsm.Update([]sm.Entry{entry(3, internal.Command{Type: internal.CommandTClear})})
	require.NoError(t, err)
	cur, err := snap.Match(context.Background(), token.Pattern{token.Var("x"), token.Lit(token.Atom("foo")), token.Many("")})
	require.NoError(t, err)
	entries, err := db.Collect(cur)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	res, err = fsm.Lookup(internal.Query{Type: internal.QueryTGetDBInfo})
	require.NoError(t, err)
	assert.Equal(t, db.ImplCow, res.(db.DatabaseInfo).DbType)

	_, err = fsm.Lookup("not a query")
	assert.Error(t, err)
	_, err = fsm.Lookup(internal.Query{Type: 99})
	var se *store.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, store.RetCMalformedRequest, se.Code)
}

func TestSnapshotRoundTrip(t *testing.T) {
	src := newStateMachine(nil)
	defer src.Close()

	var batch []sm.Entry
	for i := 0; i < 100; i++ {
		batch = append(batch, entry(uint64(i+1), internal.Command{
			Type:  internal.CommandTInsert,
			Path:  token.P(token.Atom("n"), token.Int(int64(i))),
			Value: []byte{byte(i)},
		}))
	}
	_, err := src.Update(batch)
	require.NoError(t, err)

	ctx, err := src.PrepareSnapshot()
	require.NoError(t, err)

	// writes after PrepareSnapshot are not part of the snapshot
	_, err = src.Update([]sm.Entry{entry(101, internal.Command{Type: internal.CommandTClear})})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, src.SaveSnapshot(ctx, &buf, nil, nil))

	dst := newStateMachine(nil)
	defer dst.Close()
	require.NoError(t, dst.RecoverFromSnapshot(&buf, nil, nil))

	res, err := dst.Lookup(internal.Query{Type: internal.QueryTLookup, Path: token.P(token.Atom("n"), token.Int(42))})
	require.NoError(t, err)
	assert.Equal(t, internal.QueryResult{Found: true, Value: []byte{42}}, res)

	res, err = dst.Lookup(internal.Query{Type: internal.QueryTSnapshot})
	require.NoError(t, err)
	assert.Equal(t, 100, res.(db.Snapshot).Size())

	assert.Error(t, src.SaveSnapshot("bad context", &buf, nil, nil))
}

package testing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ValentinKolb/dTrie/lib/db"
	"github.com/ValentinKolb/dTrie/lib/token"
)

// DBFactory is a function that creates a new instance of a PathDB implementation
type DBFactory func() db.PathDB

// RunPathDBTests runs a comprehensive test suite for a PathDB implementation.
func RunPathDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Insert&Lookup", func(t *testing.T) {
			testInsertLookup(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("DeleteKeepsSharedPrefix", func(t *testing.T) {
			testDeleteKeepsSharedPrefix(t, factory())
		})

		t.Run("EmptyPath", func(t *testing.T) {
			testEmptyPath(t, factory())
		})

		t.Run("Prefix", func(t *testing.T) {
			testPrefix(t, factory())
		})

		t.Run("PrefixRandomized", func(t *testing.T) {
			testPrefixRandomized(t, factory())
		})

		t.Run("Explore", func(t *testing.T) {
			testExplore(t, factory())
		})

		t.Run("Match", func(t *testing.T) {
			testMatch(t, factory())
		})

		t.Run("MatchTerms", func(t *testing.T) {
			testMatchTerms(t, factory())
		})

		t.Run("MatchRandomized", func(t *testing.T) {
			testMatchRandomized(t, factory())
		})

		t.Run("InvalidPattern", func(t *testing.T) {
			testInvalidPattern(t, factory())
		})

		t.Run("Cursor", func(t *testing.T) {
			testCursor(t, factory())
		})

		t.Run("SnapshotIsolation", func(t *testing.T) {
			testSnapshotIsolation(t, factory())
		})

		t.Run("ConcurrentReadersAndWriters", func(t *testing.T) {
			testConcurrentReadersAndWriters(t, factory())
		})

		t.Run("Clear", func(t *testing.T) {
			testClear(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.PathDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

func atoms(names ...string) token.Path { return token.Atoms(names...) }

// collect drains a cursor into "path => value" strings (or "path {bindings}" for matches)
func collect(t testing.TB, cur db.Cursor) []string {
	t.Helper()
	entries, err := db.Collect(cur)
	if err != nil {
		t.Fatalf("cursor failed: %v", err)
	}
	var out []string
	for _, e := range entries {
		out = append(out, formatEntry(e))
	}
	return out
}

func formatEntry(e db.Entry) string {
	if e.Bindings != nil {
		return e.Path.String() + " " + e.Bindings.String()
	}
	return fmt.Sprintf("%s => %q", e.Path, e.Value)
}

func mustMatch(t testing.TB, snap db.Snapshot, pattern token.Pattern) []string {
	t.Helper()
	cur, err := snap.Match(context.Background(), pattern)
	if err != nil {
		t.Fatalf("Match(%s) failed: %v", pattern, err)
	}
	return collect(t, cur)
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testInsertLookup(t *testing.T, database db.PathDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureLookup|db.FeaturePayload)

	path := atoms("edge", "a", "b")

	if out := database.Insert(path, []byte("v1"), 1); out != db.OutcomeInserted {
		t.Errorf("Expected first insert to report inserted, got %s", out)
	}
	value, found := database.Lookup(path)
	if !found || !bytes.Equal(value, []byte("v1")) {
		t.Errorf("Expected v1, got %q (found=%v)", value, found)
	}

	if out := database.Insert(path, []byte("v2"), 2); out != db.OutcomeReplaced {
		t.Errorf("Expected second insert to report replaced, got %s", out)
	}
	value, _ = database.Lookup(path)
	if !bytes.Equal(value, []byte("v2")) {
		t.Errorf("Expected replaced value v2, got %q", value)
	}

	// lookup returns a copy
	value[0] = 'X'
	again, _ := database.Lookup(path)
	if !bytes.Equal(again, []byte("v2")) {
		t.Errorf("Lookup should return a copy, not a reference to the stored value")
	}

	// the inserted value is copied as well
	input := []byte("v3")
	database.Insert(path, input, 3)
	input[0] = 'X'
	again, _ = database.Lookup(path)
	if !bytes.Equal(again, []byte("v3")) {
		t.Errorf("Insert should copy the value, got %q", again)
	}

	// the inserted path is copied
	mutable := atoms("x", "y")
	database.Insert(mutable, []byte("xy"), 4)
	mutable[1] = token.Atom("z")
	if _, found := database.Lookup(atoms("x", "y")); !found {
		t.Errorf("Insert should copy the path")
	}

	for _, missing := range []token.Path{atoms("edge"), atoms("edge", "a"), atoms("edge", "a", "b", "c"), atoms("zzz")} {
		if _, found := database.Lookup(missing); found {
			t.Errorf("Expected %s to be absent", missing)
		}
	}

	if database.WriteIdx() != 4 {
		t.Errorf("Expected write index 4, got %d", database.WriteIdx())
	}
}

func testDelete(t *testing.T, database db.PathDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureDelete|db.FeatureLookup)

	// delete on an empty database must not fault
	if out := database.Delete(atoms("a"), 1); out != db.OutcomeNotFound {
		t.Errorf("Expected not_found on empty database, got %s", out)
	}

	paths := []token.Path{atoms("a", "b", "c"), atoms("a", "b", "d"), atoms("a", "x"), atoms("q")}
	for i, p := range paths {
		database.Insert(p, nil, uint64(i+2))
	}

	if out := database.Delete(atoms("a", "b"), 10); out != db.OutcomeNotFound {
		t.Errorf("Expected not_found for a stored prefix, got %s", out)
	}
	if out := database.Delete(atoms("a", "b", "c"), 11); out != db.OutcomeRemoved {
		t.Errorf("Expected removed, got %s", out)
	}
	if out := database.Delete(atoms("a", "b", "c"), 12); out != db.OutcomeNotFound {
		t.Errorf("Expected not_found for an already deleted path, got %s", out)
	}
	if _, found := database.Lookup(atoms("a", "b", "c")); found {
		t.Errorf("Deleted path is still found")
	}
	for _, p := range paths[1:] {
		if _, found := database.Lookup(p); !found {
			t.Errorf("Expected %s to survive the delete", p)
		}
	}
	if size := database.Snapshot().Size(); size != 3 {
		t.Errorf("Expected size 3, got %d", size)
	}

	for _, p := range paths[1:] {
		database.Delete(p, 20)
	}
	if size := database.Snapshot().Size(); size != 0 {
		t.Errorf("Expected empty database, got size %d", size)
	}
	if all := collect(t, database.Snapshot().Prefix(context.Background(), nil)); len(all) != 0 {
		t.Errorf("Expected no entries, got %v", all)
	}
}

func testDeleteKeepsSharedPrefix(t *testing.T, database db.PathDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureDelete|db.FeatureLookup)

	database.Insert(atoms("a", "b"), []byte("1"), 1)
	database.Insert(atoms("a", "c"), []byte("2"), 2)
	database.Insert(atoms("a", "b", "d"), []byte("3"), 3)

	if out := database.Delete(atoms("a", "b"), 4); out != db.OutcomeRemoved {
		t.Fatalf("Expected removed, got %s", out)
	}
	if _, found := database.Lookup(atoms("a", "b")); found {
		t.Errorf("Expected [a b] to be deleted")
	}
	if _, found := database.Lookup(atoms("a", "b", "d")); !found {
		t.Errorf("Expected [a b d] to survive the delete of its prefix")
	}
	if _, found := database.Lookup(atoms("a", "c")); !found {
		t.Errorf("Expected [a c] to survive")
	}
}

func testEmptyPath(t *testing.T, database db.PathDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureDelete|db.FeatureLookup|db.FeatureMatch)

	if _, found := database.Lookup(nil); found {
		t.Errorf("Empty path must not be found in an empty database")
	}
	if out := database.Insert(token.Path{}, nil, 1); out != db.OutcomeInserted {
		t.Errorf("Expected empty path to be inserted, got %s", out)
	}
	database.Insert(atoms("a"), nil, 2)

	if _, found := database.Lookup(nil); !found {
		t.Errorf("Expected the empty path to be stored")
	}
	if got := mustMatch(t, database.Snapshot(), token.Pattern{}); len(got) != 1 || got[0] != "[] {}" {
		t.Errorf("Expected the empty pattern to match only the empty path, got %v", got)
	}
	if out := database.Delete(token.Path{}, 3); out != db.OutcomeRemoved {
		t.Errorf("Expected empty path to be removed, got %s", out)
	}
	if _, found := database.Lookup(atoms("a")); !found {
		t.Errorf("Expected [a] to survive the delete of the empty path")
	}
}

func testPrefix(t *testing.T, database db.PathDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeaturePrefix|db.FeaturePayload)

	database.Insert(atoms("a", "b"), []byte("1"), 1)
	database.Insert(atoms("a", "c"), []byte("2"), 2)
	database.Insert(atoms("a", "b", "d"), []byte("3"), 3)
	database.Insert(atoms("b"), []byte("4"), 4)

	snap := database.Snapshot()
	ctx := context.Background()

	want := []string{`[a b] => "1"`, `[a b d] => "3"`, `[a c] => "2"`}
	if diff := cmp.Diff(want, collect(t, snap.Prefix(ctx, atoms("a")))); diff != "" {
		t.Errorf("Prefix [a] mismatch (-want +got):\n%s", diff)
	}

	want = []string{`[a b] => "1"`, `[a b d] => "3"`}
	if diff := cmp.Diff(want, collect(t, snap.Prefix(ctx, atoms("a", "b")))); diff != "" {
		t.Errorf("Prefix [a b] mismatch (-want +got):\n%s", diff)
	}

	// prefix ending inside a compressed run
	database.Insert(atoms("long", "run", "of", "symbols"), []byte("5"), 5)
	want = []string{`[long run of symbols] => "5"`}
	if diff := cmp.Diff(want, collect(t, database.Snapshot().Prefix(ctx, atoms("long", "run")))); diff != "" {
		t.Errorf("Prefix inside a run mismatch (-want +got):\n%s", diff)
	}

	if got := collect(t, snap.Prefix(ctx, atoms("a", "x"))); len(got) != 0 {
		t.Errorf("Expected no results for an absent prefix, got %v", got)
	}
	if got := collect(t, snap.Prefix(ctx, atoms("long", "walk"))); len(got) != 0 {
		t.Errorf("Expected no results for a prefix diverging inside a run, got %v", got)
	}
	if got := collect(t, snap.Prefix(ctx, nil)); len(got) != 4 {
		t.Errorf("Expected 4 entries for the empty prefix, got %v", got)
	}
}

// alphabet is tiny so that random paths share prefixes
var alphabet = []token.Symbol{
	token.Atom("a"), token.Atom("b"), token.Int(1), token.Int(-1), token.Arity(1), token.Arity(2),
}

func randomPath(r *rand.Rand, maxLen int) token.Path {
	p := make(token.Path, r.Intn(maxLen+1))
	for i := range p {
		p[i] = alphabet[r.Intn(len(alphabet))]
	}
	return p
}

func testPrefixRandomized(t *testing.T, database db.PathDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureDelete|db.FeaturePrefix)

	r := rand.New(rand.NewSource(42))
	stored := map[string]token.Path{}
	for i := 0; i < 2000; i++ {
		p := randomPath(r, 6)
		if r.Intn(4) == 0 {
			database.Delete(p, uint64(i+1))
			delete(stored, p.String())
		} else {
			database.Insert(p, nil, uint64(i+1))
			stored[p.String()] = p
		}
	}

	snap := database.Snapshot()
	if snap.Size() != len(stored) {
		t.Fatalf("Expected size %d, got %d", len(stored), snap.Size())
	}

	for i := 0; i < 200; i++ {
		prefix := randomPath(r, 3)

		var want []token.Path
		for _, p := range stored {
			if p.HasPrefix(prefix) {
				want = append(want, p)
			}
		}
		// depth-first symbol order is the lexicographic order of the paths
		sort.Slice(want, func(i, j int) bool { return want[i].Compare(want[j]) < 0 })

		entries, err := db.Collect(snap.Prefix(context.Background(), prefix))
		if err != nil {
			t.Fatal(err)
		}
		got := make([]token.Path, len(entries))
		for j, e := range entries {
			got[j] = e.Path
		}
		if diff := cmp.Diff(fmt.Sprint(want), fmt.Sprint(got)); diff != "" {
			t.Fatalf("Prefix %s mismatch (-want +got):\n%s", prefix, diff)
		}
	}
}

func testExplore(t *testing.T, database db.PathDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureExplore|db.FeaturePayload)

	database.Insert(atoms("a", "b"), []byte("1"), 1)
	database.Insert(atoms("a", "c"), []byte("2"), 2)
	database.Insert(atoms("a", "b", "d"), []byte("3"), 3)
	database.Insert(atoms("b"), []byte("4"), 4)
	database.Insert(atoms("long", "run", "of", "symbols"), []byte("5"), 5)

	snap := database.Snapshot()
	ctx := context.Background()

	cases := []struct {
		name   string
		prefix token.Path
		want   []string
	}{
		{"Root", nil, []string{`[a] => ""`, `[b] => "4"`, `[long] => ""`}},
		{"Branch", atoms("a"), []string{`[a b] => "1"`, `[a c] => "2"`}},
		{"InsideRun", atoms("long"), []string{`[long run] => ""`}},
		{"EndOfRun", atoms("long", "run", "of"), []string{`[long run of symbols] => "5"`}},
		{"Leaf", atoms("a", "b", "d"), nil},
		{"Absent", atoms("x"), nil},
		{"DivergingInsideRun", atoms("long", "walk"), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, collect(t, snap.Children(ctx, tc.prefix))); diff != "" {
				t.Errorf("Children %s mismatch (-want +got):\n%s", tc.prefix, diff)
			}
		})
	}

	cur := snap.Children(ctx, atoms("a"))
	defer cur.Close()
	for cur.Next() {
	}
	cur.Reset()
	if !cur.Next() || !cur.Entry().Path.Equal(atoms("a", "b")) {
		t.Errorf("Expected [a b] after Reset, got %v", cur.Entry().Path)
	}
}

func testMatch(t *testing.T, database db.PathDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureMatch)

	database.Insert(atoms("a", "b"), []byte("1"), 1)
	database.Insert(atoms("a", "c"), []byte("2"), 2)
	database.Insert(atoms("a", "b", "d"), []byte("3"), 3)
	database.Insert(atoms("x", "foo", "x"), nil, 4)
	database.Insert(atoms("x", "foo", "y"), nil, 5)
	database.Insert(atoms("y", "foo", "y"), nil, 6)
	database.Insert(atoms("b"), nil, 7)
	database.Insert(atoms("b", "b"), nil, 8)
	snap := database.Snapshot()

	a := token.Lit(token.Atom("a"))
	b := token.Lit(token.Atom("b"))
	foo := token.Lit(token.Atom("foo"))

	cases := []struct {
		name    string
		pattern token.Pattern
		want    []string
	}{
		{"ExactPath", token.Exact(atoms("a", "b", "d")), []string{"[a b d] {}"}},
		{"ExactAbsent", token.Exact(atoms("a", "b", "x")), nil},
		{"VariableFixesLength", token.Pattern{a, token.Var("X")}, []string{"[a b] {X=[b]}", "[a c] {X=[c]}"}},
		{"RepeatedVariable", token.Pattern{token.Var("X"), foo, token.Var("X")}, []string{"[x foo x] {X=[x]}", "[y foo y] {X=[y]}"}},
		{"AnonymousVariables", token.Pattern{token.Var("_"), foo, token.Var("")}, []string{"[x foo x] {}", "[x foo y] {}", "[y foo y] {}"}},
		{"TailMany", token.Pattern{a, token.Many("rest")}, []string{"[a b] {rest=[b]}", "[a b d] {rest=[b d]}", "[a c] {rest=[c]}"}},
		{"TailManyZeroWidth", token.Pattern{a, token.Lit(token.Atom("c")), token.Many("rest")}, []string{"[a c] {rest=[]}"}},
		{"InnerMany", token.Pattern{a, token.Many("m"), token.Lit(token.Atom("d"))}, []string{"[a b d] {m=[b]}"}},
		{"RepeatedMany", token.Pattern{token.Many("m"), foo, token.Many("m")}, []string{"[x foo x] {m=[x]}", "[y foo y] {m=[y]}"}},
		{"LeadingManyInPathOrder", token.Pattern{token.Many("m"), b}, []string{"[a b] {m=[a]}", "[b] {m=[]}", "[b b] {m=[b]}"}},
		{"VarThenMany", token.Pattern{token.Var("x"), token.Many("x")}, []string{"[b b] {x=[b]}"}},
		{"ManyThenVar", token.Pattern{token.Many("x"), token.Var("x")}, []string{"[b b] {x=[b]}"}},
		{"NoMatch", token.Pattern{token.Var("X"), token.Var("Y"), token.Var("Z"), token.Var("W")}, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mustMatch(t, snap, tc.pattern)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Match %s mismatch (-want +got):\n%s", tc.pattern, diff)
			}
		})
	}
}

func testMatchTerms(t *testing.T, database db.PathDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureMatch)

	// (edge (f 1) 2) and (edge 3 (g (h)))
	arity := token.Arity
	database.Insert(token.P(arity(3), token.Atom("edge"), arity(2), token.Atom("f"), token.Int(1), token.Int(2)), nil, 1)
	database.Insert(token.P(arity(3), token.Atom("edge"), token.Int(3), arity(2), token.Atom("g"), arity(1), token.Atom("h")), nil, 2)

	pattern := token.Pattern{token.Lit(arity(3)), token.Lit(token.Atom("edge")), token.Var("from"), token.Var("to")}
	want := []string{
		"[[3] edge [2] f 1 2] {from=[[2] f 1], to=[2]}",
		"[[3] edge 3 [2] g [1] h] {from=[3], to=[[2] g [1] h]}",
	}
	if diff := cmp.Diff(want, mustMatch(t, database.Snapshot(), pattern)); diff != "" {
		t.Errorf("Term match mismatch (-want +got):\n%s", diff)
	}
}

// referenceMatch is a straightforward backtracking matcher used as an oracle.
func referenceMatch(pattern token.Pattern, path token.Path, i, j int, binds token.Bindings, out *[]string) {
	if j == len(pattern) {
		if i == len(path) {
			b := token.Bindings{}
			for k, v := range binds {
				b[k] = v
			}
			*out = append(*out, path.String()+" "+b.String())
		}
		return
	}
	e := pattern[j]
	named := !e.Anonymous()
	if e.Kind == token.ElemLiteral {
		if i < len(path) && path[i] == e.Symbol {
			referenceMatch(pattern, path, i+1, j+1, binds, out)
		}
		return
	}
	if v, ok := binds[e.Name]; ok && named {
		if e.Kind == token.ElemVar && (len(v) == 0 || v.TermLen(0) != len(v)) {
			return
		}
		if path[i:].HasPrefix(v) {
			referenceMatch(pattern, path, i+len(v), j+1, binds, out)
		}
		return
	}
	try := func(end int) {
		if named {
			binds[e.Name] = path[i:end]
			defer delete(binds, e.Name)
		}
		referenceMatch(pattern, path, end, j+1, binds, out)
	}
	if e.Kind == token.ElemVar {
		if n := path.TermLen(i); n > 0 {
			try(i + n)
		}
		return
	}
	for end := i; end <= len(path); end++ {
		try(end)
	}
}

func randomPattern(r *rand.Rand) token.Pattern {
	p := make(token.Pattern, 1+r.Intn(4))
	for i := range p {
		switch r.Intn(8) {
		case 0:
			p[i] = token.Var("x")
		case 1:
			p[i] = token.Var("y")
		case 2:
			p[i] = token.Var("_")
		case 3:
			p[i] = token.Many("m")
		case 4:
			p[i] = token.Many("")
		case 5:
			p[i] = token.Many("x")
		default:
			p[i] = token.Lit(alphabet[r.Intn(len(alphabet))])
		}
	}
	return p
}

func testMatchRandomized(t *testing.T, database db.PathDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureMatch)

	r := rand.New(rand.NewSource(7))
	var paths []token.Path
	for i := 0; i < 300; i++ {
		p := randomPath(r, 5)
		database.Insert(p, nil, uint64(i+1))
		paths = append(paths, p)
	}
	snap := database.Snapshot()

	// stored paths without duplicates
	unique := map[string]token.Path{}
	for _, p := range paths {
		unique[p.String()] = p
	}

	for i := 0; i < 300; i++ {
		pattern := randomPattern(r)

		var want []string
		for _, p := range unique {
			referenceMatch(pattern, p, 0, 0, token.Bindings{}, &want)
		}
		cur, err := snap.Match(context.Background(), pattern)
		if err != nil {
			t.Fatalf("Match(%s) failed: %v", pattern, err)
		}
		entries, err := db.Collect(cur)
		if err != nil {
			t.Fatal(err)
		}
		// results come in depth-first symbol order, like a prefix enumeration
		if !slices.IsSortedFunc(entries, func(x, y db.Entry) int { return x.Path.Compare(y.Path) }) {
			t.Fatalf("Match %s results are not in path order", pattern)
		}
		var got []string
		for _, e := range entries {
			got = append(got, formatEntry(e))
		}

		sort.Strings(want)
		sort.Strings(got)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("Match %s mismatch (-want +got):\n%s", pattern, diff)
		}
	}
}

func testInvalidPattern(t *testing.T, database db.PathDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureMatch)

	snap := database.Snapshot()
	before := database.GetInfo()

	_, err := snap.Match(context.Background(), token.Pattern{token.Lit(token.Symbol{})})
	if !errors.Is(err, token.ErrMalformed) {
		t.Errorf("Expected ErrMalformed, got %v", err)
	}
	_, err = snap.Match(context.Background(), token.Pattern{{Kind: 42}})
	if !errors.Is(err, token.ErrMalformed) {
		t.Errorf("Expected ErrMalformed, got %v", err)
	}

	// a rejected pattern must not leave an open cursor behind
	if diff := cmp.Diff(fmt.Sprint(before.Metadata), fmt.Sprint(database.GetInfo().Metadata)); diff != "" {
		t.Errorf("Rejected pattern changed the database metadata:\n%s", diff)
	}
}

func testCursor(t *testing.T, database db.PathDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeaturePrefix|db.FeatureMatch)

	for i := 0; i < 100; i++ {
		database.Insert(token.P(token.Atom("n"), token.Int(int64(i))), nil, uint64(i+1))
	}
	snap := database.Snapshot()

	t.Run("Reset", func(t *testing.T) {
		cur := snap.Prefix(context.Background(), atoms("n"))
		defer cur.Close()
		var first []string
		for k := 0; k < 10 && cur.Next(); k++ {
			first = append(first, cur.Entry().Path.String())
		}
		cur.Reset()
		var second []string
		for k := 0; k < 10 && cur.Next(); k++ {
			second = append(second, cur.Entry().Path.String())
		}
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("Reset cursor yields a different sequence:\n%s", diff)
		}
	})

	t.Run("Cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cur, err := snap.Match(ctx, token.Pattern{token.Lit(token.Atom("n")), token.Var("i")})
		if err != nil {
			t.Fatal(err)
		}
		defer cur.Close()
		if !cur.Next() {
			t.Fatal("Expected a first result")
		}
		cancel()
		if cur.Next() {
			t.Errorf("Cursor continued after its context was cancelled")
		}
		if !errors.Is(cur.Err(), context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", cur.Err())
		}
	})

	t.Run("CloseIsIdempotent", func(t *testing.T) {
		cur := snap.Prefix(context.Background(), nil)
		if err := cur.Close(); err != nil {
			t.Fatal(err)
		}
		if err := cur.Close(); err != nil {
			t.Fatal(err)
		}
		if cur.Next() {
			t.Errorf("Closed cursor must not yield results")
		}
	})
}

func testSnapshotIsolation(t *testing.T, database db.PathDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureDelete|db.FeaturePrefix|db.FeatureLookup)

	database.Insert(atoms("a", "1"), nil, 1)
	database.Insert(atoms("a", "2"), nil, 2)

	before := database.Snapshot()
	cur := before.Prefix(context.Background(), atoms("a"))
	defer cur.Close()
	if !cur.Next() {
		t.Fatal("Expected a first result")
	}

	database.Insert(atoms("a", "3"), nil, 3)
	database.Delete(atoms("a", "2"), 4)

	var rest []string
	for cur.Next() {
		rest = append(rest, cur.Entry().Path.String())
	}
	if diff := cmp.Diff([]string{"[a 2]"}, rest); diff != "" {
		t.Errorf("Cursor observed a concurrent write (-want +got):\n%s", diff)
	}
	if _, found := before.Lookup(atoms("a", "3")); found {
		t.Errorf("Old snapshot observed a later insert")
	}
	if before.Version() != 2 || database.Snapshot().Version() != 4 {
		t.Errorf("Unexpected versions: old=%d new=%d", before.Version(), database.Snapshot().Version())
	}
}

func testConcurrentReadersAndWriters(t *testing.T, database db.PathDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureDelete|db.FeaturePrefix)

	// readers check that every enumeration agrees with the size of its snapshot while
	// writers keep publishing new roots
	const writers = 4
	const rounds = 200

	var wg sync.WaitGroup
	errCh := make(chan error, writers*2)
	stop := make(chan struct{})

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				p := token.P(token.Atom("g"), token.Int(int64(w)), token.Int(int64(i)))
				database.Insert(p, nil, 0)
			}
		}(w)
	}

	var readers sync.WaitGroup
	for r := 0; r < 2; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := database.Snapshot()
				entries, err := db.Collect(snap.Prefix(context.Background(), atoms("g")))
				if err != nil {
					errCh <- err
					return
				}
				if len(entries) != snap.Size() {
					errCh <- fmt.Errorf("snapshot size %d but enumerated %d entries", snap.Size(), len(entries))
					return
				}
			}
		}()
	}

	wg.Wait()
	close(stop)
	readers.Wait()
	close(errCh)
	for err := range errCh {
		t.Error(err)
	}

	if size := database.Snapshot().Size(); size != writers*rounds {
		t.Errorf("Expected %d entries after concurrent inserts, got %d", writers*rounds, size)
	}
}

func testClear(t *testing.T, database db.PathDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureClear|db.FeatureLookup)

	database.Insert(atoms("a"), nil, 1)
	database.Insert(atoms("b"), nil, 2)
	old := database.Snapshot()

	if n := database.Clear(3); n != 2 {
		t.Errorf("Expected Clear to report 2 removed entries, got %d", n)
	}
	if _, found := database.Lookup(atoms("a")); found {
		t.Errorf("Expected database to be empty after Clear")
	}
	if _, found := old.Lookup(atoms("a")); !found {
		t.Errorf("Clear must not affect existing snapshots")
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	source := factory()
	defer source.Close()

	requireFeature(t, source, db.FeatureInsert|db.FeatureSave|db.FeatureLoad|db.FeaturePrefix)

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		source.Insert(randomPath(r, 8), []byte(fmt.Sprintf("value-%d", i)), uint64(i+1))
	}
	source.Insert(token.P(token.Atom("with space"), token.Int(-99)), []byte{0, 1, 2}, 501)

	var buf bytes.Buffer
	if err := source.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	target := factory()
	defer target.Close()
	target.Insert(atoms("stale"), nil, 1)
	if err := target.Load(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := collect(t, source.Snapshot().Prefix(context.Background(), nil))
	got := collect(t, target.Snapshot().Prefix(context.Background(), nil))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Loaded database differs (-want +got):\n%s", diff)
	}
	if target.WriteIdx() != source.WriteIdx() {
		t.Errorf("Expected write index %d after load, got %d", source.WriteIdx(), target.WriteIdx())
	}

	if err := target.Load(bytes.NewReader([]byte("garbage!"))); err == nil {
		t.Errorf("Expected Load to reject invalid data")
	}
}

func testInfo(t *testing.T, database db.PathDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert)

	for i := 0; i < 50; i++ {
		database.Insert(token.P(token.Atom("k"), token.Int(int64(i))), []byte("payload"), uint64(i+1))
	}
	info := database.GetInfo()
	if info.Entries != 50 {
		t.Errorf("Expected 50 entries, got %d", info.Entries)
	}
	if info.SizeBytes <= 0 {
		t.Errorf("Expected a positive size estimate, got %d", info.SizeBytes)
	}
	for _, f := range info.SupportedFeatures {
		if !database.SupportsFeature(f) {
			t.Errorf("GetInfo lists %s but SupportsFeature denies it", f)
		}
	}
}

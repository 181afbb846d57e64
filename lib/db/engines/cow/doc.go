// Package cow implements a persistent, path-compressed trie that stores token paths
// (see the token package) together with an optional payload. It provides a complete
// implementation of the db.PathDB interface with lock-free readers and a single writer
// at a time.
//
// The package focuses on:
//   - Copy-on-write updates: a write copies only the nodes on the way from the root to
//     the changed node and publishes the new root with one atomic store
//   - Stable snapshots: a reader that loaded a root keeps a consistent view for as long
//     as it holds it, no matter how many writes happen in between
//   - Lazy enumeration: prefix and pattern queries return cursors that compute results
//     one at a time and can be cancelled through their context
//   - Persistent storage with a compact binary format
//
// Key Components:
//
//   - node: One vertex of the trie. A node holds a run of symbols (its prefix), its
//     children sorted by the first symbol of their run, a terminal flag and the payload.
//     Nodes are never modified after they became reachable from a published root.
//     Outside the root every node has a non-empty run and is either terminal or has at
//     least two children. Deletes restore this by pruning dead leaves and merging single
//     child chains.
//
//   - snapshot: An immutable root together with the number of stored paths and the
//     write index (version) that produced it. Snapshots implement db.Snapshot and are
//     safe for concurrent use.
//
//   - cowImpl: The database structure implementing db.PathDB. It holds the current
//     snapshot in an atomic pointer and serializes writers with a mutex. Like the other
//     engines, it does not generate write indices itself: the caller passes them with
//     every write, so a replicated state machine can use its log index.
//
//   - Cursors: prefixCursor walks a subtree in pre-order. matchCursor runs a
//     backtracking search over the trie for a token.Pattern. Both keep an explicit stack
//     so that no goroutine is needed and a cursor that is dropped early costs nothing.
//
// Pattern Matching:
//
// A pattern is a sequence of literals, variables ($x) and sequence wildcards ($*, $*x).
// A variable binds exactly one term: a single int or atom, or an arity symbol followed by
// its operands. A wildcard binds any (possibly empty) run of symbols. A name that is
// bound once must bind the same sequence at every later position. The matcher explores
// the trie with a stack of threads, each remembering its node, the offset into the run,
// the pattern position and the bindings so far. Runs of literals are compared directly
// against the compressed runs. A wildcard at the end of the pattern turns into a plain
// subtree enumeration. Patterns with several wildcards yield one result per way the path
// can be split between them.
//
// Persistence:
//
// Save writes all entries of a snapshot in symbol order. Load rebuilds the trie aside
// and replaces the current root in one step, so readers never observe a partially loaded
// database. The format is:
//
//	magic "DTRIE\0\0\0" | version u8 | flags u8 | writeIndex u64 | count u64 |
//	count x (pathLen u32 | path | valueLen u32 | value)
//
// Usage Example:
//
//	database := cow.NewCowDB(nil)
//	database.Insert(token.Atoms("edge", "a", "b"), nil, 1)
//
//	cur, err := database.Snapshot().Match(ctx, token.Pattern{
//		token.Lit(token.Atom("edge")), token.Var("x"), token.Many(""),
//	})
//	if err != nil {
//		return err
//	}
//	defer cur.Close()
//	for cur.Next() {
//		fmt.Println(cur.Entry().Bindings)
//	}
//	return cur.Err()
package cow

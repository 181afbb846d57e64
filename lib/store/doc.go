// Package store provides a high-level interface for path storage operations with unified
// error handling. It serves as an abstraction layer over the lower-level db.PathDB
// implementations, adding write index management, argument validation and standardized
// error reporting.
//
// The package focuses on:
//   - A unified interface (IStore) for the operations of one space across different backends
//   - Pluggable storage backend architecture through DBFactory pattern
//
// Key Components:
//
//   - IStore Interface: The core abstraction defining the operations of a space: insert,
//     delete, lookup, prefix and pattern queries, clear and info. Prefix and pattern
//     queries return db.Cursor values that produce results lazily and read one consistent
//     snapshot.
//
//   - Error System: A structured error reporting mechanism using typed error codes
//     and descriptive messages. The codes for malformed input and inconsistent patterns
//     also satisfy errors.Is against the token sentinel errors. A missing path is never an
//     error.
//
//   - DBFactory: A function type that abstracts the creation of underlying db.PathDB
//     instances, providing dependency injection and flexible configuration of
//     storage backends (e.g. a keys-only trie).
//
// Implementations:
//
//	The package includes two implementations of the IStore interface:
//
//	- Local Store (lstore): A non-distributed implementation that directly
//	  utilizes a db.PathDB instance. It manages write index progression internally
//	  using atomic operations. This implementation is suitable for single-node
//	  deployments.
//	  Available in the "github.com/ValentinKolb/dTrie/lib/store/lstore" package.
//
//	- Distributed Store (dstore): An implementation built on the Dragonboat
//	  RAFT consensus library. Writes are replicated through the raft log, reads are
//	  linearizable. Prefix and pattern queries fetch an engine snapshot through the
//	  state machine and iterate it locally.
//	  Available in the "github.com/ValentinKolb/dTrie/lib/store/dstore" package.
package store

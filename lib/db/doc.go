// Package db provides a standardized interface for path-indexed database implementations.
// It defines the PathDB interface that allows for consistent interaction with various
// trie backends while abstracting implementation details.
//
// The package focuses on:
//   - A unified interface for path operations (insert, delete, lookup)
//   - Lazy, cancellable result cursors for prefix enumeration and pattern matching
//   - Immutable snapshots for readers that never block writers
//   - Feature discovery through capability flags
//
// Key Components:
//
//   - PathDB Interface: The core interface that all database implementations must satisfy.
//     It provides write operations (Insert, Delete, Clear), the exact Lookup, access to
//     the current Snapshot, metadata retrieval (GetInfo) and persistence (Save, Load).
//
//   - Snapshot: An immutable view taken with a single atomic load. All read queries,
//     including Prefix and Match, run against a snapshot, so a long running enumeration
//     observes either all or nothing of a concurrent write.
//
//   - Cursor: An explicit iterator object (Next/Entry/Err/Close) capturing the traversal
//     position. The server streams cursor results one by one and stops a cursor as soon
//     as the client goes away. Every cursor checks its context on each traversal step.
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method. A keys-only database does not
//     advertise FeaturePayload.
//
//   - Database Information: The DatabaseInfo structure provides standardized
//     reporting on database state. Note: size statistics are estimated since a precise
//     calculation can be expensive.
//
// Note on Write Indexes:
//   - All write operations accept a write-index used as a logical timestamp. The index of
//     the last write becomes the Version of the published snapshot.
//   - Implementations must ensure that the write-index only increases monotonically.
//
// Related Packages:
//
// The engines/cow package (github.com/ValentinKolb/dTrie/lib/db/engines/cow) implements
// PathDB as a persistent, path-compressed trie with path-copying writes and an atomic root.
//
// The util package (github.com/ValentinKolb/dTrie/lib/db/util) provides size statistics
// used by GetInfo.
//
// The testing package (github.com/ValentinKolb/dTrie/lib/db/testing) provides
// standardized tests and benchmarks for database implementations that satisfy the db.PathDB interface.
//   - RunPathDBTests: Runs a standardized test suite to validate implementations
//   - RunPathDBBenchmarks: Provides performance benchmarks for comparing implementations
package db

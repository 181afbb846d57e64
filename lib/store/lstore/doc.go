// Package lstore implements a local, in-memory, single-node path store based on the
// store.IStore interface. It provides a thin wrapper around any db.PathDB
// implementation with automatic write index management. Data is stored entirely
// in memory and is not persisted between process restarts.
//
// Key Features:
//   - Direct integration with db.PathDB implementations
//   - Automatic write index progression using atomic operations
//   - Validation of paths and payloads before they reach the database
//   - Feature detection to handle unsupported operations gracefully
//
// Implementation Details:
//
//   - Write Index Management: The store maintains an atomic counter that increments with
//     each write operation. The database uses it as the version of the snapshot the
//     write publishes.
//
//   - Feature Detection: Before executing operations, the store checks if the underlying
//     db.PathDB implementation supports the requested feature. A keys-only database
//     rejects inserts that carry a payload with store.RetCMalformedRequest.
//
//   - Cursors: Prefix and Match take the current snapshot of the database and return
//     its cursor. Writes that happen while a cursor is open do not affect it.
//
// Usage Example:
//
//	factory := func() db.PathDB { return cow.NewCowDB(nil) }
//	s := lstore.NewLocalStore(factory)
//
//	_, err := s.Insert(token.Atoms("edge", "a", "b"), nil)
//
//	cur, err := s.Prefix(ctx, token.Atoms("edge"))
//	defer cur.Close()
//	for cur.Next() {
//		fmt.Println(cur.Entry().Path)
//	}
//
// For replicated spaces, use the dstore package instead, which provides a RAFT-based
// implementation of the same interface.
package lstore

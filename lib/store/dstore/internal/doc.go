// Package internal provides the communication protocol structures and serialization
// logic for the dstore package. It defines the format of the raft log entries and the
// queries understood by the state machine.
//
// This package is intended for internal use by the dstore implementation and should
// not be imported directly by external code.
//
// The package consists of two main components:
//
//   - Command System: Defines write operations (Insert, Delete, Clear) that modify the
//     state of the database. Commands are serialized and proposed to the RAFT cluster,
//     executed on the state machine, and produce results that are returned to the client.
//
//   - Query System: Defines read operations (Lookup, Snapshot, GetDBInfo). Queries are
//     executed locally on the state machine and therefore do not require serialization.
//     The Snapshot query hands out the immutable engine snapshot, prefix and pattern
//     queries iterate it in the calling process.
//
// Command Format:
//
//	- 1 byte: Command type (Insert, Delete, Clear)
//	- 4 bytes: Length of the encoded path (uint32, big endian)
//	- N bytes: Path in the token binary encoding (empty for Clear)
//	- M bytes: Payload (optional, only present for Insert)
//
// Result Format:
//
//	The state machine reports the store.RetCode as the result value. On success the
//	result data holds the db.Outcome (1 byte) of an insert or delete, or the number of
//	removed paths (uint64, big endian) of a clear. On failure it holds the error message.
package internal

package db

import (
	"context"
	"io"

	"github.com/ValentinKolb/dTrie/lib/token"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplCow Implementation = "cow"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureInsert  Feature = 1 << iota // Support for Insert operations
	FeatureDelete                      // Support for Delete operations
	FeatureLookup                      // Support for Lookup operations
	FeaturePrefix                      // Support for prefix enumeration
	FeatureMatch                       // Support for pattern matching
	FeatureClear                       // Support for Clear operations
	FeatureSave                        // Support for Save operations
	FeatureLoad                        // Support for Load operations
	FeaturePayload                     // Entries carry a payload (not a keys-only database)
	FeatureExplore                     // Support for listing the next symbols below a prefix
)

func (f Feature) String() string {
	switch f {
	case FeatureInsert:
		return "Insert"
	case FeatureDelete:
		return "Delete"
	case FeatureLookup:
		return "Lookup"
	case FeaturePrefix:
		return "Prefix"
	case FeatureMatch:
		return "Match"
	case FeatureClear:
		return "Clear"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	case FeaturePayload:
		return "Payload"
	case FeatureExplore:
		return "Explore"
	default:
		return "Unknown"
	}
}

// AllFeatures lists every single feature flag, in declaration order.
var AllFeatures = []Feature{
	FeatureInsert, FeatureDelete, FeatureLookup, FeaturePrefix, FeatureMatch,
	FeatureClear, FeatureSave, FeatureLoad, FeaturePayload, FeatureExplore,
}

// Outcome is the result of a write operation. Absent paths are reported as an outcome,
// never as an error.
type Outcome uint8

const (
	OutcomeNone     Outcome = iota // No write happened
	OutcomeInserted                // The path was not stored before
	OutcomeReplaced                // The path was stored, its payload got replaced
	OutcomeRemoved                 // The path was stored and got removed
	OutcomeNotFound                // The path to delete was not stored
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeReplaced:
		return "replaced"
	case OutcomeRemoved:
		return "removed"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "none"
	}
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	Entries           int            `json:"entries"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// Entry is a single result of a prefix enumeration or a pattern match.
// Bindings is nil for prefix enumerations. Value is shared with the database and must not
// be modified.
type Entry struct {
	Path     token.Path
	Value    []byte
	Bindings token.Bindings
}

// --------------------------------------------------------------------------
// Cursor and Snapshot
// --------------------------------------------------------------------------

// Cursor is a lazy result sequence. Results are produced one at a time by Next, so a
// consumer can stop early without the rest of the traversal ever running.
//
//	for cur.Next() {
//		e := cur.Entry()
//	}
//	if err := cur.Err(); err != nil { ... }
//
// A cursor holds a reference to the snapshot it reads from until Close is called.
// Close is idempotent. Cursors are not safe for concurrent use.
type Cursor interface {
	// Next advances to the next result. It returns false when the sequence is exhausted,
	// the context of the cursor is cancelled or an error occurred.
	Next() bool
	// Entry returns the current result. It is only valid after Next returned true.
	Entry() Entry
	// Err returns the error that stopped the cursor, if any. A cancelled context is
	// reported as the context error.
	Err() error
	// Close releases the cursor and its snapshot reference.
	Close() error
}

// RestartableCursor is a cursor that can be rewound to its first result. Since the cursor
// is bound to an immutable snapshot, a restarted cursor yields exactly the same sequence.
type RestartableCursor interface {
	Cursor
	Reset()
}

// Snapshot is an immutable point-in-time view of the database. Snapshots never observe
// writes that happened after they were taken and never block writers.
type Snapshot interface {
	// Version returns the write index of the last write visible in the snapshot.
	Version() uint64
	// Size returns the number of stored paths.
	Size() int
	// Lookup returns the payload stored for path.
	Lookup(path token.Path) (value []byte, found bool)
	// Prefix enumerates all stored paths starting with prefix in depth-first, symbol order.
	// A path is always yielded before its extensions.
	Prefix(ctx context.Context, prefix token.Path) RestartableCursor
	// Match enumerates all stored paths matching pattern together with their bindings.
	// The pattern is validated before the cursor is created.
	Match(ctx context.Context, pattern token.Pattern) (RestartableCursor, error)
	// Children lists the distinct symbols that follow prefix in stored paths, one entry per
	// symbol in symbol order. The entry path is prefix plus that symbol, the value is set if
	// this path is stored itself.
	Children(ctx context.Context, prefix token.Path) RestartableCursor
	// Save writes all entries of the snapshot to w.
	Save(w io.Writer) error
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// PathDB defines an interface for path-indexed database implementations.
// Keys are token paths, values are opaque payloads. Implementations can vary in their
// feature support, which can be queried with SupportsFeature.
type PathDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Insert stores value under path. If the path is already stored its payload is
	// replaced. The writeIndex is used as the version of the resulting snapshot.
	Insert(path token.Path, value []byte, writeIndex uint64) Outcome

	// Delete removes path from the database.
	Delete(path token.Path, writeIndex uint64) Outcome

	// Clear removes every path in one atomic step and returns the number of removed paths.
	Clear(writeIndex uint64) int

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Lookup retrieves a copy of the payload stored for the exact path.
	// The boolean return value indicates whether the path is stored.
	Lookup(path token.Path) (value []byte, found bool)

	// Snapshot returns the current immutable view of the database.
	Snapshot() Snapshot

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load replaces the database state with the data provided by an io.Reader.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// --------------------------------------------------------------------------
	// Write Index Operations
	// --------------------------------------------------------------------------

	// SetWriteIdx sets the current index of the database only if the provided index is greater than the current index.
	SetWriteIdx(index uint64)

	// WriteIdx returns the current index of the database.
	WriteIdx() (index uint64)

	// Close closes the database.
	Close() (err error)
}

// Collect drains cur into a slice and closes it.
func Collect(cur Cursor) ([]Entry, error) {
	defer cur.Close()
	var out []Entry
	for cur.Next() {
		out = append(out, cur.Entry())
	}
	return out, cur.Err()
}

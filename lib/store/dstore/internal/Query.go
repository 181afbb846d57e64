package internal

import "github.com/ValentinKolb/dTrie/lib/token"

// QueryType defines the possible queries for the state machine.
type QueryType uint8

const (
	QueryTLookup    QueryType = iota // Retrieve the payload of a path.
	QueryTSnapshot                   // Retrieve the current db.Snapshot for prefix and pattern queries.
	QueryTGetDBInfo                  // Retrieve metadata about the database underlying the machine.
)

func (q QueryType) String() string {
	switch q {
	case QueryTLookup:
		return "Lookup"
	case QueryTSnapshot:
		return "Snapshot"
	case QueryTGetDBInfo:
		return "GetDBInfo"
	default:
		return "Unknown"
	}
}

// Query defines the structure for lookup requests (read-only) sent via SyncRead or ReadStale
type Query struct {
	Type QueryType  // The type of Query to perform.
	Path token.Path // The path for the Query (empty for some queries).
}

// QueryResult is the result of a QueryTLookup operation.
// All other query results are predefined types (db.Snapshot, db.DatabaseInfo).
type QueryResult struct {
	Found bool
	Value []byte
}

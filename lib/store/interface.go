package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ValentinKolb/dTrie/lib/db"
	"github.com/ValentinKolb/dTrie/lib/token"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.PathDB

// IStore is the generic interface for interacting with a path store (one space).
// Errors returned by the methods are of type *Error. A missing path is not an error: it is
// reported by the outcome or the found flag.
type IStore interface {
	// Insert stores value under path. An existing payload is replaced.
	Insert(path token.Path, value []byte) (outcome db.Outcome, err error)
	// Delete removes path. Deleting a path that is not stored yields db.OutcomeNotFound.
	Delete(path token.Path) (outcome db.Outcome, err error)
	// Lookup returns the payload stored for path.
	Lookup(path token.Path) (value []byte, found bool, err error)
	// Prefix returns a cursor over all stored paths starting with prefix. The cursor
	// reads a consistent snapshot and must be closed by the caller.
	Prefix(ctx context.Context, prefix token.Path) (cur db.Cursor, err error)
	// Match returns a cursor over all stored paths matching pattern together with the
	// bindings of the named pattern elements. An invalid pattern is rejected before any
	// result is produced.
	Match(ctx context.Context, pattern token.Pattern) (cur db.Cursor, err error)
	// Explore returns a cursor over the distinct symbols that follow prefix, see
	// db.Snapshot.Children.
	Explore(ctx context.Context, prefix token.Path) (cur db.Cursor, err error)
	// Clear removes all paths and returns how many were removed.
	Clear() (removed int, err error)
	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
	// Close releases the resources held by the store.
	Close() error
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// Is reports whether target is the token error that corresponds to the code of e. This
// keeps errors.Is(err, token.ErrPatternInconsistent) working after an error crossed the
// store or the network.
func (e *Error) Is(target error) bool {
	switch e.Code {
	case RetCMalformedRequest:
		return target == token.ErrMalformed
	case RetCPatternInconsistent:
		return target == token.ErrPatternInconsistent
	}
	return false
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// FromError converts err into an *Error. Errors that already are of type *Error are
// returned unchanged, the token sentinel errors map to their codes and everything else
// becomes an internal error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	switch {
	case errors.As(err, &se):
		return se
	case errors.Is(err, token.ErrPatternInconsistent):
		return NewError(RetCPatternInconsistent, err.Error())
	case errors.Is(err, token.ErrMalformed):
		return NewError(RetCMalformedRequest, err.Error())
	default:
		return NewError(RetCInternalError, err.Error())
	}
}

// Unsupported returns the error for an operation the underlying database lacks.
func Unsupported(op string) *Error {
	return NewError(RetCUnsupportedOperation, op+" operation is not supported")
}

// CheckInsert validates the arguments of an insert against a database: the path must
// consist of valid symbols and a keys-only database does not accept payloads.
func CheckInsert(d db.PathDB, path token.Path, value []byte) error {
	if !d.SupportsFeature(db.FeatureInsert) {
		return Unsupported("Insert")
	}
	if err := path.Validate(); err != nil {
		return FromError(err)
	}
	if len(value) > 0 && !d.SupportsFeature(db.FeaturePayload) {
		return NewError(RetCMalformedRequest, "payload given for a keys-only space")
	}
	return nil
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCMalformedRequest                    // 3: Malformed path, pattern, payload or unknown operation.
	RetCPatternInconsistent                 // 4: The pattern can never match.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCMalformedRequest:
		return "MalformedRequest"
	case RetCPatternInconsistent:
		return "PatternInconsistent"
	default:
		return fmt.Sprintf("Unknown(%d)", uint64(c))
	}
}

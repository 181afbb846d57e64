package token

import "errors"

var (
	// ErrMalformed is returned when a symbol, path or pattern cannot be decoded or contains
	// invalid elements.
	ErrMalformed = errors.New("malformed token data")

	// ErrPatternInconsistent reports a pattern whose named elements can never be satisfied
	// together. Every pattern built from literals, variables and wildcard-many elements is
	// satisfied by some path, so Pattern.Validate does not produce it. Stores and the wire
	// protocol keep it as an error kind of their own.
	ErrPatternInconsistent = errors.New("inconsistent pattern")
)

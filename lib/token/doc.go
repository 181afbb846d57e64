// Package token defines the key space of the store: Symbols, Token Paths built from them,
// Patterns used to query paths and the Bindings a successful match produces.
//
// Key Components:
//
//   - Symbol: An immutable, comparable and totally ordered token. A symbol is either an
//     Arity(n) header announcing that n sub-terms follow, an Int or an Atom (string).
//     Symbols are ordered by kind first (Arity < Int < Atom) and by value second.
//
//   - Path: An ordered, possibly empty sequence of symbols. Paths are the keys of the store.
//     A flattened expression like (foo 1) is stored as the path [Arity(2) foo 1].
//
//   - Pattern: A sequence of elements. A literal element matches exactly one symbol, a
//     variable matches one term (a single symbol, or an Arity header together with its
//     sub-terms) and a wildcard-many matches zero or more symbols. Named elements that are
//     repeated must match the same symbol sequence everywhere.
//
//   - Bindings: The mapping from variable name to matched path produced for every result.
//
// Encoding:
//
// Symbols serialize to a self-delimiting, type-tagged byte form (one tag byte followed by a
// varint or a length prefixed string), so a sequence of symbols can be decoded without any
// external schema. Paths and patterns are prefixed with their element count. All types also
// implement json.Marshaler and gob.GobEncoder so they can travel inside rpc messages.
package token

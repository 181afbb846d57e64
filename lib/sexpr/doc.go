// Package sexpr converts between s-expression text and the flattened token paths stored
// in the trie.
//
// An expression (f a (g 1)) is flattened in pre-order, every list contributing an arity
// header before its elements:
//
//	(f a (g 1))  ->  [Arity(3) f a Arity(2) g 1]
//
// Bare integers become Int symbols, every other bare word or double-quoted string becomes an
// Atom. Patterns use the same syntax plus variables:
//
//	$x    variable x, matches one sub-expression
//	$_    anonymous variable
//	$*    anonymous wildcard-many, matches any remaining symbols
//	$*xs  named wildcard-many
//
// A ';' starts a comment that runs to the end of the line. Raw mode skips list handling
// and treats the input as a flat, whitespace separated sequence of symbols.
package sexpr

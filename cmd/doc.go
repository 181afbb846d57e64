// Package cmd implements the command-line interface of dTrie. It provides a
// hierarchical command structure with operations for running the server and
// interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - path: Commands for path store operations (insert, lookup, prefix, match, upload, ...)
//   - serve: Commands for starting and configuring the dTrie server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dtrie -help for a list of all commands.
package cmd

// Package rpc provides the remote access layer of the path store. It connects
// clients and servers and carries single responses as well as the record streams of
// Prefix and Match requests across network boundaries.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration structures, and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets, HTTP), including stream cancellation.
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: RPC client implementing the store interface, allowing applications to
//     interact with remote spaces transparently.
//
//   - server: RPC server components that handle incoming requests and route them to
//     the configured spaces.
package rpc

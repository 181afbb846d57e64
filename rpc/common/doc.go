// Package common provides core data structures and utilities shared by the RPC server,
// the RPC client and the command line tools.
//
// The package focuses on:
//   - Message protocol definition for the communication between client and server
//   - Configuration structures for client and server components
//   - Custom logging implementation integrated with Dragonboat
//   - Utilities for Dragonboat (RAFT) integration
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication. Requests carry a path,
//     a pattern or a payload. Responses carry a ResultCode, a payload, bindings or an
//     error with its store.RetCode. Prefix and Match requests are answered with a stream
//     of Item records closed by an End record (or an Error record).
//
//   - MessageType: Enumeration of all operations and stream record types.
//
//   - ServerConfig: Configuration for server nodes, including the served spaces, RAFT
//     parameters, storage settings and transport settings. Provides utilities for
//     converting to Dragonboat-specific configurations.
//
//   - ClientConfig: Configuration for client components, controlling connection
//     parameters, timeouts, and retry behavior.
//
//   - Logger: Custom logging implementation that integrates with Dragonboat's
//     logging system while providing consistent formatting across the application.
package common

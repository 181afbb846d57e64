// Package transport defines the interfaces and abstractions for RPC communication
// of the path store. It provides a common contract that all transport
// implementations must fulfill, enabling protocol-agnostic communication.
//
// The package focuses on:
//   - Defining clear interfaces for client and server transport layers
//   - Supporting shard-based request routing
//   - Streaming responses: a request is answered by any number of intermediate
//     records followed by one final record
//   - Cancellation of requests through a context on both sides
//   - Enabling multiple transport implementations (HTTP, TCP, Unix sockets)
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport implementations that
//     handles connection management, request sending and opening response streams.
//
//   - IRPCStream: Client side of a streaming response.
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     receives requests, routes them to the handler and shuts down gracefully.
//
//   - ServerHandleFunc: Function type for request handling callbacks, intermediate
//     records are sent with the EmitFunc passed to the handler.
package transport

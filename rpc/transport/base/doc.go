// Package base provides a foundation for stream oriented transport layers of the path store,
// implementing core functionality for RPC communication independent of the specific
// network protocol (TCP, Unix sockets, etc.). It serves as a base layer that can be
// extended with protocol-specific connectors.
//
// The package focuses on:
//   - Protocol-agnostic client and server transport implementations
//   - Performance optimization through connection pooling and buffer reuse
//   - Frame-based message protocol with shardID and requestID tracking
//   - Streaming responses with backpressure and cancellation
//   - Robust error handling with retries and reconnection logic
//
// Frame format (all integers big endian):
//
//	shardID u64 | requestID u64 | kind u8 | length u32 | data
//
// The kind is one of last (a request, or the final record of a response), more (an
// intermediate record of a streaming response) or cancel (sent by the client to stop
// a request, carries no data).
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     that allow extending the base transport with different network protocols.
//
//   - clientTransport: Core client implementation that manages multiple connections
//     with round-robin load balancing. Supports multiple connections per endpoint
//     for improved throughput. Every connection has one reader goroutine that routes
//     records to the waiting request by its requestID.
//
//   - serverTransport: Core server implementation that accepts connections and
//     routes requests to the handler. Every connection is a session with its own id,
//     context and registry of in-flight requests. Up to WorkersPerConn requests of a
//     session run concurrently, further requests are not read until a worker is free.
//
// Cancellation:
//
//	A request context is cancelled when the client sends a cancel frame, when the
//	connection is closed or a write to it fails, and when a Shutdown runs out of time.
//	The handler observes the cancellation on its next step and stops.
//
// Performance Optimizations:
//
//   - Connection Pooling: Multiple connections per endpoint improve throughput
//     for high-load scenarios. For small messages (< 1KB), a single connection per
//     endpoint may actually perform better due to reduced overhead.
//
//   - Buffer Pooling: The server uses a sync.Pool to reuse request buffers, reducing
//     GC pressure and memory allocations.
//
//   - Frame Batching: The transport uses net.Buffers to reduce syscalls when
//     writing frames, combining header and payload into a single write operation.
//
// Thread Safety:
//
//	All public methods are thread-safe. Frames of one connection are written under a
//	mutex, a blocked socket therefore blocks all producers of that connection.
package base

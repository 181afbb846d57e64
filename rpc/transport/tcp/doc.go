// Package tcp implements TCP socket-based transport for the RPC system of the path store.
// It provides concrete implementations of the base package's connector interfaces for
// TCP connections.
//
// This package builds on the base package's transport functionality, inheriting its
// framing, streaming, connection pooling, buffer reuse and request routing. See the
// base package documentation for detailed information on the underlying transport
// mechanisms.
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector
//
// Both connectors apply the TCPConf (no delay, keep alive, linger) and SocketConf
// (buffer sizes) settings to every connection.
//
// The default server buffer size is set to 512 KB, which provides good performance
// for typical workloads, but can be customized for specific use cases.
package tcp

// Package client implements the RPC client of the path store. It provides an
// implementation of the store.IStore interface that communicates with remote servers
// via RPC.
//
// The package focuses on:
//   - Transparent RPC access to a space served by a remote server
//   - Integration with the transport and serialization layers
//   - Error handling: errors reported by the server are returned as *store.Error with
//     the code set by the server, so errors.Is works with the token sentinel errors
//
// Key Components:
//
//   - NewRPCStore: Factory function that creates a client implementing the store.IStore
//     interface. This client forwards all operations to remote servers via the configured
//     transport layer.
//
//   - remoteCursor: db.Cursor over a streaming Prefix or Match response. Records are
//     read lazily; closing the cursor early cancels the traversal on the server.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  TimeoutSecond: 5,
//	  Transport: common.ClientTransportConfig{
//	    Endpoints:              []string{"localhost:8000"},
//	    RetryCount:             3,
//	    ConnectionsPerEndpoint: 1,
//	  },
//	}
//
//	s, _ := client.NewRPCStore(100, config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	defer s.Close()
//
//	s.Insert(token.Atoms("edge", "a", "b"), []byte("payload"))
//
//	cur, _ := s.Match(ctx, pattern)
//	defer cur.Close()
//	for cur.Next() {
//	  fmt.Println(cur.Entry().Path, cur.Entry().Bindings)
//	}
//
// Performance Considerations:
//
//   - For applications that frequently send large payloads, increasing ConnectionsPerEndpoint
//     can improve throughput by allowing parallel requests.
//
//   - For small messages, a single connection per endpoint is often more efficient due to
//     reduced connection overhead.
//
//   - The choice of serializer significantly affects performance. The binary serializer
//     provides the best performance and smallest payload size.
//
// Thread Safety:
//
//	The store is thread-safe and can be used concurrently from multiple goroutines.
//	A cursor belongs to a single goroutine.
package client

// Package server implements the RPC server of the path store. It routes requests to
// spaces (shards), dispatches them to an adapter that translates messages into
// store.IStore calls, and streams the results of Prefix and Match requests.
//
// The package focuses on:
//   - Server-side RPC request handling for the store operations
//   - Adapter pattern to decouple application logic from RPC mechanisms
//   - Flexible shard configuration with support for local and distributed stores
//   - Streaming responses: one Item record per result followed by an End or Error record
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a store.IStore.
//
//   - NewIStoreServerAdapter: Factory function creating an adapter for path store
//     operations, translating RPC requests to store.IStore method calls.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
//   - ServeMetrics: Serves the request counters and latency histograms in the Prometheus
//     text format.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Shards: []common.ServerShard{
//	    {ShardID: 100, Type: common.ShardTypeLocalIStore},
//	    {ShardID: 200, Type: common.ShardTypeLocalIStore, KeysOnly: true},
//	  },
//	  Transport:     common.ServerTransportConfig{Endpoint: "0.0.0.0:8000"},
//	  TimeoutSecond: 5,
//	  LogLevel:      "info",
//	}
//
//	s := server.NewRPCServer(config, tcp.NewTCPServerTransport(), serializer.NewBinarySerializer())
//	go func() {
//	  <-ctx.Done()
//	  s.Shutdown(context.Background())
//	}()
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// The server supports two types of shards, which can be mixed within a single server.
// Both can be created as keys-only spaces ("lstore(keys)", "dstore(keys)") which store
// paths without payloads:
//
//   - ShardTypeLocalIStore: A local store implementation, suitable for single-node deployments
//     or development environments.
//
//   - ShardTypeRemoteIStore: A distributed store implementation using Raft consensus,
//     providing strong consistency across multiple nodes. When using this type,
//     RAFT configuration (RTTMillisecond, SnapshotEntries, CompactionOverhead,
//     DataDir, ReplicaID, and ClusterMembers) must be properly configured.
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. Each request is processed independently.
//	Serve should be called only once; Shutdown may be called from any goroutine.
package server

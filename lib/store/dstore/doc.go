// Package dstore implements a replicated, fault-tolerant path store using the Dragonboat
// RAFT consensus library. It provides a strongly consistent implementation of the
// store.IStore interface that can operate across multiple nodes.
//
// Architecture:
//
// The dstore implementation consists of three main components:
//
//   - Store Client: Implements the store.IStore interface and communicates with
//     the RAFT cluster. It serializes writes into commands, sends them to the
//     consensus layer, and decodes the results.
//
//   - State Machine: A Dragonboat IConcurrentStateMachine implementation that processes
//     commands and queries on each node. The state machine contains the actual db.PathDB
//     instance and applies operations to it.
//
//   - Communication Protocol: Defined in the internal package, this consists of Command
//     and Query structures with serialization logic for the raft log.
//
// Write Operations:
//
//	All write operations (Insert, Delete, Clear) follow this flow:
//
//	1. The operation is serialized into a Command structure
//	2. The Command is proposed to the RAFT cluster via SyncPropose
//	3. Once committed, the command is executed on the state machine on each node
//	4. The outcome (inserted, replaced, removed, not found) is returned to the client
//
//	The write index for all operations is the RAFT log index. The engine uses it as the
//	version of the snapshot the write publishes, so all replicas agree on versions.
//
// Read Operations:
//
//   - Lookup uses SyncRead, which ensures that the local replica has applied all
//     committed entries before the query runs.
//
//   - Prefix and Match use SyncRead to fetch the current immutable engine snapshot of
//     the local replica and iterate it in the calling goroutine. The cursor keeps reading
//     that snapshot while the replica continues to apply entries.
//
//   - GetDBInfo uses StaleRead, which may return slightly outdated information but with
//     lower latency.
//
// Error Handling and Retries:
//
//	- System Busy: When Dragonboat returns ErrSystemBusy, the operation is retried
//	  after a short delay, up to a fixed number of attempts.
//
//	- Timeouts: All operations have a configurable timeout. If consensus cannot be
//	  reached within this period, the operation fails with store.RetCInternalError.
//
//	- Validation: Paths and patterns are validated before they are proposed. Payloads
//	  for keys-only spaces are rejected by the state machine, since only it knows the
//	  engine configuration.
//
// Snapshotting and Recovery:
//
//   - PrepareSnapshot captures the immutable engine snapshot, SaveSnapshot writes it
//     with the engine's Save method. Updates continue while the snapshot is written.
//
//   - On startup or when joining a cluster, a replica restores the latest snapshot with
//     the engine's Load method and then applies the log entries committed after it.
//
// Usage:
//
//	nh, err := dragonboat.NewNodeHost(nodeHostConfig)
//	if err != nil { ... }
//
//	dbFactory := func() db.PathDB { return cow.NewCowDB(nil) }
//
//	err = nh.StartConcurrentReplica(
//	    clusterMembers,
//	    false,
//	    dstore.CreateStateMaschineFactory(dbFactory),
//	    shardConfig)
//	if err != nil { ... }
//
//	s := dstore.NewDistributedStore(nh, shardID, 5*time.Second)
//
// Limitations:
//
//   - Majority Requirement: Operations cannot proceed if a majority of nodes are unavailable
//   - Prefix and Match read the snapshot of the local replica, the process has to host a
//     replica of the shard
//
// For spaces that do not need replication, use the lstore package, which provides a
// single-node implementation of the same interface.
package dstore

package dstore

import (
	"fmt"
	"io"
	"time"

	sm "github.com/lni/dragonboat/v4/statemachine"

	"github.com/ValentinKolb/dTrie/lib/db"
	"github.com/ValentinKolb/dTrie/lib/store"
	"github.com/ValentinKolb/dTrie/lib/store/dstore/internal"
)

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// PathStateMachine is a state machine implementation for Dragonboat RAFT
type PathStateMachine struct {
	replicaID uint64
	shardID   uint64
	database  db.PathDB // the actual dataStorage
}

// CreateStateMaschineFactory returns a function that can be used by dragenboat to create a new standmaschine for a node host
// The factory pattern is used to enable the caller to pass an interchangeable dbFactory
func CreateStateMaschineFactory(dbFactory store.DBFactory) func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return &PathStateMachine{
			replicaID: replicaID,
			shardID:   shardID,
			database:  dbFactory(),
		}
	}
}

// Lookup handles read-only queries by mapping each Query operation to the corresponding PathDB method.
func (fsm *PathStateMachine) Lookup(itf interface{}) (interface{}, error) {

	// try to parse Query into Query struct
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("invalid Query type: %T", itf))
	}

	// Handle different Query types
	switch q.Type {
	case internal.QueryTLookup:
		if !fsm.database.SupportsFeature(db.FeatureLookup) {
			return nil, store.Unsupported("Lookup")
		}
		val, found := fsm.database.Lookup(q.Path)
		return internal.QueryResult{
			Value: val,
			Found: found,
		}, nil
	case internal.QueryTSnapshot:
		return fsm.database.Snapshot(), nil
	case internal.QueryTGetDBInfo:
		return fsm.database.GetInfo(), nil
	default:
		return nil, store.NewError(store.RetCMalformedRequest, fmt.Sprintf("unknown Query operation: %d", q.Type))
	}
}

// Update handles write commands on the PathDB instance
// All write operations are serialized into []byte and are accessible via the entries struct
func (fsm *PathStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {

	// Nothing to do
	if len(entries) == 0 {
		return entries, nil
	}

	// Stats
	start := time.Now()

	for idx, e := range entries {
		entries[idx].Result = fsm.apply(e)
	}

	// Log if the update took long
	if elapsed := time.Since(start); elapsed > time.Millisecond {
		log.Infof("Statemachine took long to update. Batch updated %d entries, took %.2fms:", len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

// apply executes a single raft log entry. The log index is used as write index.
func (fsm *PathStateMachine) apply(e sm.Entry) sm.Result {
	failed := func(code store.RetCode, format string, args ...any) sm.Result {
		return sm.Result{Value: uint64(code), Data: []byte(fmt.Sprintf(format, args...))}
	}

	if len(e.Cmd) == 0 {
		return failed(store.RetCMalformedRequest, "empty command ignored")
	}

	cmd := internal.Command{}
	if err := cmd.Deserialize(e.Cmd); err != nil {
		return failed(store.RetCMalformedRequest, "failed to deserialize command: %v", err)
	}

	// Check if the db supports the operation
	feat, err := cmd.Type.ToDBFeature()
	if err != nil {
		return failed(store.RetCMalformedRequest, "unknown Command operation: %s", cmd.Type)
	}
	if !fsm.database.SupportsFeature(feat) {
		return failed(store.RetCUnsupportedOperation, "%s operation is not supported", cmd.Type)
	}

	switch cmd.Type {
	case internal.CommandTInsert:
		if err := store.CheckInsert(fsm.database, cmd.Path, cmd.Value); err != nil {
			se := store.FromError(err)
			return failed(se.Code, "%s", se.Msg)
		}
		out := fsm.database.Insert(cmd.Path, cmd.Value, e.Index)
		return sm.Result{Value: uint64(store.RetCSuccess), Data: internal.EncodeOutcome(out)}
	case internal.CommandTDelete:
		out := fsm.database.Delete(cmd.Path, e.Index)
		return sm.Result{Value: uint64(store.RetCSuccess), Data: internal.EncodeOutcome(out)}
	case internal.CommandTClear:
		removed := fsm.database.Clear(e.Index)
		return sm.Result{Value: uint64(store.RetCSuccess), Data: internal.EncodeCount(removed)}
	default:
		return failed(store.RetCMalformedRequest, "unknown Command operation: %s", cmd.Type)
	}
}

// PrepareSnapshot captures the current immutable engine snapshot. Updates that are applied
// while the snapshot is written do not affect it.
func (fsm *PathStateMachine) PrepareSnapshot() (interface{}, error) {
	return fsm.database.Snapshot(), nil
}

// SaveSnapshot writes the snapshot captured by PrepareSnapshot to the writer
func (fsm *PathStateMachine) SaveSnapshot(ctx interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureSave) {
		return fmt.Errorf("the used PathDB implementation does not support Save() operations")
	}
	snap, ok := ctx.(db.Snapshot)
	if !ok {
		return fmt.Errorf("invalid snapshot context type: %T", ctx)
	}
	return snap.Save(writer)
}

// RecoverFromSnapshot replaces the database content with the snapshot read from r.
func (fsm *PathStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureLoad) {
		return fmt.Errorf("the used PathDB implementation does not support Load() operations")
	}
	return fsm.database.Load(r)
}

// Close performs any necessary cleanup.
func (fsm *PathStateMachine) Close() error {
	return fsm.database.Close()
}

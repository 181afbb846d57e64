package dstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
	sm "github.com/lni/dragonboat/v4/statemachine"

	"github.com/ValentinKolb/dTrie/lib/db"
	"github.com/ValentinKolb/dTrie/lib/store"
	"github.com/ValentinKolb/dTrie/lib/store/dstore/internal"
	"github.com/ValentinKolb/dTrie/lib/token"
)

var (
	retries = 5
	log     = logger.GetLogger("store")
)

// storeImpl is the concrete implementation of the distributed store.
// It encapsulates a Dragonboat NodeHost which is used to communicate with the state machine.
type storeImpl struct {
	nh      *dragonboat.NodeHost
	shardID uint64
	cs      *client.Session
	timeout time.Duration
}

// NewDistributedStore creates a new distributed store instance which uses raft consensus to ensure strict linearizability
// across multiple nodes.
func NewDistributedStore(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration) store.IStore {
	cs := nh.GetNoOPSession(shardID)
	return &storeImpl{
		nh:      nh,
		shardID: shardID,
		cs:      cs,
		timeout: timeout,
	}
}

// --------------------------------------------------------------------------
// Internal write and read operations (used by interface methods)
// --------------------------------------------------------------------------

// write serializes a Command and sends it via SyncPropose.
// It returns the result data of the state machine or a *store.Error.
func (s *storeImpl) write(cmd internal.Command) ([]byte, error) {
	data := cmd.Serialize()
	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)

		res, err := s.nh.SyncPropose(ctx, s.cs, data)
		cancel()

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncPropose: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(s.timeout / 10)
			continue
		}

		if err != nil {
			return nil, store.NewError(store.RetCInternalError, err.Error())
		}
		return resultData(res)
	}
	return nil, store.NewError(store.RetCInternalError, "timeout")
}

// resultData converts the result of the state machine into its data or a *store.Error.
func resultData(res sm.Result) ([]byte, error) {
	if res.Value != uint64(store.RetCSuccess) {
		return nil, store.NewError(store.RetCode(res.Value), string(res.Data))
	}
	return res.Data, nil
}

// read is a generic helper function queries the statemachine
// and attempts to convert the response into the expected type R.
//
// This function uses the SyncRead function (dragenboat) by default to Query the state machine.
// If linearizability is not required, the stale parameter can be set to true to use the faster StaleRead function.
//
// Is the read operation fails due to a system busy error, the function retries up to 5 times.
//
// It returns the response of type R and a error (nil on success).
func read[R any](r *storeImpl, q internal.Query, stale bool) (R, error) {
	var zero R
	for i := 0; i < retries; i++ {

		var res interface{}
		var err error

		// Query the statemachine, use StaleRead if stale is set otherwise use SyncRead (default)
		if stale {
			res, err = r.nh.StaleRead(r.shardID, q)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			res, err = r.nh.SyncRead(ctx, r.shardID, q)
			cancel()
		}

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncRead: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(r.timeout / 10)
			continue
		}

		if err != nil {
			return zero, store.FromError(err)
		}

		// The state machine is expected to return the response in the expected type R.
		casted, ok := res.(R)
		if !ok {
			return zero, store.NewError(store.RetCInternalError,
				fmt.Sprintf("unexpected type: received %T, expected %T", res, zero))
		}
		return casted, nil
	}
	return zero, store.NewError(store.RetCInternalError, "timeout")
}

// snapshot returns a linearizable engine snapshot of the local replica.
func (s *storeImpl) snapshot() (db.Snapshot, error) {
	return read[db.Snapshot](s, internal.Query{Type: internal.QueryTSnapshot}, false)
}

// --------------------------------------------------------------------------
// Interface Methods (docs see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Insert(path token.Path, value []byte) (db.Outcome, error) {
	if err := path.Validate(); err != nil {
		return db.OutcomeNone, store.FromError(err)
	}
	data, err := s.write(internal.Command{
		Type:  internal.CommandTInsert,
		Path:  path,
		Value: value,
	})
	if err != nil {
		return db.OutcomeNone, err
	}
	return decodeOutcome(data)
}

func (s *storeImpl) Delete(path token.Path) (db.Outcome, error) {
	if err := path.Validate(); err != nil {
		return db.OutcomeNone, store.FromError(err)
	}
	data, err := s.write(internal.Command{
		Type: internal.CommandTDelete,
		Path: path,
	})
	if err != nil {
		return db.OutcomeNone, err
	}
	return decodeOutcome(data)
}

func decodeOutcome(data []byte) (db.Outcome, error) {
	out, err := internal.DecodeOutcome(data)
	if err != nil {
		return db.OutcomeNone, store.NewError(store.RetCInternalError, err.Error())
	}
	return out, nil
}

func (s *storeImpl) Lookup(path token.Path) ([]byte, bool, error) {
	if err := path.Validate(); err != nil {
		return nil, false, store.FromError(err)
	}
	res, err := read[internal.QueryResult](s, internal.Query{
		Type: internal.QueryTLookup,
		Path: path,
	}, false)
	if err != nil {
		return nil, false, err
	}
	return res.Value, res.Found, nil
}

func (s *storeImpl) Prefix(ctx context.Context, prefix token.Path) (db.Cursor, error) {
	if err := prefix.Validate(); err != nil {
		return nil, store.FromError(err)
	}
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Prefix(ctx, prefix), nil
}

func (s *storeImpl) Match(ctx context.Context, pattern token.Pattern) (db.Cursor, error) {
	// reject invalid patterns before the read goes through raft
	if err := pattern.Validate(); err != nil {
		return nil, store.FromError(err)
	}
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	cur, err := snap.Match(ctx, pattern)
	if err != nil {
		return nil, store.FromError(err)
	}
	return cur, nil
}

func (s *storeImpl) Explore(ctx context.Context, prefix token.Path) (db.Cursor, error) {
	if err := prefix.Validate(); err != nil {
		return nil, store.FromError(err)
	}
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Children(ctx, prefix), nil
}

func (s *storeImpl) Clear() (int, error) {
	data, err := s.write(internal.Command{Type: internal.CommandTClear})
	if err != nil {
		return 0, err
	}
	n, err := internal.DecodeCount(data)
	if err != nil {
		return 0, store.NewError(store.RetCInternalError, err.Error())
	}
	return n, nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return read[db.DatabaseInfo](
		s,
		internal.Query{
			Type: internal.QueryTGetDBInfo,
		},
		true, // Note: allow for stale reads
	)
}

// Close does nothing: the NodeHost and the replica are owned by the caller.
func (s *storeImpl) Close() error {
	return nil
}

package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dTrie/lib/db"
	"github.com/ValentinKolb/dTrie/lib/store"
	"github.com/ValentinKolb/dTrie/lib/token"
	"github.com/ValentinKolb/dTrie/rpc/common"
	"github.com/ValentinKolb/dTrie/rpc/serializer"
	"github.com/ValentinKolb/dTrie/rpc/transport"
)

// NewRPCStore creates a new RPC store
// The function takes a shard ID, a config, a transport and a serializer as parameters
// It returns a store.IStore and an error
func NewRPCStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IStore, error) {

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &rpcStore{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcStore) Insert(path token.Path, value []byte) (db.Outcome, error) {
	resp, err := invokeRPCRequest(i.shardId, common.NewInsertRequest(path, value), i.transport, i.serializer)
	if err != nil {
		return db.OutcomeNone, err
	}
	return resp.Result.Outcome(), nil
}

func (i *rpcStore) Delete(path token.Path) (db.Outcome, error) {
	resp, err := invokeRPCRequest(i.shardId, common.NewDeleteRequest(path), i.transport, i.serializer)
	if err != nil {
		return db.OutcomeNone, err
	}
	return resp.Result.Outcome(), nil
}

func (i *rpcStore) Lookup(path token.Path) ([]byte, bool, error) {
	resp, err := invokeRPCRequest(i.shardId, common.NewLookupRequest(path), i.transport, i.serializer)
	if err != nil {
		return nil, false, err
	}
	return resp.Value, resp.Result == common.ResultFound, nil
}

func (i *rpcStore) Prefix(ctx context.Context, prefix token.Path) (db.Cursor, error) {
	return openRPCStream(ctx, i.shardId, common.NewPrefixRequest(prefix), i.transport, i.serializer)
}

func (i *rpcStore) Match(ctx context.Context, pattern token.Pattern) (db.Cursor, error) {
	return openRPCStream(ctx, i.shardId, common.NewMatchRequest(pattern), i.transport, i.serializer)
}

func (i *rpcStore) Explore(ctx context.Context, prefix token.Path) (db.Cursor, error) {
	return openRPCStream(ctx, i.shardId, common.NewExploreRequest(prefix), i.transport, i.serializer)
}

func (i *rpcStore) Clear() (int, error) {
	resp, err := invokeRPCRequest(i.shardId, common.NewClearRequest(), i.transport, i.serializer)
	if err != nil {
		return 0, err
	}
	return int(resp.Count), nil
}

// GetDBInfo returns the info of the database behind the shard, Metadata is decoded
// as generic JSON
func (i *rpcStore) GetDBInfo() (db.DatabaseInfo, error) {
	resp, err := invokeRPCRequest(i.shardId, common.NewInfoRequest(), i.transport, i.serializer)
	if err != nil {
		return db.DatabaseInfo{}, err
	}
	var info db.DatabaseInfo
	if err := json.Unmarshal(resp.Meta, &info); err != nil {
		return db.DatabaseInfo{}, fmt.Errorf("failed to decode database info: %w", err)
	}
	return info, nil
}

// Close closes the transport of the store
func (i *rpcStore) Close() error {
	return i.transport.Close()
}

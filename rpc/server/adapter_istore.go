package server

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/dTrie/lib/db"
	"github.com/ValentinKolb/dTrie/lib/store"
	"github.com/ValentinKolb/dTrie/rpc/common"
)

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(ctx context.Context, req *common.Message, s store.IStore, emit EmitFunc) *common.Message {
	// Check for nil store
	if s == nil {
		return common.NewErrorResponseCode(store.RetCInternalError, "handler: store is nil")
	}

	// Handle different message types
	switch req.MsgType {
	case common.MsgTInsert:
		out, err := s.Insert(req.Path, req.Value)
		return common.NewWriteResponse(common.MsgTInsert, out, err)
	case common.MsgTDelete:
		out, err := s.Delete(req.Path)
		return common.NewWriteResponse(common.MsgTDelete, out, err)
	case common.MsgTLookup:
		val, found, err := s.Lookup(req.Path)
		return common.NewLookupResponse(val, found, err)
	case common.MsgTPrefix:
		cur, err := s.Prefix(ctx, req.Path)
		if err != nil {
			return common.NewErrorResponse(err)
		}
		return streamCursor(cur, emit)
	case common.MsgTMatch:
		cur, err := s.Match(ctx, req.Pattern)
		if err != nil {
			return common.NewErrorResponse(err)
		}
		return streamCursor(cur, emit)
	case common.MsgTExplore:
		cur, err := s.Explore(ctx, req.Path)
		if err != nil {
			return common.NewErrorResponse(err)
		}
		return streamCursor(cur, emit)
	case common.MsgTClear:
		removed, err := s.Clear()
		return common.NewClearResponse(removed, err)
	case common.MsgTInfo:
		info, err := s.GetDBInfo()
		return common.NewInfoResponse(info, err)
	default:
		return common.NewErrorResponseCode(
			store.RetCMalformedRequest,
			fmt.Sprintf("RPC IStoreAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}

// streamCursor emits one Item record per cursor entry and returns the End record. The
// cursor is closed in any case, which releases its snapshot.
func streamCursor(cur db.Cursor, emit EmitFunc) *common.Message {
	defer cur.Close()

	var count uint64
	for cur.Next() {
		if err := emit(common.NewItemRecord(cur.Entry())); err != nil {
			return common.NewErrorResponse(err)
		}
		count++
	}
	if err := cur.Err(); err != nil {
		return common.NewErrorResponse(err)
	}
	return common.NewEndRecord(count)
}

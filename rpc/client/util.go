package client

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/dTrie/lib/db"
	"github.com/ValentinKolb/dTrie/rpc/common"
	"github.com/ValentinKolb/dTrie/rpc/serializer"
	"github.com/ValentinKolb/dTrie/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
// Used by the RPCStore with composition pattern
type rpcClientAdapter struct {
	shardId    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invokeRPCRequest is a helper function used for all RPC Clients to send requests
// It takes a shard ID, a request message, a transport layer and a serializer as parameters
// It returns a response message and an error if any occurs
// This method also checks if the response is an error response and if the type of the response is the expected type.
// Errors reported by the server are returned as *store.Error.
func invokeRPCRequest(shardId uint64, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, err
	}

	respBytes, err := transport.Send(shardId, reqBytes)
	if err != nil {
		return nil, err
	}

	resp := &common.Message{}
	if err := serializer.Deserialize(respBytes, resp); err != nil {
		return nil, fmt.Errorf("RPC IStoreAdapter - Error: %w", err)
	}

	// Check if the response is an error response
	if err := resp.AsError(); err != nil {
		return nil, err
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("RPC IStoreAdapter - Unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	return resp, nil
}

// openRPCStream sends a streaming request and returns a cursor over its Item records.
// The first record is read before returning, so a request that the server rejects
// returns its error here and not on the first call to Next.
func openRPCStream(ctx context.Context, shardId uint64, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (db.Cursor, error) {
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, err
	}

	stream, err := transport.Stream(ctx, shardId, reqBytes)
	if err != nil {
		return nil, err
	}

	cur := &remoteCursor{stream: stream, serializer: serializer}
	cur.buffered = cur.advance()
	if !cur.buffered && cur.err != nil {
		_ = cur.Close()
		return nil, cur.err
	}
	return cur, nil
}

// --------------------------------------------------------------------------
// Remote Cursor (implements db.Cursor)
// --------------------------------------------------------------------------

// remoteCursor reads the records of a streaming response. Like local cursors it is
// lazy: records are requested from the stream one at a time. It cannot be reset since
// the server does not keep the snapshot after the stream ended.
type remoteCursor struct {
	stream     transport.IRPCStream
	serializer serializer.IRPCSerializer
	entry      db.Entry
	err        error
	done       bool
	buffered   bool // entry was read ahead by openRPCStream
	items      uint64
}

func (c *remoteCursor) Next() bool {
	if c.buffered {
		c.buffered = false
		return true
	}
	return c.advance()
}

// advance reads the next record into entry
func (c *remoteCursor) advance() bool {
	if c.done {
		return false
	}

	data, last, err := c.stream.Recv()
	if err != nil {
		c.finish(err)
		return false
	}

	// a new message per record, entries must stay valid after the next call
	var msg common.Message
	if err := c.serializer.Deserialize(data, &msg); err != nil {
		c.finish(fmt.Errorf("failed to deserialize record: %w", err))
		return false
	}

	if last {
		switch {
		case msg.MsgType == common.MsgTEnd && msg.Count != c.items:
			c.finish(fmt.Errorf("stream ended after %d items, server sent %d", c.items, msg.Count))
		case msg.MsgType == common.MsgTEnd:
			c.finish(nil)
		default:
			err := msg.AsError()
			if err == nil {
				err = fmt.Errorf("unexpected final record of type %s", msg.MsgType)
			}
			c.finish(err)
		}
		return false
	}

	if msg.MsgType != common.MsgTItem {
		c.finish(fmt.Errorf("unexpected record of type %s", msg.MsgType))
		return false
	}

	c.entry = db.Entry{Path: msg.Path, Value: msg.Value, Bindings: msg.Bindings}
	c.items++
	return true
}

func (c *remoteCursor) finish(err error) {
	c.done = true
	c.err = err
	c.entry = db.Entry{}
	_ = c.stream.Close()
}

func (c *remoteCursor) Entry() db.Entry {
	return c.entry
}

func (c *remoteCursor) Err() error {
	return c.err
}

// Close stops the stream, an unfinished request is cancelled on the server
func (c *remoteCursor) Close() error {
	c.done = true
	c.buffered = false
	return c.stream.Close()
}

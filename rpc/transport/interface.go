package transport

import (
	"context"
	"errors"

	"github.com/ValentinKolb/dTrie/rpc/common"
)

// ErrServerClosed is returned by IRPCServerTransport.Listen after Shutdown was called
var ErrServerClosed = errors.New("transport: server closed")

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// EmitFunc sends one intermediate record of a streaming response to the client.
// It blocks until the record is handed to the connection and returns an error if the
// request was cancelled or the connection failed, the handler must stop producing records then.
type EmitFunc func(item []byte) error

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received.
// It takes the request context, a shardId, the request and an emit function for
// intermediate records as parameters and returns the final response record.
// The context is cancelled if the client cancels the request, the connection breaks
// or the server shuts down.
type ServerHandleFunc func(ctx context.Context, shardId uint64, req []byte, emit EmitFunc) (resp []byte)

// IRPCServerTransport is the interface for the RPC transport layer
// It must accept a ServerConfig as a parameter
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	// The transport layer is responsible for routing the request to the appropriate shard
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and listens for incoming requests.
	// It blocks until the transport fails or Shutdown is called (then ErrServerClosed is returned)
	Listen(config common.ServerConfig) error
	// Shutdown stops accepting connections and waits for in-flight requests to finish.
	// When ctx expires first, the remaining requests are cancelled and their connections
	// closed, ctx.Err() is returned in that case
	Shutdown(ctx context.Context) error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCStream is the client side of a streaming response
type IRPCStream interface {
	// Recv returns the next record. last is true for the final record of the response,
	// after it Recv returns io.EOF.
	Recv() (data []byte, last bool, err error)
	// Close releases the stream. If the final record was not received yet, the server
	// is asked to cancel the request
	Close() error
}

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request to the server and returns the response
	Send(shardId uint64, req []byte) (resp []byte, err error)
	// Stream sends a request whose response consists of any number of records.
	// Cancelling ctx cancels the request on the server
	Stream(ctx context.Context, shardId uint64, req []byte) (IRPCStream, error)
	// Close closes the transport connection
	Close() error
}

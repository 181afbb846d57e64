package server

import (
	"context"

	"github.com/ValentinKolb/dTrie/lib/store"
	"github.com/ValentinKolb/dTrie/rpc/common"
)

// EmitFunc sends an intermediate record of a streaming response
type EmitFunc func(item *common.Message) error

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response
	// It takes the request context, a Message, a store and an emit function as parameters.
	// Streaming requests send their items with emit and return the final record,
	// the handler stops as soon as ctx is cancelled or emit fails.
	// If an error occurs, it should be set in the response
	Handle(ctx context.Context, req *common.Message, store store.IStore, emit EmitFunc) (resp *common.Message)
}

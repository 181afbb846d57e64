package server

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/dTrie/lib/db"
	"github.com/ValentinKolb/dTrie/lib/db/engines/cow"
	"github.com/ValentinKolb/dTrie/lib/store"
	"github.com/ValentinKolb/dTrie/lib/store/dstore"
	"github.com/ValentinKolb/dTrie/lib/store/lstore"
	"github.com/ValentinKolb/dTrie/rpc/common"
	"github.com/ValentinKolb/dTrie/rpc/serializer"
	"github.com/ValentinKolb/dTrie/rpc/transport"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// serverShard is a struct that represents a shard (space) in the RPC server
// It contains the store it encapsulates and the adapter that handles requests for the store
type serverShard struct {
	Store   store.IStore
	Adapter IRPCServerAdapter
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	go func() {
//		<-ctx.Done()
//		s.Shutdown(context.Background())
//	}()
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *rpcServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &rpcServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     xsync.NewMapOf[uint64, serverShard](),
	}
}

type rpcServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]
	nodeHost   *dragonboat.NodeHost

	closeOnce sync.Once
}

// --------------------------------------------------------------------------
// Request handling
// --------------------------------------------------------------------------

// handle decodes a request, lets the adapter of the shard process it and encodes the
// final record. Items of streaming requests are encoded and emitted as they are produced.
func (s *rpcServer) handle(ctx context.Context, shardId uint64, req []byte, emit transport.EmitFunc) []byte {
	var msg common.Message
	var resp *common.Message
	start := time.Now()

	shard, ok := s.shards.Load(shardId)
	if !ok {
		resp = common.NewErrorResponseCode(store.RetCMalformedRequest, fmt.Sprintf("shard %d not found", shardId))
	} else if err := s.serializer.Deserialize(req, &msg); err != nil {
		resp = common.NewErrorResponseCode(store.RetCMalformedRequest, fmt.Sprintf("failed to deserialize request: %s", err))
	} else {
		if msg.MsgType.IsStreaming() {
			openStreams.Inc()
			defer openStreams.Dec()
		}

		resp = shard.Adapter.Handle(ctx, &msg, shard.Store, func(item *common.Message) error {
			data, err := s.serializer.Serialize(*item)
			if err != nil {
				return fmt.Errorf("failed to serialize item: %w", err)
			}
			if err := emit(data); err != nil {
				return err
			}
			streamedItems.Inc()
			return nil
		})
	}

	// requests that could not be decoded are reported as unknown
	metricsFor(msg.MsgType).observe(start, resp)

	data, err := s.serializer.Serialize(*resp)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		data, _ = s.serializer.Serialize(*common.NewErrorResponseCode(
			store.RetCInternalError,
			fmt.Sprintf("failed to serialize response: %s", err),
		))
	}
	return data
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func (s *rpcServer) init() error {
	if err := common.InitLoggers(s.config.LogLevel); err != nil {
		return err
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(s.config.String())

	// Create the Dragonboat NodeHost only if we have remote shards
	if s.config.HasRemoteShard() {
		nodeHost, err := dragonboat.NewNodeHost(s.config.ToNodeHostConfig())
		if err != nil {
			return fmt.Errorf("failed to create node host: %w", err)
		}
		s.nodeHost = nodeHost
	}

	// Configure the timeout for the distributed store
	timeout := time.Duration(s.config.TimeoutSecond) * time.Second

	/*
		Note: A single RPC Server can have any number of remote and or local shards.
		Each shard is a space of paths backed by its own trie, the loop creates all
		of them and stores them for the RPC server.
	*/

	for _, shardConfig := range s.config.Shards {
		opts := &cow.DBOptions{KeysOnly: shardConfig.KeysOnly}
		dbFactory := func() db.PathDB { return cow.NewCowDB(opts) }

		switch shardConfig.Type {
		case common.ShardTypeLocalIStore:
			s.shards.Store(shardConfig.ShardID, serverShard{
				Store:   lstore.NewLocalStore(dbFactory),
				Adapter: NewIStoreServerAdapter(),
			})
			Logger.Infof("created local store %s for shard %d", shardConfig, shardConfig.ShardID)

		case common.ShardTypeRemoteIStore:
			if s.nodeHost == nil {
				return fmt.Errorf("node host is nil, cannot create remote store")
			}

			// Start Raft for the shard
			if err := s.nodeHost.StartConcurrentReplica(
				s.config.ClusterMembers,
				false,
				dstore.CreateStateMaschineFactory(dbFactory),
				s.config.ToDragonboatConfig(shardConfig.ShardID),
			); err != nil {
				return fmt.Errorf("failed to start shard %d: %w", shardConfig.ShardID, err)
			}

			s.shards.Store(shardConfig.ShardID, serverShard{
				Store:   dstore.NewDistributedStore(s.nodeHost, shardConfig.ShardID, timeout),
				Adapter: NewIStoreServerAdapter(),
			})
			Logger.Infof("created distributed store %s for shard %d", shardConfig, shardConfig.ShardID)

		default:
			return fmt.Errorf("invalid shard type: %s", shardConfig.Type)
		}
	}

	Logger.Infof("dTrie setup completed successfully")

	// Configure the transport layer
	s.transport.RegisterHandler(s.handle)

	return nil
}

// Serve starts the RPC server
// This function will also initialize the server plus the shards and start the transport layer.
// It blocks until Shutdown is called (then nil is returned) or the transport fails.
func (s *rpcServer) Serve() error {
	if err := s.init(); err != nil {
		s.closeShards()
		return err
	}
	err := s.transport.Listen(s.config)
	if errors.Is(err, transport.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections, waits for in-flight requests and closes all shards.
// Requests still running when ctx expires are cancelled.
func (s *rpcServer) Shutdown(ctx context.Context) error {
	Logger.Infof("Shutting down RPC Server")
	err := s.transport.Shutdown(ctx)
	s.closeShards()
	return err
}

func (s *rpcServer) closeShards() {
	s.closeOnce.Do(func() {
		s.shards.Range(func(shardId uint64, shard serverShard) bool {
			if err := shard.Store.Close(); err != nil {
				Logger.Warningf("failed to close shard %d: %v", shardId, err)
			}
			return true
		})
		s.shards.Clear()
		if s.nodeHost != nil {
			s.nodeHost.Close()
		}
	})
}

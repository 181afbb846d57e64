package base

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dTrie/rpc/common"
	"github.com/ValentinKolb/dTrie/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector         IServerConnector
	handler           transport.ServerHandleFunc
	config            common.ServerConfig
	bufferPool        *sync.Pool
	maxWorkersPerConn int

	// baseCtx is the parent of all connection contexts, it is cancelled when a
	// Shutdown runs out of time
	baseCtx    context.Context
	cancelBase context.CancelFunc

	mu       sync.Mutex // Protects listener and conns
	listener net.Listener
	conns    map[*serverConn]struct{}
	closing  atomic.Bool
	connWg   sync.WaitGroup

	activeConns    *metrics.Counter
	cancelledTotal *metrics.Counter
}

// serverConn is one client session. Requests of a session are processed concurrently
// by up to maxWorkersPerConn workers, frames are written under writeMu.
type serverConn struct {
	id       string
	conn     net.Conn
	ctx      context.Context
	cancel   context.CancelFunc
	requests *xsync.MapOf[uint64, context.CancelFunc] // in-flight requests by requestID
	workers  chan struct{}                            // counting semaphore
	wg       sync.WaitGroup
	writeMu  sync.Mutex
	timeout  time.Duration
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport. Requests are read into
// pooled buffers of bufferSize bytes, larger requests allocate their own buffer.
func NewBaseServerTransport(connector IServerConnector, bufferSize int) transport.IRPCServerTransport {
	bufferSize = max(bufferSize, frameHeaderSize)
	baseCtx, cancel := context.WithCancel(context.Background())
	return &serverTransport{
		connector:  connector,
		baseCtx:    baseCtx,
		cancelBase: cancel,
		conns:      make(map[*serverConn]struct{}),
		bufferPool: &sync.Pool{
			New: func() interface{} {
				return make([]byte, bufferSize)
			},
		},
		activeConns:    metrics.GetOrCreateCounter(fmt.Sprintf(`dtrie_transport_connections_active{transport=%q}`, connector.GetName())),
		cancelledTotal: metrics.GetOrCreateCounter(fmt.Sprintf(`dtrie_transport_requests_cancelled_total{transport=%q}`, connector.GetName())),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}
	t.config = config
	// minimum one worker per connection
	t.maxWorkersPerConn = max(1, config.Transport.WorkersPerConn)

	// Create listener using the connector
	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	t.mu.Lock()
	if t.closing.Load() {
		t.mu.Unlock()
		_ = listener.Close()
		return transport.ErrServerClosed
	}
	t.listener = listener
	t.mu.Unlock()

	Logger.Infof("Starting %s server on %s with %d workers per connection",
		t.connector.GetName(), listener.Addr(), t.maxWorkersPerConn)

	// Accept connections
	var backoff time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if t.closing.Load() {
				return transport.ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			// temporary failure (e.g. too many open files), retry with backoff
			backoff = min(max(2*backoff, 5*time.Millisecond), time.Second)
			Logger.Errorf("Accept error: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		if err := t.connector.UpgradeConnection(conn, config); err != nil {
			Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
			_ = conn.Close()
			continue
		}

		sc := t.addConn(conn)
		if sc == nil {
			_ = conn.Close()
			return transport.ErrServerClosed
		}

		// Handle the connection in a goroutine
		go t.handleConnection(sc)
	}
}

func (t *serverTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.closing.Store(true)
	var err error
	if t.listener != nil {
		err = t.listener.Close()
	}
	// unblock the readers, in-flight requests keep running
	for sc := range t.conns {
		_ = sc.conn.SetReadDeadline(time.Now())
	}
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.connWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.cancelBase()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
		return err
	case <-ctx.Done():
		Logger.Warningf("Shutdown deadline exceeded, cancelling remaining requests")
		t.cancelBase()
		t.mu.Lock()
		for sc := range t.conns {
			_ = sc.conn.Close()
		}
		t.mu.Unlock()
		<-done
		return ctx.Err()
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// addConn registers a new session, it returns nil if the server is shutting down
func (t *serverTransport) addConn(conn net.Conn) *serverConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closing.Load() {
		return nil
	}

	ctx, cancel := context.WithCancel(t.baseCtx)
	sc := &serverConn{
		id:       uuid.NewString(),
		conn:     conn,
		ctx:      ctx,
		cancel:   cancel,
		requests: xsync.NewMapOf[uint64, context.CancelFunc](),
		workers:  make(chan struct{}, t.maxWorkersPerConn),
		timeout:  time.Duration(t.config.TimeoutSecond) * time.Second,
	}
	t.conns[sc] = struct{}{}
	t.connWg.Add(1)
	t.activeConns.Inc()
	return sc
}

func (t *serverTransport) removeConn(sc *serverConn) {
	t.mu.Lock()
	delete(t.conns, sc)
	t.mu.Unlock()
	t.activeConns.Dec()
	t.connWg.Done()
}

// handleConnection reads the frames of one session and dispatches them to workers
func (t *serverTransport) handleConnection(sc *serverConn) {
	defer t.removeConn(sc)
	defer sc.conn.Close()

	Logger.Debugf("Session %s opened by %s", sc.id, sc.conn.RemoteAddr())

loop:
	for {
		// Get a buffer from the pool
		buf := t.bufferPool.Get().([]byte)

		shardID, requestID, kind, data, err := readFrame(sc.conn, buf)
		if err != nil {
			t.bufferPool.Put(buf)
			switch {
			case errors.Is(err, io.EOF):
				Logger.Debugf("Session %s closed by client", sc.id)
			case t.closing.Load() || sc.ctx.Err() != nil:
				// reader was stopped by a shutdown or a failed write
			default:
				Logger.Errorf("Session %s: error reading frame: %v", sc.id, err)
			}
			break loop
		}

		if kind == frameCancel {
			t.bufferPool.Put(buf)
			if cancel, ok := sc.requests.LoadAndDelete(requestID); ok {
				t.cancelledTotal.Inc()
				cancel()
			}
			continue
		}
		if kind != frameLast {
			t.bufferPool.Put(buf)
			Logger.Warningf("Session %s: ignoring frame of unexpected kind %d for request %d", sc.id, kind, requestID)
			continue
		}

		// Acquire a slot in the semaphore (blocks if maxWorkersPerConn is reached).
		// Not reading further frames while all workers are busy pushes back on the client.
		select {
		case sc.workers <- struct{}{}:
		case <-sc.ctx.Done():
			t.bufferPool.Put(buf)
			break loop
		}

		reqCtx, cancel := context.WithCancel(sc.ctx)
		sc.requests.Store(requestID, cancel)
		sc.wg.Add(1)

		go func() {
			defer func() {
				sc.requests.Delete(requestID)
				cancel()
				t.bufferPool.Put(buf)
				<-sc.workers // Release semaphore slot
				sc.wg.Done()
			}()
			t.serveRequest(reqCtx, sc, shardID, requestID, data)
		}()
	}

	// A closed connection cancels its requests, during a shutdown they may finish
	if !t.closing.Load() {
		sc.cancel()
	}
	sc.wg.Wait()
	sc.cancel()
}

// serveRequest runs the handler for one request and writes its records
func (t *serverTransport) serveRequest(ctx context.Context, sc *serverConn, shardID, requestID uint64, data []byte) {
	start := time.Now()

	emit := func(item []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return sc.write(shardID, requestID, frameMore, item)
	}

	resp := t.handler(ctx, shardID, data, emit)

	// the client is gone or does not want the response anymore
	if ctx.Err() != nil {
		Logger.Debugf("Request %d of session %s cancelled after %s", requestID, sc.id, time.Since(start))
		return
	}

	if err := sc.write(shardID, requestID, frameLast, resp); err != nil {
		Logger.Errorf("Session %s: failed to write response: %v", sc.id, err)
		return
	}
	Logger.Debugf("Processed request for shard %d with requestID %d took %s", shardID, requestID, time.Since(start))
}

// write sends one frame. A failed write breaks the session: its context is cancelled and
// the connection closed.
func (c *serverConn) write(shardID, requestID uint64, kind frameKind, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ctx.Err(); err != nil {
		return err
	}

	if c.timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			c.fail()
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	if err := writeFrame(c.conn, shardID, requestID, kind, data); err != nil {
		c.fail()
		return err
	}
	return nil
}

func (c *serverConn) fail() {
	c.cancel()
	_ = c.conn.Close()
}

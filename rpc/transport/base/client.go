package base

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dTrie/rpc/common"
	"github.com/ValentinKolb/dTrie/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

const (
	// streamBufferFrames is the number of records buffered per stream before the reader
	// of the connection blocks
	streamBufferFrames = 64
	reconnectAttempts  = 5
)

var errConnClosed = errors.New("connection is closed")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection based on the provided configuration
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// responseFrame is one record received for a request
type responseFrame struct {
	data []byte
	last bool
}

// pendingRequest is the receiving side of a request
type pendingRequest struct {
	frames   chan responseFrame
	done     chan struct{} // closed when the caller stops listening
	failed   chan struct{} // closed when the connection broke
	failOnce sync.Once
	err      error
}

func newPendingRequest(buffer int) *pendingRequest {
	return &pendingRequest{
		frames: make(chan responseFrame, buffer),
		done:   make(chan struct{}),
		failed: make(chan struct{}),
	}
}

func (p *pendingRequest) fail(err error) {
	p.failOnce.Do(func() {
		p.err = err
		close(p.failed)
	})
}

// clientConnection represents a single net connection
type clientConnection struct {
	conn     net.Conn
	endpoint string
	stopCh   chan struct{} // Close signal for the reader goroutine
	requests *xsync.MapOf[uint64, *pendingRequest]
	connMu   sync.Mutex // Protects the connection itself
	parent   *clientTransport
}

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector     IClientConnector
	config        common.ClientConfig
	connections   []*clientConnection
	connectionsMu sync.RWMutex
	readers       sync.WaitGroup
	nextConnIndex atomic.Uint64 // Counter for Round Robin
	nextRequestID atomic.Uint64 // Counter for unique request IDs
	stopping      atomic.Bool   // Signals shutdown
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	// Close all existing connections
	t.closeConnections()

	t.config = config
	t.stopping.Store(false)

	connectionsPerEP := max(1, config.Transport.ConnectionsPerEndpoint)

	t.connectionsMu.Lock()
	defer t.connectionsMu.Unlock()
	t.connections = make([]*clientConnection, 0, len(config.Transport.Endpoints)*connectionsPerEP)

	for _, endpoint := range config.Transport.Endpoints {
		// Create multiple connections per endpoint
		for i := 0; i < connectionsPerEP; i++ {
			clientConn := &clientConnection{
				endpoint: endpoint,
				stopCh:   make(chan struct{}),
				requests: xsync.NewMapOf[uint64, *pendingRequest](),
				parent:   t,
			}

			// Establish the initial connection using reconnect
			if err := clientConn.reconnect(); err != nil {
				Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i+1, connectionsPerEP, err)
				continue
			}

			t.connections = append(t.connections, clientConn)
			Logger.Debugf("Connected to %s (connection %d/%d)", endpoint, i+1, connectionsPerEP)

			// Start the response reader
			t.readers.Add(1)
			go clientConn.readResponses()
		}
	}

	// Check if we have at least one connection
	if len(t.connections) == 0 {
		return fmt.Errorf("failed to connect to any endpoint")
	}

	Logger.Debugf("Connected to %d out of %d connections to %d endpoints using %s transport",
		len(t.connections), len(config.Transport.Endpoints)*connectionsPerEP, len(config.Transport.Endpoints), t.connector.GetName())

	return nil
}

func (t *clientTransport) Send(shardId uint64, req []byte) ([]byte, error) {
	var data []byte
	err := t.withRetries(func(conn *clientConnection) error {
		var err error
		data, err = conn.roundTrip(shardId, t.nextRequestID.Add(1), req, t.timeout())
		return err
	})
	return data, err
}

func (t *clientTransport) Stream(ctx context.Context, shardId uint64, req []byte) (transport.IRPCStream, error) {
	var stream *clientStream
	// only opening the stream is retried, records that were received can not be replayed
	err := t.withRetries(func(conn *clientConnection) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		requestID := t.nextRequestID.Add(1)
		pending := conn.register(requestID, streamBufferFrames)
		if err := conn.write(shardId, requestID, frameLast, req, t.timeout()); err != nil {
			conn.unregister(requestID, pending)
			return err
		}
		stream = &clientStream{
			conn:      conn,
			shardID:   shardId,
			requestID: requestID,
			pending:   pending,
			ctx:       ctx,
			timeout:   t.timeout(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (t *clientTransport) Close() error {
	t.stopping.Store(true)
	t.closeConnections()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (t *clientTransport) timeout() time.Duration {
	return time.Duration(t.config.TimeoutSecond) * time.Second
}

// withRetries calls fn with the next connection until it succeeds, using exponential backoff
func (t *clientTransport) withRetries(fn func(conn *clientConnection) error) error {
	var lastErr error

	// We always try at least once, and up to maxRetries times
	maxRetries := max(1, t.config.Transport.RetryCount)

	// Initial backoff duration in milliseconds
	backoffMs := 50

	for i := 0; i < maxRetries; i++ {
		conn := t.getNextConnection()
		if conn == nil {
			return fmt.Errorf("no active connections available")
		}

		err := fn(conn)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		lastErr = err
		Logger.Debugf("Request attempt %d/%d failed: %v", i+1, maxRetries, err)

		if i < maxRetries-1 {
			// Exponential backoff with a small random jitter (+-10%)
			jitter := float64(backoffMs) * (0.9 + 0.2*rand.Float64())
			time.Sleep(time.Duration(jitter) * time.Millisecond)
			backoffMs *= 2
		}
	}

	// All attempts failed
	return fmt.Errorf("failed to send request after %d attempts: %w", maxRetries, lastErr)
}

// getNextConnection selects the next connection via Round Robin
func (t *clientTransport) getNextConnection() *clientConnection {
	t.connectionsMu.RLock()
	defer t.connectionsMu.RUnlock()

	if len(t.connections) == 0 {
		return nil
	}

	// optimize for single connection
	if len(t.connections) == 1 {
		return t.connections[0]
	}
	return t.connections[t.nextConnIndex.Add(1)%uint64(len(t.connections))]
}

// closeConnections closes all active connections and waits for their readers
func (t *clientTransport) closeConnections() {
	t.connectionsMu.Lock()
	for _, conn := range t.connections {
		// Signal reader goroutine to stop
		close(conn.stopCh)

		conn.connMu.Lock()
		if conn.conn != nil {
			_ = conn.conn.Close()
		}
		conn.connMu.Unlock()
	}
	t.connections = nil
	t.connectionsMu.Unlock()

	t.readers.Wait()
}

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

func (c *clientConnection) register(requestID uint64, buffer int) *pendingRequest {
	p := newPendingRequest(buffer)
	c.requests.Store(requestID, p)
	return p
}

func (c *clientConnection) unregister(requestID uint64, p *pendingRequest) {
	c.requests.Delete(requestID)
	close(p.done)
}

// write sends one frame on the connection
func (c *clientConnection) write(shardID, requestID uint64, kind frameKind, data []byte, timeout time.Duration) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return errConnClosed
	}
	if timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	return writeFrame(c.conn, shardID, requestID, kind, data)
}

// roundTrip sends a request and waits for its single response record
func (c *clientConnection) roundTrip(shardID, requestID uint64, req []byte, timeout time.Duration) ([]byte, error) {
	pending := c.register(requestID, 1)
	defer c.unregister(requestID, pending)

	if err := c.write(shardID, requestID, frameLast, req, timeout); err != nil {
		return nil, err
	}

	// Wait for response or timeout
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	frame, err := pending.next(nil, timeoutCh)
	if err != nil {
		return nil, err
	}
	if !frame.last {
		return nil, fmt.Errorf("received a streamed record for a unary request")
	}
	return frame.data, nil
}

// next waits for the next record of a request
func (p *pendingRequest) next(cancel <-chan struct{}, timeoutCh <-chan time.Time) (responseFrame, error) {
	// a cancelled stream stops even if records are buffered
	select {
	case <-cancel:
		return responseFrame{}, context.Canceled
	default:
	}

	select {
	case f := <-p.frames:
		return f, nil
	case <-p.failed:
		// records that arrived before the failure are still delivered
		select {
		case f := <-p.frames:
			return f, nil
		default:
			return responseFrame{}, p.err
		}
	case <-cancel:
		return responseFrame{}, context.Canceled
	case <-timeoutCh:
		return responseFrame{}, fmt.Errorf("request timed out")
	}
}

// readResponses reads responses in a loop and distributes them to waiting requests
func (c *clientConnection) readResponses() {
	defer c.parent.readers.Done()

	for {
		// Check if we should stop
		select {
		case <-c.stopCh:
			c.failAll(errConnClosed)
			return
		default:
		}

		_, requestID, kind, data, err := readFrame(c.conn, nil)
		if err != nil {
			select {
			case <-c.stopCh:
				c.failAll(errConnClosed)
				return
			default:
			}

			Logger.Warningf("Error reading from %s: %v", c.endpoint, err)
			c.failAll(fmt.Errorf("error reading response: %w", err))

			// Try to restore the connection
			if err := c.reconnectWithBackoff(); err != nil {
				Logger.Errorf("Failed to reconnect to %s: %v", c.endpoint, err)
				return
			}
			continue
		}

		pending, found := c.requests.Load(requestID)
		if !found {
			// records of cancelled streams may still arrive
			Logger.Debugf("Dropping record for unknown request ID %d", requestID)
			continue
		}

		select {
		case pending.frames <- responseFrame{data: data, last: kind == frameLast}:
		case <-pending.done:
		case <-c.stopCh:
		}
	}
}

// failAll fails all requests waiting on this connection
func (c *clientConnection) failAll(err error) {
	c.requests.Range(func(_ uint64, p *pendingRequest) bool {
		p.fail(err)
		return true
	})
}

// reconnectWithBackoff retries reconnect until it succeeds, the attempts are used up or
// the connection is closed
func (c *clientConnection) reconnectWithBackoff() error {
	backoff := 50 * time.Millisecond
	var err error
	for i := 0; i < reconnectAttempts; i++ {
		if err = c.reconnect(); err == nil {
			return nil
		}
		select {
		case <-c.stopCh:
			return errConnClosed
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	c.connMu.Lock()
	c.conn = nil
	c.connMu.Unlock()
	return err
}

// reconnect establishes or restores a connection to the endpoint
func (c *clientConnection) reconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	// Close the old connection if it exists
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	conn, err := c.parent.connector.Connect(c.endpoint)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.endpoint, err)
	}

	// Upgrade the connection with protocol-specific settings
	if err := c.parent.connector.UpgradeConnection(conn, c.parent.config); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to upgrade connection to %s: %w", c.endpoint, err)
	}

	c.conn = conn
	return nil
}

// --------------------------------------------------------------------------
// Stream (implements transport.IRPCStream)
// --------------------------------------------------------------------------

type clientStream struct {
	conn      *clientConnection
	shardID   uint64
	requestID uint64
	pending   *pendingRequest
	ctx       context.Context
	timeout   time.Duration
	finished  atomic.Bool
	closeOnce sync.Once
}

func (s *clientStream) Recv() ([]byte, bool, error) {
	if s.finished.Load() {
		return nil, false, io.EOF
	}

	var timeoutCh <-chan time.Time
	if s.timeout > 0 {
		timer := time.NewTimer(s.timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	frame, err := s.pending.next(s.ctx.Done(), timeoutCh)
	if err != nil {
		if ctxErr := s.ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		s.release(true)
		return nil, false, err
	}
	if frame.last {
		s.release(false)
	}
	return frame.data, frame.last, nil
}

func (s *clientStream) Close() error {
	s.release(true)
	return nil
}

// release unregisters the stream, cancel asks the server to stop the request
func (s *clientStream) release(cancel bool) {
	s.closeOnce.Do(func() {
		s.finished.Store(true)
		s.conn.unregister(s.requestID, s.pending)
		if !cancel {
			return
		}
		if err := s.conn.write(s.shardID, s.requestID, frameCancel, nil, s.timeout); err != nil {
			Logger.Debugf("Failed to cancel request %d: %v", s.requestID, err)
		}
	})
}

package http

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ValentinKolb/dTrie/rpc/common"
	"github.com/ValentinKolb/dTrie/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/rpc")

var activeRequests = metrics.GetOrCreateCounter(`dtrie_transport_requests_active{transport="http"}`)

func NewHttpServerTransport() transport.IRPCServerTransport {
	baseCtx, cancel := context.WithCancel(context.Background())
	return &httpServerTransport{
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
}

type httpServerTransport struct {
	handler transport.ServerHandleFunc
	config  common.ServerConfig

	// baseCtx is the parent of all request contexts
	baseCtx    context.Context
	cancelBase context.CancelFunc

	mu      sync.Mutex
	server  *http.Server
	closing bool
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *httpServerTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *httpServerTransport) Listen(config common.ServerConfig) error {
	t.config = config

	mux := http.NewServeMux()
	if t.config.LogLevel == "debug" {
		mux.HandleFunc("POST /{shardId}", loggerMiddleware(t.handleRequest))
	} else {
		mux.HandleFunc("POST /{shardId}", t.handleRequest)
	}

	server := &http.Server{
		Addr:              config.Transport.Endpoint,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return t.baseCtx
		},
	}

	t.mu.Lock()
	if t.closing {
		t.mu.Unlock()
		return transport.ErrServerClosed
	}
	t.server = server
	t.mu.Unlock()

	Logger.Infof("Starting HTTP server on %s", config.Transport.Endpoint)

	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return transport.ErrServerClosed
	}
	return err
}

func (t *httpServerTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.closing = true
	server := t.server
	t.mu.Unlock()

	if server == nil {
		t.cancelBase()
		return nil
	}

	err := server.Shutdown(ctx)
	// cancels the requests that are still running
	t.cancelBase()
	if err != nil {
		_ = server.Close()
	}
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleRequest handles incoming HTTP requests. The response body is a sequence of
// records (see writeRecord), every record is flushed on its own.
func (t *httpServerTransport) handleRequest(w http.ResponseWriter, r *http.Request) {
	activeRequests.Inc()
	defer activeRequests.Dec()

	shardId, err := strconv.ParseUint(r.PathValue("shardId"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid shardId", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestSize))
	defer r.Body.Close()
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	rc := http.NewResponseController(w)
	timeout := time.Duration(t.config.TimeoutSecond) * time.Second
	w.Header().Set("Content-Type", "application/octet-stream")

	write := func(kind recordKind, data []byte) error {
		if timeout > 0 {
			// not every ResponseWriter supports deadlines
			if err := rc.SetWriteDeadline(time.Now().Add(timeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
				return err
			}
		}
		if err := writeRecord(w, kind, data); err != nil {
			return err
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
		return nil
	}

	emit := func(item []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return write(recordMore, item)
	}

	resp := t.handler(ctx, shardId, body, emit)
	if ctx.Err() != nil {
		return
	}
	if err := write(recordLast, resp); err != nil {
		Logger.Errorf("Failed to write response: %v", err)
	}
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap gives http.ResponseController access to the flusher and deadlines
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	}
}

package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dTrie/rpc/common"
	"github.com/ValentinKolb/dTrie/rpc/transport"
)

func NewHttpClientTransport() transport.IRPCClientTransport {
	return &httpClientTransport{}
}

type httpClientTransport struct {
	serverURLs []*url.URL
	client     *http.Client
	counter    atomic.Uint32
	retryCount int
	timeout    time.Duration
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *httpClientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	// Parse each server URL, plain host:port endpoints are served over http
	parsedURLs := make([]*url.URL, len(config.Transport.Endpoints))
	for i, server := range config.Transport.Endpoints {
		if !strings.Contains(server, "://") {
			server = "http://" + server
		}
		parsedURL, err := url.Parse(server)
		if err != nil {
			return err
		}
		parsedURLs[i] = parsedURL
	}

	t.timeout = time.Duration(config.TimeoutSecond) * time.Second

	// No client timeout, streams may run for a long time. Unary requests use a context
	t.client = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   max(10, config.Transport.ConnectionsPerEndpoint),
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: t.timeout,
			WriteBufferSize:       config.Transport.WriteBufferSize,
			ReadBufferSize:        config.Transport.ReadBufferSize,
		},
	}
	t.serverURLs = parsedURLs
	t.retryCount = max(1, config.Transport.RetryCount)

	return nil
}

func (t *httpClientTransport) Send(shardId uint64, req []byte) ([]byte, error) {
	ctx := context.Background()
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	httpResponse, err := t.post(ctx, shardId, req)
	if err != nil {
		return nil, err
	}
	defer httpResponse.Body.Close()

	kind, data, err := readRecord(httpResponse.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if kind != recordLast {
		return nil, fmt.Errorf("received a streamed record for a unary request")
	}
	return data, nil
}

func (t *httpClientTransport) Stream(ctx context.Context, shardId uint64, req []byte) (transport.IRPCStream, error) {
	httpResponse, err := t.post(ctx, shardId, req)
	if err != nil {
		return nil, err
	}
	return &httpStream{body: httpResponse.Body, ctx: ctx}, nil
}

func (t *httpClientTransport) Close() error {
	if t.client != nil {
		t.client.CloseIdleConnections()
	}
	t.client = nil
	t.serverURLs = nil
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// post sends the request to the next server (round-robin) and retries with backoff
func (t *httpClientTransport) post(ctx context.Context, shardId uint64, req []byte) (*http.Response, error) {
	if t.client == nil {
		return nil, fmt.Errorf("http transport not initialized")
	}

	var lastErr error
	backoffMs := 50
	for i := 0; i < t.retryCount; i++ {
		idx := t.counter.Add(1) % uint32(len(t.serverURLs))
		requestURL := fmt.Sprintf("%s/%d", strings.TrimSuffix(t.serverURLs[idx].String(), "/"), shardId)

		// a new request per attempt, the body reader is consumed by a failed attempt
		httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(req))
		if err != nil {
			return nil, err
		}
		httpRequest.Header.Set("Content-Type", "application/octet-stream")

		httpResponse, err := t.client.Do(httpRequest)
		if err == nil {
			if httpResponse.StatusCode == http.StatusOK {
				return httpResponse, nil
			}
			msg, _ := io.ReadAll(io.LimitReader(httpResponse.Body, 1024))
			_ = httpResponse.Body.Close()
			// the server rejected the request, retrying does not help
			return nil, fmt.Errorf("http error: %s: %s", httpResponse.Status, strings.TrimSpace(string(msg)))
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err

		if i < t.retryCount-1 {
			jitter := float64(backoffMs) * (0.9 + 0.2*rand.Float64())
			time.Sleep(time.Duration(jitter) * time.Millisecond)
			backoffMs *= 2
		}
	}
	return nil, fmt.Errorf("failed to send request after %d attempts: %w", t.retryCount, lastErr)
}

// httpStream reads the records of a response body
type httpStream struct {
	body      io.ReadCloser
	ctx       context.Context
	finished  bool
	closeOnce sync.Once
}

func (s *httpStream) Recv() ([]byte, bool, error) {
	if s.finished {
		return nil, false, io.EOF
	}
	kind, data, err := readRecord(s.body)
	if err != nil {
		if ctxErr := s.ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		_ = s.Close()
		return nil, false, err
	}
	if kind == recordLast {
		_ = s.Close()
	}
	return data, kind == recordLast, nil
}

// Close closes the response body, an unfinished response is cancelled on the server
// because the connection is dropped
func (s *httpStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.finished = true
		err = s.body.Close()
	})
	return err
}

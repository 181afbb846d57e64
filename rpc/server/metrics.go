package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ValentinKolb/dTrie/rpc/common"
	"github.com/VictoriaMetrics/metrics"
)

// --------------------------------------------------------------------------
// Request metrics (exposed in the Prometheus text format)
// --------------------------------------------------------------------------

var (
	streamedItems = metrics.NewCounter(`dtrie_streamed_items_total`)
	openStreams   = metrics.NewCounter(`dtrie_open_streams`)
)

// requestMetrics holds the metrics of one operation
type requestMetrics struct {
	requests *metrics.Counter
	errors   *metrics.Counter
	duration *metrics.Histogram
}

func metricsFor(msgType common.MessageType) requestMetrics {
	op := msgType.String()
	return requestMetrics{
		requests: metrics.GetOrCreateCounter(fmt.Sprintf(`dtrie_requests_total{op=%q}`, op)),
		errors:   metrics.GetOrCreateCounter(fmt.Sprintf(`dtrie_request_errors_total{op=%q}`, op)),
		duration: metrics.GetOrCreateHistogram(fmt.Sprintf(`dtrie_request_duration_seconds{op=%q}`, op)),
	}
}

// observe records one finished request
func (m requestMetrics) observe(start time.Time, resp *common.Message) {
	m.requests.Inc()
	if resp.MsgType == common.MsgTError || resp.Err != "" {
		m.errors.Inc()
	}
	m.duration.UpdateDuration(start)
}

// ServeMetrics serves all metrics at GET /metrics on addr until ctx is cancelled
func ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		Logger.Infof("Serving metrics on %s/metrics", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

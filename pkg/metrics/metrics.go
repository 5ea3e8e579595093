// Package metrics exposes the job analyzer's Prometheus metrics.
// All metrics are defined in their respective packages (client, cache, batch)
// to maintain modularity and avoid circular dependencies.
//
// This package serves them over HTTP and documents the catalogue.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the default Prometheus registry used by the job analyzer.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the /metrics handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server serves /metrics and /health while a run is in progress.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger zerolog.Logger
}

// Start listens on addr and serves in the background. Use ":0" for a free port.
func Start(addr string, logger zerolog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	s := &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:     ln,
		logger: logger.With().Str("component", "metrics").Logger(),
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	s.logger.Info().Str("addr", s.Addr()).Msg("Serving metrics")
	return s, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - jobsite_requests_total{endpoint, status} (Counter): Requests by logical endpoint and HTTP status
//   - jobsite_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - jobsite_errors_total{endpoint, class} (Counter): Errors by class (client, server, network, decode)
//
// Batch Metrics (pkg/batch):
//   - jobsite_batch_items_total{batch, outcome} (Counter): Resolved keys by batch and outcome
//   - jobsite_batch_in_flight{batch} (Gauge): Calls currently in flight
//   - jobsite_batch_duration_seconds{batch} (Histogram): Wall time of a whole batch
//
// Cache Metrics (pkg/cache):
//   - jobsite_cache_hits_total (Counter): Responses served from Redis
//   - jobsite_cache_misses_total (Counter): Cache misses
//   - jobsite_cache_written_bytes_total (Counter): Bytes written to Redis
//   - jobsite_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(jobsite_cache_hits_total[5m])) /
//   (sum(rate(jobsite_cache_hits_total[5m])) + sum(rate(jobsite_cache_misses_total[5m])))
//
//   # Failure share per batch
//   sum by (batch) (jobsite_batch_items_total{outcome!="success"}) /
//   sum by (batch) (jobsite_batch_items_total)
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(jobsite_request_duration_seconds_bucket[5m]))

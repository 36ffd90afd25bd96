// Package metrics exposes the Prometheus metrics of the HTRC client.
// All metrics are defined in their respective packages (client, cache,
// pagination, fetch, ratelimit) and registered via promauto on the default
// registry; this package serves them and documents them.
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
	"github.com/rs/zerolog/log"
)

// Registry is the default Prometheus registry used by the HTRC client.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the source Serve exposes.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Server serves /metrics until its context ends.
type Server struct {
	srv      *http.Server
	listener net.Listener
	done     chan error
}

// Serve starts serving /metrics on addr in the background. The server shuts
// down when ctx ends or Close is called.
func Serve(ctx context.Context, addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	s := &Server{
		srv:      &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		listener: ln,
		done:     make(chan error, 1),
	}

	go func() {
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	log.Debug().Str("component", "metrics").Str("addr", ln.Addr().String()).Msg("Serving metrics")
	return s, nil
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Close shuts the server down.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - htrc_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status ("cached" for cache hits)
//   - htrc_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - htrc_errors_total{class} (Counter): Failed requests by class (client, server, network, unexpected)
//
// Cache Metrics (pkg/cache):
//   - htrc_cache_hits_total (Counter): Cache hits
//   - htrc_cache_misses_total (Counter): Cache misses
//   - htrc_cache_written_bytes_total (Counter): Bytes written to the cache
//   - htrc_cache_errors_total{operation} (Counter): Cache operation errors
//
// Pagination Metrics (pkg/pagination):
//   - htrc_pages_fetched_total (Counter): Result pages fetched
//   - htrc_records_yielded_total (Counter): Records yielded by iterators
//
// Fetch Metrics (pkg/fetch, pkg/ratelimit):
//   - htrc_fetch_items_total{result} (Counter): Identifiers by result (fetched, failed, aborted)
//   - htrc_ratelimit_wait_seconds (Histogram): Time spent waiting for the limiter
//   - htrc_ratelimit_cooldowns_total (Counter): Cooldowns after overload responses
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(htrc_cache_hits_total[5m])) /
//   (sum(rate(htrc_cache_hits_total[5m])) + sum(rate(htrc_cache_misses_total[5m])))
//
//   # Aggregate failure ratio
//   rate(htrc_fetch_items_total{result="failed"}[5m]) / rate(htrc_fetch_items_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(htrc_request_duration_seconds_bucket[5m]))

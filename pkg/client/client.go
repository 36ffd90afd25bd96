// Package client provides the shared HTTP core used by the search proxy and
// Data API clients: one attempt per request, status validation, optional
// response caching, metrics and structured logging.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/htrc-client/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sethgrid/pester"
)

// Prometheus metrics for HTTP operations.
var (
	htrcRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "htrc_requests_total",
		Help: "Total HTTP requests by endpoint and status",
	}, []string{"endpoint", "status"})

	htrcRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "htrc_request_duration_seconds",
		Help:    "HTTP request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	htrcErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "htrc_errors_total",
		Help: "Total request errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport errors (no response at all).
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassUnexpected represents any other non-2xx status (1xx, 3xx).
	ErrorClassUnexpected ErrorClass = "unexpected"
)

// Doer executes HTTP requests. *http.Client and *pester.Client both satisfy it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Config holds the client configuration.
type Config struct {
	// User-Agent header sent with every request
	UserAgent string

	// Timeout per request; zero means no timeout
	Timeout time.Duration

	// Transport is the RoundTripper used by the default doer (nil means http.DefaultTransport)
	Transport http.RoundTripper

	// Cache stores successful cacheable responses; nil disables caching
	Cache    *cache.Manager
	CacheTTL time.Duration

	// Component names the client in log output
	Component string
}

// singleAttempt is pester's attempt count; failed exchanges are never repeated.
const singleAttempt = 1

// DefaultConfig returns the default configuration: no timeout, no cache.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent: userAgent,
		CacheTTL:  cache.DefaultTTL,
		Component: "http-client",
	}
}

// Request describes one GET exchange.
type Request struct {
	// Endpoint is a low-cardinality label for metrics and logs, e.g. "select"
	Endpoint string

	// URL is the absolute request URL including the query string
	URL string

	// Cacheable allows the response body to be served from and stored in the cache
	Cacheable bool
}

// Client is the shared HTTP client.
type Client struct {
	doer   Doer
	cache  *cache.Manager
	config Config
	logger zerolog.Logger
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("%w: user-agent is required", ErrInvalidConfig)
	}

	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	}

	if cfg.Cache != nil && cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}

	component := cfg.Component
	if component == "" {
		component = "http-client"
	}

	p := pester.New()
	p.MaxRetries = singleAttempt
	p.RetryOnHTTP429 = false
	p.Timeout = cfg.Timeout
	if cfg.Transport != nil {
		p.Transport = cfg.Transport
	}

	return &Client{
		doer:   p,
		cache:  cfg.Cache,
		config: cfg,
		logger: log.With().Str("component", component).Logger(),
	}, nil
}

// Get performs a cacheable GET and returns the body of a 2xx response.
func (c *Client) Get(ctx context.Context, endpoint, rawURL string) ([]byte, error) {
	return c.Do(ctx, Request{Endpoint: endpoint, URL: rawURL, Cacheable: true})
}

// Download performs an uncached GET and returns the body of a 2xx response.
func (c *Client) Download(ctx context.Context, endpoint, rawURL string) ([]byte, error) {
	return c.Do(ctx, Request{Endpoint: endpoint, URL: rawURL})
}

// Do performs a single GET exchange. Any transport failure or non-2xx status
// is returned as *RequestError; nothing is retried.
func (c *Client) Do(ctx context.Context, r Request) ([]byte, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return nil, fmt.Errorf("parse request url: %w", err)
	}

	endpoint := r.Endpoint
	if endpoint == "" {
		endpoint = u.Path
	}

	var key cache.Key
	if r.Cacheable && c.cache != nil {
		key = cache.Key{Endpoint: u.Host + u.Path, Params: u.Query()}
		body, err := c.cache.Get(ctx, key)
		switch {
		case err == nil:
			c.logger.Debug().Str("endpoint", endpoint).Str("key", key.String()).Msg("Cache hit")
			htrcRequestsTotal.WithLabelValues(endpoint, "cached").Inc()
			return body, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("url", u.String()).
		Msg("Executing request")

	startTime := time.Now()
	defer func() {
		htrcRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	resp, err := c.doer.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		htrcErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		htrcRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, &RequestError{URL: u.String(), Class: ErrorClassNetwork, Err: err}
	}
	defer resp.Body.Close()

	ok := resp.StatusCode >= 200 && resp.StatusCode <= 299

	// A failed exchange is classified by its status even if the body is unreadable.
	body, err := io.ReadAll(resp.Body)
	if err != nil && ok {
		htrcErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &RequestError{
			URL:        u.String(),
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Class:      ErrorClassNetwork,
			Err:        fmt.Errorf("read response body: %w", err),
		}
	}

	htrcRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if !ok {
		class := classifyStatus(resp.StatusCode)
		htrcErrorsTotal.WithLabelValues(string(class)).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Request error")

		return nil, &RequestError{
			URL:        u.String(),
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       truncateBody(body),
			Class:      class,
		}
	}

	if r.Cacheable && c.cache != nil {
		if err := c.cache.Set(ctx, key, body, c.config.CacheTTL); err != nil {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to cache response")
		}
	}

	return body, nil
}

// classifyStatus categorizes a non-2xx status for observability.
func classifyStatus(status int) ErrorClass {
	switch {
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassUnexpected
	}
}

// SetDoer replaces the request executor (for testing).
func (c *Client) SetDoer(doer Doer) {
	c.doer = doer
}

// GetCache returns the cache manager, nil when caching is disabled.
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}

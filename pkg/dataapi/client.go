// Package dataapi is a client for the HathiTrust Data API aggregate resource.
package dataapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Sternrassler/htrc-client/pkg/client"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the public Data API root.
const DefaultBaseURL = "https://babel.hathitrust.org/cgi/htd"

const endpointAggregate = "aggregate"

// ErrInvalidIdentifier is returned for a blank identifier.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// Config holds the Data API endpoint and credentials.
type Config struct {
	// BaseURL is the API root; resources are addressed below it
	BaseURL string

	// Key and Secret are the API credential pair; an empty Key means anonymous
	Key    string
	Secret string

	// TokenURL, when set, exchanges Key/Secret for bearer tokens via the
	// OAuth2 client-credentials grant. Otherwise requests are OAuth1 signed.
	TokenURL string
	Scopes   []string

	// Auth overrides the mode implied by the fields above, e.g. AuthBasic
	Auth AuthMode
}

// Client fetches per-volume aggregates.
type Client struct {
	http    *client.Client
	baseURL string
	mode    AuthMode
	logger  zerolog.Logger
}

// New creates a Data API client. httpCfg is the shared HTTP configuration;
// its transport is wrapped with the credentials of cfg. ctx scopes token
// requests for the client-credentials mode.
func New(ctx context.Context, cfg Config, httpCfg client.Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: data api base url %q", client.ErrInvalidConfig, cfg.BaseURL)
	}
	if cfg.TokenURL != "" && cfg.Key == "" {
		return nil, fmt.Errorf("%w: token url given without a key", client.ErrInvalidConfig)
	}
	if err := cfg.validateAuth(); err != nil {
		return nil, err
	}

	httpCfg.Transport = transport(ctx, cfg, httpCfg.Transport)
	if httpCfg.Component == "" || httpCfg.Component == "http-client" {
		httpCfg.Component = "data-api"
	}

	httpClient, err := client.New(httpCfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		mode:    cfg.Mode(),
		logger:  log.With().Str("component", "data-api").Logger(),
	}, nil
}

// AggregateURL returns the aggregate resource URL of id.
func (c *Client) AggregateURL(id string) string {
	return c.baseURL + "/aggregate/" + url.PathEscape(id)
}

// FetchAggregate downloads the aggregate archive of one volume.
func (c *Client) FetchAggregate(ctx context.Context, id string) ([]byte, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidIdentifier
	}

	data, err := c.http.Download(ctx, endpointAggregate, c.AggregateURL(id))
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("htid", id).
		Str("auth", string(c.mode)).
		Int("bytes", len(data)).
		Msg("Fetched aggregate")

	return data, nil
}

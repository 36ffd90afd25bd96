// Package solr is a client for the HTRC Solr proxy: single select requests,
// paginated iteration over a query's results, the operations derived from
// it, and bundled MARC record downloads.
package solr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/Sternrassler/htrc-client/pkg/client"
	"github.com/Sternrassler/htrc-client/pkg/pagination"
	"github.com/Sternrassler/htrc-client/pkg/solr/xmltree"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Default endpoints of the public proxy.
const (
	DefaultBaseURL = "http://chinkapin.pti.indiana.edu:9994/solr/select/"
	DefaultMARCURL = "http://chinkapin.pti.indiana.edu:9994/solr/MARC/"

	DefaultPageSize  = 10
	DefaultBatchSize = 100
)

// Metric and log labels for the two endpoints.
const (
	endpointSelect = "select"
	endpointMARC   = "marc"
)

// Config holds the proxy endpoints and paging defaults.
type Config struct {
	// BaseURL is the select endpoint
	BaseURL string

	// MARCURL is the bundled MARC record endpoint
	MARCURL string

	// PageSize is used by Iter when the query sets no Rows
	PageSize int

	// BatchSize is used by BatchIDs when the caller passes size <= 0
	BatchSize int
}

// DefaultConfig returns the public proxy configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		MARCURL:   DefaultMARCURL,
		PageSize:  DefaultPageSize,
		BatchSize: DefaultBatchSize,
	}
}

// Client queries the proxy. It is safe for concurrent use; the iterators it
// returns are not.
type Client struct {
	http    *client.Client
	config  Config
	baseURL *url.URL
	marcURL *url.URL
	logger  zerolog.Logger
}

// New creates a proxy client on top of the shared HTTP client.
func New(httpClient *client.Client, cfg Config) (*Client, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("%w: http client is required", client.ErrInvalidConfig)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MARCURL == "" {
		cfg.MARCURL = DefaultMARCURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	base, err := parseEndpoint(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: base url: %v", client.ErrInvalidConfig, err)
	}
	marc, err := parseEndpoint(cfg.MARCURL)
	if err != nil {
		return nil, fmt.Errorf("%w: marc url: %v", client.ErrInvalidConfig, err)
	}

	return &Client{
		http:    httpClient,
		config:  cfg,
		baseURL: base,
		marcURL: marc,
		logger:  log.With().Str("component", "solr-client").Logger(),
	}, nil
}

func parseEndpoint(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("absolute url required")
	}
	return u, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.config
}

// selectURL renders the select request for q.
func (c *Client) selectURL(q Query, wantJSON bool) string {
	u := *c.baseURL
	u.RawQuery = q.params(wantJSON).Encode()
	return u.String()
}

// Select runs one JSON select request.
func (c *Client) Select(ctx context.Context, q Query) (*SelectResponse, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	body, err := c.http.Get(ctx, endpointSelect, c.selectURL(q, true))
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var resp SelectResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode select response: %w", err)
	}

	c.logger.Debug().
		Str("q", q.Q).
		Int("start", q.Start).
		Int("rows", q.Rows).
		Int("num_found", resp.Response.NumFound).
		Int("docs", len(resp.Response.Docs)).
		Msg("Select complete")

	return &resp, nil
}

// SelectXML runs one select request without wt=json and returns the
// response as a markup tree.
func (c *Client) SelectXML(ctx context.Context, q Query) (*xmltree.Node, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	body, err := c.http.Get(ctx, endpointSelect, c.selectURL(q, false))
	if err != nil {
		return nil, err
	}

	root, err := xmltree.ParseBytes(body)
	if err != nil {
		return nil, fmt.Errorf("decode select response: %w", err)
	}
	return root, nil
}

// Iter returns a lazy iterator over every record matching q. The page size is
// q.Rows when positive, else Config.PageSize; q.Start is ignored.
func (c *Client) Iter(q Query) *pagination.Iterator[Record] {
	pageSize := q.Rows
	if pageSize <= 0 {
		pageSize = c.config.PageSize
	}

	fetcher := pagination.PageFetcherFunc[Record](func(ctx context.Context, start, rows int) (pagination.Page[Record], error) {
		page := q
		page.Start = start
		page.Rows = rows
		resp, err := c.Select(ctx, page)
		if err != nil {
			return pagination.Page[Record]{}, err
		}
		return pagination.Page[Record]{
			Items: resp.Response.Docs,
			Total: resp.Response.NumFound,
		}, nil
	})

	return pagination.NewIterator[Record](fetcher, pageSize).
		WithLogger(c.logger.With().Str("q", q.Q).Logger())
}

package solr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ErrInvalidQuery is returned, before any network I/O, for a query the
// proxy cannot execute.
var ErrInvalidQuery = errors.New("invalid query")

// Query is one search request. It is a plain value built per call.
type Query struct {
	// Q is the Solr query string, e.g. `title:whale`. Required.
	Q string

	// Rows is the page size requested. Zero asks for the total only.
	Rows int

	// Start is the offset of the first row.
	Start int

	// Fields projects the returned fields; empty means the server defaults.
	Fields []string
}

// Validate reports whether the query can be sent.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Q) == "" {
		return fmt.Errorf("%w: query string is required", ErrInvalidQuery)
	}
	if q.Rows < 0 {
		return fmt.Errorf("%w: rows must be >= 0 (got %d)", ErrInvalidQuery, q.Rows)
	}
	if q.Start < 0 {
		return fmt.Errorf("%w: start must be >= 0 (got %d)", ErrInvalidQuery, q.Start)
	}
	return nil
}

// params encodes the query for the select endpoint.
func (q Query) params(wantJSON bool) url.Values {
	v := url.Values{}
	v.Set("q", q.Q)
	v.Set("rows", strconv.Itoa(q.Rows))
	v.Set("start", strconv.Itoa(q.Start))
	v.Set("qt", "sharding")
	if wantJSON {
		v.Set("wt", "json")
	}
	if len(q.Fields) > 0 {
		v.Set("fl", strings.Join(q.Fields, ","))
	}
	return v
}

// Record is one result document. Its fields are defined by the remote index;
// numbers are kept as json.Number.
type Record map[string]any

// ID returns the record's id field, or "" when it has none.
func (r Record) ID() string {
	switch v := r["id"].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// SelectResponse is the decoded JSON body of a select request.
type SelectResponse struct {
	Header   map[string]any `json:"responseHeader"`
	Response Result         `json:"response"`
}

// Result is the "response" object of a select body.
type Result struct {
	NumFound int      `json:"numFound"`
	Start    int      `json:"start"`
	Docs     []Record `json:"docs"`
}

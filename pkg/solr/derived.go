package solr

import (
	"context"

	"github.com/Sternrassler/htrc-client/pkg/pagination"
)

// Count returns the number of records matching q with a single zero-row request.
func (c *Client) Count(ctx context.Context, q Query) (int, error) {
	q.Rows = 0
	q.Start = 0
	q.Fields = nil
	resp, err := c.Select(ctx, q)
	if err != nil {
		return 0, err
	}
	return resp.Response.NumFound, nil
}

// IDs returns the ids of every record matching q, asking the server for the
// id field only.
func (c *Client) IDs(q Query) pagination.Source[string] {
	q.Fields = []string{"id"}
	return pagination.Map[Record, string](c.Iter(q), Record.ID)
}

// BatchIDs groups the ids of q into slices of size; the last may be shorter.
// size <= 0 uses Config.BatchSize.
func (c *Client) BatchIDs(q Query, size int) pagination.Source[[]string] {
	if size <= 0 {
		size = c.config.BatchSize
	}
	return pagination.NewBatcher(c.IDs(q), size)
}

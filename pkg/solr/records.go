package solr

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNoIdentifiers is returned by FetchRecords for an empty or blank id list.
var ErrNoIdentifiers = errors.New("no identifiers given")

// FetchRecords downloads the MARC records of ids as one zip archive.
func (c *Client) FetchRecords(ctx context.Context, ids []string) ([]byte, error) {
	if len(ids) == 0 {
		return nil, ErrNoIdentifiers
	}
	for i, id := range ids {
		if strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("%w: identifier %d is blank", ErrNoIdentifiers, i)
		}
	}

	u := *c.marcURL
	u.RawQuery = url.Values{"volumeIDs": {strings.Join(ids, "|")}}.Encode()

	data, err := c.http.Download(ctx, endpointMARC, u.String())
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Int("ids", len(ids)).
		Int("bytes", len(data)).
		Msg("Fetched MARC records")

	return data, nil
}

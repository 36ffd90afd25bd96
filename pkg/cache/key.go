package cache

import (
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces all cache keys in Redis.
const KeyPrefix = "htrc"

// Key identifies a cached response.
type Key struct {
	// Endpoint is host and path of the request (e.g. "proxy:9994/solr/select/")
	Endpoint string

	// Params are the query parameters of the request
	Params url.Values
}

// String generates a deterministic cache key string.
// Format: htrc:endpoint:param1=val1,val2:param2=val1
//
// Example:
//
//	htrc:proxy:9994/solr/select:q=title%3Awhale:rows=10:start=0
func (k Key) String() string {
	parts := []string{KeyPrefix}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.Params) > 0 {
		names := make([]string, 0, len(k.Params))
		for name := range k.Params {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			values := make([]string, len(k.Params[name]))
			for i, v := range k.Params[name] {
				values[i] = url.QueryEscape(v)
			}
			parts = append(parts, name+"="+strings.Join(values, ","))
		}
	}

	return strings.Join(parts, ":")
}

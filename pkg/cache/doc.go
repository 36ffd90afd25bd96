// Package cache provides a Redis-backed response cache for search proxy pages.
//
// Paginated iteration re-issues the same select request whenever a query is
// run again (count first, then iterate; ids, then MARC batches). Caching the
// page bodies keeps repeated runs against a static corpus cheap and gives
// them an identical view of it.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{
//		Endpoint: "chinkapin.pti.indiana.edu:9994/solr/select/",
//		Params:   url.Values{"q": []string{"title:whale"}, "start": []string{"0"}},
//	}
//
//	body, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the proxy, then
//		_ = manager.Set(ctx, key, body, cache.DefaultTTL)
//	}
//
// # Metrics
//
//   - htrc_cache_hits_total - Cache hits
//   - htrc_cache_misses_total - Cache misses
//   - htrc_cache_written_bytes_total - Bytes written to the cache
//   - htrc_cache_errors_total{operation} - Cache operation errors
package cache

// Package cache provides an optional Redis-backed cache for job site responses.
//
// Category, skill and salary statistics change slowly, so a rerun of an
// analysis within the TTL can be served from Redis instead of the site.
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create cache manager
//	manager := cache.NewManager(redisClient, 6*time.Hour)
//
//	// Create cache key
//	key := cache.CacheKey{
//		Endpoint:    "https://be.guide.104.com.tw/wow/jobCard/job",
//		QueryParams: url.Values{"jobCode": []string{"2007001004"}},
//	}
//
//	// Get from cache
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// Cache miss - fetch from the site, then:
//		_ = manager.Set(ctx, key, cache.NewEntry(body, 200, manager.TTL()))
//	}
//
// Only successfully decoded 2xx bodies are stored; failures are never cached,
// so a failed key is retried by the next run rather than by this one.
//
// # Metrics
//
//   - jobsite_cache_hits_total - Cache hits
//   - jobsite_cache_misses_total - Cache misses
//   - jobsite_cache_written_bytes_total - Bytes written
//   - jobsite_cache_errors_total{operation} - Cache operation errors
package cache

// Package cache provides an optional Redis-backed cache for product-detail
// responses.
//
// Detail lookups are the expensive path of a scrape run: one HTTP round trip
// per part number, rate-paced. Caching the raw detail record with a TTL lets
// repeated runs over overlapping part lists skip the API entirely.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient, time.Hour)
//
//	key := cache.Key{ProductNumber: "FP034K-200-ND", ManufacturerID: 19}
//
//	record, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// fetch from the API, then manager.Set(ctx, key, record)
//	}
//
// # Metrics
//
//   - digikey_cache_hits_total - Cache hits
//   - digikey_cache_misses_total - Cache misses
//   - digikey_cache_errors_total{operation} - Cache operation errors
package cache

// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

/*
Package cache provides a thread-safe in-memory response cache with TTL
expiration.

The API keeps aggregate results here (trending books and the system stats
summary) so that repeated dashboard requests do not rescan the ratings
table. Entries expire after the configured recommend.cache_ttl and the
whole cache is cleared whenever a rating is written.

# Usage

	c := cache.New("response", time.Minute)
	defer c.Stop()

	key := cache.GenerateKey("trending", nil)
	if v, ok := c.Get(key); ok {
	    return v.([]models.TrendingBook), nil
	}
	books, err := db.TrendingBooks(ctx)
	if err == nil {
	    c.Set(key, books)
	}

Lookups are counted in the shelfwise_cache_hits_total and
shelfwise_cache_misses_total Prometheus counters, labelled by cache name.
*/
package cache

// Package source provides page fetchers and fetch middleware for the query
// package.
//
// Sources produce query.Fetcher funcs from concrete backends:
//
//   - NewFeed: an HTTP endpoint speaking the paging envelope
//   - Slice: an in-memory snapshot, useful for tests and examples
//   - ZSet: a Redis sorted set paged by score
//   - SQLKeyset: a SQL table paged by keyset queries through sqlx
//
// Middleware wraps any fetcher with operational behavior and composes in
// call order:
//
//	fetch := source.WithRetry(
//		source.WithBreaker(feed.Fetch, source.DefaultBreakerConfig("orders"), logger),
//		source.DefaultRetryConfig(), logger)
//
// # Caching
//
//	cache := source.NewRedisPageCache(redisClient)
//	fetch = source.WithPageCache(fetch, cache,
//		source.CacheConfig{Feed: "orders", TTL: time.Minute}, logger)
//
// Cached pages are stored as JSON with a TTL and validated for expiry on
// read, so a Redis-level TTL miss never serves stale data. Warm primes a
// cache-wrapped fetcher for cursor lists known in advance (OffsetCursors).
//
// # Error budget
//
// Feeds that report X-RateLimit-Remaining / X-RateLimit-Reset headers can
// be gated on their shared error budget. The budget state lives in Redis so
// every consumer of the feed sees the same window:
//
//	budget := source.NewBudgetTracker(redisClient, "orders", logger)
//	cfg.Budget = budget
//
// A critical budget blocks fetches with a rate_limit FeedError; a low
// budget throttles them.
package source

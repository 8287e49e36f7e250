package source

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/medz/zensuite/pkg/paging"
	"github.com/medz/zensuite/pkg/query"
)

var (
	// ErrCacheMiss indicates the requested page was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// PageEntry is a cached page of items.
type PageEntry[T any] struct {
	// Items is the page content
	Items []T `json:"items"`

	// Expires is when the cache entry becomes stale
	Expires time.Time `json:"expires"`

	// CachedAt is when we cached this page
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired returns true if the cache entry has expired.
func (e *PageEntry[T]) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *PageEntry[T]) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// CacheKey identifies a cached page.
type CacheKey struct {
	// Feed names the data source the page came from
	Feed string

	// Cursor is the encoded cursor token ("first" for the first page)
	Cursor string
}

// String generates a deterministic cache key string.
// Format: page:feed:cursor
//
// Example:
//
//	page:market-orders:eyJpZCI6NDJ9
func (k CacheKey) String() string {
	cursor := k.Cursor
	if cursor == "" {
		cursor = "first"
	}
	return strings.Join([]string{"page", k.Feed, cursor}, ":")
}

// PageCache is a byte-level store for serialized page entries.
// Implementations must return ErrCacheMiss when a key is absent.
type PageCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CacheConfig controls page caching.
type CacheConfig struct {
	// Feed names the data source in cache keys and metrics.
	Feed string

	// TTL is how long cached pages stay fresh.
	TTL time.Duration
}

// DefaultCacheConfig returns the standard cache settings.
func DefaultCacheConfig(feed string) CacheConfig {
	return CacheConfig{
		Feed: feed,
		TTL:  5 * time.Minute,
	}
}

// WithPageCache wraps a fetcher with read-through page caching. Cache
// failures degrade to a plain fetch; they never fail the request.
func WithPageCache[T, C any](fetch query.Fetcher[T, C], store PageCache, config CacheConfig, logger zerolog.Logger) query.Fetcher[T, C] {
	if config.TTL <= 0 {
		config.TTL = 5 * time.Minute
	}
	log := logger.With().Str("component", "page_cache").Str("feed", config.Feed).Logger()

	return func(ctx context.Context, cursor *C) (query.Page[T], error) {
		key := CacheKey{Feed: config.Feed}
		if cursor != nil {
			token, err := paging.EncodeCursor(*cursor)
			if err != nil {
				// Unencodable cursors bypass the cache.
				return fetch(ctx, cursor)
			}
			key.Cursor = token
		}
		cacheKey := key.String()

		data, err := store.Get(ctx, cacheKey)
		switch {
		case err == nil:
			var entry PageEntry[T]
			if err := json.Unmarshal(data, &entry); err != nil {
				pageCacheErrors.WithLabelValues("get").Inc()
				log.Warn().Err(err).Str("key", cacheKey).Msg("Corrupt cache entry, refetching")
				_ = store.Delete(ctx, cacheKey)
			} else if entry.IsExpired() {
				pageCacheMisses.WithLabelValues(config.Feed).Inc()
				_ = store.Delete(ctx, cacheKey)
			} else {
				pageCacheHits.WithLabelValues(config.Feed).Inc()
				log.Debug().Str("key", cacheKey).Int("items", len(entry.Items)).Msg("Page cache hit")
				return query.Page[T](entry.Items), nil
			}
		case errors.Is(err, ErrCacheMiss):
			pageCacheMisses.WithLabelValues(config.Feed).Inc()
		default:
			pageCacheErrors.WithLabelValues("get").Inc()
			log.Warn().Err(err).Str("key", cacheKey).Msg("Page cache read failed")
		}

		page, err := fetch(ctx, cursor)
		if err != nil {
			return nil, err
		}

		entry := PageEntry[T]{
			Items:    page,
			Expires:  time.Now().Add(config.TTL),
			CachedAt: time.Now(),
		}
		encoded, err := json.Marshal(&entry)
		if err != nil {
			pageCacheErrors.WithLabelValues("set").Inc()
			log.Warn().Err(err).Str("key", cacheKey).Msg("Page cache encode failed")
			return page, nil
		}
		if err := store.Set(ctx, cacheKey, encoded, entry.TTL()); err != nil {
			pageCacheErrors.WithLabelValues("set").Inc()
			log.Warn().Err(err).Str("key", cacheKey).Msg("Page cache write failed")
		}

		return page, nil
	}
}

package source

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/medz/zensuite/pkg/query"
)

// fakePageCache is an in-memory PageCache for tests.
type fakePageCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	getErr  error
	setErr  error
	deletes []string
}

func newFakePageCache() *fakePageCache {
	return &fakePageCache{entries: make(map[string][]byte)}
}

func (c *fakePageCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	data, ok := c.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return data, nil
}

func (c *fakePageCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[key] = data
	return nil
}

func (c *fakePageCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes = append(c.deletes, key)
	delete(c.entries, key)
	return nil
}

func (c *fakePageCache) seed(t *testing.T, key string, entry PageEntry[int]) {
	t.Helper()
	data, err := json.Marshal(&entry)
	if err != nil {
		t.Fatalf("Failed to marshal entry: %v", err)
	}
	c.mu.Lock()
	c.entries[key] = data
	c.mu.Unlock()
}

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name     string
		key      CacheKey
		expected string
	}{
		{
			name:     "with cursor",
			key:      CacheKey{Feed: "orders", Cursor: "eyJpZCI6NDJ9"},
			expected: "page:orders:eyJpZCI6NDJ9",
		},
		{
			name:     "first page",
			key:      CacheKey{Feed: "orders"},
			expected: "page:orders:first",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestPageEntry_IsExpired(t *testing.T) {
	tests := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{
			name:    "expired entry",
			expires: time.Now().Add(-1 * time.Hour),
			want:    true,
		},
		{
			name:    "valid entry",
			expires: time.Now().Add(1 * time.Hour),
			want:    false,
		},
		{
			name:    "just expired",
			expires: time.Now().Add(-1 * time.Second),
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &PageEntry[int]{
				Expires: tt.expires,
			}
			if got := entry.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPageEntry_TTL(t *testing.T) {
	tests := []struct {
		name    string
		expires time.Time
		wantMin time.Duration
		wantMax time.Duration
	}{
		{
			name:    "five minutes remaining",
			expires: time.Now().Add(5 * time.Minute),
			wantMin: 4*time.Minute + 59*time.Second,
			wantMax: 5*time.Minute + 1*time.Second,
		},
		{
			name:    "already expired",
			expires: time.Now().Add(-1 * time.Hour),
			wantMin: 0,
			wantMax: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &PageEntry[int]{
				Expires: tt.expires,
			}
			got := entry.TTL()
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("TTL() = %v, want between %v and %v", got, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestWithPageCache_MissThenHit(t *testing.T) {
	store := newFakePageCache()
	fetches := 0
	fetch := func(ctx context.Context, cursor *int) (query.Page[int], error) {
		fetches++
		return query.Page[int]{1, 2}, nil
	}

	wrapped := WithPageCache(fetch, store, DefaultCacheConfig("orders"), zerolog.Nop())

	page, err := wrapped(context.Background(), nil)
	if err != nil {
		t.Fatalf("First fetch failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(page))
	}
	if fetches != 1 {
		t.Fatalf("Expected 1 upstream fetch, got %d", fetches)
	}

	page, err = wrapped(context.Background(), nil)
	if err != nil {
		t.Fatalf("Second fetch failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("Expected 2 cached items, got %d", len(page))
	}
	if fetches != 1 {
		t.Errorf("Second fetch should hit the cache, upstream fetches = %d", fetches)
	}
}

func TestWithPageCache_DistinctCursors(t *testing.T) {
	store := newFakePageCache()
	fetch := func(ctx context.Context, cursor *int) (query.Page[int], error) {
		if cursor == nil {
			return query.Page[int]{1}, nil
		}
		return query.Page[int]{*cursor + 1}, nil
	}

	wrapped := WithPageCache(fetch, store, DefaultCacheConfig("orders"), zerolog.Nop())

	first, err := wrapped(context.Background(), nil)
	if err != nil {
		t.Fatalf("First page fetch failed: %v", err)
	}
	cursor := 1
	second, err := wrapped(context.Background(), &cursor)
	if err != nil {
		t.Fatalf("Second page fetch failed: %v", err)
	}

	if first[0] != 1 || second[0] != 2 {
		t.Errorf("Pages = %v and %v, want [1] and [2]", first, second)
	}
	if len(store.entries) != 2 {
		t.Errorf("Expected 2 distinct cache entries, got %d", len(store.entries))
	}
}

func TestWithPageCache_ExpiredEntryRefetched(t *testing.T) {
	store := newFakePageCache()
	key := CacheKey{Feed: "orders"}.String()
	store.seed(t, key, PageEntry[int]{
		Items:    []int{99},
		Expires:  time.Now().Add(-time.Minute),
		CachedAt: time.Now().Add(-time.Hour),
	})

	fetches := 0
	fetch := func(ctx context.Context, cursor *int) (query.Page[int], error) {
		fetches++
		return query.Page[int]{1}, nil
	}

	wrapped := WithPageCache(fetch, store, DefaultCacheConfig("orders"), zerolog.Nop())
	page, err := wrapped(context.Background(), nil)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if fetches != 1 {
		t.Errorf("Expired entry must refetch, upstream fetches = %d", fetches)
	}
	if len(page) != 1 || page[0] != 1 {
		t.Errorf("Page = %v, want fresh [1]", page)
	}
	if len(store.deletes) == 0 {
		t.Error("Expired entry should be deleted")
	}
}

func TestWithPageCache_CorruptEntryRefetched(t *testing.T) {
	store := newFakePageCache()
	key := CacheKey{Feed: "orders"}.String()
	store.mu.Lock()
	store.entries[key] = []byte("{not json")
	store.mu.Unlock()

	fetch := func(ctx context.Context, cursor *int) (query.Page[int], error) {
		return query.Page[int]{5}, nil
	}

	wrapped := WithPageCache(fetch, store, DefaultCacheConfig("orders"), zerolog.Nop())
	page, err := wrapped(context.Background(), nil)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(page) != 1 || page[0] != 5 {
		t.Errorf("Page = %v, want [5]", page)
	}
	if len(store.deletes) == 0 {
		t.Error("Corrupt entry should be deleted")
	}
}

func TestWithPageCache_CacheErrorsDegrade(t *testing.T) {
	store := newFakePageCache()
	store.getErr = errors.New("redis down")
	store.setErr = errors.New("redis down")

	fetches := 0
	fetch := func(ctx context.Context, cursor *int) (query.Page[int], error) {
		fetches++
		return query.Page[int]{3}, nil
	}

	wrapped := WithPageCache(fetch, store, DefaultCacheConfig("orders"), zerolog.Nop())
	page, err := wrapped(context.Background(), nil)
	if err != nil {
		t.Fatalf("Cache failure must not fail the fetch: %v", err)
	}
	if len(page) != 1 || page[0] != 3 {
		t.Errorf("Page = %v, want [3]", page)
	}
	if fetches != 1 {
		t.Errorf("Expected 1 upstream fetch, got %d", fetches)
	}
}

func TestWithPageCache_FetchErrorNotCached(t *testing.T) {
	store := newFakePageCache()
	fetchErr := &FeedError{StatusCode: 500, ErrorClass: ErrorClassServer, Message: "boom"}
	fetch := func(ctx context.Context, cursor *int) (query.Page[int], error) {
		return nil, fetchErr
	}

	wrapped := WithPageCache(fetch, store, DefaultCacheConfig("orders"), zerolog.Nop())
	_, err := wrapped(context.Background(), nil)
	if !errors.Is(err, fetchErr) {
		t.Fatalf("Expected the fetch error, got %v", err)
	}
	if len(store.entries) != 0 {
		t.Errorf("Failed fetches must not be cached, entries = %d", len(store.entries))
	}
}

// Package testutil provides testing utilities for the zensuite packages.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/medz/zensuite/pkg/paging"
)

// FeedItem is the item shape served by MockFeed.
type FeedItem struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// MakeItems builds n sequential feed items starting at ID 1.
func MakeItems(n int) []FeedItem {
	items := make([]FeedItem, n)
	for i := range items {
		items[i] = FeedItem{ID: i + 1, Name: fmt.Sprintf("item-%d", i+1)}
	}
	return items
}

// MockFeed is a configurable feed server for testing. It serves keyset
// pages of FeedItem through the paging envelope and supports failure and
// latency injection.
type MockFeed struct {
	server *httptest.Server

	mu       sync.RWMutex
	items    []FeedItem
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	failuresLeft int
	failStatus   int
	delay        time.Duration

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
}

// NewMockFeed creates a mock feed server over the given dataset.
func NewMockFeed(items []FeedItem) *MockFeed {
	mock := &MockFeed{
		items:    items,
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		delay := mock.delay
		failing := mock.failuresLeft > 0
		failStatus := mock.failStatus
		if failing {
			mock.failuresLeft--
		}
		mock.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}

		if failing {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(failStatus)
			w.Write([]byte(`{"error": "injected failure"}`))
			return
		}

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.pageHandler(w, r)
	}))

	return mock
}

// URL returns the base URL of the running server.
func (m *MockFeed) URL() string {
	return m.server.URL
}

// Close stops the underlying httptest server.
func (m *MockFeed) Close() {
	m.server.Close()
}

// Reset clears tracking counters and injected behavior.
func (m *MockFeed) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
	m.failuresLeft = 0
	m.delay = 0
}

// SetItems replaces the served dataset.
func (m *MockFeed) SetItems(items []FeedItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = items
}

// FailNext makes the next n requests fail with the given status code.
func (m *MockFeed) FailNext(n, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failuresLeft = n
	m.failStatus = status
}

// SetDelay delays every response by d.
func (m *MockFeed) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetHandler overrides the default page handler for one path.
func (m *MockFeed) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// GetRequestCount reports how many requests the server has seen.
func (m *MockFeed) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// pageHandler serves one keyset page of the dataset.
func (m *MockFeed) pageHandler(w http.ResponseWriter, r *http.Request) {
	params := paging.Params{Cursor: r.URL.Query().Get("cursor")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, `{"error": "invalid limit"}`, http.StatusBadRequest)
			return
		}
		params.Limit = limit
	}

	m.mu.RLock()
	items := m.items
	m.mu.RUnlock()

	result, err := paging.Paginate(params, func(cursor string, limit int) ([]FeedItem, int, string, error) {
		start := 0
		if cursor != "" {
			id, err := paging.DecodeCursor[int](cursor)
			if err != nil {
				return nil, 0, "", err
			}
			start = -1
			for i, item := range items {
				if item.ID == id {
					start = i + 1
					break
				}
			}
			if start < 0 {
				return nil, 0, "", fmt.Errorf("unknown cursor %d", id)
			}
		}

		end := start + limit
		if end > len(items) {
			end = len(items)
		}
		page := items[start:end]

		// The over-fetched item only signals has_next; the page the caller
		// sees ends one item earlier.
		next := ""
		if len(page) == limit {
			token, err := paging.EncodeCursor(page[limit-2].ID)
			if err != nil {
				return nil, 0, "", err
			}
			next = token
		}
		return page, len(items), next, nil
	})
	if err != nil {
		http.Error(w, `{"error": "bad cursor"}`, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

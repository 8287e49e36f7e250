package source

import (
	"context"
	"fmt"

	"github.com/medz/zensuite/pkg/query"
)

// Slice builds a keyset fetcher over an in-memory slice. The key function
// must be unique per item; the page after a cursor starts right behind the
// item carrying that key. Useful for tests and for serving fixed datasets.
func Slice[T any, C comparable](items []T, size int, key func(T) C) query.Fetcher[T, C] {
	if size <= 0 {
		panic("source: page size must be positive")
	}
	if key == nil {
		panic("source: nil key func")
	}

	return func(ctx context.Context, cursor *C) (query.Page[T], error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := 0
		if cursor != nil {
			found := false
			for i, item := range items {
				if key(item) == *cursor {
					start = i + 1
					found = true
					break
				}
			}
			if !found {
				return nil, &FeedError{
					ErrorClass: ErrorClassClient,
					Message:    fmt.Sprintf("unknown cursor %v", *cursor),
				}
			}
		}

		end := start + size
		if end > len(items) {
			end = len(items)
		}

		page := make(query.Page[T], end-start)
		copy(page, items[start:end])
		return page, nil
	}
}

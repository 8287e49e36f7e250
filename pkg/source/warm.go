package source

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/medz/zensuite/pkg/query"
)

// WarmConfig configures Warm.
type WarmConfig struct {
	// MaxConcurrency is the number of parallel fetch workers.
	MaxConcurrency int

	// Timeout per page fetch.
	Timeout time.Duration
}

// DefaultWarmConfig returns safe defaults for cache warming.
func DefaultWarmConfig() WarmConfig {
	return WarmConfig{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// OffsetCursors builds the cursor list for the first pages of an
// offset-paged feed: nil for the first page, then size, 2*size, and so on.
// Use with Warm when the fetcher counts items by offset.
func OffsetCursors(pages, size int) []*int {
	if pages <= 0 || size <= 0 {
		return nil
	}
	cursors := make([]*int, pages)
	for i := 1; i < pages; i++ {
		offset := i * size
		cursors[i] = &offset
	}
	return cursors
}

// Warm fetches the given cursors through fetch with a worker pool and
// reports how many pages loaded. Wrapping fetch with WithPageCache makes
// this a cache primer: a later controller drain over the same chain is
// served from the cache. Failed pages are skipped; after all workers
// finish, the first failure (or ctx's error) is returned alongside the
// count.
//
// Warm bypasses controller ordering on purpose. It only makes sense for
// cursor lists that are known up front, such as OffsetCursors; keyset
// cursors depend on fetched data and cannot be warmed ahead.
func Warm[T, C any](ctx context.Context, fetch query.Fetcher[T, C], cursors []*C, config WarmConfig, logger zerolog.Logger) (int, error) {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	log := logger.With().Str("component", "warm").Logger()

	start := time.Now()

	queue := make(chan *C, len(cursors))
	for _, cursor := range cursors {
		queue <- cursor
	}
	close(queue)

	errs := make(chan error, config.MaxConcurrency)
	var fetched atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < config.MaxConcurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for cursor := range queue {
				select {
				case <-ctx.Done():
					return
				default:
				}

				fetchCtx, cancel := context.WithTimeout(ctx, config.Timeout)
				_, err := fetch(fetchCtx, cursor)
				cancel()
				if err != nil {
					log.Warn().
						Err(err).
						Int("worker_id", workerID).
						Bool("first", cursor == nil).
						Msg("Warm fetch failed")
					select {
					case errs <- err:
					default:
					}
					continue
				}

				if n := fetched.Add(1); n%10 == 0 {
					log.Info().
						Int64("fetched", n).
						Int("total", len(cursors)).
						Msg("Warm progress")
				}
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	count := int(fetched.Load())
	if err := ctx.Err(); err != nil {
		return count, err
	}
	if err := <-errs; err != nil {
		return count, fmt.Errorf("warm pages (partial: %d/%d): %w", count, len(cursors), err)
	}

	log.Info().
		Int("pages", count).
		Dur("duration", time.Since(start)).
		Msg("Warm complete")

	return count, nil
}

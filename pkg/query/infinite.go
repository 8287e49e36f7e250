package query

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/medz/zensuite/pkg/mutation"
	"github.com/medz/zensuite/pkg/observe"
)

// ErrDisposed is returned by fetch operations on a disposed controller.
var ErrDisposed = errors.New("query controller disposed")

// Infinite is a reactive controller over cursor-paginated data. See the
// package documentation for the model; construct one with NewInfinite.
type Infinite[T, C any] struct {
	name    string
	logger  zerolog.Logger
	fetch   Fetcher[T, C]
	resolve Resolver[T, C]

	cell      *mutation.Cell[Page[T]]
	notifier  *observe.Notifier[Snapshot[T]]
	relayStop func()

	mu       sync.Mutex
	pages    []Page[T]
	items    []T
	hasNext  bool
	version  uint64 // bumped by Refresh and Dispose; stale fetch results are discarded
	disposed bool
}

// NewInfinite creates a controller for the data source described by fetch and
// resolve. Both funcs are required; NewInfinite panics when either is nil.
//
// The controller starts empty and idle. HasNext is derived from the resolver
// immediately, so a resolver that derives cursors for an empty page list
// makes HasNext true before the first fetch.
func NewInfinite[T, C any](fetch Fetcher[T, C], resolve Resolver[T, C], opts ...Option) *Infinite[T, C] {
	if fetch == nil {
		panic("query: nil fetcher")
	}
	if resolve == nil {
		panic("query: nil resolver")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	q := &Infinite[T, C]{
		name:     o.name,
		logger:   o.logger.With().Str("component", "query").Str("query", o.name).Logger(),
		fetch:    fetch,
		resolve:  resolve,
		cell:     mutation.NewCell[Page[T]](o.name, o.logger),
		notifier: observe.NewNotifier[Snapshot[T]](),
	}
	q.mu.Lock()
	q.recomputeLocked()
	q.mu.Unlock()

	// Every cell transition becomes a controller snapshot, so subscribers
	// observe load-state changes and page-list changes through one stream.
	q.relayStop = q.cell.Subscribe(func(mutation.State[Page[T]]) {
		q.publish()
	})

	queryPages.WithLabelValues(q.name).Set(0)
	return q
}

// Name returns the label identifying this controller in metrics and logs.
func (q *Infinite[T, C]) Name() string {
	return q.name
}

// Items returns a copy of the flattened item view.
func (q *Infinite[T, C]) Items() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := make([]T, len(q.items))
	copy(items, q.items)
	return items
}

// Pages returns a copy of the page list in fetch order.
func (q *Infinite[T, C]) Pages() []Page[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return copyPages(q.pages)
}

// HasNext reports whether the resolver derived a cursor for a further page
// after the last page-list change.
func (q *Infinite[T, C]) HasNext() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.hasNext
}

// LoadState returns the current fetch lifecycle state.
func (q *Infinite[T, C]) LoadState() mutation.State[Page[T]] {
	return copyState(q.cell.State())
}

// Subscribe registers fn for every subsequent state change: page-list
// changes and load-state transitions both produce a snapshot. Delivery is
// synchronous and in subscription order on the goroutine that caused the
// change; there is no initial replay of the current state. The returned
// cancel is idempotent.
func (q *Infinite[T, C]) Subscribe(fn func(Snapshot[T])) (cancel func()) {
	return q.notifier.Subscribe(fn)
}

// FetchNextPage fetches the page after the last fetched one and appends it
// to the page list. On an empty controller it fetches the first page (nil
// cursor) without consulting the resolver.
//
// It is a silent no-op when a fetch is already pending or when the resolver
// reports the data set exhausted. A fetch error is recorded in the load
// state, leaves the page list untouched, and is also returned; the next call
// retries the same cursor. A result that lost to a concurrent Refresh is
// discarded and FetchNextPage returns nil.
func (q *Infinite[T, C]) FetchNextPage(ctx context.Context) error {
	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		return ErrDisposed
	}
	if q.cell.Status() == mutation.StatusPending {
		q.mu.Unlock()
		queryFetchesTotal.WithLabelValues(q.name, outcomeNoopPending).Inc()
		q.logger.Debug().Msg("Fetch skipped, already pending")
		return nil
	}
	pages := q.pages
	startVersion := q.version
	q.mu.Unlock()

	var cursor *C
	if len(pages) > 0 {
		cursor = q.resolve(pages[len(pages)-1], pages)
		if cursor == nil {
			queryFetchesTotal.WithLabelValues(q.name, outcomeNoopExhausted).Inc()
			q.logger.Debug().Int("pages", len(pages)).Msg("Fetch skipped, data set exhausted")
			return nil
		}
	}

	return q.runFetch(ctx, cursor, startVersion)
}

// Refresh discards all pages and fetches the first page again. Any fetch
// still in flight is superseded: its result is discarded when it resolves,
// whether it succeeds or fails. Refresh is safe to call at any time,
// including while a fetch is pending.
func (q *Infinite[T, C]) Refresh(ctx context.Context) error {
	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		return ErrDisposed
	}
	q.version++
	startVersion := q.version
	cleared := len(q.pages) > 0
	q.pages = nil
	q.recomputeLocked()
	snap := q.snapshotLocked()
	q.mu.Unlock()

	queryRefreshesTotal.WithLabelValues(q.name).Inc()
	queryPages.WithLabelValues(q.name).Set(0)
	q.logger.Debug().Uint64("version", startVersion).Msg("Refreshing, page list cleared")

	if cleared {
		q.notifier.Publish(snap)
	}
	q.cell.Reset()

	return q.runFetch(ctx, nil, startVersion)
}

// FetchAll drives FetchNextPage until the resolver reports exhaustion, an
// error occurs, maxPages fetches have been made, or ctx is done. maxPages
// <= 0 means no page limit. FetchAll is sequential; it never fetches pages
// concurrently.
func (q *Infinite[T, C]) FetchAll(ctx context.Context, maxPages int) error {
	for fetched := 0; maxPages <= 0 || fetched < maxPages; fetched++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		q.mu.Lock()
		disposed := q.disposed
		done := len(q.pages) > 0 && !q.hasNext
		q.mu.Unlock()

		if disposed {
			return ErrDisposed
		}
		if done {
			return nil
		}
		if err := q.FetchNextPage(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Dispose tears the controller down: subscribers are detached, any fetch
// still in flight is discarded on resume, and later fetch operations return
// ErrDisposed. No notification fires after Dispose returns. Read accessors
// keep returning the last data. Dispose is idempotent.
func (q *Infinite[T, C]) Dispose() {
	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		return
	}
	q.disposed = true
	q.version++
	q.mu.Unlock()

	q.relayStop()
	q.notifier.Close()
	q.cell.Reset()
	q.logger.Debug().Msg("Controller disposed")
}

// runFetch executes one fetch under the single-flight cell and applies the
// result if startVersion is still current.
func (q *Infinite[T, C]) runFetch(ctx context.Context, cursor *C, startVersion uint64) error {
	timer := prometheus.NewTimer(queryFetchDuration.WithLabelValues(q.name))
	defer timer.ObserveDuration()

	_, err := q.cell.Run(ctx, func(ctx context.Context) (Page[T], error) {
		page, ferr := q.fetch(ctx, cursor)
		if ferr != nil {
			q.mu.Lock()
			stale := q.disposed || q.version != startVersion
			q.mu.Unlock()
			if stale {
				queryFetchesTotal.WithLabelValues(q.name, outcomeErrorStale).Inc()
			} else {
				queryFetchesTotal.WithLabelValues(q.name, outcomeError).Inc()
				q.logger.Debug().Err(ferr).Bool("first", cursor == nil).Msg("Fetch failed")
			}
			return nil, ferr
		}
		q.applyPage(page, startVersion)
		return page, nil
	})
	if errors.Is(err, mutation.ErrPending) {
		// Lost the admission race to a concurrent fetch; same outcome as
		// the pending guard in FetchNextPage.
		queryFetchesTotal.WithLabelValues(q.name, outcomeNoopPending).Inc()
		return nil
	}
	if err != nil {
		return err
	}

	q.settle(startVersion)
	return nil
}

// applyPage appends a fetched page unless a refresh or dispose made it
// stale, then recomputes the derived views and notifies.
func (q *Infinite[T, C]) applyPage(page Page[T], startVersion uint64) {
	q.mu.Lock()
	if q.disposed || q.version != startVersion {
		q.mu.Unlock()
		queryFetchesTotal.WithLabelValues(q.name, outcomeDiscardedStale).Inc()
		q.logger.Debug().Uint64("start_version", startVersion).Msg("Fetch result discarded, superseded by refresh")
		return
	}
	own := make(Page[T], len(page))
	copy(own, page)
	q.pages = append(q.pages, own)
	q.recomputeLocked()
	snap := q.snapshotLocked()
	q.mu.Unlock()

	queryFetchesTotal.WithLabelValues(q.name, outcomeApplied).Inc()
	queryPages.WithLabelValues(q.name).Set(float64(len(snap.Pages)))
	q.logger.Debug().
		Int("page_items", len(own)).
		Int("pages", len(snap.Pages)).
		Bool("has_next", snap.HasNext).
		Msg("Page applied")
	q.notifier.Publish(snap)
}

// settle returns the cell to Idle after a successful, version-matching
// fetch, so the pending guard and UI state read clean for the next call. A
// stale fetch leaves state management to the newer run.
func (q *Infinite[T, C]) settle(startVersion uint64) {
	q.mu.Lock()
	current := !q.disposed && q.version == startVersion
	q.mu.Unlock()

	if current {
		q.cell.ResetIf(mutation.StatusSuccess)
	}
}

// publish emits a fresh snapshot; used by the cell relay.
func (q *Infinite[T, C]) publish() {
	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		return
	}
	snap := q.snapshotLocked()
	q.mu.Unlock()

	q.notifier.Publish(snap)
}

// recomputeLocked rebuilds the flattened items and the has-next flag from
// the page list. Callers hold q.mu.
func (q *Infinite[T, C]) recomputeLocked() {
	total := 0
	for _, p := range q.pages {
		total += len(p)
	}
	items := make([]T, 0, total)
	for _, p := range q.pages {
		items = append(items, p...)
	}
	q.items = items

	var last Page[T]
	if len(q.pages) > 0 {
		last = q.pages[len(q.pages)-1]
	}
	q.hasNext = q.resolve(last, q.pages) != nil
}

// snapshotLocked builds a defensive-copy snapshot. Callers hold q.mu.
func (q *Infinite[T, C]) snapshotLocked() Snapshot[T] {
	items := make([]T, len(q.items))
	copy(items, q.items)
	return Snapshot[T]{
		Pages:   copyPages(q.pages),
		Items:   items,
		HasNext: q.hasNext,
		State:   copyState(q.cell.State()),
	}
}

func copyPages[T any](pages []Page[T]) []Page[T] {
	out := make([]Page[T], len(pages))
	for i, p := range pages {
		cp := make(Page[T], len(p))
		copy(cp, p)
		out[i] = cp
	}
	return out
}

func copyState[T any](st mutation.State[Page[T]]) mutation.State[Page[T]] {
	if st.Value != nil {
		cp := make(Page[T], len(st.Value))
		copy(cp, st.Value)
		st.Value = cp
	}
	return st
}

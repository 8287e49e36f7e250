// Package query provides reactive controllers for cursor-paginated data.
//
// An Infinite controller owns an ordered list of fetched pages, keeps a
// flattened item view and a has-next flag derived from it, and reports fetch
// progress through a single-flight mutation cell. Page order is fetch order,
// pages are only ever appended or cleared, and every change is delivered
// synchronously to subscribers before the mutating call returns.
//
// Two functions describe the data source. The Fetcher loads one page for a
// cursor (nil cursor means the first page). The Resolver derives the cursor
// of the page after the last fetched one, or nil once the data set is
// exhausted; the controller never interprets cursor values itself.
//
// Fetches are versioned: Refresh invalidates every fetch still in flight, so
// a slow stale response can never overwrite newer data.
//
// # Basic Usage
//
//	fetch := func(ctx context.Context, cursor *int64) (query.Page[Order], error) {
//		return store.OrdersAfter(ctx, cursor, 50)
//	}
//
//	q := query.NewInfinite(fetch,
//		query.Keyset(func(o Order) int64 { return o.ID }),
//		query.WithName("orders"))
//	defer q.Dispose()
//
//	cancel := q.Subscribe(func(s query.Snapshot[Order]) {
//		render(s.Items, s.HasNext, s.State)
//	})
//	defer cancel()
//
//	if err := q.FetchNextPage(ctx); err != nil {
//		// The controller holds the error state; a later call retries
//		// the same cursor.
//	}
//
// # Concurrency
//
// All methods are safe for concurrent use. Only one fetch runs at a time per
// controller: FetchNextPage while a fetch is pending is a silent no-op. The
// intended pattern is one goroutine driving fetches and any number of
// subscribers reacting to snapshots.
package query

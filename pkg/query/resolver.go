package query

import "context"

// Page is one fetched page of items, in fetch order.
type Page[T any] []T

// Fetcher loads the page identified by cursor. A nil cursor requests the
// first page. The returned page may be empty; an empty page is still applied
// and counts as data.
type Fetcher[T, C any] func(ctx context.Context, cursor *C) (Page[T], error)

// Resolver derives the cursor of the page after last, or nil when the data
// set is exhausted. last is the most recently fetched page (nil before the
// first fetch) and pages is the full page list in fetch order.
//
// Resolvers must be pure: no I/O, no mutation of the page list, and no calls
// back into the controller. The controller invokes the resolver while holding
// its internal lock.
type Resolver[T, C any] func(last Page[T], pages []Page[T]) *C

// Keyset returns a resolver for keyset pagination: the next cursor is the
// key of the last item of the last page. It reports exhaustion when there
// are no pages yet or the last page is empty.
func Keyset[T, C any](key func(T) C) Resolver[T, C] {
	return func(last Page[T], pages []Page[T]) *C {
		if len(last) == 0 {
			return nil
		}
		c := key(last[len(last)-1])
		return &c
	}
}

// KeysetWhileFull is Keyset with the short-page heuristic: a last page
// shorter than size means the data set is exhausted, even if it is not
// empty.
func KeysetWhileFull[T, C any](size int, key func(T) C) Resolver[T, C] {
	keyset := Keyset[T, C](key)
	return func(last Page[T], pages []Page[T]) *C {
		if len(last) < size {
			return nil
		}
		return keyset(last, pages)
	}
}

// Offset returns a resolver for offset pagination: the next cursor is the
// total number of items fetched so far, exhausted once a page comes back
// shorter than size.
func Offset[T any](size int) Resolver[T, int] {
	return func(last Page[T], pages []Page[T]) *int {
		if len(last) < size {
			return nil
		}
		total := 0
		for _, p := range pages {
			total += len(p)
		}
		return &total
	}
}

package query

import "github.com/medz/zensuite/pkg/mutation"

// Snapshot is a self-contained view of a controller at one point in time.
// All slices are copies; mutating them does not affect the controller.
type Snapshot[T any] struct {
	// Pages is the page list in fetch order.
	Pages []Page[T]

	// Items is the flattened view of Pages, page order then item order.
	Items []T

	// HasNext reports whether the resolver derived a cursor for a further
	// page at snapshot time.
	HasNext bool

	// State is the fetch lifecycle state at snapshot time.
	State mutation.State[Page[T]]
}

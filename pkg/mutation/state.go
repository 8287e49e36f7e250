// Package mutation provides a single-flight state machine for one-shot
// asynchronous operations. A Cell holds exactly one State value and moves
// through Idle -> Pending -> Success/Error -> Idle; while a run is pending,
// further runs are rejected. It is the load-state primitive underneath the
// query package's paginated controllers and is usable on its own for any
// submit-once operation.
package mutation

import (
	"errors"
	"time"
)

// Status identifies the lifecycle position of a mutation cell.
type Status string

const (
	// StatusIdle means no run has started, or the last result was cleared.
	StatusIdle Status = "idle"

	// StatusPending means a run is in flight. New runs are rejected.
	StatusPending Status = "pending"

	// StatusSuccess means the last run settled with a value.
	StatusSuccess Status = "success"

	// StatusError means the last run settled with an error.
	StatusError Status = "error"
)

// Terminal reports whether the status is a settled run outcome.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// State is an immutable snapshot of a mutation cell.
type State[V any] struct {
	// Status is the lifecycle position at snapshot time.
	Status Status

	// Value holds the run result. It is meaningful only when Status is
	// StatusSuccess and is the action's return value as-is.
	Value V

	// Err holds the run failure. It is non-nil only when Status is
	// StatusError.
	Err error

	// At is when the cell entered this state.
	At time.Time
}

// Sentinel errors returned by cell operations.
var (
	// ErrPending is returned by Run when a run is already in flight.
	ErrPending = errors.New("mutation run already pending")
)

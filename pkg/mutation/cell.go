package mutation

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/medz/zensuite/pkg/observe"
)

// Prometheus metrics for mutation cells.
var (
	mutationTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zensuite_mutation_transitions_total",
		Help: "Total number of mutation cell state transitions by resulting status",
	}, []string{"cell", "status"})

	mutationRejectedRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zensuite_mutation_rejected_runs_total",
		Help: "Total number of runs rejected by the single-flight guard",
	}, []string{"cell"})

	mutationSupersededRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zensuite_mutation_superseded_runs_total",
		Help: "Total number of runs whose terminal transition was dropped because the cell was reset mid-flight",
	}, []string{"cell"})
)

// Cell is a single-flight mutation state machine.
//
// One cell guards one logical operation. Run rejects re-entrant calls while a
// run is pending, and every state transition is delivered synchronously to
// subscribers in subscription order. Reset forces the cell back to Idle and
// invalidates any run still in flight: the superseded run's terminal
// transition is dropped entirely, for error outcomes as well as success, so
// a stale run can never overwrite the state of a newer one.
//
// All methods are safe for concurrent use.
type Cell[V any] struct {
	name     string
	logger   zerolog.Logger
	notifier *observe.Notifier[State[V]]

	mu     sync.Mutex
	state  State[V]
	runSeq uint64 // bumped on every run start and every reset
}

// NewCell creates an idle cell. The name labels metrics and log lines.
func NewCell[V any](name string, logger zerolog.Logger) *Cell[V] {
	return &Cell[V]{
		name:     name,
		logger:   logger.With().Str("cell", name).Logger(),
		notifier: observe.NewNotifier[State[V]](),
		state:    State[V]{Status: StatusIdle, At: time.Now()},
	}
}

// State returns the current snapshot.
func (c *Cell[V]) State() State[V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns the current status.
func (c *Cell[V]) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Status
}

// Subscribe registers fn for every subsequent state transition. Transitions
// are delivered synchronously, in subscription order, on the goroutine that
// caused them. The returned cancel removes the registration and is
// idempotent.
func (c *Cell[V]) Subscribe(fn func(State[V])) (cancel func()) {
	return c.notifier.Subscribe(fn)
}

// Run executes action under the single-flight guard.
//
// If a run is already pending, Run returns ErrPending without invoking
// action. Otherwise the cell transitions to Pending before action starts
// (observers see Pending first), invokes action, and settles to
// Success(value) or Error(err) when it returns.
//
// Run always reports action's own result to the caller, even when the
// terminal transition was dropped because Reset superseded the run while it
// was in flight.
func (c *Cell[V]) Run(ctx context.Context, action func(context.Context) (V, error)) (V, error) {
	var zero V

	c.mu.Lock()
	if c.state.Status == StatusPending {
		c.mu.Unlock()
		mutationRejectedRunsTotal.WithLabelValues(c.name).Inc()
		c.logger.Debug().Msg("Mutation run rejected, already pending")
		return zero, ErrPending
	}
	c.runSeq++
	token := c.runSeq
	pending := State[V]{Status: StatusPending, At: time.Now()}
	c.state = pending
	c.mu.Unlock()

	mutationTransitionsTotal.WithLabelValues(c.name, string(StatusPending)).Inc()
	c.notifier.Publish(pending)

	value, err := action(ctx)

	c.mu.Lock()
	if token != c.runSeq {
		// Reset (or a run it enabled) superseded this run while the action
		// was in flight. The cell keeps the newer state.
		c.mu.Unlock()
		mutationSupersededRunsTotal.WithLabelValues(c.name).Inc()
		c.logger.Debug().Err(err).Msg("Mutation run superseded by reset, dropping terminal transition")
		return value, err
	}
	var next State[V]
	if err != nil {
		next = State[V]{Status: StatusError, Err: err, At: time.Now()}
	} else {
		next = State[V]{Status: StatusSuccess, Value: value, At: time.Now()}
	}
	c.state = next
	c.mu.Unlock()

	mutationTransitionsTotal.WithLabelValues(c.name, string(next.Status)).Inc()
	c.logger.Debug().Str("status", string(next.Status)).Msg("Mutation run settled")
	c.notifier.Publish(next)

	return value, err
}

// Reset forces the cell back to Idle from any state and invalidates any run
// still in flight. Observers are notified only if the state actually changed.
func (c *Cell[V]) Reset() {
	c.mu.Lock()
	c.runSeq++
	wasIdle := c.state.Status == StatusIdle
	idle := State[V]{Status: StatusIdle, At: time.Now()}
	c.state = idle
	c.mu.Unlock()

	if wasIdle {
		return
	}
	mutationTransitionsTotal.WithLabelValues(c.name, string(StatusIdle)).Inc()
	c.notifier.Publish(idle)
}

// ResetIf resets the cell to Idle only when its current status equals status,
// and reports whether the reset happened. It never fires from Idle (nothing
// to do) and, unlike Reset, leaves a Pending run untouched unless asked for
// explicitly. A reset that fires invalidates any run still in flight.
func (c *Cell[V]) ResetIf(status Status) bool {
	c.mu.Lock()
	if status == StatusIdle || c.state.Status != status {
		c.mu.Unlock()
		return false
	}
	c.runSeq++
	idle := State[V]{Status: StatusIdle, At: time.Now()}
	c.state = idle
	c.mu.Unlock()

	mutationTransitionsTotal.WithLabelValues(c.name, string(StatusIdle)).Inc()
	c.notifier.Publish(idle)
	return true
}

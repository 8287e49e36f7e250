package source

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/medz/zensuite/pkg/query"
)

// BreakerConfig controls the circuit breaker wrapped around a fetcher.
type BreakerConfig struct {
	// Name identifies the breaker in logs and metrics.
	Name string

	// MaxRequests allowed through while the breaker is half-open.
	MaxRequests uint32

	// Interval resets the failure counts while the breaker is closed.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration

	// MinRequests is the minimum sample size before the breaker can trip.
	MinRequests uint32

	// FailureRatio at or above which the breaker trips.
	FailureRatio float64
}

// DefaultBreakerConfig returns the standard breaker settings.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:         name,
		MaxRequests:  3,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// WithBreaker wraps a fetcher with a circuit breaker. Once the failure
// ratio trips it, fetches fail fast without touching the upstream until
// the timeout elapses and a probe succeeds.
func WithBreaker[T, C any](fetch query.Fetcher[T, C], config BreakerConfig, logger zerolog.Logger) query.Fetcher[T, C] {
	log := logger.With().Str("component", "breaker").Str("breaker", config.Name).Logger()

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= config.MinRequests && failureRatio >= config.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})

	return func(ctx context.Context, cursor *C) (query.Page[T], error) {
		result, err := cb.Execute(func() (interface{}, error) {
			return fetch(ctx, cursor)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				breakerRejectionsTotal.WithLabelValues(config.Name).Inc()
			}
			return nil, err
		}
		page, _ := result.(query.Page[T])
		return page, nil
	}
}

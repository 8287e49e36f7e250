package source

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/medz/zensuite/pkg/query"
)

// RetryConfig controls the backoff schedule of WithRetry.
type RetryConfig struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration

	// BackoffMultiplier scales the delay after each failed attempt.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the standard schedule: 3 attempts with
// exponential backoff from 1s to 30s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryConfigForErrorClass returns a schedule tuned to the error class.
// Rate-limit responses back off longer and retry more often; everything
// else uses the default schedule.
func RetryConfigForErrorClass(class ErrorClass) RetryConfig {
	switch class {
	case ErrorClassRateLimit:
		return RetryConfig{
			MaxAttempts:       5,
			InitialBackoff:    5 * time.Second,
			MaxBackoff:        60 * time.Second,
			BackoffMultiplier: 2.0,
		}
	default:
		return DefaultRetryConfig()
	}
}

// WithRetry wraps a fetcher with retries. Non-retryable errors (client
// errors, decode errors, context cancellation) return immediately; the
// rest retry on an exponential schedule with jitter until the attempts
// are exhausted.
func WithRetry[T, C any](fetch query.Fetcher[T, C], config RetryConfig, logger zerolog.Logger) query.Fetcher[T, C] {
	if config.MaxAttempts <= 0 {
		config = DefaultRetryConfig()
	}
	log := logger.With().Str("component", "retry").Logger()

	return func(ctx context.Context, cursor *C) (query.Page[T], error) {
		var lastErr error
		backoff := config.InitialBackoff

		for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
			page, err := fetch(ctx, cursor)
			if err == nil {
				if attempt > 1 {
					log.Info().
						Int("attempt", attempt).
						Msg("Fetch succeeded after retry")
				}
				return page, nil
			}
			lastErr = err

			class := Classify(err)
			if !retryable(err, class) {
				return nil, err
			}
			if attempt == config.MaxAttempts {
				break
			}

			// Add jitter to avoid thundering herd on recovery.
			jitteredBackoff := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
			fetchRetriesTotal.WithLabelValues(string(class)).Inc()
			fetchRetryBackoffSeconds.WithLabelValues(string(class)).Observe(jitteredBackoff.Seconds())

			log.Warn().
				Int("attempt", attempt).
				Int("max_attempts", config.MaxAttempts).
				Dur("backoff", jitteredBackoff).
				Str("error_class", string(class)).
				Err(err).
				Msg("Fetch failed, retrying")

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
			case <-time.After(jitteredBackoff):
			}

			backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}

		class := Classify(lastErr)
		fetchRetryExhaustedTotal.WithLabelValues(string(class)).Inc()
		return nil, fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, config.MaxAttempts, lastErr)
	}
}

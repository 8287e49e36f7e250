package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Rate limit headers read from feed responses. Reset carries seconds until
// the current window ends.
const (
	HeaderBudgetRemaining = "X-RateLimit-Remaining"
	HeaderBudgetReset     = "X-RateLimit-Reset"
)

// Thresholds for error budget decisions.
const (
	// BudgetThresholdCritical blocks all fetches when the remaining budget
	// falls below this value.
	BudgetThresholdCritical = 5

	// BudgetThresholdWarning throttles fetches when the remaining budget
	// falls below this value.
	BudgetThresholdWarning = 20

	// BudgetThresholdHealthy indicates normal operation. At or above this
	// value no restrictions apply.
	BudgetThresholdHealthy = 50
)

// budgetThrottleDelay is the pause applied to each fetch while the budget
// is in the warning band.
const budgetThrottleDelay = 1 * time.Second

// BudgetState is the error budget of one feed. The state is shared across
// all processes consuming the feed via Redis.
type BudgetState struct {
	// Remaining is the number of errors the feed allows before it starts
	// rejecting requests. Extracted from the X-RateLimit-Remaining header.
	Remaining int `json:"remaining"`

	// ResetAt is when the current window ends. Calculated from the
	// X-RateLimit-Reset header (seconds until reset).
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was last written.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= BudgetThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state is older than maxAge.
func (s *BudgetState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsBlock returns true if fetches should be blocked.
func (s *BudgetState) NeedsBlock() bool {
	return s.Remaining < BudgetThresholdCritical
}

// NeedsThrottle returns true if fetches should be slowed down.
func (s *BudgetState) NeedsThrottle() bool {
	return s.Remaining < BudgetThresholdWarning && !s.NeedsBlock()
}

// TimeUntilReset returns the duration until the window resets, 0 if the
// reset time has already passed.
func (s *BudgetState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth recomputes IsHealthy from Remaining.
func (s *BudgetState) UpdateHealth() {
	s.IsHealthy = s.Remaining >= BudgetThresholdHealthy
}

// BudgetTracker monitors a feed's error budget and gates fetches. State
// lives in Redis so every consumer of the feed shares one budget.
type BudgetTracker struct {
	redis  *redis.Client
	feed   string
	logger zerolog.Logger

	keyRemaining  string
	keyResetAt    string
	keyLastUpdate string
}

// NewBudgetTracker creates a tracker for the named feed.
func NewBudgetTracker(redisClient *redis.Client, feed string, logger zerolog.Logger) *BudgetTracker {
	return &BudgetTracker{
		redis:         redisClient,
		feed:          feed,
		logger:        logger.With().Str("component", "budget").Str("feed", feed).Logger(),
		keyRemaining:  fmt.Sprintf("budget:%s:remaining", feed),
		keyResetAt:    fmt.Sprintf("budget:%s:reset_at", feed),
		keyLastUpdate: fmt.Sprintf("budget:%s:last_update", feed),
	}
}

// GetState retrieves the current budget state from Redis. Returns a default
// healthy state when no data exists yet.
func (t *BudgetTracker) GetState(ctx context.Context) (*BudgetState, error) {
	remaining, err := t.redis.Get(ctx, t.keyRemaining).Int()
	if err == redis.Nil {
		// The three keys are written in one pipeline; absence of the first
		// means no state has been recorded yet.
		t.logger.Debug().Msg("No budget state in Redis, returning default healthy state")
		return &BudgetState{
			Remaining:  100,
			ResetAt:    time.Now().Add(60 * time.Second),
			LastUpdate: time.Now(),
			IsHealthy:  true,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get budget remaining: %w", err)
	}

	resetTimestamp, err := t.redis.Get(ctx, t.keyResetAt).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get budget reset timestamp: %w", err)
	}

	lastUpdateStr, err := t.redis.Get(ctx, t.keyLastUpdate).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get budget last update: %w", err)
	}

	var lastUpdate time.Time
	if lastUpdateStr != "" {
		if err := json.Unmarshal([]byte(lastUpdateStr), &lastUpdate); err != nil {
			return nil, fmt.Errorf("parse budget last update: %w", err)
		}
	}

	state := &BudgetState{
		Remaining:  remaining,
		ResetAt:    time.Unix(resetTimestamp, 0),
		LastUpdate: lastUpdate,
	}
	state.UpdateHealth()

	return state, nil
}

// UpdateFromHeaders parses the feed's rate limit headers and stores the new
// state in Redis. Responses without the remaining header are ignored.
func (t *BudgetTracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(HeaderBudgetRemaining)
	if remainStr == "" {
		return nil
	}

	remaining, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderBudgetRemaining, err)
	}

	resetStr := headers.Get(HeaderBudgetReset)
	if resetStr == "" {
		return fmt.Errorf("%s header missing", HeaderBudgetReset)
	}

	resetSeconds, err := strconv.Atoi(resetStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderBudgetReset, err)
	}

	now := time.Now()
	state := &BudgetState{
		Remaining:  remaining,
		ResetAt:    now.Add(time.Duration(resetSeconds) * time.Second),
		LastUpdate: now,
	}
	state.UpdateHealth()

	lastUpdateJSON, err := json.Marshal(state.LastUpdate)
	if err != nil {
		return fmt.Errorf("marshal budget last update: %w", err)
	}

	pipe := t.redis.Pipeline()
	pipe.Set(ctx, t.keyRemaining, remaining, 0)
	pipe.Set(ctx, t.keyResetAt, state.ResetAt.Unix(), 0)
	pipe.Set(ctx, t.keyLastUpdate, lastUpdateJSON, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store budget state in redis: %w", err)
	}

	feedBudgetRemaining.WithLabelValues(t.feed).Set(float64(remaining))

	if state.NeedsBlock() {
		t.logger.Error().
			Int("remaining", remaining).
			Time("reset_at", state.ResetAt).
			Msg("Feed error budget critical, fetches will be blocked")
	} else if state.NeedsThrottle() {
		t.logger.Warn().
			Int("remaining", remaining).
			Time("reset_at", state.ResetAt).
			Msg("Feed error budget low, fetches will be throttled")
	} else {
		t.logger.Debug().
			Int("remaining", remaining).
			Bool("is_healthy", state.IsHealthy).
			Msg("Feed error budget updated")
	}

	return nil
}

// ShouldAllow reports whether a fetch may proceed under the current budget.
// A critical budget blocks the fetch. A warning budget allows it after a
// throttle pause, which ends early if ctx is done.
func (t *BudgetTracker) ShouldAllow(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get budget state: %w", err)
	}

	if state.NeedsBlock() {
		t.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait", state.TimeUntilReset()).
			Msg("Feed error budget critical, blocking fetch")
		feedBudgetBlocksTotal.WithLabelValues(t.feed).Inc()
		return false, nil
	}

	if state.NeedsThrottle() {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Msg("Feed error budget low, throttling fetch")
		feedBudgetThrottlesTotal.WithLabelValues(t.feed).Inc()

		select {
		case <-time.After(budgetThrottleDelay):
		case <-ctx.Done():
			return false, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		}
	}

	return true, nil
}

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/medz/zensuite/pkg/paging"
	"github.com/medz/zensuite/pkg/query"
)

// Config holds the HTTP feed configuration.
type Config struct {
	// BaseURL is the page endpoint, without query parameters.
	BaseURL string

	// UserAgent header sent on every request (required).
	UserAgent string

	// PageSize requested per page. Defaults to paging.DefaultLimit.
	PageSize int

	// HTTPClient used for requests. Defaults to a 30s-timeout client.
	HTTPClient *http.Client

	// Budget gates fetches on the feed's shared error budget. Optional;
	// nil disables budget tracking.
	Budget *BudgetTracker

	// Logger for debug lines. Defaults to a no-op logger.
	Logger zerolog.Logger
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: userAgent,
		PageSize:  paging.DefaultLimit,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Feed fetches pages of T from an HTTP endpoint speaking the paging
// envelope. The cursor type C is encoded into the request's cursor query
// parameter as an opaque token; only the envelope's items reach the caller,
// so cursor derivation stays with the resolver.
type Feed[T, C any] struct {
	config   Config
	base     *url.URL
	endpoint string
	logger   zerolog.Logger
}

// NewFeed creates an HTTP feed source.
func NewFeed[T, C any](cfg Config) (*Feed[T, C], error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http(s), got %q", cfg.BaseURL)
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = paging.DefaultLimit
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Feed[T, C]{
		config:   cfg,
		base:     base,
		endpoint: base.Path,
		logger:   cfg.Logger.With().Str("component", "feed").Str("endpoint", base.Path).Logger(),
	}, nil
}

// Fetch loads one page. It satisfies query.Fetcher[T, C]; a nil cursor
// requests the first page.
func (f *Feed[T, C]) Fetch(ctx context.Context, cursor *C) (query.Page[T], error) {
	startTime := time.Now()
	defer func() {
		feedRequestDuration.WithLabelValues(f.endpoint).Observe(time.Since(startTime).Seconds())
	}()

	if f.config.Budget != nil {
		allowed, err := f.config.Budget.ShouldAllow(ctx)
		if err != nil {
			f.logger.Error().Err(err).Msg("Budget check failed")
			return nil, fmt.Errorf("budget check: %w", err)
		}
		if !allowed {
			f.logger.Warn().Msg("Fetch blocked by error budget")
			feedRequestsTotal.WithLabelValues(f.endpoint, "budget_blocked").Inc()
			return nil, &FeedError{ErrorClass: ErrorClassRateLimit, Message: "feed error budget critical"}
		}
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(f.config.PageSize))
	if cursor != nil {
		token, err := paging.EncodeCursor(*cursor)
		if err != nil {
			return nil, &FeedError{ErrorClass: ErrorClassClient, Message: "encode cursor", Err: err}
		}
		params.Set("cursor", token)
	}
	reqURL := *f.base
	reqURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	f.logger.Debug().
		Bool("first", cursor == nil).
		Msg("Executing feed request")

	resp, err := f.config.HTTPClient.Do(req)
	if err != nil {
		feedErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		feedRequestsTotal.WithLabelValues(f.endpoint, "network_error").Inc()
		f.logger.Error().Err(err).Msg("Feed request failed")
		return nil, &FeedError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if f.config.Budget != nil {
		if err := f.config.Budget.UpdateFromHeaders(ctx, resp.Header); err != nil {
			f.logger.Warn().Err(err).Msg("Failed to update budget from headers")
		}
	}

	if resp.StatusCode != http.StatusOK {
		class := ClassifyStatus(resp.StatusCode)
		feedErrorsTotal.WithLabelValues(string(class)).Inc()
		feedRequestsTotal.WithLabelValues(f.endpoint, strconv.Itoa(resp.StatusCode)).Inc()
		f.logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Feed request error")
		return nil, &FeedError{StatusCode: resp.StatusCode, ErrorClass: class, Message: resp.Status}
	}

	var result paging.Result[T]
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		feedErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		feedRequestsTotal.WithLabelValues(f.endpoint, "decode_error").Inc()
		f.logger.Warn().Err(err).Msg("Feed envelope decode failed")
		return nil, &FeedError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassDecode, Message: "decode page envelope", Err: err}
	}

	feedRequestsTotal.WithLabelValues(f.endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	f.logger.Debug().
		Int("items", len(result.Items)).
		Bool("has_next", result.HasNextPage).
		Msg("Feed page received")

	return query.Page[T](result.Items), nil
}

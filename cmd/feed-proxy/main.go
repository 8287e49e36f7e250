package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/medz/zensuite/pkg/bus"
	"github.com/medz/zensuite/pkg/logging"
	"github.com/medz/zensuite/pkg/paging"
	"github.com/medz/zensuite/pkg/query"
	"github.com/medz/zensuite/pkg/source"
)

// Item is the sample catalog entry served by /feed.
type Item struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// aggregateResponse is the payload of /aggregate.
type aggregateResponse struct {
	Items   []Item `json:"items"`
	Pages   int    `json:"pages"`
	HasNext bool   `json:"has_next"`
}

const maxAggregatePages = 50

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found")
	}

	// Configuration from environment
	port := getEnv("PORT", "8080")
	redisURL := getEnv("REDIS_URL", "localhost:6379")
	feedURL := getEnv("FEED_URL", "http://localhost:"+port+"/feed")
	userAgent := getEnv("USER_AGENT", "zensuite-feed-proxy/0.1.0")
	pageSize := getEnvInt("PAGE_SIZE", 50)
	cacheTTL := time.Duration(getEnvInt("CACHE_TTL_SECONDS", 300)) * time.Second
	datasetSize := getEnvInt("DATASET_SIZE", 500)

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: getEnvBool("LOG_PRETTY", false),
		Output: os.Stderr,
	})
	logger := logging.NewLogger("feed-proxy")

	// Setup Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: redisURL,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("addr", redisURL).Msg("Failed to connect to Redis")
	}
	logger.Info().Str("addr", redisURL).Msg("Connected to Redis")

	// Event bus carrying fetch lifecycle events
	events := bus.New(logger)
	defer events.Close()
	events.Subscribe("aggregate.completed", func(payload any) {
		logger.Debug().Interface("result", payload).Msg("Aggregate completed")
	})

	// Upstream fetch chain: page cache over retry over breaker over HTTP,
	// gated by the feed's shared error budget
	budget := source.NewBudgetTracker(redisClient, "upstream-feed", logger)
	feed, err := source.NewFeed[Item, int](source.Config{
		BaseURL:   feedURL,
		UserAgent: userAgent,
		PageSize:  pageSize,
		Budget:    budget,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create feed source")
	}
	fetch := source.WithPageCache(
		source.WithRetry(
			source.WithBreaker(feed.Fetch, source.DefaultBreakerConfig("upstream-feed"), logger),
			source.DefaultRetryConfig(),
			logger,
		),
		source.NewRedisPageCache(redisClient),
		source.CacheConfig{Feed: "upstream-feed", TTL: cacheTTL},
		logger,
	)

	dataset := sampleItems(datasetSize)

	http.HandleFunc("/health", healthHandler)
	http.HandleFunc("/ready", readyHandler(redisClient))
	http.HandleFunc("/feed", feedHandler(dataset))
	http.HandleFunc("/aggregate", aggregateHandler(fetch, pageSize, events, logger))
	http.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: ":" + port}

	go func() {
		logger.Info().
			Str("addr", server.Addr).
			Str("feed_url", feedURL).
			Str("user_agent", userAgent).
			Msg("Starting feed proxy server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Shutdown failed")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports readiness based on the Redis connection.
func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			http.Error(w, fmt.Sprintf("Redis unavailable: %v", err), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

// feedHandler serves keyset pages of the sample dataset.
func feedHandler(items []Item) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := paging.Params{Cursor: r.URL.Query().Get("cursor")}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil {
				http.Error(w, `{"error": "invalid limit"}`, http.StatusBadRequest)
				return
			}
			params.Limit = limit
		}

		result, err := paging.Paginate(params, pageFunc(items))
		if err != nil {
			http.Error(w, `{"error": "bad cursor"}`, http.StatusBadRequest)
			return
		}

		// The demo feed never rejects, so it advertises a full budget.
		w.Header().Set(source.HeaderBudgetRemaining, "100")
		w.Header().Set(source.HeaderBudgetReset, "60")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(result)
	}
}

// pageFunc pages through items by ID keyset.
func pageFunc(items []Item) paging.PagingFunc[Item] {
	return func(cursor string, limit int) ([]Item, int, string, error) {
		start := 0
		if cursor != "" {
			id, err := paging.DecodeCursor[int](cursor)
			if err != nil {
				return nil, 0, "", err
			}
			start = -1
			for i, item := range items {
				if item.ID == id {
					start = i + 1
					break
				}
			}
			if start < 0 {
				return nil, 0, "", fmt.Errorf("unknown cursor %d", id)
			}
		}

		end := start + limit
		if end > len(items) {
			end = len(items)
		}
		page := items[start:end]

		// The over-fetched row only signals has_next; the served page ends
		// one item earlier.
		next := ""
		if len(page) == limit {
			token, err := paging.EncodeCursor(page[limit-2].ID)
			if err != nil {
				return nil, 0, "", err
			}
			next = token
		}
		return page, len(items), next, nil
	}
}

// aggregateHandler drives a fresh controller over the upstream feed and
// returns the flattened items.
func aggregateHandler(fetch query.Fetcher[Item, int], pageSize int, events *bus.Bus, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pages := 1
		if raw := r.URL.Query().Get("pages"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				http.Error(w, `{"error": "invalid pages"}`, http.StatusBadRequest)
				return
			}
			pages = n
		}
		if pages > maxAggregatePages {
			pages = maxAggregatePages
		}

		q := query.NewInfinite(fetch, query.KeysetWhileFull(pageSize, func(it Item) int {
			return it.ID
		}), query.WithLogger(logger))
		defer q.Dispose()

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		if err := q.FetchAll(ctx, pages); err != nil {
			logger.Error().Err(err).Msg("Aggregate fetch failed")
			http.Error(w, fmt.Sprintf("upstream fetch failed: %v", err), http.StatusBadGateway)
			return
		}

		resp := aggregateResponse{
			Items:   q.Items(),
			Pages:   len(q.Pages()),
			HasNext: q.HasNext(),
		}
		events.Publish("aggregate.completed", resp.Pages)

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}
}

// sampleItems builds the deterministic demo catalog.
func sampleItems(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{
			ID:    i + 1,
			Name:  fmt.Sprintf("item-%04d", i+1),
			Price: float64((i%40)+1) * 2.5,
		}
	}
	return items
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

package source

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/medz/zensuite/pkg/query"
)

// ScoredMember is one element of a Redis sorted set.
type ScoredMember struct {
	Member string  `json:"member"`
	Score  float64 `json:"score"`
}

// ZSetConfig configures a sorted-set source.
type ZSetConfig struct {
	// Key is the sorted set to page over.
	Key string

	// PageSize is the number of members per page.
	PageSize int
}

// ZSet builds a fetcher that pages through a Redis sorted set in ascending
// score order, using the score as the cursor. Scores must be unique within
// the set; members sharing the score of a page boundary would be skipped.
func ZSet(client *redis.Client, cfg ZSetConfig) (query.Fetcher[ScoredMember, float64], error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("sorted set key is required")
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", cfg.PageSize)
	}

	return func(ctx context.Context, cursor *float64) (query.Page[ScoredMember], error) {
		min := "-inf"
		if cursor != nil {
			// Exclusive bound so the page starts after the cursor member.
			min = "(" + strconv.FormatFloat(*cursor, 'f', -1, 64)
		}

		members, err := client.ZRangeByScoreWithScores(ctx, cfg.Key, &redis.ZRangeBy{
			Min:   min,
			Max:   "+inf",
			Count: int64(cfg.PageSize),
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("zrangebyscore %s: %w", cfg.Key, err)
		}

		page := make(query.Page[ScoredMember], 0, len(members))
		for _, m := range members {
			member, ok := m.Member.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected member type %T in %s", m.Member, cfg.Key)
			}
			page = append(page, ScoredMember{Member: member, Score: m.Score})
		}
		return page, nil
	}, nil
}

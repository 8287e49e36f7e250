package source

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/medz/zensuite/pkg/query"
)

// SQLKeysetConfig configures a keyset-paged SQL source. Both queries must
// order rows by the cursor column ascending and the rows must scan into T
// via db struct tags.
type SQLKeysetConfig struct {
	// FirstQuery selects the first page. It receives the limit as $1.
	//
	// Example:
	//   SELECT id, name FROM items ORDER BY id LIMIT $1
	FirstQuery string

	// NextQuery selects the page after a cursor. It receives the cursor
	// as $1 and the limit as $2.
	//
	// Example:
	//   SELECT id, name FROM items WHERE id > $1 ORDER BY id LIMIT $2
	NextQuery string

	// PageSize is the number of rows per page.
	PageSize int
}

// SQLKeyset builds a fetcher that pages through a SQL table using keyset
// pagination. The cursor type C must match the placeholder the NextQuery
// compares against.
func SQLKeyset[T, C any](db *sqlx.DB, cfg SQLKeysetConfig, logger zerolog.Logger) (query.Fetcher[T, C], error) {
	if db == nil {
		return nil, fmt.Errorf("db handle is required")
	}
	if cfg.FirstQuery == "" {
		return nil, fmt.Errorf("first-page query is required")
	}
	if cfg.NextQuery == "" {
		return nil, fmt.Errorf("next-page query is required")
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", cfg.PageSize)
	}
	log := logger.With().Str("component", "sql_source").Logger()

	return func(ctx context.Context, cursor *C) (query.Page[T], error) {
		var rows []T
		var err error
		if cursor == nil {
			err = db.SelectContext(ctx, &rows, cfg.FirstQuery, cfg.PageSize)
		} else {
			err = db.SelectContext(ctx, &rows, cfg.NextQuery, *cursor, cfg.PageSize)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to select page: %w", err)
		}

		log.Debug().
			Int("rows", len(rows)).
			Bool("first", cursor == nil).
			Msg("Page selected")

		return query.Page[T](rows), nil
	}, nil
}

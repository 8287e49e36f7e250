// Package paging defines the wire envelope and cursor token codec shared by
// feed servers and feed clients. Cursor tokens are opaque to clients: any
// JSON-encodable cursor value round-trips through a URL-safe base64 string.
package paging

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Default bounds applied by NormalizeParams.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Params holds the pagination parameters of one page request.
type Params struct {
	Cursor string `json:"cursor"`
	Limit  int    `json:"limit"`
}

// Result holds one page of a feed response.
type Result[T any] struct {
	Items       []T    `json:"items"`
	Total       int    `json:"total,omitempty"`
	NextCursor  string `json:"next,omitempty"`
	HasNextPage bool   `json:"has_next"`
}

// NormalizeParams clamps Limit into the acceptable range.
func NormalizeParams(params Params) Params {
	if params.Limit <= 0 || params.Limit > MaxLimit {
		params.Limit = DefaultLimit
	}
	return params
}

// EncodeCursor encodes a cursor value to an opaque URL-safe token.
func EncodeCursor[C any](cursor C) (string, error) {
	raw, err := json.Marshal(cursor)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeCursor decodes a token produced by EncodeCursor.
func DecodeCursor[C any](token string) (C, error) {
	var cursor C
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return cursor, fmt.Errorf("decode cursor: %w", err)
	}
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return cursor, fmt.Errorf("decode cursor: %w", err)
	}
	return cursor, nil
}

// PagingFunc loads up to limit items at cursor and reports the cursor of the
// page after them.
type PagingFunc[T any] func(cursor string, limit int) (items []T, total int, nextCursor string, err error)

// Paginate applies pagination using the provided PagingFunc. It over-fetches
// by one item to decide HasNextPage without a second query.
func Paginate[T any](params Params, paginateFunc PagingFunc[T]) (*Result[T], error) {
	params = NormalizeParams(params)
	items, total, nextCursor, err := paginateFunc(params.Cursor, params.Limit+1)
	if err != nil {
		return nil, fmt.Errorf("pagination error: %w", err)
	}

	hasNextPage := false
	if len(items) > params.Limit {
		hasNextPage = true
		items = items[:params.Limit]
	}

	if items == nil {
		items = make([]T, 0)
	}

	return &Result[T]{
		Items:       items,
		Total:       total,
		NextCursor:  nextCursor,
		HasNextPage: hasNextPage,
	}, nil
}

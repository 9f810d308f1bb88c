package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	HashStore
	SetStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem holds a single key+fields pair for pipelined HSET.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore provides hash-based record operations.
type HashStore interface {
	HSetMulti(ctx context.Context, items []HashSetItem) error
	// HReplaceMulti deletes and rewrites each hash atomically.
	HReplaceMulti(ctx context.Context, items []HashSetItem) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	// DelMulti deletes keys and returns how many existed.
	DelMulti(ctx context.Context, keys []string) (int, error)
	// HSetIfExistsMulti sets field=value on every key that still exists.
	// It returns how many keys were updated.
	HSetIfExistsMulti(ctx context.Context, keys []string, field, value string) (int, error)
}

// SetStore provides set operations used for bookkeeping of pending writes.
type SetStore interface {
	SAdd(ctx context.Context, key string, members ...string) error
	SPop(ctx context.Context, key string, count int) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher provides search and aggregation over FT indexes.
type Searcher interface {
	Search(ctx context.Context, q *SearchQuery) (*SearchResult, error)
	Aggregate(ctx context.Context, q *AggregateQuery) (*AggregateResult, error)
	SearchCount(ctx context.Context, index, query string, params []Param) (int, error)
}

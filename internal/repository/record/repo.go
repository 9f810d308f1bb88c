// Package record stores catalog records as Redis hashes.
package record

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/ftcatalog/internal/db"
	domrec "github.com/kailas-cloud/ftcatalog/internal/domain/record"
	"github.com/kailas-cloud/ftcatalog/internal/mapper"
)

// DefaultCommitBatch is how many pending keys one commit step flips.
const DefaultCommitBatch = 500

// store is the consumer interface for records (ISP).
//
//nolint:interfacebloat // record repo needs hash and pending-set operations
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HReplaceMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	DelMulti(ctx context.Context, keys []string) (int, error)
	HSetIfExistsMulti(ctx context.Context, keys []string, field, value string) (int, error)
	SAdd(ctx context.Context, key string, members ...string) error
	SPop(ctx context.Context, key string, count int) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)
}

// Repo implements the record storage used by ingest and id lookups.
type Repo struct {
	store       store
	mapper      *mapper.Mapper
	layout      *mapper.Layout
	commitBatch int
}

// New creates a record repository.
func New(s store, m *mapper.Mapper) *Repo {
	return &Repo{store: s, mapper: m, layout: m.Layout(), commitBatch: DefaultCommitBatch}
}

// WithCommitBatch sets how many pending keys one commit step flips.
func (r *Repo) WithCommitBatch(n int) *Repo {
	if n > 0 {
		r.commitBatch = n
	}
	return r
}

// Put writes records in one round-trip. With replace set every hash is
// rewritten from scratch. Invisible records are queued for the next commit.
func (r *Repo) Put(ctx context.Context, recs []*domrec.Record, replace, visible bool) error {
	if len(recs) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, len(recs))
	keys := make([]string, len(recs))
	for i, rec := range recs {
		doc, err := r.mapper.ToDocument(rec, visible)
		if err != nil {
			return err
		}
		keys[i] = r.layout.Key(rec.ID)
		items[i] = db.HashSetItem{Key: keys[i], Fields: doc}
	}

	write := r.store.HSetMulti
	if replace {
		write = r.store.HReplaceMulti
	}
	if err := write(ctx, items); err != nil {
		return fmt.Errorf("write %d records: %w", len(items), err)
	}
	if visible {
		return nil
	}
	if err := r.store.SAdd(ctx, r.layout.PendingKey(), keys...); err != nil {
		return fmt.Errorf("queue %d records: %w", len(keys), err)
	}
	return nil
}

// Get reads records by id, visible or not. The result is aligned with ids;
// missing records are nil.
func (r *Repo) Get(ctx context.Context, ids []string) ([]*domrec.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.layout.Key(id)
	}
	return r.hydrate(ctx, keys)
}

// GetByKeys reads records by hash key; missing records are nil.
func (r *Repo) GetByKeys(ctx context.Context, keys []string) ([]*domrec.Record, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	return r.hydrate(ctx, keys)
}

func (r *Repo) hydrate(ctx context.Context, keys []string) ([]*domrec.Record, error) {
	docs, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("read %d records: %w", len(keys), err)
	}
	out := make([]*domrec.Record, len(docs))
	for i, doc := range docs {
		if len(doc) == 0 {
			continue
		}
		rec, err := r.mapper.FromDocument(doc)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		out[i] = rec
	}
	return out, nil
}

// Delete removes records by id and returns how many existed.
func (r *Repo) Delete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.layout.Key(id)
	}
	n, err := r.store.DelMulti(ctx, keys)
	if err != nil {
		return 0, fmt.Errorf("delete %d records: %w", len(keys), err)
	}
	return n, nil
}

// Commit makes every pending record visible and returns how many were
// flipped. Pending keys whose record was deleted meanwhile are dropped.
func (r *Repo) Commit(ctx context.Context) (int, error) {
	total := 0
	for {
		keys, err := r.store.SPop(ctx, r.layout.PendingKey(), r.commitBatch)
		if err != nil {
			return total, fmt.Errorf("pop pending: %w", err)
		}
		if len(keys) == 0 {
			return total, nil
		}
		n, err := r.store.HSetIfExistsMulti(ctx, keys, mapper.FieldVisible, mapper.VisibleValue)
		if err != nil {
			// Requeue so the next commit retries them.
			if qerr := r.store.SAdd(ctx, r.layout.PendingKey(), keys...); qerr != nil {
				return total, fmt.Errorf("flip %d pending: %w (requeue: %w)", len(keys), err, qerr)
			}
			return total, fmt.Errorf("flip %d pending: %w", len(keys), err)
		}
		total += n
		if len(keys) < r.commitBatch {
			return total, nil
		}
	}
}

// Pending returns how many writes await a commit.
func (r *Repo) Pending(ctx context.Context) (int64, error) {
	n, err := r.store.SCard(ctx, r.layout.PendingKey())
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}

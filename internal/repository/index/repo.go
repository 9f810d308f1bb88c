// Package index manages the lifecycle of the catalog FT index.
package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/ftcatalog/internal/db"
	"github.com/kailas-cloud/ftcatalog/internal/mapper"
)

// store is the consumer interface for index management (ISP).
type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Repo creates and drops the index described by a layout.
type Repo struct {
	store  store
	layout *mapper.Layout
}

// New creates an index repository.
func New(s store, layout *mapper.Layout) *Repo {
	return &Repo{store: s, layout: layout}
}

// Ensure creates the index unless it exists. It reports whether it was created.
func (r *Repo) Ensure(ctx context.Context) (bool, error) {
	name := r.layout.IndexName()
	exists, err := r.store.IndexExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", name, err)
	}
	if exists {
		return false, nil
	}

	def, err := r.layout.IndexDefinition()
	if err != nil {
		return false, fmt.Errorf("build index %s: %w", name, err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		// Lost a race with another process creating the same index.
		if errors.Is(err, db.ErrIndexExists) {
			return false, nil
		}
		return false, fmt.Errorf("create index %s: %w", name, err)
	}
	return true, nil
}

// Rebuild drops and recreates the index. Records are kept and reindexed.
func (r *Repo) Rebuild(ctx context.Context) error {
	name := r.layout.IndexName()
	if err := r.store.DropIndex(ctx, name); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", name, err)
	}
	if _, err := r.Ensure(ctx); err != nil {
		return err
	}
	return nil
}

package ingest

import (
	"context"

	"github.com/kailas-cloud/ftcatalog/internal/db"
	"github.com/kailas-cloud/ftcatalog/internal/domain/predicate"
	"github.com/kailas-cloud/ftcatalog/internal/domain/record"
	"github.com/kailas-cloud/ftcatalog/internal/translator"
)

// RecordStore persists records and governs their visibility.
type RecordStore interface {
	Put(ctx context.Context, recs []*record.Record, replace, visible bool) error
	Get(ctx context.Context, ids []string) ([]*record.Record, error)
	Delete(ctx context.Context, ids []string) (int, error)
	Commit(ctx context.Context) (int, error)
	Pending(ctx context.Context) (int64, error)
}

// Matcher resolves native queries to record ids, ignoring visibility.
type Matcher interface {
	MatchIDs(ctx context.Context, query string, params []db.Param, limit int) ([]string, error)
}

// Compiler translates predicate trees.
type Compiler interface {
	Compile(n *predicate.Node) (*translator.Compiled, error)
}

// Validator checks that records can be encoded before anything is written.
type Validator interface {
	Validate(r *record.Record) error
}

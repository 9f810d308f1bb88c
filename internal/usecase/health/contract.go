package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// IndexChecker reports whether the catalog index exists.
type IndexChecker interface {
	IndexExists(ctx context.Context, name string) (bool, error)
}

// PendingCounter reports deferred writes awaiting a commit.
type PendingCounter interface {
	Pending(ctx context.Context) (int64, error)
}

// Package app is the composition root shared by the library entry point and
// the catalog daemon.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ftcatalog/internal/db"
	"github.com/kailas-cloud/ftcatalog/internal/domain/schema"
	"github.com/kailas-cloud/ftcatalog/internal/domain/settings"
	"github.com/kailas-cloud/ftcatalog/internal/facet"
	logpkg "github.com/kailas-cloud/ftcatalog/internal/logger"
	"github.com/kailas-cloud/ftcatalog/internal/mapper"
	"github.com/kailas-cloud/ftcatalog/internal/planner"
	indexrepo "github.com/kailas-cloud/ftcatalog/internal/repository/index"
	recordrepo "github.com/kailas-cloud/ftcatalog/internal/repository/record"
	searchrepo "github.com/kailas-cloud/ftcatalog/internal/repository/search"
	"github.com/kailas-cloud/ftcatalog/internal/translator"
	contenttypeuc "github.com/kailas-cloud/ftcatalog/internal/usecase/contenttype"
	healthuc "github.com/kailas-cloud/ftcatalog/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/ftcatalog/internal/usecase/ingest"
	searchuc "github.com/kailas-cloud/ftcatalog/internal/usecase/search"
)

// Config selects how the catalog is assembled. Zero values keep package defaults.
type Config struct {
	Registry *schema.Registry
	Settings *settings.Settings

	KeyPrefix        string
	GeometryMaxParts int
	SourceID         string

	DefaultPageSize int
	FetchChunk      int
	QueryTimeout    time.Duration

	CommitBatch int
	BatchLimit  int
	RatePerSec  float64
	RateBurst   int

	// ModeCommitTimeout bounds the commit run when the mode flips to
	// immediate. Zero uses DefaultModeCommitTimeout.
	ModeCommitTimeout time.Duration

	// SkipIndex leaves index creation to the operator.
	SkipIndex bool
}

// DefaultModeCommitTimeout bounds the commit that follows a switch to immediate mode.
const DefaultModeCommitTimeout = 30 * time.Second

// Catalog holds the wired services.
type Catalog struct {
	Layout       *mapper.Layout
	Settings     *settings.Settings
	Ingest       *ingestuc.Service
	Search       *searchuc.Service
	ContentTypes *contenttypeuc.Service
	Health       *healthuc.Service
	Index        *indexrepo.Repo

	mapper        *mapper.Mapper
	logger        *zap.Logger
	commitTimeout time.Duration
}

// Build wires the catalog over store and ensures its index exists.
// Switching the commit mode to immediate commits pending writes.
func Build(ctx context.Context, store db.Store, cfg Config, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := cfg.Registry
	if reg == nil {
		var err error
		if reg, err = schema.NewRegistry(); err != nil {
			return nil, fmt.Errorf("core registry: %w", err)
		}
	}
	st := cfg.Settings
	if st == nil {
		st = settings.New()
	}

	layout, err := mapper.NewLayout(reg, cfg.KeyPrefix, cfg.GeometryMaxParts)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	m, err := mapper.New(layout, st)
	if err != nil {
		return nil, fmt.Errorf("mapper: %w", err)
	}

	idx := indexrepo.New(store, layout)
	if !cfg.SkipIndex {
		created, err := idx.Ensure(ctx)
		if err != nil {
			m.Close()
			return nil, err
		}
		if created {
			logger.Info("index created", zap.String("index", layout.IndexName()))
		}
	}

	tr := translator.New(layout, st, translator.WithLogger(logpkg.Component(logger, "translator")))
	pl := planner.New(layout,
		planner.WithDefaultPageSize(cfg.DefaultPageSize),
		planner.WithFetchChunk(cfg.FetchChunk),
		planner.WithLogger(logpkg.Component(logger, "planner")),
	)

	records := recordrepo.New(store, m)
	if cfg.CommitBatch > 0 {
		records = records.WithCommitBatch(cfg.CommitBatch)
	}
	searches := searchrepo.New(store, records, m)
	facets := facet.New(store, layout, logpkg.Component(logger, "facet"))

	ingest := ingestuc.New(records, searches, tr, m, reg, st, logpkg.Component(logger, "ingest")).
		WithSourceID(cfg.SourceID).
		WithBatchLimit(cfg.BatchLimit)
	if cfg.RatePerSec > 0 {
		ingest = ingest.WithRateLimit(cfg.RatePerSec, cfg.RateBurst)
	}

	search := searchuc.New(tr, pl, searches, facets, logpkg.Component(logger, "search"))
	if cfg.QueryTimeout > 0 {
		search = search.WithTimeout(cfg.QueryTimeout)
	}

	c := &Catalog{
		Layout:       layout,
		Settings:     st,
		Ingest:       ingest,
		Search:       search,
		ContentTypes: contenttypeuc.New(searches),
		Health:       healthuc.New(store, store, layout.IndexName(), ingest),
		Index:        idx,
		mapper:       m,
		logger:       logger,

		commitTimeout: cfg.ModeCommitTimeout,
	}
	if c.commitTimeout <= 0 {
		c.commitTimeout = DefaultModeCommitTimeout
	}
	st.OnCommitModeChange(c.onModeChange)
	return c, nil
}

func (c *Catalog) onModeChange(mode settings.CommitMode) {
	c.logger.Info("commit mode changed", zap.Stringer("mode", mode))
	if mode != settings.Immediate {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.commitTimeout)
	defer cancel()
	n, err := c.Ingest.Commit(ctx)
	if err != nil {
		// Whatever was not flipped stays pending for the next commit.
		c.logger.Error("commit on mode change failed", zap.Error(err))
		return
	}
	c.logger.Info("pending writes committed", zap.Int("records", n))
}

// RunAutoCommit commits pending writes every interval while the commit mode
// is deferred. It returns when ctx is done.
func (c *Catalog) RunAutoCommit(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.Settings.CommitMode() != settings.Deferred {
				continue
			}
			n, err := c.Ingest.Commit(ctx)
			if err != nil {
				c.logger.Warn("auto-commit failed", zap.Error(err))
				continue
			}
			if n > 0 {
				c.logger.Debug("auto-commit", zap.Int("records", n))
			}
		}
	}
}

// Close detaches the mode hook and releases encoder resources. The store is
// owned by the caller.
func (c *Catalog) Close() {
	c.Settings.OnCommitModeChange(nil)
	c.mapper.Close()
}

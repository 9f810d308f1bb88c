package ftcatalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ftcatalog/internal/app"
	"github.com/kailas-cloud/ftcatalog/internal/db"
	dbRedis "github.com/kailas-cloud/ftcatalog/internal/db/redis"
	"github.com/kailas-cloud/ftcatalog/internal/domain/schema"
	"github.com/kailas-cloud/ftcatalog/internal/domain/settings"
)

const defaultReadinessTimeout = 10 * time.Second

// Provider is the catalog entry point. It is safe for concurrent use.
type Provider struct {
	store   db.Store
	catalog *app.Catalog
}

// New connects to the database, ensures the index exists and wires the
// catalog.
func New(opts ...Option) (*Provider, error) {
	cfg := &providerConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("ftcatalog: database address required (use WithRedis)")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Username: cfg.username,
		Password: cfg.password,
		DB:       cfg.db,
		Timeout:  cfg.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("ftcatalog: create redis store: %w", err)
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("ftcatalog: database not ready: %w", err)
	}

	p, err := open(ctx, store, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	return p, nil
}

func open(ctx context.Context, store db.Store, cfg *providerConfig) (*Provider, error) {
	reg, err := registry(cfg.schemas)
	if err != nil {
		return nil, fmt.Errorf("ftcatalog: %w", err)
	}

	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	st := settings.New()
	st.SetCommitMode(cfg.commitMode)
	if cfg.structural != nil {
		st.SetStructuralIndex(*cfg.structural)
	}
	if cfg.nearestDistance != 0 && !st.SetNearestDistance(cfg.nearestDistance) {
		logger.Warn("ignoring out-of-range nearest distance",
			zap.Float64("nearest_distance_m", cfg.nearestDistance),
			zap.Float64("default_m", st.NearestDistance()),
		)
	}

	c, err := app.Build(ctx, store, app.Config{
		Registry:         reg,
		Settings:         st,
		KeyPrefix:        cfg.keyPrefix,
		GeometryMaxParts: cfg.maxParts,
		SourceID:         cfg.sourceID,
		DefaultPageSize:  cfg.pageSize,
		FetchChunk:       cfg.fetchChunk,
		QueryTimeout:     cfg.queryTimeout,
		CommitBatch:      cfg.commitBatch,
		BatchLimit:       cfg.batchLimit,
		RatePerSec:       cfg.ratePerSec,
		RateBurst:        cfg.rateBurst,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("ftcatalog: %w", err)
	}
	return &Provider{store: store, catalog: c}, nil
}

func registry(specs []schemaSpec) (*schema.Registry, error) {
	schemas := make([]schema.Schema, 0, len(specs))
	for _, sp := range specs {
		s, err := schema.New(sp.name, sp.attrs)
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, s)
	}
	return schema.NewRegistry(schemas...)
}

// Close releases all resources.
func (p *Provider) Close() {
	if p.catalog != nil {
		p.catalog.Close()
	}
	if p.store != nil {
		p.store.Close()
	}
}

// Ping checks database connectivity.
func (p *Provider) Ping(ctx context.Context) error {
	if err := p.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Query evaluates q. A nil query matches nothing. Failures are *QueryError.
func (p *Provider) Query(ctx context.Context, q *Query) (*Response, error) {
	return p.catalog.Search.Query(ctx, q)
}

// Create stores new records and returns them with their final ids.
// Failures are *IngestError.
func (p *Provider) Create(ctx context.Context, req *CreateRequest) (*CreateResponse, error) {
	return p.catalog.Ingest.Create(ctx, req)
}

// Update replaces the records addressed by id or by a unique attribute.
// Failures are *IngestError.
func (p *Provider) Update(ctx context.Context, req *UpdateRequest) (*UpdateResponse, error) {
	return p.catalog.Ingest.Update(ctx, req)
}

// Delete removes records by id or by attribute equality.
// Failures are *IngestError.
func (p *Provider) Delete(ctx context.Context, req *DeleteRequest) (*DeleteResponse, error) {
	return p.catalog.Ingest.Delete(ctx, req)
}

// ContentTypes lists the distinct (name, version) pairs of visible records.
func (p *Provider) ContentTypes(ctx context.Context) ([]ContentType, error) {
	return p.catalog.ContentTypes.List(ctx)
}

// Commit makes every deferred write visible and returns how many were flipped.
func (p *Provider) Commit(ctx context.Context) (int, error) {
	return p.catalog.Ingest.Commit(ctx)
}

// Pending returns how many deferred writes await a commit.
func (p *Provider) Pending(ctx context.Context) (int64, error) {
	return p.catalog.Ingest.Pending(ctx)
}

// Settings returns the runtime switches. Switching the commit mode to
// Immediate commits pending writes.
func (p *Provider) Settings() *Settings {
	return p.catalog.Settings
}

// Health reports database, index and pending-write status.
func (p *Provider) Health(ctx context.Context) HealthReport {
	return p.catalog.Health.Check(ctx)
}

// SourceID returns the source id stamped on created records.
func (p *Provider) SourceID() string {
	return p.catalog.Ingest.SourceID()
}

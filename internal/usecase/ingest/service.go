// Package ingest creates, updates and deletes catalog records and governs
// when writes become visible to general search.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/ftcatalog/internal/domain"
	"github.com/kailas-cloud/ftcatalog/internal/domain/predicate"
	"github.com/kailas-cloud/ftcatalog/internal/domain/query"
	"github.com/kailas-cloud/ftcatalog/internal/domain/record"
	"github.com/kailas-cloud/ftcatalog/internal/domain/schema"
	"github.com/kailas-cloud/ftcatalog/internal/domain/settings"
	"github.com/kailas-cloud/ftcatalog/internal/metrics"
)

// DefaultBatchLimit is the largest number of records written per round-trip.
const DefaultBatchLimit = 500

// DefaultSourceID names records created by this catalog.
const DefaultSourceID = "ftcatalog"

const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
	opCommit = "commit"
)

// Service implements create/update/delete/commit.
type Service struct {
	records   RecordStore
	matcher   Matcher
	compiler  Compiler
	validator Validator
	registry  *schema.Registry
	settings  *settings.Settings
	logger    *zap.Logger

	sourceID   string
	batchLimit int
	limiter    *rate.Limiter
	now        func() time.Time
	newID      func() string
}

// New creates an ingest service.
func New(
	records RecordStore, matcher Matcher, compiler Compiler, validator Validator,
	registry *schema.Registry, st *settings.Settings, logger *zap.Logger,
) *Service {
	if st == nil {
		st = settings.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		records: records, matcher: matcher, compiler: compiler, validator: validator,
		registry: registry, settings: st, logger: logger,
		sourceID:   DefaultSourceID,
		batchLimit: DefaultBatchLimit,
		now:        time.Now,
		newID:      newID,
	}
}

// WithSourceID sets the source id stamped on created records.
func (s *Service) WithSourceID(id string) *Service {
	if id != "" {
		s.sourceID = id
	}
	return s
}

// WithBatchLimit caps records per backend round-trip.
func (s *Service) WithBatchLimit(n int) *Service {
	if n > 0 {
		s.batchLimit = n
	}
	return s
}

// WithRateLimit throttles write round-trips to perSecond with the given burst.
// A non-positive rate disables throttling.
func (s *Service) WithRateLimit(perSecond float64, burst int) *Service {
	if perSecond <= 0 {
		s.limiter = nil
		return s
	}
	if burst < 1 {
		burst = 1
	}
	s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	return s
}

// WithClock overrides the clock used for timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithIDGenerator overrides record id generation.
func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.newID = gen
	return s
}

// SourceID returns the source id of locally created records.
func (s *Service) SourceID() string { return s.sourceID }

func newID() string { return strings.ReplaceAll(uuid.NewString(), "-", "") }

// stamp is the write time, truncated to the precision dates are stored at.
func (s *Service) stamp() time.Time { return s.now().UTC().Truncate(time.Millisecond) }

func (s *Service) visible() bool { return s.settings.CommitMode() == settings.Immediate }

// Create stores new records. Callers' records are not modified; the response
// carries copies with their final id and source id.
func (s *Service) Create(ctx context.Context, req *query.CreateRequest) (resp *query.CreateResponse, err error) {
	defer observe(opCreate, time.Now(), &err, func() int { return countCreated(resp) })

	if req == nil {
		return nil, domain.NewIngestError(opCreate, "", domain.ErrInvalidRequest, "request is required")
	}
	if req.Records == nil {
		return nil, domain.NewIngestError(opCreate, "", domain.ErrInvalidRequest, "record list is required")
	}

	now := s.stamp()
	out := make([]*record.Record, 0, len(req.Records))
	seen := make(map[string]bool, len(req.Records))
	for i, in := range req.Records {
		r, err := s.prepareCreate(in, i, now)
		if err != nil {
			return nil, err
		}
		if seen[r.ID] {
			return nil, domain.NewIngestError(opCreate, schema.AttrID, domain.ErrInvalidRequest,
				"duplicate id %q in request", r.ID)
		}
		seen[r.ID] = true
		out = append(out, r)
	}

	// Fresh ids cannot collide; a foreign id may name an existing record
	// whose stale fields must not survive.
	if err := s.write(ctx, opCreate, out, s.hasForeign(out)); err != nil {
		return nil, err
	}
	s.logger.Debug("records created", zap.Int("count", len(out)), zap.Bool("visible", s.visible()))
	return &query.CreateResponse{Created: out}, nil
}

func (s *Service) hasForeign(recs []*record.Record) bool {
	for _, r := range recs {
		if r.SourceID != s.sourceID {
			return true
		}
	}
	return false
}

// prepareCreate applies the identity and timestamp rules to a copy of in.
func (s *Service) prepareCreate(in *record.Record, i int, now time.Time) (*record.Record, error) {
	if in == nil {
		return nil, domain.NewIngestError(opCreate, "", domain.ErrInvalidRequest, "record %d is nil", i)
	}
	r := in.Clone()
	foreign := r.SourceID != "" && r.SourceID != s.sourceID
	switch {
	case foreign && r.ID == "":
		return nil, domain.NewIngestError(opCreate, schema.AttrID, domain.ErrInvalidRequest,
			"record %d from source %q must carry its own id", i, r.SourceID)
	case !foreign && r.ID != "":
		return nil, domain.NewIngestError(opCreate, schema.AttrID, domain.ErrInvalidRequest,
			"record %d: ids of local records are assigned by the catalog", i)
	case !foreign:
		r.ID = s.newID()
		r.SourceID = s.sourceID
	}
	for _, attr := range schema.TimestampAttributes {
		if !r.Has(attr) {
			r.Set(attr, now)
		}
	}
	if err := s.validator.Validate(r); err != nil {
		return nil, err
	}
	return r, nil
}

// Update replaces records addressed by id or by a unique attribute value.
func (s *Service) Update(ctx context.Context, req *query.UpdateRequest) (resp *query.UpdateResponse, err error) {
	defer observe(opUpdate, time.Now(), &err, func() int { return countUpdated(resp) })

	if req == nil {
		return nil, domain.NewIngestError(opUpdate, "", domain.ErrInvalidRequest, "request is required")
	}
	attr := req.Attribute
	if attr == "" {
		attr = schema.AttrID
	}
	if err := s.checkAddressing(attr); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(req.Updates))
	repl := make([]*record.Record, 0, len(req.Updates))
	for i, u := range req.Updates {
		if u.Record == nil || u.Address == nil {
			return nil, domain.NewIngestError(opUpdate, attr, domain.ErrInvalidRequest,
				"update %d needs an address and a record", i)
		}
		id, ok, err := s.resolve(ctx, attr, u.Address)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		ids = append(ids, id)
		repl = append(repl, u.Record)
	}

	olds, err := s.records.Get(ctx, ids)
	if err != nil {
		return nil, domain.WrapIngestBackend(opUpdate, err)
	}

	now := s.stamp()
	seen := make(map[string]bool, len(ids))
	pairs := make([]query.UpdatedRecord, 0, len(ids))
	news := make([]*record.Record, 0, len(ids))
	for i, old := range olds {
		// Resolved by the index, gone by the time it was read.
		if old == nil {
			continue
		}
		if seen[old.ID] {
			return nil, domain.NewIngestError(opUpdate, attr, domain.ErrInvalidRequest,
				"record %q addressed more than once", old.ID)
		}
		seen[old.ID] = true

		r := repl[i].Clone()
		r.ID = old.ID
		r.SourceID = old.SourceID
		if !r.Has(schema.AttrCreated) {
			r.Set(schema.AttrCreated, old.Values(schema.AttrCreated)...)
		}
		r.Set(schema.AttrModified, now)
		if err := s.validator.Validate(r); err != nil {
			return nil, err
		}
		news = append(news, r)
		pairs = append(pairs, query.UpdatedRecord{Old: old, New: r})
	}

	if err := s.write(ctx, opUpdate, news, true); err != nil {
		return nil, err
	}
	return &query.UpdateResponse{Updated: pairs}, nil
}

// checkAddressing accepts id and indexed single-valued scalar attributes.
func (s *Service) checkAddressing(attr string) error {
	if attr == schema.AttrID {
		return nil
	}
	d, ok := s.registry.Attribute(attr)
	if !ok {
		return domain.NewIngestError(opUpdate, attr, domain.ErrUnknownAttribute, "cannot address updates")
	}
	if !d.Indexed {
		return domain.NewIngestError(opUpdate, attr, domain.ErrInvalidRequest, "addressing attribute is not indexed")
	}
	if d.Multivalued {
		return domain.NewIngestError(opUpdate, attr, domain.ErrInvalidRequest, "addressing attribute is multivalued")
	}
	switch {
	case d.Type.IsText(), d.Type.IsNumeric(), d.Type == schema.Date, d.Type == schema.Boolean:
		return nil
	default:
		return domain.NewIngestError(opUpdate, attr, domain.ErrInvalidRequest,
			"cannot address updates by %s attribute", d.Type)
	}
}

// resolve finds the single record addressed by value. Zero matches is not
// an error; more than one is.
func (s *Service) resolve(ctx context.Context, attr string, value any) (string, bool, error) {
	if attr == schema.AttrID {
		id, ok := value.(string)
		if !ok || id == "" {
			return "", false, domain.NewIngestError(opUpdate, attr, domain.ErrInvalidRequest,
				"id address must be a non-empty string, got %T", value)
		}
		return id, true, nil
	}

	ids, err := s.match(ctx, opUpdate, attr, value, 2)
	if err != nil {
		return "", false, err
	}
	switch len(ids) {
	case 0:
		return "", false, nil
	case 1:
		return ids[0], true, nil
	default:
		return "", false, domain.NewIngestError(opUpdate, attr, domain.ErrAmbiguousAddress,
			"value %v matches more than one record", value)
	}
}

// match returns up to limit ids whose attr equals value, visible or not.
func (s *Service) match(ctx context.Context, op, attr string, value any, limit int) ([]string, error) {
	c, err := s.compiler.Compile(predicate.EqualTo(attr, value))
	if err != nil {
		return nil, &domain.IngestError{Op: op, Attribute: attr, Err: err}
	}
	if c.None {
		return nil, nil
	}
	ids, err := s.matcher.MatchIDs(ctx, c.Query, c.Params, limit)
	if err != nil {
		return nil, domain.WrapIngestBackend(op, err)
	}
	return ids, nil
}

// Delete removes records by id or by attribute equality. Values without a
// matching record are skipped.
func (s *Service) Delete(ctx context.Context, req *query.DeleteRequest) (resp *query.DeleteResponse, err error) {
	defer observe(opDelete, time.Now(), &err, func() int { return countDeleted(resp) })

	if req == nil {
		return nil, domain.NewIngestError(opDelete, "", domain.ErrInvalidRequest, "request is required")
	}
	if req.Attribute == "" || req.Attribute == schema.AttrID {
		ids, err := idValues(req.Values)
		if err != nil {
			return nil, err
		}
		deleted, err := s.deleteIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		return &query.DeleteResponse{Deleted: deleted}, nil
	}

	deleted := make([]*record.Record, 0)
	for _, v := range req.Values {
		for {
			ids, err := s.match(ctx, opDelete, req.Attribute, v, s.batchLimit)
			if err != nil {
				return nil, err
			}
			if len(ids) == 0 {
				break
			}
			recs, err := s.deleteIDs(ctx, ids)
			if err != nil {
				return nil, err
			}
			deleted = append(deleted, recs...)
			if len(ids) < s.batchLimit || len(recs) == 0 {
				break
			}
		}
	}
	return &query.DeleteResponse{Deleted: deleted}, nil
}

func idValues(values []any) ([]string, error) {
	ids := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for i, v := range values {
		id, ok := v.(string)
		if !ok {
			return nil, domain.NewIngestError(opDelete, schema.AttrID, domain.ErrInvalidRequest,
				"value %d must be a string id, got %T", i, v)
		}
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

// deleteIDs removes existing records in chunks and returns what was removed.
func (s *Service) deleteIDs(ctx context.Context, ids []string) ([]*record.Record, error) {
	out := make([]*record.Record, 0, len(ids))
	for start := 0; start < len(ids); start += s.batchLimit {
		chunk := ids[start:min(start+s.batchLimit, len(ids))]
		if err := s.wait(ctx); err != nil {
			return nil, domain.WrapIngestBackend(opDelete, err)
		}
		recs, err := s.records.Get(ctx, chunk)
		if err != nil {
			return nil, domain.WrapIngestBackend(opDelete, err)
		}
		present := make([]string, 0, len(chunk))
		for _, r := range recs {
			if r != nil {
				present = append(present, r.ID)
				out = append(out, r)
			}
		}
		if _, err := s.records.Delete(ctx, present); err != nil {
			return nil, domain.WrapIngestBackend(opDelete, err)
		}
	}
	return out, nil
}

// write stores recs in batch-limited chunks under the current commit mode.
func (s *Service) write(ctx context.Context, op string, recs []*record.Record, replace bool) error {
	visible := s.visible()
	for start := 0; start < len(recs); start += s.batchLimit {
		chunk := recs[start:min(start+s.batchLimit, len(recs))]
		if err := s.wait(ctx); err != nil {
			return domain.WrapIngestBackend(op, err)
		}
		if err := s.records.Put(ctx, chunk, replace, visible); err != nil {
			return domain.WrapIngestBackend(op, err)
		}
	}
	return nil
}

func (s *Service) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}

// Commit makes every deferred write visible and returns how many records
// were flipped.
func (s *Service) Commit(ctx context.Context) (int, error) {
	n, err := s.records.Commit(ctx)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.CommitsTotal.WithLabelValues(status).Inc()
	metrics.CommittedRecordsTotal.Add(float64(n))
	if err != nil {
		return n, domain.WrapIngestBackend(opCommit, err)
	}
	if n > 0 {
		s.logger.Info("committed pending records", zap.Int("count", n))
	}
	return n, nil
}

// Pending returns how many deferred writes await a commit.
func (s *Service) Pending(ctx context.Context) (int64, error) {
	n, err := s.records.Pending(ctx)
	if err != nil {
		return 0, domain.WrapIngestBackend(opCommit, err)
	}
	metrics.PendingRecords.Set(float64(n))
	return n, nil
}

func observe(op string, start time.Time, err *error, count func() int) {
	status := "ok"
	if *err != nil {
		status = "error"
	}
	metrics.IngestRequestsTotal.WithLabelValues(op, status).Inc()
	metrics.IngestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if *err == nil {
		metrics.IngestRecordsTotal.WithLabelValues(op).Add(float64(count()))
	}
}

func countCreated(r *query.CreateResponse) int {
	if r == nil {
		return 0
	}
	return len(r.Created)
}

func countUpdated(r *query.UpdateResponse) int {
	if r == nil {
		return 0
	}
	return len(r.Updated)
}

func countDeleted(r *query.DeleteResponse) int {
	if r == nil {
		return 0
	}
	return len(r.Deleted)
}

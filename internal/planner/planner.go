// Package planner turns query ordering and page bounds into engine requests.
package planner

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ftcatalog/internal/db"
	"github.com/kailas-cloud/ftcatalog/internal/domain"
	"github.com/kailas-cloud/ftcatalog/internal/domain/query"
	"github.com/kailas-cloud/ftcatalog/internal/mapper"
	"github.com/kailas-cloud/ftcatalog/internal/translator"
)

const opPlan = "plan"

// Defaults for page sizes.
const (
	DefaultPageSize   = 10
	DefaultFetchChunk = 1000
)

// Kind selects how a plan is executed.
type Kind int

// Plan kinds.
const (
	// Empty plans match nothing and never reach the engine.
	Empty Kind = iota
	// Lookup plans read records by id, bypassing the index.
	Lookup
	// Search plans run FT.SEARCH.
	Search
	// Aggregate plans run FT.AGGREGATE and hydrate rows by id.
	Aggregate
)

func (k Kind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Lookup:
		return "lookup"
	case Search:
		return "search"
	case Aggregate:
		return "aggregate"
	default:
		return "unknown"
	}
}

// Plan is an executable query.
type Plan struct {
	Kind   Kind
	Index  string
	Query  string
	Params []db.Param
	IDs    []string

	// Offset is 0-based.
	Offset int
	// Limit is the page length or query.Unbounded.
	Limit int
	// Chunk is the window size used while draining an unbounded plan.
	Chunk int

	// SortBy is set on search plans ordered by one field.
	SortBy   string
	SortDesc bool
	// Keys order aggregate plans.
	Keys []db.SortKey

	Scored bool
	// Distance is set when rows carry the computed distance in mapper.FieldDistance.
	Distance  bool
	Reference *translator.Reference
	WantTotal bool
}

// Unbounded reports whether the plan fetches every match.
func (p *Plan) Unbounded() bool { return p.Limit == query.Unbounded }

// SearchWindow returns the FT.SEARCH request for one window.
func (p *Plan) SearchWindow(offset, limit int) *db.SearchQuery {
	return &db.SearchQuery{
		IndexName:  p.Index,
		Query:      p.Query,
		Params:     p.Params,
		Offset:     offset,
		Limit:      limit,
		SortBy:     p.SortBy,
		SortDesc:   p.SortDesc,
		WithScores: p.Scored,
	}
}

// AggregateWindow returns the FT.AGGREGATE request for one window.
func (p *Plan) AggregateWindow(offset, limit int) *db.AggregateQuery {
	q := &db.AggregateQuery{
		IndexName: p.Index,
		Query:     p.Query,
		Params:    p.Params,
		Load:      []string{mapper.FieldID},
		AddScores: p.Scored,
		SortBy:    p.Keys,
		Offset:    offset,
		Limit:     limit,
	}
	if p.Distance && p.Reference != nil {
		q.Load = append(q.Load, p.Reference.Field)
		q.Applies = []db.Apply{{
			Expr: "geodistance(@" + p.Reference.Field + "," +
				strconv.FormatFloat(p.Reference.Point.Lon, 'f', -1, 64) + "," +
				strconv.FormatFloat(p.Reference.Point.Lat, 'f', -1, 64) + ")",
			As: mapper.FieldDistance,
		}}
	}
	return q
}

// Planner validates page bounds and picks an execution strategy.
type Planner struct {
	layout          *mapper.Layout
	defaultPageSize int
	fetchChunk      int
	logger          *zap.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithDefaultPageSize sets the page size used when a query leaves it at 0.
func WithDefaultPageSize(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.defaultPageSize = n
		}
	}
}

// WithFetchChunk sets the window size for unbounded queries.
func WithFetchChunk(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.fetchChunk = n
		}
	}
}

// WithLogger sets the logger for ignored sort keys.
func WithLogger(l *zap.Logger) Option {
	return func(p *Planner) { p.logger = l }
}

// New creates a planner over layout.
func New(layout *mapper.Layout, opts ...Option) *Planner {
	p := &Planner{
		layout:          layout,
		defaultPageSize: DefaultPageSize,
		fetchChunk:      DefaultFetchChunk,
		logger:          zap.NewNop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Validate checks page bounds. It needs no backend and runs before translation.
func (p *Planner) Validate(q *query.Query) error {
	if q.StartIndex <= 0 {
		return domain.NewQueryError(opPlan, "", domain.ErrInvalidQuery,
			"start index must be greater than 0, got %d", q.StartIndex)
	}
	if q.PageSize < query.Unbounded {
		return domain.NewQueryError(opPlan, "", domain.ErrInvalidQuery,
			"page size must be positive or %d, got %d", query.Unbounded, q.PageSize)
	}
	return nil
}

// Plan builds the execution plan of q compiled as c.
func (p *Planner) Plan(q *query.Query, c *translator.Compiled) (*Plan, error) {
	if err := p.Validate(q); err != nil {
		return nil, err
	}

	plan := &Plan{
		Index:     p.layout.IndexName(),
		Query:     c.Filtered(),
		Params:    c.Params,
		Offset:    q.StartIndex - 1,
		Limit:     q.PageSize,
		Chunk:     p.fetchChunk,
		Scored:    c.Scored,
		Reference: c.Reference,
		WantTotal: q.WantTotal,
	}
	if plan.Limit == 0 {
		plan.Limit = p.defaultPageSize
	}

	keys, err := p.resolveKeys(q.SortKeys(), c)
	if err != nil {
		return nil, err
	}

	switch {
	case c.None:
		plan.Kind = Empty
	case len(c.IDs) > 0 && naturalOrder(keys):
		plan.Kind = Lookup
		plan.IDs = c.IDs
	case len(keys) == 0:
		plan.Kind = Search
	case len(keys) == 1 && keys[0].relevance && keys[0].desc:
		plan.Kind = Search
		plan.Scored = true
	case len(keys) == 1 && !keys[0].relevance && !keys[0].distance:
		plan.Kind = Search
		plan.SortBy = keys[0].field
		plan.SortDesc = keys[0].desc
	default:
		plan.Kind = Aggregate
		plan.Keys = aggregateKeys(keys)
		for _, k := range keys {
			plan.Scored = plan.Scored || k.relevance
			plan.Distance = plan.Distance || k.distance
		}
	}
	return plan, nil
}

// resolved is a sort key mapped onto the index.
type resolved struct {
	field     string
	desc      bool
	relevance bool
	distance  bool
}

func (p *Planner) resolveKeys(keys []query.SortKey, c *translator.Compiled) ([]resolved, error) {
	out := make([]resolved, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		var r resolved
		switch {
		case k.IsRelevance():
			r = resolved{field: mapper.FieldScore, desc: k.Desc, relevance: true}
		case k.IsDistance():
			if c.Reference == nil {
				return nil, domain.NewQueryError(opPlan, k.Attribute, domain.ErrInvalidQuery,
					"distance sort requires a spatial predicate")
			}
			r = resolved{field: mapper.FieldDistance, desc: k.Desc, distance: true}
		default:
			field, ok := p.layout.SortField(k.Attribute)
			if !ok {
				p.logger.Warn("ignoring unsortable sort key", zap.String("attribute", k.Attribute))
				continue
			}
			r = resolved{field: field, desc: k.Desc}
		}
		// A repeated key cannot change the order.
		if seen[r.field] {
			continue
		}
		seen[r.field] = true
		out = append(out, r)
	}
	return out, nil
}

// naturalOrder reports whether keys leave id lookups in their request order.
func naturalOrder(keys []resolved) bool {
	for _, k := range keys {
		if !k.relevance {
			return false
		}
	}
	return true
}

// aggregateKeys appends the id tie break that makes the order total. The
// tie break follows the primary direction so flipping every key reverses
// the whole order.
func aggregateKeys(keys []resolved) []db.SortKey {
	out := make([]db.SortKey, 0, len(keys)+1)
	for _, k := range keys {
		out = append(out, db.SortKey{Field: k.field, Desc: k.desc})
		if k.field == mapper.FieldID {
			return out
		}
	}
	return append(out, db.SortKey{Field: mapper.FieldID, Desc: len(keys) > 0 && keys[0].desc})
}

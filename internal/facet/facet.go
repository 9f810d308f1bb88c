// Package facet computes value histograms alongside queries.
package facet

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/ftcatalog/internal/db"
	"github.com/kailas-cloud/ftcatalog/internal/domain"
	"github.com/kailas-cloud/ftcatalog/internal/domain/query"
	"github.com/kailas-cloud/ftcatalog/internal/domain/schema"
	"github.com/kailas-cloud/ftcatalog/internal/mapper"
	"github.com/kailas-cloud/ftcatalog/internal/translator"
)

const opFacet = "facet"

// DefaultLimit caps buckets per attribute when a request leaves Limit at 0.
const DefaultLimit = 100

const (
	valueField = "__value"
	countField = "__count"
)

type store interface {
	Aggregate(ctx context.Context, q *db.AggregateQuery) (*db.AggregateResult, error)
}

// Engine runs one aggregation per requested attribute.
type Engine struct {
	store  store
	layout *mapper.Layout
	logger *zap.Logger
}

// New creates a facet engine.
func New(s store, layout *mapper.Layout, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: s, layout: layout, logger: logger}
}

// Facets computes buckets for every attribute of req over the matches of c.
// Results follow the request order. Attributes that cannot be grouped get
// an empty bucket list.
func (e *Engine) Facets(ctx context.Context, req *query.FacetRequest, c *translator.Compiled) ([]query.FacetResult, error) {
	if req == nil || len(req.Attributes) == 0 {
		return nil, nil
	}
	out := make([]query.FacetResult, len(req.Attributes))
	for i, attr := range req.Attributes {
		out[i] = query.FacetResult{Attribute: attr, Values: []query.FacetValue{}}
	}
	if c == nil || c.None {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, attr := range req.Attributes {
		aq, d, ok := e.aggregation(attr, req, c)
		if !ok {
			e.logger.Debug("facet attribute not groupable", zap.String("attribute", attr))
			continue
		}
		g.Go(func() error {
			res, err := e.store.Aggregate(gctx, aq)
			if err != nil {
				return &domain.QueryError{Op: opFacet, Attribute: attr,
					Err: fmt.Errorf("%w: %w", domain.ErrBackend, err)}
			}
			out[i].Values = buckets(res, d, req)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) aggregation(attr string, req *query.FacetRequest, c *translator.Compiled) (*db.AggregateQuery, schema.Descriptor, bool) {
	var d schema.Descriptor
	var field string
	if attr == schema.AttrID {
		d = schema.Descriptor{Name: attr, Type: schema.String}
		field = mapper.FieldID
	} else {
		var ok bool
		d, ok = e.layout.Descriptor(attr)
		if !ok || !d.Indexed {
			return nil, d, false
		}
		switch {
		case d.Stored && (d.Type.IsText() || d.Type == schema.Boolean):
			// Raw values keep their original case.
			field = e.layout.Raw(attr)
		default:
			field, ok = e.layout.FacetField(attr)
			if !ok {
				return nil, d, false
			}
		}
	}

	expr := "@" + field
	if d.Multivalued {
		expr = `split(@` + field + `, "` + mapper.Separator + `")`
	}
	aq := &db.AggregateQuery{
		IndexName: e.layout.IndexName(),
		Query:     c.Filtered(),
		Params:    c.Params,
		Load:      []string{field},
		Applies:   []db.Apply{{Expr: expr, As: valueField}},
		GroupBy:   []string{valueField},
		Reducers:  []db.Reducer{{Func: "COUNT", As: countField}},
		Limit:     limitOf(req),
	}
	if req.MinCount > 1 {
		aq.Filter = "@" + countField + ">=" + strconv.Itoa(req.MinCount)
	}
	if req.Order == query.ByIndex {
		aq.SortBy = []db.SortKey{{Field: valueField}}
	} else {
		aq.SortBy = []db.SortKey{{Field: countField, Desc: true}, {Field: valueField}}
	}
	return aq, d, true
}

func limitOf(req *query.FacetRequest) int {
	if req.Limit > 0 {
		return req.Limit
	}
	return DefaultLimit
}

// buckets maps aggregate rows to facet values, reapplying order and bounds
// so results do not depend on engine sort stability.
func buckets(res *db.AggregateResult, d schema.Descriptor, req *query.FacetRequest) []query.FacetValue {
	vals := make([]query.FacetValue, 0, len(res.Rows))
	for _, row := range res.Rows {
		v, ok := row[valueField]
		if !ok || v == "" {
			continue
		}
		n, err := strconv.ParseInt(row[countField], 10, 64)
		if err != nil || n < int64(req.MinCount) {
			continue
		}
		vals = append(vals, query.FacetValue{Value: v, Count: n})
	}
	less := valueLess(d)
	if req.Order == query.ByIndex {
		sort.SliceStable(vals, func(i, j int) bool { return less(vals[i].Value, vals[j].Value) })
	} else {
		sort.SliceStable(vals, func(i, j int) bool {
			if vals[i].Count != vals[j].Count {
				return vals[i].Count > vals[j].Count
			}
			return less(vals[i].Value, vals[j].Value)
		})
	}
	if limit := limitOf(req); len(vals) > limit {
		vals = vals[:limit]
	}
	for i := range vals {
		vals[i].Value = display(d, vals[i].Value)
	}
	return vals
}

// valueLess orders numeric and date values numerically, the rest bytewise.
func valueLess(d schema.Descriptor) func(a, b string) bool {
	if !d.Type.IsNumeric() && d.Type != schema.Date {
		return func(a, b string) bool { return a < b }
	}
	return func(a, b string) bool {
		fa, errA := strconv.ParseFloat(a, 64)
		fb, errB := strconv.ParseFloat(b, 64)
		if errA != nil || errB != nil {
			return a < b
		}
		return fa < fb
	}
}

// display renders dates as RFC 3339; everything else is shown as indexed.
func display(d schema.Descriptor, v string) string {
	if d.Type != schema.Date {
		return v
	}
	ms, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return v
	}
	return time.UnixMilli(int64(ms)).UTC().Format(time.RFC3339Nano)
}

// Package search executes query plans against the FT index.
package search

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/ftcatalog/internal/db"
	"github.com/kailas-cloud/ftcatalog/internal/domain/query"
	domrec "github.com/kailas-cloud/ftcatalog/internal/domain/record"
	"github.com/kailas-cloud/ftcatalog/internal/domain/schema"
	"github.com/kailas-cloud/ftcatalog/internal/mapper"
	"github.com/kailas-cloud/ftcatalog/internal/planner"
)

// maxGroups bounds the rows of catalog-wide aggregations.
const maxGroups = 10000

// store is the consumer interface for search operations (ISP).
type store interface {
	Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error)
	Aggregate(ctx context.Context, q *db.AggregateQuery) (*db.AggregateResult, error)
	SearchCount(ctx context.Context, index, query string, params []db.Param) (int, error)
}

// records hydrates aggregate rows and id lookups.
type records interface {
	Get(ctx context.Context, ids []string) ([]*domrec.Record, error)
}

// Page is one executed plan.
type Page struct {
	Results []query.Result
	// Total is the match count or query.UnknownHits.
	Total int64
}

// Repo implements usecase/query.Searcher.
type Repo struct {
	store   store
	records records
	mapper  *mapper.Mapper
	layout  *mapper.Layout
}

// New creates a search repository.
func New(s store, recs records, m *mapper.Mapper) *Repo {
	return &Repo{store: s, records: recs, mapper: m, layout: m.Layout()}
}

// Execute runs p and returns the requested page.
func (r *Repo) Execute(ctx context.Context, p *planner.Plan) (*Page, error) {
	switch p.Kind {
	case planner.Empty:
		return &Page{Results: []query.Result{}, Total: 0}, nil
	case planner.Lookup:
		return r.lookup(ctx, p)
	case planner.Search:
		return r.drain(ctx, p, r.searchWindow)
	case planner.Aggregate:
		page, err := r.drain(ctx, p, r.aggregateWindow)
		if err != nil {
			return nil, err
		}
		if p.WantTotal {
			n, err := r.store.SearchCount(ctx, p.Index, p.Query, p.Params)
			if err != nil {
				return nil, fmt.Errorf("count: %w", err)
			}
			page.Total = int64(n)
		}
		return page, nil
	default:
		return nil, fmt.Errorf("unknown plan kind %s", p.Kind)
	}
}

// window fetches limit results starting at offset. It returns the number
// of engine rows consumed, which may exceed the results kept, and the
// total when known.
type window func(ctx context.Context, p *planner.Plan, offset, limit int) ([]query.Result, int, int64, error)

// drain reads a bounded page in one window or an unbounded one in chunks.
func (r *Repo) drain(ctx context.Context, p *planner.Plan, fetch window) (*Page, error) {
	if !p.Unbounded() {
		res, _, total, err := fetch(ctx, p, p.Offset, p.Limit)
		if err != nil {
			return nil, err
		}
		return &Page{Results: res, Total: total}, nil
	}

	page := &Page{Results: []query.Result{}, Total: query.UnknownHits}
	offset := p.Offset
	for {
		res, rows, total, err := fetch(ctx, p, offset, p.Chunk)
		if err != nil {
			return nil, err
		}
		page.Results = append(page.Results, res...)
		page.Total = total
		offset += rows
		if rows < p.Chunk || (total >= 0 && int64(offset) >= total) {
			return page, nil
		}
	}
}

func (r *Repo) searchWindow(ctx context.Context, p *planner.Plan, offset, limit int) ([]query.Result, int, int64, error) {
	sr, err := r.store.Search(ctx, p.SearchWindow(offset, limit))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("search: %w", err)
	}
	out := make([]query.Result, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		rec, err := r.mapper.FromDocument(e.Fields)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("decode %s: %w", e.Key, err)
		}
		out = append(out, query.Result{Record: rec, Score: e.Score})
	}
	return out, len(sr.Entries), int64(sr.Total), nil
}

func (r *Repo) aggregateWindow(ctx context.Context, p *planner.Plan, offset, limit int) ([]query.Result, int, int64, error) {
	ar, err := r.store.Aggregate(ctx, p.AggregateWindow(offset, limit))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("aggregate: %w", err)
	}
	ids := make([]string, 0, len(ar.Rows))
	rows := make([]map[string]string, 0, len(ar.Rows))
	for _, row := range ar.Rows {
		if id := row[mapper.FieldID]; id != "" {
			ids = append(ids, id)
			rows = append(rows, row)
		}
	}
	recs, err := r.records.Get(ctx, ids)
	if err != nil {
		return nil, 0, 0, err
	}

	out := make([]query.Result, 0, len(recs))
	for i, rec := range recs {
		// Deleted between the aggregation and the read.
		if rec == nil {
			continue
		}
		res := query.Result{Record: rec}
		if s, ok := rows[i][mapper.FieldScore]; ok {
			res.Score, _ = strconv.ParseFloat(s, 64)
		}
		if p.Distance {
			if s, ok := rows[i][mapper.FieldDistance]; ok {
				if d, err := strconv.ParseFloat(s, 64); err == nil {
					res.Distance = &d
				}
			}
		}
		out = append(out, res)
	}
	return out, len(ar.Rows), query.UnknownHits, nil
}

// lookup reads records by id directly, so pending writes are visible.
func (r *Repo) lookup(ctx context.Context, p *planner.Plan) (*Page, error) {
	recs, err := r.records.Get(ctx, p.IDs)
	if err != nil {
		return nil, err
	}
	found := make([]query.Result, 0, len(recs))
	for _, rec := range recs {
		if rec != nil {
			found = append(found, query.Result{Record: rec})
		}
	}
	total := int64(len(found))
	if p.Offset >= len(found) {
		return &Page{Results: []query.Result{}, Total: total}, nil
	}
	found = found[p.Offset:]
	if !p.Unbounded() && len(found) > p.Limit {
		found = found[:p.Limit]
	}
	return &Page{Results: found, Total: total}, nil
}

// MatchIDs returns the ids of up to limit records matching a native query,
// visible or not.
func (r *Repo) MatchIDs(ctx context.Context, q string, params []db.Param, limit int) ([]string, error) {
	sr, err := r.store.Search(ctx, &db.SearchQuery{
		IndexName:    r.layout.IndexName(),
		Query:        q,
		Params:       params,
		Limit:        limit,
		ReturnFields: []string{mapper.FieldID},
	})
	if err != nil {
		return nil, fmt.Errorf("match ids: %w", err)
	}
	ids := make([]string, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		id := e.Fields[mapper.FieldID]
		if id == "" {
			id = r.layout.IDFromKey(e.Key)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ContentTypes groups visible records by content-type name and version.
// Rows without a version stay distinct from every versioned row.
func (r *Repo) ContentTypes(ctx context.Context) ([]domrec.ContentType, error) {
	name := r.layout.Raw(schema.AttrContentType)
	version := r.layout.Raw(schema.AttrContentTypeVersion)
	ar, err := r.store.Aggregate(ctx, &db.AggregateQuery{
		IndexName: r.layout.IndexName(),
		Query:     "@" + mapper.FieldVisible + ":{" + mapper.VisibleValue + "}",
		Load:      []string{name, version},
		GroupBy:   []string{name, version},
		Reducers:  []db.Reducer{{Func: "COUNT", As: "count"}},
		Limit:     maxGroups,
	})
	if err != nil {
		return nil, fmt.Errorf("content types: %w", err)
	}
	out := make([]domrec.ContentType, 0, len(ar.Rows))
	for _, row := range ar.Rows {
		n := row[name]
		if n == "" {
			continue
		}
		v, ok := row[version]
		out = append(out, domrec.ContentType{Name: n, Version: v, HasVersion: ok && v != ""})
	}
	return out, nil
}

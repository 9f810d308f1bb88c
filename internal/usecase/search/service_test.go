package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/ftcatalog/internal/db"
	"github.com/kailas-cloud/ftcatalog/internal/domain"
	"github.com/kailas-cloud/ftcatalog/internal/domain/predicate"
	"github.com/kailas-cloud/ftcatalog/internal/domain/query"
	"github.com/kailas-cloud/ftcatalog/internal/domain/record"
	"github.com/kailas-cloud/ftcatalog/internal/domain/schema"
	"github.com/kailas-cloud/ftcatalog/internal/mapper"
	"github.com/kailas-cloud/ftcatalog/internal/planner"
	searchrepo "github.com/kailas-cloud/ftcatalog/internal/repository/search"
	"github.com/kailas-cloud/ftcatalog/internal/translator"
)

// --- Mocks ---

type mockExecutor struct {
	mu      sync.Mutex
	plans   []*planner.Plan
	execFn  func(ctx context.Context, p *planner.Plan) (*searchrepo.Page, error)
	hasDead bool
}

func (m *mockExecutor) Execute(ctx context.Context, p *planner.Plan) (*searchrepo.Page, error) {
	m.mu.Lock()
	m.plans = append(m.plans, p)
	_, m.hasDead = ctx.Deadline()
	m.mu.Unlock()
	if m.execFn != nil {
		return m.execFn(ctx, p)
	}
	return &searchrepo.Page{Results: []query.Result{}}, nil
}

type mockFaceter struct {
	out []query.FacetResult
	err error
}

func (m *mockFaceter) Facets(context.Context, *query.FacetRequest, *translator.Compiled) ([]query.FacetResult, error) {
	return m.out, m.err
}

func newTestService(t *testing.T, exec Executor, facets Faceter) *Service {
	t.Helper()
	reg, err := schema.NewRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	l, err := mapper.NewLayout(reg, "", 2)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	return New(translator.New(l, nil), planner.New(l), exec, facets, nil)
}

func titled(id, title string) *record.Record {
	r := record.New("")
	r.ID = id
	r.Set(schema.AttrTitle, title)
	return r
}

// onePage answers with a single hit when the native query contains want.
func onePage(want string) func(context.Context, *planner.Plan) (*searchrepo.Page, error) {
	return func(_ context.Context, p *planner.Plan) (*searchrepo.Page, error) {
		if !strings.Contains(p.Query, want) {
			return &searchrepo.Page{Results: []query.Result{}}, nil
		}
		return &searchrepo.Page{
			Results: []query.Result{{Record: titled("flag", "Flagstaff")}},
			Total:   1,
		}, nil
	}
}

// --- Tests ---

func TestQuery_WildcardTitle(t *testing.T) {
	exec := &mockExecutor{execFn: onePage("@title_txt:(w'flag*ff')")}
	svc := newTestService(t, exec, nil)

	q := query.New(predicate.Like(schema.AttrTitle, "Flag*ff"))
	q.WantTotal = true
	resp, err := svc.Query(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Hits != 1 || len(resp.Results) != 1 || resp.Results[0].Record.Title() != "Flagstaff" {
		t.Fatalf("resp = %+v", resp)
	}
	p := exec.plans[0]
	if p.Kind != planner.Search || !p.Scored {
		t.Errorf("plan = %s scored=%v", p.Kind, p.Scored)
	}
	if !strings.HasSuffix(p.Query, "@__visible:{1}") {
		t.Errorf("query %q must exclude uncommitted writes", p.Query)
	}
}

func TestQuery_InvalidStartIndex(t *testing.T) {
	exec := &mockExecutor{}
	svc := newTestService(t, exec, nil)

	for _, start := range []int{0, -1} {
		q := query.New(predicate.Include())
		q.StartIndex = start
		_, err := svc.Query(context.Background(), q)
		var qe *domain.QueryError
		if !errors.As(err, &qe) {
			t.Fatalf("start %d: expected QueryError, got %v", start, err)
		}
		if !strings.Contains(err.Error(), "greater than 0") {
			t.Errorf("start %d: error = %q", start, err)
		}
	}
	if len(exec.plans) != 0 {
		t.Error("invalid queries must not reach the engine")
	}
}

func TestQuery_AntimeridianPolygonBothWindings(t *testing.T) {
	windings := map[string]string{
		"clockwise":         "POLYGON((170 10, 170 -10, -170 -10, -170 10, 170 10))",
		"counter-clockwise": "POLYGON((170 10, -170 10, -170 -10, 170 -10, 170 10))",
	}
	for name, wkt := range windings {
		t.Run(name, func(t *testing.T) {
			exec := &mockExecutor{execFn: onePage("INTERSECTS $g1")}
			svc := newTestService(t, exec, nil)

			q := query.New(predicate.IntersectsShape(schema.AttrLocation, wkt))
			q.WantTotal = true
			resp, err := svc.Query(context.Background(), q)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Hits != 1 {
				t.Errorf("hits = %d", resp.Hits)
			}
			p := exec.plans[0]
			if len(p.Params) != 2 {
				t.Fatalf("params = %+v, want the polygon split at the antimeridian", p.Params)
			}
			for _, param := range p.Params {
				if !strings.HasPrefix(param.Value, "POLYGON") {
					t.Errorf("param %s = %q", param.Name, param.Value)
				}
			}
		})
	}
}

func TestQuery_NilMatchesNothing(t *testing.T) {
	exec := &mockExecutor{}
	svc := newTestService(t, exec, nil)
	resp, err := svc.Query(context.Background(), nil)
	if err != nil || resp.Hits != 0 || len(resp.Results) != 0 {
		t.Fatalf("resp=%+v err=%v", resp, err)
	}
	if len(exec.plans) != 0 {
		t.Error("nil query must not reach the engine")
	}
}

func TestQuery_ExcludedAttributes(t *testing.T) {
	stored := titled("a", "Flagstaff")
	stored.Set(schema.AttrResourceURI, "file:///a")
	exec := &mockExecutor{execFn: func(context.Context, *planner.Plan) (*searchrepo.Page, error) {
		return &searchrepo.Page{Results: []query.Result{{Record: stored}}, Total: 1}, nil
	}}
	svc := newTestService(t, exec, nil)

	q := query.New(predicate.Include())
	q.Excluded = []string{schema.AttrResourceURI}
	resp, err := svc.Query(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := resp.Results[0].Record
	if got.Has(schema.AttrResourceURI) || got.Title() != "Flagstaff" {
		t.Errorf("record = %+v", got)
	}
	if !stored.Has(schema.AttrResourceURI) {
		t.Error("executor's record must not be modified")
	}
}

func TestQuery_Facets(t *testing.T) {
	want := []query.FacetResult{{Attribute: schema.AttrTitle, Values: []query.FacetValue{{Value: "x", Count: 2}}}}
	svc := newTestService(t, &mockExecutor{}, &mockFaceter{out: want})

	q := query.New(predicate.Include())
	q.Facets = &query.FacetRequest{Attributes: []string{schema.AttrTitle}}
	resp, err := svc.Query(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Facets) != 1 || resp.Facets[0].Values[0].Count != 2 {
		t.Errorf("facets = %+v", resp.Facets)
	}
}

func TestQuery_FacetError(t *testing.T) {
	svc := newTestService(t, &mockExecutor{}, &mockFaceter{err: &domain.QueryError{Op: "facet", Attribute: "title", Err: domain.ErrBackend}})
	q := query.New(predicate.Include())
	q.Facets = &query.FacetRequest{Attributes: []string{schema.AttrTitle}}
	_, err := svc.Query(context.Background(), q)
	var qe *domain.QueryError
	if !errors.As(err, &qe) || qe.Op != "facet" {
		t.Fatalf("expected facet QueryError, got %v", err)
	}
}

func TestQuery_BackendError(t *testing.T) {
	exec := &mockExecutor{execFn: func(context.Context, *planner.Plan) (*searchrepo.Page, error) {
		return nil, &db.Error{Op: db.OpSearch, Err: errors.New("connection reset")}
	}}
	svc := newTestService(t, exec, nil)
	_, err := svc.Query(context.Background(), query.New(predicate.Include()))
	var qe *domain.QueryError
	if !errors.As(err, &qe) || !errors.Is(err, domain.ErrBackend) {
		t.Fatalf("expected backend QueryError, got %v", err)
	}
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		t.Error("cause must be preserved")
	}
}

func TestQuery_UnknownAttributeMatchesNothing(t *testing.T) {
	exec := &mockExecutor{}
	svc := newTestService(t, exec, nil)

	q := query.New(predicate.EqualTo("no-such-attribute", "x"))
	q.WantTotal = true
	resp, err := svc.Query(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Hits != 0 || len(resp.Results) != 0 {
		t.Errorf("resp = %+v", resp)
	}
	if len(exec.plans) != 1 || exec.plans[0].Kind != planner.Empty {
		t.Errorf("plans = %+v, unknown attributes must compile to an empty plan", exec.plans)
	}
}

func TestQuery_DefaultTimeout(t *testing.T) {
	exec := &mockExecutor{}
	svc := newTestService(t, exec, nil)
	if _, err := svc.Query(context.Background(), query.New(predicate.Include())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exec.hasDead {
		t.Error("queries without a deadline must get the default timeout")
	}

	svc.WithTimeout(0)
	if _, err := svc.Query(context.Background(), query.New(predicate.Include())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.hasDead {
		t.Error("a zero timeout must leave the context alone")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := svc.Query(ctx, query.New(predicate.Include())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exec.hasDead {
		t.Error("caller deadline must be kept")
	}
}

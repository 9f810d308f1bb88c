// Package search answers catalog queries: translation, planning, execution
// and facets.
package search

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/ftcatalog/internal/domain"
	"github.com/kailas-cloud/ftcatalog/internal/domain/query"
	"github.com/kailas-cloud/ftcatalog/internal/metrics"
	"github.com/kailas-cloud/ftcatalog/internal/planner"
	searchrepo "github.com/kailas-cloud/ftcatalog/internal/repository/search"
)

const opQuery = "query"

// DefaultTimeout bounds a query whose context carries no deadline.
const DefaultTimeout = 30 * time.Second

// planInvalid labels metrics of queries rejected before planning.
const planInvalid = "invalid"

// Service handles catalog queries.
type Service struct {
	compiler Compiler
	planner  *planner.Planner
	exec     Executor
	facets   Faceter
	logger   *zap.Logger
	timeout  time.Duration
}

// New creates a query service. facets can be nil when faceting is not needed.
func New(compiler Compiler, p *planner.Planner, exec Executor, facets Faceter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		compiler: compiler, planner: p, exec: exec, facets: facets,
		logger: logger, timeout: DefaultTimeout,
	}
}

// WithTimeout sets the deadline applied to queries without one.
// A non-positive value disables it.
func (s *Service) WithTimeout(d time.Duration) *Service {
	s.timeout = d
	return s
}

// Query evaluates q and returns one page of results, the total when
// requested, and facets when requested. A nil query matches nothing.
func (s *Service) Query(ctx context.Context, q *query.Query) (resp *query.Response, err error) {
	start := time.Now()
	kind := planInvalid
	defer func() { observe(kind, start, err, resp) }()

	if q == nil {
		return &query.Response{Results: []query.Result{}}, nil
	}
	if err := s.planner.Validate(q); err != nil {
		return nil, err
	}
	c, err := s.compiler.Compile(q.Predicate)
	if err != nil {
		return nil, err
	}
	p, err := s.planner.Plan(q, c)
	if err != nil {
		return nil, err
	}
	kind = p.Kind.String()

	if _, ok := ctx.Deadline(); !ok && s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var page *searchrepo.Page
	var facets []query.FacetResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		page, err = s.exec.Execute(gctx, p)
		return err
	})
	if q.Facets != nil && s.facets != nil {
		g.Go(func() error {
			var err error
			facets, err = s.facets.Facets(gctx, q.Facets, c)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, domain.WrapQueryBackend(opQuery, err)
	}

	s.logger.Debug("query executed",
		zap.String("plan", kind),
		zap.String("query", p.Query),
		zap.Int("results", len(page.Results)),
		zap.Int64("hits", page.Total),
	)
	return &query.Response{
		Hits:    page.Total,
		Results: exclude(page.Results, q.Excluded),
		Facets:  facets,
	}, nil
}

// exclude drops attrs from every result record.
func exclude(results []query.Result, attrs []string) []query.Result {
	if len(attrs) == 0 {
		return results
	}
	for i := range results {
		r := results[i].Record.Clone()
		for _, a := range attrs {
			r.Delete(a)
		}
		results[i].Record = r
	}
	return results
}

func observe(kind string, start time.Time, err error, resp *query.Response) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.QueriesTotal.WithLabelValues(kind, status).Inc()
	metrics.QueryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if resp != nil {
		metrics.QueryHitsTotal.Add(float64(len(resp.Results)))
	}
}

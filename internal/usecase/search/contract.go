package search

import (
	"context"

	"github.com/kailas-cloud/ftcatalog/internal/domain/predicate"
	"github.com/kailas-cloud/ftcatalog/internal/domain/query"
	"github.com/kailas-cloud/ftcatalog/internal/planner"
	searchrepo "github.com/kailas-cloud/ftcatalog/internal/repository/search"
	"github.com/kailas-cloud/ftcatalog/internal/translator"
)

// Compiler translates predicate trees into native queries.
type Compiler interface {
	Compile(n *predicate.Node) (*translator.Compiled, error)
}

// Executor runs execution plans against the index.
type Executor interface {
	Execute(ctx context.Context, p *planner.Plan) (*searchrepo.Page, error)
}

// Faceter computes value histograms over the matches of a compiled query.
type Faceter interface {
	Facets(ctx context.Context, req *query.FacetRequest, c *translator.Compiled) ([]query.FacetResult, error)
}

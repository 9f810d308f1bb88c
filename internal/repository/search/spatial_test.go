package search

import (
	"context"
	"strings"
	"testing"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
	"github.com/twpayne/go-geom/xy"

	"github.com/kailas-cloud/ftcatalog/internal/db"
	"github.com/kailas-cloud/ftcatalog/internal/domain/predicate"
	"github.com/kailas-cloud/ftcatalog/internal/domain/query"
	domrec "github.com/kailas-cloud/ftcatalog/internal/domain/record"
	"github.com/kailas-cloud/ftcatalog/internal/domain/schema"
	"github.com/kailas-cloud/ftcatalog/internal/mapper"
	"github.com/kailas-cloud/ftcatalog/internal/planner"
	"github.com/kailas-cloud/ftcatalog/internal/translator"
)

// pointIntersects answers FT.SEARCH for one stored document: it matches
// when a point parameter tested against a shape slot lies inside that slot.
func pointIntersects(t *testing.T, repo *Repo, key string, doc map[string]string) func(context.Context, *db.SearchQuery) (*db.SearchResult, error) {
	return func(_ context.Context, q *db.SearchQuery) (*db.SearchResult, error) {
		for _, p := range q.Params {
			g, err := wkt.Unmarshal(p.Value)
			if err != nil {
				t.Fatalf("param %s: %v", p.Name, err)
			}
			pt, ok := g.(*geom.Point)
			if !ok {
				t.Fatalf("param %s = %s, want a point", p.Name, p.Value)
			}
			for i := range repo.layout.MaxParts() {
				field := repo.layout.GeoField(schema.AttrLocation, i)
				if !strings.Contains(q.Query, "@"+field+":[INTERSECTS $"+p.Name+"]") || doc[field] == "" {
					continue
				}
				stored, err := wkt.Unmarshal(doc[field])
				if err != nil {
					t.Fatalf("slot %s: %v", field, err)
				}
				poly, ok := stored.(*geom.Polygon)
				if ok && xy.IsPointInRing(geom.XY, pt.Coords(), poly.LinearRing(0).FlatCoords()) {
					return &db.SearchResult{Total: 1, Entries: []db.SearchEntry{{Key: key, Fields: doc}}}, nil
				}
			}
		}
		return &db.SearchResult{}, nil
	}
}

func TestExecute_AntimeridianPolygonIntersects(t *testing.T) {
	windings := map[string]string{
		"clockwise":         "POLYGON((170 10, 170 -10, -170 -10, -170 10, 170 10))",
		"counter-clockwise": "POLYGON((170 10, -170 10, -170 -10, 170 -10, 170 10))",
	}
	points := []struct {
		wkt  string
		hits int
	}{
		{"POINT(175 0)", 1},
		{"POINT(-175 5)", 1},
		{"POINT(179.9 -9)", 1},
		{"POINT(0 0)", 0},
		{"POINT(160 0)", 0},
	}
	for name, poly := range windings {
		for _, pt := range points {
			t.Run(name+" "+pt.wkt, func(t *testing.T) {
				repo, ms, _ := newTestRepo(t)
				r := domrec.New(schema.CoreName)
				r.ID = "r1"
				r.SourceID = "local"
				r.Set(schema.AttrLocation, domrec.Geometry(poly))
				doc, err := repo.mapper.ToDocument(r, true)
				if err != nil {
					t.Fatalf("to document: %v", err)
				}
				if parts := doc[repo.layout.Field(schema.AttrLocation, mapper.SuffixParts)]; parts != "2" {
					t.Fatalf("stored parts = %q, want the polygon split", parts)
				}
				ms.searchFn = pointIntersects(t, repo, repo.layout.Key(r.ID), doc)

				q := query.New(predicate.IntersectsShape(schema.AttrLocation, pt.wkt))
				c, err := translator.New(repo.layout, nil).Compile(q.Predicate)
				if err != nil {
					t.Fatalf("compile: %v", err)
				}
				p, err := planner.New(repo.layout).Plan(q, c)
				if err != nil {
					t.Fatalf("plan: %v", err)
				}
				page, err := repo.Execute(context.Background(), p)
				if err != nil {
					t.Fatalf("execute: %v", err)
				}
				if len(page.Results) != pt.hits {
					t.Fatalf("hits = %d, want %d", len(page.Results), pt.hits)
				}
				if pt.hits == 1 && page.Results[0].Record.ID != "r1" {
					t.Errorf("hit = %s", page.Results[0].Record.ID)
				}
			})
		}
	}
}

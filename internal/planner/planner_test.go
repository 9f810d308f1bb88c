package planner

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/ftcatalog/internal/db"
	"github.com/kailas-cloud/ftcatalog/internal/domain"
	"github.com/kailas-cloud/ftcatalog/internal/domain/predicate"
	"github.com/kailas-cloud/ftcatalog/internal/domain/query"
	"github.com/kailas-cloud/ftcatalog/internal/domain/schema"
	"github.com/kailas-cloud/ftcatalog/internal/mapper"
	"github.com/kailas-cloud/ftcatalog/internal/translator"
)

func newLayout(t *testing.T) *mapper.Layout {
	t.Helper()
	s, err := schema.New("sensor", []schema.Descriptor{
		{Name: "reading", Type: schema.Float, Indexed: true, Stored: true},
		{Name: "notes", Type: schema.String, Stored: true},
	})
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	reg, err := schema.NewRegistry(s)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	l, err := mapper.NewLayout(reg, "cat:", 2)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	return l
}

func plan(t *testing.T, q *query.Query) *Plan {
	t.Helper()
	l := newLayout(t)
	c, err := translator.New(l, nil).Compile(q.Predicate)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	p, err := New(l, WithFetchChunk(50)).Plan(q, c)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	return p
}

func TestValidate_StartIndex(t *testing.T) {
	p := New(newLayout(t))
	for _, start := range []int{0, -1} {
		q := query.New(predicate.Like(schema.AttrTitle, "*"))
		q.StartIndex = start
		err := p.Validate(q)
		if err == nil {
			t.Fatalf("start %d: expected error", start)
		}
		var qe *domain.QueryError
		if !errors.As(err, &qe) {
			t.Fatalf("start %d: expected QueryError, got %T", start, err)
		}
		if !strings.Contains(err.Error(), "greater than 0") {
			t.Errorf("start %d: message %q", start, err.Error())
		}
		if !errors.Is(err, domain.ErrInvalidQuery) {
			t.Errorf("start %d: expected ErrInvalidQuery", start)
		}
	}
}

func TestValidate_PageSize(t *testing.T) {
	p := New(newLayout(t))
	q := query.New(nil)
	q.PageSize = -2
	if err := p.Validate(q); err == nil {
		t.Fatal("expected error for page size -2")
	}
	q.PageSize = query.Unbounded
	if err := p.Validate(q); err != nil {
		t.Fatalf("unbounded: %v", err)
	}
}

func TestPlan_Defaults(t *testing.T) {
	q := query.New(predicate.Like(schema.AttrTitle, "flag*"))
	q.StartIndex = 3
	p := plan(t, q)

	if p.Kind != Search {
		t.Fatalf("kind = %s", p.Kind)
	}
	if p.Index != "cat:idx" {
		t.Errorf("index = %q", p.Index)
	}
	if p.Offset != 2 || p.Limit != DefaultPageSize {
		t.Errorf("window = %d,%d", p.Offset, p.Limit)
	}
	if !p.Scored {
		t.Error("text predicate should be scored")
	}
	if !strings.HasSuffix(p.Query, "@__visible:{1}") {
		t.Errorf("query not filtered: %q", p.Query)
	}
	sq := p.SearchWindow(p.Offset, p.Limit)
	if !sq.WithScores || sq.SortBy != "" {
		t.Errorf("search window = %+v", sq)
	}
}

func TestPlan_Empty(t *testing.T) {
	p := plan(t, query.New(nil))
	if p.Kind != Empty {
		t.Fatalf("kind = %s", p.Kind)
	}
}

func TestPlan_Unbounded(t *testing.T) {
	q := query.New(predicate.Like(schema.AttrTitle, "*"))
	q.PageSize = query.Unbounded
	p := plan(t, q)
	if !p.Unbounded() || p.Chunk != 50 {
		t.Fatalf("limit=%d chunk=%d", p.Limit, p.Chunk)
	}
}

func TestPlan_SingleAttribute(t *testing.T) {
	q := query.New(predicate.Like(schema.AttrTitle, "*"))
	desc := query.Desc("reading")
	q.Sort = &desc
	p := plan(t, q)
	if p.Kind != Search {
		t.Fatalf("kind = %s", p.Kind)
	}
	if p.SortBy != "reading_flt" || !p.SortDesc {
		t.Errorf("sort = %q desc=%v", p.SortBy, p.SortDesc)
	}
}

func TestPlan_RelevanceDesc(t *testing.T) {
	q := query.New(predicate.Like(schema.AttrTitle, "flag"))
	desc := query.Desc(query.RelevanceKey)
	q.Sort = &desc
	p := plan(t, q)
	if p.Kind != Search || !p.Scored || p.SortBy != "" {
		t.Fatalf("plan = %+v", p)
	}
}

func TestPlan_MultiKey(t *testing.T) {
	q := query.New(predicate.Like(schema.AttrTitle, "*"))
	asc := query.Asc(schema.AttrTitle)
	q.Sort = &asc
	q.TieBreaks = []query.SortKey{query.Desc(schema.AttrCreated), query.Asc("notes")}
	p := plan(t, q)
	if p.Kind != Aggregate {
		t.Fatalf("kind = %s", p.Kind)
	}
	want := []db.SortKey{
		{Field: "title_tks"},
		{Field: "created_tdt", Desc: true},
		{Field: mapper.FieldID},
	}
	if len(p.Keys) != len(want) {
		t.Fatalf("keys = %+v", p.Keys)
	}
	for i := range want {
		if p.Keys[i] != want[i] {
			t.Errorf("key %d = %+v, want %+v", i, p.Keys[i], want[i])
		}
	}
	aq := p.AggregateWindow(0, 10)
	if len(aq.Load) != 1 || aq.Load[0] != mapper.FieldID {
		t.Errorf("load = %v", aq.Load)
	}
}

func TestPlan_RelevanceAsc(t *testing.T) {
	q := query.New(predicate.Like(schema.AttrTitle, "flag"))
	asc := query.Asc(query.RelevanceKey)
	q.Sort = &asc
	p := plan(t, q)
	if p.Kind != Aggregate {
		t.Fatalf("kind = %s", p.Kind)
	}
	if p.Keys[0].Field != mapper.FieldScore || p.Keys[0].Desc {
		t.Errorf("keys = %+v", p.Keys)
	}
	if !p.AggregateWindow(0, 10).AddScores {
		t.Error("expected ADDSCORES")
	}
}

func TestPlan_Distance(t *testing.T) {
	q := query.New(predicate.DWithinDistance(schema.AttrLocation, "POINT (10 20)", 1, predicate.Kilometers))
	asc := query.Asc(query.DistanceKey)
	q.Sort = &asc
	p := plan(t, q)
	if p.Kind != Aggregate || !p.Distance {
		t.Fatalf("plan = %+v", p)
	}
	aq := p.AggregateWindow(0, 5)
	if len(aq.Applies) != 1 {
		t.Fatalf("applies = %+v", aq.Applies)
	}
	if got, want := aq.Applies[0].Expr, "geodistance(@location_pt,10,20)"; got != want {
		t.Errorf("expr = %q, want %q", got, want)
	}
	if aq.Applies[0].As != mapper.FieldDistance {
		t.Errorf("as = %q", aq.Applies[0].As)
	}
	if aq.Load[len(aq.Load)-1] != "location_pt" {
		t.Errorf("load = %v", aq.Load)
	}
}

func TestPlan_DistanceWithoutReference(t *testing.T) {
	l := newLayout(t)
	q := query.New(predicate.Like(schema.AttrTitle, "flag"))
	asc := query.Asc(query.DistanceKey)
	q.Sort = &asc
	c, err := translator.New(l, nil).Compile(q.Predicate)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	_, err = New(l).Plan(q, c)
	var qe *domain.QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QueryError, got %v", err)
	}
	if qe.Attribute != query.DistanceKey {
		t.Errorf("attribute = %q", qe.Attribute)
	}
}

func TestPlan_IgnoresUnsortableKeys(t *testing.T) {
	q := query.New(predicate.Like(schema.AttrTitle, "*"))
	k := query.Asc("notes")
	q.Sort = &k
	q.TieBreaks = []query.SortKey{query.Asc("nonexistent")}
	p := plan(t, q)
	if p.Kind != Search || p.SortBy != "" {
		t.Fatalf("plan = %+v", p)
	}
}

func TestPlan_IDLookup(t *testing.T) {
	q := query.New(predicate.Or(
		predicate.EqualTo(schema.AttrID, "a"),
		predicate.EqualTo(schema.AttrID, "b"),
	))
	p := plan(t, q)
	if p.Kind != Lookup {
		t.Fatalf("kind = %s", p.Kind)
	}
	if len(p.IDs) != 2 || p.IDs[0] != "a" || p.IDs[1] != "b" {
		t.Errorf("ids = %v", p.IDs)
	}

	k := query.Desc(schema.AttrModified)
	q.Sort = &k
	if p = plan(t, q); p.Kind != Search {
		t.Errorf("sorted id query kind = %s", p.Kind)
	}
}

func TestAggregateKeys_StopsAtID(t *testing.T) {
	got := aggregateKeys([]resolved{{field: mapper.FieldID, desc: true}, {field: "x"}})
	if len(got) != 1 || !got[0].Desc {
		t.Errorf("keys = %+v", got)
	}
}

func TestPlan_DirectionsAreExactReverses(t *testing.T) {
	tests := []struct {
		name string
		key  string
		ties []string
	}{
		{"single attribute", "reading", nil},
		{"multi key", schema.AttrTitle, []string{schema.AttrCreated}},
		{"relevance with tie break", query.RelevanceKey, []string{"reading"}},
	}
	build := func(key string, ties []string, desc bool) *Plan {
		q := query.New(predicate.Like(schema.AttrTitle, "flag"))
		dir := query.Asc
		if desc {
			dir = query.Desc
		}
		k := dir(key)
		q.Sort = &k
		for _, tie := range ties {
			q.TieBreaks = append(q.TieBreaks, dir(tie))
		}
		return plan(t, q)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asc, desc := build(tt.key, tt.ties, false), build(tt.key, tt.ties, true)
			if asc.Kind == Search && desc.Kind == Search {
				if asc.SortBy != desc.SortBy || asc.SortDesc == desc.SortDesc {
					t.Errorf("asc %q/%v, desc %q/%v", asc.SortBy, asc.SortDesc, desc.SortBy, desc.SortDesc)
				}
				return
			}
			if len(asc.Keys) != len(desc.Keys) || len(asc.Keys) == 0 {
				t.Fatalf("asc keys %+v, desc keys %+v", asc.Keys, desc.Keys)
			}
			for i := range asc.Keys {
				a, d := asc.Keys[i], desc.Keys[i]
				if a.Field != d.Field || a.Desc == d.Desc {
					t.Errorf("key %d: asc %+v, desc %+v", i, a, d)
				}
			}
			if last := asc.Keys[len(asc.Keys)-1]; last.Field != mapper.FieldID {
				t.Errorf("last key = %+v, want the id tie break", last)
			}
		})
	}
}

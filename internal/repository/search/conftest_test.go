package search

import (
	"context"
	"testing"

	"github.com/kailas-cloud/ftcatalog/internal/db"
	domrec "github.com/kailas-cloud/ftcatalog/internal/domain/record"
	"github.com/kailas-cloud/ftcatalog/internal/domain/schema"
	"github.com/kailas-cloud/ftcatalog/internal/mapper"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchFn      func(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error)
	aggregateFn   func(ctx context.Context, q *db.AggregateQuery) (*db.AggregateResult, error)
	searchCountFn func(ctx context.Context, index, query string, params []db.Param) (int, error)
}

func (m *mockStore) Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) Aggregate(ctx context.Context, q *db.AggregateQuery) (*db.AggregateResult, error) {
	if m.aggregateFn != nil {
		return m.aggregateFn(ctx, q)
	}
	return &db.AggregateResult{}, nil
}

func (m *mockStore) SearchCount(ctx context.Context, index, query string, params []db.Param) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, index, query, params)
	}
	return 0, nil
}

// mockRecords serves records by id from a map.
type mockRecords struct {
	byID map[string]*domrec.Record
	err  error
}

func (m *mockRecords) Get(_ context.Context, ids []string) ([]*domrec.Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]*domrec.Record, len(ids))
	for i, id := range ids {
		out[i] = m.byID[id]
	}
	return out, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore, *mockRecords) {
	t.Helper()
	reg, err := schema.NewRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	l, err := mapper.NewLayout(reg, "cat:", 0)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	m, err := mapper.New(l, nil)
	if err != nil {
		t.Fatalf("mapper: %v", err)
	}
	t.Cleanup(m.Close)
	ms := &mockStore{}
	mr := &mockRecords{byID: map[string]*domrec.Record{}}
	return New(ms, mr, m), ms, mr
}

func doc(id, title string) map[string]string {
	return map[string]string{
		mapper.FieldID:     id,
		mapper.FieldSource: "local",
		mapper.FieldSchema: schema.CoreName,
		"title":            title,
	}
}

func rec(id string) *domrec.Record {
	r := domrec.New("")
	r.ID = id
	return r
}

package record

import (
	"context"
	"testing"

	"github.com/kailas-cloud/ftcatalog/internal/db"
	"github.com/kailas-cloud/ftcatalog/internal/domain/schema"
	"github.com/kailas-cloud/ftcatalog/internal/mapper"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetMultiFn     func(ctx context.Context, items []db.HashSetItem) error
	hreplaceMultiFn func(ctx context.Context, items []db.HashSetItem) error
	hgetAllMultiFn  func(ctx context.Context, keys []string) ([]map[string]string, error)
	delMultiFn      func(ctx context.Context, keys []string) (int, error)
	hsetIfExistsFn  func(ctx context.Context, keys []string, field, value string) (int, error)
	saddFn          func(ctx context.Context, key string, members ...string) error
	spopFn          func(ctx context.Context, key string, count int) ([]string, error)
	scardFn         func(ctx context.Context, key string) (int64, error)
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) HReplaceMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hreplaceMultiFn != nil {
		return m.hreplaceMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hgetAllMultiFn != nil {
		return m.hgetAllMultiFn(ctx, keys)
	}
	return make([]map[string]string, len(keys)), nil
}

func (m *mockStore) DelMulti(ctx context.Context, keys []string) (int, error) {
	if m.delMultiFn != nil {
		return m.delMultiFn(ctx, keys)
	}
	return 0, nil
}

func (m *mockStore) HSetIfExistsMulti(ctx context.Context, keys []string, field, value string) (int, error) {
	if m.hsetIfExistsFn != nil {
		return m.hsetIfExistsFn(ctx, keys, field, value)
	}
	return len(keys), nil
}

func (m *mockStore) SAdd(ctx context.Context, key string, members ...string) error {
	if m.saddFn != nil {
		return m.saddFn(ctx, key, members...)
	}
	return nil
}

func (m *mockStore) SPop(ctx context.Context, key string, count int) ([]string, error) {
	if m.spopFn != nil {
		return m.spopFn(ctx, key, count)
	}
	return nil, nil
}

func (m *mockStore) SCard(ctx context.Context, key string) (int64, error) {
	if m.scardFn != nil {
		return m.scardFn(ctx, key)
	}
	return 0, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
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
	return New(ms, m), ms
}

package record

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/ftcatalog/internal/db"
	domrec "github.com/kailas-cloud/ftcatalog/internal/domain/record"
	"github.com/kailas-cloud/ftcatalog/internal/domain/schema"
	"github.com/kailas-cloud/ftcatalog/internal/mapper"
)

func testRecord(id, title string) *domrec.Record {
	r := domrec.New("")
	r.ID = id
	r.SourceID = "local"
	r.Set(schema.AttrTitle, title)
	return r
}

func TestPut_Visible(t *testing.T) {
	repo, ms := newTestRepo(t)
	var written []db.HashSetItem
	ms.hsetMultiFn = func(_ context.Context, items []db.HashSetItem) error {
		written = items
		return nil
	}
	ms.saddFn = func(context.Context, string, ...string) error {
		t.Fatal("visible writes must not be queued")
		return nil
	}

	if err := repo.Put(context.Background(), []*domrec.Record{testRecord("a", "Flagstaff")}, false, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(written) != 1 || written[0].Key != "cat:record:a" {
		t.Fatalf("written = %+v", written)
	}
	if written[0].Fields[mapper.FieldVisible] != mapper.VisibleValue {
		t.Errorf("visible = %q", written[0].Fields[mapper.FieldVisible])
	}
}

func TestPut_DeferredQueuesKeys(t *testing.T) {
	repo, ms := newTestRepo(t)
	var replaced []db.HashSetItem
	var queued []string
	ms.hreplaceMultiFn = func(_ context.Context, items []db.HashSetItem) error {
		replaced = items
		return nil
	}
	ms.saddFn = func(_ context.Context, key string, members ...string) error {
		if key != "cat:pending" {
			t.Errorf("pending key = %q", key)
		}
		queued = members
		return nil
	}

	recs := []*domrec.Record{testRecord("a", "x"), testRecord("b", "y")}
	if err := repo.Put(context.Background(), recs, true, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(replaced) != 2 || replaced[1].Fields[mapper.FieldVisible] != mapper.InvisibleValue {
		t.Fatalf("replaced = %+v", replaced)
	}
	if len(queued) != 2 || queued[0] != "cat:record:a" || queued[1] != "cat:record:b" {
		t.Errorf("queued = %v", queued)
	}
}

func TestPut_WriteError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hsetMultiFn = func(context.Context, []db.HashSetItem) error {
		return &db.Error{Op: db.OpHSet, Err: errors.New("oom")}
	}
	err := repo.Put(context.Background(), []*domrec.Record{testRecord("a", "x")}, false, true)
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

func TestGet_MissingIsNil(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllMultiFn = func(_ context.Context, keys []string) ([]map[string]string, error) {
		if len(keys) != 2 || keys[0] != "cat:record:a" {
			t.Errorf("keys = %v", keys)
		}
		return []map[string]string{
			{mapper.FieldID: "a", mapper.FieldSource: "local", mapper.FieldSchema: schema.CoreName, "title": "Flagstaff"},
			{},
		}, nil
	}

	recs, err := repo.Get(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 || recs[1] != nil {
		t.Fatalf("recs = %+v", recs)
	}
	if recs[0].ID != "a" || recs[0].Title() != "Flagstaff" || recs[0].SourceID != "local" {
		t.Errorf("rec = %+v", recs[0])
	}
}

func TestDelete(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.delMultiFn = func(_ context.Context, keys []string) (int, error) {
		return len(keys) - 1, nil
	}
	n, err := repo.Delete(context.Background(), []string{"a", "b"})
	if err != nil || n != 1 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if n, _ = repo.Delete(context.Background(), nil); n != 0 {
		t.Errorf("empty delete = %d", n)
	}
}

func TestCommit_DrainsInBatches(t *testing.T) {
	repo, ms := newTestRepo(t)
	repo.WithCommitBatch(2)
	pending := []string{"k1", "k2", "k3"}
	ms.spopFn = func(_ context.Context, _ string, count int) ([]string, error) {
		n := min(count, len(pending))
		out := pending[:n]
		pending = pending[n:]
		return out, nil
	}
	var flipped []string
	ms.hsetIfExistsFn = func(_ context.Context, keys []string, field, value string) (int, error) {
		if field != mapper.FieldVisible || value != mapper.VisibleValue {
			t.Errorf("flip %s=%s", field, value)
		}
		flipped = append(flipped, keys...)
		// k3 was deleted meanwhile.
		if len(keys) == 1 {
			return 0, nil
		}
		return len(keys), nil
	}

	n, err := repo.Commit(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 || len(flipped) != 3 {
		t.Errorf("n=%d flipped=%v", n, flipped)
	}
}

func TestCommit_RequeuesOnFailure(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.spopFn = func(context.Context, string, int) ([]string, error) { return []string{"k1"}, nil }
	ms.hsetIfExistsFn = func(context.Context, []string, string, string) (int, error) {
		return 0, errors.New("script busy")
	}
	var requeued []string
	ms.saddFn = func(_ context.Context, _ string, members ...string) error {
		requeued = members
		return nil
	}
	if _, err := repo.Commit(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(requeued) != 1 || requeued[0] != "k1" {
		t.Errorf("requeued = %v", requeued)
	}
}

func TestPending(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.scardFn = func(context.Context, string) (int64, error) { return 7, nil }
	n, err := repo.Pending(context.Background())
	if err != nil || n != 7 {
		t.Fatalf("n=%d err=%v", n, err)
	}
}

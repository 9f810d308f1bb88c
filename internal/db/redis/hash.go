package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/ftcatalog/internal/db"
)

// setIfExists sets ARGV[1]=ARGV[2] on every key in KEYS that still exists.
// Keys deleted since they were queued are skipped rather than resurrected.
var setIfExists = rueidis.NewLuaScript(`
local n = 0
for _, k in ipairs(KEYS) do
  if redis.call('EXISTS', k) == 1 then
    redis.call('HSET', k, ARGV[1], ARGV[2])
    n = n + 1
  end
end
return n
`)

// HSetMulti stores multiple hashes in a single DoMulti round-trip.
func (s *Store) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, len(items))
	for i, item := range items {
		cmd := s.b().Hset().Key(item.Key).FieldValue()
		for k, v := range item.Fields {
			cmd = cmd.FieldValue(k, v)
		}
		cmds[i] = cmd.Build()
	}

	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpHSet, Err: fmt.Errorf("key %s: %w", items[i].Key, err)}
		}
	}
	return nil
}

// HGetAllMulti fetches all fields for multiple hashes in a single DoMulti round-trip.
// A missing key yields an empty map at its position.
func (s *Store) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Hgetall().Key(key).Build()
	}

	results := s.client.DoMulti(ctx, cmds...)
	out := make([]map[string]string, len(results))

	for i, res := range results {
		m, err := res.AsStrMap()
		if err != nil {
			return nil, &db.Error{Op: db.OpHGetAll, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		out[i] = m
	}

	return out, nil
}

// DelMulti deletes keys with one DEL and returns how many existed.
func (s *Store) DelMulti(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	cmd := s.b().Del().Key(keys...).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpDel, Err: err}
	}
	return int(n), nil
}

// HSetIfExistsMulti sets field=value on every key that still exists, atomically per call.
func (s *Store) HSetIfExistsMulti(ctx context.Context, keys []string, field, value string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := setIfExists.Exec(ctx, s.client, keys, []string{field, value}).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpEval, Err: err}
	}
	return int(n), nil
}

// HReplaceMulti replaces whole hashes: each key is deleted and rewritten
// inside its own MULTI/EXEC so stale fields never survive a rewrite.
func (s *Store) HReplaceMulti(ctx context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, 0, 4*len(items))
	for _, item := range items {
		hset := s.b().Hset().Key(item.Key).FieldValue()
		for k, v := range item.Fields {
			hset = hset.FieldValue(k, v)
		}
		cmds = append(cmds,
			s.b().Multi().Build(),
			s.b().Del().Key(item.Key).Build(),
			hset.Build(),
			s.b().Exec().Build(),
		)
	}

	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpHSet, Err: fmt.Errorf("key %s: %w", items[i/4].Key, err)}
		}
		if i%4 != 3 {
			continue
		}
		replies, err := res.ToArray()
		if err != nil {
			return &db.Error{Op: db.OpHSet, Err: fmt.Errorf("key %s: %w", items[i/4].Key, err)}
		}
		for _, r := range replies {
			if err := r.Error(); err != nil {
				return &db.Error{Op: db.OpHSet, Err: fmt.Errorf("key %s: %w", items[i/4].Key, err)}
			}
		}
	}
	return nil
}

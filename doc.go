// Package ftcatalog is a catalog provider over the Redis 8 Query Engine.
//
// Records carry named, typed attributes drawn from registered schemas. The
// provider stores each record as a hash, keeps one FT index over every
// attribute, and answers predicate queries with paging, sorting, totals and
// facets.
//
//	p, _ := ftcatalog.New(ftcatalog.WithRedis("localhost:6379", ""))
//	defer p.Close()
//
//	r := ftcatalog.NewRecord("")
//	r.Set(ftcatalog.AttrTitle, "Flagstaff")
//	_, _ = p.Create(ctx, &ftcatalog.CreateRequest{Records: []*ftcatalog.Record{r}})
//
//	resp, _ := p.Query(ctx, ftcatalog.NewQuery(ftcatalog.Like(ftcatalog.AttrTitle, "Flag*ff")))
//
// # Visibility
//
// In immediate mode every write is visible to the next query. In deferred
// mode writes stay hidden from general search until Commit; lookups by id
// see them at once. Switching back to immediate commits what is pending.
package ftcatalog

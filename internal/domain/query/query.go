// Package query defines catalog query requests and responses.
package query

import (
	"github.com/kailas-cloud/ftcatalog/internal/domain/predicate"
	"github.com/kailas-cloud/ftcatalog/internal/domain/record"
)

// Synthetic sort keys.
const (
	// RelevanceKey sorts by text match score; descending puts the best match first.
	RelevanceKey = "RELEVANCE"
	// DistanceKey sorts by distance to the spatial reference; ascending puts the nearest first.
	DistanceKey = "DISTANCE"
)

// UnknownHits is the total count when the total was not computed.
const UnknownHits int64 = -1

// Unbounded as a page size fetches every match.
const Unbounded = -1

// SortKey orders results by one attribute or synthetic key.
type SortKey struct {
	Attribute string
	Desc      bool
}

// Asc sorts ascending by attr.
func Asc(attr string) SortKey { return SortKey{Attribute: attr} }

// Desc sorts descending by attr.
func Desc(attr string) SortKey { return SortKey{Attribute: attr, Desc: true} }

// IsRelevance reports whether the key is the synthetic relevance key.
func (k SortKey) IsRelevance() bool { return k.Attribute == RelevanceKey }

// IsDistance reports whether the key is the synthetic distance key.
func (k SortKey) IsDistance() bool { return k.Attribute == DistanceKey }

// Query selects, orders and pages records.
type Query struct {
	Predicate *predicate.Node
	// StartIndex is 1-based.
	StartIndex int
	// PageSize is the page length; Unbounded fetches all, 0 uses the default.
	PageSize int
	// Sort is the primary key; nil keeps natural order.
	Sort *SortKey
	// TieBreaks apply left to right after Sort.
	TieBreaks []SortKey
	WantTotal bool

	// Excluded attributes are dropped from returned records.
	Excluded []string
	Facets   *FacetRequest
}

// SortKeys returns the primary key followed by the tie breaks.
func (q *Query) SortKeys() []SortKey {
	var keys []SortKey
	if q.Sort != nil {
		keys = append(keys, *q.Sort)
	}
	return append(keys, q.TieBreaks...)
}

// Result is one hit.
type Result struct {
	Record *record.Record
	// Score is meaningful only under a text predicate.
	Score float64
	// Distance is meters to the spatial reference; set only under a distance sort.
	Distance *float64
}

// Response is the outcome of a query.
type Response struct {
	// Hits is the total match count or UnknownHits.
	Hits    int64
	Results []Result
	Facets  []FacetResult
}

// FacetOrder orders facet buckets.
type FacetOrder int

// Facet orders.
const (
	// ByCount orders buckets by descending count, then value.
	ByCount FacetOrder = iota
	// ByIndex orders buckets by value.
	ByIndex
)

// FacetRequest asks for value histograms over attributes.
type FacetRequest struct {
	Attributes []string
	Order      FacetOrder
	// Limit caps buckets per attribute; 0 uses the default.
	Limit    int
	MinCount int
}

// FacetValue is one bucket.
type FacetValue struct {
	Value string
	Count int64
}

// FacetResult holds the buckets of one attribute.
type FacetResult struct {
	Attribute string
	Values    []FacetValue
}

// New returns a query for p starting at the first result with the default page size.
func New(p *predicate.Node) *Query {
	return &Query{Predicate: p, StartIndex: 1}
}

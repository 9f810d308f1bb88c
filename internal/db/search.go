package db

// Param is a named query parameter referenced as $Name in a query string.
type Param struct {
	Name  string
	Value string
}

// SearchQuery is the input for FT.SEARCH.
type SearchQuery struct {
	IndexName string
	Query     string
	Params    []Param
	Offset    int
	Limit     int

	// SortBy names a SORTABLE field; empty keeps engine order.
	SortBy   string
	SortDesc bool

	WithScores   bool
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// Apply computes a new row field from an expression.
type Apply struct {
	Expr string
	As   string
}

// Reducer aggregates over a group, e.g. COUNT 0 AS count.
type Reducer struct {
	Func string
	Args []string
	As   string
}

// SortKey is one field of an aggregate SORTBY.
type SortKey struct {
	Field string
	Desc  bool
}

// AggregateQuery is the input for FT.AGGREGATE.
// Steps are emitted in the order LOAD, APPLY, GROUPBY/REDUCE, SORTBY, LIMIT.
type AggregateQuery struct {
	IndexName string
	Query     string
	Params    []Param

	Load      []string
	AddScores bool
	Applies   []Apply

	GroupBy  []string
	Reducers []Reducer
	// Filter is applied after GROUPBY, e.g. "@count>=2".
	Filter string

	SortBy []SortKey
	Offset int
	Limit  int
}

// AggregateResult is the output of an aggregation.
// Total is an upper bound reported by the engine and is not a hit count.
type AggregateResult struct {
	Total int
	Rows  []map[string]string
}

package ftcatalog

import (
	"github.com/kailas-cloud/ftcatalog/internal/domain/predicate"
	"github.com/kailas-cloud/ftcatalog/internal/domain/query"
	"github.com/kailas-cloud/ftcatalog/internal/domain/record"
	"github.com/kailas-cloud/ftcatalog/internal/domain/schema"
	"github.com/kailas-cloud/ftcatalog/internal/domain/settings"
	healthuc "github.com/kailas-cloud/ftcatalog/internal/usecase/health"
)

// Records and schemas.
type (
	Record      = record.Record
	Geometry    = record.Geometry
	ContentType = record.ContentType
	Descriptor  = schema.Descriptor
	Schema      = schema.Schema
	Type        = schema.Type
)

// Queries and responses.
type (
	Predicate    = predicate.Node
	Query        = query.Query
	SortKey      = query.SortKey
	Response     = query.Response
	Result       = query.Result
	FacetRequest = query.FacetRequest
	FacetOrder   = query.FacetOrder
	FacetResult  = query.FacetResult
	FacetValue   = query.FacetValue
)

// Writes.
type (
	CreateRequest  = query.CreateRequest
	CreateResponse = query.CreateResponse
	UpdateRequest  = query.UpdateRequest
	Update         = query.Update
	UpdateResponse = query.UpdateResponse
	UpdatedRecord  = query.UpdatedRecord
	DeleteRequest  = query.DeleteRequest
	DeleteResponse = query.DeleteResponse
)

// Runtime switches and health.
type (
	Settings     = settings.Settings
	CommitMode   = settings.CommitMode
	HealthReport = healthuc.Report
)

// Commit modes.
const (
	Immediate = settings.Immediate
	Deferred  = settings.Deferred
)

// Core attribute names.
const (
	AttrID                 = schema.AttrID
	AttrTitle              = schema.AttrTitle
	AttrMetadata           = schema.AttrMetadata
	AttrContentType        = schema.AttrContentType
	AttrContentTypeVersion = schema.AttrContentTypeVersion
	AttrLocation           = schema.AttrLocation
	AttrThumbnail          = schema.AttrThumbnail
	AttrCreated            = schema.AttrCreated
	AttrModified           = schema.AttrModified
	AttrEffective          = schema.AttrEffective
	AttrExpiration         = schema.AttrExpiration
	AttrSecurity           = schema.AttrSecurity
	AttrTags               = schema.AttrTags
	AttrResourceURI        = schema.AttrResourceURI
	AttrResourceSize       = schema.AttrResourceSize
)

// Facet orders.
const (
	FacetByCount = query.ByCount
	FacetByIndex = query.ByIndex
)

// Synthetic sort keys.
const (
	Relevance = query.RelevanceKey
	Distance  = query.DistanceKey
)

// Distance units.
const (
	Meters        = predicate.Meters
	Kilometers    = predicate.Kilometers
	Feet          = predicate.Feet
	Yards         = predicate.Yards
	Miles         = predicate.Miles
	NauticalMiles = predicate.NauticalMiles
)

// Constructors.
var (
	NewRecord      = record.New
	NewContentType = record.NewContentType
	NewSchema      = schema.New
	NewQuery       = query.New
	Asc            = query.Asc
	Desc           = query.Desc
	DeleteByIDs    = query.DeleteByIDs
)

// Predicate constructors.
var (
	And            = predicate.And
	Or             = predicate.Or
	Not            = predicate.Not
	Include        = predicate.Include
	Exclude        = predicate.Exclude
	EqualTo        = predicate.EqualTo
	EqualToCase    = predicate.EqualToCase
	NotEqualTo     = predicate.NotEqualTo
	LessThan       = predicate.LessThan
	LessOrEqual    = predicate.LessOrEqual
	GreaterThan    = predicate.GreaterThan
	GreaterOrEqual = predicate.GreaterOrEqual
	Between        = predicate.Between
	IsNull         = predicate.IsNull
	Like           = predicate.Like
	LikeCase       = predicate.LikeCase
	LikeWith       = predicate.LikeWith
	Fuzzy          = predicate.Fuzzy
	Proximity      = predicate.Proximity
	Intersects     = predicate.IntersectsShape
	Within         = predicate.WithinShape
	Contains       = predicate.ContainsShape
	DWithin        = predicate.DWithinDistance
	Beyond         = predicate.BeyondDistance
	Nearest        = predicate.NearestTo
	Before         = predicate.BeforeTime
	After          = predicate.AfterTime
	During         = predicate.DuringRange
	Relative       = predicate.RelativeTo
	XPathExists    = predicate.XPathExists
	XPathLike      = predicate.XPathLike
	Function       = predicate.Function
)

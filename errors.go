package ftcatalog

import "github.com/kailas-cloud/ftcatalog/internal/domain"

// QueryError and IngestError are the two failure kinds. Use errors.As to
// extract them and errors.Is with the sentinels below for the cause.
type (
	QueryError  = domain.QueryError
	IngestError = domain.IngestError
)

// Sentinel errors re-exported from the domain layer.
var (
	ErrInvalidQuery         = domain.ErrInvalidQuery
	ErrUnsupportedPredicate = domain.ErrUnsupportedPredicate
	ErrInvalidRequest       = domain.ErrInvalidRequest
	ErrAmbiguousAddress     = domain.ErrAmbiguousAddress
	ErrUnknownAttribute     = domain.ErrUnknownAttribute
	ErrBackend              = domain.ErrBackend
	ErrInvalidSchema        = domain.ErrInvalidSchema
)

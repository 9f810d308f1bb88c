package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery signals a malformed or unsupported query shape.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrUnsupportedPredicate signals a predicate the translator cannot express.
	ErrUnsupportedPredicate = errors.New("unsupported predicate")
	// ErrInvalidRequest signals a malformed create/update/delete request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrAmbiguousAddress signals an update address resolving to more than one record.
	ErrAmbiguousAddress = errors.New("ambiguous update address")
	// ErrUnknownAttribute signals an attribute missing from every registered schema.
	ErrUnknownAttribute = errors.New("unknown attribute")
	// ErrBackend signals a failure talking to the search engine.
	ErrBackend = errors.New("backend failure")
	// ErrInvalidSchema signals an invalid schema definition.
	ErrInvalidSchema = errors.New("invalid schema")
)

// QueryError reports a failed query: bad shape or backend read failure.
type QueryError struct {
	Op        string
	Attribute string
	Err       error
}

func (e *QueryError) Error() string {
	return formatError("query", e.Op, e.Attribute, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// IngestError reports a failed create/update/delete.
type IngestError struct {
	Op        string
	Attribute string
	Err       error
}

func (e *IngestError) Error() string {
	return formatError("ingest", e.Op, e.Attribute, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

// NewQueryError builds a QueryError wrapping a sentinel with a formatted detail.
func NewQueryError(op, attribute string, sentinel error, format string, args ...any) error {
	return &QueryError{Op: op, Attribute: attribute, Err: detail(sentinel, format, args...)}
}

// NewIngestError builds an IngestError wrapping a sentinel with a formatted detail.
func NewIngestError(op, attribute string, sentinel error, format string, args ...any) error {
	return &IngestError{Op: op, Attribute: attribute, Err: detail(sentinel, format, args...)}
}

// WrapQueryBackend wraps a backend read failure, preserving the cause.
func WrapQueryBackend(op string, err error) error {
	if err == nil {
		return nil
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}
	return &QueryError{Op: op, Err: fmt.Errorf("%w: %w", ErrBackend, err)}
}

// WrapIngestBackend wraps a backend write failure, preserving the cause.
func WrapIngestBackend(op string, err error) error {
	if err == nil {
		return nil
	}
	var ie *IngestError
	if errors.As(err, &ie) {
		return err
	}
	return &IngestError{Op: op, Err: fmt.Errorf("%w: %w", ErrBackend, err)}
}

func detail(sentinel error, format string, args ...any) error {
	if format == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

func formatError(kind, op, attribute string, err error) string {
	msg := kind
	if op != "" {
		msg += " " + op
	}
	if attribute != "" {
		msg += fmt.Sprintf(" [attribute %q]", attribute)
	}
	if err != nil {
		msg += ": " + err.Error()
	}
	return msg
}

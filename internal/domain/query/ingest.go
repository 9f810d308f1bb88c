package query

import "github.com/kailas-cloud/ftcatalog/internal/domain/record"

// CreateRequest carries records to create.
type CreateRequest struct {
	Records []*record.Record
}

// CreateResponse carries the created records with their final ids.
type CreateResponse struct {
	Created []*record.Record
}

// DeleteRequest deletes by id (Attribute empty or "id") or by attribute equality.
type DeleteRequest struct {
	Attribute string
	Values    []any
}

// DeleteByIDs builds a delete-by-id request.
func DeleteByIDs(ids ...string) *DeleteRequest {
	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	return &DeleteRequest{Values: values}
}

// DeleteResponse carries the records that existed and were deleted.
type DeleteResponse struct {
	Deleted []*record.Record
}

// Update addresses one record by value and carries its replacement.
type Update struct {
	Address any
	Record  *record.Record
}

// UpdateRequest updates by id (Attribute empty or "id") or by a unique attribute.
type UpdateRequest struct {
	Attribute string
	Updates   []Update
}

// UpdatedRecord pairs the replaced record with its replacement.
type UpdatedRecord struct {
	Old *record.Record
	New *record.Record
}

// UpdateResponse carries one pair per resolved address.
type UpdateResponse struct {
	Updated []UpdatedRecord
}

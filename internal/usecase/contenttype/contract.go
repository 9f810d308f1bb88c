package contenttype

import (
	"context"

	"github.com/kailas-cloud/ftcatalog/internal/domain/record"
)

// Repository lists the (name, version) groups observed in the index.
type Repository interface {
	ContentTypes(ctx context.Context) ([]record.ContentType, error)
}

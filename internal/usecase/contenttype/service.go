// Package contenttype reports the distinct content types in the catalog.
package contenttype

import (
	"context"
	"sort"

	"github.com/kailas-cloud/ftcatalog/internal/domain"
	"github.com/kailas-cloud/ftcatalog/internal/domain/record"
)

const opContentTypes = "contentTypes"

// Service handles content-type listing.
type Service struct {
	repo Repository
}

// New creates a content-type service.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns every distinct (name, version) pair, sorted by name with the
// versionless member of a name first.
func (s *Service) List(ctx context.Context) ([]record.ContentType, error) {
	groups, err := s.repo.ContentTypes(ctx)
	if err != nil {
		return nil, domain.WrapQueryBackend(opContentTypes, err)
	}

	seen := make(map[record.ContentType]struct{}, len(groups))
	out := make([]record.ContentType, 0, len(groups))
	for _, ct := range groups {
		if !ct.HasVersion {
			ct.Version = ""
		}
		if _, ok := seen[ct]; ok {
			continue
		}
		seen[ct] = struct{}{}
		out = append(out, ct)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.HasVersion != b.HasVersion {
			return !a.HasVersion
		}
		return a.Version < b.Version
	})
	return out, nil
}

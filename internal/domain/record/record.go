// Package record holds the typed catalog record: identity, schema reference
// and an open set of schema-declared attribute values.
package record

import (
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/kailas-cloud/ftcatalog/internal/domain/schema"
)

// Geometry is a geometry literal in WKT form.
type Geometry string

// Record is one typed, schema-described catalog entry.
//
// Attribute values are Go values matching the descriptor type:
// string (string, xml), time.Time (date), bool (boolean), []byte (binary),
// Geometry (geometry), any JSON-serializable value (object) and any Go
// numeric type (integer, long, short, float, double).
type Record struct {
	ID       string
	SourceID string
	Schema   string

	attrs map[string][]any
}

// New creates an empty record of the given schema.
func New(schemaName string) *Record {
	if schemaName == "" {
		schemaName = schema.CoreName
	}
	return &Record{Schema: schemaName, attrs: make(map[string][]any)}
}

// Set replaces the values of an attribute. No values removes it.
func (r *Record) Set(name string, values ...any) {
	if r.attrs == nil {
		r.attrs = make(map[string][]any)
	}
	if len(values) == 0 {
		delete(r.attrs, name)
		return
	}
	r.attrs[name] = slices.Clone(values)
}

// Add appends values to an attribute.
func (r *Record) Add(name string, values ...any) {
	if r.attrs == nil {
		r.attrs = make(map[string][]any)
	}
	r.attrs[name] = append(r.attrs[name], values...)
}

// Get returns the first value of an attribute.
func (r *Record) Get(name string) (any, bool) {
	v := r.attrs[name]
	if len(v) == 0 {
		return nil, false
	}
	return v[0], true
}

// Values returns every value of an attribute.
func (r *Record) Values(name string) []any {
	return r.attrs[name]
}

// Has reports whether an attribute carries at least one value.
func (r *Record) Has(name string) bool {
	return len(r.attrs[name]) > 0
}

// Delete removes an attribute.
func (r *Record) Delete(name string) {
	delete(r.attrs, name)
}

// Names returns attribute names carrying values, sorted.
func (r *Record) Names() []string {
	names := make([]string, 0, len(r.attrs))
	for n, v := range r.attrs {
		if len(v) > 0 {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy; byte slices are copied.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := &Record{ID: r.ID, SourceID: r.SourceID, Schema: r.Schema, attrs: make(map[string][]any, len(r.attrs))}
	for n, vs := range r.attrs {
		cp := make([]any, len(vs))
		for i, v := range vs {
			cp[i] = cloneValue(v)
		}
		c.attrs[n] = cp
	}
	return c
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return slices.Clone(x)
	case map[string]any:
		return maps.Clone(x)
	default:
		return v
	}
}

// Text returns the first value of a string-typed attribute.
func (r *Record) Text(name string) string {
	v, _ := r.Get(name)
	s, _ := v.(string)
	return s
}

// Time returns the first value of a date-typed attribute.
func (r *Record) Time(name string) (time.Time, bool) {
	v, ok := r.Get(name)
	if !ok {
		return time.Time{}, false
	}
	t, ok := v.(time.Time)
	return t, ok
}

// Title returns the record title.
func (r *Record) Title() string { return r.Text(schema.AttrTitle) }

// Location returns the record location geometry.
func (r *Record) Location() (Geometry, bool) {
	v, ok := r.Get(schema.AttrLocation)
	if !ok {
		return "", false
	}
	g, ok := v.(Geometry)
	return g, ok
}

// ContentType returns the record's content-type name and version.
func (r *Record) ContentType() ContentType {
	ct := ContentType{Name: r.Text(schema.AttrContentType)}
	if v, ok := r.Get(schema.AttrContentTypeVersion); ok {
		if s, isStr := v.(string); isStr {
			ct.Version = s
			ct.HasVersion = true
		}
	}
	return ct
}

// ContentType is a (name, version-or-absent) pair. It is comparable and
// used as a set key; an absent version never equals any specific version.
type ContentType struct {
	Name       string
	Version    string
	HasVersion bool
}

// NewContentType creates a content type with a version.
func NewContentType(name, version string) ContentType {
	return ContentType{Name: name, Version: version, HasVersion: true}
}

// String renders name or name:version.
func (c ContentType) String() string {
	if !c.HasVersion {
		return c.Name
	}
	return c.Name + ":" + c.Version
}

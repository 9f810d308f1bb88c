// Package mapper converts typed records to indexed hash documents and back,
// and owns the field layout shared by query translation, sorting and facets.
package mapper

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/ftcatalog/internal/db"
	"github.com/kailas-cloud/ftcatalog/internal/domain/schema"
)

// Separator joins multivalued values and splits TAG fields.
const Separator = "\x1f"

// Field suffixes by attribute type.
const (
	SuffixText   = "_txt"
	SuffixTokens = "_tks"
	SuffixCase   = "_cs"
	SuffixDate   = "_tdt"
	SuffixBool   = "_bool"
	SuffixInt    = "_int"
	SuffixLong   = "_lng"
	SuffixShort  = "_shr"
	SuffixFloat  = "_flt"
	SuffixDouble = "_dbl"
	SuffixParts  = "_parts"
	SuffixPoint  = "_pt"
	suffixGeo    = "_geo_"
)

// Synthetic fields.
const (
	FieldID        = "__id"
	FieldSource    = "__source"
	FieldSchema    = "__schema"
	FieldVisible   = "__visible"
	FieldAnyText   = "__anytext"
	FieldXPath     = "__xpath"
	FieldXPathVal  = "__xpath_val"
	FieldScore     = "__score"
	FieldDistance  = "__dist"
	VisibleValue   = "1"
	InvisibleValue = "0"
)

// DefaultMaxParts is the number of GEOSHAPE slots per geometry attribute.
const DefaultMaxParts = 4

// Layout maps attributes to hash fields and index keys.
type Layout struct {
	reg      *schema.Registry
	prefix   string
	maxParts int
	bases    map[string]string
}

// NewLayout builds the layout for every attribute in reg. Distinct attributes
// whose sanitized names collide are rejected.
func NewLayout(reg *schema.Registry, prefix string, maxParts int) (*Layout, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if maxParts <= 0 {
		maxParts = DefaultMaxParts
	}
	l := &Layout{reg: reg, prefix: prefix, maxParts: maxParts, bases: make(map[string]string)}

	owner := make(map[string]string)
	claim := func(field, attr string) error {
		if prev, ok := owner[field]; ok && prev != attr {
			return fmt.Errorf("attributes %q and %q both map to field %q", prev, attr, field)
		}
		owner[field] = attr
		return nil
	}
	for _, f := range []string{FieldID, FieldSource, FieldSchema, FieldVisible, FieldAnyText, FieldXPath, FieldXPathVal} {
		owner[f] = f
	}
	for _, d := range reg.Attributes() {
		base := sanitize(d.Name)
		l.bases[d.Name] = base
		for _, f := range l.fieldsOf(d) {
			if err := claim(f, d.Name); err != nil {
				return nil, err
			}
		}
	}
	return l, nil
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Registry returns the attribute registry.
func (l *Layout) Registry() *schema.Registry { return l.reg }

// MaxParts is the number of GEOSHAPE slots per geometry attribute.
func (l *Layout) MaxParts() int { return l.maxParts }

// IndexName is the FT index over records.
func (l *Layout) IndexName() string { return l.prefix + "idx" }

// KeyPrefix is the key prefix of record hashes.
func (l *Layout) KeyPrefix() string { return l.prefix + "record:" }

// Key is the hash key of a record.
func (l *Layout) Key(id string) string { return l.KeyPrefix() + id }

// IDFromKey extracts the record id from a hash key.
func (l *Layout) IDFromKey(key string) string { return strings.TrimPrefix(key, l.KeyPrefix()) }

// PendingKey is the set of record keys awaiting commit.
func (l *Layout) PendingKey() string { return l.prefix + "pending" }

// Descriptor looks up an attribute.
func (l *Layout) Descriptor(attr string) (schema.Descriptor, bool) { return l.reg.Attribute(attr) }

// Raw is the field holding the stored value of attr.
func (l *Layout) Raw(attr string) string {
	if b, ok := l.bases[attr]; ok {
		return b
	}
	return sanitize(attr)
}

// Field is an index copy of attr.
func (l *Layout) Field(attr, suffix string) string { return l.Raw(attr) + suffix }

// GeoField is the i-th GEOSHAPE slot of attr.
func (l *Layout) GeoField(attr string, i int) string {
	return l.Raw(attr) + suffixGeo + strconv.Itoa(i)
}

// NumericSuffix returns the index suffix of a numeric type.
func NumericSuffix(t schema.Type) string {
	switch t {
	case schema.Integer:
		return SuffixInt
	case schema.Long:
		return SuffixLong
	case schema.Short:
		return SuffixShort
	case schema.Float:
		return SuffixFloat
	case schema.Double:
		return SuffixDouble
	default:
		return ""
	}
}

// SortField returns the SORTABLE field ordering attr, if any.
func (l *Layout) SortField(attr string) (string, bool) {
	if attr == schema.AttrID {
		return FieldID, true
	}
	d, ok := l.reg.Attribute(attr)
	if !ok || !d.Indexed || !d.Type.IsSortable() {
		return "", false
	}
	switch {
	case d.Type.IsText():
		return l.Field(attr, SuffixTokens), true
	case d.Type == schema.Date:
		return l.Field(attr, SuffixDate), true
	case d.Type == schema.Boolean:
		return l.Field(attr, SuffixBool), true
	default:
		return l.Field(attr, NumericSuffix(d.Type)), true
	}
}

// FacetField returns the TAG or NUMERIC field grouping attr, if any.
func (l *Layout) FacetField(attr string) (string, bool) {
	if attr == schema.AttrID {
		return FieldID, true
	}
	return l.SortField(attr)
}

// fieldsOf lists every hash field an attribute may populate.
func (l *Layout) fieldsOf(d schema.Descriptor) []string {
	out := []string{l.Raw(d.Name)}
	if !d.Indexed {
		return out
	}
	switch {
	case d.Type.IsText():
		out = append(out, l.Field(d.Name, SuffixTokens), l.Field(d.Name, SuffixCase))
		if d.Tokenized {
			out = append(out, l.Field(d.Name, SuffixText))
		}
	case d.Type == schema.Date:
		out = append(out, l.Field(d.Name, SuffixDate))
	case d.Type == schema.Boolean:
		out = append(out, l.Field(d.Name, SuffixBool))
	case d.Type.IsNumeric():
		out = append(out, l.Field(d.Name, NumericSuffix(d.Type)))
	case d.Type == schema.Geometry:
		out = append(out, l.Field(d.Name, SuffixParts), l.Field(d.Name, SuffixPoint))
		for i := range l.maxParts {
			out = append(out, l.GeoField(d.Name, i))
		}
	}
	return out
}

// IndexDefinition builds the FT index over every indexed attribute.
func (l *Layout) IndexDefinition() (*db.IndexDefinition, error) {
	b := db.NewIndex(l.IndexName()).
		Prefix(l.KeyPrefix()).
		TagWithOpts(FieldID, Separator, true).Sortable().
		TagWithOpts(FieldSource, Separator, true).
		TagWithOpts(FieldSchema, Separator, true).
		TagWithOpts(FieldVisible, Separator, false).
		Text(FieldAnyText).NoStem().
		TagWithOpts(FieldXPath, Separator, true).
		TagWithOpts(FieldXPathVal, Separator, false)

	for _, d := range l.reg.Attributes() {
		if !d.Indexed {
			continue
		}
		switch {
		case d.Type.IsText():
			if d.Tokenized {
				b.Text(l.Field(d.Name, SuffixText)).NoStem()
			}
			b.TagWithOpts(l.Field(d.Name, SuffixTokens), Separator, false).Sortable().IndexMissing()
			b.TagWithOpts(l.Field(d.Name, SuffixCase), Separator, true)
		case d.Type == schema.Date:
			b.Numeric(l.Field(d.Name, SuffixDate)).Sortable().IndexMissing()
		case d.Type == schema.Boolean:
			b.TagWithOpts(l.Field(d.Name, SuffixBool), Separator, false).Sortable().IndexMissing()
		case d.Type.IsNumeric():
			b.Numeric(l.Field(d.Name, NumericSuffix(d.Type))).Sortable().IndexMissing()
		case d.Type == schema.Geometry:
			b.Numeric(l.Field(d.Name, SuffixParts)).IndexMissing()
			b.Geo(l.Field(d.Name, SuffixPoint))
			for i := range l.maxParts {
				b.GeoShape(l.GeoField(d.Name, i))
			}
		}
	}
	return b.Build()
}

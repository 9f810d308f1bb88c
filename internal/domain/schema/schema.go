// Package schema describes record shapes: named sets of attribute descriptors.
package schema

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/kailas-cloud/ftcatalog/internal/domain/numeric"
)

// Type is the declared type of an attribute.
type Type string

// Attribute types.
const (
	String   Type = "string"
	XML      Type = "xml"
	Date     Type = "date"
	Boolean  Type = "boolean"
	Binary   Type = "binary"
	Geometry Type = "geometry"
	Object   Type = "object"
	Integer  Type = "integer"
	Long     Type = "long"
	Short    Type = "short"
	Float    Type = "float"
	Double   Type = "double"
)

var validTypes = map[Type]bool{
	String: true, XML: true, Date: true, Boolean: true, Binary: true, Geometry: true,
	Object: true, Integer: true, Long: true, Short: true, Float: true, Double: true,
}

// IsValid reports whether t is a known attribute type.
func (t Type) IsValid() bool { return validTypes[t] }

// IsText reports whether values of t are text-bearing.
func (t Type) IsText() bool { return t == String || t == XML }

// NumericKind returns the numeric precision of t.
func (t Type) NumericKind() (numeric.Kind, bool) {
	switch t {
	case Short:
		return numeric.Short, true
	case Integer:
		return numeric.Integer, true
	case Long:
		return numeric.Long, true
	case Float:
		return numeric.Float, true
	case Double:
		return numeric.Double, true
	default:
		return 0, false
	}
}

// IsNumeric reports whether t is one of the numeric types.
func (t Type) IsNumeric() bool {
	_, ok := t.NumericKind()
	return ok
}

// IsSortable reports whether values of t have a natural order in the index.
func (t Type) IsSortable() bool {
	return t.IsText() || t.IsNumeric() || t == Date || t == Boolean
}

var nameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.-]*$`)

// Descriptor declares one attribute of a schema.
type Descriptor struct {
	Name        string `yaml:"name"`
	Type        Type   `yaml:"type"`
	Indexed     bool   `yaml:"indexed"`
	Stored      bool   `yaml:"stored"`
	Tokenized   bool   `yaml:"tokenized"`
	Multivalued bool   `yaml:"multivalued"`
}

// Validate checks the descriptor is well-formed.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("attribute name is required")
	}
	if len(d.Name) > 128 {
		return fmt.Errorf("attribute name %q too long (max 128)", d.Name)
	}
	if !nameRegex.MatchString(d.Name) {
		return fmt.Errorf("attribute name %q must start with a letter and contain only letters, digits, '_', '.', '-'", d.Name)
	}
	if !d.Type.IsValid() {
		return fmt.Errorf("invalid type %q for attribute %q", d.Type, d.Name)
	}
	if d.Tokenized && !d.Type.IsText() {
		return fmt.Errorf("attribute %q: only string and xml attributes can be tokenized", d.Name)
	}
	return d.validateIndexedMultivalued()
}

// validateIndexedMultivalued rejects indexed multivalued numbers and dates:
// a NUMERIC index field holds one value per document.
func (d Descriptor) validateIndexedMultivalued() error {
	if d.Indexed && d.Multivalued && (d.Type.IsNumeric() || d.Type == Date) {
		return fmt.Errorf("attribute %q: %s attributes cannot be both indexed and multivalued", d.Name, d.Type)
	}
	return nil
}

// Schema is a named, immutable set of attribute descriptors.
type Schema struct {
	name        string
	descriptors []Descriptor
	byName      map[string]int
}

// New validates and creates a Schema.
func New(name string, descriptors []Descriptor) (Schema, error) {
	if name == "" {
		return Schema{}, fmt.Errorf("schema name is required")
	}
	byName := make(map[string]int, len(descriptors))
	for i, d := range descriptors {
		if err := d.Validate(); err != nil {
			return Schema{}, fmt.Errorf("schema %q: %w", name, err)
		}
		if _, dup := byName[d.Name]; dup {
			return Schema{}, fmt.Errorf("schema %q: duplicate attribute %q", name, d.Name)
		}
		byName[d.Name] = i
	}
	ds := make([]Descriptor, len(descriptors))
	copy(ds, descriptors)
	return Schema{name: name, descriptors: ds, byName: byName}, nil
}

// Name returns the schema name.
func (s Schema) Name() string { return s.name }

// Descriptors returns the attribute descriptors in declaration order.
func (s Schema) Descriptors() []Descriptor { return s.descriptors }

// Descriptor looks up an attribute by name.
func (s Schema) Descriptor(name string) (Descriptor, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Descriptor{}, false
	}
	return s.descriptors[i], true
}

// Registry merges schemas into a single attribute namespace.
// The same attribute name must carry the same type in every schema.
type Registry struct {
	schemas map[string]Schema
	attrs   map[string]Descriptor
	names   []string
}

// NewRegistry builds a registry from schemas; the core schema is always included.
func NewRegistry(schemas ...Schema) (*Registry, error) {
	r := &Registry{
		schemas: make(map[string]Schema, len(schemas)+1),
		attrs:   make(map[string]Descriptor),
	}
	all := append([]Schema{Core()}, schemas...)
	for _, s := range all {
		if _, dup := r.schemas[s.name]; dup && s.name != CoreName {
			return nil, fmt.Errorf("duplicate schema %q", s.name)
		}
		r.schemas[s.name] = s
		for _, d := range s.descriptors {
			if err := r.merge(s.name, d); err != nil {
				return nil, err
			}
		}
	}
	r.names = make([]string, 0, len(r.attrs))
	for name := range r.attrs {
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r, nil
}

func (r *Registry) merge(schemaName string, d Descriptor) error {
	existing, ok := r.attrs[d.Name]
	if !ok {
		r.attrs[d.Name] = d
		return nil
	}
	if existing.Type != d.Type {
		return fmt.Errorf("schema %q: attribute %q declared as %s, already registered as %s",
			schemaName, d.Name, d.Type, existing.Type)
	}
	// Widen flags so an attribute indexed in any schema is indexed in the shared index.
	existing.Indexed = existing.Indexed || d.Indexed
	existing.Stored = existing.Stored || d.Stored
	existing.Tokenized = existing.Tokenized || d.Tokenized
	existing.Multivalued = existing.Multivalued || d.Multivalued
	if err := existing.validateIndexedMultivalued(); err != nil {
		return fmt.Errorf("schema %q: %w", schemaName, err)
	}
	r.attrs[d.Name] = existing
	return nil
}

// Schema looks up a schema by name.
func (r *Registry) Schema(name string) (Schema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// Attribute looks up the merged descriptor of an attribute.
func (r *Registry) Attribute(name string) (Descriptor, bool) {
	d, ok := r.attrs[name]
	return d, ok
}

// Attributes returns all merged descriptors sorted by name.
func (r *Registry) Attributes() []Descriptor {
	out := make([]Descriptor, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.attrs[n])
	}
	return out
}

// AttributesOfType returns merged descriptors of type t sorted by name.
func (r *Registry) AttributesOfType(t Type) []Descriptor {
	var out []Descriptor
	for _, n := range r.names {
		if d := r.attrs[n]; d.Type == t {
			out = append(out, d)
		}
	}
	return out
}

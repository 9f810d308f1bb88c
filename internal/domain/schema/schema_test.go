package schema

import (
	"strings"
	"testing"
)

func TestDescriptorValidate(t *testing.T) {
	tests := []struct {
		name    string
		d       Descriptor
		wantErr string
	}{
		{"valid", Descriptor{Name: "depth", Type: Double, Indexed: true}, ""},
		{"empty name", Descriptor{Type: String}, "name is required"},
		{"bad name", Descriptor{Name: "1abc", Type: String}, "must start with a letter"},
		{"bad type", Descriptor{Name: "x", Type: "blob"}, "invalid type"},
		{"tokenized numeric", Descriptor{Name: "x", Type: Integer, Tokenized: true}, "can be tokenized"},
		{"indexed multivalued long", Descriptor{Name: "x", Type: Long, Indexed: true, Multivalued: true}, "both indexed and multivalued"},
		{"indexed multivalued date", Descriptor{Name: "x", Type: Date, Indexed: true, Multivalued: true}, "both indexed and multivalued"},
		{"stored multivalued long", Descriptor{Name: "x", Type: Long, Stored: true, Multivalued: true}, ""},
		{"indexed multivalued geometry", Descriptor{Name: "x", Type: Geometry, Indexed: true, Multivalued: true}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.d.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestNew_DuplicateAttribute(t *testing.T) {
	_, err := New("s", []Descriptor{
		{Name: "a", Type: String},
		{Name: "a", Type: String},
	})
	if err == nil {
		t.Fatal("expected duplicate attribute error")
	}
}

func TestRegistry_IncludesCore(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d, ok := r.Attribute(AttrTitle)
	if !ok {
		t.Fatal("expected core title attribute")
	}
	if d.Type != String || !d.Tokenized {
		t.Errorf("unexpected title descriptor: %+v", d)
	}
	if _, ok := r.Schema(CoreName); !ok {
		t.Error("expected core schema to be registered")
	}
}

func TestRegistry_MergesFlags(t *testing.T) {
	a, _ := New("a", []Descriptor{{Name: "depth", Type: Double}})
	b, _ := New("b", []Descriptor{{Name: "depth", Type: Double, Indexed: true}})

	r, err := NewRegistry(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d, _ := r.Attribute("depth")
	if !d.Indexed {
		t.Error("expected merged descriptor to be indexed")
	}
}

func TestRegistry_MergedIndexedMultivaluedNumber(t *testing.T) {
	a, err := New("a", []Descriptor{{Name: "levels", Type: Integer, Indexed: true}})
	if err != nil {
		t.Fatalf("schema a: %v", err)
	}
	b, err := New("b", []Descriptor{{Name: "levels", Type: Integer, Stored: true, Multivalued: true}})
	if err != nil {
		t.Fatalf("schema b: %v", err)
	}
	if _, err := NewRegistry(a, b); err == nil || !strings.Contains(err.Error(), "levels") {
		t.Fatalf("expected merge error naming levels, got %v", err)
	}
}

func TestRegistry_TypeConflict(t *testing.T) {
	a, _ := New("a", []Descriptor{{Name: "depth", Type: Double}})
	b, _ := New("b", []Descriptor{{Name: "depth", Type: Integer}})

	if _, err := NewRegistry(a, b); err == nil {
		t.Fatal("expected type conflict error")
	}
}

func TestRegistry_AttributesSorted(t *testing.T) {
	r, _ := NewRegistry()
	attrs := r.Attributes()
	for i := 1; i < len(attrs); i++ {
		if attrs[i-1].Name > attrs[i].Name {
			t.Fatalf("attributes not sorted: %q before %q", attrs[i-1].Name, attrs[i].Name)
		}
	}
	geos := r.AttributesOfType(Geometry)
	if len(geos) != 1 || geos[0].Name != AttrLocation {
		t.Errorf("expected only location geometry, got %+v", geos)
	}
}

func TestType_Classification(t *testing.T) {
	if !XML.IsText() || Integer.IsText() {
		t.Error("text classification wrong")
	}
	if k, ok := Float.NumericKind(); !ok || k.String() != "float" {
		t.Errorf("unexpected kind: %v %v", k, ok)
	}
	if Geometry.IsSortable() || !Date.IsSortable() {
		t.Error("sortable classification wrong")
	}
}

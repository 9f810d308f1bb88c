package mapper

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/ftcatalog/internal/db"
	"github.com/kailas-cloud/ftcatalog/internal/domain"
	"github.com/kailas-cloud/ftcatalog/internal/domain/record"
	"github.com/kailas-cloud/ftcatalog/internal/domain/schema"
	"github.com/kailas-cloud/ftcatalog/internal/domain/settings"
)

func testSchema(t *testing.T) *schema.Registry {
	t.Helper()
	s, err := schema.New("sensor", []schema.Descriptor{
		{Name: "reading", Type: schema.Float, Indexed: true, Stored: true},
		{Name: "count", Type: schema.Integer, Indexed: true, Stored: true},
		{Name: "active", Type: schema.Boolean, Indexed: true, Stored: true},
		{Name: "notes", Type: schema.String, Stored: true},
	})
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	reg, err := schema.NewRegistry(s)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

func newMapper(t *testing.T, st *settings.Settings) *Mapper {
	t.Helper()
	l, err := NewLayout(testSchema(t), "cat:", 0)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	m, err := New(l, st)
	if err != nil {
		t.Fatalf("mapper: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func TestLayout_Keys(t *testing.T) {
	l, err := NewLayout(testSchema(t), "cat:", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.IndexName() != "cat:idx" || l.Key("abc") != "cat:record:abc" || l.PendingKey() != "cat:pending" {
		t.Errorf("unexpected keys: %s %s %s", l.IndexName(), l.Key("abc"), l.PendingKey())
	}
	if l.IDFromKey("cat:record:abc") != "abc" {
		t.Error("IDFromKey must strip the prefix")
	}
	if l.Raw(schema.AttrContentType) != "metadata_content_type" {
		t.Errorf("raw = %q", l.Raw(schema.AttrContentType))
	}
	if l.MaxParts() != DefaultMaxParts {
		t.Errorf("max parts = %d", l.MaxParts())
	}
}

func TestLayout_Collision(t *testing.T) {
	s, err := schema.New("clash", []schema.Descriptor{
		{Name: "a.b", Type: schema.String, Stored: true},
		{Name: "a-b", Type: schema.String, Stored: true},
	})
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	reg, err := schema.NewRegistry(s)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if _, err := NewLayout(reg, "", 0); err == nil {
		t.Fatal("expected collision error")
	}
}

func TestLayout_SortField(t *testing.T) {
	l, err := NewLayout(testSchema(t), "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tests := []struct {
		attr string
		want string
		ok   bool
	}{
		{schema.AttrTitle, "title_tks", true},
		{schema.AttrCreated, "created_tdt", true},
		{"reading", "reading_flt", true},
		{"count", "count_int", true},
		{schema.AttrID, FieldID, true},
		{schema.AttrLocation, "", false},
		{"notes", "", false},
		{"missing", "", false},
	}
	for _, tt := range tests {
		got, ok := l.SortField(tt.attr)
		if got != tt.want || ok != tt.ok {
			t.Errorf("SortField(%q) = %q, %v; want %q, %v", tt.attr, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLayout_IndexDefinition(t *testing.T) {
	l, err := NewLayout(testSchema(t), "cat:", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	def, err := l.IndexDefinition()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.Name != "cat:idx" || len(def.Prefixes) != 1 || def.Prefixes[0] != "cat:record:" {
		t.Fatalf("unexpected definition header: %+v", def)
	}
	wantTypes := map[string]db.IndexFieldType{
		FieldID:            db.IndexFieldTag,
		FieldAnyText:       db.IndexFieldText,
		"title_txt":        db.IndexFieldText,
		"title_tks":        db.IndexFieldTag,
		"title_cs":         db.IndexFieldTag,
		"created_tdt":      db.IndexFieldNumeric,
		"reading_flt":      db.IndexFieldNumeric,
		"active_bool":      db.IndexFieldTag,
		"location_pt":      db.IndexFieldGeo,
		"location_geo_0":   db.IndexFieldGeoShape,
		"location_geo_1":   db.IndexFieldGeoShape,
		"location_parts":   db.IndexFieldNumeric,
		"metacard_tags_cs": db.IndexFieldTag,
	}
	for name, typ := range wantTypes {
		f, ok := def.Lookup(name)
		if !ok {
			t.Errorf("field %q missing", name)
			continue
		}
		if f.Type != typ {
			t.Errorf("field %q type = %d, want %d", name, f.Type, typ)
		}
	}
	for _, absent := range []string{"notes_tks", "thumbnail", "location_geo_2", "metadata_content_type_version_txt"} {
		if _, ok := def.Lookup(absent); ok {
			t.Errorf("field %q must not be indexed", absent)
		}
	}
}

func TestToDocument_Text(t *testing.T) {
	m := newMapper(t, nil)
	r := record.New("")
	r.ID = "r1"
	r.Set(schema.AttrTitle, "Flagstaff Arizona")
	r.Set(schema.AttrTags, "resource", "Archive")

	doc, err := m.ToDocument(r, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]string{
		FieldID:             "r1",
		FieldVisible:        VisibleValue,
		"title":             "Flagstaff Arizona",
		"title_txt":         "Flagstaff Arizona",
		"title_tks":         "flagstaff arizona",
		"title_cs":          "Flagstaff" + Separator + "Arizona",
		"metacard_tags":     "resource" + Separator + "Archive",
		"metacard_tags_tks": "resource" + Separator + "archive",
	}
	for k, v := range want {
		if doc[k] != v {
			t.Errorf("doc[%q] = %q, want %q", k, doc[k], v)
		}
	}
	if _, ok := doc["metacard_tags_txt"]; ok {
		t.Error("untokenized attribute must not get a text copy")
	}
	if !strings.Contains(doc[FieldAnyText], "Flagstaff") || !strings.Contains(doc[FieldAnyText], "Archive") {
		t.Errorf("anytext = %q", doc[FieldAnyText])
	}
}

func TestToDocument_Invisible(t *testing.T) {
	m := newMapper(t, nil)
	r := record.New("")
	r.ID = "r1"
	doc, err := m.ToDocument(r, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc[FieldVisible] != InvisibleValue {
		t.Errorf("visible = %q", doc[FieldVisible])
	}
}

func TestToDocument_Markup(t *testing.T) {
	m := newMapper(t, nil)
	r := record.New("")
	r.ID = "r1"
	r.Set(schema.AttrMetadata, `<metacard><title>Flagstaff</title></metacard>`)

	doc, err := m.ToDocument(r, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(doc[FieldAnyText], "metacard") {
		t.Errorf("anytext includes tag names: %q", doc[FieldAnyText])
	}
	paths := strings.Split(doc[FieldXPath], Separator)
	for _, want := range []string{"/metacard/title", "//title", "//metacard/title"} {
		if !contains(paths, want) {
			t.Errorf("paths %v missing %q", paths, want)
		}
	}
	vals := strings.Split(doc[FieldXPathVal], Separator)
	if !contains(vals, "//title=flagstaff") {
		t.Errorf("values %v missing //title=flagstaff", vals)
	}
}

func TestToDocument_StructuralDisabled(t *testing.T) {
	st := settings.New()
	st.SetStructuralIndex(false)
	m := newMapper(t, st)
	r := record.New("")
	r.ID = "r1"
	r.Set(schema.AttrMetadata, `<metacard><title>Flagstaff</title></metacard>`)

	doc, err := m.ToDocument(r, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := doc[FieldXPath]; ok {
		t.Error("structural paths written while disabled")
	}
	if !strings.Contains(doc[FieldAnyText], "Flagstaff") {
		t.Error("text must still be extracted")
	}
}

func TestToDocument_NumericPrecision(t *testing.T) {
	m := newMapper(t, nil)
	r := record.New("sensor")
	r.ID = "r1"
	r.Set("reading", 0.1)
	r.Set("count", int64(7))

	doc, err := m.ToDocument(r, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc["reading_flt"] != "0.1" {
		t.Errorf("reading = %q, want float32 rendering", doc["reading_flt"])
	}
	if doc["count_int"] != "7" {
		t.Errorf("count = %q", doc["count_int"])
	}
}

func TestToDocument_Errors(t *testing.T) {
	m := newMapper(t, nil)
	tests := []struct {
		name string
		set  func(r *record.Record)
		want error
	}{
		{"unknown attribute", func(r *record.Record) { r.Set("nope", "x") }, domain.ErrUnknownAttribute},
		{"wrong type", func(r *record.Record) { r.Set(schema.AttrTitle, 5) }, domain.ErrInvalidRequest},
		{"overflow", func(r *record.Record) { r.Set("count", int64(1)<<40) }, domain.ErrInvalidRequest},
		{"bad geometry", func(r *record.Record) { r.Set(schema.AttrLocation, record.Geometry("POINT(")) }, domain.ErrInvalidRequest},
		{"many values", func(r *record.Record) { r.Set(schema.AttrTitle, "a", "b") }, domain.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := record.New("sensor")
			r.ID = "r1"
			tt.set(r)
			_, err := m.ToDocument(r, true)
			var ie *domain.IngestError
			if !errors.As(err, &ie) || !errors.Is(err, tt.want) {
				t.Fatalf("expected IngestError wrapping %v, got %v", tt.want, err)
			}
		})
	}
	if _, err := m.ToDocument(record.New(""), true); err == nil {
		t.Error("expected error for missing id")
	}
}

func TestToDocument_Geometry(t *testing.T) {
	m := newMapper(t, nil)
	r := record.New("")
	r.ID = "r1"
	r.Set(schema.AttrLocation, record.Geometry("POLYGON((170 10, 170 -10, -170 -10, -170 10, 170 10))"))

	doc, err := m.ToDocument(r, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc["location_parts"] != "2" {
		t.Errorf("parts = %q, want 2", doc["location_parts"])
	}
	if doc["location_geo_0"] == "" || doc["location_geo_1"] == "" {
		t.Error("expected two shape slots")
	}
	if _, ok := doc["location_geo_2"]; ok {
		t.Error("unused slot must stay empty")
	}
	if !strings.HasSuffix(doc["location_pt"], ",0") {
		t.Errorf("point = %q", doc["location_pt"])
	}
}

func TestRoundTrip(t *testing.T) {
	m := newMapper(t, nil)
	created := time.UnixMilli(1_700_000_000_123).UTC()
	r := record.New("sensor")
	r.ID = "r1"
	r.SourceID = "local"
	r.Set(schema.AttrTitle, "Flagstaff")
	r.Set(schema.AttrCreated, created)
	r.Set(schema.AttrTags, "a", "b")
	r.Set(schema.AttrLocation, record.Geometry("POINT(10 20)"))
	r.Set(schema.AttrThumbnail, []byte{0x1f, 0x00, 0xff})
	r.Set(schema.AttrSecurity, map[string]any{"level": "low"})
	r.Set("reading", float32(1.5))
	r.Set("count", int32(3))
	r.Set("active", true)

	doc, err := m.ToDocument(r, true)
	if err != nil {
		t.Fatalf("to document: %v", err)
	}
	got, err := m.FromDocument(doc)
	if err != nil {
		t.Fatalf("from document: %v", err)
	}
	if got.ID != "r1" || got.SourceID != "local" || got.Schema != "sensor" {
		t.Errorf("identity = %s/%s/%s", got.ID, got.SourceID, got.Schema)
	}
	if got.Title() != "Flagstaff" {
		t.Errorf("title = %q", got.Title())
	}
	if ts, _ := got.Time(schema.AttrCreated); !ts.Equal(created) {
		t.Errorf("created = %v, want %v", ts, created)
	}
	if vs := got.Values(schema.AttrTags); len(vs) != 2 || vs[0] != "a" || vs[1] != "b" {
		t.Errorf("tags = %v", vs)
	}
	if g, _ := got.Location(); g != "POINT(10 20)" {
		t.Errorf("location = %q", g)
	}
	if b, _ := got.Get(schema.AttrThumbnail); !bytes.Equal(b.([]byte), []byte{0x1f, 0x00, 0xff}) {
		t.Errorf("thumbnail = %v", b)
	}
	if sec, _ := got.Get(schema.AttrSecurity); sec.(map[string]any)["level"] != "low" {
		t.Errorf("security = %v", sec)
	}
	if v, _ := got.Get("reading"); v != float32(1.5) {
		t.Errorf("reading = %v (%T)", v, v)
	}
	if v, _ := got.Get("count"); v != int32(3) {
		t.Errorf("count = %v (%T)", v, v)
	}
	if v, _ := got.Get("active"); v != true {
		t.Errorf("active = %v", v)
	}
}

func TestFromDocument_MissingID(t *testing.T) {
	m := newMapper(t, nil)
	if _, err := m.FromDocument(map[string]string{"title": "x"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("Hello, World-42!")
	if len(got) != 3 || got[0] != "Hello" || got[1] != "World" || got[2] != "42" {
		t.Errorf("Tokenize = %v", got)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func newMultivaluedMapper(t *testing.T) *Mapper {
	t.Helper()
	s, err := schema.New("survey", []schema.Descriptor{
		{Name: "areas", Type: schema.Geometry, Indexed: true, Stored: true, Multivalued: true},
		{Name: "blobs", Type: schema.Binary, Stored: true, Multivalued: true},
	})
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	reg, err := schema.NewRegistry(s)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	l, err := NewLayout(reg, "", 4)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	m, err := New(l, nil)
	if err != nil {
		t.Fatalf("mapper: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func TestToDocument_MultivaluedGeometry(t *testing.T) {
	m := newMultivaluedMapper(t)
	r := record.New("survey")
	r.ID = "r1"
	r.Set("areas", record.Geometry("POINT(0 0)"), record.Geometry("POINT(50 50)"))

	doc, err := m.ToDocument(r, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc["areas_parts"] != "2" {
		t.Errorf("parts = %q, want every value indexed", doc["areas_parts"])
	}
	if doc["areas_geo_0"] != "POINT (0 0)" || doc["areas_geo_1"] != "POINT (50 50)" {
		t.Errorf("slots = %q, %q", doc["areas_geo_0"], doc["areas_geo_1"])
	}
	if doc["areas_pt"] != "25,25" {
		t.Errorf("point = %q, want the centre of both values", doc["areas_pt"])
	}

	got, err := m.FromDocument(doc)
	if err != nil {
		t.Fatalf("from document: %v", err)
	}
	if vs := got.Values("areas"); len(vs) != 2 || vs[1] != record.Geometry("POINT(50 50)") {
		t.Errorf("areas = %v", vs)
	}
}

func TestRoundTrip_MultivaluedBinary(t *testing.T) {
	m := newMultivaluedMapper(t)
	one := []byte("one")
	two := []byte{0x1f, 0x1f, 0x00}
	r := record.New("survey")
	r.ID = "r1"
	r.Set("blobs", one, two)

	doc, err := m.ToDocument(r, true)
	if err != nil {
		t.Fatalf("to document: %v", err)
	}
	got, err := m.FromDocument(doc)
	if err != nil {
		t.Fatalf("from document: %v", err)
	}
	vs := got.Values("blobs")
	if len(vs) != 2 {
		t.Fatalf("blobs = %d values, want 2", len(vs))
	}
	if !bytes.Equal(vs[0].([]byte), one) || !bytes.Equal(vs[1].([]byte), two) {
		t.Errorf("blobs = %v", vs)
	}
}

package mapper

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/klauspost/compress/zstd"

	"github.com/kailas-cloud/ftcatalog/internal/domain"
	"github.com/kailas-cloud/ftcatalog/internal/domain/geo"
	"github.com/kailas-cloud/ftcatalog/internal/domain/numeric"
	"github.com/kailas-cloud/ftcatalog/internal/domain/record"
	"github.com/kailas-cloud/ftcatalog/internal/domain/schema"
	"github.com/kailas-cloud/ftcatalog/internal/domain/settings"
	"github.com/kailas-cloud/ftcatalog/internal/markup"
)

const opMap = "map"

// Mapper converts records to hash documents and back.
// It is safe for concurrent use.
type Mapper struct {
	layout   *Layout
	settings *settings.Settings
	enc      *zstd.Encoder
	dec      *zstd.Decoder
}

// New creates a mapper over layout. Settings decide whether the structural
// side index is written.
func New(layout *Layout, st *settings.Settings) (*Mapper, error) {
	if layout == nil {
		return nil, fmt.Errorf("layout is required")
	}
	if st == nil {
		st = settings.New()
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Mapper{layout: layout, settings: st, enc: enc, dec: dec}, nil
}

// Layout returns the field layout.
func (m *Mapper) Layout() *Layout { return m.layout }

// Close releases compression resources.
func (m *Mapper) Close() {
	_ = m.enc.Close()
	m.dec.Close()
}

// ToDocument renders a record as hash fields. Invisible documents are
// excluded from general search until committed.
func (m *Mapper) ToDocument(r *record.Record, visible bool) (map[string]string, error) {
	if r == nil || r.ID == "" {
		return nil, domain.NewIngestError(opMap, schema.AttrID, domain.ErrInvalidRequest, "record id is required")
	}
	doc := map[string]string{
		FieldID:      r.ID,
		FieldSource:  r.SourceID,
		FieldSchema:  r.Schema,
		FieldVisible: InvisibleValue,
	}
	if visible {
		doc[FieldVisible] = VisibleValue
	}

	var anyText, paths, pathValues []string
	for _, name := range r.Names() {
		d, ok := m.layout.Descriptor(name)
		if !ok {
			return nil, domain.NewIngestError(opMap, name, domain.ErrUnknownAttribute, "")
		}
		values := r.Values(name)
		if len(values) > 1 && !d.Multivalued {
			return nil, domain.NewIngestError(opMap, name, domain.ErrInvalidRequest,
				"%d values for single-valued attribute", len(values))
		}

		var err error
		switch {
		case d.Type.IsText():
			var text []string
			text, err = m.putText(doc, d, values, &paths, &pathValues)
			anyText = append(anyText, text...)
		case d.Type == schema.Date:
			err = m.putDate(doc, d, values)
		case d.Type == schema.Boolean:
			err = m.putBool(doc, d, values)
		case d.Type.IsNumeric():
			err = m.putNumber(doc, d, values)
		case d.Type == schema.Geometry:
			err = m.putGeometry(doc, d, values)
		case d.Type == schema.Binary:
			err = m.putBinary(doc, d, values)
		case d.Type == schema.Object:
			err = m.putObject(doc, d, values)
		}
		if err != nil {
			return nil, domain.NewIngestError(opMap, name, domain.ErrInvalidRequest, "%v", err)
		}
	}

	if len(anyText) > 0 {
		doc[FieldAnyText] = strings.Join(anyText, ". ")
	}
	if len(paths) > 0 {
		doc[FieldXPath] = strings.Join(paths, Separator)
	}
	if len(pathValues) > 0 {
		doc[FieldXPathVal] = strings.Join(pathValues, Separator)
	}
	return doc, nil
}

func (m *Mapper) putText(doc map[string]string, d schema.Descriptor, values []any, paths, pathValues *[]string) ([]string, error) {
	strs := make([]string, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		strs = append(strs, s)
	}
	if d.Stored {
		doc[m.layout.Raw(d.Name)] = strings.Join(strs, Separator)
	}

	text := strs
	if d.Type == schema.XML {
		text = make([]string, 0, len(strs))
		for _, s := range strs {
			if !markup.LooksLikeMarkup(s) {
				text = append(text, s)
				continue
			}
			parsed, err := markup.Parse(s)
			if err != nil {
				text = append(text, s)
				continue
			}
			text = append(text, strings.Join(parsed.Text, " "))
			if m.settings.StructuralIndex() {
				*paths = append(*paths, structuralPaths(parsed)...)
				*pathValues = append(*pathValues, structuralValues(parsed)...)
			}
		}
	}
	if !d.Indexed {
		return text, nil
	}

	lowered := make([]string, 0, len(strs))
	for _, s := range strs {
		if s = strings.TrimSpace(s); s != "" {
			lowered = append(lowered, strings.ToLower(s))
		}
	}
	if len(lowered) > 0 {
		doc[m.layout.Field(d.Name, SuffixTokens)] = strings.Join(lowered, Separator)
	}
	var tokens []string
	for _, s := range text {
		tokens = append(tokens, Tokenize(s)...)
	}
	if len(tokens) > 0 {
		doc[m.layout.Field(d.Name, SuffixCase)] = strings.Join(tokens, Separator)
	}
	if d.Tokenized && len(text) > 0 {
		doc[m.layout.Field(d.Name, SuffixText)] = strings.Join(text, ". ")
	}
	return text, nil
}

// Tokenize splits s into case-preserving word tokens.
func Tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// structuralPaths lists every path plus its "//suffix" any-depth forms.
func structuralPaths(doc *markup.Document) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, p := range doc.Paths {
		add(p)
		for _, s := range pathSuffixes(p) {
			add(s)
		}
	}
	return out
}

func structuralValues(doc *markup.Document) []string {
	seen := make(map[string]bool)
	var out []string
	for _, pv := range doc.Values {
		v := strings.ToLower(pv.Value)
		for _, p := range append([]string{pv.Path}, pathSuffixes(pv.Path)...) {
			entry := p + "=" + v
			if !seen[entry] {
				seen[entry] = true
				out = append(out, entry)
			}
		}
	}
	return out
}

func pathSuffixes(p string) []string {
	segs := strings.Split(strings.TrimPrefix(p, "/"), "/")
	out := make([]string, 0, len(segs))
	for i := range segs {
		out = append(out, "//"+strings.Join(segs[i:], "/"))
	}
	return out
}

func (m *Mapper) putDate(doc map[string]string, d schema.Descriptor, values []any) error {
	strs := make([]string, 0, len(values))
	for _, v := range values {
		t, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("expected time.Time, got %T", v)
		}
		strs = append(strs, strconv.FormatInt(t.UnixMilli(), 10))
	}
	if d.Stored {
		doc[m.layout.Raw(d.Name)] = strings.Join(strs, Separator)
	}
	if d.Indexed {
		doc[m.layout.Field(d.Name, SuffixDate)] = strs[0]
	}
	return nil
}

func (m *Mapper) putBool(doc map[string]string, d schema.Descriptor, values []any) error {
	strs := make([]string, 0, len(values))
	for _, v := range values {
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", v)
		}
		strs = append(strs, strconv.FormatBool(b))
	}
	joined := strings.Join(strs, Separator)
	if d.Stored {
		doc[m.layout.Raw(d.Name)] = joined
	}
	if d.Indexed {
		doc[m.layout.Field(d.Name, SuffixBool)] = joined
	}
	return nil
}

func (m *Mapper) putNumber(doc map[string]string, d schema.Descriptor, values []any) error {
	kind, _ := d.Type.NumericKind()
	strs := make([]string, 0, len(values))
	for _, v := range values {
		s, err := numeric.Format(v, kind)
		if err != nil {
			return err
		}
		strs = append(strs, s)
	}
	if d.Stored {
		doc[m.layout.Raw(d.Name)] = strings.Join(strs, Separator)
	}
	if d.Indexed {
		doc[m.layout.Field(d.Name, NumericSuffix(d.Type))] = strs[0]
	}
	return nil
}

func (m *Mapper) putGeometry(doc map[string]string, d schema.Descriptor, values []any) error {
	strs := make([]string, 0, len(values))
	for _, v := range values {
		switch g := v.(type) {
		case record.Geometry:
			strs = append(strs, string(g))
		case string:
			strs = append(strs, g)
		default:
			return fmt.Errorf("expected geometry, got %T", v)
		}
	}
	if d.Stored {
		doc[m.layout.Raw(d.Name)] = strings.Join(strs, Separator)
	}
	if !d.Indexed {
		return nil
	}
	shape, err := geo.ParseAll(strs)
	if err != nil {
		return err
	}
	shape = shape.Limit(m.layout.MaxParts())
	parts, err := shape.PartsWKT()
	if err != nil {
		return err
	}
	for i, p := range parts {
		doc[m.layout.GeoField(d.Name, i)] = p
	}
	doc[m.layout.Field(d.Name, SuffixParts)] = strconv.Itoa(len(parts))
	c := shape.Center()
	doc[m.layout.Field(d.Name, SuffixPoint)] = formatPoint(c)
	return nil
}

func formatPoint(p geo.Point) string {
	return strconv.FormatFloat(p.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lat, 'f', -1, 64)
}

func (m *Mapper) putBinary(doc map[string]string, d schema.Descriptor, values []any) error {
	if !d.Stored {
		return nil
	}
	frames := make([][]byte, 0, len(values))
	for _, v := range values {
		b, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("expected []byte, got %T", v)
		}
		frames = append(frames, m.enc.EncodeAll(b, nil))
	}
	if !d.Multivalued {
		doc[m.layout.Raw(d.Name)] = string(frames[0])
		return nil
	}
	// Frames may contain the separator byte.
	data, err := json.Marshal(frames)
	if err != nil {
		return fmt.Errorf("encode binary: %w", err)
	}
	doc[m.layout.Raw(d.Name)] = string(data)
	return nil
}

func (m *Mapper) putObject(doc map[string]string, d schema.Descriptor, values []any) error {
	if !d.Stored {
		return nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode object: %w", err)
	}
	doc[m.layout.Raw(d.Name)] = string(data)
	return nil
}

// Validate reports whether r can be encoded, without keeping the result.
func (m *Mapper) Validate(r *record.Record) error {
	_, err := m.ToDocument(r, false)
	return err
}

// FromDocument rebuilds a record from hash fields. Attributes that are not
// stored cannot be recovered and are left unset.
func (m *Mapper) FromDocument(fields map[string]string) (*record.Record, error) {
	id := fields[FieldID]
	if id == "" {
		return nil, fmt.Errorf("document has no %s field", FieldID)
	}
	r := record.New(fields[FieldSchema])
	r.ID = id
	r.SourceID = fields[FieldSource]

	for _, d := range m.layout.Registry().Attributes() {
		if !d.Stored {
			continue
		}
		raw, ok := fields[m.layout.Raw(d.Name)]
		if !ok {
			continue
		}
		values, err := m.decode(d, raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s of %s: %w", d.Name, id, err)
		}
		r.Set(d.Name, values...)
	}
	return r, nil
}

func (m *Mapper) decode(d schema.Descriptor, raw string) ([]any, error) {
	switch d.Type {
	case schema.Binary:
		frames := [][]byte{[]byte(raw)}
		if d.Multivalued {
			if err := json.Unmarshal([]byte(raw), &frames); err != nil {
				return nil, err
			}
		}
		out := make([]any, 0, len(frames))
		for _, f := range frames {
			b, err := m.dec.DecodeAll(f, nil)
			if err != nil {
				return nil, err
			}
			out = append(out, b)
		}
		return out, nil
	case schema.Object:
		var values []any
		if err := json.Unmarshal([]byte(raw), &values); err != nil {
			return nil, err
		}
		return values, nil
	}

	parts := []string{raw}
	if d.Multivalued {
		parts = strings.Split(raw, Separator)
	}
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		v, err := decodeScalar(d.Type, p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeScalar(t schema.Type, s string) (any, error) {
	switch {
	case t.IsText():
		return s, nil
	case t == schema.Date:
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, err
		}
		return time.UnixMilli(ms).UTC(), nil
	case t == schema.Boolean:
		return strconv.ParseBool(s)
	case t == schema.Geometry:
		return record.Geometry(s), nil
	default:
		kind, ok := t.NumericKind()
		if !ok {
			return nil, fmt.Errorf("unsupported type %s", t)
		}
		return numeric.Parse(s, kind)
	}
}

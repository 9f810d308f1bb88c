// Package markup extracts searchable text and structural paths from xml values.
package markup

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxValueLen caps the value part of an indexed path=value pair.
const MaxValueLen = 256

// PathValue is a value found at a structural path.
type PathValue struct {
	Path  string
	Value string
}

// Document is the extracted view of one xml value.
type Document struct {
	// Text holds element text and attribute values; tag names are excluded.
	Text []string
	// Paths lists every element and attribute path, deduplicated, in document order.
	Paths []string
	// Values pairs paths with their trimmed text or attribute values.
	Values []PathValue
}

// LooksLikeMarkup reports whether s plausibly holds xml.
func LooksLikeMarkup(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "<")
}

// Parse walks an xml document. Namespace prefixes are dropped from paths.
func Parse(s string) (*Document, error) {
	dec := xml.NewDecoder(strings.NewReader(s))
	dec.Strict = false

	doc := &Document{}
	seen := make(map[string]bool)
	addPath := func(p string) {
		if !seen[p] {
			seen[p] = true
			doc.Paths = append(doc.Paths, p)
		}
	}

	var stack []string
	var text []*bytes.Buffer
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse markup: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			text = append(text, &bytes.Buffer{})
			path := "/" + strings.Join(stack, "/")
			addPath(path)
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
					continue
				}
				ap := path + "/@" + a.Name.Local
				addPath(ap)
				if v := strings.TrimSpace(a.Value); v != "" {
					doc.Text = append(doc.Text, v)
					doc.Values = append(doc.Values, PathValue{Path: ap, Value: truncate(v)})
				}
			}
		case xml.CharData:
			if len(text) > 0 {
				text[len(text)-1].Write(t)
			}
		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			path := "/" + strings.Join(stack, "/")
			if v := strings.TrimSpace(text[len(text)-1].String()); v != "" {
				doc.Text = append(doc.Text, v)
				doc.Values = append(doc.Values, PathValue{Path: path, Value: truncate(v)})
			}
			stack = stack[:len(stack)-1]
			text = text[:len(text)-1]
		}
	}
	if len(doc.Paths) == 0 {
		return nil, errors.New("parse markup: no elements")
	}
	return doc, nil
}

// NormalizePath canonicalises a query path: leading slash, no trailing
// slash, namespace prefixes dropped. A leading "//" is kept to mean
// "at any depth".
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	anyDepth := strings.HasPrefix(p, "//")
	segs := strings.Split(strings.Trim(p, "/"), "/")
	out := segs[:0]
	for _, s := range segs {
		if s == "" {
			continue
		}
		attr := strings.HasPrefix(s, "@")
		s = strings.TrimPrefix(s, "@")
		if i := strings.LastIndexByte(s, ':'); i >= 0 {
			s = s[i+1:]
		}
		if attr {
			s = "@" + s
		}
		out = append(out, s)
	}
	if anyDepth {
		return "//" + strings.Join(out, "/")
	}
	return "/" + strings.Join(out, "/")
}

func truncate(v string) string {
	if len(v) <= MaxValueLen {
		return v
	}
	// Cut on a rune boundary.
	cut := MaxValueLen
	for cut > 0 && !isRuneStart(v[cut]) {
		cut--
	}
	return v[:cut]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

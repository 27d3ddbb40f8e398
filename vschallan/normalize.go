package vschallan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/clbanning/mxj/v2"
)

type Format string

const (
	FormatUnknown Format = "unknown"
	FormatJSON    Format = "json"
	FormatXML     Format = "xml"
)

// objectNodeKey is the container some endpoints wrap their XML answer in.
const objectNodeKey = "ObjectNode"

// Document is a normalized response. Scalars are strings, nested elements are
// map[string]any and repeated elements are []any, whatever the wire format.
type Document map[string]any

// Normalized is a parsed body tagged with the format it arrived in.
type Normalized struct {
	Format   Format
	Document Document
}

func DetectFormat(body []byte) Format {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return FormatUnknown
	}
	if json.Valid(trimmed) {
		return FormatJSON
	}
	if trimmed[0] == '<' {
		if _, err := mxj.NewMapXml(trimmed); err == nil {
			return FormatXML
		}
	}
	return FormatUnknown
}

func Normalize(body []byte, format Format) (Document, error) {
	trimmed := bytes.TrimSpace(body)
	switch format {
	case FormatJSON:
		return normalizeJSON(trimmed)
	case FormatXML:
		return normalizeXML(trimmed)
	default:
		return nil, ErrUnknownFormat
	}
}

func Parse(body []byte) (Normalized, error) {
	format := DetectFormat(body)
	doc, err := Normalize(body, format)
	if err != nil {
		return Normalized{Format: format}, err
	}
	return Normalized{Format: format, Document: doc}, nil
}

func normalizeJSON(body []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, err)
	}
	switch v := stringifyScalars(raw).(type) {
	case map[string]any:
		return Document(v), nil
	case nil:
		return Document{}, nil
	default:
		// Bare arrays and scalars are kept under "data" so callers still get a mapping.
		return Document{"data": v}, nil
	}
}

func stringifyScalars(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, inner := range t {
			t[k] = stringifyScalars(inner)
		}
		return t
	case []any:
		for i, inner := range t {
			t[i] = stringifyScalars(inner)
		}
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return t
	}
}

func normalizeXML(body []byte) (Document, error) {
	m, err := mxj.NewMapXml(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, err)
	}
	doc := Document(m)

	// Unwrap the single root element.
	if len(doc) == 1 {
		for _, v := range doc {
			if inner, ok := v.(map[string]any); ok {
				doc = Document(inner)
			}
		}
	}

	if node, ok := doc[objectNodeKey].(map[string]any); ok {
		delete(doc, objectNodeKey)
		for k, v := range node {
			doc[k] = v
		}
	}
	return doc, nil
}

// String returns the scalar at key, or "" when absent or not a scalar.
func (d Document) String(key string) string {
	return asString(d[key])
}

// Map returns the mapping at key. A one-element sequence yields its element.
func (d Document) Map(key string) Document {
	return asDocument(d[key])
}

// List returns the value at key as a sequence. A single mapping becomes a
// one-element sequence.
func (d Document) List(key string) []any {
	return asList(d[key])
}

// Documents is List restricted to mapping elements.
func (d Document) Documents(key string) []Document {
	return documents(d.List(key))
}

// Find looks key up depth-first through nested mappings and sequences.
func (d Document) Find(key string) (any, bool) {
	return find(map[string]any(d), key)
}

// FindString is Find for scalar values. The first non-empty scalar wins.
func (d Document) FindString(key string) string {
	return findString(map[string]any(d), key)
}

func find(v any, key string) (any, bool) {
	switch t := v.(type) {
	case Document:
		return find(map[string]any(t), key)
	case map[string]any:
		if found, ok := t[key]; ok {
			return found, true
		}
		for _, inner := range t {
			if found, ok := find(inner, key); ok {
				return found, true
			}
		}
	case []any:
		for _, inner := range t {
			if found, ok := find(inner, key); ok {
				return found, true
			}
		}
	}
	return nil, false
}

func findString(v any, key string) string {
	switch t := v.(type) {
	case Document:
		return findString(map[string]any(t), key)
	case map[string]any:
		if s := asString(t[key]); s != "" {
			return s
		}
		for _, inner := range t {
			if s := findString(inner, key); s != "" {
				return s
			}
		}
	case []any:
		for _, inner := range t {
			if s := findString(inner, key); s != "" {
				return s
			}
		}
	}
	return ""
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case map[string]any:
		// XML element with attributes keeps its text under #text.
		if text, ok := t["#text"].(string); ok {
			return text
		}
	}
	return ""
}

func asDocument(v any) Document {
	switch t := v.(type) {
	case Document:
		return t
	case map[string]any:
		return Document(t)
	case []any:
		if len(t) > 0 {
			return asDocument(t[0])
		}
	}
	return nil
}

func asList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case string:
		if t == "" {
			return nil
		}
		return []any{t}
	default:
		return []any{t}
	}
}

func documents(items []any) []Document {
	out := make([]Document, 0, len(items))
	for _, item := range items {
		if d := asDocument(item); d != nil {
			out = append(out, d)
		}
	}
	return out
}

// firstString returns the first non-empty scalar among keys.
func (d Document) firstString(keys ...string) string {
	for _, key := range keys {
		if s := d.String(key); s != "" {
			return s
		}
	}
	return ""
}

package flow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ToObject snapshots nodes, edges and viewport into a Document
func ToObject(nodes []Node, edges []Edge, viewport Viewport) Document {
	return Document{
		Nodes:    append([]Node(nil), nodes...),
		Edges:    append([]Edge(nil), edges...),
		Viewport: viewport,
	}
}

// MarshalDocument converts a document to indented JSON bytes
func MarshalDocument(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteDocument(doc, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteDocument writes a document as indented JSON to w
func WriteDocument(doc Document, w io.Writer) error {
	doc = normalize(doc)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// WriteDocumentFile writes a document to path. YAML is used for .yaml and
// .yml paths, JSON otherwise.
func WriteDocumentFile(doc Document, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		enc.SetIndent(2)
		if err := enc.Encode(normalize(doc)); err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		return enc.Close()
	}
	return WriteDocument(doc, f)
}

// ReadDocument decodes a JSON document from r
func ReadDocument(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode: %w", err)
	}
	return normalize(doc), nil
}

// ReadDocumentFile reads a JSON or YAML document from path
func ReadDocumentFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("open %s: %w", path, err)
	}
	if isYAML(path) {
		var doc Document
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return Document{}, fmt.Errorf("decode %s: %w", path, err)
		}
		return normalize(doc), nil
	}
	doc, err := ReadDocument(bytes.NewReader(data))
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// normalize fills the zero viewport and replaces nil collections so the
// JSON form always carries arrays
func normalize(doc Document) Document {
	if doc.Viewport == (Viewport{}) {
		doc.Viewport = DefaultViewport
	}
	if doc.Nodes == nil {
		doc.Nodes = []Node{}
	}
	if doc.Edges == nil {
		doc.Edges = []Edge{}
	}
	return doc
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// =============================================================================
// Graph Serialization API
// =============================================================================

// ReadGraphFile reads a JSON graph file.
func ReadGraphFile(path string) (Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return Graph{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadGraph(f)
}

// ReadGraph decodes a JSON graph from r. Structural validation happens in
// [Graph.ToDRL].
func ReadGraph(r io.Reader) (Graph, error) {
	var g Graph
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		return Graph{}, fmt.Errorf("decode: %w", err)
	}
	return g, nil
}

// WriteGraph writes g as indented JSON to w.
func WriteGraph(g Graph, w io.Writer) error {
	return encode(g, w)
}

// =============================================================================
// Layout Serialization API
// =============================================================================

// MarshalLayout converts a layout to JSON bytes.
func MarshalLayout(l Layout) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(l, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalLayout decodes a layout from JSON bytes.
func UnmarshalLayout(data []byte) (Layout, error) {
	var l Layout
	if err := json.Unmarshal(data, &l); err != nil {
		return Layout{}, fmt.Errorf("decode layout: %w", err)
	}
	return l, nil
}

// WriteLayout writes l as indented JSON to w.
func WriteLayout(l Layout, w io.Writer) error {
	return encode(l, w)
}

// WriteLayoutFile writes l to a JSON file.
func WriteLayoutFile(l Layout, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return encode(l, f)
}

// =============================================================================
// Internal Implementation
// =============================================================================

func encode(v any, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

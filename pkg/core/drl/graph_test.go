package drl

import (
	"testing"

	"github.com/matzehuels/drl3d/pkg/errors"
)

func TestGraphBuild(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"a", "b", "c"} {
		if _, err := g.AddNode(id, 0); err != nil {
			t.Fatalf("AddNode(%q) error: %v", id, err)
		}
	}
	if err := g.AddEdge("a", "b", 0); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge("b", "c", 2.5); err != nil {
		t.Fatal(err)
	}

	if g.NodeCount() != 3 || g.EdgeCount() != 2 {
		t.Fatalf("counts = %d nodes, %d edges, want 3, 2", g.NodeCount(), g.EdgeCount())
	}
	if g.Nodes[0].Mass != 1 {
		t.Errorf("default mass = %v, want 1", g.Nodes[0].Mass)
	}
	if g.Edges[0].Weight != 1 {
		t.Errorf("default weight = %v, want 1", g.Edges[0].Weight)
	}
	if got := g.Degree(1); got != 2 {
		t.Errorf("Degree(b) = %d, want 2", got)
	}
	if i, ok := g.Index("c"); !ok || i != 2 {
		t.Errorf("Index(c) = %d, %v", i, ok)
	}
	if got := g.Edges[1].Other(2); got != 1 {
		t.Errorf("Other(c) = %d, want 1", got)
	}
}

func TestGraphRejects(t *testing.T) {
	tests := []struct {
		name  string
		build func(g *Graph) error
	}{
		{"empty id", func(g *Graph) error { _, err := g.AddNode("", 1); return err }},
		{"duplicate id", func(g *Graph) error { _, err := g.AddNode("a", 1); return err }},
		{"negative mass", func(g *Graph) error { _, err := g.AddNode("x", -1); return err }},
		{"unknown from", func(g *Graph) error { return g.AddEdge("zz", "a", 1) }},
		{"unknown to", func(g *Graph) error { return g.AddEdge("a", "zz", 1) }},
		{"self-loop", func(g *Graph) error { return g.AddEdge("a", "a", 1) }},
		{"negative weight", func(g *Graph) error { return g.AddEdge("a", "b", -2) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGraph()
			_, _ = g.AddNode("a", 1)
			_, _ = g.AddNode("b", 1)
			err := tt.build(g)
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.GetCode(err) == "" {
				t.Errorf("error %v carries no code", err)
			}
			if g.EdgeCount() != 0 {
				t.Errorf("rejected edge was recorded")
			}
		})
	}
}

package drl

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/drl3d/pkg/errors"
)

// Node is a vertex of the layout graph. Edges holds indices into Graph.Edges.
type Node struct {
	ID     string
	Mass   float64
	Pos    r3.Vec
	HasPos bool // Pos was supplied by the caller and seeds the layout
	Edges  []int
}

// Edge joins two nodes by index. Edges are immutable once added.
type Edge struct {
	From, To int
	Weight   float64
}

// Other returns the endpoint of e that is not n.
func (e Edge) Other(n int) int {
	if e.From == n {
		return e.To
	}
	return e.From
}

// Graph owns the canonical node list. Everything else refers to nodes by index.
type Graph struct {
	Nodes []Node
	Edges []Edge
	index map[string]int
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{index: make(map[string]int)}
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.Nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.Edges) }

// AddNode appends a node and returns its index. A mass of 0 means 1.
func (g *Graph) AddNode(id string, mass float64) (int, error) {
	if err := errors.ValidateNodeID(id); err != nil {
		return -1, err
	}
	if _, dup := g.index[id]; dup {
		return -1, errors.New(errors.ErrCodeInvalidGraph, "duplicate node %q", id)
	}
	if mass == 0 {
		mass = 1
	}
	if err := errors.ValidateWeight("node", mass); err != nil {
		return -1, err
	}
	g.Nodes = append(g.Nodes, Node{ID: id, Mass: mass})
	g.index[id] = len(g.Nodes) - 1
	return len(g.Nodes) - 1, nil
}

// SetInitialPosition seeds node i at p instead of a random position.
func (g *Graph) SetInitialPosition(i int, p r3.Vec) {
	g.Nodes[i].Pos = p
	g.Nodes[i].HasPos = true
}

// AddEdge connects two existing nodes. A weight of 0 means 1. Self-loops carry no
// force and are rejected.
func (g *Graph) AddEdge(from, to string, weight float64) error {
	fi, ok := g.index[from]
	if !ok {
		return errors.New(errors.ErrCodeInvalidGraph, "edge %s→%s: unknown node %q", from, to, from)
	}
	ti, ok := g.index[to]
	if !ok {
		return errors.New(errors.ErrCodeInvalidGraph, "edge %s→%s: unknown node %q", from, to, to)
	}
	if fi == ti {
		return errors.New(errors.ErrCodeInvalidGraph, "self-loop on node %q", from)
	}
	if weight == 0 {
		weight = 1
	}
	if err := errors.ValidateWeight("edge", weight); err != nil {
		return err
	}

	g.Edges = append(g.Edges, Edge{From: fi, To: ti, Weight: weight})
	e := len(g.Edges) - 1
	g.Nodes[fi].Edges = append(g.Nodes[fi].Edges, e)
	g.Nodes[ti].Edges = append(g.Nodes[ti].Edges, e)
	return nil
}

// Index returns the index of the node with the given id.
func (g *Graph) Index(id string) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// Degree returns the number of edges incident to node i.
func (g *Graph) Degree(i int) int { return len(g.Nodes[i].Edges) }

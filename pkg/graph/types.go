package graph

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/drl3d/pkg/core/drl"
)

// =============================================================================
// Graph - Input Format
// =============================================================================

// Graph is the canonical serialization format for input graphs.
type Graph struct {
	Nodes []Node `json:"nodes" bson:"nodes"`
	Edges []Edge `json:"edges" bson:"edges"`
}

// Vec is a position in layout space, serialized as [x, y, z].
type Vec [3]float64

// R3 converts v to a gonum vector.
func (v Vec) R3() r3.Vec { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }

// FromR3 converts a gonum vector.
func FromR3(p r3.Vec) Vec { return Vec{p.X, p.Y, p.Z} }

// Node is shared by Graph and Layout. In a Layout, Pos is always set.
type Node struct {
	ID     string  `json:"id" bson:"id"`
	Label  string  `json:"label,omitempty" bson:"label,omitempty"`
	Weight float64 `json:"weight,omitempty" bson:"weight,omitempty"` // node mass, defaults to 1
	Pos    *Vec    `json:"pos,omitempty" bson:"pos,omitempty"`
}

// DisplayLabel returns the label if set, otherwise the ID.
func (n *Node) DisplayLabel() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// Edge connects two nodes by id.
type Edge struct {
	From   string  `json:"from" bson:"from"`
	To     string  `json:"to" bson:"to"`
	Weight float64 `json:"weight,omitempty" bson:"weight,omitempty"`
}

// =============================================================================
// Graph ↔ drl.Graph Conversion
// =============================================================================

// ToDRL builds the index-based layout graph. Node order is preserved, so index i
// in the result is g.Nodes[i].
func (g Graph) ToDRL() (*drl.Graph, error) {
	out := drl.NewGraph()
	for _, n := range g.Nodes {
		i, err := out.AddNode(n.ID, n.Weight)
		if err != nil {
			return nil, err
		}
		if n.Pos != nil {
			out.SetInitialPosition(i, n.Pos.R3())
		}
	}
	for _, e := range g.Edges {
		if err := out.AddEdge(e.From, e.To, e.Weight); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FromDRL converts a layout graph back to its serialization format, including
// current node positions.
func FromDRL(g *drl.Graph) Graph {
	out := Graph{
		Nodes: make([]Node, len(g.Nodes)),
		Edges: make([]Edge, len(g.Edges)),
	}
	for i, n := range g.Nodes {
		out.Nodes[i] = Node{ID: n.ID, Weight: n.Mass}
		if n.HasPos {
			p := FromR3(n.Pos)
			out.Nodes[i].Pos = &p
		}
	}
	for i, e := range g.Edges {
		out.Edges[i] = Edge{From: g.Nodes[e.From].ID, To: g.Nodes[e.To].ID, Weight: e.Weight}
	}
	return out
}

package graph

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/drl3d/pkg/core/drl"
)

// =============================================================================
// Layout - Output Format
// =============================================================================

// Layout is the serialization format for a finished (or aborted) layout run.
type Layout struct {
	RunID       string  `json:"run_id,omitempty" bson:"run_id,omitempty"`
	State       string  `json:"state" bson:"state"`
	Reason      string  `json:"reason,omitempty" bson:"reason,omitempty"`
	Error       string  `json:"error,omitempty" bson:"error,omitempty"`
	Iterations  int     `json:"iterations" bson:"iterations"`
	Temperature float64 `json:"temperature" bson:"temperature"`
	Restarts    int     `json:"restarts,omitempty" bson:"restarts,omitempty"`

	Nodes  []Node  `json:"nodes" bson:"nodes"`
	Edges  []Edge  `json:"edges,omitempty" bson:"edges,omitempty"`
	Bounds *Bounds `json:"bounds,omitempty" bson:"bounds,omitempty"`
}

// Bounds is the axis-aligned bounding box of all node positions.
type Bounds struct {
	Min Vec `json:"min" bson:"min"`
	Max Vec `json:"max" bson:"max"`
}

// Size returns the extent of the box along each axis.
func (b Bounds) Size() Vec {
	return Vec{b.Max[0] - b.Min[0], b.Max[1] - b.Min[1], b.Max[2] - b.Min[2]}
}

// NewLayout builds a Layout from a run result. Node i of g is placed at
// res.Positions[i].
func NewLayout(g *drl.Graph, res drl.Result) Layout {
	l := Layout{
		State:       res.State.String(),
		Reason:      res.Reason,
		Iterations:  res.Iterations,
		Temperature: res.Temperature,
		Nodes:       make([]Node, len(g.Nodes)),
		Edges:       make([]Edge, len(g.Edges)),
	}
	for i, n := range g.Nodes {
		p := FromR3(res.Positions[i])
		l.Nodes[i] = Node{ID: n.ID, Weight: n.Mass, Pos: &p}
	}
	for i, e := range g.Edges {
		l.Edges[i] = Edge{From: g.Nodes[e.From].ID, To: g.Nodes[e.To].ID, Weight: e.Weight}
	}
	if len(res.Positions) > 0 {
		box := boundingBox(res.Positions)
		l.Bounds = &Bounds{Min: FromR3(box.Min), Max: FromR3(box.Max)}
	}
	return l
}

// Positions returns node positions in node order. Nodes without a position map to
// the origin.
func (l *Layout) Positions() []r3.Vec {
	out := make([]r3.Vec, len(l.Nodes))
	for i, n := range l.Nodes {
		if n.Pos != nil {
			out[i] = n.Pos.R3()
		}
	}
	return out
}

func boundingBox(ps []r3.Vec) r3.Box {
	inf := math.Inf(1)
	box := r3.Box{Min: r3.Vec{X: inf, Y: inf, Z: inf}, Max: r3.Vec{X: -inf, Y: -inf, Z: -inf}}
	for _, p := range ps {
		box.Min = r3.Vec{X: math.Min(box.Min.X, p.X), Y: math.Min(box.Min.Y, p.Y), Z: math.Min(box.Min.Z, p.Z)}
		box.Max = r3.Vec{X: math.Max(box.Max.X, p.X), Y: math.Max(box.Max.Y, p.Y), Z: math.Max(box.Max.Z, p.Z)}
	}
	return box
}

package drl

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// DensityField is the part of the density grid the force model reads.
// *density.Grid implements it.
type DensityField interface {
	DensityExcluding(p r3.Vec, fine bool, self int) float64
}

// Forces is the per-term breakdown of the force on one node.
type Forces struct {
	Attraction r3.Vec
	Repulsion  r3.Vec
	Gravity    r3.Vec
}

// Net returns the sum of all terms.
func (f Forces) Net() r3.Vec {
	return r3.Add(r3.Add(f.Attraction, f.Repulsion), f.Gravity)
}

// NumericalError reports a node whose position or force stopped being finite.
type NumericalError struct {
	Index  int
	NodeID string
	Value  r3.Vec
	Where  string // "position" or "displacement"
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("node %q (index %d): non-finite %s %v", e.NodeID, e.Index, e.Where, e.Value)
}

// ForceAccumulator computes the displacement of a node from edge springs, the
// density field and a centering pull.
type ForceAccumulator struct {
	cfg     Config
	offsets [6]r3.Vec
	h2      float64
}

// NewForceAccumulator creates a force model. spacing is the distance of the six axis
// points at which density is sampled around a node.
func NewForceAccumulator(cfg Config, spacing float64) *ForceAccumulator {
	return &ForceAccumulator{
		cfg: cfg,
		offsets: [6]r3.Vec{
			{X: spacing}, {X: -spacing},
			{Y: spacing}, {Y: -spacing},
			{Z: spacing}, {Z: -spacing},
		},
		h2: spacing * spacing,
	}
}

// Forces evaluates the three force terms for node i.
func (f *ForceAccumulator) Forces(g *Graph, pos []r3.Vec, i int, field DensityField, fine bool, centroid r3.Vec) Forces {
	p := pos[i]
	var out Forces

	for _, ei := range g.Nodes[i].Edges {
		e := g.Edges[ei]
		d := r3.Sub(pos[e.Other(i)], p)
		dist := r3.Norm(d)
		if dist == 0 {
			continue
		}
		// Pulls beyond the target length, pushes inside it.
		mag := f.cfg.Attraction * e.Weight * (dist - f.cfg.TargetEdgeLength)
		out.Attraction = r3.Add(out.Attraction, r3.Scale(mag/dist, d))
	}

	if f.cfg.Repulsion > 0 {
		for _, o := range f.offsets {
			// The fine field sharpens the coarse one rather than replacing it.
			q := r3.Add(p, o)
			dens := field.DensityExcluding(q, false, i)
			if fine {
				dens += field.DensityExcluding(q, true, i)
			}
			if dens == 0 {
				continue
			}
			// (p-q)/|p-q|² with q = p+o.
			out.Repulsion = r3.Add(out.Repulsion, r3.Scale(-f.cfg.Repulsion*dens/f.h2, o))
		}
	}

	if f.cfg.Gravity > 0 {
		out.Gravity = r3.Scale(f.cfg.Gravity, r3.Sub(centroid, p))
	}
	return out
}

// Displacement returns the step for node i: net force over mass, clamped to
// temperature. A non-finite step is reported as a *NumericalError.
func (f *ForceAccumulator) Displacement(g *Graph, pos []r3.Vec, i int, field DensityField, fine bool, centroid r3.Vec, temperature float64) (r3.Vec, error) {
	d := r3.Scale(1/g.Nodes[i].Mass, f.Forces(g, pos, i, field, fine, centroid).Net())
	if !finite(d) {
		return r3.Vec{}, &NumericalError{Index: i, NodeID: g.Nodes[i].ID, Value: d, Where: "displacement"}
	}
	return clampLength(d, temperature), nil
}

func clampLength(v r3.Vec, limit float64) r3.Vec {
	n := r3.Norm(v)
	if n <= limit || n == 0 {
		return v
	}
	return r3.Scale(limit/n, v)
}

func finite(p r3.Vec) bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0) &&
		!math.IsNaN(p.Z) && !math.IsInf(p.Z, 0)
}

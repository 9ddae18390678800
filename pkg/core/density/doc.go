// Package density implements the spatial density grid used by the DrL layout.
//
// Space is the cube [-ViewSize/2, ViewSize/2)³ split into Size³ cells. Every placed
// node spreads mass over neighbouring cells through a precomputed, radially
// symmetric [Kernel], so the repulsion felt at any point can be estimated from the
// eight cells around it instead of visiting every other node. Reads interpolate
// between cell centres, which keeps the field continuous as a node crosses a cell
// face.
//
// # Resolutions
//
// Each cell carries two accumulators:
//
//   - coarse: filled with the wide kernel (radius Config.Radius) for every node.
//     Smooth, stable field that carries the mid-range repulsion.
//   - fine: filled with the narrow kernel (radius Config.FineRadius) only for nodes
//     placed with fine=true. Fine sampling also adds an inverse-square near field over
//     the nodes bucketed in the 27 surrounding cells, which keeps nodes from
//     overlapping during late refinement.
//
// # Lifecycle
//
//	g, err := density.New(density.DefaultConfig(), len(nodes))
//	_ = g.Add(i, pos, false)  // first placement
//	_ = g.Subtract(i)         // remove exactly what Add deposited
//	_ = g.Add(i, newPos, true)
//	d := g.Density(p, true)
//
// Each node has an explicit [State]: Subtract on a [NotPlaced] node is a no-op, so the
// caller never needs to track whether a node is being placed for the first time. A
// Subtract that drives any cell negative is reported as INVARIANT_VIOLATION and left
// visible to [Grid.Check].
//
// # Concurrency
//
// Reads ([Grid.Density], [Grid.DensityExcluding]) are safe to run concurrently as long
// as no Add or Subtract runs at the same time. The grid itself holds no locks.
package density

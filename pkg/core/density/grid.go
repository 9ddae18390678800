package density

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/drl3d/pkg/errors"
)

// State is the lifecycle state of a node with respect to the grid.
type State uint8

const (
	// NotPlaced nodes have no contribution in the grid.
	NotPlaced State = iota
	// Placed nodes have a contribution recorded in their Placement.
	Placed
)

func (s State) String() string {
	if s == Placed {
		return "placed"
	}
	return "not-placed"
}

// Placement records what Add deposited for a node so Subtract can undo it exactly.
type Placement struct {
	State State
	Pos   r3.Vec // position the contribution was deposited at
	Cell  Coord
	Fine  bool // fine accumulator was written
}

const noNode = int32(-1)

// residue is the relative rounding error tolerated when a subtraction lands just
// below zero.
const residue = 1e-9

// Grid is the coarse/fine density grid plus per-cell node buckets.
type Grid struct {
	cfg      Config
	cellSize float64
	half     float64
	soft     float64 // near-field softening, in squared world units

	coarse  *Volume
	fine    *Volume
	coarseK Kernel
	fineK   Kernel

	// buckets are intrusive doubly linked lists over node indices.
	head   []int32
	next   []int32
	prev   []int32
	placed []Placement
}

// New allocates a grid for nodes nodes. It fails with an INVALID_CONFIG error and
// allocates nothing if the configuration is inconsistent or exceeds cfg.MaxBytes.
func New(cfg Config, nodes int) (*Grid, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if nodes < 0 || nodes > MaxNodes {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "node count must be in [0,%d], got %d", MaxNodes, nodes)
	}
	if cfg.MaxBytes > 0 {
		if need := cfg.EstimateBytes(nodes); need > cfg.MaxBytes {
			return nil, errors.New(errors.ErrCodeInvalidConfig,
				"density grid of %d³ cells needs %d bytes, budget is %d", cfg.Size, need, cfg.MaxBytes)
		}
	}

	cells := cfg.Size * cfg.Size * cfg.Size
	cellSize := cfg.ViewSize / float64(cfg.Size)
	g := &Grid{
		cfg:      cfg,
		cellSize: cellSize,
		half:     cfg.ViewSize / 2,
		soft:     0.01 * cellSize * cellSize,
		coarse:   NewVolume(cfg.Size, cfg.Size, cfg.Size),
		fine:     NewVolume(cfg.Size, cfg.Size, cfg.Size),
		coarseK:  NewKernel(cfg.Radius),
		fineK:    NewKernel(cfg.FineRadius),
		head:     make([]int32, cells),
		next:     make([]int32, nodes),
		prev:     make([]int32, nodes),
		placed:   make([]Placement, nodes),
	}
	for i := range g.head {
		g.head[i] = noNode
	}
	for i := range g.next {
		g.next[i] = noNode
		g.prev[i] = noNode
	}
	return g, nil
}

// Config returns the grid configuration.
func (g *Grid) Config() Config { return g.cfg }

// CellSize returns the world-space edge length of one cell.
func (g *Grid) CellSize() float64 { return g.cellSize }

// Nodes returns the number of node slots.
func (g *Grid) Nodes() int { return len(g.placed) }

// CoarseKernel returns the wide fall-off kernel.
func (g *Grid) CoarseKernel() Kernel { return g.coarseK }

// FineKernel returns the narrow fall-off kernel.
func (g *Grid) FineKernel() Kernel { return g.fineK }

// CellOf maps a world position to its cell. ok is false for non-finite positions and
// positions outside the view cube.
func (g *Grid) CellOf(p r3.Vec) (c Coord, ok bool) {
	if !finite(p) {
		return Coord{}, false
	}
	limit := float64(g.cfg.Size)
	fx := math.Floor((p.X + g.half) / g.cellSize)
	fy := math.Floor((p.Y + g.half) / g.cellSize)
	fz := math.Floor((p.Z + g.half) / g.cellSize)
	if fx < 0 || fx >= limit || fy < 0 || fy >= limit || fz < 0 || fz >= limit {
		return Coord{}, false
	}
	return Coord{X: int(fx), Y: int(fy), Z: int(fz)}, true
}

// Interior returns the world-space box in which nodes may be placed: the view cube
// minus the boundary band.
func (g *Grid) Interior() r3.Box {
	lo := -g.half + float64(g.cfg.Boundary)*g.cellSize
	hi := g.half - float64(g.cfg.Boundary)*g.cellSize
	return r3.Box{Min: r3.Vec{X: lo, Y: lo, Z: lo}, Max: r3.Vec{X: hi, Y: hi, Z: hi}}
}

// Clamp moves p into the interior box. The upper face is exclusive.
func (g *Grid) Clamp(p r3.Vec) r3.Vec {
	box := g.Interior()
	hi := box.Max.X - 1e-6*g.cellSize
	return r3.Vec{
		X: clamp(p.X, box.Min.X, hi),
		Y: clamp(p.Y, box.Min.Y, hi),
		Z: clamp(p.Z, box.Min.Z, hi),
	}
}

// Placement returns the placement record of node n.
func (g *Grid) Placement(n int) Placement {
	return g.placed[n]
}

// Add deposits node n at p. The coarse accumulator is always written, the fine one
// only when fine is set. Footprints are clipped at the grid faces.
func (g *Grid) Add(n int, p r3.Vec, fine bool) error {
	if n < 0 || n >= len(g.placed) {
		return errors.New(errors.ErrCodeInvariant, "node index %d out of range [0,%d)", n, len(g.placed))
	}
	if g.placed[n].State == Placed {
		return errors.New(errors.ErrCodeInvariant, "node %d is already placed at %v", n, g.placed[n].Pos)
	}
	c, ok := g.CellOf(p)
	if !ok {
		return errors.New(errors.ErrCodeInvariant, "node %d position %v maps outside the grid", n, p)
	}

	g.deposit(g.coarse, g.coarseK, c, 1)
	if fine {
		g.deposit(g.fine, g.fineK, c, 1)
	}
	g.link(n, c)
	g.placed[n] = Placement{State: Placed, Pos: p, Cell: c, Fine: fine}
	return nil
}

// Subtract removes the contribution recorded for node n. It is a no-op for nodes
// that are not placed. If the removal takes any cell below zero the node is still
// removed, the negative values stay in place for Check to see, and an
// INVARIANT_VIOLATION error is returned.
func (g *Grid) Subtract(n int) error {
	if n < 0 || n >= len(g.placed) {
		return errors.New(errors.ErrCodeInvariant, "node index %d out of range [0,%d)", n, len(g.placed))
	}
	pl := g.placed[n]
	if pl.State == NotPlaced {
		return nil
	}
	if !g.coarse.Contains(pl.Cell) {
		return errors.New(errors.ErrCodeInvariant, "node %d recorded in cell %s outside the grid", n, pl.Cell)
	}

	under := g.deposit(g.coarse, g.coarseK, pl.Cell, -1)
	if pl.Fine && g.deposit(g.fine, g.fineK, pl.Cell, -1) {
		under = true
	}
	g.unlink(n, pl.Cell)
	g.placed[n] = Placement{}
	if under {
		return errors.New(errors.ErrCodeInvariant, "removing node %d drove the density around cell %s negative", n, pl.Cell)
	}
	return nil
}

// GetDensity samples the density at (x, y, z).
func (g *Grid) GetDensity(x, y, z float64, fine bool) float64 {
	return g.Density(r3.Vec{X: x, Y: y, Z: z}, fine)
}

// Density samples the density at p. The accumulator is interpolated trilinearly
// between cell centres and then squared. Fine sampling reads the fine accumulator
// and adds the near field of nodes bucketed around p. Points in the boundary band
// or outside the view read as WallDensity.
func (g *Grid) Density(p r3.Vec, fine bool) float64 {
	return g.sample(p, fine, -1)
}

// DensityExcluding samples like Density but leaves out the contribution of node self.
// It lets a node read the field without first being subtracted from it.
func (g *Grid) DensityExcluding(p r3.Vec, fine bool, self int) float64 {
	return g.sample(p, fine, self)
}

func (g *Grid) sample(p r3.Vec, fine bool, self int) float64 {
	c, ok := g.CellOf(p)
	if !ok || g.inBoundary(c) {
		return g.cfg.WallDensity
	}

	var own *Placement
	if self >= 0 && self < len(g.placed) && g.placed[self].State == Placed {
		own = &g.placed[self]
	}

	if !fine {
		v := g.interpolate(p, g.coarse, g.coarseK, own)
		return v * v
	}

	if own != nil && !own.Fine {
		own = nil
	}
	v := g.interpolate(p, g.fine, g.fineK, own)
	return v*v + g.nearField(p, c, self)
}

// interpolate blends the accumulator trilinearly between the centres of the eight
// cells around p. When own is set, its kernel weight is removed from each corner.
// Corners outside the grid are skipped.
func (g *Grid) interpolate(p r3.Vec, vol *Volume, k Kernel, own *Placement) float64 {
	fx := (p.X+g.half)/g.cellSize - 0.5
	fy := (p.Y+g.half)/g.cellSize - 0.5
	fz := (p.Z+g.half)/g.cellSize - 0.5
	x0, y0, z0 := math.Floor(fx), math.Floor(fy), math.Floor(fz)
	tx, ty, tz := fx-x0, fy-y0, fz-z0
	base := Coord{X: int(x0), Y: int(y0), Z: int(z0)}

	var v float64
	for corner := 0; corner < 8; corner++ {
		d := Coord{X: corner & 1, Y: corner >> 1 & 1, Z: corner >> 2 & 1}
		cc := base.Add(d)
		if !vol.Contains(cc) {
			continue
		}
		a := vol.At(cc)
		if own != nil {
			a = nonNegative(a - k.Weight(cc.Sub(own.Cell)))
		}
		v += a * lerpWeight(tx, d.X) * lerpWeight(ty, d.Y) * lerpWeight(tz, d.Z)
	}
	return v
}

func lerpWeight(t float64, upper int) float64 {
	if upper == 1 {
		return t
	}
	return 1 - t
}

// nearField sums NearField/(d²+soft) over nodes in the 27 cells around c.
func (g *Grid) nearField(p r3.Vec, c Coord, skip int) float64 {
	if g.cfg.NearField == 0 {
		return 0
	}
	var sum float64
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nc := c.Add(Coord{dx, dy, dz})
				if !g.coarse.Contains(nc) {
					continue
				}
				for j := g.head[g.cellIndex(nc)]; j != noNode; j = g.next[j] {
					if int(j) == skip {
						continue
					}
					d2 := r3.Norm2(r3.Sub(p, g.placed[j].Pos))
					sum += g.cfg.NearField / (d2 + g.soft)
				}
			}
		}
	}
	return sum
}

// Bucket returns the indices of nodes currently placed in cell c.
func (g *Grid) Bucket(c Coord) []int {
	if !g.coarse.Contains(c) {
		return nil
	}
	var out []int
	for j := g.head[g.cellIndex(c)]; j != noNode; j = g.next[j] {
		out = append(out, int(j))
	}
	return out
}

// TotalMass sums the coarse (or fine) accumulator over the whole grid.
func (g *Grid) TotalMass(fine bool) float64 {
	if fine {
		return g.fine.Sum()
	}
	return g.coarse.Sum()
}

// Accumulator returns the raw coarse (or fine) accumulator value at c.
func (g *Grid) Accumulator(c Coord, fine bool) float64 {
	if fine {
		return g.fine.At(c)
	}
	return g.coarse.At(c)
}

// Snapshot returns copies of the coarse and fine accumulators.
func (g *Grid) Snapshot() (coarse, fine *Volume) {
	return g.coarse.Clone(), g.fine.Clone()
}

// Check verifies the grid's internal consistency: no negative density, and every
// placed node linked into the bucket of its recorded cell exactly once.
func (g *Grid) Check() error {
	if m := g.coarse.Min(); m < 0 {
		return errors.New(errors.ErrCodeInvariant, "negative coarse density %v", m)
	}
	if m := g.fine.Min(); m < 0 {
		return errors.New(errors.ErrCodeInvariant, "negative fine density %v", m)
	}

	seen := make([]bool, len(g.placed))
	for cell, h := range g.head {
		for j := h; j != noNode; j = g.next[j] {
			if seen[j] {
				return errors.New(errors.ErrCodeInvariant, "node %d linked twice", j)
			}
			seen[j] = true
			if g.cellIndex(g.placed[j].Cell) != cell {
				return errors.New(errors.ErrCodeInvariant, "node %d bucketed outside its recorded cell %s", j, g.placed[j].Cell)
			}
		}
	}
	for n, pl := range g.placed {
		if (pl.State == Placed) != seen[n] {
			return errors.New(errors.ErrCodeInvariant, "node %d is %s but bucketed=%v", n, pl.State, seen[n])
		}
	}
	return nil
}

// deposit adds sign·kernel centred on c into vol, skipping cells outside the grid.
// Rounding residue below zero is flushed to 0; anything larger is kept and reported.
func (g *Grid) deposit(vol *Volume, k Kernel, c Coord, sign float64) (under bool) {
	r := k.Radius()
	n := g.cfg.Size
	x0, x1 := max(-r, -c.X), min(r, n-1-c.X)
	if x0 > x1 {
		return false
	}
	tol := residue * k.Total()
	for dz := -r; dz <= r; dz++ {
		z := c.Z + dz
		if z < 0 || z >= n {
			continue
		}
		for dy := -r; dy <= r; dy++ {
			y := c.Y + dy
			if y < 0 || y >= n {
				continue
			}
			dst := vol.row(c.X+x0, c.X+x1, y, z)
			src := k.row(x0, x1, dy, dz)
			for i, w := range src {
				v := dst[i] + sign*w
				if v < 0 {
					if v > -tol {
						v = 0
					} else {
						under = true
					}
				}
				dst[i] = v
			}
		}
	}
	return under
}

func (g *Grid) inBoundary(c Coord) bool {
	lo, hi := g.cfg.Boundary, g.cfg.Size-g.cfg.Boundary
	return c.X < lo || c.X >= hi || c.Y < lo || c.Y >= hi || c.Z < lo || c.Z >= hi
}

func (g *Grid) cellIndex(c Coord) int {
	return (c.Z*g.cfg.Size+c.Y)*g.cfg.Size + c.X
}

func (g *Grid) link(n int, c Coord) {
	idx := g.cellIndex(c)
	h := g.head[idx]
	g.next[n] = h
	g.prev[n] = noNode
	if h != noNode {
		g.prev[h] = int32(n)
	}
	g.head[idx] = int32(n)
}

func (g *Grid) unlink(n int, c Coord) {
	if p := g.prev[n]; p != noNode {
		g.next[p] = g.next[n]
	} else {
		g.head[g.cellIndex(c)] = g.next[n]
	}
	if nx := g.next[n]; nx != noNode {
		g.prev[nx] = g.prev[n]
	}
	g.next[n] = noNode
	g.prev[n] = noNode
}

func finite(p r3.Vec) bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0) &&
		!math.IsNaN(p.Z) && !math.IsInf(p.Z, 0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

package density

import "math"

// Kernel is a precomputed fall-off table of side 2·radius+1. The weight at offset d
// is max(0, 1-|d|/radius) with |d| the Euclidean length in cells: 1 at the centre,
// 0 from the radius outwards, and the same in every direction. Kernels are
// immutable once built and safe to share.
type Kernel struct {
	radius int
	side   int
	w      []float64
	total  float64
}

// NewKernel builds the fall-off table for the given radius (>= 1).
func NewKernel(radius int) Kernel {
	side := 2*radius + 1
	r := float64(radius)

	k := Kernel{radius: radius, side: side, w: make([]float64, side*side*side)}
	for z := -radius; z <= radius; z++ {
		for y := -radius; y <= radius; y++ {
			for x := -radius; x <= radius; x++ {
				d := math.Sqrt(float64(x*x + y*y + z*z))
				v := max(0, 1-d/r)
				k.w[((z+radius)*side+(y+radius))*side+(x+radius)] = v
				k.total += v
			}
		}
	}
	return k
}

// Radius returns the kernel radius in cells.
func (k Kernel) Radius() int { return k.radius }

// Total returns the sum of all weights, close to π·radius³/3 for wide kernels.
func (k Kernel) Total() float64 { return k.total }

// Weight returns the weight at offset d from the centre, or 0 outside the kernel.
func (k Kernel) Weight(d Coord) float64 {
	r := k.radius
	if d.X < -r || d.X > r || d.Y < -r || d.Y > r || d.Z < -r || d.Z > r {
		return 0
	}
	return k.w[((d.Z+r)*k.side+(d.Y+r))*k.side+(d.X+r)]
}

// row returns the weights for offsets (x0..x1, dy, dz), inclusive, with x0/x1 given
// as offsets from the centre.
func (k Kernel) row(x0, x1, dy, dz int) []float64 {
	r := k.radius
	base := ((dz+r)*k.side + (dy + r)) * k.side
	return k.w[base+x0+r : base+x1+r+1]
}

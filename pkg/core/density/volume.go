package density

import "fmt"

// Coord addresses a grid cell.
type Coord struct {
	X, Y, Z int
}

// Add returns the component-wise sum of c and o.
func (c Coord) Add(o Coord) Coord {
	return Coord{c.X + o.X, c.Y + o.Y, c.Z + o.Z}
}

// Sub returns the component-wise difference c - o.
func (c Coord) Sub(o Coord) Coord {
	return Coord{c.X - o.X, c.Y - o.Y, c.Z - o.Z}
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Volume is a dense, explicitly dimensioned 3D array of float64 values laid out
// x-fastest. Accessors panic on out-of-range coordinates, the same way slice
// indexing does; callers that cannot guarantee the range check with Contains first.
type Volume struct {
	nx, ny, nz int
	data       []float64
}

// NewVolume allocates a zeroed volume.
func NewVolume(nx, ny, nz int) *Volume {
	if nx <= 0 || ny <= 0 || nz <= 0 {
		panic(fmt.Sprintf("density: invalid volume dimensions %dx%dx%d", nx, ny, nz))
	}
	return &Volume{nx: nx, ny: ny, nz: nz, data: make([]float64, nx*ny*nz)}
}

// Dims returns the volume dimensions.
func (v *Volume) Dims() (nx, ny, nz int) { return v.nx, v.ny, v.nz }

// Len returns the number of cells.
func (v *Volume) Len() int { return len(v.data) }

// Contains reports whether c lies inside the volume.
func (v *Volume) Contains(c Coord) bool {
	return c.X >= 0 && c.X < v.nx &&
		c.Y >= 0 && c.Y < v.ny &&
		c.Z >= 0 && c.Z < v.nz
}

// At returns the value stored at c.
func (v *Volume) At(c Coord) float64 {
	return v.data[v.offset(c)]
}

// Set stores val at c.
func (v *Volume) Set(c Coord, val float64) {
	v.data[v.offset(c)] = val
}

// Sum returns the total of all cells.
func (v *Volume) Sum() float64 {
	var s float64
	for _, x := range v.data {
		s += x
	}
	return s
}

// Min returns the smallest cell value.
func (v *Volume) Min() float64 {
	m := v.data[0]
	for _, x := range v.data[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

// Clone returns a deep copy of the volume.
func (v *Volume) Clone() *Volume {
	out := &Volume{nx: v.nx, ny: v.ny, nz: v.nz, data: make([]float64, len(v.data))}
	copy(out.data, v.data)
	return out
}

// row returns the backing slice for the run of cells (x0..x1, y, z), inclusive.
func (v *Volume) row(x0, x1, y, z int) []float64 {
	base := (z*v.ny + y) * v.nx
	return v.data[base+x0 : base+x1+1]
}

func (v *Volume) offset(c Coord) int {
	if !v.Contains(c) {
		panic(fmt.Sprintf("density: coordinate %s outside %dx%dx%d volume", c, v.nx, v.ny, v.nz))
	}
	return (c.Z*v.ny+c.Y)*v.nx + c.X
}

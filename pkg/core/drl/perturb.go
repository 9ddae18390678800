package drl

import (
	"github.com/ojrac/opensimplex-go"
	"gonum.org/v1/gonum/spatial/r3"
)

// Perturb returns a copy of pos with each point shifted by smooth simplex noise of
// the given amplitude. Nearby points move in similar directions, so local structure
// survives while coincident or stuck nodes are pulled apart. It is used to restart a
// run from the positions of an aborted one.
func Perturb(pos []r3.Vec, seed int64, amplitude float64) []r3.Vec {
	noise := opensimplex.New(seed)
	const freq = 0.05
	out := make([]r3.Vec, len(pos))
	for i, p := range pos {
		x, y, z := p.X*freq, p.Y*freq, p.Z*freq
		// Offset the sample point per axis so the three components are independent.
		// The index term separates nodes that share a position.
		t := float64(i) * 0.618
		out[i] = r3.Vec{
			X: p.X + amplitude*noise.Eval3(x+t, y, z),
			Y: p.Y + amplitude*noise.Eval3(x, y+t+31.7, z),
			Z: p.Z + amplitude*noise.Eval3(x, y, z+t+67.3),
		}
	}
	return out
}

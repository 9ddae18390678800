package density

import (
	"math"

	"github.com/matzehuels/drl3d/pkg/errors"
)

// Default grid parameters. They mirror the classic DrL 3D constants.
const (
	DefaultSize        = 100
	DefaultViewSize    = 250.0
	DefaultRadius      = 10
	DefaultFineRadius  = 2
	DefaultBoundary    = 10
	DefaultNearField   = 1.0
	DefaultWallDensity = 1e4

	// DefaultMaxBytes is the memory budget for a single grid (512 MiB).
	DefaultMaxBytes = int64(512 << 20)

	// MaxSize bounds cells per axis so cell counts and byte estimates stay in range.
	MaxSize = 4096
	// MaxNodes bounds node slots; bucket links are int32.
	MaxNodes = math.MaxInt32
)

// Config describes the grid geometry. All sizes are in cells unless noted.
type Config struct {
	Size        int     // cells per axis
	ViewSize    float64 // world-space edge length of the cube, centred at the origin
	Radius      int     // coarse kernel radius
	FineRadius  int     // fine kernel radius
	Boundary    int     // cells along every face that read as WallDensity
	NearField   float64 // numerator of the fine inverse-square term
	WallDensity float64 // density reported inside the boundary band
	MaxBytes    int64   // allocation budget checked by New
}

// DefaultConfig returns the default grid configuration.
func DefaultConfig() Config {
	return Config{
		Size:        DefaultSize,
		ViewSize:    DefaultViewSize,
		Radius:      DefaultRadius,
		FineRadius:  DefaultFineRadius,
		Boundary:    DefaultBoundary,
		NearField:   DefaultNearField,
		WallDensity: DefaultWallDensity,
		MaxBytes:    DefaultMaxBytes,
	}
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	switch {
	case c.Size <= 0:
		return errors.New(errors.ErrCodeInvalidConfig, "grid size must be positive, got %d", c.Size)
	case c.Size > MaxSize:
		return errors.New(errors.ErrCodeInvalidConfig, "grid size must be at most %d, got %d", MaxSize, c.Size)
	case math.IsNaN(c.ViewSize) || math.IsInf(c.ViewSize, 0):
		return errors.New(errors.ErrCodeInvalidConfig, "view size must be finite, got %v", c.ViewSize)
	case c.ViewSize <= 0:
		return errors.New(errors.ErrCodeInvalidConfig, "view size must be positive, got %v", c.ViewSize)
	case c.Radius < 1:
		return errors.New(errors.ErrCodeInvalidConfig, "kernel radius must be at least 1, got %d", c.Radius)
	case c.Radius > c.Size:
		return errors.New(errors.ErrCodeInvalidConfig, "kernel radius %d exceeds the grid size %d", c.Radius, c.Size)
	case c.FineRadius < 1:
		return errors.New(errors.ErrCodeInvalidConfig, "fine kernel radius must be at least 1, got %d", c.FineRadius)
	case c.FineRadius > c.Size:
		return errors.New(errors.ErrCodeInvalidConfig, "fine kernel radius %d exceeds the grid size %d", c.FineRadius, c.Size)
	case c.Boundary < 0:
		return errors.New(errors.ErrCodeInvalidConfig, "boundary must not be negative, got %d", c.Boundary)
	case 2*c.Boundary+1 > c.Size:
		return errors.New(errors.ErrCodeInvalidConfig, "boundary %d leaves no interior in a grid of %d cells", c.Boundary, c.Size)
	case c.NearField < 0:
		return errors.New(errors.ErrCodeInvalidConfig, "near field must not be negative, got %v", c.NearField)
	case c.WallDensity < 0:
		return errors.New(errors.ErrCodeInvalidConfig, "wall density must not be negative, got %v", c.WallDensity)
	}
	return nil
}

// EstimateBytes returns the memory New would allocate for the configuration and
// the given number of nodes.
func (c Config) EstimateBytes(nodes int) int64 {
	cells := int64(c.Size) * int64(c.Size) * int64(c.Size)
	coarseSide := int64(2*c.Radius + 1)
	fineSide := int64(2*c.FineRadius + 1)

	var total int64
	total += 2 * cells * 8           // coarse + fine accumulators
	total += cells * 4               // bucket heads
	total += int64(nodes) * (8 + 56) // bucket links + placement records
	total += coarseSide * coarseSide * coarseSide * 8
	total += fineSide * fineSide * fineSide * 8
	return total
}

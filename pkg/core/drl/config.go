package drl

import (
	"runtime"

	"github.com/matzehuels/drl3d/pkg/core/density"
	"github.com/matzehuels/drl3d/pkg/errors"
)

// Default annealing and force parameters.
const (
	DefaultInitialTemperature = 10.0
	DefaultDecay              = 0.995
	DefaultMinTemperature     = 0.05
	DefaultMaxIterations      = 1000
	DefaultEpsilon            = 1e-3
	DefaultPatience           = 5
	DefaultTargetEdgeLength   = 10.0
	DefaultAttraction         = 0.1
	DefaultRepulsion          = 1.0
	DefaultGravity            = 0.01
	DefaultFineStart          = 0.75
	DefaultInitialSpread      = 50.0
	DefaultSeed               = uint64(42)
)

// Config holds everything a layout run needs besides the graph.
type Config struct {
	Grid density.Config

	// Annealing schedule. Temperature is the longest step a node may take in one
	// iteration, in world units.
	InitialTemperature float64
	Decay              float64
	MinTemperature     float64
	MaxIterations      int
	Epsilon            float64 // convergence threshold on the largest displacement
	Patience           int     // consecutive calm iterations required

	// Force model.
	TargetEdgeLength float64
	Attraction       float64
	Repulsion        float64
	Gravity          float64
	SampleDistance   float64 // 0 means one grid cell

	// FineStart is the fraction of MaxIterations after which fine density is used.
	// Values >= 1 keep the whole run on coarse density.
	FineStart float64

	InitialSpread float64 // edge of the cube random initial positions are drawn from
	Seed          uint64

	Parallel bool
	Workers  int // 0 means GOMAXPROCS
}

// DefaultConfig returns the default layout configuration.
func DefaultConfig() Config {
	return Config{
		Grid:               density.DefaultConfig(),
		InitialTemperature: DefaultInitialTemperature,
		Decay:              DefaultDecay,
		MinTemperature:     DefaultMinTemperature,
		MaxIterations:      DefaultMaxIterations,
		Epsilon:            DefaultEpsilon,
		Patience:           DefaultPatience,
		TargetEdgeLength:   DefaultTargetEdgeLength,
		Attraction:         DefaultAttraction,
		Repulsion:          DefaultRepulsion,
		Gravity:            DefaultGravity,
		FineStart:          DefaultFineStart,
		InitialSpread:      DefaultInitialSpread,
		Seed:               DefaultSeed,
	}
}

// Validate checks the configuration. Errors carry the INVALID_CONFIG code.
func (c Config) Validate() error {
	if err := c.Grid.Validate(); err != nil {
		return err
	}
	bad := func(format string, args ...any) error {
		return errors.New(errors.ErrCodeInvalidConfig, format, args...)
	}
	switch {
	case c.InitialTemperature <= 0:
		return bad("initial temperature must be positive, got %v", c.InitialTemperature)
	case c.Decay <= 0 || c.Decay >= 1:
		return bad("decay must be in (0, 1), got %v", c.Decay)
	case c.MinTemperature < 0:
		return bad("minimum temperature must not be negative, got %v", c.MinTemperature)
	case c.MaxIterations <= 0:
		return bad("max iterations must be positive, got %d", c.MaxIterations)
	case c.Epsilon < 0:
		return bad("epsilon must not be negative, got %v", c.Epsilon)
	case c.Patience < 1:
		return bad("patience must be at least 1, got %d", c.Patience)
	case c.TargetEdgeLength < 0:
		return bad("target edge length must not be negative, got %v", c.TargetEdgeLength)
	case c.Attraction < 0 || c.Repulsion < 0 || c.Gravity < 0:
		return bad("force coefficients must not be negative")
	case c.SampleDistance < 0:
		return bad("sample distance must not be negative, got %v", c.SampleDistance)
	case c.FineStart < 0:
		return bad("fine start must not be negative, got %v", c.FineStart)
	case c.InitialSpread <= 0:
		return bad("initial spread must be positive, got %v", c.InitialSpread)
	case c.Workers < 0:
		return bad("workers must not be negative, got %d", c.Workers)
	}
	return nil
}

// fineFrom returns the first iteration that samples fine density.
func (c Config) fineFrom() int {
	if c.FineStart >= 1 {
		return c.MaxIterations + 1
	}
	return int(c.FineStart * float64(c.MaxIterations))
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

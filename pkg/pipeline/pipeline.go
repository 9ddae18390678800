// Package pipeline runs layouts end to end: validate options, consult the
// cache, anneal, restart on numerical failure and store the result.
//
// Both the CLI and the HTTP server go through [Runner] so caching and
// restart behavior stay identical between them.
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	opts := pipeline.DefaultOptions()
//	res, err := runner.Layout(ctx, g, opts)
package pipeline

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/drl3d/pkg/config"
	"github.com/matzehuels/drl3d/pkg/core/density"
	"github.com/matzehuels/drl3d/pkg/core/drl"
	"github.com/matzehuels/drl3d/pkg/errors"
	"github.com/matzehuels/drl3d/pkg/graph"
)

// Default values for options that are not part of the layout core.
const (
	DefaultRestarts         = 2
	DefaultPerturbAmplitude = 2.0
	DefaultFormat           = FormatJSON
)

// Output formats.
const (
	FormatJSON = "json"
	FormatDOT  = "dot"
	FormatSVG  = "svg"
)

// ValidFormats lists the supported output formats.
var ValidFormats = map[string]bool{
	FormatJSON: true,
	FormatDOT:  true,
	FormatSVG:  true,
}

// ValidateFormat returns an error if format is not supported.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidFormat, "invalid format %q: must be json, dot, or svg", format)
	}
	return nil
}

// Options configures a layout run. Start from DefaultOptions; the JSON form is
// the request body of the HTTP API and, minus runtime fields, the cache key.
type Options struct {
	// Density grid
	GridSize     int     `json:"grid_size"`
	ViewSize     float64 `json:"view_size"`
	Radius       int     `json:"radius"`
	FineRadius   int     `json:"fine_radius"`
	MaxGridBytes int64   `json:"max_grid_bytes,omitempty"`

	// Annealing
	InitialTemperature float64 `json:"initial_temperature"`
	Decay              float64 `json:"decay"`
	MinTemperature     float64 `json:"min_temperature"`
	MaxIterations      int     `json:"max_iterations"`
	Epsilon            float64 `json:"epsilon"`
	Patience           int     `json:"patience"`

	// Forces
	TargetEdgeLength float64 `json:"target_edge_length"`
	Attraction       float64 `json:"attraction"`
	Repulsion        float64 `json:"repulsion"`
	Gravity          float64 `json:"gravity"`
	FineStart        float64 `json:"fine_start"`

	// Placement
	InitialSpread float64 `json:"initial_spread"`
	Seed          uint64  `json:"seed"`

	// Execution
	Parallel bool `json:"parallel,omitempty"`
	Workers  int  `json:"workers,omitempty"`
	Restarts int  `json:"restarts"`
	Refresh  bool `json:"refresh,omitempty"`

	// Runtime (not serialized)
	RunID    string        `json:"-"`
	Logger   *log.Logger   `json:"-"`
	Observer drl.Observer  `json:"-"`
	Timeout  time.Duration `json:"-"`
}

// DefaultOptions returns options matching drl.DefaultConfig.
func DefaultOptions() Options {
	c := drl.DefaultConfig()
	return Options{
		GridSize:           c.Grid.Size,
		ViewSize:           c.Grid.ViewSize,
		Radius:             c.Grid.Radius,
		FineRadius:         c.Grid.FineRadius,
		MaxGridBytes:       c.Grid.MaxBytes,
		InitialTemperature: c.InitialTemperature,
		Decay:              c.Decay,
		MinTemperature:     c.MinTemperature,
		MaxIterations:      c.MaxIterations,
		Epsilon:            c.Epsilon,
		Patience:           c.Patience,
		TargetEdgeLength:   c.TargetEdgeLength,
		Attraction:         c.Attraction,
		Repulsion:          c.Repulsion,
		Gravity:            c.Gravity,
		FineStart:          c.FineStart,
		InitialSpread:      c.InitialSpread,
		Seed:               c.Seed,
		Restarts:           DefaultRestarts,
	}
}

// Config converts the options to a layout configuration.
func (o Options) Config() drl.Config {
	grid := density.DefaultConfig()
	grid.Size = o.GridSize
	grid.ViewSize = o.ViewSize
	grid.Radius = o.Radius
	grid.FineRadius = o.FineRadius
	if o.MaxGridBytes > 0 {
		grid.MaxBytes = o.MaxGridBytes
	}
	return drl.Config{
		Grid:               grid,
		InitialTemperature: o.InitialTemperature,
		Decay:              o.Decay,
		MinTemperature:     o.MinTemperature,
		MaxIterations:      o.MaxIterations,
		Epsilon:            o.Epsilon,
		Patience:           o.Patience,
		TargetEdgeLength:   o.TargetEdgeLength,
		Attraction:         o.Attraction,
		Repulsion:          o.Repulsion,
		Gravity:            o.Gravity,
		FineStart:          o.FineStart,
		InitialSpread:      o.InitialSpread,
		Seed:               o.Seed,
		Parallel:           o.Parallel,
		Workers:            o.Workers,
	}
}

// ValidateForLayout checks the options needed to run a layout.
func (o Options) ValidateForLayout() error {
	if o.Restarts < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "restarts must not be negative, got %d", o.Restarts)
	}
	if o.Timeout < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "timeout must not be negative, got %s", o.Timeout)
	}
	return o.Config().Validate()
}

// keyParams strips fields that do not change the computed positions.
func (o Options) keyParams() Options {
	o.MaxGridBytes = 0
	o.Workers = 0
	o.Refresh = false
	return o
}

// ApplyConfig overrides options with values from the "layout" table of a settings
// store. Keys absent from the store leave the option unchanged.
func (o *Options) ApplyConfig(s *config.Store) error {
	ints := []struct {
		key string
		dst *int
	}{
		{"layout.grid_size", &o.GridSize},
		{"layout.radius", &o.Radius},
		{"layout.fine_radius", &o.FineRadius},
		{"layout.max_iterations", &o.MaxIterations},
		{"layout.patience", &o.Patience},
		{"layout.workers", &o.Workers},
		{"layout.restarts", &o.Restarts},
	}
	for _, f := range ints {
		v, err := s.Int(f.key, *f.dst)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"layout.view_size", &o.ViewSize},
		{"layout.initial_temperature", &o.InitialTemperature},
		{"layout.decay", &o.Decay},
		{"layout.min_temperature", &o.MinTemperature},
		{"layout.epsilon", &o.Epsilon},
		{"layout.target_edge_length", &o.TargetEdgeLength},
		{"layout.attraction", &o.Attraction},
		{"layout.repulsion", &o.Repulsion},
		{"layout.gravity", &o.Gravity},
		{"layout.fine_start", &o.FineStart},
		{"layout.initial_spread", &o.InitialSpread},
	}
	for _, f := range floats {
		v, err := s.Float(f.key, *f.dst)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	budget, err := s.Int("layout.max_grid_bytes", int(o.MaxGridBytes))
	if err != nil {
		return err
	}
	o.MaxGridBytes = int64(budget)
	if o.Seed, err = s.Uint64("layout.seed", o.Seed); err != nil {
		return err
	}
	if o.Parallel, err = s.Bool("layout.parallel", o.Parallel); err != nil {
		return err
	}
	return nil
}

// Result holds the output of a layout run.
type Result struct {
	Layout    graph.Layout
	GraphHash string
	Stats     Stats
	CacheHit  bool
}

// Stats holds counters and timings for a run.
type Stats struct {
	NodeCount  int
	EdgeCount  int
	Iterations int
	Restarts   int
	LayoutTime time.Duration
}

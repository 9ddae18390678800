package drl

import (
	"context"
	"io"
	"math/rand/v2"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/drl3d/pkg/core/density"
	"github.com/matzehuels/drl3d/pkg/errors"
)

// State is the lifecycle state of a layout run.
type State uint8

const (
	Uninitialized State = iota
	Running
	Converged
	Aborted
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Running:
		return "running"
	case Converged:
		return "converged"
	case Aborted:
		return "aborted"
	}
	return "unknown"
}

// Terminal reports whether no further iterations will run.
func (s State) Terminal() bool { return s == Converged || s == Aborted }

// Why a run converged.
const (
	ReasonStable        = "stable"
	ReasonCooled        = "cooled"
	ReasonMaxIterations = "max-iterations"
)

// Frame describes one completed iteration. Positions aliases the scheduler's
// last-good buffer and must not be retained past the callback.
type Frame struct {
	Iteration       int
	Temperature     float64
	MaxDisplacement float64
	Fine            bool
	Positions       []r3.Vec
}

// Observer is notified after every successful iteration.
type Observer func(Frame)

// Result summarizes a finished run.
type Result struct {
	State       State
	Reason      string
	Iterations  int
	Temperature float64
	Positions   []r3.Vec
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger used for run milestones.
func WithLogger(l *log.Logger) Option { return func(s *Scheduler) { s.logger = l } }

// WithObserver registers a per-iteration callback.
func WithObserver(o Observer) Option { return func(s *Scheduler) { s.observers = append(s.observers, o) } }

// Scheduler drives the annealing loop. It owns node positions and the density grid
// exclusively for the duration of a run and is not safe for concurrent use.
type Scheduler struct {
	cfg   Config
	g     *Graph
	grid  *density.Grid
	force *ForceAccumulator

	pos      []r3.Vec
	lastGood []r3.Vec
	disp     []r3.Vec

	state    State
	reason   string
	err      error
	iter     int
	temp     float64
	calm     int
	fineFrom int

	logger    *log.Logger
	observers []Observer
}

// NewScheduler validates cfg, allocates the density grid and draws initial
// positions. Nodes with HasPos keep their position; the rest are placed uniformly
// in a cube of side InitialSpread using cfg.Seed.
func NewScheduler(g *Graph, cfg Config, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	grid, err := density.New(cfg.Grid, g.NodeCount())
	if err != nil {
		return nil, err
	}
	spacing := cfg.SampleDistance
	if spacing == 0 {
		spacing = grid.CellSize()
	}

	s := &Scheduler{
		cfg:      cfg,
		g:        g,
		grid:     grid,
		force:    NewForceAccumulator(cfg, spacing),
		pos:      make([]r3.Vec, g.NodeCount()),
		lastGood: make([]r3.Vec, g.NodeCount()),
		disp:     make([]r3.Vec, g.NodeCount()),
		temp:     cfg.InitialTemperature,
		fineFrom: cfg.fineFrom(),
		logger:   log.NewWithOptions(io.Discard, log.Options{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0xdeadbeef))
	half := cfg.InitialSpread / 2
	for i, n := range g.Nodes {
		// Draw for every node so seeded positions don't shift the stream.
		p := r3.Vec{
			X: (rng.Float64()*2 - 1) * half,
			Y: (rng.Float64()*2 - 1) * half,
			Z: (rng.Float64()*2 - 1) * half,
		}
		if n.HasPos {
			p = n.Pos
		}
		s.pos[i] = p
	}
	copy(s.lastGood, s.pos)
	return s, nil
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State { return s.state }

// Reason returns why the run converged, or "" if it has not.
func (s *Scheduler) Reason() string { return s.reason }

// Err returns the error that aborted the run.
func (s *Scheduler) Err() error { return s.err }

// Iteration returns the number of completed iterations.
func (s *Scheduler) Iteration() int { return s.iter }

// Temperature returns the current step limit.
func (s *Scheduler) Temperature() float64 { return s.temp }

// Grid exposes the density grid for inspection.
func (s *Scheduler) Grid() *density.Grid { return s.grid }

// Displacement returns the last step applied to node i.
func (s *Scheduler) Displacement(i int) r3.Vec { return s.disp[i] }

// Positions returns a copy of the node positions. After an abort these are the
// positions at the end of the last successful iteration.
func (s *Scheduler) Positions() []r3.Vec {
	src := s.pos
	if s.state == Aborted {
		src = s.lastGood
	}
	out := make([]r3.Vec, len(src))
	copy(out, src)
	return out
}

// SetPosition moves node i between iterations. The grid is reconciled on the next
// step, and the position is validated there too.
func (s *Scheduler) SetPosition(i int, p r3.Vec) error {
	if s.state.Terminal() {
		return errors.New(errors.ErrCodeInvariant, "cannot move node after run is %s", s.state)
	}
	if i < 0 || i >= len(s.pos) {
		return errors.New(errors.ErrCodeInvalidInput, "node index %d out of range [0,%d)", i, len(s.pos))
	}
	s.pos[i] = p
	return nil
}

// Apply writes the current positions back into the graph.
func (s *Scheduler) Apply() {
	for i, p := range s.Positions() {
		s.g.Nodes[i].Pos = p
		s.g.Nodes[i].HasPos = true
	}
}

// Run steps until the run converges, aborts or ctx is canceled. Cancellation is
// observed only between iterations.
func (s *Scheduler) Run(ctx context.Context) (Result, error) {
	for !s.state.Terminal() {
		if err := s.Step(ctx); err != nil {
			return s.result(), err
		}
	}
	return s.result(), s.err
}

func (s *Scheduler) result() Result {
	return Result{
		State:       s.state,
		Reason:      s.reason,
		Iterations:  s.iter,
		Temperature: s.temp,
		Positions:   s.Positions(),
	}
}

// Step runs one iteration. On a terminal scheduler it returns the abort error, if
// any, without doing work.
func (s *Scheduler) Step(ctx context.Context) error {
	if s.state.Terminal() {
		return s.err
	}
	if err := ctx.Err(); err != nil {
		return s.abort(errors.Wrap(errors.ErrCodeCanceled, err, "layout canceled after %d iterations", s.iter))
	}
	if err := s.checkPositions(); err != nil {
		return s.abort(err)
	}
	fine := s.iter >= s.fineFrom
	if s.state == Uninitialized {
		if err := s.populate(fine); err != nil {
			return s.abort(err)
		}
		s.state = Running
		s.logger.Debug("layout started", "nodes", s.g.NodeCount(), "edges", s.g.EdgeCount(), "parallel", s.cfg.Parallel)
	}

	if fine && s.iter == s.fineFrom {
		s.logger.Debug("switching to fine density", "iteration", s.iter, "temperature", s.temp)
	}
	centroid := s.centroid()

	var (
		maxDisp float64
		err     error
	)
	if s.cfg.Parallel {
		maxDisp, err = s.iterateParallel(fine, centroid)
	} else {
		maxDisp, err = s.iterate(fine, centroid)
	}
	if err != nil {
		return s.abort(err)
	}

	copy(s.lastGood, s.pos)
	s.iter++
	s.temp *= s.cfg.Decay
	s.notify(Frame{Iteration: s.iter, Temperature: s.temp, MaxDisplacement: maxDisp, Fine: fine, Positions: s.lastGood})

	if maxDisp < s.cfg.Epsilon {
		s.calm++
	} else {
		s.calm = 0
	}
	switch {
	case s.calm >= s.cfg.Patience:
		return s.converge(ReasonStable)
	case s.temp < s.cfg.MinTemperature:
		return s.converge(ReasonCooled)
	case s.iter >= s.cfg.MaxIterations:
		return s.converge(ReasonMaxIterations)
	}
	return nil
}

// iterate moves nodes one at a time: each node is lifted out of the grid, reads the
// field left by the others and is deposited at its new position.
func (s *Scheduler) iterate(fine bool, centroid r3.Vec) (float64, error) {
	var maxDisp float64
	for i := range s.pos {
		if err := s.grid.Subtract(i); err != nil {
			return 0, err
		}
		d, err := s.force.Displacement(s.g, s.pos, i, s.grid, fine, centroid, s.temp)
		if err != nil {
			return 0, s.numerical(err)
		}
		step, err := s.place(i, d, fine)
		if err != nil {
			return 0, err
		}
		maxDisp = max(maxDisp, step)
	}
	return maxDisp, nil
}

// place moves node i by d, keeps it inside the grid interior and deposits it.
// It returns the length of the step actually taken.
func (s *Scheduler) place(i int, d r3.Vec, fine bool) (float64, error) {
	old := s.pos[i]
	next := s.grid.Clamp(r3.Add(old, d))
	if err := s.grid.Add(i, next, fine); err != nil {
		return 0, err
	}
	s.pos[i] = next
	s.disp[i] = r3.Sub(next, old)
	return r3.Norm(s.disp[i]), nil
}

// populate deposits every node before the first iteration so each one sees the
// full field from the start.
func (s *Scheduler) populate(fine bool) error {
	for i, p := range s.pos {
		s.pos[i] = s.grid.Clamp(p)
		if err := s.grid.Add(i, s.pos[i], fine); err != nil {
			return err
		}
	}
	copy(s.lastGood, s.pos)
	return nil
}

func (s *Scheduler) checkPositions() error {
	for i, p := range s.pos {
		if !finite(p) {
			return s.numerical(&NumericalError{Index: i, NodeID: s.g.Nodes[i].ID, Value: p, Where: "position"})
		}
	}
	return nil
}

func (s *Scheduler) numerical(err error) error {
	if _, ok := err.(*NumericalError); ok {
		return errors.Wrap(errors.ErrCodeNumerical, err, "iteration %d", s.iter)
	}
	return err
}

func (s *Scheduler) centroid() r3.Vec {
	if len(s.pos) == 0 {
		return r3.Vec{}
	}
	var c r3.Vec
	for _, p := range s.pos {
		c = r3.Add(c, p)
	}
	return r3.Scale(1/float64(len(s.pos)), c)
}

func (s *Scheduler) notify(f Frame) {
	for _, o := range s.observers {
		o(f)
	}
}

// converge finishes the run, unless the grid fails its consistency check, in which
// case the run aborts with that error.
func (s *Scheduler) converge(reason string) error {
	if err := s.grid.Check(); err != nil {
		return s.abort(err)
	}
	s.state = Converged
	s.reason = reason
	s.logger.Debug("layout converged", "reason", reason, "iterations", s.iter, "temperature", s.temp)
	return nil
}

func (s *Scheduler) abort(err error) error {
	s.state = Aborted
	s.err = err
	s.logger.Warn("layout aborted", "iteration", s.iter, "err", err)
	return err
}

package server

import (
	"context"
	"sync"
	"time"

	"github.com/matzehuels/drl3d/pkg/core/drl"
	"github.com/matzehuels/drl3d/pkg/graph"
)

// Run states reported by the API. Terminal states match drl.State names.
const (
	StateQueued  = "queued"
	StateRunning = "running"
)

// Status is the JSON view of a layout run.
type Status struct {
	ID              string        `json:"id"`
	State           string        `json:"state"`
	Iteration       int           `json:"iteration"`
	Temperature     float64       `json:"temperature,omitempty"`
	MaxDisplacement float64       `json:"max_displacement,omitempty"`
	Fine            bool          `json:"fine,omitempty"`
	Positions       []graph.Vec   `json:"positions,omitempty"`
	CacheHit        bool          `json:"cache_hit,omitempty"`
	Error           string        `json:"error,omitempty"`
	Layout          *graph.Layout `json:"layout,omitempty"`
}

// Terminal reports whether the run has finished.
func (s Status) Terminal() bool {
	return s.State != StateQueued && s.State != StateRunning
}

// run tracks one asynchronous layout. The observer writes frames from the
// annealing goroutine while handlers read snapshots.
type run struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	status Status
}

func newRun(id string, cancel context.CancelFunc) *run {
	return &run{
		cancel: cancel,
		done:   make(chan struct{}),
		status: Status{ID: id, State: StateQueued},
	}
}

func (r *run) observe(f drl.Frame) {
	pos := make([]graph.Vec, len(f.Positions))
	for i, p := range f.Positions {
		pos[i] = graph.FromR3(p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.State = StateRunning
	r.status.Iteration = f.Iteration
	r.status.Temperature = f.Temperature
	r.status.MaxDisplacement = f.MaxDisplacement
	r.status.Fine = f.Fine
	r.status.Positions = pos
}

func (r *run) finish(l *graph.Layout, cacheHit bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Positions = nil
	r.status.CacheHit = cacheHit
	if l != nil {
		r.status.State = l.State
		r.status.Iteration = l.Iterations
		r.status.Temperature = l.Temperature
		r.status.Layout = l
	} else {
		r.status.State = drl.Aborted.String()
	}
	if err != nil {
		r.status.Error = err.Error()
	}
	close(r.done)
}

func (r *run) snapshot() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// registry holds runs in memory until they expire.
type registry struct {
	mu     sync.Mutex
	runs   map[string]*run
	wg     sync.WaitGroup
	retain time.Duration
}

func newRegistry(retain time.Duration) *registry {
	return &registry{runs: make(map[string]*run), retain: retain}
}

func (g *registry) add(id string, r *run) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.runs[id] = r
}

func (g *registry) get(id string) (*run, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.runs[id]
	return r, ok
}

// expire drops a finished run after the retention period.
func (g *registry) expire(id string) {
	time.AfterFunc(g.retain, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.runs, id)
	})
}

func (g *registry) active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, r := range g.runs {
		select {
		case <-r.done:
		default:
			n++
		}
	}
	return n
}

// cancelAll cancels every run and waits for their goroutines.
func (g *registry) cancelAll() {
	g.mu.Lock()
	for _, r := range g.runs {
		r.cancel()
	}
	g.mu.Unlock()
	g.wg.Wait()
}

package drl

import (
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// iterateParallel computes every displacement against the grid as it stood at the
// start of the iteration, then applies the moves in index order. Each node reads the
// field with its own contribution excluded, so the result does not depend on the
// number of workers.
func (s *Scheduler) iterateParallel(fine bool, centroid r3.Vec) (float64, error) {
	n := len(s.pos)
	if n == 0 {
		return 0, nil
	}
	steps := make([]r3.Vec, n)

	workers := min(s.cfg.workers(), n)
	chunk := (n + workers - 1) / workers

	// Workers only read the grid; nothing writes to it until Wait returns.
	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				d, err := s.force.Displacement(s.g, s.pos, i, s.grid, fine, centroid, s.temp)
				if err != nil {
					return s.numerical(err)
				}
				steps[i] = d
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var maxDisp float64
	for i := range s.pos {
		if err := s.grid.Subtract(i); err != nil {
			return 0, err
		}
		step, err := s.place(i, steps[i], fine)
		if err != nil {
			return 0, err
		}
		maxDisp = max(maxDisp, step)
	}
	return maxDisp, nil
}

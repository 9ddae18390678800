// Package drl lays out weighted graphs in three dimensions with the DrL
// force-directed algorithm.
//
// Each iteration moves every node once. A node is pulled toward its neighbours by
// edge springs, pushed away from crowded regions by the gradient of the
// [density.Grid] field, and drawn weakly toward the layout centroid. The step is
// divided by the node's mass and clamped to the current temperature, which decays
// geometrically so the layout anneals from large moves to fine adjustments.
//
// # Schedule
//
// The run starts on the coarse density field and switches to the fine field, with
// its near-field term, after Config.FineStart of the iteration budget. It ends as:
//
//   - Converged: the largest displacement stayed below Epsilon for Patience
//     iterations, the temperature fell below MinTemperature, or MaxIterations ran.
//     [Scheduler.Reason] says which.
//   - Aborted: a node position or force became non-finite, the grid rejected an
//     update, or the context was canceled. [Scheduler.Positions] then returns the
//     positions from the last successful iteration.
//
// # Usage
//
//	g := drl.NewGraph()
//	a, _ := g.AddNode("a", 1)
//	b, _ := g.AddNode("b", 1)
//	_ = g.AddEdge("a", "b", 1)
//
//	s, err := drl.NewScheduler(g, drl.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	res, err := s.Run(ctx)
//
// # Parallel mode
//
// With Config.Parallel set, displacements are computed concurrently against a
// snapshot of the grid and applied afterwards in index order. The outcome is
// deterministic for a given seed but differs from the sequential mode, where each
// node sees the moves already made earlier in the same iteration.
package drl

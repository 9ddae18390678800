package drl_test

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/drl3d/pkg/core/drl"
)

func ExampleScheduler() {
	g := drl.NewGraph()
	a, _ := g.AddNode("a", 1)
	b, _ := g.AddNode("b", 1)
	_ = g.AddEdge("a", "b", 1)
	g.SetInitialPosition(a, r3.Vec{})
	g.SetInitialPosition(b, r3.Vec{X: 30})

	// Springs only: the pair settles at the target edge length.
	cfg := drl.DefaultConfig()
	cfg.Repulsion, cfg.Gravity = 0, 0

	s, err := drl.NewScheduler(g, cfg)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	res, err := s.Run(context.Background())
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	fmt.Println("state:", res.State, res.Reason)
	fmt.Printf("distance: %.1f\n", r3.Norm(r3.Sub(res.Positions[b], res.Positions[a])))
	// Output:
	// state: converged stable
	// distance: 10.0
}

package graph_test

import (
	"fmt"
	"strings"

	"github.com/matzehuels/drl3d/pkg/graph"
)

func ExampleReadGraph() {
	jsonData := `{
		"nodes": [
			{"id": "a"},
			{"id": "b", "weight": 2, "pos": [0, 0, 10]}
		],
		"edges": [
			{"from": "a", "to": "b"}
		]
	}`

	g, err := graph.ReadGraph(strings.NewReader(jsonData))
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	dg, err := g.ToDRL()
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	fmt.Println("Nodes:", dg.NodeCount())
	fmt.Println("Edges:", dg.EdgeCount())
	fmt.Println("b mass:", dg.Nodes[1].Mass)
	fmt.Println("b seeded:", dg.Nodes[1].HasPos)
	// Output:
	// Nodes: 2
	// Edges: 1
	// b mass: 2
	// b seeded: true
}

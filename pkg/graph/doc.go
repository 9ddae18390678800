// Package graph provides the wire types for input graphs and computed layouts.
//
// It sits at the serialization boundary between files or HTTP bodies and the
// layout core:
//
//   - [Graph], [Layout]: serialization types (this package)
//   - drl.Graph: the index-based graph the scheduler runs on
//
// Use [Graph.ToDRL] and [NewLayout] to convert between them.
//
// # Graph Serialization
//
// Graphs use a node-link JSON format. Weights default to 1 and pos is optional;
// nodes without one are placed from the run's seed:
//
//	{
//	  "nodes": [{"id": "a", "weight": 2}, {"id": "b", "pos": [0, 0, 10]}],
//	  "edges": [{"from": "a", "to": "b", "weight": 0.5}]
//	}
//
// Edges are undirected for layout purposes; from/to order is preserved on output.
//
// # Layout Serialization
//
// A [Layout] carries the run id, the final state and the position of every node:
//
//	{
//	  "run_id": "4f0c…",
//	  "state": "converged",
//	  "reason": "stable",
//	  "iterations": 412,
//	  "nodes": [{"id": "a", "pos": [1.5, -3.2, 0.7]}, …],
//	  "edges": […],
//	  "bounds": {"min": […], "max": […]}
//	}
//
// [WriteDOT] emits the same layout as Graphviz DOT with pinned pos attributes,
// and [RenderSVG] draws its x/y projection.
package graph

// Package pkg provides the core libraries for drl3d, a three-dimensional
// force-directed graph layout engine.
//
// # Overview
//
// drl3d places the nodes of an undirected, weighted graph in 3D space using the
// DrL annealing scheme: edges act as springs, a voxel density grid pushes nodes
// away from crowded regions, and a temperature that decays every iteration bounds
// how far any node may move. The pkg directory is organized into these areas:
//
//  1. [core] - Layout algorithms (density grid, force accumulation, scheduling)
//  2. [graph] - Wire types for graphs and layouts (JSON, DOT, SVG preview)
//  3. [pipeline] - Orchestration (validate, cache lookup, anneal, restart)
//  4. [cache] - Layout caches (file, Redis, MongoDB)
//  5. [server] - HTTP service for asynchronous layout runs
//
// # Architecture
//
// The typical data flow:
//
//	graph.json
//	    ↓
//	[graph] package (decode, validate, convert)
//	    ↓
//	[core/drl] package (anneal against a [core/density] grid)
//	    ↓
//	[pipeline] package (cache, restarts, hooks)
//	    ↓
//	JSON/DOT/SVG output
//
// # Quick Start
//
// Lay out a graph with the default parameters:
//
//	import (
//	    "context"
//	    "github.com/matzehuels/drl3d/pkg/graph"
//	    "github.com/matzehuels/drl3d/pkg/pipeline"
//	)
//
//	g, _ := graph.ReadGraphFile("graph.json")
//	runner := pipeline.NewRunner(nil, nil, nil)
//	res, _ := runner.Layout(context.Background(), g, pipeline.DefaultOptions())
//	_ = graph.WriteLayoutFile(res.Layout, "graph.layout.json")
//
// # Main Packages
//
// [core/density] - SpatialDensityGrid: a cubic voxel grid that accumulates a
// cone-shaped density footprint per placed node and answers coarse or fine
// density queries, with a wall value near the boundary.
//
// [core/drl] - Graph, ForceAccumulator and Scheduler. The scheduler runs the
// cooling loop, keeps the density grid consistent with every move, and reports
// a Converged or Aborted result.
//
// [graph] - Serialization types: Graph (input), Layout (output), plus DOT export
// and SVG preview through Graphviz.
//
// [pipeline] - Options with layered defaults, and a Runner that caches layouts
// by graph hash and restarts runs that fail numerically.
//
// [cache] - Cache interface with FileCache, RedisCache, MongoCache and
// NullCache implementations, and Keyer for cache key construction.
//
// [server] - chi-based HTTP API: submit a layout run, poll its progress, fetch
// the result as JSON, DOT or SVG, cancel it.
//
// ## Supporting Packages
//
// [config] - TOML-backed key/value settings.
//
// [errors] - Error codes shared by the CLI and the HTTP API.
//
// [observability] - Hook interfaces for layout, cache and HTTP events.
//
// [buildinfo] - Version information set at build time.
//
// [core]: https://pkg.go.dev/github.com/matzehuels/drl3d/pkg/core
// [core/density]: https://pkg.go.dev/github.com/matzehuels/drl3d/pkg/core/density
// [core/drl]: https://pkg.go.dev/github.com/matzehuels/drl3d/pkg/core/drl
// [graph]: https://pkg.go.dev/github.com/matzehuels/drl3d/pkg/graph
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/drl3d/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/matzehuels/drl3d/pkg/cache
// [server]: https://pkg.go.dev/github.com/matzehuels/drl3d/pkg/server
// [config]: https://pkg.go.dev/github.com/matzehuels/drl3d/pkg/config
// [errors]: https://pkg.go.dev/github.com/matzehuels/drl3d/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/drl3d/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/drl3d/pkg/buildinfo
package pkg

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/drl3d/pkg/config"
	"github.com/matzehuels/drl3d/pkg/core/drl"
	"github.com/matzehuels/drl3d/pkg/graph"
	"github.com/matzehuels/drl3d/pkg/pipeline"
)

// layoutFlagFields copies each flag's option field. Only flags set on the
// command line override the config file.
var layoutFlagFields = map[string]func(dst *pipeline.Options, src pipeline.Options){
	"grid-size":       func(d *pipeline.Options, s pipeline.Options) { d.GridSize = s.GridSize },
	"view-size":       func(d *pipeline.Options, s pipeline.Options) { d.ViewSize = s.ViewSize },
	"radius":          func(d *pipeline.Options, s pipeline.Options) { d.Radius = s.Radius },
	"fine-radius":     func(d *pipeline.Options, s pipeline.Options) { d.FineRadius = s.FineRadius },
	"max-grid-bytes":  func(d *pipeline.Options, s pipeline.Options) { d.MaxGridBytes = s.MaxGridBytes },
	"temperature":     func(d *pipeline.Options, s pipeline.Options) { d.InitialTemperature = s.InitialTemperature },
	"decay":           func(d *pipeline.Options, s pipeline.Options) { d.Decay = s.Decay },
	"min-temperature": func(d *pipeline.Options, s pipeline.Options) { d.MinTemperature = s.MinTemperature },
	"max-iterations":  func(d *pipeline.Options, s pipeline.Options) { d.MaxIterations = s.MaxIterations },
	"epsilon":         func(d *pipeline.Options, s pipeline.Options) { d.Epsilon = s.Epsilon },
	"patience":        func(d *pipeline.Options, s pipeline.Options) { d.Patience = s.Patience },
	"edge-length":     func(d *pipeline.Options, s pipeline.Options) { d.TargetEdgeLength = s.TargetEdgeLength },
	"attraction":      func(d *pipeline.Options, s pipeline.Options) { d.Attraction = s.Attraction },
	"repulsion":       func(d *pipeline.Options, s pipeline.Options) { d.Repulsion = s.Repulsion },
	"gravity":         func(d *pipeline.Options, s pipeline.Options) { d.Gravity = s.Gravity },
	"fine-start":      func(d *pipeline.Options, s pipeline.Options) { d.FineStart = s.FineStart },
	"spread":          func(d *pipeline.Options, s pipeline.Options) { d.InitialSpread = s.InitialSpread },
	"seed":            func(d *pipeline.Options, s pipeline.Options) { d.Seed = s.Seed },
	"parallel":        func(d *pipeline.Options, s pipeline.Options) { d.Parallel = s.Parallel },
	"workers":         func(d *pipeline.Options, s pipeline.Options) { d.Workers = s.Workers },
	"restarts":        func(d *pipeline.Options, s pipeline.Options) { d.Restarts = s.Restarts },
	"refresh":         func(d *pipeline.Options, s pipeline.Options) { d.Refresh = s.Refresh },
	"timeout":         func(d *pipeline.Options, s pipeline.Options) { d.Timeout = s.Timeout },
}

// registerLayoutFlags binds the layout option flags to opts, showing the
// built-in defaults.
func registerLayoutFlags(cmd *cobra.Command, opts *pipeline.Options) {
	f := cmd.Flags()

	// Grid
	f.IntVar(&opts.GridSize, "grid-size", opts.GridSize, "density grid cells per axis")
	f.Float64Var(&opts.ViewSize, "view-size", opts.ViewSize, "world-space edge length of the grid cube")
	f.IntVar(&opts.Radius, "radius", opts.Radius, "coarse kernel radius in cells")
	f.IntVar(&opts.FineRadius, "fine-radius", opts.FineRadius, "fine near-field radius in cells")
	f.Int64Var(&opts.MaxGridBytes, "max-grid-bytes", opts.MaxGridBytes, "memory budget for the density grid")

	// Annealing
	f.Float64Var(&opts.InitialTemperature, "temperature", opts.InitialTemperature, "initial temperature (longest step)")
	f.Float64Var(&opts.Decay, "decay", opts.Decay, "temperature decay per iteration, in (0,1)")
	f.Float64Var(&opts.MinTemperature, "min-temperature", opts.MinTemperature, "stop once the temperature falls below this")
	f.IntVar(&opts.MaxIterations, "max-iterations", opts.MaxIterations, "iteration budget")
	f.Float64Var(&opts.Epsilon, "epsilon", opts.Epsilon, "largest step counted as calm")
	f.IntVar(&opts.Patience, "patience", opts.Patience, "calm iterations required to stop")

	// Forces
	f.Float64Var(&opts.TargetEdgeLength, "edge-length", opts.TargetEdgeLength, "spring rest length")
	f.Float64Var(&opts.Attraction, "attraction", opts.Attraction, "spring coefficient")
	f.Float64Var(&opts.Repulsion, "repulsion", opts.Repulsion, "density repulsion coefficient")
	f.Float64Var(&opts.Gravity, "gravity", opts.Gravity, "pull toward the centroid")
	f.Float64Var(&opts.FineStart, "fine-start", opts.FineStart, "fraction of the budget after which fine density is used")

	// Placement and execution
	f.Float64Var(&opts.InitialSpread, "spread", opts.InitialSpread, "edge of the initial placement cube")
	f.Uint64Var(&opts.Seed, "seed", opts.Seed, "initial placement seed")
	f.BoolVar(&opts.Parallel, "parallel", opts.Parallel, "compute forces concurrently")
	f.IntVar(&opts.Workers, "workers", opts.Workers, "parallel workers (0 = GOMAXPROCS)")
	f.IntVar(&opts.Restarts, "restarts", opts.Restarts, "restarts after a numerical failure")
	f.BoolVar(&opts.Refresh, "refresh", opts.Refresh, "recompute even if a cached layout exists")
	f.DurationVar(&opts.Timeout, "timeout", opts.Timeout, "abort the run after this long (0 = no limit)")
}

// resolveOptions layers explicit flags over the config file over defaults.
func resolveOptions(cmd *cobra.Command, store *config.Store, flags pipeline.Options) (pipeline.Options, error) {
	opts := pipeline.DefaultOptions()
	if err := opts.ApplyConfig(store); err != nil {
		return pipeline.Options{}, err
	}
	for name, copyField := range layoutFlagFields {
		if cmd.Flags().Changed(name) {
			copyField(&opts, flags)
		}
	}
	return opts, nil
}

// layoutCommand creates the layout command.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		output   string
		format   string
		progress bool
		cf       cacheFlags
	)
	opts := pipeline.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "layout [graph.json]",
		Short: "Compute 3D positions for a graph",
		Long: `Compute 3D positions for a graph.

The input is a JSON graph: {"nodes":[{"id":"a"}], "edges":[{"from":"a","to":"b"}]}.
Nodes may carry a weight (mass) and a pos [x,y,z] to start from; edges may carry
a weight.

The output is a layout in JSON (default), DOT with pinned pos="x,y,z!" attributes,
or an SVG preview of the x/y projection.

Results are cached locally; --refresh recomputes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := pipeline.ValidateFormat(format); err != nil {
				return err
			}
			store, err := c.loadConfig()
			if err != nil {
				return err
			}
			resolved, err := resolveOptions(cmd, store, opts)
			if err != nil {
				return err
			}
			return c.runLayout(cmd.Context(), args[0], store, resolved, layoutOutput{path: output, format: format}, cf, progress)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout (default: <input>.layout.<format>)")
	cmd.Flags().StringVarP(&format, "format", "f", pipeline.DefaultFormat, "output format: json, dot, svg")
	cmd.Flags().BoolVar(&progress, "progress", false, "show a live progress display")
	cf.register(cmd)
	registerLayoutFlags(cmd, &opts)

	return cmd
}

type layoutOutput struct {
	path   string
	format string
}

// resolve returns the output path, deriving it from input when unset.
func (o layoutOutput) resolve(input string) string {
	if o.path != "" {
		return o.path
	}
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + ".layout." + o.format
}

// runLayout loads the graph, computes the layout, and writes output.
func (c *CLI) runLayout(ctx context.Context, input string, store *config.Store, opts pipeline.Options, out layoutOutput, cf cacheFlags, showProgress bool) error {
	logger := loggerFromContext(ctx)
	g, err := graph.ReadGraphFile(input)
	if err != nil {
		return fmt.Errorf("load graph %s: %w", input, err)
	}

	runner, err := c.newRunner(ctx, store, cf)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	var res *pipeline.Result
	compute := func(ctx context.Context, observe drl.Observer) error {
		o := opts
		o.Observer = observe
		var err error
		res, err = runner.Layout(ctx, g, o)
		return err
	}

	title := fmt.Sprintf("Laying out %d nodes", len(g.Nodes))
	if showProgress {
		err = runWithProgress(ctx, title, opts.MaxIterations, compute)
	} else {
		spinner := newSpinnerWithContext(ctx, title+"...")
		spinner.Start()
		var last time.Time
		err = compute(ctx, func(f drl.Frame) {
			if time.Since(last) < 100*time.Millisecond {
				return
			}
			last = time.Now()
			spinner.SetMessage("%s · iteration %d/%d · T %.3g", title, f.Iteration, opts.MaxIterations, f.Temperature)
		})
		spinner.Stop()
	}

	if res == nil {
		printError("Layout failed")
		return fmt.Errorf("compute layout: %w", err)
	}

	path := out.resolve(input)
	written := newProgress(logger)
	if werr := writeLayout(ctx, res.Layout, out.format, path); werr != nil {
		return fmt.Errorf("write output %s: %w", path, werr)
	}
	if path != "-" {
		written.done("Wrote " + path)
	}

	if err != nil {
		printWarning("Layout aborted after %d iterations; wrote last good positions", res.Layout.Iterations)
		if path != "-" {
			printFile(path)
		}
		return fmt.Errorf("compute layout: %w", err)
	}

	if path == "-" {
		return nil
	}
	printRunSummary(res.Layout.State, res.Layout.Reason, res.Stats, res.CacheHit)
	printFile(path)
	if out.format == pipeline.FormatJSON {
		fmt.Println()
		printNextStep("Preview", fmt.Sprintf("%s layout %s --format svg", appName, input))
	}
	return nil
}

// writeLayout encodes l in format to path, or to stdout when path is "-".
func writeLayout(ctx context.Context, l graph.Layout, format, path string) error {
	w := os.Stdout
	if path != "-" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	switch format {
	case pipeline.FormatDOT:
		return graph.WriteDOT(l, w)
	case pipeline.FormatSVG:
		svg, err := graph.RenderSVG(ctx, l)
		if err != nil {
			return err
		}
		_, err = w.Write(svg)
		return err
	default:
		return graph.WriteLayout(l, w)
	}
}

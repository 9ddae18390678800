package pipeline

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/drl3d/pkg/cache"
	"github.com/matzehuels/drl3d/pkg/core/drl"
	"github.com/matzehuels/drl3d/pkg/errors"
	"github.com/matzehuels/drl3d/pkg/graph"
	"github.com/matzehuels/drl3d/pkg/observability"
)

// Runner executes layouts with caching.
//
// The Runner is stateless except for the cache and logger, so multiple
// goroutines can share one Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// newScheduler builds the scheduler for each attempt; nil means drl.NewScheduler.
	newScheduler func(g *drl.Graph, cfg drl.Config, opts ...drl.Option) (*drl.Scheduler, error)
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Layout computes positions for g, or returns a cached layout for the same graph
// and parameters.
//
// When the run aborts after annealing started, the returned Result is non-nil and
// holds the last good positions alongside the error.
func (r *Runner) Layout(ctx context.Context, g graph.Graph, opts Options) (*Result, error) {
	if err := opts.ValidateForLayout(); err != nil {
		return nil, err
	}
	r.applyLogger(&opts)
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}

	dg, err := g.ToDRL()
	if err != nil {
		return nil, err
	}
	hash, err := cache.HashJSON(g)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "fingerprint graph")
	}
	key := r.Keyer.LayoutKey(hash, opts.keyParams())

	result := &Result{GraphHash: hash}
	result.Stats.NodeCount = dg.NodeCount()
	result.Stats.EdgeCount = dg.EdgeCount()

	if !opts.Refresh {
		if l, ok := r.cached(ctx, key); ok {
			l.RunID = opts.RunID
			result.Layout = l
			result.CacheHit = true
			result.Stats.Iterations = l.Iterations
			result.Stats.Restarts = l.Restarts
			opts.Logger.Info("layout cache hit", "run", opts.RunID, "nodes", result.Stats.NodeCount)
			return result, nil
		}
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	hooks := observability.Layout()
	hooks.OnLayoutStart(ctx, opts.RunID, dg.NodeCount(), dg.EdgeCount())
	start := time.Now()
	res, restarts, err := r.anneal(ctx, dg, opts)
	result.Stats.LayoutTime = time.Since(start)
	result.Stats.Restarts = restarts

	if res == nil {
		hooks.OnLayoutComplete(ctx, opts.RunID, drl.Aborted.String(), 0, result.Stats.LayoutTime, err)
		return nil, err
	}
	result.Stats.Iterations = res.Iterations
	result.Layout = graph.NewLayout(dg, *res)
	result.Layout.RunID = opts.RunID
	result.Layout.Restarts = restarts
	hooks.OnLayoutComplete(ctx, opts.RunID, res.State.String(), res.Iterations, result.Stats.LayoutTime, err)

	if err != nil {
		result.Layout.Error = errors.UserMessage(err)
		opts.Logger.Warn("layout aborted",
			"run", opts.RunID,
			"iterations", res.Iterations,
			"restarts", restarts,
			"err", err)
		return result, err
	}

	opts.Logger.Info("computed layout",
		"run", opts.RunID,
		"nodes", result.Stats.NodeCount,
		"edges", result.Stats.EdgeCount,
		"iterations", res.Iterations,
		"reason", res.Reason,
		"duration", result.Stats.LayoutTime)

	r.store(ctx, key, result.Layout)
	return result, nil
}

// anneal runs the scheduler, restarting from perturbed last-good positions when a
// run aborts with a numerical error. It returns a nil result only if no scheduler
// could be built.
func (r *Runner) anneal(ctx context.Context, g *drl.Graph, opts Options) (*drl.Result, int, error) {
	cfg := opts.Config()
	hooks := observability.Layout()
	observer := func(f drl.Frame) {
		hooks.OnIteration(ctx, opts.RunID, f.Iteration, f.Temperature, f.MaxDisplacement)
		if opts.Observer != nil {
			opts.Observer(f)
		}
	}

	build := r.newScheduler
	if build == nil {
		build = drl.NewScheduler
	}
	for attempt := 0; ; attempt++ {
		s, err := build(g, cfg, drl.WithLogger(opts.Logger), drl.WithObserver(observer))
		if err != nil {
			return nil, attempt, err
		}
		res, err := s.Run(ctx)
		if !shouldRestart(err, attempt, opts.Restarts) {
			return &res, attempt, err
		}

		hooks.OnRestart(ctx, opts.RunID, attempt+1, err)
		opts.Logger.Warn("restarting layout", "run", opts.RunID, "attempt", attempt+1, "err", err)
		for i, p := range drl.Perturb(res.Positions, int64(cfg.Seed)+int64(attempt), DefaultPerturbAmplitude) {
			g.SetInitialPosition(i, p)
		}
	}
}

// shouldRestart reports whether a failed run may be retried. Only numerical
// failures are retried; cancellation and invariant violations are final.
func shouldRestart(err error, attempt, limit int) bool {
	return err != nil && errors.Is(err, errors.ErrCodeNumerical) && attempt < limit
}

func (r *Runner) cached(ctx context.Context, key string) (graph.Layout, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Warn("cache read failed", "err", err)
		return graph.Layout{}, false
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, "layout")
		return graph.Layout{}, false
	}
	l, err := graph.UnmarshalLayout(data)
	if err != nil {
		observability.Cache().OnCacheMiss(ctx, "layout")
		return graph.Layout{}, false
	}
	observability.Cache().OnCacheHit(ctx, "layout")
	return l, true
}

func (r *Runner) store(ctx context.Context, key string, l graph.Layout) {
	l.RunID = ""
	data, err := graph.MarshalLayout(l)
	if err != nil {
		return
	}
	if err := r.Cache.Set(ctx, key, data, cache.TTLLayout); err != nil {
		r.Logger.Warn("cache write failed", "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "layout", len(data))
}

// Close releases resources held by the runner, including the cache connection.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

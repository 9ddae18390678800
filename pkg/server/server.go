// Package server exposes layout runs over HTTP.
//
// Routes:
//
//	POST   /v1/layouts        submit a graph, start an asynchronous run (202)
//	GET    /v1/layouts/{id}   run state, latest frame, and the layout once finished
//	DELETE /v1/layouts/{id}   cancel a run
//	GET    /healthz           liveness
//
// GET accepts ?format=dot or ?format=svg for finished runs. Finished layouts are
// written to the runner's cache under the run key, so any instance sharing that
// cache can answer GET after the in-memory record expires.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/matzehuels/drl3d/pkg/cache"
	"github.com/matzehuels/drl3d/pkg/core/density"
	"github.com/matzehuels/drl3d/pkg/errors"
	"github.com/matzehuels/drl3d/pkg/graph"
	"github.com/matzehuels/drl3d/pkg/observability"
	"github.com/matzehuels/drl3d/pkg/pipeline"
)

// Server defaults.
const (
	DefaultAddr       = ":8080"
	DefaultMaxRuns    = 4
	DefaultRetain     = time.Hour
	DefaultMaxBody    = 32 << 20
	DefaultRunTimeout = 10 * time.Minute
)

// Config configures a Server.
type Config struct {
	Addr       string
	MaxRuns    int           // concurrent runs; further submissions get 503
	Retain     time.Duration // how long finished runs stay in memory
	MaxBody    int64         // request body limit in bytes
	RunTimeout time.Duration // 0 disables the per-run deadline
	Defaults   pipeline.Options
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:       DefaultAddr,
		MaxRuns:    DefaultMaxRuns,
		Retain:     DefaultRetain,
		MaxBody:    DefaultMaxBody,
		RunTimeout: DefaultRunTimeout,
		Defaults:   pipeline.DefaultOptions(),
	}
}

// Server runs layouts on behalf of HTTP clients.
type Server struct {
	cfg    Config
	runner *pipeline.Runner
	logger *log.Logger
	runs   *registry
	slots  chan struct{}
	ctx    context.Context
	stop   context.CancelFunc
}

// New creates a server backed by runner.
func New(runner *pipeline.Runner, cfg Config, logger *log.Logger) *Server {
	if cfg.MaxRuns <= 0 {
		cfg.MaxRuns = DefaultMaxRuns
	}
	if cfg.Retain <= 0 {
		cfg.Retain = DefaultRetain
	}
	if cfg.MaxBody <= 0 {
		cfg.MaxBody = DefaultMaxBody
	}
	if logger == nil {
		logger = runner.Logger
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Server{
		cfg:    cfg,
		runner: runner,
		logger: logger,
		runs:   newRegistry(cfg.Retain),
		slots:  make(chan struct{}, cfg.MaxRuns),
		ctx:    ctx,
		stop:   stop,
	}
}

// Handler returns the HTTP handler with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.health)
	r.Route("/v1/layouts", func(r chi.Router) {
		r.Post("/", s.submit)
		r.Get("/{id}", s.status)
		r.Delete("/{id}", s.cancel)
	})
	return r
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully and
// cancels outstanding runs.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := s.cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close cancels all runs and waits for them to finish.
func (s *Server) Close() {
	s.stop()
	s.runs.cancelAll()
}

// submitRequest is the body of POST /v1/layouts.
type submitRequest struct {
	Graph   graph.Graph      `json:"graph"`
	Options *json.RawMessage `json:"options,omitempty"`
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request"))
		return
	}

	opts := s.cfg.Defaults
	if req.Options != nil {
		if err := json.Unmarshal(*req.Options, &opts); err != nil {
			s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode options"))
			return
		}
	}
	if err := opts.ValidateForLayout(); err != nil {
		s.writeError(w, err)
		return
	}
	dg, err := req.Graph.ToDRL()
	if err != nil {
		s.writeError(w, err)
		return
	}
	opts.MaxGridBytes = s.gridBudget(opts.MaxGridBytes)
	if need := opts.Config().Grid.EstimateBytes(dg.NodeCount()); need > opts.MaxGridBytes {
		s.writeError(w, errors.New(errors.ErrCodeInvalidConfig,
			"density grid of %d³ cells needs %d bytes, budget is %d", opts.GridSize, need, opts.MaxGridBytes))
		return
	}

	select {
	case s.slots <- struct{}{}:
	default:
		s.writeJSONError(w, http.StatusServiceUnavailable, "too many layouts running")
		return
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(s.ctx)
	rn := newRun(id, cancel)
	s.runs.add(id, rn)
	s.runs.wg.Add(1)

	opts.RunID = id
	opts.Observer = rn.observe
	opts.Logger = s.logger
	if opts.Timeout == 0 {
		opts.Timeout = s.cfg.RunTimeout
	}
	go s.execute(ctx, rn, req.Graph, opts)

	w.Header().Set("Location", "/v1/layouts/"+id)
	s.writeJSON(w, http.StatusAccepted, rn.snapshot())
}

// gridBudget caps a requested grid budget at the server's own. Clients may ask
// for less memory, never more.
func (s *Server) gridBudget(requested int64) int64 {
	limit := s.cfg.Defaults.MaxGridBytes
	if limit <= 0 {
		limit = density.DefaultMaxBytes
	}
	if requested <= 0 || requested > limit {
		return limit
	}
	return requested
}

func (s *Server) execute(ctx context.Context, rn *run, g graph.Graph, opts pipeline.Options) {
	defer s.runs.wg.Done()
	defer func() { <-s.slots }()
	defer rn.cancel()

	res, err := s.runner.Layout(ctx, g, opts)
	if res == nil {
		rn.finish(nil, false, err)
		s.runs.expire(opts.RunID)
		return
	}
	if data, merr := graph.MarshalLayout(res.Layout); merr == nil {
		key := s.runner.Keyer.RunKey(opts.RunID)
		if serr := s.runner.Cache.Set(context.Background(), key, data, cache.TTLRun); serr != nil {
			s.logger.Warn("store run", "run", opts.RunID, "err", serr)
		}
	}
	rn.finish(&res.Layout, res.CacheHit, err)
	s.runs.expire(opts.RunID)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, ok := s.lookup(r.Context(), id)
	if !ok {
		s.writeError(w, errors.New(errors.ErrCodeNotFound, "layout %s not found", id))
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" || format == pipeline.FormatJSON {
		s.writeJSON(w, http.StatusOK, st)
		return
	}
	if err := pipeline.ValidateFormat(format); err != nil {
		s.writeError(w, err)
		return
	}
	if st.Layout == nil {
		s.writeJSONError(w, http.StatusConflict, "layout "+id+" has no result yet")
		return
	}

	switch format {
	case pipeline.FormatDOT:
		var buf bytes.Buffer
		if err := graph.WriteDOT(*st.Layout, &buf); err != nil {
			s.writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/vnd.graphviz")
		_, _ = w.Write(buf.Bytes())
	case pipeline.FormatSVG:
		svg, err := graph.RenderSVG(r.Context(), *st.Layout)
		if err != nil {
			s.writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		_, _ = w.Write(svg)
	}
}

// lookup checks in-memory runs first, then the run cache.
func (s *Server) lookup(ctx context.Context, id string) (Status, bool) {
	if rn, ok := s.runs.get(id); ok {
		return rn.snapshot(), true
	}
	data, hit, err := s.runner.Cache.Get(ctx, s.runner.Keyer.RunKey(id))
	if err != nil || !hit {
		return Status{}, false
	}
	l, err := graph.UnmarshalLayout(data)
	if err != nil {
		return Status{}, false
	}
	return Status{
		ID:          id,
		State:       l.State,
		Iteration:   l.Iterations,
		Temperature: l.Temperature,
		Error:       l.Error,
		Layout:      &l,
	}, true
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rn, ok := s.runs.get(id)
	if !ok {
		s.writeError(w, errors.New(errors.ErrCodeNotFound, "layout %s not found", id))
		return
	}
	rn.cancel()
	<-rn.done
	s.writeJSON(w, http.StatusOK, rn.snapshot())
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"active": s.runs.active(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response", "err", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	body := map[string]string{"error": errors.UserMessage(err)}
	if code := errors.GetCode(err); code != "" {
		body["code"] = string(code)
	}
	s.writeJSON(w, errors.HTTPStatus(err), body)
}

// instrument logs each request and reports it to the HTTP hooks.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		hooks := observability.HTTP()
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		hooks.OnRequest(r.Context(), r.Method, route)
		hooks.OnResponse(r.Context(), r.Method, route, ww.Status(), time.Since(start))
		s.logger.Debug("request",
			"method", r.Method,
			"route", route,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}

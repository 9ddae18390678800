package cli

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/drl3d/pkg/config"
	"github.com/matzehuels/drl3d/pkg/server"
)

// serveCommand creates the serve command for the HTTP layout service.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr       string
		maxRuns    int
		runTimeout time.Duration
		cf         cacheFlags
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP layout service",
		Long: `Run the HTTP layout service.

  POST   /v1/layouts        {"graph": {...}, "options": {...}} starts a run
  GET    /v1/layouts/{id}   reports progress, then the finished layout
  DELETE /v1/layouts/{id}   cancels a run

Request options default to the [layout] table of the config file. Point several
instances at one Redis or Mongo cache (--cache, --cache-url) to share results.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.loadConfig()
			if err != nil {
				return err
			}
			cfg, err := serverConfig(cmd, store, addr, maxRuns, runTimeout)
			if err != nil {
				return err
			}
			return c.runServe(cmd.Context(), store, cfg, cf)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", server.DefaultAddr, "listen address")
	cmd.Flags().IntVar(&maxRuns, "max-runs", server.DefaultMaxRuns, "concurrent layout runs")
	cmd.Flags().DurationVar(&runTimeout, "run-timeout", server.DefaultRunTimeout, "per-run deadline (0 = none)")
	cf.register(cmd)

	return cmd
}

// serverConfig builds the server configuration. Flags win over the [server]
// table of the config file.
func serverConfig(cmd *cobra.Command, store *config.Store, addr string, maxRuns int, runTimeout time.Duration) (server.Config, error) {
	cfg := server.DefaultConfig()
	if err := cfg.Defaults.ApplyConfig(store); err != nil {
		return cfg, err
	}

	cfg.Addr = addr
	if v, ok := store.Value("server.addr"); ok && !cmd.Flags().Changed("addr") {
		cfg.Addr = v
	}
	cfg.MaxRuns = maxRuns
	if !cmd.Flags().Changed("max-runs") {
		n, err := store.Int("server.max_runs", maxRuns)
		if err != nil {
			return cfg, err
		}
		cfg.MaxRuns = n
	}
	cfg.RunTimeout = runTimeout
	return cfg, nil
}

func (c *CLI) runServe(ctx context.Context, store *config.Store, cfg server.Config, cf cacheFlags) error {
	runner, err := c.newRunner(ctx, store, cf)
	if err != nil {
		return err
	}
	defer runner.Close()

	srv := server.New(runner, cfg, loggerFromContext(ctx))
	host := cfg.Addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	printSuccess("Serving layouts on %s", StyleLink.Render("http://"+host))
	printDetail("Ctrl+C to stop")

	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

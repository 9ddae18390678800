// Package cli implements the drl3d command-line interface.
//
// # Commands
//
//   - layout: compute 3D positions for a graph file
//   - serve: run the HTTP layout service
//   - cache: inspect or clear the local layout cache
//   - config: read and write persistent settings
//   - version, completion
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. The logger is
// attached to the command context and retrieved with loggerFromContext.
//
// # Settings
//
// Layout parameters resolve in order: built-in defaults, the [layout] table of
// the config file, then explicit flags.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/drl3d/pkg/buildinfo"
	"github.com/matzehuels/drl3d/pkg/cache"
	"github.com/matzehuels/drl3d/pkg/config"
	"github.com/matzehuels/drl3d/pkg/errors"
	"github.com/matzehuels/drl3d/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "drl3d"

	configFile = "config.toml"
)

// Cache backends.
const (
	backendFile  = "file"
	backendRedis = "redis"
	backendMongo = "mongo"
	backendNone  = "none"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger     *log.Logger
	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "drl3d computes 3D force-directed graph layouts",
		Long:         `drl3d places graph nodes in three dimensions with the DrL annealing scheme: springs along edges, repulsion from a voxel density grid, and a cooling temperature that bounds every step.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/drl3d/config.toml)")

	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// cacheFlags selects the layout cache backend. Empty fields fall back to the
// config file.
type cacheFlags struct {
	noCache bool
	backend string
	url     string
}

func (f *cacheFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable caching")
	cmd.Flags().StringVar(&f.backend, "cache", "", "cache backend: file (default), redis, mongo, none")
	cmd.Flags().StringVar(&f.url, "cache-url", "", "redis:// or mongodb:// URL for remote backends")
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, store *config.Store, flags cacheFlags) (*pipeline.Runner, error) {
	cc, err := newCache(ctx, store, flags)
	if err != nil {
		return nil, err
	}
	var keyer cache.Keyer
	if prefix, ok := store.Value("cache.prefix"); ok && prefix != "" {
		keyer = cache.NewScopedKeyer(nil, prefix)
	}
	return pipeline.NewRunner(cc, keyer, loggerFromContext(ctx)), nil
}

func newCache(ctx context.Context, store *config.Store, flags cacheFlags) (cache.Cache, error) {
	if flags.noCache {
		return cache.NewNullCache(), nil
	}
	backend, url := flags.backend, flags.url
	if backend == "" {
		backend, _ = store.Value("cache.backend")
	}
	if url == "" {
		url, _ = store.Value("cache.url")
	}

	switch backend {
	case "", backendFile:
		dir, err := cacheDir()
		if err != nil {
			return cache.NewNullCache(), nil
		}
		return cache.NewFileCache(dir)
	case backendRedis:
		if err := errors.ValidateURL(url); err != nil {
			return nil, err
		}
		return cache.NewRedisCache(ctx, url)
	case backendMongo:
		if err := errors.ValidateURL(url); err != nil {
			return nil, err
		}
		db, _ := store.Value("cache.database")
		coll, _ := store.Value("cache.collection")
		return cache.NewMongoCache(ctx, url, db, coll)
	case backendNone:
		return cache.NewNullCache(), nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown cache backend %q", backend)
	}
}

// loadConfig reads the config file selected by --config or the default path.
func (c *CLI) loadConfig() (*config.Store, error) {
	path := c.configPath
	if path == "" {
		var err error
		if path, err = configPath(); err != nil {
			return nil, err
		}
	}
	return config.Load(path)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/drl3d/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// configPath returns the default config file (~/.config/drl3d/config.toml).
func configPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, configFile), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, configFile), nil
}

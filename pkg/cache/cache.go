// Package cache stores computed layouts so identical requests skip the annealing run.
//
// Backends:
//   - [FileCache]: JSON entries under the user cache directory, for the CLI
//   - [RedisCache]: shared cache for multi-instance servers
//   - [MongoCache]: durable cache with TTL index
//   - [NullCache]: disables caching
//
// Keys come from a [Keyer] so callers never build them by hand.
package cache

import (
	"context"
	"time"
)

// Entry lifetimes.
const (
	TTLLayout = 30 * 24 * time.Hour
	TTLRun    = 24 * time.Hour
)

// Cache is a byte-oriented key-value store with optional expiry.
// Get returns (nil, false, nil) on a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Keyer generates cache keys.
type Keyer interface {
	// LayoutKey identifies a layout by the hash of its input graph and the layout
	// parameters. params must be JSON-serializable.
	LayoutKey(graphHash string, params any) string

	// RunKey identifies the stored result of a server-side run.
	RunKey(runID string) string
}

// DefaultKeyer is the standard Keyer.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// LayoutKey hashes the graph hash together with params.
func (DefaultKeyer) LayoutKey(graphHash string, params any) string {
	return hashKey("layout", graphHash, params)
}

// RunKey returns "run:<id>".
func (DefaultKeyer) RunKey(runID string) string {
	return "run:" + runID
}

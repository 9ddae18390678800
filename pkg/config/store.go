// Package config provides a key-value settings store persisted as TOML.
//
// Keys are dotted paths; "layout.decay" is stored as decay = … under a [layout]
// table. Values are kept as strings and converted on read, so a store can carry
// settings for packages it knows nothing about.
//
//	s, err := config.Load(path)
//	s.Add("layout.max_iterations", "2000")
//	n, err := s.Int("layout.max_iterations", 1000)
//	err = s.Save()
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/drl3d/pkg/errors"
)

// Store is a concurrency-safe settings map bound to an optional file.
type Store struct {
	mu     sync.RWMutex
	path   string
	values map[string]string
}

// New returns an empty store not bound to any file.
func New() *Store {
	return &Store{values: make(map[string]string)}
}

// Load reads a TOML file. A missing file yields an empty store bound to path, so a
// later Save creates it.
func Load(path string) (*Store, error) {
	s := New()
	s.path = path

	var raw map[string]any
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read %s", path)
	}
	flatten("", raw, s.values)
	return s, nil
}

// Path returns the file the store saves to.
func (s *Store) Path() string { return s.path }

// Add sets key to value, replacing any previous value.
func (s *Store) Add(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Value returns the raw value for key.
func (s *Store) Value(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Keys returns all keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Int returns key as an int, or def when unset.
func (s *Store) Int(key string, def int) (int, error) {
	return get(s, key, def, strconv.Atoi)
}

// Uint64 returns key as a uint64, or def when unset.
func (s *Store) Uint64(key string, def uint64) (uint64, error) {
	return get(s, key, def, func(v string) (uint64, error) { return strconv.ParseUint(v, 10, 64) })
}

// Float returns key as a float64, or def when unset.
func (s *Store) Float(key string, def float64) (float64, error) {
	return get(s, key, def, func(v string) (float64, error) { return strconv.ParseFloat(v, 64) })
}

// Bool returns key as a bool, or def when unset.
func (s *Store) Bool(key string, def bool) (bool, error) {
	return get(s, key, def, strconv.ParseBool)
}

func get[T any](s *Store, key string, def T, parse func(string) (T, error)) (T, error) {
	raw, ok := s.Value(key)
	if !ok {
		return def, nil
	}
	v, err := parse(strings.TrimSpace(raw))
	if err != nil {
		return def, errors.Wrap(errors.ErrCodeInvalidConfig, err, "config key %s=%q", key, raw)
	}
	return v, nil
}

// Save writes the store to its bound path.
func (s *Store) Save() error {
	if s.path == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "config store has no file")
	}
	return s.SaveTo(s.path)
}

// SaveTo writes the store as TOML to path, creating parent directories.
func (s *Store) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(s.tree()); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// tree rebuilds nested tables from dotted keys, typing values where they parse.
func (s *Store) tree() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	root := make(map[string]any)
	for key, raw := range s.values {
		parts := strings.Split(key, ".")
		m := root
		for _, p := range parts[:len(parts)-1] {
			next, ok := m[p].(map[string]any)
			if !ok {
				next = make(map[string]any)
				m[p] = next
			}
			m = next
		}
		m[parts[len(parts)-1]] = typed(raw)
	}
	return root
}

func typed(raw string) any {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

func flatten(prefix string, m map[string]any, out map[string]string) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v := v.(type) {
		case map[string]any:
			flatten(key, v, out)
		case float64:
			out[key] = strconv.FormatFloat(v, 'g', -1, 64)
		default:
			out[key] = fmt.Sprint(v)
		}
	}
}

package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/matzehuels/drl3d/pkg/errors"
)

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.toml")
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(s.Keys()) != 0 {
		t.Errorf("Keys() = %v, want empty", s.Keys())
	}
	if s.Path() != path {
		t.Errorf("Path() = %q, want %q", s.Path(), path)
	}
}

func TestLoadFlattensTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[layout]
grid_size = 64
decay = 0.98
parallel = true

[server]
addr = ":9000"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"layout.decay", "layout.grid_size", "layout.parallel", "server.addr"}
	if got := s.Keys(); !slices.Equal(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
	if n, err := s.Int("layout.grid_size", 0); err != nil || n != 64 {
		t.Errorf("Int(grid_size) = %d, %v", n, err)
	}
	if f, err := s.Float("layout.decay", 0); err != nil || f != 0.98 {
		t.Errorf("Float(decay) = %v, %v", f, err)
	}
	if b, err := s.Bool("layout.parallel", false); err != nil || !b {
		t.Errorf("Bool(parallel) = %v, %v", b, err)
	}
	if v, _ := s.Value("server.addr"); v != ":9000" {
		t.Errorf("Value(server.addr) = %q", v)
	}
}

func TestTypedGetters(t *testing.T) {
	s := New()
	s.Add("a.int", "12")
	s.Add("a.bad", "twelve")

	if n, _ := s.Int("a.missing", 7); n != 7 {
		t.Errorf("default = %d, want 7", n)
	}
	if u, err := s.Uint64("a.int", 0); err != nil || u != 12 {
		t.Errorf("Uint64 = %d, %v", u, err)
	}
	_, err := s.Int("a.bad", 0)
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("Int(bad) error = %v, want INVALID_CONFIG", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	s.Add("layout.max_iterations", "2000")
	s.Add("layout.gravity", "0.05")
	s.Add("cache.backend", "redis")
	if err := s.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range s.Keys() {
		want, _ := s.Value(k)
		got, _ := again.Value(k)
		if got != want {
			t.Errorf("%s = %q after reload, want %q", k, got, want)
		}
	}
}

func TestSaveWithoutPath(t *testing.T) {
	if err := New().Save(); err == nil {
		t.Error("Save() on unbound store returned nil")
	}
}

package density

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/drl3d/pkg/errors"
)

// testConfig is a small grid: 32³ cells of size 2 over [-32, 32).
func testConfig() Config {
	return Config{
		Size:        32,
		ViewSize:    64,
		Radius:      4,
		FineRadius:  2,
		Boundary:    4,
		NearField:   1,
		WallDensity: 1e4,
		MaxBytes:    DefaultMaxBytes,
	}
}

func newTestGrid(t *testing.T, nodes int) *Grid {
	t.Helper()
	g, err := New(testConfig(), nodes)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return g
}

func randomInterior(rng *rand.Rand, g *Grid) r3.Vec {
	box := g.Interior()
	span := box.Max.X - box.Min.X
	return r3.Vec{
		X: box.Min.X + rng.Float64()*span*0.999,
		Y: box.Min.Y + rng.Float64()*span*0.999,
		Z: box.Min.Z + rng.Float64()*span*0.999,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"zero size", func(c *Config) { c.Size = 0 }, true},
		{"zero view", func(c *Config) { c.ViewSize = 0 }, true},
		{"zero radius", func(c *Config) { c.Radius = 0 }, true},
		{"zero fine radius", func(c *Config) { c.FineRadius = 0 }, true},
		{"negative boundary", func(c *Config) { c.Boundary = -1 }, true},
		{"boundary eats grid", func(c *Config) { c.Boundary = 50 }, true},
		{"negative near field", func(c *Config) { c.NearField = -1 }, true},
		{"size beyond cap", func(c *Config) { c.Size = 1 << 21 }, true},
		{"infinite view", func(c *Config) { c.ViewSize = math.Inf(1) }, true},
		{"radius beyond grid", func(c *Config) { c.Size, c.Boundary, c.Radius = 30, 5, 31 }, true},
		{"fine radius beyond grid", func(c *Config) { c.Size, c.Boundary, c.FineRadius = 30, 5, 31 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("Validate() code = %v, want %v", errors.GetCode(err), errors.ErrCodeInvalidConfig)
			}
		})
	}
}

func TestNewRejectsOversizedGrid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Size = 1000
	g, err := New(cfg, 10)
	if err == nil {
		t.Fatal("New() with a 1000³ grid succeeded, want budget error")
	}
	if g != nil {
		t.Error("New() returned a grid alongside an error")
	}
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("error code = %v, want %v", errors.GetCode(err), errors.ErrCodeInvalidConfig)
	}
}

func TestNewRejectsHugeInputs(t *testing.T) {
	tests := []struct {
		name  string
		cfg   func() Config
		nodes int
	}{
		{"size overflowing cell count", func() Config {
			c := DefaultConfig()
			c.Size = 1 << 21
			return c
		}, 10},
		{"size overflowing without budget", func() Config {
			c := DefaultConfig()
			c.Size, c.MaxBytes = 1<<21, 0
			return c
		}, 10},
		{"node count beyond bucket links", func() Config {
			c := DefaultConfig()
			c.MaxBytes = 0
			return c
		}, MaxNodes + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(tt.cfg(), tt.nodes)
			if !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Fatalf("New() error = %v, want %v", err, errors.ErrCodeInvalidConfig)
			}
			if g != nil {
				t.Error("New() returned a grid alongside an error")
			}
		})
	}
}

func TestCellOf(t *testing.T) {
	g := newTestGrid(t, 0)
	tests := []struct {
		name string
		p    r3.Vec
		want Coord
		ok   bool
	}{
		{"origin", r3.Vec{}, Coord{16, 16, 16}, true},
		{"lower corner", r3.Vec{X: -32, Y: -32, Z: -32}, Coord{0, 0, 0}, true},
		{"just inside upper face", r3.Vec{X: 31.9, Y: 0, Z: 0}, Coord{31, 16, 16}, true},
		{"upper face exclusive", r3.Vec{X: 32, Y: 0, Z: 0}, Coord{}, false},
		{"below", r3.Vec{X: 0, Y: -40, Z: 0}, Coord{}, false},
		{"nan", r3.Vec{X: math.NaN()}, Coord{}, false},
		{"inf", r3.Vec{Z: math.Inf(-1)}, Coord{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := g.CellOf(tt.p)
			if ok != tt.ok {
				t.Fatalf("CellOf(%v) ok = %v, want %v", tt.p, ok, tt.ok)
			}
			if ok && c != tt.want {
				t.Errorf("CellOf(%v) = %v, want %v", tt.p, c, tt.want)
			}
		})
	}
}

func TestAddSubtractRoundTrip(t *testing.T) {
	const background = 20
	g := newTestGrid(t, background+1)
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < background; i++ {
		if err := g.Add(i, randomInterior(rng, g), i%2 == 0); err != nil {
			t.Fatalf("Add(%d) error: %v", i, err)
		}
	}
	beforeCoarse, beforeFine := g.Snapshot()

	mover := background
	positions := []r3.Vec{
		{X: -31.5, Y: -31.5, Z: -31.5}, // footprint clipped at three faces
		{X: 31.9, Y: 0, Z: 0},
		{},
	}
	for i := 0; i < 30; i++ {
		positions = append(positions, randomInterior(rng, g))
	}

	for _, p := range positions {
		for _, fine := range []bool{false, true} {
			if err := g.Add(mover, p, fine); err != nil {
				t.Fatalf("Add(%v, fine=%v) error: %v", p, fine, err)
			}
			if err := g.Subtract(mover); err != nil {
				t.Fatalf("Subtract() error: %v", err)
			}

			afterCoarse, afterFine := g.Snapshot()
			for i := range beforeCoarse.data {
				if d := math.Abs(afterCoarse.data[i] - beforeCoarse.data[i]); d > 1e-9 {
					t.Fatalf("coarse cell %d drifted by %v after Add/Subtract at %v", i, d, p)
				}
				if d := math.Abs(afterFine.data[i] - beforeFine.data[i]); d > 1e-9 {
					t.Fatalf("fine cell %d drifted by %v after Add/Subtract at %v", i, d, p)
				}
			}
		}
	}

	if err := g.Check(); err != nil {
		t.Errorf("Check() error: %v", err)
	}
}

func TestDensityNonNegative(t *testing.T) {
	const n = 50
	g := newTestGrid(t, n)
	rng := rand.New(rand.NewPCG(3, 4))

	for i := 0; i < n; i++ {
		if err := g.Add(i, randomInterior(rng, g), true); err != nil {
			t.Fatalf("Add(%d) error: %v", i, err)
		}
	}
	// Churn: move every node a few times.
	for round := 0; round < 5; round++ {
		for i := 0; i < n; i++ {
			if err := g.Subtract(i); err != nil {
				t.Fatalf("Subtract(%d) error: %v", i, err)
			}
			if err := g.Add(i, randomInterior(rng, g), round%2 == 0); err != nil {
				t.Fatalf("Add(%d) error: %v", i, err)
			}
		}
	}

	for i := 0; i < 2000; i++ {
		p := r3.Vec{X: rng.Float64()*80 - 40, Y: rng.Float64()*80 - 40, Z: rng.Float64()*80 - 40}
		for _, fine := range []bool{false, true} {
			if d := g.Density(p, fine); d < 0 || math.IsNaN(d) {
				t.Fatalf("Density(%v, fine=%v) = %v, want >= 0", p, fine, d)
			}
		}
	}
	if err := g.Check(); err != nil {
		t.Errorf("Check() error: %v", err)
	}
}

func TestMassConservation(t *testing.T) {
	const n = 40
	g := newTestGrid(t, n)
	rng := rand.New(rand.NewPCG(5, 6))

	fineCount := 0
	for i := 0; i < n; i++ {
		fine := i%3 == 0
		if fine {
			fineCount++
		}
		if err := g.Add(i, randomInterior(rng, g), fine); err != nil {
			t.Fatalf("Add(%d) error: %v", i, err)
		}
	}

	wantCoarse := float64(n) * g.CoarseKernel().Total()
	if got := g.TotalMass(false); math.Abs(got-wantCoarse) > 1e-9*wantCoarse {
		t.Errorf("coarse mass = %v, want %v", got, wantCoarse)
	}
	wantFine := float64(fineCount) * g.FineKernel().Total()
	if got := g.TotalMass(true); math.Abs(got-wantFine) > 1e-9*wantFine {
		t.Errorf("fine mass = %v, want %v", got, wantFine)
	}
}

func TestClippedFootprint(t *testing.T) {
	g := newTestGrid(t, 1)
	corner := r3.Vec{X: -31.9, Y: -31.9, Z: -31.9}

	if err := g.Add(0, corner, true); err != nil {
		t.Fatalf("Add() at corner error: %v", err)
	}
	full := g.CoarseKernel().Total()
	got := g.TotalMass(false)
	if got <= 0 || got >= full {
		t.Errorf("clipped mass = %v, want in (0, %v)", got, full)
	}

	if err := g.Subtract(0); err != nil {
		t.Fatalf("Subtract() error: %v", err)
	}
	if m := g.TotalMass(false); m != 0 {
		t.Errorf("mass after Subtract = %v, want 0", m)
	}
}

func TestLifecycle(t *testing.T) {
	g := newTestGrid(t, 2)

	if got := g.Placement(0).State; got != NotPlaced {
		t.Fatalf("initial state = %v, want %v", got, NotPlaced)
	}
	if err := g.Subtract(0); err != nil {
		t.Errorf("Subtract on not-placed node error: %v", err)
	}
	if m := g.TotalMass(false); m != 0 {
		t.Errorf("Subtract on not-placed node changed mass to %v", m)
	}

	p := r3.Vec{X: 1, Y: 2, Z: 3}
	if err := g.Add(0, p, false); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	pl := g.Placement(0)
	if pl.State != Placed || pl.Pos != p || pl.Fine {
		t.Errorf("Placement() = %+v, want placed at %v without fine", pl, p)
	}

	err := g.Add(0, p, false)
	if !errors.Is(err, errors.ErrCodeInvariant) {
		t.Errorf("second Add() error = %v, want invariant violation", err)
	}
}

func TestAddRejectsPositionsOutsideGrid(t *testing.T) {
	g := newTestGrid(t, 1)
	for _, p := range []r3.Vec{
		{X: math.NaN()},
		{X: 100},
		{Y: -32.5},
	} {
		err := g.Add(0, p, false)
		if !errors.Is(err, errors.ErrCodeInvariant) {
			t.Errorf("Add(%v) error = %v, want invariant violation", p, err)
		}
	}
	if err := g.Add(5, r3.Vec{}, false); !errors.Is(err, errors.ErrCodeInvariant) {
		t.Errorf("Add(out-of-range index) error = %v, want invariant violation", err)
	}
	if g.Placement(0).State != NotPlaced {
		t.Error("rejected Add left the node placed")
	}
}

func TestBuckets(t *testing.T) {
	g := newTestGrid(t, 3)
	a := r3.Vec{X: 0.2, Y: 0.2, Z: 0.2}
	b := r3.Vec{X: 0.8, Y: 1.1, Z: 0.5}
	far := r3.Vec{X: 10, Y: 10, Z: 10}

	for i, p := range []r3.Vec{a, b, far} {
		if err := g.Add(i, p, false); err != nil {
			t.Fatalf("Add(%d) error: %v", i, err)
		}
	}
	cell, _ := g.CellOf(a)
	if got := g.Bucket(cell); len(got) != 2 {
		t.Fatalf("Bucket(%v) = %v, want 2 nodes", cell, got)
	}

	if err := g.Subtract(0); err != nil {
		t.Fatalf("Subtract() error: %v", err)
	}
	got := g.Bucket(cell)
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("Bucket(%v) after Subtract = %v, want [1]", cell, got)
	}
	if err := g.Check(); err != nil {
		t.Errorf("Check() error: %v", err)
	}
}

func TestDensityExcludingMatchesSubtracted(t *testing.T) {
	const n = 12
	g := newTestGrid(t, n)
	rng := rand.New(rand.NewPCG(7, 8))
	for i := 0; i < n; i++ {
		if err := g.Add(i, randomInterior(rng, g), true); err != nil {
			t.Fatalf("Add(%d) error: %v", i, err)
		}
	}

	self := 3
	pos := g.Placement(self).Pos
	points := []r3.Vec{
		pos,
		r3.Add(pos, r3.Vec{X: 2}),
		r3.Add(pos, r3.Vec{Y: -2}),
		r3.Add(pos, r3.Vec{Z: 4}),
	}

	var excluded [2][]float64
	for _, p := range points {
		excluded[0] = append(excluded[0], g.DensityExcluding(p, false, self))
		excluded[1] = append(excluded[1], g.DensityExcluding(p, true, self))
	}

	if err := g.Subtract(self); err != nil {
		t.Fatalf("Subtract() error: %v", err)
	}
	for i, p := range points {
		for f, fine := range []bool{false, true} {
			want := g.Density(p, fine)
			got := excluded[f][i]
			if math.Abs(got-want) > 1e-9*math.Max(1, want) {
				t.Errorf("DensityExcluding(%v, fine=%v) = %v, want %v", p, fine, got, want)
			}
		}
	}
}

func TestWallDensity(t *testing.T) {
	g := newTestGrid(t, 0)
	for _, p := range []r3.Vec{
		{X: -31, Y: 0, Z: 0}, // boundary band
		{X: 0, Y: 0, Z: 30},
		{X: 100, Y: 0, Z: 0}, // outside the view
	} {
		if got := g.Density(p, false); got != testConfig().WallDensity {
			t.Errorf("Density(%v) = %v, want wall density", p, got)
		}
	}
	if got := g.Density(r3.Vec{}, false); got != 0 {
		t.Errorf("Density(origin) on empty grid = %v, want 0", got)
	}
}

func TestClampKeepsNodesInInterior(t *testing.T) {
	g := newTestGrid(t, 1)
	for _, p := range []r3.Vec{
		{X: 1e6, Y: -1e6, Z: 0},
		{X: 24, Y: 24, Z: 24},
		{X: -24, Y: -24, Z: -24},
	} {
		q := g.Clamp(p)
		c, ok := g.CellOf(q)
		if !ok || g.inBoundary(c) {
			t.Errorf("Clamp(%v) = %v in cell %v, want interior", p, q, c)
		}
	}
}

func TestSubtractReportsNegativeDensity(t *testing.T) {
	g := newTestGrid(t, 2)
	p := r3.Vec{X: 1, Y: 1, Z: 1}
	if err := g.Add(0, p, true); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if err := g.Check(); err != nil {
		t.Fatalf("Check() after Add error: %v", err)
	}

	// Lose part of the deposit so the removal over-subtracts.
	c := g.Placement(0).Cell
	g.coarse.Set(c, 0.25)

	err := g.Subtract(0)
	if !errors.Is(err, errors.ErrCodeInvariant) {
		t.Fatalf("Subtract() error = %v, want %v", err, errors.ErrCodeInvariant)
	}
	if g.Placement(0).State != NotPlaced {
		t.Error("Subtract() left the node placed after reporting")
	}
	if got := g.Accumulator(c, false); got >= 0 {
		t.Errorf("Accumulator(%v) = %v, want the negative value kept", c, got)
	}
	if err := g.Check(); !errors.Is(err, errors.ErrCodeInvariant) {
		t.Errorf("Check() error = %v, want %v", err, errors.ErrCodeInvariant)
	}
}

func TestSubtractFlushesRoundingResidue(t *testing.T) {
	g := newTestGrid(t, 1)
	if err := g.Add(0, r3.Vec{}, false); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	c := g.Placement(0).Cell
	g.coarse.Set(c, g.coarse.At(c)-1e-12)

	if err := g.Subtract(0); err != nil {
		t.Fatalf("Subtract() error: %v", err)
	}
	if got := g.Accumulator(c, false); got != 0 {
		t.Errorf("Accumulator(%v) = %v, want 0", c, got)
	}
	if err := g.Check(); err != nil {
		t.Errorf("Check() error: %v", err)
	}
}

func TestDensityIsContinuous(t *testing.T) {
	g := newTestGrid(t, 1)
	if err := g.Add(0, r3.Vec{X: 0.3, Y: -0.7, Z: 1.1}, true); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	// Walk across several cell faces in steps far below the cell size.
	const step = 0.01
	prev := g.Density(r3.Vec{X: -6}, false)
	for x := -6 + step; x < 6; x += step {
		d := g.Density(r3.Vec{X: x}, false)
		if math.Abs(d-prev) > 0.02 {
			t.Fatalf("coarse density jumps from %v to %v at x=%v", prev, d, x)
		}
		prev = d
	}
}

func TestDensityIsRadiallySymmetric(t *testing.T) {
	g := newTestGrid(t, 1)
	// Centre of cell (16,16,16) so every axis sees the same lattice.
	centre := r3.Vec{X: 1, Y: 1, Z: 1}
	if err := g.Add(0, centre, false); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	const r = 4.0
	axis := g.Density(r3.Add(centre, r3.Vec{X: r}), false)
	for _, dir := range []r3.Vec{
		{Y: r},
		{Z: -r},
		{X: -r},
	} {
		if got := g.Density(r3.Add(centre, dir), false); math.Abs(got-axis) > 1e-12 {
			t.Errorf("Density at offset %v = %v, want %v", dir, got, axis)
		}
	}
}

package graph

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/drl3d/pkg/core/drl"
	"github.com/matzehuels/drl3d/pkg/errors"
)

func TestReadGraph(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantNodes int
		wantEdges int
		wantErr   bool
	}{
		{
			name:      "Empty",
			input:     `{"nodes":[],"edges":[]}`,
			wantNodes: 0,
		},
		{
			name:      "Simple",
			input:     `{"nodes":[{"id":"a"},{"id":"b","weight":2,"pos":[1,2,3]}],"edges":[{"from":"a","to":"b"}]}`,
			wantNodes: 2,
			wantEdges: 1,
		},
		{
			name:    "Malformed",
			input:   `{"nodes":[`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := ReadGraph(strings.NewReader(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ReadGraph() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if len(g.Nodes) != tt.wantNodes || len(g.Edges) != tt.wantEdges {
				t.Errorf("got %d nodes, %d edges, want %d, %d", len(g.Nodes), len(g.Edges), tt.wantNodes, tt.wantEdges)
			}
		})
	}
}

func TestToDRL(t *testing.T) {
	pos := Vec{1, 2, 3}
	g := Graph{
		Nodes: []Node{{ID: "a"}, {ID: "b", Weight: 2, Pos: &pos}},
		Edges: []Edge{{From: "a", To: "b", Weight: 0.5}},
	}
	dg, err := g.ToDRL()
	if err != nil {
		t.Fatalf("ToDRL() error: %v", err)
	}
	if dg.Nodes[0].Mass != 1 || dg.Nodes[1].Mass != 2 {
		t.Errorf("masses = %v, %v", dg.Nodes[0].Mass, dg.Nodes[1].Mass)
	}
	if dg.Nodes[0].HasPos || !dg.Nodes[1].HasPos {
		t.Errorf("HasPos = %v, %v, want false, true", dg.Nodes[0].HasPos, dg.Nodes[1].HasPos)
	}
	if dg.Nodes[1].Pos != (r3.Vec{X: 1, Y: 2, Z: 3}) {
		t.Errorf("pos = %v", dg.Nodes[1].Pos)
	}

	back := FromDRL(dg)
	if back.Edges[0] != g.Edges[0] {
		t.Errorf("edge round trip = %+v, want %+v", back.Edges[0], g.Edges[0])
	}
	if back.Nodes[0].Pos != nil || *back.Nodes[1].Pos != pos {
		t.Errorf("position round trip lost data: %+v", back.Nodes)
	}
}

func TestToDRLRejectsInvalidGraphs(t *testing.T) {
	tests := []struct {
		name string
		g    Graph
	}{
		{"duplicate node", Graph{Nodes: []Node{{ID: "a"}, {ID: "a"}}}},
		{"dangling edge", Graph{Nodes: []Node{{ID: "a"}}, Edges: []Edge{{From: "a", To: "b"}}}},
		{"negative weight", Graph{Nodes: []Node{{ID: "a", Weight: -1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.g.ToDRL()
			if !errors.Is(err, errors.ErrCodeInvalidGraph) {
				t.Errorf("ToDRL() error = %v, want INVALID_GRAPH", err)
			}
		})
	}
}

func testLayout(t *testing.T) Layout {
	t.Helper()
	dg := drl.NewGraph()
	_, _ = dg.AddNode("a", 1)
	_, _ = dg.AddNode("b", 1)
	_ = dg.AddEdge("a", "b", 2)
	res := drl.Result{
		State:      drl.Converged,
		Reason:     drl.ReasonStable,
		Iterations: 12,
		Positions:  []r3.Vec{{X: -1, Y: 2, Z: 0.5}, {X: 3, Y: -4, Z: 1.5}},
	}
	return NewLayout(dg, res)
}

func TestNewLayout(t *testing.T) {
	l := testLayout(t)

	if l.State != "converged" || l.Reason != "stable" || l.Iterations != 12 {
		t.Errorf("header = %s/%s/%d", l.State, l.Reason, l.Iterations)
	}
	if l.Bounds == nil {
		t.Fatal("Bounds is nil")
	}
	if l.Bounds.Min != (Vec{-1, -4, 0.5}) || l.Bounds.Max != (Vec{3, 2, 1.5}) {
		t.Errorf("Bounds = %+v", *l.Bounds)
	}
	if got := l.Bounds.Size(); got != (Vec{4, 6, 1}) {
		t.Errorf("Size() = %v", got)
	}
	if got := l.Positions()[1]; got != (r3.Vec{X: 3, Y: -4, Z: 1.5}) {
		t.Errorf("Positions()[1] = %v", got)
	}
}

func TestLayoutRoundTrip(t *testing.T) {
	l := testLayout(t)
	l.RunID = "run-1"

	data, err := MarshalLayout(l)
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalLayout(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.RunID != "run-1" || len(got.Nodes) != 2 || *got.Nodes[1].Pos != *l.Nodes[1].Pos {
		t.Errorf("round trip = %+v", got)
	}

	path := filepath.Join(t.TempDir(), "layout.json")
	if err := WriteLayoutFile(l, path); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(raw, data) {
		t.Error("file and marshaled bytes differ")
	}
}

func TestToDOT(t *testing.T) {
	dot := ToDOT(testLayout(t))

	for _, want := range []string{
		"graph G {",
		"dim=3;",
		`"a" [label="a", pos="-1,2,0.5!"];`,
		`"a" -- "b" [weight=2];`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
	if proj := toDOT(testLayout(t), true); !strings.Contains(proj, `pos="12,-16!"`) {
		t.Errorf("projection missing scaled pos:\n%s", proj)
	}
}

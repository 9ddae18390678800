package graph

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/goccy/go-graphviz"
)

// svgScale converts layout units to points for the SVG preview.
const svgScale = 4.0

// ToDOT converts a layout to Graphviz DOT. Every node carries a pinned 3D position
// as pos="x,y,z!" with dim=3, so neato -n reproduces the layout without moving it.
func ToDOT(l Layout) string {
	return toDOT(l, false)
}

// WriteDOT writes the DOT form of l to w after checking that Graphviz accepts it.
func WriteDOT(l Layout, w io.Writer) error {
	dot := ToDOT(l)
	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return fmt.Errorf("parse DOT: %w", err)
	}
	g.Close()
	_, err = io.WriteString(w, dot)
	return err
}

// RenderSVG draws the x/y projection of l with Graphviz. Node positions are pinned,
// so Graphviz only routes edges and draws.
func RenderSVG(ctx context.Context, l Layout) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(graphviz.NEATO)

	g, err := graphviz.ParseBytes([]byte(toDOT(l, true)))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}

func toDOT(l Layout, project bool) string {
	var buf bytes.Buffer
	buf.WriteString("graph G {\n")
	if project {
		buf.WriteString("  bgcolor=\"transparent\";\n")
		buf.WriteString("  node [shape=circle, style=filled, fillcolor=white, label=\"\", width=0.15];\n")
	} else {
		buf.WriteString("  dim=3;\n")
	}
	buf.WriteString("\n")

	for _, n := range l.Nodes {
		attrs := fmt.Sprintf("label=%q", n.DisplayLabel())
		if n.Pos != nil {
			attrs += fmt.Sprintf(", pos=%q", fmtPos(*n.Pos, project))
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, attrs)
	}

	buf.WriteString("\n")
	for _, e := range l.Edges {
		if e.Weight != 0 && e.Weight != 1 {
			fmt.Fprintf(&buf, "  %q -- %q [weight=%s];\n", e.From, e.To, fmtFloat(e.Weight))
			continue
		}
		fmt.Fprintf(&buf, "  %q -- %q;\n", e.From, e.To)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtPos(p Vec, project bool) string {
	if project {
		return fmtFloat(p[0]*svgScale) + "," + fmtFloat(p[1]*svgScale) + "!"
	}
	return fmtFloat(p[0]) + "," + fmtFloat(p[1]) + "," + fmtFloat(p[2]) + "!"
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

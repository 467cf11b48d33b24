package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/appmap/pkg/catalog"
	"github.com/matzehuels/appmap/pkg/diagram"
	"github.com/matzehuels/appmap/pkg/render"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed adds the owning stream, tier and scope to app labels.
	// When false, only the app name is shown.
	Detailed bool

	// Pinned emits stored positions as fixed pos attributes. Render pinned
	// DOT with [EngineNeato] so the positions are honored.
	Pinned bool
}

// Engine selects the Graphviz layout engine.
type Engine string

const (
	EngineDot   Engine = "dot"
	EngineNeato Engine = "neato"
)

// External apps are drawn grey; home apps white inside their stream cluster.
const (
	homeFill     = "white"
	externalFill = "#eeeeee"
)

// ToDOT converts a merged diagram to Graphviz DOT format.
//
// Home apps parented under the stream node are grouped in a cluster
// labeled with the stream. In the flat admin view the stream node is kept
// as a plain text label. Edges carry the connection type label and color;
// both-way integrations get arrowheads at both ends.
func ToDOT(d *diagram.Data, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  edge [fontsize=11];\n")
	buf.WriteString("  ranksep=0.8;\n")
	buf.WriteString("  nodesep=0.4;\n")
	buf.WriteString("\n")

	children := map[string][]diagram.Node{}
	for _, n := range d.Nodes {
		if n.ParentNode != "" {
			children[n.ParentNode] = append(children[n.ParentNode], n)
		}
	}

	for _, n := range d.Nodes {
		switch {
		case n.Data.IsParentNode && len(children[n.ID]) > 0:
			fmt.Fprintf(&buf, "  subgraph %q {\n", "cluster_"+n.ID)
			fmt.Fprintf(&buf, "    label=%q;\n", n.Data.Label)
			buf.WriteString("    style=\"rounded,dashed\";\n")
			buf.WriteString("    color=\"#888888\";\n")
			for _, c := range children[n.ID] {
				fmt.Fprintf(&buf, "    %q [%s];\n", c.ID, strings.Join(fmtAttrs(c, opts), ", "))
			}
			buf.WriteString("  }\n")
		case n.Data.IsParentNode:
			fmt.Fprintf(&buf, "  %q [label=%q, shape=plaintext, style=\"\", fontsize=18];\n", n.ID, n.Data.Label)
		case n.ParentNode != "":
			// emitted inside its cluster
		default:
			fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(fmtAttrs(n, opts), ", "))
		}
	}

	buf.WriteString("\n")
	for _, e := range d.Edges {
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", e.Source, e.Target, strings.Join(edgeAttrs(e), ", "))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(n diagram.Node, detailed bool) string {
	if !detailed {
		return n.Data.Label
	}
	parts := []string{n.Data.Label}
	if !n.Data.IsHomeStream && n.Data.StreamName != "" {
		parts = append(parts, "stream: "+n.Data.StreamName)
	}
	if n.Data.Tier != "" {
		parts = append(parts, "tier: "+string(n.Data.Tier))
	}
	if n.Data.Lingkup != "" {
		parts = append(parts, "scope: "+n.Data.Lingkup)
	}
	return strings.Join(parts, "\n")
}

func fmtAttrs(n diagram.Node, opts Options) []string {
	attrs := []string{fmt.Sprintf("label=%q", fmtLabel(n, opts.Detailed))}
	if n.Data.IsHomeStream {
		attrs = append(attrs, "fillcolor="+strconv.Quote(homeFill))
	} else {
		attrs = append(attrs, "fillcolor="+strconv.Quote(externalFill), "style=\"rounded,filled,dashed\"")
	}
	if opts.Pinned && n.Position != nil {
		// Graphviz puts the origin bottom-left; canvas y grows downward.
		attrs = append(attrs, fmt.Sprintf("pos=\"%s,%s!\"", fmtFloat(n.Position.X), fmtFloat(-n.Position.Y)))
	}
	return attrs
}

func edgeAttrs(e diagram.Edge) []string {
	attrs := []string{
		fmt.Sprintf("label=%q", e.Label),
		fmt.Sprintf("color=%q", e.Color),
		fmt.Sprintf("fontcolor=%q", e.Color),
	}
	if e.Direction == catalog.DirectionBothWays {
		attrs = append(attrs, "dir=both")
	}
	return attrs
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
// Returns the SVG bytes ready for display or further conversion with [render.ToPDF] or [render.ToPNG].
func RenderSVG(ctx context.Context, dot string, engine Engine) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	switch engine {
	case EngineNeato:
		gv.SetLayout(graphviz.NEATO)
	case EngineDot, "":
		gv.SetLayout(graphviz.DOT)
	default:
		return nil, fmt.Errorf("unknown layout engine: %q", engine)
	}

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}

// RenderPDF renders a DOT graph as PDF via SVG conversion.
//
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
func RenderPDF(ctx context.Context, dot string, engine Engine) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot, engine)
	if err != nil {
		return nil, err
	}
	return render.ToPDF(ctx, svg)
}

// RenderPNG renders a DOT graph as PNG via SVG conversion. A scale of 2.0
// produces a 2x resolution image.
func RenderPNG(ctx context.Context, dot string, engine Engine, scale float64) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot, engine)
	if err != nil {
		return nil, err
	}
	return render.ToPNG(ctx, svg, scale)
}

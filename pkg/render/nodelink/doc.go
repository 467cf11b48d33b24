// Package nodelink renders merged stream and app diagrams as Graphviz
// node-link diagrams.
//
// # Usage
//
// Convert a merged diagram to DOT, then render to SVG:
//
//	dot := nodelink.ToDOT(data, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot, nodelink.EngineDot)
//
// To keep the positions a user arranged, emit them as pinned coordinates
// and render with neato:
//
//	dot := nodelink.ToDOT(data, nodelink.Options{Pinned: true})
//	svg, err := nodelink.RenderSVG(ctx, dot, nodelink.EngineNeato)
//
// [RenderPDF] and [RenderPNG] convert the SVG further and require librsvg
// (rsvg-convert).
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering.
package nodelink

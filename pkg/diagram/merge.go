package diagram

import (
	"github.com/matzehuels/appmap/pkg/layout"
)

// Merge overlays a stored layout on a canonical graph.
//
// The graph decides what exists: every canonical node and edge is emitted,
// enriched with the stored position, style and size of the same id; nodes
// without a stored position are placed at {0,0}. Stored entries with no
// canonical counterpart are dropped. The config blob is copied with its
// totalNodes/totalEdges counters, when present, set to the merged counts.
// A nil layout merges as an empty one.
func Merge(g Graph, l *layout.Layout) Data {
	var (
		storedNodes map[string]layout.NodeLayout
		storedEdges map[string]layout.EdgeLayout
	)
	if l != nil {
		storedNodes = l.NodesLayout
		storedEdges = make(map[string]layout.EdgeLayout, len(l.EdgesLayout))
		for _, e := range l.EdgesLayout {
			if _, dup := storedEdges[e.ID]; !dup {
				storedEdges[e.ID] = e
			}
		}
	}

	nodes := make([]Node, len(g.Nodes))
	for i, n := range g.Nodes {
		pos := Position{}
		if s, ok := storedNodes[n.ID]; ok {
			if s.Position != nil {
				pos = *s.Position
			}
			n.Style = layout.CloneMap(s.Style)
			n.Width = copyFloat(s.Width)
			n.Height = copyFloat(s.Height)
		}
		n.Position = &pos
		nodes[i] = n
	}

	edges := make([]Edge, len(g.Edges))
	for i, e := range g.Edges {
		if s, ok := storedEdges[e.ID]; ok {
			e.Style = layout.CloneMap(s.Style)
			e.LabelStyle = layout.CloneMap(s.LabelStyle)
		}
		edges[i] = e
	}

	var config map[string]any
	if l != nil {
		config = layout.CloneMap(l.Config)
		layout.SetCounts(config, len(nodes), len(edges))
	}

	return Data{
		Nodes:  nodes,
		Edges:  edges,
		Layout: l,
		Config: config,
	}
}

// LayoutFromData extracts the persistable overlay of a merged diagram. It is
// the inverse of Merge for positions, styles and sizes.
func LayoutFromData(d Data) *layout.Layout {
	l := &layout.Layout{
		NodesLayout: make(map[string]layout.NodeLayout, len(d.Nodes)),
		EdgesLayout: make([]layout.EdgeLayout, 0, len(d.Edges)),
		Config:      layout.CloneMap(d.Config),
	}
	for _, n := range d.Nodes {
		nl := layout.NodeLayout{
			Style:  layout.CloneMap(n.Style),
			Width:  copyFloat(n.Width),
			Height: copyFloat(n.Height),
		}
		if n.Position != nil {
			p := *n.Position
			nl.Position = &p
		}
		l.NodesLayout[n.ID] = nl
	}
	for _, e := range d.Edges {
		l.EdgesLayout = append(l.EdgesLayout, layout.EdgeLayout{
			ID:         e.ID,
			Source:     e.Source,
			Target:     e.Target,
			Style:      layout.CloneMap(e.Style),
			LabelStyle: layout.CloneMap(e.LabelStyle),
		})
	}
	return l
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

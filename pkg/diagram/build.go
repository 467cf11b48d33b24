package diagram

import (
	"github.com/matzehuels/appmap/pkg/catalog"
)

// Fallbacks for integrations without a resolvable connection type.
const (
	UnknownLabel = "Unknown"
	UnknownColor = "#000000"
)

// Input is everything BuildGraph needs for one stream.
type Input struct {
	// Stream is the home stream with its Apps populated in display order.
	Stream catalog.Stream

	// Apps holds the apps on the far side of the integrations. Home apps
	// may be repeated here; they are taken from Stream.Apps.
	Apps []catalog.App

	// Integrations touching the home apps. Others are ignored.
	Integrations []catalog.Integration

	ConnectionTypes []catalog.ConnectionType
}

// BuildOptions controls presentation variants.
type BuildOptions struct {
	// Admin flattens the diagram: home nodes are not parented under the
	// stream node, which is kept as a label.
	Admin bool

	// Label overrides the stream node label, e.g. with a display name.
	Label string
}

// BuildGraph derives the canonical graph of a stream.
//
// Nodes come out as the stream node, then home apps in stream order, then
// external apps in first-seen order. Edges follow integration order. When
// two integrations share an edge id, the later one replaces the earlier in
// the earlier one's slot.
func BuildGraph(in Input, opts BuildOptions) Graph {
	s := in.Stream
	b := newBuilder(in.ConnectionTypes)

	label := opts.Label
	if label == "" {
		label = s.Name
	}
	b.addNode(Node{
		ID:   s.Name,
		Type: NodeTypeStream,
		Data: NodeData{
			Label:        label,
			StreamName:   s.Name,
			IsHomeStream: true,
			IsParentNode: true,
		},
	})

	home := make(map[int64]bool, len(s.Apps))
	for _, a := range s.Apps {
		if home[a.ID] {
			continue
		}
		home[a.ID] = true
		if a.StreamName == "" {
			a.StreamName = s.Name
		}
		n := appNode(a, true)
		if !opts.Admin {
			n.ParentNode = s.Name
		}
		b.addNode(n)
	}

	apps := make(map[int64]catalog.App, len(in.Apps))
	for _, a := range in.Apps {
		apps[a.ID] = a
	}

	for _, i := range in.Integrations {
		srcHome, tgtHome := home[i.SourceAppID], home[i.TargetAppID]
		if !srcHome && !tgtHome {
			continue
		}
		if i.SourceAppID == i.TargetAppID {
			b.skip(i.ID)
			continue
		}
		if !srcHome || !tgtHome {
			other := i.Other(pickHome(i, home))
			a, ok := apps[other]
			if !ok {
				b.skip(i.ID)
				continue
			}
			b.addNode(appNode(a, false))
		}
		b.addEdge(i)
	}
	return b.graph()
}

// BuildAppGraph derives the integration view of a single app: the focus
// node plus one external node per partner app, without a stream node.
func BuildAppGraph(focus catalog.App, apps []catalog.App, integrations []catalog.Integration, types []catalog.ConnectionType) Graph {
	b := newBuilder(types)
	b.addNode(appNode(focus, true))

	partners := make(map[int64]catalog.App, len(apps))
	for _, a := range apps {
		partners[a.ID] = a
	}
	for _, i := range integrations {
		if !i.Touches(focus.ID) {
			continue
		}
		other := i.Other(focus.ID)
		if other == focus.ID {
			b.skip(i.ID)
			continue
		}
		a, ok := partners[other]
		if !ok {
			b.skip(i.ID)
			continue
		}
		b.addNode(appNode(a, false))
		b.addEdge(i)
	}
	return b.graph()
}

// pickHome returns the home endpoint of an integration with exactly one.
func pickHome(i catalog.Integration, home map[int64]bool) int64 {
	if home[i.SourceAppID] {
		return i.SourceAppID
	}
	return i.TargetAppID
}

func appNode(a catalog.App, home bool) Node {
	return Node{
		ID:   a.NodeID(),
		Type: NodeTypeApp,
		Data: NodeData{
			Label:        a.Name,
			AppID:        a.ID,
			AppName:      a.Name,
			StreamName:   a.StreamName,
			Lingkup:      a.Scope,
			Tier:         a.Tier,
			IsHomeStream: home,
		},
	}
}

// =============================================================================
// builder
// =============================================================================

type builder struct {
	types   map[int64]catalog.ConnectionType
	nodes   []Node
	nodeIdx map[string]bool
	edges   []Edge
	edgeIdx map[string]int
	skipped []int64
}

func newBuilder(types []catalog.ConnectionType) *builder {
	return &builder{
		types:   catalog.ConnectionTypeIndex(types),
		nodeIdx: make(map[string]bool),
		edgeIdx: make(map[string]int),
	}
}

// addNode appends n unless a node with the same id exists.
func (b *builder) addNode(n Node) {
	if b.nodeIdx[n.ID] {
		return
	}
	b.nodeIdx[n.ID] = true
	b.nodes = append(b.nodes, n)
}

func (b *builder) addEdge(i catalog.Integration) {
	e := b.edge(i)
	if idx, ok := b.edgeIdx[e.ID]; ok {
		b.edges[idx] = e
		return
	}
	b.edgeIdx[e.ID] = len(b.edges)
	b.edges = append(b.edges, e)
}

func (b *builder) edge(i catalog.Integration) Edge {
	label, color := UnknownLabel, UnknownColor
	if i.ConnectionTypeID != nil {
		if t, ok := b.types[*i.ConnectionTypeID]; ok {
			label = t.Name
			if t.Color != "" {
				color = t.Color
			}
		}
	}
	dir := i.Direction
	if dir == "" {
		dir = catalog.DirectionOneWay
	}
	return Edge{
		ID:             i.EdgeID(),
		Source:         catalog.NodeID(i.SourceAppID),
		Target:         catalog.NodeID(i.TargetAppID),
		Label:          label,
		ConnectionType: label,
		Color:          color,
		Animated:       dir == catalog.DirectionBothWays,
		Direction:      dir,
		Data: EdgeData{
			IntegrationID: i.ID,
			Inbound:       i.Inbound,
			Outbound:      i.Outbound,
			Endpoint:      i.Endpoint,
		},
	}
}

func (b *builder) skip(id int64) {
	b.skipped = append(b.skipped, id)
}

func (b *builder) graph() Graph {
	g := Graph{Nodes: b.nodes, Edges: b.edges, Skipped: b.skipped}
	if g.Nodes == nil {
		g.Nodes = []Node{}
	}
	if g.Edges == nil {
		g.Edges = []Edge{}
	}
	return g
}

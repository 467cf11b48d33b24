// Package diagram derives node/edge diagrams from the catalog and overlays
// stored layouts on them.
//
// The flow is build, then merge:
//
//	g := diagram.BuildGraph(in, diagram.BuildOptions{})  // canonical structure
//	data := diagram.Merge(g, stored)                     // positions and styles
//
// BuildGraph is pure; it takes plain catalog records and never touches
// storage. [Service] performs the data access around it.
package diagram

import (
	"github.com/matzehuels/appmap/pkg/catalog"
	"github.com/matzehuels/appmap/pkg/layout"
)

// NodeType distinguishes stream container nodes from app nodes.
type NodeType string

const (
	NodeTypeStream NodeType = "stream"
	NodeTypeApp    NodeType = "app"
)

// Position is a node's canvas coordinate.
type Position = layout.Position

// NodeData is the denormalized payload the rendering layer displays.
type NodeData struct {
	Label        string       `json:"label"`
	AppID        int64        `json:"app_id,omitempty"`
	AppName      string       `json:"app_name,omitempty"`
	StreamName   string       `json:"stream_name"`
	Lingkup      string       `json:"lingkup,omitempty"`
	Tier         catalog.Tier `json:"tier,omitempty"`
	IsHomeStream bool         `json:"is_home_stream"`
	IsParentNode bool         `json:"is_parent_node"`
}

// Node is one diagram node. App nodes use the app id as id; the stream
// container node uses the stream name.
type Node struct {
	ID         string         `json:"id"`
	Type       NodeType       `json:"type"`
	Data       NodeData       `json:"data"`
	Position   *Position      `json:"position,omitempty"`
	Style      map[string]any `json:"style,omitempty"`
	ParentNode string         `json:"parentNode,omitempty"`
	Width      *float64       `json:"width,omitempty"`
	Height     *float64       `json:"height,omitempty"`
}

// EdgeData carries the integration's descriptive fields.
type EdgeData struct {
	IntegrationID int64  `json:"integration_id"`
	Inbound       string `json:"inbound,omitempty"`
	Outbound      string `json:"outbound,omitempty"`
	Endpoint      string `json:"endpoint,omitempty"`
}

// Edge is one integration. Its id is "{source}-{target}".
type Edge struct {
	ID             string            `json:"id"`
	Source         string            `json:"source"`
	Target         string            `json:"target"`
	Label          string            `json:"label"`
	ConnectionType string            `json:"connection_type"`
	Color          string            `json:"color"`
	Animated       bool              `json:"animated"`
	Direction      catalog.Direction `json:"direction"`
	Data           EdgeData          `json:"data"`
	Style          map[string]any    `json:"style,omitempty"`
	LabelStyle     map[string]any    `json:"label_style,omitempty"`
}

// Graph is the canonical structure produced by the builders.
type Graph struct {
	Nodes []Node
	Edges []Edge

	// Skipped lists integrations dropped because an endpoint app was not
	// supplied to the builder.
	Skipped []int64
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Data is a merged diagram, the shape served to the rendering layer.
// Error is set, with empty nodes and edges, when loading failed.
type Data struct {
	Nodes  []Node         `json:"nodes"`
	Edges  []Edge         `json:"edges"`
	Layout *layout.Layout `json:"layout"`
	Config map[string]any `json:"config"`
	Error  string         `json:"error,omitempty"`
}

// Failed returns an empty diagram carrying msg.
func Failed(msg string) *Data {
	return &Data{Nodes: []Node{}, Edges: []Edge{}, Error: msg}
}

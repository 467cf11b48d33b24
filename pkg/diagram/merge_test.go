package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/appmap/pkg/layout"
)

func TestMergeNilLayout(t *testing.T) {
	g := BuildGraph(spInput(), BuildOptions{})
	d := Merge(g, nil)

	require.Len(t, d.Nodes, len(g.Nodes))
	for _, n := range d.Nodes {
		require.NotNil(t, n.Position, n.ID)
		assert.Equal(t, Position{}, *n.Position, n.ID)
	}
	assert.Len(t, d.Edges, len(g.Edges))
	assert.Nil(t, d.Layout)
	assert.Nil(t, d.Config)
}

func TestMergeOverlaysStoredLayout(t *testing.T) {
	g := BuildGraph(spInput(), BuildOptions{})
	stored := &layout.Layout{
		Key: layout.StreamKey(1),
		NodesLayout: map[string]layout.NodeLayout{
			"1":     {Position: &layout.Position{X: 10, Y: 20}, Style: map[string]any{"background": "#fff"}},
			"3":     {Position: &layout.Position{X: -5, Y: 7.5}, Width: ptr(120.0), Height: ptr(40.0)},
			"ghost": {Position: &layout.Position{X: 1, Y: 1}},
		},
		EdgesLayout: []layout.EdgeLayout{
			{ID: "3-1", Style: map[string]any{"strokeWidth": 2.0}, LabelStyle: map[string]any{"fill": "red"}},
			{ID: "3-1", Style: map[string]any{"strokeWidth": 9.0}},
			{ID: "9-9"},
		},
		Config: map[string]any{"totalNodes": 99, "totalEdges": 99, "zoom": 1.5},
	}

	d := Merge(g, stored)

	assert.Equal(t, []string{"sp", "1", "2", "3"}, func() []string {
		ids := []string{}
		for _, n := range d.Nodes {
			ids = append(ids, n.ID)
		}
		return ids
	}())
	assert.Equal(t, Position{X: 10, Y: 20}, *d.Nodes[1].Position)
	assert.Equal(t, "#fff", d.Nodes[1].Style["background"])
	assert.Equal(t, Position{}, *d.Nodes[2].Position, "no stored position")
	assert.Equal(t, Position{X: -5, Y: 7.5}, *d.Nodes[3].Position)
	assert.Equal(t, 120.0, *d.Nodes[3].Width)
	assert.Equal(t, 40.0, *d.Nodes[3].Height)

	require.Len(t, d.Edges, 1)
	assert.Equal(t, 2.0, d.Edges[0].Style["strokeWidth"], "first stored entry wins")
	assert.Equal(t, "red", d.Edges[0].LabelStyle["fill"])

	assert.Equal(t, 4, d.Config["totalNodes"])
	assert.Equal(t, 1, d.Config["totalEdges"])
	assert.Equal(t, 1.5, d.Config["zoom"])
	assert.Same(t, stored, d.Layout)
}

func TestMergeDoesNotAliasStoredLayout(t *testing.T) {
	stored := &layout.Layout{
		NodesLayout: map[string]layout.NodeLayout{"1": {Style: map[string]any{"color": "blue"}}},
		Config:      map[string]any{"totalNodes": 2},
	}
	d := Merge(BuildGraph(spInput(), BuildOptions{}), stored)

	d.Nodes[1].Style["color"] = "green"
	d.Config["totalNodes"] = 0

	assert.Equal(t, "blue", stored.NodesLayout["1"].Style["color"])
	assert.Equal(t, 2, stored.Config["totalNodes"])
}

func TestMergeLeavesAbsentCountersAbsent(t *testing.T) {
	d := Merge(BuildGraph(spInput(), BuildOptions{}), &layout.Layout{Config: map[string]any{"zoom": 1}})
	assert.NotContains(t, d.Config, "totalNodes")
	assert.NotContains(t, d.Config, "totalEdges")
}

func TestLayoutFromDataRoundTrip(t *testing.T) {
	g := BuildGraph(spInput(), BuildOptions{})
	d := Merge(g, nil)
	d.Nodes[1].Position = &Position{X: 42, Y: 24}
	d.Nodes[3].Width = ptr(200.0)
	d.Edges[0].Style = map[string]any{"stroke": "#333"}

	l := LayoutFromData(d)
	require.Len(t, l.NodesLayout, 4)
	assert.Equal(t, layout.Position{X: 42, Y: 24}, *l.NodesLayout["1"].Position)
	require.Len(t, l.EdgesLayout, 1)
	assert.Equal(t, "3", l.EdgesLayout[0].Source)
	assert.Equal(t, "1", l.EdgesLayout[0].Target)

	again := Merge(g, l)
	for i := range d.Nodes {
		assert.Equal(t, *d.Nodes[i].Position, *again.Nodes[i].Position, d.Nodes[i].ID)
	}
	assert.Equal(t, 200.0, *again.Nodes[3].Width)
	assert.Equal(t, "#333", again.Edges[0].Style["stroke"])
}

// Package layout persists the visual overlay of a diagram: node positions,
// node and edge styles, and a free-form config blob.
//
// A layout never decides which nodes or edges exist. Diagrams are rebuilt
// from catalog data on every render and the stored layout only enriches
// them, so stale entries are harmless and pruned opportunistically.
//
// Layouts are keyed by [Key]. Stream layouts are keyed by numeric stream id;
// records saved before ids were used are keyed by stream name and remain
// readable through [Layouts.GetByStreamName].
package layout

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/matzehuels/appmap/pkg/errors"
)

// Kind distinguishes what a layout belongs to.
type Kind string

const (
	// KindStream is a stream layout keyed by stream id.
	KindStream Kind = "stream"
	// KindStreamName is a legacy stream layout keyed by stream name.
	KindStreamName Kind = "stream_name"
	// KindApp is a single-app integration layout keyed by app id.
	KindApp Kind = "app"
)

// Config keys recomputed whenever the layout changes shape.
const (
	ConfigTotalNodes = "totalNodes"
	ConfigTotalEdges = "totalEdges"
)

// Key identifies one layout record. ID is set for KindStream and KindApp,
// Name for KindStreamName.
type Key struct {
	Kind Kind   `json:"kind" bson:"kind"`
	ID   int64  `json:"id,omitempty" bson:"id,omitempty"`
	Name string `json:"name,omitempty" bson:"name,omitempty"`
}

// StreamKey returns the key of a stream layout.
func StreamKey(id int64) Key { return Key{Kind: KindStream, ID: id} }

// StreamNameKey returns the key of a legacy name-keyed stream layout.
func StreamNameKey(name string) Key { return Key{Kind: KindStreamName, Name: name} }

// AppKey returns the key of an app layout.
func AppKey(id int64) Key { return Key{Kind: KindApp, ID: id} }

// Ref returns the id or name part of the key as a string.
func (k Key) Ref() string {
	if k.Kind == KindStreamName {
		return k.Name
	}
	return strconv.FormatInt(k.ID, 10)
}

// String returns "kind:ref".
func (k Key) String() string {
	return string(k.Kind) + ":" + k.Ref()
}

// Validate checks that the key addresses exactly one record.
func (k Key) Validate() error {
	switch k.Kind {
	case KindStream, KindApp:
		if k.ID <= 0 {
			return errors.New(errors.ErrCodeInvalidInput, "%s layout key requires a positive id", k.Kind)
		}
	case KindStreamName:
		if err := errors.ValidateStreamName(k.Name); err != nil {
			return err
		}
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown layout kind %q", k.Kind)
	}
	return nil
}

// ParseKey parses the "kind:ref" form produced by Key.String.
func ParseKey(s string) (Key, error) {
	kind, ref, ok := strings.Cut(s, ":")
	if !ok {
		return Key{}, errors.New(errors.ErrCodeInvalidInput, "layout key %q: want kind:ref", s)
	}
	k := Key{Kind: Kind(kind)}
	if k.Kind == KindStreamName {
		k.Name = ref
	} else {
		id, err := errors.ParseID(kind, ref)
		if err != nil {
			return Key{}, err
		}
		k.ID = id
	}
	return k, k.Validate()
}

// Position is a node's canvas coordinate.
type Position struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
}

// NodeLayout is the stored overlay for one node.
type NodeLayout struct {
	Position *Position     `json:"position,omitempty" bson:"position,omitempty"`
	Style    map[string]any `json:"style,omitempty" bson:"style,omitempty"`
	Width    *float64       `json:"width,omitempty" bson:"width,omitempty"`
	Height   *float64       `json:"height,omitempty" bson:"height,omitempty"`
}

// EdgeLayout is the stored overlay for one edge. Source and Target are
// optional; older records carry only the id.
type EdgeLayout struct {
	ID         string         `json:"id" bson:"id"`
	Source     string         `json:"source,omitempty" bson:"source,omitempty"`
	Target     string         `json:"target,omitempty" bson:"target,omitempty"`
	Style      map[string]any `json:"style,omitempty" bson:"style,omitempty"`
	LabelStyle map[string]any `json:"label_style,omitempty" bson:"label_style,omitempty"`
}

// Endpoints returns the edge's source and target node ids, falling back to
// splitting the "{source}-{target}" id when they were not recorded.
func (e EdgeLayout) Endpoints() (source, target string) {
	if e.Source != "" || e.Target != "" {
		return e.Source, e.Target
	}
	source, target, _ = strings.Cut(e.ID, "-")
	return source, target
}

// Layout is one persisted overlay.
type Layout struct {
	Key         Key                   `json:"key" bson:"key"`
	NodesLayout map[string]NodeLayout `json:"nodes_layout" bson:"nodes_layout"`
	EdgesLayout []EdgeLayout          `json:"edges_layout" bson:"edges_layout"`
	Config      map[string]any        `json:"config,omitempty" bson:"config,omitempty"`
	UpdatedAt   time.Time             `json:"updated_at" bson:"updated_at"`
}

// New returns an empty layout for key.
func New(key Key) *Layout {
	return &Layout{
		Key:         key,
		NodesLayout: map[string]NodeLayout{},
		EdgesLayout: []EdgeLayout{},
	}
}

// Edge returns the stored edge with the given id.
func (l *Layout) Edge(id string) (EdgeLayout, bool) {
	for _, e := range l.EdgesLayout {
		if e.ID == id {
			return e, true
		}
	}
	return EdgeLayout{}, false
}

// Recount rewrites totalNodes/totalEdges to the layout's own entry counts,
// but only for counters the config already tracks.
func (l *Layout) Recount() {
	SetCounts(l.Config, len(l.NodesLayout), len(l.EdgesLayout))
}

// SetCounts overwrites the totalNodes/totalEdges entries of config with the
// given counts when, and only when, the entries are present.
func SetCounts(config map[string]any, nodes, edges int) {
	if config == nil {
		return
	}
	if _, ok := config[ConfigTotalNodes]; ok {
		config[ConfigTotalNodes] = nodes
	}
	if _, ok := config[ConfigTotalEdges]; ok {
		config[ConfigTotalEdges] = edges
	}
}

// Clone returns a deep copy of l.
func (l *Layout) Clone() *Layout {
	if l == nil {
		return nil
	}
	c := &Layout{
		Key:       l.Key,
		Config:    CloneMap(l.Config),
		UpdatedAt: l.UpdatedAt,
	}
	if l.NodesLayout != nil {
		c.NodesLayout = make(map[string]NodeLayout, len(l.NodesLayout))
		for id, n := range l.NodesLayout {
			c.NodesLayout[id] = n.clone()
		}
	}
	if l.EdgesLayout != nil {
		c.EdgesLayout = make([]EdgeLayout, len(l.EdgesLayout))
		for i, e := range l.EdgesLayout {
			e.Style = CloneMap(e.Style)
			e.LabelStyle = CloneMap(e.LabelStyle)
			c.EdgesLayout[i] = e
		}
	}
	return c
}

func (n NodeLayout) clone() NodeLayout {
	if n.Position != nil {
		p := *n.Position
		n.Position = &p
	}
	if n.Width != nil {
		w := *n.Width
		n.Width = &w
	}
	if n.Height != nil {
		h := *n.Height
		n.Height = &h
	}
	n.Style = CloneMap(n.Style)
	return n
}

// CloneMap deep-copies a JSON-shaped map.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	default:
		return v
	}
}

func (k Key) check() error {
	if err := k.Validate(); err != nil {
		return fmt.Errorf("layout key %s: %w", k, err)
	}
	return nil
}

package config

// StreamEntry is one permitted stream with its display metadata.
type StreamEntry struct {
	Name        string `toml:"name" yaml:"name" json:"name"`
	DisplayName string `toml:"display_name" yaml:"display_name" json:"display_name"`
	Description string `toml:"description" yaml:"description" json:"description,omitempty"`
	Color       string `toml:"color" yaml:"color" json:"color,omitempty"`
}

// Label returns the display name, falling back to the stream name.
func (s StreamEntry) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Name
}

// AllowList is the ordered set of streams that may be rendered as diagrams.
// It is injected into the diagram service rather than looked up globally,
// so every call sees exactly the list it was built with.
type AllowList struct {
	entries []StreamEntry
	index   map[string]int
}

// NewAllowList builds an allow-list preserving the order of entries.
// Later duplicates are ignored.
func NewAllowList(entries ...StreamEntry) *AllowList {
	a := &AllowList{index: make(map[string]int, len(entries))}
	for _, e := range entries {
		if _, dup := a.index[e.Name]; dup {
			continue
		}
		a.index[e.Name] = len(a.entries)
		a.entries = append(a.entries, e)
	}
	return a
}

// IsStreamAllowed reports whether name may be rendered.
// A nil allow-list permits nothing.
func (a *AllowList) IsStreamAllowed(name string) bool {
	if a == nil {
		return false
	}
	_, ok := a.index[name]
	return ok
}

// ListAllowedStreams returns a copy of the entries in configured order.
func (a *AllowList) ListAllowedStreams() []StreamEntry {
	if a == nil {
		return nil
	}
	out := make([]StreamEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Entry returns the entry for name.
func (a *AllowList) Entry(name string) (StreamEntry, bool) {
	if a == nil {
		return StreamEntry{}, false
	}
	i, ok := a.index[name]
	if !ok {
		return StreamEntry{}, false
	}
	return a.entries[i], true
}

// Len returns the number of permitted streams.
func (a *AllowList) Len() int {
	if a == nil {
		return 0
	}
	return len(a.entries)
}

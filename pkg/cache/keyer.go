package cache

import "strings"

// Keyer builds cache keys.
type Keyer interface {
	// LayoutKey returns the key for a stored layout, identified by its kind
	// ("stream", "stream_name", "app") and reference.
	LayoutKey(kind, ref string) string

	// LayoutPrefix returns the prefix shared by every layout key.
	LayoutPrefix() string
}

// DefaultKeyer produces "layout:{kind}:{hash}" keys. References are hashed
// so stream names with spaces or unicode never leak into key syntax.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// LayoutKey implements Keyer.
func (DefaultKeyer) LayoutKey(kind, ref string) string {
	return "layout:" + strings.ToLower(kind) + ":" + Digest(ref)
}

// LayoutPrefix implements Keyer.
func (DefaultKeyer) LayoutPrefix() string {
	return "layout:"
}

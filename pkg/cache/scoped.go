package cache

// ScopedKeyer wraps a Keyer with a prefix for environment isolation.
// This is useful when several deployments (staging, production) share one
// Redis instance and must not read each other's layouts.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "appmap:staging:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// LayoutKey generates a prefixed layout key.
func (k *ScopedKeyer) LayoutKey(kind, ref string) string {
	return k.prefix + k.inner.LayoutKey(kind, ref)
}

// LayoutPrefix returns the prefixed layout key prefix.
func (k *ScopedKeyer) LayoutPrefix() string {
	return k.prefix + k.inner.LayoutPrefix()
}

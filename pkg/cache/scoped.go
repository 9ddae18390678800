package cache

// ScopedKeyer wraps a Keyer with a prefix so several deployments can share one
// Redis or Mongo backend without colliding.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "staging:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. A nil inner uses DefaultKeyer.
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
func (k *ScopedKeyer) LayoutKey(graphHash string, params any) string {
	return k.prefix + k.inner.LayoutKey(graphHash, params)
}

// RunKey generates a prefixed run key.
func (k *ScopedKeyer) RunKey(runID string) string {
	return k.prefix + k.inner.RunKey(runID)
}

package mapping

import (
	"sync"
	"sync/atomic"

	"github.com/agentic-research/fieldmap/api"
)

// Snapshot is an immutable version of the canonical mapping.
type Snapshot struct {
	Version       uint64
	Root          *Object
	Templates     Templates
	DateDetection bool
}

// Export renders the snapshot as a mapping definition.
func (s *Snapshot) Export() *api.Mapping {
	m := &api.Mapping{Dynamic: dynamicToAPI(s.Root.Dynamic)}
	if !s.DateDetection {
		off := false
		m.DateDetection = &off
	}
	for _, t := range s.Templates {
		m.DynamicTemplates = append(m.DynamicTemplates, t.Def)
	}
	if s.Root.Len() > 0 {
		m.Properties = make(map[string]*api.FieldSpec, s.Root.Len())
		for _, name := range s.Root.names {
			m.Properties[name] = SpecFromNode(s.Root.children[name])
		}
	}
	return m
}

// Canonical is the process-wide mapping. Readers take snapshots without
// locking; merges are serialized and publish a new snapshot atomically.
type Canonical struct {
	mu      sync.Mutex // serializes merges
	current atomic.Pointer[Snapshot]
}

// NewCanonical compiles def into version 1 of a canonical mapping.
func NewCanonical(def *api.Mapping) (*Canonical, error) {
	snap, err := Compile(def)
	if err != nil {
		return nil, err
	}
	snap.Version = 1
	return NewCanonicalFrom(snap), nil
}

// NewCanonicalFrom wraps an existing snapshot, e.g. one restored from disk.
func NewCanonicalFrom(snap *Snapshot) *Canonical {
	c := &Canonical{}
	c.current.Store(snap)
	return c
}

// Snapshot returns the current version. The result never changes.
func (c *Canonical) Snapshot() *Snapshot {
	return c.current.Load()
}

// Merge applies d to the current version. When d is already subsumed the
// current snapshot is returned with changed=false. On error nothing is
// published.
func (c *Canonical) Merge(d *Delta) (snap *Snapshot, changed bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.current.Load()
	if d == nil || d.Empty() {
		return cur, false, nil
	}
	root, changed, err := Merge(cur.Root, d.entries)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return cur, false, nil
	}
	next := &Snapshot{
		Version:       cur.Version + 1,
		Root:          root,
		Templates:     cur.Templates,
		DateDetection: cur.DateDetection,
	}
	c.current.Store(next)
	return next, true, nil
}

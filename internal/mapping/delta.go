package mapping

import "fmt"

// DeltaEntry is one node synthesized while resolving a document.
type DeltaEntry struct {
	Path FieldPath
	Node Node
}

// Delta accumulates the nodes a single document adds to the mapping. It
// keeps a private view of base with its entries applied, so later lookups in
// the same document see earlier additions. base itself is never modified.
type Delta struct {
	base    *Object
	view    *Object
	entries []DeltaEntry
}

// NewDelta starts an empty delta over base.
func NewDelta(base *Object) *Delta {
	return &Delta{base: base, view: base}
}

// View is base with every entry applied.
func (d *Delta) View() *Object { return d.view }

// Base is the root the delta was started from.
func (d *Delta) Base() *Object { return d.base }

// Entries returns the entries in creation order (parents before children).
func (d *Delta) Entries() []DeltaEntry {
	return append([]DeltaEntry(nil), d.entries...)
}

func (d *Delta) Len() int { return len(d.entries) }

func (d *Delta) Empty() bool { return len(d.entries) == 0 }

// Add records n at path. The parent of path must already resolve to an
// object in the view and path itself must be absent.
func (d *Delta) Add(path FieldPath, n Node) error {
	if len(path) == 0 {
		return fmt.Errorf("delta: empty path")
	}
	view, err := insert(d.view, path, path, n)
	if err != nil {
		return err
	}
	d.view = view
	d.entries = append(d.entries, DeltaEntry{Path: path.Child(), Node: n})
	return nil
}

func insert(obj *Object, full, rest FieldPath, n Node) (*Object, error) {
	name := rest[0]
	child, ok := obj.Child(name)
	if len(rest) == 1 {
		if ok {
			return nil, fmt.Errorf("delta: [%s] already exists", full)
		}
		return obj.With(name, n), nil
	}
	if !ok {
		return nil, fmt.Errorf("delta: parent of [%s] does not exist", full)
	}
	childObj, ok := child.(*Object)
	if !ok {
		return nil, &PathConflictError{Path: full, Leaf: full[:len(full)-len(rest)+1]}
	}
	updated, err := insert(childObj, full, rest[1:], n)
	if err != nil {
		return nil, err
	}
	return obj.With(name, updated), nil
}

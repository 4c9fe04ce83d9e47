package mapping

// Merge applies delta entries to root and returns the new root. changed is
// false when every entry already existed identically, in which case root is
// returned as is. root is never modified.
func Merge(root *Object, entries []DeltaEntry) (*Object, bool, error) {
	changed := false
	for _, e := range entries {
		updated, c, err := mergeAt(root, e.Path, e.Path, e.Node)
		if err != nil {
			return nil, false, err
		}
		if c {
			root = updated
			changed = true
		}
	}
	return root, changed, nil
}

func mergeAt(obj *Object, full, rest FieldPath, n Node) (*Object, bool, error) {
	name := rest[0]
	existing, ok := obj.Child(name)
	if len(rest) == 1 {
		if !ok {
			return obj.With(name, n), true, nil
		}
		merged, changed, err := mergeNode(full, existing, n)
		if err != nil || !changed {
			return obj, false, err
		}
		return obj.With(name, merged), true, nil
	}

	if !ok {
		// Entries are ordered parents first and the canonical mapping only
		// grows, so a missing parent means the entry is not from a delta.
		return nil, false, &MergeConflictError{Path: full[:len(full)-len(rest)+1], Existing: "missing", Proposed: typeObject}
	}
	childObj, isObj := existing.(*Object)
	if !isObj {
		return nil, false, &MergeConflictError{Path: full[:len(full)-len(rest)+1], Existing: existing.Describe(), Proposed: typeObject}
	}
	updated, changed, err := mergeAt(childObj, full, rest[1:], n)
	if err != nil || !changed {
		return obj, false, err
	}
	return obj.With(name, updated), true, nil
}

// mergeNode checks proposed against existing. Leaves must be identical,
// since the fields a document produced depend on every leaf option;
// objects must agree on nested and dynamic and merge their children
// recursively.
func mergeNode(path FieldPath, existing, proposed Node) (Node, bool, error) {
	conflict := &MergeConflictError{Path: path, Existing: existing.Describe(), Proposed: proposed.Describe()}
	if existing.Kind() != proposed.Kind() {
		return nil, false, conflict
	}
	switch e := existing.(type) {
	case *Leaf:
		if !Equal(e, proposed) {
			return nil, false, conflict
		}
		return existing, false, nil
	case *Object:
		p := proposed.(*Object)
		if e.Nested != p.Nested || e.Dynamic != p.Dynamic {
			return nil, false, conflict
		}
		out, changed := e, false
		for _, name := range p.names {
			child := p.children[name]
			cur, ok := out.Child(name)
			if !ok {
				out, changed = out.With(name, child), true
				continue
			}
			merged, c, err := mergeNode(path.Child(name), cur, child)
			if err != nil {
				return nil, false, err
			}
			if c {
				out, changed = out.With(name, merged), true
			}
		}
		return out, changed, nil
	}
	return nil, false, conflict
}

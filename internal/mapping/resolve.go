package mapping

// Status is the outcome of resolving a FieldPath against a tree.
type Status int

const (
	// Found means every segment resolved; Node is the node at the path.
	Found Status = iota
	// MissingFrom means segment Index is absent from its parent object.
	MissingFrom
	// Conflict means segment Index is a leaf but a deeper segment follows.
	Conflict
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case MissingFrom:
		return "missing"
	}
	return "conflict"
}

// Resolution is the three-way result of Resolve.
type Resolution struct {
	Status Status
	Node   Node
	// Index of the first missing segment (MissingFrom) or of the leaf
	// segment used as a container (Conflict).
	Index int
	// Parent is the deepest object reached.
	Parent *Object
}

// Resolve walks path against root.
func Resolve(root *Object, path FieldPath) Resolution {
	cur := root
	for i, seg := range path {
		child, ok := cur.Child(seg)
		if !ok {
			return Resolution{Status: MissingFrom, Index: i, Parent: cur}
		}
		if i == len(path)-1 {
			return Resolution{Status: Found, Node: child, Index: i, Parent: cur}
		}
		obj, ok := child.(*Object)
		if !ok {
			return Resolution{Status: Conflict, Node: child, Index: i, Parent: cur}
		}
		cur = obj
	}
	return Resolution{Status: Found, Node: root, Index: -1}
}

// EffectiveDynamic returns the dynamic setting that applies to new children
// of the object at path. Unset settings inherit from the parent; the root
// defaults to DynamicTrue.
func EffectiveDynamic(root *Object, path FieldPath) Dynamic {
	mode := DynamicTrue
	if root.Dynamic != DynamicInherit {
		mode = root.Dynamic
	}
	cur := root
	for _, seg := range path {
		child, ok := cur.Child(seg)
		if !ok {
			break
		}
		obj, ok := child.(*Object)
		if !ok {
			break
		}
		if obj.Dynamic != DynamicInherit {
			mode = obj.Dynamic
		}
		cur = obj
	}
	return mode
}

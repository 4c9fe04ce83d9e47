package mapping

import (
	"fmt"
	"strings"
)

// NodeKind tags the two MappingNode variants.
type NodeKind int

const (
	KindObject NodeKind = iota
	KindLeaf
)

func (k NodeKind) String() string {
	if k == KindObject {
		return "object"
	}
	return "leaf"
}

// Node is either an *Object or a *Leaf. Nodes reachable from a published
// snapshot are immutable; updates copy the path from the root.
type Node interface {
	Kind() NodeKind
	// Describe renders the node's definition for error messages.
	Describe() string
}

// Dynamic is the effective handling of unmapped fields under an object.
type Dynamic int

const (
	DynamicInherit Dynamic = iota
	DynamicTrue
	DynamicFalse
	DynamicStrict
)

func (d Dynamic) String() string {
	switch d {
	case DynamicTrue:
		return "true"
	case DynamicFalse:
		return "false"
	case DynamicStrict:
		return "strict"
	}
	return "inherit"
}

// Object holds named children in insertion order.
type Object struct {
	Dynamic Dynamic
	Nested  bool

	names    []string
	children map[string]Node
}

// NewObject returns an empty object that inherits its dynamic setting.
func NewObject() *Object {
	return &Object{children: map[string]Node{}}
}

func (o *Object) Kind() NodeKind { return KindObject }

func (o *Object) Describe() string {
	if o.Nested {
		return typeNested
	}
	return typeObject
}

// Child looks up a direct child by name.
func (o *Object) Child(name string) (Node, bool) {
	n, ok := o.children[name]
	return n, ok
}

// Names returns the child names in insertion order.
func (o *Object) Names() []string {
	return append([]string(nil), o.names...)
}

func (o *Object) Len() int { return len(o.names) }

// With returns a copy of o where name maps to n. A new name is appended;
// an existing one keeps its position.
func (o *Object) With(name string, n Node) *Object {
	c := &Object{
		Dynamic:  o.Dynamic,
		Nested:   o.Nested,
		names:    o.names,
		children: make(map[string]Node, len(o.children)+1),
	}
	for k, v := range o.children {
		c.children[k] = v
	}
	if _, exists := o.children[name]; !exists {
		c.names = append(o.names[:len(o.names):len(o.names)], name)
	}
	c.children[name] = n
	return c
}

// Options are the indexing options of a leaf.
type Options struct {
	Index    bool
	Analyzer string
	Store    bool
}

// Leaf is a typed field definition.
type Leaf struct {
	Type    FieldType
	Options Options
	// CopyTo targets, in declaration order. Duplicates are kept.
	CopyTo []FieldPath
}

func (l *Leaf) Kind() NodeKind { return KindLeaf }

func (l *Leaf) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "type=%s", l.Type)
	if !l.Options.Index {
		b.WriteString(" index=false")
	}
	if l.Options.Analyzer != "" {
		fmt.Fprintf(&b, " analyzer=%s", l.Options.Analyzer)
	}
	if l.Options.Store {
		b.WriteString(" store=true")
	}
	if len(l.CopyTo) > 0 {
		targets := make([]string, len(l.CopyTo))
		for i, p := range l.CopyTo {
			targets[i] = p.String()
		}
		fmt.Fprintf(&b, " copy_to=[%s]", strings.Join(targets, ","))
	}
	return b.String()
}

// Equal compares two nodes structurally. Object children are compared by
// name, so insertion order does not matter.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case *Leaf:
		y := b.(*Leaf)
		if x.Type != y.Type || x.Options != y.Options || len(x.CopyTo) != len(y.CopyTo) {
			return false
		}
		for i := range x.CopyTo {
			if !x.CopyTo[i].Equal(y.CopyTo[i]) {
				return false
			}
		}
		return true
	case *Object:
		y := b.(*Object)
		if x.Dynamic != y.Dynamic || x.Nested != y.Nested || x.Len() != y.Len() {
			return false
		}
		for name, xc := range x.children {
			yc, ok := y.children[name]
			if !ok || !Equal(xc, yc) {
				return false
			}
		}
		return true
	}
	return false
}

package mapping

import (
	"fmt"
	"strings"
)

// FieldPath is a non-empty sequence of name segments. The last segment names
// the field, the preceding segments name its containing objects.
type FieldPath []string

// ParsePath splits a dot-delimited path. Empty segments are rejected.
func ParsePath(s string) (FieldPath, error) {
	if s == "" {
		return nil, fmt.Errorf("empty field path")
	}
	segs := strings.Split(s, ".")
	for _, seg := range segs {
		if seg == "" {
			return nil, fmt.Errorf("field path %q has an empty segment", s)
		}
	}
	return FieldPath(segs), nil
}

// MustParsePath is ParsePath for literals; it panics on invalid input.
func MustParsePath(s string) FieldPath {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p FieldPath) String() string {
	return strings.Join(p, ".")
}

// Leaf returns the unqualified field name.
func (p FieldPath) Leaf() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Parent returns the path of the containing object (empty for root fields).
func (p FieldPath) Parent() FieldPath {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1:len(p)-1]
}

// Child returns a new path with name appended. The receiver is never aliased.
func (p FieldPath) Child(names ...string) FieldPath {
	out := make(FieldPath, 0, len(p)+len(names))
	out = append(out, p...)
	return append(out, names...)
}

func (p FieldPath) Equal(o FieldPath) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is a segment-wise prefix of p.
func (p FieldPath) HasPrefix(prefix FieldPath) bool {
	if len(prefix) > len(p) {
		return false
	}
	return p[:len(prefix)].Equal(prefix)
}

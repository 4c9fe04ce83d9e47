package mapping

import "fmt"

// TypeConflictError reports a value or definition whose type cannot be
// stored at a path that already has an incompatible node.
type TypeConflictError struct {
	Path     FieldPath
	Existing string
	Observed string
}

func (e *TypeConflictError) Error() string {
	return fmt.Sprintf("type conflict at [%s]: mapped as %s, got %s", e.Path, e.Existing, e.Observed)
}

// PathConflictError reports a path that uses a leaf field as a container.
type PathConflictError struct {
	Path FieldPath
	// Leaf is the prefix of Path that resolves to a leaf.
	Leaf FieldPath
}

func (e *PathConflictError) Error() string {
	return fmt.Sprintf("path conflict at [%s]: [%s] is a leaf field, not an object", e.Path, e.Leaf)
}

// MergeConflictError reports a delta entry that disagrees with the node
// already published in the canonical mapping.
type MergeConflictError struct {
	Path     FieldPath
	Existing string
	Proposed string
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict at [%s]: existing %s, proposed %s", e.Path, e.Existing, e.Proposed)
}

// StrictDynamicError reports an unmapped field under an object whose
// dynamic setting is strict.
type StrictDynamicError struct {
	Path FieldPath
}

func (e *StrictDynamicError) Error() string {
	return fmt.Sprintf("mapping set to strict, dynamic introduction of [%s] is not allowed", e.Path)
}

// InvalidMappingError reports a malformed mapping definition.
type InvalidMappingError struct {
	Field  string
	Reason string
}

func (e *InvalidMappingError) Error() string {
	if e.Field == "" {
		return "invalid mapping: " + e.Reason
	}
	return fmt.Sprintf("invalid mapping for [%s]: %s", e.Field, e.Reason)
}

// TemplateAmbiguity is informational: more than one template could match a
// field. The first one in declaration order was used.
type TemplateAmbiguity struct {
	Path       FieldPath
	Chosen     string
	Candidates []string
}

func (w TemplateAmbiguity) String() string {
	return fmt.Sprintf("field [%s] matched templates %v, using %q", w.Path, w.Candidates, w.Chosen)
}

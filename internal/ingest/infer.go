package ingest

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/agentic-research/fieldmap/internal/mapping"
)

// Resolver walks documents against a mapping snapshot. It never modifies the
// snapshot: new nodes go into the document's private delta.
type Resolver struct {
	compat mapping.Compatibility
	logger *slog.Logger
}

// NewResolver creates a resolver. A nil compat uses the default matrix.
func NewResolver(compat mapping.Compatibility, logger *slog.Logger) *Resolver {
	if compat == nil {
		compat = mapping.DefaultCompatibility()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{compat: compat, logger: logger}
}

// Resolve types every field of doc against snap, synthesizing the nodes the
// document introduces. It is pure: the same inputs give the same output.
func (r *Resolver) Resolve(snap *mapping.Snapshot, id string, doc map[string]any) (*ParsedDocument, error) {
	p := &pass{
		r:     r,
		snap:  snap,
		delta: mapping.NewDelta(snap.Root),
		out:   &ParsedDocument{ID: id, Version: snap.Version},
	}
	if err := p.walkObject(nil, doc); err != nil {
		return nil, err
	}
	p.out.Delta = p.delta
	return p.out, nil
}

// pass is the state of one document's resolution.
type pass struct {
	r     *Resolver
	snap  *mapping.Snapshot
	delta *mapping.Delta
	out   *ParsedDocument
}

func (p *pass) walkObject(path mapping.FieldPath, m map[string]any) error {
	if len(path) > 0 {
		obj, err := p.inferObject(path)
		if err != nil || obj == nil {
			return err
		}
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		child, err := childPath(path, k)
		if err != nil {
			return err
		}
		if err := p.walkValue(child, m[k]); err != nil {
			return err
		}
	}
	return nil
}

// childPath expands dotted keys ("a.b") into nested segments.
func childPath(parent mapping.FieldPath, key string) (mapping.FieldPath, error) {
	if !strings.Contains(key, ".") {
		if key == "" {
			return nil, fmt.Errorf("field name cannot be empty under [%s]", parent)
		}
		return parent.Child(key), nil
	}
	segs, err := mapping.ParsePath(key)
	if err != nil {
		return nil, fmt.Errorf("invalid field name %q under [%s]: %w", key, parent, err)
	}
	return parent.Child(segs...), nil
}

func (p *pass) walkValue(path mapping.FieldPath, v any) error {
	switch x := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return p.walkObject(path, x)
	case []any:
		for _, elem := range x {
			if err := p.walkValue(path, elem); err != nil {
				return err
			}
		}
		return nil
	}
	return p.scalar(path, v)
}

func (p *pass) scalar(path mapping.FieldPath, v any) error {
	raw, ok := rawTypeOf(v, p.snap.DateDetection)
	if !ok {
		return fmt.Errorf("unsupported value %T at [%s]", v, path)
	}
	leaf, err := p.inferLeaf(path, raw)
	if err != nil || leaf == nil {
		return err
	}
	if err := p.emit(path, leaf, v, raw, nil); err != nil {
		return err
	}
	return p.copyTo(path, leaf, v, raw)
}

// emit appends a typed value for path to the output.
func (p *pass) emit(path mapping.FieldPath, leaf *mapping.Leaf, v any, raw mapping.RawType, from mapping.FieldPath) error {
	typed, err := coerce(leaf.Type, v)
	if err != nil {
		return &mapping.TypeConflictError{Path: path, Existing: string(leaf.Type), Observed: fmt.Sprintf("%s (%v)", raw, err)}
	}
	p.out.Fields = append(p.out.Fields, Field{
		Path:       path,
		Type:       leaf.Type,
		Value:      typed,
		Options:    leaf.Options,
		CopiedFrom: from,
	})
	return nil
}

// inferObject returns the object at path, creating it (and any missing
// ancestors) in the delta. It returns nil without error when dynamic=false
// suppresses the creation.
func (p *pass) inferObject(path mapping.FieldPath) (*mapping.Object, error) {
	res, ok, err := p.lookup(path)
	if !ok || err != nil {
		return nil, err
	}
	switch res.Status {
	case mapping.Found:
		obj, ok := res.Node.(*mapping.Object)
		if !ok {
			return nil, &mapping.TypeConflictError{Path: path, Existing: res.Node.Describe(), Observed: string(mapping.RawObject)}
		}
		return obj, nil
	case mapping.Conflict:
		return nil, &mapping.PathConflictError{Path: path, Leaf: path[:res.Index+1]}
	}

	if ok, err := p.allowNew(path); !ok || err != nil {
		return nil, err
	}
	n, err := p.synthesize(path, mapping.RawObject)
	if err != nil {
		return nil, err
	}
	obj, ok := n.(*mapping.Object)
	if !ok {
		return nil, &mapping.TypeConflictError{Path: path, Existing: n.Describe(), Observed: string(mapping.RawObject)}
	}
	if err := p.delta.Add(path, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// inferLeaf returns the leaf at path for a value of the given raw type,
// creating it (and any missing ancestors) in the delta. It returns nil
// without error when dynamic=false suppresses the creation.
func (p *pass) inferLeaf(path mapping.FieldPath, raw mapping.RawType) (*mapping.Leaf, error) {
	res, ok, err := p.lookup(path)
	if !ok || err != nil {
		return nil, err
	}
	switch res.Status {
	case mapping.Found:
		leaf, ok := res.Node.(*mapping.Leaf)
		if !ok {
			return nil, &mapping.TypeConflictError{Path: path, Existing: res.Node.Describe(), Observed: string(raw)}
		}
		if !p.r.compat.Accepts(leaf.Type, raw) {
			return nil, &mapping.TypeConflictError{Path: path, Existing: string(leaf.Type), Observed: string(raw)}
		}
		return leaf, nil
	case mapping.Conflict:
		return nil, &mapping.PathConflictError{Path: path, Leaf: path[:res.Index+1]}
	}

	if ok, err := p.allowNew(path); !ok || err != nil {
		return nil, err
	}
	n, err := p.synthesize(path, raw)
	if err != nil {
		return nil, err
	}
	leaf, ok := n.(*mapping.Leaf)
	if !ok {
		return nil, &mapping.TypeConflictError{Path: path, Existing: n.Describe(), Observed: string(raw)}
	}
	if !p.r.compat.Accepts(leaf.Type, raw) {
		return nil, &mapping.TypeConflictError{Path: path, Existing: string(leaf.Type), Observed: string(raw)}
	}
	if err := p.delta.Add(path, leaf); err != nil {
		return nil, err
	}
	return leaf, nil
}

// lookup resolves path against the delta view. Missing ancestors are
// created first, and path is resolved again afterwards: an ancestor built
// from an object template may already declare it. ok is false when the
// field must be ignored.
func (p *pass) lookup(path mapping.FieldPath) (res mapping.Resolution, ok bool, err error) {
	res = mapping.Resolve(p.delta.View(), path)
	if res.Status != mapping.MissingFrom || res.Index == len(path)-1 {
		return res, true, nil
	}
	parent, err := p.inferObject(path.Parent())
	if err != nil || parent == nil {
		return res, false, err
	}
	return mapping.Resolve(p.delta.View(), path), true, nil
}

// allowNew checks that the parent of path accepts a new child. ok is false
// when the field must be ignored.
func (p *pass) allowNew(path mapping.FieldPath) (ok bool, err error) {
	switch mapping.EffectiveDynamic(p.delta.View(), path.Parent()) {
	case mapping.DynamicStrict:
		return false, &mapping.StrictDynamicError{Path: path}
	case mapping.DynamicFalse:
		p.r.logger.Debug("ignoring unmapped field", "doc", p.out.ID, "path", path.String())
		return false, nil
	}
	return true, nil
}

// synthesize builds the node for an unmapped field: the first matching
// dynamic template, or the built-in default for raw.
func (p *pass) synthesize(path mapping.FieldPath, raw mapping.RawType) (mapping.Node, error) {
	matches := p.snap.Templates.Matching(path, raw)
	if len(matches) == 0 {
		if raw == mapping.RawObject {
			return mapping.NewObject(), nil
		}
		t, _ := mapping.DefaultType(raw)
		return &mapping.Leaf{Type: t, Options: mapping.Options{Index: true}}, nil
	}

	chosen := matches[0]
	if len(matches) > 1 {
		w := mapping.TemplateAmbiguity{Path: path, Chosen: chosen.Name()}
		for _, t := range matches {
			w.Candidates = append(w.Candidates, t.Name())
		}
		p.out.Warnings = append(p.out.Warnings, w)
		p.r.logger.Debug("template ambiguity", "doc", p.out.ID, "detail", w.String())
	}

	n, err := chosen.Instantiate(path, raw)
	if err != nil {
		return nil, fmt.Errorf("dynamic template %q for [%s]: %w", chosen.Name(), path, err)
	}
	return n, nil
}

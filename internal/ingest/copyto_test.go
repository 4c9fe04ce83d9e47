package ingest

import (
	"errors"
	"testing"

	"github.com/agentic-research/fieldmap/internal/mapping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// An object template whose first property copies into a sibling declared
// by the same template, so copy_to points inside the object being created.
const objectTemplateMapping = `{"test": {"dynamic_templates": [
	{"foo": {"match": "foo*", "mapping": {
		"type": "object",
		"properties": {
			"one": {"type": "string", "copy_to": ["{name}.two"]},
			"two": {"type": "string"}
		}
	}}}
]}}`

func TestCopyTo_NameTemplateCreatesTarget(t *testing.T) {
	snap := snapshotOf(t, `{"dynamic_templates": [
		{"all": {"match": "*", "mapping": {"type": "text", "copy_to": "{name}_raw"}}}
	]}`)
	r := NewResolver(nil, nil)

	doc, err := r.Resolve(snap, "1", map[string]any{"f": "value"})
	require.NoError(t, err)
	assert.Equal(t, []any{"value"}, doc.Values("f"))
	assert.Equal(t, []any{"value"}, doc.Values("f_raw"))

	require.Len(t, doc.Fields, 2)
	assert.Equal(t, "f", doc.Fields[1].CopiedFrom.String())
	assert.Equal(t, []string{"f", "f_raw"}, entryPaths(doc.Delta))

	// f_raw was built from the same template; its own copy_to is not followed.
	target := leafAt(t, doc.Delta.View(), "f_raw")
	require.Len(t, target.CopyTo, 1)
	assert.Equal(t, "f_raw_raw", target.CopyTo[0].String())
	assert.Empty(t, doc.Values("f_raw_raw"))
}

func TestCopyTo_IntoObjectFromTemplate(t *testing.T) {
	snap := snapshotOf(t, objectTemplateMapping)
	r := NewResolver(nil, nil)

	doc, err := r.Resolve(snap, "1", map[string]any{"foo": map[string]any{"one": "bar"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"bar"}, doc.Values("foo.one"))
	assert.Equal(t, []any{"bar"}, doc.Values("foo.two"))
}

func TestCopyTo_IntoMissingObject(t *testing.T) {
	snap := snapshotOf(t, `{"properties": {
		"src": {"type": "keyword", "copy_to": ["foo.two", "all.text"]}
	}}`)
	r := NewResolver(nil, nil)

	doc, err := r.Resolve(snap, "1", map[string]any{"src": "bar"})
	require.NoError(t, err)

	assert.Equal(t, []string{"foo", "foo.two", "all", "all.text"}, entryPaths(doc.Delta))
	view := doc.Delta.View()
	assert.Equal(t, mapping.TypeText, leafAt(t, view, "foo.two").Type)
	assert.Equal(t, []any{"bar"}, doc.Values("foo.two"))
	assert.Equal(t, []any{"bar"}, doc.Values("all.text"))
	assert.Equal(t, []any{"bar"}, doc.Values("src"))
}

func TestCopyTo_RootFieldIntoTemplateObject(t *testing.T) {
	snap := snapshotOf(t, `{"test": {
		"properties": {"src": {"type": "keyword", "copy_to": "foo.two"}},
		"dynamic_templates": [
			{"foo": {"match": "foo*", "mapping": {
				"type": "object",
				"properties": {"two": {"type": "string"}}
			}}}
		]
	}}`)
	r := NewResolver(nil, nil)
	src := map[string]any{"src": "bar"}

	cold, err := r.Resolve(snap, "1", src)
	require.NoError(t, err)
	assert.Equal(t, []string{"foo"}, entryPaths(cold.Delta))
	assert.Equal(t, []any{"bar"}, cold.Values("foo.two"))
	assert.Equal(t, mapping.TypeText, leafAt(t, cold.Delta.View(), "foo.two").Type)

	c := mapping.NewCanonicalFrom(snap)
	_, _, err = c.Merge(cold.Delta)
	require.NoError(t, err)

	warm, err := r.Resolve(c.Snapshot(), "2", src)
	require.NoError(t, err)
	assert.True(t, warm.Delta.Empty())
	assert.Equal(t, cold.Values("foo.two"), warm.Values("foo.two"))
}

func TestCopyTo_OrderIndependent(t *testing.T) {
	snap := snapshotOf(t, objectTemplateMapping)
	r := NewResolver(nil, nil)
	first := map[string]any{"foo": map[string]any{"one": "bar"}}

	// Against a fresh mapping.
	cold, err := r.Resolve(snap, "1", first)
	require.NoError(t, err)

	// Against a mapping where another document already created foo.
	c := mapping.NewCanonicalFrom(snap)
	other, err := r.Resolve(snap, "2", map[string]any{"foo": map[string]any{"three": "bar"}})
	require.NoError(t, err)
	_, _, err = c.Merge(other.Delta)
	require.NoError(t, err)

	warm, err := r.Resolve(c.Snapshot(), "1", first)
	require.NoError(t, err)

	assert.Equal(t, cold.Values("foo.two"), warm.Values("foo.two"))
	assert.Equal(t, len(cold.Fields), len(warm.Fields))
}

func TestCopyTo_Errors(t *testing.T) {
	r := NewResolver(nil, nil)

	t.Run("target under a leaf", func(t *testing.T) {
		snap := snapshotOf(t, `{"properties": {
			"leaf": {"type": "keyword"},
			"src": {"type": "keyword", "copy_to": "leaf.inner"}
		}}`)
		_, err := r.Resolve(snap, "1", map[string]any{"src": "x"})
		var pc *mapping.PathConflictError
		require.True(t, errors.As(err, &pc))
		assert.Equal(t, "leaf", pc.Leaf.String())
	})

	t.Run("target of incompatible type", func(t *testing.T) {
		snap := snapshotOf(t, `{"properties": {
			"n": {"type": "long"},
			"src": {"type": "keyword", "copy_to": "n"}
		}}`)
		_, err := r.Resolve(snap, "1", map[string]any{"src": "x"})
		var tc *mapping.TypeConflictError
		require.True(t, errors.As(err, &tc))
	})

	t.Run("target is an object", func(t *testing.T) {
		snap := snapshotOf(t, `{"properties": {
			"obj": {"properties": {"a": {"type": "text"}}},
			"src": {"type": "keyword", "copy_to": "obj"}
		}}`)
		_, err := r.Resolve(snap, "1", map[string]any{"src": "x"})
		var tc *mapping.TypeConflictError
		require.True(t, errors.As(err, &tc))
	})

	t.Run("strict parent rejects", func(t *testing.T) {
		snap := snapshotOf(t, `{"properties": {
			"locked": {"dynamic": "strict", "properties": {"a": {"type": "text"}}},
			"src": {"type": "keyword", "copy_to": "locked.b"}
		}}`)
		_, err := r.Resolve(snap, "1", map[string]any{"src": "x"})
		var strict *mapping.StrictDynamicError
		require.True(t, errors.As(err, &strict))
	})

	t.Run("dynamic false drops the copy", func(t *testing.T) {
		snap := snapshotOf(t, `{"properties": {
			"quiet": {"dynamic": false, "properties": {"a": {"type": "text"}}},
			"src": {"type": "keyword", "copy_to": ["quiet.b", "quiet.a"]}
		}}`)
		doc, err := r.Resolve(snap, "1", map[string]any{"src": "x"})
		require.NoError(t, err)
		assert.Empty(t, doc.Values("quiet.b"))
		assert.Equal(t, []any{"x"}, doc.Values("quiet.a"))
	})
}

func TestCopyTo_DuplicateTargets(t *testing.T) {
	snap := snapshotOf(t, `{"properties": {"src": {"type": "keyword", "copy_to": ["dst", "dst"]}}}`)
	doc, err := NewResolver(nil, nil).Resolve(snap, "1", map[string]any{"src": "x"})
	require.NoError(t, err)
	assert.Equal(t, []any{"x", "x"}, doc.Values("dst"))
	assert.Equal(t, 1, doc.Delta.Len())
}

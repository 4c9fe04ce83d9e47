package ingest

import (
	"errors"
	"testing"
	"time"

	"github.com/agentic-research/fieldmap/internal/mapping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotOf(t *testing.T, raw string) *mapping.Snapshot {
	t.Helper()
	return canonicalOf(t, raw).Snapshot()
}

func canonicalOf(t *testing.T, raw string) *mapping.Canonical {
	t.Helper()
	def, err := mapping.ParseDefinition([]byte(raw), false)
	require.NoError(t, err)
	c, err := mapping.NewCanonical(def)
	require.NoError(t, err)
	return c
}

func leafAt(t *testing.T, root *mapping.Object, path string) *mapping.Leaf {
	t.Helper()
	res := mapping.Resolve(root, mapping.MustParsePath(path))
	require.Equal(t, mapping.Found, res.Status, path)
	leaf, ok := res.Node.(*mapping.Leaf)
	require.True(t, ok, "%s is %s", path, res.Node.Describe())
	return leaf
}

func entryPaths(d *mapping.Delta) []string {
	var out []string
	for _, e := range d.Entries() {
		out = append(out, e.Path.String())
	}
	return out
}

func TestResolve_DefaultInference(t *testing.T) {
	snap := snapshotOf(t, `{}`)
	r := NewResolver(nil, nil)

	doc, err := r.Resolve(snap, "1", map[string]any{
		"title": "hello world",
		"count": int64(3),
		"ratio": 1.5,
		"ok":    true,
		"when":  "2024-01-02",
		"obj":   map[string]any{"a": "x"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"count", "obj", "obj.a", "ok", "ratio", "title", "when"}, entryPaths(doc.Delta))
	assert.Equal(t, 0, snap.Root.Len(), "snapshot is never mutated")

	view := doc.Delta.View()
	assert.Equal(t, mapping.TypeText, leafAt(t, view, "title").Type)
	assert.Equal(t, mapping.TypeLong, leafAt(t, view, "count").Type)
	assert.Equal(t, mapping.TypeDouble, leafAt(t, view, "ratio").Type)
	assert.Equal(t, mapping.TypeBoolean, leafAt(t, view, "ok").Type)
	assert.Equal(t, mapping.TypeDate, leafAt(t, view, "when").Type)
	assert.Equal(t, mapping.TypeText, leafAt(t, view, "obj.a").Type)

	assert.Equal(t, []any{int64(3)}, doc.Values("count"))
	assert.Equal(t, []any{time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}, doc.Values("when"))
	assert.Equal(t, []any{"x"}, doc.Values("obj.a"))
}

func TestResolve_DocumentShapes(t *testing.T) {
	r := NewResolver(nil, nil)

	t.Run("dotted keys expand to objects", func(t *testing.T) {
		doc, err := r.Resolve(snapshotOf(t, `{}`), "1", map[string]any{"a.b": "x"})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "a.b"}, entryPaths(doc.Delta))
		assert.Equal(t, []any{"x"}, doc.Values("a.b"))
	})

	t.Run("nulls and empty arrays are skipped", func(t *testing.T) {
		doc, err := r.Resolve(snapshotOf(t, `{}`), "1", map[string]any{"n": nil, "e": []any{}})
		require.NoError(t, err)
		assert.Empty(t, doc.Fields)
		assert.True(t, doc.Delta.Empty())
	})

	t.Run("arrays of scalars share a path", func(t *testing.T) {
		doc, err := r.Resolve(snapshotOf(t, `{}`), "1", map[string]any{"tags": []any{"a", "b"}})
		require.NoError(t, err)
		assert.Equal(t, []any{"a", "b"}, doc.Values("tags"))
		assert.Equal(t, 1, doc.Delta.Len())
	})

	t.Run("arrays of objects walk each element", func(t *testing.T) {
		doc, err := r.Resolve(snapshotOf(t, `{}`), "1", map[string]any{"items": []any{
			map[string]any{"id": int64(1)},
			map[string]any{"id": int64(2)},
		}})
		require.NoError(t, err)
		assert.Equal(t, []any{int64(1), int64(2)}, doc.Values("items.id"))
		assert.Equal(t, []string{"items", "items.id"}, entryPaths(doc.Delta))
	})

	t.Run("long widens into double", func(t *testing.T) {
		snap := snapshotOf(t, `{"properties": {"f": {"type": "double"}}}`)
		doc, err := r.Resolve(snap, "1", map[string]any{"f": int64(3)})
		require.NoError(t, err)
		assert.Equal(t, []any{float64(3)}, doc.Values("f"))
		assert.True(t, doc.Delta.Empty())
	})

	t.Run("date detection off keeps strings", func(t *testing.T) {
		snap := snapshotOf(t, `{"date_detection": false}`)
		doc, err := r.Resolve(snap, "1", map[string]any{"when": "2024-01-02"})
		require.NoError(t, err)
		assert.Equal(t, mapping.TypeText, leafAt(t, doc.Delta.View(), "when").Type)
	})
}

func TestResolve_Conflicts(t *testing.T) {
	r := NewResolver(nil, nil)
	snap := snapshotOf(t, `{"properties": {
		"f": {"type": "long"},
		"foo": {"properties": {"one": {"type": "text"}}}
	}}`)

	tests := []struct {
		name  string
		doc   map[string]any
		check func(t *testing.T, err error)
	}{
		{"string into long", map[string]any{"f": "not-a-number"}, func(t *testing.T, err error) {
			var tc *mapping.TypeConflictError
			require.True(t, errors.As(err, &tc))
			assert.Equal(t, "f", tc.Path.String())
			assert.Equal(t, "long", tc.Existing)
		}},
		{"scalar into object", map[string]any{"foo": "x"}, func(t *testing.T, err error) {
			var tc *mapping.TypeConflictError
			require.True(t, errors.As(err, &tc))
		}},
		{"object into leaf", map[string]any{"f": map[string]any{"x": int64(1)}}, func(t *testing.T, err error) {
			var tc *mapping.TypeConflictError
			require.True(t, errors.As(err, &tc))
		}},
		{"leaf used as container", map[string]any{"f.x": int64(1)}, func(t *testing.T, err error) {
			var pc *mapping.PathConflictError
			require.True(t, errors.As(err, &pc))
			assert.Equal(t, "f", pc.Leaf.String())
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(snap, "1", tt.doc)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestResolve_DynamicSettings(t *testing.T) {
	r := NewResolver(nil, nil)

	t.Run("strict root", func(t *testing.T) {
		snap := snapshotOf(t, `{"dynamic": "strict", "properties": {"known": {"type": "keyword"}}}`)
		_, err := r.Resolve(snap, "1", map[string]any{"known": "a", "unknown": "b"})
		var strict *mapping.StrictDynamicError
		require.True(t, errors.As(err, &strict))
		assert.Equal(t, "unknown", strict.Path.String())
	})

	t.Run("strict object inherited by new children", func(t *testing.T) {
		snap := snapshotOf(t, `{"properties": {"meta": {"dynamic": "strict", "properties": {
			"inner": {"properties": {"id": {"type": "long"}}}
		}}}}`)
		_, err := r.Resolve(snap, "1", map[string]any{"meta": map[string]any{"inner": map[string]any{"x": true}}})
		var strict *mapping.StrictDynamicError
		require.True(t, errors.As(err, &strict))
		assert.Equal(t, "meta.inner.x", strict.Path.String())
	})

	t.Run("false ignores unmapped fields", func(t *testing.T) {
		snap := snapshotOf(t, `{"properties": {"meta": {"dynamic": false, "properties": {"id": {"type": "long"}}}}}`)
		doc, err := r.Resolve(snap, "1", map[string]any{"meta": map[string]any{
			"id":    int64(7),
			"extra": "dropped",
			"deep":  map[string]any{"x": "dropped"},
		}})
		require.NoError(t, err)
		assert.True(t, doc.Delta.Empty())
		require.Len(t, doc.Fields, 1)
		assert.Equal(t, "meta.id", doc.Fields[0].Path.String())
	})
}

func TestResolve_Templates(t *testing.T) {
	snap := snapshotOf(t, `{"dynamic_templates": [
		{"raw": {"match": "*_raw", "mapping": {"type": "keyword"}}},
		{"all": {"match": "*", "match_mapping_type": "string", "mapping": {"type": "text"}}},
		{"objs": {"match": "cfg", "mapping": {"type": "object", "dynamic": "strict",
			"properties": {"name": {"type": "keyword"}}}}}
	]}`)
	r := NewResolver(nil, nil)

	doc, err := r.Resolve(snap, "1", map[string]any{"x_raw": "A B", "x": "A B"})
	require.NoError(t, err)
	view := doc.Delta.View()
	assert.Equal(t, mapping.TypeKeyword, leafAt(t, view, "x_raw").Type)
	assert.Equal(t, mapping.TypeText, leafAt(t, view, "x").Type)

	require.Len(t, doc.Warnings, 1)
	assert.Equal(t, "x_raw", doc.Warnings[0].Path.String())
	assert.Equal(t, "raw", doc.Warnings[0].Chosen)
	assert.Equal(t, []string{"raw", "all"}, doc.Warnings[0].Candidates)

	t.Run("object template applies to the object", func(t *testing.T) {
		doc, err := r.Resolve(snap, "1", map[string]any{"cfg": map[string]any{"name": "a"}})
		require.NoError(t, err)
		assert.Equal(t, mapping.TypeKeyword, leafAt(t, doc.Delta.View(), "cfg.name").Type)

		_, err = r.Resolve(snap, "2", map[string]any{"cfg": map[string]any{"other": "a"}})
		var strict *mapping.StrictDynamicError
		assert.True(t, errors.As(err, &strict))
	})
}

func TestResolve_DottedKeyIntoTemplateObject(t *testing.T) {
	r := NewResolver(nil, nil)

	t.Run("declared child is reused", func(t *testing.T) {
		snap := snapshotOf(t, objectTemplateMapping)
		dotted, err := r.Resolve(snap, "1", map[string]any{"foo.one": "bar"})
		require.NoError(t, err)
		assert.Equal(t, []string{"foo"}, entryPaths(dotted.Delta))
		assert.Equal(t, []any{"bar"}, dotted.Values("foo.one"))
		assert.Equal(t, []any{"bar"}, dotted.Values("foo.two"))

		nested, err := r.Resolve(snap, "2", map[string]any{"foo": map[string]any{"one": "bar"}})
		require.NoError(t, err)
		assert.Equal(t, entryPaths(nested.Delta), entryPaths(dotted.Delta))
		assert.Equal(t, len(nested.Fields), len(dotted.Fields))
	})

	t.Run("declared child under dynamic false", func(t *testing.T) {
		snap := snapshotOf(t, `{"dynamic_templates": [
			{"meta": {"match": "meta", "mapping": {
				"type": "object", "dynamic": false,
				"properties": {"kept": {"type": "keyword"}}
			}}}
		]}`)
		doc, err := r.Resolve(snap, "1", map[string]any{"meta.kept": "a", "meta.dropped": "b"})
		require.NoError(t, err)
		assert.Equal(t, []any{"a"}, doc.Values("meta.kept"))
		assert.Empty(t, doc.Values("meta.dropped"))
		assert.Equal(t, []string{"meta"}, entryPaths(doc.Delta))
	})
}

func TestResolve_Deterministic(t *testing.T) {
	snap := snapshotOf(t, `{}`)
	r := NewResolver(nil, nil)
	src := map[string]any{"z": "1", "a": map[string]any{"c": int64(1), "b": true}, "m.n": 2.5}

	first, err := r.Resolve(snap, "1", src)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := r.Resolve(snap, "1", src)
		require.NoError(t, err)
		assert.Equal(t, entryPaths(first.Delta), entryPaths(again.Delta))
		assert.True(t, mapping.Equal(first.Delta.View(), again.Delta.View()))
	}
}

func TestResolve_CustomCompatibility(t *testing.T) {
	snap := snapshotOf(t, `{"properties": {"n": {"type": "long"}}}`)

	_, err := NewResolver(nil, nil).Resolve(snap, "1", map[string]any{"n": 1.5})
	var tc *mapping.TypeConflictError
	require.True(t, errors.As(err, &tc))

	compat := mapping.DefaultCompatibility().With(mapping.TypeLong, mapping.RawLong, mapping.RawDouble)
	doc, err := NewResolver(compat, nil).Resolve(snap, "1", map[string]any{"n": 1.5})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1)}, doc.Values("n"))
}

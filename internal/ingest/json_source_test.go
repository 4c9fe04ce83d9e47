package ingest

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocuments(t *testing.T) {
	input := []byte(`
{
  "hits": [
    {"_source": {"name": "Alice", "age": 30, "score": 1.5}},
    {"_source": {"name": "Bob", "tags": ["a", "b"]}}
  ],
  "meta": {"version": "1.0"}
}
`)

	t.Run("whole value", func(t *testing.T) {
		docs, err := ParseDocuments("in.json", input, "")
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "in.json", docs[0].ID)
		assert.Contains(t, docs[0].Source, "hits")
	})

	t.Run("selector", func(t *testing.T) {
		docs, err := ParseDocuments("in.json", input, "$.hits[*]._source")
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "in.json[0]", docs[0].ID)
		assert.Equal(t, "Alice", docs[0].Source["name"])
		// integral literals stay integers
		assert.Equal(t, int64(30), docs[0].Source["age"])
		assert.Equal(t, 1.5, docs[0].Source["score"])
		assert.Equal(t, []any{"a", "b"}, docs[1].Source["tags"])
	})

	t.Run("selector hits a scalar", func(t *testing.T) {
		_, err := ParseDocuments("in.json", input, "$.meta.version")
		require.Error(t, err)
	})

	t.Run("bad selector", func(t *testing.T) {
		_, err := ParseDocuments("in.json", input, "$[")
		require.Error(t, err)
	})

	t.Run("bad json", func(t *testing.T) {
		_, err := ParseDocuments("in.json", []byte(`{"a":`), "")
		require.Error(t, err)
	})
}

func TestParseLines(t *testing.T) {
	docs, err := ParseLines("in.ndjson", []byte("{\"a\": 1}\n\n{\"b\": \"x\"}\n"))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "in.ndjson:1", docs[0].ID)
	assert.Equal(t, "in.ndjson:3", docs[1].ID)
	assert.Equal(t, int64(1), docs[0].Source["a"])

	_, err = ParseLines("in.ndjson", []byte("[1, 2]\n"))
	require.Error(t, err)
}

func TestJSONSource_Load(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "docs/b.json", []byte(`[{"n": 2}, {"n": 3}]`), 0o644))
	require.NoError(t, util.WriteFile(fs, "docs/a.ndjson", []byte("{\"n\": 1}\n"), 0o644))
	require.NoError(t, util.WriteFile(fs, "docs/readme.txt", []byte("ignored"), 0o644))
	require.NoError(t, util.WriteFile(fs, "single.json", []byte(`{"n": 4}`), 0o644))

	src := NewJSONSource(fs, "$[*]")
	docs, err := src.Load("docs")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, int64(1), docs[0].Source["n"], "files are read in sorted order")
	assert.Equal(t, int64(2), docs[1].Source["n"])
	assert.Equal(t, int64(3), docs[2].Source["n"])

	_, err = src.Load("missing.json")
	require.Error(t, err)

	docs, err = NewJSONSource(fs, "").Load("single.json")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "single.json", docs[0].ID)
}

package ingest

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// JSONSource reads documents from JSON files on a billy filesystem.
//
// A .json file holds one document, or many when Selector picks them out
// (e.g. "$[*]" or "$.hits[*]._source"). A .ndjson / .jsonl file holds one
// document per line. Directories are walked for both.
type JSONSource struct {
	FS       billy.Filesystem
	Selector string
}

// NewJSONSource creates a source over fs.
func NewJSONSource(fs billy.Filesystem, selector string) *JSONSource {
	return &JSONSource{FS: fs, Selector: selector}
}

// Load reads every document under paths, in path order.
func (s *JSONSource) Load(paths ...string) ([]Document, error) {
	files, err := s.expand(paths)
	if err != nil {
		return nil, err
	}
	var docs []Document
	for _, f := range files {
		data, err := util.ReadFile(s.FS, f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		var found []Document
		switch path.Ext(f) {
		case ".ndjson", ".jsonl":
			found, err = ParseLines(f, data)
		default:
			found, err = ParseDocuments(f, data, s.Selector)
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, found...)
	}
	return docs, nil
}

func (s *JSONSource) expand(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := s.FS.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = util.Walk(s.FS, p, func(name string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !fi.IsDir() && isJSONFile(name) {
				files = append(files, name)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

func isJSONFile(name string) bool {
	switch path.Ext(name) {
	case ".json", ".ndjson", ".jsonl":
		return true
	}
	return false
}

// ParseDocuments parses data and returns the documents selector picks out.
// An empty selector takes the whole value. IDs are name for a single
// document and name[i] otherwise.
func ParseDocuments(name string, data []byte, selector string) ([]Document, error) {
	root, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse json %s: %w", name, err)
	}

	values := []any{root}
	if selector != "" {
		x, err := jp.ParseString(selector)
		if err != nil {
			return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
		}
		values = x.Get(root)
	}

	docs := make([]Document, 0, len(values))
	for i, v := range values {
		src, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: selected value %d is %T, not an object", name, i, v)
		}
		id := name
		if selector != "" {
			id = fmt.Sprintf("%s[%d]", name, i)
		}
		docs = append(docs, Document{ID: id, Source: src})
	}
	return docs, nil
}

// ParseLines parses newline-delimited JSON. Blank lines are skipped; IDs are
// name:line.
func ParseLines(name string, data []byte) ([]Document, error) {
	var docs []Document
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		v, err := oj.ParseString(text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse json %s:%d: %w", name, line, err)
		}
		src, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s:%d: document is %T, not an object", name, line, v)
		}
		docs = append(docs, Document{ID: fmt.Sprintf("%s:%d", name, line), Source: src})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return docs, nil
}

// Package index holds an in-memory inverted index over resolved fields.
package index

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/fieldmap/internal/ingest"
	"github.com/agentic-research/fieldmap/internal/mapping"
)

// KeywordAnalyzer indexes a text field's value as a single term.
const KeywordAnalyzer = "keyword"

// MemoryIndex is an inverted index of field terms to documents.
//
// Document IDs are mapped to dense uint32s so postings can be roaring
// bitmaps; intersections with a filter bitmap stay cheap.
type MemoryIndex struct {
	mu       sync.RWMutex
	postings map[string]map[string]*roaring.Bitmap // field → term → docs
	stored   map[uint32][]ingest.Field
	live     *roaring.Bitmap

	docIntID   map[string]uint32 // document ID → internal bitmap uint32 ID
	intToDocID []string          // reverse: uint32 → document ID
	nextIntID  uint32            // monotonic counter
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		postings: make(map[string]map[string]*roaring.Bitmap),
		stored:   make(map[uint32][]ingest.Field),
		live:     roaring.New(),
		docIntID: make(map[string]uint32),
	}
}

// Store indexes doc, replacing any earlier version of it.
func (m *MemoryIndex) Store(_ context.Context, doc *ingest.ParsedDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	intID, ok := m.docIntID[doc.ID]
	if ok {
		m.unindex(intID)
	} else {
		intID = m.nextIntID
		m.nextIntID++
		m.docIntID[doc.ID] = intID
		m.intToDocID = append(m.intToDocID, doc.ID)
	}

	m.stored[intID] = append([]ingest.Field(nil), doc.Fields...)
	m.live.Add(intID)
	for _, f := range doc.Fields {
		if !f.Options.Index {
			continue
		}
		field := f.Path.String()
		terms := m.postings[field]
		if terms == nil {
			terms = make(map[string]*roaring.Bitmap)
			m.postings[field] = terms
		}
		for _, term := range Analyze(f) {
			bm, exists := terms[term]
			if !exists {
				bm = roaring.New()
				terms[term] = bm
			}
			bm.Add(intID)
		}
	}
	return nil
}

// unindex drops a document's postings. Must be called with m.mu held.
func (m *MemoryIndex) unindex(intID uint32) {
	for _, f := range m.stored[intID] {
		terms := m.postings[f.Path.String()]
		for _, term := range Analyze(f) {
			if bm, ok := terms[term]; ok {
				bm.Remove(intID)
				if bm.IsEmpty() {
					delete(terms, term)
				}
			}
		}
	}
	delete(m.stored, intID)
	m.live.Remove(intID)
}

// Analyze returns the terms a field value is indexed under. Text is
// lowercased and split on anything that is not a letter or digit, unless
// the field uses the keyword analyzer; every other type is one term.
func Analyze(f ingest.Field) []string {
	switch v := f.Value.(type) {
	case string:
		if f.Type == mapping.TypeText && f.Options.Analyzer != KeywordAnalyzer {
			return tokenize(v)
		}
		return []string{v}
	case int64:
		return []string{strconv.FormatInt(v, 10)}
	case float64:
		return []string{strconv.FormatFloat(v, 'g', -1, 64)}
	case bool:
		return []string{strconv.FormatBool(v)}
	case time.Time:
		return []string{v.UTC().Format(time.RFC3339Nano)}
	}
	return nil
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// Term returns the documents holding term in field. The result is a copy.
func (m *MemoryIndex) Term(field, term string) *roaring.Bitmap {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if bm, ok := m.postings[field][term]; ok {
		return bm.Clone()
	}
	return roaring.New()
}

// All returns every live document.
func (m *MemoryIndex) All() *roaring.Bitmap {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.live.Clone()
}

// TermsBuckets counts, per term of field, the documents in filter holding
// it. A nil filter counts over all documents. Terms with no documents are
// left out.
func (m *MemoryIndex) TermsBuckets(field string, filter *roaring.Bitmap) map[string]uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]uint64)
	for term, bm := range m.postings[field] {
		n := bm.GetCardinality()
		if filter != nil {
			n = bm.AndCardinality(filter)
		}
		if n > 0 {
			out[term] = n
		}
	}
	return out
}

// DocIDs maps a bitmap of internal IDs back to document IDs, sorted.
func (m *MemoryIndex) DocIDs(bm *roaring.Bitmap) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		intID := it.Next()
		if int(intID) < len(m.intToDocID) {
			out = append(out, m.intToDocID[intID])
		}
	}
	sort.Strings(out)
	return out
}

// Stored returns the fields stored for a document.
func (m *MemoryIndex) Stored(docID string) ([]ingest.Field, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	intID, ok := m.docIntID[docID]
	if !ok {
		return nil, false
	}
	fields, ok := m.stored[intID]
	return fields, ok
}

// DocCount is the number of documents stored.
func (m *MemoryIndex) DocCount() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.live.GetCardinality()
}

var _ ingest.FieldStore = (*MemoryIndex)(nil)

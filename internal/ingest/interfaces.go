package ingest

import (
	"context"

	"github.com/agentic-research/fieldmap/internal/mapping"
)

// FieldStore receives the resolved fields of a document once its mapping
// delta (if any) has been merged. Implementations must be safe for
// concurrent use.
type FieldStore interface {
	Store(ctx context.Context, doc *ParsedDocument) error
}

// Document is an untyped source document.
type Document struct {
	ID     string
	Source map[string]any
}

// Field is one resolved (path, value) write.
type Field struct {
	Path  mapping.FieldPath
	Type  mapping.FieldType
	Value any
	// Options of the leaf the value was resolved against.
	Options mapping.Options
	// CopiedFrom is the source path when the value was produced by copy_to.
	CopiedFrom mapping.FieldPath
}

// ParsedDocument is the output of resolving one document.
type ParsedDocument struct {
	ID string
	// Version of the snapshot the document was resolved against, or of the
	// snapshot its delta was published in.
	Version  uint64
	Fields   []Field
	Delta    *mapping.Delta
	Warnings []mapping.TemplateAmbiguity
}

// Values returns the values resolved at path, in document order.
func (d *ParsedDocument) Values(path string) []any {
	var out []any
	for _, f := range d.Fields {
		if f.Path.String() == path {
			out = append(out, f.Value)
		}
	}
	return out
}

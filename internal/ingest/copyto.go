package ingest

import (
	"fmt"

	"github.com/agentic-research/fieldmap/internal/mapping"
)

// copyTo writes v at every copy_to target of leaf. Missing target structure
// is synthesized the same way a document field would be, so the outcome
// does not depend on what earlier documents created. Targets' own copy_to
// directives are not followed.
func (p *pass) copyTo(source mapping.FieldPath, leaf *mapping.Leaf, v any, raw mapping.RawType) error {
	for _, target := range leaf.CopyTo {
		dst, err := p.inferLeaf(target, raw)
		if err != nil {
			return fmt.Errorf("copy_to [%s] from [%s]: %w", target, source, err)
		}
		if dst == nil {
			// dynamic=false above the target
			continue
		}
		if err := p.emit(target, dst, v, raw, source); err != nil {
			return fmt.Errorf("copy_to [%s] from [%s]: %w", target, source, err)
		}
	}
	return nil
}

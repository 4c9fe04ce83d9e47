package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/agentic-research/fieldmap/internal/mapping"
	"github.com/rcrowley/go-metrics"
	"golang.org/x/sync/errgroup"
)

// DefaultMergeRetries bounds re-resolution after a merge conflict.
const DefaultMergeRetries = 3

// Options configures an Engine. Zero values select defaults.
type Options struct {
	// Workers bounds IndexAll concurrency (default GOMAXPROCS).
	Workers int
	// MergeRetries is how many times a document is re-resolved after its
	// delta lost a merge race (default DefaultMergeRetries, negative = 0).
	MergeRetries  int
	Compatibility mapping.Compatibility
	Logger        *slog.Logger
	Registry      metrics.Registry
}

// Engine drives documents through resolution, merge and storage.
type Engine struct {
	canonical *mapping.Canonical
	store     FieldStore
	resolver  *Resolver
	logger    *slog.Logger
	stats     *engineStats
	registry  metrics.Registry
	workers   int
	retries   int

	// beforeMerge runs between resolution and merge; tests use it to
	// publish a competing delta.
	beforeMerge func(attempt int)
}

// NewEngine creates an engine over canonical. store may be nil for a
// mapping-only run.
func NewEngine(canonical *mapping.Canonical, store FieldStore, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Registry == nil {
		opts.Registry = metrics.NewRegistry()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	switch {
	case opts.MergeRetries == 0:
		opts.MergeRetries = DefaultMergeRetries
	case opts.MergeRetries < 0:
		opts.MergeRetries = 0
	}
	return &Engine{
		canonical: canonical,
		store:     store,
		resolver:  NewResolver(opts.Compatibility, opts.Logger),
		logger:    opts.Logger,
		stats:     newEngineStats(opts.Registry),
		registry:  opts.Registry,
		workers:   opts.Workers,
		retries:   opts.MergeRetries,
	}
}

// Mapping returns the current canonical snapshot.
func (e *Engine) Mapping() *mapping.Snapshot {
	return e.canonical.Snapshot()
}

// Registry exposes the engine's metrics.
func (e *Engine) Registry() metrics.Registry {
	return e.registry
}

// Resolve is a dry run: it resolves doc against the current snapshot
// without merging its delta or storing its fields.
func (e *Engine) Resolve(id string, doc map[string]any) (*ParsedDocument, error) {
	return e.resolver.Resolve(e.canonical.Snapshot(), id, doc)
}

// Index resolves doc, merges its delta into the canonical mapping and then
// hands the fields to the store. A failing document leaves the canonical
// mapping untouched and stores nothing.
func (e *Engine) Index(ctx context.Context, id string, doc map[string]any) (*ParsedDocument, error) {
	parsed, err := e.index(ctx, id, doc)
	if err != nil {
		e.stats.rejected.Inc(1)
		e.logger.Debug("document rejected", "doc", id, "error", err)
		return nil, fmt.Errorf("document %s: %w", id, err)
	}
	e.stats.indexed.Inc(1)
	return parsed, nil
}

func (e *Engine) index(ctx context.Context, id string, doc map[string]any) (*ParsedDocument, error) {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		snap := e.canonical.Snapshot()
		start := time.Now()
		parsed, err := e.resolver.Resolve(snap, id, doc)
		e.stats.resolve.UpdateSince(start)
		if err != nil {
			return nil, err
		}

		if e.beforeMerge != nil {
			e.beforeMerge(attempt)
		}

		published, changed, err := e.canonical.Merge(parsed.Delta)
		if err != nil {
			var conflict *mapping.MergeConflictError
			if !errors.As(err, &conflict) {
				return nil, err
			}
			e.stats.mergeConflicts.Inc(1)
			if attempt >= e.retries {
				return nil, err
			}
			e.logger.Debug("merge conflict, resolving again",
				"doc", id, "attempt", attempt+1, "path", conflict.Path.String())
			continue
		}

		switch {
		case changed:
			e.stats.merges.Inc(1)
			e.logger.Debug("mapping updated", "doc", id, "version", published.Version, "nodes", parsed.Delta.Len())
		case !parsed.Delta.Empty():
			e.stats.noopMerges.Inc(1)
		}
		parsed.Version = published.Version

		if e.store != nil {
			if err := e.store.Store(ctx, parsed); err != nil {
				return nil, fmt.Errorf("store: %w", err)
			}
		}
		return parsed, nil
	}
}

// Result is the outcome of one document in IndexAll.
type Result struct {
	ID  string
	Doc *ParsedDocument
	Err error
}

// IndexAll indexes docs with a bounded worker pool. Each document succeeds
// or fails on its own; results are returned in input order. Once ctx is
// done, documents not yet started fail with the context error.
func (e *Engine) IndexAll(ctx context.Context, docs []Document) []Result {
	results := make([]Result, len(docs))
	g := new(errgroup.Group)
	g.SetLimit(e.workers)

	for i, d := range docs {
		results[i].ID = d.ID
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		g.Go(func() error {
			results[i].Doc, results[i].Err = e.Index(ctx, d.ID, d.Source)
			return nil
		})
	}
	_ = g.Wait() // workers never fail the group
	return results
}

package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/agentic-research/fieldmap/internal/index"
	"github.com/agentic-research/fieldmap/internal/ingest"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
)

type indexOptions struct {
	dbPath       string
	selector     string
	sqliteSource bool
	terms        []string
	showMapping  bool
}

func newIndexCmd(root *rootOptions) *cobra.Command {
	opts := &indexOptions{}
	cmd := &cobra.Command{
		Use:   "index [mapping] [docs...]",
		Short: "Index JSON documents, growing the mapping as new fields appear",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, root, opts, args[0], args[1:])
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.dbPath, "db", "", "SQLite database to persist fields and mappings to (default: store.path from config)")
	f.StringVar(&opts.selector, "select", "", "JSONPath selecting documents inside each JSON file, e.g. '$[*]'")
	f.BoolVar(&opts.sqliteSource, "sqlite-source", false, "Treat document paths as SQLite databases with a results(id, record) table")
	f.StringSliceVar(&opts.terms, "terms", nil, "Print term buckets for these fields after indexing")
	f.BoolVar(&opts.showMapping, "show-mapping", false, "Print the final mapping as JSON")
	return cmd
}

func runIndex(cmd *cobra.Command, root *rootOptions, opts *indexOptions, mappingPath string, sources []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()
	logger := root.logger

	canonical, err := root.loadMapping(mappingPath)
	if err != nil {
		return err
	}
	compat, err := root.cfg.Compatibility()
	if err != nil {
		return err
	}

	docs, err := loadDocuments(opts, sources)
	if err != nil {
		return err
	}

	memory := index.NewMemoryIndex()
	var store ingest.FieldStore = memory
	dbPath := opts.dbPath
	if dbPath == "" {
		dbPath = root.cfg.StorePath()
	}
	var writer *ingest.SQLiteWriter
	if dbPath != "" {
		writer, err = ingest.NewSQLiteWriter(dbPath, root.cfg.BatchSize(), logger)
		if err != nil {
			return err
		}
		defer func() {
			if writer != nil {
				_ = writer.Close()
			}
		}()
		// SQLite first: the memory index cannot fail, so a document never
		// becomes searchable without being persisted.
		store = fanout{writer, memory}
	}

	engine := ingest.NewEngine(canonical, store, ingest.Options{
		Workers:       root.cfg.Workers,
		MergeRetries:  root.cfg.MergeRetries,
		Compatibility: compat,
		Logger:        logger,
	})

	start := time.Now()
	logger.Info("indexing", "documents", len(docs), "mapping", mappingPath)
	rejected := 0
	for _, res := range engine.IndexAll(ctx, docs) {
		if res.Err != nil {
			rejected++
			fmt.Fprintf(cmd.ErrOrStderr(), "rejected %s: %v\n", res.ID, res.Err)
			continue
		}
		for _, w := range res.Doc.Warnings {
			logger.Debug("template ambiguity", "doc", res.ID, "detail", w.String())
		}
	}

	snap := engine.Mapping()
	if writer != nil {
		if err := writer.SaveMapping(snap); err != nil {
			return err
		}
		if err := writer.Close(); err != nil {
			return fmt.Errorf("close %s: %w", dbPath, err)
		}
		writer = nil
	}

	fmt.Fprintf(out, "indexed %d, rejected %d, mapping version %d in %v\n",
		len(docs)-rejected, rejected, snap.Version, time.Since(start).Round(time.Millisecond))

	for _, field := range opts.terms {
		buckets := memory.TermsBuckets(field, nil)
		terms := make([]string, 0, len(buckets))
		for t := range buckets {
			terms = append(terms, t)
		}
		sort.Strings(terms)
		fmt.Fprintf(out, "%s: %d terms\n", field, len(terms))
		for _, t := range terms {
			fmt.Fprintf(out, "  %s\t%d\n", t, buckets[t])
		}
	}

	if opts.showMapping {
		if err := writeMapping(out, snap.Export()); err != nil {
			return err
		}
	}
	if rejected > 0 {
		return fmt.Errorf("%d of %d documents rejected", rejected, len(docs))
	}
	return nil
}

func loadDocuments(opts *indexOptions, sources []string) ([]ingest.Document, error) {
	if opts.sqliteSource {
		var docs []ingest.Document
		for _, p := range sources {
			found, err := ingest.LoadSQLite(p)
			if err != nil {
				return nil, err
			}
			docs = append(docs, found...)
		}
		return docs, nil
	}

	abs := make([]string, len(sources))
	for i, p := range sources {
		a, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		abs[i] = a
	}
	return ingest.NewJSONSource(osfs.New("/"), opts.selector).Load(abs...)
}

// fanout writes each document to every store in order, stopping at the
// first failure.
type fanout []ingest.FieldStore

func (f fanout) Store(ctx context.Context, doc *ingest.ParsedDocument) error {
	for _, s := range f {
		if err := s.Store(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

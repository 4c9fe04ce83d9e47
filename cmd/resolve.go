package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/agentic-research/fieldmap/internal/ingest"
	"github.com/agentic-research/fieldmap/internal/mapping"
	"github.com/spf13/cobra"
)

func newResolveCmd(root *rootOptions) *cobra.Command {
	var selector string
	cmd := &cobra.Command{
		Use:   "resolve [mapping] [doc.json]",
		Short: "Show how a document resolves against a mapping, without changing it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			canonical, err := root.loadMapping(args[0])
			if err != nil {
				return err
			}
			compat, err := root.cfg.Compatibility()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}
			docs, err := ingest.ParseDocuments(args[1], data, selector)
			if err != nil {
				return err
			}

			engine := ingest.NewEngine(canonical, nil, ingest.Options{
				Compatibility: compat,
				Logger:        root.logger,
			})
			reports := make([]resolveReport, 0, len(docs))
			for _, d := range docs {
				parsed, err := engine.Resolve(d.ID, d.Source)
				if err != nil {
					return fmt.Errorf("document %s: %w", d.ID, err)
				}
				reports = append(reports, newResolveReport(parsed))
			}

			b, err := jsonIndent(reports)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		},
	}
	cmd.Flags().StringVar(&selector, "select", "", "JSONPath selecting documents inside the file")
	return cmd
}

type resolveReport struct {
	ID       string        `json:"id"`
	Fields   []fieldReport `json:"fields"`
	Delta    []deltaReport `json:"delta,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
}

type fieldReport struct {
	Path       string `json:"path"`
	Type       string `json:"type"`
	Value      any    `json:"value"`
	Indexed    bool   `json:"indexed"`
	CopiedFrom string `json:"copied_from,omitempty"`
}

type deltaReport struct {
	Path string `json:"path"`
	Node string `json:"node"`
}

func newResolveReport(doc *ingest.ParsedDocument) resolveReport {
	r := resolveReport{ID: doc.ID, Fields: make([]fieldReport, 0, len(doc.Fields))}
	for _, f := range doc.Fields {
		fr := fieldReport{Path: f.Path.String(), Type: string(f.Type), Value: f.Value, Indexed: f.Options.Index}
		if f.CopiedFrom != nil {
			fr.CopiedFrom = f.CopiedFrom.String()
		}
		r.Fields = append(r.Fields, fr)
	}
	for _, e := range doc.Delta.Entries() {
		r.Delta = append(r.Delta, deltaReport{Path: e.Path.String(), Node: describe(e.Node)})
	}
	for _, w := range doc.Warnings {
		r.Warnings = append(r.Warnings, w.String())
	}
	return r
}

func describe(n mapping.Node) string {
	if obj, ok := n.(*mapping.Object); ok && obj.Dynamic != mapping.DynamicInherit {
		return fmt.Sprintf("%s dynamic=%s", obj.Describe(), obj.Dynamic)
	}
	return n.Describe()
}

func jsonIndent(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

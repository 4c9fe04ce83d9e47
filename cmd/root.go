package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentic-research/fieldmap/api"
	"github.com/agentic-research/fieldmap/internal/config"
	"github.com/agentic-research/fieldmap/internal/mapping"
	"github.com/spf13/cobra"
)

// options shared by every subcommand.
type rootOptions struct {
	configPath string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "fieldmap",
		Short: "fieldmap: dynamic mapping resolution for JSON documents",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd.ErrOrStderr())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to HCL config file")

	root.AddCommand(newIndexCmd(opts))
	root.AddCommand(newResolveCmd(opts))
	root.AddCommand(newMappingCmd(opts))
	return root
}

func (o *rootOptions) load(logOut io.Writer) error {
	o.cfg = config.Default()
	if o.configPath != "" {
		cfg, err := config.LoadFile(o.configPath)
		if err != nil {
			return err
		}
		o.cfg = cfg
	}
	o.logger = o.cfg.Logger(logOut)
	return nil
}

// loadMapping reads a JSON or YAML mapping definition and applies the
// config's mapping-level defaults.
func (o *rootOptions) loadMapping(path string) (*mapping.Canonical, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	def, err := mapping.ParseDefinition(data, ext == ".yaml" || ext == ".yml")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	o.cfg.ApplyTo(def)
	return mapping.NewCanonical(def)
}

func writeMapping(w io.Writer, m *api.Mapping) error {
	b, err := jsonIndent(m)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

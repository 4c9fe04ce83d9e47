// Package config loads fieldmap settings from an HCL file.
//
//	workers       = 8
//	merge_retries = 3
//	log_level     = "debug"
//
//	store {
//	  path       = "fields.db"
//	  batch_size = 5000
//	}
//
//	accept "long" {
//	  raw_types = ["long", "double"]
//	}
package config

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/agentic-research/fieldmap/api"
	"github.com/agentic-research/fieldmap/internal/mapping"
	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Config is the decoded configuration file.
type Config struct {
	// Workers bounds concurrent document processing. 0 uses GOMAXPROCS.
	Workers int `hcl:"workers,optional"`
	// MergeRetries bounds re-resolution after a merge conflict. 0 uses the
	// engine default; negative disables retries.
	MergeRetries int `hcl:"merge_retries,optional"`
	// DateDetection is applied to mappings that do not set date_detection.
	DateDetection *bool  `hcl:"date_detection,optional"`
	LogLevel      string `hcl:"log_level,optional"`

	Store  *StoreConfig   `hcl:"store,block"`
	Accept []AcceptConfig `hcl:"accept,block"`
}

// StoreConfig configures the SQLite field store.
type StoreConfig struct {
	Path      string `hcl:"path,optional"`
	BatchSize int    `hcl:"batch_size,optional"`
}

// AcceptConfig replaces the raw types a leaf type accepts.
type AcceptConfig struct {
	Type     string   `hcl:"type,label"`
	RawTypes []string `hcl:"raw_types"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{LogLevel: "info"}
}

// LoadFile reads and validates an HCL config file.
func LoadFile(path string) (*Config, error) {
	var c Config
	if err := hclsimple.DecodeFile(path, nil, &c); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return c.finish()
}

// Decode parses HCL source; filename is used in diagnostics and must end
// in .hcl.
func Decode(filename string, src []byte) (*Config, error) {
	var c Config
	if err := hclsimple.Decode(filename, src, nil, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c.finish()
}

func (c *Config) finish() (*Config, error) {
	if c.LogLevel == "" {
		c.LogLevel = Default().LogLevel
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks value ranges and the accept blocks.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.Store != nil && c.Store.BatchSize < 0 {
		return fmt.Errorf("store.batch_size must be >= 0, got %d", c.Store.BatchSize)
	}
	if _, err := c.level(); err != nil {
		return err
	}
	_, err := c.Compatibility()
	return err
}

func (c *Config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// Compatibility is the default matrix with the accept blocks applied.
func (c *Config) Compatibility() (mapping.Compatibility, error) {
	compat := mapping.DefaultCompatibility()
	seen := make(map[mapping.FieldType]bool, len(c.Accept))
	for _, a := range c.Accept {
		t, err := mapping.ParseFieldType(a.Type)
		if err != nil {
			return nil, fmt.Errorf("accept %q: %w", a.Type, err)
		}
		if seen[t] {
			return nil, fmt.Errorf("accept %q: declared twice", a.Type)
		}
		seen[t] = true

		raws := make([]mapping.RawType, 0, len(a.RawTypes))
		for _, s := range a.RawTypes {
			r, err := mapping.ParseRawType(s)
			if err != nil {
				return nil, fmt.Errorf("accept %q: %w", a.Type, err)
			}
			if r == mapping.RawObject {
				return nil, fmt.Errorf("accept %q: leaf fields cannot accept objects", a.Type)
			}
			raws = append(raws, r)
		}
		compat = compat.With(t, raws...)
	}
	return compat, nil
}

// Logger builds a text logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.level()
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// ApplyTo fills mapping-level settings the definition leaves unset.
func (c *Config) ApplyTo(def *api.Mapping) {
	if def.DateDetection == nil && c.DateDetection != nil {
		v := *c.DateDetection
		def.DateDetection = &v
	}
}

// StorePath is the configured SQLite path, or "".
func (c *Config) StorePath() string {
	if c.Store == nil {
		return ""
	}
	return c.Store.Path
}

// BatchSize is the configured store batch size, or 0 for the default.
func (c *Config) BatchSize() int {
	if c.Store == nil {
		return 0
	}
	return c.Store.BatchSize
}

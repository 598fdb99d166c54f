package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/dhcgn/msg-partition/partition"
)

func newCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	if err := RegisterFlags(cmd); err != nil {
		t.Fatalf("RegisterFlags() error = %v", err)
	}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	return cmd
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cmd := newCommand(t, "--input", "mail", "--output-dir", "out/")

	cfg, err := LoadConfig(cmd)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if !slices.Equal(cfg.Inputs, []string{"mail"}) || cfg.OutputDir != "out" {
		t.Errorf("inputs = %v, output = %q", cfg.Inputs, cfg.OutputDir)
	}
	if !cfg.IncludeMetadata || cfg.MaxPartition != partition.DefaultMaxPartition || cfg.Workers != 4 {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.LogLevel != "info" || cfg.StateDir == "" {
		t.Errorf("log level = %q, state dir = %q", cfg.LogLevel, cfg.StateDir)
	}
}

func TestLoadConfigFlags(t *testing.T) {
	cmd := newCommand(t,
		"--input", "a.msg", "--input", "b.msg",
		"--dry-run",
		"--no-metadata",
		"--languages", "deu,fra",
		"--chunking-strategy", "by_title",
		"--log-level", "WARNING",
		"--include-kind", "Title",
	)

	cfg, err := LoadConfig(cmd)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.IncludeMetadata || !cfg.DryRun || cfg.LogLevel != "warn" {
		t.Errorf("cfg = %+v", cfg)
	}
	if !slices.Equal(cfg.Languages, []string{"deu", "fra"}) {
		t.Errorf("languages = %v", cfg.Languages)
	}
	if f := cfg.FilterOptions(); !slices.Equal(f.IncludeKinds, []string{"Title"}) {
		t.Errorf("FilterOptions() = %+v", f)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
inputs: [inbox]
output_dir: parsed
process_attachments: true
max_partition: 800
languages: [eng, deu]
workers: 8
filter:
  exclude_header: ["Subject: spam"]
log_level: debug
`)
	cmd := newCommand(t, "--config", path, "--workers", "2")

	cfg, err := LoadConfig(cmd)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if !slices.Equal(cfg.Inputs, []string{"inbox"}) || cfg.OutputDir != "parsed" || !cfg.ProcessAttachments {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.MaxPartition != 800 || cfg.LogLevel != "debug" {
		t.Errorf("max partition = %d, log level = %q", cfg.MaxPartition, cfg.LogLevel)
	}
	if cfg.Workers != 2 {
		t.Errorf("workers = %d, want the flag value 2", cfg.Workers)
	}
	if !slices.Equal(cfg.Languages, []string{"eng", "deu"}) {
		t.Errorf("languages = %v", cfg.Languages)
	}
	if !slices.Equal(cfg.ExcludeHeader, []string{"Subject: spam"}) {
		t.Errorf("exclude header = %v", cfg.ExcludeHeader)
	}
}

func TestLoadConfigFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
		errText string
	}{
		{
			name:    "scalar languages",
			content: "inputs: [a]\ndry_run: true\nlanguages: eng\n",
			wantErr: partition.ErrTypeMismatch,
		},
		{
			name:    "unknown key",
			content: "inputs: [a]\nlanguage: [eng]\n",
			errText: "language",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newCommand(t, "--config", writeConfig(t, tt.content))
			_, err := LoadConfig(cmd)
			if err == nil {
				t.Fatal("LoadConfig() error = nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("LoadConfig() error = %v, want %v", err, tt.wantErr)
			}
			if tt.errText != "" && !strings.Contains(err.Error(), tt.errText) {
				t.Errorf("LoadConfig() error = %v, want mention of %q", err, tt.errText)
			}
		})
	}
}

func TestValidateConfig(t *testing.T) {
	valid := Config{Inputs: []string{"a"}, OutputDir: "out", Workers: 1, MaxPartition: 1500, LogLevel: "info"}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"no inputs", func(c *Config) { c.Inputs = nil }, true},
		{"no output", func(c *Config) { c.OutputDir = "" }, true},
		{"dry run without output", func(c *Config) { c.OutputDir = ""; c.DryRun = true }, false},
		{"zero workers", func(c *Config) { c.Workers = 0 }, true},
		{"min above max", func(c *Config) { c.MinPartition = 2000 }, true},
		{"empty language", func(c *Config) { c.Languages = []string{""} }, true},
		{"unknown chunking", func(c *Config) { c.ChunkingStrategy = "by_page" }, true},
		{"include and exclude", func(c *Config) {
			c.IncludeText = []string{"a"}
			c.ExcludeHeader = []string{"b"}
		}, true},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := validateConfig(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

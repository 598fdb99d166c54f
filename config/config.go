package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/dhcgn/msg-partition/chunking"
	"github.com/dhcgn/msg-partition/element"
	"github.com/dhcgn/msg-partition/filter"
	"github.com/dhcgn/msg-partition/partition"
)

// Config captures all command-line options required to run a batch.
type Config struct {
	Inputs             []string
	OutputDir          string
	ProcessAttachments bool
	MinPartition       int
	MaxPartition       int
	Languages          []string
	ChunkingStrategy   string
	IncludeMetadata    bool
	DebugMetadata      bool
	IncludeText        []string
	ExcludeText        []string
	IncludeKinds       []string
	IncludeHeader      []string
	ExcludeHeader      []string
	Workers            int
	StateDir           string
	MetricsFile        string
	DryRun             bool
	LogLevel           string
	LogDir             string
}

// FilterOptions returns the filter configuration of c.
func (c Config) FilterOptions() filter.Options {
	return filter.Options{
		IncludeHeader: c.IncludeHeader,
		IncludeText:   c.IncludeText,
		ExcludeHeader: c.ExcludeHeader,
		ExcludeText:   c.ExcludeText,
		IncludeKinds:  c.IncludeKinds,
	}
}

// RegisterFlags attaches all CLI flags to the provided command.
func RegisterFlags(cmd *cobra.Command) error {
	defaultStateDir, err := defaultStateDir()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	flags.String("config", "", "YAML file with defaults for every flag below")
	flags.StringArray("input", nil, "File or directory to partition (repeatable)")
	flags.String("output-dir", "", "Directory for the JSON element documents")
	flags.Bool("process-attachments", false, "Partition attachments and append their elements")
	flags.Int("min-partition", 0, "Minimum element length in characters")
	flags.Int("max-partition", partition.DefaultMaxPartition, "Maximum element length in characters (0 disables)")
	flags.StringSlice("languages", nil, "Language codes stamped on every element (default eng)")
	flags.String("chunking-strategy", "", "Chunking strategy: by_title")
	flags.Bool("no-metadata", false, "Emit elements without metadata")
	flags.Bool("debug-metadata", false, "Add detection_origin to element metadata")
	flags.StringArray("include-text", nil, "Regex allow-list applied to element text (mutually exclusive with exclude flags)")
	flags.StringArray("exclude-text", nil, "Regex block-list applied to element text (mutually exclusive with include flags)")
	flags.StringArray("include-kind", nil, "Element kinds to keep, e.g. Title or ListItem")
	flags.StringArray("include-header", nil, "Regex allow-list applied to message headers (mutually exclusive with exclude flags)")
	flags.StringArray("exclude-header", nil, "Regex block-list applied to message headers (mutually exclusive with include flags)")
	flags.Int("workers", 4, "Number of inputs partitioned in parallel")
	flags.String("state-dir", defaultStateDir, "Directory for the incremental state database")
	flags.String("metrics-file", "", "Write Prometheus metrics in textfile format to this path")
	flags.Bool("dry-run", false, "Partition without writing outputs or state")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Also write logs to a timestamped file in this directory")

	return nil
}

// LoadConfig converts the parsed Cobra flags into a Config struct with validation.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()

	var cfg Config
	var err error
	if cfg.Inputs, err = flags.GetStringArray("input"); err != nil {
		return Config{}, err
	}
	if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
		return Config{}, err
	}
	if cfg.ProcessAttachments, err = flags.GetBool("process-attachments"); err != nil {
		return Config{}, err
	}
	if cfg.MinPartition, err = flags.GetInt("min-partition"); err != nil {
		return Config{}, err
	}
	if cfg.MaxPartition, err = flags.GetInt("max-partition"); err != nil {
		return Config{}, err
	}
	if cfg.Languages, err = flags.GetStringSlice("languages"); err != nil {
		return Config{}, err
	}
	if cfg.ChunkingStrategy, err = flags.GetString("chunking-strategy"); err != nil {
		return Config{}, err
	}
	noMetadata, err := flags.GetBool("no-metadata")
	if err != nil {
		return Config{}, err
	}
	cfg.IncludeMetadata = !noMetadata
	if cfg.DebugMetadata, err = flags.GetBool("debug-metadata"); err != nil {
		return Config{}, err
	}
	if cfg.IncludeText, err = flags.GetStringArray("include-text"); err != nil {
		return Config{}, err
	}
	if cfg.ExcludeText, err = flags.GetStringArray("exclude-text"); err != nil {
		return Config{}, err
	}
	if cfg.IncludeKinds, err = flags.GetStringArray("include-kind"); err != nil {
		return Config{}, err
	}
	if cfg.IncludeHeader, err = flags.GetStringArray("include-header"); err != nil {
		return Config{}, err
	}
	if cfg.ExcludeHeader, err = flags.GetStringArray("exclude-header"); err != nil {
		return Config{}, err
	}
	if cfg.Workers, err = flags.GetInt("workers"); err != nil {
		return Config{}, err
	}
	if cfg.StateDir, err = flags.GetString("state-dir"); err != nil {
		return Config{}, err
	}
	if cfg.MetricsFile, err = flags.GetString("metrics-file"); err != nil {
		return Config{}, err
	}
	if cfg.DryRun, err = flags.GetBool("dry-run"); err != nil {
		return Config{}, err
	}
	if cfg.LogLevel, err = flags.GetString("log-level"); err != nil {
		return Config{}, err
	}
	if cfg.LogDir, err = flags.GetString("log-dir"); err != nil {
		return Config{}, err
	}

	configPath, err := flags.GetString("config")
	if err != nil {
		return Config{}, err
	}
	if configPath != "" {
		fc, err := readFile(configPath)
		if err != nil {
			return Config{}, err
		}
		if err := fc.apply(&cfg, flags); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", configPath, err)
		}
	}

	if cfg.StateDir == "" {
		cfg.StateDir, err = defaultStateDir()
		if err != nil {
			return Config{}, err
		}
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	cfg.StateDir = filepath.Clean(cfg.StateDir)
	if cfg.OutputDir != "" {
		cfg.OutputDir = filepath.Clean(cfg.OutputDir)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// fileConfig is the YAML form of Config. Pointer fields distinguish unset
// keys from zero values.
type fileConfig struct {
	Inputs             []string `yaml:"inputs"`
	OutputDir          *string  `yaml:"output_dir"`
	ProcessAttachments *bool    `yaml:"process_attachments"`
	MinPartition       *int     `yaml:"min_partition"`
	MaxPartition       *int     `yaml:"max_partition"`
	Languages          any      `yaml:"languages"`
	ChunkingStrategy   *string  `yaml:"chunking_strategy"`
	IncludeMetadata    *bool    `yaml:"include_metadata"`
	DebugMetadata      *bool    `yaml:"debug_metadata"`
	Filter             struct {
		IncludeText   []string `yaml:"include_text"`
		ExcludeText   []string `yaml:"exclude_text"`
		IncludeKinds  []string `yaml:"include_kinds"`
		IncludeHeader []string `yaml:"include_header"`
		ExcludeHeader []string `yaml:"exclude_header"`
	} `yaml:"filter"`
	Workers     *int    `yaml:"workers"`
	StateDir    *string `yaml:"state_dir"`
	MetricsFile *string `yaml:"metrics_file"`
	DryRun      *bool   `yaml:"dry_run"`
	LogLevel    *string `yaml:"log_level"`
	LogDir      *string `yaml:"log_dir"`
}

func readFile(path string) (*fileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var fc fileConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &fc, nil
}

// apply copies the file values into cfg for every flag the user did not set.
func (fc *fileConfig) apply(cfg *Config, flags *pflag.FlagSet) error {
	unset := func(name string) bool { return !flags.Changed(name) }

	if unset("input") && len(fc.Inputs) > 0 {
		cfg.Inputs = fc.Inputs
	}
	setString(&cfg.OutputDir, fc.OutputDir, unset("output-dir"))
	setBool(&cfg.ProcessAttachments, fc.ProcessAttachments, unset("process-attachments"))
	setInt(&cfg.MinPartition, fc.MinPartition, unset("min-partition"))
	setInt(&cfg.MaxPartition, fc.MaxPartition, unset("max-partition"))
	if unset("languages") && fc.Languages != nil {
		langs, err := element.ParseLanguages(fc.Languages)
		if err != nil {
			return err
		}
		cfg.Languages = langs
	}
	setString(&cfg.ChunkingStrategy, fc.ChunkingStrategy, unset("chunking-strategy"))
	setBool(&cfg.IncludeMetadata, fc.IncludeMetadata, unset("no-metadata"))
	setBool(&cfg.DebugMetadata, fc.DebugMetadata, unset("debug-metadata"))
	setStrings(&cfg.IncludeText, fc.Filter.IncludeText, unset("include-text"))
	setStrings(&cfg.ExcludeText, fc.Filter.ExcludeText, unset("exclude-text"))
	setStrings(&cfg.IncludeKinds, fc.Filter.IncludeKinds, unset("include-kind"))
	setStrings(&cfg.IncludeHeader, fc.Filter.IncludeHeader, unset("include-header"))
	setStrings(&cfg.ExcludeHeader, fc.Filter.ExcludeHeader, unset("exclude-header"))
	setInt(&cfg.Workers, fc.Workers, unset("workers"))
	setString(&cfg.StateDir, fc.StateDir, unset("state-dir"))
	setString(&cfg.MetricsFile, fc.MetricsFile, unset("metrics-file"))
	setBool(&cfg.DryRun, fc.DryRun, unset("dry-run"))
	setString(&cfg.LogLevel, fc.LogLevel, unset("log-level"))
	setString(&cfg.LogDir, fc.LogDir, unset("log-dir"))
	return nil
}

func setString(dst *string, v *string, ok bool) {
	if ok && v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool, ok bool) {
	if ok && v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int, ok bool) {
	if ok && v != nil {
		*dst = *v
	}
}

func setStrings(dst *[]string, v []string, ok bool) {
	if ok && len(v) > 0 {
		*dst = v
	}
}

func validateConfig(cfg Config) error {
	if len(cfg.Inputs) == 0 {
		return fmt.Errorf("--input is required")
	}
	if cfg.OutputDir == "" && !cfg.DryRun {
		return fmt.Errorf("--output-dir is required unless --dry-run is set")
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("--workers must be at least 1")
	}
	if err := partition.ValidateBounds(cfg.MinPartition, cfg.MaxPartition); err != nil {
		return err
	}
	if _, err := element.ParseLanguages(cfg.Languages); err != nil {
		return err
	}
	if _, err := chunking.Lookup(cfg.ChunkingStrategy); err != nil {
		return err
	}
	includeActive := len(cfg.IncludeHeader) > 0 || len(cfg.IncludeText) > 0
	excludeActive := len(cfg.ExcludeHeader) > 0 || len(cfg.ExcludeText) > 0
	if includeActive && excludeActive {
		return fmt.Errorf("include and exclude flags are mutually exclusive")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %s", cfg.LogLevel)
	}

	return nil
}

func defaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".msg-partition", "state"), nil
}

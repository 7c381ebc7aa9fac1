// Package config loads the run configuration for the reconciliation
// pipeline. Everything the pipeline needs is explicit in the file: the
// closed set of sources, the transfer-trigger table, overlap tolerance and
// external-call timeouts. There are no process-wide singletons; the loaded
// Config is passed down as a parameter.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/dvloznov/ledgersync/internal/domain"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration with YAML string parsing ("30s", "2m").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full run configuration.
type Config struct {
	Project    ProjectConfig    `yaml:"project"`
	Sink       SinkConfig       `yaml:"sink"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Categorize CategorizeConfig `yaml:"categorize"`
	Overlap    OverlapConfig    `yaml:"overlap"`
	Sources    []SourceConfig   `yaml:"sources"`
	Transfers  TransferTable    `yaml:"transfers"`
}

// ProjectConfig identifies the GCP project and dataset backing the sink
// and the watermark queries.
type ProjectConfig struct {
	GCPProject string `yaml:"gcp_project"`
	Dataset    string `yaml:"dataset"`
	Table      string `yaml:"table"`
}

// SinkConfig selects and tunes the commit target.
type SinkConfig struct {
	// Kind is "bigquery" or "sheets".
	Kind          string   `yaml:"kind"`
	SpreadsheetID string   `yaml:"spreadsheet_id"`
	SheetName     string   `yaml:"sheet_name"`
	Timeout       Duration `yaml:"timeout"`
	MaxRetries    uint64   `yaml:"max_retries"`
}

type CheckpointConfig struct {
	Dir string `yaml:"dir"`
}

// CategorizeConfig tunes the categorization collaborator. Timeout and
// Workers bound every external call; a timed-out call falls back to
// domain.CategoryUncategorized instead of failing the run.
type CategorizeConfig struct {
	Model   string   `yaml:"model"`
	Timeout Duration `yaml:"timeout"`
	Workers int      `yaml:"workers"`

	// Categories is the closed taxonomy offered to the model.
	Categories []string `yaml:"categories"`
}

// OverlapConfig bounds how far a historical reconstruction may reach into
// a native export's date range before the merge is rejected.
type OverlapConfig struct {
	ToleranceDays int `yaml:"tolerance_days"`
}

// SourceConfig describes one input. Account is the stable source_id that
// ends up on every canonical record; two entries may share an account when
// a native export and a historical reconstruction cover different periods
// of the same account.
type SourceConfig struct {
	Account     string            `yaml:"account"`
	DisplayName string            `yaml:"display_name"`
	Kind        domain.SourceKind `yaml:"kind"`
	Adapter     string            `yaml:"adapter"`
	File        string            `yaml:"file"`

	// Priority orders dedup wins; higher wins. Zero means "derive from
	// kind": native 100, historical 10.
	Priority int `yaml:"priority"`
}

// EffectivePriority resolves the kind-based default.
func (s SourceConfig) EffectivePriority() int {
	if s.Priority != 0 {
		return s.Priority
	}
	if s.Kind == domain.SourceNative {
		return 100
	}
	return 10
}

// TransferTable is the versioned table of transfer-trigger patterns
// consumed by the transfer-expansion rule. Matching is explicit
// configuration, never free-text guessing scattered through the pipeline.
type TransferTable struct {
	Version int            `yaml:"version"`
	Rules   []TransferRule `yaml:"rules"`
}

// TransferRule replaces a matching settlement row on Source with an
// outflow on From and an inflow on To, both described by Description.
type TransferRule struct {
	Source      string `yaml:"source"`
	Pattern     string `yaml:"pattern"`
	From        string `yaml:"from"`
	To          string `yaml:"to"`
	Description string `yaml:"description"`

	re *regexp.Regexp
}

// Matches reports whether the rule applies to a record's normalized
// description. Compile must have been called first.
func (r *TransferRule) Matches(sourceID, description string) bool {
	if r.Source != sourceID || r.re == nil {
		return false
	}
	return r.re.MatchString(description)
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Load: reading %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates config bytes.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("Parse: decoding config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("config: no sources defined")
	}
	accounts := make(map[string]bool)
	for i, s := range c.Sources {
		if s.Account == "" {
			return fmt.Errorf("config: source %d: account is required", i)
		}
		if s.Kind != domain.SourceNative && s.Kind != domain.SourceHistorical {
			return fmt.Errorf("config: source %s: kind must be native or historical, got %q", s.Account, s.Kind)
		}
		if s.Adapter == "" {
			return fmt.Errorf("config: source %s: adapter is required", s.Account)
		}
		accounts[s.Account] = true
	}
	for i := range c.Transfers.Rules {
		r := &c.Transfers.Rules[i]
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return fmt.Errorf("config: transfer rule %d: invalid pattern %q: %w", i, r.Pattern, err)
		}
		r.re = re
		if r.From == "" || r.To == "" {
			return fmt.Errorf("config: transfer rule %d: from and to accounts are required", i)
		}
		if !accounts[r.Source] {
			return fmt.Errorf("config: transfer rule %d: unknown source %q", i, r.Source)
		}
	}
	if c.Categorize.Workers <= 0 {
		c.Categorize.Workers = 4
	}
	if c.Categorize.Timeout == 0 {
		c.Categorize.Timeout = Duration(30 * time.Second)
	}
	if c.Sink.Timeout == 0 {
		c.Sink.Timeout = Duration(2 * time.Minute)
	}
	if c.Checkpoint.Dir == "" {
		c.Checkpoint.Dir = ".ledgersync"
	}
	return nil
}

// TransferRuleFor returns the first rule matching the record's source and
// normalized description, or nil.
func (c *Config) TransferRuleFor(sourceID, description string) *TransferRule {
	for i := range c.Transfers.Rules {
		if c.Transfers.Rules[i].Matches(sourceID, description) {
			return &c.Transfers.Rules[i]
		}
	}
	return nil
}

// DisplayName maps an account id to its sink display name, falling back to
// the id itself.
func (c *Config) DisplayName(account string) string {
	for _, s := range c.Sources {
		if s.Account == account && s.DisplayName != "" {
			return s.DisplayName
		}
	}
	return account
}

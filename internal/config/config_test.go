package config

import (
	"strings"
	"testing"
	"time"
)

const sampleConfig = `
project:
  gcp_project: test-project
  dataset: finance
  table: ledger
sink:
  kind: bigquery
  timeout: 90s
  max_retries: 3
checkpoint:
  dir: /tmp/ledgersync-test
categorize:
  model: gemini-2.5-flash
  timeout: 20s
  workers: 2
  categories:
    - Groceries
    - Transport
overlap:
  tolerance_days: 1
sources:
  - account: firstcard
    display_name: "First Card"
    kind: native
    adapter: firstcard
    file: data/firstcard.xlsx
  - account: firstcard
    kind: historical
    adapter: sheethistory
    file: data/firstcard_history.xlsx
  - account: swedbank
    kind: native
    adapter: swedbank
    file: data/swedbank.xlsx
transfers:
  version: 1
  rules:
    - source: firstcard
      pattern: "(?i)^nordea bank"
      from: swedbank
      to: firstcard
      description: "First Card invoice payment"
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Project.GCPProject != "test-project" {
		t.Errorf("GCPProject = %q", cfg.Project.GCPProject)
	}
	if cfg.Sink.Timeout.Std() != 90*time.Second {
		t.Errorf("sink timeout = %v, want 90s", cfg.Sink.Timeout.Std())
	}
	if cfg.Categorize.Workers != 2 {
		t.Errorf("workers = %d, want 2", cfg.Categorize.Workers)
	}
	if len(cfg.Sources) != 3 {
		t.Fatalf("sources = %d, want 3", len(cfg.Sources))
	}
	if cfg.Transfers.Version != 1 {
		t.Errorf("transfer table version = %d, want 1", cfg.Transfers.Version)
	}
}

func TestParse_TransferRuleMatching(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	rule := cfg.TransferRuleFor("firstcard", "NORDEA BANK ABP, FILIAL I SVERIGE")
	if rule == nil {
		t.Fatal("expected rule to match invoice payment description")
	}
	if rule.From != "swedbank" || rule.To != "firstcard" {
		t.Errorf("rule accounts = %s -> %s", rule.From, rule.To)
	}

	if cfg.TransferRuleFor("swedbank", "NORDEA BANK ABP") != nil {
		t.Error("rule must not match a different source")
	}
	if cfg.TransferRuleFor("firstcard", "ICA Supermarket") != nil {
		t.Error("rule must not match an ordinary purchase")
	}
}

func TestParse_EffectivePriority(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	native := cfg.Sources[0].EffectivePriority()
	historical := cfg.Sources[1].EffectivePriority()
	if native <= historical {
		t.Errorf("native priority %d must beat historical %d", native, historical)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mangle  func(string) string
		wantErr string
	}{
		{
			name:    "no sources",
			mangle:  func(s string) string { return "checkpoint:\n  dir: /tmp/x\n" },
			wantErr: "no sources",
		},
		{
			name:    "bad kind",
			mangle:  func(s string) string { return strings.Replace(s, "kind: native", "kind: guessed", 1) },
			wantErr: "kind must be",
		},
		{
			name:    "bad pattern",
			mangle:  func(s string) string { return strings.Replace(s, "(?i)^nordea bank", "([", 1) },
			wantErr: "invalid pattern",
		},
		{
			name:    "rule references unknown source",
			mangle:  func(s string) string { return strings.Replace(s, "source: firstcard", "source: nosuch", 1) },
			wantErr: "unknown source",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.mangle(sampleConfig)))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_Defaults(t *testing.T) {
	minimal := `
sources:
  - account: revolut
    kind: native
    adapter: revolut
`
	cfg, err := Parse([]byte(minimal))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Categorize.Workers != 4 {
		t.Errorf("default workers = %d, want 4", cfg.Categorize.Workers)
	}
	if cfg.Categorize.Timeout.Std() != 30*time.Second {
		t.Errorf("default categorize timeout = %v", cfg.Categorize.Timeout.Std())
	}
	if cfg.Checkpoint.Dir != ".ledgersync" {
		t.Errorf("default checkpoint dir = %q", cfg.Checkpoint.Dir)
	}
}

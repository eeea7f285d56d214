package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/osintkit/tiercrawl/internal/models"
)

func TestLoadConfigDefaults(t *testing.T) {
	// Point at an empty directory so no stray config file is picked up.
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(cwd)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Crawl.Concurrency != models.DefaultConcurrency {
		t.Errorf("concurrency = %d, want %d", cfg.Crawl.Concurrency, models.DefaultConcurrency)
	}
	if cfg.Crawl.PerDomain != models.DefaultPerDomain {
		t.Errorf("per-domain = %d, want %d", cfg.Crawl.PerDomain, models.DefaultPerDomain)
	}
	if cfg.Crawl.Timeout != 20*time.Second {
		t.Errorf("timeout = %s, want 20s", cfg.Crawl.Timeout)
	}
	if cfg.Crawl.SettleDelay != 2*time.Second {
		t.Errorf("settle delay = %s, want 2s", cfg.Crawl.SettleDelay)
	}
	if !cfg.Crawl.DetectJS {
		t.Error("detect_js should default to true")
	}
	if !cfg.Crawl.Headless {
		t.Error("headless should default to true")
	}
	if cfg.Paid.Enabled() {
		t.Error("paid tier should be disabled by default")
	}
	if cfg.Output.Format != FormatNDJSON {
		t.Errorf("output format = %q, want ndjson", cfg.Output.Format)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("log level = %q, want info", cfg.Logging.Level)
	}

	if err := cfg.Crawl.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `crawl:
  concurrent: 50
  per_domain: 4
  timeout: 5s
  country_tlds: [".uk"]
  url_keywords: ["shop"]
paid:
  endpoint: https://fetch.example/api
  api_key: secret
output:
  format: json
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Crawl.Concurrency != 50 {
		t.Errorf("concurrency = %d, want 50", cfg.Crawl.Concurrency)
	}
	if cfg.Crawl.PerDomain != 4 {
		t.Errorf("per-domain = %d, want 4", cfg.Crawl.PerDomain)
	}
	if cfg.Crawl.Timeout != 5*time.Second {
		t.Errorf("timeout = %s, want 5s", cfg.Crawl.Timeout)
	}
	if len(cfg.Crawl.CountryTLDs) != 1 || cfg.Crawl.CountryTLDs[0] != ".uk" {
		t.Errorf("country_tlds = %v", cfg.Crawl.CountryTLDs)
	}
	if !cfg.Paid.Enabled() {
		t.Error("paid tier should be enabled when endpoint is set")
	}
	if cfg.Paid.APIKey != "secret" {
		t.Errorf("api key = %q", cfg.Paid.APIKey)
	}
	if cfg.Output.Format != FormatJSON {
		t.Errorf("output format = %q, want json", cfg.Output.Format)
	}
	// Unset keys keep their defaults.
	if cfg.Crawl.MaxContentChars != models.DefaultMaxContentChars {
		t.Errorf("max_content_chars = %d, want default", cfg.Crawl.MaxContentChars)
	}
}

func TestLoadConfigBadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("crawl: [not: a: map"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("malformed YAML should be an error")
	}
}

package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid http URL", "http://example.com", false},
		{"valid https URL", "https://example.com", false},
		{"URL with path", "https://example.com/path/to/resource", false},
		{"unsupported scheme", "ftp://example.com", true},
		{"not a URL", "://not a url", true},
		{"empty", "", true},
		{"missing scheme", "example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "https://example.com"},
		{"http://example.com/a", "http://example.com/a"},
		{"https://example.com", "https://example.com"},
	}
	for _, tt := range tests {
		got, err := NormalizeURL(tt.in)
		if err != nil {
			t.Fatalf("NormalizeURL(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFetchConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*FetchConfig)
		wantErr bool
	}{
		{"defaults are valid", func(c *FetchConfig) {}, false},
		{"zero concurrency", func(c *FetchConfig) { c.Concurrency = 0 }, true},
		{"excessive concurrency", func(c *FetchConfig) { c.Concurrency = 5000 }, true},
		{"per-domain above global", func(c *FetchConfig) { c.Concurrency = 10; c.PerDomain = 20 }, true},
		{"zero render concurrency", func(c *FetchConfig) { c.RenderConcurrency = 0 }, true},
		{"zero timeout", func(c *FetchConfig) { c.Timeout = 0 }, true},
		{"negative delay", func(c *FetchConfig) { c.Delay = -time.Second }, true},
		{"zero content cap", func(c *FetchConfig) { c.MaxContentChars = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultFetchConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestErrorResult(t *testing.T) {
	r := ErrorResult("https://example.com", TierStaticFast, errors.New("connection refused"))

	if !r.Failed() {
		t.Error("ErrorResult should report Failed() = true")
	}
	if r.Tier != TierStaticFast {
		t.Errorf("Tier = %q, want %q", r.Tier, TierStaticFast)
	}
	if r.Outlinks == nil || r.InternalLinks == nil {
		t.Error("link slices should be empty, not nil")
	}
	if r.NeedsJS {
		t.Error("error results must not be flagged needs_js")
	}
}

func TestCrawlResultJSONFields(t *testing.T) {
	r := CrawlResult{
		URL:           "https://example.com",
		StatusCode:    200,
		Outlinks:      []OutlinkRecord{},
		InternalLinks: []string{},
		Tier:          TierRender,
	}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"url", "status_code", "content_type", "title", "content", "outlinks", "internal_links", "needs_js", "latency_ms", "tier"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("serialized result is missing field %q", key)
		}
	}
	if _, ok := fields["html"]; ok {
		t.Error("empty html should be omitted")
	}
	if _, ok := fields["error"]; ok {
		t.Error("empty error should be omitted")
	}
	if fields["tier"] != "render" {
		t.Errorf("tier = %v, want render", fields["tier"])
	}
}

func TestCrawlStatsThroughput(t *testing.T) {
	s := CrawlStats{Total: 100, TotalTimeMs: 4000}
	if got := s.Throughput(); got != 25 {
		t.Errorf("Throughput() = %v, want 25", got)
	}

	var zero CrawlStats
	if got := zero.Throughput(); got != 0 {
		t.Errorf("Throughput() on empty stats = %v, want 0", got)
	}
}

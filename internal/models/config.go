package models

import (
	"fmt"
	"net/url"
	"time"
)

// Default limits. MaxContentChars bounds memory per result; render
// concurrency defaults to a fifth of the static budget since a browser tab
// is far heavier than a socket.
const (
	DefaultConcurrency     = 500
	DefaultPerDomain       = 8
	DefaultTimeout         = 20 * time.Second
	DefaultSettleDelay     = 2 * time.Second
	DefaultMaxContentChars = 10000
	MinTextThreshold       = 500
)

// FetchConfig is the per-run fetch configuration. Immutable for the
// duration of one run.
type FetchConfig struct {
	Concurrency       int               `json:"concurrency" mapstructure:"concurrent"`
	PerDomain         int               `json:"per_domain" mapstructure:"per_domain"`
	RenderConcurrency int               `json:"render_concurrency" mapstructure:"render_concurrency"`
	Timeout           time.Duration     `json:"timeout" mapstructure:"timeout"`
	Delay             time.Duration     `json:"delay" mapstructure:"delay"`
	SettleDelay       time.Duration     `json:"settle_delay" mapstructure:"settle_delay"`
	UserAgent         string            `json:"user_agent" mapstructure:"user_agent"`
	Headers           map[string]string `json:"headers,omitempty" mapstructure:"headers"`
	CountryTLDs       []string          `json:"country_tlds" mapstructure:"country_tlds"`
	URLKeywords       []string          `json:"url_keywords" mapstructure:"url_keywords"`
	DetectJS          bool              `json:"detect_js" mapstructure:"detect_js"`
	IncludeRawHTML    bool              `json:"include_html" mapstructure:"include_html"`
	MaxContentChars   int               `json:"max_content_chars" mapstructure:"max_content_chars"`
	Headless          bool              `json:"headless" mapstructure:"headless"`
}

// DefaultFetchConfig returns the baseline configuration a run starts from
// before the YAML config and CLI flags are layered on top.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		Concurrency:       DefaultConcurrency,
		PerDomain:         DefaultPerDomain,
		RenderConcurrency: DefaultConcurrency / 5,
		Timeout:           DefaultTimeout,
		SettleDelay:       DefaultSettleDelay,
		UserAgent:         "tiercrawl/1.0 (+https://github.com/osintkit/tiercrawl)",
		DetectJS:          true,
		MaxContentChars:   DefaultMaxContentChars,
		Headless:          true,
	}
}

// Validate rejects configurations that cannot produce a sane run.
func (c *FetchConfig) Validate() error {
	if c.Concurrency < 1 || c.Concurrency > 2000 {
		return fmt.Errorf("concurrency must be between 1 and 2000, got %d", c.Concurrency)
	}
	if c.PerDomain < 1 || c.PerDomain > c.Concurrency {
		return fmt.Errorf("per-domain limit must be between 1 and %d, got %d", c.Concurrency, c.PerDomain)
	}
	if c.RenderConcurrency < 1 {
		return fmt.Errorf("render concurrency must be at least 1, got %d", c.RenderConcurrency)
	}
	if c.Timeout <= 0 || c.Timeout > 5*time.Minute {
		return fmt.Errorf("timeout must be between 1s and 5m, got %s", c.Timeout)
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must not be negative, got %s", c.Delay)
	}
	if c.MaxContentChars < 1 {
		return fmt.Errorf("max content chars must be positive, got %d", c.MaxContentChars)
	}
	return nil
}

// ValidateURL checks that a target URL is absolute http(s).
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" {
		return fmt.Errorf("URL is missing a scheme (http/https)")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL is missing a host")
	}
	return nil
}

// NormalizeURL defaults the scheme to https when missing.
func NormalizeURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if parsed.Scheme == "" {
		rawURL = "https://" + rawURL
		parsed, err = url.Parse(rawURL)
		if err != nil {
			return "", err
		}
	}
	return parsed.String(), nil
}

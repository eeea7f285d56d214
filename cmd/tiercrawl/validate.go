package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/osintkit/tiercrawl/internal/models"
	"github.com/osintkit/tiercrawl/internal/utils"
)

// mergeFlags layers explicitly-set CLI flags over the loaded config and
// validates the merged result. Flags the user did not touch keep their
// config-file or default values.
func mergeFlags(cmd *cobra.Command) (models.FetchConfig, error) {
	cfg := appConfig.Crawl
	flags := cmd.Flags()

	if flags.Changed("concurrent") {
		cfg.Concurrency = concurrent
	}
	if flags.Changed("per-domain") {
		cfg.PerDomain = perDomain
	}
	if flags.Changed("timeout") {
		cfg.Timeout = time.Duration(timeoutSec) * time.Second
	}
	if flags.Changed("delay") {
		cfg.Delay = time.Duration(delayMs) * time.Millisecond
	}
	if flags.Changed("user-agent") {
		cfg.UserAgent = userAgent
	}
	if flags.Changed("country-tlds") {
		cfg.CountryTLDs = countryTLDs
	}
	if flags.Changed("url-keywords") {
		cfg.URLKeywords = urlKeywords
	}
	if flags.Changed("detect-js") {
		cfg.DetectJS = detectJS
	}
	if flags.Changed("include-html") {
		cfg.IncludeRawHTML = includeHTML
	}
	if flags.Changed("render-concurrent") {
		cfg.RenderConcurrency = renderConcurrent
	}
	if flags.Changed("settle") {
		cfg.SettleDelay = time.Duration(settleMs) * time.Millisecond
	}
	if flags.Changed("headless") {
		cfg.Headless = headless
	}

	headers, err := parseHeaderFlags(headerFlags)
	if err != nil {
		return cfg, err
	}
	if len(headers) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(headers))
		}
		for name, value := range headers {
			cfg.Headers[name] = value
		}
	}

	if err := utils.ValidateHeaders(cfg.Headers); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// parseHeaderFlags parses repeated -H 'Name: Value' flags.
func parseHeaderFlags(flags []string) (map[string]string, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(flags))
	for _, flag := range flags {
		name, value, found := strings.Cut(flag, ":")
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if !found || name == "" {
			return nil, fmt.Errorf("invalid header %q, expected 'Name: Value'", flag)
		}
		headers[name] = value
	}
	return headers, nil
}

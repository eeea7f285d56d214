package crawlers

import (
	"context"
	"time"

	"github.com/osintkit/tiercrawl/internal/models"
)

// Fetcher is one retrieval tier: a backend with a fixed cost/capability
// profile that turns a URL into a CrawlResult. Implementations enforce their
// own concurrency ceiling; the orchestrator imposes no additional limit.
//
// FetchBatch must send exactly one result per input URL on out, in
// completion order, and must not close the channel. A non-nil return value
// signals a batch-fatal condition (for example a browser that failed to
// launch); even then every URL must already have received a result.
type Fetcher interface {
	Tier() models.Tier
	RendersJS() bool
	Fetch(ctx context.Context, rawURL string) models.CrawlResult
	FetchBatch(ctx context.Context, urls []string, out chan<- models.CrawlResult) error
}

// BuildResult runs the shared post-fetch pipeline: title/text extraction,
// link extraction and classification, and the needs-JS decision. Every tier
// funnels successful responses through here so the result schema stays
// uniform across backends.
//
// rendered marks tiers that already executed JavaScript: their results carry
// needs_js=true unconditionally and skip the heuristic.
func BuildResult(rawURL string, statusCode int, contentType, htmlSrc string, latency time.Duration, tier models.Tier, cfg models.FetchConfig, rendered bool) models.CrawlResult {
	title, text := ExtractTitleAndText(htmlSrc)

	outlinks, internalLinks := ExtractLinks(htmlSrc, rawURL, LinkFilter{
		CountryTLDs: cfg.CountryTLDs,
		URLKeywords: cfg.URLKeywords,
	})

	needsJS := rendered
	if !rendered && cfg.DetectJS {
		needsJS = NeedsJS(htmlSrc, text)
	}

	r := models.CrawlResult{
		URL:           rawURL,
		StatusCode:    statusCode,
		ContentType:   contentType,
		Title:         title,
		Content:       TruncateChars(text, cfg.MaxContentChars),
		Outlinks:      outlinks,
		InternalLinks: internalLinks,
		NeedsJS:       needsJS,
		LatencyMs:     latency.Milliseconds(),
		Tier:          tier,
	}
	if cfg.IncludeRawHTML {
		r.HTML = htmlSrc
	}
	return r
}

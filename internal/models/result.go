package models

import "encoding/json"

// Tier identifies one retrieval backend in the escalation chain.
type Tier string

const (
	TierStaticFast Tier = "static-fast" // plain HTTP fetch, lowest cost
	TierStaticBulk Tier = "static-bulk" // high-concurrency static crawl
	TierRender     Tier = "render"      // headless-browser rendering
	TierPaid       Tier = "paid"        // opaque paid fallback API
)

// CrawlTarget is one unit of work submitted by the caller. Immutable,
// consumed by exactly one tier at a time.
type CrawlTarget struct {
	URL string `json:"url"`
}

// OutlinkRecord is one external hyperlink found on a page.
// Deduplicated by URL within a page; the first-seen anchor text wins.
type OutlinkRecord struct {
	URL        string `json:"url"`
	Domain     string `json:"domain"`
	AnchorText string `json:"anchor_text"`
	IsNofollow bool   `json:"is_nofollow"`
	IsExternal bool   `json:"is_external"`
}

// CrawlResult is the uniform record every tier produces for every URL it
// attempts. Exactly one terminal CrawlResult is emitted per submitted target.
// Once emitted a result is never mutated.
type CrawlResult struct {
	URL           string          `json:"url"`
	StatusCode    int             `json:"status_code"`
	ContentType   string          `json:"content_type"`
	Title         string          `json:"title"`
	Content       string          `json:"content"`
	HTML          string          `json:"html,omitempty"`
	Outlinks      []OutlinkRecord `json:"outlinks"`
	InternalLinks []string        `json:"internal_links"`
	NeedsJS       bool            `json:"needs_js"`
	Error         string          `json:"error,omitempty"`
	LatencyMs     int64           `json:"latency_ms"`
	Tier          Tier            `json:"tier"`
}

// Failed reports whether the fetch itself failed (network/navigation error).
// A non-2xx status with a body is not a failure at this layer.
func (r *CrawlResult) Failed() bool {
	return r.Error != ""
}

// ToJSON serializes the result for the `test` command's pretty output.
func (r *CrawlResult) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// ErrorResult builds the terminal record for a URL whose fetch failed.
// Content and links stay empty and needs_js stays unset.
func ErrorResult(url string, tier Tier, err error) CrawlResult {
	return CrawlResult{
		URL:           url,
		Outlinks:      []OutlinkRecord{},
		InternalLinks: []string{},
		Error:         err.Error(),
		Tier:          tier,
	}
}

// CrawlStats is the run-level tally. Owned exclusively by the
// StatsAggregator and mutated only via consumed result events.
type CrawlStats struct {
	Total       int          `json:"total"`
	Success     int          `json:"success"`
	Failed      int          `json:"failed"`
	NeedsJS     int          `json:"needs_js"`
	PerTier     map[Tier]int `json:"per_tier"`
	TotalTimeMs int64        `json:"total_time_ms"`
}

// Throughput returns completed URLs per second over the whole run.
func (s *CrawlStats) Throughput() float64 {
	if s.TotalTimeMs <= 0 {
		return 0
	}
	return float64(s.Total) / (float64(s.TotalTimeMs) / 1000.0)
}

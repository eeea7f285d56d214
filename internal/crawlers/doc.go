// Package crawlers implements the retrieval tiers and the shared page
// pipeline they feed.
//
// # Tiers
//
// Four Fetcher implementations cover the cost spectrum:
//
//   - StaticFetcher: plain concurrent HTTP GETs, used for the fast first
//     pass. Global semaphore plus DomainLimiter politeness.
//   - CollyFetcher: the high-volume static tier on an async colly
//     collector with per-domain LimitRules.
//   - RenderFetcher: go-rod headless browser rendering through a PagePool,
//     tab count bounded by ResourceMonitor.
//   - PaidFetcher: a commercial fetch API, enabled only when configured.
//
// Every tier honors the same batch contract: exactly one CrawlResult per
// input URL, channel never closed by the producer.
//
// # Shared pipeline
//
// BuildResult funnels every response through title/text extraction
// (goquery), link extraction and classification (x/net/html), and the
// needs-JS heuristic, so results are uniform regardless of which backend
// fetched the page.
package crawlers

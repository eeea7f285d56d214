package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/osintkit/tiercrawl/internal/crawlers"
	"github.com/osintkit/tiercrawl/internal/models"
	"github.com/osintkit/tiercrawl/internal/utils"
)

// blockSignatures are phrases bot-mitigation pages put in the title or body.
// Matched against lowercased text.
var blockSignatures = []string{
	"captcha",
	"cloudflare",
	"access denied",
	"request blocked",
	"are you a robot",
	"unusual traffic",
}

// TierOrchestrator runs targets through an ordered chain of fetchers, each
// more capable and more expensive than the last. A URL starts at the first
// tier and moves forward only: it escalates when the cheap tier produced a
// page that needs JavaScript, or once when the failure pattern looks like
// bot blocking. Every target yields exactly one terminal result.
type TierOrchestrator struct {
	chain []crawlers.Fetcher
	cfg   models.FetchConfig
	runID string
}

func NewTierOrchestrator(cfg models.FetchConfig, chain ...crawlers.Fetcher) (*TierOrchestrator, error) {
	if len(chain) == 0 {
		return nil, fmt.Errorf("at least one tier is required")
	}
	return &TierOrchestrator{
		chain: chain,
		cfg:   cfg,
		runID: uuid.New().String(),
	}, nil
}

// RunID identifies this orchestrator's run in logs and reports.
func (o *TierOrchestrator) RunID() string { return o.runID }

type escalation struct {
	url    string
	result models.CrawlResult
}

// Run crawls all targets and sends exactly one terminal result per unique
// target URL on out. It returns a non-nil error only on a batch-fatal tier failure;
// even then, every target has received a result (those stranded mid-chain
// keep the result that triggered their escalation).
func (o *TierOrchestrator) Run(ctx context.Context, targets []models.CrawlTarget, out chan<- models.CrawlResult) error {
	// Duplicate targets collapse to one: the batch accounting below reads
	// exactly one result per URL handed to a tier, and the bulk tier keys
	// its emissions by URL.
	pending := make([]escalation, 0, len(targets))
	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		if seen[t.URL] {
			utils.Debugf("dropping duplicate target: %s", t.URL)
			continue
		}
		seen[t.URL] = true
		pending = append(pending, escalation{url: t.URL})
	}

	// Tracks URLs that already spent their blocked-error escalation.
	errEscalated := make(map[string]bool)

	for i, tier := range o.chain {
		if len(pending) == 0 {
			break
		}
		isLast := i == len(o.chain)-1

		urls := make([]string, len(pending))
		for j, p := range pending {
			urls[j] = p.url
		}
		utils.Infof("tier %s: fetching %d targets", tier.Tier(), len(urls))

		results := make(chan models.CrawlResult, len(urls))
		fatal := make(chan error, 1)
		go func(t crawlers.Fetcher) {
			fatal <- t.FetchBatch(ctx, urls, results)
		}(tier)

		next := pending[:0:0]
		for range urls {
			r := <-results
			if !isLast && o.shouldEscalate(tier, r, errEscalated) {
				next = append(next, escalation{url: r.URL, result: r})
				continue
			}
			out <- r
		}

		if err := <-fatal; err != nil {
			// The tier already emitted a result for every URL it was given;
			// targets queued for further escalation keep their best result.
			for _, p := range next {
				out <- p.result
			}
			return fmt.Errorf("tier %s failed: %w", tier.Tier(), err)
		}
		pending = next
	}
	return nil
}

// Test runs a single URL through the chain and returns its terminal result.
func (o *TierOrchestrator) Test(ctx context.Context, rawURL string) (models.CrawlResult, error) {
	out := make(chan models.CrawlResult, 1)
	err := o.Run(ctx, []models.CrawlTarget{{URL: rawURL}}, out)
	return <-out, err
}

// shouldEscalate decides whether a result moves its URL to the next tier.
// Escalation triggers are a successful page that needs JavaScript from a
// non-rendering tier, and a blocked-looking failure once per URL. Any other
// failure is terminal: escalating a DNS error just repeats it at a higher
// price.
func (o *TierOrchestrator) shouldEscalate(tier crawlers.Fetcher, r models.CrawlResult, errEscalated map[string]bool) bool {
	if r.Failed() || r.StatusCode >= 400 {
		if looksBlocked(r) && !errEscalated[r.URL] {
			errEscalated[r.URL] = true
			utils.Debugf("escalating likely-blocked target: %s (status=%d err=%q)", r.URL, r.StatusCode, r.Error)
			return true
		}
		return false
	}
	// Rendering tiers mark their output needs_js; that flag means the page
	// was rendered, not that more JavaScript is wanted, so it only escalates
	// out of a non-rendering tier.
	return r.NeedsJS && !tier.RendersJS()
}

// looksBlocked classifies a failure as probable bot mitigation rather than
// a genuinely broken target.
func looksBlocked(r models.CrawlResult) bool {
	errText := strings.ToLower(r.Error)
	if strings.Contains(errText, "timeout") ||
		strings.Contains(errText, "deadline exceeded") ||
		strings.Contains(errText, "connection reset") {
		return true
	}
	if r.StatusCode == 429 {
		return true
	}
	if r.StatusCode == 403 || r.StatusCode == 503 {
		page := strings.ToLower(r.Title + " " + r.Content)
		for _, sig := range blockSignatures {
			if strings.Contains(page, sig) {
				return true
			}
		}
	}
	return false
}

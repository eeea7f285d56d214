package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/osintkit/tiercrawl/internal/crawlers"
	"github.com/osintkit/tiercrawl/internal/models"
)

// stubFetcher scripts per-URL results for one tier and records how often
// each URL was requested.
type stubFetcher struct {
	tier      models.Tier
	rendersJS bool
	results   map[string]models.CrawlResult
	batchErr  error

	mu    sync.Mutex
	calls map[string]int
}

func newStub(tier models.Tier, rendersJS bool) *stubFetcher {
	return &stubFetcher{
		tier:      tier,
		rendersJS: rendersJS,
		results:   make(map[string]models.CrawlResult),
		calls:     make(map[string]int),
	}
}

func (s *stubFetcher) Tier() models.Tier { return s.tier }
func (s *stubFetcher) RendersJS() bool   { return s.rendersJS }

func (s *stubFetcher) Fetch(ctx context.Context, rawURL string) models.CrawlResult {
	out := make(chan models.CrawlResult, 1)
	s.FetchBatch(ctx, []string{rawURL}, out)
	return <-out
}

func (s *stubFetcher) FetchBatch(ctx context.Context, urls []string, out chan<- models.CrawlResult) error {
	for _, u := range urls {
		s.mu.Lock()
		s.calls[u]++
		s.mu.Unlock()
		if r, ok := s.results[u]; ok {
			r.URL = u
			r.Tier = s.tier
			out <- r
			continue
		}
		out <- models.CrawlResult{URL: u, StatusCode: 200, Tier: s.tier}
	}
	return s.batchErr
}

func (s *stubFetcher) callCount(u string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[u]
}

func targets(urls ...string) []models.CrawlTarget {
	ts := make([]models.CrawlTarget, len(urls))
	for i, u := range urls {
		ts[i] = models.CrawlTarget{URL: u}
	}
	return ts
}

func collect(t *testing.T, orch *TierOrchestrator, ts []models.CrawlTarget) (map[string]models.CrawlResult, error) {
	t.Helper()
	out := make(chan models.CrawlResult, len(ts))
	err := orch.Run(context.Background(), ts, out)
	close(out)
	got := make(map[string]models.CrawlResult)
	for r := range out {
		if _, dup := got[r.URL]; dup {
			t.Errorf("duplicate terminal result for %s", r.URL)
		}
		got[r.URL] = r
	}
	return got, err
}

func TestOrchestratorNeedsJSEscalation(t *testing.T) {
	fast := newStub(models.TierStaticFast, false)
	fast.results["https://spa.example"] = models.CrawlResult{StatusCode: 200, NeedsJS: true}
	render := newStub(models.TierRender, true)
	render.results["https://spa.example"] = models.CrawlResult{StatusCode: 200, NeedsJS: true, Content: "rendered"}

	orch, err := NewTierOrchestrator(models.DefaultFetchConfig(), fast, render)
	if err != nil {
		t.Fatal(err)
	}

	got, err := collect(t, orch, targets("https://spa.example", "https://plain.example"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got["https://spa.example"].Tier != models.TierRender {
		t.Errorf("SPA page terminal tier = %q, want render", got["https://spa.example"].Tier)
	}
	if got["https://plain.example"].Tier != models.TierStaticFast {
		t.Errorf("plain page terminal tier = %q, want static-fast", got["https://plain.example"].Tier)
	}
	if n := render.callCount("https://plain.example"); n != 0 {
		t.Errorf("plain page hit the render tier %d times, want 0", n)
	}
}

func TestOrchestratorMonotonicNoReattempt(t *testing.T) {
	fast := newStub(models.TierStaticFast, false)
	fast.results["https://spa.example"] = models.CrawlResult{StatusCode: 200, NeedsJS: true}
	render := newStub(models.TierRender, true)

	orch, _ := NewTierOrchestrator(models.DefaultFetchConfig(), fast, render)
	if _, err := collect(t, orch, targets("https://spa.example")); err != nil {
		t.Fatal(err)
	}

	if n := fast.callCount("https://spa.example"); n != 1 {
		t.Errorf("static tier attempted %d times, want exactly 1 (no re-descent)", n)
	}
	if n := render.callCount("https://spa.example"); n != 1 {
		t.Errorf("render tier attempted %d times, want 1", n)
	}
}

func TestOrchestratorLastTierNeedsJSIsTerminal(t *testing.T) {
	render := newStub(models.TierRender, true)
	render.results["https://spa.example"] = models.CrawlResult{StatusCode: 200, NeedsJS: true}

	orch, _ := NewTierOrchestrator(models.DefaultFetchConfig(), render)
	got, err := collect(t, orch, targets("https://spa.example"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	if n := render.callCount("https://spa.example"); n != 1 {
		t.Errorf("last tier attempted %d times, want 1", n)
	}
}

func TestOrchestratorRenderedPageStopsBeforePaidTier(t *testing.T) {
	fast := newStub(models.TierStaticFast, false)
	fast.results["https://spa.example"] = models.CrawlResult{StatusCode: 200, NeedsJS: true}
	render := newStub(models.TierRender, true)
	render.results["https://spa.example"] = models.CrawlResult{StatusCode: 200, NeedsJS: true, Content: "rendered"}
	paid := newStub(models.TierPaid, true)

	orch, _ := NewTierOrchestrator(models.DefaultFetchConfig(), fast, render, paid)
	got, err := collect(t, orch, targets("https://spa.example"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// A rendered success is final even though it carries needs_js; the paid
	// tier is only for pages the browser could not get.
	if got["https://spa.example"].Tier != models.TierRender {
		t.Errorf("terminal tier = %q, want render", got["https://spa.example"].Tier)
	}
	if n := paid.callCount("https://spa.example"); n != 0 {
		t.Errorf("paid tier fetched the URL %d times, want 0", n)
	}
}

func TestOrchestratorDuplicateTargetsCollapse(t *testing.T) {
	fast := newStub(models.TierStaticFast, false)

	orch, _ := NewTierOrchestrator(models.DefaultFetchConfig(), fast)
	got, err := collect(t, orch, targets("https://dup.example", "https://dup.example", "https://solo.example"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("got %d results, want 2 (one per unique URL)", len(got))
	}
	if n := fast.callCount("https://dup.example"); n != 1 {
		t.Errorf("duplicate target fetched %d times, want 1", n)
	}
}

func TestOrchestratorBlockedErrorEscalatesOnce(t *testing.T) {
	fast := newStub(models.TierStaticFast, false)
	fast.results["https://blocked.example"] = models.CrawlResult{Error: "context deadline exceeded"}
	bulk := newStub(models.TierStaticBulk, false)
	bulk.results["https://blocked.example"] = models.CrawlResult{Error: "connection reset by peer"}
	render := newStub(models.TierRender, true)
	render.results["https://blocked.example"] = models.CrawlResult{Error: "net::ERR_TIMED_OUT"}

	orch, _ := NewTierOrchestrator(models.DefaultFetchConfig(), fast, bulk, render)
	got, err := collect(t, orch, targets("https://blocked.example"))
	if err != nil {
		t.Fatal(err)
	}

	r := got["https://blocked.example"]
	if !r.Failed() {
		t.Fatal("expected a failed terminal result")
	}
	// One blocked-looking failure buys one escalation, not a tour of the
	// whole chain.
	if r.Tier != models.TierStaticBulk {
		t.Errorf("terminal tier = %q, want static-bulk (single escalation)", r.Tier)
	}
	if n := render.callCount("https://blocked.example"); n != 0 {
		t.Errorf("render tier attempted %d times, want 0", n)
	}
}

func TestOrchestratorBlockedStatusEscalation(t *testing.T) {
	fast := newStub(models.TierStaticFast, false)
	fast.results["https://cf.example"] = models.CrawlResult{
		StatusCode: 403,
		Title:      "Attention Required! | Cloudflare",
		Content:    "Please complete the CAPTCHA to continue",
	}
	fast.results["https://gone.example"] = models.CrawlResult{StatusCode: 404}
	render := newStub(models.TierRender, true)
	render.results["https://cf.example"] = models.CrawlResult{StatusCode: 200, Content: "real page"}

	orch, _ := NewTierOrchestrator(models.DefaultFetchConfig(), fast, render)
	got, err := collect(t, orch, targets("https://cf.example", "https://gone.example"))
	if err != nil {
		t.Fatal(err)
	}

	if got["https://cf.example"].Tier != models.TierRender {
		t.Errorf("challenge page tier = %q, want render", got["https://cf.example"].Tier)
	}
	if got["https://gone.example"].Tier != models.TierStaticFast {
		t.Errorf("plain 404 tier = %q, should be terminal at static-fast", got["https://gone.example"].Tier)
	}
	if n := render.callCount("https://gone.example"); n != 0 {
		t.Errorf("plain 404 escalated to render %d times, want 0", n)
	}
}

func TestOrchestratorTerminalNetworkError(t *testing.T) {
	fast := newStub(models.TierStaticFast, false)
	fast.results["https://nx.example"] = models.CrawlResult{Error: "no such host"}
	render := newStub(models.TierRender, true)

	orch, _ := NewTierOrchestrator(models.DefaultFetchConfig(), fast, render)
	got, err := collect(t, orch, targets("https://nx.example"))
	if err != nil {
		t.Fatal(err)
	}

	r := got["https://nx.example"]
	if r.Tier != models.TierStaticFast || !r.Failed() {
		t.Errorf("DNS failure should be terminal at static-fast, got tier=%q err=%q", r.Tier, r.Error)
	}
	if n := render.callCount("https://nx.example"); n != 0 {
		t.Errorf("DNS failure escalated %d times, want 0", n)
	}
}

func TestOrchestratorBatchFatal(t *testing.T) {
	fast := newStub(models.TierStaticFast, false)
	fast.results["https://spa.example"] = models.CrawlResult{StatusCode: 200, NeedsJS: true}
	render := newStub(models.TierRender, true)
	render.results["https://spa.example"] = models.CrawlResult{Error: "browser launch failed"}
	render.batchErr = crawlers.ErrBrowserLaunch

	orch, _ := NewTierOrchestrator(models.DefaultFetchConfig(), fast, render)
	got, err := collect(t, orch, targets("https://spa.example", "https://plain.example"))

	if err == nil || !errors.Is(err, crawlers.ErrBrowserLaunch) {
		t.Errorf("Run error = %v, want wrapped ErrBrowserLaunch", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want one per target even on batch failure", len(got))
	}
}

func TestOrchestratorEmptyChain(t *testing.T) {
	if _, err := NewTierOrchestrator(models.DefaultFetchConfig()); err == nil {
		t.Error("empty chain should be rejected")
	}
}

func TestLooksBlocked(t *testing.T) {
	tests := []struct {
		name string
		r    models.CrawlResult
		want bool
	}{
		{"timeout error", models.CrawlResult{Error: "request timeout"}, true},
		{"deadline error", models.CrawlResult{Error: "context deadline exceeded"}, true},
		{"connection reset", models.CrawlResult{Error: "read: connection reset by peer"}, true},
		{"rate limited", models.CrawlResult{StatusCode: 429}, true},
		{"403 with captcha", models.CrawlResult{StatusCode: 403, Content: "solve this CAPTCHA"}, true},
		{"503 with cloudflare", models.CrawlResult{StatusCode: 503, Title: "Cloudflare"}, true},
		{"plain 403", models.CrawlResult{StatusCode: 403, Content: "forbidden area"}, false},
		{"dns failure", models.CrawlResult{Error: "no such host"}, false},
		{"plain 404", models.CrawlResult{StatusCode: 404}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := looksBlocked(tt.r); got != tt.want {
				t.Errorf("looksBlocked(%s) = %v, want %v", strings.ToLower(tt.name), got, tt.want)
			}
		})
	}
}

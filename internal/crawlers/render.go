package crawlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"

	"github.com/osintkit/tiercrawl/internal/models"
	"github.com/osintkit/tiercrawl/internal/utils"
)

// ErrBrowserLaunch marks a batch-fatal browser startup failure. The
// orchestrator treats it as unrecoverable for the whole tier, not just the
// URL that happened to be first.
var ErrBrowserLaunch = errors.New("browser launch failed")

// RenderFetcher executes pages in a headless browser so client-rendered
// content becomes visible. One browser serves a whole batch; concurrency is
// the smaller of the configured render budget and what the resource monitor
// says the machine can hold.
type RenderFetcher struct {
	cfg     models.FetchConfig
	monitor *ResourceMonitor
}

func NewRenderFetcher(cfg models.FetchConfig) *RenderFetcher {
	return &RenderFetcher{
		cfg:     cfg,
		monitor: NewResourceMonitor(cfg.RenderConcurrency, 0),
	}
}

func (f *RenderFetcher) Tier() models.Tier { return models.TierRender }

func (f *RenderFetcher) RendersJS() bool { return true }

// Fetch renders a single URL in its own browser instance.
func (f *RenderFetcher) Fetch(ctx context.Context, rawURL string) models.CrawlResult {
	out := make(chan models.CrawlResult, 1)
	if err := f.FetchBatch(ctx, []string{rawURL}, out); err != nil {
		utils.Errorf("render batch failed: %v", err)
	}
	return <-out
}

// FetchBatch launches one browser, renders all URLs through a tab pool and
// sends exactly one result per URL on out. When the browser cannot launch,
// every URL gets an error result and the returned error wraps
// ErrBrowserLaunch.
func (f *RenderFetcher) FetchBatch(ctx context.Context, urls []string, out chan<- models.CrawlResult) error {
	controlURL, err := launcher.New().
		Headless(f.cfg.Headless).
		Set("ignore-certificate-errors").
		Set("disable-gpu").
		Launch()
	if err != nil {
		f.failAll(urls, out, fmt.Errorf("%w: %v", ErrBrowserLaunch, err))
		return fmt.Errorf("%w: %v", ErrBrowserLaunch, err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		f.failAll(urls, out, fmt.Errorf("%w: %v", ErrBrowserLaunch, err))
		return fmt.Errorf("%w: %v", ErrBrowserLaunch, err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			utils.Debugf("close browser: %v", err)
		}
	}()

	workers := f.cfg.RenderConcurrency
	if tabs := f.monitor.MaxTabs(); tabs < workers {
		workers = tabs
	}
	if len(urls) < workers {
		workers = len(urls)
	}
	if workers < 1 {
		workers = 1
	}
	utils.Infof("rendering %d pages with %d tabs", len(urls), workers)

	pool := NewPagePool(browser, workers)
	defer pool.Close()

	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rawURL := range jobs {
				out <- f.renderOne(ctx, pool, rawURL)
			}
		}()
	}

feed:
	for i, rawURL := range urls {
		select {
		case jobs <- rawURL:
		case <-ctx.Done():
			// Unfed URLs still owe a result.
			for _, remaining := range urls[i:] {
				out <- models.ErrorResult(remaining, models.TierRender, ctx.Err())
			}
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	return nil
}

func (f *RenderFetcher) renderOne(ctx context.Context, pool *PagePool, rawURL string) (result models.CrawlResult) {
	// A crashed tab panics inside rod rather than returning an error.
	defer func() {
		if r := recover(); r != nil {
			utils.Warnf("render panic [%s]: %v", rawURL, r)
			result = models.ErrorResult(rawURL, models.TierRender, fmt.Errorf("page crashed: %v", r))
		}
	}()

	page, err := pool.Acquire(ctx)
	if err != nil {
		return models.ErrorResult(rawURL, models.TierRender, err)
	}
	defer pool.Release(page)

	p := page.Context(ctx).Timeout(f.cfg.Timeout)

	start := time.Now()
	if err := p.Navigate(rawURL); err != nil {
		return models.ErrorResult(rawURL, models.TierRender, fmt.Errorf("navigate: %w", err))
	}
	if err := p.WaitLoad(); err != nil {
		return models.ErrorResult(rawURL, models.TierRender, fmt.Errorf("wait load: %w", err))
	}
	latency := time.Since(start)

	// Frameworks keep painting after load; give hydration a beat to finish.
	if f.cfg.SettleDelay > 0 {
		select {
		case <-time.After(f.cfg.SettleDelay):
		case <-ctx.Done():
			return models.ErrorResult(rawURL, models.TierRender, ctx.Err())
		}
	}

	htmlSrc, err := p.HTML()
	if err != nil {
		return models.ErrorResult(rawURL, models.TierRender, fmt.Errorf("read dom: %w", err))
	}

	// The DevTools protocol does not surface the HTTP status of the main
	// document here; a rendered DOM is reported as a 200.
	return BuildResult(rawURL, 200, "text/html; charset=utf-8", htmlSrc, latency, models.TierRender, f.cfg, true)
}

func (f *RenderFetcher) failAll(urls []string, out chan<- models.CrawlResult, err error) {
	for _, rawURL := range urls {
		out <- models.ErrorResult(rawURL, models.TierRender, err)
	}
}

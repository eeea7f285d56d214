package crawlers

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/osintkit/tiercrawl/internal/models"
	"github.com/osintkit/tiercrawl/internal/utils"
)

// CollyFetcher is the high-volume static tier, built on an async colly
// collector. Colly owns scheduling and per-domain politeness via its
// LimitRule; this wrapper's job is the one-result-per-input accounting the
// pipeline depends on, which colly's callback model does not give for free.
type CollyFetcher struct {
	cfg models.FetchConfig
}

func NewCollyFetcher(cfg models.FetchConfig) *CollyFetcher {
	return &CollyFetcher{cfg: cfg}
}

func (f *CollyFetcher) Tier() models.Tier { return models.TierStaticBulk }

func (f *CollyFetcher) RendersJS() bool { return false }

// Fetch retrieves a single URL through a dedicated collector.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) models.CrawlResult {
	out := make(chan models.CrawlResult, 1)
	f.FetchBatch(ctx, []string{rawURL}, out)
	return <-out
}

// FetchBatch crawls all URLs through one async collector and sends exactly
// one result per input URL on out.
//
// Colly reports the final URL after redirects, so the original input URL is
// carried in the request context under "origin" and every emit is keyed on
// it. After Wait returns, any input that produced neither a response nor an
// error callback is reconciled with a terminal error result.
func (f *CollyFetcher) FetchBatch(ctx context.Context, urls []string, out chan<- models.CrawlResult) error {
	c := colly.NewCollector(
		colly.Async(true),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	c.WithTransport(&http.Transport{
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
		MaxIdleConnsPerHost: f.cfg.PerDomain,
	})
	c.SetRequestTimeout(f.cfg.Timeout)

	// A catch-all LimitRule is collector-wide in colly, so Parallelism
	// carries the global budget here; per-domain fairness on this tier
	// comes from the Delay between requests to the same rule.
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: f.cfg.Concurrency,
		Delay:       f.cfg.Delay,
	}); err != nil {
		utils.Warnf("set collector limit: %v", err)
	}

	var (
		mu      sync.Mutex
		emitted = make(map[string]bool, len(urls))
	)
	emit := func(origin string, r models.CrawlResult) {
		mu.Lock()
		defer mu.Unlock()
		if emitted[origin] {
			return
		}
		emitted[origin] = true
		out <- r
	}

	c.OnRequest(func(r *colly.Request) {
		select {
		case <-ctx.Done():
			r.Abort()
			return
		default:
		}
		r.Headers.Set("User-Agent", f.cfg.UserAgent)
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.8")
		for name, value := range f.cfg.Headers {
			r.Headers.Set(name, value)
		}
		r.Ctx.Put("dispatched_at", time.Now())
	})

	c.OnResponse(func(r *colly.Response) {
		origin := originURL(r.Request)
		body := r.Body
		if encoding := r.Headers.Get("Content-Encoding"); encoding != "" {
			if decoded, err := decompressBody(encoding, r.Body); err == nil {
				body = decoded
			} else {
				utils.Warnf("decompress [%s] (%s): %v", origin, encoding, err)
			}
		}
		if len(body) > maxBodyBytes {
			body = body[:maxBodyBytes]
		}
		emit(origin, BuildResult(origin, r.StatusCode, r.Headers.Get("Content-Type"), string(body), latencyFrom(r.Request), models.TierStaticBulk, f.cfg, false))
	})

	c.OnError(func(r *colly.Response, err error) {
		origin := originURL(r.Request)
		// Colly routes every non-2xx here. A response with a body is still a
		// page worth classifying, not a transport failure.
		if r != nil && r.StatusCode > 0 && len(r.Body) > 0 {
			emit(origin, BuildResult(origin, r.StatusCode, r.Headers.Get("Content-Type"), string(r.Body), latencyFrom(r.Request), models.TierStaticBulk, f.cfg, false))
			return
		}
		emit(origin, models.ErrorResult(origin, models.TierStaticBulk, err))
	})

	for _, rawURL := range urls {
		octx := colly.NewContext()
		octx.Put("origin", rawURL)
		if err := c.Request(http.MethodGet, rawURL, nil, octx, nil); err != nil {
			emit(rawURL, models.ErrorResult(rawURL, models.TierStaticBulk, err))
		}
	}
	c.Wait()

	// A request aborted before dispatch (ctx cancellation) fires neither
	// callback. Reconcile so the batch contract holds.
	for _, rawURL := range urls {
		mu.Lock()
		done := emitted[rawURL]
		mu.Unlock()
		if !done {
			err := ctx.Err()
			if err == nil {
				err = fmt.Errorf("no response received from collector")
			}
			emit(rawURL, models.ErrorResult(rawURL, models.TierStaticBulk, err))
		}
	}
	return nil
}

// originURL recovers the input URL a request was created for, falling back
// to the request URL when the context marker is missing.
func originURL(r *colly.Request) string {
	if origin := r.Ctx.Get("origin"); origin != "" {
		return origin
	}
	return r.URL.String()
}

// latencyFrom measures dispatch-to-callback time. For colly this includes
// any LimitRule delay the scheduler inserted after OnRequest fired, which
// slightly overstates pure network latency.
func latencyFrom(r *colly.Request) time.Duration {
	if at, ok := r.Ctx.GetAny("dispatched_at").(time.Time); ok {
		return time.Since(at)
	}
	return 0
}

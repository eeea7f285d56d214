package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/osintkit/tiercrawl/internal/models"
	"github.com/osintkit/tiercrawl/internal/utils"
)

// maxBodyBytes caps how much of a response body is read before processing.
const maxBodyBytes = 5 << 20

// StaticFetcher is the plain-HTTP retrieval tier. It issues concurrent GET
// requests bounded by a global semaphore and a per-domain limiter, then runs
// every response (success or non-2xx) through the shared page pipeline.
type StaticFetcher struct {
	tier        models.Tier
	cfg         models.FetchConfig
	client      *http.Client
	limiter     *DomainLimiter
	concurrency int
}

// NewStaticFetcher builds a static tier with the given global concurrency
// ceiling. Timeouts are applied per request via context rather than on the
// client, so a request queued behind the semaphore keeps its full budget.
func NewStaticFetcher(tier models.Tier, cfg models.FetchConfig, concurrency int) *StaticFetcher {
	if concurrency < 1 {
		concurrency = 1
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			// Scrape targets routinely serve self-signed or mismatched certs.
			InsecureSkipVerify: true,
		},
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        concurrency,
		MaxIdleConnsPerHost: cfg.PerDomain,
		IdleConnTimeout:     90 * time.Second,
	}
	return &StaticFetcher{
		tier:        tier,
		cfg:         cfg,
		client:      &http.Client{Transport: transport},
		limiter:     NewDomainLimiter(cfg.PerDomain, cfg.Delay),
		concurrency: concurrency,
	}
}

func (f *StaticFetcher) Tier() models.Tier { return f.tier }

func (f *StaticFetcher) RendersJS() bool { return false }

// Fetch retrieves a single URL synchronously.
func (f *StaticFetcher) Fetch(ctx context.Context, rawURL string) models.CrawlResult {
	return f.fetchOne(ctx, rawURL, nil)
}

// FetchBatch fetches all URLs concurrently and sends exactly one result per
// URL on out, in completion order. Cancelled URLs still get a terminal error
// result so no target is dropped silently.
func (f *StaticFetcher) FetchBatch(ctx context.Context, urls []string, out chan<- models.CrawlResult) error {
	sem := make(chan struct{}, f.concurrency)
	var wg sync.WaitGroup
	for _, rawURL := range urls {
		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			out <- f.fetchOne(ctx, target, sem)
		}(rawURL)
	}
	wg.Wait()
	return nil
}

// fetchOne takes the per-domain slot before the global one. A URL queued on
// a saturated host must not sit on global capacity, or one slow domain
// stalls the rest of the batch.
func (f *StaticFetcher) fetchOne(ctx context.Context, rawURL string, sem chan struct{}) models.CrawlResult {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return models.ErrorResult(rawURL, f.tier, fmt.Errorf("parse url: %w", err))
	}

	if err := f.limiter.Acquire(ctx, parsed.Host); err != nil {
		return models.ErrorResult(rawURL, f.tier, err)
	}
	defer f.limiter.Release(parsed.Host)

	if sem != nil {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
		case <-ctx.Done():
			return models.ErrorResult(rawURL, f.tier, ctx.Err())
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return models.ErrorResult(rawURL, f.tier, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	for name, value := range f.cfg.Headers {
		req.Header.Set(name, value)
	}

	// Latency runs from dispatch to response headers. Queue wait behind the
	// semaphore and the domain limiter is excluded by measuring here.
	start := time.Now()
	resp, err := f.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		utils.Debugf("fetch failed [%s]: %v", rawURL, err)
		r := models.ErrorResult(rawURL, f.tier, err)
		r.LatencyMs = latency.Milliseconds()
		return r
	}

	body, err := readBody(resp)
	if err != nil {
		r := models.ErrorResult(rawURL, f.tier, err)
		r.LatencyMs = latency.Milliseconds()
		return r
	}

	return BuildResult(rawURL, resp.StatusCode, resp.Header.Get("Content-Type"), string(body), latency, f.tier, f.cfg, false)
}

// readBody decompresses the response body according to Content-Encoding and
// caps it at maxBodyBytes.
func readBody(resp *http.Response) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, fmt.Errorf("empty response body")
	}
	defer resp.Body.Close()

	reader := io.Reader(resp.Body)
	switch encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))); encoding {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "":
	default:
		utils.Warnf("unknown Content-Encoding %q, reading raw body", encoding)
	}

	body, err := io.ReadAll(io.LimitReader(reader, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// decompressBody decodes an already-buffered body by encoding name. Used by
// tiers that hand us a full byte slice instead of a stream.
func decompressBody(contentEncoding string, body []byte) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip":
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		return io.ReadAll(gz)
	case "deflate":
		fl := flate.NewReader(bytes.NewReader(body))
		defer fl.Close()
		return io.ReadAll(fl)
	case "br":
		return io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
	default:
		return body, nil
	}
}

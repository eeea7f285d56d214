package crawlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/osintkit/tiercrawl/internal/models"
)

// PaidConfig configures the commercial fetch API used as the last-resort
// tier. The tier is part of the chain only when an endpoint is set.
type PaidConfig struct {
	Endpoint    string        `json:"endpoint" mapstructure:"endpoint"`
	APIKey      string        `json:"-" mapstructure:"api_key"`
	Concurrency int           `json:"concurrency" mapstructure:"concurrent"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`
}

func (c PaidConfig) Enabled() bool { return c.Endpoint != "" }

// PaidFetcher delegates retrieval to an external rendering API. The service
// executes JavaScript on its side, so results count as rendered.
type PaidFetcher struct {
	cfg    models.FetchConfig
	paid   PaidConfig
	client *http.Client
}

func NewPaidFetcher(cfg models.FetchConfig, paid PaidConfig) *PaidFetcher {
	if paid.Concurrency < 1 {
		paid.Concurrency = 4
	}
	if paid.Timeout <= 0 {
		paid.Timeout = 60 * time.Second
	}
	return &PaidFetcher{
		cfg:    cfg,
		paid:   paid,
		client: &http.Client{Timeout: paid.Timeout},
	}
}

func (f *PaidFetcher) Tier() models.Tier { return models.TierPaid }

func (f *PaidFetcher) RendersJS() bool { return true }

func (f *PaidFetcher) Fetch(ctx context.Context, rawURL string) models.CrawlResult {
	return f.fetchOne(ctx, rawURL)
}

// FetchBatch submits all URLs to the API with a small concurrency cap, one
// result per URL on out. Paid calls are metered, so the cap stays low.
func (f *PaidFetcher) FetchBatch(ctx context.Context, urls []string, out chan<- models.CrawlResult) error {
	sem := make(chan struct{}, f.paid.Concurrency)
	var wg sync.WaitGroup
	for _, rawURL := range urls {
		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				out <- models.ErrorResult(target, models.TierPaid, ctx.Err())
				return
			}
			defer func() { <-sem }()
			out <- f.fetchOne(ctx, target)
		}(rawURL)
	}
	wg.Wait()
	return nil
}

type paidRequest struct {
	URL string `json:"url"`
}

type paidResponse struct {
	HTML        string `json:"html"`
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
}

func (f *PaidFetcher) fetchOne(ctx context.Context, rawURL string) models.CrawlResult {
	payload, err := json.Marshal(paidRequest{URL: rawURL})
	if err != nil {
		return models.ErrorResult(rawURL, models.TierPaid, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.paid.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, f.paid.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return models.ErrorResult(rawURL, models.TierPaid, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if f.paid.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.paid.APIKey)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return models.ErrorResult(rawURL, models.TierPaid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return models.ErrorResult(rawURL, models.TierPaid, fmt.Errorf("fetch api returned %d: %s", resp.StatusCode, bytes.TrimSpace(body)))
	}

	var decoded paidResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&decoded); err != nil {
		return models.ErrorResult(rawURL, models.TierPaid, fmt.Errorf("decode fetch api response: %w", err))
	}

	statusCode := decoded.StatusCode
	if statusCode == 0 {
		statusCode = 200
	}
	contentType := decoded.ContentType
	if contentType == "" {
		contentType = "text/html; charset=utf-8"
	}
	return BuildResult(rawURL, statusCode, contentType, decoded.HTML, latency, models.TierPaid, f.cfg, true)
}

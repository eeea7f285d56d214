package core

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/osintkit/tiercrawl/internal/models"
)

// Output formats.
const (
	FormatNDJSON = "ndjson"
	FormatJSON   = "json"
)

// ResultWriter is the single consumer of the result stream. It serializes
// results to w and keeps the run statistics; funnelling everything through
// one goroutine is what makes the output and the tallies race-free.
type ResultWriter struct {
	w      io.Writer
	format string
	enc    *json.Encoder

	// json mode buffers so the array can be written in one piece
	results []models.CrawlResult

	stats models.CrawlStats
	bar   *progressbar.ProgressBar
}

// NewResultWriter creates a writer for the given format. expected sizes the
// progress bar; pass bar=nil to disable progress reporting.
func NewResultWriter(w io.Writer, format string, bar *progressbar.ProgressBar) (*ResultWriter, error) {
	if format != FormatNDJSON && format != FormatJSON {
		return nil, fmt.Errorf("unknown output format %q", format)
	}
	rw := &ResultWriter{
		w:      w,
		format: format,
		bar:    bar,
	}
	if format == FormatNDJSON {
		rw.enc = json.NewEncoder(w)
	}
	return rw, nil
}

// Consume drains the result channel until it closes. ndjson results are
// written as they arrive; json results are buffered for Finish.
func (rw *ResultWriter) Consume(results <-chan models.CrawlResult) error {
	for r := range results {
		rw.tally(r)
		if rw.bar != nil {
			_ = rw.bar.Add(1)
		}
		if rw.format == FormatNDJSON {
			if err := rw.enc.Encode(r); err != nil {
				return fmt.Errorf("write result: %w", err)
			}
			continue
		}
		rw.results = append(rw.results, r)
	}
	return nil
}

func (rw *ResultWriter) tally(r models.CrawlResult) {
	rw.stats.Total++
	if r.Failed() {
		rw.stats.Failed++
	} else {
		rw.stats.Success++
	}
	if r.NeedsJS {
		rw.stats.NeedsJS++
	}
	if rw.stats.PerTier == nil {
		rw.stats.PerTier = make(map[models.Tier]int)
	}
	rw.stats.PerTier[r.Tier]++
}

// Finish flushes buffered output and returns the final statistics.
func (rw *ResultWriter) Finish(elapsed time.Duration) (models.CrawlStats, error) {
	rw.stats.TotalTimeMs = elapsed.Milliseconds()
	if rw.bar != nil {
		_ = rw.bar.Finish()
	}
	if rw.format == FormatJSON {
		enc := json.NewEncoder(rw.w)
		enc.SetIndent("", "  ")
		if rw.results == nil {
			rw.results = []models.CrawlResult{}
		}
		if err := enc.Encode(rw.results); err != nil {
			return rw.stats, fmt.Errorf("write results: %w", err)
		}
	}
	return rw.stats, nil
}

// Stats returns the tallies accumulated so far.
func (rw *ResultWriter) Stats() models.CrawlStats {
	return rw.stats
}

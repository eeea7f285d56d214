package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/osintkit/tiercrawl/internal/models"
)

// RunReport is the machine-readable summary of one crawl run.
type RunReport struct {
	RunID      string             `json:"run_id"`
	FinishedAt time.Time          `json:"finished_at"`
	Config     models.FetchConfig `json:"config"`
	Stats      models.CrawlStats  `json:"stats"`
	Throughput float64            `json:"throughput_per_sec"`
}

// WriteReport writes the run report to path as indented JSON.
func WriteReport(path, runID string, cfg models.FetchConfig, stats models.CrawlStats) error {
	report := RunReport{
		RunID:      runID,
		FinishedAt: time.Now(),
		Config:     cfg,
		Stats:      stats,
		Throughput: stats.Throughput(),
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	Infof("report written: %s", path)
	return nil
}

// NewProgressBar creates the crawl progress bar. It writes to stderr so
// stdout stays reserved for results.
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

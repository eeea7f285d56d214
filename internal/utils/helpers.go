package utils

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/osintkit/tiercrawl/internal/models"
)

// LoadTargets reads crawl targets from path, or from stdin when path is
// "-". Two formats are accepted: a JSON array of URL strings, or one URL
// per line with blank lines and #-comments skipped. URLs without a scheme
// default to https; invalid entries are logged and dropped.
func LoadTargets(path string) ([]models.CrawlTarget, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open target file: %w", err)
		}
		defer file.Close()
		r = file
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}

	var raw []string
	if strings.HasPrefix(strings.TrimSpace(string(data)), "[") {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse target JSON: %w", err)
		}
	} else {
		scanner := bufio.NewScanner(strings.NewReader(string(data)))
		scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			raw = append(raw, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("scan targets: %w", err)
		}
	}

	targets := make([]models.CrawlTarget, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, entry := range raw {
		normalized, err := models.NormalizeURL(entry)
		if err == nil {
			err = models.ValidateURL(normalized)
		}
		if err != nil {
			Warnf("skipping invalid target (entry %d): %s: %v", i+1, entry, err)
			continue
		}
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		targets = append(targets, models.CrawlTarget{URL: normalized})
	}

	if len(targets) == 0 {
		return nil, fmt.Errorf("no valid targets in %s", path)
	}
	Infof("loaded %d targets from %s", len(targets), path)
	return targets, nil
}

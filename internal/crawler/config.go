package crawler

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Config holds the settings for one crawl run.
type Config struct {
	// StartURL is the listing URL ending in the page-number parameter with no
	// value, e.g. "https://example.com/games?p=".
	StartURL string
	// MaxPages caps the number of pages visited. Zero means no cap.
	MaxPages int
	// RunID labels the run. When empty the Crawler asks its IDGenerator.
	RunID string
}

// Validate checks for obviously bad configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.StartURL) == "" {
		return fmt.Errorf("crawler.start_url must be set")
	}
	u, err := url.Parse(c.StartURL)
	if err != nil {
		return fmt.Errorf("crawler.start_url: %w", err)
	}
	if !u.IsAbs() {
		return fmt.Errorf("crawler.start_url %q must be absolute", c.StartURL)
	}
	if !strings.HasSuffix(c.StartURL, "=") {
		return fmt.Errorf("crawler.start_url %q must end with the page parameter, e.g. \"?p=\"", c.StartURL)
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("crawler.max_pages must be >= 0")
	}
	return nil
}

// PageURL substitutes page into the URL template.
func PageURL(template string, page int) string {
	return template + strconv.Itoa(page)
}

// Package metrics exposes Prometheus collectors for the listing crawler.
package metrics

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	crawlerPagesTotal             *prometheus.CounterVec
	crawlerBytesTotal             *prometheus.CounterVec
	crawlerRecordsTotal           prometheus.Counter
	crawlerRecordsSkippedTotal    prometheus.Counter
	crawlerRunsTotal              *prometheus.CounterVec
	crawlerTotalPages             prometheus.Gauge
	crawlerFetchDurationSeconds   prometheus.Histogram
	crawlerRateLimitDelaysSeconds *prometheus.HistogramVec
	crawlerRepeatedPagesTotal     prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_total",
				Help: "Total number of listing pages processed, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		crawlerBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		crawlerRecordsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_records_total",
				Help: "Total number of records extracted and appended.",
			},
		)

		crawlerRecordsSkippedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_records_skipped_total",
				Help: "Total number of malformed listing entries dropped during extraction.",
			},
		)

		crawlerRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_runs_total",
				Help: "Total number of crawl runs, labeled by final state.",
			},
			[]string{"state"},
		)

		crawlerTotalPages = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_total_pages",
				Help: "Number of listing pages discovered for the current run.",
			},
		)

		crawlerFetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		)

		crawlerRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		crawlerRepeatedPagesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_repeated_pages_total",
				Help: "Pages whose body matched the previous page byte for byte.",
			},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObservePage records the outcome of one listing page.
func ObservePage(site string, status string, bytesFetched int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	crawlerPagesTotal.WithLabelValues(sanitizedSite, status).Inc()
	if bytesFetched > 0 {
		crawlerBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveRecords records the extraction result of one page.
func ObserveRecords(appended, skipped int) {
	Init()
	if appended > 0 {
		crawlerRecordsTotal.Add(float64(appended))
	}
	if skipped > 0 {
		crawlerRecordsSkippedTotal.Add(float64(skipped))
	}
}

// ObserveFetch records the latency of one fetch.
func ObserveFetch(duration time.Duration) {
	Init()
	crawlerFetchDurationSeconds.Observe(duration.Seconds())
}

// SetTotalPages publishes the page count of the current run.
func SetTotalPages(n int) {
	Init()
	crawlerTotalPages.Set(float64(n))
}

// ObserveRun increments the run counter for the given final state.
func ObserveRun(state string) {
	Init()
	crawlerRunsTotal.WithLabelValues(state).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	crawlerRateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveRepeatedPage counts a page identical to its predecessor.
func ObserveRepeatedPage() {
	Init()
	crawlerRepeatedPagesTotal.Inc()
}

// Push sends the default registry to a Prometheus Pushgateway. Batch runs end
// before a scraper would see them, so this is how their metrics get out.
func Push(ctx context.Context, gatewayURL, job string) error {
	if strings.TrimSpace(gatewayURL) == "" {
		return nil
	}
	Init()
	if err := push.New(gatewayURL, job).Gatherer(prometheus.DefaultGatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", gatewayURL, err)
	}
	return nil
}

package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/listing-crawler/internal/metrics"
)

// Counter discovers the total number of listing pages.
type Counter interface {
	Count(ctx context.Context, firstPageURL string) (int, error)
}

// RecordExtractor turns a parsed page into Records.
type RecordExtractor interface {
	Extract(doc Document) (Extraction, error)
}

// Crawler drives a paginated crawl: it counts pages once, then fetches,
// parses, extracts and appends every page in increasing order.
type Crawler struct {
	cfg       Config
	counter   Counter
	fetcher   Fetcher
	parser    Parser
	extractor RecordExtractor
	sink      Sink
	pacer     Pacer
	retry     RetryPolicy
	clock     Clock
	ids       IDGenerator
	hasher    Hasher
	logger    *zap.Logger

	lastDigest string
}

// New constructs a Crawler. pacer, retry, clock and ids are optional.
func New(
	cfg Config,
	counter Counter,
	fetcher Fetcher,
	parser Parser,
	extractor RecordExtractor,
	sink Sink,
	pacer Pacer,
	retry RetryPolicy,
	clock Clock,
	ids IDGenerator,
	logger *zap.Logger,
) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = utcClock{}
	}
	return &Crawler{
		cfg:       cfg,
		counter:   counter,
		fetcher:   fetcher,
		parser:    parser,
		extractor: extractor,
		sink:      sink,
		pacer:     pacer,
		retry:     retry,
		clock:     clock,
		ids:       ids,
		logger:    logger,
	}
}

// WithHasher enables repeated-page detection: a page whose body is identical
// to the previous page is logged, since the site is most likely ignoring the
// page parameter.
func (c *Crawler) WithHasher(h Hasher) *Crawler {
	c.hasher = h
	return c
}

// Run executes one crawl. It returns an error only when the page count cannot
// be determined or ctx is cancelled; per-page failures are logged, counted in
// the Report and skipped.
func (c *Crawler) Run(ctx context.Context) (Report, error) {
	report := Report{
		RunID:     c.newRunID(),
		State:     StateInit,
		StartedAt: c.clock.Now(),
	}
	logger := c.logger.With(zap.String("run_id", report.RunID))
	logger.Info("crawl started", zap.String("start_url", c.cfg.StartURL))

	report.State = StateCounting
	total, err := c.count(ctx)
	if err != nil {
		report.State = StateFailed
		report.FinishedAt = c.clock.Now()
		metrics.ObserveRun(string(report.State))
		logger.Error("page count failed; aborting crawl", zap.Error(err))
		return report, fmt.Errorf("count pages: %w", err)
	}
	if c.cfg.MaxPages > 0 && total > c.cfg.MaxPages {
		logger.Info("capping page count", zap.Int("discovered", total), zap.Int("max_pages", c.cfg.MaxPages))
		total = c.cfg.MaxPages
	}
	report.TotalPages = total
	metrics.SetTotalPages(total)

	report.State = StateIterating
	c.lastDigest = ""
	for page := 1; page <= total; page++ {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = c.clock.Now()
			metrics.ObserveRun(runInterrupted)
			logger.Warn("crawl interrupted", zap.Int("next_page", page), zap.Error(err))
			return report, fmt.Errorf("crawl interrupted before page %d: %w", page, err)
		}
		pageURL := PageURL(c.cfg.StartURL, page)
		appended, skipped, err := c.crawlPage(ctx, page, pageURL, logger)
		report.Skipped += skipped
		if err != nil {
			report.PagesFailed++
			report.FailedPages = append(report.FailedPages, page)
			logger.Error("page failed", zap.Int("page", page), zap.String("url", pageURL), zap.Error(err))
			continue
		}
		report.PagesSucceeded++
		report.Records += appended
	}

	report.State = StateDone
	report.FinishedAt = c.clock.Now()
	metrics.ObserveRun(string(report.State))
	logger.Info("crawl finished",
		zap.Int("total_pages", report.TotalPages),
		zap.Int("pages_failed", report.PagesFailed),
		zap.Int("records", report.Records),
		zap.Int("skipped", report.Skipped),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

// count paces the first-page fetch like any other request, so the counter's
// fetch and the page 1 fetch never share a token.
func (c *Crawler) count(ctx context.Context) (int, error) {
	if c.pacer != nil {
		if err := c.pacer.Wait(ctx, c.cfg.StartURL); err != nil {
			return 0, err
		}
	}
	return c.counter.Count(ctx, c.cfg.StartURL)
}

// crawlPage runs Fetch -> Parse -> Extract -> Append for one page and returns
// the number of appended and skipped records.
func (c *Crawler) crawlPage(ctx context.Context, page int, pageURL string, logger *zap.Logger) (int, int, error) {
	resp, err := c.fetch(ctx, pageURL, logger)
	if err != nil {
		metrics.ObservePage(pageURL, "fetch_error", 0)
		return 0, 0, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		metrics.ObservePage(pageURL, "http_error", len(resp.Body))
		return 0, 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	c.checkRepeat(page, pageURL, resp.Body, logger)

	doc, err := c.parser.Parse(resp.Body)
	if err != nil {
		metrics.ObservePage(pageURL, "parse_error", len(resp.Body))
		return 0, 0, fmt.Errorf("parse page: %w", err)
	}

	extraction, err := c.extractor.Extract(doc)
	if err != nil {
		// The page is still considered visited; it just contributes nothing.
		logger.Warn("extraction failed; page yields no records",
			zap.Int("page", page), zap.String("url", pageURL), zap.Error(err))
		metrics.ObservePage(pageURL, "extract_error", len(resp.Body))
		return 0, 0, nil
	}
	for _, failure := range extraction.Failures {
		logger.Debug("listing entry skipped", zap.Int("page", page), zap.Error(failure))
	}

	if len(extraction.Records) > 0 {
		if err := c.sink.Append(ctx, page, extraction.Records); err != nil {
			metrics.ObservePage(pageURL, "sink_error", len(resp.Body))
			return 0, extraction.Skipped, fmt.Errorf("append records: %w", err)
		}
	}

	metrics.ObservePage(pageURL, "ok", len(resp.Body))
	metrics.ObserveRecords(len(extraction.Records), extraction.Skipped)
	logger.Info("page processed",
		zap.Int("page", page),
		zap.Int("containers", extraction.Containers),
		zap.Int("records", len(extraction.Records)),
		zap.Int("skipped", extraction.Skipped),
	)
	return len(extraction.Records), extraction.Skipped, nil
}

func (c *Crawler) fetch(ctx context.Context, pageURL string, logger *zap.Logger) (FetchResponse, error) {
	for attempt := 1; ; attempt++ {
		if c.pacer != nil {
			if err := c.pacer.Wait(ctx, pageURL); err != nil {
				return FetchResponse{}, err
			}
		}
		resp, err := c.fetcher.Fetch(ctx, pageURL)
		if err == nil {
			metrics.ObserveFetch(resp.Duration)
			return resp, nil
		}
		if c.retry == nil || !c.retry.ShouldRetry(err, attempt) {
			return FetchResponse{}, err
		}
		wait := c.retry.Backoff(attempt)
		logger.Warn("fetch failed; retrying",
			zap.String("url", pageURL),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return FetchResponse{}, errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}

func (c *Crawler) checkRepeat(page int, pageURL string, body []byte, logger *zap.Logger) {
	if c.hasher == nil {
		return
	}
	digest, err := c.hasher.Hash(body)
	if err != nil {
		logger.Debug("page hash failed", zap.Int("page", page), zap.Error(err))
		return
	}
	if digest == c.lastDigest {
		metrics.ObserveRepeatedPage()
		logger.Warn("page body identical to previous page",
			zap.Int("page", page), zap.String("url", pageURL), zap.String("sha256", digest))
	}
	c.lastDigest = digest
}

func (c *Crawler) newRunID() string {
	if c.cfg.RunID != "" {
		return c.cfg.RunID
	}
	if c.ids == nil {
		return ""
	}
	id, err := c.ids.NewID()
	if err != nil {
		c.logger.Warn("run id generation failed", zap.Error(err))
		return ""
	}
	return id
}

const runInterrupted = "interrupted"

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }

package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const defaultErrorCapturePath = "error.txt"

// PageCounter discovers how many listing pages a crawl has to visit.
type PageCounter struct {
	fetcher     Fetcher
	parser      Parser
	capture     BlobStore
	capturePath string
	layout      Layout
	logger      *zap.Logger
}

// NewPageCounter builds a PageCounter. capture may be nil, in which case block
// pages are only logged.
func NewPageCounter(
	fetcher Fetcher,
	parser Parser,
	capture BlobStore,
	capturePath string,
	layout Layout,
	logger *zap.Logger,
) *PageCounter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(capturePath) == "" {
		capturePath = defaultErrorCapturePath
	}
	return &PageCounter{
		fetcher:     fetcher,
		parser:      parser,
		capture:     capture,
		capturePath: capturePath,
		layout:      layout,
		logger:      logger,
	}
}

// Count fetches the first listing page and reads the highest page number from
// its last pagination link.
func (c *PageCounter) Count(ctx context.Context, firstPageURL string) (int, error) {
	resp, err := c.fetcher.Fetch(ctx, firstPageURL)
	if err != nil {
		return 0, fmt.Errorf("fetch first page: %w", err)
	}
	doc, err := c.parser.Parse(resp.Body)
	if err != nil {
		return 0, c.fail(ctx, firstPageURL, resp.Body, fmt.Errorf("parse first page: %w", err))
	}

	links, err := doc.FindAll(c.layout.PaginationTag, c.layout.PaginationAttr, c.layout.PaginationValue)
	if err != nil {
		return 0, c.fail(ctx, firstPageURL, resp.Body, fmt.Errorf("query pagination: %w", err))
	}
	if len(links) == 0 {
		if c.layout.SinglePageFallback && c.hasListings(doc) {
			c.logger.Info("no pagination controls; treating listing as a single page",
				zap.String("url", firstPageURL))
			return 1, nil
		}
		return 0, c.fail(ctx, firstPageURL, resp.Body, ErrNoPagination)
	}

	last := links[len(links)-1]
	href, _ := last.Attr("href")
	pages, err := c.pageNumber(firstPageURL, href)
	if err != nil {
		return 0, c.fail(ctx, firstPageURL, resp.Body, err)
	}
	c.logger.Debug("page count discovered", zap.String("url", firstPageURL), zap.Int("pages", pages))
	return pages, nil
}

func (c *PageCounter) hasListings(doc Document) bool {
	containers, err := doc.FindAll(c.layout.ContainerTag, c.layout.ContainerAttr, c.layout.ContainerValue)
	return err == nil && len(containers) > 0
}

// pageNumber reads the page query parameter from a pagination href.
func (c *PageCounter) pageNumber(base, href string) (int, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return 0, errors.New("last pagination link has no href")
	}
	ref, err := url.Parse(href)
	if err != nil {
		return 0, fmt.Errorf("parse pagination href %q: %w", href, err)
	}
	if baseURL, err := url.Parse(base); err == nil {
		ref = baseURL.ResolveReference(ref)
	}
	raw := ref.Query().Get(c.layout.PageParam)
	if raw == "" {
		raw = trailingParam(ref.EscapedPath(), c.layout.PageParam)
	}
	if raw == "" {
		return 0, fmt.Errorf("pagination href %q has no %q parameter", href, c.layout.PageParam)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("pagination href %q: parse page number: %w", href, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("pagination href %q: page number %d out of range", href, n)
	}
	return n, nil
}

// fail stores the offending page for offline inspection and wraps cause in a
// PaginationError.
func (c *PageCounter) fail(ctx context.Context, pageURL string, body []byte, cause error) error {
	perr := &PaginationError{URL: pageURL, Err: cause}
	if c.capture == nil {
		c.logger.Warn("pagination not found; no capture store configured",
			zap.String("url", pageURL), zap.Error(cause))
		return perr
	}
	uri, err := c.capture.PutObject(ctx, c.capturePath, "text/html; charset=utf-8", bytes.NewReader(body))
	if err != nil {
		c.logger.Error("failed to capture page", zap.String("url", pageURL), zap.Error(err))
		return perr
	}
	perr.CaptureURI = uri
	c.logger.Warn("pagination not found; page captured",
		zap.String("url", pageURL),
		zap.String("capture_uri", uri),
		zap.Error(cause),
	)
	return perr
}

// trailingParam handles hrefs that carry the page number as a final
// "name=value" path segment instead of a query parameter.
func trailingParam(path, name string) string {
	segment := path[strings.LastIndex(path, "/")+1:]
	value, ok := strings.CutPrefix(segment, name+"=")
	if !ok {
		return ""
	}
	return value
}

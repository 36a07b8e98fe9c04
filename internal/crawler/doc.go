// Package crawler implements the crawl-and-extract pipeline: page-count
// discovery, paginated traversal, per-page record extraction, and incremental
// persistence through pluggable sinks.
//
// The pipeline is strictly sequential. One page is fetched, parsed, extracted
// and appended before the next page begins, which keeps request bursts low and
// preserves listing order in the output. Adding parallel fetches would require
// a bounded semaphore around Fetch and a Sink that serializes Append calls.
package crawler

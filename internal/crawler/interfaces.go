package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (FetchResponse, error)
}

// Parser turns raw page content into a queryable Document.
type Parser interface {
	Parse(raw []byte) (Document, error)
}

// Document is a parsed page that can be queried by tag and attribute.
type Document interface {
	// FindAll returns every element named tag whose attr contains value as a
	// whitespace-separated token, in document order.
	FindAll(tag, attr, value string) ([]Element, error)
	// Text returns the concatenated text content of the document.
	Text() string
}

// Element is a single node inside a Document.
type Element interface {
	Text() string
	Attr(name string) (string, bool)
	// FindFirst returns the first descendant named tag.
	FindFirst(tag string) (Element, bool)
}

// Sink appends the records of one page to a persistent destination.
type Sink interface {
	Append(ctx context.Context, page int, records []Record) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Pacer spaces outbound requests.
type Pacer interface {
	Wait(ctx context.Context, rawURL string) error
}

// RetryPolicy decides whether a failed fetch is attempted again.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Hasher fingerprints page bodies.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

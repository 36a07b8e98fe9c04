package crawler

import (
	"errors"
	"fmt"
)

// Sentinel causes carried by the typed errors below.
var (
	ErrNoPagination = errors.New("no pagination controls found")
	ErrEmptyName    = errors.New("empty name")
	ErrMissingLink  = errors.New("missing link")
	ErrInvalidPrice = errors.New("invalid price")
)

// TransportError reports a network or connection failure during a fetch.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PaginationError reports that the total page count could not be determined.
// CaptureURI points at the stored copy of the offending page, if one was written.
type PaginationError struct {
	URL        string
	CaptureURI string
	Err        error
}

func (e *PaginationError) Error() string {
	if e.CaptureURI != "" {
		return fmt.Sprintf("count pages of %s: %v (page captured at %s)", e.URL, e.Err, e.CaptureURI)
	}
	return fmt.Sprintf("count pages of %s: %v", e.URL, e.Err)
}

func (e *PaginationError) Unwrap() error { return e.Err }

// RecordConstructionError reports a malformed listing entry.
type RecordConstructionError struct {
	Field string
	Value string
	Err   error
}

func (e *RecordConstructionError) Error() string {
	return fmt.Sprintf("build record: %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *RecordConstructionError) Unwrap() error { return e.Err }

// ExtractionError reports that a whole page could not be queried for listings.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract listings: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

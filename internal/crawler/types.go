package crawler

import (
	"time"
)

// State represents the lifecycle state of a crawl run.
type State string

// Crawl run states. A run moves INIT -> COUNTING -> (FAILED | ITERATING) -> DONE.
const (
	StateInit      State = "init"
	StateCounting  State = "counting"
	StateIterating State = "iterating"
	StateFailed    State = "failed"
	StateDone      State = "done"
)

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Extraction is the outcome of extracting one listing page.
// len(Records)+Skipped always equals Containers.
type Extraction struct {
	Records    []Record
	Containers int
	Skipped    int
	Failures   []error
}

// Report summarizes a crawl run.
type Report struct {
	RunID          string    `json:"run_id"`
	State          State     `json:"state"`
	TotalPages     int       `json:"total_pages"`
	PagesSucceeded int       `json:"pages_succeeded"`
	PagesFailed    int       `json:"pages_failed"`
	FailedPages    []int     `json:"failed_pages,omitempty"`
	Records        int       `json:"records"`
	Skipped        int       `json:"skipped"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Package system provides the wall clock used for crawl reports and stored rows.
package system

import "time"

// Clock implements crawler.Clock. Timestamps are UTC and truncated to
// microseconds, the precision of a Postgres timestamptz, so a report's times
// compare equal to the scraped_at values written during the run.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
